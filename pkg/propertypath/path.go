// Package propertypath reads and writes values at a path inside a nested
// JSON-like document (maps of string to any and slices of any).
//
// Paths are built once at the call site, either with Parse for dotted
// strings coming from the wire or with New for compile-time known fields.
package propertypath

import (
	"fmt"
	"strconv"
	"strings"
)

// Segment is a single step of a Path: a map key or a slice index.
type Segment struct {
	Key     string
	Index   int
	IsIndex bool
}

// String returns the textual form used in dotted paths.
func (s Segment) String() string {
	if s.IsIndex {
		return strconv.Itoa(s.Index)
	}
	return s.Key
}

// Field builds a map key segment.
func Field(key string) Segment { return Segment{Key: key} }

// Index builds a slice index segment.
func Index(i int) Segment { return Segment{Index: i, IsIndex: true} }

// Path is a typed sequence of segments.
type Path []Segment

// New builds a Path from field names.
func New(keys ...string) Path {
	p := make(Path, len(keys))
	for i, k := range keys {
		p[i] = Field(k)
	}
	return p
}

// Parse splits a dotted path. Canonical decimal segments ("0", "12" but not
// "01" or "+1") become indices; every other segment is a field name.
// Empty segments are rejected.
func Parse(dotted string) (Path, error) {
	if dotted == "" {
		return nil, &Error{Path: dotted, Reason: "empty path"}
	}
	parts := strings.Split(dotted, ".")
	p := make(Path, 0, len(parts))
	for _, part := range parts {
		if part == "" {
			return nil, &Error{Path: dotted, Reason: "empty segment"}
		}
		if n, err := strconv.Atoi(part); err == nil && n >= 0 && strconv.Itoa(n) == part {
			p = append(p, Index(n))
			continue
		}
		p = append(p, Field(part))
	}
	return p, nil
}

// MustParse is Parse for literals known to be valid.
func MustParse(dotted string) Path {
	p, err := Parse(dotted)
	if err != nil {
		panic(err)
	}
	return p
}

// String joins the path back into dotted form.
func (p Path) String() string {
	parts := make([]string, len(p))
	for i, s := range p {
		parts[i] = s.String()
	}
	return strings.Join(parts, ".")
}

// Error reports a path that could not be resolved or written.
type Error struct {
	Path   string
	Reason string
}

func (e *Error) Error() string {
	return fmt.Sprintf("property path %q: %s", e.Path, e.Reason)
}
