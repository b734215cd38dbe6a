package propertypath

import (
	"fmt"
	"reflect"
)

// Get returns the value at path inside root. The boolean is false when any
// segment is absent or addresses the wrong kind of container.
func Get(root any, path Path) (any, bool) {
	cur := root
	for _, seg := range path {
		switch c := cur.(type) {
		case map[string]any:
			v, ok := c[seg.String()]
			if !ok {
				return nil, false
			}
			cur = v
		case []any:
			if !seg.IsIndex || seg.Index >= len(c) {
				return nil, false
			}
			cur = c[seg.Index]
		default:
			return nil, false
		}
	}
	return cur, true
}

// Set assigns value at path inside root, creating intermediate maps for
// absent or scalar segments. A segment holding data Set cannot walk, such as
// a typed map, is an error rather than being replaced. Slices are only
// indexed, never grown.
func Set(root map[string]any, path Path, value any) error {
	if len(path) == 0 {
		return &Error{Path: "", Reason: "empty path"}
	}
	if root == nil {
		return &Error{Path: path.String(), Reason: "nil root"}
	}

	var cur any = root
	for i, seg := range path {
		last := i == len(path)-1
		switch c := cur.(type) {
		case map[string]any:
			key := seg.String()
			if last {
				c[key] = value
				return nil
			}
			next := c[key]
			if !isContainer(next) {
				if err := checkOpaque(path, i, next); err != nil {
					return err
				}
				next = make(map[string]any)
				c[key] = next
			}
			cur = next
		case []any:
			if !seg.IsIndex || seg.Index >= len(c) {
				return &Error{Path: path.String(), Reason: "index out of range at " + path[:i+1].String()}
			}
			if last {
				c[seg.Index] = value
				return nil
			}
			next := c[seg.Index]
			if !isContainer(next) {
				if err := checkOpaque(path, i, next); err != nil {
					return err
				}
				next = make(map[string]any)
				c[seg.Index] = next
			}
			cur = next
		}
	}
	return nil
}

// SetExisting assigns value at path only if every segment, including the
// final one, already exists.
func SetExisting(root map[string]any, path Path, value any) error {
	if len(path) == 0 {
		return &Error{Path: "", Reason: "empty path"}
	}
	parent, ok := Get(root, path[:len(path)-1])
	if !ok {
		return &Error{Path: path.String(), Reason: "parent does not exist"}
	}
	seg := path[len(path)-1]
	switch c := parent.(type) {
	case map[string]any:
		if _, exists := c[seg.String()]; !exists {
			return &Error{Path: path.String(), Reason: "key does not exist"}
		}
		c[seg.String()] = value
	case []any:
		if !seg.IsIndex || seg.Index >= len(c) {
			return &Error{Path: path.String(), Reason: "index out of range"}
		}
		c[seg.Index] = value
	default:
		return &Error{Path: path.String(), Reason: "parent is not a container"}
	}
	return nil
}

// Delete removes the final key of path from its parent map. Missing paths
// are ignored.
func Delete(root map[string]any, path Path) {
	if len(path) == 0 {
		return
	}
	parent, ok := Get(root, path[:len(path)-1])
	if !ok {
		return
	}
	if m, ok := parent.(map[string]any); ok {
		delete(m, path[len(path)-1].String())
	}
}

func isContainer(v any) bool {
	switch v.(type) {
	case map[string]any, []any:
		return true
	}
	return false
}

// checkOpaque fails when v, found at path[i], holds nested data of a type
// other than map[string]any or []any.
func checkOpaque(path Path, i int, v any) error {
	if v == nil {
		return nil
	}
	switch reflect.ValueOf(v).Kind() {
	case reflect.Map, reflect.Slice, reflect.Array, reflect.Struct, reflect.Pointer:
		return &Error{Path: path.String(), Reason: fmt.Sprintf("cannot descend into %T at %s", v, path[:i+1])}
	}
	return nil
}
