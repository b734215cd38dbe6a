package dirty

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
)

// Canonicalize returns a deterministic, key-order independent serialization
// of v. Object keys are sorted at every nesting level, arrays keep their
// order and scalars pass through unchanged. Two values that are structurally
// equal except for key order produce the same string.
func Canonicalize(v any) (string, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("canonicalize: %w", err)
	}

	// Decode into generic maps so structs, typed maps and maps that went
	// through a server round trip all compare alike.
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var generic any
	if err := dec.Decode(&generic); err != nil {
		return "", fmt.Errorf("canonicalize: %w", err)
	}

	var buf bytes.Buffer
	if err := writeSorted(&buf, generic); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// writeSorted serializes maps with lexicographically sorted keys.
// encoding/json already sorts map keys; the explicit walk keeps the
// guarantee independent of that implementation detail.
func writeSorted(buf *bytes.Buffer, v any) error {
	switch t := v.(type) {
	case map[string]any:
		buf.WriteByte('{')
		for i, k := range sortedKeys(t) {
			if i > 0 {
				buf.WriteByte(',')
			}
			key, _ := json.Marshal(k)
			buf.Write(key)
			buf.WriteByte(':')
			if err := writeSorted(buf, t[k]); err != nil {
				return err
			}
		}
		buf.WriteByte('}')
	case []any:
		buf.WriteByte('[')
		for i, e := range t {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := writeSorted(buf, e); err != nil {
				return err
			}
		}
		buf.WriteByte(']')
	default:
		b, err := json.Marshal(t)
		if err != nil {
			return fmt.Errorf("canonicalize: %w", err)
		}
		buf.Write(b)
	}
	return nil
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
