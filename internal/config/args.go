package config

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// orderedArgs preserves the declared key order of a subsystem config's
// "args" object, since flattening must emit flags in that order and
// map[string]any in Go does not remember insertion order.
type orderedArgs []argEntry

type argEntry struct {
	Key   string
	Value any
}

// UnmarshalJSON walks the object token-by-token instead of decoding into a
// map, which is the only way to keep key order through encoding/json.
func (a *orderedArgs) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	delim, ok := tok.(json.Delim)
	if !ok || delim != '{' {
		return fmt.Errorf("args must be an object")
	}
	var out orderedArgs
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return err
		}
		key, ok := keyTok.(string)
		if !ok {
			return fmt.Errorf("args key must be a string")
		}
		var val any
		if err := dec.Decode(&val); err != nil {
			return fmt.Errorf("args[%q]: %w", key, err)
		}
		out = append(out, argEntry{Key: key, Value: val})
	}
	if _, err := dec.Token(); err != nil { // closing '}'
		return err
	}
	*a = out
	return nil
}

// flatten converts the declared args mapping into an ordered token sequence
// per the per-subsystem config schema: bool emits the bare flag only when
// true, list emits the flag once per element in original order, any other
// scalar emits flag+stringified value, and null is skipped entirely.
func flattenArgs(args orderedArgs) []string {
	var tokens []string
	for _, entry := range args {
		flag := "--" + entry.Key
		switch v := entry.Value.(type) {
		case nil:
			continue
		case bool:
			if v {
				tokens = append(tokens, flag)
			}
		case []any:
			for _, elem := range v {
				tokens = append(tokens, flag, stringifyScalar(elem))
			}
		default:
			tokens = append(tokens, flag, stringifyScalar(v))
		}
	}
	return tokens
}

func stringifyScalar(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case float64:
		if t == float64(int64(t)) {
			return fmt.Sprintf("%d", int64(t))
		}
		return fmt.Sprintf("%g", t)
	case bool:
		if t {
			return "true"
		}
		return "false"
	default:
		return fmt.Sprintf("%v", t)
	}
}
