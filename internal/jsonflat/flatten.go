// Package jsonflat flattens JSON documents into the key-chained token shapes
// the canonicalizer (C1) and the HTML/JSON stripper (C2) both need, matching
// modules/html_json_utils.py's roll_out_json / roll_out_json_tuple_based in
// the A2CT reference implementation.
//
// Two shapes are produced, because the original kept two parallel
// implementations for two different purposes:
//
//   - FlattenTokens: a flat []string of "parent1_parent2_..._key:value"
//     tokens, built the way roll_out_json does (plain json.Unmarshal, so a
//     repeated key collapses to its last occurrence).
//   - FlattenDict: an ordered, duplicate-preserving map[string][]string built
//     the way roll_out_json_as_dict/roll_out_json_tuple_based does (decoding
//     with an object-pairs hook that keeps every key, even repeated ones).
//     Used by the C1 canonicalizer and the C2 stripper's M4 profile, where
//     two same-named parameters at the same nesting level must count as two
//     values, not one.
package jsonflat

import (
	"encoding/json"
	"errors"
	"strconv"
	"strings"

	"github.com/tidwall/gjson"
)

// ErrUnsupportedShape is returned when the JSON document is neither a single
// object nor an array of objects — the only two shapes the flatteners
// accept. FlattenTokens accepts an empty array; FlattenDict, like the
// original's tuple-based flattener, rejects it so the caller falls back to
// exact-byte comparison.
var ErrUnsupportedShape = errors.New("jsonflat: unsupported JSON shape")

// FlattenTokens flattens a JSON document (a single object, or an array of
// objects) into a flat list of "key:value" tokens. Duplicate keys at the same
// level collapse to their last value, matching plain json.Unmarshal/json.loads
// semantics.
func FlattenTokens(data []byte) ([]string, error) {
	var v interface{}
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, err
	}
	switch vv := v.(type) {
	case map[string]interface{}:
		var out []string
		for key, val := range vv {
			out = append(out, keyValuePairs("", key, val)...)
		}
		return out, nil
	case []interface{}:
		var out []string
		for _, item := range vv {
			m, ok := item.(map[string]interface{})
			if !ok {
				return nil, ErrUnsupportedShape
			}
			for key, val := range m {
				out = append(out, keyValuePairs("", key, val)...)
			}
		}
		return out, nil
	default:
		return nil, ErrUnsupportedShape
	}
}

func keyValuePairs(prefix, key string, value interface{}) []string {
	switch val := value.(type) {
	case map[string]interface{}:
		var out []string
		for k, v := range val {
			out = append(out, keyValuePairs(prefix+key+"_", k, v)...)
		}
		return out
	case []interface{}:
		if len(val) == 0 {
			return []string{prefix + key + ":"}
		}
		if _, ok := val[0].(map[string]interface{}); ok {
			var out []string
			for _, item := range val {
				if m, ok := item.(map[string]interface{}); ok {
					for k, v := range m {
						out = append(out, keyValuePairs(prefix+key+"_", k, v)...)
					}
				}
			}
			return out
		}
		parts := make([]string, len(val))
		for i, item := range val {
			parts[i] = scalarString(item)
		}
		return []string{prefix + key + ":" + strings.Join(parts, " ")}
	default:
		return []string{prefix + key + ":" + scalarString(value)}
	}
}

func scalarString(v interface{}) string {
	switch t := v.(type) {
	case nil:
		return "None"
	case string:
		return t
	case bool:
		if t {
			return "True"
		}
		return "False"
	case float64:
		return strconv.FormatFloat(t, 'g', -1, 64)
	default:
		b, _ := json.Marshal(t)
		return string(b)
	}
}

// FlattenDict flattens a JSON document the duplicate-key-preserving way: it
// walks the raw document with gjson (which iterates object members in
// document order, including repeats, rather than building a Go map that
// would silently drop the earlier occurrence), and groups every leaf token
// under its chained key, keeping one slot per occurrence.
//
// The document must be a single object, or a non-empty array whose elements
// are all objects; anything else returns ErrUnsupportedShape so the caller
// can fall back to exact-byte comparison, exactly as roll_out_json_tuple_based
// raises ValueError for flat/mixed arrays.
func FlattenDict(data []byte) (map[string][]string, error) {
	if !gjson.ValidBytes(data) {
		return nil, ErrUnsupportedShape
	}
	root := gjson.ParseBytes(data)

	var tokens []string
	switch {
	case root.IsObject():
		root.ForEach(func(key, val gjson.Result) bool {
			tokens = append(tokens, flattenTupleBased("", key.String(), val)...)
			return true
		})
	case root.IsArray():
		elems := root.Array()
		if len(elems) == 0 {
			return nil, ErrUnsupportedShape
		}
		for _, elem := range elems {
			if !elem.IsObject() {
				return nil, ErrUnsupportedShape
			}
			elem.ForEach(func(key, val gjson.Result) bool {
				tokens = append(tokens, flattenTupleBased("", key.String(), val)...)
				return true
			})
		}
	default:
		return nil, ErrUnsupportedShape
	}

	dict := make(map[string][]string)
	for _, token := range tokens {
		key, value, ok := strings.Cut(token, ":")
		if !ok {
			continue
		}
		dict[key] = append(dict[key], value)
	}
	return dict, nil
}

func flattenTupleBased(prefix, key string, val gjson.Result) []string {
	switch {
	case val.IsObject():
		var out []string
		val.ForEach(func(k, v gjson.Result) bool {
			out = append(out, flattenTupleBased(prefix+key+"_", k.String(), v)...)
			return true
		})
		return out
	case val.IsArray():
		elems := val.Array()
		if len(elems) == 0 {
			return []string{prefix + key + ":"}
		}
		allObjects := true
		for _, e := range elems {
			if !e.IsObject() {
				allObjects = false
				break
			}
		}
		if allObjects {
			var out []string
			for _, e := range elems {
				e.ForEach(func(k, v gjson.Result) bool {
					out = append(out, flattenTupleBased(prefix+key+"_", k.String(), v)...)
					return true
				})
			}
			return out
		}
		parts := make([]string, len(elems))
		for i, e := range elems {
			parts[i] = e.String()
		}
		return []string{prefix + key + ":" + strings.Join(parts, " ")}
	default:
		return []string{prefix + key + ":" + val.String()}
	}
}
