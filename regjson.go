package skynet

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// Symbol is the registry serializer's typed union for "symbol-like
// atoms" (spec.md §4.C, §9's "Symbol-in-JSON escape"): a string tagged
// so it survives an encode/decode round trip distinguishable from an
// ordinary string, the way the legacy registry payloads it mirrors
// used a ":name" marker for the same purpose.
type Symbol string

const symbolPrefix = ":"

func isSymbolString(s string) bool {
	return strings.HasPrefix(s, symbolPrefix) && len(s) > len(symbolPrefix)
}

// EncodeRegistryValue renders v as JSON, tagging Symbol values with
// their ":name" marker and routing every other scalar through YAML's
// scalar encoder so integers, floats, booleans, and times keep their
// native representation instead of JSON's looser number/string rules
// (spec.md §4.C: "non-hash/non-array scalars are YAML-serialized").
func EncodeRegistryValue(v interface{}) ([]byte, error) {
	return json.Marshal(taggedValue(v))
}

func taggedValue(v interface{}) interface{} {
	switch vv := v.(type) {
	case Symbol:
		return symbolPrefix + string(vv)
	case string:
		// Already-tagged strings pass through untouched; an ordinary
		// string that happens to start with ":" is lossily treated
		// the same way on the next decode, per spec.
		return vv
	case map[string]interface{}:
		out := make(map[string]interface{}, len(vv))
		for k, val := range vv {
			out[k] = taggedValue(val)
		}
		return out
	case []interface{}:
		out := make([]interface{}, len(vv))
		for i, val := range vv {
			out[i] = taggedValue(val)
		}
		return out
	case nil:
		return nil
	default:
		return yamlScalar(vv)
	}
}

// yamlScalar renders v through yaml.Marshal then reparses the result
// as a generic value, so json.Marshal prints the same textual form a
// YAML scalar would (numbers and booleans keep their shape; dates and
// times keep the host's default representation). An unparseable
// result is returned as its raw string form, matching the "unparseable
// string returns unchanged" rule.
func yamlScalar(v interface{}) interface{} {
	b, err := yaml.Marshal(v)
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	s := strings.TrimSpace(string(b))

	var scalar interface{}
	if err := yaml.Unmarshal([]byte(s), &scalar); err == nil {
		return scalar
	}
	return s
}

// DecodeRegistryValue parses b and converts any ":name" string (a
// value tagged by EncodeRegistryValue, or a coincidentally
// colon-prefixed one) back into a Symbol.
func DecodeRegistryValue(b []byte) (interface{}, error) {
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.UseNumber()

	var v interface{}
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	return untagValue(v), nil
}

func untagValue(v interface{}) interface{} {
	switch vv := v.(type) {
	case string:
		if isSymbolString(vv) {
			return Symbol(vv[len(symbolPrefix):])
		}
		return vv
	case map[string]interface{}:
		out := make(map[string]interface{}, len(vv))
		for k, val := range vv {
			out[k] = untagValue(val)
		}
		return out
	case []interface{}:
		out := make([]interface{}, len(vv))
		for i, val := range vv {
			out[i] = untagValue(val)
		}
		return out
	default:
		return v
	}
}
