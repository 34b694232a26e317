package schema

import (
	"encoding/json"
	"reflect"
	"strings"
)

// Kind identifies the JSON shape of a decoded value. Integers and floats are
// distinct kinds: documents decoded with json.Decoder.UseNumber preserve the
// literal form, so "5" and "5.0" classify differently.
type Kind int

const (
	Invalid Kind = iota
	Null
	Bool
	Int
	Float
	String
	Array
	Object
)

var kindNames = [...]string{
	Invalid: "unknown",
	Null:    "null",
	Bool:    "boolean",
	Int:     "integer",
	Float:   "float",
	String:  "string",
	Array:   "array",
	Object:  "object",
}

// String returns the kind name used in validation error messages.
func (k Kind) String() string {
	if k < 0 || int(k) >= len(kindNames) {
		return "unknown"
	}
	return kindNames[k]
}

// Node is one field's constraint: a set of acceptable kinds or a nested
// object schema. Nodes are values; build them with Type, OneOf, or Object
// and treat them as immutable afterwards. The zero Node matches nothing.
type Node struct {
	kinds  []Kind
	fields Map
}

// Map describes an object's expected fields. Keys not named in the map are
// ignored by validation.
type Map map[string]Node

// Type constrains a field to exactly one kind.
func Type(k Kind) Node {
	return Node{kinds: []Kind{k}}
}

// OneOf constrains a field to any of the given kinds.
func OneOf(kinds ...Kind) Node {
	return Node{kinds: append([]Kind(nil), kinds...)}
}

// Object constrains a field to a nested object validated against fields.
func Object(fields Map) Node {
	return Node{fields: fields}
}

// kindOf classifies a decoded JSON value. Values produced by encoding/json
// with UseNumber, values produced without it, and hand-built Go values all
// classify to the same kinds.
func kindOf(v any) Kind {
	switch t := v.(type) {
	case nil:
		return Null
	case bool:
		return Bool
	case json.Number:
		if strings.ContainsAny(string(t), ".eE") {
			return Float
		}
		return Int
	case string:
		return String
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return Int
	case float32, float64:
		return Float
	case []any:
		return Array
	case map[string]any:
		return Object
	}
	switch rv := reflect.ValueOf(v); rv.Kind() {
	case reflect.Map:
		if rv.Type().Key().Kind() == reflect.String {
			return Object
		}
	case reflect.Slice, reflect.Array:
		return Array
	}
	return Invalid
}

// asObject unwraps a value into a plain field map. Defined map types with
// string keys (envelope types and the like) qualify as objects.
func asObject(v any) (map[string]any, bool) {
	if m, ok := v.(map[string]any); ok {
		return m, true
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Map || rv.Type().Key().Kind() != reflect.String {
		return nil, false
	}
	out := make(map[string]any, rv.Len())
	iter := rv.MapRange()
	for iter.Next() {
		out[iter.Key().String()] = iter.Value().Interface()
	}
	return out, true
}
