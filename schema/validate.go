package schema

import (
	"errors"
	"fmt"
	"strings"
)

// ErrNotObject reports a top-level document that is not a JSON object.
var ErrNotObject = errors.New("Top-level JSON must be an object.")

// A MissingKeyError names a required field absent from the document.
type MissingKeyError struct {
	Path string
}

func (e *MissingKeyError) Error() string {
	return "Missing key: " + e.Path
}

// A TypeError names a field whose kind is outside the allowed set.
type TypeError struct {
	Path string
	Want []Kind
	Got  Kind
}

func (e *TypeError) Error() string {
	if len(e.Want) == 1 {
		return fmt.Sprintf("Wrong type for key '%s' (expected %s, got %s)", e.Path, e.Want[0], e.Got)
	}
	names := make([]string, len(e.Want))
	for i, k := range e.Want {
		names[i] = k.String()
	}
	return fmt.Sprintf("Wrong type for key '%s' (expected one of [%s], got %s)", e.Path, strings.Join(names, ", "), e.Got)
}

// A NotObjectError names a field that must hold a nested object but does not.
type NotObjectError struct {
	Path string
}

func (e *NotObjectError) Error() string {
	return "Expected object at key: " + e.Path
}

// Validate checks doc against s and returns the first violation found, or nil
// when every declared field is present with an allowed kind. The walk is
// fail-fast; sibling order within one object is map order and carries no
// meaning. Fields of doc not named in s pass untouched.
func Validate(doc any, s Map) error {
	obj, ok := asObject(doc)
	if !ok {
		return ErrNotObject
	}
	return validateObject(obj, s, "")
}

func validateObject(obj map[string]any, s Map, path string) error {
	for key, node := range s {
		full := key
		if path != "" {
			full = path + "." + key
		}
		val, present := obj[key]
		if !present {
			return &MissingKeyError{Path: full}
		}
		if node.fields != nil {
			nested, ok := asObject(val)
			if !ok {
				return &NotObjectError{Path: full}
			}
			if err := validateObject(nested, node.fields, full); err != nil {
				return err
			}
			continue
		}
		got := kindOf(val)
		matched := false
		for _, want := range node.kinds {
			if got == want {
				matched = true
				break
			}
		}
		if !matched {
			return &TypeError{Path: full, Want: append([]Kind(nil), node.kinds...), Got: got}
		}
	}
	return nil
}
