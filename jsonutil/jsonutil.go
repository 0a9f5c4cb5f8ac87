// Package jsonutil implements the streaming, single-pass JSON parser family
// from spec §4.D: a one-level object parser producing a key→value string
// mapping, and an array parser driven by per-field and per-record callbacks.
//
// Both ride on fastjson.Parser (grounded on NimbleMarkets-dbn-go's
// json_scanner.go / structs.go usage) for tokenization; fastjson gives a
// *Value tree but no field/record-callback walker, which this package adds
// on top to satisfy spec §4.D's exact contract: nested objects/arrays are
// handed to the caller as their JSON text (including outer brackets), so
// the caller can re-parse them with either parser. That text is fastjson's
// compact re-serialization, so whitespace inside it is not preserved.
package jsonutil

import (
	"fmt"

	"github.com/valyala/fastjson"
)

// ErrMalformedJSON is raised on premature end of input, unclosed quote,
// unmatched bracket, or a key without a value.
var ErrMalformedJSON = fmt.Errorf("malformed json")

// ParseObject parses a single top-level JSON object and returns a mapping
// of field name to its value text (strings are unquoted; numbers keep their
// literal digits; nested objects/arrays are re-serialized compactly with
// their outer brackets).
func ParseObject(body []byte) (map[string]string, error) {
	var p fastjson.Parser
	val, err := p.ParseBytes(body)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedJSON, err)
	}
	obj, err := val.Object()
	if err != nil {
		return nil, fmt.Errorf("%w: top-level value is not an object", ErrMalformedJSON)
	}
	out := make(map[string]string, obj.Len())
	var visitErr error
	obj.Visit(func(key []byte, v *fastjson.Value) {
		if visitErr != nil {
			return
		}
		out[string(key)] = valueLiteral(v)
	})
	if visitErr != nil {
		return nil, visitErr
	}
	return out, nil
}

// valueLiteral renders a fastjson.Value the way spec §4.D's object parser
// contract requires: unquoted strings, literal substrings for everything
// else (numbers, bools, null, objects, arrays).
func valueLiteral(v *fastjson.Value) string {
	switch v.Type() {
	case fastjson.TypeString:
		sb, _ := v.StringBytes()
		return string(sb)
	default:
		return v.String()
	}
}

// FieldFunc is invoked for every (key, value) pair within the current array
// element. value follows the same literal-substring contract as ParseObject.
type FieldFunc[R any] func(record *R, key, value string)

// RecordFunc commits the accumulator to the caller's collector at an
// element boundary.
type RecordFunc[R any, C any] func(record *R, collector *C)

// WalkArray parses a top-level JSON array and invokes onField for every
// key-value pair of each element, then onRecord at each element boundary.
// newRecord must return a fresh zero-value accumulator (the record is not
// reused across elements, avoiding the "caller must reset fields" hazard
// mentioned in spec §4.D).
func WalkArray[R any, C any](body []byte, collector *C, newRecord func() *R, onField FieldFunc[R], onRecord RecordFunc[R, C]) error {
	var p fastjson.Parser
	val, err := p.ParseBytes(body)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedJSON, err)
	}
	arr, err := val.Array()
	if err != nil {
		return fmt.Errorf("%w: top-level value is not an array", ErrMalformedJSON)
	}
	for _, elem := range arr {
		obj, err := elem.Object()
		if err != nil {
			return fmt.Errorf("%w: array element is not an object", ErrMalformedJSON)
		}
		rec := newRecord()
		var visitErr error
		obj.Visit(func(key []byte, v *fastjson.Value) {
			if visitErr != nil {
				return
			}
			onField(rec, string(key), valueLiteral(v))
		})
		if visitErr != nil {
			return visitErr
		}
		onRecord(rec, collector)
	}
	return nil
}
