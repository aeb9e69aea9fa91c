package parse

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

var null = []byte("null")

// Float is a JSON number that also accepts numeric strings ("12.5").
// Set is false when the field was absent or null.
type Float struct {
	Value float64
	Set   bool
}

// UnmarshalJSON implements json.Unmarshaler.
func (f *Float) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, null) {
		*f = Float{}
		return nil
	}
	raw, err := numericText(b)
	if err != nil {
		return err
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return fmt.Errorf("%s is not a finite number", b)
	}
	*f = Float{Value: v, Set: true}
	return nil
}

// Ptr returns nil when the value was not provided.
func (f Float) Ptr() *float64 {
	if !f.Set {
		return nil
	}
	v := f.Value
	return &v
}

// Int is a JSON integer that also accepts numeric strings and integral floats ("7", 7.0).
type Int struct {
	Value int64
	Set   bool
}

// UnmarshalJSON implements json.Unmarshaler.
func (i *Int) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, null) {
		*i = Int{}
		return nil
	}
	raw, err := numericText(b)
	if err != nil {
		return err
	}
	if v, err := strconv.ParseInt(raw, 10, 64); err == nil {
		*i = Int{Value: v, Set: true}
		return nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil || v != math.Trunc(v) || math.Abs(v) > 1<<53 {
		return fmt.Errorf("%s is not an integer", b)
	}
	*i = Int{Value: int64(v), Set: true}
	return nil
}

// Ptr returns nil when the value was not provided.
func (i Int) Ptr() *int64 {
	if !i.Set {
		return nil
	}
	v := i.Value
	return &v
}

// NullableInt distinguishes an absent field from an explicit null.
// Present is true for both a number and null; Int.Set is true only for a number.
type NullableInt struct {
	Int
	Present bool
}

// UnmarshalJSON implements json.Unmarshaler.
func (n *NullableInt) UnmarshalJSON(b []byte) error {
	n.Present = true
	return n.Int.UnmarshalJSON(b)
}

// numericText extracts the literal of a JSON number or numeric string.
func numericText(b []byte) (string, error) {
	if len(b) == 0 {
		return "", fmt.Errorf("empty value")
	}
	switch b[0] {
	case '"':
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return "", err
		}
		s = strings.TrimSpace(s)
		if s == "" {
			return "", fmt.Errorf("empty string is not a number")
		}
		return s, nil
	case '-', '0', '1', '2', '3', '4', '5', '6', '7', '8', '9':
		return string(b), nil
	default:
		return "", fmt.Errorf("%s is not a number", b)
	}
}
