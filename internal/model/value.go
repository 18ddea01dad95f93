package model

import (
	"bytes"
	"encoding/json"
	"strconv"
)

// Value is a raw metric scalar: either a number or a pre-formatted string.
// A nil *Value means the metric was not extracted.
type Value struct {
	num   float64
	str   string
	isNum bool
}

// Number returns a numeric Value.
func Number(f float64) *Value {
	return &Value{num: f, isNum: true}
}

// Text returns a string Value.
func Text(s string) *Value {
	return &Value{str: s}
}

// IsNumber reports whether v holds a number. Nil values are not numbers.
func (v *Value) IsNumber() bool {
	return v != nil && v.isNum
}

// Float returns the numeric payload and whether v holds a number.
func (v *Value) Float() (float64, bool) {
	if v == nil || !v.isNum {
		return 0, false
	}
	return v.num, true
}

// Str returns the string payload and whether v holds a string.
func (v *Value) Str() (string, bool) {
	if v == nil || v.isNum {
		return "", false
	}
	return v.str, true
}

// String renders the raw value without unit formatting. Nil renders empty.
func (v *Value) String() string {
	switch {
	case v == nil:
		return ""
	case v.isNum:
		return strconv.FormatFloat(v.num, 'f', -1, 64)
	default:
		return v.str
	}
}

// Equal reports whether two values hold the same payload.
func (v *Value) Equal(o *Value) bool {
	if v == nil || o == nil {
		return v == nil && o == nil
	}
	return v.isNum == o.isNum && v.num == o.num && v.str == o.str
}

// MarshalJSON encodes numbers as JSON numbers and everything else as strings.
func (v Value) MarshalJSON() ([]byte, error) {
	if v.isNum {
		return json.Marshal(v.num)
	}
	return json.Marshal(v.str)
}

// UnmarshalJSON accepts numbers, strings and booleans. Other shapes are kept
// as their raw JSON text so that a malformed cell never fails a whole result.
func (v *Value) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	*v = Value{}
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil
	}
	switch data[0] {
	case '"':
		return json.Unmarshal(data, &v.str)
	case 't', 'f':
		var b bool
		if err := json.Unmarshal(data, &b); err != nil {
			return err
		}
		v.str = strconv.FormatBool(b)
		return nil
	case '{', '[':
		v.str = string(data)
		return nil
	}
	var f float64
	if err := json.Unmarshal(data, &f); err != nil {
		return err
	}
	v.num, v.isNum = f, true
	return nil
}
