// Package flexjson decodes loosely typed JSON scalars coming from upstream services.
package flexjson

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// String decodes a JSON string, number, or boolean into its string form.
// null decodes to the empty string.
type String string

func (s *String) UnmarshalJSON(data []byte) error {
	v, err := Scalar(data)
	if err != nil {
		return err
	}
	*s = String(v)
	return nil
}

// Int decodes a JSON number or numeric string. null and "" decode to 0.
type Int int

func (n *Int) UnmarshalJSON(data []byte) error {
	v, err := Scalar(data)
	if err != nil {
		return err
	}
	if v == "" {
		*n = 0
		return nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return fmt.Errorf("flexjson: %q is not a number", v)
	}
	*n = Int(f)
	return nil
}

// Scalar returns the string form of a JSON scalar value.
func Scalar(data []byte) (string, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return "", nil
	}
	switch data[0] {
	case '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return "", err
		}
		return s, nil
	case 't', 'f':
		var b bool
		if err := json.Unmarshal(data, &b); err != nil {
			return "", err
		}
		return strconv.FormatBool(b), nil
	case '{', '[':
		return "", fmt.Errorf("flexjson: expected scalar, got %s", string(data[:1]))
	default:
		var num json.Number
		if err := json.Unmarshal(data, &num); err != nil {
			return "", err
		}
		return num.String(), nil
	}
}

// FirstString returns the first non-empty scalar among keys, in order.
func FirstString(fields map[string]json.RawMessage, keys ...string) string {
	for _, k := range keys {
		raw, ok := fields[k]
		if !ok {
			continue
		}
		v, err := Scalar(raw)
		if err != nil || v == "" {
			continue
		}
		return v
	}
	return ""
}
