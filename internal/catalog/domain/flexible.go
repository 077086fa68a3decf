package domain

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
)

// FlexibleFloat accepts a JSON number or numeric string. Anything else,
// including malformed input, leaves it unset rather than failing the request.
type FlexibleFloat struct {
	value float64
	set   bool
}

func (f *FlexibleFloat) UnmarshalJSON(data []byte) error {
	*f = FlexibleFloat{}
	raw := strings.TrimSpace(string(bytes.Trim(data, `"`)))
	if raw == "" || raw == "null" {
		return nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return nil
	}
	f.value, f.set = v, true
	return nil
}

func (f FlexibleFloat) MarshalJSON() ([]byte, error) {
	if !f.set {
		return []byte("null"), nil
	}
	return json.Marshal(f.value)
}

// Ptr returns nil when unset.
func (f FlexibleFloat) Ptr() *float64 {
	if !f.set {
		return nil
	}
	v := f.value
	return &v
}

func NewFlexibleFloat(v float64) FlexibleFloat { return FlexibleFloat{value: v, set: true} }

// FlexibleInt is the integer counterpart of FlexibleFloat.
type FlexibleInt struct {
	value int64
	set   bool
}

func (i *FlexibleInt) UnmarshalJSON(data []byte) error {
	var f FlexibleFloat
	_ = f.UnmarshalJSON(data)
	*i = FlexibleInt{}
	if f.set {
		i.value, i.set = int64(f.value), true
	}
	return nil
}

func (i FlexibleInt) Int64() int64 { return i.value }

func (i FlexibleInt) IsSet() bool { return i.set }

func NewFlexibleInt(v int64) FlexibleInt { return FlexibleInt{value: v, set: true} }

// FlexibleBool accepts true/false, "true"/"1"/"yes" and 0/1.
type FlexibleBool bool

func (b *FlexibleBool) UnmarshalJSON(data []byte) error {
	raw := strings.ToLower(strings.TrimSpace(string(bytes.Trim(data, `"`))))
	switch raw {
	case "true", "1", "yes", "on":
		*b = true
	default:
		*b = false
	}
	return nil
}

// StringList accepts a JSON array of strings or numbers, or one
// comma-separated string.
type StringList []string

func (l *StringList) UnmarshalJSON(data []byte) error {
	*l = nil
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil
	}

	if trimmed[0] == '[' {
		var items []json.RawMessage
		if err := json.Unmarshal(trimmed, &items); err != nil {
			return nil
		}
		for _, item := range items {
			if v := strings.TrimSpace(string(bytes.Trim(item, `"`))); v != "" {
				*l = append(*l, v)
			}
		}
		return nil
	}

	var s string
	if err := json.Unmarshal(trimmed, &s); err != nil {
		s = string(trimmed)
	}
	for _, part := range strings.Split(s, ",") {
		if v := strings.TrimSpace(part); v != "" {
			*l = append(*l, v)
		}
	}
	return nil
}
