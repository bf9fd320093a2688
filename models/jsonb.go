package models

import (
	"bytes"
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// JSONB holds an opaque JSON value exactly as the client sent it.
// A nil or empty JSONB is stored as SQL NULL and serialized as JSON null.
type JSONB []byte

var jsonNull = []byte("null")

// IsNull reports whether the value is absent or JSON null
func (j JSONB) IsNull() bool {
	return len(j) == 0 || bytes.Equal(bytes.TrimSpace(j), jsonNull)
}

// MarshalJSON implements json.Marshaler
func (j JSONB) MarshalJSON() ([]byte, error) {
	if j.IsNull() {
		return jsonNull, nil
	}
	return j, nil
}

// UnmarshalJSON implements json.Unmarshaler
func (j *JSONB) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), jsonNull) {
		*j = nil
		return nil
	}
	*j = append((*j)[:0], data...)
	return nil
}

// Value implements driver.Valuer for JSONB
func (j JSONB) Value() (driver.Value, error) {
	if j.IsNull() {
		return nil, nil
	}
	return string(j), nil
}

// Scan implements sql.Scanner for JSONB
func (j *JSONB) Scan(value interface{}) error {
	switch v := value.(type) {
	case nil:
		*j = nil
	case []byte:
		*j = append(JSONB(nil), v...)
	case string:
		*j = JSONB(v)
	default:
		return fmt.Errorf("cannot scan %T into JSONB", value)
	}
	if j.IsNull() {
		*j = nil
	}
	return nil
}

// Clone returns an independent copy
func (j JSONB) Clone() JSONB {
	if j == nil {
		return nil
	}
	return append(JSONB(nil), j...)
}

// StringList is a JSON array of strings stored in a JSONB/TEXT column
type StringList []string

// Value implements driver.Valuer for JSONB
func (s StringList) Value() (driver.Value, error) {
	if s == nil {
		return "[]", nil
	}
	b, err := json.Marshal(s)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan implements sql.Scanner for JSONB
func (s *StringList) Scan(value interface{}) error {
	var raw []byte
	switch v := value.(type) {
	case nil:
		*s = StringList{}
		return nil
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return fmt.Errorf("cannot scan %T into StringList", value)
	}
	if len(raw) == 0 {
		*s = StringList{}
		return nil
	}
	return json.Unmarshal(raw, s)
}
