package models

import (
	"encoding/json"
	"fmt"
	"strings"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/bsontype"
)

// StringList holds tags and image URLs. Older documents and admin forms send
// these as a single comma-separated string, so both shapes are accepted.
type StringList []string

// SplitStringList splits a comma-separated value, dropping empty entries.
func SplitStringList(value string) StringList {
	parts := strings.Split(value, ",")
	out := make(StringList, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

// UnmarshalBSONValue accepts both string and array BSON types.
func (s *StringList) UnmarshalBSONValue(t bsontype.Type, data []byte) error {
	switch t {
	case bsontype.Null, bsontype.Undefined:
		*s = nil
		return nil
	case bsontype.Array:
		var values []string
		if err := bson.UnmarshalValue(t, data, &values); err != nil {
			return err
		}
		*s = values
		return nil
	case bsontype.String:
		var value string
		if err := bson.UnmarshalValue(t, data, &value); err != nil {
			return err
		}
		*s = SplitStringList(value)
		return nil
	default:
		return fmt.Errorf("cannot decode %s into StringList", t)
	}
}

// MarshalBSONValue always stores the list as an array.
func (s StringList) MarshalBSONValue() (bsontype.Type, []byte, error) {
	if s == nil {
		return bson.MarshalValue([]string{})
	}
	return bson.MarshalValue([]string(s))
}

// UnmarshalJSON accepts `"a, b"` as well as `["a", "b"]`.
func (s *StringList) UnmarshalJSON(data []byte) error {
	var value string
	if err := json.Unmarshal(data, &value); err == nil {
		*s = SplitStringList(value)
		return nil
	}

	var values []string
	if err := json.Unmarshal(data, &values); err != nil {
		return fmt.Errorf("expected string or array of strings")
	}
	*s = values
	return nil
}
