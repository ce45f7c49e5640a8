package store

import (
	"encoding/json"

	"github.com/jward/reflectdb/internal/codec"
)

// marshalParams converts template parameters to JSON text for storage.
func marshalParams(params []codec.Param) string {
	if len(params) == 0 {
		return "[]"
	}
	b, _ := json.Marshal(params)
	return string(b)
}

// unmarshalParams converts JSON text back to template parameters.
func unmarshalParams(s string) []codec.Param {
	if s == "" || s == "null" || s == "[]" {
		return nil
	}
	var params []codec.Param
	_ = json.Unmarshal([]byte(s), &params)
	return params
}
