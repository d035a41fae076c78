package types

import (
	"bytes"
	"encoding/json"
)

// Optional distinguishes an absent JSON field from an explicit null, which
// PATCH handlers need to tell "leave alone" from "clear".
type Optional[T any] struct {
	Set   bool
	Value *T
}

// UnmarshalJSON implements json.Unmarshaler. It only runs when the key is
// present, so Set stays false for omitted fields.
func (o *Optional[T]) UnmarshalJSON(data []byte) error {
	o.Set = true
	trimmed := bytes.TrimSpace(data)
	if bytes.Equal(trimmed, []byte("null")) {
		o.Value = nil
		return nil
	}
	var v T
	if err := json.Unmarshal(trimmed, &v); err != nil {
		return err
	}
	o.Value = &v
	return nil
}
