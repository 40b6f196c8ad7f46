package types

import (
	"bytes"
	"encoding/json"
)

// Optional tracks whether a JSON field was present, and if so whether it was
// null. Set=false means absent; Set=true with Value=nil means explicit null.
type Optional[T any] struct {
	Set   bool
	Value *T
}

// Some returns a present, non-null Optional.
func Some[T any](v T) Optional[T] {
	return Optional[T]{Set: true, Value: &v}
}

// Null returns a present Optional that clears the target.
func Null[T any]() Optional[T] {
	return Optional[T]{Set: true}
}

// IsNull reports an explicit null.
func (o Optional[T]) IsNull() bool {
	return o.Set && o.Value == nil
}

// Get returns the value and whether one is present.
func (o Optional[T]) Get() (T, bool) {
	if !o.Set || o.Value == nil {
		var zero T
		return zero, false
	}
	return *o.Value, true
}

// UnmarshalJSON implements json.Unmarshaler.
func (o *Optional[T]) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil
	}

	o.Set = true
	if bytes.Equal(trimmed, []byte("null")) {
		o.Value = nil
		return nil
	}

	var parsed T
	if err := json.Unmarshal(trimmed, &parsed); err != nil {
		return err
	}
	o.Value = &parsed
	return nil
}

// MarshalJSON implements json.Marshaler. Absent values encode as null; use
// omitempty-aware DTOs when absence must be preserved on the wire.
func (o Optional[T]) MarshalJSON() ([]byte, error) {
	if o.Value == nil {
		return []byte("null"), nil
	}
	return json.Marshal(*o.Value)
}
