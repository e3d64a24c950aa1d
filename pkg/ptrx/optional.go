package ptrx

import (
	"bytes"
	"encoding/json"
)

// Optional is a tri-state value for patch fields: absent (not sent),
// explicit null (sent as null, meaning clear) or a value.
//
// The zero value is absent. Decoding JSON never produces absent for a key
// that was present in the document, so struct fields of this type must not
// use omitempty semantics on the way in.
type Optional[T any] struct {
	set   bool
	null  bool
	value T
}

// Some returns an Optional holding v.
func Some[T any](v T) Optional[T] {
	return Optional[T]{set: true, value: v}
}

// Null returns an Optional that is explicitly null.
func Null[T any]() Optional[T] {
	return Optional[T]{set: true, null: true}
}

// Absent returns an Optional that was not provided.
func Absent[T any]() Optional[T] {
	return Optional[T]{}
}

// IsSet reports whether the field was provided at all (null or value).
func (o Optional[T]) IsSet() bool { return o.set }

// IsNull reports whether the field was provided as an explicit null.
func (o Optional[T]) IsNull() bool { return o.set && o.null }

// HasValue reports whether the field carries a concrete value.
func (o Optional[T]) HasValue() bool { return o.set && !o.null }

// Get returns the value and whether one is present.
func (o Optional[T]) Get() (T, bool) {
	return o.value, o.HasValue()
}

// OrElse returns the value or fallback.
func (o Optional[T]) OrElse(fallback T) T {
	if o.HasValue() {
		return o.value
	}
	return fallback
}

// Ptr returns a pointer to the value, or nil when absent or null.
func (o Optional[T]) Ptr() *T {
	if !o.HasValue() {
		return nil
	}
	v := o.value
	return &v
}

// MarshalJSON encodes absent and null both as JSON null. Use IsZero with
// the omitzero tag option to drop absent fields entirely.
func (o Optional[T]) MarshalJSON() ([]byte, error) {
	if !o.HasValue() {
		return []byte("null"), nil
	}
	return json.Marshal(o.value)
}

// UnmarshalJSON records that the key was present.
func (o *Optional[T]) UnmarshalJSON(data []byte) error {
	o.set = true
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		o.null = true
		var zero T
		o.value = zero
		return nil
	}
	o.null = false
	return json.Unmarshal(data, &o.value)
}

// IsZero lets encoding/json's omitzero option skip absent fields.
func (o Optional[T]) IsZero() bool { return !o.set }
