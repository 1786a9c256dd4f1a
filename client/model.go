package client

import (
	"bytes"
	"encoding/json"
	"errors"
	"reflect"
	"time"

	"github.com/cespare/xxhash/v2"

	"github.com/broady/bridge/wire"
)

// NoReturnValue is the result of a void method.
type NoReturnValue = wire.NoReturnValue

// Model is embedded in client structs whose server type embeds gorm.Model.
type Model struct {
	ID        uint       `json:"ID"`
	CreatedAt time.Time  `json:"CreatedAt"`
	UpdatedAt time.Time  `json:"UpdatedAt"`
	DeletedAt *time.Time `json:"DeletedAt,omitempty"`
}

// ParentReference refers to the parent of an entity. The server may send
// the whole parent or only its identifier; ID is set in both cases and
// Value only in the first.
type ParentReference[T any] struct {
	ID    json.RawMessage
	Value *T
}

// NewParentReference returns a reference to the entity with the given ID.
func NewParentReference[T any](id any) (ParentReference[T], error) {
	raw, err := json.Marshal(id)
	if err != nil {
		return ParentReference[T]{}, err
	}
	return ParentReference[T]{ID: raw}, nil
}

// DecodeID decodes the identifier into v.
func (p ParentReference[T]) DecodeID(v any) error {
	if len(p.ID) == 0 {
		return errors.New("parent reference has no ID")
	}
	return json.Unmarshal(p.ID, v)
}

// MarshalJSON encodes the reference as {"id": ID}.
func (p ParentReference[T]) MarshalJSON() ([]byte, error) {
	id := p.ID
	if len(id) == 0 {
		id = json.RawMessage("null")
	}
	return json.Marshal(struct {
		ID json.RawMessage `json:"id"`
	}{id})
}

// UnmarshalJSON accepts either {"id": ...} or the encoded parent. Keys are
// matched case-insensitively, so a parent embedding Model is recognized.
func (p *ParentReference[T]) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		*p = ParentReference[T]{}
		return nil
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return err
	}
	var id json.RawMessage
	for k, v := range fields {
		if len(k) == 2 && (k[0] == 'i' || k[0] == 'I') && (k[1] == 'd' || k[1] == 'D') {
			id = v
			break
		}
	}
	if id == nil {
		return errors.New("parent reference without an id")
	}
	ref := ParentReference[T]{ID: id}
	if len(fields) > 1 {
		ref.Value = new(T)
		if err := json.Unmarshal(data, ref.Value); err != nil {
			return err
		}
	}
	*p = ref
	return nil
}

// Equal reports whether a and b are deeply equal. Generated Equal methods
// call it.
func Equal[T any](a, b T) bool {
	return reflect.DeepEqual(a, b)
}

// Hash returns a hash of the JSON encoding of v. Generated Hash methods call
// it; values that encode alike hash alike.
func Hash[T any](v T) uint64 {
	data, err := json.Marshal(v)
	if err != nil {
		return 0
	}
	return xxhash.Sum64(data)
}
