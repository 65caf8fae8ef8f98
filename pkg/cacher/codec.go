package cacher

import (
	"encoding/json"
	"fmt"
)

// Codec converts cached values to and from the bytes stored in the table.
type Codec[V any] interface {
	Marshal(v V) ([]byte, error)
	Unmarshal(data []byte) (V, error)
}

// JSON encodes values with encoding/json.
type JSON[V any] struct{}

func (JSON[V]) Marshal(v V) ([]byte, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("json marshal: %w", err)
	}

	return data, nil
}

func (JSON[V]) Unmarshal(data []byte) (V, error) {
	var v V

	err := json.Unmarshal(data, &v)
	if err != nil {
		return v, fmt.Errorf("json unmarshal: %w", err)
	}

	return v, nil
}

// Raw stores byte slices as they are.
type Raw struct{}

func (Raw) Marshal(v []byte) ([]byte, error) { return v, nil }

func (Raw) Unmarshal(data []byte) ([]byte, error) { return data, nil }
