package codec

import (
	"fmt"

	gojson "github.com/goccy/go-json"
)

// JSON encodes arbitrary values with github.com/goccy/go-json.
//
// Time, complex numbers, funcs and channels may not round-trip. Use CBOR when the
// value needs a deterministic byte form.
type JSON[T any] struct{}

func (JSON[T]) Encode(v T) ([]byte, error) {
	b, err := gojson.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("json encode: %w", err)
	}
	return b, nil
}

func (JSON[T]) Decode(data []byte) (T, error) {
	var v T
	if err := gojson.Unmarshal(data, &v); err != nil {
		return v, fmt.Errorf("%w: json: %w", ErrMalformed, err)
	}
	return v, nil
}

func (JSON[T]) Name() string { return "json" }
