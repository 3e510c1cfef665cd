package codec

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"
)

var (
	cborEncMode = mustEncMode()
	cborDecMode = mustDecMode()
)

func mustEncMode() cbor.EncMode {
	em, err := cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic(fmt.Errorf("cbor enc mode: %w", err))
	}
	return em
}

func mustDecMode() cbor.DecMode {
	dm, err := cbor.DecOptions{
		DupMapKey:   cbor.DupMapKeyEnforcedAPF,
		IndefLength: cbor.IndefLengthForbidden,
	}.DecMode()
	if err != nil {
		panic(fmt.Errorf("cbor dec mode: %w", err))
	}
	return dm
}

// CBOR encodes values as deterministic (core) CBOR using github.com/fxamacker/cbor/v2.
// Equal values always produce identical bytes.
type CBOR[T any] struct{}

func (CBOR[T]) Encode(v T) ([]byte, error) {
	b, err := cborEncMode.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("cbor encode: %w", err)
	}
	return b, nil
}

func (CBOR[T]) Decode(data []byte) (T, error) {
	var v T
	if err := cborDecMode.Unmarshal(data, &v); err != nil {
		return v, fmt.Errorf("%w: cbor: %w", ErrMalformed, err)
	}
	return v, nil
}

func (CBOR[T]) Name() string { return "cbor" }
