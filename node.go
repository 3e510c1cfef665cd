package flatskip

import (
	"encoding/binary"
	"fmt"
	"math/bits"

	"github.com/metailurini/flatskip/codec"
)

// link is one record of the index.
//
// next is the position of the following record in the same segment, or 0 when the
// record closes its segment. Construction only ever links p to p+1, so no record
// points back at position 0 and 0 is free to act as the terminator.
type link[K, V any] struct {
	key   K
	value V
	next  uint32
}

const linkNextSize = 4

// Wire form: uvarint(len(key)) key uvarint(len(value)) value next(uint32 LE).
func encodeLink[K, V any](dst []byte, keys codec.Codec[K], values codec.Codec[V], l *link[K, V]) ([]byte, error) {
	kb, err := keys.Encode(l.key)
	if err != nil {
		return dst, fmt.Errorf("encode key: %w", err)
	}
	vb, err := values.Encode(l.value)
	if err != nil {
		return dst, fmt.Errorf("encode value: %w", err)
	}
	dst = binary.AppendUvarint(dst, uint64(len(kb)))
	dst = append(dst, kb...)
	dst = binary.AppendUvarint(dst, uint64(len(vb)))
	dst = append(dst, vb...)
	return binary.LittleEndian.AppendUint32(dst, l.next), nil
}

// rawLink is a record split into its fields without running the codecs.
type rawLink struct {
	key   []byte
	value []byte
	next  uint32
}

func splitLink(b []byte) (rawLink, error) {
	var r rawLink
	kl, n := binary.Uvarint(b)
	if n <= 0 || kl > uint64(len(b)-n) {
		return r, fmt.Errorf("%w: key length", ErrCorruptRecord)
	}
	r.key = b[n : n+int(kl)]
	b = b[n+int(kl):]

	vl, n := binary.Uvarint(b)
	if n <= 0 || vl > uint64(len(b)-n) {
		return r, fmt.Errorf("%w: value length", ErrCorruptRecord)
	}
	r.value = b[n : n+int(vl)]
	b = b[n+int(vl):]

	if len(b) != linkNextSize {
		return r, fmt.Errorf("%w: %d trailing bytes, want %d", ErrCorruptRecord, len(b), linkNextSize)
	}
	r.next = binary.LittleEndian.Uint32(b)
	return r, nil
}

// linkNext reads only the successor pointer of an encoded record.
func linkNext(b []byte) (uint32, bool) {
	if len(b) < 2+linkNextSize {
		return 0, false
	}
	return binary.LittleEndian.Uint32(b[len(b)-linkNextSize:]), true
}

func decodeLink[K, V any](b []byte, keys codec.Codec[K], values codec.Codec[V]) (link[K, V], error) {
	var l link[K, V]
	r, err := splitLink(b)
	if err != nil {
		return l, err
	}
	if l.key, err = keys.Decode(r.key); err != nil {
		return l, fmt.Errorf("decode key: %w", err)
	}
	if l.value, err = values.Decode(r.value); err != nil {
		return l, fmt.Errorf("decode value: %w", err)
	}
	l.next = r.next
	return l, nil
}

// isEntryPoint reports whether position p starts a segment, that is whether p+1
// is a power of two.
func isEntryPoint(p uint32) bool {
	return bits.OnesCount64(uint64(p)+1) == 1
}

// entryPointsFor returns the entry table of an index holding n records.
func entryPointsFor(n int) []uint32 {
	if n <= 0 {
		return nil
	}
	entries := make([]uint32, 0, bits.Len64(uint64(n)))
	for p := uint64(1); p <= uint64(n); p <<= 1 {
		entries = append(entries, uint32(p-1))
	}
	return entries
}

// expectedNext is the successor construction assigns to position p of n.
func expectedNext(p uint32, n int) uint32 {
	if uint64(p)+1 >= uint64(n) || isEntryPoint(p+1) {
		return 0
	}
	return p + 1
}
