package flatskip

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"hash/crc32"
	"io"
	"math"

	"github.com/metailurini/flatskip/codec"
	"github.com/metailurini/flatskip/store"
)

// Snapshot layout, little-endian:
//
//	magic "FSKP" | version u16 | compression u8 | reserved u8
//	key codec name (u8 len + bytes) | value codec name (u8 len + bytes)
//	raw body len u32 | stored body len u32 | stored body | crc32 (IEEE) of all preceding bytes
//
// The raw body is the record count u32, the entry count u32, the entry positions
// as u32 and then every record as uvarint length + bytes, in position order.
const (
	snapshotMagic   = "FSKP"
	snapshotVersion = uint16(1)
)

var errNoCodecs = errors.New("flatskip: map has no codecs, build or load it first")

// MarshalBinary returns the snapshot form of the map.
func (m *SkipMap[K, V]) MarshalBinary() ([]byte, error) {
	var buf bytes.Buffer
	if _, err := m.WriteTo(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// WriteTo writes the map as a snapshot. The compression is the one given to
// Build or Load with WithCompression.
func (m *SkipMap[K, V]) WriteTo(w io.Writer) (int64, error) {
	if m.keys == nil || m.values == nil {
		return 0, errNoCodecs
	}
	body := acquireBuffer()
	defer releaseBuffer(body)

	b := binary.LittleEndian.AppendUint32((*body)[:0], uint32(m.Len()))
	b = binary.LittleEndian.AppendUint32(b, uint32(len(m.entries)))
	for _, ep := range m.entries {
		b = binary.LittleEndian.AppendUint32(b, ep)
	}
	b = store.AppendRecords(b, m.records)
	*body = b
	if uint64(len(b)) > math.MaxUint32 {
		return 0, fmt.Errorf("%w: snapshot body of %d bytes", ErrTooLarge, len(b))
	}

	stored, applied, err := compressBody(m.opts.compression, b)
	if err != nil {
		return 0, err
	}

	keyName, valueName := m.keys.Name(), m.values.Name()
	if len(keyName) > math.MaxUint8 || len(valueName) > math.MaxUint8 {
		return 0, fmt.Errorf("codec name too long: %q, %q", keyName, valueName)
	}
	out := make([]byte, 0, 16+len(keyName)+len(valueName)+len(stored)+4)
	out = append(out, snapshotMagic...)
	out = binary.LittleEndian.AppendUint16(out, snapshotVersion)
	out = append(out, byte(applied), 0)
	out = append(out, byte(len(keyName)))
	out = append(out, keyName...)
	out = append(out, byte(len(valueName)))
	out = append(out, valueName...)
	out = binary.LittleEndian.AppendUint32(out, uint32(len(b)))
	out = binary.LittleEndian.AppendUint32(out, uint32(len(stored)))
	out = append(out, stored...)
	out = binary.LittleEndian.AppendUint32(out, crc32.ChecksumIEEE(out))

	n, err := w.Write(out)
	return int64(n), err
}

// Load reads a snapshot written by WriteTo. The codecs must carry the names the
// snapshot was written with. The records and entry table are restored verbatim.
func Load[K, V any](r io.Reader, keys codec.Codec[K], values codec.Codec[V], compare func(a, b K) int, opts ...Option) (*SkipMap[K, V], error) {
	b, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read snapshot: %w", err)
	}
	return Unmarshal(b, keys, values, compare, opts...)
}

// Unmarshal is Load over an in-memory snapshot. The returned map does not
// retain b.
func Unmarshal[K, V any](b []byte, keys codec.Codec[K], values codec.Codec[V], compare func(a, b K) int, opts ...Option) (*SkipMap[K, V], error) {
	o := applyOptions(opts)
	m, applied, err := unmarshalSnapshot(b, keys, values, compare, o)
	o.logger.logLoad(lenOrZero(m), applied, err)
	if err != nil {
		return nil, err
	}
	return m, nil
}

func lenOrZero[K, V any](m *SkipMap[K, V]) int {
	if m == nil {
		return 0
	}
	return m.Len()
}

func corrupt(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrCorruptSnapshot, fmt.Sprintf(format, args...))
}

// snapshotReader consumes a snapshot header field by field.
type snapshotReader struct {
	b   []byte
	off int
	err error
}

func (r *snapshotReader) take(n int, what string) []byte {
	if r.err != nil {
		return nil
	}
	if n < 0 || n > len(r.b)-r.off {
		r.err = corrupt("truncated %s", what)
		return nil
	}
	out := r.b[r.off : r.off+n]
	r.off += n
	return out
}

func (r *snapshotReader) u8(what string) uint8 {
	if b := r.take(1, what); b != nil {
		return b[0]
	}
	return 0
}

func (r *snapshotReader) u16(what string) uint16 {
	if b := r.take(2, what); b != nil {
		return binary.LittleEndian.Uint16(b)
	}
	return 0
}

func (r *snapshotReader) u32(what string) uint32 {
	if b := r.take(4, what); b != nil {
		return binary.LittleEndian.Uint32(b)
	}
	return 0
}

func (r *snapshotReader) name(what string) string {
	return string(r.take(int(r.u8(what)), what))
}

func unmarshalSnapshot[K, V any](b []byte, keys codec.Codec[K], values codec.Codec[V], compare func(a, b K) int, o options) (*SkipMap[K, V], Compression, error) {
	if len(b) < len(snapshotMagic)+4 {
		return nil, CompressionNone, corrupt("%d bytes", len(b))
	}
	payload, sum := b[:len(b)-4], binary.LittleEndian.Uint32(b[len(b)-4:])
	if got := crc32.ChecksumIEEE(payload); got != sum {
		return nil, CompressionNone, corrupt("checksum 0x%08x, want 0x%08x", got, sum)
	}

	r := &snapshotReader{b: payload}
	if magic := r.take(len(snapshotMagic), "magic"); r.err == nil && string(magic) != snapshotMagic {
		return nil, CompressionNone, corrupt("bad magic %q", magic)
	}
	if v := r.u16("version"); r.err == nil && v != snapshotVersion {
		return nil, CompressionNone, corrupt("unsupported version %d", v)
	}
	compression := Compression(r.u8("compression"))
	r.u8("reserved")
	keyName, valueName := r.name("key codec"), r.name("value codec")
	rawLen, storedLen := r.u32("body length"), r.u32("stored length")
	stored := r.take(int(storedLen), "body")
	if r.err != nil {
		return nil, compression, r.err
	}
	if r.off != len(payload) {
		return nil, compression, corrupt("%d trailing bytes", len(payload)-r.off)
	}
	if keyName != keys.Name() || valueName != values.Name() {
		return nil, compression, fmt.Errorf("%w: snapshot has %s/%s, got %s/%s",
			ErrCodecMismatch, keyName, valueName, keys.Name(), values.Name())
	}

	body, err := decompressBody(compression, stored, int(rawLen))
	if err != nil {
		return nil, compression, corrupt("body: %v", err)
	}

	br := &snapshotReader{b: body}
	count := int(br.u32("record count"))
	entryCount := br.u32("entry count")
	if br.err == nil && entryCount > 32 {
		return nil, compression, corrupt("%d entry points", entryCount)
	}
	entries := make([]uint32, entryCount)
	for i := range entries {
		entries[i] = br.u32("entry point")
	}
	if br.err != nil {
		return nil, compression, br.err
	}
	records, used, err := store.ReadRecords(body[br.off:], count)
	if err != nil {
		return nil, compression, corrupt("records: %v", err)
	}
	if br.off+used != len(body) {
		return nil, compression, corrupt("%d bytes after records", len(body)-br.off-used)
	}
	if err := verifyLayout(records, entries); err != nil {
		return nil, compression, err
	}

	m := newSkipMap(keys, values, compare, o)
	m.records = records
	m.entries = entries
	if len(entries) == 0 {
		m.entries = nil
	}
	return m, compression, nil
}

// verifyLayout checks the entry table and every successor pointer against the
// shape construction produces, without running the codecs. A snapshot that
// passes cannot make a search loop or read outside the store.
func verifyLayout(records store.Store, entries []uint32) error {
	n := records.Len()
	want := entryPointsFor(n)
	if len(want) != len(entries) {
		return corrupt("%d entry points for %d records, want %d", len(entries), n, len(want))
	}
	for i := range want {
		if entries[i] != want[i] {
			return corrupt("entry point %d is %d, want %d", i, entries[i], want[i])
		}
	}
	for p := range n {
		rec, _ := records.Get(p)
		next, ok := linkNext(rec)
		if !ok {
			return corrupt("record %d is %d bytes", p, len(rec))
		}
		if want := expectedNext(uint32(p), n); next != want {
			return corrupt("record %d links to %d, want %d", p, next, want)
		}
	}
	return nil
}
