package flatskip

import (
	"sync/atomic"
	"time"
)

// fallbackState replaces a zero xorshift state, which would otherwise stay zero.
const fallbackState = uint64(0x9e3779b97f4a7c15)

// shardPicker hands out pseudo-random shard indexes. It is a shared xorshift64*
// state advanced with CAS, so any goroutine may call pick.
type shardPicker struct {
	state atomic.Uint64
}

func newShardPicker(seed uint64) *shardPicker {
	p := &shardPicker{}
	p.state.Store(seed)
	return p
}

func clockSeed() uint64 {
	if s := uint64(time.Now().UnixNano()); s != 0 {
		return s
	}
	return fallbackState
}

func (p *shardPicker) next() uint64 {
	for {
		old := p.state.Load()
		if old == 0 {
			p.state.CompareAndSwap(0, clockSeed())
			continue
		}
		s := old ^ old>>12
		s ^= s << 25
		s ^= s >> 27
		if s == 0 {
			s = fallbackState
		}
		if p.state.CompareAndSwap(old, s) {
			return s * 0x2545f4914f6cdd1d
		}
	}
}

// pick returns a shard index in [0, mask].
func (p *shardPicker) pick(mask uint32) uint32 {
	return uint32(p.next()>>32) & mask
}
