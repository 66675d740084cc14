package dispatch

import (
	"sync/atomic"

	"github.com/seqtrack/seqtrack/internal/frame"
)

// dispatchCacheEntry is the registry's single last-hit memo. It is replaced
// wholesale on a cache miss, never mutated in place, so a reader never
// observes a torn update.
type dispatchCacheEntry struct {
	etherType uint16
	ipProto   uint8
	parser    Parser
}

// Registry selects a Parser for a frame by walking an ordered cascade of
// Dispatchers, then memoizing the winning (etherType, ipProto) pair so a run
// of same-kind traffic skips the cascade entirely. The registry is built
// once and is read-only thereafter; it is safe for concurrent use by
// multiple producer goroutines.
type Registry struct {
	dispatchers []Dispatcher
	cache       atomic.Pointer[dispatchCacheEntry]
}

// NewRegistry builds a registry holding the three closed parser variants in
// specificity order: MACsec, then IPsec-ESP, then Generic-L3.
func NewRegistry() *Registry {
	return &Registry{
		dispatchers: []Dispatcher{
			NewMACsecDispatcher(),
			NewIPsecESPDispatcher(),
			NewGenericL3Dispatcher(),
		},
	}
}

// Dispatch returns the parser matching v, or false if no dispatcher
// recognizes the frame. Short frames, malformed IPv4 (IHL < 5), and
// unrecognized discriminators all return (nil, false); callers count these
// as unknown-protocol without treating them as an error.
func (r *Registry) Dispatch(v frame.View) (Parser, bool) {
	etherType, ipProto, discriminable := discriminators(v)

	if discriminable {
		if cached := r.cache.Load(); cached != nil &&
			cached.etherType == etherType && cached.ipProto == ipProto {
			return cached.parser, true
		}
	}

	for _, d := range r.dispatchers {
		if parser, ok := d.Match(v); ok {
			if discriminable {
				r.cache.Store(&dispatchCacheEntry{
					etherType: etherType,
					ipProto:   ipProto,
					parser:    parser,
				})
			}
			return parser, true
		}
	}

	// Invalidate: a miss never leaves a stale hit in place to be matched
	// against a different discriminator pair later.
	if discriminable {
		r.cache.Store(nil)
	}
	return nil, false
}

// discriminators extracts the (EtherType, IP protocol) pair the cache keys
// on. The IP protocol byte is only meaningful (and only read) for IPv4
// frames; ipProto is 0 and discriminable reflects only EtherType readability
// otherwise. An IPv4 frame with IHL < 5 is not discriminable, so it never
// hits the cache and falls through to the cascade, which rejects it.
func discriminators(v frame.View) (etherType uint16, ipProto uint8, discriminable bool) {
	if v.Len() < 14 {
		return 0, 0, false
	}
	etherType = v.GetUint16(12)
	if etherType == etherTypeIPv4 {
		if _, ok := ipv4HeaderLen(v); !ok {
			return etherType, 0, false
		}
		if v.Len() >= ethernetHdrLen+10 {
			ipProto = v.GetByte(ethernetHdrLen + 9)
		}
	}
	return etherType, ipProto, true
}
