// Package flowid defines the flow identifier sum type the tracker keys its
// per-flow state on. A FlowId is one of MACsec, IPsec-ESP, or Generic-L3;
// each variant carries exactly the fields needed to disambiguate concurrent
// flows of its own kind (see spec §3). Every variant reduces to a fixed-size,
// comparable FlowKey so it can be used directly as a map key without a
// separate hashing step.
package flowid

import (
	"encoding/binary"
	"fmt"
	"net"
)

// Tag discriminates which protocol family a FlowKey was derived from.
type Tag uint8

const (
	TagMACsec Tag = iota + 1
	TagIPsecESP
	TagGenericL3
)

func (t Tag) String() string {
	switch t {
	case TagMACsec:
		return "macsec"
	case TagIPsecESP:
		return "ipsec-esp"
	case TagGenericL3:
		return "generic-l3"
	default:
		return "unknown"
	}
}

// FlowKey is the concrete, comparable representation of a FlowId. Equality
// and hashing (via Go's built-in map/array comparison) are exact on the tag
// and payload bytes, matching spec §3's equality rule. Unused payload bytes
// are always zeroed so two keys built for the same logical flow compare
// equal regardless of which variant constructor produced them.
type FlowKey struct {
	Tag     Tag
	Payload [16]byte
}

func (k FlowKey) String() string {
	return fmt.Sprintf("%s:%x", k.Tag, k.Payload[:flowKeyLen(k.Tag)])
}

func flowKeyLen(t Tag) int {
	switch t {
	case TagMACsec:
		return 8
	case TagIPsecESP:
		return 8
	case TagGenericL3:
		return 13
	default:
		return 16
	}
}

// FlowId is implemented by every flow-identifier variant. Key returns the
// comparable form used for map lookups and equality.
type FlowId interface {
	Key() FlowKey
	Tag() Tag
	fmt.Stringer
}

// MACsec identifies a flow by its Secure Channel Identifier, taken from the
// SecTAG of an IEEE 802.1AE frame.
type MACsec struct {
	SCI uint64
}

func (m MACsec) Tag() Tag { return TagMACsec }

func (m MACsec) Key() FlowKey {
	var k FlowKey
	k.Tag = TagMACsec
	binary.BigEndian.PutUint64(k.Payload[0:8], m.SCI)
	return k
}

func (m MACsec) String() string {
	return fmt.Sprintf("macsec{sci=%016x}", m.SCI)
}

// IPsecESP identifies a flow by its Security Parameter Index, scoped by
// destination IP since an SPI alone is ambiguous across co-resident SAs.
type IPsecESP struct {
	SPI   uint32
	DstIP [4]byte
}

func (e IPsecESP) Tag() Tag { return TagIPsecESP }

func (e IPsecESP) Key() FlowKey {
	var k FlowKey
	k.Tag = TagIPsecESP
	binary.BigEndian.PutUint32(k.Payload[0:4], e.SPI)
	copy(k.Payload[4:8], e.DstIP[:])
	return k
}

func (e IPsecESP) String() string {
	return fmt.Sprintf("ipsec-esp{spi=%08x, dst=%s}", e.SPI, net.IP(e.DstIP[:]))
}

// GenericL3 identifies a flow by its canonical 5-tuple. Direction is
// preserved: A->B and B->A are distinct flows.
type GenericL3 struct {
	SrcIP   [4]byte
	DstIP   [4]byte
	SrcPort uint16
	DstPort uint16
	L4Proto uint8
}

func (g GenericL3) Tag() Tag { return TagGenericL3 }

func (g GenericL3) Key() FlowKey {
	var k FlowKey
	k.Tag = TagGenericL3
	copy(k.Payload[0:4], g.SrcIP[:])
	copy(k.Payload[4:8], g.DstIP[:])
	binary.BigEndian.PutUint16(k.Payload[8:10], g.SrcPort)
	binary.BigEndian.PutUint16(k.Payload[10:12], g.DstPort)
	k.Payload[12] = g.L4Proto
	return k
}

func (g GenericL3) String() string {
	return fmt.Sprintf("generic-l3{%s:%d -> %s:%d proto=%d}",
		net.IP(g.SrcIP[:]), g.SrcPort, net.IP(g.DstIP[:]), g.DstPort, g.L4Proto)
}

var (
	_ FlowId = MACsec{}
	_ FlowId = IPsecESP{}
	_ FlowId = GenericL3{}
)

// SequenceInfo is the per-packet parse result handed from a Parser to the
// tracker.
type SequenceInfo struct {
	SequenceNumber uint32
	FlowID         FlowId
	PayloadLength  int
	// TrackGaps is false for flows where gap semantics are not meaningful
	// (Generic-L3): TCP sequence numbers are byte-cumulative and legitimately
	// retransmit, so only packet/byte counts are tracked there.
	TrackGaps bool
}
