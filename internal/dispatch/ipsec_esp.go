package dispatch

import (
	"github.com/seqtrack/seqtrack/internal/flowid"
	"github.com/seqtrack/seqtrack/internal/frame"
)

const (
	etherTypeIPv4  = 0x0800
	ipProtoESP     = 50
	ethernetHdrLen = 14
)

type ipsecESPDispatcher struct {
	parser Parser
}

// NewIPsecESPDispatcher returns a Dispatcher that matches IPv4 frames whose
// protocol byte is 50 (ESP).
func NewIPsecESPDispatcher() Dispatcher {
	return ipsecESPDispatcher{parser: ipsecESPParser{}}
}

func (d ipsecESPDispatcher) Match(v frame.View) (Parser, bool) {
	ihl, ok := ipv4HeaderLen(v)
	if !ok {
		return nil, false
	}
	if v.Len() < ethernetHdrLen+20 {
		return nil, false
	}
	if v.GetByte(ethernetHdrLen+9) != ipProtoESP {
		return nil, false
	}
	_ = ihl
	return d.parser, true
}

// ipv4HeaderLen reports the Ethernet-frame's EtherType-0x0800 IPv4 header
// length in bytes, and whether the frame is long enough and well-formed
// enough (IHL >= 5) to trust that length.
func ipv4HeaderLen(v frame.View) (int64, bool) {
	if v.Len() < ethernetHdrLen+1 {
		return 0, false
	}
	if v.GetUint16(12) != etherTypeIPv4 {
		return 0, false
	}
	versionIHL := v.GetByte(ethernetHdrLen)
	ihl := int64(versionIHL & 0x0F)
	if ihl < 5 {
		return 0, false
	}
	return ihl * 4, true
}

type ipsecESPParser struct{}

func (ipsecESPParser) Name() string { return "ipsec-esp" }

// Parse implements spec §4.2's IPsec-ESP rule: IPv4 header end computed
// from IHL, then 32-bit SPI, 32-bit sequence, both big-endian; destination
// IP taken from IPv4 header bytes 16-19.
func (p ipsecESPParser) Parse(v frame.View) (*flowid.SequenceInfo, error) {
	headerLen, ok := ipv4HeaderLen(v)
	if !ok {
		return nil, newParseError(p.Name(), FieldOutOfRange, "invalid or unreadable IPv4 header")
	}

	espOffset := int64(ethernetHdrLen) + headerLen
	if v.Len() < espOffset+8 {
		return nil, newParseError(p.Name(), PacketTooShort,
			"frame too short for ESP header: got %d bytes, need at least %d", v.Len(), espOffset+8)
	}

	spi := v.GetUint32(espOffset)
	seq := v.GetUint32(espOffset + 4)

	var dstIP [4]byte
	copy(dstIP[:], v.SubView(int64(ethernetHdrLen)+16, int64(ethernetHdrLen)+20).Bytes())

	payloadLength := v.Len() - (espOffset + 8)
	if payloadLength < 0 {
		payloadLength = 0
	}

	return &flowid.SequenceInfo{
		SequenceNumber: seq,
		FlowID:         flowid.IPsecESP{SPI: spi, DstIP: dstIP},
		PayloadLength:  int(payloadLength),
		TrackGaps:      true,
	}, nil
}
