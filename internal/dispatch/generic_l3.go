package dispatch

import (
	"sync/atomic"

	"github.com/seqtrack/seqtrack/internal/flowid"
	"github.com/seqtrack/seqtrack/internal/frame"
	"github.com/seqtrack/seqtrack/internal/sets"
)

const (
	ipProtoTCP = 6
	ipProtoUDP = 17
)

// recognizedL4Protocols holds the fixed, small collection of IP protocol
// numbers the Generic-L3 dispatcher claims; any other protocol falls
// through as unrecognized.
var recognizedL4Protocols = sets.NewSet[uint8](ipProtoTCP, ipProtoUDP)

type genericL3Dispatcher struct {
	parser Parser
}

// NewGenericL3Dispatcher returns a Dispatcher that matches IPv4/TCP and
// IPv4/UDP frames not already claimed by a more specific dispatcher.
func NewGenericL3Dispatcher() Dispatcher {
	return genericL3Dispatcher{parser: NewGenericL3Parser()}
}

func (d genericL3Dispatcher) Match(v frame.View) (Parser, bool) {
	if _, ok := ipv4HeaderLen(v); !ok {
		return nil, false
	}
	proto := v.GetByte(ethernetHdrLen + 9)
	if !recognizedL4Protocols.Contains(proto) {
		return nil, false
	}
	return d.parser, true
}

// genericL3Parser extracts the 5-tuple for TCP/UDP flows. Per spec §4.2,
// §1 Non-goals, gap detection never applies here: TCP sequence numbers are
// byte-cumulative and legitimately retransmit, so TrackGaps is always false.
type genericL3Parser struct {
	// udpCounter feeds a synthetic per-packet SequenceNumber for UDP frames,
	// which carry no sequence field of their own. It exists only so
	// packet/byte accounting has a monotonically increasing value to log
	// alongside; since TrackGaps is false for this flow type, the tracker
	// never interprets it as ordering information.
	udpCounter atomic.Uint32
}

// NewGenericL3Parser constructs a fresh Generic-L3 parser.
func NewGenericL3Parser() Parser {
	return &genericL3Parser{}
}

func (*genericL3Parser) Name() string { return "generic-l3" }

func (p *genericL3Parser) Parse(v frame.View) (*flowid.SequenceInfo, error) {
	headerLen, ok := ipv4HeaderLen(v)
	if !ok {
		return nil, newParseError(p.Name(), FieldOutOfRange, "invalid or unreadable IPv4 header")
	}

	l4Offset := int64(ethernetHdrLen) + headerLen
	if v.Len() < l4Offset+4 {
		return nil, newParseError(p.Name(), PacketTooShort,
			"frame too short for L4 ports: got %d bytes, need at least %d", v.Len(), l4Offset+4)
	}

	proto := v.GetByte(ethernetHdrLen + 9)

	var srcIP, dstIP [4]byte
	copy(srcIP[:], v.SubView(int64(ethernetHdrLen)+12, int64(ethernetHdrLen)+16).Bytes())
	copy(dstIP[:], v.SubView(int64(ethernetHdrLen)+16, int64(ethernetHdrLen)+20).Bytes())

	srcPort := v.GetUint16(l4Offset)
	dstPort := v.GetUint16(l4Offset + 2)

	var seq uint32
	switch proto {
	case ipProtoTCP:
		if v.Len() >= l4Offset+8 {
			// Diagnostic only; never used for gap detection.
			seq = v.GetUint32(l4Offset + 4)
		}
	case ipProtoUDP:
		seq = p.udpCounter.Add(1)
	default:
		return nil, newParseError(p.Name(), UnknownFormat, "unsupported L4 protocol %d", proto)
	}

	payloadLength := v.Len() - l4Offset
	if payloadLength < 0 {
		payloadLength = 0
	}

	return &flowid.SequenceInfo{
		SequenceNumber: seq,
		FlowID: flowid.GenericL3{
			SrcIP: srcIP, DstIP: dstIP,
			SrcPort: srcPort, DstPort: dstPort,
			L4Proto: proto,
		},
		PayloadLength: int(payloadLength),
		TrackGaps:     false,
	}, nil
}
