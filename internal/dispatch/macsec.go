package dispatch

import (
	"github.com/seqtrack/seqtrack/internal/flowid"
	"github.com/seqtrack/seqtrack/internal/frame"
)

const (
	etherTypeMACsec = 0x88E5

	macsecHeaderEnd = 28 // Ethernet header (14) + SecTAG (14).
	macsecPNOffset  = 16
	macsecSCIOffset = 20
	macsecICVLen    = 16
)

type macsecDispatcher struct {
	parser Parser
}

// NewMACsecDispatcher returns a Dispatcher that matches IEEE 802.1AE frames
// by EtherType.
func NewMACsecDispatcher() Dispatcher {
	return macsecDispatcher{parser: macsecParser{}}
}

func (d macsecDispatcher) Match(v frame.View) (Parser, bool) {
	if v.Len() < 14 {
		return nil, false
	}
	if v.GetUint16(12) != etherTypeMACsec {
		return nil, false
	}
	return d.parser, true
}

type macsecParser struct{}

func (macsecParser) Name() string { return "macsec" }

// Parse implements spec §4.2's MACsec rule: PN at bytes 16-19 big-endian,
// SCI at bytes 20-27 big-endian, payload length = frame_len - 28 - 16.
func (p macsecParser) Parse(v frame.View) (*flowid.SequenceInfo, error) {
	if v.Len() < macsecSCIOffset+8 {
		return nil, newParseError(p.Name(), PacketTooShort,
			"frame too short for MACsec SecTAG: got %d bytes, need at least %d", v.Len(), macsecSCIOffset+8)
	}

	pn := v.GetUint32(macsecPNOffset)
	sci := v.GetUint64(macsecSCIOffset)

	payloadLength := v.Len() - macsecHeaderEnd - macsecICVLen
	if payloadLength < 0 {
		return nil, newParseError(p.Name(), PacketTooShort,
			"frame too short to hold MACsec ICV trailer: frame_len=%d", v.Len())
	}

	return &flowid.SequenceInfo{
		SequenceNumber: pn,
		FlowID:         flowid.MACsec{SCI: sci},
		PayloadLength:  int(payloadLength),
		TrackGaps:      true,
	}, nil
}
