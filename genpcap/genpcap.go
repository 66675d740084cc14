// Package genpcap writes synthetic PCAP files with an injected, seeded
// packet-loss rate, for driving the round-trip gap-detection property
// against internal/replay and internal/tracker without capture hardware.
package genpcap

import (
	"encoding/binary"
	"io"
	"math/rand"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"
)

// Kind selects which flow format Generate emits.
type Kind int

const (
	KindMACsec Kind = iota
	KindIPsecESP
	KindGenericL3
)

const (
	snapLen   = 1600
	macsecICV = 16
)

// Config parameterizes a synthetic capture.
type Config struct {
	Kind Kind
	// Packets is the number of sequence numbers in the stream, 1..Packets.
	// Some are not written to the file, per LossRate, simulating loss.
	Packets int
	// LossRate is the independent per-packet probability of a drop, in [0,1).
	LossRate float64
	// Seed makes the injected loss pattern reproducible.
	Seed int64
	// PayloadLen is the number of filler payload bytes per packet.
	PayloadLen int
}

// Result reports which sequence numbers Generate chose not to write, the
// ground truth a round-trip test checks the tracker's gap reports against.
type Result struct {
	Written          int
	DroppedSequences []uint32
}

// Generate writes a synthetic Ethernet-framed PCAP capture of cfg.Packets
// sequence numbers (starting at 1) to w, dropping each independently with
// probability cfg.LossRate. Every frame uses a fixed flow identity, so the
// whole file is a single flow's in-order-except-for-loss sequence stream.
func Generate(w io.Writer, cfg Config) (Result, error) {
	if cfg.PayloadLen <= 0 {
		cfg.PayloadLen = 32
	}

	writer := pcapgo.NewWriter(w)
	if err := writer.WriteFileHeader(snapLen, layers.LinkTypeEthernet); err != nil {
		return Result{}, err
	}

	rng := rand.New(rand.NewSource(cfg.Seed))
	result := Result{}
	base := time.Unix(1700000000, 0)

	for seq := uint32(1); seq <= uint32(cfg.Packets); seq++ {
		if rng.Float64() < cfg.LossRate {
			result.DroppedSequences = append(result.DroppedSequences, seq)
			continue
		}

		data := buildFrame(cfg.Kind, seq, cfg.PayloadLen)
		ci := gopacket.CaptureInfo{
			Timestamp:     base.Add(time.Duration(seq) * time.Millisecond),
			CaptureLength: len(data),
			Length:        len(data),
		}
		if err := writer.WritePacket(ci, data); err != nil {
			return result, err
		}
		result.Written++
	}

	return result, nil
}

func buildFrame(kind Kind, seq uint32, payloadLen int) []byte {
	switch kind {
	case KindIPsecESP:
		return buildESPFrame(seq, payloadLen)
	case KindGenericL3:
		return buildGenericL3Frame(seq, payloadLen)
	default:
		return buildMACsecFrame(seq, payloadLen)
	}
}

func ethernetHeader(etherType uint16) []byte {
	hdr := make([]byte, 14)
	// Dst/src MAC left zeroed; only EtherType matters to the dispatchers.
	binary.BigEndian.PutUint16(hdr[12:14], etherType)
	return hdr
}

// buildMACsecFrame lays out Ethernet(14) + SecTAG(14, PN@2, SCI@6) +
// payload + ICV(16), matching internal/dispatch's macsecParser layout.
func buildMACsecFrame(seq uint32, payloadLen int) []byte {
	const etherTypeMACsec = 0x88E5
	const fixedSCI = 0xAABBCCDDEEFF0011

	frame := ethernetHeader(etherTypeMACsec)
	secTag := make([]byte, 14)
	secTag[0] = 0x2c // TCI/AN: ES|SC|SCB|E|C bits, arbitrary but stable
	secTag[1] = 0x00 // short length, unused by the parser
	binary.BigEndian.PutUint32(secTag[2:6], seq)
	binary.BigEndian.PutUint64(secTag[6:14], uint64(fixedSCI))
	frame = append(frame, secTag...)
	frame = append(frame, make([]byte, payloadLen)...)
	frame = append(frame, make([]byte, macsecICV)...)
	return frame
}

func ipv4Header(protocol byte, dstIP [4]byte, totalLen int) []byte {
	hdr := make([]byte, 20)
	hdr[0] = 0x45 // version 4, IHL 5 (no options)
	binary.BigEndian.PutUint16(hdr[2:4], uint16(totalLen))
	hdr[8] = 64 // TTL
	hdr[9] = protocol
	copy(hdr[12:16], []byte{10, 0, 0, 1}) // source, arbitrary
	copy(hdr[16:20], dstIP[:])
	return hdr
}

// buildESPFrame lays out Ethernet(14) + IPv4(20) + ESP(8, SPI, seq) +
// payload, matching internal/dispatch's ipsecESPParser layout.
func buildESPFrame(seq uint32, payloadLen int) []byte {
	const etherTypeIPv4 = 0x0800
	const ipProtoESP = 50
	const fixedSPI = 0x1234

	dstIP := [4]byte{10, 0, 0, 2}
	frame := ethernetHeader(etherTypeIPv4)
	frame = append(frame, ipv4Header(ipProtoESP, dstIP, 20+8+payloadLen)...)

	esp := make([]byte, 8)
	binary.BigEndian.PutUint32(esp[0:4], uint32(fixedSPI))
	binary.BigEndian.PutUint32(esp[4:8], seq)
	frame = append(frame, esp...)
	frame = append(frame, make([]byte, payloadLen)...)
	return frame
}

// buildGenericL3Frame lays out Ethernet(14) + IPv4(20) + UDP-shaped L4(4:
// src/dst port) + payload, matching internal/dispatch's genericL3Parser
// layout. UDP is used since it carries no native sequence field, exactly
// the case internal/dispatch's Generic-L3 parser synthesizes a counter for.
func buildGenericL3Frame(seq uint32, payloadLen int) []byte {
	const etherTypeIPv4 = 0x0800
	const ipProtoUDP = 17

	dstIP := [4]byte{10, 0, 0, 3}
	frame := ethernetHeader(etherTypeIPv4)
	frame = append(frame, ipv4Header(ipProtoUDP, dstIP, 20+4+payloadLen)...)

	l4 := make([]byte, 4)
	binary.BigEndian.PutUint16(l4[0:2], 40000)
	binary.BigEndian.PutUint16(l4[2:4], 53)
	frame = append(frame, l4...)
	// seq isn't encoded on the wire for UDP and is unused here: the
	// payload is all zero bytes whatever its value.
	_ = seq
	frame = append(frame, make([]byte, payloadLen)...)
	return frame
}
