package dispatch

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/seqtrack/seqtrack/internal/flowid"
	"github.com/seqtrack/seqtrack/internal/frame"
)

func macsecFrame(pn uint32, sci uint64, payloadLen, icvLen int) []byte {
	buf := make([]byte, 28+payloadLen+icvLen)
	binary.BigEndian.PutUint16(buf[12:14], etherTypeMACsec)
	binary.BigEndian.PutUint32(buf[16:20], pn)
	binary.BigEndian.PutUint64(buf[20:28], sci)
	return buf
}

func ipv4Frame(proto byte, srcIP, dstIP [4]byte, l4 []byte) []byte {
	ipHeaderLen := 20
	buf := make([]byte, ethernetHdrLen+ipHeaderLen+len(l4))
	binary.BigEndian.PutUint16(buf[12:14], etherTypeIPv4)
	buf[ethernetHdrLen] = 0x45 // version 4, IHL 5
	buf[ethernetHdrLen+9] = proto
	copy(buf[ethernetHdrLen+12:ethernetHdrLen+16], srcIP[:])
	copy(buf[ethernetHdrLen+16:ethernetHdrLen+20], dstIP[:])
	copy(buf[ethernetHdrLen+ipHeaderLen:], l4)
	return buf
}

func espL4(spi, seq uint32, payload int) []byte {
	b := make([]byte, 8+payload)
	binary.BigEndian.PutUint32(b[0:4], spi)
	binary.BigEndian.PutUint32(b[4:8], seq)
	return b
}

func tcpL4(srcPort, dstPort uint16, seq uint32) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint16(b[0:2], srcPort)
	binary.BigEndian.PutUint16(b[2:4], dstPort)
	binary.BigEndian.PutUint32(b[4:8], seq)
	return b
}

func TestRegistryDispatchesMACsec(t *testing.T) {
	r := NewRegistry()
	frameBytes := macsecFrame(42, 0x0011223344556677, 100, 16)

	parser, ok := r.Dispatch(frame.New(frameBytes))
	require.True(t, ok)
	assert.Equal(t, "macsec", parser.Name())

	info, err := parser.Parse(frame.New(frameBytes))
	require.NoError(t, err)
	assert.Equal(t, uint32(42), info.SequenceNumber)
	assert.Equal(t, flowid.MACsec{SCI: 0x0011223344556677}, info.FlowID)
	assert.Equal(t, 100, info.PayloadLength)
	assert.True(t, info.TrackGaps)
}

func TestRegistryDispatchesIPsecESP(t *testing.T) {
	r := NewRegistry()
	frameBytes := ipv4Frame(50, [4]byte{10, 0, 0, 1}, [4]byte{10, 0, 0, 2}, espL4(7, 99, 50))

	parser, ok := r.Dispatch(frame.New(frameBytes))
	require.True(t, ok)
	assert.Equal(t, "ipsec-esp", parser.Name())

	info, err := parser.Parse(frame.New(frameBytes))
	require.NoError(t, err)
	assert.Equal(t, uint32(99), info.SequenceNumber)
	assert.Equal(t, flowid.IPsecESP{SPI: 7, DstIP: [4]byte{10, 0, 0, 2}}, info.FlowID)
	assert.True(t, info.TrackGaps)
}

func TestRegistryDispatchesGenericL3TCP(t *testing.T) {
	r := NewRegistry()
	frameBytes := ipv4Frame(6, [4]byte{192, 168, 1, 1}, [4]byte{192, 168, 1, 2}, tcpL4(1234, 80, 555))

	parser, ok := r.Dispatch(frame.New(frameBytes))
	require.True(t, ok)
	assert.Equal(t, "generic-l3", parser.Name())

	info, err := parser.Parse(frame.New(frameBytes))
	require.NoError(t, err)
	assert.False(t, info.TrackGaps)
	assert.Equal(t, flowid.GenericL3{
		SrcIP: [4]byte{192, 168, 1, 1}, DstIP: [4]byte{192, 168, 1, 2},
		SrcPort: 1234, DstPort: 80, L4Proto: 6,
	}, info.FlowID)
}

func TestRegistryRejectsUnrecognized(t *testing.T) {
	r := NewRegistry()
	frameBytes := make([]byte, 20)
	binary.BigEndian.PutUint16(frameBytes[12:14], 0x0806) // ARP

	_, ok := r.Dispatch(frame.New(frameBytes))
	assert.False(t, ok)
}

func TestRegistryRejectsShortFrame(t *testing.T) {
	r := NewRegistry()
	_, ok := r.Dispatch(frame.New([]byte{1, 2, 3}))
	assert.False(t, ok)
}

func TestRegistryCacheInvalidatedOnMiss(t *testing.T) {
	r := NewRegistry()

	macsecBytes := macsecFrame(1, 1, 10, 16)
	_, ok := r.Dispatch(frame.New(macsecBytes))
	require.True(t, ok)

	// An ARP frame shares no discriminator with MACsec; dispatch must fail
	// rather than incorrectly reusing the cached MACsec parser.
	arpBytes := make([]byte, 20)
	binary.BigEndian.PutUint16(arpBytes[12:14], 0x0806)
	_, ok = r.Dispatch(frame.New(arpBytes))
	assert.False(t, ok)

	// Cache must not resurrect the MACsec hit for an unrelated IPv4/TCP frame.
	tcpBytes := ipv4Frame(6, [4]byte{1, 1, 1, 1}, [4]byte{2, 2, 2, 2}, tcpL4(1, 2, 3))
	parser, ok := r.Dispatch(frame.New(tcpBytes))
	require.True(t, ok)
	assert.Equal(t, "generic-l3", parser.Name())
}

func TestMACsecParserRejectsTooShort(t *testing.T) {
	p := macsecParser{}
	_, err := p.Parse(frame.New(make([]byte, 20)))
	require.Error(t, err)

	var pe *ParseError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, PacketTooShort, pe.Kind)
}

func TestMACsecParserRejectsNegativePayload(t *testing.T) {
	p := macsecParser{}
	// 28 bytes of header, no room for the 16-byte ICV trailer.
	_, err := p.Parse(frame.New(make([]byte, 28)))
	require.Error(t, err)
}

func TestIPsecESPParserRejectsMalformedIHL(t *testing.T) {
	p := ipsecESPParser{}
	buf := make([]byte, 40)
	binary.BigEndian.PutUint16(buf[12:14], etherTypeIPv4)
	buf[ethernetHdrLen] = 0x40 // IHL = 0, invalid
	_, err := p.Parse(frame.New(buf))
	require.Error(t, err)
}

func TestGenericL3ParserUDPSyntheticCounterAdvances(t *testing.T) {
	parser := NewGenericL3Parser()
	udpL4 := func(sp, dp uint16) []byte {
		b := make([]byte, 8)
		binary.BigEndian.PutUint16(b[0:2], sp)
		binary.BigEndian.PutUint16(b[2:4], dp)
		return b
	}

	frame1 := ipv4Frame(17, [4]byte{1, 1, 1, 1}, [4]byte{2, 2, 2, 2}, udpL4(100, 200))
	frame2 := ipv4Frame(17, [4]byte{1, 1, 1, 1}, [4]byte{2, 2, 2, 2}, udpL4(100, 200))

	info1, err := parser.Parse(frame.New(frame1))
	require.NoError(t, err)
	info2, err := parser.Parse(frame.New(frame2))
	require.NoError(t, err)

	assert.False(t, info1.TrackGaps)
	assert.NotEqual(t, info1.SequenceNumber, info2.SequenceNumber)
}
