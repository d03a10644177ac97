package mpegts

import (
	"bytes"
	"errors"
	"testing"

	"github.com/framelens/framelens/internal/bitio"
	"github.com/framelens/framelens/internal/limits"
	"github.com/framelens/framelens/internal/units"
)

var (
	testPMTPID   uint16 = 0x0100
	testVideoPID uint16 = 0x0101
)

// tsPacket builds one 188-byte packet. Payloads shorter than 184 bytes
// are pushed to the packet tail behind adaptation-field stuffing, so the
// payload bytes stay contiguous in the output stream.
func tsPacket(t *testing.T, pid uint16, cc byte, pusi bool, payload []byte) []byte {
	t.Helper()
	if len(payload) > 184 {
		t.Fatalf("payload %d bytes does not fit one packet", len(payload))
	}

	pkt := make([]byte, PacketSize)
	pkt[0] = syncByte
	pkt[1] = byte(pid >> 8)
	if pusi {
		pkt[1] |= 0x40
	}
	pkt[2] = byte(pid)

	stuff := 184 - len(payload)
	if stuff == 0 {
		pkt[3] = 0x10 | cc
		copy(pkt[4:], payload)
		return pkt
	}
	pkt[3] = 0x30 | cc
	pkt[4] = byte(stuff - 1)
	if stuff > 1 {
		pkt[5] = 0x00
		for i := 6; i < 4+stuff; i++ {
			pkt[i] = 0xFF
		}
	}
	copy(pkt[4+stuff:], payload)
	return pkt
}

func psiPayload(section []byte) []byte {
	payload := make([]byte, 184)
	for i := range payload {
		payload[i] = 0xFF
	}
	payload[0] = 0x00 // pointer_field
	copy(payload[1:], section)
	return payload
}

func testPATSection() []byte {
	section := []byte{
		tableIDPAT, 0xB0, 0x0D,
		0x00, 0x01, // transport_stream_id
		0xC1, 0x00, 0x00,
		0x00, 0x01, // program_number 1
		0xE0 | byte(testPMTPID>>8), byte(testPMTPID),
	}
	return AppendCRC32(section)
}

func testPMTSection(streamType uint8) []byte {
	section := []byte{
		tableIDPMT, 0xB0, 0x12,
		0x00, 0x01, // program_number 1
		0xC1, 0x00, 0x00,
		0xE0 | byte(testVideoPID>>8), byte(testVideoPID), // PCR PID
		0xF0, 0x00, // program_info_length 0
		streamType,
		0xE0 | byte(testVideoPID>>8), byte(testVideoPID),
		0xF0, 0x00, // ES_info_length 0
	}
	return AppendCRC32(section)
}

func encodePTS(prefix byte, v int64) []byte {
	return []byte{
		prefix | byte(v>>30&0x07)<<1 | 1,
		byte(v >> 22),
		byte(v>>15&0x7F)<<1 | 1,
		byte(v >> 7),
		byte(v&0x7F)<<1 | 1,
	}
}

// pesBytes builds a video PES packet with a PTS and unbounded length.
func pesBytes(pts int64, es []byte) []byte {
	pes := []byte{0x00, 0x00, 0x01, 0xE0, 0x00, 0x00, 0x80, 0x80, 0x05}
	pes = append(pes, encodePTS(0x20, pts)...)
	return append(pes, es...)
}

func TestExtractSingleProgram(t *testing.T) {
	t.Parallel()

	es1 := []byte{0x00, 0x00, 0x00, 0x01, 0x67, 0x42, 0x00, 0x1E, 0xDA, 0x10, 0x99}
	es2 := []byte{0x00, 0x00, 0x00, 0x01, 0x41, 0xE2, 0x09}

	var ts []byte
	ts = append(ts, tsPacket(t, pidPAT, 0, true, psiPayload(testPATSection()))...)
	ts = append(ts, tsPacket(t, testPMTPID, 0, true, psiPayload(testPMTSection(StreamTypeH264)))...)
	ts = append(ts, tsPacket(t, testVideoPID, 0, true, pesBytes(90000, es1))...)
	ts = append(ts, tsPacket(t, testVideoPID, 1, true, pesBytes(93600, es2))...)

	prog, aus, err := Extract(ts, limits.Default())
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if prog.VideoPID != testVideoPID || prog.Codec != units.CodecAVC {
		t.Fatalf("program = %+v", prog)
	}
	if len(aus) != 2 {
		t.Fatalf("got %d access units, want 2", len(aus))
	}

	if !bytes.Equal(aus[0].Data, es1) || aus[0].PTS != 90000 || aus[0].DTS != -1 {
		t.Errorf("au[0] = offset %d pts %d dts %d data %x", aus[0].Offset, aus[0].PTS, aus[0].DTS, aus[0].Data)
	}
	if !bytes.Equal(aus[1].Data, es2) || aus[1].PTS != 93600 {
		t.Errorf("au[1] = offset %d pts %d data %x", aus[1].Offset, aus[1].PTS, aus[1].Data)
	}

	// Offsets point back into the transport stream.
	for i, au := range aus {
		got := ts[au.Offset : au.Offset+int64(len(au.Data))]
		if !bytes.Equal(got, au.Data) {
			t.Errorf("au[%d] offset %d does not point at its payload", i, au.Offset)
		}
	}
}

func TestExtractorChunkedFeed(t *testing.T) {
	t.Parallel()

	es1 := []byte{0x00, 0x00, 0x00, 0x01, 0x67, 0x42, 0x00, 0x1E, 0xDA, 0x10, 0x99}
	es2 := []byte{0x00, 0x00, 0x00, 0x01, 0x41, 0xE2, 0x09}

	var ts []byte
	ts = append(ts, tsPacket(t, pidPAT, 0, true, psiPayload(testPATSection()))...)
	ts = append(ts, tsPacket(t, testPMTPID, 0, true, psiPayload(testPMTSection(StreamTypeH264)))...)
	ts = append(ts, tsPacket(t, testVideoPID, 0, true, pesBytes(90000, es1))...)
	ts = append(ts, tsPacket(t, testVideoPID, 1, true, pesBytes(93600, es2))...)

	// Feeding packet-aligned chunks must yield the same access units as
	// a single-shot extract, with offsets in whole-stream coordinates.
	var aus []AccessUnit
	e := NewExtractor(limits.Default(), func(au AccessUnit) error {
		aus = append(aus, au)
		return nil
	})
	for base := 0; base < len(ts); base += PacketSize {
		if err := e.Feed(ts[base:base+PacketSize], int64(base)); err != nil {
			t.Fatalf("Feed at %d: %v", base, err)
		}
	}
	if err := e.Flush(); err != nil {
		t.Fatalf("Flush: %v", err)
	}

	prog, ok := e.Program()
	if !ok || prog.VideoPID != testVideoPID {
		t.Fatalf("program = %+v, found %v", prog, ok)
	}
	if len(aus) != 2 {
		t.Fatalf("got %d access units, want 2", len(aus))
	}
	if !bytes.Equal(aus[0].Data, es1) || !bytes.Equal(aus[1].Data, es2) {
		t.Error("chunked feed reassembled different payloads")
	}
	for i, au := range aus {
		got := ts[au.Offset : au.Offset+int64(len(au.Data))]
		if !bytes.Equal(got, au.Data) {
			t.Errorf("au[%d] offset %d does not point at its payload", i, au.Offset)
		}
	}
}

func TestExtractPESSpanningPackets(t *testing.T) {
	t.Parallel()

	es := make([]byte, 300)
	for i := range es {
		es[i] = byte(i)
	}
	pes := pesBytes(180000, es)

	var ts []byte
	ts = append(ts, tsPacket(t, pidPAT, 0, true, psiPayload(testPATSection()))...)
	ts = append(ts, tsPacket(t, testPMTPID, 0, true, psiPayload(testPMTSection(StreamTypeH265)))...)
	ts = append(ts, tsPacket(t, testVideoPID, 0, true, pes[:184])...)
	ts = append(ts, tsPacket(t, testVideoPID, 1, false, pes[184:])...)
	// Follow-up PES so the first one flushes on PUSI rather than at EOF.
	ts = append(ts, tsPacket(t, testVideoPID, 2, true, pesBytes(183600, []byte{0x00, 0x00, 0x00, 0x01, 0x02, 0x01, 0xD4}))...)

	prog, aus, err := Extract(ts, limits.Default())
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if prog.Codec != units.CodecHEVC {
		t.Errorf("codec = %s, want h265", prog.Codec)
	}
	if len(aus) != 2 {
		t.Fatalf("got %d access units, want 2", len(aus))
	}
	if !bytes.Equal(aus[0].Data, es) {
		t.Errorf("spanning PES reassembled %d bytes, want %d", len(aus[0].Data), len(es))
	}
	if aus[0].PTS != 180000 {
		t.Errorf("au[0].PTS = %d, want 180000", aus[0].PTS)
	}
}

func TestExtractDuplicatePacketDropped(t *testing.T) {
	t.Parallel()

	es := []byte{0x00, 0x00, 0x00, 0x01, 0x65, 0x88, 0x84, 0x2C}

	var ts []byte
	ts = append(ts, tsPacket(t, pidPAT, 0, true, psiPayload(testPATSection()))...)
	ts = append(ts, tsPacket(t, testPMTPID, 0, true, psiPayload(testPMTSection(StreamTypeH264)))...)
	first := tsPacket(t, testVideoPID, 0, true, pesBytes(0, es[:4]))
	ts = append(ts, first...)
	cont := tsPacket(t, testVideoPID, 1, false, es[4:])
	ts = append(ts, cont...)
	ts = append(ts, cont...) // retransmitted duplicate, same CC

	_, aus, err := Extract(ts, limits.Default())
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if len(aus) != 1 {
		t.Fatalf("got %d access units, want 1", len(aus))
	}
	if !bytes.Equal(aus[0].Data, es) {
		t.Errorf("duplicate packet corrupted reassembly: %x", aus[0].Data)
	}
}

func TestExtractNoVideoStream(t *testing.T) {
	t.Parallel()

	var ts []byte
	ts = append(ts, tsPacket(t, pidPAT, 0, true, psiPayload(testPATSection()))...)
	ts = append(ts, tsPacket(t, testPMTPID, 0, true, psiPayload(testPMTSection(0x0F)))...) // AAC only

	_, _, err := Extract(ts, limits.Default())
	if !errors.Is(err, bitio.ErrInvalidData) {
		t.Errorf("err = %v, want ErrInvalidData", err)
	}
}

func TestExtractBadSyncByte(t *testing.T) {
	t.Parallel()

	ts := tsPacket(t, pidPAT, 0, true, psiPayload(testPATSection()))
	ts = append(ts, make([]byte, PacketSize)...) // zeroed packet, bad sync

	_, _, err := Extract(ts, limits.Default())
	var perr *bitio.ParseError
	if !errors.As(err, &perr) || perr.Offset != PacketSize {
		t.Errorf("err = %v, want ParseError at offset %d", err, PacketSize)
	}
}

func TestExtractCorruptPMTIgnored(t *testing.T) {
	t.Parallel()

	pmt := testPMTSection(StreamTypeH264)
	pmt[len(pmt)-1] ^= 0xFF // break the CRC

	var ts []byte
	ts = append(ts, tsPacket(t, pidPAT, 0, true, psiPayload(testPATSection()))...)
	ts = append(ts, tsPacket(t, testPMTPID, 0, true, psiPayload(pmt))...)

	_, _, err := Extract(ts, limits.Default())
	if !errors.Is(err, bitio.ErrInvalidData) {
		t.Errorf("err = %v, want ErrInvalidData after CRC-failed PMT", err)
	}
}
