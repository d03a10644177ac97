// Package mpegts extracts the video elementary stream from an MPEG
// transport stream so .ts files index like raw bitstreams. It walks the
// 188-byte packet grid, discovers the video PID via PAT/PMT, reassembles
// PES packets per continuity rules, and emits access units with their
// stream byte provenance and PTS/DTS.
package mpegts

import (
	"fmt"

	"github.com/framelens/framelens/internal/bitio"
	"github.com/framelens/framelens/internal/limits"
	"github.com/framelens/framelens/internal/units"
)

const (
	// PacketSize is the fixed transport packet size.
	PacketSize = 188
	syncByte   = 0x47

	pidPAT     = 0x0000
	tableIDPAT = 0x00
	tableIDPMT = 0x02
)

// Video stream types from ISO/IEC 13818-1 and its amendments.
const (
	StreamTypeMPEG1Video = 0x01
	StreamTypeMPEG2Video = 0x02
	StreamTypeH264       = 0x1B
	StreamTypeH265       = 0x24
	StreamTypeH266       = 0x33
)

// CodecForStreamType maps a PMT stream type to a codec, or CodecUnknown
// for non-video and unsupported types.
func CodecForStreamType(st uint8) units.Codec {
	switch st {
	case StreamTypeMPEG1Video, StreamTypeMPEG2Video:
		return units.CodecMPEG2
	case StreamTypeH264:
		return units.CodecAVC
	case StreamTypeH265:
		return units.CodecHEVC
	case StreamTypeH266:
		return units.CodecVVC
	default:
		return units.CodecUnknown
	}
}

// AccessUnit is one reassembled video PES payload. Offset is the stream
// byte offset of the payload's first byte, so unit diagnostics can point
// back into the original file. PTS and DTS are 90 kHz clock values, -1
// when the PES header carried none.
type AccessUnit struct {
	Offset int64
	Data   []byte
	PTS    int64
	DTS    int64
}

// Program describes the selected video elementary stream.
type Program struct {
	VideoPID   uint16
	StreamType uint8
	Codec      units.Codec
}

// packetHeader is the parsed 4-byte transport packet header plus the
// derived payload bounds within the packet.
type packetHeader struct {
	pid           uint16
	cc            uint8
	pusi          bool
	transportErr  bool
	hasPayload    bool
	discontinuity bool
	payloadStart  int
}

func parsePacketHeader(pkt []byte, off int64) (packetHeader, error) {
	if pkt[0] != syncByte {
		return packetHeader{}, &bitio.ParseError{Offset: off, Msg: fmt.Sprintf("bad sync byte 0x%02X", pkt[0])}
	}

	var h packetHeader
	h.transportErr = pkt[1]&0x80 != 0
	h.pusi = pkt[1]&0x40 != 0
	h.pid = uint16(pkt[1]&0x1F)<<8 | uint16(pkt[2])
	hasAF := pkt[3]&0x20 != 0
	h.hasPayload = pkt[3]&0x10 != 0
	h.cc = pkt[3] & 0x0F

	h.payloadStart = 4
	if hasAF {
		afLen := int(pkt[4])
		if afLen > 0 {
			h.discontinuity = pkt[5]&0x80 != 0
		}
		h.payloadStart += 1 + afLen
		if h.payloadStart > PacketSize {
			return packetHeader{}, &bitio.ParseError{Offset: off, Msg: "adaptation field overruns packet"}
		}
	}
	return h, nil
}

// pesAssembly buffers the video PID's in-flight PES packet.
type pesAssembly struct {
	active bool
	offset int64 // stream offset of the first payload byte
	data   []byte
	pts    int64
	dts    int64
	lastCC uint8
	hasCC  bool
}

func (a *pesAssembly) reset() {
	a.active = false
	a.data = nil
	a.hasCC = false
}

// finish strips the PES header from the assembled bytes and returns the
// access unit. A malformed header discards the assembly.
func (a *pesAssembly) finish() (AccessUnit, bool) {
	if !a.active || len(a.data) == 0 {
		return AccessUnit{}, false
	}
	payload, pts, dts, hdrLen, err := parsePESHeader(a.data)
	if err != nil {
		return AccessUnit{}, false
	}
	return AccessUnit{
		Offset: a.offset + int64(hdrLen),
		Data:   payload,
		PTS:    pts,
		DTS:    dts,
	}, true
}

// parsePESHeader validates the 00 00 01 prefix and extracts timestamps.
// It returns the elementary payload, PTS/DTS (-1 when absent), and the
// header length consumed before the payload.
func parsePESHeader(data []byte) (payload []byte, pts, dts int64, hdrLen int, err error) {
	pts, dts = -1, -1
	if len(data) < 9 || data[0] != 0 || data[1] != 0 || data[2] != 1 {
		return nil, 0, 0, 0, &bitio.ParseError{Msg: "bad PES start code"}
	}
	streamID := data[3]
	if streamID < 0xE0 || streamID > 0xEF {
		return nil, 0, 0, 0, &bitio.ParseError{Msg: fmt.Sprintf("stream id 0x%02X is not a video stream", streamID)}
	}

	ptsDTSFlags := (data[7] >> 6) & 3
	headerDataLen := int(data[8])
	hdrLen = 9 + headerDataLen
	if hdrLen > len(data) {
		return nil, 0, 0, 0, &bitio.ParseError{Msg: "PES header overruns packet"}
	}

	switch ptsDTSFlags {
	case 2:
		if headerDataLen >= 5 {
			pts = parseTimestamp(data[9:14])
		}
	case 3:
		if headerDataLen >= 10 {
			pts = parseTimestamp(data[9:14])
			dts = parseTimestamp(data[14:19])
		}
	}

	// PES_packet_length is unbounded (zero) for video in practice; the
	// assembly boundary comes from PUSI, so the declared length is ignored.
	return data[hdrLen:], pts, dts, hdrLen, nil
}

// parseTimestamp extracts the 33-bit 90 kHz timestamp from 5 PES bytes.
func parseTimestamp(b []byte) int64 {
	return int64(b[0]>>1&0x07)<<30 |
		int64(b[1])<<22 |
		int64(b[2]>>1&0x7F)<<15 |
		int64(b[3])<<7 |
		int64(b[4]>>1&0x7F)
}

// Extractor demuxes a transport stream fed to it in packet-aligned
// chunks, emitting access units through a callback as they complete. It
// holds at most one in-flight PES assembly, so arbitrarily large streams
// never accumulate in memory.
type Extractor struct {
	lim     limits.Limits
	fn      func(AccessUnit) error
	prog    Program
	found   bool
	pmtPIDs map[uint16]bool
	asm     pesAssembly
	emitted int
}

// NewExtractor creates a streaming demuxer. fn receives each completed
// access unit in stream order; a non-nil return stops the feed.
func NewExtractor(lim limits.Limits, fn func(AccessUnit) error) *Extractor {
	return &Extractor{lim: lim, fn: fn, pmtPIDs: make(map[uint16]bool)}
}

// Program returns the selected video program once the PMT has been seen.
func (e *Extractor) Program() (Program, bool) {
	return e.prog, e.found
}

func (e *Extractor) flush() error {
	au, ok := e.asm.finish()
	e.asm.reset()
	if !ok {
		return nil
	}
	if int64(len(au.Data)) > e.lim.MaxFrameSize || e.emitted >= e.lim.MaxFrames {
		return nil
	}
	e.emitted++
	return e.fn(au)
}

// Feed consumes the whole transport packets in data, whose first byte
// sits at stream offset base. A trailing partial packet is ignored;
// callers feeding a stream in chunks must keep them packet-aligned.
func (e *Extractor) Feed(data []byte, base int64) error {
	for off := int64(0); off+PacketSize <= int64(len(data)); off += PacketSize {
		pkt := data[off : off+PacketSize]
		h, err := parsePacketHeader(pkt, base+off)
		if err != nil {
			return err
		}
		if h.transportErr || !h.hasPayload || h.payloadStart >= PacketSize {
			continue
		}
		payload := pkt[h.payloadStart:]

		switch {
		case h.pid == pidPAT:
			for _, pid := range parsePAT(payload, h.pusi) {
				e.pmtPIDs[pid] = true
			}

		case e.pmtPIDs[h.pid]:
			if vpid, st, ok := parsePMT(payload, h.pusi); ok && !e.found {
				e.prog = Program{VideoPID: vpid, StreamType: st, Codec: CodecForStreamType(st)}
				e.found = true
			}

		case e.found && h.pid == e.prog.VideoPID:
			if e.asm.active && e.asm.hasCC && !h.discontinuity {
				expected := (e.asm.lastCC + 1) & 0x0F
				if h.cc == e.asm.lastCC {
					continue // duplicate packet
				}
				if h.cc != expected {
					e.asm.reset() // unsignaled discontinuity, drop the partial PES
				}
			}
			if h.pusi {
				if err := e.flush(); err != nil {
					return err
				}
				e.asm.active = true
				e.asm.offset = base + off + int64(h.payloadStart)
			}
			if !e.asm.active {
				continue // payload before the first PUSI
			}
			e.asm.data = append(e.asm.data, payload...)
			e.asm.lastCC = h.cc
			e.asm.hasCC = true
			if int64(len(e.asm.data)) > e.lim.MaxFrameSize {
				e.asm.reset()
			}
		}
	}
	return nil
}

// Flush completes the trailing access unit at end of stream. A stream
// whose PAT/PMT never declared a supported video codec is InvalidData.
func (e *Extractor) Flush() error {
	if err := e.flush(); err != nil {
		return err
	}
	if !e.found {
		return &bitio.InvalidDataError{Msg: "no video elementary stream in PAT/PMT"}
	}
	return nil
}

// Extract demuxes data in one call and returns the video program plus its
// access units in stream order.
func Extract(data []byte, lim limits.Limits) (Program, []AccessUnit, error) {
	var out []AccessUnit
	e := NewExtractor(lim, func(au AccessUnit) error {
		out = append(out, au)
		return nil
	})
	if err := e.Feed(data, 0); err != nil {
		return e.prog, nil, err
	}
	if err := e.Flush(); err != nil {
		return e.prog, nil, err
	}
	return e.prog, out, nil
}
