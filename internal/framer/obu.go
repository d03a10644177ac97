package framer

import (
	"errors"
	"fmt"

	"github.com/framelens/framelens/internal/bitio"
	"github.com/framelens/framelens/internal/limits"
)

// OBU types, AV1 spec 6.2.2. AV3 reuses the same framing and type space.
const (
	OBUSequenceHeader       = 1
	OBUTemporalDelimiter    = 2
	OBUFrameHeader          = 3
	OBUTileGroup            = 4
	OBUMetadata             = 5
	OBUFrame                = 6
	OBURedundantFrameHeader = 7
	OBUTileList             = 8
	OBUPadding              = 15
)

// OBUHeader is the fixed part of an AV1/AV3 Open Bitstream Unit header.
type OBUHeader struct {
	Type         uint8
	HasSizeField bool
	HasExtension bool
	TemporalID   uint8
	SpatialID    uint8

	// HeaderSize is 1 or 2 bytes depending on the extension flag.
	HeaderSize int
}

// ParseOBUHeader decodes the 1-byte OBU header and, when the extension
// flag is set, the extension byte: forbidden(1) type(4) ext(1) has_size(1)
// reserved(1), then temporal_id(3) spatial_id(2) reserved(3).
func ParseOBUHeader(data []byte, base int64) (OBUHeader, error) {
	if len(data) < 1 {
		return OBUHeader{}, &bitio.EOFError{Offset: base}
	}
	b := data[0]
	if b&0x80 != 0 {
		return OBUHeader{}, &bitio.ParseError{Offset: base, Msg: "OBU forbidden bit set"}
	}
	h := OBUHeader{
		Type:         (b >> 3) & 0x0F,
		HasExtension: b&0x04 != 0,
		HasSizeField: b&0x02 != 0,
		HeaderSize:   1,
	}
	if h.HasExtension {
		if len(data) < 2 {
			return OBUHeader{}, &bitio.EOFError{Offset: base + 1}
		}
		ext := data[1]
		h.TemporalID = ext >> 5
		h.SpatialID = (ext >> 3) & 0x03
		h.HeaderSize = 2
	}
	return h, nil
}

// ScanOBUs walks data as a sequence of size-delimited OBUs and returns one
// span per OBU, each covering the header and payload. An OBU whose declared
// payload length exceeds the remaining buffer yields an EOFError along with
// the spans accumulated before it; a declared length above
// lim.MaxFrameSize is an InvalidData error naming the limit. An OBU
// without a size field extends to the end of the buffer.
func ScanOBUs(data []byte, lim limits.Limits) ([]Span, error) {
	var spans []Span
	off := int64(0)
	n := int64(len(data))

	for off < n {
		if len(spans) >= lim.MaxUnitsPerFrame {
			return spans, &bitio.InvalidDataError{
				Msg: fmt.Sprintf("OBU count exceeds MaxUnitsPerFrame %d", lim.MaxUnitsPerFrame),
			}
		}

		h, err := ParseOBUHeader(data[off:], off)
		if err != nil {
			return spans, err
		}

		payloadStart := off + int64(h.HeaderSize)
		var payloadLen int64
		if h.HasSizeField {
			v, consumed, err := bitio.DecodeULEB128(data[payloadStart:n])
			if err != nil {
				var eof *bitio.EOFError
				if errors.As(err, &eof) {
					eof.Offset += payloadStart
				}
				return spans, err
			}
			if v > uint64(lim.MaxFrameSize) {
				return spans, &bitio.InvalidDataError{
					Msg: fmt.Sprintf("OBU declared size %d exceeds MaxFrameSize %d", v, lim.MaxFrameSize),
				}
			}
			payloadStart += int64(consumed)
			payloadLen = int64(v)
			if payloadStart+payloadLen > n {
				return spans, &bitio.EOFError{Offset: n}
			}
		} else {
			payloadLen = n - payloadStart
		}

		spans = append(spans, Span{Offset: off, Size: payloadStart + payloadLen - off})
		off = payloadStart + payloadLen
	}
	return spans, nil
}
