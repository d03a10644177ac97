package framer

import (
	"github.com/framelens/framelens/internal/bitio"
)

// ParseSuperframeIndex splits a VP9 sample into its constituent frames.
// A superframe carries a trailing index: a marker byte (110 in the top
// three bits) encoding the frame count and per-frame size width, the
// little-endian frame sizes, and the same marker byte repeated first.
// Without a trailing marker the whole buffer is one frame.
func ParseSuperframeIndex(data []byte) ([]Span, error) {
	n := len(data)
	if n == 0 {
		return nil, nil
	}

	marker := data[n-1]
	if marker&0xE0 != 0xC0 {
		return []Span{{Offset: 0, Size: int64(n)}}, nil
	}

	frames := int(marker&0x07) + 1
	szBytes := int((marker>>3)&0x03) + 1
	indexSize := 2 + szBytes*frames
	if n < indexSize {
		return []Span{{Offset: 0, Size: int64(n)}}, nil
	}
	// The index is bracketed by two copies of the marker byte.
	if data[n-indexSize] != marker {
		return []Span{{Offset: 0, Size: int64(n)}}, nil
	}

	payloadEnd := int64(n - indexSize)
	spans := make([]Span, 0, frames)
	off := int64(0)
	p := n - indexSize + 1
	for f := 0; f < frames; f++ {
		var size int64
		for b := 0; b < szBytes; b++ {
			size |= int64(data[p+b]) << (8 * b)
		}
		p += szBytes
		if off+size > payloadEnd {
			return spans, &bitio.EOFError{Offset: payloadEnd}
		}
		spans = append(spans, Span{Offset: off, Size: size})
		off += size
	}
	return spans, nil
}
