package framer

import (
	"errors"
	"testing"

	"github.com/framelens/framelens/internal/bitio"
	"github.com/framelens/framelens/internal/limits"
)

// obuByte builds an OBU header byte: type in bits 3..6, extension flag,
// has-size flag.
func obuByte(obuType uint8, ext, hasSize bool) byte {
	b := (obuType & 0x0F) << 3
	if ext {
		b |= 0x04
	}
	if hasSize {
		b |= 0x02
	}
	return b
}

func TestParseOBUHeader(t *testing.T) {
	t.Parallel()
	h, err := ParseOBUHeader([]byte{obuByte(1, false, true)}, 0)
	if err != nil {
		t.Fatalf("ParseOBUHeader: %v", err)
	}
	if h.Type != 1 || !h.HasSizeField || h.HasExtension || h.HeaderSize != 1 {
		t.Errorf("header = %+v", h)
	}

	// Extension header carries temporal and spatial ids.
	h, err = ParseOBUHeader([]byte{obuByte(6, true, true), 0xA8}, 0)
	if err != nil {
		t.Fatalf("ParseOBUHeader with extension: %v", err)
	}
	if h.TemporalID != 5 || h.SpatialID != 1 || h.HeaderSize != 2 {
		t.Errorf("extension fields = %+v", h)
	}
}

func TestParseOBUHeaderErrors(t *testing.T) {
	t.Parallel()
	if _, err := ParseOBUHeader(nil, 10); !errors.Is(err, bitio.ErrUnexpectedEOF) {
		t.Errorf("empty: got %v, want ErrUnexpectedEOF", err)
	}
	if _, err := ParseOBUHeader([]byte{0x80}, 0); !errors.Is(err, bitio.ErrParse) {
		t.Errorf("forbidden bit: got %v, want ErrParse", err)
	}
	if _, err := ParseOBUHeader([]byte{obuByte(2, true, false)}, 0); !errors.Is(err, bitio.ErrUnexpectedEOF) {
		t.Errorf("missing extension byte: got %v, want ErrUnexpectedEOF", err)
	}
}

func TestScanOBUs(t *testing.T) {
	t.Parallel()
	data := []byte{
		obuByte(2, false, true), 0x00, // temporal delimiter, size 0
		obuByte(1, false, true), 0x03, 0xAA, 0xBB, 0xCC, // sequence header, size 3
		obuByte(6, false, true), 0x80, 0x01, // frame, LEB128 size 128
	}
	data = append(data, make([]byte, 128)...)

	spans, err := ScanOBUs(data, limits.Default())
	if err != nil {
		t.Fatalf("ScanOBUs: %v", err)
	}
	if len(spans) != 3 {
		t.Fatalf("expected 3 OBUs, got %d", len(spans))
	}
	want := []Span{{0, 2}, {2, 5}, {7, 131}}
	for i, w := range want {
		if spans[i] != w {
			t.Errorf("span %d = %+v, want %+v", i, spans[i], w)
		}
	}
}

func TestScanOBUsTruncated(t *testing.T) {
	t.Parallel()
	data := []byte{
		obuByte(2, false, true), 0x00,
		obuByte(6, false, true), 0x10, 0xAA, // declares 16 bytes, has 1
	}

	spans, err := ScanOBUs(data, limits.Default())
	if !errors.Is(err, bitio.ErrUnexpectedEOF) {
		t.Fatalf("truncated OBU: got %v, want ErrUnexpectedEOF", err)
	}
	// Units before the truncated one survive; nothing follows it.
	if len(spans) != 1 {
		t.Errorf("expected 1 span before truncation, got %d", len(spans))
	}
}

func TestScanOBUsNoSizeField(t *testing.T) {
	t.Parallel()
	data := []byte{obuByte(6, false, false), 0xAA, 0xBB, 0xCC}
	spans, err := ScanOBUs(data, limits.Default())
	if err != nil {
		t.Fatalf("ScanOBUs: %v", err)
	}
	if len(spans) != 1 || spans[0] != (Span{0, 4}) {
		t.Errorf("spans = %+v, want one span {0, 4}", spans)
	}
}

func TestScanOBUsSizeLimit(t *testing.T) {
	t.Parallel()
	lim := limits.Default()
	lim.MaxFrameSize = 16

	data := []byte{obuByte(6, false, true), 0x20} // declares 32 > limit
	data = append(data, make([]byte, 32)...)

	_, err := ScanOBUs(data, lim)
	if !errors.Is(err, bitio.ErrInvalidData) {
		t.Errorf("oversize OBU: got %v, want ErrInvalidData", err)
	}
}

func TestScanOBUsUnitCountLimit(t *testing.T) {
	t.Parallel()
	lim := limits.Default()
	lim.MaxUnitsPerFrame = 4

	var data []byte
	for i := 0; i < 8; i++ {
		data = append(data, obuByte(2, false, true), 0x00)
	}
	spans, err := ScanOBUs(data, lim)
	if !errors.Is(err, bitio.ErrInvalidData) {
		t.Errorf("unit flood: got %v, want ErrInvalidData", err)
	}
	if len(spans) != 4 {
		t.Errorf("expected 4 spans before limit, got %d", len(spans))
	}
}

func FuzzScanOBUs(f *testing.F) {
	f.Add([]byte{obuByte(1, false, true), 0x02, 0xAA, 0xBB})
	f.Add([]byte{obuByte(6, true, true), 0x20, 0x80, 0x01})
	f.Add([]byte{0x80})

	lim := limits.Default()
	f.Fuzz(func(t *testing.T, data []byte) {
		spans, _ := ScanOBUs(data, lim) // must not panic
		var prevEnd int64
		for _, s := range spans {
			if s.Offset != prevEnd || s.End() > int64(len(data)) {
				t.Fatalf("non-contiguous span %+v (prev end %d)", s, prevEnd)
			}
			prevEnd = s.End()
		}
	})
}
