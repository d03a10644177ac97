package framer

import (
	"testing"

	"github.com/framelens/framelens/internal/limits"
)

func TestClassifyMPEG2StartCode(t *testing.T) {
	t.Parallel()
	tests := []struct {
		code byte
		want MPEG2UnitKind
	}{
		{0x00, MPEG2Picture},
		{0x01, MPEG2Slice},
		{0xAF, MPEG2Slice},
		{0xB2, MPEG2UserData},
		{0xB3, MPEG2SequenceHeader},
		{0xB4, MPEG2SequenceError},
		{0xB5, MPEG2Extension},
		{0xB7, MPEG2SequenceEnd},
		{0xB8, MPEG2GOP},
		{0xB9, MPEG2System},
		{0xE0, MPEG2System},
	}
	for _, tt := range tests {
		if got := ClassifyMPEG2StartCode(tt.code); got != tt.want {
			t.Errorf("ClassifyMPEG2StartCode(0x%02X) = %v, want %v", tt.code, got, tt.want)
		}
	}
}

func TestScanMPEG2(t *testing.T) {
	t.Parallel()
	data := []byte{
		0x00, 0x00, 0x01, 0xB3, 0x14, 0x00, 0xF0, // sequence header
		0x00, 0x00, 0x01, 0xB8, 0x00, 0x08, // GOP
		0x00, 0x00, 0x01, 0x00, 0x00, 0x0F, // picture
		0x00, 0x00, 0x01, 0x01, 0xDE, // slice 1
	}

	spans := ScanMPEG2(data, limits.Default())
	if len(spans) != 4 {
		t.Fatalf("expected 4 units, got %d", len(spans))
	}

	wantKinds := []MPEG2UnitKind{MPEG2SequenceHeader, MPEG2GOP, MPEG2Picture, MPEG2Slice}
	wantOffsets := []int64{3, 10, 16, 22}
	for i := range wantKinds {
		if spans[i].Kind != wantKinds[i] {
			t.Errorf("unit %d kind = %v, want %v", i, spans[i].Kind, wantKinds[i])
		}
		if spans[i].Offset != wantOffsets[i] {
			t.Errorf("unit %d offset = %d, want %d", i, spans[i].Offset, wantOffsets[i])
		}
	}
}

func TestScanMPEG2Empty(t *testing.T) {
	t.Parallel()
	if spans := ScanMPEG2([]byte{0xFF, 0xFF, 0xFF, 0xFF}, limits.Default()); spans != nil {
		t.Errorf("expected no units, got %d", len(spans))
	}
}

func FuzzScanMPEG2(f *testing.F) {
	f.Add([]byte{0x00, 0x00, 0x01, 0xB3, 0x14})
	f.Add([]byte{0x00, 0x00, 0x01})

	lim := limits.Default()
	f.Fuzz(func(t *testing.T, data []byte) {
		for _, s := range ScanMPEG2(data, lim) {
			if s.Offset < 0 || s.End() > int64(len(data)) {
				t.Fatalf("span out of bounds: %+v", s)
			}
		}
	})
}
