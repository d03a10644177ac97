package bitio

import (
	"bytes"
	"errors"
	"math"
	"testing"
)

func TestDecodeULEB128(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name    string
		data    []byte
		want    uint64
		wantLen int
	}{
		{"zero", []byte{0x00}, 0, 1},
		{"one byte", []byte{0x7F}, 127, 1},
		{"128", []byte{0x80, 0x01}, 128, 2},
		{"300", []byte{0xAC, 0x02}, 300, 2},
		{"max uint64", []byte{0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0x01}, math.MaxUint64, 10},
		{"trailing bytes ignored", []byte{0x08, 0xFF}, 8, 1},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, n, err := DecodeULEB128(tt.data)
			if err != nil {
				t.Fatalf("DecodeULEB128 error: %v", err)
			}
			if got != tt.want || n != tt.wantLen {
				t.Errorf("DecodeULEB128 = (%d, %d), want (%d, %d)", got, n, tt.want, tt.wantLen)
			}
		})
	}
}

func TestDecodeULEB128Errors(t *testing.T) {
	t.Parallel()
	if _, _, err := DecodeULEB128(nil); !errors.Is(err, ErrUnexpectedEOF) {
		t.Errorf("empty input: got %v, want ErrUnexpectedEOF", err)
	}
	if _, _, err := DecodeULEB128([]byte{0x80}); !errors.Is(err, ErrUnexpectedEOF) {
		t.Errorf("dangling continuation: got %v, want ErrUnexpectedEOF", err)
	}
	over := []byte{0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0x02}
	if _, _, err := DecodeULEB128(over); !errors.Is(err, ErrParse) {
		t.Errorf("uint64 overflow: got %v, want ErrParse", err)
	}
}

func TestULEB128RoundTrip(t *testing.T) {
	t.Parallel()
	values := []uint64{
		0, 1, 127, 128, 129, 255, 300, 16383, 16384,
		1<<21 - 1, 1 << 21, 1<<28 - 1, 1 << 28, 1<<35 - 1,
		1<<42 + 7, 1<<49 + 1, 1<<56 - 1, 1 << 56, math.MaxUint64,
	}

	for _, v := range values {
		enc := AppendULEB128(nil, v)
		if len(enc) != ULEB128Size(v) {
			t.Errorf("ULEB128Size(%d) = %d, encoded %d bytes", v, ULEB128Size(v), len(enc))
		}
		got, n, err := DecodeULEB128(enc)
		if err != nil {
			t.Fatalf("decode(%d): %v", v, err)
		}
		if got != v || n != len(enc) {
			t.Errorf("round trip %d: got (%d, %d), want (%d, %d)", v, got, n, v, len(enc))
		}
	}
}

func TestCursorReadULEB128(t *testing.T) {
	t.Parallel()
	c := NewCursor([]byte{0x80, 0x01, 0x05})
	v, err := c.ReadULEB128()
	if err != nil {
		t.Fatalf("ReadULEB128: %v", err)
	}
	if v != 128 {
		t.Errorf("got %d, want 128", v)
	}
	v, err = c.ReadULEB128()
	if err != nil || v != 5 {
		t.Errorf("second value: got (%d, %v), want (5, nil)", v, err)
	}

	// The cursor reader enforces the AV1 8-byte wire bound.
	c = NewCursor(bytes.Repeat([]byte{0xFF}, 9))
	if _, err := c.ReadULEB128(); !errors.Is(err, ErrParse) {
		t.Errorf("9-byte varint: got %v, want ErrParse", err)
	}
}

func TestReadLEB128i64(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		data []byte
		want int64
	}{
		{"zero", []byte{0x00}, 0},
		{"positive small", []byte{0x3F}, 63},
		{"negative one", []byte{0x7F}, -1},
		{"negative 64", []byte{0x40}, -64},
		{"positive two byte", []byte{0xFF, 0x00}, 127},
		{"negative two byte", []byte{0x80, 0x7F}, -128},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			c := NewCursor(tt.data)
			got, err := c.ReadLEB128i64()
			if err != nil {
				t.Fatalf("ReadLEB128i64 error: %v", err)
			}
			if got != tt.want {
				t.Errorf("got %d, want %d", got, tt.want)
			}
		})
	}
}

func FuzzDecodeULEB128(f *testing.F) {
	f.Add([]byte{0x80, 0x01})
	f.Add([]byte{0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0x01})
	f.Add([]byte{})

	f.Fuzz(func(t *testing.T, data []byte) {
		v, n, err := DecodeULEB128(data)
		if err != nil {
			return
		}
		if n < 1 || n > len(data) {
			t.Fatalf("consumed %d of %d bytes", n, len(data))
		}
		enc := AppendULEB128(nil, v)
		got, m, err := DecodeULEB128(enc)
		if err != nil || got != v || m != len(enc) {
			t.Fatalf("canonical re-encode of %d failed: (%d, %d, %v)", v, got, m, err)
		}
	})
}
