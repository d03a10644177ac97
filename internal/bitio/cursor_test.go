package bitio

import (
	"errors"
	"testing"
)

func TestReadBits(t *testing.T) {
	t.Parallel()
	c := NewCursor([]byte{0xA5, 0x3C})

	got, err := c.ReadBits(4)
	if err != nil {
		t.Fatalf("ReadBits(4) error: %v", err)
	}
	if got != 0xA {
		t.Errorf("first nibble: got %#x, want 0xA", got)
	}

	got, err = c.ReadBits(8)
	if err != nil {
		t.Fatalf("ReadBits(8) error: %v", err)
	}
	if got != 0x53 {
		t.Errorf("middle byte: got %#x, want 0x53", got)
	}

	got, err = c.ReadBits(4)
	if err != nil {
		t.Fatalf("ReadBits(4) error: %v", err)
	}
	if got != 0xC {
		t.Errorf("last nibble: got %#x, want 0xC", got)
	}

	if _, err := c.ReadBits(1); !errors.Is(err, ErrUnexpectedEOF) {
		t.Errorf("read past end: got %v, want ErrUnexpectedEOF", err)
	}
}

func TestReadBitsWidthError(t *testing.T) {
	t.Parallel()
	c := NewCursor(make([]byte, 16))
	if _, err := c.ReadBits(65); !errors.Is(err, ErrInvalidData) {
		t.Errorf("ReadBits(65): got %v, want ErrInvalidData", err)
	}
	if _, err := c.ReadBits(-1); !errors.Is(err, ErrInvalidData) {
		t.Errorf("ReadBits(-1): got %v, want ErrInvalidData", err)
	}
	if v, err := c.ReadBits(64); err != nil || v != 0 {
		t.Errorf("ReadBits(64): got (%d, %v), want (0, nil)", v, err)
	}
}

func TestReadBitAndAlign(t *testing.T) {
	t.Parallel()
	c := NewCursor([]byte{0x80, 0xFF})

	bit, err := c.ReadBit()
	if err != nil || !bit {
		t.Fatalf("first bit: got (%v, %v), want (true, nil)", bit, err)
	}
	c.ByteAlign()
	if c.BitPos() != 8 {
		t.Errorf("BitPos after align: got %d, want 8", c.BitPos())
	}
	c.ByteAlign() // already aligned, no-op
	if c.BitPos() != 8 {
		t.Errorf("BitPos after second align: got %d, want 8", c.BitPos())
	}
	if c.RemainingBits() != 8 {
		t.Errorf("RemainingBits: got %d, want 8", c.RemainingBits())
	}
}

func TestHasMore(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name    string
		data    []byte
		consume int
		want    bool
	}{
		{"data before stop bit", []byte{0xA3, 0x80}, 0, true},
		{"at stop bit", []byte{0x80}, 0, false},
		{"stop bit mid-byte", []byte{0xA0}, 3, false},
		{"trailing zero bytes", []byte{0xA1, 0x00, 0x00}, 7, false},
		{"all zeros", []byte{0x00, 0x00}, 0, false},
		{"empty", nil, 0, false},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			c := NewCursor(tt.data)
			if tt.consume > 0 {
				if _, err := c.ReadBits(tt.consume); err != nil {
					t.Fatalf("consume: %v", err)
				}
			}
			if got := c.HasMore(); got != tt.want {
				t.Errorf("HasMore() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestCursorOffsetBase(t *testing.T) {
	t.Parallel()
	c := NewCursorAt([]byte{0x01}, 1000)
	if c.Offset() != 1000 {
		t.Errorf("Offset: got %d, want 1000", c.Offset())
	}
	if _, err := c.ReadBits(8); err != nil {
		t.Fatalf("ReadBits: %v", err)
	}
	_, err := c.ReadBits(8)
	var eof *EOFError
	if !errors.As(err, &eof) {
		t.Fatalf("expected EOFError, got %v", err)
	}
	if eof.Offset != 1001 {
		t.Errorf("EOF offset: got %d, want 1001", eof.Offset)
	}
}
