// Package bitio provides the bit-level reading primitives shared by every
// codec parser: an MSB-first bit cursor over a byte slice, Exp-Golomb
// (ue/se) decoding, and LEB128 variable-length integers. All reads fail
// with an EOFError when insufficient bits remain; none panic on
// attacker-controlled input.
package bitio

// Cursor reads bits MSB-first from a borrowed byte slice. The cursor owns
// only its position state; the underlying bytes are never modified.
// Invariants: bitOff < 8 and bytePos <= len(data).
type Cursor struct {
	data    []byte
	base    int64
	bytePos int
	bitOff  int
}

// NewCursor returns a Cursor positioned at the start of data.
func NewCursor(data []byte) *Cursor {
	return &Cursor{data: data}
}

// NewCursorAt returns a Cursor whose error offsets are reported relative to
// base, the stream byte offset at which data begins.
func NewCursorAt(data []byte, base int64) *Cursor {
	return &Cursor{data: data, base: base}
}

// Offset returns the stream byte offset of the cursor's current position.
func (c *Cursor) Offset() int64 {
	return c.base + int64(c.bytePos)
}

// BitPos returns the number of bits consumed so far.
func (c *Cursor) BitPos() int {
	return c.bytePos*8 + c.bitOff
}

// RemainingBits returns the number of unread bits.
func (c *Cursor) RemainingBits() int {
	return len(c.data)*8 - c.BitPos()
}

// ReadBit reads a single bit.
func (c *Cursor) ReadBit() (bool, error) {
	if c.bytePos >= len(c.data) {
		return false, &EOFError{Offset: c.Offset()}
	}
	bit := (c.data[c.bytePos] >> (7 - c.bitOff)) & 1
	c.bitOff++
	if c.bitOff == 8 {
		c.bitOff = 0
		c.bytePos++
	}
	return bit == 1, nil
}

// ReadBits reads n bits (n <= 64) as an unsigned big-endian value.
// Requesting more than 64 bits is a usage error, reported as InvalidData
// rather than a panic.
func (c *Cursor) ReadBits(n int) (uint64, error) {
	if n < 0 || n > 64 {
		return 0, &InvalidDataError{Msg: "bit read width out of range"}
	}
	if c.RemainingBits() < n {
		c.bytePos = len(c.data)
		c.bitOff = 0
		return 0, &EOFError{Offset: c.base + int64(len(c.data))}
	}
	var val uint64
	for i := 0; i < n; i++ {
		bit := (c.data[c.bytePos] >> (7 - c.bitOff)) & 1
		val = val<<1 | uint64(bit)
		c.bitOff++
		if c.bitOff == 8 {
			c.bitOff = 0
			c.bytePos++
		}
	}
	return val, nil
}

// SkipBits discards n bits.
func (c *Cursor) SkipBits(n int) error {
	_, err := c.ReadBits(n)
	return err
}

// ByteAlign advances the cursor to the next byte boundary. It is a no-op
// when already aligned.
func (c *Cursor) ByteAlign() {
	if c.bitOff != 0 {
		c.bitOff = 0
		c.bytePos++
	}
}

// HasMore reports whether data bits remain before the RBSP trailing stop
// bit, mirroring the more_rbsp_data() condition: true while the current
// position is before the last set bit in the buffer.
func (c *Cursor) HasMore() bool {
	last := -1
	for i := len(c.data) - 1; i >= 0; i-- {
		if c.data[i] == 0 {
			continue
		}
		b := c.data[i]
		trailing := 0
		for b&1 == 0 {
			b >>= 1
			trailing++
		}
		last = i*8 + (7 - trailing)
		break
	}
	return last >= 0 && c.BitPos() < last
}
