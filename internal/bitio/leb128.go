package bitio

// LEB128 variable-length integers as used by AV1 and AV3 OBU size fields:
// 7 data bits per byte, little-endian, high bit set on continuation bytes.

// maxLEB128Bytes bounds a single varint to 8 bytes (56 significant bits),
// matching the AV1 requirement that leb128() values fit in 56 bits.
const maxLEB128Bytes = 8

// ReadULEB128 decodes an unsigned LEB128 value from the cursor.
func (c *Cursor) ReadULEB128() (uint64, error) {
	var val uint64
	for i := 0; i < maxLEB128Bytes; i++ {
		b, err := c.ReadBits(8)
		if err != nil {
			return 0, err
		}
		val |= (b & 0x7F) << (7 * i)
		if b&0x80 == 0 {
			return val, nil
		}
	}
	return 0, &ParseError{Offset: c.Offset(), Msg: "LEB128 exceeded maximum bytes"}
}

// ReadLEB128i64 decodes a signed LEB128 value, sign-extending from the
// final byte's sign bit.
func (c *Cursor) ReadLEB128i64() (int64, error) {
	var val uint64
	shift := 0
	for i := 0; i < maxLEB128Bytes; i++ {
		b, err := c.ReadBits(8)
		if err != nil {
			return 0, err
		}
		val |= (b & 0x7F) << shift
		shift += 7
		if b&0x80 == 0 {
			if b&0x40 != 0 && shift < 64 {
				val |= ^uint64(0) << shift
			}
			return int64(val), nil
		}
	}
	return 0, &ParseError{Offset: c.Offset(), Msg: "LEB128 exceeded maximum bytes"}
}

// DecodeULEB128 decodes an unsigned LEB128 value from the start of data,
// returning the value and the number of bytes consumed. Unlike the cursor
// reader, which enforces the AV1 56-bit bound on wire input, this accepts
// the full uint64 range (up to 10 encoded bytes) so that any value produced
// by AppendULEB128 round-trips.
func DecodeULEB128(data []byte) (uint64, int, error) {
	var val uint64
	for i := 0; i < 10; i++ {
		if i >= len(data) {
			return 0, 0, &EOFError{Offset: int64(len(data))}
		}
		b := data[i]
		if i == 9 && b > 0x01 {
			return 0, 0, &ParseError{Offset: int64(i), Msg: "LEB128 value overflows uint64"}
		}
		val |= uint64(b&0x7F) << (7 * i)
		if b&0x80 == 0 {
			return val, i + 1, nil
		}
	}
	return 0, 0, &ParseError{Offset: 10, Msg: "LEB128 exceeded maximum bytes"}
}

// AppendULEB128 appends the unsigned LEB128 encoding of v to dst.
func AppendULEB128(dst []byte, v uint64) []byte {
	for {
		b := byte(v & 0x7F)
		v >>= 7
		if v != 0 {
			b |= 0x80
		}
		dst = append(dst, b)
		if v == 0 {
			return dst
		}
	}
}

// ULEB128Size returns the encoded length of v in bytes.
func ULEB128Size(v uint64) int {
	n := 1
	for v >>= 7; v != 0; v >>= 7 {
		n++
	}
	return n
}
