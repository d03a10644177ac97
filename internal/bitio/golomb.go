package bitio

// Exp-Golomb codes as used by H.264/H.265/H.266 (ue(v) and se(v)).

// ReadUE decodes an unsigned Exp-Golomb code. Codes longer than 31 leading
// zeros cannot occur in a conforming stream and are rejected as a parse
// error rather than spinning on malformed input.
func (c *Cursor) ReadUE() (uint32, error) {
	zeros := 0
	for {
		bit, err := c.ReadBit()
		if err != nil {
			return 0, err
		}
		if bit {
			break
		}
		zeros++
		if zeros > 31 {
			return 0, &ParseError{Offset: c.Offset(), Msg: "exp-golomb code exceeds 31 leading zeros"}
		}
	}
	if zeros == 0 {
		return 0, nil
	}
	suffix, err := c.ReadBits(zeros)
	if err != nil {
		return 0, err
	}
	return uint32(1)<<zeros - 1 + uint32(suffix), nil
}

// ReadSE decodes a signed Exp-Golomb code. Code number k maps to
// (-1)^(k+1) * ceil(k/2): 0, 1, -1, 2, -2, ...
func (c *Cursor) ReadSE() (int32, error) {
	k, err := c.ReadUE()
	if err != nil {
		return 0, err
	}
	if k%2 == 0 {
		return -int32(k / 2), nil
	}
	return int32(k/2) + 1, nil
}
