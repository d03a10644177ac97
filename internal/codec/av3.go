package codec

import (
	"github.com/framelens/framelens/internal/bitio"
	"github.com/framelens/framelens/internal/framer"
	"github.com/framelens/framelens/internal/units"
)

// AV3SequenceHeader holds a parsed AV3 sequence header OBU. AV3 reuses
// the AV1 OBU framing with a compact fixed-width sequence header.
type AV3SequenceHeader struct {
	Profile int
	Level   int
	Width   int
	Height  int
}

// ParseAV3SequenceHeader parses a sequence header OBU payload: profile
// (3 bits), level (5 bits), then width and height as 16-bit minus-one
// fields.
func ParseAV3SequenceHeader(payload []byte, base int64) (*AV3SequenceHeader, error) {
	c := bitio.NewCursorAt(payload, base)

	profile, err := c.ReadBits(3)
	if err != nil {
		return nil, err
	}
	level, err := c.ReadBits(5)
	if err != nil {
		return nil, err
	}
	width, err := c.ReadBits(16)
	if err != nil {
		return nil, err
	}
	height, err := c.ReadBits(16)
	if err != nil {
		return nil, err
	}
	return &AV3SequenceHeader{
		Profile: int(profile),
		Level:   int(level),
		Width:   int(width) + 1,
		Height:  int(height) + 1,
	}, nil
}

// AV3FrameHeader is the fixed head of an AV3 frame or frame header OBU.
type AV3FrameHeader struct {
	ShowExisting bool
	FrameToShow  int
	FrameType    int
	ShowFrame    bool
	BaseQIdx     int
}

// ParseAV3FrameHeader parses a frame header OBU payload: a show-existing
// directive (1+3 bits) or frame type (2 bits), show flag, and the base
// quantizer index (8 bits).
func ParseAV3FrameHeader(payload []byte, base int64) (*AV3FrameHeader, error) {
	c := bitio.NewCursorAt(payload, base)
	fh := &AV3FrameHeader{}

	showExisting, err := c.ReadBit()
	if err != nil {
		return nil, err
	}
	if showExisting {
		fh.ShowExisting = true
		idx, err := c.ReadBits(3)
		if err != nil {
			return nil, err
		}
		fh.FrameToShow = int(idx)
		return fh, nil
	}

	frameType, err := c.ReadBits(2)
	if err != nil {
		return nil, err
	}
	fh.FrameType = int(frameType)

	show, err := c.ReadBit()
	if err != nil {
		return nil, err
	}
	fh.ShowFrame = show

	qIdx, err := c.ReadBits(8)
	if err != nil {
		return nil, err
	}
	fh.BaseQIdx = int(qIdx)
	return fh, nil
}

// parseAV3Unit classifies one AV3 OBU. Framing and type space match AV1.
func parseAV3Unit(obu []byte, base int64, ps *ParamSets) (UnitInfo, error) {
	hdr, err := framer.ParseOBUHeader(obu, base)
	if err != nil {
		return UnitInfo{}, err
	}
	info := UnitInfo{
		TypeID:     int(hdr.Type),
		TypeName:   av1OBUTypeName(hdr.Type),
		TemporalID: int(hdr.TemporalID),
	}

	payload := obu[hdr.HeaderSize:]
	payloadBase := base + int64(hdr.HeaderSize)
	if hdr.HasSizeField {
		size, n, err := bitio.DecodeULEB128(payload)
		if err != nil {
			return info, err
		}
		if size > uint64(len(payload)-n) {
			return info, &bitio.EOFError{Offset: base + int64(len(obu))}
		}
		payload = payload[n : n+int(size)]
		payloadBase += int64(n)
	}

	switch hdr.Type {
	case framer.OBUSequenceHeader:
		seq, err := ParseAV3SequenceHeader(payload, payloadBase)
		if err != nil {
			return info, err
		}
		ps.AV3Seq = seq
		info.IsParamSet = true

	case framer.OBUFrame, framer.OBUFrameHeader:
		if ps.AV3Seq == nil {
			return info, missingParamSet("sequence header", 0)
		}
		fh, err := ParseAV3FrameHeader(payload, payloadBase)
		if err != nil {
			return info, err
		}
		if fh.ShowExisting {
			info.ShowExisting = true
			info.RefSlots = []uint8{uint8(fh.FrameToShow)}
			break
		}
		info.IsFrame = true
		info.ShowFrame = fh.ShowFrame
		info.IsKeyframe = fh.FrameType == av1KeyFrame
		info.FrameType = av1FrameType(fh.FrameType)
		if err := info.setQP(units.CodecAV3, fh.BaseQIdx); err != nil {
			return info, err
		}
	}
	return info, nil
}
