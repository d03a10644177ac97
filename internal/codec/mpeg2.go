package codec

import (
	"github.com/framelens/framelens/internal/bitio"
	"github.com/framelens/framelens/internal/framer"
	"github.com/framelens/framelens/internal/units"
)

// MPEG-2 picture coding types, ISO 13818-2 table 6-12.
const (
	mpeg2PictureI = 1
	mpeg2PictureP = 2
	mpeg2PictureB = 3
	mpeg2PictureD = 4
)

// MPEG2SequenceHeader holds a parsed MPEG-2 sequence header.
type MPEG2SequenceHeader struct {
	Width         int
	Height        int
	AspectRatio   int
	FrameRateCode int
	BitRate       int64 // bits per second
	VBVBufferSize int
}

// mpeg2FrameRates maps frame_rate_code to numerator/denominator pairs,
// ISO 13818-2 table 6-4.
var mpeg2FrameRates = [9][2]int{
	{}, {24000, 1001}, {24, 1}, {25, 1}, {30000, 1001},
	{30, 1}, {50, 1}, {60000, 1001}, {60, 1},
}

// FrameRate returns the sequence frame rate as a rational. Reserved
// codes return 0/0.
func (s *MPEG2SequenceHeader) FrameRate() (num, den int) {
	if s.FrameRateCode < 1 || s.FrameRateCode > 8 {
		return 0, 0
	}
	r := mpeg2FrameRates[s.FrameRateCode]
	return r[0], r[1]
}

// ParseMPEG2SequenceHeader parses a sequence header payload (the bytes
// after the 0xB3 start code).
func ParseMPEG2SequenceHeader(payload []byte, base int64) (*MPEG2SequenceHeader, error) {
	c := bitio.NewCursorAt(payload, base)

	width, err := c.ReadBits(12)
	if err != nil {
		return nil, err
	}
	height, err := c.ReadBits(12)
	if err != nil {
		return nil, err
	}
	if width == 0 || height == 0 {
		return nil, &bitio.ParseError{Offset: base, Msg: "zero picture dimension"}
	}
	aspect, err := c.ReadBits(4)
	if err != nil {
		return nil, err
	}
	frameRate, err := c.ReadBits(4)
	if err != nil {
		return nil, err
	}
	bitRate, err := c.ReadBits(18)
	if err != nil {
		return nil, err
	}
	marker, err := c.ReadBit()
	if err != nil {
		return nil, err
	}
	if !marker {
		return nil, &bitio.ParseError{Offset: c.Offset(), Msg: "sequence header marker bit not set"}
	}
	vbv, err := c.ReadBits(10)
	if err != nil {
		return nil, err
	}
	if _, err := c.ReadBit(); err != nil { // constrained_parameters_flag
		return nil, err
	}

	loadIntra, err := c.ReadBit()
	if err != nil {
		return nil, err
	}
	if loadIntra {
		if err := c.SkipBits(64 * 8); err != nil {
			return nil, err
		}
	}
	loadNonIntra, err := c.ReadBit()
	if err != nil {
		return nil, err
	}
	if loadNonIntra {
		if err := c.SkipBits(64 * 8); err != nil {
			return nil, err
		}
	}

	return &MPEG2SequenceHeader{
		Width:         int(width),
		Height:        int(height),
		AspectRatio:   int(aspect),
		FrameRateCode: int(frameRate),
		BitRate:       int64(bitRate) * 400,
		VBVBufferSize: int(vbv),
	}, nil
}

// MPEG2GOPHeader is a parsed group-of-pictures header.
type MPEG2GOPHeader struct {
	DropFrame  bool
	Hours      int
	Minutes    int
	Seconds    int
	Pictures   int
	ClosedGOP  bool
	BrokenLink bool
}

// ParseMPEG2GOPHeader parses a GOP header payload (the bytes after the
// 0xB8 start code).
func ParseMPEG2GOPHeader(payload []byte, base int64) (*MPEG2GOPHeader, error) {
	c := bitio.NewCursorAt(payload, base)

	drop, err := c.ReadBit()
	if err != nil {
		return nil, err
	}
	hours, err := c.ReadBits(5)
	if err != nil {
		return nil, err
	}
	minutes, err := c.ReadBits(6)
	if err != nil {
		return nil, err
	}
	marker, err := c.ReadBit()
	if err != nil {
		return nil, err
	}
	if !marker {
		return nil, &bitio.ParseError{Offset: c.Offset(), Msg: "GOP header marker bit not set"}
	}
	seconds, err := c.ReadBits(6)
	if err != nil {
		return nil, err
	}
	pictures, err := c.ReadBits(6)
	if err != nil {
		return nil, err
	}
	closed, err := c.ReadBit()
	if err != nil {
		return nil, err
	}
	broken, err := c.ReadBit()
	if err != nil {
		return nil, err
	}
	return &MPEG2GOPHeader{
		DropFrame:  drop,
		Hours:      int(hours),
		Minutes:    int(minutes),
		Seconds:    int(seconds),
		Pictures:   int(pictures),
		ClosedGOP:  closed,
		BrokenLink: broken,
	}, nil
}

// MPEG2PictureHeader is a parsed picture header.
type MPEG2PictureHeader struct {
	TemporalReference int
	CodingType        int
	VBVDelay          int
}

// ParseMPEG2PictureHeader parses a picture header payload (the bytes
// after the 0x00 start code).
func ParseMPEG2PictureHeader(payload []byte, base int64) (*MPEG2PictureHeader, error) {
	c := bitio.NewCursorAt(payload, base)

	temporalRef, err := c.ReadBits(10)
	if err != nil {
		return nil, err
	}
	codingType, err := c.ReadBits(3)
	if err != nil {
		return nil, err
	}
	if codingType < mpeg2PictureI || codingType > mpeg2PictureD {
		return nil, &bitio.ParseError{Offset: c.Offset(), Msg: "picture_coding_type out of range"}
	}
	vbvDelay, err := c.ReadBits(16)
	if err != nil {
		return nil, err
	}
	if codingType == mpeg2PictureP || codingType == mpeg2PictureB {
		if err := c.SkipBits(4); err != nil { // full_pel_forward_vector, forward_f_code
			return nil, err
		}
	}
	if codingType == mpeg2PictureB {
		if err := c.SkipBits(4); err != nil { // full_pel_backward_vector, backward_f_code
			return nil, err
		}
	}
	return &MPEG2PictureHeader{
		TemporalReference: int(temporalRef),
		CodingType:        int(codingType),
		VBVDelay:          int(vbvDelay),
	}, nil
}

func mpeg2FrameType(codingType int) units.FrameType {
	switch codingType {
	case mpeg2PictureI:
		return units.FrameKey
	case mpeg2PictureP:
		return units.FrameInter
	case mpeg2PictureB:
		return units.FrameB
	default:
		return units.FrameIntraOnly
	}
}

// parseMPEG2Unit classifies one MPEG-2 unit. The payload begins with the
// start code value byte, matching the spans the framer produces.
func parseMPEG2Unit(payload []byte, base int64, ps *ParamSets) (UnitInfo, error) {
	if len(payload) < 1 {
		return UnitInfo{}, &bitio.EOFError{Offset: base}
	}
	code := payload[0]
	kind := framer.ClassifyMPEG2StartCode(code)
	info := UnitInfo{TypeID: int(code), TypeName: kind.String()}
	body := payload[1:]

	switch kind {
	case framer.MPEG2SequenceHeader:
		seq, err := ParseMPEG2SequenceHeader(body, base+1)
		if err != nil {
			return info, err
		}
		ps.MPEG2Seq = seq
		info.IsParamSet = true

	case framer.MPEG2Extension:
		info.IsParamSet = true

	case framer.MPEG2Picture:
		if ps.MPEG2Seq == nil {
			return info, missingParamSet("sequence header", 0)
		}
		ph, err := ParseMPEG2PictureHeader(body, base+1)
		if err != nil {
			return info, err
		}
		info.IsFrame = true
		info.ShowFrame = true
		info.IsKeyframe = ph.CodingType == mpeg2PictureI
		info.FrameType = mpeg2FrameType(ph.CodingType)

	case framer.MPEG2Slice:
		c := bitio.NewCursorAt(body, base+1)
		quantiser, err := c.ReadBits(5)
		if err != nil {
			return info, err
		}
		if err := info.setQP(units.CodecMPEG2, int(quantiser)); err != nil {
			return info, err
		}
	}
	return info, nil
}
