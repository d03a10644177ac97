package codec

import (
	"github.com/framelens/framelens/internal/bitio"
	"github.com/framelens/framelens/internal/units"
)

const (
	vp9SyncCode     = 0x498342
	vp9CSRGB        = 7
	vp9RefsPerFrame = 3
)

// VP9FrameHeader is a parsed VP9 uncompressed frame header, through the
// base quantizer index.
type VP9FrameHeader struct {
	Profile      int
	ShowExisting bool
	FrameToShow  int

	IsKey          bool
	ShowFrame      bool
	ErrorResilient bool
	IntraOnly      bool

	Width  int
	Height int

	RefreshFlags byte
	RefFrameIdx  []uint8

	BaseQIdx int
	HasQP    bool
}

func vp9ReadColorConfig(c *bitio.Cursor, profile int) error {
	if profile >= 2 {
		if _, err := c.ReadBit(); err != nil { // ten_or_twelve_bit
			return err
		}
	}
	colorSpace, err := c.ReadBits(3)
	if err != nil {
		return err
	}
	if colorSpace != vp9CSRGB {
		if _, err := c.ReadBit(); err != nil { // color_range
			return err
		}
		if profile == 1 || profile == 3 {
			if err := c.SkipBits(3); err != nil { // subsampling_x, subsampling_y, reserved
				return err
			}
		}
	} else if profile == 1 || profile == 3 {
		if _, err := c.ReadBit(); err != nil { // reserved
			return err
		}
	}
	return nil
}

func vp9ReadFrameSize(c *bitio.Cursor, fh *VP9FrameHeader) error {
	w, err := c.ReadBits(16)
	if err != nil {
		return err
	}
	h, err := c.ReadBits(16)
	if err != nil {
		return err
	}
	fh.Width = int(w) + 1
	fh.Height = int(h) + 1
	return vp9ReadRenderSize(c)
}

func vp9ReadRenderSize(c *bitio.Cursor) error {
	different, err := c.ReadBit()
	if err != nil {
		return err
	}
	if different {
		return c.SkipBits(32) // render_width_minus1, render_height_minus1
	}
	return nil
}

func vp9CheckSyncCode(c *bitio.Cursor) error {
	sync, err := c.ReadBits(24)
	if err != nil {
		return err
	}
	if sync != vp9SyncCode {
		return &bitio.ParseError{Offset: c.Offset(), Msg: "VP9 frame sync code mismatch"}
	}
	return nil
}

// skips a signed literal: n magnitude bits plus a sign bit.
func vp9SkipSigned(c *bitio.Cursor, n int) error {
	return c.SkipBits(n + 1)
}

func vp9SkipLoopFilterParams(c *bitio.Cursor) error {
	if err := c.SkipBits(9); err != nil { // filter level (6) + sharpness (3)
		return err
	}
	deltaEnabled, err := c.ReadBit()
	if err != nil {
		return err
	}
	if !deltaEnabled {
		return nil
	}
	deltaUpdate, err := c.ReadBit()
	if err != nil {
		return err
	}
	if !deltaUpdate {
		return nil
	}
	for i := 0; i < 4+2; i++ { // ref deltas + mode deltas
		update, err := c.ReadBit()
		if err != nil {
			return err
		}
		if update {
			if err := vp9SkipSigned(c, 6); err != nil {
				return err
			}
		}
	}
	return nil
}

// ParseVP9FrameHeader parses one VP9 frame's uncompressed header through
// the base quantizer index. The input is a single frame's payload; pull
// frames out of a superframe with the framer package first.
func ParseVP9FrameHeader(payload []byte, base int64) (*VP9FrameHeader, error) {
	c := bitio.NewCursorAt(payload, base)
	fh := &VP9FrameHeader{}

	marker, err := c.ReadBits(2)
	if err != nil {
		return nil, err
	}
	if marker != 2 {
		return nil, &bitio.ParseError{Offset: base, Msg: "VP9 frame marker mismatch"}
	}

	lowBit, err := c.ReadBits(1)
	if err != nil {
		return nil, err
	}
	highBit, err := c.ReadBits(1)
	if err != nil {
		return nil, err
	}
	fh.Profile = int(highBit<<1 | lowBit)
	if fh.Profile == 3 {
		if _, err := c.ReadBit(); err != nil { // reserved
			return nil, err
		}
	}

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

	frameType, err := c.ReadBits(1)
	if err != nil {
		return nil, err
	}
	fh.IsKey = frameType == 0

	show, err := c.ReadBit()
	if err != nil {
		return nil, err
	}
	fh.ShowFrame = show

	errorResilient, err := c.ReadBit()
	if err != nil {
		return nil, err
	}
	fh.ErrorResilient = errorResilient

	if fh.IsKey {
		if err := vp9CheckSyncCode(c); err != nil {
			return nil, err
		}
		if err := vp9ReadColorConfig(c, fh.Profile); err != nil {
			return nil, err
		}
		if err := vp9ReadFrameSize(c, fh); err != nil {
			return nil, err
		}
		fh.RefreshFlags = 0xFF
	} else {
		if !show {
			intraOnly, err := c.ReadBit()
			if err != nil {
				return nil, err
			}
			fh.IntraOnly = intraOnly
		}
		if !errorResilient {
			if err := c.SkipBits(2); err != nil { // reset_frame_context
				return nil, err
			}
		}
		if fh.IntraOnly {
			if err := vp9CheckSyncCode(c); err != nil {
				return nil, err
			}
			if fh.Profile > 0 {
				if err := vp9ReadColorConfig(c, fh.Profile); err != nil {
					return nil, err
				}
			}
			refresh, err := c.ReadBits(8)
			if err != nil {
				return nil, err
			}
			fh.RefreshFlags = byte(refresh)
			if err := vp9ReadFrameSize(c, fh); err != nil {
				return nil, err
			}
		} else {
			refresh, err := c.ReadBits(8)
			if err != nil {
				return nil, err
			}
			fh.RefreshFlags = byte(refresh)

			fh.RefFrameIdx = make([]uint8, 0, vp9RefsPerFrame)
			for i := 0; i < vp9RefsPerFrame; i++ {
				idx, err := c.ReadBits(3)
				if err != nil {
					return nil, err
				}
				fh.RefFrameIdx = append(fh.RefFrameIdx, uint8(idx))
				if _, err := c.ReadBit(); err != nil { // ref_frame_sign_bias
					return nil, err
				}
			}

			foundRef := false
			for i := 0; i < vp9RefsPerFrame; i++ {
				found, err := c.ReadBit()
				if err != nil {
					return nil, err
				}
				if found {
					foundRef = true
					break
				}
			}
			if foundRef {
				if err := vp9ReadRenderSize(c); err != nil {
					return nil, err
				}
			} else {
				if err := vp9ReadFrameSize(c, fh); err != nil {
					return nil, err
				}
			}

			if _, err := c.ReadBit(); err != nil { // allow_high_precision_mv
				return nil, err
			}
			switchable, err := c.ReadBit()
			if err != nil {
				return nil, err
			}
			if !switchable {
				if err := c.SkipBits(2); err != nil { // raw_interpolation_filter
					return nil, err
				}
			}
		}
	}

	if !fh.ErrorResilient {
		if err := c.SkipBits(2); err != nil { // refresh_frame_context, frame_parallel_decoding
			return nil, err
		}
	}
	if err := c.SkipBits(2); err != nil { // frame_context_idx
		return nil, err
	}
	if err := vp9SkipLoopFilterParams(c); err != nil {
		return nil, err
	}

	qIdx, err := c.ReadBits(8)
	if err != nil {
		return nil, err
	}
	fh.BaseQIdx = int(qIdx)
	fh.HasQP = true

	return fh, nil
}

// parseVP9Unit classifies one VP9 frame payload. VP9 carries no side
// parameter sets; everything lives in the frame header.
func parseVP9Unit(payload []byte, base int64) (UnitInfo, error) {
	fh, err := ParseVP9FrameHeader(payload, base)
	if err != nil {
		return UnitInfo{}, err
	}
	info := UnitInfo{}
	switch {
	case fh.ShowExisting:
		info.TypeName = "show-existing"
		info.ShowExisting = true
		info.RefSlots = []uint8{uint8(fh.FrameToShow)}
		return info, nil
	case fh.IsKey:
		info.TypeName = "key-frame"
		info.FrameType = units.FrameKey
		info.IsKeyframe = true
	case fh.IntraOnly:
		info.TypeName = "intra-only-frame"
		info.FrameType = units.FrameIntraOnly
	default:
		info.TypeID = 1
		info.TypeName = "inter-frame"
		info.FrameType = units.FrameInter
	}
	info.IsFrame = true
	info.ShowFrame = fh.ShowFrame
	info.RefSlots = fh.RefFrameIdx
	if fh.HasQP {
		if err := info.setQP(units.CodecVP9, fh.BaseQIdx); err != nil {
			return info, err
		}
	}
	return info, nil
}
