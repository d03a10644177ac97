package codec

import (
	"github.com/framelens/framelens/internal/bitio"
	"github.com/framelens/framelens/internal/framer"
	"github.com/framelens/framelens/internal/units"
)

// AV1 frame types, AV1 spec 6.8.2.
const (
	av1KeyFrame       = 0
	av1InterFrame     = 1
	av1IntraOnlyFrame = 2
	av1SwitchFrame    = 3
)

const (
	av1SelectScreenContentTools = 2
	av1SelectIntegerMV          = 2
	av1PrimaryRefNone           = 7
	av1NumRefFrames             = 8
	av1RefsPerFrame             = 7
)

func av1OBUTypeName(t uint8) string {
	switch t {
	case framer.OBUSequenceHeader:
		return "sequence-header"
	case framer.OBUTemporalDelimiter:
		return "temporal-delimiter"
	case framer.OBUFrameHeader:
		return "frame-header"
	case framer.OBUTileGroup:
		return "tile-group"
	case framer.OBUMetadata:
		return "metadata"
	case framer.OBUFrame:
		return "frame"
	case framer.OBURedundantFrameHeader:
		return "redundant-frame-header"
	case framer.OBUTileList:
		return "tile-list"
	case framer.OBUPadding:
		return "padding"
	default:
		return "obu"
	}
}

// AV1OperatingPoint is one operating point advertised by a sequence
// header, as much of it as frame headers later need.
type AV1OperatingPoint struct {
	Idc                 uint32
	SeqLevelIdx         byte
	SeqTier             byte
	DecoderModelPresent bool
}

// AV1SequenceHeader holds a parsed AV1 sequence header OBU.
type AV1SequenceHeader struct {
	Profile             int
	StillPicture        bool
	ReducedStillPicture bool

	OperatingPoints []AV1OperatingPoint

	DecoderModelInfoPresent     bool
	EqualPictureInterval        bool
	BufferDelayLength           int
	BufferRemovalTimeLength     int
	FramePresentationTimeLength int

	FrameWidthBits  int
	FrameHeightBits int
	MaxWidth        int
	MaxHeight       int

	FrameIDNumbersPresent bool
	DeltaFrameIDLength    int
	FrameIDLength         int

	Use128x128Superblock bool
	EnableOrderHint      bool
	OrderHintBits        int
	ForceScreenContent   int
	ForceIntegerMV       int
	EnableSuperres       bool
	EnableCDEF           bool
	EnableRestoration    bool

	BitDepth         int
	MonoChrome       bool
	SubsamplingX     bool
	SubsamplingY     bool
	FilmGrainPresent bool
}

// ParseAV1SequenceHeader parses a sequence header OBU payload (the bytes
// after the OBU header and size field).
func ParseAV1SequenceHeader(payload []byte, base int64) (*AV1SequenceHeader, error) {
	c := bitio.NewCursorAt(payload, base)
	seq := &AV1SequenceHeader{}

	profile, err := c.ReadBits(3)
	if err != nil {
		return nil, err
	}
	if profile > 2 {
		return nil, &bitio.ParseError{Offset: c.Offset(), Msg: "seq_profile out of range"}
	}
	seq.Profile = int(profile)

	still, err := c.ReadBit()
	if err != nil {
		return nil, err
	}
	seq.StillPicture = still

	reduced, err := c.ReadBit()
	if err != nil {
		return nil, err
	}
	seq.ReducedStillPicture = reduced

	if reduced {
		level, err := c.ReadBits(5)
		if err != nil {
			return nil, err
		}
		seq.OperatingPoints = []AV1OperatingPoint{{SeqLevelIdx: byte(level)}}
	} else {
		timingPresent, err := c.ReadBit()
		if err != nil {
			return nil, err
		}
		if timingPresent {
			if err := c.SkipBits(64); err != nil { // num_units_in_display_tick, time_scale
				return nil, err
			}
			equalInterval, err := c.ReadBit()
			if err != nil {
				return nil, err
			}
			seq.EqualPictureInterval = equalInterval
			if equalInterval {
				if _, err := readUVLC(c); err != nil { // num_ticks_per_picture_minus1
					return nil, err
				}
			}
			modelPresent, err := c.ReadBit()
			if err != nil {
				return nil, err
			}
			seq.DecoderModelInfoPresent = modelPresent
			if modelPresent {
				bdl, err := c.ReadBits(5)
				if err != nil {
					return nil, err
				}
				seq.BufferDelayLength = int(bdl) + 1
				if err := c.SkipBits(32); err != nil { // num_units_in_decoding_tick
					return nil, err
				}
				brt, err := c.ReadBits(5)
				if err != nil {
					return nil, err
				}
				seq.BufferRemovalTimeLength = int(brt) + 1
				fpt, err := c.ReadBits(5)
				if err != nil {
					return nil, err
				}
				seq.FramePresentationTimeLength = int(fpt) + 1
			}
		}

		initialDelayPresent, err := c.ReadBit()
		if err != nil {
			return nil, err
		}
		opCount, err := c.ReadBits(5)
		if err != nil {
			return nil, err
		}
		seq.OperatingPoints = make([]AV1OperatingPoint, opCount+1)
		for i := range seq.OperatingPoints {
			op := &seq.OperatingPoints[i]
			idc, err := c.ReadBits(12)
			if err != nil {
				return nil, err
			}
			op.Idc = uint32(idc)
			level, err := c.ReadBits(5)
			if err != nil {
				return nil, err
			}
			op.SeqLevelIdx = byte(level)
			if op.SeqLevelIdx > 7 {
				tier, err := c.ReadBits(1)
				if err != nil {
					return nil, err
				}
				op.SeqTier = byte(tier)
			}
			if seq.DecoderModelInfoPresent {
				modelForOp, err := c.ReadBit()
				if err != nil {
					return nil, err
				}
				op.DecoderModelPresent = modelForOp
				if modelForOp {
					if err := c.SkipBits(2*seq.BufferDelayLength + 1); err != nil {
						return nil, err
					}
				}
			}
			if initialDelayPresent {
				delayForOp, err := c.ReadBit()
				if err != nil {
					return nil, err
				}
				if delayForOp {
					if err := c.SkipBits(4); err != nil { // initial_display_delay_minus1
						return nil, err
					}
				}
			}
		}
	}

	wBits, err := c.ReadBits(4)
	if err != nil {
		return nil, err
	}
	hBits, err := c.ReadBits(4)
	if err != nil {
		return nil, err
	}
	seq.FrameWidthBits = int(wBits) + 1
	seq.FrameHeightBits = int(hBits) + 1

	maxW, err := c.ReadBits(seq.FrameWidthBits)
	if err != nil {
		return nil, err
	}
	maxH, err := c.ReadBits(seq.FrameHeightBits)
	if err != nil {
		return nil, err
	}
	seq.MaxWidth = int(maxW) + 1
	seq.MaxHeight = int(maxH) + 1

	if !reduced {
		idPresent, err := c.ReadBit()
		if err != nil {
			return nil, err
		}
		seq.FrameIDNumbersPresent = idPresent
		if idPresent {
			deltaLen, err := c.ReadBits(4)
			if err != nil {
				return nil, err
			}
			addLen, err := c.ReadBits(3)
			if err != nil {
				return nil, err
			}
			seq.DeltaFrameIDLength = int(deltaLen) + 2
			seq.FrameIDLength = seq.DeltaFrameIDLength + int(addLen) + 1
		}
	}

	sb128, err := c.ReadBit()
	if err != nil {
		return nil, err
	}
	seq.Use128x128Superblock = sb128
	if err := c.SkipBits(2); err != nil { // enable_filter_intra, enable_intra_edge_filter
		return nil, err
	}

	if reduced {
		seq.ForceScreenContent = av1SelectScreenContentTools
		seq.ForceIntegerMV = av1SelectIntegerMV
	} else {
		if err := c.SkipBits(4); err != nil { // interintra, masked_compound, warped_motion, dual_filter
			return nil, err
		}
		orderHint, err := c.ReadBit()
		if err != nil {
			return nil, err
		}
		seq.EnableOrderHint = orderHint
		if orderHint {
			if err := c.SkipBits(2); err != nil { // enable_jnt_comp, enable_ref_frame_mvs
				return nil, err
			}
		}

		chooseScreenContent, err := c.ReadBit()
		if err != nil {
			return nil, err
		}
		if chooseScreenContent {
			seq.ForceScreenContent = av1SelectScreenContentTools
		} else {
			force, err := c.ReadBits(1)
			if err != nil {
				return nil, err
			}
			seq.ForceScreenContent = int(force)
		}
		if seq.ForceScreenContent > 0 {
			chooseIntegerMV, err := c.ReadBit()
			if err != nil {
				return nil, err
			}
			if chooseIntegerMV {
				seq.ForceIntegerMV = av1SelectIntegerMV
			} else {
				force, err := c.ReadBits(1)
				if err != nil {
					return nil, err
				}
				seq.ForceIntegerMV = int(force)
			}
		} else {
			seq.ForceIntegerMV = av1SelectIntegerMV
		}

		if orderHint {
			bits, err := c.ReadBits(3)
			if err != nil {
				return nil, err
			}
			seq.OrderHintBits = int(bits) + 1
		}
	}

	superres, err := c.ReadBit()
	if err != nil {
		return nil, err
	}
	seq.EnableSuperres = superres
	cdef, err := c.ReadBit()
	if err != nil {
		return nil, err
	}
	seq.EnableCDEF = cdef
	restoration, err := c.ReadBit()
	if err != nil {
		return nil, err
	}
	seq.EnableRestoration = restoration

	if err := parseAV1ColorConfig(c, seq); err != nil {
		return nil, err
	}

	filmGrain, err := c.ReadBit()
	if err != nil {
		return nil, err
	}
	seq.FilmGrainPresent = filmGrain

	return seq, nil
}

func parseAV1ColorConfig(c *bitio.Cursor, seq *AV1SequenceHeader) error {
	highBitdepth, err := c.ReadBit()
	if err != nil {
		return err
	}
	seq.BitDepth = 8
	if seq.Profile == 2 && highBitdepth {
		twelveBit, err := c.ReadBit()
		if err != nil {
			return err
		}
		if twelveBit {
			seq.BitDepth = 12
		} else {
			seq.BitDepth = 10
		}
	} else if highBitdepth {
		seq.BitDepth = 10
	}

	if seq.Profile != 1 {
		mono, err := c.ReadBit()
		if err != nil {
			return err
		}
		seq.MonoChrome = mono
	}

	descPresent, err := c.ReadBit()
	if err != nil {
		return err
	}
	var cp, tc, mc uint64 = 2, 2, 2 // unspecified
	if descPresent {
		if cp, err = c.ReadBits(8); err != nil {
			return err
		}
		if tc, err = c.ReadBits(8); err != nil {
			return err
		}
		if mc, err = c.ReadBits(8); err != nil {
			return err
		}
	}

	if seq.MonoChrome {
		if _, err := c.ReadBit(); err != nil { // color_range
			return err
		}
		seq.SubsamplingX = true
		seq.SubsamplingY = true
		return nil
	}

	if cp == 1 && tc == 13 && mc == 0 { // sRGB
		seq.SubsamplingX = false
		seq.SubsamplingY = false
	} else {
		if _, err := c.ReadBit(); err != nil { // color_range
			return err
		}
		switch {
		case seq.Profile == 0:
			seq.SubsamplingX = true
			seq.SubsamplingY = true
		case seq.Profile == 1:
			seq.SubsamplingX = false
			seq.SubsamplingY = false
		default:
			if seq.BitDepth == 12 {
				sx, err := c.ReadBit()
				if err != nil {
					return err
				}
				seq.SubsamplingX = sx
				if sx {
					sy, err := c.ReadBit()
					if err != nil {
						return err
					}
					seq.SubsamplingY = sy
				}
			} else {
				seq.SubsamplingX = true
				seq.SubsamplingY = false
			}
		}
		if seq.SubsamplingX && seq.SubsamplingY {
			if err := c.SkipBits(2); err != nil { // chroma_sample_position
				return err
			}
		}
	}

	_, err = c.ReadBit() // separate_uv_delta_q
	return err
}

// readUVLC reads an AV1 uvlc() value: Exp-Golomb with 32-bit values and a
// distinct escape for the all-ones prefix.
func readUVLC(c *bitio.Cursor) (uint64, error) {
	zeros := 0
	for {
		b, err := c.ReadBit()
		if err != nil {
			return 0, err
		}
		if b {
			break
		}
		zeros++
		if zeros > 32 {
			return 0, &bitio.ParseError{Offset: c.Offset(), Msg: "uvlc prefix too long"}
		}
	}
	if zeros == 32 {
		return (1 << 32) - 1, nil
	}
	if zeros == 0 {
		return 0, nil
	}
	rest, err := c.ReadBits(zeros)
	if err != nil {
		return 0, err
	}
	return (1 << zeros) - 1 + rest, nil
}

// AV1FrameHeader is the head of an AV1 uncompressed frame header,
// parsed through the reference frame signaling.
type AV1FrameHeader struct {
	ShowExisting   bool
	FrameToShow    int
	FrameType      int
	ShowFrame      bool
	ErrorResilient bool
	OrderHint      uint32
	RefreshFlags   byte
	RefFrameIdx    []uint8
	Width          int
	Height         int
}

// ParseAV1FrameHeader parses the uncompressed header of a frame or
// frame header OBU payload. temporalID and spatialID come from the OBU
// extension header and scope decoder model fields to operating points.
func ParseAV1FrameHeader(payload []byte, base int64, seq *AV1SequenceHeader, temporalID, spatialID int) (*AV1FrameHeader, error) {
	c := bitio.NewCursorAt(payload, base)
	fh := &AV1FrameHeader{}

	if seq.ReducedStillPicture {
		fh.FrameType = av1KeyFrame
		fh.ShowFrame = true
		fh.RefreshFlags = 0xFF
		fh.Width = seq.MaxWidth
		fh.Height = seq.MaxHeight
		return fh, nil
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
		if seq.DecoderModelInfoPresent && !seq.EqualPictureInterval {
			if err := c.SkipBits(seq.FramePresentationTimeLength); err != nil {
				return nil, err
			}
		}
		if seq.FrameIDNumbersPresent {
			if err := c.SkipBits(seq.FrameIDLength); err != nil { // display_frame_id
				return nil, err
			}
		}
		return fh, nil
	}

	frameType, err := c.ReadBits(2)
	if err != nil {
		return nil, err
	}
	fh.FrameType = int(frameType)
	isIntra := fh.FrameType == av1KeyFrame || fh.FrameType == av1IntraOnlyFrame

	show, err := c.ReadBit()
	if err != nil {
		return nil, err
	}
	fh.ShowFrame = show
	if show && seq.DecoderModelInfoPresent && !seq.EqualPictureInterval {
		if err := c.SkipBits(seq.FramePresentationTimeLength); err != nil {
			return nil, err
		}
	}
	if !show {
		if _, err := c.ReadBit(); err != nil { // showable_frame
			return nil, err
		}
	}

	if fh.FrameType == av1SwitchFrame || (fh.FrameType == av1KeyFrame && show) {
		fh.ErrorResilient = true
	} else {
		er, err := c.ReadBit()
		if err != nil {
			return nil, err
		}
		fh.ErrorResilient = er
	}

	if _, err := c.ReadBit(); err != nil { // disable_cdf_update
		return nil, err
	}

	allowScreenContent := seq.ForceScreenContent != 0
	if seq.ForceScreenContent == av1SelectScreenContentTools {
		asc, err := c.ReadBit()
		if err != nil {
			return nil, err
		}
		allowScreenContent = asc
	}
	if allowScreenContent && !isIntra && seq.ForceIntegerMV == av1SelectIntegerMV {
		if _, err := c.ReadBit(); err != nil { // force_integer_mv
			return nil, err
		}
	}

	if seq.FrameIDNumbersPresent {
		if err := c.SkipBits(seq.FrameIDLength); err != nil { // current_frame_id
			return nil, err
		}
	}

	sizeOverride := false
	if fh.FrameType == av1SwitchFrame {
		sizeOverride = true
	} else {
		so, err := c.ReadBit()
		if err != nil {
			return nil, err
		}
		sizeOverride = so
	}

	if seq.EnableOrderHint {
		hint, err := c.ReadBits(seq.OrderHintBits)
		if err != nil {
			return nil, err
		}
		fh.OrderHint = uint32(hint)
	}

	if !isIntra && !fh.ErrorResilient {
		if _, err := c.ReadBits(3); err != nil { // primary_ref_frame
			return nil, err
		}
	}

	if seq.DecoderModelInfoPresent {
		brtPresent, err := c.ReadBit()
		if err != nil {
			return nil, err
		}
		if brtPresent {
			for _, op := range seq.OperatingPoints {
				if !op.DecoderModelPresent {
					continue
				}
				inTemporal := op.Idc>>uint(temporalID)&1 != 0
				inSpatial := op.Idc>>uint(spatialID+8)&1 != 0
				if op.Idc == 0 || (inTemporal && inSpatial) {
					if err := c.SkipBits(seq.BufferRemovalTimeLength); err != nil {
						return nil, err
					}
				}
			}
		}
	}

	if fh.FrameType == av1SwitchFrame || (fh.FrameType == av1KeyFrame && show) {
		fh.RefreshFlags = 0xFF
	} else {
		flags, err := c.ReadBits(8)
		if err != nil {
			return nil, err
		}
		fh.RefreshFlags = byte(flags)
	}

	if (!isIntra || fh.RefreshFlags != 0xFF) && fh.ErrorResilient && seq.EnableOrderHint {
		if err := c.SkipBits(av1NumRefFrames * seq.OrderHintBits); err != nil { // ref_order_hint
			return nil, err
		}
	}

	if isIntra {
		if err := parseAV1FrameSize(c, seq, fh, sizeOverride); err != nil {
			return nil, err
		}
		return fh, nil
	}

	shortSignaling := false
	if seq.EnableOrderHint {
		ss, err := c.ReadBit()
		if err != nil {
			return nil, err
		}
		shortSignaling = ss
		if ss {
			if err := c.SkipBits(6); err != nil { // last_frame_idx, gold_frame_idx
				return nil, err
			}
		}
	}
	fh.RefFrameIdx = make([]uint8, 0, av1RefsPerFrame)
	for i := 0; i < av1RefsPerFrame; i++ {
		if !shortSignaling {
			idx, err := c.ReadBits(3)
			if err != nil {
				return nil, err
			}
			fh.RefFrameIdx = append(fh.RefFrameIdx, uint8(idx))
		}
		if seq.FrameIDNumbersPresent {
			if err := c.SkipBits(seq.DeltaFrameIDLength); err != nil { // delta_frame_id_minus1
				return nil, err
			}
		}
	}
	return fh, nil
}

func parseAV1FrameSize(c *bitio.Cursor, seq *AV1SequenceHeader, fh *AV1FrameHeader, override bool) error {
	if override {
		w, err := c.ReadBits(seq.FrameWidthBits)
		if err != nil {
			return err
		}
		h, err := c.ReadBits(seq.FrameHeightBits)
		if err != nil {
			return err
		}
		fh.Width = int(w) + 1
		fh.Height = int(h) + 1
	} else {
		fh.Width = seq.MaxWidth
		fh.Height = seq.MaxHeight
	}
	if seq.EnableSuperres {
		useSuperres, err := c.ReadBit()
		if err != nil {
			return err
		}
		if useSuperres {
			if err := c.SkipBits(3); err != nil { // coded_denom
				return err
			}
		}
	}
	renderDifferent, err := c.ReadBit()
	if err != nil {
		return err
	}
	if renderDifferent {
		if err := c.SkipBits(32); err != nil { // render_width_minus1, render_height_minus1
			return err
		}
	}
	return nil
}

func av1FrameType(t int) units.FrameType {
	switch t {
	case av1KeyFrame:
		return units.FrameKey
	case av1InterFrame:
		return units.FrameInter
	case av1IntraOnlyFrame:
		return units.FrameIntraOnly
	default:
		return units.FrameSwitch
	}
}

// parseAV1Unit classifies one OBU, parsing sequence headers into the
// session cache and frame headers against it.
func parseAV1Unit(obu []byte, base int64, ps *ParamSets) (UnitInfo, error) {
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
		seq, err := ParseAV1SequenceHeader(payload, payloadBase)
		if err != nil {
			return info, err
		}
		ps.AV1Seq = seq
		info.IsParamSet = true

	case framer.OBUFrame, framer.OBUFrameHeader:
		if ps.AV1Seq == nil {
			return info, missingParamSet("sequence header", 0)
		}
		fh, err := ParseAV1FrameHeader(payload, payloadBase, ps.AV1Seq, int(hdr.TemporalID), int(hdr.SpatialID))
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
		info.RefSlots = fh.RefFrameIdx
	}
	return info, nil
}
