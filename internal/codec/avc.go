package codec

import (
	"github.com/framelens/framelens/internal/bitio"
	"github.com/framelens/framelens/internal/framer"
	"github.com/framelens/framelens/internal/units"
)

// H.264 NAL unit types, ITU-T H.264 Table 7-1.
const (
	AVCNALSlice      = 1
	AVCNALSliceDPA   = 2
	AVCNALSliceDPB   = 3
	AVCNALSliceDPC   = 4
	AVCNALIDR        = 5
	AVCNALSEI        = 6
	AVCNALSPS        = 7
	AVCNALPPS        = 8
	AVCNALAUD        = 9
	AVCNALEndSeq     = 10
	AVCNALEndStream  = 11
	AVCNALFillerData = 12
)

// AVCNALType extracts the 5-bit NAL type from the header byte.
func AVCNALType(b byte) byte { return b & 0x1F }

// avcNALTypeName returns a short name for a NAL type.
func avcNALTypeName(t byte) string {
	switch t {
	case AVCNALSlice:
		return "slice"
	case AVCNALSliceDPA, AVCNALSliceDPB, AVCNALSliceDPC:
		return "slice-partition"
	case AVCNALIDR:
		return "idr-slice"
	case AVCNALSEI:
		return "sei"
	case AVCNALSPS:
		return "sps"
	case AVCNALPPS:
		return "pps"
	case AVCNALAUD:
		return "aud"
	case AVCNALFillerData:
		return "filler"
	default:
		return "nal"
	}
}

// AVCSPS holds the fields of an H.264 Sequence Parameter Set that later
// slice headers depend on, plus the derived display resolution.
type AVCSPS struct {
	ID              uint32
	ProfileIDC      byte
	ConstraintFlags byte
	LevelIDC        byte

	ChromaFormatIDC     uint32
	SeparateColourPlane bool

	Log2MaxFrameNum         int
	PicOrderCntType         uint32
	Log2MaxPicOrderCntLsb   int
	DeltaPicOrderAlwaysZero bool
	MaxNumRefFrames         uint32
	FrameMbsOnly            bool

	Width  int
	Height int
}

// chromaArrayType per H.264 7.4.2.1.1.
func (s *AVCSPS) chromaArrayType() uint32 {
	if s.SeparateColourPlane {
		return 0
	}
	return s.ChromaFormatIDC
}

var avcHighProfiles = map[uint64]bool{
	100: true, 110: true, 122: true, 244: true, 44: true, 83: true,
	86: true, 118: true, 128: true, 138: true, 139: true, 134: true,
}

func skipScalingList(c *bitio.Cursor, size int) error {
	lastScale := 8
	nextScale := 8
	for j := 0; j < size; j++ {
		if nextScale != 0 {
			delta, err := c.ReadSE()
			if err != nil {
				return err
			}
			nextScale = (lastScale + int(delta) + 256) % 256
		}
		if nextScale != 0 {
			lastScale = nextScale
		}
	}
	return nil
}

// ParseAVCSPS parses an H.264 SPS NAL unit. The input is the raw NAL data
// including the header byte, without the start code.
func ParseAVCSPS(nalu []byte, base int64) (*AVCSPS, error) {
	if len(nalu) < 4 {
		return nil, &bitio.EOFError{Offset: base + int64(len(nalu))}
	}

	rbsp := framer.RemoveEmulationPrevention(nalu[1:])
	c := bitio.NewCursorAt(rbsp, base+1)

	profileIDC, err := c.ReadBits(8)
	if err != nil {
		return nil, err
	}
	constraintFlags, err := c.ReadBits(8)
	if err != nil {
		return nil, err
	}
	levelIDC, err := c.ReadBits(8)
	if err != nil {
		return nil, err
	}
	spsID, err := c.ReadUE()
	if err != nil {
		return nil, err
	}

	sps := &AVCSPS{
		ID:              spsID,
		ProfileIDC:      byte(profileIDC),
		ConstraintFlags: byte(constraintFlags),
		LevelIDC:        byte(levelIDC),
		ChromaFormatIDC: 1,
	}

	if avcHighProfiles[profileIDC] {
		sps.ChromaFormatIDC, err = c.ReadUE()
		if err != nil {
			return nil, err
		}
		if sps.ChromaFormatIDC == 3 {
			sep, err := c.ReadBit()
			if err != nil {
				return nil, err
			}
			sps.SeparateColourPlane = sep
		}
		if _, err := c.ReadUE(); err != nil { // bit_depth_luma_minus8
			return nil, err
		}
		if _, err := c.ReadUE(); err != nil { // bit_depth_chroma_minus8
			return nil, err
		}
		if _, err := c.ReadBit(); err != nil { // qpprime_y_zero_transform_bypass
			return nil, err
		}
		scalingPresent, err := c.ReadBit()
		if err != nil {
			return nil, err
		}
		if scalingPresent {
			limit := 8
			if sps.ChromaFormatIDC == 3 {
				limit = 12
			}
			for i := 0; i < limit; i++ {
				flag, err := c.ReadBit()
				if err != nil {
					return nil, err
				}
				if flag {
					size := 16
					if i >= 6 {
						size = 64
					}
					if err := skipScalingList(c, size); err != nil {
						return nil, err
					}
				}
			}
		}
	}

	log2MaxFrameNum, err := c.ReadUE()
	if err != nil {
		return nil, err
	}
	if log2MaxFrameNum > 12 {
		return nil, &bitio.ParseError{Offset: c.Offset(), Msg: "log2_max_frame_num out of range"}
	}
	sps.Log2MaxFrameNum = int(log2MaxFrameNum) + 4

	sps.PicOrderCntType, err = c.ReadUE()
	if err != nil {
		return nil, err
	}
	switch sps.PicOrderCntType {
	case 0:
		log2MaxPoc, err := c.ReadUE()
		if err != nil {
			return nil, err
		}
		if log2MaxPoc > 12 {
			return nil, &bitio.ParseError{Offset: c.Offset(), Msg: "log2_max_pic_order_cnt_lsb out of range"}
		}
		sps.Log2MaxPicOrderCntLsb = int(log2MaxPoc) + 4
	case 1:
		deltaZero, err := c.ReadBit()
		if err != nil {
			return nil, err
		}
		sps.DeltaPicOrderAlwaysZero = deltaZero
		if _, err := c.ReadSE(); err != nil { // offset_for_non_ref_pic
			return nil, err
		}
		if _, err := c.ReadSE(); err != nil { // offset_for_top_to_bottom_field
			return nil, err
		}
		numRefFrames, err := c.ReadUE()
		if err != nil {
			return nil, err
		}
		if numRefFrames > 255 {
			return nil, &bitio.ParseError{Offset: c.Offset(), Msg: "num_ref_frames_in_pic_order_cnt_cycle out of range"}
		}
		for i := uint32(0); i < numRefFrames; i++ {
			if _, err := c.ReadSE(); err != nil {
				return nil, err
			}
		}
	}

	sps.MaxNumRefFrames, err = c.ReadUE()
	if err != nil {
		return nil, err
	}
	if _, err := c.ReadBit(); err != nil { // gaps_in_frame_num_value_allowed
		return nil, err
	}

	picWidthMbs, err := c.ReadUE()
	if err != nil {
		return nil, err
	}
	picHeightMapUnits, err := c.ReadUE()
	if err != nil {
		return nil, err
	}
	frameMbsOnly, err := c.ReadBit()
	if err != nil {
		return nil, err
	}
	sps.FrameMbsOnly = frameMbsOnly
	if !frameMbsOnly {
		if _, err := c.ReadBit(); err != nil { // mb_adaptive_frame_field
			return nil, err
		}
	}
	if _, err := c.ReadBit(); err != nil { // direct_8x8_inference
		return nil, err
	}

	var cropLeft, cropRight, cropTop, cropBottom uint32
	cropping, err := c.ReadBit()
	if err != nil {
		return nil, err
	}
	if cropping {
		if cropLeft, err = c.ReadUE(); err != nil {
			return nil, err
		}
		if cropRight, err = c.ReadUE(); err != nil {
			return nil, err
		}
		if cropTop, err = c.ReadUE(); err != nil {
			return nil, err
		}
		if cropBottom, err = c.ReadUE(); err != nil {
			return nil, err
		}
	}

	var subWidthC, subHeightC uint32
	switch sps.chromaArrayType() {
	case 0, 3:
		subWidthC, subHeightC = 1, 1
	case 2:
		subWidthC, subHeightC = 2, 1
	default:
		subWidthC, subHeightC = 2, 2
	}

	heightMul := uint32(2)
	if frameMbsOnly {
		heightMul = 1
	}
	cropUnitX := subWidthC
	cropUnitY := subHeightC * heightMul

	sps.Width = int((picWidthMbs+1)*16 - cropUnitX*(cropLeft+cropRight))
	sps.Height = int((picHeightMapUnits+1)*16*heightMul - cropUnitY*(cropTop+cropBottom))
	if sps.Width <= 0 || sps.Height <= 0 {
		return nil, &bitio.ParseError{Offset: c.Offset(), Msg: "cropping exceeds coded size"}
	}

	return sps, nil
}

// AVCPPS holds the H.264 Picture Parameter Set fields slice headers need.
type AVCPPS struct {
	ID    uint32
	SPSID uint32

	EntropyCodingCABAC     bool
	BottomFieldPocPresent  bool
	NumRefIdxL0Default     uint32
	NumRefIdxL1Default     uint32
	WeightedPred           bool
	WeightedBipredIDC      uint32
	PicInitQP              int
	DeblockingControl      bool
	RedundantPicCntPresent bool
}

// ParseAVCPPS parses an H.264 PPS NAL unit.
func ParseAVCPPS(nalu []byte, base int64, ps *ParamSets) (*AVCPPS, error) {
	if len(nalu) < 2 {
		return nil, &bitio.EOFError{Offset: base + int64(len(nalu))}
	}

	rbsp := framer.RemoveEmulationPrevention(nalu[1:])
	c := bitio.NewCursorAt(rbsp, base+1)

	ppsID, err := c.ReadUE()
	if err != nil {
		return nil, err
	}
	spsID, err := c.ReadUE()
	if err != nil {
		return nil, err
	}
	if _, ok := ps.AVCSPS[spsID]; !ok {
		return nil, missingParamSet("SPS", spsID)
	}

	pps := &AVCPPS{ID: ppsID, SPSID: spsID}

	cabac, err := c.ReadBit()
	if err != nil {
		return nil, err
	}
	pps.EntropyCodingCABAC = cabac

	bottomPoc, err := c.ReadBit()
	if err != nil {
		return nil, err
	}
	pps.BottomFieldPocPresent = bottomPoc

	numSliceGroups, err := c.ReadUE()
	if err != nil {
		return nil, err
	}
	if numSliceGroups > 0 {
		if err := skipSliceGroupMap(c, numSliceGroups); err != nil {
			return nil, err
		}
	}

	if pps.NumRefIdxL0Default, err = c.ReadUE(); err != nil {
		return nil, err
	}
	pps.NumRefIdxL0Default++
	if pps.NumRefIdxL1Default, err = c.ReadUE(); err != nil {
		return nil, err
	}
	pps.NumRefIdxL1Default++

	wp, err := c.ReadBit()
	if err != nil {
		return nil, err
	}
	pps.WeightedPred = wp
	bipred, err := c.ReadBits(2)
	if err != nil {
		return nil, err
	}
	pps.WeightedBipredIDC = uint32(bipred)

	initQP, err := c.ReadSE()
	if err != nil {
		return nil, err
	}
	pps.PicInitQP = 26 + int(initQP)
	if _, err := c.ReadSE(); err != nil { // pic_init_qs_minus26
		return nil, err
	}
	if _, err := c.ReadSE(); err != nil { // chroma_qp_index_offset
		return nil, err
	}

	dbc, err := c.ReadBit()
	if err != nil {
		return nil, err
	}
	pps.DeblockingControl = dbc
	if _, err := c.ReadBit(); err != nil { // constrained_intra_pred
		return nil, err
	}
	redundant, err := c.ReadBit()
	if err != nil {
		return nil, err
	}
	pps.RedundantPicCntPresent = redundant

	return pps, nil
}

// skipSliceGroupMap consumes the FMO slice group map of a PPS with more
// than one slice group. Rare in practice but present in conforming
// baseline streams.
func skipSliceGroupMap(c *bitio.Cursor, numSliceGroupsMinus1 uint32) error {
	if numSliceGroupsMinus1 > 7 {
		return &bitio.ParseError{Offset: c.Offset(), Msg: "num_slice_groups out of range"}
	}
	mapType, err := c.ReadUE()
	if err != nil {
		return err
	}
	switch mapType {
	case 0:
		for i := uint32(0); i <= numSliceGroupsMinus1; i++ {
			if _, err := c.ReadUE(); err != nil {
				return err
			}
		}
	case 2:
		for i := uint32(0); i < numSliceGroupsMinus1; i++ {
			if _, err := c.ReadUE(); err != nil {
				return err
			}
			if _, err := c.ReadUE(); err != nil {
				return err
			}
		}
	case 3, 4, 5:
		if _, err := c.ReadBit(); err != nil {
			return err
		}
		if _, err := c.ReadUE(); err != nil {
			return err
		}
	case 6:
		picSize, err := c.ReadUE()
		if err != nil {
			return err
		}
		if picSize > 1<<20 {
			return &bitio.ParseError{Offset: c.Offset(), Msg: "slice group map size out of range"}
		}
		bits := 0
		for v := numSliceGroupsMinus1 + 1; v > 1; v = (v + 1) / 2 {
			bits++
		}
		for i := uint32(0); i <= picSize; i++ {
			if err := c.SkipBits(bits); err != nil {
				return err
			}
		}
	default:
		return &bitio.ParseError{Offset: c.Offset(), Msg: "slice_group_map_type out of range"}
	}
	return nil
}

// AVCSliceHeader is the parsed head of an H.264 coded slice.
type AVCSliceHeader struct {
	FirstMB   uint32
	SliceType uint32
	PPSID     uint32
	FrameNum  uint32
	FieldPic  bool
	QP        int
	HasQP     bool

	NumRefIdxL0 uint32
	NumRefIdxL1 uint32
}

// avcFrameType maps slice_type (mod 5) and IDR-ness to the normalized
// frame type.
func avcFrameType(sliceType uint32, idr bool) units.FrameType {
	switch sliceType % 5 {
	case 0:
		return units.FrameInter
	case 1:
		return units.FrameB
	case 2:
		if idr {
			return units.FrameKey
		}
		return units.FrameIntraOnly
	default: // SP, SI
		return units.FrameSwitch
	}
}

// ParseAVCSliceHeader parses an H.264 slice header through slice_qp_delta,
// resolving the PPS and SPS it references from the session caches.
func ParseAVCSliceHeader(nalu []byte, base int64, ps *ParamSets) (*AVCSliceHeader, error) {
	if len(nalu) < 2 {
		return nil, &bitio.EOFError{Offset: base + int64(len(nalu))}
	}
	nalRefIDC := nalu[0] >> 5 & 0x03
	nalType := AVCNALType(nalu[0])
	idr := nalType == AVCNALIDR

	rbsp := framer.RemoveEmulationPrevention(nalu[1:])
	c := bitio.NewCursorAt(rbsp, base+1)

	sh := &AVCSliceHeader{}

	var err error
	if sh.FirstMB, err = c.ReadUE(); err != nil {
		return nil, err
	}
	if sh.SliceType, err = c.ReadUE(); err != nil {
		return nil, err
	}
	if sh.SliceType > 9 {
		return nil, &bitio.ParseError{Offset: c.Offset(), Msg: "slice_type out of range"}
	}
	if sh.PPSID, err = c.ReadUE(); err != nil {
		return nil, err
	}

	pps, ok := ps.AVCPPS[sh.PPSID]
	if !ok {
		return nil, missingParamSet("PPS", sh.PPSID)
	}
	sps, ok := ps.AVCSPS[pps.SPSID]
	if !ok {
		return nil, missingParamSet("SPS", pps.SPSID)
	}

	if sps.SeparateColourPlane {
		if _, err := c.ReadBits(2); err != nil { // colour_plane_id
			return nil, err
		}
	}

	frameNum, err := c.ReadBits(sps.Log2MaxFrameNum)
	if err != nil {
		return nil, err
	}
	sh.FrameNum = uint32(frameNum)

	if !sps.FrameMbsOnly {
		fieldPic, err := c.ReadBit()
		if err != nil {
			return nil, err
		}
		sh.FieldPic = fieldPic
		if fieldPic {
			if _, err := c.ReadBit(); err != nil { // bottom_field_flag
				return nil, err
			}
		}
	}

	if idr {
		if _, err := c.ReadUE(); err != nil { // idr_pic_id
			return nil, err
		}
	}

	switch sps.PicOrderCntType {
	case 0:
		if _, err := c.ReadBits(sps.Log2MaxPicOrderCntLsb); err != nil {
			return nil, err
		}
		if pps.BottomFieldPocPresent && !sh.FieldPic {
			if _, err := c.ReadSE(); err != nil {
				return nil, err
			}
		}
	case 1:
		if !sps.DeltaPicOrderAlwaysZero {
			if _, err := c.ReadSE(); err != nil {
				return nil, err
			}
			if pps.BottomFieldPocPresent && !sh.FieldPic {
				if _, err := c.ReadSE(); err != nil {
					return nil, err
				}
			}
		}
	}

	if pps.RedundantPicCntPresent {
		if _, err := c.ReadUE(); err != nil {
			return nil, err
		}
	}

	st := sh.SliceType % 5
	isP := st == 0 || st == 3
	isB := st == 1

	if isB {
		if _, err := c.ReadBit(); err != nil { // direct_spatial_mv_pred
			return nil, err
		}
	}

	sh.NumRefIdxL0 = pps.NumRefIdxL0Default
	sh.NumRefIdxL1 = pps.NumRefIdxL1Default
	if isP || isB {
		override, err := c.ReadBit()
		if err != nil {
			return nil, err
		}
		if override {
			l0, err := c.ReadUE()
			if err != nil {
				return nil, err
			}
			sh.NumRefIdxL0 = l0 + 1
			if isB {
				l1, err := c.ReadUE()
				if err != nil {
					return nil, err
				}
				sh.NumRefIdxL1 = l1 + 1
			}
		}
	}
	if sh.NumRefIdxL0 > 32 || sh.NumRefIdxL1 > 32 {
		return nil, &bitio.ParseError{Offset: c.Offset(), Msg: "num_ref_idx_active out of range"}
	}

	if st != 2 && st != 4 { // not I, not SI
		if err := skipRefPicListModification(c); err != nil {
			return nil, err
		}
	}
	if isB {
		if err := skipRefPicListModification(c); err != nil {
			return nil, err
		}
	}

	if (pps.WeightedPred && isP) || (pps.WeightedBipredIDC == 1 && isB) {
		if err := skipPredWeightTable(c, sps, sh, isB); err != nil {
			return nil, err
		}
	}

	if nalRefIDC != 0 {
		if err := skipDecRefPicMarking(c, idr); err != nil {
			return nil, err
		}
	}

	if pps.EntropyCodingCABAC && st != 2 && st != 4 {
		cabacInit, err := c.ReadUE()
		if err != nil {
			return nil, err
		}
		if cabacInit > 2 {
			return nil, &bitio.ParseError{Offset: c.Offset(), Msg: "cabac_init_idc out of range"}
		}
	}

	qpDelta, err := c.ReadSE()
	if err != nil {
		return nil, err
	}
	sh.QP = pps.PicInitQP + int(qpDelta)
	sh.HasQP = true

	return sh, nil
}

func skipRefPicListModification(c *bitio.Cursor) error {
	flag, err := c.ReadBit()
	if err != nil {
		return err
	}
	if !flag {
		return nil
	}
	for i := 0; ; i++ {
		if i > 64 {
			return &bitio.ParseError{Offset: c.Offset(), Msg: "ref_pic_list_modification runaway"}
		}
		idc, err := c.ReadUE()
		if err != nil {
			return err
		}
		if idc == 3 {
			return nil
		}
		if idc > 3 {
			return &bitio.ParseError{Offset: c.Offset(), Msg: "modification_of_pic_nums_idc out of range"}
		}
		if _, err := c.ReadUE(); err != nil {
			return err
		}
	}
}

func skipPredWeightTable(c *bitio.Cursor, sps *AVCSPS, sh *AVCSliceHeader, isB bool) error {
	if _, err := c.ReadUE(); err != nil { // luma_log2_weight_denom
		return err
	}
	chroma := sps.chromaArrayType() != 0
	if chroma {
		if _, err := c.ReadUE(); err != nil { // chroma_log2_weight_denom
			return err
		}
	}
	lists := [][2]uint32{{sh.NumRefIdxL0, 0}}
	if isB {
		lists = append(lists, [2]uint32{sh.NumRefIdxL1, 1})
	}
	for _, l := range lists {
		for i := uint32(0); i < l[0]; i++ {
			lw, err := c.ReadBit()
			if err != nil {
				return err
			}
			if lw {
				if _, err := c.ReadSE(); err != nil {
					return err
				}
				if _, err := c.ReadSE(); err != nil {
					return err
				}
			}
			if chroma {
				cw, err := c.ReadBit()
				if err != nil {
					return err
				}
				if cw {
					for j := 0; j < 4; j++ {
						if _, err := c.ReadSE(); err != nil {
							return err
						}
					}
				}
			}
		}
	}
	return nil
}

func skipDecRefPicMarking(c *bitio.Cursor, idr bool) error {
	if idr {
		if _, err := c.ReadBit(); err != nil { // no_output_of_prior_pics
			return err
		}
		_, err := c.ReadBit() // long_term_reference_flag
		return err
	}
	adaptive, err := c.ReadBit()
	if err != nil {
		return err
	}
	if !adaptive {
		return nil
	}
	for i := 0; ; i++ {
		if i > 64 {
			return &bitio.ParseError{Offset: c.Offset(), Msg: "dec_ref_pic_marking runaway"}
		}
		op, err := c.ReadUE()
		if err != nil {
			return err
		}
		switch op {
		case 0:
			return nil
		case 1, 2, 4, 6:
			if _, err := c.ReadUE(); err != nil {
				return err
			}
		case 3:
			if _, err := c.ReadUE(); err != nil {
				return err
			}
			if _, err := c.ReadUE(); err != nil {
				return err
			}
		case 5:
		default:
			return &bitio.ParseError{Offset: c.Offset(), Msg: "memory_management_control_operation out of range"}
		}
	}
}

// parseAVCUnit classifies one H.264 NAL unit, updating the session caches
// for parameter sets and resolving them for slices.
func parseAVCUnit(nalu []byte, base int64, ps *ParamSets) (UnitInfo, error) {
	if len(nalu) < 1 {
		return UnitInfo{}, &bitio.EOFError{Offset: base}
	}
	nalType := AVCNALType(nalu[0])
	info := UnitInfo{TypeID: int(nalType), TypeName: avcNALTypeName(nalType)}

	switch nalType {
	case AVCNALSPS:
		sps, err := ParseAVCSPS(nalu, base)
		if err != nil {
			return info, err
		}
		ps.AVCSPS[sps.ID] = sps
		info.IsParamSet = true

	case AVCNALPPS:
		pps, err := ParseAVCPPS(nalu, base, ps)
		if err != nil {
			return info, err
		}
		ps.AVCPPS[pps.ID] = pps
		info.IsParamSet = true

	case AVCNALSlice, AVCNALIDR:
		sh, err := ParseAVCSliceHeader(nalu, base, ps)
		if err != nil {
			return info, err
		}
		idr := nalType == AVCNALIDR
		info.IsFrame = sh.FirstMB == 0 // later slices continue the same picture
		info.ShowFrame = info.IsFrame
		info.IsKeyframe = idr
		info.FrameType = avcFrameType(sh.SliceType, idr)
		if sh.HasQP {
			if err := info.setQP(units.CodecAVC, sh.QP); err != nil {
				return info, err
			}
		}
	}
	return info, nil
}

// IterateAVCSEI walks the SEI payload list of an H.264 SEI NAL unit,
// invoking fn with each payload type and body until fn returns false.
func IterateAVCSEI(nalu []byte, fn func(payloadType int, body []byte) bool) {
	if len(nalu) < 2 || AVCNALType(nalu[0]) != AVCNALSEI {
		return
	}
	iterateSEIPayloads(framer.RemoveEmulationPrevention(nalu[1:]), fn)
}

func iterateSEIPayloads(rbsp []byte, fn func(payloadType int, body []byte) bool) {
	i := 0
	for i < len(rbsp) {
		if rbsp[i] == 0x80 {
			return
		}
		payloadType := 0
		for i < len(rbsp) && rbsp[i] == 0xFF {
			payloadType += 255
			i++
		}
		if i >= len(rbsp) {
			return
		}
		payloadType += int(rbsp[i])
		i++

		payloadSize := 0
		for i < len(rbsp) && rbsp[i] == 0xFF {
			payloadSize += 255
			i++
		}
		if i >= len(rbsp) {
			return
		}
		payloadSize += int(rbsp[i])
		i++

		if i+payloadSize > len(rbsp) {
			return
		}
		if !fn(payloadType, rbsp[i:i+payloadSize]) {
			return
		}
		i += payloadSize
	}
}
