package codec

import (
	mathbits "math/bits"

	"github.com/framelens/framelens/internal/bitio"
	"github.com/framelens/framelens/internal/framer"
	"github.com/framelens/framelens/internal/units"
)

// H.265/HEVC NAL unit types, ITU-T H.265 Table 7-1.
const (
	HEVCNALTrailN     = 0
	HEVCNALTrailR     = 1
	HEVCNALBlaWLP     = 16
	HEVCNALIDRWRadl   = 19
	HEVCNALIDRNlp     = 20
	HEVCNALCraNut     = 21
	HEVCNALRsvIrap23  = 23
	HEVCNALVPS        = 32
	HEVCNALSPS        = 33
	HEVCNALPPS        = 34
	HEVCNALAUD        = 35
	HEVCNALFillerData = 38
	HEVCNALSEIPrefix  = 39
	HEVCNALSEISuffix  = 40
)

// HEVCNALType extracts the NAL unit type from the first byte of an HEVC
// 2-byte NAL header: forbidden(1) | type(6) | layerID_high(1).
func HEVCNALType(firstByte byte) byte {
	return (firstByte >> 1) & 0x3F
}

// IsHEVCKeyframe reports whether the NAL type is an HEVC random access
// point (BLA, IDR, or CRA).
func IsHEVCKeyframe(nalType byte) bool {
	return nalType >= HEVCNALBlaWLP && nalType <= HEVCNALCraNut
}

func isHEVCVCL(nalType byte) bool { return nalType < 32 }

func isHEVCIDR(nalType byte) bool {
	return nalType == HEVCNALIDRWRadl || nalType == HEVCNALIDRNlp
}

func hevcNALTypeName(t byte) string {
	switch {
	case isHEVCIDR(t):
		return "idr-slice"
	case t == HEVCNALBlaWLP || t == HEVCNALBlaWLP+1 || t == HEVCNALBlaWLP+2:
		return "bla-slice"
	case t == HEVCNALCraNut:
		return "cra-slice"
	case isHEVCVCL(t):
		return "slice"
	case t == HEVCNALVPS:
		return "vps"
	case t == HEVCNALSPS:
		return "sps"
	case t == HEVCNALPPS:
		return "pps"
	case t == HEVCNALAUD:
		return "aud"
	case t == HEVCNALSEIPrefix || t == HEVCNALSEISuffix:
		return "sei"
	case t == HEVCNALFillerData:
		return "filler"
	default:
		return "nal"
	}
}

// HEVCVPS holds the head of an HEVC Video Parameter Set.
type HEVCVPS struct {
	ID                 uint32
	MaxLayersMinus1    uint32
	MaxSubLayersMinus1 uint32
	TemporalIDNesting  bool
}

// ParseHEVCVPS parses the fixed head of a VPS NAL unit.
func ParseHEVCVPS(nalu []byte, base int64) (*HEVCVPS, error) {
	if len(nalu) < 4 {
		return nil, &bitio.EOFError{Offset: base + int64(len(nalu))}
	}
	rbsp := framer.RemoveEmulationPrevention(nalu[2:])
	c := bitio.NewCursorAt(rbsp, base+2)

	id, err := c.ReadBits(4)
	if err != nil {
		return nil, err
	}
	if err := c.SkipBits(2); err != nil { // base_layer_internal, base_layer_available
		return nil, err
	}
	maxLayers, err := c.ReadBits(6)
	if err != nil {
		return nil, err
	}
	maxSubLayers, err := c.ReadBits(3)
	if err != nil {
		return nil, err
	}
	nesting, err := c.ReadBit()
	if err != nil {
		return nil, err
	}
	return &HEVCVPS{
		ID:                 uint32(id),
		MaxLayersMinus1:    uint32(maxLayers),
		MaxSubLayersMinus1: uint32(maxSubLayers),
		TemporalIDNesting:  nesting,
	}, nil
}

// HEVCSPS holds the fields of an HEVC Sequence Parameter Set that slice
// segment headers depend on, plus the derived display resolution.
type HEVCSPS struct {
	ID    uint32
	VPSID uint32

	ProfileIDC                byte
	TierFlag                  byte
	LevelIDC                  byte
	ProfileCompatibilityFlags uint32
	ConstraintIndicatorFlags  uint64

	ChromaFormatIDC     uint32
	SeparateColourPlane bool
	Width               int
	Height              int
	BitDepthLumaMinus8  uint32

	Log2MaxPicOrderCntLsb int
	PicSizeInCtbsY        int
	SAOEnabled            bool
	NumDeltaPocs          []int
	NumLongTermRefPics    uint32
	LongTermRefPresent    bool
	TemporalMVPEnabled    bool
}

// ceilLog2 returns the number of bits needed to index n values.
func ceilLog2(n uint32) int {
	if n <= 1 {
		return 0
	}
	return mathbits.Len32(n - 1)
}

func parseHEVCProfileTierLevel(c *bitio.Cursor, sps *HEVCSPS, maxSubLayersMinus1 uint64) error {
	if err := c.SkipBits(2); err != nil { // general_profile_space
		return err
	}
	tier, err := c.ReadBits(1)
	if err != nil {
		return err
	}
	sps.TierFlag = byte(tier)
	profile, err := c.ReadBits(5)
	if err != nil {
		return err
	}
	sps.ProfileIDC = byte(profile)

	compat, err := c.ReadBits(32)
	if err != nil {
		return err
	}
	sps.ProfileCompatibilityFlags = uint32(compat)

	constraint, err := c.ReadBits(48)
	if err != nil {
		return err
	}
	sps.ConstraintIndicatorFlags = constraint

	level, err := c.ReadBits(8)
	if err != nil {
		return err
	}
	sps.LevelIDC = byte(level)

	if maxSubLayersMinus1 == 0 {
		return nil
	}
	var profilePresent, levelPresent [8]bool
	for i := uint64(0); i < maxSubLayersMinus1; i++ {
		pp, err := c.ReadBit()
		if err != nil {
			return err
		}
		profilePresent[i] = pp
		lp, err := c.ReadBit()
		if err != nil {
			return err
		}
		levelPresent[i] = lp
	}
	for i := maxSubLayersMinus1; i < 8; i++ {
		if err := c.SkipBits(2); err != nil {
			return err
		}
	}
	for i := uint64(0); i < maxSubLayersMinus1; i++ {
		if profilePresent[i] {
			if err := c.SkipBits(88); err != nil {
				return err
			}
		}
		if levelPresent[i] {
			if err := c.SkipBits(8); err != nil {
				return err
			}
		}
	}
	return nil
}

func skipHEVCScalingListData(c *bitio.Cursor) error {
	for sizeID := 0; sizeID < 4; sizeID++ {
		step := 1
		if sizeID == 3 {
			step = 3
		}
		for matrixID := 0; matrixID < 6; matrixID += step {
			predMode, err := c.ReadBit()
			if err != nil {
				return err
			}
			if !predMode {
				if _, err := c.ReadUE(); err != nil { // pred_matrix_id_delta
					return err
				}
				continue
			}
			coefNum := 64
			if sizeID == 0 {
				coefNum = 16
			}
			if sizeID > 1 {
				if _, err := c.ReadSE(); err != nil { // dc_coef_minus8
					return err
				}
			}
			for i := 0; i < coefNum; i++ {
				if _, err := c.ReadSE(); err != nil { // delta_coef
					return err
				}
			}
		}
	}
	return nil
}

// parseHEVCShortTermRPS consumes one st_ref_pic_set and returns its
// derived delta POC count. numDeltaPocs carries the counts of sets
// already parsed, indexed by RPS index; idx is this set's index.
func parseHEVCShortTermRPS(c *bitio.Cursor, numDeltaPocs []int, idx int) (int, error) {
	interPred := false
	if idx != 0 {
		var err error
		interPred, err = c.ReadBit()
		if err != nil {
			return 0, err
		}
	}
	if interPred {
		deltaIdx := 0
		if idx == len(numDeltaPocs) { // invoked from a slice header
			d, err := c.ReadUE()
			if err != nil {
				return 0, err
			}
			deltaIdx = int(d) + 1
		} else {
			deltaIdx = 1
		}
		refIdx := idx - deltaIdx
		if refIdx < 0 || refIdx >= len(numDeltaPocs) {
			return 0, &bitio.ParseError{Offset: c.Offset(), Msg: "short-term RPS delta_idx out of range"}
		}
		if _, err := c.ReadBit(); err != nil { // delta_rps_sign
			return 0, err
		}
		if _, err := c.ReadUE(); err != nil { // abs_delta_rps_minus1
			return 0, err
		}
		count := 0
		for j := 0; j <= numDeltaPocs[refIdx]; j++ {
			used, err := c.ReadBit()
			if err != nil {
				return 0, err
			}
			carried := used
			if !used {
				useDelta, err := c.ReadBit()
				if err != nil {
					return 0, err
				}
				carried = useDelta
			}
			if carried {
				count++
			}
		}
		return count, nil
	}

	neg, err := c.ReadUE()
	if err != nil {
		return 0, err
	}
	pos, err := c.ReadUE()
	if err != nil {
		return 0, err
	}
	if neg > 16 || pos > 16 {
		return 0, &bitio.ParseError{Offset: c.Offset(), Msg: "short-term RPS picture count out of range"}
	}
	for i := uint32(0); i < neg+pos; i++ {
		if _, err := c.ReadUE(); err != nil { // delta_poc_minus1
			return 0, err
		}
		if _, err := c.ReadBit(); err != nil { // used_by_curr_pic
			return 0, err
		}
	}
	return int(neg + pos), nil
}

// ParseHEVCSPS parses an HEVC SPS NAL unit: profile/tier/level, the
// derived display resolution, and the fields slice segment headers
// reference. The input is the raw NAL data including the 2-byte header.
func ParseHEVCSPS(nalu []byte, base int64) (*HEVCSPS, error) {
	if len(nalu) < 4 {
		return nil, &bitio.EOFError{Offset: base + int64(len(nalu))}
	}
	rbsp := framer.RemoveEmulationPrevention(nalu[2:])
	c := bitio.NewCursorAt(rbsp, base+2)

	sps := &HEVCSPS{ChromaFormatIDC: 1}

	vpsID, err := c.ReadBits(4)
	if err != nil {
		return nil, err
	}
	sps.VPSID = uint32(vpsID)

	maxSubLayersMinus1, err := c.ReadBits(3)
	if err != nil {
		return nil, err
	}
	if _, err := c.ReadBit(); err != nil { // temporal_id_nesting_flag
		return nil, err
	}
	if err := parseHEVCProfileTierLevel(c, sps, maxSubLayersMinus1); err != nil {
		return nil, err
	}

	spsID, err := c.ReadUE()
	if err != nil {
		return nil, err
	}
	sps.ID = spsID

	sps.ChromaFormatIDC, err = c.ReadUE()
	if err != nil {
		return nil, err
	}
	if sps.ChromaFormatIDC > 3 {
		return nil, &bitio.ParseError{Offset: c.Offset(), Msg: "chroma_format_idc out of range"}
	}
	if sps.ChromaFormatIDC == 3 {
		sep, err := c.ReadBit()
		if err != nil {
			return nil, err
		}
		sps.SeparateColourPlane = sep
	}

	width, err := c.ReadUE()
	if err != nil {
		return nil, err
	}
	height, err := c.ReadUE()
	if err != nil {
		return nil, err
	}
	sps.Width = int(width)
	sps.Height = int(height)

	confWindow, err := c.ReadBit()
	if err != nil {
		return nil, err
	}
	if confWindow {
		var crop [4]uint32
		for i := range crop {
			if crop[i], err = c.ReadUE(); err != nil {
				return nil, err
			}
		}
		var subWidthC, subHeightC uint32
		switch sps.ChromaFormatIDC {
		case 1:
			subWidthC, subHeightC = 2, 2
		case 2:
			subWidthC, subHeightC = 2, 1
		default:
			subWidthC, subHeightC = 1, 1
		}
		sps.Width -= int((crop[0] + crop[1]) * subWidthC)
		sps.Height -= int((crop[2] + crop[3]) * subHeightC)
		if sps.Width <= 0 || sps.Height <= 0 {
			return nil, &bitio.ParseError{Offset: c.Offset(), Msg: "conformance window exceeds coded size"}
		}
	}

	bitDepthLuma, err := c.ReadUE()
	if err != nil {
		return nil, err
	}
	sps.BitDepthLumaMinus8 = bitDepthLuma
	if _, err := c.ReadUE(); err != nil { // bit_depth_chroma_minus8
		return nil, err
	}

	log2MaxPoc, err := c.ReadUE()
	if err != nil {
		return nil, err
	}
	if log2MaxPoc > 12 {
		return nil, &bitio.ParseError{Offset: c.Offset(), Msg: "log2_max_pic_order_cnt_lsb out of range"}
	}
	sps.Log2MaxPicOrderCntLsb = int(log2MaxPoc) + 4

	orderingInfoPresent, err := c.ReadBit()
	if err != nil {
		return nil, err
	}
	start := uint64(0)
	if !orderingInfoPresent {
		start = maxSubLayersMinus1
	}
	for i := start; i <= maxSubLayersMinus1; i++ {
		for j := 0; j < 3; j++ { // max_dec_pic_buffering, num_reorder_pics, max_latency_increase
			if _, err := c.ReadUE(); err != nil {
				return nil, err
			}
		}
	}

	log2MinCb, err := c.ReadUE()
	if err != nil {
		return nil, err
	}
	log2DiffMaxMin, err := c.ReadUE()
	if err != nil {
		return nil, err
	}
	ctbLog2 := log2MinCb + 3 + log2DiffMaxMin
	if ctbLog2 > 6 {
		return nil, &bitio.ParseError{Offset: c.Offset(), Msg: "CTB size out of range"}
	}
	ctbSize := 1 << ctbLog2
	widthCtbs := (sps.Width + ctbSize - 1) / ctbSize
	heightCtbs := (sps.Height + ctbSize - 1) / ctbSize
	sps.PicSizeInCtbsY = widthCtbs * heightCtbs

	for j := 0; j < 4; j++ { // log2_min_tb, log2_diff_tb, hierarchy depths
		if _, err := c.ReadUE(); err != nil {
			return nil, err
		}
	}

	scalingListEnabled, err := c.ReadBit()
	if err != nil {
		return nil, err
	}
	if scalingListEnabled {
		present, err := c.ReadBit()
		if err != nil {
			return nil, err
		}
		if present {
			if err := skipHEVCScalingListData(c); err != nil {
				return nil, err
			}
		}
	}

	if _, err := c.ReadBit(); err != nil { // amp_enabled
		return nil, err
	}
	sao, err := c.ReadBit()
	if err != nil {
		return nil, err
	}
	sps.SAOEnabled = sao

	pcmEnabled, err := c.ReadBit()
	if err != nil {
		return nil, err
	}
	if pcmEnabled {
		if err := c.SkipBits(8); err != nil { // sample bit depths
			return nil, err
		}
		if _, err := c.ReadUE(); err != nil { // log2_min_pcm_cb
			return nil, err
		}
		if _, err := c.ReadUE(); err != nil { // log2_diff_pcm_cb
			return nil, err
		}
		if _, err := c.ReadBit(); err != nil { // pcm_loop_filter_disabled
			return nil, err
		}
	}

	numStRps, err := c.ReadUE()
	if err != nil {
		return nil, err
	}
	if numStRps > 64 {
		return nil, &bitio.ParseError{Offset: c.Offset(), Msg: "num_short_term_ref_pic_sets out of range"}
	}
	sps.NumDeltaPocs = make([]int, 0, numStRps)
	for i := 0; i < int(numStRps); i++ {
		n, err := parseHEVCShortTermRPS(c, sps.NumDeltaPocs, i)
		if err != nil {
			return nil, err
		}
		sps.NumDeltaPocs = append(sps.NumDeltaPocs, n)
	}

	ltPresent, err := c.ReadBit()
	if err != nil {
		return nil, err
	}
	sps.LongTermRefPresent = ltPresent
	if ltPresent {
		numLt, err := c.ReadUE()
		if err != nil {
			return nil, err
		}
		if numLt > 32 {
			return nil, &bitio.ParseError{Offset: c.Offset(), Msg: "num_long_term_ref_pics_sps out of range"}
		}
		sps.NumLongTermRefPics = numLt
		for i := uint32(0); i < numLt; i++ {
			if err := c.SkipBits(sps.Log2MaxPicOrderCntLsb + 1); err != nil { // poc_lsb + used flag
				return nil, err
			}
		}
	}

	tmvp, err := c.ReadBit()
	if err != nil {
		return nil, err
	}
	sps.TemporalMVPEnabled = tmvp

	return sps, nil
}

// HEVCPPS holds the HEVC Picture Parameter Set fields that slice segment
// headers depend on.
type HEVCPPS struct {
	ID    uint32
	SPSID uint32

	DependentSliceSegments  bool
	OutputFlagPresent       bool
	NumExtraSliceHeaderBits int
	CabacInitPresent        bool
	NumRefIdxL0Default      uint32
	NumRefIdxL1Default      uint32
	InitQP                  int
}

// ParseHEVCPPS parses the head of an HEVC PPS NAL unit.
func ParseHEVCPPS(nalu []byte, base int64, ps *ParamSets) (*HEVCPPS, error) {
	if len(nalu) < 4 {
		return nil, &bitio.EOFError{Offset: base + int64(len(nalu))}
	}
	rbsp := framer.RemoveEmulationPrevention(nalu[2:])
	c := bitio.NewCursorAt(rbsp, base+2)

	ppsID, err := c.ReadUE()
	if err != nil {
		return nil, err
	}
	spsID, err := c.ReadUE()
	if err != nil {
		return nil, err
	}
	if _, ok := ps.HEVCSPS[spsID]; !ok {
		return nil, missingParamSet("SPS", spsID)
	}

	pps := &HEVCPPS{ID: ppsID, SPSID: spsID}

	dep, err := c.ReadBit()
	if err != nil {
		return nil, err
	}
	pps.DependentSliceSegments = dep

	output, err := c.ReadBit()
	if err != nil {
		return nil, err
	}
	pps.OutputFlagPresent = output

	extra, err := c.ReadBits(3)
	if err != nil {
		return nil, err
	}
	pps.NumExtraSliceHeaderBits = int(extra)

	if _, err := c.ReadBit(); err != nil { // sign_data_hiding_enabled
		return nil, err
	}
	cabacInit, err := c.ReadBit()
	if err != nil {
		return nil, err
	}
	pps.CabacInitPresent = cabacInit

	l0, err := c.ReadUE()
	if err != nil {
		return nil, err
	}
	pps.NumRefIdxL0Default = l0 + 1
	l1, err := c.ReadUE()
	if err != nil {
		return nil, err
	}
	pps.NumRefIdxL1Default = l1 + 1

	initQP, err := c.ReadSE()
	if err != nil {
		return nil, err
	}
	pps.InitQP = 26 + int(initQP)

	return pps, nil
}

// HEVC slice types, ITU-T H.265 Table 7-7.
const (
	hevcSliceB = 0
	hevcSliceP = 1
	hevcSliceI = 2
)

// HEVCSliceHeader is the parsed head of an HEVC slice segment.
type HEVCSliceHeader struct {
	FirstSliceSegment bool
	DependentSlice    bool
	PPSID             uint32
	SliceType         uint32
	QP                int
	HasQP             bool
}

// ParseHEVCSliceHeader parses the head of an HEVC slice segment. Slice
// QP is extracted for intra slices; inter slices stop after the slice
// type, before the reference picture machinery the index does not need.
func ParseHEVCSliceHeader(nalu []byte, base int64, ps *ParamSets) (*HEVCSliceHeader, error) {
	if len(nalu) < 3 {
		return nil, &bitio.EOFError{Offset: base + int64(len(nalu))}
	}
	nalType := HEVCNALType(nalu[0])

	rbsp := framer.RemoveEmulationPrevention(nalu[2:])
	c := bitio.NewCursorAt(rbsp, base+2)

	sh := &HEVCSliceHeader{}

	first, err := c.ReadBit()
	if err != nil {
		return nil, err
	}
	sh.FirstSliceSegment = first

	if nalType >= HEVCNALBlaWLP && nalType <= HEVCNALRsvIrap23 {
		if _, err := c.ReadBit(); err != nil { // no_output_of_prior_pics
			return nil, err
		}
	}

	if sh.PPSID, err = c.ReadUE(); err != nil {
		return nil, err
	}
	pps, ok := ps.HEVCPPS[sh.PPSID]
	if !ok {
		return nil, missingParamSet("PPS", sh.PPSID)
	}
	sps, ok := ps.HEVCSPS[pps.SPSID]
	if !ok {
		return nil, missingParamSet("SPS", pps.SPSID)
	}

	if !first {
		if pps.DependentSliceSegments {
			dep, err := c.ReadBit()
			if err != nil {
				return nil, err
			}
			sh.DependentSlice = dep
		}
		addrBits := ceilLog2(uint32(sps.PicSizeInCtbsY))
		if err := c.SkipBits(addrBits); err != nil { // slice_segment_address
			return nil, err
		}
	}
	if sh.DependentSlice {
		return sh, nil // inherits its header from the preceding slice
	}

	if err := c.SkipBits(pps.NumExtraSliceHeaderBits); err != nil {
		return nil, err
	}

	if sh.SliceType, err = c.ReadUE(); err != nil {
		return nil, err
	}
	if sh.SliceType > 2 {
		return nil, &bitio.ParseError{Offset: c.Offset(), Msg: "slice_type out of range"}
	}
	if sh.SliceType != hevcSliceI {
		return sh, nil
	}

	if pps.OutputFlagPresent {
		if _, err := c.ReadBit(); err != nil { // pic_output_flag
			return nil, err
		}
	}
	if sps.SeparateColourPlane {
		if err := c.SkipBits(2); err != nil { // colour_plane_id
			return nil, err
		}
	}

	if !isHEVCIDR(nalType) {
		if err := c.SkipBits(sps.Log2MaxPicOrderCntLsb); err != nil { // pic_order_cnt_lsb
			return nil, err
		}
		spsRPS, err := c.ReadBit()
		if err != nil {
			return nil, err
		}
		if !spsRPS {
			if _, err := parseHEVCShortTermRPS(c, sps.NumDeltaPocs, len(sps.NumDeltaPocs)); err != nil {
				return nil, err
			}
		} else if len(sps.NumDeltaPocs) > 1 {
			if err := c.SkipBits(ceilLog2(uint32(len(sps.NumDeltaPocs)))); err != nil {
				return nil, err
			}
		}
		if sps.LongTermRefPresent {
			if err := skipHEVCLongTermRefs(c, sps); err != nil {
				return nil, err
			}
		}
		if sps.TemporalMVPEnabled {
			if _, err := c.ReadBit(); err != nil { // slice_temporal_mvp_enabled
				return nil, err
			}
		}
	}

	if sps.SAOEnabled {
		bits := 1
		if sps.ChromaFormatIDC != 0 {
			bits = 2
		}
		if err := c.SkipBits(bits); err != nil { // slice_sao_luma, slice_sao_chroma
			return nil, err
		}
	}

	qpDelta, err := c.ReadSE()
	if err != nil {
		return nil, err
	}
	sh.QP = pps.InitQP + int(qpDelta)
	sh.HasQP = true

	return sh, nil
}

func skipHEVCLongTermRefs(c *bitio.Cursor, sps *HEVCSPS) error {
	numLtSps := uint32(0)
	if sps.NumLongTermRefPics > 0 {
		var err error
		numLtSps, err = c.ReadUE()
		if err != nil {
			return err
		}
	}
	numLtPics, err := c.ReadUE()
	if err != nil {
		return err
	}
	total := numLtSps + numLtPics
	if total > 64 {
		return &bitio.ParseError{Offset: c.Offset(), Msg: "long-term reference count out of range"}
	}
	idxBits := ceilLog2(sps.NumLongTermRefPics)
	for i := uint32(0); i < total; i++ {
		if i < numLtSps {
			if err := c.SkipBits(idxBits); err != nil {
				return err
			}
		} else {
			if err := c.SkipBits(sps.Log2MaxPicOrderCntLsb + 1); err != nil { // poc_lsb + used flag
				return err
			}
		}
		msbPresent, err := c.ReadBit()
		if err != nil {
			return err
		}
		if msbPresent {
			if _, err := c.ReadUE(); err != nil { // delta_poc_msb_cycle
				return err
			}
		}
	}
	return nil
}

// hevcFrameType maps slice type and random access classification to the
// normalized frame type.
func hevcFrameType(sliceType uint32, rap bool) units.FrameType {
	switch sliceType {
	case hevcSliceB:
		return units.FrameB
	case hevcSliceP:
		return units.FrameInter
	default:
		if rap {
			return units.FrameKey
		}
		return units.FrameIntraOnly
	}
}

// parseHEVCUnit classifies one HEVC NAL unit, updating the session caches
// for parameter sets and resolving them for slices.
func parseHEVCUnit(nalu []byte, base int64, ps *ParamSets) (UnitInfo, error) {
	if len(nalu) < 2 {
		return UnitInfo{}, &bitio.EOFError{Offset: base + int64(len(nalu))}
	}
	nalType := HEVCNALType(nalu[0])
	info := UnitInfo{
		TypeID:     int(nalType),
		TypeName:   hevcNALTypeName(nalType),
		TemporalID: int(nalu[1]&0x07) - 1,
	}

	switch {
	case nalType == HEVCNALVPS:
		vps, err := ParseHEVCVPS(nalu, base)
		if err != nil {
			return info, err
		}
		ps.HEVCVPS[vps.ID] = vps
		info.IsParamSet = true

	case nalType == HEVCNALSPS:
		sps, err := ParseHEVCSPS(nalu, base)
		if err != nil {
			return info, err
		}
		ps.HEVCSPS[sps.ID] = sps
		info.IsParamSet = true

	case nalType == HEVCNALPPS:
		pps, err := ParseHEVCPPS(nalu, base, ps)
		if err != nil {
			return info, err
		}
		ps.HEVCPPS[pps.ID] = pps
		info.IsParamSet = true

	case isHEVCVCL(nalType):
		sh, err := ParseHEVCSliceHeader(nalu, base, ps)
		if err != nil {
			return info, err
		}
		rap := IsHEVCKeyframe(nalType)
		info.IsFrame = sh.FirstSliceSegment
		info.ShowFrame = info.IsFrame
		info.IsKeyframe = rap
		if !sh.DependentSlice {
			info.FrameType = hevcFrameType(sh.SliceType, rap)
		}
		if sh.HasQP {
			if err := info.setQP(units.CodecHEVC, sh.QP); err != nil {
				return info, err
			}
		}
	}
	return info, nil
}

// IterateHEVCSEI walks the SEI payload list of an HEVC prefix or suffix
// SEI NAL unit, invoking fn with each payload type and body until fn
// returns false.
func IterateHEVCSEI(nalu []byte, fn func(payloadType int, body []byte) bool) {
	if len(nalu) < 3 {
		return
	}
	t := HEVCNALType(nalu[0])
	if t != HEVCNALSEIPrefix && t != HEVCNALSEISuffix {
		return
	}
	iterateSEIPayloads(framer.RemoveEmulationPrevention(nalu[2:]), fn)
}
