package codec

import (
	"github.com/framelens/framelens/internal/bitio"
	"github.com/framelens/framelens/internal/framer"
	"github.com/framelens/framelens/internal/units"
)

// H.266/VVC NAL unit types, ITU-T H.266 Table 5.
const (
	VVCNALTrail     = 0
	VVCNALSTSA      = 1
	VVCNALRADL      = 2
	VVCNALRASL      = 3
	VVCNALIDRWRadl  = 7
	VVCNALIDRNlp    = 8
	VVCNALCra       = 9
	VVCNALGdr       = 10
	VVCNALVPS       = 14
	VVCNALSPS       = 15
	VVCNALPPS       = 16
	VVCNALPrefixAPS = 17
	VVCNALSuffixAPS = 18
	VVCNALPH        = 19
	VVCNALAUD       = 20
	VVCNALPrefixSEI = 23
	VVCNALSuffixSEI = 24
	VVCNALFiller    = 25
)

// VVCNALType extracts the NAL unit type from the second byte of a VVC
// 2-byte NAL header: the layer id lives in the first byte, the type and
// temporal id in the second.
func VVCNALType(secondByte byte) byte {
	return secondByte >> 3
}

func isVVCVCL(nalType byte) bool { return nalType <= 11 }

// IsVVCKeyframe reports whether the NAL type is a VVC random access
// point (IDR, CRA, or GDR).
func IsVVCKeyframe(nalType byte) bool {
	return nalType >= VVCNALIDRWRadl && nalType <= VVCNALGdr
}

func vvcNALTypeName(t byte) string {
	switch {
	case t == VVCNALIDRWRadl || t == VVCNALIDRNlp:
		return "idr-slice"
	case t == VVCNALCra:
		return "cra-slice"
	case t == VVCNALGdr:
		return "gdr-slice"
	case isVVCVCL(t):
		return "slice"
	case t == VVCNALVPS:
		return "vps"
	case t == VVCNALSPS:
		return "sps"
	case t == VVCNALPPS:
		return "pps"
	case t == VVCNALPrefixAPS || t == VVCNALSuffixAPS:
		return "aps"
	case t == VVCNALPH:
		return "picture-header"
	case t == VVCNALAUD:
		return "aud"
	case t == VVCNALPrefixSEI || t == VVCNALSuffixSEI:
		return "sei"
	case t == VVCNALFiller:
		return "filler"
	default:
		return "nal"
	}
}

// VVCSPS holds the head of a VVC Sequence Parameter Set: identity,
// profile/tier/level, and the maximum picture dimensions.
type VVCSPS struct {
	ID    uint32
	VPSID uint32

	ChromaFormatIDC uint32
	CtuLog2Size     int

	ProfileIDC byte
	TierFlag   byte
	LevelIDC   byte

	GDREnabled bool
	Width      int
	Height     int
}

func parseVVCProfileTierLevel(c *bitio.Cursor, sps *VVCSPS, maxSubLayersMinus1 uint64) error {
	profile, err := c.ReadBits(7)
	if err != nil {
		return err
	}
	sps.ProfileIDC = byte(profile)
	tier, err := c.ReadBits(1)
	if err != nil {
		return err
	}
	sps.TierFlag = byte(tier)
	level, err := c.ReadBits(8)
	if err != nil {
		return err
	}
	sps.LevelIDC = byte(level)

	if err := c.SkipBits(2); err != nil { // frame_only_constraint, multilayer_enabled
		return err
	}

	gciPresent, err := c.ReadBit()
	if err != nil {
		return err
	}
	if gciPresent {
		if err := c.SkipBits(71); err != nil { // general constraint flags
			return err
		}
		reserved, err := c.ReadBits(8)
		if err != nil {
			return err
		}
		if err := c.SkipBits(int(reserved)); err != nil {
			return err
		}
	}
	c.ByteAlign()

	var levelPresent [8]bool
	for i := int(maxSubLayersMinus1) - 1; i >= 0; i-- {
		p, err := c.ReadBit()
		if err != nil {
			return err
		}
		levelPresent[i] = p
	}
	c.ByteAlign()
	for i := int(maxSubLayersMinus1) - 1; i >= 0; i-- {
		if levelPresent[i] {
			if err := c.SkipBits(8); err != nil { // sublayer_level_idc
				return err
			}
		}
	}

	numSubProfiles, err := c.ReadBits(8)
	if err != nil {
		return err
	}
	return c.SkipBits(int(numSubProfiles) * 32)
}

// ParseVVCSPS parses the head of a VVC SPS NAL unit through the maximum
// picture dimensions. The input is the raw NAL data including the
// 2-byte header.
func ParseVVCSPS(nalu []byte, base int64) (*VVCSPS, error) {
	if len(nalu) < 4 {
		return nil, &bitio.EOFError{Offset: base + int64(len(nalu))}
	}
	rbsp := framer.RemoveEmulationPrevention(nalu[2:])
	c := bitio.NewCursorAt(rbsp, base+2)

	sps := &VVCSPS{}

	id, err := c.ReadBits(4)
	if err != nil {
		return nil, err
	}
	sps.ID = uint32(id)

	vpsID, err := c.ReadBits(4)
	if err != nil {
		return nil, err
	}
	sps.VPSID = uint32(vpsID)

	maxSubLayersMinus1, err := c.ReadBits(3)
	if err != nil {
		return nil, err
	}
	if maxSubLayersMinus1 > 6 {
		return nil, &bitio.ParseError{Offset: c.Offset(), Msg: "sps_max_sublayers_minus1 out of range"}
	}

	chroma, err := c.ReadBits(2)
	if err != nil {
		return nil, err
	}
	sps.ChromaFormatIDC = uint32(chroma)

	ctuLog2, err := c.ReadBits(2)
	if err != nil {
		return nil, err
	}
	sps.CtuLog2Size = int(ctuLog2) + 5

	ptlPresent, err := c.ReadBit()
	if err != nil {
		return nil, err
	}
	if ptlPresent {
		if err := parseVVCProfileTierLevel(c, sps, maxSubLayersMinus1); err != nil {
			return nil, err
		}
	}

	gdr, err := c.ReadBit()
	if err != nil {
		return nil, err
	}
	sps.GDREnabled = gdr

	resampling, err := c.ReadBit()
	if err != nil {
		return nil, err
	}
	if resampling {
		if _, err := c.ReadBit(); err != nil { // res_change_in_clvs_allowed
			return nil, err
		}
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

	return sps, nil
}

// VVCPPS holds the head of a VVC Picture Parameter Set: identity and the
// coded picture dimensions.
type VVCPPS struct {
	ID     uint32
	SPSID  uint32
	Width  int
	Height int
}

// ParseVVCPPS parses the head of a VVC PPS NAL unit.
func ParseVVCPPS(nalu []byte, base int64, ps *ParamSets) (*VVCPPS, error) {
	if len(nalu) < 4 {
		return nil, &bitio.EOFError{Offset: base + int64(len(nalu))}
	}
	rbsp := framer.RemoveEmulationPrevention(nalu[2:])
	c := bitio.NewCursorAt(rbsp, base+2)

	id, err := c.ReadBits(6)
	if err != nil {
		return nil, err
	}
	spsID, err := c.ReadBits(4)
	if err != nil {
		return nil, err
	}
	if _, ok := ps.VVCSPS[uint32(spsID)]; !ok {
		return nil, missingParamSet("SPS", uint32(spsID))
	}
	if _, err := c.ReadBit(); err != nil { // mixed_nalu_types_in_pic
		return nil, err
	}
	width, err := c.ReadUE()
	if err != nil {
		return nil, err
	}
	height, err := c.ReadUE()
	if err != nil {
		return nil, err
	}
	return &VVCPPS{
		ID:     uint32(id),
		SPSID:  uint32(spsID),
		Width:  int(width),
		Height: int(height),
	}, nil
}

// parseVVCUnit classifies one VVC NAL unit. Frame classification comes
// from the NAL type alone; slices are not parsed past the header, so no
// QP is reported for this codec.
func parseVVCUnit(nalu []byte, base int64, ps *ParamSets) (UnitInfo, error) {
	if len(nalu) < 2 {
		return UnitInfo{}, &bitio.EOFError{Offset: base + int64(len(nalu))}
	}
	nalType := VVCNALType(nalu[1])
	info := UnitInfo{
		TypeID:     int(nalType),
		TypeName:   vvcNALTypeName(nalType),
		TemporalID: int(nalu[1]&0x07) - 1,
	}

	switch {
	case nalType == VVCNALSPS:
		sps, err := ParseVVCSPS(nalu, base)
		if err != nil {
			return info, err
		}
		ps.VVCSPS[sps.ID] = sps
		info.IsParamSet = true

	case nalType == VVCNALPPS:
		pps, err := ParseVVCPPS(nalu, base, ps)
		if err != nil {
			return info, err
		}
		ps.VVCPPS[pps.ID] = pps
		info.IsParamSet = true

	case nalType == VVCNALVPS || nalType == VVCNALPrefixAPS || nalType == VVCNALSuffixAPS:
		info.IsParamSet = true

	case isVVCVCL(nalType):
		rap := IsVVCKeyframe(nalType)
		info.IsFrame = true
		info.ShowFrame = true
		info.IsKeyframe = rap
		if rap {
			info.FrameType = units.FrameKey
		} else {
			info.FrameType = units.FrameInter
		}
	}
	return info, nil
}
