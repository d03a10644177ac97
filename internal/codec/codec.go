// Package codec implements the per-codec header parsers: one state machine
// per supported format, consuming unit payloads and producing structured
// parameter sets and frame classifications. Dispatch is a switch on the
// units.Codec enum; there is no dynamic dispatch on the per-unit path.
package codec

import (
	"fmt"

	"github.com/framelens/framelens/internal/bitio"
	"github.com/framelens/framelens/internal/limits"
	"github.com/framelens/framelens/internal/units"
)

// ParamSets is the arena of parameter sets accumulated within one parse
// session. Entries are never evicted during a session; a header that
// references an id not present here is an InvalidData error for that unit.
// Reset clears the arena wholesale for a re-parse.
type ParamSets struct {
	AVCSPS  map[uint32]*AVCSPS
	AVCPPS  map[uint32]*AVCPPS
	HEVCVPS map[uint32]*HEVCVPS
	HEVCSPS map[uint32]*HEVCSPS
	HEVCPPS map[uint32]*HEVCPPS
	VVCSPS  map[uint32]*VVCSPS
	VVCPPS  map[uint32]*VVCPPS

	AV1Seq   *AV1SequenceHeader
	AV3Seq   *AV3SequenceHeader
	MPEG2Seq *MPEG2SequenceHeader
}

// NewParamSets returns an empty arena.
func NewParamSets() *ParamSets {
	p := &ParamSets{}
	p.Reset()
	return p
}

// Reset clears every cache for a fresh parse pass.
func (p *ParamSets) Reset() {
	p.AVCSPS = make(map[uint32]*AVCSPS)
	p.AVCPPS = make(map[uint32]*AVCPPS)
	p.HEVCVPS = make(map[uint32]*HEVCVPS)
	p.HEVCSPS = make(map[uint32]*HEVCSPS)
	p.HEVCPPS = make(map[uint32]*HEVCPPS)
	p.VVCSPS = make(map[uint32]*VVCSPS)
	p.VVCPPS = make(map[uint32]*VVCPPS)
	p.AV1Seq = nil
	p.AV3Seq = nil
	p.MPEG2Seq = nil
}

func missingParamSet(kind string, id uint32) error {
	return &bitio.InvalidDataError{Msg: fmt.Sprintf("missing %s id %d", kind, id)}
}

// UnitInfo is the codec-agnostic result of parsing one unit's header, the
// material the indexing layer needs to classify and annotate the unit.
type UnitInfo struct {
	TypeID   int
	TypeName string

	// IsFrame marks units that contribute coded picture data. ShowFrame
	// marks frames that are display-addressable (a frame that is decoded
	// but not shown, or a show-existing directive, differs from both).
	IsFrame      bool
	ShowFrame    bool
	ShowExisting bool
	IsKeyframe   bool
	IsParamSet   bool

	FrameType  units.FrameType
	QP         *units.QP
	RefSlots   []uint8
	TemporalID int
}

func (u *UnitInfo) setQP(codec units.Codec, v int) error {
	qp, err := units.NewQP(codec, v)
	if err != nil {
		return err
	}
	u.QP = &qp
	return nil
}

// ParseUnit dispatches a unit payload to its codec's header parser. For
// Annex-B codecs the payload is the NAL unit including its header byte(s);
// for AV1/AV3 it is the whole OBU including the OBU header; for VP9 and
// MPEG-2 it is the frame or start-code payload. base is the unit's stream
// byte offset, used for error provenance.
func ParseUnit(codec units.Codec, payload []byte, base int64, ps *ParamSets, lim limits.Limits) (UnitInfo, error) {
	if int64(len(payload)) > lim.MaxFrameSize {
		return UnitInfo{}, &bitio.InvalidDataError{
			Msg: fmt.Sprintf("unit size %d exceeds MaxFrameSize %d", len(payload), lim.MaxFrameSize),
		}
	}
	switch codec {
	case units.CodecAVC:
		return parseAVCUnit(payload, base, ps)
	case units.CodecHEVC:
		return parseHEVCUnit(payload, base, ps)
	case units.CodecVVC:
		return parseVVCUnit(payload, base, ps)
	case units.CodecAV1:
		return parseAV1Unit(payload, base, ps)
	case units.CodecAV3:
		return parseAV3Unit(payload, base, ps)
	case units.CodecVP9:
		return parseVP9Unit(payload, base)
	case units.CodecMPEG2:
		return parseMPEG2Unit(payload, base, ps)
	default:
		return UnitInfo{}, &bitio.InvalidDataError{Msg: "unsupported codec"}
	}
}
