// Package captions decodes CEA-608/708 caption data carried in AVC and
// HEVC SEI units, annotating indexed frames with caption text.
package captions

import (
	"github.com/zsiec/ccx"

	"github.com/framelens/framelens/internal/units"
)

// Caption is one decoded caption update, tied to the display index of the
// frame it accompanies. PTS is -1 when the container carried none.
type Caption struct {
	DisplayIdx int
	PTS        int64
	Channel    int
	Text       string
}

// Extractor accumulates caption state across SEI units. CEA-608 channels
// 1..4 decode directly; CEA-708 DTVCC packets reassemble across SEIs and
// report as channels 7 and up.
type Extractor struct {
	cea608   map[int]*ccx.CEA608Decoder
	cea708   map[int]*ccx.CEA708Service
	dtvccBuf []byte

	lastCtrl    [2][2]byte
	lastWasCtrl [2]bool
}

// NewExtractor returns an extractor with decoders for the standard
// channel set.
func NewExtractor() *Extractor {
	e := &Extractor{
		cea608: map[int]*ccx.CEA608Decoder{
			1: ccx.NewCEA608Decoder(),
			2: ccx.NewCEA608Decoder(),
			3: ccx.NewCEA608Decoder(),
			4: ccx.NewCEA608Decoder(),
		},
		cea708: make(map[int]*ccx.CEA708Service),
	}
	for i := 1; i <= 6; i++ {
		e.cea708[i] = ccx.NewCEA708Service()
	}
	return e
}

// ProcessSEI extracts caption data from one SEI unit payload and returns
// any caption text it completes. displayIdx is the display index of the
// frame the SEI accompanies.
func (e *Extractor) ProcessSEI(sei []byte, displayIdx int, pts int64) []Caption {
	cd := ccx.ExtractCaptions(sei)
	if cd == nil {
		return nil
	}

	var out []Caption
	for _, pair := range cd.CC608Pairs {
		cc1, cc2 := pair.Data[0], pair.Data[1]

		// Control codes are transmitted twice for resilience; drop the
		// immediate repeat.
		f := pair.Field
		if cc1 >= 0x10 && cc1 <= 0x1F {
			cp := [2]byte{cc1, cc2}
			if e.lastWasCtrl[f] && e.lastCtrl[f] == cp {
				e.lastWasCtrl[f] = false
				continue
			}
			e.lastCtrl[f] = cp
			e.lastWasCtrl[f] = true
		} else {
			e.lastWasCtrl[f] = false
		}

		dec := e.cea608[pair.Channel]
		if dec == nil {
			continue
		}
		if text := dec.Decode(cc1, cc2); text != "" {
			out = append(out, Caption{DisplayIdx: displayIdx, PTS: pts, Channel: pair.Channel, Text: text})
		}
	}

	for _, t := range cd.DTVCC {
		if t.Start {
			out = append(out, e.drainDTVCC(displayIdx, pts)...)
			e.dtvccBuf = e.dtvccBuf[:0]
		}
		e.dtvccBuf = append(e.dtvccBuf, t.Data[0], t.Data[1])
	}
	return out
}

func (e *Extractor) drainDTVCC(displayIdx int, pts int64) []Caption {
	if len(e.dtvccBuf) < 1 {
		return nil
	}
	packetSize := ccx.DTVCCPacketSize(e.dtvccBuf[0])
	if len(e.dtvccBuf) < packetSize {
		return nil
	}

	var out []Caption
	for _, block := range ccx.ParseDTVCCPacket(e.dtvccBuf[:packetSize]) {
		svc := e.cea708[block.ServiceNum]
		if svc == nil {
			continue
		}
		if svc.ProcessBlock(block.Data) {
			if text := svc.DisplayText(); text != "" {
				out = append(out, Caption{DisplayIdx: displayIdx, PTS: pts, Channel: block.ServiceNum + 6, Text: text})
			}
		}
	}
	e.dtvccBuf = e.dtvccBuf[packetSize:]
	return out
}

// AVC SEI NAL type and the HEVC prefix/suffix SEI types.
const (
	avcSEIType        = 6
	hevcPrefixSEIType = 39
	hevcSuffixSEIType = 40
)

// isSEI reports whether a unit node is an SEI unit for the codec.
func isSEI(codec units.Codec, unitType int) bool {
	switch codec {
	case units.CodecAVC:
		return unitType == avcSEIType
	case units.CodecHEVC:
		return unitType == hevcPrefixSEIType || unitType == hevcSuffixSEIType
	default:
		return false
	}
}

// Annotate walks a finalized unit tree in decode order and decodes the
// captions of every SEI unit, attributing each to the frame it precedes.
// data must be the same bytes the tree was indexed from. Codecs without
// SEI return no captions.
func Annotate(data []byte, tree *units.Tree, codec units.Codec) []Caption {
	if tree == nil || !(codec == units.CodecAVC || codec == units.CodecHEVC) {
		return nil
	}

	e := NewExtractor()
	var out []Caption
	displayIdx := 0
	tree.Walk(func(n *units.UnitNode) bool {
		if n.FrameIndex >= 0 {
			displayIdx = n.FrameIndex + 1
			return true
		}
		if !isSEI(codec, n.UnitType) {
			return true
		}
		end := n.Offset + n.Size
		if n.Offset < 0 || end > int64(len(data)) {
			return true
		}
		out = append(out, e.ProcessSEI(data[n.Offset:end], displayIdx, n.PTS)...)
		return true
	})
	return out
}
