package framer

import (
	"github.com/framelens/framelens/internal/limits"
)

// MPEG2UnitKind classifies an MPEG-2 start code by its trailing byte.
type MPEG2UnitKind int

const (
	MPEG2Picture MPEG2UnitKind = iota
	MPEG2Slice
	MPEG2UserData
	MPEG2SequenceHeader
	MPEG2SequenceError
	MPEG2Extension
	MPEG2SequenceEnd
	MPEG2GOP
	MPEG2System
)

func (k MPEG2UnitKind) String() string {
	switch k {
	case MPEG2Picture:
		return "picture"
	case MPEG2Slice:
		return "slice"
	case MPEG2UserData:
		return "user-data"
	case MPEG2SequenceHeader:
		return "sequence-header"
	case MPEG2SequenceError:
		return "sequence-error"
	case MPEG2Extension:
		return "extension"
	case MPEG2SequenceEnd:
		return "sequence-end"
	case MPEG2GOP:
		return "gop"
	default:
		return "system"
	}
}

// ClassifyMPEG2StartCode maps an MPEG-2 start code value (the byte after
// 00 00 01) to its unit kind per ISO 13818-2 table 6-1.
func ClassifyMPEG2StartCode(code byte) MPEG2UnitKind {
	switch {
	case code == 0x00:
		return MPEG2Picture
	case code <= 0xAF:
		return MPEG2Slice
	case code == 0xB2:
		return MPEG2UserData
	case code == 0xB3:
		return MPEG2SequenceHeader
	case code == 0xB4:
		return MPEG2SequenceError
	case code == 0xB5:
		return MPEG2Extension
	case code == 0xB7:
		return MPEG2SequenceEnd
	case code == 0xB8:
		return MPEG2GOP
	default:
		return MPEG2System
	}
}

// MPEG2Span is a classified MPEG-2 unit span. Offset points at the start
// code value byte; the payload begins one byte later.
type MPEG2Span struct {
	Span
	Code byte
	Kind MPEG2UnitKind
}

// ScanMPEG2 scans for 00 00 01 start codes and classifies each unit.
// MPEG-2 has no emulation prevention, so this is a plain pattern scan with
// the same scan-distance bound as Annex-B.
func ScanMPEG2(data []byte, lim limits.Limits) []MPEG2Span {
	n := len(data)
	if n < 4 {
		return nil
	}

	var starts []int
	i := 0
	lastHit := 0
	for i < n-3 {
		if int64(i-lastHit) > lim.MaxScanDistance {
			break
		}
		if data[i] == 0 && data[i+1] == 0 && data[i+2] == 1 {
			starts = append(starts, i)
			i += 3
			lastHit = i
			continue
		}
		i++
	}

	var spans []MPEG2Span
	for idx, sc := range starts {
		codePos := sc + 3
		end := n
		if idx+1 < len(starts) {
			end = starts[idx+1]
		}
		if codePos >= end {
			continue
		}
		code := data[codePos]
		spans = append(spans, MPEG2Span{
			Span: Span{Offset: int64(codePos), Size: int64(end - codePos)},
			Code: code,
			Kind: ClassifyMPEG2StartCode(code),
		})
	}
	return spans
}
