// Package units defines the codec-agnostic model of a parsed bitstream:
// unit identity, the unit tree with frame annotations, normalized frame
// types, range-checked QP values, and per-unit diagnostics.
package units

import (
	"fmt"

	"github.com/framelens/framelens/internal/bitio"
)

// Codec identifies one of the supported bitstream formats. Dispatch is by
// enum switch, not dynamic dispatch, keeping the per-unit hot path flat.
type Codec int

const (
	CodecUnknown Codec = iota
	CodecAVC
	CodecHEVC
	CodecVVC
	CodecAV1
	CodecAV3
	CodecVP9
	CodecMPEG2
)

func (c Codec) String() string {
	switch c {
	case CodecAVC:
		return "h264"
	case CodecHEVC:
		return "h265"
	case CodecVVC:
		return "h266"
	case CodecAV1:
		return "av1"
	case CodecAV3:
		return "av3"
	case CodecVP9:
		return "vp9"
	case CodecMPEG2:
		return "mpeg2"
	default:
		return "unknown"
	}
}

// FrameType is the normalized frame classification shared across codecs.
type FrameType int

const (
	FrameNone FrameType = iota
	FrameKey
	FrameInter
	FrameIntraOnly
	FrameSwitch
	FrameB
)

func (f FrameType) String() string {
	switch f {
	case FrameKey:
		return "key"
	case FrameInter:
		return "inter"
	case FrameIntraOnly:
		return "intra-only"
	case FrameSwitch:
		return "switch"
	case FrameB:
		return "bframe"
	default:
		return "none"
	}
}

// QP is a quantizer value validated against its codec's range.
type QP uint8

// qpRange returns the inclusive QP bounds for a codec.
func qpRange(codec Codec) (int, int, bool) {
	switch codec {
	case CodecAV1, CodecAV3:
		return 0, 255, true
	case CodecAVC, CodecHEVC:
		return 0, 51, true
	case CodecVVC:
		return 0, 63, true
	case CodecVP9:
		return 0, 255, true
	case CodecMPEG2:
		return 1, 31, true
	default:
		return 0, 0, false
	}
}

// NewQP validates v against the codec's QP range. It never clamps: an
// out-of-range value is an InvalidData error.
func NewQP(codec Codec, v int) (QP, error) {
	lo, hi, ok := qpRange(codec)
	if !ok {
		return 0, &bitio.InvalidDataError{Msg: fmt.Sprintf("no QP range for codec %s", codec)}
	}
	if v < lo || v > hi {
		return 0, &bitio.InvalidDataError{Msg: fmt.Sprintf("%s QP %d outside range %d..%d", codec, v, lo, hi)}
	}
	return QP(v), nil
}

// Severity tags a diagnostic attached to a unit.
type Severity int

const (
	SeverityInfo Severity = iota
	SeverityWarn
	SeverityError
)

func (s Severity) String() string {
	switch s {
	case SeverityWarn:
		return "warn"
	case SeverityError:
		return "error"
	default:
		return "info"
	}
}

// Diagnostic records a recoverable per-unit parse failure or anomaly. A
// diagnostic never aborts the whole-stream parse.
type Diagnostic struct {
	Severity Severity
	Offset   int64
	Message  string
}

func (d Diagnostic) String() string {
	return fmt.Sprintf("%s at %d: %s", d.Severity, d.Offset, d.Message)
}

// UnitKey is the value-type identity of a structural unit: unique within a
// stream for a given byte range.
type UnitKey struct {
	StreamID   string
	UnitType   int
	ByteOffset int64
	Size       int64
}
