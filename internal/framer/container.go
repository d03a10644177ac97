package framer

import (
	"github.com/framelens/framelens/internal/units"
)

// Container identifies the outer framing of a byte stream.
type Container int

const (
	ContainerUnknown Container = iota
	ContainerIVF
	ContainerAnnexB
	ContainerOBU
	ContainerMPEG2ES
	ContainerMPEGTS
)

func (c Container) String() string {
	switch c {
	case ContainerIVF:
		return "ivf"
	case ContainerAnnexB:
		return "annexb"
	case ContainerOBU:
		return "obu"
	case ContainerMPEG2ES:
		return "mpeg2-es"
	case ContainerMPEGTS:
		return "mpegts"
	default:
		return "unknown"
	}
}

const tsPacketSize = 188

// DetectContainer probes the head of a stream and guesses the container
// and, when the container implies one, the codec. The guess is heuristic:
// an empty or unrecognized buffer is ContainerUnknown with zero units,
// which is a valid (if uninteresting) result, not an error.
func DetectContainer(head []byte) (Container, units.Codec) {
	if len(head) >= 4 && string(head[0:4]) == "DKIF" {
		codec := units.CodecUnknown
		if len(head) >= 12 {
			codec = CodecForFourCC(string(head[8:12]))
		}
		return ContainerIVF, codec
	}

	if len(head) >= 2*tsPacketSize && head[0] == 0x47 && head[tsPacketSize] == 0x47 {
		return ContainerMPEGTS, units.CodecUnknown
	}

	if sc := findStartCode(head); sc >= 0 {
		code := head[sc]
		if code >= 0xB0 || code == 0x00 {
			return ContainerMPEG2ES, units.CodecMPEG2
		}
		return ContainerAnnexB, guessAnnexBCodec(head)
	}

	if h, err := ParseOBUHeader(head, 0); err == nil && obuTypePlausible(h.Type) && h.HasSizeField {
		return ContainerOBU, units.CodecAV1
	}

	return ContainerUnknown, units.CodecUnknown
}

// findStartCode returns the index of the start-code value byte of the
// first 00 00 01 within the probe window, or -1.
func findStartCode(data []byte) int {
	limit := len(data) - 3
	if limit > 4096 {
		limit = 4096
	}
	for i := 0; i < limit; i++ {
		if data[i] == 0 && data[i+1] == 0 && data[i+2] == 1 {
			return i + 3
		}
	}
	return -1
}

func obuTypePlausible(t uint8) bool {
	return (t >= 1 && t <= 8) || t == 15
}

// guessAnnexBCodec distinguishes H.264, H.265, and H.266 NAL headers on
// the units at the head of an Annex-B stream. H.264 parameter sets carry
// nal_ref_idc bits that HEVC/VVC headers reserve as zero; HEVC and VVC
// both use 2-byte headers but place the type in different fields.
func guessAnnexBCodec(head []byte) units.Codec {
	i := findStartCode(head)
	for i >= 0 && i+1 < len(head) {
		b0 := head[i]
		if b0&0x80 == 0 {
			h264Type := b0 & 0x1F
			hevcType := (b0 >> 1) & 0x3F
			vvcType := head[i+1] >> 3

			// H.264 SPS/PPS/IDR/AUD with non-zero nal_ref_idc.
			if b0&0x60 != 0 && (h264Type == 7 || h264Type == 8 || h264Type == 5 || h264Type == 1) {
				return units.CodecAVC
			}
			// HEVC parameter sets: type 32..34, layer id zero.
			if hevcType >= 32 && hevcType <= 34 && b0&0x01 == 0 {
				return units.CodecHEVC
			}
			// VVC parameter sets: first byte reserved zero + layer id,
			// type 14..17 in the second byte.
			if b0&0xC0 == 0 && vvcType >= 14 && vvcType <= 17 {
				return units.CodecVVC
			}
			if h264Type == 9 || h264Type == 6 {
				return units.CodecAVC
			}
		}
		next := findStartCodeFrom(head, i)
		i = next
	}
	return units.CodecAVC
}

func findStartCodeFrom(data []byte, after int) int {
	limit := len(data) - 3
	if limit > 4096 {
		limit = 4096
	}
	for i := after; i < limit; i++ {
		if data[i] == 0 && data[i+1] == 0 && data[i+2] == 1 {
			return i + 3
		}
	}
	return -1
}
