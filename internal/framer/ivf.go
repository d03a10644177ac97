package framer

import (
	"encoding/binary"
	"errors"

	"github.com/framelens/framelens/internal/bitio"
	"github.com/framelens/framelens/internal/limits"
	"github.com/framelens/framelens/internal/units"
)

// IVFHeaderSize is the fixed size of the IVF file header.
const IVFHeaderSize = 32

// ivfFrameHeaderSize is the per-frame header: 4-byte size + 8-byte PTS.
const ivfFrameHeaderSize = 12

// IVFHeader is the parsed 32-byte IVF file header.
type IVFHeader struct {
	FourCC        string
	Codec         units.Codec
	Width         uint16
	Height        uint16
	TimebaseDen   uint32
	TimebaseNum   uint32
	DeclaredCount uint32
	HeaderSize    uint16
}

// IVFFrame is one IVF frame record. Offset points at the frame payload,
// after the 12-byte frame header.
type IVFFrame struct {
	Span
	PTS uint64
}

// CodecForFourCC maps an IVF fourcc to its codec.
func CodecForFourCC(fourcc string) units.Codec {
	switch fourcc {
	case "AV01":
		return units.CodecAV1
	case "AV03", "AVS3":
		return units.CodecAV3
	case "VP90":
		return units.CodecVP9
	case "H264", "AVC1":
		return units.CodecAVC
	case "HEVC", "H265":
		return units.CodecHEVC
	case "VVC1", "H266":
		return units.CodecVVC
	case "MP2V":
		return units.CodecMPEG2
	default:
		return units.CodecUnknown
	}
}

// ParseIVFHeader decodes the file header. The "DKIF" magic is required;
// anything else is a parse error at offset zero.
func ParseIVFHeader(data []byte) (IVFHeader, error) {
	if len(data) < IVFHeaderSize {
		return IVFHeader{}, &bitio.EOFError{Offset: int64(len(data))}
	}
	if string(data[0:4]) != "DKIF" {
		return IVFHeader{}, &bitio.ParseError{Offset: 0, Msg: "missing DKIF magic"}
	}
	hdrSize := binary.LittleEndian.Uint16(data[6:8])
	if int(hdrSize) < IVFHeaderSize {
		return IVFHeader{}, &bitio.ParseError{Offset: 6, Msg: "IVF header size below minimum"}
	}
	fourcc := string(data[8:12])
	return IVFHeader{
		FourCC:        fourcc,
		Codec:         CodecForFourCC(fourcc),
		Width:         binary.LittleEndian.Uint16(data[12:14]),
		Height:        binary.LittleEndian.Uint16(data[14:16]),
		TimebaseDen:   binary.LittleEndian.Uint32(data[16:20]),
		TimebaseNum:   binary.LittleEndian.Uint32(data[20:24]),
		DeclaredCount: binary.LittleEndian.Uint32(data[24:28]),
		HeaderSize:    hdrSize,
	}, nil
}

// ScanIVF parses the header and every complete frame record. A frame whose
// declared size runs past the end of data yields an EOFError together with
// the frames before it; a declared size above lim.MaxFrameSize is an
// InvalidData error. The declared frame count in the header is advisory
// and is not trusted.
func ScanIVF(data []byte, lim limits.Limits) (IVFHeader, []IVFFrame, error) {
	hdr, err := ParseIVFHeader(data)
	if err != nil {
		return IVFHeader{}, nil, err
	}
	if int(hdr.HeaderSize) > len(data) {
		return hdr, nil, &bitio.EOFError{Offset: int64(len(data))}
	}
	frames, err := ScanIVFFrames(data[hdr.HeaderSize:], lim)
	for i := range frames {
		frames[i].Offset += int64(hdr.HeaderSize)
	}
	var eof *bitio.EOFError
	if errors.As(err, &eof) {
		err = &bitio.EOFError{Offset: int64(len(data))}
	}
	return hdr, frames, err
}

// ScanIVFFrames scans frame records from a frame boundary, with no file
// header expected. Offsets are relative to data. A frame running past the
// end of data yields an EOFError together with the complete frames before
// it.
func ScanIVFFrames(data []byte, lim limits.Limits) ([]IVFFrame, error) {
	var frames []IVFFrame
	off := int64(0)
	n := int64(len(data))
	for off < n {
		if len(frames) >= lim.MaxFrames {
			return frames, &bitio.InvalidDataError{Msg: "IVF frame count exceeds MaxFrames"}
		}
		if off+ivfFrameHeaderSize > n {
			return frames, &bitio.EOFError{Offset: n}
		}
		size := int64(binary.LittleEndian.Uint32(data[off : off+4]))
		pts := binary.LittleEndian.Uint64(data[off+4 : off+12])
		if size > lim.MaxFrameSize {
			return frames, &bitio.InvalidDataError{Msg: "IVF frame size exceeds MaxFrameSize"}
		}
		payload := off + ivfFrameHeaderSize
		if payload+size > n {
			return frames, &bitio.EOFError{Offset: n}
		}
		frames = append(frames, IVFFrame{
			Span: Span{Offset: payload, Size: size},
			PTS:  pts,
		})
		off = payload + size
	}
	return frames, nil
}
