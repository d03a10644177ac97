package index

import (
	"errors"
	"fmt"

	"github.com/framelens/framelens/internal/bitio"
	"github.com/framelens/framelens/internal/bytesource"
	"github.com/framelens/framelens/internal/framer"
	"github.com/framelens/framelens/internal/limits"
	"github.com/framelens/framelens/internal/mpegts"
	"github.com/framelens/framelens/internal/units"
)

// streamInfo is the result of probing a stream's head.
type streamInfo struct {
	container framer.Container
	codec     units.Codec
}

// unit is one enumerable parse unit: a NAL unit, OBU, VP9 frame, or
// MPEG-2 start-code unit, with stream byte provenance and the container
// timestamps when the container carries them (-1 otherwise). codec is the
// unit's elementary codec, which for transport streams is only known
// after PMT discovery.
type unit struct {
	codec   units.Codec
	payload []byte
	offset  int64
	pts     int64
	dts     int64
}

// unitFunc receives each unit in stream order. A non-nil return stops the
// enumeration and is propagated; errStopScan stops it silently.
type unitFunc func(u unit) error

const probeLen = 2 * mpegts.PacketSize

// minScanWindow keeps the scan windows large enough that window churn
// stays negligible even with small frame limits.
const minScanWindow = 1 << 20

// scanWindow sizes the read window so any unit within MaxFrameSize fits
// one window together with its successor's start, while never holding
// more than MaxBufferSize resident.
func scanWindow(lim limits.Limits) int {
	w := 2 * lim.MaxFrameSize
	if w < minScanWindow {
		w = minScanWindow
	}
	if w > lim.MaxBufferSize {
		w = lim.MaxBufferSize
	}
	if w < 64 {
		w = 64
	}
	return int(w)
}

// probe detects the container and codec from the head of the stream. A
// head in which no container can be recognized yields ContainerUnknown
// with no error; index passes treat that as a zero-unit stream.
func probe(data []byte, hint units.Codec) (streamInfo, error) {
	head := data
	if len(head) > probeLen {
		head = head[:probeLen]
	}
	container, codec := framer.DetectContainer(head)
	if hint != units.CodecUnknown {
		codec = hint
	}
	if container == framer.ContainerUnknown {
		return streamInfo{container: framer.ContainerUnknown}, nil
	}
	if container != framer.ContainerMPEGTS && codec == units.CodecUnknown {
		return streamInfo{}, &bitio.InvalidDataError{Msg: fmt.Sprintf("cannot determine codec for %s stream", container)}
	}
	return streamInfo{container: container, codec: codec}, nil
}

// probeSource probes from the head of a source.
func probeSource(src bytesource.Source, hint units.Codec) (streamInfo, error) {
	n := probeLen
	if sz := src.Size(); sz < int64(n) {
		n = int(sz)
	}
	head, err := src.ReadRange(0, n)
	if err != nil {
		return streamInfo{}, err
	}
	return probe(head, hint)
}

// forEachUnit enumerates the units of a probed source through bounded
// read windows, so streams larger than memory index incrementally.
// Scan-level truncation (an OBU overrunning its buffer, a malformed
// superframe index) ends the enumeration with the units found so far and
// reports the cause through diag, not as a hard error.
func forEachUnit(src bytesource.Source, info streamInfo, lim limits.Limits, diag func(offset int64, err error), fn unitFunc) error {
	switch info.container {
	case framer.ContainerUnknown:
		return nil

	case framer.ContainerAnnexB:
		// Rescanning from 4 bytes before a unit re-covers its start
		// code prefix in the next window.
		scan := func(data []byte) []framer.Span {
			return framer.ScanAnnexB(data, lim)
		}
		return forEachSpanWindowed(src, lim, 4, scan, func(abs int64, payload []byte) error {
			return fn(unit{codec: info.codec, payload: payload, offset: abs, pts: -1, dts: -1})
		})

	case framer.ContainerMPEG2ES:
		// MPEG-2 span offsets point at the start code value byte, 3
		// bytes past the 00 00 01 prefix.
		scan := func(data []byte) []framer.Span {
			ms := framer.ScanMPEG2(data, lim)
			spans := make([]framer.Span, len(ms))
			for i, m := range ms {
				spans[i] = m.Span
			}
			return spans
		}
		return forEachSpanWindowed(src, lim, 3, scan, func(abs int64, payload []byte) error {
			return fn(unit{codec: info.codec, payload: payload, offset: abs, pts: -1, dts: -1})
		})

	case framer.ContainerOBU:
		return forEachOBUWindowed(src, info.codec, lim, diag, fn)

	case framer.ContainerIVF:
		return forEachIVF(src, info, lim, diag, fn)

	case framer.ContainerMPEGTS:
		return forEachTS(src, lim, diag, fn)

	default:
		return &bitio.InvalidDataError{Msg: fmt.Sprintf("cannot enumerate %s container", info.container)}
	}
}

// forEachSpanWindowed drives a start-code span scanner across read
// windows. Within a window every span but the last is complete; the last
// may extend into the next window, so the scan resumes prefix bytes
// before it. On the final window all spans are emitted.
func forEachSpanWindowed(src bytesource.Source, lim limits.Limits, prefix int64, scan func([]byte) []framer.Span, emit func(abs int64, payload []byte) error) error {
	size := src.Size()
	win := scanWindow(lim)
	base := int64(0)
	for base < size {
		n := win
		if rem := size - base; int64(n) > rem {
			n = int(rem)
		}
		data, err := src.ReadRange(base, n)
		if err != nil {
			return err
		}
		last := base+int64(n) == size

		spans := scan(data)
		if len(spans) == 0 {
			// No start code in a whole window: treated as end of
			// scannable data, same as the scanner's distance bound.
			return nil
		}
		cut := len(spans)
		if !last {
			cut--
		}
		for _, sp := range spans[:cut] {
			if err := emit(base+sp.Offset, data[sp.Offset:sp.End()]); err != nil {
				return err
			}
		}
		if last {
			return nil
		}
		next := base + spans[len(spans)-1].Offset - prefix
		if next <= base {
			return &bitio.InvalidDataError{Msg: "unit exceeds scan window"}
		}
		base = next
	}
	return nil
}

// forEachOBUWindowed enumerates a raw low-overhead stream. A truncated
// OBU at a window edge resumes in the next window; truncation at end of
// stream, or a malformed header, is reported through diag.
func forEachOBUWindowed(src bytesource.Source, codec units.Codec, lim limits.Limits, diag func(int64, error), fn unitFunc) error {
	size := src.Size()
	win := scanWindow(lim)
	base := int64(0)
	for base < size {
		n := win
		if rem := size - base; int64(n) > rem {
			n = int(rem)
		}
		data, err := src.ReadRange(base, n)
		if err != nil {
			return err
		}
		last := base+int64(n) == size

		spans, scanErr := framer.ScanOBUs(data, lim)
		for _, sp := range spans {
			if err := fn(unit{codec: codec, payload: data[sp.Offset:sp.End()], offset: base + sp.Offset, pts: -1, dts: -1}); err != nil {
				return err
			}
		}
		if scanErr != nil {
			if !last && errors.Is(scanErr, bitio.ErrUnexpectedEOF) {
				next := base + spanEnd(spans)
				if next == base {
					return &bitio.InvalidDataError{Msg: "OBU exceeds scan window"}
				}
				base = next
				continue
			}
			diag(base+spanEnd(spans), scanErr)
			return nil
		}
		base += int64(n)
	}
	return nil
}

// forEachIVF enumerates IVF frame records, splitting each frame payload
// per the codec (VP9 superframes, AV1/AV3 OBUs).
func forEachIVF(src bytesource.Source, info streamInfo, lim limits.Limits, diag func(int64, error), fn unitFunc) error {
	size := src.Size()
	win := scanWindow(lim)

	headLen := framer.IVFHeaderSize
	if int64(headLen) > size {
		headLen = int(size)
	}
	head, err := src.ReadRange(0, headLen)
	if err != nil {
		return err
	}
	hdr, err := framer.ParseIVFHeader(head)
	if err != nil {
		return err
	}

	base := int64(hdr.HeaderSize)
	total := 0
	for base < size {
		n := win
		if rem := size - base; int64(n) > rem {
			n = int(rem)
		}
		data, err := src.ReadRange(base, n)
		if err != nil {
			return err
		}
		last := base+int64(n) == size

		frames, scanErr := framer.ScanIVFFrames(data, lim)
		if scanErr != nil && len(frames) == 0 && total == 0 {
			return scanErr
		}
		for _, fr := range frames {
			if err := emitIVFFrame(info.codec, data[fr.Offset:fr.End()], base+fr.Offset, int64(fr.PTS), lim, diag, fn); err != nil {
				return err
			}
			total++
		}
		if scanErr != nil {
			if !last && errors.Is(scanErr, bitio.ErrUnexpectedEOF) {
				next := base + frameEnd(frames)
				if next == base {
					return &bitio.InvalidDataError{Msg: "IVF frame exceeds scan window"}
				}
				base = next
				continue
			}
			diag(base+frameEnd(frames), scanErr)
			return nil
		}
		base += int64(n)
	}
	return nil
}

func emitIVFFrame(codec units.Codec, payload []byte, base, pts int64, lim limits.Limits, diag func(int64, error), fn unitFunc) error {
	switch codec {
	case units.CodecVP9:
		return forEachVP9Frame(payload, base, pts, diag, fn)
	case units.CodecAV1, units.CodecAV3:
		return forEachOBUBuf(codec, payload, base, pts, lim, diag, fn)
	default:
		// Annex-B in IVF is nonstandard but seen in the wild.
		for _, sp := range framer.ScanAnnexB(payload, lim) {
			if err := fn(unit{codec: codec, payload: payload[sp.Offset:sp.End()], offset: base + sp.Offset, pts: pts, dts: -1}); err != nil {
				return err
			}
		}
		return nil
	}
}

// forEachTS streams the transport packets through the demuxer in
// packet-aligned windows, enumerating the elementary units of each access
// unit as it completes.
func forEachTS(src bytesource.Source, lim limits.Limits, diag func(int64, error), fn unitFunc) error {
	size := src.Size()
	win := scanWindow(lim)
	win -= win % mpegts.PacketSize
	if win < mpegts.PacketSize {
		win = mpegts.PacketSize
	}

	var ex *mpegts.Extractor
	ex = mpegts.NewExtractor(lim, func(au mpegts.AccessUnit) error {
		prog, _ := ex.Program()
		return forEachESUnit(au, prog.Codec, lim, fn)
	})

	for base := int64(0); base < size; base += int64(win) {
		n := win
		if rem := size - base; int64(n) > rem {
			n = int(rem)
		}
		data, err := src.ReadRange(base, n)
		if err != nil {
			return err
		}
		if err := ex.Feed(data, base); err != nil {
			return err
		}
	}
	return ex.Flush()
}

// forEachESUnit enumerates the units of one reassembled access unit.
func forEachESUnit(au mpegts.AccessUnit, codec units.Codec, lim limits.Limits, fn unitFunc) error {
	emit := func(sp framer.Span) error {
		return fn(unit{
			codec:   codec,
			payload: au.Data[sp.Offset:sp.End()],
			offset:  au.Offset + sp.Offset,
			pts:     au.PTS,
			dts:     au.DTS,
		})
	}
	if codec == units.CodecMPEG2 {
		for _, m := range framer.ScanMPEG2(au.Data, lim) {
			if err := emit(m.Span); err != nil {
				return err
			}
		}
		return nil
	}
	for _, sp := range framer.ScanAnnexB(au.Data, lim) {
		if err := emit(sp); err != nil {
			return err
		}
	}
	return nil
}

// forEachOBUBuf enumerates the OBUs of one in-memory buffer (an IVF
// temporal unit).
func forEachOBUBuf(codec units.Codec, data []byte, base, pts int64, lim limits.Limits, diag func(int64, error), fn unitFunc) error {
	spans, scanErr := framer.ScanOBUs(data, lim)
	for _, sp := range spans {
		if err := fn(unit{codec: codec, payload: data[sp.Offset:sp.End()], offset: base + sp.Offset, pts: pts, dts: -1}); err != nil {
			return err
		}
	}
	if scanErr != nil {
		diag(base+spanEnd(spans), scanErr)
	}
	return nil
}

// forEachVP9Frame splits a possible superframe into its frames.
func forEachVP9Frame(data []byte, base, pts int64, diag func(int64, error), fn unitFunc) error {
	spans, scanErr := framer.ParseSuperframeIndex(data)
	for _, sp := range spans {
		if err := fn(unit{codec: units.CodecVP9, payload: data[sp.Offset:sp.End()], offset: base + sp.Offset, pts: pts, dts: -1}); err != nil {
			return err
		}
	}
	if scanErr != nil {
		diag(base+spanEnd(spans), scanErr)
	}
	return nil
}

func spanEnd(spans []framer.Span) int64 {
	if len(spans) == 0 {
		return 0
	}
	return spans[len(spans)-1].End()
}

func frameEnd(frames []framer.IVFFrame) int64 {
	if len(frames) == 0 {
		return 0
	}
	return frames[len(frames)-1].End()
}
