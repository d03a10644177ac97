// Package indexcache persists a completed frame index to a sidecar file
// so a reopened stream skips re-indexing. The format is a small varint
// record stream: a magic, format version, the source stream's size for
// staleness detection, and delta-encoded seek points.
package indexcache

import (
	"bytes"
	"fmt"
	"os"

	"github.com/quic-go/quic-go/quicvarint"

	"github.com/framelens/framelens/internal/bitio"
	"github.com/framelens/framelens/internal/index"
	"github.com/framelens/framelens/internal/limits"
	"github.com/framelens/framelens/internal/units"
)

const (
	magic   = "FLIX"
	version = 1

	flagKeyframe = 1 << 0
	flagHasPTS   = 1 << 1
)

// SidecarPath returns the cache file path for a stream path.
func SidecarPath(streamPath string) string {
	return streamPath + ".flix"
}

// Snapshot is the persisted portion of a completed session.
type Snapshot struct {
	StreamSize  int64
	Codec       units.Codec
	TotalFrames int
	Points      []index.SeekPoint
}

// Encode serializes a snapshot.
func Encode(s Snapshot) []byte {
	buf := []byte(magic)
	buf = quicvarint.Append(buf, version)
	buf = quicvarint.Append(buf, uint64(s.StreamSize))
	buf = quicvarint.Append(buf, uint64(s.Codec))
	buf = quicvarint.Append(buf, uint64(s.TotalFrames))
	buf = quicvarint.Append(buf, uint64(len(s.Points)))

	var prevIdx, prevOff uint64
	for _, sp := range s.Points {
		flags := uint64(0)
		if sp.IsKeyframe {
			flags |= flagKeyframe
		}
		if sp.PTS != nil {
			flags |= flagHasPTS
		}
		buf = quicvarint.Append(buf, flags)
		buf = quicvarint.Append(buf, uint64(sp.DisplayIdx)-prevIdx)
		buf = quicvarint.Append(buf, uint64(sp.ByteOffset)-prevOff)
		if sp.PTS != nil {
			buf = quicvarint.Append(buf, *sp.PTS)
		}
		prevIdx = uint64(sp.DisplayIdx)
		prevOff = uint64(sp.ByteOffset)
	}
	return buf
}

// Decode parses a snapshot and validates it against the stream it is
// meant to index. A cache written for different bytes (size mismatch) is
// InvalidData; structural corruption is a parse error. Callers treat any
// error as a miss and re-index.
func Decode(data []byte, streamSize int64, lim limits.Limits) (Snapshot, error) {
	if len(data) < len(magic) || string(data[:len(magic)]) != magic {
		return Snapshot{}, &bitio.ParseError{Offset: 0, Msg: "missing FLIX magic"}
	}
	br := bytes.NewReader(data[len(magic):])

	read := func() (uint64, error) {
		v, err := quicvarint.Read(br)
		if err != nil {
			return 0, &bitio.EOFError{Offset: int64(len(data)) - int64(br.Len())}
		}
		return v, nil
	}

	ver, err := read()
	if err != nil {
		return Snapshot{}, err
	}
	if ver != version {
		return Snapshot{}, &bitio.ParseError{Msg: fmt.Sprintf("unsupported cache version %d", ver)}
	}
	size, err := read()
	if err != nil {
		return Snapshot{}, err
	}
	if int64(size) != streamSize {
		return Snapshot{}, &bitio.InvalidDataError{
			Msg: fmt.Sprintf("cache written for stream size %d, have %d", size, streamSize),
		}
	}
	codecV, err := read()
	if err != nil {
		return Snapshot{}, err
	}
	if codecV > uint64(units.CodecMPEG2) {
		return Snapshot{}, &bitio.ParseError{Msg: fmt.Sprintf("unknown codec value %d", codecV)}
	}
	total, err := read()
	if err != nil {
		return Snapshot{}, err
	}
	count, err := read()
	if err != nil {
		return Snapshot{}, err
	}
	if count > uint64(lim.MaxFrames) || total > uint64(lim.MaxFrames) {
		return Snapshot{}, &bitio.InvalidDataError{
			Msg: fmt.Sprintf("cache entry count %d exceeds MaxFrames %d", count, lim.MaxFrames),
		}
	}

	s := Snapshot{
		StreamSize:  streamSize,
		Codec:       units.Codec(codecV),
		TotalFrames: int(total),
		Points:      make([]index.SeekPoint, 0, count),
	}
	var prevIdx, prevOff uint64
	for i := uint64(0); i < count; i++ {
		flags, err := read()
		if err != nil {
			return Snapshot{}, err
		}
		dIdx, err := read()
		if err != nil {
			return Snapshot{}, err
		}
		dOff, err := read()
		if err != nil {
			return Snapshot{}, err
		}
		// Deltas are unsigned, so wraparound is the only way a decoded
		// value can fail to increase.
		nextIdx, nextOff := prevIdx+dIdx, prevOff+dOff
		if i > 0 && (nextIdx <= prevIdx || nextOff <= prevOff) {
			return Snapshot{}, &bitio.ParseError{Msg: "cached seek points not strictly increasing"}
		}
		prevIdx, prevOff = nextIdx, nextOff
		if prevIdx > uint64(lim.MaxFrames) {
			return Snapshot{}, &bitio.InvalidDataError{
				Msg: fmt.Sprintf("cached display index %d exceeds MaxFrames %d", prevIdx, lim.MaxFrames),
			}
		}
		if int64(prevOff) < 0 || int64(prevOff) >= streamSize {
			return Snapshot{}, &bitio.InvalidDataError{
				Msg: fmt.Sprintf("cached byte offset %d beyond stream size %d", prevOff, streamSize),
			}
		}
		sp := index.SeekPoint{
			DisplayIdx: int(prevIdx),
			ByteOffset: int64(prevOff),
			IsKeyframe: flags&flagKeyframe != 0,
		}
		if flags&flagHasPTS != 0 {
			pts, err := read()
			if err != nil {
				return Snapshot{}, err
			}
			sp.PTS = &pts
		}
		s.Points = append(s.Points, sp)
	}
	return s, nil
}

// Save writes the sidecar next to the stream.
func Save(streamPath string, s Snapshot) error {
	return os.WriteFile(SidecarPath(streamPath), Encode(s), 0o644)
}

// Load reads and validates the sidecar for a stream of streamSize bytes.
func Load(streamPath string, streamSize int64, lim limits.Limits) (Snapshot, error) {
	data, err := os.ReadFile(SidecarPath(streamPath))
	if err != nil {
		return Snapshot{}, err
	}
	return Decode(data, streamSize, lim)
}
