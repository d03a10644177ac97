package index

import "sort"

// Policy derives a window size from the total frame count.
type Policy func(totalFrames int) int

// Fixed always windows n frames.
func Fixed(n int) Policy {
	return func(int) int { return n }
}

// Adaptive scales the window with stream length: a sixteenth of the
// stream, held between 64 and 1024 frames.
func Adaptive(totalFrames int) int {
	n := totalFrames / 16
	if n < 64 {
		n = 64
	}
	if n > 1024 {
		n = 1024
	}
	return n
}

// Window is a bounded view policy over an index. It is recomputed per
// focus change and holds no seek points itself.
type Window struct {
	TotalFrames int
	Size        int
}

// NewWindow derives the window for a stream of totalFrames frames.
func NewWindow(totalFrames int, p Policy) Window {
	size := p(totalFrames)
	if size < 1 {
		size = 1
	}
	return Window{TotalFrames: totalFrames, Size: size}
}

// Slice returns at most w.Size seek points centred on the focus display
// index. points must be sorted by DisplayIdx, which index passes
// guarantee. The result is a copy.
func (w Window) Slice(points []SeekPoint, focus int) []SeekPoint {
	if len(points) == 0 {
		return nil
	}

	at := sort.Search(len(points), func(i int) bool {
		return points[i].DisplayIdx >= focus
	})
	if at == len(points) {
		at = len(points) - 1
	}

	lo := at - w.Size/2
	if lo+w.Size > len(points) {
		lo = len(points) - w.Size
	}
	if lo < 0 {
		lo = 0
	}
	hi := lo + w.Size
	if hi > len(points) {
		hi = len(points)
	}

	out := make([]SeekPoint, hi-lo)
	copy(out, points[lo:hi])
	return out
}
