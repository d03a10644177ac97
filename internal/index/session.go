// Package index builds seekable frame indexes over probed bitstreams. A
// Session runs up to two passes over a byte source: a quick pass that
// finds keyframes for an immediate sparse timeline, and a full pass that
// gives every displayable frame a SeekPoint and builds the unit tree.
package index

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/framelens/framelens/internal/bitio"
	"github.com/framelens/framelens/internal/bytesource"
	"github.com/framelens/framelens/internal/codec"
	"github.com/framelens/framelens/internal/framer"
	"github.com/framelens/framelens/internal/limits"
	"github.com/framelens/framelens/internal/units"
)

// State is the session lifecycle position.
type State int

const (
	StateIdle State = iota
	StateQuickComplete
	StateFullComplete
	StateError
)

func (s State) String() string {
	switch s {
	case StateQuickComplete:
		return "quick-complete"
	case StateFullComplete:
		return "full-complete"
	case StateError:
		return "error"
	default:
		return "idle"
	}
}

// SeekPoint locates one displayable frame in the stream.
type SeekPoint struct {
	DisplayIdx int
	ByteOffset int64
	IsKeyframe bool
	PTS        *uint64
}

// Progress is a point-in-time report of a running full index.
type Progress struct {
	FramesIndexed int
	BytesScanned  int64
	TotalBytes    int64
}

// FullOptions tunes a full index pass.
type FullOptions struct {
	// ProgressEvery is the frame cadence of progress updates. Zero means
	// the default of 256 frames.
	ProgressEvery int
}

const defaultProgressEvery = 256

// Session indexes one stream. Passes are serialized internally; accessors
// are safe to call from other goroutines while a pass runs.
type Session struct {
	log      *slog.Logger
	streamID string

	// runMu serializes index passes so at most one is in flight.
	runMu sync.Mutex

	mu        sync.Mutex
	state     State
	err       error
	container framer.Container
	codec     units.Codec
	sparse    []SeekPoint
	full      []SeekPoint
	tree      *units.Tree
	total     int

	ps        *codec.ParamSets
	cancelled atomic.Bool
	progress  chan Progress
}

// NewSession creates a session for the stream. If log is nil,
// slog.Default() is used.
func NewSession(streamID string, log *slog.Logger) *Session {
	if log == nil {
		log = slog.Default()
	}
	return &Session{
		log:      log.With("component", "index", "stream", streamID),
		streamID: streamID,
		ps:       codec.NewParamSets(),
		progress: make(chan Progress, 8),
	}
}

// State returns the current lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Err returns the error that moved the session to StateError, if any.
func (s *Session) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Container returns the probed container, valid after the first pass.
func (s *Session) Container() framer.Container {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.container
}

// Codec returns the probed codec, valid after the first pass.
func (s *Session) Codec() units.Codec {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.codec
}

// Tree returns the unit tree, non-nil only after a completed full index.
func (s *Session) Tree() *units.Tree {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tree
}

// TotalFrames returns the displayable frame count of the deepest
// completed pass.
func (s *Session) TotalFrames() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.total
}

// Progress returns the channel carrying full-index progress updates. The
// channel is bounded; updates are dropped, not blocked on, when the
// consumer lags.
func (s *Session) Progress() <-chan Progress {
	return s.progress
}

// Cancel requests cooperative cancellation of the running pass. The pass
// stops at the next unit boundary and keeps its partial results.
func (s *Session) Cancel() {
	s.cancelled.Store(true)
}

// SeekPoints returns the full index when complete, else the sparse
// keyframe index. The returned slice is a copy.
func (s *Session) SeekPoints() []SeekPoint {
	s.mu.Lock()
	defer s.mu.Unlock()
	src := s.sparse
	if s.state == StateFullComplete {
		src = s.full
	}
	out := make([]SeekPoint, len(src))
	copy(out, src)
	return out
}

// Keyframes returns the keyframe seek points of the deepest completed pass.
func (s *Session) Keyframes() []SeekPoint {
	var out []SeekPoint
	for _, sp := range s.SeekPoints() {
		if sp.IsKeyframe {
			out = append(out, sp)
		}
	}
	return out
}

// Slice computes a bounded window of seek points centred on the focus
// display index, using the full index when complete and falling back to
// sparse keyframes before that.
func (s *Session) Slice(focus int, p Policy) []SeekPoint {
	w := NewWindow(s.TotalFrames(), p)
	return w.Slice(s.SeekPoints(), focus)
}

func (s *Session) fail(err error) error {
	s.mu.Lock()
	s.state = StateError
	s.err = err
	s.mu.Unlock()
	s.log.Error("index pass failed", "error", err)
	return err
}

// QuickIndex runs the sparse keyframe pass. It is idempotent: on a
// session at QuickComplete or beyond it returns immediately. The source
// is read through bounded windows, never materialized whole.
func (s *Session) QuickIndex(src bytesource.Source, lim limits.Limits) error {
	s.runMu.Lock()
	defer s.runMu.Unlock()

	switch s.State() {
	case StateQuickComplete, StateFullComplete:
		return nil
	case StateError:
		return s.Err()
	}

	info, err := probeSource(src, s.codecHint())
	if err != nil {
		return s.fail(err)
	}

	s.ps.Reset()
	var (
		sparse     []SeekPoint
		displayIdx int
		streamC    = info.codec
	)
	err = forEachUnit(src, info, lim, func(int64, error) {}, func(u unit) error {
		if s.cancelled.Load() {
			return errStopScan
		}
		if displayIdx >= lim.MaxFrames {
			return errStopScan
		}
		streamC = u.codec
		ui, perr := codec.ParseUnit(u.codec, u.payload, u.offset, s.ps, lim)
		if perr != nil {
			return nil // quick pass only needs classifiable frames
		}
		if !displayable(ui) {
			return nil
		}
		if ui.IsKeyframe {
			sparse = append(sparse, seekPoint(displayIdx, u, true))
		}
		displayIdx++
		return nil
	})
	if err != nil && err != errStopScan {
		return s.fail(err)
	}
	if s.cancelled.Load() {
		s.cancelled.Store(false)
		s.mu.Lock()
		s.container = info.container
		s.codec = streamC
		s.sparse = sparse
		s.mu.Unlock()
		s.log.Info("quick index cancelled", "keyframes", len(sparse))
		return context.Canceled
	}

	s.mu.Lock()
	s.state = StateQuickComplete
	s.container = info.container
	s.codec = streamC
	s.sparse = sparse
	s.total = displayIdx
	s.mu.Unlock()

	s.log.Info("quick index complete",
		"container", info.container.String(),
		"codec", streamC.String(),
		"frames", displayIdx,
		"keyframes", len(sparse))
	return nil
}

// FullIndex runs the per-frame pass, building the unit tree and one
// SeekPoint per displayable frame. On a FullComplete session it is a
// no-op. A cancelled pass keeps its partial seek points and leaves the
// prior state intact so a later call can rebuild.
func (s *Session) FullIndex(ctx context.Context, src bytesource.Source, lim limits.Limits, opts FullOptions) error {
	s.runMu.Lock()
	defer s.runMu.Unlock()

	switch s.State() {
	case StateFullComplete:
		return nil
	case StateError:
		return s.Err()
	}

	every := opts.ProgressEvery
	if every <= 0 {
		every = defaultProgressEvery
	}

	info, err := probeSource(src, s.codecHint())
	if err != nil {
		return s.fail(err)
	}
	totalBytes := src.Size()

	s.ps.Reset()
	var (
		tree       = units.NewTree(s.streamID)
		full       []SeekPoint
		displayIdx int
		streamC    = info.codec
		lastNode   *units.UnitNode
	)
	scanDiag := func(offset int64, derr error) {
		if lastNode != nil {
			lastNode.AddDiag(units.SeverityWarn, offset, derr.Error())
		}
		s.log.Warn("scan truncated", "offset", offset, "error", derr)
	}

	err = forEachUnit(src, info, lim, scanDiag, func(u unit) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		if s.cancelled.Load() {
			return context.Canceled
		}
		if displayIdx >= lim.MaxFrames {
			return errStopScan
		}
		streamC = u.codec

		node := units.NewUnitNode(units.UnitKey{
			StreamID:   s.streamID,
			ByteOffset: u.offset,
			Size:       int64(len(u.payload)),
		})
		node.PTS = u.pts
		node.DTS = u.dts
		tree.Append(node)
		lastNode = node

		ui, perr := codec.ParseUnit(u.codec, u.payload, u.offset, s.ps, lim)
		if perr != nil {
			node.AddDiag(severityFor(perr), u.offset, perr.Error())
			return nil
		}
		node.UnitType = ui.TypeID
		node.Key.UnitType = ui.TypeID
		node.TypeName = ui.TypeName
		node.QPAvg = ui.QP
		node.RefSlots = ui.RefSlots
		node.TemporalID = ui.TemporalID

		if !displayable(ui) {
			return nil
		}
		node.FrameIndex = displayIdx
		node.FrameType = ui.FrameType
		full = append(full, seekPoint(displayIdx, u, ui.IsKeyframe))
		displayIdx++

		if displayIdx%every == 0 {
			s.emitProgress(Progress{
				FramesIndexed: displayIdx,
				BytesScanned:  u.offset + int64(len(u.payload)),
				TotalBytes:    totalBytes,
			})
		}
		return nil
	})
	if err != nil && err != errStopScan {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			s.cancelled.Store(false)
			s.mu.Lock()
			s.full = full
			s.mu.Unlock()
			s.log.Info("full index cancelled", "frames", displayIdx)
			return err
		}
		return s.fail(err)
	}

	if err := tree.Finalize(lim.MaxRecursionDepth); err != nil {
		return s.fail(err)
	}

	s.mu.Lock()
	s.state = StateFullComplete
	s.container = info.container
	s.codec = streamC
	s.full = full
	s.tree = tree
	s.total = displayIdx
	if s.sparse == nil {
		s.sparse = keyframesOf(full)
	}
	s.mu.Unlock()

	s.emitProgress(Progress{
		FramesIndexed: displayIdx,
		BytesScanned:  totalBytes,
		TotalBytes:    totalBytes,
	})
	s.log.Info("full index complete", "frames", displayIdx, "units", len(tree.Units))
	return nil
}

func (s *Session) emitProgress(p Progress) {
	select {
	case s.progress <- p:
	default: // consumer lagging, drop
	}
}

func (s *Session) codecHint() units.Codec {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.codec
}

// displayable reports whether a parsed unit adds one display-addressable
// frame: a shown coded frame, or a show-existing directive.
func displayable(ui codec.UnitInfo) bool {
	return (ui.IsFrame && ui.ShowFrame) || ui.ShowExisting
}

func seekPoint(displayIdx int, u unit, key bool) SeekPoint {
	sp := SeekPoint{DisplayIdx: displayIdx, ByteOffset: u.offset, IsKeyframe: key}
	if u.pts >= 0 {
		pts := uint64(u.pts)
		sp.PTS = &pts
	}
	return sp
}

func keyframesOf(points []SeekPoint) []SeekPoint {
	var out []SeekPoint
	for _, sp := range points {
		if sp.IsKeyframe {
			out = append(out, sp)
		}
	}
	return out
}

func severityFor(err error) units.Severity {
	if errors.Is(err, bitio.ErrUnexpectedEOF) {
		return units.SeverityError
	}
	return units.SeverityWarn
}

// errStopScan ends a unit walk early without signalling failure.
var errStopScan = errors.New("stop scan")
