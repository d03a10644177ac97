// Package worker coordinates index passes across streams. Requests enter
// a bounded queue; a small pool of workers drains it, runs the quick and
// optionally the full pass on the stream's session, and posts results to
// a queue the caller polls. One session exists per stream, so repeated
// requests are idempotent at the pass level.
package worker

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/framelens/framelens/internal/bytesource"
	"github.com/framelens/framelens/internal/index"
	"github.com/framelens/framelens/internal/limits"
	"github.com/framelens/framelens/internal/units"
)

// Request asks for a stream to be indexed. Source may be nil, in which
// case Path is opened read-only and wrapped with the caching layer.
type Request struct {
	RequestID string
	StreamID  string
	Path      string
	Source    bytesource.Source
	// Full runs the per-frame pass after the quick pass.
	Full bool
}

// Result reports one completed (or failed) request.
type Result struct {
	RequestID string
	StreamID  string
	Session   *index.Session
	Tree      *units.Tree
	Err       error
}

// ErrQueueFull is returned by Submit when the request queue is at
// capacity.
var ErrQueueFull = errors.New("worker: request queue full")

const queueDepth = 64

// Pool owns the request and result queues and the per-stream sessions.
type Pool struct {
	log      *slog.Logger
	lim      limits.Limits
	requests chan Request
	results  chan Result

	mu       sync.Mutex
	sessions map[string]*index.Session
}

// NewPool creates a pool bounded by lim.MaxWorkers. If log is nil,
// slog.Default() is used.
func NewPool(lim limits.Limits, log *slog.Logger) *Pool {
	if log == nil {
		log = slog.Default()
	}
	return &Pool{
		log:      log.With("component", "worker"),
		lim:      lim,
		requests: make(chan Request, queueDepth),
		results:  make(chan Result, queueDepth),
		sessions: make(map[string]*index.Session),
	}
}

// Submit enqueues a request without blocking.
func (p *Pool) Submit(req Request) error {
	select {
	case p.requests <- req:
		return nil
	default:
		return ErrQueueFull
	}
}

// Results returns the queue of completed requests.
func (p *Pool) Results() <-chan Result {
	return p.results
}

// Session returns the stream's session, if one exists yet.
func (p *Pool) Session(streamID string) (*index.Session, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	s, ok := p.sessions[streamID]
	return s, ok
}

// Cancel requests cancellation of the stream's in-flight pass.
func (p *Pool) Cancel(streamID string) {
	if s, ok := p.Session(streamID); ok {
		s.Cancel()
	}
}

func (p *Pool) session(streamID string) *index.Session {
	p.mu.Lock()
	defer p.mu.Unlock()
	s, ok := p.sessions[streamID]
	if !ok {
		s = index.NewSession(streamID, p.log)
		p.sessions[streamID] = s
	}
	return s
}

// Run drains the request queue until the context is cancelled. It blocks;
// callers run it under their own errgroup.
func (p *Pool) Run(ctx context.Context) error {
	n := p.lim.MaxWorkers
	if n < 1 {
		n = 1
	}
	g, ctx := errgroup.WithContext(ctx)
	for i := 0; i < n; i++ {
		g.Go(func() error {
			return p.worker(ctx)
		})
	}
	return g.Wait()
}

func (p *Pool) worker(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case req := <-p.requests:
			res := p.handle(ctx, req)
			select {
			case p.results <- res:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
}

func (p *Pool) handle(ctx context.Context, req Request) Result {
	res := Result{RequestID: req.RequestID, StreamID: req.StreamID}

	src := req.Source
	if src == nil {
		f, err := bytesource.Open(req.Path)
		if err != nil {
			res.Err = err
			return res
		}
		defer f.Close()
		src = bytesource.NewCaching(f, p.lim)
	}

	s := p.session(req.StreamID)
	res.Session = s

	if err := s.QuickIndex(src, p.lim); err != nil {
		res.Err = err
		return res
	}
	if req.Full {
		if err := s.FullIndex(ctx, src, p.lim, index.FullOptions{}); err != nil {
			res.Err = err
			return res
		}
		res.Tree = s.Tree()
	}
	p.log.Debug("request done",
		"request", req.RequestID,
		"stream", req.StreamID,
		"state", s.State().String(),
		"frames", s.TotalFrames())
	return res
}
