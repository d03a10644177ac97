// Command framelens indexes a video bitstream file and prints a JSON
// report: stream summary, head of the frame table, keyframe list, and
// per-unit diagnostics.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/framelens/framelens/internal/bytesource"
	"github.com/framelens/framelens/internal/captions"
	"github.com/framelens/framelens/internal/index"
	"github.com/framelens/framelens/internal/indexcache"
	"github.com/framelens/framelens/internal/limits"
	"github.com/framelens/framelens/internal/units"
	"github.com/framelens/framelens/internal/worker"
)

var version = "dev"

const frameTableHead = 16

type report struct {
	Path        string        `json:"path"`
	Size        int64         `json:"size"`
	Container   string        `json:"container,omitempty"`
	Codec       string        `json:"codec"`
	TotalFrames int           `json:"total_frames"`
	Keyframes   []int         `json:"keyframes"`
	Frames      []frameEntry  `json:"frames"`
	Diagnostics []string      `json:"diagnostics,omitempty"`
	Captions    []captionInfo `json:"captions,omitempty"`
	FromCache   bool          `json:"from_cache,omitempty"`
}

type frameEntry struct {
	DisplayIdx int     `json:"display_idx"`
	ByteOffset int64   `json:"byte_offset"`
	Keyframe   bool    `json:"keyframe,omitempty"`
	FrameType  string  `json:"frame_type,omitempty"`
	QP         *uint8  `json:"qp,omitempty"`
	PTS        *uint64 `json:"pts,omitempty"`
}

type captionInfo struct {
	DisplayIdx int    `json:"display_idx"`
	Channel    int    `json:"channel"`
	Text       string `json:"text"`
}

func main() {
	level := slog.LevelInfo
	if os.Getenv("DEBUG") != "" {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	if len(os.Args) != 2 {
		fmt.Fprintf(os.Stderr, "usage: %s <file>\n", os.Args[0])
		os.Exit(2)
	}
	path := os.Args[1]

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		slog.Info("received signal, cancelling", "signal", sig)
		cancel()
	}()

	if err := run(ctx, path); err != nil {
		slog.Error("indexing failed", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, path string) error {
	lim := limits.Default()
	useCache := envOr("FRAMELENS_CACHE", "1") != "0"
	windowSize := 0
	if v := envOr("FRAMELENS_WINDOW", ""); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			return fmt.Errorf("bad FRAMELENS_WINDOW %q", v)
		}
		windowSize = n
	}

	src, err := bytesource.Open(path)
	if err != nil {
		return err
	}
	defer src.Close()

	slog.Info("framelens starting", "version", version, "path", path, "size", src.Size())

	if useCache {
		if snap, err := indexcache.Load(path, src.Size(), lim); err == nil {
			slog.Info("index cache hit", "frames", snap.TotalFrames, "points", len(snap.Points))
			return printReport(reportFromCache(path, src.Size(), snap, windowSize))
		}
	}

	pool := worker.NewPool(lim, nil)
	poolCtx, poolCancel := context.WithCancel(ctx)
	defer poolCancel()
	g, gctx := errgroup.WithContext(poolCtx)
	g.Go(func() error {
		err := pool.Run(gctx)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})

	const streamID = "cli"
	req := worker.Request{
		RequestID: "cli-1",
		StreamID:  streamID,
		Source:    bytesource.NewCaching(src, lim),
		Full:      true,
	}
	if err := pool.Submit(req); err != nil {
		return err
	}

	g.Go(func() error {
		logProgress(gctx, pool, streamID)
		return nil
	})

	var res worker.Result
	select {
	case res = <-pool.Results():
	case <-gctx.Done():
		return gctx.Err()
	}
	if res.Err != nil {
		poolCancel()
		_ = g.Wait()
		return res.Err
	}
	s := res.Session

	rep := buildReport(path, src, s, windowSize, lim)

	if useCache && s.State() == index.StateFullComplete {
		snap := indexcache.Snapshot{
			StreamSize:  src.Size(),
			Codec:       s.Codec(),
			TotalFrames: s.TotalFrames(),
			Points:      s.SeekPoints(),
		}
		if err := indexcache.Save(path, snap); err != nil {
			slog.Warn("could not write index cache", "error", err)
		} else {
			slog.Debug("index cache written", "path", indexcache.SidecarPath(path))
		}
	}

	if err := printReport(rep); err != nil {
		return err
	}
	poolCancel()
	return g.Wait()
}

// logProgress mirrors full-index progress to the log at a readable pace.
func logProgress(ctx context.Context, pool *worker.Pool, streamID string) {
	var s *index.Session
	for {
		var ok bool
		if s, ok = pool.Session(streamID); ok {
			break
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(10 * time.Millisecond):
		}
	}
	for {
		select {
		case <-ctx.Done():
			return
		case p := <-s.Progress():
			slog.Info("indexing",
				"frames", p.FramesIndexed,
				"scanned", p.BytesScanned,
				"total", p.TotalBytes)
		}
	}
}

func windowPolicy(windowSize int) index.Policy {
	if windowSize > 0 {
		return index.Fixed(windowSize)
	}
	return index.Adaptive
}

func buildReport(path string, src *bytesource.File, s *index.Session, windowSize int, lim limits.Limits) report {
	rep := report{
		Path:        path,
		Size:        src.Size(),
		Container:   s.Container().String(),
		Codec:       s.Codec().String(),
		TotalFrames: s.TotalFrames(),
	}
	for _, kp := range s.Keyframes() {
		rep.Keyframes = append(rep.Keyframes, kp.DisplayIdx)
	}

	head := s.Slice(0, windowPolicy(windowSize))
	if len(head) > frameTableHead {
		head = head[:frameTableHead]
	}
	tree := s.Tree()
	for _, sp := range head {
		fe := frameEntry{
			DisplayIdx: sp.DisplayIdx,
			ByteOffset: sp.ByteOffset,
			Keyframe:   sp.IsKeyframe,
			PTS:        sp.PTS,
		}
		if tree != nil {
			if n, ok := tree.FrameByDisplayIndex(sp.DisplayIdx); ok {
				fe.FrameType = n.FrameType.String()
				if n.QPAvg != nil {
					qp := uint8(*n.QPAvg)
					fe.QP = &qp
				}
			}
		}
		rep.Frames = append(rep.Frames, fe)
	}

	if tree != nil {
		for _, d := range tree.Diagnostics() {
			rep.Diagnostics = append(rep.Diagnostics, d.String())
		}
		if s.Codec() == units.CodecAVC || s.Codec() == units.CodecHEVC {
			if data, err := os.ReadFile(path); err == nil {
				for _, c := range captions.Annotate(data, tree, s.Codec()) {
					rep.Captions = append(rep.Captions, captionInfo{
						DisplayIdx: c.DisplayIdx,
						Channel:    c.Channel,
						Text:       c.Text,
					})
				}
			}
		}
	}
	return rep
}

func reportFromCache(path string, size int64, snap indexcache.Snapshot, windowSize int) report {
	rep := report{
		Path:        path,
		Size:        size,
		Codec:       snap.Codec.String(),
		TotalFrames: snap.TotalFrames,
		FromCache:   true,
	}
	for _, sp := range snap.Points {
		if sp.IsKeyframe {
			rep.Keyframes = append(rep.Keyframes, sp.DisplayIdx)
		}
	}
	head := index.NewWindow(snap.TotalFrames, windowPolicy(windowSize)).Slice(snap.Points, 0)
	if len(head) > frameTableHead {
		head = head[:frameTableHead]
	}
	for _, sp := range head {
		rep.Frames = append(rep.Frames, frameEntry{
			DisplayIdx: sp.DisplayIdx,
			ByteOffset: sp.ByteOffset,
			Keyframe:   sp.IsKeyframe,
			PTS:        sp.PTS,
		})
	}
	return rep
}

func printReport(rep report) error {
	out, err := json.MarshalIndent(rep, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
