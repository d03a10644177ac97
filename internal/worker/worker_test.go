package worker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/framelens/framelens/internal/bytesource"
	"github.com/framelens/framelens/internal/index"
	"github.com/framelens/framelens/internal/limits"
)

var (
	testSPS      = []byte{0x67, 0x42, 0x00, 0x1E, 0xDA, 0x10, 0x99}
	testPPS      = []byte{0x68, 0xCE, 0x38, 0x80}
	testIDRSlice = []byte{0x65, 0x88, 0x84, 0x2C}
	testPSlice   = []byte{0x41, 0xE2, 0x09}
)

func avcStream() []byte {
	var out []byte
	for _, n := range [][]byte{testSPS, testPPS, testIDRSlice, testPSlice, testIDRSlice, testPSlice} {
		out = append(out, 0x00, 0x00, 0x00, 0x01)
		out = append(out, n...)
	}
	return out
}

func startPool(t *testing.T, lim limits.Limits) *Pool {
	t.Helper()
	p := NewPool(lim, nil)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := p.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			t.Errorf("Run: %v", err)
		}
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return p
}

func awaitResult(t *testing.T, p *Pool) Result {
	t.Helper()
	select {
	case res := <-p.Results():
		return res
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for result")
		return Result{}
	}
}

func TestPoolFullIndexRequest(t *testing.T) {
	t.Parallel()

	p := startPool(t, limits.Default())
	src := bytesource.NewBytes(avcStream())

	require.NoError(t, p.Submit(Request{RequestID: "r1", StreamID: "s1", Source: src, Full: true}))

	res := awaitResult(t, p)
	require.NoError(t, res.Err)
	require.Equal(t, "r1", res.RequestID)
	require.NotNil(t, res.Session)
	require.Equal(t, index.StateFullComplete, res.Session.State())
	require.NotNil(t, res.Tree)
	require.Equal(t, 4, res.Tree.FrameCount())

	s, ok := p.Session("s1")
	require.True(t, ok)
	require.Same(t, res.Session, s)
}

func TestPoolReusesSessionPerStream(t *testing.T) {
	t.Parallel()

	p := startPool(t, limits.Default())
	src := bytesource.NewBytes(avcStream())

	require.NoError(t, p.Submit(Request{RequestID: "quick", StreamID: "s1", Source: src}))
	first := awaitResult(t, p)
	require.NoError(t, first.Err)
	require.Equal(t, index.StateQuickComplete, first.Session.State())

	require.NoError(t, p.Submit(Request{RequestID: "full", StreamID: "s1", Source: src, Full: true}))
	second := awaitResult(t, p)
	require.NoError(t, second.Err)
	require.Same(t, first.Session, second.Session)
	require.Equal(t, index.StateFullComplete, second.Session.State())
}

func TestPoolMissingFile(t *testing.T) {
	t.Parallel()

	p := startPool(t, limits.Default())
	require.NoError(t, p.Submit(Request{RequestID: "r1", StreamID: "s1", Path: "/nonexistent/stream.h264"}))

	res := awaitResult(t, p)
	require.Error(t, res.Err)
}

func TestPoolQueueFull(t *testing.T) {
	t.Parallel()

	// Not started: nothing drains the queue.
	p := NewPool(limits.Default(), nil)
	for i := 0; i < queueDepth; i++ {
		require.NoError(t, p.Submit(Request{StreamID: "s"}))
	}
	require.ErrorIs(t, p.Submit(Request{StreamID: "s"}), ErrQueueFull)
}
