package codec

import (
	"errors"
	"testing"

	"github.com/framelens/framelens/internal/bitio"
	"github.com/framelens/framelens/internal/limits"
	"github.com/framelens/framelens/internal/units"
)

var (
	// Profile 0 key frame, 320x240, base_q_idx 120.
	testVP9KeyFrame = []byte{
		0x82, 0x49, 0x83, 0x42, 0x00, 0x13,
		0xF0, 0x0E, 0xF0, 0x00, 0x0F, 0x00,
	}
	// Profile 0 inter frame: refresh 0x04, refs 0/1/2, size from first
	// ref, base_q_idx 90.
	testVP9InterFrame = []byte{0x86, 0x01, 0x00, 0x92, 0x40, 0x00, 0x5A, 0x00}
	// show_existing_frame pointing at slot 6.
	testVP9ShowExisting = []byte{0x8E}
)

func TestParseVP9FrameHeaderKey(t *testing.T) {
	t.Parallel()
	fh, err := ParseVP9FrameHeader(testVP9KeyFrame, 0)
	if err != nil {
		t.Fatalf("ParseVP9FrameHeader: %v", err)
	}
	if fh.Profile != 0 {
		t.Errorf("profile: got %d, want 0", fh.Profile)
	}
	if !fh.IsKey || !fh.ShowFrame {
		t.Errorf("frame: %+v", fh)
	}
	if fh.Width != 320 || fh.Height != 240 {
		t.Errorf("size: got %dx%d, want 320x240", fh.Width, fh.Height)
	}
	if fh.RefreshFlags != 0xFF {
		t.Errorf("refresh flags: got %#x, want 0xFF", fh.RefreshFlags)
	}
	if !fh.HasQP || fh.BaseQIdx != 120 {
		t.Errorf("qp: got %d (has=%v), want 120", fh.BaseQIdx, fh.HasQP)
	}
}

func TestParseVP9FrameHeaderInter(t *testing.T) {
	t.Parallel()
	fh, err := ParseVP9FrameHeader(testVP9InterFrame, 0)
	if err != nil {
		t.Fatalf("ParseVP9FrameHeader: %v", err)
	}
	if fh.IsKey || fh.IntraOnly || !fh.ShowFrame {
		t.Errorf("frame: %+v", fh)
	}
	if fh.RefreshFlags != 0x04 {
		t.Errorf("refresh flags: got %#x, want 0x04", fh.RefreshFlags)
	}
	want := []uint8{0, 1, 2}
	if len(fh.RefFrameIdx) != len(want) {
		t.Fatalf("ref idx: got %v, want %v", fh.RefFrameIdx, want)
	}
	for i, v := range want {
		if fh.RefFrameIdx[i] != v {
			t.Errorf("ref idx[%d]: got %d, want %d", i, fh.RefFrameIdx[i], v)
		}
	}
	if !fh.HasQP || fh.BaseQIdx != 90 {
		t.Errorf("qp: got %d (has=%v), want 90", fh.BaseQIdx, fh.HasQP)
	}
}

func TestParseVP9FrameHeaderShowExisting(t *testing.T) {
	t.Parallel()
	fh, err := ParseVP9FrameHeader(testVP9ShowExisting, 0)
	if err != nil {
		t.Fatalf("ParseVP9FrameHeader: %v", err)
	}
	if !fh.ShowExisting || fh.FrameToShow != 6 {
		t.Errorf("frame: %+v", fh)
	}
}

func TestParseVP9FrameHeaderBadMarker(t *testing.T) {
	t.Parallel()
	_, err := ParseVP9FrameHeader([]byte{0x02, 0x49}, 0)
	if !errors.Is(err, bitio.ErrParse) {
		t.Fatalf("expected ErrParse, got %v", err)
	}
}

func TestParseVP9FrameHeaderBadSyncCode(t *testing.T) {
	t.Parallel()
	bad := append([]byte(nil), testVP9KeyFrame...)
	bad[1] = 0x00
	_, err := ParseVP9FrameHeader(bad, 0)
	if !errors.Is(err, bitio.ErrParse) {
		t.Fatalf("expected ErrParse, got %v", err)
	}
}

func TestParseVP9FrameHeaderTruncated(t *testing.T) {
	t.Parallel()
	_, err := ParseVP9FrameHeader(testVP9KeyFrame[:3], 0)
	if !errors.Is(err, bitio.ErrUnexpectedEOF) {
		t.Fatalf("expected ErrUnexpectedEOF, got %v", err)
	}
}

func TestParseUnitVP9(t *testing.T) {
	t.Parallel()
	ps := NewParamSets()
	lim := limits.Default()

	key, err := ParseUnit(units.CodecVP9, testVP9KeyFrame, 0, ps, lim)
	if err != nil {
		t.Fatalf("key: %v", err)
	}
	if !key.IsFrame || !key.IsKeyframe || key.FrameType != units.FrameKey {
		t.Errorf("key info: %+v", key)
	}
	if key.QP == nil || *key.QP != 120 {
		t.Errorf("key qp: %+v", key.QP)
	}

	inter, err := ParseUnit(units.CodecVP9, testVP9InterFrame, 12, ps, lim)
	if err != nil {
		t.Fatalf("inter: %v", err)
	}
	if !inter.IsFrame || inter.IsKeyframe || inter.FrameType != units.FrameInter {
		t.Errorf("inter info: %+v", inter)
	}
	if len(inter.RefSlots) != 3 {
		t.Errorf("inter ref slots: %v", inter.RefSlots)
	}

	se, err := ParseUnit(units.CodecVP9, testVP9ShowExisting, 20, ps, lim)
	if err != nil {
		t.Fatalf("show existing: %v", err)
	}
	if se.IsFrame || !se.ShowExisting {
		t.Errorf("show existing info: %+v", se)
	}
	if len(se.RefSlots) != 1 || se.RefSlots[0] != 6 {
		t.Errorf("show existing slots: %v", se.RefSlots)
	}
}

func FuzzParseVP9FrameHeader(f *testing.F) {
	f.Add(testVP9KeyFrame)
	f.Add(testVP9InterFrame)
	f.Add(testVP9ShowExisting)
	f.Fuzz(func(t *testing.T, data []byte) {
		ParseVP9FrameHeader(data, 0) //nolint:errcheck
	})
}
