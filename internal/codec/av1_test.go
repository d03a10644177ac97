package codec

import (
	"errors"
	"testing"

	"github.com/framelens/framelens/internal/bitio"
	"github.com/framelens/framelens/internal/limits"
	"github.com/framelens/framelens/internal/units"
)

// Hand-constructed profile 0 sequence header: 1280x720, order hints
// enabled (7 bits), 128x128 superblocks, level 4.0.
var (
	testAV1SeqOBU = []byte{
		0x0A, 0x0B, // header (type=1, has_size), size=11
		0x00, 0x00, 0x00, 0x42, 0xA6, 0x7F,
		0xD9, 0xE8, 0x10, 0xCC, 0x02,
	}
	// Shown key frame, order_hint 0.
	testAV1KeyFrameOBU = []byte{0x1A, 0x02, 0x10, 0x00}
	// Shown inter frame, order_hint 1, refresh 0x02, ref idx 0..6.
	testAV1InterFrameOBU = []byte{0x1A, 0x06, 0x30, 0x04, 0x01, 0x01, 0x4E, 0x5D}
	// show_existing_frame pointing at slot 5.
	testAV1ShowExistingOBU = []byte{0x1A, 0x01, 0xD0}
	testAV1TemporalDelim   = []byte{0x12, 0x00}
)

func testAV1Seq(t *testing.T) *AV1SequenceHeader {
	t.Helper()
	seq, err := ParseAV1SequenceHeader(testAV1SeqOBU[2:], 2)
	if err != nil {
		t.Fatalf("ParseAV1SequenceHeader: %v", err)
	}
	return seq
}

func TestParseAV1SequenceHeader(t *testing.T) {
	t.Parallel()
	seq := testAV1Seq(t)

	if seq.Profile != 0 {
		t.Errorf("profile: got %d, want 0", seq.Profile)
	}
	if seq.StillPicture || seq.ReducedStillPicture {
		t.Error("expected full video sequence")
	}
	if len(seq.OperatingPoints) != 1 || seq.OperatingPoints[0].SeqLevelIdx != 8 {
		t.Errorf("operating points: %+v", seq.OperatingPoints)
	}
	if seq.FrameWidthBits != 11 || seq.FrameHeightBits != 10 {
		t.Errorf("size bits: got %d/%d, want 11/10", seq.FrameWidthBits, seq.FrameHeightBits)
	}
	if seq.MaxWidth != 1280 || seq.MaxHeight != 720 {
		t.Errorf("max size: got %dx%d, want 1280x720", seq.MaxWidth, seq.MaxHeight)
	}
	if !seq.Use128x128Superblock {
		t.Error("expected 128x128 superblocks")
	}
	if !seq.EnableOrderHint || seq.OrderHintBits != 7 {
		t.Errorf("order hints: enabled=%v bits=%d", seq.EnableOrderHint, seq.OrderHintBits)
	}
	if seq.ForceScreenContent != 0 {
		t.Errorf("force screen content: got %d, want 0", seq.ForceScreenContent)
	}
	if seq.BitDepth != 8 || seq.MonoChrome {
		t.Errorf("color: depth=%d mono=%v", seq.BitDepth, seq.MonoChrome)
	}
	if !seq.SubsamplingX || !seq.SubsamplingY {
		t.Error("expected 4:2:0 subsampling")
	}
	if seq.FilmGrainPresent {
		t.Error("expected no film grain")
	}
}

func TestParseAV1SequenceHeaderTruncated(t *testing.T) {
	t.Parallel()
	payload := testAV1SeqOBU[2:]
	for _, n := range []int{0, 1, 4, 8} {
		_, err := ParseAV1SequenceHeader(payload[:n], 0)
		if !errors.Is(err, bitio.ErrUnexpectedEOF) {
			t.Errorf("len %d: expected ErrUnexpectedEOF, got %v", n, err)
		}
	}
}

func TestParseAV1FrameHeaderKey(t *testing.T) {
	t.Parallel()
	seq := testAV1Seq(t)

	fh, err := ParseAV1FrameHeader(testAV1KeyFrameOBU[2:], 2, seq, 0, 0)
	if err != nil {
		t.Fatalf("ParseAV1FrameHeader: %v", err)
	}
	if fh.FrameType != av1KeyFrame || !fh.ShowFrame {
		t.Errorf("frame: %+v", fh)
	}
	if fh.RefreshFlags != 0xFF {
		t.Errorf("refresh flags: got %#x, want 0xFF", fh.RefreshFlags)
	}
	if fh.Width != 1280 || fh.Height != 720 {
		t.Errorf("size: got %dx%d, want 1280x720", fh.Width, fh.Height)
	}
}

func TestParseAV1FrameHeaderInter(t *testing.T) {
	t.Parallel()
	seq := testAV1Seq(t)

	fh, err := ParseAV1FrameHeader(testAV1InterFrameOBU[2:], 2, seq, 0, 0)
	if err != nil {
		t.Fatalf("ParseAV1FrameHeader: %v", err)
	}
	if fh.FrameType != av1InterFrame || !fh.ShowFrame {
		t.Errorf("frame: %+v", fh)
	}
	if fh.OrderHint != 1 {
		t.Errorf("order hint: got %d, want 1", fh.OrderHint)
	}
	if fh.RefreshFlags != 0x02 {
		t.Errorf("refresh flags: got %#x, want 0x02", fh.RefreshFlags)
	}
	want := []uint8{0, 1, 2, 3, 4, 5, 6}
	if len(fh.RefFrameIdx) != len(want) {
		t.Fatalf("ref idx: got %v, want %v", fh.RefFrameIdx, want)
	}
	for i, v := range want {
		if fh.RefFrameIdx[i] != v {
			t.Errorf("ref idx[%d]: got %d, want %d", i, fh.RefFrameIdx[i], v)
		}
	}
}

func TestParseAV1FrameHeaderShowExisting(t *testing.T) {
	t.Parallel()
	seq := testAV1Seq(t)

	fh, err := ParseAV1FrameHeader(testAV1ShowExistingOBU[2:], 2, seq, 0, 0)
	if err != nil {
		t.Fatalf("ParseAV1FrameHeader: %v", err)
	}
	if !fh.ShowExisting || fh.FrameToShow != 5 {
		t.Errorf("frame: %+v", fh)
	}
}

func TestParseUnitAV1(t *testing.T) {
	t.Parallel()
	ps := NewParamSets()
	lim := limits.Default()

	td, err := ParseUnit(units.CodecAV1, testAV1TemporalDelim, 0, ps, lim)
	if err != nil {
		t.Fatalf("temporal delimiter: %v", err)
	}
	if td.IsFrame || td.IsParamSet {
		t.Errorf("temporal delimiter info: %+v", td)
	}

	seqInfo, err := ParseUnit(units.CodecAV1, testAV1SeqOBU, 2, ps, lim)
	if err != nil {
		t.Fatalf("sequence header: %v", err)
	}
	if !seqInfo.IsParamSet {
		t.Errorf("sequence header info: %+v", seqInfo)
	}
	if ps.AV1Seq == nil {
		t.Fatal("sequence header not cached")
	}

	key, err := ParseUnit(units.CodecAV1, testAV1KeyFrameOBU, 15, ps, lim)
	if err != nil {
		t.Fatalf("key frame: %v", err)
	}
	if !key.IsFrame || !key.IsKeyframe || key.FrameType != units.FrameKey || !key.ShowFrame {
		t.Errorf("key frame info: %+v", key)
	}

	inter, err := ParseUnit(units.CodecAV1, testAV1InterFrameOBU, 19, ps, lim)
	if err != nil {
		t.Fatalf("inter frame: %v", err)
	}
	if !inter.IsFrame || inter.IsKeyframe || inter.FrameType != units.FrameInter {
		t.Errorf("inter frame info: %+v", inter)
	}
	if len(inter.RefSlots) != 7 {
		t.Errorf("ref slots: %v", inter.RefSlots)
	}

	se, err := ParseUnit(units.CodecAV1, testAV1ShowExistingOBU, 27, ps, lim)
	if err != nil {
		t.Fatalf("show existing: %v", err)
	}
	if se.IsFrame || !se.ShowExisting {
		t.Errorf("show existing info: %+v", se)
	}
	if len(se.RefSlots) != 1 || se.RefSlots[0] != 5 {
		t.Errorf("show existing slots: %v", se.RefSlots)
	}
}

func TestParseUnitAV1FrameBeforeSequence(t *testing.T) {
	t.Parallel()
	ps := NewParamSets()
	_, err := ParseUnit(units.CodecAV1, testAV1KeyFrameOBU, 0, ps, limits.Default())
	if !errors.Is(err, bitio.ErrInvalidData) {
		t.Fatalf("expected ErrInvalidData, got %v", err)
	}
}

func FuzzParseAV1FrameHeader(f *testing.F) {
	f.Add(testAV1KeyFrameOBU[2:])
	f.Add(testAV1InterFrameOBU[2:])
	f.Add(testAV1ShowExistingOBU[2:])
	f.Fuzz(func(t *testing.T, data []byte) {
		seq, err := ParseAV1SequenceHeader(testAV1SeqOBU[2:], 0)
		if err != nil {
			t.Fatal(err)
		}
		ParseAV1FrameHeader(data, 0, seq, 0, 0) //nolint:errcheck
	})
}
