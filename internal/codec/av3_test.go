package codec

import (
	"errors"
	"testing"

	"github.com/framelens/framelens/internal/bitio"
	"github.com/framelens/framelens/internal/limits"
	"github.com/framelens/framelens/internal/units"
)

var (
	// Profile 1, level 4, 1920x1080.
	testAV3SeqOBU = []byte{0x0A, 0x05, 0x24, 0x07, 0x7F, 0x04, 0x37}
	// Shown key frame, base_q_idx 100.
	testAV3KeyFrameOBU = []byte{0x1A, 0x02, 0x16, 0x40}
	// Shown inter frame, base_q_idx 80.
	testAV3InterFrameOBU = []byte{0x1A, 0x02, 0x35, 0x00}
	// show_existing_frame pointing at slot 3.
	testAV3ShowExistingOBU = []byte{0x1A, 0x01, 0xB0}
)

func TestParseAV3SequenceHeader(t *testing.T) {
	t.Parallel()
	seq, err := ParseAV3SequenceHeader(testAV3SeqOBU[2:], 2)
	if err != nil {
		t.Fatalf("ParseAV3SequenceHeader: %v", err)
	}
	if seq.Profile != 1 {
		t.Errorf("profile: got %d, want 1", seq.Profile)
	}
	if seq.Level != 4 {
		t.Errorf("level: got %d, want 4", seq.Level)
	}
	if seq.Width != 1920 || seq.Height != 1080 {
		t.Errorf("size: got %dx%d, want 1920x1080", seq.Width, seq.Height)
	}
}

func TestParseAV3SequenceHeaderTruncated(t *testing.T) {
	t.Parallel()
	_, err := ParseAV3SequenceHeader([]byte{0x24, 0x07}, 0)
	if !errors.Is(err, bitio.ErrUnexpectedEOF) {
		t.Fatalf("expected ErrUnexpectedEOF, got %v", err)
	}
}

func TestParseAV3FrameHeader(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name         string
		payload      []byte
		showExisting bool
		frameToShow  int
		frameType    int
		showFrame    bool
		baseQIdx     int
	}{
		{"key", testAV3KeyFrameOBU[2:], false, 0, av1KeyFrame, true, 100},
		{"inter", testAV3InterFrameOBU[2:], false, 0, av1InterFrame, true, 80},
		{"show-existing", testAV3ShowExistingOBU[2:], true, 3, 0, false, 0},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			fh, err := ParseAV3FrameHeader(tt.payload, 0)
			if err != nil {
				t.Fatalf("ParseAV3FrameHeader: %v", err)
			}
			if fh.ShowExisting != tt.showExisting || fh.FrameToShow != tt.frameToShow {
				t.Errorf("show existing: %+v", fh)
			}
			if fh.FrameType != tt.frameType || fh.ShowFrame != tt.showFrame || fh.BaseQIdx != tt.baseQIdx {
				t.Errorf("frame: %+v", fh)
			}
		})
	}
}

func TestParseUnitAV3(t *testing.T) {
	t.Parallel()
	ps := NewParamSets()
	lim := limits.Default()

	seqInfo, err := ParseUnit(units.CodecAV3, testAV3SeqOBU, 0, ps, lim)
	if err != nil {
		t.Fatalf("sequence header: %v", err)
	}
	if !seqInfo.IsParamSet || ps.AV3Seq == nil {
		t.Fatalf("sequence header info: %+v", seqInfo)
	}

	key, err := ParseUnit(units.CodecAV3, testAV3KeyFrameOBU, 7, ps, lim)
	if err != nil {
		t.Fatalf("key frame: %v", err)
	}
	if !key.IsFrame || !key.IsKeyframe || key.FrameType != units.FrameKey {
		t.Errorf("key frame info: %+v", key)
	}
	if key.QP == nil || *key.QP != 100 {
		t.Errorf("key frame qp: %+v", key.QP)
	}

	inter, err := ParseUnit(units.CodecAV3, testAV3InterFrameOBU, 11, ps, lim)
	if err != nil {
		t.Fatalf("inter frame: %v", err)
	}
	if !inter.IsFrame || inter.IsKeyframe || inter.FrameType != units.FrameInter {
		t.Errorf("inter frame info: %+v", inter)
	}
	if inter.QP == nil || *inter.QP != 80 {
		t.Errorf("inter frame qp: %+v", inter.QP)
	}

	se, err := ParseUnit(units.CodecAV3, testAV3ShowExistingOBU, 15, ps, lim)
	if err != nil {
		t.Fatalf("show existing: %v", err)
	}
	if se.IsFrame || !se.ShowExisting {
		t.Errorf("show existing info: %+v", se)
	}
	if len(se.RefSlots) != 1 || se.RefSlots[0] != 3 {
		t.Errorf("show existing slots: %v", se.RefSlots)
	}
}

func TestParseUnitAV3FrameBeforeSequence(t *testing.T) {
	t.Parallel()
	ps := NewParamSets()
	_, err := ParseUnit(units.CodecAV3, testAV3KeyFrameOBU, 0, ps, limits.Default())
	if !errors.Is(err, bitio.ErrInvalidData) {
		t.Fatalf("expected ErrInvalidData, got %v", err)
	}
}
