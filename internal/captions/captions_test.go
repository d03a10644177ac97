package captions

import (
	"testing"

	"github.com/framelens/framelens/internal/units"
)

func TestProcessSEINonCaptionPayload(t *testing.T) {
	t.Parallel()

	e := NewExtractor()
	// Buffering-period SEI, no caption data inside.
	sei := []byte{0x06, 0x00, 0x02, 0xAA, 0xBB, 0x80}
	if got := e.ProcessSEI(sei, 0, -1); got != nil {
		t.Errorf("non-caption SEI produced %d captions", len(got))
	}
	if got := e.ProcessSEI(nil, 0, -1); got != nil {
		t.Errorf("empty SEI produced %d captions", len(got))
	}
}

func TestIsSEI(t *testing.T) {
	t.Parallel()

	cases := []struct {
		codec    units.Codec
		unitType int
		want     bool
	}{
		{units.CodecAVC, 6, true},
		{units.CodecAVC, 5, false},
		{units.CodecHEVC, 39, true},
		{units.CodecHEVC, 40, true},
		{units.CodecHEVC, 19, false},
		{units.CodecAV1, 6, false},
		{units.CodecMPEG2, 6, false},
	}
	for _, tc := range cases {
		if got := isSEI(tc.codec, tc.unitType); got != tc.want {
			t.Errorf("isSEI(%s, %d) = %v, want %v", tc.codec, tc.unitType, got, tc.want)
		}
	}
}

func TestAnnotateWithoutSEI(t *testing.T) {
	t.Parallel()

	tree := units.NewTree("no-sei")
	idr := units.NewUnitNode(units.UnitKey{StreamID: "no-sei", UnitType: 5, ByteOffset: 4, Size: 4})
	idr.UnitType = 5
	idr.FrameIndex = 0
	tree.Append(idr)
	if err := tree.Finalize(8); err != nil {
		t.Fatal(err)
	}

	if got := Annotate(make([]byte, 16), tree, units.CodecAVC); got != nil {
		t.Errorf("Annotate = %d captions, want none", len(got))
	}
}

func TestAnnotateSkipsNonSEICodecs(t *testing.T) {
	t.Parallel()

	tree := units.NewTree("vp9")
	if err := tree.Finalize(8); err != nil {
		t.Fatal(err)
	}
	if got := Annotate(nil, tree, units.CodecVP9); got != nil {
		t.Errorf("Annotate on VP9 = %d captions", len(got))
	}
	if got := Annotate(nil, nil, units.CodecAVC); got != nil {
		t.Errorf("Annotate on nil tree = %d captions", len(got))
	}
}
