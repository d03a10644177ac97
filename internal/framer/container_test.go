package framer

import (
	"bytes"
	"testing"

	"github.com/framelens/framelens/internal/units"
)

func TestDetectContainer(t *testing.T) {
	t.Parallel()

	ts := make([]byte, 2*tsPacketSize)
	ts[0] = 0x47
	ts[tsPacketSize] = 0x47

	tests := []struct {
		name      string
		head      []byte
		want      Container
		wantCodec units.Codec
	}{
		{"ivf av1", buildIVF("AV01", []byte{0x0A}), ContainerIVF, units.CodecAV1},
		{"ivf vp9", buildIVF("VP90", []byte{0x0A}), ContainerIVF, units.CodecVP9},
		{"mpegts", ts, ContainerMPEGTS, units.CodecUnknown},
		{
			"annexb h264 sps",
			[]byte{0x00, 0x00, 0x00, 0x01, 0x67, 0x42, 0xE0, 0x1E},
			ContainerAnnexB, units.CodecAVC,
		},
		{
			"annexb hevc sps",
			[]byte{0x00, 0x00, 0x00, 0x01, 0x42, 0x01, 0x01},
			ContainerAnnexB, units.CodecHEVC,
		},
		{
			"mpeg2 sequence header",
			[]byte{0x00, 0x00, 0x01, 0xB3, 0x14, 0x00, 0xF0},
			ContainerMPEG2ES, units.CodecMPEG2,
		},
		{
			"raw obu",
			[]byte{0x12, 0x00, 0x0A, 0x06},
			ContainerOBU, units.CodecAV1,
		},
		{"garbage", bytes.Repeat([]byte{0xFF}, 64), ContainerUnknown, units.CodecUnknown},
		{"empty", nil, ContainerUnknown, units.CodecUnknown},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, codec := DetectContainer(tt.head)
			if got != tt.want {
				t.Errorf("container = %v, want %v", got, tt.want)
			}
			if codec != tt.wantCodec {
				t.Errorf("codec = %v, want %v", codec, tt.wantCodec)
			}
		})
	}
}
