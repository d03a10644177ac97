package framer

import (
	"github.com/framelens/framelens/internal/limits"
)

// ScanAnnexB scans data for 3- and 4-byte Annex-B start codes (00 00 01 /
// 00 00 00 01) and returns the NAL unit spans between them. Zeros
// immediately preceding a start code belong to the start code prefix, not
// to the preceding unit. The search for the next start code is abandoned
// after lim.MaxScanDistance bytes without one; that ends the scan rather
// than failing it, so a non-bitstream file simply yields zero units.
func ScanAnnexB(data []byte, lim limits.Limits) []Span {
	n := len(data)
	if n < 4 {
		return nil
	}

	type scPos struct {
		scStart   int
		dataStart int
	}

	var positions []scPos
	i := 0
	lastHit := 0
	for i < n-2 {
		if int64(i-lastHit) > lim.MaxScanDistance {
			break
		}
		if data[i] == 0 && data[i+1] == 0 {
			if i < n-3 && data[i+2] == 0 && data[i+3] == 1 {
				positions = append(positions, scPos{scStart: i, dataStart: i + 4})
				i += 4
				lastHit = i
				continue
			}
			if data[i+2] == 1 {
				positions = append(positions, scPos{scStart: i, dataStart: i + 3})
				i += 3
				lastHit = i
				continue
			}
		}
		i++
	}

	var spans []Span
	for idx, pos := range positions {
		if pos.dataStart >= n {
			continue
		}
		end := n
		if idx+1 < len(positions) {
			end = positions[idx+1].scStart
		}
		if pos.dataStart >= end {
			continue
		}
		spans = append(spans, Span{Offset: int64(pos.dataStart), Size: int64(end - pos.dataStart)})
	}
	return spans
}

// RemoveEmulationPrevention strips 00 00 03 sequences back to 00 00,
// converting RBSP to the raw bit string. A 03 following two zeros at the
// very end of the data is also an emulation byte (the RBSP stop bit and
// padding follow it in the original stream).
func RemoveEmulationPrevention(data []byte) []byte {
	out := make([]byte, 0, len(data))
	for i := 0; i < len(data); i++ {
		if i+2 < len(data) && data[i] == 0 && data[i+1] == 0 && data[i+2] == 3 &&
			(i+3 >= len(data) || data[i+3] <= 3) {
			out = append(out, 0, 0)
			i += 2
		} else {
			out = append(out, data[i])
		}
	}
	return out
}

// InsertEmulationPrevention inserts 03 bytes after any 00 00 pair followed
// by a byte <= 03, producing data safe to embed between start codes.
// RemoveEmulationPrevention(InsertEmulationPrevention(x)) == x.
func InsertEmulationPrevention(data []byte) []byte {
	out := make([]byte, 0, len(data)+len(data)/2)
	zeros := 0
	for i := 0; i < len(data); i++ {
		b := data[i]
		if zeros >= 2 && b <= 0x03 {
			out = append(out, 0x03)
			zeros = 0
		}
		if b == 0 {
			zeros++
		} else {
			zeros = 0
		}
		out = append(out, b)
	}
	return out
}
