// Package framer locates structural unit boundaries in raw byte streams:
// Annex-B start-code scanning with emulation-prevention handling, OBU
// framing via LEB128 size fields, MPEG-2 start-code classification, VP9
// superframe indices, and the IVF container. The framer reports byte spans
// only; it never interprets unit payloads.
package framer

// Span is one structural unit's byte extent within its stream. For Annex-B
// streams Offset points at the first payload byte after the start code; for
// OBU streams it points at the OBU header byte.
type Span struct {
	Offset int64
	Size   int64
}

// End returns the byte offset one past the span.
func (s Span) End() int64 { return s.Offset + s.Size }
