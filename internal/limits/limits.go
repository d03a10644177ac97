// Package limits defines the resource bounds enforced at every parse entry
// point. Limits travel as an explicit struct threaded through the parsers
// rather than as process globals, so tests can inject tight bounds
// deterministically.
package limits

// Limits bounds the work a single parse pass may perform on untrusted
// input. A zero value is invalid; start from Default and override.
type Limits struct {
	// MaxFrames caps the number of indexed frames per file.
	MaxFrames int
	// MaxFrameSize caps the byte size of a single frame or unit payload.
	MaxFrameSize int64
	// MaxBufferSize caps any single in-flight read buffer.
	MaxBufferSize int64
	// MaxRecursionDepth caps nesting of container structures.
	MaxRecursionDepth int
	// MaxScanDistance caps the search for the next start code. Exceeding it
	// ends the scan ("no more units"), it is not an error.
	MaxScanDistance int64
	// MaxUnitsPerFrame caps OBUs or NAL units attributable to one frame.
	MaxUnitsPerFrame int
	// MaxWorkers caps concurrently running parse workers.
	MaxWorkers int
}

// Default returns the production limits.
func Default() Limits {
	return Limits{
		MaxFrames:         4 << 20,
		MaxFrameSize:      64 << 20,
		MaxBufferSize:     256 << 20,
		MaxRecursionDepth: 32,
		MaxScanDistance:   100 << 20,
		MaxUnitsPerFrame:  4096,
		MaxWorkers:        4,
	}
}
