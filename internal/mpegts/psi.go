package mpegts

import "github.com/framelens/framelens/internal/units"

// PSI handling for PAT and PMT. Sections are expected to fit a single
// transport packet, which holds for the single-program streams this
// indexer targets; spanning sections are skipped rather than assembled.

func sectionAt(payload []byte, pusi bool, wantTableID byte) []byte {
	if !pusi || len(payload) < 1 {
		return nil
	}
	offset := 1 + int(payload[0]) // pointer_field
	if offset+3 > len(payload) {
		return nil
	}
	// section_syntax_indicator must be 1 for PAT/PMT.
	if payload[offset] != wantTableID || payload[offset+1]&0x80 == 0 {
		return nil
	}
	sectionLen := int(payload[offset+1]&0x0F)<<8 | int(payload[offset+2])
	end := offset + 3 + sectionLen
	if end > len(payload) {
		return nil
	}
	section := payload[offset:end]
	if verifyCRC32(section) != nil {
		return nil
	}
	return section
}

// parsePAT returns the PMT PIDs declared by a PAT section, if the payload
// carries one.
func parsePAT(payload []byte, pusi bool) []uint16 {
	section := sectionAt(payload, pusi, tableIDPAT)
	if section == nil || len(section) < 12 {
		return nil
	}

	var pids []uint16
	// Program entries run from byte 8 to 4 bytes before the section end.
	for i := 8; i+4 <= len(section)-4; i += 4 {
		programNumber := uint16(section[i])<<8 | uint16(section[i+1])
		if programNumber == 0 {
			continue // NIT PID, skip
		}
		pids = append(pids, uint16(section[i+2]&0x1F)<<8|uint16(section[i+3]))
	}
	return pids
}

// parsePMT returns the first supported video stream declared by a PMT
// section: its elementary PID and stream type.
func parsePMT(payload []byte, pusi bool) (uint16, uint8, bool) {
	section := sectionAt(payload, pusi, tableIDPMT)
	if section == nil || len(section) < 16 {
		return 0, 0, false
	}

	programInfoLen := int(section[10]&0x0F)<<8 | int(section[11])
	offset := 12 + programInfoLen
	// Elementary stream entries run until 4 bytes before section end (CRC).
	for offset+5 <= len(section)-4 {
		streamType := section[offset]
		pid := uint16(section[offset+1]&0x1F)<<8 | uint16(section[offset+2])
		esInfoLen := int(section[offset+3]&0x0F)<<8 | int(section[offset+4])
		if CodecForStreamType(streamType) != units.CodecUnknown {
			return pid, streamType, true
		}
		offset += 5 + esInfoLen
	}
	return 0, 0, false
}
