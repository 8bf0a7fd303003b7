package probe

import (
	"strings"

	"mediaguard/internal/media/ffprobe"
)

// ClassifyHDR applies the HDR precedence: PQ transfer or BT.2020 primaries,
// then Dolby Vision metadata, then HLG transfer, else SDR.
func ClassifyHDR(stream ffprobe.Stream) HDRType {
	transfer := strings.ToLower(strings.TrimSpace(stream.ColorTransfer))
	primaries := strings.ToLower(strings.TrimSpace(stream.ColorPrimaries))

	if transfer == "smpte2084" || strings.HasPrefix(primaries, "bt2020") {
		return HDR10
	}
	if hasDolbyVision(stream) {
		return HDRDolbyVision
	}
	if transfer == "arib-std-b67" {
		return HDRHLG
	}
	return HDRNone
}

func hasDolbyVision(stream ffprobe.Stream) bool {
	for _, sd := range stream.SideDataList {
		kind := strings.ToLower(sd.Type)
		if strings.Contains(kind, "dovi") || strings.Contains(kind, "dolby vision") {
			return true
		}
	}
	switch strings.ToLower(strings.TrimSpace(stream.CodecTag)) {
	case "dvh1", "dvhe", "dva1", "dvav":
		return true
	}
	return false
}
