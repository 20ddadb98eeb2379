package deps

import (
	"minutes/internal/config"
	"minutes/internal/media/ffprobe"
)

// Required lists the binaries the media pipeline shells out to. The probe
// command follows the same resolution the pipeline uses at runtime, so status
// output reports the binary that would actually execute.
func Required(cfg *config.Config) []Requirement {
	if cfg == nil {
		return nil
	}
	return []Requirement{
		{
			Name:        "FFmpeg",
			Command:     cfg.Media.FFmpegPath,
			Description: "Extracts the audio master and chunk files from uploads",
		},
		{
			Name:        "FFprobe",
			Command:     ffprobe.ResolveBinary(cfg.Media.FFprobePath, cfg.Media.FFmpegPath),
			Description: "Probes uploads for duration and stream metadata",
		},
	}
}

// Check evaluates the pipeline's binary requirements.
func Check(cfg *config.Config) []Status {
	return CheckBinaries(Required(cfg))
}

// MissingRequired filters statuses down to unavailable, non-optional entries.
func MissingRequired(statuses []Status) []Status {
	var missing []Status
	for _, status := range statuses {
		if !status.Optional && !status.Available {
			missing = append(missing, status)
		}
	}
	return missing
}
