package deps

import "lipsync/internal/config"

// Requirements lists the programs a configured lipsync install executes.
// ffprobe is optional unless input probing is enabled.
func Requirements(cfg *config.Config) []Requirement {
	if cfg == nil {
		return nil
	}
	return []Requirement{
		{
			Name:        "FFmpeg",
			Command:     cfg.FFmpegBinary(),
			Description: "Required for segmenting and concatenation",
		},
		{
			Name:        "FFprobe",
			Command:     cfg.FFprobeBinary(),
			Description: "Validates input streams before inference",
			Optional:    !cfg.FFmpeg.ProbeInputs,
		},
		{
			Name:        "Inference",
			Command:     cfg.Inference.Binary,
			Description: "Runs the lip-sync model for each segment",
		},
	}
}

// Check evaluates Requirements(cfg).
func Check(cfg *config.Config) []Status {
	return CheckBinaries(Requirements(cfg))
}
