package workflow

import "lipsync/internal/preflight"

// StageHealth summarizes the readiness of a pipeline stage.
type StageHealth struct {
	Name   string `json:"name"`
	Ready  bool   `json:"ready"`
	Detail string `json:"detail,omitempty"`
}

// stageChecks lists the preflight results each pipeline stage depends on.
var stageChecks = []struct {
	stage  string
	checks []string
}{
	{"staging", []string{"Work directory", "Upload directory"}},
	{"segmenting", []string{"FFmpeg", "FFprobe"}},
	{"inferring", []string{"Inference", "Inference script"}},
	{"concatenating", []string{"FFmpeg", "Results directory"}},
}

// evaluateStages reports a stage unready when the first of its checks fails.
// Checks missing from results count as passed.
func evaluateStages(results []preflight.Result) []StageHealth {
	byName := make(map[string]preflight.Result, len(results))
	for _, r := range results {
		byName[r.Name] = r
	}
	out := make([]StageHealth, 0, len(stageChecks)+1)
	for _, sc := range stageChecks {
		health := StageHealth{Name: sc.stage, Ready: true}
		for _, check := range sc.checks {
			if r, ok := byName[check]; ok && !r.Passed {
				health.Ready = false
				health.Detail = r.Name + ": " + r.Detail
				break
			}
		}
		out = append(out, health)
	}
	return out
}
