package testsupport

import (
	"context"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"lipsync/internal/services/process"
	"lipsync/internal/services/process/processtest"
)

// MediaRunner returns a fake runner that behaves like ffmpeg and the
// inference program on files written by WriteInputs. Every input is treated
// as durationSeconds long: segmenting writes ceil(duration/L) chunks, the
// inference program copies its face chunk to the outfile, and concat joins the
// manifest entries.
func MediaRunner(durationSeconds float64) *processtest.Runner {
	return processtest.New().
		Handle("ffmpeg", fakeFFmpeg(durationSeconds)).
		HandleDefault(fakeInference)
}

func fakeFFmpeg(duration float64) processtest.Handler {
	return func(_ context.Context, req process.Request) (process.Result, error) {
		out := req.Args[len(req.Args)-1]
		switch processtest.ArgAfter(req, "-f") {
		case "segment":
			seconds, err := strconv.ParseFloat(processtest.ArgAfter(req, "-segment_time"), 64)
			if err != nil || seconds <= 0 {
				return process.Result{ExitCode: 1}, fmt.Errorf("bad segment time: %v", err)
			}
			for i := range int(math.Ceil(duration / seconds)) {
				if err := os.WriteFile(fmt.Sprintf(out, i), []byte(fmt.Sprintf("chunk-%d;", i)), 0o644); err != nil {
					return process.Result{ExitCode: 1}, err
				}
			}
		case "concat":
			manifest, err := os.ReadFile(processtest.ArgAfter(req, "-i"))
			if err != nil {
				return process.Result{ExitCode: 1}, err
			}
			var joined []byte
			for _, line := range strings.Split(strings.TrimSpace(string(manifest)), "\n") {
				part := strings.TrimSuffix(strings.TrimPrefix(line, "file '"), "'")
				data, err := os.ReadFile(part)
				if err != nil {
					return process.Result{ExitCode: 1}, err
				}
				joined = append(joined, data...)
			}
			if err := os.WriteFile(out, joined, 0o644); err != nil {
				return process.Result{ExitCode: 1}, err
			}
		}
		return process.Result{}, nil
	}
}

func fakeInference(_ context.Context, req process.Request) (process.Result, error) {
	face := processtest.ArgAfter(req, "--face")
	out := processtest.ArgAfter(req, "--outfile")
	if face == "" || out == "" {
		return process.Result{}, nil
	}
	data, err := os.ReadFile(face)
	if err != nil {
		return process.Result{ExitCode: 1}, err
	}
	if err := os.MkdirAll(filepath.Dir(out), 0o755); err != nil {
		return process.Result{ExitCode: 1}, err
	}
	return process.Result{}, os.WriteFile(out, data, 0o644)
}
