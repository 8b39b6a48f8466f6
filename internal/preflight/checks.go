package preflight

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/sys/unix"

	"lipsync/internal/config"
)

// CheckDirectoryAccess verifies that the directory exists and is readable/writable.
func CheckDirectoryAccess(name, path string) Result {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: does not exist)", path)}
		}
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: stat: %v)", path, err)}
	}
	if !info.IsDir() {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: is not a directory)", path)}
	}
	if err := unix.Access(path, unix.R_OK|unix.W_OK|unix.X_OK); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: insufficient permissions: %v)", path, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (read/write ok)", path)}
}

// CheckInferenceScript verifies the configured inference script is readable.
// Relative scripts are resolved against inference.workdir. An empty script
// means the binary is invoked directly and the check passes.
func CheckInferenceScript(cfg *config.Config) Result {
	const name = "Inference script"
	script := strings.TrimSpace(cfg.Inference.Script)
	if script == "" {
		return Result{Name: name, Passed: true, Detail: "not configured (binary invoked directly)"}
	}
	if !filepath.IsAbs(script) && cfg.Inference.WorkDir != "" {
		script = filepath.Join(cfg.Inference.WorkDir, script)
	}
	info, err := os.Stat(script)
	if err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: %v)", script, err)}
	}
	if info.IsDir() {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: is a directory)", script)}
	}
	if err := unix.Access(script, unix.R_OK); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: not readable: %v)", script, err)}
	}
	return Result{Name: name, Passed: true, Detail: script}
}
