package testsupport

import (
	"os"
	"path/filepath"
	"testing"
)

// WriteFile fills the target path with the requested number of bytes using a
// simple repeating pattern. A size <= 0 writes a single byte.
func WriteFile(t testing.TB, path string, size int64) {
	t.Helper()

	if size <= 0 {
		size = 1
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir for %s: %v", path, err)
	}
	buf := make([]byte, size)
	for i := range buf {
		buf[i] = 0x42
	}
	if err := os.WriteFile(path, buf, 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

// WriteInputs creates face.mp4 and speech.wav under dir and returns their paths.
func WriteInputs(t testing.TB, dir string) (video, audio string) {
	t.Helper()

	video = filepath.Join(dir, "face.mp4")
	audio = filepath.Join(dir, "speech.wav")
	WriteFile(t, video, 64)
	WriteFile(t, audio, 64)
	return video, audio
}
