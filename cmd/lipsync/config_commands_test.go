package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lipsync/internal/config"
	"lipsync/internal/testsupport"
)

func TestConfigInitAndValidate(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	target := filepath.Join(t.TempDir(), "nested", "config.toml")

	out, err := runCLI(t, nil, "config", "init", "--path", target)
	require.NoError(t, err)
	assert.Contains(t, out, "Wrote sample configuration")
	_, err = os.Stat(target)
	require.NoError(t, err)

	_, err = runCLI(t, nil, "config", "init", "--path", target)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--overwrite")

	_, err = runCLI(t, nil, "config", "init", "--path", target, "--overwrite")
	require.NoError(t, err)

	out, err = runCLI(t, nil, "--config", target, "config", "validate")
	require.NoError(t, err, out)
	assert.Contains(t, out, "Configuration valid")

	_, _, _, err = config.Load(target)
	require.NoError(t, err)
}

func TestConfigValidateReportsErrors(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	cfg := testsupport.NewConfig(t)
	path := writeConfigFile(t, cfg)
	require.NoError(t, os.WriteFile(path, []byte("[inference]\nworkers = \"many\"\n"), 0o644))

	_, err := runCLI(t, nil, "--config", path, "config", "validate")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "configuration invalid")
}
