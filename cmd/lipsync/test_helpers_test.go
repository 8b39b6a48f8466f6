package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/pelletier/go-toml/v2"
	"github.com/stretchr/testify/require"

	"lipsync/internal/config"
	"lipsync/internal/daemon"
	"lipsync/internal/events"
	"lipsync/internal/pipeline"
	"lipsync/internal/testsupport"
	"lipsync/internal/workflow"
)

type cliTestEnv struct {
	cfg        *config.Config
	daemon     *daemon.Daemon
	configPath string
	apiAddr    string
}

// setupCLITestEnv starts an in-process daemon backed by the fake media
// runner and writes a config file pointing at it.
func setupCLITestEnv(t *testing.T) *cliTestEnv {
	t.Helper()
	t.Setenv("HOME", t.TempDir())

	cfg := testsupport.NewConfig(t, testsupport.WithAPIToken("cli-token"))
	require.NoError(t, cfg.EnsureDirectories())
	configPath := writeConfigFile(t, cfg)

	store := testsupport.MustOpenStore(t, cfg)
	driver, err := pipeline.NewFromConfig(cfg, testsupport.MediaRunner(25), nil)
	require.NoError(t, err)
	hub := events.NewHub(256)
	mgr := workflow.NewManager(cfg, store, driver, hub, nil,
		workflow.WithPreflight(nil),
		workflow.WithPollInterval(20*time.Millisecond),
	)
	d, err := daemon.New(cfg, store, nil, mgr, hub)
	require.NoError(t, err)
	require.NoError(t, d.Start(context.Background()))
	t.Cleanup(d.Stop)

	return &cliTestEnv{cfg: cfg, daemon: d, configPath: configPath, apiAddr: d.APIAddr()}
}

func writeConfigFile(t *testing.T, cfg *config.Config) string {
	t.Helper()
	data, err := toml.Marshal(cfg)
	require.NoError(t, err)
	path := filepath.Join(testsupport.BaseDir(cfg), "config.toml")
	require.NoError(t, os.WriteFile(path, data, 0o644))
	return path
}

// runCLI executes the root command with --config and --api prepended.
func runCLI(t *testing.T, env *cliTestEnv, args ...string) (string, error) {
	t.Helper()
	full := make([]string, 0, len(args)+4)
	if env != nil {
		full = append(full, "--config", env.configPath, "--api", env.apiAddr)
	}
	full = append(full, args...)

	cmd := newRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(full)
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	err := cmd.ExecuteContext(ctx)
	return out.String(), err
}
