package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"coursetrack/internal/config"
	"coursetrack/internal/testsupport"
)

type cliTestEnv struct {
	cfg        *config.Config
	configPath string
	courseRoot string
}

func setupCLITestEnv(t *testing.T, opts ...testsupport.ConfigOption) *cliTestEnv {
	t.Helper()

	base := t.TempDir()
	t.Setenv("HOME", filepath.Join(base, "home"))
	cfg := testsupport.NewConfig(t, opts...)
	data, err := cfg.Encode()
	if err != nil {
		t.Fatalf("encode config: %v", err)
	}
	configPath := filepath.Join(base, "config.toml")
	if err := os.WriteFile(configPath, data, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	root := filepath.Join(base, "Go Course")
	testsupport.WriteFile(t, filepath.Join(root, "1 - Intro", "1 Welcome.mp4"), 100)
	testsupport.WriteFile(t, filepath.Join(root, "1 - Intro", "2 Setup.mp4"), 200)
	testsupport.WriteFile(t, filepath.Join(root, "2 - Basics", "1 Types.mkv"), 300)
	resolved, err := filepath.EvalSymlinks(root)
	if err != nil {
		t.Fatalf("resolve root: %v", err)
	}

	return &cliTestEnv{cfg: cfg, configPath: configPath, courseRoot: resolved}
}

func runCLI(t *testing.T, args []string, configPath, stdin string) (string, string, error) {
	t.Helper()

	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetIn(strings.NewReader(stdin))
	if configPath != "" {
		args = append([]string{"--config", configPath}, args...)
	}
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return stdout.String(), stderr.String(), err
}

func requireContains(t *testing.T, haystack, needle string) {
	t.Helper()
	if !strings.Contains(haystack, needle) {
		t.Fatalf("expected output to contain %q\n--- output ---\n%s", needle, haystack)
	}
}
