package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yangwenmai/scanforge/internal/config"
)

const scanner = `import pandas as pd

P = {"price_min": 8.0}

class Scanner:
    def execute(self):
        return self.fetch_all_grouped_data()
`

func stubConfig() config.Config {
	cfg := config.Defaults()
	cfg.LLMProvider = "stub"
	cfg.GenerationAttempts = 1
	cfg.GenerationBackoff = 0
	return cfg
}

func writeScanner(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "gap.py")
	require.NoError(t, os.WriteFile(path, []byte(scanner), 0o644))
	return path
}

func TestRun_Stdout(t *testing.T) {
	var out, errOut bytes.Buffer
	code, err := run(context.Background(), stubConfig(), []string{writeScanner(t)}, &out, &errOut)

	require.NoError(t, err)
	assert.Equal(t, 0, code)
	assert.Contains(t, out.String(), "def run_scan(")
	assert.Contains(t, out.String(), `"""`)
	assert.Contains(t, errOut.String(), "SCANFORGE REPORT: gap.py")
}

func TestRun_OutputFileAndFlags(t *testing.T) {
	dest := filepath.Join(t.TempDir(), "out", "gap_v31.py")
	var out, errOut bytes.Buffer
	code, err := run(context.Background(), stubConfig(),
		[]string{"-o", dest, "--no-docs", "--no-optimize", writeScanner(t)}, &out, &errOut)

	require.NoError(t, err)
	assert.Equal(t, 0, code)
	assert.Empty(t, out.String())

	written, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Contains(t, string(written), "def fetch_grouped_data(")
	assert.NotContains(t, string(written), "standardized to the V31 architecture")
	assert.Contains(t, errOut.String(), "skipped")
}

func TestRun_Usage(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{"no file", nil},
		{"two files", []string{"a.py", "b.py"}},
		{"unknown flag", []string{"--frobnicate", "a.py"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out, errOut bytes.Buffer
			code, err := run(context.Background(), stubConfig(), tt.args, &out, &errOut)
			require.NoError(t, err)
			assert.Equal(t, 2, code)
			for _, flag := range []string{"-o", "-no-docs", "-no-optimize", "-no-validate", "-kind"} {
				assert.Contains(t, errOut.String(), flag)
			}
		})
	}
}

func TestRun_ValidateAndKindFlags(t *testing.T) {
	tests := []struct {
		name     string
		args     []string
		wantCode int
		want     string
		notWant  string
	}{
		{"no validate", []string{"--no-validate"}, 0, "skipped", "COMPLIANCE"},
		{"parameter only", []string{"--kind", "parameter_only"}, 0, "COMPLIANCE", "failed"},
		{"unknown kind", []string{"--kind", "rewrite_all"}, 1, "unknown transformation kind", "COMPLIANCE"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out, errOut bytes.Buffer
			code, err := run(context.Background(), stubConfig(), append(tt.args, writeScanner(t)), &out, &errOut)
			require.NoError(t, err)
			assert.Equal(t, tt.wantCode, code)
			assert.Contains(t, errOut.String(), tt.want)
			assert.NotContains(t, errOut.String(), tt.notWant)
		})
	}
}
