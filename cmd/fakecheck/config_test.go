package main

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"

	fakecheck "github.com/anatolykoptev/go-fakecheck"
)

func testFlags(t *testing.T, args ...string) *pflag.FlagSet {
	t.Helper()
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	fs.StringP("output", "o", "text", "")
	fs.String("log-level", "info", "")
	fs.StringSlice("disable", nil, "")
	fs.Float64("threshold", fakecheck.DefaultDuplicateThreshold, "")
	fs.String("unmapped", "x", "")
	if err := fs.Parse(args); err != nil {
		t.Fatal(err)
	}
	return fs
}

func writeConfigFile(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "fakecheck.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadConfig_Defaults(t *testing.T) {
	cfg, err := loadConfig("", testFlags(t))
	if err != nil {
		t.Fatalf("loadConfig: %v", err)
	}
	if cfg.Output != "text" || cfg.Log.Level != "info" {
		t.Errorf("output/log = %q/%q, want text/info", cfg.Output, cfg.Log.Level)
	}
	if cfg.Duplicates.Threshold != fakecheck.DefaultDuplicateThreshold {
		t.Errorf("threshold = %v, want default", cfg.Duplicates.Threshold)
	}
	if cfg.Loader.Timeout != 10*time.Second {
		t.Errorf("loader timeout = %v, want 10s", cfg.Loader.Timeout)
	}
	w := cfg.engineConfig().Weights
	if w != fakecheck.DefaultWeights {
		t.Errorf("weights = %+v, want defaults", w)
	}
	if cfg.engineConfig().Embedder != nil {
		t.Error("no embedder URL configured, want nil Embedder")
	}
}

func TestLoadConfig_Precedence(t *testing.T) {
	path := writeConfigFile(t, `
log:
  level: debug
duplicates:
  threshold: 7
fusion:
  semantic: 0
  hash: 1
  geometric: 1
detect:
  sites: [Temu]
  brands:
    - name: Acme
      variants: [ACM3]
loader:
  timeout: 3s
`)

	cfg, err := loadConfig(path, testFlags(t))
	if err != nil {
		t.Fatalf("file: %v", err)
	}
	if cfg.Duplicates.Threshold != 7 || cfg.Log.Level != "debug" {
		t.Errorf("file layer: threshold=%v level=%q", cfg.Duplicates.Threshold, cfg.Log.Level)
	}
	if cfg.Loader.Timeout != 3*time.Second {
		t.Errorf("loader timeout = %v, want 3s", cfg.Loader.Timeout)
	}
	ec := cfg.engineConfig()
	if ec.Weights != (fakecheck.Weights{Hash: 1, Geometric: 1}) {
		t.Errorf("weights = %+v", ec.Weights)
	}
	if len(ec.Brands) != 1 || ec.Brands[0].Name != "Acme" || ec.Brands[0].Variants[0] != "ACM3" {
		t.Errorf("brands = %+v, want Acme", ec.Brands)
	}
	if len(ec.ExtraRiskySites) != 1 || ec.ExtraRiskySites[0] != "Temu" {
		t.Errorf("sites = %v, want [Temu]", ec.ExtraRiskySites)
	}

	t.Setenv("FAKECHECK_DUPLICATES_THRESHOLD", "8")
	t.Setenv("FAKECHECK_OUTPUT", "json")
	cfg, err = loadConfig(path, testFlags(t))
	if err != nil {
		t.Fatalf("env: %v", err)
	}
	if cfg.Duplicates.Threshold != 8 || cfg.Output != "json" {
		t.Errorf("env layer: threshold=%v output=%q", cfg.Duplicates.Threshold, cfg.Output)
	}
	if cfg.Log.Level != "debug" {
		t.Errorf("env must not reset file values, level=%q", cfg.Log.Level)
	}

	cfg, err = loadConfig(path, testFlags(t, "--threshold=9", "--disable=geometric"))
	if err != nil {
		t.Fatalf("flags: %v", err)
	}
	if cfg.Duplicates.Threshold != 9 {
		t.Errorf("flag layer: threshold=%v, want 9", cfg.Duplicates.Threshold)
	}
	if cfg.Output != "json" {
		t.Errorf("unset flag must not override env, output=%q", cfg.Output)
	}
	if got := cfg.engineConfig().DisabledMethods; len(got) != 1 || got[0] != fakecheck.MethodGeometric {
		t.Errorf("disabled = %v, want [geometric]", got)
	}
}

func TestLoadConfig_Invalid(t *testing.T) {
	tests := []struct {
		name string
		args []string
		file string
	}{
		{name: "bad output", args: []string{"--output=xml"}},
		{name: "bad log level", args: []string{"--log-level=loud"}},
		{name: "bad method", args: []string{"--disable=sift"}},
		{name: "missing file", file: filepath.Join(t.TempDir(), "absent.yaml")},
		{name: "all-zero weights", file: writeConfigFile(t, "fusion:\n  semantic: 0\n  hash: 0\n  geometric: 0\n")},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := loadConfig(tc.file, testFlags(t, tc.args...)); err == nil {
				t.Error("expected an error")
			}
		})
	}
}

func TestEngineConfig_Embedder(t *testing.T) {
	cfg, err := loadConfig("", testFlags(t))
	if err != nil {
		t.Fatal(err)
	}
	cfg.Embedder.URL = "http://embed.local/v1"
	cfg.Embedder.Token = "secret"

	emb, ok := cfg.engineConfig().Embedder.(*fakecheck.HTTPEmbedder)
	if !ok {
		t.Fatalf("Embedder = %T, want *HTTPEmbedder", cfg.engineConfig().Embedder)
	}
	if emb.URL != "http://embed.local/v1" || emb.Headers["Authorization"] != "Bearer secret" {
		t.Errorf("embedder = %+v", emb)
	}
	if emb.Timeout != 30*time.Second {
		t.Errorf("embedder timeout = %v, want 30s", emb.Timeout)
	}
}

func TestLoadConfig_ZeroWeightsRejected(t *testing.T) {
	t.Setenv("FAKECHECK_FUSION_SEMANTIC", "0")
	t.Setenv("FAKECHECK_FUSION_HASH", "0")
	t.Setenv("FAKECHECK_FUSION_GEOMETRIC", "0")

	_, err := loadConfig("", testFlags(t))
	if !errors.Is(err, fakecheck.ErrInvalidWeights) {
		t.Errorf("loadConfig() error = %v, want ErrInvalidWeights", err)
	}
}
