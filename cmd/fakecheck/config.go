package main

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"

	fakecheck "github.com/anatolykoptev/go-fakecheck"
)

const envPrefix = "FAKECHECK_"

// appConfig is the merged CLI configuration. Keys avoid underscores so every
// key is reachable from FAKECHECK_SECTION_KEY environment variables.
type appConfig struct {
	Log struct {
		Level  string `koanf:"level"`
		Format string `koanf:"format"`
	} `koanf:"log"`

	Output string `koanf:"output"`

	Fusion struct {
		Semantic  float64  `koanf:"semantic"`
		Hash      float64  `koanf:"hash"`
		Geometric float64  `koanf:"geometric"`
		Disabled  []string `koanf:"disabled"`
	} `koanf:"fusion"`

	Embedder struct {
		URL     string        `koanf:"url"`
		Model   string        `koanf:"model"`
		Token   string        `koanf:"token"`
		Timeout time.Duration `koanf:"timeout"`
	} `koanf:"embedder"`

	Loader struct {
		Timeout   time.Duration `koanf:"timeout"`
		MaxBytes  int64         `koanf:"maxbytes"`
		UserAgent string        `koanf:"useragent"`
	} `koanf:"loader"`

	Duplicates struct {
		Threshold float64 `koanf:"threshold"`
	} `koanf:"duplicates"`

	Detect struct {
		Concurrency int                    `koanf:"concurrency"`
		Sites       []string               `koanf:"sites"`
		Brands      []fakecheck.Brand      `koanf:"brands"`
		Phrases     []string               `koanf:"phrases"`
		PriceStages []fakecheck.PriceStage `koanf:"pricestages"`
	} `koanf:"detect"`

	Server struct {
		Addr        string        `koanf:"addr"`
		ReadTimeout time.Duration `koanf:"readtimeout"`
		AllowPaths  bool          `koanf:"allowpaths"`
	} `koanf:"server"`
}

func defaultConfigMap() map[string]any {
	w := fakecheck.DefaultWeights
	return map[string]any{
		"log.level":  "info",
		"log.format": "text",

		"output": "text",

		"fusion.semantic":  w.Semantic,
		"fusion.hash":      w.Hash,
		"fusion.geometric": w.Geometric,
		"fusion.disabled":  []string{},

		"embedder.url":     "",
		"embedder.model":   "",
		"embedder.token":   "",
		"embedder.timeout": 30 * time.Second,

		"loader.timeout":   10 * time.Second,
		"loader.maxbytes":  int64(10 << 20),
		"loader.useragent": "",

		"duplicates.threshold": fakecheck.DefaultDuplicateThreshold,

		"detect.concurrency": fakecheck.DefaultConcurrency,
		"detect.sites":       []string{},

		"server.addr":        ":8080",
		"server.readtimeout": 30 * time.Second,
		"server.allowpaths":  false,
	}
}

// flagKeys maps command-line flag names onto configuration keys.
var flagKeys = map[string]string{
	"log-level":   "log.level",
	"log-format":  "log.format",
	"output":      "output",
	"embedder":    "embedder.url",
	"disable":     "fusion.disabled",
	"threshold":   "duplicates.threshold",
	"concurrency": "detect.concurrency",
	"addr":        "server.addr",
	"allow-paths": "server.allowpaths",
}

// loadConfig merges defaults, the optional YAML file, FAKECHECK_* variables
// and explicitly set flags, in increasing precedence.
func loadConfig(path string, flags *pflag.FlagSet) (*appConfig, error) {
	k := koanf.New(".")

	if err := k.Load(confmap.Provider(defaultConfigMap(), "."), nil); err != nil {
		return nil, fmt.Errorf("load defaults: %w", err)
	}

	if path != "" {
		if _, err := os.Stat(path); err != nil {
			return nil, fmt.Errorf("config file %s: %w", path, err)
		}
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("load config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider(envPrefix, ".", func(key string) string {
		return strings.ReplaceAll(strings.ToLower(strings.TrimPrefix(key, envPrefix)), "_", ".")
	}), nil); err != nil {
		return nil, fmt.Errorf("load environment: %w", err)
	}

	if flags != nil {
		if err := k.Load(posflag.ProviderWithFlag(flags, ".", k, func(f *pflag.Flag) (string, any) {
			key, ok := flagKeys[f.Name]
			if !ok {
				return "", nil
			}
			return key, posflag.FlagVal(flags, f)
		}), nil); err != nil {
			return nil, fmt.Errorf("load flags: %w", err)
		}
	}

	var cfg appConfig
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *appConfig) validate() error {
	switch c.Output {
	case "json", "text":
	default:
		return fmt.Errorf("invalid output mode %q (must be 'json' or 'text')", c.Output)
	}
	if _, err := parseLevel(c.Log.Level); err != nil {
		return err
	}
	w := fakecheck.Weights{Semantic: c.Fusion.Semantic, Hash: c.Fusion.Hash, Geometric: c.Fusion.Geometric}
	if w == (fakecheck.Weights{}) {
		return fmt.Errorf("fusion: %w: all weights are zero", fakecheck.ErrInvalidWeights)
	}
	for _, m := range c.Fusion.Disabled {
		if _, err := fakecheck.ParseMethod(m); err != nil {
			return fmt.Errorf("fusion.disabled: %w", err)
		}
	}
	return nil
}

// engineConfig translates the CLI configuration into library settings.
func (c *appConfig) engineConfig() fakecheck.Config {
	cfg := fakecheck.Config{
		Weights: fakecheck.Weights{
			Semantic:  c.Fusion.Semantic,
			Hash:      c.Fusion.Hash,
			Geometric: c.Fusion.Geometric,
		},
		LoadTimeout:       c.Loader.Timeout,
		MaxImageBytes:     c.Loader.MaxBytes,
		UserAgent:         c.Loader.UserAgent,
		Concurrency:       c.Detect.Concurrency,
		ExtraRiskySites:   c.Detect.Sites,
		SuspiciousPhrases: c.Detect.Phrases,
		PriceStages:       c.Detect.PriceStages,
		OnPanic: func(tag string, r any) {
			slog.Error("fakecheck: recovered panic", "tag", tag, "panic", r)
		},
	}
	if len(c.Detect.Brands) > 0 {
		cfg.Brands = c.Detect.Brands
	}
	for _, m := range c.Fusion.Disabled {
		method, _ := fakecheck.ParseMethod(m)
		cfg.DisabledMethods = append(cfg.DisabledMethods, method)
	}
	if c.Embedder.URL != "" {
		emb := &fakecheck.HTTPEmbedder{URL: c.Embedder.URL, Model: c.Embedder.Model, Timeout: c.Embedder.Timeout}
		if c.Embedder.Token != "" {
			emb.Headers = map[string]string{"Authorization": "Bearer " + c.Embedder.Token}
		}
		cfg.Embedder = emb
	}
	return cfg
}

func parseLevel(s string) (slog.Level, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(s)); err != nil {
		return 0, fmt.Errorf("invalid log level %q: %w", s, err)
	}
	return lvl, nil
}

// setupLogger installs the process-wide slog handler.
func setupLogger(c *appConfig) {
	lvl, _ := parseLevel(c.Log.Level)
	opts := &slog.HandlerOptions{Level: lvl}
	var h slog.Handler
	if c.Log.Format == "json" {
		h = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		h = slog.NewTextHandler(os.Stderr, opts)
	}
	slog.SetDefault(slog.New(h))
}
