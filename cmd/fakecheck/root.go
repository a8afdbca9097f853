package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/google/uuid"
	"github.com/spf13/cobra"

	fakecheck "github.com/anatolykoptev/go-fakecheck"
)

type ctxKeyConfig struct{}

func newRootCommand() *cobra.Command {
	var (
		configFile string
		noColor    bool
	)

	cmd := &cobra.Command{
		Use:   "fakecheck",
		Short: "Counterfeit listing detection and product image similarity",
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if noColor {
				color.NoColor = true
			}
			cfg, err := loadConfig(configFile, cmd.Flags())
			if err != nil {
				return err
			}
			setupLogger(cfg)
			cmd.SetContext(context.WithValue(cmd.Context(), ctxKeyConfig{}, cfg))
			return nil
		},
		SilenceUsage: true,
	}

	pf := cmd.PersistentFlags()
	pf.StringVarP(&configFile, "config", "c", "", "Configuration file path (YAML)")
	pf.BoolVar(&noColor, "no-color", false, "Disable colored output")
	pf.StringP("output", "o", "text", "Output format (text, json)")
	pf.String("log-level", "info", "Log level (debug, info, warn, error)")
	pf.String("log-format", "text", "Log format (text, json)")
	pf.String("embedder", "", "Embedding service URL enabling the semantic method")
	pf.StringSlice("disable", nil, "Similarity methods to disable (semantic, hash, geometric)")

	cmd.AddCommand(
		newSimilarityCommand(),
		newRankCommand(),
		newDetectCommand(),
		newDuplicatesCommand(),
		newServeCommand(),
	)
	return cmd
}

func configFrom(cmd *cobra.Command) *appConfig {
	if cfg, ok := cmd.Context().Value(ctxKeyConfig{}).(*appConfig); ok {
		return cfg
	}
	return nil
}

func buildEngine(cfg *appConfig) (*fakecheck.Engine, error) {
	return fakecheck.New(cfg.engineConfig())
}

func newSimilarityCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "similarity <image-a> <image-b>",
		Short: "Compare two images (paths or URLs)",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := configFrom(cmd)
			engine, err := buildEngine(cfg)
			if err != nil {
				return err
			}
			score := engine.CompareImages(cmd.Context(), fakecheck.ParseSource(args[0]), fakecheck.ParseSource(args[1]))
			return newPrinter(cmd.OutOrStdout(), cfg.Output).similarity(args[0], args[1], score)
		},
	}
}

func newRankCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "rank <reference> <candidate>...",
		Short: "Order candidate images by similarity to a reference image",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := configFrom(cmd)
			engine, err := buildEngine(cfg)
			if err != nil {
				return err
			}
			candidates := make([]fakecheck.ImageSource, 0, len(args)-1)
			for _, a := range args[1:] {
				candidates = append(candidates, fakecheck.ParseSource(a))
			}
			ranked := engine.RankImages(cmd.Context(), fakecheck.ParseSource(args[0]), candidates)
			return newPrinter(cmd.OutOrStdout(), cfg.Output).ranking(ranked)
		},
	}
}

func newDetectCommand() *cobra.Command {
	var catalogPath, listingsPath string

	cmd := &cobra.Command{
		Use:   "detect",
		Short: "Score marketplace listings against a catalogue of authentic products",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := configFrom(cmd)
			refs, err := readCatalog(catalogPath)
			if err != nil {
				return err
			}
			listings, err := readListings(listingsPath)
			if err != nil {
				return err
			}
			engine, err := buildEngine(cfg)
			if err != nil {
				return err
			}

			runID := uuid.NewString()
			slog.Info("fakecheck: detection run", "run_id", runID, "listings", len(listings), "references", len(refs))

			results := engine.DetectBatch(cmd.Context(), listings, refs)
			report := detectionReport{RunID: runID, Results: make([]listingResult, len(results))}
			for i, res := range results {
				report.Results[i] = listingResult{Title: listings[i].Title, URL: listings[i].URL, Result: res}
			}
			return newPrinter(cmd.OutOrStdout(), cfg.Output).detection(report)
		},
	}
	cmd.Flags().StringVar(&catalogPath, "catalog", "", "YAML file with reference products")
	cmd.Flags().StringVar(&listingsPath, "listings", "", "YAML file with listings to score")
	cmd.Flags().Int("concurrency", fakecheck.DefaultConcurrency, "Listings scored in parallel")
	_ = cmd.MarkFlagRequired("catalog")
	_ = cmd.MarkFlagRequired("listings")
	return cmd
}

func newDuplicatesCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "duplicates <image>...",
		Short: "Group near-identical images",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := configFrom(cmd)
			engine, err := buildEngine(cfg)
			if err != nil {
				return err
			}
			sources := make([]fakecheck.ImageSource, 0, len(args))
			for _, a := range args {
				sources = append(sources, fakecheck.ParseSource(a))
			}
			groups := engine.FindDuplicates(cmd.Context(), sources, cfg.Duplicates.Threshold)
			return newPrinter(cmd.OutOrStdout(), cfg.Output).duplicates(groups)
		},
	}
	cmd.Flags().Float64("threshold", fakecheck.DefaultDuplicateThreshold, "Maximum weighted hash distance for duplicates")
	return cmd
}

func newServeCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the detection engine over HTTP",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := configFrom(cmd)
			engine, err := buildEngine(cfg)
			if err != nil {
				return err
			}

			srv := &http.Server{
				Addr: cfg.Server.Addr,
				Handler: newRouter(&server{
					engine:     engine,
					threshold:  cfg.Duplicates.Threshold,
					allowPaths: cfg.Server.AllowPaths,
				}),
				ReadHeaderTimeout: 10 * time.Second,
				ReadTimeout:       cfg.Server.ReadTimeout,
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			errCh := make(chan error, 1)
			go func() {
				slog.Info("fakecheck: listening", "addr", cfg.Server.Addr, "methods", engine.Capabilities().Methods())
				errCh <- srv.ListenAndServe()
			}()

			select {
			case err := <-errCh:
				if errors.Is(err, http.ErrServerClosed) {
					return nil
				}
				return fmt.Errorf("serve: %w", err)
			case <-ctx.Done():
			}

			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			slog.Info("fakecheck: shutting down")
			return srv.Shutdown(shutdownCtx)
		},
	}
	cmd.Flags().String("addr", ":8080", "Listen address")
	cmd.Flags().Bool("allow-paths", false, "Accept local file paths in requests")
	cmd.Flags().Float64("threshold", fakecheck.DefaultDuplicateThreshold, "Default duplicate threshold")
	return cmd
}
