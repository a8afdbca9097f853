package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/fatih/color"

	fakecheck "github.com/anatolykoptev/go-fakecheck"
)

// printer renders command results as indented JSON or colored text.
type printer struct {
	w    io.Writer
	json bool
}

func newPrinter(w io.Writer, mode string) *printer {
	return &printer{w: w, json: mode == "json"}
}

func (p *printer) printJSON(v any) error {
	enc := json.NewEncoder(p.w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func (p *printer) similarity(a, b string, s fakecheck.SimilarityScore) error {
	if p.json {
		return p.printJSON(map[string]any{"a": a, "b": b, "score": s})
	}
	if !s.Loaded {
		_, err := color.New(color.FgYellow).Fprintf(p.w, "could not load one of the images; similarity is 0\n")
		return err
	}
	tw := tabwriter.NewWriter(p.w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "METHOD\tSCORE\tWEIGHT\n")
	fmt.Fprintf(tw, "semantic\t%.3f\t%.3f\n", s.Semantic, s.Weights.Semantic)
	fmt.Fprintf(tw, "hash\t%.3f\t%.3f\n", s.Hash, s.Weights.Hash)
	fmt.Fprintf(tw, "geometric\t%.3f\t%.3f\n", s.Geometric, s.Weights.Geometric)
	if err := tw.Flush(); err != nil {
		return err
	}
	_, err := color.New(color.Bold).Fprintf(p.w, "fused: %.1f%%\n", s.Fused*100)
	return err
}

// detectionReport is the JSON document produced by the detect command.
type detectionReport struct {
	RunID   string          `json:"run_id"`
	Results []listingResult `json:"results"`
}

type listingResult struct {
	Title  string                    `json:"title"`
	URL    string                    `json:"url,omitempty"`
	Result fakecheck.DetectionResult `json:"result"`
}

func (p *printer) detection(r detectionReport) error {
	if p.json {
		return p.printJSON(r)
	}
	flagged := 0
	for _, lr := range r.Results {
		res := lr.Result
		verdict := color.New(color.FgGreen).Sprint("OK         ")
		if res.IsCounterfeit {
			flagged++
			verdict = color.New(color.FgRed, color.Bold).Sprint("COUNTERFEIT")
		} else if res.OverallRisk >= 0.5 {
			verdict = color.New(color.FgYellow).Sprint("SUSPICIOUS ")
		}
		fmt.Fprintf(p.w, "%s %5.1f%% %-6s %s\n", verdict, res.OverallRisk*100, res.Confidence, lr.Title)
		for _, reason := range res.Reasons {
			fmt.Fprintf(p.w, "    - %s\n", reason)
		}
	}
	_, err := color.New(color.Bold).Fprintf(p.w, "%d of %d listings flagged (run %s)\n", flagged, len(r.Results), r.RunID)
	return err
}

func (p *printer) duplicates(groups []fakecheck.DuplicateGroup) error {
	if p.json {
		if groups == nil {
			groups = []fakecheck.DuplicateGroup{}
		}
		return p.printJSON(map[string]any{"groups": groups})
	}
	if len(groups) == 0 {
		_, err := fmt.Fprintln(p.w, "no duplicates found")
		return err
	}
	for i, g := range groups {
		color.New(color.Bold).Fprintf(p.w, "group %d\n", i+1)
		fmt.Fprintf(p.w, "    %s\n", strings.Join(g.IDs, "\n    "))
	}
	return nil
}

func (p *printer) ranking(ranked []fakecheck.RankedImage) error {
	if p.json {
		return p.printJSON(map[string]any{"ranked": ranked})
	}
	tw := tabwriter.NewWriter(p.w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "RANK\tFUSED\tIMAGE\n")
	for i, r := range ranked {
		fmt.Fprintf(tw, "%d\t%.3f\t%s\n", i+1, r.Score.Fused, r.Source.Descriptor())
	}
	return tw.Flush()
}
