package fakecheck

import (
	"errors"
	"fmt"
	"slices"
	"strings"
)

// Method identifies one visual-similarity technique.
type Method string

const (
	MethodSemantic  Method = "semantic"
	MethodHash      Method = "hash"
	MethodGeometric Method = "geometric"
)

// allMethods is the fixed evaluation order of the fusion.
var allMethods = []Method{MethodSemantic, MethodHash, MethodGeometric}

var (
	// ErrMethodUnavailable marks a technique whose dependency is absent in
	// this deployment. It is a construction-time condition.
	ErrMethodUnavailable = errors.New("similarity method unavailable")
	// ErrNoMethods is returned by New when no technique can run at all.
	ErrNoMethods = errors.New("no similarity method available")
	// ErrInvalidWeights is returned for negative, NaN or all-zero weights.
	ErrInvalidWeights = errors.New("invalid fusion weights")
)

// ParseMethod accepts a method name case-insensitively.
func ParseMethod(s string) (Method, error) {
	m := Method(strings.ToLower(strings.TrimSpace(s)))
	if slices.Contains(allMethods, m) {
		return m, nil
	}
	return "", fmt.Errorf("unknown similarity method %q", s)
}

// Capabilities is the set of similarity techniques usable in this deployment.
// It is resolved once when the engine is built and never changes afterwards.
type Capabilities struct {
	Semantic  bool
	Hash      bool
	Geometric bool

	// Unavailable explains every missing method, wrapping ErrMethodUnavailable.
	Unavailable map[Method]error
}

// Has reports whether m is available.
func (c Capabilities) Has(m Method) bool {
	switch m {
	case MethodSemantic:
		return c.Semantic
	case MethodHash:
		return c.Hash
	case MethodGeometric:
		return c.Geometric
	default:
		return false
	}
}

// Methods lists the available techniques in fusion order.
func (c Capabilities) Methods() []Method {
	var out []Method
	for _, m := range allMethods {
		if c.Has(m) {
			out = append(out, m)
		}
	}
	return out
}

// Empty reports whether no technique is available.
func (c Capabilities) Empty() bool {
	return !c.Semantic && !c.Hash && !c.Geometric
}

// ProbeCapabilities resolves which techniques cfg can run. The semantic method
// needs an injected Embedder; perceptual hashing and keypoint matching are
// pure Go and always present unless listed in cfg.DisabledMethods.
func ProbeCapabilities(cfg *Config) Capabilities {
	caps := Capabilities{
		Semantic:    true,
		Hash:        true,
		Geometric:   true,
		Unavailable: map[Method]error{},
	}
	if cfg.Embedder == nil {
		caps.Semantic = false
		caps.Unavailable[MethodSemantic] = fmt.Errorf("%w: no embedding model configured", ErrMethodUnavailable)
	}
	for _, m := range cfg.DisabledMethods {
		switch m {
		case MethodSemantic:
			caps.Semantic = false
		case MethodHash:
			caps.Hash = false
		case MethodGeometric:
			caps.Geometric = false
		default:
			continue
		}
		if _, ok := caps.Unavailable[m]; !ok {
			caps.Unavailable[m] = fmt.Errorf("%w: disabled by configuration", ErrMethodUnavailable)
		}
	}
	return caps
}
