package llm

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
)

// ProviderFailure records why one provider in a FallbackGenerator chain
// declined to produce a usable result.
type ProviderFailure struct {
	Provider string
	Err      error
}

// AllProvidersFailedError is returned when every provider in the chain
// failed or returned an empty completion.
type AllProvidersFailedError struct {
	Failures []ProviderFailure
}

func (e *AllProvidersFailedError) Error() string {
	var b strings.Builder
	b.WriteString("llm: all providers failed: ")
	for i, f := range e.Failures {
		if i > 0 {
			b.WriteString("; ")
		}
		fmt.Fprintf(&b, "%s: %v", f.Provider, f.Err)
	}
	return b.String()
}

// namedGenerator pairs a Generator with a label used in failure reporting.
type namedGenerator struct {
	name string
	gen  Generator
}

// FallbackGenerator tries an ordered list of Generators and returns the
// first non-empty success. Every provider failure (error or empty
// completion) is recorded; if all fail, the aggregate is returned as an
// *AllProvidersFailedError.
type FallbackGenerator struct {
	providers []namedGenerator
	log       *slog.Logger
}

// NewFallbackGenerator builds a chain from name/Generator pairs, tried in
// the given order.
func NewFallbackGenerator(log *slog.Logger, providers map[string]Generator, order []string) *FallbackGenerator {
	if log == nil {
		log = slog.Default()
	}
	named := make([]namedGenerator, 0, len(order))
	for _, name := range order {
		if g, ok := providers[name]; ok {
			named = append(named, namedGenerator{name: name, gen: g})
		}
	}
	return &FallbackGenerator{providers: named, log: log}
}

// Generate tries each provider in order, returning the first non-empty
// completion.
func (f *FallbackGenerator) Generate(ctx context.Context, p GenerateParams) (string, error) {
	var failures []ProviderFailure
	for _, np := range f.providers {
		out, err := np.gen.Generate(ctx, p)
		if err != nil {
			failures = append(failures, ProviderFailure{Provider: np.name, Err: err})
			f.log.Warn("llm: provider failed, trying next", "provider", np.name, "err", err)
			continue
		}
		if strings.TrimSpace(out) == "" {
			failures = append(failures, ProviderFailure{Provider: np.name, Err: fmt.Errorf("empty completion")})
			f.log.Warn("llm: provider returned empty completion, trying next", "provider", np.name)
			continue
		}
		return out, nil
	}
	return "", &AllProvidersFailedError{Failures: failures}
}
