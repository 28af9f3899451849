package llm

import (
	"context"
	"errors"
	"testing"
)

type stubGenerator struct {
	out string
	err error
}

func (s stubGenerator) Generate(ctx context.Context, p GenerateParams) (string, error) {
	return s.out, s.err
}

func TestFallbackGeneratorFirstSuccess(t *testing.T) {
	fg := NewFallbackGenerator(nil, map[string]Generator{
		"primary":   stubGenerator{out: "hello"},
		"secondary": stubGenerator{out: "world"},
	}, []string{"primary", "secondary"})

	out, err := fg.Generate(context.Background(), GenerateParams{Prompt: "x"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out != "hello" {
		t.Errorf("got %q, want %q", out, "hello")
	}
}

func TestFallbackGeneratorSkipsFailuresAndEmpty(t *testing.T) {
	fg := NewFallbackGenerator(nil, map[string]Generator{
		"broken": stubGenerator{err: errors.New("boom")},
		"empty":  stubGenerator{out: "  "},
		"good":   stubGenerator{out: "answer"},
	}, []string{"broken", "empty", "good"})

	out, err := fg.Generate(context.Background(), GenerateParams{Prompt: "x"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out != "answer" {
		t.Errorf("got %q, want %q", out, "answer")
	}
}

func TestFallbackGeneratorAllFail(t *testing.T) {
	fg := NewFallbackGenerator(nil, map[string]Generator{
		"a": stubGenerator{err: errors.New("a failed")},
		"b": stubGenerator{out: ""},
	}, []string{"a", "b"})

	_, err := fg.Generate(context.Background(), GenerateParams{Prompt: "x"})
	var allFailed *AllProvidersFailedError
	if !errors.As(err, &allFailed) {
		t.Fatalf("expected *AllProvidersFailedError, got %T: %v", err, err)
	}
	if len(allFailed.Failures) != 2 {
		t.Errorf("expected 2 failures, got %d", len(allFailed.Failures))
	}
}
