package keyword

import (
	"testing"

	"github.com/menosai/menos/internal/domain"
)

func TestFindMatchesCanonicalWinsOverAlias(t *testing.T) {
	entities := []domain.Entity{
		{
			ID:         "e1",
			EntityType: domain.EntityTool,
			Name:       "Kubernetes",
			Metadata:   map[string]any{"aliases": []string{"k8s"}},
		},
	}
	m := NewMatcher()
	m.Rebuild(entities)

	matches := m.FindMatches("We use k8s and also Kubernetes in production.")
	if len(matches) != 1 {
		t.Fatalf("expected 1 match, got %d", len(matches))
	}
	if matches[0].MatchType != MatchCanonical {
		t.Errorf("expected canonical match to win, got %v", matches[0].MatchType)
	}
	if matches[0].Confidence != ConfidenceCanonical {
		t.Errorf("expected confidence %v, got %v", ConfidenceCanonical, matches[0].Confidence)
	}
}

func TestFindMatchesAliasOnly(t *testing.T) {
	entities := []domain.Entity{
		{ID: "e1", EntityType: domain.EntityTool, Name: "Kubernetes", Metadata: map[string]any{"aliases": []string{"k8s"}}},
	}
	m := NewMatcher()
	m.Rebuild(entities)

	matches := m.FindMatches("We rely on k8s heavily.")
	if len(matches) != 1 || matches[0].MatchType != MatchAlias {
		t.Fatalf("expected alias match, got %+v", matches)
	}
}

func TestFindMatchesWholeWordOnly(t *testing.T) {
	entities := []domain.Entity{{ID: "e1", EntityType: domain.EntityTopic, Name: "Go"}}
	m := NewMatcher()
	m.Rebuild(entities)

	matches := m.FindMatches("Going to golang island, not go alone though")
	if len(matches) != 1 {
		t.Fatalf("expected exactly one whole-word match, got %d: %+v", len(matches), matches)
	}
}
