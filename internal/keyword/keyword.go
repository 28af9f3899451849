// Package keyword implements an in-memory index of known entity canonical
// names and aliases, used to find whole-word matches in ingested text before
// the LLM enrichment stage runs.
package keyword

import (
	"regexp"
	"strings"
	"sync"

	"github.com/menosai/menos/internal/domain"
)

// MatchType distinguishes a canonical-name hit from an alias hit.
type MatchType string

const (
	MatchCanonical MatchType = "keyword"
	MatchAlias     MatchType = "alias"
)

// Confidence values assigned per match type, per the resolver's stage 2.
const (
	ConfidenceCanonical = 0.9
	ConfidenceAlias     = 0.85
)

// Match is one whole-word hit against the index.
type Match struct {
	EntityID   string
	EntityType domain.EntityType
	MatchType  MatchType
	Confidence float64
}

// surface is one indexed string (a canonical name or an alias) with a
// compiled whole-word pattern for matching against raw text.
type surface struct {
	entityID   string
	entityType domain.EntityType
	canonical  bool
	pattern    *regexp.Regexp
}

// Matcher is a process-wide, rebuildable index over entity names and
// aliases. It is safe for concurrent read access; Rebuild replaces the
// index atomically.
type Matcher struct {
	mu       sync.RWMutex
	surfaces []surface
}

// NewMatcher returns an empty matcher. Call Rebuild before use.
func NewMatcher() *Matcher {
	return &Matcher{}
}

// Rebuild replaces the index contents from the given entities. Writes to
// the entity table do not automatically invalidate a previously built
// Matcher; callers must call Rebuild explicitly on demand.
func (m *Matcher) Rebuild(entities []domain.Entity) {
	var surfaces []surface

	add := func(text, entityID string, entityType domain.EntityType, canonical bool) {
		text = strings.TrimSpace(text)
		if text == "" {
			return
		}
		pat, err := compileWholeWordPattern(text)
		if err != nil {
			return
		}
		surfaces = append(surfaces, surface{
			entityID: entityID, entityType: entityType, canonical: canonical, pattern: pat,
		})
	}

	for _, e := range entities {
		add(e.Name, e.ID, e.EntityType, true)
		switch aliases := e.Metadata["aliases"].(type) {
		case []string:
			for _, alias := range aliases {
				add(alias, e.ID, e.EntityType, false)
			}
		case []any:
			for _, a := range aliases {
				if s, ok := a.(string); ok {
					add(s, e.ID, e.EntityType, false)
				}
			}
		}
	}

	m.mu.Lock()
	m.surfaces = surfaces
	m.mu.Unlock()
}

func compileWholeWordPattern(text string) (*regexp.Regexp, error) {
	return regexp.Compile(`(?i)\b` + regexp.QuoteMeta(text) + `\b`)
}

// FindMatches scans text for whole-word occurrences of any indexed surface
// string (canonical name or alias, which may be multi-word). Matches are
// deduplicated by entity id; a canonical match wins over an alias match for
// the same entity.
func (m *Matcher) FindMatches(text string) []Match {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if len(m.surfaces) == 0 {
		return nil
	}

	byEntity := make(map[string]Match)
	for _, s := range m.surfaces {
		if existing, ok := byEntity[s.entityID]; ok && existing.MatchType == MatchCanonical {
			continue
		}
		if !s.pattern.MatchString(text) {
			continue
		}
		mt := MatchAlias
		conf := ConfidenceAlias
		if s.canonical {
			mt = MatchCanonical
			conf = ConfidenceCanonical
		}
		byEntity[s.entityID] = Match{
			EntityID:   s.entityID,
			EntityType: s.entityType,
			MatchType:  mt,
			Confidence: conf,
		}
	}

	out := make([]Match, 0, len(byEntity))
	for _, v := range byEntity {
		out = append(out, v)
	}
	return out
}
