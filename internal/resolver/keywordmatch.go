package resolver

import "context"

// matchKeywords implements stage 2: find whole-word matches against the
// keyword index and fetch the full entity record for any match not already
// present among the URL-detected pre-detected entities.
func (s *Service) matchKeywords(ctx context.Context, contentText string, already []provisionalEntity) []provisionalEntity {
	if s.matcher == nil {
		return nil
	}

	seen := make(map[string]bool, len(already))
	for _, p := range already {
		if p.entity.ID != "" {
			seen[p.entity.ID] = true
		}
	}

	var out []provisionalEntity
	for _, m := range s.matcher.FindMatches(contentText) {
		if seen[m.EntityID] {
			continue
		}
		seen[m.EntityID] = true

		entity, err := s.store.GetEntity(ctx, m.EntityID)
		if err != nil {
			s.log.Warn("resolver: keyword match refers to missing entity", "entity_id", m.EntityID, "err", err)
			continue
		}
		out = append(out, provisionalEntity{entity: entity, reference: entity.ID})
	}

	return out
}
