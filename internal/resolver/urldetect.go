package resolver

import (
	"context"
	"regexp"
	"strings"

	"github.com/menosai/menos/internal/domain"
	"github.com/menosai/menos/internal/normalizer"
	"github.com/menosai/menos/internal/sponsored"
	"github.com/menosai/menos/internal/urlclass"
)

var urlInTextRegex = regexp.MustCompile(`https?://[^\s)<>\]]+`)

// detectURLs implements stage 1: scan the content text and description
// URLs, drop sponsored links, and convert survivors into provisional
// entities (GitHub repo, ArXiv paper, PyPI/npm tool).
func (s *Service) detectURLs(ctx context.Context, contentText string, descriptionURLs []string) []provisionalEntity {
	found := urlInTextRegex.FindAllString(contentText, -1)
	found = append(found, descriptionURLs...)

	seen := make(map[string]struct{}, len(found))
	var candidates []string
	for _, raw := range found {
		trimmed := strings.TrimRight(raw, ".,;:!?)")
		if _, ok := seen[trimmed]; ok {
			continue
		}
		seen[trimmed] = struct{}{}
		candidates = append(candidates, trimmed)
	}

	var out []provisionalEntity

	for _, raw := range candidates {
		if sponsored.IsSponsored(raw, contentText) {
			continue
		}

		classification, err := urlclass.Classify(raw)
		if err != nil {
			continue
		}

		entity := s.urlToEntity(ctx, classification, raw)
		if entity != nil {
			out = append(out, *entity)
		}
	}

	return out
}

func (s *Service) urlToEntity(ctx context.Context, c urlclass.Classification, rawURL string) *provisionalEntity {
	switch c.Kind {
	case urlclass.KindGitHubRepo:
		return s.resolveGitHubRepo(ctx, c.Identifier, rawURL)
	case urlclass.KindArXiv:
		return s.resolveArXivPaper(ctx, c.Identifier, rawURL)
	case urlclass.KindPyPI:
		return createToolEntity(c.Identifier, rawURL, "pypi")
	case urlclass.KindNPM:
		return createToolEntity(c.Identifier, rawURL, "npm")
	default:
		return nil
	}
}

func (s *Service) resolveGitHubRepo(ctx context.Context, ownerRepo, rawURL string) *provisionalEntity {
	owner, repo, ok := strings.Cut(ownerRepo, "/")
	if !ok || owner == "" || repo == "" {
		return nil
	}

	name := repo
	metadata := map[string]any{"url": rawURL, "owner": owner}

	if s.github != nil && s.cfg.FetchExternalMetadata {
		meta, err := s.github.FetchRepo(ctx, owner, repo)
		if err != nil {
			s.log.Warn("resolver: failed to fetch github metadata", "repo", ownerRepo, "err", err)
		} else {
			metadata["stars"] = meta.Stars
			metadata["language"] = meta.Language
			metadata["topics"] = meta.Topics
			if !meta.FetchedAt.IsZero() {
				metadata["fetched_at"] = meta.FetchedAt.Format("2006-01-02T15:04:05Z07:00")
			}
			if meta.Description != "" {
				metadata["description"] = meta.Description
				if meta.Name != "" {
					name = meta.Name
				}
			}
		}
	}

	return &provisionalEntity{
		entity: domain.Entity{
			EntityType:     domain.EntityRepo,
			Name:           name,
			NormalizedName: normalizer.NormalizeName(repo),
			Description:    stringMeta(metadata, "description"),
			Metadata:       metadata,
			Source:         domain.SourceURLDetected,
		},
		reference: normalizer.NormalizeName(repo),
	}
}

func (s *Service) resolveArXivPaper(ctx context.Context, arxivID, rawURL string) *provisionalEntity {
	if arxivID == "" {
		return nil
	}

	name := "arXiv:" + arxivID
	metadata := map[string]any{"url": rawURL, "arxiv_id": arxivID}

	if s.arxiv != nil && s.cfg.FetchExternalMetadata {
		meta, err := s.arxiv.FetchPaper(ctx, arxivID)
		if err != nil {
			s.log.Warn("resolver: failed to fetch arxiv metadata", "arxiv_id", arxivID, "err", err)
		} else {
			if meta.Title != "" {
				name = meta.Title
			}
			metadata["authors"] = meta.Authors
			metadata["abstract"] = truncateAbstract(meta.Abstract, 500)
			metadata["doi"] = meta.DOI
			if meta.PublishedAt != nil {
				metadata["published_at"] = meta.PublishedAt.Format("2006-01-02T15:04:05Z07:00")
			}
			if !meta.FetchedAt.IsZero() {
				metadata["fetched_at"] = meta.FetchedAt.Format("2006-01-02T15:04:05Z07:00")
			}
		}
	}

	return &provisionalEntity{
		entity: domain.Entity{
			EntityType:     domain.EntityPaper,
			Name:           name,
			NormalizedName: normalizer.NormalizeName(name),
			Description:    stringMeta(metadata, "abstract"),
			Metadata:       metadata,
			Source:         domain.SourceURLDetected,
		},
		reference: normalizer.NormalizeName(name),
	}
}

func createToolEntity(identifier, rawURL, registry string) *provisionalEntity {
	name := identifier
	if name == "" {
		name = "unknown"
	}
	return &provisionalEntity{
		entity: domain.Entity{
			EntityType:     domain.EntityTool,
			Name:           name,
			NormalizedName: normalizer.NormalizeName(name),
			Metadata:       map[string]any{"url": rawURL, "registry": registry},
			Source:         domain.SourceURLDetected,
		},
		reference: normalizer.NormalizeName(name),
	}
}

func stringMeta(m map[string]any, key string) string {
	if s, ok := m[key].(string); ok {
		return s
	}
	return ""
}

func truncateAbstract(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	return s[:limit]
}

func normalizeEntityName(name string) string {
	return normalizer.NormalizeName(name)
}
