package fetchers

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/time/rate"

	"github.com/menosai/menos/internal/domain"
	"github.com/menosai/menos/internal/normalizer"
	"github.com/menosai/menos/pkg/resilience"
)

// titleSimilarityThreshold is the minimum match ratio accepted for a
// Semantic Scholar title lookup to stand in for a missing DOI/ArXiv ID.
const titleSimilarityThreshold = 0.8

// SemanticScholarClient is the fallback paper lookup by title, used when a
// link has no resolvable ArXiv ID or DOI. Rate limited to one request per
// 3 seconds per §5, same as ArXivClient.
type SemanticScholarClient struct {
	httpClient  *http.Client
	rateLimiter *rate.Limiter
	breaker     *resilience.Breaker
}

// NewSemanticScholarClient constructs a client.
func NewSemanticScholarClient() *SemanticScholarClient {
	return &SemanticScholarClient{
		httpClient:  &http.Client{Timeout: 15 * time.Second},
		rateLimiter: rate.NewLimiter(rate.Every(3*time.Second), 1),
		breaker:     resilience.NewBreaker(resilience.DefaultBreakerOpts),
	}
}

type s2SearchResponse struct {
	Data []s2Paper `json:"data"`
}

type s2Paper struct {
	Title        string `json:"title"`
	Abstract     string `json:"abstract"`
	URL          string `json:"url"`
	ExternalIDs  struct {
		DOI    string `json:"DOI"`
		ArXiv  string `json:"ArXiv"`
	} `json:"externalIds"`
	PublicationDate string `json:"publicationDate"`
	Authors         []struct {
		Name string `json:"name"`
	} `json:"authors"`
}

// SearchPaper looks up a paper by title, returning the best match if its
// title similarity to the query meets titleSimilarityThreshold.
func (c *SemanticScholarClient) SearchPaper(ctx context.Context, title string) (PaperMetadata, error) {
	if err := c.rateLimiter.Wait(ctx); err != nil {
		return PaperMetadata{}, err
	}

	var result PaperMetadata
	err := c.breaker.Call(ctx, func(ctx context.Context) error {
		params := url.Values{
			"query":  {title},
			"fields": {"title,abstract,url,externalIds,publicationDate,authors"},
			"limit":  {"5"},
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodGet,
			"https://api.semanticscholar.org/graph/v1/paper/search?"+params.Encode(), nil)
		if err != nil {
			return err
		}
		resp, err := c.httpClient.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("fetchers: semantic scholar http %d", resp.StatusCode)
		}

		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return err
		}
		var sr s2SearchResponse
		if err := json.Unmarshal(body, &sr); err != nil {
			return err
		}

		best, bestRatio := s2Paper{}, 0.0
		found := false
		for _, p := range sr.Data {
			ratio := titleSimilarity(title, p.Title)
			if ratio > bestRatio {
				best, bestRatio, found = p, ratio, true
			}
		}
		if !found || bestRatio < titleSimilarityThreshold {
			return domain.ErrNotFound
		}

		authors := make([]string, 0, len(best.Authors))
		for _, a := range best.Authors {
			authors = append(authors, a.Name)
		}

		var publishedAt *time.Time
		if t, err := time.Parse("2006-01-02", best.PublicationDate); err == nil {
			publishedAt = &t
		}

		result = PaperMetadata{
			URL:         best.URL,
			ArXivID:     best.ExternalIDs.ArXiv,
			Title:       best.Title,
			Authors:     authors,
			Abstract:    best.Abstract,
			PublishedAt: publishedAt,
			DOI:         best.ExternalIDs.DOI,
			FetchedAt:   time.Now().UTC(),
		}
		return nil
	})
	if err != nil {
		if err == domain.ErrNotFound {
			return PaperMetadata{}, err
		}
		return PaperMetadata{}, domain.NewStageError(domain.StageFetch, "SEMANTIC_SCHOLAR_FETCH_FAILED", err.Error(), err)
	}
	return result, nil
}

// titleSimilarity returns a 0..1 ratio derived from normalized edit
// distance, matching the original's difflib-based comparison closely
// enough for threshold purposes.
func titleSimilarity(a, b string) float64 {
	na, nb := normalizer.NormalizeName(a), normalizer.NormalizeName(b)
	if na == "" && nb == "" {
		return 1
	}
	maxLen := len([]rune(na))
	if l := len([]rune(nb)); l > maxLen {
		maxLen = l
	}
	if maxLen == 0 {
		return 1
	}
	dist := normalizer.Levenshtein(na, nb)
	ratio := 1 - float64(dist)/float64(maxLen)
	if ratio < 0 {
		ratio = 0
	}
	return ratio
}
