package fetchers

import (
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/menosai/menos/internal/domain"
	"github.com/menosai/menos/pkg/resilience"
)

// ArXivClient looks up paper metadata from the ArXiv Atom feed API, rate
// limited to one request per 3 seconds per §5.
type ArXivClient struct {
	httpClient  *http.Client
	rateLimiter *rate.Limiter
	breaker     *resilience.Breaker
}

// NewArXivClient constructs a client.
func NewArXivClient() *ArXivClient {
	return &ArXivClient{
		httpClient:  &http.Client{Timeout: 15 * time.Second},
		rateLimiter: rate.NewLimiter(rate.Every(3*time.Second), 1),
		breaker:     resilience.NewBreaker(resilience.DefaultBreakerOpts),
	}
}

type atomFeed struct {
	Entries []atomEntry `xml:"entry"`
}

type atomEntry struct {
	ID        string `xml:"id"`
	Title     string `xml:"title"`
	Summary   string `xml:"summary"`
	Published string `xml:"published"`
	DOI       string `xml:"doi"`
	Authors   []struct {
		Name string `xml:"name"`
	} `xml:"author"`
}

// FetchPaper retrieves metadata for the given ArXiv identifier (e.g.
// "2301.12345" or the legacy "cs.CL/0501001" form).
func (c *ArXivClient) FetchPaper(ctx context.Context, arxivID string) (PaperMetadata, error) {
	if err := c.rateLimiter.Wait(ctx); err != nil {
		return PaperMetadata{}, err
	}

	var result PaperMetadata
	err := c.breaker.Call(ctx, func(ctx context.Context) error {
		params := url.Values{"id_list": {arxivID}, "max_results": {"1"}}
		req, err := http.NewRequestWithContext(ctx, http.MethodGet,
			"http://export.arxiv.org/api/query?"+params.Encode(), nil)
		if err != nil {
			return err
		}
		resp, err := c.httpClient.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("fetchers: arxiv http %d", resp.StatusCode)
		}

		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return err
		}

		var feed atomFeed
		if err := xml.Unmarshal(body, &feed); err != nil {
			return err
		}
		if len(feed.Entries) == 0 {
			return domain.ErrNotFound
		}

		entry := feed.Entries[0]
		authors := make([]string, 0, len(entry.Authors))
		for _, a := range entry.Authors {
			authors = append(authors, strings.TrimSpace(a.Name))
		}

		var publishedAt *time.Time
		if t, err := time.Parse(time.RFC3339, entry.Published); err == nil {
			publishedAt = &t
		}

		result = PaperMetadata{
			URL:         strings.TrimSpace(entry.ID),
			ArXivID:     arxivID,
			Title:       normalizeWhitespace(entry.Title),
			Authors:     authors,
			Abstract:    normalizeWhitespace(entry.Summary),
			PublishedAt: publishedAt,
			DOI:         strings.TrimSpace(entry.DOI),
			FetchedAt:   time.Now().UTC(),
		}
		return nil
	})
	if err != nil {
		if err == domain.ErrNotFound {
			return PaperMetadata{}, err
		}
		return PaperMetadata{}, domain.NewStageError(domain.StageFetch, "ARXIV_FETCH_FAILED", err.Error(), err)
	}
	return result, nil
}

func normalizeWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
