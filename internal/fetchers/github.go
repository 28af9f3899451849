package fetchers

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/menosai/menos/internal/domain"
	"github.com/menosai/menos/pkg/resilience"
)

// GitHubClient fetches repository metadata, retrying with exponential
// backoff on 403/rate-limit responses per §5.
type GitHubClient struct {
	httpClient *http.Client
	token      string // optional; raises the unauthenticated rate limit
	breaker    *resilience.Breaker
}

// NewGitHubClient constructs a client. token may be empty.
func NewGitHubClient(token string) *GitHubClient {
	return &GitHubClient{
		httpClient: &http.Client{Timeout: 10 * time.Second},
		token:      token,
		breaker:    resilience.NewBreaker(resilience.DefaultBreakerOpts),
	}
}

type githubRepoResponse struct {
	HTMLURL     string `json:"html_url"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Stargazers  int    `json:"stargazers_count"`
	Language    string `json:"language"`
	Topics      []string `json:"topics"`
	Owner       struct {
		Login string `json:"login"`
	} `json:"owner"`
}

const (
	maxRetries       = 3
	initialRetryWait = time.Second
	maxRetryWait     = 16 * time.Second
)

// FetchRepo retrieves metadata for owner/name, retrying exponentially on
// 403/429 up to maxRetries times.
func (c *GitHubClient) FetchRepo(ctx context.Context, owner, name string) (RepoMetadata, error) {
	var result RepoMetadata
	err := c.breaker.Call(ctx, func(ctx context.Context) error {
		wait := initialRetryWait
		var lastErr error
		for attempt := 0; attempt <= maxRetries; attempt++ {
			if attempt > 0 {
				select {
				case <-ctx.Done():
					return ctx.Err()
				case <-time.After(wait):
				}
				wait *= 2
				if wait > maxRetryWait {
					wait = maxRetryWait
				}
			}

			req, err := http.NewRequestWithContext(ctx, http.MethodGet,
				fmt.Sprintf("https://api.github.com/repos/%s/%s", owner, name), nil)
			if err != nil {
				return err
			}
			if c.token != "" {
				req.Header.Set("Authorization", "Bearer "+c.token)
			}

			resp, err := c.httpClient.Do(req)
			if err != nil {
				lastErr = err
				continue
			}

			if resp.StatusCode == http.StatusForbidden || resp.StatusCode == http.StatusTooManyRequests {
				resp.Body.Close()
				lastErr = fmt.Errorf("fetchers: github rate limited (status %d)", resp.StatusCode)
				continue
			}
			if resp.StatusCode == http.StatusNotFound {
				resp.Body.Close()
				return domain.ErrNotFound
			}
			if resp.StatusCode != http.StatusOK {
				resp.Body.Close()
				return fmt.Errorf("fetchers: github http %d", resp.StatusCode)
			}

			body, err := io.ReadAll(resp.Body)
			resp.Body.Close()
			if err != nil {
				return err
			}

			var gr githubRepoResponse
			if err := json.Unmarshal(body, &gr); err != nil {
				return err
			}
			result = RepoMetadata{
				URL:         gr.HTMLURL,
				Owner:       gr.Owner.Login,
				Name:        gr.Name,
				Description: gr.Description,
				Stars:       gr.Stargazers,
				Language:    gr.Language,
				Topics:      gr.Topics,
				FetchedAt:   time.Now().UTC(),
			}
			return nil
		}
		if lastErr == nil {
			lastErr = fmt.Errorf("fetchers: github fetch failed after %d retries", maxRetries)
		}
		return lastErr
	})
	if err != nil {
		if err == domain.ErrNotFound {
			return RepoMetadata{}, err
		}
		return RepoMetadata{}, domain.NewStageError(domain.StageFetch, "GITHUB_FETCH_FAILED", err.Error(), err)
	}
	return result, nil
}
