package fetchers

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"time"

	"golang.org/x/time/rate"

	"github.com/menosai/menos/internal/domain"
	"github.com/menosai/menos/pkg/resilience"
)

// YouTubeClient fetches transcripts and metadata for YouTube videos.
type YouTubeClient struct {
	apiKey      string
	httpClient  *http.Client
	rateLimiter *rate.Limiter
	breaker     *resilience.Breaker
}

// NewYouTubeClient constructs a client. apiKey may be empty; metadata fetch
// then always fails and callers fall back to the placeholder-title path.
func NewYouTubeClient(apiKey string) *YouTubeClient {
	return &YouTubeClient{
		apiKey:      apiKey,
		httpClient:  &http.Client{Timeout: 30 * time.Second},
		rateLimiter: rate.NewLimiter(rate.Every(200*time.Millisecond), 5),
		breaker:     resilience.NewBreaker(resilience.DefaultBreakerOpts),
	}
}

type videoListResponse struct {
	Items []struct {
		Snippet struct {
			Title        string   `json:"title"`
			Description  string   `json:"description"`
			ChannelID    string   `json:"channelId"`
			ChannelTitle string   `json:"channelTitle"`
			PublishedAt  string   `json:"publishedAt"`
			Tags         []string `json:"tags"`
			Thumbnails   map[string]any `json:"thumbnails"`
			DefaultLanguage string `json:"defaultLanguage"`
		} `json:"snippet"`
		ContentDetails struct {
			Duration string `json:"duration"`
		} `json:"contentDetails"`
		Statistics struct {
			ViewCount string `json:"viewCount"`
			LikeCount string `json:"likeCount"`
		} `json:"statistics"`
	} `json:"items"`
}

var descriptionURLRegex = regexp.MustCompile(`https?://[^\s)]+`)

// FetchMetadata retrieves full video metadata via the YouTube Data API.
func (c *YouTubeClient) FetchMetadata(ctx context.Context, videoID string) (VideoMetadata, error) {
	if c.apiKey == "" {
		return VideoMetadata{}, domain.NewStageError(domain.StageFetch, "NO_API_KEY", "youtube api key not configured", nil)
	}
	if err := c.rateLimiter.Wait(ctx); err != nil {
		return VideoMetadata{}, err
	}

	var meta VideoMetadata
	err := c.breaker.Call(ctx, func(ctx context.Context) error {
		params := url.Values{
			"part": {"snippet,contentDetails,statistics"},
			"id":   {videoID},
			"key":  {c.apiKey},
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodGet,
			"https://www.googleapis.com/youtube/v3/videos?"+params.Encode(), nil)
		if err != nil {
			return err
		}
		resp, err := c.httpClient.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("fetchers: youtube metadata http %d", resp.StatusCode)
		}

		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return err
		}
		var vr videoListResponse
		if err := json.Unmarshal(body, &vr); err != nil {
			return err
		}
		if len(vr.Items) == 0 {
			return fmt.Errorf("fetchers: youtube video %s not found", videoID)
		}

		item := vr.Items[0]
		durationSeconds := parseISO8601Duration(item.ContentDetails.Duration)
		viewCount, _ := strconv.ParseInt(item.Statistics.ViewCount, 10, 64)
		likeCount, _ := strconv.ParseInt(item.Statistics.LikeCount, 10, 64)

		now := time.Now().UTC().Format(time.RFC3339)
		meta = VideoMetadata{
			ID:              videoID,
			VideoID:         videoID,
			Title:           item.Snippet.Title,
			Description:     item.Snippet.Description,
			DescriptionURLs: descriptionURLRegex.FindAllString(item.Snippet.Description, -1),
			ChannelID:       item.Snippet.ChannelID,
			ChannelTitle:    item.Snippet.ChannelTitle,
			PublishedAt:     item.Snippet.PublishedAt,
			Duration:        item.ContentDetails.Duration,
			DurationSeconds: durationSeconds,
			ViewCount:       viewCount,
			LikeCount:       likeCount,
			Tags:            item.Snippet.Tags,
			Thumbnails:      item.Snippet.Thumbnails,
			Language:        item.Snippet.DefaultLanguage,
			FetchedAt:       now,
		}
		return nil
	})
	if err != nil {
		return VideoMetadata{}, domain.NewStageError(domain.StageFetch, "METADATA_FETCH_FAILED", err.Error(), err)
	}
	return meta, nil
}

// FetchTranscript retrieves the timestamped transcript text for a video.
// The concrete transcript source (captions API, third-party proxy) is an
// external collaborator; this client issues the HTTP call and normalizes
// the response to plain UTF-8 text.
func (c *YouTubeClient) FetchTranscript(ctx context.Context, videoID string) (string, error) {
	if err := c.rateLimiter.Wait(ctx); err != nil {
		return "", err
	}

	var transcript string
	err := c.breaker.Call(ctx, func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet,
			"https://video.google.com/timedtext?lang=en&v="+url.QueryEscape(videoID), nil)
		if err != nil {
			return err
		}
		resp, err := c.httpClient.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return err
		}
		if len(body) == 0 {
			return fmt.Errorf("fetchers: empty transcript for %s", videoID)
		}
		transcript = string(body)
		return nil
	})
	if err != nil {
		return "", domain.NewStageError(domain.StageFetch, "TRANSCRIPT_FETCH_FAILED", err.Error(), err)
	}
	return transcript, nil
}

var iso8601DurationRegex = regexp.MustCompile(`P(?:(\d+)D)?T?(?:(\d+)H)?(?:(\d+)M)?(?:(\d+)S)?`)

func parseISO8601Duration(s string) int {
	m := iso8601DurationRegex.FindStringSubmatch(s)
	if m == nil {
		return 0
	}
	days, _ := strconv.Atoi(m[1])
	hours, _ := strconv.Atoi(m[2])
	minutes, _ := strconv.Atoi(m[3])
	seconds, _ := strconv.Atoi(m[4])
	return days*86400 + hours*3600 + minutes*60 + seconds
}
