// Package fetchers implements the external metadata collaborators: YouTube
// transcript/metadata, GitHub repository, ArXiv paper, and Semantic Scholar
// fallback lookup. Every client is rate-limited and returns a normalized
// record or a typed error.
package fetchers

import "time"

// RepoMetadata is a normalized GitHub repository record.
type RepoMetadata struct {
	URL         string
	Owner       string
	Name        string
	Description string
	Stars       int
	Language    string
	Topics      []string
	FetchedAt   time.Time
}

// PaperMetadata is a normalized ArXiv/Semantic Scholar paper record.
type PaperMetadata struct {
	URL         string
	ArXivID     string
	Title       string
	Authors     []string
	Abstract    string
	PublishedAt *time.Time
	DOI         string
	FetchedAt   time.Time
}

// VideoMetadata is the normalized YouTube metadata document (spec §6).
type VideoMetadata struct {
	ID                string         `json:"id"`
	VideoID           string         `json:"video_id"`
	Title             string         `json:"title"`
	Description       string         `json:"description"`
	DescriptionURLs   []string       `json:"description_urls"`
	ChannelID         string         `json:"channel_id"`
	ChannelTitle      string         `json:"channel_title"`
	PublishedAt       string         `json:"published_at"`
	Duration          string         `json:"duration"`
	DurationSeconds   int            `json:"duration_seconds"`
	ViewCount         int64          `json:"view_count"`
	LikeCount         int64          `json:"like_count"`
	Tags              []string       `json:"tags"`
	Thumbnails        map[string]any `json:"thumbnails"`
	Language          string         `json:"language"`
	SegmentCount      int            `json:"segment_count"`
	TranscriptLength  int            `json:"transcript_length"`
	FileSize          int64          `json:"file_size"`
	Author            string         `json:"author"`
	CreatedAt         string         `json:"created_at"`
	FetchedAt         string         `json:"fetched_at"`
}
