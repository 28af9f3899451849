package ingest

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/JohannesKaufmann/html-to-markdown/plugin"
	readability "github.com/go-shiori/go-readability"
)

// minExtractedLength is the floor below which the markdown conversion is
// considered to have failed to find real article content, triggering the
// fallback to readability's plain-text extraction.
const minExtractedLength = 100

// WebExtractor fetches a page and converts it to markdown: it runs
// Mozilla-readability article extraction on the page and converts the
// article's HTML to markdown, falling back to the article's plain text
// when that yields too little (landing pages, heavy chrome, paywalled stubs).
type WebExtractor struct {
	client    *http.Client
	converter *md.Converter
}

// NewWebExtractor constructs a WebExtractor.
func NewWebExtractor() *WebExtractor {
	converter := md.NewConverter("", true, nil)
	converter.Use(plugin.GitHubFlavored())
	return &WebExtractor{
		client:    &http.Client{Timeout: 30 * time.Second},
		converter: converter,
	}
}

// Extract downloads rawURL and returns its title and markdown body.
func (e *WebExtractor) Extract(ctx context.Context, rawURL string) (string, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return "", "", err
	}
	req.Header.Set("User-Agent", "menos-ingest/1.0")

	resp, err := e.client.Do(req)
	if err != nil {
		return "", "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", "", fmt.Errorf("ingest: web fetch http %d for %s", resp.StatusCode, rawURL)
	}

	base, _ := url.Parse(rawURL)
	article, artErr := readability.FromReader(resp.Body, base)

	markdown := ""
	if artErr == nil && article.Content != "" {
		if m, err := e.converter.ConvertString(article.Content); err == nil {
			markdown = cleanMarkdown(m)
		}
	}

	if len(markdown) < minExtractedLength && artErr == nil {
		markdown = strings.TrimSpace(article.TextContent)
	}

	title := ""
	if artErr == nil {
		title = strings.TrimSpace(article.Title)
	}
	if title == "" {
		title = rawURL
	}
	if markdown == "" {
		return "", "", fmt.Errorf("ingest: no extractable content at %s", rawURL)
	}

	return title, markdown, nil
}

func cleanMarkdown(content string) string {
	lines := strings.Split(content, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimRight(line, " \t")
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}
