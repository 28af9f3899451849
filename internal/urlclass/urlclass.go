// Package urlclass classifies URLs into a stable kind and identifier,
// canonicalizes web URLs for deduplication, and derives resource keys.
package urlclass

import (
	"crypto/sha256"
	"encoding/hex"
	"net/url"
	"regexp"
	"sort"
	"strings"
)

// Kind is the classified type of a URL.
type Kind string

const (
	KindYouTube    Kind = "youtube"
	KindGitHubRepo Kind = "github_repo"
	KindArXiv      Kind = "arxiv"
	KindPyPI       Kind = "pypi"
	KindNPM        Kind = "npm"
	KindDOI        Kind = "doi"
	KindWeb        Kind = "web"
)

// Classification is the result of classifying a URL.
type Classification struct {
	Kind       Kind
	Identifier string
	Canonical  string // canonicalized form, populated for Kind == KindWeb
}

var (
	youtubeIDRegex    = regexp.MustCompile(`^[A-Za-z0-9_-]{11}$`)
	githubPathRegex   = regexp.MustCompile(`^/([A-Za-z0-9._-]+)/([A-Za-z0-9._-]+?)(?:\.git)?/?$`)
	arxivNewRegex     = regexp.MustCompile(`^\d{4}\.\d{4,5}(v\d+)?$`)
	arxivLegacyRegex  = regexp.MustCompile(`^[a-z-]+(\.[A-Za-z]{2})?/\d{7}(v\d+)?$`)
	pypiPathRegex     = regexp.MustCompile(`^/project/([A-Za-z0-9._-]+)/?$`)
	npmPathRegex      = regexp.MustCompile(`^/package/(@?[A-Za-z0-9._/-]+?)/?$`)
	doiPathRegex      = regexp.MustCompile(`^/(10\.\d{4,9}/\S+)$`)
)

// Classify determines the Kind and identifier of a raw URL. Unrecognized
// URLs classify as KindWeb with the canonicalized form as the identifier
// basis; input that does not parse as an absolute URL returns ErrUnparseable.
func Classify(raw string) (Classification, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || u.Host == "" {
		return Classification{}, ErrUnparseable
	}
	host := strings.ToLower(strings.TrimPrefix(u.Hostname(), "www."))

	switch {
	case host == "youtube.com" || host == "m.youtube.com":
		if id := youtubeIDFromQuery(u); id != "" {
			return Classification{Kind: KindYouTube, Identifier: id}, nil
		}
		if id := youtubeIDFromEmbedPath(u.Path); id != "" {
			return Classification{Kind: KindYouTube, Identifier: id}, nil
		}
	case host == "youtu.be":
		id := strings.Trim(u.Path, "/")
		if youtubeIDRegex.MatchString(id) {
			return Classification{Kind: KindYouTube, Identifier: id}, nil
		}
	case host == "github.com":
		if m := githubPathRegex.FindStringSubmatch(u.Path); m != nil {
			return Classification{Kind: KindGitHubRepo, Identifier: m[1] + "/" + m[2]}, nil
		}
	case host == "arxiv.org":
		if strings.HasPrefix(u.Path, "/abs/") {
			id := strings.TrimPrefix(u.Path, "/abs/")
			if arxivNewRegex.MatchString(id) || arxivLegacyRegex.MatchString(id) {
				return Classification{Kind: KindArXiv, Identifier: id}, nil
			}
		}
	case host == "pypi.org":
		if m := pypiPathRegex.FindStringSubmatch(u.Path); m != nil {
			return Classification{Kind: KindPyPI, Identifier: m[1]}, nil
		}
	case host == "npmjs.com":
		if m := npmPathRegex.FindStringSubmatch(u.Path); m != nil {
			return Classification{Kind: KindNPM, Identifier: m[1]}, nil
		}
	case host == "doi.org":
		if m := doiPathRegex.FindStringSubmatch(u.Path); m != nil {
			return Classification{Kind: KindDOI, Identifier: m[1]}, nil
		}
	}

	canonical := CanonicalizeWebURL(raw)
	return Classification{Kind: KindWeb, Identifier: canonical, Canonical: canonical}, nil
}

func youtubeIDFromQuery(u *url.URL) string {
	if u.Path != "/watch" {
		return ""
	}
	id := u.Query().Get("v")
	if youtubeIDRegex.MatchString(id) {
		return id
	}
	return ""
}

func youtubeIDFromEmbedPath(path string) string {
	if !strings.HasPrefix(path, "/embed/") {
		return ""
	}
	id := strings.TrimPrefix(path, "/embed/")
	id = strings.Trim(id, "/")
	if youtubeIDRegex.MatchString(id) {
		return id
	}
	return ""
}

// isTrackingParam and explicitTrackingParams define which query keys
// are stripped during canonicalization.
var explicitTrackingParams = map[string]bool{
	"gbraid": true, "wbraid": true, "mc_cid": true, "mc_eid": true,
	"hsenc": true, "hsctatracking": true,
}

func isTrackingParam(key string) bool {
	lower := strings.ToLower(key)
	if strings.HasPrefix(lower, "utm_") {
		return true
	}
	if strings.HasSuffix(lower, "clid") {
		return true
	}
	return explicitTrackingParams[lower]
}

// CanonicalizeWebURL reduces a URL to its identity-bearing parts: lowercased
// host with leading www. stripped, non-default port preserved, trailing
// slash stripped except for root path, tracking query parameters removed,
// remaining query pairs sorted by (key, value), fragment dropped.
func CanonicalizeWebURL(raw string) string {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return strings.TrimSpace(raw)
	}

	scheme := strings.ToLower(u.Scheme)
	host := strings.ToLower(u.Hostname())
	host = strings.TrimPrefix(host, "www.")
	if port := u.Port(); port != "" && !(scheme == "http" && port == "80") && !(scheme == "https" && port == "443") {
		host = host + ":" + port
	}

	path := u.Path
	if path != "/" {
		path = strings.TrimSuffix(path, "/")
	}
	if path == "" {
		path = "/"
	}

	q := u.Query()
	type kv struct{ k, v string }
	var pairs []kv
	for k, vs := range q {
		if isTrackingParam(k) {
			continue
		}
		for _, v := range vs {
			pairs = append(pairs, kv{k, v})
		}
	}
	sort.Slice(pairs, func(i, j int) bool {
		if pairs[i].k != pairs[j].k {
			return pairs[i].k < pairs[j].k
		}
		return pairs[i].v < pairs[j].v
	})

	var qb strings.Builder
	for i, p := range pairs {
		if i > 0 {
			qb.WriteByte('&')
		}
		qb.WriteString(p.k)
		qb.WriteByte('=')
		qb.WriteString(p.v)
	}

	out := scheme + "://" + host + path
	if qb.Len() > 0 {
		out += "?" + qb.String()
	}
	return out
}

// ResourceKey derives the dedup key for a classification: "yt:<video_id>"
// for YouTube, "url:<sha256(canonical)>" for everything else.
func ResourceKey(c Classification) string {
	if c.Kind == KindYouTube {
		return "yt:" + c.Identifier
	}
	canonical := c.Canonical
	if canonical == "" {
		canonical = c.Identifier
	}
	sum := sha256.Sum256([]byte(canonical))
	return "url:" + hex.EncodeToString(sum[:])
}
