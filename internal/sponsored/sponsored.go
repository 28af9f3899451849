// Package sponsored flags affiliate, shortener, and tracking URLs so they
// are never promoted to entities.
package sponsored

import (
	"net/url"
	"strings"
)

var blockedHosts = map[string]bool{
	"bit.ly":      true,
	"amzn.to":     true,
	"geni.us":     true,
	"tinyurl.com": true,
	"brilliant.org": true,
}

var awsContextKeywords = []string{"aws", "amazon web services", "s3", "ec2", "lambda", "cloudfront"}

// IsSponsored reports whether rawURL should be filtered out of entity
// detection. surroundingText is the text near the URL's occurrence, used to
// decide amazon.com's AWS exception.
func IsSponsored(rawURL, surroundingText string) bool {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil || u.Host == "" {
		return false
	}
	host := strings.ToLower(strings.TrimPrefix(u.Hostname(), "www."))

	if blockedHosts[host] {
		return true
	}

	if host == "amazon.com" || strings.HasSuffix(host, ".amazon.com") {
		return !hasAWSContext(surroundingText)
	}

	lowerPathQuery := strings.ToLower(u.Path + "?" + u.RawQuery)
	if strings.Contains(lowerPathQuery, "utm_") {
		return true
	}
	if strings.Contains(lowerPathQuery, "ref=") {
		return true
	}
	if strings.Contains(lowerPathQuery, "affiliate=") {
		return true
	}
	if strings.Contains(lowerPathQuery, "sponsored") {
		return true
	}
	if strings.ToLower(u.Fragment) == "ad" {
		return true
	}

	return false
}

func hasAWSContext(text string) bool {
	lower := strings.ToLower(text)
	for _, kw := range awsContextKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}
