package enrich

import (
	"encoding/json"
	"regexp"
	"strconv"
	"strings"

	"github.com/menosai/menos/internal/domain"
	"github.com/menosai/menos/internal/normalizer"
)

var labelPattern = regexp.MustCompile(`^[a-z][a-z0-9-]*$`)

var fencePattern = regexp.MustCompile("(?s)```(?:json)?\\s*(.*?)\\s*```")

// extractJSON pulls a JSON object out of raw, tolerating a ```json fenced
// block around it. It does not validate the object's shape.
func extractJSON(raw string) (map[string]any, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, false
	}

	candidate := raw
	if m := fencePattern.FindStringSubmatch(raw); m != nil {
		candidate = strings.TrimSpace(m[1])
	}

	start := strings.IndexByte(candidate, '{')
	end := strings.LastIndexByte(candidate, '}')
	if start < 0 || end < start {
		return nil, false
	}
	candidate = candidate[start : end+1]

	var data map[string]any
	if err := json.Unmarshal([]byte(candidate), &data); err != nil {
		return nil, false
	}
	return data, true
}

// confidenceToFloat maps an LLM-supplied confidence string to a numeric
// weight, defaulting unrecognized strings to ConfidenceDefault rather than
// ConfidenceLow.
func confidenceToFloat(confidence string) float64 {
	switch strings.ToLower(confidence) {
	case "high":
		return ConfidenceHigh
	case "medium":
		return ConfidenceMedium
	case "low":
		return ConfidenceLow
	default:
		return ConfidenceDefault
	}
}

func edgeTypeFromString(s string) domain.EdgeType {
	switch strings.ToLower(s) {
	case "discusses":
		return domain.EdgeDiscusses
	case "mentions":
		return domain.EdgeMentions
	case "cites":
		return domain.EdgeCites
	case "uses":
		return domain.EdgeUses
	case "demonstrates":
		return domain.EdgeDemonstrates
	default:
		return domain.EdgeMentions
	}
}

func entityTypeFromString(s string) domain.EntityType {
	switch strings.ToLower(s) {
	case "topic":
		return domain.EntityTopic
	case "repo":
		return domain.EntityRepo
	case "paper":
		return domain.EntityPaper
	case "tool":
		return domain.EntityTool
	case "person":
		return domain.EntityPerson
	default:
		return domain.EntityTopic
	}
}

// parseTopicHierarchy splits "AI > LLMs > RAG" into ["AI", "LLMs", "RAG"],
// dropping empty segments.
func parseTopicHierarchy(topic string) []string {
	parts := strings.Split(topic, ">")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// dedupLabel checks whether newLabel is a near-duplicate (Levenshtein
// distance <= maxDistance, compared after normalization) of any string in
// existing, returning the matched existing label if so.
func dedupLabel(newLabel string, existing []string, maxDistance int) (string, bool) {
	normalizedNew := normalizer.NormalizeName(newLabel)
	for _, e := range existing {
		if normalizer.Levenshtein(normalizedNew, normalizer.NormalizeName(e)) <= maxDistance {
			return e, true
		}
	}
	return "", false
}

func asStringSlice(v any) []string {
	list, ok := v.([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(list))
	for _, item := range list {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

func asMapSlice(v any) []map[string]any {
	list, ok := v.([]any)
	if !ok {
		return nil
	}
	out := make([]map[string]any, 0, len(list))
	for _, item := range list {
		if m, ok := item.(map[string]any); ok {
			out = append(out, m)
		}
	}
	return out
}

func asString(v any, fallback string) string {
	if s, ok := v.(string); ok {
		return s
	}
	return fallback
}

func asBool(v any, fallback bool) bool {
	if b, ok := v.(bool); ok {
		return b
	}
	return fallback
}

// coerceScore converts a dynamically-typed quality_score value (number or
// numeric string) to an int, falling back to 50 if unparseable.
func coerceScore(v any) int {
	switch t := v.(type) {
	case float64:
		return int(t)
	case json.Number:
		n, err := t.Int64()
		if err != nil {
			f, ferr := t.Float64()
			if ferr != nil {
				return 50
			}
			return int(f)
		}
		return int(n)
	case string:
		if n, err := strconv.Atoi(strings.TrimSpace(t)); err == nil {
			return n
		}
		return 50
	case int:
		return t
	default:
		return 50
	}
}

func clamp(n, lo, hi int) int {
	if n < lo {
		return lo
	}
	if n > hi {
		return hi
	}
	return n
}

// ParseConfig bounds how many new tags and topics a single response may
// contribute, and the minimum confidence for topic/entity extractions.
type ParseConfig struct {
	MaxNewTags     int
	MaxTopics      int
	MinConfidence  float64
	DedupDistance  int
}

// DefaultParseConfig matches the original pipeline's defaults.
func DefaultParseConfig() ParseConfig {
	return ParseConfig{
		MaxNewTags:    5,
		MaxTopics:     7,
		MinConfidence: ConfidenceLow,
		DedupDistance: 2,
	}
}

// ParseUnifiedResponse validates and types a raw parsed JSON payload,
// deduplicating new tags against existingTags via Levenshtein distance. It
// returns (nil, false) if data carries none of the recognized fields — the
// caller should treat that as a PARSE_FAILED stage error.
func ParseUnifiedResponse(data map[string]any, existingTags []string, cfg ParseConfig) (*Result, []TagRemap, bool) {
	if len(data) == 0 {
		return nil, nil, false
	}

	recognized := []string{"tags", "new_tags", "tier", "quality_score", "topics",
		"pre_detected_validations", "additional_entities", "summary"}
	hasRecognized := false
	for _, k := range recognized {
		if _, ok := data[k]; ok {
			hasRecognized = true
			break
		}
	}
	if !hasRecognized {
		return nil, nil, false
	}

	tier := domain.Tier(strings.ToUpper(asString(data["tier"], "C")))
	if !domain.ValidTiers[tier] {
		tier = domain.TierC
	}

	score := clamp(coerceScore(data["quality_score"]), 1, 100)

	rawTags := asStringSlice(data["tags"])
	tags := make([]string, 0, len(rawTags))
	for _, t := range rawTags {
		if labelPattern.MatchString(t) {
			tags = append(tags, t)
		}
	}

	var newTags []string
	var remaps []TagRemap
	newCount := 0
	for _, candidate := range asStringSlice(data["new_tags"]) {
		if newCount >= cfg.MaxNewTags {
			break
		}
		if !labelPattern.MatchString(candidate) {
			continue
		}

		pool := append(append([]string{}, existingTags...), tags...)
		if match, found := dedupLabel(candidate, pool, cfg.DedupDistance); found {
			if !contains(tags, match) {
				tags = append(tags, match)
			}
			remaps = append(remaps, TagRemap{Variant: candidate, Canonical: match})
			continue
		}

		if !contains(tags, candidate) {
			tags = append(tags, candidate)
			newTags = append(newTags, candidate)
			newCount++
		}
	}

	tierExplanation := nonEmptyStrings(asStringSlice(data["tier_explanation"]))
	scoreExplanation := nonEmptyStrings(asStringSlice(data["score_explanation"]))
	summary := asString(data["summary"], "")

	var topics []ExtractedTopic
	for _, t := range asMapSlice(data["topics"]) {
		name := asString(t["name"], "")
		if name == "" {
			continue
		}
		if len(topics) >= cfg.MaxTopics {
			break
		}
		confidenceStr := asString(t["confidence"], "medium")
		confVal := confidenceToFloat(confidenceStr)
		if confVal < cfg.MinConfidence {
			continue
		}
		hierarchy := parseTopicHierarchy(name)
		leaf := name
		if len(hierarchy) > 0 {
			leaf = hierarchy[len(hierarchy)-1]
		}
		topics = append(topics, ExtractedTopic{
			Name:       leaf,
			Hierarchy:  hierarchy,
			Confidence: confVal,
			EdgeType:   edgeTypeFromString(asString(t["edge_type"], "discusses")),
		})
	}

	var validations []PreDetectedValidation
	for _, v := range asMapSlice(data["pre_detected_validations"]) {
		entityID := asString(v["entity_id"], "")
		if entityID == "" {
			continue
		}
		validations = append(validations, PreDetectedValidation{
			EntityID:  entityID,
			EdgeType:  edgeTypeFromString(asString(v["edge_type"], "mentions")),
			Confirmed: asBool(v["confirmed"], true),
		})
	}

	var additional []ExtractedEntity
	for _, e := range asMapSlice(data["additional_entities"]) {
		name := asString(e["name"], "")
		if name == "" {
			continue
		}
		confidenceStr := asString(e["confidence"], "medium")
		confVal := confidenceToFloat(confidenceStr)
		if confVal < cfg.MinConfidence {
			continue
		}
		additional = append(additional, ExtractedEntity{
			EntityType: entityTypeFromString(asString(e["type"], "tool")),
			Name:       name,
			Confidence: confVal,
			EdgeType:   edgeTypeFromString(asString(e["edge_type"], "mentions")),
		})
	}

	return &Result{
		Tags:                   tags,
		NewTags:                newTags,
		Tier:                   tier,
		TierExplanation:        tierExplanation,
		QualityScore:           score,
		ScoreExplanation:       scoreExplanation,
		Summary:                summary,
		Topics:                 topics,
		PreDetectedValidations: validations,
		AdditionalEntities:     additional,
	}, remaps, true
}

func contains(ss []string, s string) bool {
	for _, x := range ss {
		if x == s {
			return true
		}
	}
	return false
}

func nonEmptyStrings(ss []string) []string {
	out := make([]string, 0, len(ss))
	for _, s := range ss {
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}
