package enrich

import (
	"context"
	"testing"

	"github.com/menosai/menos/internal/domain"
	"github.com/menosai/menos/internal/llm"
)

type stubGenerator struct {
	response string
	err      error
}

func (s stubGenerator) Generate(ctx context.Context, p llm.GenerateParams) (string, error) {
	return s.response, s.err
}

const s3Response = `{
  "tags": ["programming", "kubernetes"],
  "new_tags": ["homelab"],
  "tier": "A",
  "tier_explanation": ["solid"],
  "quality_score": 78,
  "score_explanation": ["well structured"],
  "summary": "A deep dive into Kubernetes tooling.",
  "topics": [
    {"name": "DevOps > Kubernetes > Helm", "confidence": "high", "edge_type": "discusses"}
  ],
  "pre_detected_validations": [
    {"entity_id": "entity:langchain", "edge_type": "uses", "confirmed": true}
  ],
  "additional_entities": [
    {"type": "tool", "name": "Helm", "confidence": "high", "edge_type": "uses"}
  ]
}`

func TestProcessUnifiedEnrichmentHappyPath(t *testing.T) {
	svc := New(stubGenerator{response: s3Response}, DefaultConfig(), nil)

	result, remaps, err := svc.Process(context.Background(), Input{
		ContentID:    "content-1",
		ContentText:  "some content about kubernetes and helm, quite long text here",
		ContentType:  domain.ContentMarkdown,
		Title:        "K8s deep dive",
		ExistingTags: []string{"programming", "kubernetes"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(remaps) != 0 {
		t.Errorf("expected no tag remaps, got %v", remaps)
	}

	wantTags := map[string]bool{"programming": true, "kubernetes": true, "homelab": true}
	if len(result.Tags) != len(wantTags) {
		t.Fatalf("tags = %v, want 3 tags matching %v", result.Tags, wantTags)
	}
	for _, tag := range result.Tags {
		if !wantTags[tag] {
			t.Errorf("unexpected tag %q", tag)
		}
	}

	if result.Tier != domain.TierA {
		t.Errorf("tier = %q, want A", result.Tier)
	}
	if result.QualityScore != 78 {
		t.Errorf("quality_score = %d, want 78", result.QualityScore)
	}

	if len(result.Topics) != 1 {
		t.Fatalf("expected 1 topic, got %d", len(result.Topics))
	}
	topic := result.Topics[0]
	wantHierarchy := []string{"DevOps", "Kubernetes", "Helm"}
	if len(topic.Hierarchy) != len(wantHierarchy) {
		t.Fatalf("hierarchy = %v, want %v", topic.Hierarchy, wantHierarchy)
	}
	for i, h := range wantHierarchy {
		if topic.Hierarchy[i] != h {
			t.Errorf("hierarchy[%d] = %q, want %q", i, topic.Hierarchy[i], h)
		}
	}
	if topic.Name != "Helm" {
		t.Errorf("topic leaf name = %q, want Helm", topic.Name)
	}

	if len(result.PreDetectedValidations) != 1 || result.PreDetectedValidations[0].EntityID != "entity:langchain" {
		t.Errorf("unexpected validations: %+v", result.PreDetectedValidations)
	}
	if len(result.AdditionalEntities) != 1 || result.AdditionalEntities[0].Name != "Helm" {
		t.Errorf("unexpected additional entities: %+v", result.AdditionalEntities)
	}
}

func TestProcessTagNearDuplicateCollapse(t *testing.T) {
	response := `{"tags": ["programming"], "new_tags": ["programing"], "tier": "B", "quality_score": 60, "summary": "x"}`
	svc := New(stubGenerator{response: response}, DefaultConfig(), nil)

	result, remaps, err := svc.Process(context.Background(), Input{
		ContentID:    "content-2",
		ContentText:  "text",
		ContentType:  domain.ContentWeb,
		Title:        "t",
		ExistingTags: []string{"programming"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !contains(result.Tags, "programming") {
		t.Errorf("expected programming in final tags, got %v", result.Tags)
	}
	if contains(result.Tags, "programing") {
		t.Errorf("misspelled tag should have been collapsed, got %v", result.Tags)
	}
	if len(remaps) != 1 || remaps[0].Variant != "programing" || remaps[0].Canonical != "programming" {
		t.Errorf("expected one remap programing->programming, got %v", remaps)
	}
}

func TestProcessHandlesMarkdownFence(t *testing.T) {
	response := "Here is the result:\n```json\n{\"tier\": \"B\", \"quality_score\": 60, \"summary\": \"x\"}\n```"
	svc := New(stubGenerator{response: response}, DefaultConfig(), nil)

	result, _, err := svc.Process(context.Background(), Input{ContentID: "c", ContentText: "x", ContentType: domain.ContentWeb, Title: "t"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Tier != domain.TierB {
		t.Errorf("tier = %q, want B", result.Tier)
	}
}

func TestProcessEmptyResponseIsStageError(t *testing.T) {
	svc := New(stubGenerator{response: ""}, DefaultConfig(), nil)
	_, _, err := svc.Process(context.Background(), Input{ContentID: "c", ContentText: "x", ContentType: domain.ContentWeb, Title: "t"})

	var stageErr *domain.StageError
	if !asStageError(err, &stageErr) {
		t.Fatalf("expected *domain.StageError, got %T: %v", err, err)
	}
	if stageErr.Stage != domain.StageParse || stageErr.Code != "EMPTY_RESPONSE" {
		t.Errorf("unexpected stage error: %+v", stageErr)
	}
}

func TestProcessInvalidTierAndScoreFallback(t *testing.T) {
	response := `{"tier": "Z", "quality_score": "not-a-number", "summary": "x"}`
	svc := New(stubGenerator{response: response}, DefaultConfig(), nil)

	result, _, err := svc.Process(context.Background(), Input{ContentID: "c", ContentText: "x", ContentType: domain.ContentWeb, Title: "t"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Tier != domain.TierC {
		t.Errorf("invalid tier should snap to C, got %q", result.Tier)
	}
	if result.QualityScore != 50 {
		t.Errorf("unparseable score should default to 50, got %d", result.QualityScore)
	}
	if !domain.ValidTiers[result.Tier] {
		t.Errorf("tier %q is not a valid tier", result.Tier)
	}
	if result.QualityScore < 1 || result.QualityScore > 100 {
		t.Errorf("quality_score %d out of [1,100]", result.QualityScore)
	}
}

func asStageError(err error, target **domain.StageError) bool {
	se, ok := err.(*domain.StageError)
	if !ok {
		return false
	}
	*target = se
	return true
}
