package neostore

import (
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j/dbtype"

	"github.com/menosai/menos/internal/domain"
)

func strProp(props map[string]any, key string) string {
	if v, ok := props[key].(string); ok {
		return v
	}
	return ""
}

func intProp(props map[string]any, key string) int {
	return toInt(props[key])
}

func toInt(v any) int {
	switch n := v.(type) {
	case int64:
		return int(n)
	case int:
		return n
	case float64:
		return int(n)
	default:
		return 0
	}
}

func timeProp(props map[string]any, key string) time.Time {
	if v, ok := props[key].(string); ok {
		if t, err := time.Parse(time.RFC3339Nano, v); err == nil {
			return t
		}
	}
	return time.Time{}
}

func timePtrProp(props map[string]any, key string) *time.Time {
	v, ok := props[key].(string)
	if !ok || v == "" {
		return nil
	}
	t, err := time.Parse(time.RFC3339Nano, v)
	if err != nil {
		return nil
	}
	return &t
}

func strSliceProp(props map[string]any, key string) []string {
	raw, ok := props[key].([]any)
	if !ok {
		if ss, ok := props[key].([]string); ok {
			return ss
		}
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, v := range raw {
		if s, ok := v.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func formatTimePtr(t *time.Time) string {
	if t == nil {
		return ""
	}
	return formatTime(*t)
}

func contentToProps(c domain.Content) map[string]any {
	return map[string]any{
		"id":                c.ID,
		"content_type":      string(c.ContentType),
		"title":             c.Title,
		"mime_type":         c.MimeType,
		"file_size":         c.FileSize,
		"file_path":         c.FilePath,
		"author":            c.Author,
		"tags":              c.Tags,
		"description":       c.Description,
		"resource_key":      c.ResourceKey(),
		"processing_status": string(c.ProcessingStatus),
		"pipeline_version":  c.PipelineVersion,
		"processed_at":      formatTimePtr(c.ProcessedAt),
		"created_at":        formatTime(c.CreatedAt),
		"updated_at":        formatTime(c.UpdatedAt),
		"tier":              string(c.Tier),
		"quality_score":     c.QualityScore,
		"summary":           c.Summary,
		"metadata_json":     mustMarshalMetadata(c.Metadata),
	}
}

func contentFromProps(props map[string]any) domain.Content {
	return domain.Content{
		ID:               strProp(props, "id"),
		ContentType:      domain.ContentType(strProp(props, "content_type")),
		Title:            strProp(props, "title"),
		MimeType:         strProp(props, "mime_type"),
		FileSize:         int64(intProp(props, "file_size")),
		FilePath:         strProp(props, "file_path"),
		Author:           strProp(props, "author"),
		Tags:             strSliceProp(props, "tags"),
		Description:      strProp(props, "description"),
		Metadata:         mustUnmarshalMetadata(strProp(props, "metadata_json")),
		ProcessingStatus: domain.ProcessingStatus(strProp(props, "processing_status")),
		PipelineVersion:  intProp(props, "pipeline_version"),
		ProcessedAt:      timePtrProp(props, "processed_at"),
		CreatedAt:        timeProp(props, "created_at"),
		UpdatedAt:        timeProp(props, "updated_at"),
		Tier:             domain.Tier(strProp(props, "tier")),
		QualityScore:     intProp(props, "quality_score"),
		Summary:          strProp(props, "summary"),
	}
}

func entityToProps(e domain.Entity) map[string]any {
	return map[string]any{
		"id":              e.ID,
		"entity_type":     string(e.EntityType),
		"name":            e.Name,
		"normalized_name": e.NormalizedName,
		"description":     e.Description,
		"hierarchy":       e.Hierarchy,
		"source":          string(e.Source),
		"created_at":      formatTime(e.CreatedAt),
		"updated_at":      formatTime(e.UpdatedAt),
		"metadata_json":   mustMarshalMetadata(e.Metadata),
		"aliases":         aliasesOf(e.Metadata),
	}
}

func entityFromProps(props map[string]any) domain.Entity {
	return domain.Entity{
		ID:             strProp(props, "id"),
		EntityType:     domain.EntityType(strProp(props, "entity_type")),
		Name:           strProp(props, "name"),
		NormalizedName: strProp(props, "normalized_name"),
		Description:    strProp(props, "description"),
		Hierarchy:      strSliceProp(props, "hierarchy"),
		Metadata:       mustUnmarshalMetadata(strProp(props, "metadata_json")),
		Source:         domain.EntitySource(strProp(props, "source")),
		CreatedAt:      timeProp(props, "created_at"),
		UpdatedAt:      timeProp(props, "updated_at"),
	}
}

func aliasesOf(metadata map[string]any) []string {
	if metadata == nil {
		return nil
	}
	switch v := metadata["aliases"].(type) {
	case []string:
		return v
	case []any:
		out := make([]string, 0, len(v))
		for _, a := range v {
			if s, ok := a.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}

func jobToProps(j domain.PipelineJob) map[string]any {
	return map[string]any{
		"id":               j.ID,
		"resource_key":     j.ResourceKey,
		"content_id":       j.ContentID,
		"status":           string(j.Status),
		"pipeline_version": j.PipelineVersion,
		"data_tier":        string(j.DataTier),
		"idempotency_key":  j.IdempotencyKey,
		"error_code":       j.ErrorCode,
		"error_message":    j.ErrorMessage,
		"error_stage":      j.ErrorStage,
		"created_at":       formatTime(j.CreatedAt),
		"started_at":       formatTimePtr(j.StartedAt),
		"finished_at":      formatTimePtr(j.FinishedAt),
		"metadata_json":    mustMarshalMetadata(j.Metadata),
	}
}

func migrationToProps(m domain.Migration) map[string]any {
	return map[string]any{
		"name":       m.Name,
		"applied_at": formatTime(m.AppliedAt),
	}
}

func migrationFromRecord(record *neo4j.Record) (domain.Migration, error) {
	node, _, err := neo4j.GetRecordValue[dbtype.Node](record, "n")
	if err != nil {
		return domain.Migration{}, err
	}
	return domain.Migration{
		Name:      strProp(node.Props, "name"),
		AppliedAt: timeProp(node.Props, "applied_at"),
	}, nil
}

func jobFromProps(props map[string]any) domain.PipelineJob {
	return domain.PipelineJob{
		ID:              strProp(props, "id"),
		ResourceKey:     strProp(props, "resource_key"),
		ContentID:       strProp(props, "content_id"),
		Status:          domain.JobStatus(strProp(props, "status")),
		PipelineVersion: intProp(props, "pipeline_version"),
		DataTier:        domain.DataTier(strProp(props, "data_tier")),
		IdempotencyKey:  strProp(props, "idempotency_key"),
		ErrorCode:       strProp(props, "error_code"),
		ErrorMessage:    strProp(props, "error_message"),
		ErrorStage:      strProp(props, "error_stage"),
		Metadata:        mustUnmarshalMetadata(strProp(props, "metadata_json")),
		CreatedAt:       timeProp(props, "created_at"),
		StartedAt:       timePtrProp(props, "started_at"),
		FinishedAt:      timePtrProp(props, "finished_at"),
	}
}
