package orchestrator

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/menosai/menos/internal/domain"
	"github.com/menosai/menos/internal/resolver"
)

const webhookTimeout = 10 * time.Second

// WebhookDeliverer POSTs a job's terminal result to its registered URL,
// signing the body with the caller's key so the receiver can verify
// authenticity. Delivery is at-most-once: a failed POST is logged and
// dropped, never retried.
type WebhookDeliverer struct {
	client    *http.Client
	signingKey []byte
	log       *slog.Logger
}

// NewWebhookDeliverer constructs a deliverer. signingKey may be nil to
// send unsigned payloads.
func NewWebhookDeliverer(signingKey []byte, log *slog.Logger) *WebhookDeliverer {
	if log == nil {
		log = slog.Default()
	}
	return &WebhookDeliverer{
		client:     &http.Client{Timeout: webhookTimeout},
		signingKey: signingKey,
		log:        log,
	}
}

type webhookPayload struct {
	JobID       string         `json:"job_id"`
	ContentID   string         `json:"content_id"`
	Status      domain.JobStatus `json:"status"`
	ErrorCode   string         `json:"error_code,omitempty"`
	ErrorStage  string         `json:"error_stage,omitempty"`
	Result      *enrichEnvelope `json:"result,omitempty"`
	FinishedAt  *time.Time     `json:"finished_at,omitempty"`
}

type enrichEnvelope struct {
	Tags         []string `json:"tags,omitempty"`
	Tier         string   `json:"tier,omitempty"`
	QualityScore int      `json:"quality_score,omitempty"`
	Summary      string   `json:"summary,omitempty"`
}

// Deliver sends the webhook if job.Metadata carries a webhook_url. It is
// a no-op otherwise.
func (w *WebhookDeliverer) Deliver(ctx context.Context, job domain.PipelineJob, result *resolver.Result, deliveryErr error) {
	url := stringMeta(job.Metadata, "webhook_url")
	if url == "" {
		return
	}

	payload := webhookPayload{
		JobID:      job.ID,
		ContentID:  job.ContentID,
		Status:     job.Status,
		ErrorCode:  job.ErrorCode,
		ErrorStage: job.ErrorStage,
		FinishedAt: job.FinishedAt,
	}
	if result != nil && result.Enrichment != nil {
		payload.Result = &enrichEnvelope{
			Tags:         result.Enrichment.Tags,
			Tier:         string(result.Enrichment.Tier),
			QualityScore: result.Enrichment.QualityScore,
			Summary:      result.Enrichment.Summary,
		}
	}

	body, err := json.Marshal(payload)
	if err != nil {
		w.log.Error("webhook: failed to marshal payload", "job_id", job.ID, "err", err)
		return
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		w.log.Error("webhook: failed to build request", "job_id", job.ID, "err", err)
		return
	}
	req.Header.Set("Content-Type", "application/json")
	if w.signingKey != nil {
		req.Header.Set("X-Menos-Signature", w.sign(body))
	}

	resp, err := w.client.Do(req)
	if err != nil {
		w.log.Warn("webhook: delivery failed", "job_id", job.ID, "url", url, "err", err)
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		w.log.Warn("webhook: receiver rejected delivery", "job_id", job.ID, "url", url, "status", resp.StatusCode)
	}
}

func (w *WebhookDeliverer) sign(body []byte) string {
	mac := hmac.New(sha256.New, w.signingKey)
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}
