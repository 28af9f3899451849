package orchestrator

import (
	"context"
	"log/slog"

	"github.com/nats-io/nats.go"

	"github.com/menosai/menos/pkg/natsutil"
)

const jobSubmittedSubject = "menos.jobs.submitted"

// NatsNotifier publishes job-submitted notices over NATS so a worker
// blocked on its poll interval can wake up early. Never the source of
// truth: ListPendingJobs remains authoritative, so a dropped publish or an
// absent subscriber changes nothing but latency.
type NatsNotifier struct {
	nc  *nats.Conn
	log *slog.Logger
}

// NewNatsNotifier wraps an already-connected NATS connection. nc must not
// be nil.
func NewNatsNotifier(nc *nats.Conn, log *slog.Logger) *NatsNotifier {
	if log == nil {
		log = slog.Default()
	}
	return &NatsNotifier{nc: nc, log: log}
}

type jobSubmittedEvent struct {
	JobID string `json:"job_id"`
}

func (n *NatsNotifier) NotifyJobSubmitted(ctx context.Context, jobID string) {
	if err := natsutil.Publish(ctx, n.nc, jobSubmittedSubject, jobSubmittedEvent{JobID: jobID}); err != nil {
		n.log.Warn("orchestrator: failed to publish job-submitted notice", "job_id", jobID, "err", err)
	}
}

// Subscribe feeds wake on every job-submitted notice, non-blocking so a
// slow or saturated worker pool never backs up the NATS subscription.
func (n *NatsNotifier) Subscribe(ctx context.Context, wake chan<- struct{}) error {
	_, err := natsutil.Subscribe(n.nc, jobSubmittedSubject, func(_ context.Context, _ jobSubmittedEvent) {
		select {
		case wake <- struct{}{}:
		default:
		}
	})
	return err
}
