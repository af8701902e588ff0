package jobs

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	"github.com/thea-app/thea/internal/invoices"
	jobmetrics "github.com/thea-app/thea/internal/jobs"
)

const reconcileBatchSize = 500

// UnverifiedSource lists invoices still awaiting a verification decision.
type UnverifiedSource interface {
	ListUnverified(ctx context.Context, limit int) ([]invoices.Invoice, error)
}

// StatusCache is the slice of the status store the reconciler needs.
type StatusCache interface {
	Exists(ctx context.Context, invoiceID string) (bool, error)
	Set(ctx context.Context, entry invoices.VerificationEntry) error
}

// Reconciler re-seeds cache entries for unverified invoices whose projection
// was evicted, so pollers keep getting cheap reads.
type Reconciler struct {
	source  UnverifiedSource
	cache   StatusCache
	logger  *slog.Logger
	metrics *jobmetrics.Metrics
	now     func() time.Time
}

// NewReconciler constructs a Reconciler. Metrics may be nil.
func NewReconciler(source UnverifiedSource, cache StatusCache, logger *slog.Logger, metrics *jobmetrics.Metrics) *Reconciler {
	return &Reconciler{
		source:  source,
		cache:   cache,
		logger:  logger,
		metrics: metrics,
		now:     time.Now,
	}
}

// Handle processes TaskVerificationReconcile tasks.
func (r *Reconciler) Handle(ctx context.Context, t *asynq.Task) error {
	var payload VerificationReconcilePayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	tracker := r.metrics.Track("verification_reconcile")
	seeded, err := r.Reconcile(ctx)
	r.logger.Info("verification reconcile finished",
		slog.Int("seeded", seeded),
		slog.Time("scheduled_for", payload.ScheduledFor))
	return tracker.End(err)
}

// Reconcile writes a cache entry for every unverified invoice that lost its
// projection and reports how many it seeded.
func (r *Reconciler) Reconcile(ctx context.Context) (int, error) {
	pending, err := r.source.ListUnverified(ctx, reconcileBatchSize)
	if err != nil {
		return 0, err
	}

	seeded := 0
	for _, inv := range pending {
		cached, err := r.cache.Exists(ctx, inv.ID)
		if err != nil {
			return seeded, err
		}
		if cached {
			continue
		}
		entry := invoices.VerificationEntry{
			Status:    string(inv.VerificationStatus),
			InvoiceID: inv.ID,
			Timestamp: r.now().UTC(),
		}
		if err := r.cache.Set(ctx, entry); err != nil {
			return seeded, err
		}
		seeded++
	}
	return seeded, nil
}
