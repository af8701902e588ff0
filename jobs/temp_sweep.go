package jobs

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/hibiken/asynq"
	"golang.org/x/sync/errgroup"

	jobmetrics "github.com/thea-app/thea/internal/jobs"
	"github.com/thea-app/thea/internal/platform/objstore"
)

const (
	tempPrefix       = "temp/"
	sweepConcurrency = 4
)

// BlobStore is the slice of object storage the sweeper needs.
type BlobStore interface {
	ListPrefix(ctx context.Context, bucket, prefix string) ([]objstore.ObjectInfo, error)
	Remove(ctx context.Context, bucket, object string) error
}

// Sweeper deletes temp objects whose recognition never completed. Objects
// younger than maxAge are left alone; the rename consumer may still be
// working on them.
type Sweeper struct {
	store   BlobStore
	bucket  string
	maxAge  time.Duration
	logger  *slog.Logger
	metrics *jobmetrics.Metrics
	now     func() time.Time
}

// NewSweeper constructs a Sweeper. Metrics may be nil.
func NewSweeper(store BlobStore, bucket string, maxAge time.Duration, logger *slog.Logger, metrics *jobmetrics.Metrics) *Sweeper {
	return &Sweeper{
		store:   store,
		bucket:  bucket,
		maxAge:  maxAge,
		logger:  logger,
		metrics: metrics,
		now:     time.Now,
	}
}

// Handle processes TaskTempSweep tasks.
func (s *Sweeper) Handle(ctx context.Context, t *asynq.Task) error {
	var payload TempSweepPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	tracker := s.metrics.Track("temp_sweep")
	swept, err := s.Sweep(ctx)
	s.logger.Info("temp sweep finished",
		slog.Int("swept", swept),
		slog.Time("scheduled_for", payload.ScheduledFor))
	return tracker.End(err)
}

// Sweep removes every temp object older than the cutoff and reports how
// many it deleted. Individual removal failures abort the run so the next
// scheduled sweep retries them.
func (s *Sweeper) Sweep(ctx context.Context) (int, error) {
	cutoff := s.now().Add(-s.maxAge)

	objects, err := s.store.ListPrefix(ctx, s.bucket, tempPrefix)
	if err != nil {
		return 0, err
	}

	var swept atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(sweepConcurrency)
	for _, obj := range objects {
		obj := obj
		if !obj.LastModified.Before(cutoff) {
			continue
		}
		g.Go(func() error {
			if err := s.store.Remove(gctx, s.bucket, obj.Name); err != nil {
				return err
			}
			swept.Add(1)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return int(swept.Load()), err
	}
	return int(swept.Load()), nil
}
