package jobs

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/thea-app/thea/internal/invoices"
	"github.com/thea-app/thea/internal/platform/objstore"
)

type fakeBlobStore struct {
	mu        sync.Mutex
	objects   map[string]time.Time
	removeErr error
}

func (f *fakeBlobStore) ListPrefix(_ context.Context, _, prefix string) ([]objstore.ObjectInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []objstore.ObjectInfo
	for name, modified := range f.objects {
		if strings.HasPrefix(name, prefix) {
			out = append(out, objstore.ObjectInfo{Name: name, LastModified: modified})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (f *fakeBlobStore) Remove(_ context.Context, _, object string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.removeErr != nil {
		return f.removeErr
	}
	delete(f.objects, object)
	return nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestSweepRemovesOnlyStaleTempObjects(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	store := &fakeBlobStore{objects: map[string]time.Time{
		"temp/old-1.pdf":    now.Add(-48 * time.Hour),
		"temp/old-2.png":    now.Add(-25 * time.Hour),
		"temp/fresh.pdf":    now.Add(-time.Hour),
		"invoices/kept.pdf": now.Add(-72 * time.Hour),
	}}

	sweeper := NewSweeper(store, "thea-invoices", 24*time.Hour, discardLogger(), nil)
	sweeper.now = func() time.Time { return now }

	swept, err := sweeper.Sweep(context.Background())
	require.NoError(t, err)
	require.Equal(t, 2, swept)

	_, fresh := store.objects["temp/fresh.pdf"]
	require.True(t, fresh)
	_, outside := store.objects["invoices/kept.pdf"]
	require.True(t, outside)
	_, old := store.objects["temp/old-1.pdf"]
	require.False(t, old)
}

func TestSweepSurfacesRemovalFailure(t *testing.T) {
	now := time.Now()
	store := &fakeBlobStore{
		objects:   map[string]time.Time{"temp/old.pdf": now.Add(-48 * time.Hour)},
		removeErr: errors.New("access denied"),
	}

	sweeper := NewSweeper(store, "thea-invoices", 24*time.Hour, discardLogger(), nil)
	_, err := sweeper.Sweep(context.Background())
	require.Error(t, err)
}

type fakeUnverifiedSource struct {
	pending []invoices.Invoice
}

func (f *fakeUnverifiedSource) ListUnverified(_ context.Context, limit int) ([]invoices.Invoice, error) {
	if len(f.pending) > limit {
		return f.pending[:limit], nil
	}
	return f.pending, nil
}

func TestReconcileSeedsMissingEntries(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	cache := invoices.NewStatusStore(client)

	// inv-1 already has a live entry, inv-2 lost its projection.
	require.NoError(t, cache.Set(context.Background(), invoices.VerificationEntry{
		Status:    invoices.StatusProcessing,
		InvoiceID: "inv-1",
		Timestamp: time.Now(),
	}))

	source := &fakeUnverifiedSource{pending: []invoices.Invoice{
		{ID: "inv-1", VerificationStatus: invoices.VerificationManualNeeded},
		{ID: "inv-2", VerificationStatus: invoices.VerificationManualNeeded},
	}}

	reconciler := NewReconciler(source, cache, discardLogger(), nil)
	seeded, err := reconciler.Reconcile(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, seeded)

	entry, err := cache.Get(context.Background(), "inv-2")
	require.NoError(t, err)
	require.NotNil(t, entry)
	require.Equal(t, string(invoices.VerificationManualNeeded), entry.Status)

	// The pre-existing entry keeps its original status.
	entry, err = cache.Get(context.Background(), "inv-1")
	require.NoError(t, err)
	require.Equal(t, invoices.StatusProcessing, entry.Status)
}
