package invoices

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	statusKeyPrefix = "verification:"
	statusTTL       = 24 * time.Hour
)

// StatusStore keeps a low-latency projection of verification state in redis.
// Every entry carries a fixed TTL; eviction is acceptable because the
// relational store stays authoritative.
type StatusStore struct {
	client *redis.Client
	ttl    time.Duration
}

func NewStatusStore(client *redis.Client) *StatusStore {
	return &StatusStore{client: client, ttl: statusTTL}
}

func statusKey(invoiceID string) string {
	return statusKeyPrefix + invoiceID
}

// Set writes the entry, resetting the TTL.
func (s *StatusStore) Set(ctx context.Context, entry VerificationEntry) error {
	if s == nil || s.client == nil {
		return nil
	}
	payload, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("marshal verification entry: %w", err)
	}
	if err := s.client.Set(ctx, statusKey(entry.InvoiceID), payload, s.ttl).Err(); err != nil {
		return fmt.Errorf("store verification entry: %w", err)
	}
	return nil
}

// Get returns the cached entry, or nil when absent or expired.
func (s *StatusStore) Get(ctx context.Context, invoiceID string) (*VerificationEntry, error) {
	if s == nil || s.client == nil {
		return nil, nil
	}
	raw, err := s.client.Get(ctx, statusKey(invoiceID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load verification entry: %w", err)
	}
	var entry VerificationEntry
	if err := json.Unmarshal(raw, &entry); err != nil {
		return nil, fmt.Errorf("decode verification entry: %w", err)
	}
	return &entry, nil
}

// Exists reports whether an entry is currently cached.
func (s *StatusStore) Exists(ctx context.Context, invoiceID string) (bool, error) {
	if s == nil || s.client == nil {
		return false, nil
	}
	n, err := s.client.Exists(ctx, statusKey(invoiceID)).Result()
	if err != nil {
		return false, fmt.Errorf("probe verification entry: %w", err)
	}
	return n > 0, nil
}

// Delete drops the cached entry. Missing keys are not an error.
func (s *StatusStore) Delete(ctx context.Context, invoiceID string) error {
	if s == nil || s.client == nil {
		return nil
	}
	if err := s.client.Del(ctx, statusKey(invoiceID)).Err(); err != nil {
		return fmt.Errorf("delete verification entry: %w", err)
	}
	return nil
}
