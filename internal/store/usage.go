package store

import (
	"context"
	"time"

	"github.com/rankline/seo-cli/internal/model"
	"github.com/rankline/seo-cli/internal/quota"
)

// UsageBackend adapts the store's usage_events table into a quota backend,
// for deployments that bill locally instead of calling an external billing
// service. Identities with no recorded usage are reported unknown so the
// gate applies its starter allowance.
type UsageBackend struct {
	store     Store
	allowance int
	window    time.Duration
}

// NewUsageBackend creates a store-backed quota backend granting allowance
// units per operation class within the rolling window.
func NewUsageBackend(st Store, allowance int, window time.Duration) *UsageBackend {
	return &UsageBackend{store: st, allowance: allowance, window: window}
}

// Check reports remaining allowance for identity and op.
func (b *UsageBackend) Check(ctx context.Context, identity string, op quota.OpClass) (quota.Decision, error) {
	since := time.Now().UTC().Add(-b.window)

	seen, err := b.knownIdentity(ctx, identity, since)
	if err != nil {
		return quota.Decision{}, err
	}
	if !seen {
		return quota.Decision{}, quota.ErrUnknownIdentity
	}

	used, err := b.store.CountUsage(ctx, identity, string(op), since)
	if err != nil {
		return quota.Decision{}, err
	}

	remaining := b.allowance - used
	if remaining <= 0 {
		return quota.Decision{
			Allowed:   false,
			Remaining: 0,
			Reason:    "usage allowance exhausted",
		}, nil
	}
	return quota.Decision{Allowed: true, Remaining: remaining}, nil
}

// Record persists one usage event for identity and op.
func (b *UsageBackend) Record(ctx context.Context, identity string, op quota.OpClass) error {
	return b.store.RecordUsage(ctx, model.UsageEvent{
		Identity:  identity,
		OpClass:   string(op),
		CreatedAt: time.Now().UTC(),
	})
}

// knownIdentity reports whether the identity has any usage on record,
// across all operation classes.
func (b *UsageBackend) knownIdentity(ctx context.Context, identity string, since time.Time) (bool, error) {
	for _, op := range []quota.OpClass{quota.OpScrape, quota.OpAnalyze, quota.OpSearch, quota.OpGenerate} {
		n, err := b.store.CountUsage(ctx, identity, string(op), since)
		if err != nil {
			return false, err
		}
		if n > 0 {
			return true, nil
		}
	}
	return false, nil
}
