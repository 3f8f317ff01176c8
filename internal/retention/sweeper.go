// Package retention reclaims storage from superseded review versions and
// retires public links on finalized work.
package retention

import (
	"context"
	"log"
	"time"

	"proofdeck/api/internal/metrics"
	"proofdeck/api/internal/store"
)

type dataStore interface {
	DeactivateExpiredApprovedTokens(ctx context.Context, cutoff time.Time) (int64, error)
	ListReclaimable(ctx context.Context, now time.Time) ([]store.ReviewVersion, error)
	MarkFileDeleted(ctx context.Context, versionID string) (bool, error)
}

type blobStore interface {
	Remove(ctx context.Context, key string) error
}

// Summary reports what one sweep changed.
type Summary struct {
	TokensDeactivated int64
	VersionsReclaimed int
	BytesReclaimed    int64
	ItemErrors        int
}

type Sweeper struct {
	store       dataStore
	blob        blobStore
	tokenWindow time.Duration
	interval    time.Duration
	startDelay  time.Duration
	now         func() time.Time
}

func New(dataStore dataStore, blob blobStore, tokenWindow, interval, startDelay time.Duration) *Sweeper {
	return &Sweeper{
		store:       dataStore,
		blob:        blob,
		tokenWindow: tokenWindow,
		interval:    interval,
		startDelay:  startDelay,
		now:         time.Now,
	}
}

// Run sweeps once shortly after start, then on every interval tick until the
// context is cancelled. Sweep errors are logged; the loop never dies.
func (s *Sweeper) Run(ctx context.Context) {
	select {
	case <-ctx.Done():
		return
	case <-time.After(s.startDelay):
	}
	s.sweepAndLog(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.sweepAndLog(ctx)
		}
	}
}

func (s *Sweeper) sweepAndLog(ctx context.Context) {
	summary, err := s.SweepOnce(ctx)
	if err != nil {
		log.Printf("retention: sweep failed: %v", err)
		return
	}
	log.Printf("retention: sweep done tokens_deactivated=%d versions_reclaimed=%d bytes_reclaimed=%d item_errors=%d",
		summary.TokensDeactivated, summary.VersionsReclaimed, summary.BytesReclaimed, summary.ItemErrors)
}

// SweepOnce runs both passes. It is idempotent: a version already reclaimed
// or not yet past its retention clock is skipped, so overlapping runs and
// immediate re-runs perform no further mutation.
func (s *Sweeper) SweepOnce(ctx context.Context) (Summary, error) {
	var summary Summary
	now := s.now()

	deactivated, err := s.store.DeactivateExpiredApprovedTokens(ctx, now.Add(-s.tokenWindow))
	if err != nil {
		return summary, err
	}
	summary.TokensDeactivated = deactivated
	metrics.TokensDeactivatedTotal.Add(float64(deactivated))

	candidates, err := s.store.ListReclaimable(ctx, now)
	if err != nil {
		return summary, err
	}

	for _, version := range candidates {
		if version.ObjectKey != nil {
			if err := s.blob.Remove(ctx, *version.ObjectKey); err != nil {
				// Leave the row untouched; the next run retries it.
				log.Printf("retention: remove file for version %s: %v", version.ID, err)
				summary.ItemErrors++
				continue
			}
		}

		reclaimed, err := s.store.MarkFileDeleted(ctx, version.ID)
		if err != nil {
			log.Printf("retention: mark version %s reclaimed: %v", version.ID, err)
			summary.ItemErrors++
			continue
		}
		if !reclaimed {
			// A concurrent sweep or a pin beat us to it.
			continue
		}

		summary.VersionsReclaimed++
		summary.BytesReclaimed += version.CompressedSizeBytes
		metrics.ReclaimedVersionsTotal.Inc()
		metrics.ReclaimedBytesTotal.Add(float64(version.CompressedSizeBytes))
	}

	metrics.SweeperRunsTotal.Inc()
	return summary, nil
}
