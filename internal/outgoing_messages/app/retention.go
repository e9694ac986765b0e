package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/adhocore/gronx"

	"github.com/edigateway/golang_services/internal/outgoing_messages/domain"
)

// RetentionConfig controls the retention sweep.
type RetentionConfig struct {
	Cron      string
	Period    time.Duration
	BatchSize int
}

// RetentionSweeper removes dequeued bundles older than the retention period, together with
// their messages, market documents and stored payloads. Archived messages are kept.
type RetentionSweeper struct {
	store   domain.Store
	files   domain.FileStorage
	cfg     RetentionConfig
	clock   domain.Clock
	logger  *slog.Logger
	mu      sync.Mutex
	running bool
}

func NewRetentionSweeper(store domain.Store, files domain.FileStorage, cfg RetentionConfig, clock domain.Clock, logger *slog.Logger) (*RetentionSweeper, error) {
	if !gronx.IsValid(cfg.Cron) {
		return nil, fmt.Errorf("invalid retention cron expression %q", cfg.Cron)
	}
	if cfg.Period <= 0 {
		return nil, errors.New("retention period must be positive")
	}
	if cfg.BatchSize < 1 {
		cfg.BatchSize = 500
	}
	return &RetentionSweeper{
		store:  store,
		files:  files,
		cfg:    cfg,
		clock:  clock,
		logger: logger.With("component", "retention_sweeper"),
	}, nil
}

// Run sweeps on every tick of the cron expression until ctx is cancelled.
func (r *RetentionSweeper) Run(ctx context.Context) error {
	r.logger.InfoContext(ctx, "Retention sweeper started", "cron", r.cfg.Cron, "period", r.cfg.Period.String())
	for {
		next, err := gronx.NextTickAfter(r.cfg.Cron, r.clock.Now(), false)
		if err != nil {
			r.logger.ErrorContext(ctx, "Failed to compute next retention run", "cron", r.cfg.Cron, "error", err)
			select {
			case <-time.After(30 * time.Second):
			case <-ctx.Done():
				return nil
			}
			continue
		}

		wait := next.Sub(r.clock.Now())
		if wait < time.Second {
			wait = time.Second
		}
		select {
		case <-time.After(wait):
			r.runJob(ctx)
		case <-ctx.Done():
			r.logger.Info("Retention sweeper stopped")
			return nil
		}
	}
}

func (r *RetentionSweeper) runJob(ctx context.Context) {
	r.mu.Lock()
	if r.running {
		r.mu.Unlock()
		return
	}
	r.running = true
	r.mu.Unlock()
	defer func() {
		r.mu.Lock()
		r.running = false
		r.mu.Unlock()
	}()

	deleted, err := r.Sweep(ctx)
	if err != nil {
		r.logger.ErrorContext(ctx, "Retention sweep failed", "deleted", deleted, "error", err)
		return
	}
	r.logger.InfoContext(ctx, "Retention sweep finished", "deleted", deleted)
}

// Sweep deletes expired bundles in batches and returns how many were removed.
func (r *RetentionSweeper) Sweep(ctx context.Context) (int, error) {
	cutoff := r.clock.Now().Add(-r.cfg.Period)
	deleted := 0
	for {
		if err := ctx.Err(); err != nil {
			return deleted, err
		}
		expired, err := r.store.Bundles().ListDequeuedBefore(ctx, cutoff, r.cfg.BatchSize)
		if err != nil {
			return deleted, err
		}
		for _, b := range expired {
			if err := r.deleteBundle(ctx, b.ID()); err != nil {
				return deleted, err
			}
			deleted++
			retentionDeletedCounter.Inc()
		}
		if len(expired) < r.cfg.BatchSize {
			return deleted, nil
		}
	}
}

func (r *RetentionSweeper) deleteBundle(ctx context.Context, id domain.BundleID) error {
	var refs []domain.FileStorageReference
	err := r.store.WithinTransaction(ctx, func(ctx context.Context, tx domain.Repositories) error {
		msgs, err := tx.OutgoingMessages().ListByBundleID(ctx, id)
		if err != nil {
			return err
		}
		for _, msg := range msgs {
			refs = append(refs, msg.FileStorageReference())
		}
		doc, err := tx.MarketDocuments().GetByBundleID(ctx, id)
		switch {
		case err == nil:
			refs = append(refs, doc.FileStorageReference)
		case !errors.Is(err, domain.ErrMarketDocumentNotFound):
			return err
		}

		if err := tx.OutgoingMessages().DeleteByBundleID(ctx, id); err != nil {
			return err
		}
		if err := tx.MarketDocuments().DeleteByBundleID(ctx, id); err != nil {
			return err
		}
		return tx.Bundles().Delete(ctx, id)
	})
	if err != nil {
		return fmt.Errorf("delete bundle %s: %w", id, err)
	}

	// Rows are gone, so a leftover blob is unreachable; log and move on.
	for _, ref := range refs {
		if err := r.files.Delete(ctx, ref); err != nil {
			r.logger.WarnContext(ctx, "Failed to delete payload of expired bundle", "bundle_id", id, "reference", ref, "error", err)
		}
	}
	return nil
}
