package services

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/cricketduel/backend/internal/models"
	"github.com/cricketduel/backend/internal/store"
)

// Sweeper periodically syncs match statuses from the feed and settles
// sessions whose match has completed.
type Sweeper struct {
	settlement *SettlementService
	sync       *MatchSyncService
	store      store.Store
	interval   time.Duration
	log        *zap.Logger
}

func NewSweeper(settlement *SettlementService, sync *MatchSyncService, st store.Store, interval time.Duration, log *zap.Logger) *Sweeper {
	return &Sweeper{
		settlement: settlement,
		sync:       sync,
		store:      st,
		interval:   interval,
		log:        log.Named("sweeper"),
	}
}

// Start runs one sweep immediately and then one per interval until ctx is done.
func (w *Sweeper) Start(ctx context.Context) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	if _, err := w.Sweep(ctx); err != nil {
		w.log.Error("initial sweep failed", zap.Error(err))
	}

	for {
		select {
		case <-ticker.C:
			if _, err := w.Sweep(ctx); err != nil {
				w.log.Error("sweep failed", zap.Error(err))
			}
		case <-ctx.Done():
			return nil
		}
	}
}

// Sweep refreshes match statuses, then settles every ready session on
// completed matches and reports how many were settled.
func (w *Sweeper) Sweep(ctx context.Context) (settled int, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic in sweep: %v", r)
		}
	}()

	if w.sync != nil && w.sync.Enabled() {
		if _, err := w.sync.Sync(ctx); err != nil {
			w.log.Warn("match sync failed, settling known results", zap.Error(err))
		}
	}

	var matches []models.Match
	err = w.store.WithTx(ctx, func(tx store.Tx) error {
		var err error
		matches, err = tx.ListMatches(models.MatchCompleted)
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("list completed matches: %w", err)
	}

	for _, m := range matches {
		n, err := w.settlement.SettleMatch(ctx, m.ID)
		settled += n
		if err != nil {
			w.log.Warn("match partially settled", zap.Int64("match_id", m.ID), zap.Error(err))
		}
	}
	if settled > 0 {
		w.log.Info("sweep settled sessions", zap.Int("count", settled))
	}
	return settled, nil
}
