package app

import (
	"context"
	"time"

	"homehub/database/actions"
	"homehub/logger"
)

// ActionPruner periodically trims the action log to the retention window
type ActionPruner struct {
	repo      *actions.Repository
	retention time.Duration
	interval  time.Duration
	now       func() time.Time
	log       *logger.Logger
}

// NewActionPruner creates a new pruner. A zero retention disables it.
func NewActionPruner(repo *actions.Repository, retentionDays int, log *logger.Logger) *ActionPruner {
	return &ActionPruner{
		repo:      repo,
		retention: time.Duration(retentionDays) * 24 * time.Hour,
		interval:  6 * time.Hour,
		now:       time.Now,
		log:       logger.OrNop(log).With("component", "retention"),
	}
}

// Run prunes once immediately, then on every tick until ctx ends
func (p *ActionPruner) Run(ctx context.Context) error {
	if p.retention <= 0 {
		p.log.Info("🧹 Action retention disabled")
		return nil
	}
	p.log.Info("🧹 Action pruner started", "retention", p.retention.String())

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	p.Prune(ctx)
	for {
		select {
		case <-ticker.C:
			p.Prune(ctx)
		case <-ctx.Done():
			p.log.Info("🧹 Action pruner stopped")
			return nil
		}
	}
}

// Prune deletes actions older than the retention window
func (p *ActionPruner) Prune(ctx context.Context) int64 {
	cutoff := p.now().Add(-p.retention)
	n, err := p.repo.DeleteBefore(ctx, cutoff)
	if err != nil {
		p.log.Warn("⚠️  Failed to prune action log", "error", err)
		return 0
	}
	if n > 0 {
		p.log.Info("✅ Pruned old actions", "count", n, "cutoff", cutoff.UTC().Format(time.RFC3339))
	}
	return n
}
