package orchestrator

import (
	"context"
	"log/slog"
	"time"

	"gridstudy/internal/store"
)

// Reconciler periodically resets computation gates that have been RUNNING for
// longer than the TTL. A gate left RUNNING by a crashed process would
// otherwise block the study forever.
type Reconciler struct {
	store    store.StudyStore
	ttl      time.Duration
	interval time.Duration
	log      *slog.Logger
}

// NewReconciler creates a reconciler with the orchestrator's TTL settings.
func NewReconciler(s store.StudyStore, cfg Config, logger *slog.Logger) *Reconciler {
	cfg = cfg.withDefaults()
	return &Reconciler{
		store:    s,
		ttl:      cfg.RunningTTL,
		interval: cfg.ReconcileInterval,
		log:      logger,
	}
}

// Run executes one reclamation pass immediately, then on every tick until the
// context is cancelled.
func (r *Reconciler) Run(ctx context.Context) {
	r.reclaim(ctx)

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.reclaim(ctx)
		}
	}
}

func (r *Reconciler) reclaim(ctx context.Context) {
	n, err := r.store.ReclaimStale(ctx, r.ttl)
	if err != nil {
		r.log.Error("stale computation reclamation failed", "error", err)
		return
	}
	if n > 0 {
		r.log.Warn("reclaimed stale computation gates", "count", n, "ttl", r.ttl)
	}
}
