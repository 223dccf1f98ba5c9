package cmd

import (
	"context"
	"time"

	log "github.com/sirupsen/logrus"
)

// reconciler is the part of the slot service the sweep needs
type reconciler interface {
	ReconcileStaleReservations(ctx context.Context) (int, error)
}

// runReconciler sweeps stale slot reservations every interval until ctx is done.
// Sweep failures are logged and retried on the next tick.
func runReconciler(ctx context.Context, r reconciler, interval time.Duration) error {
	log.WithField("interval", interval).Info("Starting slot reservation reconciler")

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info("Slot reservation reconciler stopped")
			return nil
		case <-ticker.C:
			if _, err := r.ReconcileStaleReservations(ctx); err != nil && ctx.Err() == nil {
				log.WithError(err).Error("Slot reservation sweep failed")
			}
		}
	}
}
