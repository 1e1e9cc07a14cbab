package service

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
)

// AuditPurger deletes audit entries past the retention window.
type AuditPurger interface {
	PurgeOldEntries(ctx context.Context, retentionDays int) (int64, error)
}

// RetentionWorker periodically prunes the audit trail. A retention of zero
// days disables the worker.
type RetentionWorker struct {
	Purger        AuditPurger
	Log           *logrus.Logger
	RetentionDays int
	// Interval between sweeps; defaults to 24h.
	Interval time.Duration
}

// Run sweeps until the context is cancelled. One sweep runs immediately on
// startup so a long-stopped server catches up without waiting a full
// interval.
func (w *RetentionWorker) Run(ctx context.Context) error {
	if w.RetentionDays <= 0 {
		w.Log.Info("audit retention disabled")
		<-ctx.Done()

		return nil
	}

	interval := w.Interval
	if interval <= 0 {
		interval = 24 * time.Hour
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	w.sweep(ctx)

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			w.sweep(ctx)
		}
	}
}

func (w *RetentionWorker) sweep(ctx context.Context) {
	purged, err := w.Purger.PurgeOldEntries(ctx, w.RetentionDays)
	if err != nil {
		w.Log.WithError(err).Error("audit retention sweep failed")

		return
	}

	if purged > 0 {
		w.Log.WithFields(logrus.Fields{
			"purged":         purged,
			"retention_days": w.RetentionDays,
		}).Info("audit retention sweep")
	}
}
