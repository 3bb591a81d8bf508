// Package jobs contains the background work keeping the dashboard fed:
// periodic snapshot refreshes pulled from the ERP.
package jobs

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	"github.com/lab-group/labdash/internal/observability"
	"github.com/lab-group/labdash/internal/snapshot"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskTypeSnapshotRefresh rebuilds and publishes the snapshot.
	TaskTypeSnapshotRefresh = "snapshot:refresh"
)

// SnapshotRefreshPayload annotates a refresh with its trigger.
type SnapshotRefreshPayload struct {
	Reason string `json:"reason"`
}

// NewSnapshotRefreshTask constructs an Asynq task.
func NewSnapshotRefreshTask(payload SnapshotRefreshPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskTypeSnapshotRefresh, data), nil
}

// SnapshotRefresher loads a fresh snapshot and publishes it. Failures leave
// the previously published snapshot in place.
type SnapshotRefresher struct {
	loader  snapshot.Loader
	store   *snapshot.Store
	metrics *observability.Metrics
	logger  *slog.Logger
}

func NewSnapshotRefresher(loader snapshot.Loader, store *snapshot.Store, metrics *observability.Metrics, logger *slog.Logger) *SnapshotRefresher {
	return &SnapshotRefresher{loader: loader, store: store, metrics: metrics, logger: logger}
}

// Handle processes TaskTypeSnapshotRefresh tasks.
func (r *SnapshotRefresher) Handle(ctx context.Context, t *asynq.Task) error {
	var payload SnapshotRefreshPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}

	started := time.Now()
	snap, err := r.loader.Load(ctx)
	if err == nil {
		err = r.store.Publish(ctx, snap)
	}
	r.metrics.CountRefresh(err)
	if err != nil {
		r.logger.Error("snapshot refresh failed",
			slog.String("reason", payload.Reason),
			slog.Any("error", err))
		return err
	}

	r.metrics.ObserveSnapshot(snap.GeneratedAt)
	r.logger.Info("snapshot refreshed",
		slog.String("reason", payload.Reason),
		slog.Int("entities", len(snap.Entities)),
		slog.Duration("took", time.Since(started)))
	return nil
}
