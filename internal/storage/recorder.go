package storage

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/example/ev-rescue/internal/models"
	"github.com/example/ev-rescue/internal/workflow"
)

// Recorder is a workflow listener that persists a record whenever a session
// reaches the thank-you stage. Only driver sessions bump the dashboard
// counters. Stats is optional; leave it nil when another process (the event
// consumer) owns the counters.
type Recorder struct {
	Store   RescueStore
	Stats   Stats
	Logger  *zap.Logger
	Timeout time.Duration
}

func (r *Recorder) OnUpdate(ctx context.Context, u workflow.Update) {
	tr := u.Transition
	if tr == nil || tr.To != workflow.StageThankYou {
		return
	}
	timeout := r.Timeout
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	rec := RecordFromSnapshot(u.Snapshot, tr.At)
	if r.Store != nil {
		if err := r.Store.SaveRescue(ctx, &rec); err != nil {
			r.logger().Warn("save rescue failed", zap.String("session_id", rec.SessionID), zap.Error(err))
		}
	}
	if r.Stats != nil && u.Snapshot.Role == workflow.RoleDriver {
		if err := r.Stats.RecordCompletion(ctx); err != nil {
			r.logger().Warn("record completion failed", zap.Error(err))
		}
	}
}

func (r *Recorder) logger() *zap.Logger {
	if r.Logger == nil {
		return zap.NewNop()
	}
	return r.Logger
}

// RecordFromSnapshot summarises a finished session.
func RecordFromSnapshot(s workflow.Snapshot, at time.Time) models.RescueRecord {
	rec := models.RescueRecord{
		SessionID:   s.SessionID,
		Role:        string(s.Role),
		CompletedAt: at,
	}
	switch {
	case s.Request != nil:
		rec.CustomerName = s.Request.Name
		rec.Vehicle = s.Request.VehicleModel
		rec.StartBattery = s.Request.BatteryLevel
	case s.Job != nil:
		rec.CustomerName = s.Job.Name
		rec.Vehicle = s.Job.Vehicle
		rec.StartBattery = s.Job.BatteryLevel
	}
	if s.Driver != nil {
		rec.DriverName = s.Driver.Name
	}
	rec.EndBattery = rec.StartBattery
	if s.Charging != nil {
		rec.EndBattery = int(s.Charging.Current)
	}
	if s.Payment != nil {
		rec.Amount = s.Payment.Amount
	}
	if s.Rating != nil {
		rec.Stars = s.Rating.Stars
		rec.Feedback = s.Rating.Feedback
	}
	return rec
}
