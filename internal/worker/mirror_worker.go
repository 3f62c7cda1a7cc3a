package worker

import (
	"context"
	"log/slog"
	"time"

	"ledgerly/internal/amqp"
	applog "ledgerly/internal/log"
	"ledgerly/internal/storage"
)

// Mirror is what the worker needs from services.MirrorService.
type Mirror interface {
	RunOnce(ctx context.Context) (storage.MirrorRun, error)
	Trigger()
	LastSuccess() time.Time
}

// MirrorWorker turns ledger change events into mirror runs.
type MirrorWorker struct {
	mirror Mirror
}

func NewMirrorWorker(mirror Mirror) *MirrorWorker {
	return &MirrorWorker{mirror: mirror}
}

// HandleLedgerChanged schedules a mirror run for msg. Events older than the
// last successful run are already covered by it and are skipped. The handler
// never fails: a run that cannot complete is retried by the periodic loop.
func (w *MirrorWorker) HandleLedgerChanged(ctx context.Context, msg *amqp.LedgerChangedMessage) error {
	if last := w.mirror.LastSuccess(); !last.IsZero() && msg.Timestamp.Before(last) {
		slog.DebugContext(ctx, "Ledger change already mirrored",
			applog.FieldComponent, applog.ComponentMirror,
			"op", msg.Op,
			applog.FieldKind, msg.Kind,
			applog.FieldTransactionID, msg.ID)
		return nil
	}

	slog.InfoContext(ctx, "Processing ledger change",
		applog.FieldComponent, applog.ComponentMirror,
		"op", msg.Op,
		applog.FieldKind, msg.Kind,
		applog.FieldTransactionID, msg.ID,
		"timestamp", msg.Timestamp)
	w.mirror.Trigger()
	return nil
}

// StartupSync mirrors once before consuming events, so a worker that was
// down catches up without waiting for the next change.
func (w *MirrorWorker) StartupSync(ctx context.Context) error {
	run, err := w.mirror.RunOnce(ctx)
	if err != nil {
		return err
	}
	slog.InfoContext(ctx, "Startup mirror completed",
		applog.FieldComponent, applog.ComponentMirror,
		"expenses", run.Expenses,
		"revenues", run.Revenues,
		"accounts", run.Accounts)
	return nil
}
