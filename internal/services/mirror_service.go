package services

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"ledgerly/internal/ledger"
	applog "ledgerly/internal/log"
	"ledgerly/internal/metrics"
	"ledgerly/internal/overview"
	"ledgerly/internal/sheets"
	"ledgerly/internal/storage"
)

// MirrorStore is the local copy the mirror writes into.
// *storage.SQLiteRepository satisfies it.
type MirrorStore interface {
	ReplaceSnapshot(ctx context.Context, snap *ledger.Snapshot) error
	RecordMirrorRun(ctx context.Context, run storage.MirrorRun) (int64, error)
}

// MirrorConfig holds configuration for the mirror service
type MirrorConfig struct {
	// Interval is how often a full mirror runs without any trigger (default: 5m)
	Interval time.Duration

	// Timeout bounds a single run (default: 1m)
	Timeout time.Duration
}

// DefaultMirrorConfig returns sensible defaults
func DefaultMirrorConfig() MirrorConfig {
	return MirrorConfig{
		Interval: 5 * time.Minute,
		Timeout:  time.Minute,
	}
}

// MirrorService copies the backend into a local store and, when an exporter
// is configured, pushes the month summaries to it. Runs happen on a ticker
// and on demand through Trigger; triggers arriving during a run coalesce
// into one follow-up run.
type MirrorService struct {
	source   ledger.Source
	store    MirrorStore
	exporter sheets.OverviewExporter
	metrics  metrics.Recorder
	config   MirrorConfig

	trigger chan struct{}

	// Lifecycle management
	mu          sync.Mutex
	running     bool
	stopCh      chan struct{}
	doneCh      chan struct{}
	lastSuccess time.Time
}

// NewMirrorService creates a mirror. exporter and rec may be nil.
func NewMirrorService(source ledger.Source, store MirrorStore, exporter sheets.OverviewExporter, rec metrics.Recorder, config MirrorConfig) *MirrorService {
	if rec == nil {
		rec = metrics.Noop{}
	}
	if config.Interval <= 0 {
		config.Interval = DefaultMirrorConfig().Interval
	}
	if config.Timeout <= 0 {
		config.Timeout = DefaultMirrorConfig().Timeout
	}
	return &MirrorService{
		source:   source,
		store:    store,
		exporter: exporter,
		metrics:  rec,
		config:   config,
		trigger:  make(chan struct{}, 1),
	}
}

// RunOnce performs one full mirror and records it in the store.
func (m *MirrorService) RunOnce(ctx context.Context) (storage.MirrorRun, error) {
	ctx, cancel := context.WithTimeout(ctx, m.config.Timeout)
	defer cancel()

	run := storage.MirrorRun{StartedAt: time.Now().UTC()}
	err := m.mirror(ctx, &run)
	run.FinishedAt = time.Now().UTC()
	if err != nil {
		run.Error = err.Error()
	}
	m.metrics.MirrorRun(run.FinishedAt.Sub(run.StartedAt), err)

	if _, recErr := m.store.RecordMirrorRun(context.WithoutCancel(ctx), run); recErr != nil {
		slog.WarnContext(ctx, "Failed to record mirror run",
			applog.FieldComponent, applog.ComponentMirror,
			applog.FieldError, recErr)
	}

	if err != nil {
		slog.ErrorContext(ctx, "Mirror run failed",
			applog.FieldComponent, applog.ComponentMirror,
			applog.FieldError, err)
		return run, err
	}

	m.mu.Lock()
	m.lastSuccess = run.StartedAt
	m.mu.Unlock()

	slog.InfoContext(ctx, "Mirror run completed",
		applog.FieldComponent, applog.ComponentMirror,
		"expenses", run.Expenses,
		"revenues", run.Revenues,
		"accounts", run.Accounts,
		"duration", run.FinishedAt.Sub(run.StartedAt))
	return run, nil
}

func (m *MirrorService) mirror(ctx context.Context, run *storage.MirrorRun) error {
	snap, err := ledger.LoadSnapshot(ctx, m.source)
	if err != nil {
		return err
	}
	run.Expenses = len(snap.Expenses)
	run.Revenues = len(snap.Revenues)
	run.Accounts = len(snap.Accounts)

	if err := m.store.ReplaceSnapshot(ctx, snap); err != nil {
		return fmt.Errorf("replace local snapshot: %w", err)
	}

	if m.exporter == nil {
		return nil
	}
	summaries := overview.SummarizeAll(overview.Build(snap.Expenses, snap.Revenues))
	if err := m.exporter.ExportOverview(ctx, summaries); err != nil {
		return fmt.Errorf("export overview: %w", err)
	}
	return nil
}

// LastSuccess returns the start time of the last successful run, or the zero
// time if none has succeeded yet.
func (m *MirrorService) LastSuccess() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastSuccess
}

// Trigger asks the running loop for a run as soon as possible. It never
// blocks.
func (m *MirrorService) Trigger() {
	select {
	case m.trigger <- struct{}{}:
	default:
	}
}

// Start begins the mirror loop. Returns an error if already running.
func (m *MirrorService) Start(ctx context.Context) error {
	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		return fmt.Errorf("mirror service is already running")
	}
	m.running = true
	m.stopCh = make(chan struct{})
	m.doneCh = make(chan struct{})
	stopCh, doneCh := m.stopCh, m.doneCh
	m.mu.Unlock()

	go m.runLoop(ctx, stopCh, doneCh)

	slog.InfoContext(ctx, "Mirror service started",
		applog.FieldComponent, applog.ComponentMirror,
		"interval", m.config.Interval)
	return nil
}

// Stop signals the loop and waits for the current run to finish. The
// service counts as stopped once signalled, even if ctx expires before the
// run ends, so Stop may be called again safely.
func (m *MirrorService) Stop(ctx context.Context) error {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return nil
	}
	m.running = false
	stopCh, doneCh := m.stopCh, m.doneCh
	m.stopCh, m.doneCh = nil, nil
	close(stopCh)
	m.mu.Unlock()

	select {
	case <-doneCh:
		slog.InfoContext(ctx, "Mirror service stopped gracefully")
		return nil
	case <-ctx.Done():
		slog.WarnContext(ctx, "Mirror service stop timed out")
		return ctx.Err()
	}
}

func (m *MirrorService) IsRunning() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.running
}

func (m *MirrorService) runLoop(ctx context.Context, stopCh <-chan struct{}, doneCh chan<- struct{}) {
	defer close(doneCh)

	ticker := time.NewTicker(m.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-stopCh:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			_, _ = m.RunOnce(ctx)
		case <-m.trigger:
			_, _ = m.RunOnce(ctx)
		}
	}
}
