package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"ledgerly/internal/amqp"
	"ledgerly/internal/cache"
	"ledgerly/internal/core"
	"ledgerly/internal/ledger"
	applog "ledgerly/internal/log"
	"ledgerly/internal/metrics"
	"ledgerly/internal/overview"
)

var (
	// ErrReadOnly is returned by mutations when the backend cannot write.
	ErrReadOnly        = errors.New("ledger backend is read-only")
	ErrAccountNotFound = errors.New("account not found")
	// ErrAccountInUse blocks deleting an account that transactions still
	// point at.
	ErrAccountInUse = errors.New("account still has transactions")
)

// EventPublisher announces ledger changes. *amqp.Client satisfies it.
type EventPublisher interface {
	PublishLedgerChanged(ctx context.Context, msg *amqp.LedgerChangedMessage) error
}

// LedgerServiceConfig holds configuration for the ledger service
type LedgerServiceConfig struct {
	// SnapshotTTL is how long a loaded snapshot is served before refetching (default: 30s)
	SnapshotTTL time.Duration

	// BackendTimeout bounds every call to the backend (default: 10s)
	BackendTimeout time.Duration

	// LatestPerMonth is how many transactions each home card shows (default: 3)
	LatestPerMonth int
}

// DefaultLedgerServiceConfig returns sensible defaults
func DefaultLedgerServiceConfig() LedgerServiceConfig {
	return LedgerServiceConfig{
		SnapshotTTL:    30 * time.Second,
		BackendTimeout: 10 * time.Second,
		LatestPerMonth: 3,
	}
}

const snapshotKey = "current"

// LedgerService serves month views over a ledger source. It caches the last
// snapshot for SnapshotTTL and memoizes the overview built from it, keyed by
// snapshot version. Any failed load drops both caches.
type LedgerService struct {
	source   ledger.Source
	txWriter ledger.TransactionWriter
	acWriter ledger.AccountWriter
	events   EventPublisher
	metrics  metrics.Recorder
	config   LedgerServiceConfig

	snapshots *cache.LRUCache[*ledger.Snapshot]
	overviews *cache.LRUCache[overview.MonthOverview]
	loads     singleflight.Group
	// generation is bumped on every invalidation so an in-flight load that
	// started before a write never repopulates the cache.
	generation atomic.Int64
}

// NewLedgerService wires a service to source. Writes are enabled when source
// also implements the writer ports. events and rec may be nil.
func NewLedgerService(source ledger.Source, events EventPublisher, rec metrics.Recorder, config LedgerServiceConfig) *LedgerService {
	if rec == nil {
		rec = metrics.Noop{}
	}
	if config.SnapshotTTL <= 0 {
		config.SnapshotTTL = DefaultLedgerServiceConfig().SnapshotTTL
	}
	if config.LatestPerMonth <= 0 {
		config.LatestPerMonth = DefaultLedgerServiceConfig().LatestPerMonth
	}
	s := &LedgerService{
		source:    source,
		events:    events,
		metrics:   rec,
		config:    config,
		snapshots: cache.NewLRUCache[*ledger.Snapshot](1, config.SnapshotTTL),
		overviews: cache.NewLRUCache[overview.MonthOverview](4, config.SnapshotTTL),
	}
	if w, ok := source.(ledger.TransactionWriter); ok {
		s.txWriter = w
	}
	if w, ok := source.(ledger.AccountWriter); ok {
		s.acWriter = w
	}
	return s
}

// Caches exposes the service caches so a cache.Manager can sweep them.
func (s *LedgerService) Caches() []cache.Cleaner {
	return []cache.Cleaner{s.snapshots, s.overviews}
}

// CacheStats reports the snapshot and overview cache counters.
func (s *LedgerService) CacheStats() map[string]cache.Stats {
	return map[string]cache.Stats{
		"snapshots": s.snapshots.Stats(),
		"overviews": s.overviews.Stats(),
	}
}

// Writable reports whether mutations are supported.
func (s *LedgerService) Writable() bool {
	return s.txWriter != nil
}

func (s *LedgerService) backendContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.config.BackendTimeout > 0 {
		return context.WithTimeout(ctx, s.config.BackendTimeout)
	}
	return context.WithCancel(ctx)
}

// Snapshot returns the cached snapshot or loads a fresh one. Concurrent
// callers share a single load.
func (s *LedgerService) Snapshot(ctx context.Context) (*ledger.Snapshot, error) {
	if snap, ok := s.snapshots.Get(snapshotKey); ok {
		return snap, nil
	}

	gen := s.generation.Load()
	v, err, _ := s.loads.Do(strconv.FormatInt(gen, 10), func() (any, error) {
		if snap, ok := s.snapshots.Get(snapshotKey); ok {
			return snap, nil
		}
		// The load outlives any single caller that gives up on it.
		loadCtx, cancel := s.backendContext(context.WithoutCancel(ctx))
		defer cancel()

		start := time.Now()
		snap, err := ledger.LoadSnapshot(loadCtx, s.source)
		s.metrics.SnapshotLoaded(time.Since(start), err)
		if err != nil {
			s.Invalidate()
			slog.ErrorContext(ctx, "Failed to load ledger snapshot",
				applog.FieldComponent, applog.ComponentLedger,
				applog.FieldError, err)
			return nil, err
		}
		if s.generation.Load() == gen {
			s.snapshots.Set(snapshotKey, snap)
		}
		slog.DebugContext(ctx, "Ledger snapshot loaded",
			applog.FieldComponent, applog.ComponentLedger,
			"expenses", len(snap.Expenses),
			"revenues", len(snap.Revenues),
			"accounts", len(snap.Accounts),
			"duration", time.Since(start))
		return snap, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*ledger.Snapshot), nil
}

// Invalidate drops the cached snapshot and overviews.
func (s *LedgerService) Invalidate() {
	s.generation.Add(1)
	s.snapshots.Purge()
	s.overviews.Purge()
}

// Refresh drops the caches, loads a new snapshot and announces it.
func (s *LedgerService) Refresh(ctx context.Context) (*ledger.Snapshot, error) {
	s.Invalidate()
	snap, err := s.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	s.publish(ctx, amqp.OpRefreshed, "", "")
	return snap, nil
}

// Overview returns the month overview of the current snapshot.
func (s *LedgerService) Overview(ctx context.Context) (overview.MonthOverview, error) {
	snap, err := s.Snapshot(ctx)
	if err != nil {
		return overview.MonthOverview{}, err
	}
	return s.overviewOf(ctx, snap), nil
}

func (s *LedgerService) overviewOf(ctx context.Context, snap *ledger.Snapshot) overview.MonthOverview {
	key := strconv.FormatInt(snap.Version(), 10)
	if ov, ok := s.overviews.Get(key); ok {
		return ov
	}

	ov := overview.Build(snap.Expenses, snap.Revenues)
	s.metrics.OverviewBuilt(len(snap.Expenses), len(snap.Revenues), len(ov.Quarantined))
	for _, q := range ov.Quarantined {
		slog.WarnContext(ctx, "Transaction left out of overview",
			applog.FieldComponent, applog.ComponentOverview,
			applog.FieldTransactionID, q.Record.ID,
			applog.FieldKind, q.Kind,
			"created_at", q.Record.CreatedAt,
			"reason", q.Reason)
	}
	s.overviews.Set(key, ov)
	return ov
}

// Summaries returns one summary per month, newest first.
func (s *LedgerService) Summaries(ctx context.Context) ([]core.MonthSummary, error) {
	ov, err := s.Overview(ctx)
	if err != nil {
		return nil, err
	}
	return overview.SummarizeAll(ov), nil
}

// MonthCard is one entry of the home page.
type MonthCard struct {
	Summary core.MonthSummary  `json:"summary"`
	Latest  []core.Transaction `json:"latest"`
}

// Home returns a card per month, newest first.
func (s *LedgerService) Home(ctx context.Context) ([]MonthCard, error) {
	ov, err := s.Overview(ctx)
	if err != nil {
		return nil, err
	}
	cards := make([]MonthCard, len(ov.Months))
	for i, m := range ov.Months {
		cards[i] = MonthCard{Summary: overview.Summarize(m), Latest: m.Latest(s.config.LatestPerMonth)}
	}
	return cards, nil
}

// MonthView is one month narrowed by a filter. Categories and Summary
// always describe the whole month.
type MonthView struct {
	Month        core.MonthKey      `json:"month"`
	Label        string             `json:"label"`
	Transactions []core.Transaction `json:"transactions"`
	Categories   []string           `json:"categories"`
	Summary      core.MonthSummary  `json:"summary"`
	Filter       overview.Filter    `json:"-"`
}

// Month returns the filtered view of key, or overview.ErrMonthNotFound.
func (s *LedgerService) Month(ctx context.Context, key core.MonthKey, f overview.Filter) (MonthView, error) {
	ov, err := s.Overview(ctx)
	if err != nil {
		return MonthView{}, err
	}
	bucket, err := ov.Find(key)
	if err != nil {
		return MonthView{}, fmt.Errorf("%s: %w", key, err)
	}
	return MonthView{
		Month:        key,
		Label:        key.Label(),
		Transactions: overview.ApplyFilter(bucket.Transactions, f),
		Categories:   overview.Categories(bucket.Transactions),
		Summary:      overview.Summarize(bucket),
		Filter:       f,
	}, nil
}

// AccountView pairs an account with the activity derived from the log.
type AccountView struct {
	Account  core.Account         `json:"account"`
	Activity core.AccountActivity `json:"activity"`
}

// Accounts lists accounts in backend order.
func (s *LedgerService) Accounts(ctx context.Context) ([]AccountView, error) {
	snap, err := s.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	activity := map[string]core.AccountActivity{}
	for _, a := range overview.AccountActivityFor(s.overviewOf(ctx, snap)) {
		activity[a.AccountID] = a
	}
	out := make([]AccountView, len(snap.Accounts))
	for i, a := range snap.Accounts {
		act, ok := activity[a.ID]
		if !ok {
			act = core.AccountActivity{AccountID: a.ID}
		}
		out[i] = AccountView{Account: a, Activity: act}
	}
	return out, nil
}

// AccountMonths returns the account and its transactions grouped by month.
func (s *LedgerService) AccountMonths(ctx context.Context, id string) (core.Account, []overview.MonthBucket, error) {
	snap, err := s.Snapshot(ctx)
	if err != nil {
		return core.Account{}, nil, err
	}
	acc, ok := snap.Account(id)
	if !ok {
		return core.Account{}, nil, fmt.Errorf("%q: %w", id, ErrAccountNotFound)
	}
	return acc, overview.ForAccount(s.overviewOf(ctx, snap), id), nil
}

// CreateTransaction validates in and stores it in kind's collection.
func (s *LedgerService) CreateTransaction(ctx context.Context, kind core.Kind, in core.TransactionInput) (core.RawTransaction, error) {
	if s.txWriter == nil {
		return core.RawTransaction{}, ErrReadOnly
	}
	if err := s.validateTransaction(ctx, in); err != nil {
		return core.RawTransaction{}, err
	}

	wctx, cancel := s.backendContext(ctx)
	defer cancel()
	created, err := s.txWriter.Create(wctx, kind, in.Record("", kind))
	s.metrics.Mutation(kind.String(), amqp.OpCreated, err)
	if err != nil {
		return core.RawTransaction{}, fmt.Errorf("create %s: %w", kind, err)
	}
	s.afterWrite(ctx, amqp.OpCreated, kind.String(), created.ID)
	return created, nil
}

// UpdateTransaction replaces the record id of kind with in.
func (s *LedgerService) UpdateTransaction(ctx context.Context, kind core.Kind, id string, in core.TransactionInput) (core.RawTransaction, error) {
	if s.txWriter == nil {
		return core.RawTransaction{}, ErrReadOnly
	}
	if err := s.validateTransaction(ctx, in); err != nil {
		return core.RawTransaction{}, err
	}

	wctx, cancel := s.backendContext(ctx)
	defer cancel()
	updated, err := s.txWriter.Update(wctx, kind, in.Record(id, kind))
	s.metrics.Mutation(kind.String(), amqp.OpUpdated, err)
	if err != nil {
		return core.RawTransaction{}, fmt.Errorf("update %s %s: %w", kind, id, err)
	}
	s.afterWrite(ctx, amqp.OpUpdated, kind.String(), id)
	return updated, nil
}

func (s *LedgerService) DeleteTransaction(ctx context.Context, kind core.Kind, id string) error {
	if s.txWriter == nil {
		return ErrReadOnly
	}
	wctx, cancel := s.backendContext(ctx)
	defer cancel()
	err := s.txWriter.Delete(wctx, kind, id)
	s.metrics.Mutation(kind.String(), amqp.OpDeleted, err)
	if err != nil {
		return fmt.Errorf("delete %s %s: %w", kind, id, err)
	}
	s.afterWrite(ctx, amqp.OpDeleted, kind.String(), id)
	return nil
}

// validateTransaction checks the input fields and that the account exists.
func (s *LedgerService) validateTransaction(ctx context.Context, in core.TransactionInput) error {
	if err := in.Validate(); err != nil {
		return err
	}
	snap, err := s.Snapshot(ctx)
	if err != nil {
		return err
	}
	if _, ok := snap.Account(in.AccountID); !ok {
		return &core.ValidationError{Fields: []core.FieldError{{Field: "accountId", Message: "unknown account"}}}
	}
	return nil
}

const accountKind = "account"

func (s *LedgerService) CreateAccount(ctx context.Context, in core.AccountInput) (core.Account, error) {
	if s.acWriter == nil {
		return core.Account{}, ErrReadOnly
	}
	if err := in.Validate(); err != nil {
		return core.Account{}, err
	}
	acc := in.Account("")
	if acc.CreatedAt == "" {
		acc.CreatedAt = core.FormatTimestamp(time.Now())
	}

	wctx, cancel := s.backendContext(ctx)
	defer cancel()
	created, err := s.acWriter.CreateAccount(wctx, acc)
	s.metrics.Mutation(accountKind, amqp.OpCreated, err)
	if err != nil {
		return core.Account{}, fmt.Errorf("create account: %w", err)
	}
	s.afterWrite(ctx, amqp.OpCreated, accountKind, created.ID)
	return created, nil
}

// UpdateAccount replaces account id with in. A missing start date keeps the
// stored one.
func (s *LedgerService) UpdateAccount(ctx context.Context, id string, in core.AccountInput) (core.Account, error) {
	if s.acWriter == nil {
		return core.Account{}, ErrReadOnly
	}
	if err := in.Validate(); err != nil {
		return core.Account{}, err
	}
	snap, err := s.Snapshot(ctx)
	if err != nil {
		return core.Account{}, err
	}
	current, ok := snap.Account(id)
	if !ok {
		return core.Account{}, fmt.Errorf("%q: %w", id, ErrAccountNotFound)
	}
	acc := in.Account(id)
	if acc.CreatedAt == "" {
		acc.CreatedAt = current.CreatedAt
	}

	wctx, cancel := s.backendContext(ctx)
	defer cancel()
	updated, err := s.acWriter.UpdateAccount(wctx, acc)
	s.metrics.Mutation(accountKind, amqp.OpUpdated, err)
	if err != nil {
		return core.Account{}, fmt.Errorf("update account %s: %w", id, err)
	}
	s.afterWrite(ctx, amqp.OpUpdated, accountKind, id)
	return updated, nil
}

func (s *LedgerService) DeleteAccount(ctx context.Context, id string) error {
	if s.acWriter == nil {
		return ErrReadOnly
	}
	snap, err := s.Snapshot(ctx)
	if err != nil {
		return err
	}
	if _, ok := snap.Account(id); !ok {
		return fmt.Errorf("%q: %w", id, ErrAccountNotFound)
	}
	for _, list := range [][]core.RawTransaction{snap.Expenses, snap.Revenues} {
		for _, r := range list {
			if r.AccountID == id {
				return fmt.Errorf("%q: %w", id, ErrAccountInUse)
			}
		}
	}

	wctx, cancel := s.backendContext(ctx)
	defer cancel()
	err = s.acWriter.DeleteAccount(wctx, id)
	s.metrics.Mutation(accountKind, amqp.OpDeleted, err)
	if err != nil {
		return fmt.Errorf("delete account %s: %w", id, err)
	}
	s.afterWrite(ctx, amqp.OpDeleted, accountKind, id)
	return nil
}

func (s *LedgerService) afterWrite(ctx context.Context, op, kind, id string) {
	s.Invalidate()
	slog.InfoContext(ctx, "Ledger record written",
		applog.FieldComponent, applog.ComponentLedger,
		applog.FieldOperation, op,
		applog.FieldKind, kind,
		applog.FieldTransactionID, id)
	s.publish(ctx, op, kind, id)
}

// publish is best effort: the write already succeeded.
func (s *LedgerService) publish(ctx context.Context, op, kind, id string) {
	if s.events == nil {
		slog.DebugContext(ctx, "No event publisher, skipping ledger change event", "op", op)
		return
	}
	if err := s.events.PublishLedgerChanged(ctx, amqp.NewLedgerChangedMessage(op, kind, id)); err != nil {
		slog.ErrorContext(ctx, "Failed to publish ledger change event",
			applog.FieldComponent, applog.ComponentAMQP,
			applog.FieldOperation, op,
			applog.FieldKind, kind,
			applog.FieldTransactionID, id,
			applog.FieldError, err)
	}
}
