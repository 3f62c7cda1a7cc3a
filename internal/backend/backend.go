// Package backend builds the ledger store selected by configuration.
package backend

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"ledgerly/internal/config"
	"ledgerly/internal/ledger"
	"ledgerly/internal/ledger/memory"
	"ledgerly/internal/ledger/rest"
	"ledgerly/internal/storage"
)

// BackendType represents the type of backend
type BackendType string

const (
	RESTBackend   BackendType = config.BackendREST
	MemoryBackend BackendType = config.BackendMemory
	SQLiteBackend BackendType = config.BackendSQLite
)

// String implements fmt.Stringer
func (bt BackendType) String() string {
	return string(bt)
}

// IsValid returns true if the backend type is valid
func (bt BackendType) IsValid() bool {
	switch bt {
	case RESTBackend, MemoryBackend, SQLiteBackend:
		return true
	default:
		return false
	}
}

// GetBackendTypes returns all valid backend types
func GetBackendTypes() []BackendType {
	return []BackendType{RESTBackend, MemoryBackend, SQLiteBackend}
}

// Config holds configuration for backend creation
type Config struct {
	Type BackendType

	// REST specific
	APIURL  string
	Timeout time.Duration

	// Memory specific. With Persist set, the store is written back to
	// DataFile on cleanup.
	DataFile string
	Persist  bool

	// SQLite specific
	SQLiteDBPath string
}

// FromAppConfig converts the application config to backend config
func FromAppConfig(appConfig *config.Config) (Config, error) {
	if appConfig == nil {
		return Config{}, fmt.Errorf("app config is nil")
	}

	backendType := BackendType(appConfig.DataBackend)
	if !backendType.IsValid() {
		return Config{}, fmt.Errorf("invalid backend type in config: %s", appConfig.DataBackend)
	}

	return Config{
		Type:         backendType,
		APIURL:       appConfig.LedgerAPIURL,
		Timeout:      appConfig.BackendTimeout,
		DataFile:     appConfig.LedgerDataFile,
		SQLiteDBPath: appConfig.SQLiteDBPath,
	}, nil
}

// Validate validates the backend configuration
func (c Config) Validate() error {
	switch c.Type {
	case RESTBackend:
		if c.APIURL == "" {
			return fmt.Errorf("API URL is required for rest backend")
		}
	case MemoryBackend:
		if c.Persist && c.DataFile == "" {
			return fmt.Errorf("data file is required to persist the memory backend")
		}
	case SQLiteBackend:
		if c.SQLiteDBPath == "" {
			return fmt.Errorf("SQLite database path is required for sqlite backend")
		}
	default:
		return fmt.Errorf("invalid backend type: %s", c.Type)
	}
	return nil
}

// CleanupFunc represents a cleanup function for resources
type CleanupFunc func() error

// HealthFunc reports backend specific readiness details.
type HealthFunc func(ctx context.Context) (map[string]any, error)

// BackendResult contains the store, an optional cleanup function and an
// optional health check
type BackendResult struct {
	Type    BackendType
	Store   ledger.Source
	Cleanup CleanupFunc
	Health  HealthFunc
}

// Close runs the cleanup function if there is one.
func (r *BackendResult) Close() error {
	if r.Cleanup == nil {
		return nil
	}
	return r.Cleanup()
}

// Factory creates backends based on configuration
type Factory interface {
	CreateBackend(ctx context.Context, config Config) (*BackendResult, error)
}

// DefaultFactory implements the Factory interface
type DefaultFactory struct {
	logger *slog.Logger
}

// NewFactory creates a new backend factory
func NewFactory(logger *slog.Logger) Factory {
	if logger == nil {
		logger = slog.Default()
	}
	return &DefaultFactory{
		logger: logger,
	}
}

// CreateBackend implements Factory.CreateBackend
func (f *DefaultFactory) CreateBackend(ctx context.Context, config Config) (*BackendResult, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	switch config.Type {
	case RESTBackend:
		return f.createRESTBackend(ctx, config)
	case MemoryBackend:
		return f.createMemoryBackend(ctx, config)
	case SQLiteBackend:
		return f.createSQLiteBackend(ctx, config)
	default:
		return nil, fmt.Errorf("unsupported backend type: %s", config.Type)
	}
}

func (f *DefaultFactory) createRESTBackend(ctx context.Context, config Config) (*BackendResult, error) {
	client, err := rest.New(config.APIURL, nil, config.Timeout)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize REST client: %w", err)
	}

	f.logger.InfoContext(ctx, "Initialized REST backend", "url", config.APIURL, "timeout", config.Timeout)

	return &BackendResult{Type: RESTBackend, Store: client}, nil
}

func (f *DefaultFactory) createMemoryBackend(ctx context.Context, config Config) (*BackendResult, error) {
	store := memory.New(memory.Database{})
	if config.DataFile != "" {
		var err error
		store, err = memory.NewFromFile(config.DataFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load memory backend: %w", err)
		}
	}

	f.logger.InfoContext(ctx, "Initialized memory backend", "data_file", config.DataFile, "persist", config.Persist)

	result := &BackendResult{Type: MemoryBackend, Store: store}
	if config.Persist {
		result.Cleanup = func() error { return store.Save(config.DataFile) }
	}
	return result, nil
}

func (f *DefaultFactory) createSQLiteBackend(ctx context.Context, config Config) (*BackendResult, error) {
	repo, err := storage.NewSQLiteRepository(config.SQLiteDBPath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize SQLite repository: %w", err)
	}

	f.logger.InfoContext(ctx, "Initialized SQLite backend", "db_path", config.SQLiteDBPath, "writable", false)

	// The worker replaces every table on each mirror run, so writes taken
	// here would be lost. The mirror is served read-only.
	return &BackendResult{
		Type:    SQLiteBackend,
		Store:   ledger.ReadOnly(repo),
		Cleanup: repo.Close,
		Health:  sqliteHealth(repo),
	}, nil
}

func sqliteHealth(repo *storage.SQLiteRepository) HealthFunc {
	return func(ctx context.Context) (map[string]any, error) {
		if err := repo.Ping(ctx); err != nil {
			return nil, fmt.Errorf("ping sqlite: %w", err)
		}
		out := map[string]any{"database": "ok"}
		run, err := repo.LastMirrorRun(ctx)
		switch {
		case errors.Is(err, storage.ErrNotFound):
			out["last_mirror_run"] = nil
		case err != nil:
			return nil, err
		default:
			last := map[string]any{
				"started_at":  run.StartedAt.Format(time.RFC3339),
				"finished_at": run.FinishedAt.Format(time.RFC3339),
			}
			if run.Error != "" {
				last["error"] = run.Error
			}
			out["last_mirror_run"] = last
		}
		return out, nil
	}
}
