package backend

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"ledgerly/internal/config"
	"ledgerly/internal/core"
	"ledgerly/internal/ledger"
	"ledgerly/internal/services"
)

func TestFromAppConfig(t *testing.T) {
	if _, err := FromAppConfig(nil); err == nil {
		t.Fatal("expected error for nil config")
	}
	if _, err := FromAppConfig(&config.Config{DataBackend: "sheets"}); err == nil {
		t.Fatal("expected error for unknown backend")
	}

	cfg, err := FromAppConfig(&config.Config{
		DataBackend:    "rest",
		LedgerAPIURL:   "http://localhost:3000",
		BackendTimeout: 3 * time.Second,
	})
	if err != nil {
		t.Fatalf("FromAppConfig: %v", err)
	}
	if cfg.Type != RESTBackend || cfg.APIURL != "http://localhost:3000" || cfg.Timeout != 3*time.Second {
		t.Fatalf("unexpected config %+v", cfg)
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		config  Config
		wantErr bool
	}{
		{"rest", Config{Type: RESTBackend, APIURL: "http://x"}, false},
		{"rest without url", Config{Type: RESTBackend}, true},
		{"memory without file", Config{Type: MemoryBackend}, false},
		{"persisted memory without file", Config{Type: MemoryBackend, Persist: true}, true},
		{"sqlite without path", Config{Type: SQLiteBackend}, true},
		{"unknown", Config{Type: "sheets"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.config.Validate(); (err != nil) != tt.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestCreateBackends(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	f := NewFactory(nil)

	t.Run("rest", func(t *testing.T) {
		res, err := f.CreateBackend(ctx, Config{Type: RESTBackend, APIURL: "http://localhost:3000"})
		if err != nil {
			t.Fatalf("create: %v", err)
		}
		if _, ok := res.Store.(ledger.Store); !ok {
			t.Fatalf("rest backend should be writable")
		}
		if err := res.Close(); err != nil {
			t.Fatalf("close: %v", err)
		}
	})

	t.Run("memory persists on close", func(t *testing.T) {
		path := filepath.Join(dir, "db.json")
		res, err := f.CreateBackend(ctx, Config{Type: MemoryBackend, DataFile: path, Persist: true})
		if err != nil {
			t.Fatalf("create: %v", err)
		}
		store := res.Store.(ledger.Store)
		if _, err := store.CreateAccount(ctx, core.Account{Name: "Wallet", Type: core.Cash, Currency: "EUR"}); err != nil {
			t.Fatalf("create account: %v", err)
		}
		if err := res.Close(); err != nil {
			t.Fatalf("close: %v", err)
		}
		if _, err := os.Stat(path); err != nil {
			t.Fatalf("expected data file written: %v", err)
		}

		again, err := f.CreateBackend(ctx, Config{Type: MemoryBackend, DataFile: path})
		if err != nil {
			t.Fatalf("reopen: %v", err)
		}
		accounts, _ := again.Store.ListAccounts(ctx)
		if len(accounts) != 1 || accounts[0].Name != "Wallet" {
			t.Fatalf("unexpected accounts %+v", accounts)
		}
	})

	t.Run("sqlite", func(t *testing.T) {
		res, err := f.CreateBackend(ctx, Config{Type: SQLiteBackend, SQLiteDBPath: filepath.Join(dir, "ledger.db")})
		if err != nil {
			t.Fatalf("create: %v", err)
		}
		defer res.Close()
		if res.Type != SQLiteBackend {
			t.Fatalf("unexpected type %s", res.Type)
		}
		if _, err := ledger.LoadSnapshot(ctx, res.Store); err != nil {
			t.Fatalf("load empty snapshot: %v", err)
		}
	})

	t.Run("sqlite is served read-only", func(t *testing.T) {
		res, err := f.CreateBackend(ctx, Config{Type: SQLiteBackend, SQLiteDBPath: filepath.Join(dir, "mirror.db")})
		if err != nil {
			t.Fatalf("create: %v", err)
		}
		defer res.Close()
		if _, ok := res.Store.(ledger.TransactionWriter); ok {
			t.Fatalf("sqlite store must not accept transaction writes")
		}
		if _, ok := res.Store.(ledger.AccountWriter); ok {
			t.Fatalf("sqlite store must not accept account writes")
		}
		svc := services.NewLedgerService(res.Store, nil, nil, services.DefaultLedgerServiceConfig())
		if svc.Writable() {
			t.Fatalf("expected a read-only ledger service over sqlite")
		}
		if _, err := svc.CreateAccount(ctx, core.AccountInput{Name: "Wallet", Type: string(core.Cash), Currency: "EUR"}); !errors.Is(err, services.ErrReadOnly) {
			t.Fatalf("expected ErrReadOnly, got %v", err)
		}
	})

	t.Run("sqlite health", func(t *testing.T) {
		res, err := f.CreateBackend(ctx, Config{Type: SQLiteBackend, SQLiteDBPath: filepath.Join(dir, "health.db")})
		if err != nil {
			t.Fatalf("create: %v", err)
		}
		if res.Health == nil {
			t.Fatalf("sqlite backend should report health")
		}
		got, err := res.Health(ctx)
		if err != nil {
			t.Fatalf("health: %v", err)
		}
		if got["database"] != "ok" || got["last_mirror_run"] != nil {
			t.Fatalf("unexpected health %+v", got)
		}
		if err := res.Close(); err != nil {
			t.Fatalf("close: %v", err)
		}
		if _, err := res.Health(ctx); err == nil {
			t.Fatalf("expected health error after close")
		}
	})
}
