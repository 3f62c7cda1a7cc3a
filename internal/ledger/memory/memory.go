// Package memory is an in-process ledger store, optionally seeded from a
// json-server db.json file. Used for local development and tests.
package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"sync"

	"github.com/google/uuid"

	"ledgerly/internal/core"
	"ledgerly/internal/ledger"
)

// Database mirrors the layout of a json-server db.json.
type Database struct {
	Expenses []core.RawTransaction `json:"expenses"`
	Revenues []core.RawTransaction `json:"revenues"`
	Accounts []core.Account        `json:"accounts"`
}

type Store struct {
	mu sync.RWMutex
	db Database
}

var _ ledger.Store = (*Store)(nil)

func New(db Database) *Store {
	return &Store{db: Database{
		Expenses: slices.Clone(db.Expenses),
		Revenues: slices.Clone(db.Revenues),
		Accounts: slices.Clone(db.Accounts),
	}}
}

// NewFromFile loads path. A missing file gives an empty store; a file that
// cannot be decoded is an error.
func NewFromFile(path string) (*Store, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return New(Database{}), nil
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	db, err := decodeDatabase(data)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	return New(db), nil
}

// decodeDatabase reads the transaction collections record by record, the
// same way the REST client does.
func decodeDatabase(data []byte) (Database, error) {
	var raw struct {
		Expenses json.RawMessage `json:"expenses"`
		Revenues json.RawMessage `json:"revenues"`
		Accounts []core.Account  `json:"accounts"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return Database{}, err
	}
	db := Database{Accounts: raw.Accounts}
	var err error
	if len(raw.Expenses) > 0 {
		if db.Expenses, err = core.DecodeTransactions(raw.Expenses); err != nil {
			return Database{}, fmt.Errorf("expenses: %w", err)
		}
	}
	if len(raw.Revenues) > 0 {
		if db.Revenues, err = core.DecodeTransactions(raw.Revenues); err != nil {
			return Database{}, fmt.Errorf("revenues: %w", err)
		}
	}
	return db, nil
}

func (s *Store) ListExpenses(_ context.Context) ([]core.RawTransaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.db.Expenses), nil
}

func (s *Store) ListRevenues(_ context.Context) ([]core.RawTransaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.db.Revenues), nil
}

func (s *Store) ListAccounts(_ context.Context) ([]core.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.db.Accounts), nil
}

func (s *Store) collection(kind core.Kind) (*[]core.RawTransaction, error) {
	switch kind {
	case core.Expense:
		return &s.db.Expenses, nil
	case core.Revenue:
		return &s.db.Revenues, nil
	}
	return nil, core.ErrInvalidKind
}

// Create appends r, assigning a new uuid when it has no id.
func (s *Store) Create(_ context.Context, kind core.Kind, r core.RawTransaction) (core.RawTransaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	list, err := s.collection(kind)
	if err != nil {
		return core.RawTransaction{}, err
	}
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	*list = append(*list, r)
	return r, nil
}

func (s *Store) Update(_ context.Context, kind core.Kind, r core.RawTransaction) (core.RawTransaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	list, err := s.collection(kind)
	if err != nil {
		return core.RawTransaction{}, err
	}
	i := slices.IndexFunc(*list, func(x core.RawTransaction) bool { return x.ID == r.ID })
	if i < 0 {
		return core.RawTransaction{}, fmt.Errorf("%s %q: %w", kind, r.ID, ledger.ErrNotFound)
	}
	(*list)[i] = r
	return r, nil
}

func (s *Store) Delete(_ context.Context, kind core.Kind, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	list, err := s.collection(kind)
	if err != nil {
		return err
	}
	i := slices.IndexFunc(*list, func(x core.RawTransaction) bool { return x.ID == id })
	if i < 0 {
		return fmt.Errorf("%s %q: %w", kind, id, ledger.ErrNotFound)
	}
	*list = slices.Delete(*list, i, i+1)
	return nil
}

func (s *Store) CreateAccount(_ context.Context, a core.Account) (core.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	s.db.Accounts = append(s.db.Accounts, a)
	return a, nil
}

func (s *Store) UpdateAccount(_ context.Context, a core.Account) (core.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := slices.IndexFunc(s.db.Accounts, func(x core.Account) bool { return x.ID == a.ID })
	if i < 0 {
		return core.Account{}, fmt.Errorf("account %q: %w", a.ID, ledger.ErrNotFound)
	}
	s.db.Accounts[i] = a
	return a, nil
}

func (s *Store) DeleteAccount(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := slices.IndexFunc(s.db.Accounts, func(x core.Account) bool { return x.ID == id })
	if i < 0 {
		return fmt.Errorf("account %q: %w", id, ledger.ErrNotFound)
	}
	s.db.Accounts = slices.Delete(s.db.Accounts, i, i+1)
	return nil
}

// Save writes the current contents to path in db.json layout. The file is
// written next to path and renamed into place, so a failed save leaves the
// previous file intact.
func (s *Store) Save(path string) error {
	s.mu.RLock()
	data, err := json.MarshalIndent(s.db, "", "  ")
	s.mu.RUnlock()
	if err != nil {
		return fmt.Errorf("encode database: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file for %s: %w", path, err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write %s: %w", tmp.Name(), err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("sync %s: %w", tmp.Name(), err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close %s: %w", tmp.Name(), err)
	}
	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		return fmt.Errorf("chmod %s: %w", tmp.Name(), err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("replace %s: %w", path, err)
	}
	return nil
}
