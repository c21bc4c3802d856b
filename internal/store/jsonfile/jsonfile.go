// Package jsonfile implements the store.Ledger interface on a human-readable JSON file.
package jsonfile

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/kdbartholomew/flowzero-orders-cli/internal/store"
)

// Store keeps the ledger as an indented JSON array. Every mutation rewrites
// the file through a synced temp file and an atomic rename, so a crash leaves
// either the old or the new ledger on disk, never a torn one.
type Store struct {
	path string

	mu      sync.Mutex
	records []store.OrderRecord
	index   map[string]int

	now func() time.Time
}

// Open loads the ledger at path. A missing file is an empty ledger.
func Open(path string) (*Store, error) {
	s := &Store{
		path:  path,
		index: make(map[string]int),
		now:   func() time.Time { return time.Now().UTC() },
	}

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		return s, nil
	case err != nil:
		return nil, fmt.Errorf("read ledger: %w", err)
	}

	if len(data) > 0 {
		if err := json.Unmarshal(data, &s.records); err != nil {
			return nil, fmt.Errorf("ledger %s is corrupt: %w", path, err)
		}
	}
	for i, rec := range s.records {
		if _, dup := s.index[rec.OrderID]; dup {
			return nil, fmt.Errorf("ledger %s: %w: %s", path, store.ErrDuplicateOrderID, rec.OrderID)
		}
		s.index[rec.OrderID] = i
	}
	return s, nil
}

// Path returns the file backing this ledger.
func (s *Store) Path() string {
	return s.path
}

func (s *Store) Append(ctx context.Context, rec store.OrderRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.index[rec.OrderID]; ok {
		return fmt.Errorf("%w: %s", store.ErrDuplicateOrderID, rec.OrderID)
	}
	if rec.Status == "" {
		rec.Status = store.OrderStatusSubmitted
	}
	if rec.SubmittedAt.IsZero() {
		rec.SubmittedAt = s.now()
	}

	next := append(append([]store.OrderRecord(nil), s.records...), rec)
	if err := s.write(next); err != nil {
		return err
	}
	s.records = next
	s.index[rec.OrderID] = len(next) - 1
	return nil
}

func (s *Store) UpdateStatus(ctx context.Context, orderID string, status store.OrderStatus, fields store.StatusFields) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	i, ok := s.index[orderID]
	if !ok {
		return fmt.Errorf("%w: %s", store.ErrNotFound, orderID)
	}

	next := append([]store.OrderRecord(nil), s.records...)
	next[i] = fields.Apply(next[i], status, s.now())
	if err := s.write(next); err != nil {
		return err
	}
	s.records = next
	return nil
}

func (s *Store) Get(ctx context.Context, orderID string) (*store.OrderRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	i, ok := s.index[orderID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", store.ErrNotFound, orderID)
	}
	rec := s.records[i]
	return &rec, nil
}

func (s *Store) ListByBatch(ctx context.Context, batchID string) ([]store.OrderRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []store.OrderRecord
	if batchID == "" {
		return out, nil
	}
	for _, rec := range s.records {
		if rec.BatchID == batchID {
			out = append(out, rec)
		}
	}
	return out, nil
}

func (s *Store) List(ctx context.Context) ([]store.OrderRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return append([]store.OrderRecord(nil), s.records...), nil
}

// Close is a no-op; every mutation is already on disk.
func (s *Store) Close() error {
	return nil
}

func (s *Store) write(records []store.OrderRecord) error {
	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return fmt.Errorf("encode ledger: %w", err)
	}
	data = append(data, '\n')

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create ledger dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp ledger: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write temp ledger: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("sync temp ledger: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp ledger: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("replace ledger: %w", err)
	}

	// The rename is only durable once the directory entry is synced.
	if d, err := os.Open(dir); err == nil {
		_ = d.Sync()
		d.Close()
	}
	return nil
}
