// Package filestore keeps one JSON array file per collection. It is the
// substitute collection used while the primary database is unreachable.
package filestore

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

var ErrInvalidName = errors.New("invalid collection name")

// Store serializes every read-modify-write of a collection file behind a
// per-collection mutex, so two concurrent writers cannot drop each other's
// records.
type Store struct {
	dir   string
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func New(dir string) *Store {
	return &Store{
		dir:   dir,
		locks: make(map[string]*sync.Mutex),
	}
}

func (s *Store) Dir() string { return s.dir }

// Path returns the backing file of a collection, e.g. data/plans.json.
func (s *Store) Path(name string) string {
	return filepath.Join(s.dir, name+".json")
}

func (s *Store) lock(name string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.locks[name]
	if !ok {
		l = &sync.Mutex{}
		s.locks[name] = l
	}
	return l
}

// ReadAll returns the raw records of a collection. A missing file is an
// empty collection.
func (s *Store) ReadAll(name string) ([]json.RawMessage, error) {
	if err := checkName(name); err != nil {
		return nil, err
	}
	l := s.lock(name)
	l.Lock()
	defer l.Unlock()
	return s.read(name)
}

// WriteAll replaces the whole collection file.
func (s *Store) WriteAll(name string, records []json.RawMessage) error {
	if err := checkName(name); err != nil {
		return err
	}
	l := s.lock(name)
	l.Lock()
	defer l.Unlock()
	return s.write(name, records)
}

// Update runs fn over the current records and persists what it returns.
// When fn fails nothing is written and its error is returned unchanged.
func (s *Store) Update(name string, fn func([]json.RawMessage) ([]json.RawMessage, error)) error {
	if err := checkName(name); err != nil {
		return err
	}
	l := s.lock(name)
	l.Lock()
	defer l.Unlock()

	records, err := s.read(name)
	if err != nil {
		return err
	}
	next, err := fn(records)
	if err != nil {
		return err
	}
	return s.write(name, next)
}

func (s *Store) read(name string) ([]json.RawMessage, error) {
	// The directory is created lazily; the file only on first write.
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return nil, fmt.Errorf("create data directory: %w", err)
	}
	data, err := os.ReadFile(s.Path(name))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return []json.RawMessage{}, nil
		}
		return nil, fmt.Errorf("read %s: %w", name, err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return []json.RawMessage{}, nil
	}
	var records []json.RawMessage
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("decode %s: %w", name, err)
	}
	if records == nil {
		records = []json.RawMessage{}
	}
	return records, nil
}

// write goes through a temp file and a rename so a crash mid-write leaves
// either the old or the new file, never a truncated one.
func (s *Store) write(name string, records []json.RawMessage) error {
	if records == nil {
		records = []json.RawMessage{}
	}
	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return fmt.Errorf("encode %s: %w", name, err)
	}
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("create data directory: %w", err)
	}

	tmp, err := os.CreateTemp(s.dir, name+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file for %s: %w", name, err)
	}
	tmpName := tmp.Name()
	cleanup := func() {
		if rmErr := os.Remove(tmpName); rmErr != nil && !errors.Is(rmErr, os.ErrNotExist) {
			slog.Warn("Failed to remove temp file", "file", tmpName, "error", rmErr)
		}
	}

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		cleanup()
		return fmt.Errorf("write %s: %w", name, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		cleanup()
		return fmt.Errorf("sync %s: %w", name, err)
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return fmt.Errorf("close %s: %w", name, err)
	}
	if err := os.Rename(tmpName, s.Path(name)); err != nil {
		cleanup()
		return fmt.Errorf("replace %s: %w", name, err)
	}
	return nil
}

func checkName(name string) error {
	if name == "" || strings.ContainsAny(name, `/\`) || strings.Contains(name, "..") {
		return fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	return nil
}
