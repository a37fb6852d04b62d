// Monolith - Telemetry Ingest, Evaluation, and Fan-Out Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/monolith

// Package kv is the registrar database: node and controller blobs in a
// BadgerDB keyed by device id. Values are stored verbatim; callers
// decode them with the registry package.
package kv

import (
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/dgraph-io/badger/v4"

	"github.com/tomtom215/monolith/internal/logging"
)

var (
	// ErrNotFound is returned by Get when the key is absent.
	ErrNotFound = errors.New("kv: key not found")

	// ErrClosed is returned by all operations after Close.
	ErrClosed = errors.New("kv: store is closed")
)

// Store wraps a Badger database. All methods are safe for concurrent
// use; Badger provides its own transaction isolation.
type Store struct {
	dir  string
	db   *badger.DB
	open atomic.Bool
}

// New returns a closed store bound to the database directory at dir.
// Every operation answers ErrClosed until Open succeeds, so dependents
// can hold the handle before the lifecycle brings it up.
func New(dir string) *Store {
	return &Store{dir: dir}
}

// Open opens (creating if necessary) the registrar database. Idempotent.
func (s *Store) Open() error {
	if s.open.Load() {
		logging.Warn().Str("dir", s.dir).Msg("Registrar db already open")
		return nil
	}
	opts := badger.DefaultOptions(s.dir)
	opts.Logger = badgerLogger{}
	db, err := badger.Open(opts)
	if err != nil {
		return fmt.Errorf("failed to open registrar db at %q: %w", s.dir, err)
	}
	s.db = db
	s.open.Store(true)
	return nil
}

// Open opens (creating if necessary) the registrar database at dir.
func Open(dir string) (*Store, error) {
	s := New(dir)
	if err := s.Open(); err != nil {
		return nil, err
	}
	return s, nil
}

// OpenInMemory opens a non-persistent store. Used by tests and by
// deployments that accept losing registrations on restart.
func OpenInMemory() (*Store, error) {
	opts := badger.DefaultOptions("").WithInMemory(true)
	opts.Logger = badgerLogger{}
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open in-memory registrar db: %w", err)
	}
	s := &Store{db: db}
	s.open.Store(true)
	return s, nil
}

// Close releases the database. Idempotent.
func (s *Store) Close() error {
	if !s.open.CompareAndSwap(true, false) {
		return nil
	}
	return s.db.Close()
}

// Exists reports whether key is present.
func (s *Store) Exists(key string) (bool, error) {
	if !s.open.Load() {
		return false, ErrClosed
	}
	err := s.db.View(func(txn *badger.Txn) error {
		_, err := txn.Get([]byte(key))
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("exists %q: %w", key, err)
	}
	return true, nil
}

// Put stores value under key, replacing any previous value.
func (s *Store) Put(key string, value []byte) error {
	if !s.open.Load() {
		return ErrClosed
	}
	err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(key), value)
	})
	if err != nil {
		return fmt.Errorf("put %q: %w", key, err)
	}
	return nil
}

// Get returns the value stored under key, or ErrNotFound.
func (s *Store) Get(key string) ([]byte, error) {
	if !s.open.Load() {
		return nil, ErrClosed
	}
	var value []byte
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if err != nil {
			return err
		}
		value, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get %q: %w", key, err)
	}
	return value, nil
}

// Delete removes key. Deleting an absent key is not an error.
func (s *Store) Delete(key string) error {
	if !s.open.Load() {
		return ErrClosed
	}
	err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete([]byte(key))
	})
	if err != nil {
		return fmt.Errorf("delete %q: %w", key, err)
	}
	return nil
}

// badgerLogger routes Badger's internal logging into zerolog. Badger is
// chatty at INFO during compaction, so its info output is demoted.
type badgerLogger struct{}

func (badgerLogger) Errorf(format string, args ...any) {
	logging.Error().Str("component", "badger").Msgf(format, args...)
}

func (badgerLogger) Warningf(format string, args ...any) {
	logging.Warn().Str("component", "badger").Msgf(format, args...)
}

func (badgerLogger) Infof(format string, args ...any) {
	logging.Debug().Str("component", "badger").Msgf(format, args...)
}

func (badgerLogger) Debugf(format string, args ...any) {
	logging.Trace().Str("component", "badger").Msgf(format, args...)
}
