// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	badger "github.com/dgraph-io/badger/v4"

	"github.com/AleutianAI/beadsync/services/syncd/domain"
)

// issueKeyPrefix namespaces issue records inside the key space so other
// record kinds can share the database later.
const issueKeyPrefix = "issue/"

// BadgerConfig configures the embedded issue database.
type BadgerConfig struct {
	// Path is the directory for database files. Ignored when InMemory is
	// true.
	Path string

	// InMemory disables disk persistence. Used by tests.
	InMemory bool

	// SyncWrites enables synchronous writes for durability.
	SyncWrites bool

	// Logger receives store logs. Badger's own chatter is discarded.
	Logger *slog.Logger
}

// BadgerStore is the durable Store implementation over BadgerDB.
//
// Issues are stored as JSON values under "issue/<id>" keys. Badger
// transactions give each operation the required isolation; no additional
// locking is needed.
type BadgerStore struct {
	db  *badger.DB
	log *slog.Logger

	// Now supplies business timestamps for mutations.
	Now func() int64
}

// OpenBadger opens (creating if needed) the issue database.
func OpenBadger(cfg BadgerConfig) (*BadgerStore, error) {
	if !cfg.InMemory && cfg.Path == "" {
		return nil, fmt.Errorf("badger store: path is required for persistent databases")
	}

	opts := badger.DefaultOptions(cfg.Path).
		WithInMemory(cfg.InMemory).
		WithSyncWrites(cfg.SyncWrites).
		WithLogger(nil)

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("badger store: open %q: %w", cfg.Path, err)
	}

	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}
	return &BadgerStore{db: db, log: log, Now: domain.NowMillis}, nil
}

func issueKey(id string) []byte {
	return []byte(issueKeyPrefix + id)
}

func decodeIssue(item *badger.Item) (domain.Issue, error) {
	var is domain.Issue
	err := item.Value(func(val []byte) error {
		return json.Unmarshal(val, &is)
	})
	return is, err
}

// List returns issues matching f ordered by creation time then id.
func (b *BadgerStore) List(ctx context.Context, f Filter) ([]domain.Issue, error) {
	var out []domain.Issue
	err := b.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		prefix := []byte(issueKeyPrefix)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			is, err := decodeIssue(it.Item())
			if err != nil {
				// A corrupt value must not take down the whole listing.
				b.log.Warn("skipping undecodable issue record",
					"key", string(it.Item().Key()), "error", err)
				continue
			}
			if f.Matches(is) {
				out = append(out, is)
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("badger store: list: %w", err)
	}
	sortIssues(out)
	return out, nil
}

// Get returns the issue with the given id or ErrNotFound.
func (b *BadgerStore) Get(_ context.Context, id string) (domain.Issue, error) {
	var is domain.Issue
	err := b.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(issueKey(id))
		if err != nil {
			return err
		}
		is, err = decodeIssue(item)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return domain.Issue{}, ErrNotFound
	}
	if err != nil {
		return domain.Issue{}, fmt.Errorf("badger store: get %q: %w", id, err)
	}
	return is, nil
}

// Create inserts a new issue, stamping created_at when unset.
func (b *BadgerStore) Create(_ context.Context, is domain.Issue) error {
	if is.ID == "" {
		return ErrMissingID
	}
	return b.update(func(txn *badger.Txn) error {
		if _, err := txn.Get(issueKey(is.ID)); err == nil {
			return ErrExists
		} else if !errors.Is(err, badger.ErrKeyNotFound) {
			return err
		}
		if is.CreatedAt == 0 {
			is.CreatedAt = b.Now()
		}
		return b.set(txn, is)
	})
}

// Put inserts or overwrites an issue as-is.
func (b *BadgerStore) Put(_ context.Context, is domain.Issue) error {
	if is.ID == "" {
		return ErrMissingID
	}
	return b.update(func(txn *badger.Txn) error {
		return b.set(txn, is)
	})
}

// UpdateStatus transitions an issue, stamping updated_at and, for closed,
// closed_at.
func (b *BadgerStore) UpdateStatus(_ context.Context, id string, status domain.Status) error {
	return b.update(func(txn *badger.Txn) error {
		item, err := txn.Get(issueKey(id))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		is, err := decodeIssue(item)
		if err != nil {
			return err
		}
		now := b.Now()
		is.Status = status
		is.UpdatedAt = now
		if status == domain.StatusClosed {
			is.ClosedAt = now
		} else {
			is.ClosedAt = 0
		}
		return b.set(txn, is)
	})
}

// AddComment appends a comment, stamping its created_at and the issue's
// updated_at.
func (b *BadgerStore) AddComment(_ context.Context, id string, c domain.Comment) error {
	return b.update(func(txn *badger.Txn) error {
		item, err := txn.Get(issueKey(id))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		is, err := decodeIssue(item)
		if err != nil {
			return err
		}
		now := b.Now()
		if c.CreatedAt == 0 {
			c.CreatedAt = now
		}
		is.Comments = append(is.Comments, c)
		is.UpdatedAt = now
		return b.set(txn, is)
	})
}

// Delete removes an issue or returns ErrNotFound.
func (b *BadgerStore) Delete(_ context.Context, id string) error {
	return b.update(func(txn *badger.Txn) error {
		if _, err := txn.Get(issueKey(id)); errors.Is(err, badger.ErrKeyNotFound) {
			return ErrNotFound
		} else if err != nil {
			return err
		}
		return txn.Delete(issueKey(id))
	})
}

// Close flushes and closes the database.
func (b *BadgerStore) Close() error {
	return b.db.Close()
}

func (b *BadgerStore) set(txn *badger.Txn, is domain.Issue) error {
	val, err := json.Marshal(is)
	if err != nil {
		return fmt.Errorf("encode issue %q: %w", is.ID, err)
	}
	return txn.Set(issueKey(is.ID), val)
}

func (b *BadgerStore) update(fn func(txn *badger.Txn) error) error {
	err := b.db.Update(fn)
	if err != nil && !errors.Is(err, ErrNotFound) && !errors.Is(err, ErrExists) {
		return fmt.Errorf("badger store: %w", err)
	}
	return err
}
