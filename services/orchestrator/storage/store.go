// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync/atomic"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/johmakinen/DAAgent/services/orchestrator/datatypes"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// storageTracer is the OpenTelemetry tracer for storage operations.
var storageTracer = otel.Tracer("daagent.orchestrator.storage")

// MessageStore is the persistence contract for completed chat turns and
// the session registry.
//
// # Description
//
// One record is written per successful, non-cancelled turn. History reads
// return records in insertion order. Deleting a session removes both its
// registry entry and all of its messages.
//
// # Thread Safety
//
// Implementations must be safe for concurrent use.
type MessageStore interface {
	SaveMessage(ctx context.Context, rec *datatypes.ChatRecord) error
	History(ctx context.Context, sessionID string) ([]datatypes.ChatRecord, error)
	DeleteHistory(ctx context.Context, sessionID string) (int, error)

	SaveSession(ctx context.Context, info *datatypes.SessionInfo) error
	ListSessions(ctx context.Context) ([]datatypes.SessionInfo, error)
	DeleteSession(ctx context.Context, sessionID string) (bool, int, error)
}

// BadgerStore implements MessageStore on an embedded BadgerDB.
//
// Message keys embed a monotonic sequence number so badger's ordered
// iteration returns history in insertion order even when two turns land
// in the same nanosecond.
type BadgerStore struct {
	db  *DB
	seq atomic.Uint64
}

var _ MessageStore = (*BadgerStore)(nil)

// NewBadgerStore creates a store on the given database.
func NewBadgerStore(db *DB) *BadgerStore {
	s := &BadgerStore{db: db}
	s.seq.Store(uint64(time.Now().UnixNano()))
	return s
}

func messageKey(sessionID string, seq uint64) []byte {
	return []byte(fmt.Sprintf("msg/%s/%020d", sessionID, seq))
}

func messagePrefix(sessionID string) []byte {
	return []byte("msg/" + sessionID + "/")
}

func sessionKey(sessionID string) []byte {
	return []byte("sess/" + sessionID)
}

// SaveMessage persists one completed turn.
func (s *BadgerStore) SaveMessage(ctx context.Context, rec *datatypes.ChatRecord) error {
	ctx, span := storageTracer.Start(ctx, "BadgerStore.SaveMessage")
	defer span.End()
	span.SetAttributes(attribute.String("session.id", rec.SessionID))

	value, err := json.Marshal(rec)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("marshal chat record: %w", err)
	}
	key := messageKey(rec.SessionID, s.seq.Add(1))

	err = s.db.WithTxn(ctx, func(txn *badger.Txn) error {
		return txn.Set(key, value)
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "write failed")
		return fmt.Errorf("save chat record: %w", err)
	}
	return nil
}

// History returns all persisted turns for a session in insertion order.
// A session with no history returns an empty slice, not an error.
func (s *BadgerStore) History(ctx context.Context, sessionID string) ([]datatypes.ChatRecord, error) {
	ctx, span := storageTracer.Start(ctx, "BadgerStore.History")
	defer span.End()
	span.SetAttributes(attribute.String("session.id", sessionID))

	records := []datatypes.ChatRecord{}
	err := s.db.WithReadTxn(ctx, func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = messagePrefix(sessionID)
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			err := it.Item().Value(func(val []byte) error {
				var rec datatypes.ChatRecord
				if err := json.Unmarshal(val, &rec); err != nil {
					return fmt.Errorf("unmarshal chat record: %w", err)
				}
				records = append(records, rec)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "read failed")
		return nil, err
	}
	span.SetAttributes(attribute.Int("history.records", len(records)))
	return records, nil
}

// DeleteHistory removes all persisted turns for a session and returns how
// many were deleted.
func (s *BadgerStore) DeleteHistory(ctx context.Context, sessionID string) (int, error) {
	ctx, span := storageTracer.Start(ctx, "BadgerStore.DeleteHistory")
	defer span.End()
	span.SetAttributes(attribute.String("session.id", sessionID))

	keys, err := s.collectMessageKeys(ctx, sessionID)
	if err != nil {
		span.RecordError(err)
		return 0, err
	}

	deleted := 0
	for _, key := range keys {
		err := s.db.WithTxn(ctx, func(txn *badger.Txn) error {
			return txn.Delete(key)
		})
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "delete failed")
			return deleted, fmt.Errorf("delete chat record: %w", err)
		}
		deleted++
	}
	span.SetAttributes(attribute.Int("history.deleted", deleted))
	return deleted, nil
}

func (s *BadgerStore) collectMessageKeys(ctx context.Context, sessionID string) ([][]byte, error) {
	var keys [][]byte
	err := s.db.WithReadTxn(ctx, func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = messagePrefix(sessionID)
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			keys = append(keys, it.Item().KeyCopy(nil))
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("collect message keys: %w", err)
	}
	return keys, nil
}

// SaveSession upserts a session registry entry.
func (s *BadgerStore) SaveSession(ctx context.Context, info *datatypes.SessionInfo) error {
	ctx, span := storageTracer.Start(ctx, "BadgerStore.SaveSession")
	defer span.End()
	span.SetAttributes(attribute.String("session.id", info.ID))

	value, err := json.Marshal(info)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("marshal session info: %w", err)
	}
	err = s.db.WithTxn(ctx, func(txn *badger.Txn) error {
		return txn.Set(sessionKey(info.ID), value)
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "write failed")
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}

// ListSessions returns all registered sessions, most recently updated
// first.
func (s *BadgerStore) ListSessions(ctx context.Context) ([]datatypes.SessionInfo, error) {
	ctx, span := storageTracer.Start(ctx, "BadgerStore.ListSessions")
	defer span.End()

	sessions := []datatypes.SessionInfo{}
	err := s.db.WithReadTxn(ctx, func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte("sess/")
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			err := it.Item().Value(func(val []byte) error {
				var info datatypes.SessionInfo
				if err := json.Unmarshal(val, &info); err != nil {
					return fmt.Errorf("unmarshal session info: %w", err)
				}
				sessions = append(sessions, info)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "read failed")
		return nil, err
	}

	sort.Slice(sessions, func(i, j int) bool {
		return sessions[i].UpdatedAt.After(sessions[j].UpdatedAt)
	})
	span.SetAttributes(attribute.Int("sessions.count", len(sessions)))
	return sessions, nil
}

// DeleteSession removes the registry entry and all messages for a session.
// Reports whether the session existed in the registry and how many
// messages were removed with it.
func (s *BadgerStore) DeleteSession(ctx context.Context, sessionID string) (bool, int, error) {
	ctx, span := storageTracer.Start(ctx, "BadgerStore.DeleteSession")
	defer span.End()
	span.SetAttributes(attribute.String("session.id", sessionID))

	existed := false
	err := s.db.WithTxn(ctx, func(txn *badger.Txn) error {
		if _, err := txn.Get(sessionKey(sessionID)); err == nil {
			existed = true
		} else if err != badger.ErrKeyNotFound {
			return err
		}
		return txn.Delete(sessionKey(sessionID))
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "delete failed")
		return false, 0, fmt.Errorf("delete session: %w", err)
	}

	removed, err := s.DeleteHistory(ctx, sessionID)
	if err != nil {
		return existed, removed, err
	}
	span.SetAttributes(attribute.Int("messages.deleted", removed))
	return existed, removed, nil
}
