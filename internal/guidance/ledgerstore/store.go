/*
Copyright 2026.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0
*/

// Package ledgerstore persists run-ledger events to an NDJSON file with an
// index file and a file-based lock, matching the bit-exact layout the host
// interface guarantees: events.ndjson (one JSON record per line, UTF-8, no
// BOM, trailing newline), index.json (pretty-printed), and .lock.
package ledgerstore

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/go-logr/logr"
	"github.com/google/uuid"
	"github.com/robfig/cron/v3"

	"github.com/marcus-qen/guidance/internal/guidance/ledger"
)

const (
	eventsFile = "events.ndjson"
	indexFile  = "index.json"
	lockFile_  = ".lock"
)

// Index mirrors index.json: event count and the observed timestamp/task-id
// bounds, refreshed on every write.
type Index struct {
	EventCount     int      `json:"eventCount"`
	OldestTimestamp int64   `json:"oldestTimestamp"`
	NewestTimestamp int64   `json:"newestTimestamp"`
	TaskIDs        []string `json:"taskIds"`
}

// Store is the durable NDJSON-backed ledger store.
type Store struct {
	mu     sync.Mutex
	dir    string
	log    logr.Logger
	holder string
	cron   *cron.Cron
}

// New creates a Store rooted at dir, creating the directory if needed.
func New(dir string, log logr.Logger) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	return &Store{dir: dir, log: log}, nil
}

func (s *Store) eventsPath() string { return filepath.Join(s.dir, eventsFile) }
func (s *Store) indexPath() string  { return filepath.Join(s.dir, indexFile) }
func (s *Store) lockPath() string   { return filepath.Join(s.dir, lockFile_) }

// Append writes one event as a single NDJSON line, flushing immediately so
// at most one record is lost on power failure. The index is refreshed after
// every append.
func (s *Store) Append(e ledger.RunEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, err := json.Marshal(e)
	if err != nil {
		return err
	}

	f, err := os.OpenFile(s.eventsPath(), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	if _, err := f.Write(append(b, '\n')); err != nil {
		return err
	}
	if err := f.Sync(); err != nil {
		return err
	}

	return s.refreshIndex()
}

// ReadAll reads every event in the store, tolerant of blank or malformed
// trailing lines (skipped, not fatal — a reader may observe a
// partially-written trailing line after a crash).
func (s *Store) ReadAll() ([]ledger.RunEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.readAllLocked()
}

func (s *Store) readAllLocked() ([]ledger.RunEvent, error) {
	f, err := os.Open(s.eventsPath())
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var events []ledger.RunEvent
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var e ledger.RunEvent
		if err := json.Unmarshal(line, &e); err != nil {
			s.log.V(1).Info("skipping malformed ledger line", "error", err.Error())
			continue
		}
		events = append(events, e)
	}
	return events, nil
}

// ReadRange returns events with Timestamp in [start, end].
func (s *Store) ReadRange(start, end int64) ([]ledger.RunEvent, error) {
	all, err := s.ReadAll()
	if err != nil {
		return nil, err
	}
	var out []ledger.RunEvent
	for _, e := range all {
		if e.Timestamp >= start && e.Timestamp <= end {
			out = append(out, e)
		}
	}
	return out, nil
}

// WriteAll atomically replaces the event file with events, in order.
func (s *Store) WriteAll(events []ledger.RunEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.atomicRewrite(events)
}

// Compact drops the oldest events beyond maxEvents via an atomic rewrite,
// keeping the most recent maxEvents events in their original order.
func (s *Store) Compact(maxEvents int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	events, err := s.readAllLocked()
	if err != nil {
		return err
	}
	if len(events) <= maxEvents {
		return nil
	}
	sort.SliceStable(events, func(i, j int) bool { return events[i].Timestamp < events[j].Timestamp })
	kept := events[len(events)-maxEvents:]
	return s.atomicRewrite(kept)
}

// atomicRewrite writes events to a uniquely-named temp file and renames it
// over the target, so the target file is always fully present even if the
// process is killed mid-write.
func (s *Store) atomicRewrite(events []ledger.RunEvent) error {
	tmp := filepath.Join(s.dir, "events.tmp."+uuid.NewString()+".ndjson")
	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	for _, e := range events {
		b, err := json.Marshal(e)
		if err != nil {
			f.Close()
			os.Remove(tmp)
			return err
		}
		if _, err := f.Write(append(b, '\n')); err != nil {
			f.Close()
			os.Remove(tmp)
			return err
		}
	}
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return err
	}
	if err := os.Rename(tmp, s.eventsPath()); err != nil {
		os.Remove(tmp)
		return err
	}
	return s.refreshIndex()
}

func (s *Store) refreshIndex() error {
	events, err := s.readAllLocked()
	if err != nil {
		return err
	}

	idx := Index{}
	taskSet := map[string]bool{}
	for i, e := range events {
		if i == 0 || e.Timestamp < idx.OldestTimestamp {
			idx.OldestTimestamp = e.Timestamp
		}
		if e.Timestamp > idx.NewestTimestamp {
			idx.NewestTimestamp = e.Timestamp
		}
		taskSet[e.TaskID] = true
	}
	idx.EventCount = len(events)
	for id := range taskSet {
		idx.TaskIDs = append(idx.TaskIDs, id)
	}
	sort.Strings(idx.TaskIDs)

	b, err := json.MarshalIndent(idx, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(s.indexPath(), b, 0o644)
}

// ReadIndex returns the current index.json contents.
func (s *Store) ReadIndex() (Index, error) {
	b, err := os.ReadFile(s.indexPath())
	if os.IsNotExist(err) {
		return Index{}, nil
	}
	if err != nil {
		return Index{}, err
	}
	var idx Index
	if err := json.Unmarshal(b, &idx); err != nil {
		return Index{}, err
	}
	return idx, nil
}

// StartCompaction schedules periodic compaction to maxEvents using the
// given cron expression (default "@every 1h"), holding the store's lock for
// the duration of each run and releasing it in the cleanup path even on
// failure.
func (s *Store) StartCompaction(schedule string, maxEvents int) error {
	if schedule == "" {
		schedule = "@every 1h"
	}
	c := cron.New()
	_, err := c.AddFunc(schedule, func() {
		if _, err := s.AcquireLock(); err != nil {
			s.log.V(1).Info("compaction skipped, lock held", "error", err.Error())
			return
		}
		defer s.ReleaseLock()
		if err := s.Compact(maxEvents); err != nil {
			s.log.Error(err, "periodic compaction failed")
		}
	})
	if err != nil {
		return err
	}
	s.cron = c
	c.Start()
	return nil
}

// Destroy stops the compaction timer and releases any lock this instance
// holds.
func (s *Store) Destroy() {
	if s.cron != nil {
		s.cron.Stop()
	}
	if s.holder != "" {
		_ = s.ReleaseLock()
	}
}
