/*
Copyright 2026.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0
*/

package ledgerstore

import (
	"encoding/json"
	"os"
	"time"

	"github.com/google/uuid"
)

// StaleAfter is the age at which a lock file is considered abandoned and
// may be overwritten by a new holder.
const StaleAfter = 30 * time.Second

// lockFile is the on-disk shape of .lock: holder UUID, timestamp in
// milliseconds since epoch, and the holding process's PID.
type lockFile struct {
	Holder    string `json:"holder"`
	Timestamp int64  `json:"timestamp"`
	PID       int    `json:"pid"`
}

// AcquireLock takes the store's file lock, overwriting any existing lock
// file that is older than StaleAfter. Returns the holder ID on success.
func (s *Store) AcquireLock() (string, error) {
	path := s.lockPath()

	if existing, err := readLockFile(path); err == nil {
		age := time.Since(time.UnixMilli(existing.Timestamp))
		if age < StaleAfter {
			return "", ErrLockHeld
		}
		s.log.Info("overwriting stale lock", "holder", existing.Holder, "age", age)
	}

	holder := uuid.NewString()
	lf := lockFile{Holder: holder, Timestamp: time.Now().UnixMilli(), PID: os.Getpid()}
	b, err := json.Marshal(lf)
	if err != nil {
		return "", err
	}
	if err := os.WriteFile(path, b, 0o644); err != nil {
		return "", err
	}
	s.holder = holder
	return holder, nil
}

// ReleaseLock releases the lock this Store instance is currently holding.
func (s *Store) ReleaseLock() error {
	if s.holder == "" {
		return ErrNotLocked
	}
	path := s.lockPath()
	existing, err := readLockFile(path)
	if err == nil && existing.Holder == s.holder {
		_ = os.Remove(path)
	}
	s.holder = ""
	return nil
}

func readLockFile(path string) (lockFile, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return lockFile{}, err
	}
	var lf lockFile
	if err := json.Unmarshal(b, &lf); err != nil {
		return lockFile{}, err
	}
	return lf, nil
}
