/*
Copyright 2026.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0
*/

package ledgerstore

import "errors"

var (
	// ErrLockHeld is returned when acquireLock finds a live (non-stale) lock
	// held by another holder.
	ErrLockHeld = errors.New("ledgerstore: lock held by another process")

	// ErrNotLocked is returned when releaseLock is called without a held
	// lock.
	ErrNotLocked = errors.New("ledgerstore: store is not locked")
)
