// Copyright 2025 Toly Pochkin
// SPDX-License-Identifier: Apache-2.0

package storysync

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"
)

// ValidationError reports malformed input detected before any I/O. It is
// never queued and never retried.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed for %q: %s", e.Field, e.Reason)
}

// IsValidationError reports whether err is a ValidationError.
func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// StorageError wraps a local store or pending log failure. There
// is no further fallback for these, so they surface to the caller as hard
// errors.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

// IsStorageError reports whether err is a StorageError.
func IsStorageError(err error) bool {
	var se *StorageError
	return errors.As(err, &se)
}

// ErrNoCachedData is returned when a read degraded to the cache but the cache
// had nothing to offer. Callers must never receive a false empty success.
var ErrNoCachedData = errors.New("remote unreachable and no cached data available")

// IsNetworkError reports whether err looks like a transport-level failure
// (gateway unreachable, timeout, connection reset) as opposed to a
// well-formed application rejection. Network errors trigger fallback to the
// cache on reads and to the queue on writes.
func IsNetworkError(err error) bool {
	if err == nil {
		return false
	}
	// A caller-cancelled request is not a connectivity problem; it must not
	// divert a write into the offline queue.
	if errors.Is(err, context.Canceled) {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}
