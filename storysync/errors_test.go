// Copyright 2025 Toly Pochkin
// SPDX-License-Identifier: Apache-2.0

package storysync

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestIsNetworkError(t *testing.T) {
	require.False(t, IsNetworkError(nil))
	require.False(t, IsNetworkError(errors.New("application rejection")))
	require.False(t, IsNetworkError(&ValidationError{Field: "photo", Reason: "required"}))

	require.False(t, IsNetworkError(context.Canceled))
	require.False(t, IsNetworkError(&url.Error{Op: "Post", URL: "http://x", Err: context.Canceled}),
		"an aborted request must not be treated as a connectivity failure")

	require.True(t, IsNetworkError(context.DeadlineExceeded))
	require.True(t, IsNetworkError(&url.Error{Op: "Get", URL: "http://x", Err: errors.New("refused")}))
	require.True(t, IsNetworkError(&net.OpError{Op: "dial", Err: errors.New("timeout")}))

	// Wrapping must not hide the classification.
	wrapped := fmt.Errorf("failed to send HTTP request: %w",
		&url.Error{Op: "Post", URL: "http://x", Err: errors.New("reset")})
	require.True(t, IsNetworkError(wrapped))
}

func TestErrorPredicatesSeeThroughWrapping(t *testing.T) {
	verr := fmt.Errorf("creating story: %w", &ValidationError{Field: "description", Reason: "required"})
	require.True(t, IsValidationError(verr))
	require.False(t, IsStorageError(verr))

	serr := &StorageError{Op: "save draft", Err: errors.New("disk full")}
	require.True(t, IsStorageError(serr))
	require.ErrorContains(t, serr, "disk full")
	require.False(t, IsValidationError(serr))
}

func TestErrNoCachedDataSurvivesJoin(t *testing.T) {
	joined := errors.Join(ErrNoCachedData, &url.Error{
		Op: "Get", URL: "http://x", Err: &timeoutError{},
	})
	require.ErrorIs(t, joined, ErrNoCachedData)
	require.True(t, IsNetworkError(joined))
}

type timeoutError struct{}

func (*timeoutError) Error() string   { return "i/o timeout" }
func (*timeoutError) Timeout() bool   { return true }
func (*timeoutError) Temporary() bool { return true }

var _ net.Error = (*timeoutError)(nil)
