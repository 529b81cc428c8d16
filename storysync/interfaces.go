// Copyright 2025 Toly Pochkin
// SPDX-License-Identifier: Apache-2.0

package storysync

import (
	"context"
	"time"
)

// Store is the durable key-addressed storage for the three record families:
// cached remote stories, offline drafts, and favorites. Pure storage, no
// business logic. All operations are atomic at single-record granularity.
type Store interface {
	// Cached remote stories.
	SaveStory(ctx context.Context, story *Story) error
	AllStories(ctx context.Context) ([]Story, error)
	StoryByID(ctx context.Context, id string) (*Story, error) // (nil, nil) when unknown

	// Offline drafts. SaveDraft assigns and returns a fresh temp ID.
	SaveDraft(ctx context.Context, draft *Draft) (tempID string, err error)
	AllDrafts(ctx context.Context) ([]Draft, error)
	DeleteDraft(ctx context.Context, tempID string) error // no-op on unknown ID
	MarkDraftAttempt(ctx context.Context, tempID string, stalled bool) error

	// Favorites. Full story snapshots keyed by remote ID.
	AddFavorite(ctx context.Context, story *Story) error
	RemoveFavorite(ctx context.Context, id string) error // no-op on unknown ID
	AllFavorites(ctx context.Context) ([]Story, error)
	FavoriteByID(ctx context.Context, id string) (*Story, error) // (nil, nil) when unknown
}

// PendingLog is the durable, ordered log of favorite intents recorded while
// offline, keyed by story ID with overwrite-on-duplicate semantics.
type PendingLog interface {
	// Enqueue replaces any existing entry with the same story ID.
	Enqueue(ctx context.Context, action *PendingFavorite) error
	// All returns entries ordered by the time of their latest enqueue. It
	// does not clear the log; removal is the caller's responsibility once an
	// entry has been applied.
	All(ctx context.Context) ([]PendingFavorite, error)
	// Remove deletes the entry for storyID only if its queued time still
	// matches queuedAt, and reports whether it did. A mismatch means the
	// entry was superseded after the caller read it and must survive.
	Remove(ctx context.Context, storyID string, queuedAt time.Time) (bool, error)
	Clear(ctx context.Context) error
}

// ListOptions are the story listing parameters understood by the remote API.
type ListOptions struct {
	Page         int
	Size         int
	WithLocation bool
}

// Gateway abstracts the remote story API. Every call may fail with a
// network-class error (transport failure) or an application-level rejection.
type Gateway interface {
	ListStories(ctx context.Context, opts ListOptions) ([]Story, error)
	StoryByID(ctx context.Context, id string) (*Story, error)
	CreateStory(ctx context.Context, story *NewStory) error
}

// ConnectivityOracle exposes the current online/offline status and notifies
// once per offline-to-online transition.
type ConnectivityOracle interface {
	IsOnline() bool
	// Reconnected returns a channel that receives one value per
	// offline-to-online transition.
	Reconnected() <-chan struct{}
}
