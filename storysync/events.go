// Copyright 2025 Toly Pochkin
// SPDX-License-Identifier: Apache-2.0

package storysync

// EventKind identifies an engine notification.
type EventKind string

const (
	// EventSyncCompleted is published after a reconciliation pass that
	// processed at least one queued item.
	EventSyncCompleted EventKind = "sync_completed"
	// EventFavoriteChanged is published after a favorite add/remove, online
	// or queued.
	EventFavoriteChanged EventKind = "favorite_changed"
)

// Event is a notification published by the engine for the presentation layer.
type Event struct {
	Kind EventKind

	// Sync summary (EventSyncCompleted).
	DraftsSynced     int
	DraftsFailed     int
	FavoritesApplied int

	// Favorite change (EventFavoriteChanged).
	StoryID  string
	Favorite bool
	Queued   bool
}

// notifier fans events out to subscribers without ever blocking the engine.
type notifier struct {
	ch chan Event
}

func newNotifier(buffer int) *notifier {
	if buffer <= 0 {
		buffer = 16
	}
	return &notifier{ch: make(chan Event, buffer)}
}

// publish drops the event when no subscriber is keeping up. Events are
// advisory UI signals, not state.
func (n *notifier) publish(ev Event) {
	select {
	case n.ch <- ev:
	default:
	}
}
