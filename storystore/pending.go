// Copyright 2025 Toly Pochkin
// SPDX-License-Identifier: Apache-2.0

package storystore

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/mobiletoly/go-storysync/storysync"
)

// PendingLog implements storysync.PendingLog on SQLite. Entries are keyed by
// story id; enqueueing a new action for a story replaces the previous one,
// and its queued_at moves to the time of the latest write so replay order
// follows the most recent intent.
type PendingLog struct {
	store  *Store
	logger *slog.Logger
}

// NewPendingLog creates a pending action log sharing the store's database.
func NewPendingLog(store *Store, logger *slog.Logger) *PendingLog {
	if logger == nil {
		logger = slog.Default()
	}
	return &PendingLog{store: store, logger: logger}
}

// Enqueue records a favorite intent, superseding any existing entry with the
// same story id.
func (l *PendingLog) Enqueue(ctx context.Context, action *storysync.PendingFavorite) error {
	var storyJSON any
	if action.Story != nil {
		data, err := json.Marshal(action.Story)
		if err != nil {
			return fmt.Errorf("failed to marshal story snapshot: %w", err)
		}
		storyJSON = string(data)
	}

	queuedAt := action.QueuedAt
	if queuedAt.IsZero() {
		queuedAt = time.Now().UTC()
	}

	_, err := l.store.db.ExecContext(ctx, `
		INSERT INTO pending_favorite_actions (story_id, action, story_json, queued_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(story_id) DO UPDATE SET
			action = excluded.action,
			story_json = excluded.story_json,
			queued_at = excluded.queued_at
	`, action.StoryID, string(action.Action), storyJSON, formatTime(queuedAt))
	if err != nil {
		return fmt.Errorf("failed to enqueue favorite action for %s: %w", action.StoryID, err)
	}

	l.logger.Debug("Queued favorite action",
		"story_id", action.StoryID, "action", action.Action)
	return nil
}

// All returns the full log ordered by the time of the latest enqueue. The log
// is not cleared; callers remove entries once their outcome is known.
func (l *PendingLog) All(ctx context.Context) ([]storysync.PendingFavorite, error) {
	rows, err := l.store.db.QueryContext(ctx, `
		SELECT story_id, action, story_json, queued_at
		FROM pending_favorite_actions
		ORDER BY queued_at, story_id
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query pending favorite actions: %w", err)
	}
	defer rows.Close()

	var entries []storysync.PendingFavorite
	for rows.Next() {
		var entry storysync.PendingFavorite
		var action string
		var storyJSON *string
		var queuedAt string
		if err := rows.Scan(&entry.StoryID, &action, &storyJSON, &queuedAt); err != nil {
			return nil, fmt.Errorf("failed to scan pending favorite action: %w", err)
		}
		entry.Action = storysync.FavoriteAction(action)
		entry.QueuedAt = parseTime(queuedAt)
		if storyJSON != nil && *storyJSON != "" {
			var story storysync.Story
			if err := json.Unmarshal([]byte(*storyJSON), &story); err != nil {
				return nil, fmt.Errorf("failed to unmarshal story snapshot for %s: %w", entry.StoryID, err)
			}
			entry.Story = &story
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

// Remove deletes the entry for a story id only if its queued_at still equals
// queuedAt, reporting whether a row was deleted. An entry superseded since
// the caller read it keeps its newer queued_at and stays in the log.
func (l *PendingLog) Remove(ctx context.Context, storyID string, queuedAt time.Time) (bool, error) {
	res, err := l.store.db.ExecContext(ctx, `
		DELETE FROM pending_favorite_actions WHERE story_id = ? AND queued_at = ?
	`, storyID, formatTime(queuedAt))
	if err != nil {
		return false, fmt.Errorf("failed to remove pending favorite action for %s: %w", storyID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to remove pending favorite action for %s: %w", storyID, err)
	}
	return n > 0, nil
}

// Clear removes all entries.
func (l *PendingLog) Clear(ctx context.Context) error {
	if _, err := l.store.db.ExecContext(ctx, `DELETE FROM pending_favorite_actions`); err != nil {
		return fmt.Errorf("failed to clear pending favorite actions: %w", err)
	}
	return nil
}
