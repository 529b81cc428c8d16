// Copyright 2025 Toly Pochkin
// SPDX-License-Identifier: Apache-2.0

// Package storystore persists the engine's three record families (cached
// stories, offline drafts, favorites), the pending favorite action log and
// the scalar session fields in a local SQLite database.
package storystore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/mobiletoly/go-storysync/storystore/migrations"
	"github.com/mobiletoly/go-storysync/storysync"
)

// Store implements storysync.Store and storysync.SessionStore on SQLite.
// All operations are atomic at single-record granularity; no multi-record
// transactions are needed because no operation touches more than one logical
// record.
type Store struct {
	db     *sql.DB
	logger *slog.Logger

	// tempMu guards temp id generation so ids stay monotonic even when two
	// drafts are saved within the same clock tick.
	tempMu       sync.Mutex
	lastTempNano int64
}

// Open opens (creating if needed) the local database at path and brings its
// schema up to date. path may be ":memory:" for tests.
func Open(path string, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}

	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_foreign_keys=on&_busy_timeout=5000&_txlock=immediate")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Single connection prevents SQLite locking issues between the engine
	// and a running reconciliation pass.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if _, err := db.Exec(`PRAGMA synchronous = NORMAL`); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set synchronous pragma: %w", err)
	}

	if err := migrations.Up(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	logger.Info("Story store opened", "path", path)
	return &Store{db: db, logger: logger}, nil
}

// DB exposes the underlying connection, mainly for tests and tooling.
func (s *Store) DB() *sql.DB { return s.db }

// Close closes the underlying database.
func (s *Store) Close() error { return s.db.Close() }

// --- Cached remote stories ---

// SaveStory upserts a story by its remote id. Overwriting is not an error;
// re-fetches replace the cached row wholesale.
func (s *Store) SaveStory(ctx context.Context, story *storysync.Story) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO stories (id, description, photo_url, photo_base64, photo_type, lat, lon, created_at, author_id, author_name)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			description = excluded.description,
			photo_url = excluded.photo_url,
			photo_base64 = excluded.photo_base64,
			photo_type = excluded.photo_type,
			lat = excluded.lat,
			lon = excluded.lon,
			created_at = excluded.created_at,
			author_id = excluded.author_id,
			author_name = excluded.author_name,
			cached_at = strftime('%Y-%m-%dT%H:%M:%fZ','now')
	`, story.ID, story.Description, story.PhotoURL, story.PhotoBase64, story.PhotoType,
		nullFloat(story.Lat), nullFloat(story.Lon), formatTime(story.CreatedAt),
		story.AuthorID, story.AuthorName)
	if err != nil {
		return fmt.Errorf("failed to save story %s: %w", story.ID, err)
	}
	return nil
}

// AllStories returns the cached snapshot, newest first.
func (s *Store) AllStories(ctx context.Context) ([]storysync.Story, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, description, photo_url, photo_base64, photo_type, lat, lon, created_at, author_id, author_name
		FROM stories
		ORDER BY created_at DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query stories: %w", err)
	}
	defer rows.Close()
	return scanStories(rows)
}

// StoryByID returns the cached story, or (nil, nil) when unknown.
func (s *Store) StoryByID(ctx context.Context, id string) (*storysync.Story, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, description, photo_url, photo_base64, photo_type, lat, lon, created_at, author_id, author_name
		FROM stories WHERE id = ?
	`, id)
	return scanStory(row)
}

// --- Offline drafts ---

// SaveDraft assigns a fresh temp id, persists the draft and returns the id.
func (s *Store) SaveDraft(ctx context.Context, draft *storysync.Draft) (string, error) {
	tempID := s.nextTempID()
	createdAt := draft.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO offline_stories (temp_id, description, photo_base64, photo_type, thumbnail, lat, lon, created_at, author_id, author_name)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, tempID, draft.Description, draft.PhotoBase64, draft.PhotoType, draft.Thumbnail,
		nullFloat(draft.Lat), nullFloat(draft.Lon), formatTime(createdAt),
		draft.AuthorID, draft.AuthorName)
	if err != nil {
		return "", fmt.Errorf("failed to save offline story: %w", err)
	}

	draft.TempID = tempID
	return tempID, nil
}

// AllDrafts returns queued drafts in FIFO creation order.
func (s *Store) AllDrafts(ctx context.Context) ([]storysync.Draft, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT temp_id, description, photo_base64, photo_type, thumbnail, lat, lon, created_at, author_id, author_name, attempts, stalled
		FROM offline_stories
		ORDER BY queued_at, temp_id
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query offline stories: %w", err)
	}
	defer rows.Close()

	var drafts []storysync.Draft
	for rows.Next() {
		var d storysync.Draft
		var lat, lon sql.NullFloat64
		var createdAt string
		var stalled int
		if err := rows.Scan(&d.TempID, &d.Description, &d.PhotoBase64, &d.PhotoType,
			&d.Thumbnail, &lat, &lon, &createdAt, &d.AuthorID, &d.AuthorName,
			&d.Attempts, &stalled); err != nil {
			return nil, fmt.Errorf("failed to scan offline story: %w", err)
		}
		d.Lat = floatPtr(lat)
		d.Lon = floatPtr(lon)
		d.CreatedAt = parseTime(createdAt)
		d.Stalled = stalled != 0
		drafts = append(drafts, d)
	}
	return drafts, rows.Err()
}

// DeleteDraft removes a draft. Deleting an unknown temp id is a no-op.
func (s *Store) DeleteDraft(ctx context.Context, tempID string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM offline_stories WHERE temp_id = ?`, tempID); err != nil {
		return fmt.Errorf("failed to delete offline story %s: %w", tempID, err)
	}
	return nil
}

// MarkDraftAttempt records one more permanent rejection for a draft and
// optionally parks it so future drains skip it.
func (s *Store) MarkDraftAttempt(ctx context.Context, tempID string, stalled bool) error {
	stalledInt := 0
	if stalled {
		stalledInt = 1
	}
	_, err := s.db.ExecContext(ctx, `
		UPDATE offline_stories SET attempts = attempts + 1, stalled = ? WHERE temp_id = ?
	`, stalledInt, tempID)
	if err != nil {
		return fmt.Errorf("failed to mark offline story %s: %w", tempID, err)
	}
	return nil
}

// nextTempID generates a monotonic, collision-free temp id for this device.
func (s *Store) nextTempID() string {
	s.tempMu.Lock()
	defer s.tempMu.Unlock()
	now := time.Now().UnixNano()
	if now <= s.lastTempNano {
		now = s.lastTempNano + 1
	}
	s.lastTempNano = now
	return fmt.Sprintf("draft-%d", now)
}

// --- Favorites ---

// AddFavorite upserts a story snapshot into the favorite set. Repeated adds
// converge to the same state.
func (s *Store) AddFavorite(ctx context.Context, story *storysync.Story) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO favorites (id, description, photo_url, photo_base64, photo_type, lat, lon, created_at, author_id, author_name)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			description = excluded.description,
			photo_url = excluded.photo_url,
			photo_base64 = excluded.photo_base64,
			photo_type = excluded.photo_type,
			lat = excluded.lat,
			lon = excluded.lon,
			created_at = excluded.created_at,
			author_id = excluded.author_id,
			author_name = excluded.author_name
	`, story.ID, story.Description, story.PhotoURL, story.PhotoBase64, story.PhotoType,
		nullFloat(story.Lat), nullFloat(story.Lon), formatTime(story.CreatedAt),
		story.AuthorID, story.AuthorName)
	if err != nil {
		return fmt.Errorf("failed to add favorite %s: %w", story.ID, err)
	}
	return nil
}

// RemoveFavorite deletes a story from the favorite set. Removing an unknown
// id is a no-op.
func (s *Store) RemoveFavorite(ctx context.Context, id string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM favorites WHERE id = ?`, id); err != nil {
		return fmt.Errorf("failed to remove favorite %s: %w", id, err)
	}
	return nil
}

// AllFavorites returns the favorite set, most recently added first.
func (s *Store) AllFavorites(ctx context.Context) ([]storysync.Story, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, description, photo_url, photo_base64, photo_type, lat, lon, created_at, author_id, author_name
		FROM favorites
		ORDER BY added_at DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query favorites: %w", err)
	}
	defer rows.Close()
	return scanStories(rows)
}

// FavoriteByID returns the favorited story, or (nil, nil) when absent.
func (s *Store) FavoriteByID(ctx context.Context, id string) (*storysync.Story, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, description, photo_url, photo_base64, photo_type, lat, lon, created_at, author_id, author_name
		FROM favorites WHERE id = ?
	`, id)
	return scanStory(row)
}

// --- Session fields ---

// SessionValue returns the stored session field, or "" when absent.
func (s *Store) SessionValue(ctx context.Context, key string) (string, error) {
	var value string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM session WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to read session %s: %w", key, err)
	}
	return value, nil
}

// SetSessionValue upserts a session field.
func (s *Store) SetSessionValue(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO session (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`, key, value)
	if err != nil {
		return fmt.Errorf("failed to write session %s: %w", key, err)
	}
	return nil
}

// DeleteSessionValue removes a session field; unknown keys are a no-op.
func (s *Store) DeleteSessionValue(ctx context.Context, key string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM session WHERE key = ?`, key); err != nil {
		return fmt.Errorf("failed to delete session %s: %w", key, err)
	}
	return nil
}

// EnsureInstallID returns this installation's stable identifier, generating
// and persisting a fresh UUID on first use. Drafts created on this device
// stay attributable across sessions.
func (s *Store) EnsureInstallID(ctx context.Context) (string, error) {
	id, err := s.SessionValue(ctx, "installId")
	if err != nil {
		return "", err
	}
	if id != "" {
		return id, nil
	}
	id = uuid.New().String()
	if err := s.SetSessionValue(ctx, "installId", id); err != nil {
		return "", err
	}
	return id, nil
}

// --- Row helpers ---

type rowScanner interface {
	Scan(dest ...any) error
}

func scanStoryFields(sc rowScanner) (*storysync.Story, error) {
	var story storysync.Story
	var lat, lon sql.NullFloat64
	var createdAt string
	err := sc.Scan(&story.ID, &story.Description, &story.PhotoURL, &story.PhotoBase64,
		&story.PhotoType, &lat, &lon, &createdAt, &story.AuthorID, &story.AuthorName)
	if err != nil {
		return nil, err
	}
	story.Lat = floatPtr(lat)
	story.Lon = floatPtr(lon)
	story.CreatedAt = parseTime(createdAt)
	return &story, nil
}

func scanStory(row *sql.Row) (*storysync.Story, error) {
	story, err := scanStoryFields(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan story: %w", err)
	}
	return story, nil
}

func scanStories(rows *sql.Rows) ([]storysync.Story, error) {
	var stories []storysync.Story
	for rows.Next() {
		story, err := scanStoryFields(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan story: %w", err)
		}
		stories = append(stories, *story)
	}
	return stories, rows.Err()
}

func nullFloat(v *float64) sql.NullFloat64 {
	if v == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *v, Valid: true}
}

func floatPtr(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	f := v.Float64
	return &f
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}
