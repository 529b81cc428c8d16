// Copyright 2025 Toly Pochkin
// SPDX-License-Identifier: Apache-2.0

// Package storysync implements an offline-first synchronization engine for a
// location-tagged story client. Reads are served from the remote gateway when
// online and mirrored into a local cache for offline fallback; writes are
// written through when online and queued durably when not; queued work is
// replayed once connectivity returns.
package storysync

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// Config holds tunables for the engine.
type Config struct {
	// MaxDraftAttempts bounds retries of a draft that the remote keeps
	// rejecting with a non-network error. Once reached the draft is parked
	// (stalled) instead of retrying forever.
	MaxDraftAttempts int
	// EventBuffer is the capacity of the event channel.
	EventBuffer int
	// Thumbnailer optionally generates a small preview image stored with
	// queued drafts for offline listings. Kept injectable so this package
	// stays free of image codecs.
	Thumbnailer func(photo []byte) ([]byte, error)
}

// DefaultConfig returns the default engine configuration.
func DefaultConfig() *Config {
	return &Config{
		MaxDraftAttempts: 5,
		EventBuffer:      16,
	}
}

// Engine is the sync reconciler. All UI-facing operations enter here; the
// engine consults the connectivity oracle to pick the remote or cached path
// and autonomously drains queued work on reconnection.
type Engine struct {
	store   Store
	pending PendingLog
	gateway Gateway
	oracle  ConnectivityOracle
	session *Session
	config  *Config
	logger  *slog.Logger
	events  *notifier

	// syncMu coalesces reconciliation passes: a trigger that arrives while a
	// pass is running is dropped, never interleaved, so the same draft cannot
	// be submitted twice.
	syncMu sync.Mutex
}

// NewEngine creates a sync engine. session may be nil for anonymous usage.
func NewEngine(store Store, pending PendingLog, gateway Gateway, oracle ConnectivityOracle, session *Session, config *Config, logger *slog.Logger) (*Engine, error) {
	if store == nil || pending == nil || gateway == nil || oracle == nil {
		return nil, fmt.Errorf("store, pending log, gateway and connectivity oracle are required")
	}
	if config == nil {
		config = DefaultConfig()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		store:   store,
		pending: pending,
		gateway: gateway,
		oracle:  oracle,
		session: session,
		config:  config,
		logger:  logger,
		events:  newNotifier(config.EventBuffer),
	}, nil
}

// Events returns the engine's notification channel. Events are dropped when
// the subscriber does not keep up; they carry UI hints, not state.
func (e *Engine) Events() <-chan Event {
	return e.events.ch
}

// Run blocks until ctx is cancelled, reconciling queued work once per
// offline-to-online transition reported by the oracle.
func (e *Engine) Run(ctx context.Context) {
	reconnected := e.oracle.Reconnected()
	for {
		select {
		case <-ctx.Done():
			return
		case <-reconnected:
			e.logger.Info("Connectivity restored, starting reconciliation")
			if _, err := e.Reconcile(ctx); err != nil {
				e.logger.Warn("Reconciliation finished with errors", "error", err)
			}
		}
	}
}

// Stories lists stories, remote-first with cache fallback. Successful remote
// reads are mirrored into the cache.
func (e *Engine) Stories(ctx context.Context, opts ListOptions) (*StoriesResult, error) {
	if !e.oracle.IsOnline() {
		stories, err := e.store.AllStories(ctx)
		if err != nil {
			return nil, &StorageError{Op: "list stories", Err: err}
		}
		return &StoriesResult{
			Stories:   stories,
			FromCache: true,
			Message:   "stories retrieved from cache",
		}, nil
	}

	remote, err := e.gateway.ListStories(ctx, opts)
	if err != nil {
		if !IsNetworkError(err) {
			return nil, err // application-level rejection, surfaced as-is
		}
		e.logger.Warn("Story listing failed, falling back to cache", "error", err)
		stories, serr := e.store.AllStories(ctx)
		if serr != nil {
			return nil, &StorageError{Op: "list stories", Err: serr}
		}
		if len(stories) == 0 {
			return nil, errors.Join(ErrNoCachedData, err)
		}
		return &StoriesResult{
			Stories:   stories,
			FromCache: true,
			Message:   "stories retrieved from cache (network error)",
		}, nil
	}

	for i := range remote {
		if serr := e.store.SaveStory(ctx, &remote[i]); serr != nil {
			return nil, &StorageError{Op: "mirror story", Err: serr}
		}
	}
	return &StoriesResult{Stories: remote}, nil
}

// StoryDetail fetches a single story, remote-first with cache fallback.
func (e *Engine) StoryDetail(ctx context.Context, id string) (*StoryResult, error) {
	if !e.oracle.IsOnline() {
		cached, err := e.store.StoryByID(ctx, id)
		if err != nil {
			return nil, &StorageError{Op: "read story", Err: err}
		}
		if cached == nil {
			return nil, fmt.Errorf("story %s: %w", id, ErrNoCachedData)
		}
		return &StoryResult{
			Story:     cached,
			FromCache: true,
			Message:   "story retrieved from cache",
		}, nil
	}

	remote, err := e.gateway.StoryByID(ctx, id)
	if err != nil {
		if !IsNetworkError(err) {
			return nil, err
		}
		e.logger.Warn("Story detail fetch failed, falling back to cache",
			"story_id", id, "error", err)
		cached, serr := e.store.StoryByID(ctx, id)
		if serr != nil {
			return nil, &StorageError{Op: "read story", Err: serr}
		}
		if cached == nil {
			return nil, errors.Join(ErrNoCachedData, err)
		}
		return &StoryResult{
			Story:     cached,
			FromCache: true,
			Message:   "story retrieved from cache (network error)",
		}, nil
	}

	if serr := e.store.SaveStory(ctx, remote); serr != nil {
		return nil, &StorageError{Op: "mirror story", Err: serr}
	}
	return &StoryResult{Story: remote}, nil
}

// AddStory submits a story. Online it writes through to the gateway; offline,
// or when the write fails with a network error, the story is persisted as a
// draft and reported as queued, never as failed. Only validation errors
// detected before any network attempt fail a creation.
func (e *Engine) AddStory(ctx context.Context, story *NewStory) (*CreateResult, error) {
	if err := story.Validate(); err != nil {
		return nil, err
	}

	if !e.oracle.IsOnline() {
		return e.queueDraft(ctx, story, "story saved offline, will sync when online")
	}

	if err := e.gateway.CreateStory(ctx, story); err != nil {
		if !IsNetworkError(err) {
			return nil, err
		}
		e.logger.Warn("Story creation failed, queueing draft", "error", err)
		return e.queueDraft(ctx, story, "story saved offline due to network error, will sync when online")
	}
	return &CreateResult{Message: "story created"}, nil
}

// queueDraft is the single offline fallback for story creation: encode the
// photo for storage, persist the draft, report the temp ID.
func (e *Engine) queueDraft(ctx context.Context, story *NewStory, message string) (*CreateResult, error) {
	draft := &Draft{
		Description: story.Description,
		PhotoBase64: EncodePhotoDataURL(story.Photo, story.PhotoType),
		PhotoType:   story.PhotoType,
		Lat:         story.Lat,
		Lon:         story.Lon,
		CreatedAt:   time.Now().UTC(),
	}
	if e.session != nil {
		draft.AuthorID = e.session.UserID()
		draft.AuthorName = e.session.Name()
	}
	if e.config.Thumbnailer != nil {
		if thumb, err := e.config.Thumbnailer(story.Photo); err == nil {
			draft.Thumbnail = thumb
		} else {
			e.logger.Debug("Skipping draft thumbnail", "error", err)
		}
	}

	tempID, err := e.store.SaveDraft(ctx, draft)
	if err != nil {
		return nil, &StorageError{Op: "save draft", Err: err}
	}
	e.logger.Info("Story queued for sync", "temp_id", tempID)
	return &CreateResult{Offline: true, TempID: tempID, Message: message}, nil
}

// AddToFavorites marks a story as favorite. Favorites are local-only data;
// offline the mutation is applied optimistically and additionally queued so a
// reconciliation pass can confirm it.
func (e *Engine) AddToFavorites(ctx context.Context, story *Story) (*FavoriteResult, error) {
	if story == nil || story.ID == "" {
		return nil, &ValidationError{Field: "story", Reason: "story with remote id is required"}
	}

	if err := e.store.AddFavorite(ctx, story); err != nil {
		return nil, &StorageError{Op: "add favorite", Err: err}
	}

	queued := false
	if !e.oracle.IsOnline() {
		err := e.pending.Enqueue(ctx, &PendingFavorite{
			StoryID:  story.ID,
			Action:   FavoriteAdd,
			Story:    story,
			QueuedAt: time.Now().UTC(),
		})
		if err != nil {
			return nil, &StorageError{Op: "enqueue favorite", Err: err}
		}
		queued = true
	}

	e.events.publish(Event{Kind: EventFavoriteChanged, StoryID: story.ID, Favorite: true, Queued: queued})
	return &FavoriteResult{Favorite: true, Queued: queued}, nil
}

// RemoveFromFavorites unmarks a story as favorite, with the same offline
// queueing behavior as AddToFavorites.
func (e *Engine) RemoveFromFavorites(ctx context.Context, storyID string) (*FavoriteResult, error) {
	if storyID == "" {
		return nil, &ValidationError{Field: "storyId", Reason: "story id is required"}
	}

	if err := e.store.RemoveFavorite(ctx, storyID); err != nil {
		return nil, &StorageError{Op: "remove favorite", Err: err}
	}

	queued := false
	if !e.oracle.IsOnline() {
		err := e.pending.Enqueue(ctx, &PendingFavorite{
			StoryID:  storyID,
			Action:   FavoriteRemove,
			QueuedAt: time.Now().UTC(),
		})
		if err != nil {
			return nil, &StorageError{Op: "enqueue favorite", Err: err}
		}
		queued = true
	}

	e.events.publish(Event{Kind: EventFavoriteChanged, StoryID: storyID, Favorite: false, Queued: queued})
	return &FavoriteResult{Favorite: false, Queued: queued}, nil
}

// Favorites returns all favorited stories.
func (e *Engine) Favorites(ctx context.Context) ([]Story, error) {
	stories, err := e.store.AllFavorites(ctx)
	if err != nil {
		return nil, &StorageError{Op: "list favorites", Err: err}
	}
	return stories, nil
}

// IsFavorite reports whether a story is in the favorite set. Presence in the
// set is the sole source of truth for button state.
func (e *Engine) IsFavorite(ctx context.Context, storyID string) (bool, error) {
	fav, err := e.store.FavoriteByID(ctx, storyID)
	if err != nil {
		return false, &StorageError{Op: "read favorite", Err: err}
	}
	return fav != nil, nil
}

// Drafts returns the queued offline stories, oldest first.
func (e *Engine) Drafts(ctx context.Context) ([]Draft, error) {
	drafts, err := e.store.AllDrafts(ctx)
	if err != nil {
		return nil, &StorageError{Op: "list drafts", Err: err}
	}
	return drafts, nil
}

// Reconcile replays queued offline work against the gateway. Drafts and
// pending favorites are independent passes; a failure in one does not prevent
// the other from running. Items are processed strictly sequentially and an
// item is removed from its queue only after its outcome is known. A pass is
// bounded by the queue contents at its start; anything enqueued meanwhile is
// picked up by the next pass. Returns (nil, nil) when offline or when another
// pass is already in flight.
func (e *Engine) Reconcile(ctx context.Context) (*SyncSummary, error) {
	if !e.oracle.IsOnline() {
		return nil, nil
	}
	if !e.syncMu.TryLock() {
		e.logger.Debug("Reconciliation already in progress, skipping")
		return nil, nil
	}
	defer e.syncMu.Unlock()

	summary := &SyncSummary{}
	draftErr := e.drainDrafts(ctx, summary)
	favErr := e.drainFavorites(ctx, summary)

	if summary.processed() > 0 {
		e.logger.Info("Reconciliation complete",
			"drafts_synced", summary.DraftsSynced,
			"drafts_failed", summary.DraftsFailed,
			"drafts_stalled", summary.DraftsStalled,
			"favorites_applied", summary.FavoritesApplied,
			"favorites_dropped", summary.FavoritesDropped)
		e.events.publish(Event{
			Kind:             EventSyncCompleted,
			DraftsSynced:     summary.DraftsSynced,
			DraftsFailed:     summary.DraftsFailed + summary.DraftsStalled,
			FavoritesApplied: summary.FavoritesApplied,
		})
	}
	return summary, errors.Join(draftErr, favErr)
}

// drainDrafts submits queued drafts in FIFO creation order. A network error
// leaves the draft in place for the next pass; a permanent rejection counts
// against the draft's attempt budget and eventually parks it. Per-item
// failures never abort the pass; storage failures do.
func (e *Engine) drainDrafts(ctx context.Context, summary *SyncSummary) error {
	drafts, err := e.store.AllDrafts(ctx)
	if err != nil {
		return &StorageError{Op: "list drafts", Err: err}
	}

	for i := range drafts {
		draft := &drafts[i]
		if draft.Stalled {
			continue
		}

		submission, err := draft.Submission()
		if err != nil {
			// Undecodable photo cannot improve with retries.
			e.logger.Warn("Draft has undecodable photo, parking it",
				"temp_id", draft.TempID, "error", err)
			if merr := e.store.MarkDraftAttempt(ctx, draft.TempID, true); merr != nil {
				return &StorageError{Op: "mark draft", Err: merr}
			}
			summary.DraftsStalled++
			continue
		}

		if err := e.gateway.CreateStory(ctx, submission); err != nil {
			if IsNetworkError(err) {
				e.logger.Warn("Draft sync hit network error, keeping for next pass",
					"temp_id", draft.TempID, "error", err)
				summary.DraftsFailed++
				continue
			}
			stalled := draft.Attempts+1 >= e.config.MaxDraftAttempts
			e.logger.Warn("Draft rejected by remote",
				"temp_id", draft.TempID, "attempts", draft.Attempts+1,
				"stalled", stalled, "error", err)
			if merr := e.store.MarkDraftAttempt(ctx, draft.TempID, stalled); merr != nil {
				return &StorageError{Op: "mark draft", Err: merr}
			}
			if stalled {
				summary.DraftsStalled++
			} else {
				summary.DraftsFailed++
			}
			continue
		}

		if err := e.store.DeleteDraft(ctx, draft.TempID); err != nil {
			return &StorageError{Op: "delete draft", Err: err}
		}
		e.logger.Info("Draft synced", "temp_id", draft.TempID)
		summary.DraftsSynced++
	}
	return nil
}

// drainFavorites replays pending favorite actions in queued order. Each entry
// is claimed from the log first, by a removal conditional on its queued time:
// an entry superseded after the snapshot was taken stays in the log for the
// next pass and its stale action is never applied, so a toggle racing the
// drain cannot be lost or overwritten. Favorites are best-effort local data:
// a claimed entry whose application fails is dropped rather than retried, so
// a poison entry cannot block future drains.
func (e *Engine) drainFavorites(ctx context.Context, summary *SyncSummary) error {
	entries, err := e.pending.All(ctx)
	if err != nil {
		return &StorageError{Op: "list pending favorites", Err: err}
	}

	for i := range entries {
		entry := &entries[i]

		claimed, err := e.pending.Remove(ctx, entry.StoryID, entry.QueuedAt)
		if err != nil {
			return &StorageError{Op: "remove pending favorite", Err: err}
		}
		if !claimed {
			e.logger.Debug("Pending favorite superseded mid-pass, leaving for next pass",
				"story_id", entry.StoryID)
			continue
		}

		var applyErr error
		switch entry.Action {
		case FavoriteAdd:
			if entry.Story == nil {
				applyErr = fmt.Errorf("pending add for %s has no story snapshot", entry.StoryID)
			} else {
				applyErr = e.store.AddFavorite(ctx, entry.Story)
			}
		case FavoriteRemove:
			applyErr = e.store.RemoveFavorite(ctx, entry.StoryID)
		default:
			applyErr = fmt.Errorf("unknown pending favorite action %q", entry.Action)
		}

		if applyErr != nil {
			e.logger.Warn("Failed to apply pending favorite, dropping entry",
				"story_id", entry.StoryID, "action", entry.Action, "error", applyErr)
			summary.FavoritesDropped++
		} else {
			summary.FavoritesApplied++
		}
	}
	return nil
}
