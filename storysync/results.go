// Copyright 2025 Toly Pochkin
// SPDX-License-Identifier: Apache-2.0

package storysync

// StoriesResult is the outcome of a story listing read.
type StoriesResult struct {
	Stories   []Story
	FromCache bool   // true when served from the local cache
	Message   string // human-readable origin note, e.g. cache fallback
}

// StoryResult is the outcome of a story detail read.
type StoryResult struct {
	Story     *Story
	FromCache bool
	Message   string
}

// CreateResult is the outcome of a story creation. A queued creation is not
// an error; Offline reports that the story was persisted locally and TempID
// identifies the draft awaiting reconciliation.
type CreateResult struct {
	Offline bool
	TempID  string
	Message string
}

// FavoriteResult is the outcome of a favorite toggle. Queued reports that the
// intent was recorded for replay instead of being confirmed immediately.
type FavoriteResult struct {
	Favorite bool // resulting button state
	Queued   bool
}

// SyncSummary reports what a reconciliation pass accomplished.
type SyncSummary struct {
	DraftsSynced     int // drafts accepted by the remote and deleted locally
	DraftsFailed     int // drafts left in place for a future pass
	DraftsStalled    int // drafts parked after repeated permanent rejections
	FavoritesApplied int
	FavoritesDropped int // pending favorites discarded after a failed apply
}

func (s *SyncSummary) processed() int {
	return s.DraftsSynced + s.DraftsFailed + s.DraftsStalled +
		s.FavoritesApplied + s.FavoritesDropped
}
