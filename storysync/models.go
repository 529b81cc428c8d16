// Copyright 2025 Toly Pochkin
// SPDX-License-Identifier: Apache-2.0

package storysync

import (
	"encoding/base64"
	"fmt"
	"strings"
	"time"
)

// Story is a story record as known to the remote system. Once a story has a
// remote ID its content is immutable in the local cache except for full
// replacement on re-fetch.
type Story struct {
	ID          string    `json:"id"`
	Description string    `json:"description"`
	PhotoURL    string    `json:"photoUrl,omitempty"`
	PhotoBase64 string    `json:"photoBase64,omitempty"`
	PhotoType   string    `json:"photoType,omitempty"`
	Lat         *float64  `json:"lat,omitempty"`
	Lon         *float64  `json:"lon,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
	AuthorID    string    `json:"authorId,omitempty"`
	AuthorName  string    `json:"name,omitempty"`
}

// NewStory is a story submission before the remote system has assigned an ID.
// Photo carries the raw binary payload.
type NewStory struct {
	Description string
	Photo       []byte
	PhotoType   string // MIME type, e.g. "image/jpeg"
	Lat         *float64
	Lon         *float64
}

// Validate checks required fields before any I/O is attempted.
func (n *NewStory) Validate() error {
	if strings.TrimSpace(n.Description) == "" {
		return &ValidationError{Field: "description", Reason: "description is required"}
	}
	if len(n.Photo) == 0 {
		return &ValidationError{Field: "photo", Reason: "photo is required"}
	}
	return nil
}

// Draft is a story authored while offline, waiting to be submitted to the
// remote system. It is keyed by a locally generated TempID and never shares
// an ID space with remote stories.
type Draft struct {
	TempID      string    `json:"tempId"`
	Description string    `json:"description"`
	PhotoBase64 string    `json:"photoBase64"`
	PhotoType   string    `json:"photoType"`
	Thumbnail   []byte    `json:"-"` // optional JPEG preview for offline listings
	Lat         *float64  `json:"lat,omitempty"`
	Lon         *float64  `json:"lon,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
	AuthorID    string    `json:"authorId,omitempty"`
	AuthorName  string    `json:"authorName,omitempty"`

	// Retry bookkeeping for the drain pass. Attempts counts permanent
	// rejections only; a stalled draft is skipped by future drains and kept
	// for manual intervention.
	Attempts int  `json:"attempts"`
	Stalled  bool `json:"stalled"`
}

// Submission reconstructs the remote submission from the stored draft,
// decoding the text-encoded photo back to binary.
func (d *Draft) Submission() (*NewStory, error) {
	photo, photoType, err := DecodePhotoDataURL(d.PhotoBase64)
	if err != nil {
		return nil, fmt.Errorf("draft %s has undecodable photo: %w", d.TempID, err)
	}
	if photoType == "" {
		photoType = d.PhotoType
	}
	return &NewStory{
		Description: d.Description,
		Photo:       photo,
		PhotoType:   photoType,
		Lat:         d.Lat,
		Lon:         d.Lon,
	}, nil
}

// FavoriteAction is the kind of a queued favorite mutation.
type FavoriteAction string

const (
	FavoriteAdd    FavoriteAction = "add"
	FavoriteRemove FavoriteAction = "remove"
)

// PendingFavorite is a favorite mutation recorded while offline. At most one
// pending entry exists per story; a newer action supersedes the older one
// because only the final desired state matters.
type PendingFavorite struct {
	StoryID  string         `json:"storyId"`
	Action   FavoriteAction `json:"action"`
	Story    *Story         `json:"storyData,omitempty"` // required for add
	QueuedAt time.Time      `json:"timestamp"`
}

// EncodePhotoDataURL encodes raw photo bytes as a data URL for storage
// portability, e.g. "data:image/jpeg;base64,<payload>".
func EncodePhotoDataURL(photo []byte, mimeType string) string {
	if mimeType == "" {
		mimeType = "image/jpeg"
	}
	return "data:" + mimeType + ";base64," + base64.StdEncoding.EncodeToString(photo)
}

// DecodePhotoDataURL decodes a stored data URL back to raw bytes and MIME
// type. A bare base64 string (no data: prefix) is accepted as well.
func DecodePhotoDataURL(s string) (photo []byte, mimeType string, err error) {
	payload := s
	if strings.HasPrefix(s, "data:") {
		rest := strings.TrimPrefix(s, "data:")
		semi := strings.Index(rest, ";base64,")
		if semi < 0 {
			return nil, "", fmt.Errorf("malformed data URL")
		}
		mimeType = rest[:semi]
		payload = rest[semi+len(";base64,"):]
	}
	photo, err = base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, "", fmt.Errorf("failed to decode base64 photo: %w", err)
	}
	return photo, mimeType, nil
}
