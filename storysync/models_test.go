// Copyright 2025 Toly Pochkin
// SPDX-License-Identifier: Apache-2.0

package storysync

import (
	"encoding/base64"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestNewStoryValidate(t *testing.T) {
	valid := &NewStory{Description: "a trip", Photo: []byte("img")}
	require.NoError(t, valid.Validate())

	var verr *ValidationError

	err := (&NewStory{Photo: []byte("img")}).Validate()
	require.ErrorAs(t, err, &verr)
	require.Equal(t, "description", verr.Field)

	err = (&NewStory{Description: "   ", Photo: []byte("img")}).Validate()
	require.ErrorAs(t, err, &verr)
	require.Equal(t, "description", verr.Field)

	err = (&NewStory{Description: "no photo"}).Validate()
	require.ErrorAs(t, err, &verr)
	require.Equal(t, "photo", verr.Field)
}

func TestPhotoDataURLRoundTrip(t *testing.T) {
	photo := []byte{0xff, 0xd8, 0xff, 0xe0, 0x00, 0x10}

	encoded := EncodePhotoDataURL(photo, "image/png")
	require.Equal(t, "data:image/png;base64,"+base64.StdEncoding.EncodeToString(photo), encoded)

	decoded, mimeType, err := DecodePhotoDataURL(encoded)
	require.NoError(t, err)
	require.Equal(t, photo, decoded)
	require.Equal(t, "image/png", mimeType)
}

func TestEncodePhotoDataURLDefaultsToJPEG(t *testing.T) {
	encoded := EncodePhotoDataURL([]byte("x"), "")
	require.Contains(t, encoded, "data:image/jpeg;base64,")
}

func TestDecodePhotoDataURLAcceptsBareBase64(t *testing.T) {
	photo := []byte("raw bytes")
	decoded, mimeType, err := DecodePhotoDataURL(base64.StdEncoding.EncodeToString(photo))
	require.NoError(t, err)
	require.Equal(t, photo, decoded)
	require.Empty(t, mimeType)
}

func TestDecodePhotoDataURLRejectsGarbage(t *testing.T) {
	_, _, err := DecodePhotoDataURL("data:image/jpeg,not-base64-marked")
	require.Error(t, err)

	_, _, err = DecodePhotoDataURL("!!! not base64 !!!")
	require.Error(t, err)
}

func TestDraftSubmissionRoundTrip(t *testing.T) {
	photo := []byte("jpeg payload")
	lat, lon := -6.2, 106.8
	draft := &Draft{
		TempID:      "draft-1",
		Description: "queued story",
		PhotoBase64: EncodePhotoDataURL(photo, "image/jpeg"),
		PhotoType:   "image/jpeg",
		Lat:         &lat,
		Lon:         &lon,
		CreatedAt:   time.Now().UTC(),
	}

	submission, err := draft.Submission()
	require.NoError(t, err)
	require.Equal(t, "queued story", submission.Description)
	require.Equal(t, photo, submission.Photo)
	require.Equal(t, "image/jpeg", submission.PhotoType)
	require.Equal(t, lat, *submission.Lat)
	require.Equal(t, lon, *submission.Lon)
}

func TestDraftSubmissionFailsOnUndecodablePhoto(t *testing.T) {
	draft := &Draft{TempID: "draft-2", PhotoBase64: "%%%"}
	_, err := draft.Submission()
	require.Error(t, err)
	require.Contains(t, err.Error(), "draft-2")
}
