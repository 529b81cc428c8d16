// Copyright 2025 Toly Pochkin
// SPDX-License-Identifier: Apache-2.0

package storyapi

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/mobiletoly/go-storysync/storysync"
)

func staticToken(token string) TokenFunc {
	return func(ctx context.Context) (string, error) { return token, nil }
}

func writeJSON(t *testing.T, w http.ResponseWriter, status int, body any) {
	t.Helper()
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	require.NoError(t, json.NewEncoder(w).Encode(body))
}

func TestListStoriesSendsPagingAndAuth(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodGet, r.Method)
		require.Equal(t, "/stories", r.URL.Path)
		require.Equal(t, "2", r.URL.Query().Get("page"))
		require.Equal(t, "5", r.URL.Query().Get("size"))
		require.Equal(t, "1", r.URL.Query().Get("location"))
		require.Equal(t, "Bearer token-abc", r.Header.Get("Authorization"))
		writeJSON(t, w, http.StatusOK, map[string]any{
			"error":   false,
			"message": "Stories fetched successfully",
			"listStory": []map[string]any{
				{"id": "story-1", "description": "first", "photoUrl": "https://cdn/1.jpg", "lat": -6.2, "lon": 106.8, "createdAt": "2025-06-01T12:00:00Z"},
				{"id": "story-2", "description": "second", "createdAt": "2025-06-02T12:00:00Z"},
			},
		})
	}))
	defer server.Close()

	client := NewClient(server.URL, staticToken("token-abc"), nil)
	stories, err := client.ListStories(context.Background(), storysync.ListOptions{Page: 2, Size: 5, WithLocation: true})
	require.NoError(t, err)
	require.Len(t, stories, 2)
	require.Equal(t, "story-1", stories[0].ID)
	require.Equal(t, -6.2, *stories[0].Lat)
	require.Nil(t, stories[1].Lat)
}

func TestListStoriesAppliesDefaultPaging(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "1", r.URL.Query().Get("page"))
		require.Equal(t, "10", r.URL.Query().Get("size"))
		require.Equal(t, "0", r.URL.Query().Get("location"))
		writeJSON(t, w, http.StatusOK, map[string]any{"error": false, "listStory": []any{}})
	}))
	defer server.Close()

	client := NewClient(server.URL, nil, nil)
	_, err := client.ListStories(context.Background(), storysync.ListOptions{})
	require.NoError(t, err)
}

func TestStoryByID(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/stories/abc123", r.URL.Path)
		writeJSON(t, w, http.StatusOK, map[string]any{
			"error": false,
			"story": map[string]any{"id": "abc123", "description": "a detail", "createdAt": "2025-06-01T12:00:00Z"},
		})
	}))
	defer server.Close()

	client := NewClient(server.URL, nil, nil)
	story, err := client.StoryByID(context.Background(), "abc123")
	require.NoError(t, err)
	require.Equal(t, "abc123", story.ID)
	require.Equal(t, "a detail", story.Description)
}

func TestLoginReturnsCredentials(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/login", r.URL.Path)
		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		require.Equal(t, "alice@example.com", body["email"])
		require.Equal(t, "s3cret", body["password"])
		writeJSON(t, w, http.StatusOK, map[string]any{
			"error":       false,
			"message":     "success",
			"loginResult": map[string]string{"userId": "user-1", "name": "Alice", "token": "jwt-abc"},
		})
	}))
	defer server.Close()

	client := NewClient(server.URL, nil, nil)
	result, err := client.Login(context.Background(), "alice@example.com", "s3cret")
	require.NoError(t, err)
	require.Equal(t, "user-1", result.UserID)
	require.Equal(t, "Alice", result.Name)
	require.Equal(t, "jwt-abc", result.Token)
}

func TestLoginRejectionBecomesAPIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(t, w, http.StatusUnauthorized, map[string]any{
			"error":   true,
			"message": "Invalid password",
		})
	}))
	defer server.Close()

	client := NewClient(server.URL, nil, nil)
	_, err := client.Login(context.Background(), "alice@example.com", "wrong")
	require.Error(t, err)

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	require.Equal(t, http.StatusUnauthorized, apiErr.StatusCode)
	require.Equal(t, "Invalid password", apiErr.Message)
	require.False(t, storysync.IsNetworkError(err), "rejections must not classify as network errors")
}

func TestRegister(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/register", r.URL.Path)
		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		require.Equal(t, "Alice", body["name"])
		writeJSON(t, w, http.StatusCreated, map[string]any{"error": false, "message": "User created"})
	}))
	defer server.Close()

	client := NewClient(server.URL, nil, nil)
	require.NoError(t, client.Register(context.Background(), "Alice", "alice@example.com", "s3cret"))
}

func TestCreateStorySendsMultipart(t *testing.T) {
	photo := []byte{0xff, 0xd8, 0xff, 0xe0}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/stories", r.URL.Path)
		require.Equal(t, "Bearer token-abc", r.Header.Get("Authorization"))

		require.NoError(t, r.ParseMultipartForm(1<<20))
		require.Equal(t, "Hiking trip", r.FormValue("description"))
		require.Equal(t, "-6.2", r.FormValue("lat"))
		require.Equal(t, "106.8", r.FormValue("lon"))

		file, header, err := r.FormFile("photo")
		require.NoError(t, err)
		defer file.Close()
		require.Equal(t, "photo.jpg", header.Filename)
		data, err := io.ReadAll(file)
		require.NoError(t, err)
		require.Equal(t, photo, data)

		writeJSON(t, w, http.StatusCreated, map[string]any{"error": false, "message": "Story created"})
	}))
	defer server.Close()

	lat, lon := -6.2, 106.8
	client := NewClient(server.URL, staticToken("token-abc"), nil)
	err := client.CreateStory(context.Background(), &storysync.NewStory{
		Description: "Hiking trip",
		Photo:       photo,
		PhotoType:   "image/jpeg",
		Lat:         &lat,
		Lon:         &lon,
	})
	require.NoError(t, err)
}

func TestCreateStoryAnonymousUsesGuestEndpoint(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/stories/guest", r.URL.Path)
		require.Empty(t, r.Header.Get("Authorization"))
		writeJSON(t, w, http.StatusCreated, map[string]any{"error": false, "message": "Story created"})
	}))
	defer server.Close()

	client := NewClient(server.URL, nil, nil)
	err := client.CreateStory(context.Background(), &storysync.NewStory{
		Description: "anonymous story",
		Photo:       []byte("img"),
	})
	require.NoError(t, err)
}

func TestCreateStoryOmitsLocationFieldsWhenUnset(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseMultipartForm(1<<20))
		_, hasLat := r.MultipartForm.Value["lat"]
		_, hasLon := r.MultipartForm.Value["lon"]
		require.False(t, hasLat)
		require.False(t, hasLon)
		writeJSON(t, w, http.StatusCreated, map[string]any{"error": false})
	}))
	defer server.Close()

	client := NewClient(server.URL, nil, nil)
	err := client.CreateStory(context.Background(), &storysync.NewStory{
		Description: "no location",
		Photo:       []byte("img"),
	})
	require.NoError(t, err)
}

func TestTransportFailureClassifiesAsNetworkError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	server.Close() // nothing is listening anymore

	client := NewClient(server.URL, nil, nil)
	_, err := client.ListStories(context.Background(), storysync.ListOptions{})
	require.Error(t, err)
	require.True(t, storysync.IsNetworkError(err))

	err = client.CreateStory(context.Background(), &storysync.NewStory{
		Description: "unreachable", Photo: []byte("img"),
	})
	require.Error(t, err)
	require.True(t, storysync.IsNetworkError(err))
}

func TestHTTPErrorWithoutEnvelopeBecomesAPIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad gateway", http.StatusBadGateway)
	}))
	defer server.Close()

	client := NewClient(server.URL, nil, nil)
	_, err := client.ListStories(context.Background(), storysync.ListOptions{})
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	require.Equal(t, http.StatusBadGateway, apiErr.StatusCode)
}

func TestPingIgnoresResponseStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	client := NewClient(server.URL, nil, nil)
	require.NoError(t, client.Ping(context.Background()), "any response means reachable")

	server.Close()
	require.Error(t, client.Ping(context.Background()))
}
