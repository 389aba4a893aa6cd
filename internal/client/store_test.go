package client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/nightowl-radio/livechat/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFetchRecent(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/api/messages", r.URL.Path, "expected messages path")
			assert.Equal(t, "50", r.URL.Query().Get("limit"), "expected limit to pass through")

			w.Header().Set("Content-Type", "application/json")
			json.NewEncoder(w).Encode([]types.Message{
				{Id: 1, Nickname: "Nina", Body: "hello", CreatedAt: time.Now().UTC()},
				{Id: 2, Nickname: "Al", Body: "hey", CreatedAt: time.Now().UTC()},
			})
		}))
		defer ts.Close()

		c := NewStoreClient(ts.URL, nil)
		messages, err := c.FetchRecent(context.Background(), 50)
		assert.NoError(t, err, "expected no error")
		require.Len(t, messages, 2, "expected two messages")
		assert.Equal(t, "Nina", messages[0].Nickname, "expected first message nickname to match")
	})

	t.Run("repeat fetch returns the same sequence", func(t *testing.T) {
		history := []types.Message{
			{Id: 1, Nickname: "Nina", Body: "hello"},
			{Id: 2, Nickname: "Al", Body: "hey"},
		}
		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			json.NewEncoder(w).Encode(history)
		}))
		defer ts.Close()

		c := NewStoreClient(ts.URL, nil)
		first, err := c.FetchRecent(context.Background(), 100)
		require.NoError(t, err)
		second, err := c.FetchRecent(context.Background(), 100)
		require.NoError(t, err)
		assert.Equal(t, first, second, "expected repeated fetches to agree with no intervening writes")
	})

	t.Run("limit clamped", func(t *testing.T) {
		for _, limit := range []int{0, -1, 5000} {
			ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, "100", r.URL.Query().Get("limit"), "expected limit clamped to cap")
				json.NewEncoder(w).Encode([]types.Message{})
			}))

			c := NewStoreClient(ts.URL, nil)
			_, err := c.FetchRecent(context.Background(), limit)
			assert.NoError(t, err, "expected no error for limit %d", limit)
			ts.Close()
		}
	})

	t.Run("server error", func(t *testing.T) {
		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		}))
		defer ts.Close()

		c := NewStoreClient(ts.URL, nil)
		_, err := c.FetchRecent(context.Background(), 50)
		assert.ErrorIs(t, err, ErrStoreUnavailable, "expected store unavailable")
	})

	t.Run("unreachable", func(t *testing.T) {
		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
		ts.Close()

		c := NewStoreClient(ts.URL, nil)
		_, err := c.FetchRecent(context.Background(), 50)
		assert.ErrorIs(t, err, ErrStoreUnavailable, "expected store unavailable")
	})

	t.Run("malformed body", func(t *testing.T) {
		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte("not json"))
		}))
		defer ts.Close()

		c := NewStoreClient(ts.URL, nil)
		_, err := c.FetchRecent(context.Background(), 50)
		assert.ErrorIs(t, err, ErrStoreUnavailable, "expected store unavailable")
	})
}

func TestStoreSend(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, http.MethodPost, r.Method, "expected POST")
			assert.Equal(t, "/api/messages", r.URL.Path, "expected messages path")
			assert.Equal(t, "application/json", r.Header.Get("Content-Type"), "expected json content type")

			var req SendRequest
			require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
			assert.Equal(t, "Nina", req.Nickname, "expected nickname to match")
			assert.Equal(t, "hello world", req.Body, "expected body to match")
			assert.Equal(t, "s1", req.SessionId, "expected session id to match")

			w.WriteHeader(http.StatusAccepted)
		}))
		defer ts.Close()

		c := NewStoreClient(ts.URL, nil)
		err := c.Send(context.Background(), SendRequest{Nickname: "Nina", Body: "hello world", SessionId: "s1"})
		assert.NoError(t, err, "expected no error")
	})

	t.Run("rejected", func(t *testing.T) {
		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadRequest)
		}))
		defer ts.Close()

		c := NewStoreClient(ts.URL, nil)
		err := c.Send(context.Background(), SendRequest{Nickname: "Nina", Body: "hello"})
		assert.ErrorIs(t, err, ErrStoreUnavailable, "expected store unavailable")
	})

	t.Run("unreachable", func(t *testing.T) {
		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
		ts.Close()

		c := NewStoreClient(ts.URL, nil)
		err := c.Send(context.Background(), SendRequest{Nickname: "Nina", Body: "hello"})
		assert.ErrorIs(t, err, ErrStoreUnavailable, "expected store unavailable")
	})
}
