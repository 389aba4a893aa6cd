package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/nightowl-radio/livechat/internal/types"
)

// ErrStoreUnavailable covers any network or backend failure on a store
// call. Callers surface it and leave local state unchanged, no retry.
var ErrStoreUnavailable = errors.New("store unavailable")

const fetchLimit = 100

type SendRequest struct {
	Nickname  string `json:"nickname"`
	Body      string `json:"body"`
	SessionId string `json:"session_id,omitempty"`
	Ref       string `json:"ref,omitempty"`
}

// StoreClient issues reads and writes against the remote message store
// over its REST surface. It holds no state beyond the endpoint.
type StoreClient struct {
	baseURL string
	http    *http.Client
}

func NewStoreClient(baseURL string, httpClient *http.Client) *StoreClient {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	return &StoreClient{
		baseURL: baseURL,
		http:    httpClient,
	}
}

// FetchRecent returns up to limit stored messages ascending by creation
// time. The limit is capped at 100 server-side.
func (c *StoreClient) FetchRecent(ctx context.Context, limit int) ([]types.Message, error) {
	if limit <= 0 || limit > fetchLimit {
		limit = fetchLimit
	}

	url := fmt.Sprintf("%s/api/messages?limit=%d", c.baseURL, limit)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: unexpected status %d", ErrStoreUnavailable, resp.StatusCode)
	}

	var messages []types.Message
	if err := json.NewDecoder(resp.Body).Decode(&messages); err != nil {
		return nil, fmt.Errorf("%w: decode: %v", ErrStoreUnavailable, err)
	}

	return messages, nil
}

// Send writes one message to the store. A nil return means the message
// is durably stored, not that it is visible anywhere yet: visibility is
// driven solely by the realtime channel delivering the insert event.
func (c *StoreClient) Send(ctx context.Context, msg SendRequest) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}

	url := c.baseURL + "/api/messages"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusAccepted {
		return fmt.Errorf("%w: unexpected status %d", ErrStoreUnavailable, resp.StatusCode)
	}

	return nil
}
