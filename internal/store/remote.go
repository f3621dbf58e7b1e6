package store

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/codefionn/threadgate/internal/consts"
)

// Remote is a Gateway backed by a JSON-over-HTTP document API.
//
// Endpoints, relative to the configured base URL:
//
//	POST   /threads                  create, returns {"id": "..."}
//	GET    /threads?status=&limit=   list, returns {"threads": [...]}
//	GET    /threads/{id}             fetch one
//	GET    /threads/{id}/messages    ordered messages, {"messages": [...]}
//	POST   /threads/{id}/messages    append message
//	PATCH  /threads/{id}             partial update
type Remote struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

// NewRemote creates a gateway client for the document API at baseURL.
// A zero timeout falls back to the default persistence timeout.
func NewRemote(baseURL, apiKey string, timeout time.Duration) *Remote {
	if timeout <= 0 {
		timeout = consts.Timeout5Seconds
	}
	return &Remote{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		client:  &http.Client{Timeout: timeout},
	}
}

func (r *Remote) CreateThread(ctx context.Context, t *Thread) (string, error) {
	var resp struct {
		ID string `json:"id"`
	}
	if err := r.do(ctx, http.MethodPost, "/threads", t, &resp); err != nil {
		return "", err
	}
	if resp.ID == "" {
		return "", fmt.Errorf("store returned empty thread id")
	}
	return resp.ID, nil
}

func (r *Remote) ListThreads(ctx context.Context, filter ListFilter) ([]Thread, error) {
	q := url.Values{}
	if filter.Status != "" {
		q.Set("status", filter.Status)
	}
	if filter.Limit > 0 {
		q.Set("limit", strconv.Itoa(filter.Limit))
	}

	path := "/threads"
	if len(q) > 0 {
		path += "?" + q.Encode()
	}

	var resp struct {
		Threads []Thread `json:"threads"`
	}
	if err := r.do(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Threads, nil
}

func (r *Remote) GetThread(ctx context.Context, id string) (*Thread, error) {
	var t Thread
	if err := r.do(ctx, http.MethodGet, "/threads/"+url.PathEscape(id), nil, &t); err != nil {
		return nil, err
	}
	return &t, nil
}

func (r *Remote) ListMessages(ctx context.Context, threadID string) ([]Message, error) {
	var resp struct {
		Messages []Message `json:"messages"`
	}
	path := "/threads/" + url.PathEscape(threadID) + "/messages"
	if err := r.do(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Messages, nil
}

func (r *Remote) CreateMessage(ctx context.Context, m *Message) error {
	path := "/threads/" + url.PathEscape(m.ThreadID) + "/messages"
	return r.do(ctx, http.MethodPost, path, m, nil)
}

func (r *Remote) UpdateThread(ctx context.Context, id string, update ThreadUpdate) error {
	body := make(map[string]interface{})
	if update.Title != nil {
		body["title"] = *update.Title
	}
	if update.Archived != nil {
		body["archived"] = *update.Archived
	}
	if len(body) == 0 {
		return nil
	}
	return r.do(ctx, http.MethodPatch, "/threads/"+url.PathEscape(id), body, nil)
}

// do performs one API round trip, decoding a JSON response into out when
// out is non-nil. A 404 maps to ErrNotFound.
func (r *Remote) do(ctx context.Context, method, path string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request body: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, r.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if r.apiKey != "" {
		req.Header.Set("X-API-Key", r.apiKey)
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return fmt.Errorf("store request failed: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return ErrNotFound
	case resp.StatusCode >= 400:
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("store returned %d: %s", resp.StatusCode, strings.TrimSpace(string(data)))
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("failed to decode store response: %w", err)
		}
	}
	return nil
}
