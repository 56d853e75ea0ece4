// Package client calls the shared list api.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/astromechza/shared-list/pkg/api"
	"github.com/astromechza/shared-list/pkg/guard"
	"github.com/astromechza/shared-list/pkg/list"
)

// ErrUnauthorized is returned for 401 and 403 responses.
var ErrUnauthorized = errors.New("unauthorized")

// StatusError is any other non-success response.
type StatusError struct {
	Code    int
	Message string
}

func (e *StatusError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("unexpected status code %d: %s", e.Code, e.Message)
	}
	return fmt.Sprintf("unexpected status code: %d", e.Code)
}

type Client struct {
	baseUrl *url.URL
	http    *http.Client
}

// New accepts either a full url or a bare host:port.
func New(server string, httpClient *http.Client) (*Client, error) {
	if !strings.Contains(server, "://") {
		server = "http://" + server
	}
	baseUrl, err := url.Parse(server)
	if err != nil {
		return nil, err
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &Client{baseUrl: baseUrl, http: httpClient}, nil
}

func (c *Client) Fetch(ctx context.Context, code string) ([]list.Item, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseUrl.JoinPath(api.ListPath).String(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set(guard.Header, code)
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to get: %w", err)
	}
	defer resp.Body.Close()
	if err := checkStatus(resp); err != nil {
		return nil, err
	}
	var out struct {
		Items []list.Item `json:"items"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("failed to read body from get: %w", err)
	}
	if out.Items == nil {
		out.Items = []list.Item{}
	}
	return out.Items, nil
}

func (c *Client) Replace(ctx context.Context, code string, items []list.Item) error {
	if items == nil {
		items = []list.Item{}
	}
	body, err := json.Marshal(map[string]any{"items": items})
	if err != nil {
		return fmt.Errorf("failed to encode body: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseUrl.JoinPath(api.ListPath).String(), bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(guard.Header, code)
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("failed to post: %w", err)
	}
	defer resp.Body.Close()
	if err := checkStatus(resp); err != nil {
		return err
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

// Watch streams documents from the change feed into fn until ctx is done or
// the server goes away. The first document is the current state.
func (c *Client) Watch(ctx context.Context, code string, fn func(list.Document)) error {
	u := c.baseUrl.JoinPath(api.EventsPath)
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	header := http.Header{}
	header.Set(guard.Header, code)
	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, u.String(), header)
	if err != nil {
		if resp != nil {
			defer resp.Body.Close()
			if statusErr := checkStatus(resp); statusErr != nil {
				return statusErr
			}
		}
		return fmt.Errorf("failed to dial: %w", err)
	}
	defer conn.Close()

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			_ = conn.Close()
		case <-done:
		}
	}()

	for {
		var doc list.Document
		if err := conn.ReadJSON(&doc); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			if websocket.IsCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				slog.Info("change feed closed by server")
				return nil
			}
			return fmt.Errorf("failed to read message: %w", err)
		}
		fn(doc)
	}
}

func checkStatus(resp *http.Response) error {
	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return nil
	case resp.StatusCode == http.StatusUnauthorized, resp.StatusCode == http.StatusForbidden:
		return ErrUnauthorized
	}
	var out struct {
		Error string `json:"error"`
	}
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	_ = json.Unmarshal(raw, &out)
	return &StatusError{Code: resp.StatusCode, Message: out.Error}
}
