// Package notifapi is the client for the hub's notification REST endpoints.
package notifapi

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"socialpulse/pkg/wire"

	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

var ErrUnauthorized = errors.New("notifapi: unauthorized")

// StatusError is returned for any other non-2xx response.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("notifapi: status %d: %s", e.Code, e.Body)
}

type Client struct {
	baseURL string
	token   string
	client  *http.Client
}

// New builds a client; every request is bounded by timeout.
func New(baseURL, token string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		client:  &http.Client{Timeout: timeout},
	}
}

func (c *Client) List(ctx context.Context, limit int) ([]wire.StoredNotification, error) {
	path := "/api/notifications"
	if limit > 0 {
		path += "?limit=" + strconv.Itoa(limit)
	}
	var out wire.NotificationList
	if err := c.do(ctx, http.MethodGet, path, &out); err != nil {
		return nil, err
	}
	return out.Notifications, nil
}

func (c *Client) Unread(ctx context.Context) (int64, error) {
	var out wire.UnreadCount
	if err := c.do(ctx, http.MethodGet, "/api/notifications/unread", &out); err != nil {
		return 0, err
	}
	return out.Count, nil
}

func (c *Client) MarkRead(ctx context.Context, id uint) error {
	return c.do(ctx, http.MethodPost, "/api/notifications/"+strconv.FormatUint(uint64(id), 10)+"/read", nil)
}

func (c *Client) MarkAllRead(ctx context.Context) error {
	return c.do(ctx, http.MethodPost, "/api/notifications/read-all", nil)
}

func (c *Client) CleanupExpired(ctx context.Context) (int64, error) {
	var out wire.CleanupResult
	if err := c.do(ctx, http.MethodPost, "/api/notifications/cleanup-expired", &out); err != nil {
		return 0, err
	}
	return out.Removed, nil
}

func (c *Client) do(ctx context.Context, method, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Accept", "application/json")
	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("notifapi: %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("notifapi: read body: %w", err)
	}
	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		return ErrUnauthorized
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return &StatusError{Code: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("notifapi: decode %s: %w", path, err)
	}
	return nil
}
