// Package clerk is a minimal client for the identity provider's management
// API: metadata writes during reconciliation and the user directory consumed
// by the admin listing. Calls are bounded by the provided context and the
// HTTP client's timeout; there are no in-process retries.
package clerk

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/jellydator/ttlcache/v3"
)

const directoryCacheKey = "directory"

// DirectoryUser is the subset of the provider's user record merged into the
// admin listing.
type DirectoryUser struct {
	ID               string `json:"id"`
	ImageURL         string `json:"image_url"`
	Banned           bool   `json:"banned"`
	TwoFactorEnabled bool   `json:"two_factor_enabled"`
	LastSignInAt     int64  `json:"last_sign_in_at"`
	LastActiveAt     int64  `json:"last_active_at"`
}

// Client talks to the provider's management API.
type Client struct {
	baseURL   string
	secretKey string
	http      *http.Client
	directory *ttlcache.Cache[string, []DirectoryUser]
}

// NewClient creates a management API client. directoryTTL bounds how long the
// admin listing may serve a stale directory snapshot.
func NewClient(baseURL, secretKey string, directoryTTL time.Duration) *Client {
	if directoryTTL <= 0 {
		directoryTTL = time.Minute
	}
	cache := ttlcache.New(
		ttlcache.WithTTL[string, []DirectoryUser](directoryTTL),
		ttlcache.WithDisableTouchOnHit[string, []DirectoryUser](),
	)
	go cache.Start()

	return &Client{
		baseURL:   strings.TrimRight(baseURL, "/"),
		secretKey: secretKey,
		http:      &http.Client{Timeout: 10 * time.Second},
		directory: cache,
	}
}

// Close stops the directory cache's janitor.
func (c *Client) Close() {
	c.directory.Stop()
}

// UpdateUserMetadata merges the given private metadata into the provider's
// user record.
func (c *Client) UpdateUserMetadata(ctx context.Context, userID string, private map[string]any) error {
	body, err := json.Marshal(map[string]any{"private_metadata": private})
	if err != nil {
		return fmt.Errorf("clerk: encoding metadata: %w", err)
	}
	return c.do(ctx, http.MethodPatch, fmt.Sprintf("/users/%s/metadata", userID), body, nil)
}

// Directory returns the provider's user listing, memoized for the configured
// TTL.
func (c *Client) Directory(ctx context.Context) ([]DirectoryUser, error) {
	if item := c.directory.Get(directoryCacheKey); item != nil {
		return item.Value(), nil
	}

	var users []DirectoryUser
	if err := c.do(ctx, http.MethodGet, "/users?limit=500&order_by=-created_at", nil, &users); err != nil {
		return nil, err
	}
	c.directory.Set(directoryCacheKey, users, ttlcache.DefaultTTL)
	return users, nil
}

func (c *Client) do(ctx context.Context, method, path string, body []byte, out any) error {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("clerk: building request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.secretKey)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("clerk: %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("clerk: %s %s: status %d: %s", method, path, resp.StatusCode, snippet)
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("clerk: decoding %s response: %w", path, err)
		}
	}
	return nil
}
