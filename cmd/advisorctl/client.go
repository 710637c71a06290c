package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ashureev/advisor/internal/api"
	"github.com/ashureev/advisor/internal/identity"
	"github.com/coder/websocket"
)

// client calls the advisor server as one anonymous user and session.
type client struct {
	base      *url.URL
	userID    string
	sessionID string
	http      *http.Client
}

func newClient(rawURL, userID, sessionID string) (*client, error) {
	base, err := url.Parse(strings.TrimRight(rawURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse server url: %w", err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, fmt.Errorf("server url must be http or https, got %q", rawURL)
	}
	if !identity.IsValidAnonID(userID) {
		return nil, fmt.Errorf("user id %q is not an anonymous advisor id", userID)
	}
	return &client{
		base:      base,
		userID:    userID,
		sessionID: sessionID,
		http:      &http.Client{Timeout: 30 * time.Second},
	}, nil
}

func (c *client) headers() http.Header {
	h := http.Header{}
	h.Set("Cookie", (&http.Cookie{Name: identity.AnonCookieName, Value: c.userID}).String())
	h.Set(identity.SessionHeaderName, c.sessionID)
	return h
}

func (c *client) do(ctx context.Context, method, path string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.base.String()+path, nil)
	if err != nil {
		return nil, err
	}
	req.Header = c.headers()
	return c.http.Do(req)
}

func (c *client) getSession(ctx context.Context) (*api.SessionView, error) {
	resp, err := c.do(ctx, http.MethodGet, "/api/advisor/session")
	if err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, statusError(resp)
	}
	var view api.SessionView
	if err := json.NewDecoder(resp.Body).Decode(&view); err != nil {
		return nil, fmt.Errorf("decode session: %w", err)
	}
	return &view, nil
}

func (c *client) resetSession(ctx context.Context) error {
	resp, err := c.do(ctx, http.MethodDelete, "/api/advisor/session")
	if err != nil {
		return fmt.Errorf("reset session: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		return statusError(resp)
	}
	return nil
}

func (c *client) dialChat(ctx context.Context) (*websocket.Conn, error) {
	u := *c.base
	if u.Scheme == "https" {
		u.Scheme = "wss"
	} else {
		u.Scheme = "ws"
	}
	u.Path += "/ws/advisor"
	conn, _, err := websocket.Dial(ctx, u.String(), &websocket.DialOptions{HTTPHeader: c.headers()})
	if err != nil {
		return nil, fmt.Errorf("connect to %s: %w", u.String(), err)
	}
	return conn, nil
}

func statusError(resp *http.Response) error {
	var body struct {
		Error string `json:"error"`
	}
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if json.Unmarshal(data, &body) == nil && body.Error != "" {
		return fmt.Errorf("server returned %d: %s", resp.StatusCode, body.Error)
	}
	return fmt.Errorf("server returned %d", resp.StatusCode)
}

// loadOrCreateUserID keeps one anonymous id per machine so sessions
// survive between runs.
func loadOrCreateUserID() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("locate config dir: %w", err)
	}
	path := filepath.Join(dir, "advisorctl", "user_id")
	if data, err := os.ReadFile(path); err == nil {
		if id := strings.TrimSpace(string(data)); identity.IsValidAnonID(id) {
			return id, nil
		}
	} else if !errors.Is(err, os.ErrNotExist) {
		return "", fmt.Errorf("read user id: %w", err)
	}

	id := identity.NewAnonID()
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return "", fmt.Errorf("create config dir: %w", err)
	}
	if err := os.WriteFile(path, []byte(id+"\n"), 0o600); err != nil {
		return "", fmt.Errorf("write user id: %w", err)
	}
	return id, nil
}
