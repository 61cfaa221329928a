// Package remote implements the authoritative-store client: JSON CRUD over
// HTTP plus a websocket subscription that pushes the full record set after
// every change. Collection[E] satisfies the syncer's RemoteStore contract.
package remote

import (
	"fmt"
	"log"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"
)

// Client holds the connection settings shared by all collections.
type Client struct {
	baseURL string
	token   func() string
	http    *http.Client
	logger  *log.Logger
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithHTTPClient overrides the underlying HTTP client.
func WithHTTPClient(h *http.Client) ClientOption {
	return func(c *Client) { c.http = h }
}

// WithLogger overrides the client's logger.
func WithLogger(l *log.Logger) ClientOption {
	return func(c *Client) { c.logger = l }
}

// WithTokenFunc installs a dynamic bearer-token source, for callers that
// refresh tokens during the process lifetime.
func WithTokenFunc(fn func() string) ClientOption {
	return func(c *Client) { c.token = fn }
}

// NewClient creates a client for the server at baseURL, authenticating
// every request with the given bearer token.
func NewClient(baseURL, token string, opts ...ClientOption) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   func() string { return token },
		http:    &http.Client{Timeout: 30 * time.Second},
		logger:  log.New(os.Stderr, "[remote] ", log.LstdFlags),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// collectionURL builds {base}/v1/users/{uid}/{name} with optional extra
// path segments, escaping every segment.
func (c *Client) collectionURL(userID, name string, extra ...string) string {
	parts := []string{c.baseURL, "v1", "users", url.PathEscape(userID), url.PathEscape(name)}
	for _, e := range extra {
		parts = append(parts, url.PathEscape(e))
	}
	return strings.Join(parts, "/")
}

// watchURL builds the websocket endpoint for a collection, switching the
// scheme to ws/wss and carrying the token as a query parameter, since
// websocket handshakes cannot set arbitrary headers from every runtime.
func (c *Client) watchURL(userID, name string) (string, error) {
	u, err := url.Parse(c.collectionURL(userID, name, "watch"))
	if err != nil {
		return "", fmt.Errorf("invalid watch URL: %w", err)
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	}
	q := u.Query()
	q.Set("token", c.token())
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func (c *Client) authorize(req *http.Request) {
	if t := c.token(); t != "" {
		req.Header.Set("Authorization", "Bearer "+t)
	}
}
