package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"organiza/internal/model"
	"organiza/internal/syncer"
)

// dialTimeout bounds the websocket handshake for Listen.
const dialTimeout = 15 * time.Second

// Collection is the remote store for one entity kind, rooted at
// /v1/users/{uid}/{name}.
type Collection[E any] struct {
	client *Client
	name   string
}

// NewCollection binds a collection name ("transactions", "meals", "ideas")
// to a client.
func NewCollection[E any](c *Client, name string) *Collection[E] {
	return &Collection[E]{client: c, name: name}
}

// GetAll fetches the user's complete record set in server render order.
func (col *Collection[E]) GetAll(ctx context.Context, userID string) ([]E, error) {
	var out []E
	err := col.do(ctx, http.MethodGet, col.client.collectionURL(userID, col.name), nil, &out)
	if err != nil {
		return nil, err
	}
	return out, nil
}

// InsertWithID creates or fully replaces the record at a caller-chosen id.
func (col *Collection[E]) InsertWithID(ctx context.Context, userID, id string, e E) error {
	return col.do(ctx, http.MethodPut, col.client.collectionURL(userID, col.name, id), e, nil)
}

// Update patches only the supplied fields. A missing record reports
// syncer.ErrNotFound.
func (col *Collection[E]) Update(ctx context.Context, userID, id string, fields model.Patch) error {
	return col.do(ctx, http.MethodPatch, col.client.collectionURL(userID, col.name, id), fields, nil)
}

// Remove deletes by id. Deleting an absent record is a no-op; the server
// answers 404 and the client swallows it.
func (col *Collection[E]) Remove(ctx context.Context, userID, id string) error {
	err := col.do(ctx, http.MethodDelete, col.client.collectionURL(userID, col.name, id), nil, nil)
	if errors.Is(err, syncer.ErrNotFound) {
		return nil
	}
	return err
}

// Listen dials the collection's watch endpoint. The server sends the full
// record set on connect and again after every change. Read failures are
// reported once through onErr; no reconnection is attempted here.
func (col *Collection[E]) Listen(ctx context.Context, userID string, onData func([]E), onErr func(error)) (func(), error) {
	wsURL, err := col.client.watchURL(userID, col.name)
	if err != nil {
		return nil, err
	}

	dialCtx, cancelDial := context.WithTimeout(ctx, dialTimeout)
	defer cancelDial()

	conn, _, err := websocket.Dial(dialCtx, wsURL, &websocket.DialOptions{
		HTTPClient: col.client.http,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to dial watch endpoint for %s: %w", col.name, err)
	}

	readCtx, cancel := context.WithCancel(context.Background())
	var once sync.Once
	stop := func() {
		once.Do(func() {
			cancel()
			_ = conn.Close(websocket.StatusNormalClosure, "unsubscribed")
		})
	}

	go func() {
		for {
			var payload []E
			if err := wsjson.Read(readCtx, conn, &payload); err != nil {
				if readCtx.Err() == nil {
					onErr(fmt.Errorf("watch stream for %s failed: %w", col.name, err))
				}
				stop()
				return
			}
			onData(payload)
		}
	}()

	return stop, nil
}

// do runs one JSON round trip. A non-nil body is encoded as the request
// payload; a non-nil out decodes the response payload.
func (col *Collection[E]) do(ctx context.Context, method, u string, body, out any) error {
	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode %s request: %w", col.name, err)
		}
		reader = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, reader)
	if err != nil {
		return fmt.Errorf("failed to build %s request: %w", col.name, err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	col.client.authorize(req)

	resp, err := col.client.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s request failed: %w", col.name, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return fmt.Errorf("%s %s: %w", method, u, syncer.ErrNotFound)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("%s %s: server returned %d: %s", method, u, resp.StatusCode, bytes.TrimSpace(msg))
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("failed to decode %s response: %w", col.name, err)
		}
	}
	return nil
}
