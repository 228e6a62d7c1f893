package recordstore

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
)

// Ensure Client implements Store.
var _ Store = (*Client)(nil)

// Client implements Store against a snaptab record server. Reads and
// writes are plain JSON; Watch consumes the server's SSE stream.
type Client struct {
	base string
	http *http.Client
}

// NewClient creates a client for the record server at baseURL.
func NewClient(baseURL string) *Client {
	return &Client{
		base: strings.TrimRight(baseURL, "/"),
		http: &http.Client{},
	}
}

func (c *Client) recordURL(pin string) string {
	return fmt.Sprintf("%s/v1/records/%s", c.base, pin)
}

// Create stores a new record under pin.
func (c *Client) Create(ctx context.Context, pin string, rec Record) error {
	return c.send(ctx, http.MethodPost, pin, rec)
}

// Get returns the current record for pin.
func (c *Client) Get(ctx context.Context, pin string) (*Record, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.recordURL(pin), nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("get record: %w", err)
	}
	defer resp.Body.Close()

	if err := statusError(resp); err != nil {
		return nil, err
	}

	var rec Record
	if err := json.NewDecoder(resp.Body).Decode(&rec); err != nil {
		return nil, fmt.Errorf("decode record: %w", err)
	}
	return &rec, nil
}

// Overwrite replaces the record for pin wholesale.
func (c *Client) Overwrite(ctx context.Context, pin string, rec Record) error {
	return c.send(ctx, http.MethodPut, pin, rec)
}

func (c *Client) send(ctx context.Context, method, pin string, rec Record) error {
	rec.PIN = pin
	body, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal record: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.recordURL(pin), bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s record: %w", strings.ToLower(method), err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	return statusError(resp)
}

func statusError(resp *http.Response) error {
	switch {
	case resp.StatusCode < 300:
		return nil
	case resp.StatusCode == http.StatusNotFound:
		return ErrNotFound
	case resp.StatusCode == http.StatusConflict:
		return ErrConflict
	default:
		return fmt.Errorf("record server returned %s", resp.Status)
	}
}

// Watch opens the server's SSE stream for pin.
func (c *Client) Watch(ctx context.Context, pin string) (Subscription, error) {
	ctx, cancel := context.WithCancel(ctx)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.recordURL(pin)+"/watch", nil)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("build watch request: %w", err)
	}
	req.Header.Set("Accept", "text/event-stream")

	resp, err := c.http.Do(req)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("open watch stream: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		cancel()
		if resp.StatusCode == http.StatusNotFound {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("record server returned %s", resp.Status)
	}

	sub := &clientSub{
		cancel: cancel,
		body:   resp.Body,
		out:    make(chan Record, 16),
	}
	go sub.pump(pin)
	return sub, nil
}

type clientSub struct {
	cancel context.CancelFunc
	body   io.ReadCloser
	out    chan Record
	once   sync.Once
}

// pump reads SSE events off the stream. Only data lines matter; the
// server sends one JSON record per event.
func (s *clientSub) pump(pin string) {
	defer close(s.out)
	scanner := bufio.NewScanner(s.body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "data:") {
			continue
		}
		payload := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		if payload == "" {
			continue
		}
		var rec Record
		if err := json.Unmarshal([]byte(payload), &rec); err != nil {
			slog.Warn("discarding malformed watch event", "pin", pin, "error", err)
			continue
		}
		s.out <- rec
	}
}

func (s *clientSub) Updates() <-chan Record {
	return s.out
}

func (s *clientSub) Close() error {
	s.once.Do(func() {
		s.cancel()
		s.body.Close()
	})
	return nil
}
