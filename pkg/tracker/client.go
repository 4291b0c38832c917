// Package tracker is the viewer side of courier tracking: an API client, the
// reconciliation Engine that keeps a delivery's track current, and the
// derived display state.
package tracker

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/99minutos/courier-tracking/pkg/wire"
)

const defaultHTTPTimeout = 15 * time.Second

// APIError is a non-2xx response from the tracking API.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("tracking api: %d %s", e.StatusCode, e.Message)
}

// Client talks to the tracking API over HTTP and WebSocket.
type Client struct {
	baseURL string
	http    *http.Client
	dialer  *websocket.Dialer

	mu    sync.RWMutex
	token string
}

// NewClient creates a client for baseURL (e.g. http://localhost:8080).
// A nil httpClient uses one with a default timeout.
func NewClient(baseURL string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultHTTPTimeout}
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    httpClient,
		dialer:  &websocket.Dialer{HandshakeTimeout: 10 * time.Second},
	}
}

// SetToken sets the bearer token used on every request.
func (c *Client) SetToken(token string) {
	c.mu.Lock()
	c.token = token
	c.mu.Unlock()
}

func (c *Client) bearer() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token
}

// Login exchanges credentials for a token and keeps it on the client.
func (c *Client) Login(ctx context.Context, email, password string) (string, error) {
	var resp struct {
		Token string `json:"token"`
	}
	body := map[string]string{"email": email, "password": password}
	if err := c.do(ctx, http.MethodPost, "/auth/login", body, &resp); err != nil {
		return "", err
	}
	c.SetToken(resp.Token)
	return resp.Token, nil
}

// PostLocation reports a courier position and returns the stored record.
func (c *Client) PostLocation(ctx context.Context, deliveryID string, latitude, longitude float64) (wire.Location, error) {
	body := map[string]any{"deliveryId": deliveryID, "latitude": latitude, "longitude": longitude}
	var loc wire.Location
	err := c.do(ctx, http.MethodPost, "/v1/locations", body, &loc)
	return loc, err
}

// FetchDelivery returns the delivery detail.
func (c *Client) FetchDelivery(ctx context.Context, deliveryID string) (wire.Delivery, error) {
	var d wire.Delivery
	err := c.do(ctx, http.MethodGet, "/v1/deliveries/"+url.PathEscape(deliveryID), nil, &d)
	return d, err
}

// FetchLocations returns the full ordered track of a delivery.
func (c *Client) FetchLocations(ctx context.Context, deliveryID string) ([]wire.Location, error) {
	var locs []wire.Location
	err := c.do(ctx, http.MethodGet, "/v1/deliveries/"+url.PathEscape(deliveryID)+"/locations", nil, &locs)
	return locs, err
}

// Subscribe opens the push channel of a delivery.
func (c *Client) Subscribe(ctx context.Context, deliveryID string) (Stream, error) {
	u, err := url.Parse(c.baseURL + "/v1/locations/ws/" + url.PathEscape(deliveryID))
	if err != nil {
		return nil, err
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}

	header := http.Header{}
	if tok := c.bearer(); tok != "" {
		header.Set("Authorization", "Bearer "+tok)
	}

	conn, resp, err := c.dialer.DialContext(ctx, u.String(), header)
	if err != nil {
		if resp != nil {
			return nil, &APIError{StatusCode: resp.StatusCode, Message: "subscribe: " + err.Error()}
		}
		return nil, fmt.Errorf("subscribe: %w", err)
	}
	return &wsStream{conn: conn}, nil
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		raw, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if tok := c.bearer(); tok != "" {
		req.Header.Set("Authorization", "Bearer "+tok)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var envelope struct {
			Error string `json:"error"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&envelope)
		if envelope.Error == "" {
			envelope.Error = http.StatusText(resp.StatusCode)
		}
		return &APIError{StatusCode: resp.StatusCode, Message: envelope.Error}
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s %s: %w", method, path, err)
	}
	return nil
}

type wsStream struct {
	conn *websocket.Conn
	once sync.Once
}

func (s *wsStream) Read() ([]byte, error) {
	_, data, err := s.conn.ReadMessage()
	return data, err
}

func (s *wsStream) Close() error {
	var err error
	s.once.Do(func() { err = s.conn.Close() })
	return err
}
