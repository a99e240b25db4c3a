package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"

	"github.com/luispater/feeOptOut/internal/portal"
	"github.com/tidwall/gjson"
)

// Client talks to a running agent server. It implements popup.Tab and keeps
// the session the server assigned on the first message.
type Client struct {
	baseURL    string
	httpClient *http.Client
	mu         sync.Mutex
	sessionID  string
}

func NewClient(baseURL string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: httpClient,
	}
}

func (c *Client) SessionID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sessionID
}

func (c *Client) do(req *http.Request) ([]byte, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		message := gjson.GetBytes(body, "error.message").String()
		if message == "" {
			message = strings.TrimSpace(string(body))
		}
		return nil, fmt.Errorf("agent returned %d: %s", resp.StatusCode, message)
	}

	if id := resp.Header.Get(SessionHeader); id != "" {
		c.mu.Lock()
		c.sessionID = id
		c.mu.Unlock()
	}
	return body, nil
}

func (c *Client) ActiveURL(ctx context.Context) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/v1/page", nil)
	if err != nil {
		return "", err
	}
	body, err := c.do(req)
	if err != nil {
		return "", err
	}
	return gjson.GetBytes(body, "url").String(), nil
}

func (c *Client) Send(ctx context.Context, message portal.Request) (portal.Response, error) {
	var out portal.Response
	payload, err := json.Marshal(message)
	if err != nil {
		return out, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/message", bytes.NewReader(payload))
	if err != nil {
		return out, err
	}
	req.Header.Set("Content-Type", "application/json")
	if id := c.SessionID(); id != "" {
		req.Header.Set(SessionHeader, id)
	}

	body, err := c.do(req)
	if err != nil {
		return out, err
	}
	if err = json.Unmarshal(body, &out); err != nil {
		return out, fmt.Errorf("failed to decode agent response: %w", err)
	}
	return out, nil
}
