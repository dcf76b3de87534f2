// Package client is a thin A2A JSON-RPC client: a synchronous request
// for message/send, tasks/get, tasks/cancel and the push-notification
// config methods, plus a streaming mode for message/stream and
// tasks/resubscribe in stream.go. It is grounded on the teacher's
// gateway/clients/a2aClient/client.go Client, generalized from that
// client's fixed tasks/send-style method names to this module's
// message/send-style ones and from its draft schema package to the a2a
// package.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gate4ai/a2a"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Client talks to a single A2A agent over HTTP.
type Client struct {
	baseURL    string
	httpClient *http.Client
	headers    map[string]string
	logger     *zap.Logger
}

// Option configures a Client at construction time.
type Option func(*Client)

// WithHTTPClient overrides the default http.Client (30s timeout).
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithHeader sets a header sent on every request, e.g. Authorization.
func WithHeader(key, value string) Option {
	return func(c *Client) { c.headers[key] = value }
}

// WithLogger overrides the client's no-op default logger.
func WithLogger(logger *zap.Logger) Option {
	return func(c *Client) { c.logger = logger }
}

// New returns a Client targeting baseURL, the agent's JSON-RPC endpoint.
func New(baseURL string, opts ...Option) (*Client, error) {
	if baseURL == "" {
		return nil, fmt.Errorf("client: baseURL cannot be empty")
	}
	c := &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		headers:    make(map[string]string),
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// FetchAgentCard retrieves the agent's card from its well-known path.
func (c *Client) FetchAgentCard(ctx context.Context) (*a2a.AgentCard, error) {
	url := c.baseURL + "/.well-known/agent.json"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("client: build agent card request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("client: fetch agent card: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("client: agent card request returned %d: %s", resp.StatusCode, body)
	}
	var card a2a.AgentCard
	if err := json.NewDecoder(resp.Body).Decode(&card); err != nil {
		return nil, fmt.Errorf("client: decode agent card: %w", err)
	}
	return &card, nil
}

// sendRequest issues a synchronous JSON-RPC call and unmarshals its
// result into target (which may be nil for calls with no return value).
func (c *Client) sendRequest(ctx context.Context, method string, params, target any) error {
	logger := c.logger.With(zap.String("method", method))

	var rawParams json.RawMessage
	if params != nil {
		raw, err := json.Marshal(params)
		if err != nil {
			return fmt.Errorf("client: marshal params for %s: %w", method, err)
		}
		rawParams = raw
	}

	id, err := json.Marshal(uuid.NewString())
	if err != nil {
		return fmt.Errorf("client: marshal request id: %w", err)
	}

	reqBody, err := json.Marshal(a2a.Request{JSONRPC: a2a.Version, ID: id, Method: method, Params: rawParams})
	if err != nil {
		return fmt.Errorf("client: marshal request for %s: %w", method, err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL, bytes.NewReader(reqBody))
	if err != nil {
		return fmt.Errorf("client: build request for %s: %w", method, err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")
	for k, v := range c.headers {
		httpReq.Header.Set(k, v)
	}

	logger.Debug("sending synchronous request")
	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("client: %s request failed: %w", method, err)
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode < 200 || httpResp.StatusCode >= 300 {
		body, _ := io.ReadAll(httpResp.Body)
		return fmt.Errorf("client: %s returned HTTP %d: %s", method, httpResp.StatusCode, body)
	}

	var rpcResp a2a.Response
	if err := json.NewDecoder(httpResp.Body).Decode(&rpcResp); err != nil {
		return fmt.Errorf("client: decode response for %s: %w", method, err)
	}
	if rpcResp.Error != nil {
		return rpcResp.Error
	}
	if target != nil {
		if len(rpcResp.Result) == 0 {
			return fmt.Errorf("client: %s response missing result", method)
		}
		if err := json.Unmarshal(rpcResp.Result, target); err != nil {
			return fmt.Errorf("client: unmarshal result for %s: %w", method, err)
		}
	}
	return nil
}

// SendMessage implements message/send: it returns either a terminal
// Task or a terminal Message, mirroring what the server's
// RequestHandler.OnMessageSend collapses the run to.
func (c *Client) SendMessage(ctx context.Context, params a2a.MessageSendParams) (a2a.Event, error) {
	var raw json.RawMessage
	if err := c.sendRequest(ctx, "message/send", params, &raw); err != nil {
		return nil, err
	}
	return decodeEvent(raw)
}

// GetTask implements tasks/get.
func (c *Client) GetTask(ctx context.Context, params a2a.TaskQueryParams) (*a2a.Task, error) {
	var task a2a.Task
	if err := c.sendRequest(ctx, "tasks/get", params, &task); err != nil {
		return nil, err
	}
	return &task, nil
}

// CancelTask implements tasks/cancel.
func (c *Client) CancelTask(ctx context.Context, params a2a.TaskIDParams) (*a2a.Task, error) {
	var task a2a.Task
	if err := c.sendRequest(ctx, "tasks/cancel", params, &task); err != nil {
		return nil, err
	}
	return &task, nil
}

// SetPushNotificationConfig implements tasks/pushNotificationConfig/set.
func (c *Client) SetPushNotificationConfig(ctx context.Context, params a2a.TaskPushNotificationConfig) (*a2a.TaskPushNotificationConfig, error) {
	var cfg a2a.TaskPushNotificationConfig
	if err := c.sendRequest(ctx, "tasks/pushNotificationConfig/set", params, &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// GetPushNotificationConfig implements tasks/pushNotificationConfig/get.
func (c *Client) GetPushNotificationConfig(ctx context.Context, params a2a.TaskIDParams) (*a2a.TaskPushNotificationConfig, error) {
	var cfg a2a.TaskPushNotificationConfig
	if err := c.sendRequest(ctx, "tasks/pushNotificationConfig/get", params, &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// ListPushNotificationConfig implements tasks/pushNotificationConfig/list.
func (c *Client) ListPushNotificationConfig(ctx context.Context, params a2a.TaskIDParams) ([]a2a.TaskPushNotificationConfig, error) {
	var cfgs []a2a.TaskPushNotificationConfig
	if err := c.sendRequest(ctx, "tasks/pushNotificationConfig/list", params, &cfgs); err != nil {
		return nil, err
	}
	return cfgs, nil
}

// DeletePushNotificationConfig implements tasks/pushNotificationConfig/delete.
func (c *Client) DeletePushNotificationConfig(ctx context.Context, params a2a.TaskIDParams) error {
	return c.sendRequest(ctx, "tasks/pushNotificationConfig/delete", params, nil)
}
