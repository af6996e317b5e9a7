// Package rpcclient talks JSON-RPC 2.0 to a mysterybox node: contract
// views, account queries and signed calls.
package rpcclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Klingon-tech/mysterybox/internal/rpc"
	"github.com/Klingon-tech/mysterybox/pkg/types"
)

const defaultTimeout = 10 * time.Second

// maxResponseSize bounds how much of a reply is read.
const maxResponseSize = 8 << 20

// Client is a JSON-RPC 2.0 HTTP client bound to one node.
type Client struct {
	endpoint string
	http     *http.Client
	nextID   atomic.Uint64

	// Deployment hash, fetched once for signing.
	mu         sync.Mutex
	deployHash types.Hash
}

// Option configures a Client.
type Option func(*Client)

// WithTimeout sets the HTTP timeout. Non-positive values keep the default.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.http.Timeout = d
		}
	}
}

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

// New creates a client for the node at endpoint, e.g. "http://127.0.0.1:8645/".
func New(endpoint string, opts ...Option) *Client {
	c := &Client{
		endpoint: endpoint,
		http:     &http.Client{Timeout: defaultTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Endpoint returns the node URL.
func (c *Client) Endpoint() string { return c.endpoint }

// RPCError is an error object returned by the node.
type RPCError struct {
	Code    int
	Message string
}

func (e *RPCError) Error() string {
	return fmt.Sprintf("rpc error %d: %s", e.Code, e.Message)
}

// Rejected reports whether the node refused the call on contract or host
// grounds (bad deposit, sold out, wrong nonce, not owner...).
func (e *RPCError) Rejected() bool { return e.Code == rpc.CodeRejected }

// reply mirrors rpc.Response with the result left undecoded.
type reply struct {
	JSONRPC string          `json:"jsonrpc"`
	Result  json.RawMessage `json:"result"`
	Error   *rpc.Error      `json:"error"`
	ID      uint64          `json:"id"`
}

// Call invokes method with a background context.
func (c *Client) Call(method string, params, result interface{}) error {
	return c.CallContext(context.Background(), method, params, result)
}

// CallContext invokes method and decodes the result into result, which may
// be nil to discard it.
func (c *Client) CallContext(ctx context.Context, method string, params, result interface{}) error {
	id := c.nextID.Add(1)
	body, err := json.Marshal(rpc.Request{JSONRPC: "2.0", Method: method, Params: params, ID: id})
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	var r reply
	if err := json.Unmarshal(data, &r); err != nil {
		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("http %d: %s", resp.StatusCode, bytes.TrimSpace(data))
		}
		return fmt.Errorf("decode response: %w", err)
	}
	if r.Error != nil {
		return &RPCError{Code: r.Error.Code, Message: r.Error.Message}
	}
	if r.ID != id {
		return fmt.Errorf("response id %d, want %d", r.ID, id)
	}

	if result != nil && len(r.Result) > 0 {
		if err := json.Unmarshal(r.Result, result); err != nil {
			return fmt.Errorf("decode result: %w", err)
		}
	}
	return nil
}
