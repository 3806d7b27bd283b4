// Package ledger talks to the token-ledger gateway that decodes
// on-chain transactions. The gateway exposes a small JSON-RPC 2.0
// surface; the verification service only needs transaction lookups.
package ledger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/uhuru-arts/pixelgarden/internal/circuitbreaker"
)

// ErrTxNotFound is returned when the ledger has no record of the
// transaction id.
var ErrTxNotFound = errors.New("transaction not found on ledger")

// ErrUnavailable is returned when the ledger node cannot be reached or
// the circuit breaker is open. Callers may retry without side effects.
var ErrUnavailable = errors.New("ledger unavailable")

// Transfer is one decoded token transfer inside a transaction.
type Transfer struct {
	Source      string `json:"source"`
	Destination string `json:"destination"`
	Token       string `json:"token"`
	Amount      int64  `json:"amount"`
}

// Transaction is a confirmed ledger transaction with its decoded
// token transfers.
type Transaction struct {
	Signature string     `json:"signature"`
	Slot      uint64     `json:"slot"`
	BlockTime int64      `json:"block_time"`
	Transfers []Transfer `json:"transfers"`
}

// TransferTo returns the first transfer of the given token to dest,
// or nil when the transaction contains none.
func (t *Transaction) TransferTo(dest, token string) *Transfer {
	for i := range t.Transfers {
		tr := &t.Transfers[i]
		if tr.Destination == dest && tr.Token == token {
			return tr
		}
	}
	return nil
}

type rpcRequest struct {
	JSONRPC string `json:"jsonrpc"`
	Method  string `json:"method"`
	Params  any    `json:"params,omitempty"`
	ID      int64  `json:"id"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *rpcError) Error() string {
	return fmt.Sprintf("rpc error %d: %s", e.Code, e.Message)
}

type rpcResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	Result  json.RawMessage `json:"result"`
	Error   *rpcError       `json:"error,omitempty"`
	ID      int64           `json:"id"`
}

// Config holds client configuration.
type Config struct {
	RPCURL  string
	Timeout time.Duration
}

// Client is a JSON-RPC client for the ledger gateway. All calls go
// through a circuit breaker so a dead node fails fast instead of
// stalling every verification.
type Client struct {
	rpcURL     string
	httpClient *http.Client
	breaker    *circuitbreaker.Breaker
	nextID     atomic.Int64
}

// NewClient creates a ledger client.
func NewClient(cfg Config, breaker *circuitbreaker.Breaker) (*Client, error) {
	if cfg.RPCURL == "" {
		return nil, fmt.Errorf("ledger RPC URL required")
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		rpcURL:     cfg.RPCURL,
		httpClient: &http.Client{Timeout: timeout},
		breaker:    breaker,
	}, nil
}

// call makes a JSON-RPC call through the circuit breaker. Transport
// and node failures surface as ErrUnavailable.
func (c *Client) call(ctx context.Context, method string, params any) (json.RawMessage, error) {
	var result json.RawMessage
	err := c.breaker.Execute(func() error {
		var callErr error
		result, callErr = c.doCall(ctx, method, params)
		return callErr
	})
	if err != nil {
		if errors.Is(err, circuitbreaker.ErrCircuitOpen) {
			return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
		var rpcErr *rpcError
		if errors.As(err, &rpcErr) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return result, nil
}

func (c *Client) doCall(ctx context.Context, method string, params any) (json.RawMessage, error) {
	req := rpcRequest{
		JSONRPC: "2.0",
		Method:  method,
		Params:  params,
		ID:      c.nextID.Add(1),
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.rpcURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode >= 500 {
		return nil, fmt.Errorf("ledger node error: %d", resp.StatusCode)
	}

	var rpcResp rpcResponse
	if err := json.Unmarshal(respBody, &rpcResp); err != nil {
		return nil, fmt.Errorf("unmarshal response: %w", err)
	}
	if rpcResp.Error != nil {
		return nil, rpcResp.Error
	}
	return rpcResp.Result, nil
}

// GetTransaction returns a confirmed transaction by signature.
// A null result from the gateway means the transaction does not exist.
func (c *Client) GetTransaction(ctx context.Context, signature string) (*Transaction, error) {
	result, err := c.call(ctx, "getTransaction", []any{signature})
	if err != nil {
		return nil, err
	}
	if len(result) == 0 || string(result) == "null" {
		return nil, ErrTxNotFound
	}

	var tx Transaction
	if err := json.Unmarshal(result, &tx); err != nil {
		return nil, fmt.Errorf("decode transaction: %w", err)
	}
	return &tx, nil
}

// GetSlot returns the ledger's current slot. Used as a liveness probe.
func (c *Client) GetSlot(ctx context.Context) (uint64, error) {
	result, err := c.call(ctx, "getSlot", nil)
	if err != nil {
		return 0, err
	}
	var slot uint64
	if err := json.Unmarshal(result, &slot); err != nil {
		return 0, fmt.Errorf("decode slot: %w", err)
	}
	return slot, nil
}
