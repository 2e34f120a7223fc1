package chain

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/vk/chainflow/internal/ctxlog"
	"resty.dev/v3"
)

// RPCClient talks JSON-RPC to a node endpoint. It implements Client for any
// EVM-style backend; only the four calls the engine needs are wired.
type RPCClient struct {
	chainID  string
	http     *resty.Client
	nextID   atomic.Int64
	pollBase time.Duration
}

// NewRPCClient builds a client for one chain endpoint. An API key, when
// present, is sent as a bearer token.
func NewRPCClient(chainID, endpoint, apiKey string) *RPCClient {
	http := resty.New().
		SetBaseURL(endpoint).
		SetTimeout(30 * time.Second).
		SetHeader("Content-Type", "application/json")
	if apiKey != "" {
		http.SetAuthToken(apiKey)
	}
	return &RPCClient{chainID: chainID, http: http, pollBase: 2 * time.Second}
}

// Close releases the underlying HTTP client.
func (c *RPCClient) Close() error {
	return c.http.Close()
}

type rpcRequest struct {
	JSONRPC string `json:"jsonrpc"`
	Method  string `json:"method"`
	Params  []any  `json:"params"`
	ID      int64  `json:"id"`
}

type rpcResponse struct {
	Result json.RawMessage `json:"result"`
	Error  *rpcError       `json:"error"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *rpcError) Error() string {
	return fmt.Sprintf("rpc error %d: %s", e.Code, e.Message)
}

func (c *RPCClient) call(ctx context.Context, method string, params []any, out any) error {
	req := rpcRequest{JSONRPC: "2.0", Method: method, Params: params, ID: c.nextID.Add(1)}
	var body rpcResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(req).
		SetResult(&body).
		Post("")
	if err != nil {
		return fmt.Errorf("%s %s: %w", c.chainID, method, err)
	}
	if resp.IsError() {
		return fmt.Errorf("%s %s: http status %s", c.chainID, method, resp.Status())
	}
	if body.Error != nil {
		return fmt.Errorf("%s %s: %w", c.chainID, method, body.Error)
	}
	if out != nil {
		if err := json.Unmarshal(body.Result, out); err != nil {
			return fmt.Errorf("%s %s: decoding result: %w", c.chainID, method, err)
		}
	}
	return nil
}

// SubmitTx sends the transaction and returns its hash.
func (c *RPCClient) SubmitTx(ctx context.Context, req TxRequest) (string, error) {
	params := []any{map[string]any{
		"from":  req.From,
		"to":    req.To,
		"value": req.Value,
		"data":  req.Data,
	}}
	var ref string
	if err := c.call(ctx, "eth_sendTransaction", params, &ref); err != nil {
		return "", err
	}
	return ref, nil
}

// WaitConfirmed polls for the transaction receipt until it appears or ctx
// is done.
func (c *RPCClient) WaitConfirmed(ctx context.Context, ref string) (*TxReceipt, error) {
	logger := ctxlog.FromContext(ctx).With("chain", c.chainID, "tx", ref)
	backoff := c.pollBase
	for {
		var raw struct {
			BlockNumber string `json:"blockNumber"`
			Status      string `json:"status"`
		}
		err := c.call(ctx, "eth_getTransactionReceipt", []any{ref}, &raw)
		if err == nil && raw.BlockNumber != "" {
			block, _ := strconv.ParseUint(strings.TrimPrefix(raw.BlockNumber, "0x"), 16, 64)
			return &TxReceipt{
				Ref:         ref,
				Confirmed:   true,
				BlockNumber: block,
				Failed:      raw.Status == "0x0",
			}, nil
		}
		if err != nil {
			logger.Debug("Receipt poll failed, retrying.", "error", err)
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(backoff):
		}
		if backoff < 15*time.Second {
			backoff *= 2
		}
	}
}

// EstimateFee returns the estimated gas cost for the transaction as a
// decimal string.
func (c *RPCClient) EstimateFee(ctx context.Context, req TxRequest) (string, error) {
	params := []any{map[string]any{
		"from":  req.From,
		"to":    req.To,
		"value": req.Value,
		"data":  req.Data,
	}}
	var hexGas string
	if err := c.call(ctx, "eth_estimateGas", params, &hexGas); err != nil {
		return "", err
	}
	gas, err := strconv.ParseUint(strings.TrimPrefix(hexGas, "0x"), 16, 64)
	if err != nil {
		return "", fmt.Errorf("%s: malformed gas estimate %q", c.chainID, hexGas)
	}
	return strconv.FormatUint(gas, 10), nil
}

// Height returns the current block number.
func (c *RPCClient) Height(ctx context.Context) (uint64, error) {
	var hexHeight string
	if err := c.call(ctx, "eth_blockNumber", []any{}, &hexHeight); err != nil {
		return 0, err
	}
	height, err := strconv.ParseUint(strings.TrimPrefix(hexHeight, "0x"), 16, 64)
	if err != nil {
		return 0, fmt.Errorf("%s: malformed block number %q", c.chainID, hexHeight)
	}
	return height, nil
}
