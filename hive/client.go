package hive

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/patrickmn/go-cache"
)

const (
	defaultTimeout = 10 * time.Second
	// historyBatchSize is the node-side maximum for a single
	// account-history page.
	historyBatchSize = 1000
	// maxHistoryBatches bounds the reverse walk against a misbehaving
	// upstream; the lookback window normally ends it much earlier.
	maxHistoryBatches = 10
)

// ErrNoSuchAccount is returned when the queried account does not exist
// on chain.
var ErrNoSuchAccount = fmt.Errorf("no such account")

// ErrNoSuchContent is returned when the queried post or comment does
// not exist.
var ErrNoSuchContent = fmt.Errorf("no such content")

// Client talks to a node's condenser API over JSON-RPC.
type Client struct {
	client   *http.Client
	url      string
	accounts *cache.Cache
}

// NewClient constructs a condenser API client. Resolved accounts are
// cached briefly: the account table is append-only upstream, so a
// positive lookup never goes stale.
func NewClient(url string) *Client {
	return &Client{
		client: &http.Client{
			Timeout: defaultTimeout,
		},
		url:      url,
		accounts: cache.New(10*time.Minute, 15*time.Minute),
	}
}

type rpcRequest struct {
	JSONRPC string `json:"jsonrpc"`
	Method  string `json:"method"`
	Params  any    `json:"params"`
	ID      int    `json:"id"`
}

type rpcResponse struct {
	Result json.RawMessage `json:"result"`
	Error  *rpcError       `json:"error"`
}

func (c *Client) call(ctx context.Context, method string, params any, result any) error {
	payload, err := json.Marshal(rpcRequest{
		JSONRPC: "2.0",
		Method:  method,
		Params:  params,
		ID:      1,
	})
	if err != nil {
		return fmt.Errorf("failed to encode request: %v", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to create request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to perform request: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	var envelope rpcResponse
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return fmt.Errorf("failed to decode response: %v", err)
	}
	if envelope.Error != nil {
		return envelope.Error
	}
	if result == nil {
		return nil
	}
	if err := json.Unmarshal(envelope.Result, result); err != nil {
		return fmt.Errorf("failed to decode result: %v", err)
	}
	return nil
}

// GetAccount resolves an account by name, or ErrNoSuchAccount.
func (c *Client) GetAccount(ctx context.Context, name string) (*Account, error) {
	if cached, found := c.accounts.Get(name); found {
		account := cached.(Account)
		return &account, nil
	}

	var accounts []Account
	err := c.call(ctx, "condenser_api.get_accounts", []any{[]string{name}}, &accounts)
	if err != nil {
		return nil, err
	}
	if len(accounts) == 0 {
		return nil, ErrNoSuchAccount
	}

	c.accounts.Set(name, accounts[0], cache.DefaultExpiration)
	return &accounts[0], nil
}

// historyEntry is one [index, wrapper] tuple of the history response.
type historyEntry struct {
	Index int64
	Op    struct {
		Timestamp Time              `json:"timestamp"`
		Op        []json.RawMessage `json:"op"`
	}
}

func (e *historyEntry) UnmarshalJSON(data []byte) error {
	tuple := []any{&e.Index, &e.Op}
	return json.Unmarshal(data, &tuple)
}

// TransfersSince walks the account's operation history in reverse
// chronological order and returns the transfer operations recorded at
// or after the given cutoff. The walk stops at the cutoff, so its cost
// is bounded by the lookback window rather than the account's age.
func (c *Client) TransfersSince(ctx context.Context, account string, since time.Time) ([]TransferOperation, error) {
	var transfers []TransferOperation

	start := int64(-1)
	for batch := 0; batch < maxHistoryBatches; batch++ {
		limit := int64(historyBatchSize)
		if start >= 0 && start+1 < limit {
			limit = start + 1
		}

		var entries []historyEntry
		err := c.call(ctx, "condenser_api.get_account_history", []any{account, start, limit}, &entries)
		if err != nil {
			return nil, err
		}
		if len(entries) == 0 {
			break
		}

		lowest := entries[0].Index
		reachedCutoff := false
		// Entries arrive oldest-first within a batch.
		for i := len(entries) - 1; i >= 0; i-- {
			entry := entries[i]
			if entry.Index < lowest {
				lowest = entry.Index
			}
			if entry.Op.Timestamp.Before(since) {
				reachedCutoff = true
				continue
			}
			transfer, ok := decodeTransfer(entry)
			if ok {
				transfers = append(transfers, transfer)
			}
		}

		if reachedCutoff || lowest == 0 {
			break
		}
		start = lowest - 1
	}
	return transfers, nil
}

func decodeTransfer(entry historyEntry) (TransferOperation, bool) {
	if len(entry.Op.Op) != 2 {
		return TransferOperation{}, false
	}
	var name string
	if err := json.Unmarshal(entry.Op.Op[0], &name); err != nil || name != "transfer" {
		return TransferOperation{}, false
	}
	var body struct {
		From   string `json:"from"`
		To     string `json:"to"`
		Amount string `json:"amount"`
		Memo   string `json:"memo"`
	}
	if err := json.Unmarshal(entry.Op.Op[1], &body); err != nil {
		return TransferOperation{}, false
	}
	return TransferOperation{
		From:      body.From,
		To:        body.To,
		Amount:    body.Amount,
		Memo:      body.Memo,
		Timestamp: entry.Op.Timestamp.Time,
	}, true
}

// GetContent fetches a post or comment, or ErrNoSuchContent. The node
// answers missing content with an empty object instead of an error.
func (c *Client) GetContent(ctx context.Context, author, permlink string) (*Content, error) {
	var content Content
	err := c.call(ctx, "condenser_api.get_content", []any{author, permlink}, &content)
	if err != nil {
		return nil, err
	}
	if content.Author == "" {
		return nil, ErrNoSuchContent
	}
	return &content, nil
}

// GetDynamicGlobalProperties fetches the chain head state.
func (c *Client) GetDynamicGlobalProperties(ctx context.Context) (*DynamicGlobalProperties, error) {
	var props DynamicGlobalProperties
	err := c.call(ctx, "condenser_api.get_dynamic_global_properties", []any{}, &props)
	if err != nil {
		return nil, err
	}
	return &props, nil
}

// BroadcastTransaction submits a signed transaction and waits for the
// node to accept it.
func (c *Client) BroadcastTransaction(ctx context.Context, tx *Transaction) error {
	return c.call(ctx, "condenser_api.broadcast_transaction_synchronous", []any{tx}, nil)
}
