package hive

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
)

// TokenRecord is one row of the sidechain tokens contract's balances
// table. Amounts arrive as strings and keep the token's full
// precision.
type TokenRecord struct {
	Account string `json:"account"`
	Symbol  string `json:"symbol"`
	Balance string `json:"balance"`
	Stake   string `json:"stake"`
}

// EngineClient talks to the sidechain contracts API over JSON-RPC.
type EngineClient struct {
	client *http.Client
	url    string
}

func NewEngineClient(url string) *EngineClient {
	return &EngineClient{
		client: &http.Client{
			Timeout: defaultTimeout,
		},
		url: url,
	}
}

type contractQuery struct {
	Contract string `json:"contract"`
	Table    string `json:"table"`
	Query    any    `json:"query"`
	Limit    int    `json:"limit,omitempty"`
	Offset   int    `json:"offset,omitempty"`
}

func (c *EngineClient) call(ctx context.Context, method string, params contractQuery, result any) error {
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
	if err := json.Unmarshal(envelope.Result, result); err != nil {
		return fmt.Errorf("failed to decode result: %v", err)
	}
	return nil
}

// TokenBalance fetches the account's record for one token. An account
// that never held the token has no row; that is reported as a nil
// record, not an error.
func (c *EngineClient) TokenBalance(ctx context.Context, account, symbol string) (*TokenRecord, error) {
	var record *TokenRecord
	err := c.call(ctx, "findOne", contractQuery{
		Contract: "tokens",
		Table:    "balances",
		Query: map[string]string{
			"account": account,
			"symbol":  symbol,
		},
	}, &record)
	if err != nil {
		return nil, err
	}
	return record, nil
}

// TokenHolders fetches one page of the token's holder table.
func (c *EngineClient) TokenHolders(ctx context.Context, symbol string, limit, offset int) ([]TokenRecord, error) {
	var records []TokenRecord
	err := c.call(ctx, "find", contractQuery{
		Contract: "tokens",
		Table:    "balances",
		Query: map[string]string{
			"symbol": symbol,
		},
		Limit:  limit,
		Offset: offset,
	}, &records)
	if err != nil {
		return nil, err
	}
	return records, nil
}
