package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/yaziris/discured/hive"
	"github.com/yaziris/discured/internal/domain"
)

// rpcServer answers each JSON-RPC method with a canned result.
func rpcServer(t *testing.T, results map[string]string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Method string `json:"method"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("bad request body: %v", err)
			return
		}
		result, ok := results[req.Method]
		if !ok {
			t.Errorf("unexpected method %s", req.Method)
			result = "null"
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"jsonrpc":"2.0","id":1,"result":` + result + `}`))
	}))
}

func TestResolveAccountMissing(t *testing.T) {
	srv := rpcServer(t, map[string]string{
		"condenser_api.get_accounts": `[]`,
	})
	defer srv.Close()

	g := NewHiveGateway(hive.NewClient(srv.URL), nil, nil)
	err := g.ResolveAccount(context.Background(), "ghost")
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected not-found, got %v", err)
	}
}

func TestTokenBalanceWithoutRecord(t *testing.T) {
	srv := rpcServer(t, map[string]string{
		"findOne": `null`,
	})
	defer srv.Close()

	g := NewHiveGateway(nil, hive.NewEngineClient(srv.URL), nil)
	holding, err := g.TokenBalance(context.Background(), "alice", "LEO")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !holding.Liquid.IsZero() || !holding.Staked.IsZero() {
		t.Errorf("expected zero holding, got %+v", holding)
	}
}

func TestTokenBalanceMapsColumns(t *testing.T) {
	srv := rpcServer(t, map[string]string{
		"findOne": `{"account":"alice","symbol":"LEO","balance":"10.5","stake":"500.000"}`,
	})
	defer srv.Close()

	g := NewHiveGateway(nil, hive.NewEngineClient(srv.URL), nil)
	holding, err := g.TokenBalance(context.Background(), "alice", "LEO")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := holding.Amount(domain.BalanceStaked).String(); got != "500" {
		t.Errorf("expected staked 500, got %s", got)
	}
	if got := holding.Amount(domain.BalanceLiquid).String(); got != "10.5" {
		t.Errorf("expected liquid 10.5, got %s", got)
	}
}

func TestTokenHoldersGatewayError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	g := NewHiveGateway(nil, hive.NewEngineClient(srv.URL), nil)
	_, err := g.TokenHolders(context.Background(), "LEO", 1000, 0)
	if !errors.Is(err, domain.ErrGateway) {
		t.Fatalf("expected gateway error, got %v", err)
	}
}

func TestGetTargetMapsContent(t *testing.T) {
	srv := rpcServer(t, map[string]string{
		"condenser_api.get_content": `{
			"author":"alice","permlink":"my-post","title":"My Post",
			"parent_author":"","depth":0,
			"created":"2024-06-01T10:00:00",
			"json_metadata":"{\"tags\":[\"hive\",\"proofofbrain\"]}",
			"active_votes":[{"voter":"bob","percent":1000}],
			"pending_payout_value":"1.234 HBD"
		}`,
	})
	defer srv.Close()

	g := NewHiveGateway(hive.NewClient(srv.URL), nil, nil)
	target, err := g.GetTarget(context.Background(), "alice", "my-post")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !target.IsTopLevel {
		t.Error("expected top-level post")
	}
	if !target.HasTag("proofofbrain") {
		t.Errorf("missing tag, got %v", target.Tags)
	}
	if !target.VotedBy("bob") {
		t.Errorf("missing voter, got %v", target.Voters)
	}
	if want := time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC); !target.CreatedAt.Equal(want) {
		t.Errorf("unexpected created time %v", target.CreatedAt)
	}
}

func TestGetTargetMissing(t *testing.T) {
	srv := rpcServer(t, map[string]string{
		"condenser_api.get_content": `{"author":"","permlink":""}`,
	})
	defer srv.Close()

	g := NewHiveGateway(hive.NewClient(srv.URL), nil, nil)
	_, err := g.GetTarget(context.Background(), "ghost", "nothing")
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected not-found, got %v", err)
	}
}

func TestBroadcastVoteSignsAndSubmits(t *testing.T) {
	broadcasts := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Method string `json:"method"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("bad request body: %v", err)
			return
		}
		switch req.Method {
		case "condenser_api.get_dynamic_global_properties":
			w.Write([]byte(`{"jsonrpc":"2.0","id":1,"result":{
				"head_block_number":12345678,
				"head_block_id":"00bc614e00000000000000000000000000000000",
				"time":"2024-06-01T12:00:00"}}`))
		case "condenser_api.broadcast_transaction_synchronous":
			broadcasts++
			w.Write([]byte(`{"jsonrpc":"2.0","id":1,"result":{"id":"abc","block_num":12345679}}`))
		default:
			t.Errorf("unexpected method %s", req.Method)
		}
	}))
	defer srv.Close()

	signer, err := hive.NewSigner("5HpjKrb7dH5kKQQzmbjB87Mxova7mek5bXUTWfndcX6tBoqUwzm", hive.MainnetChainID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	g := NewHiveGateway(hive.NewClient(srv.URL), nil, signer)
	err = g.BroadcastVote(context.Background(), domain.VoteOrder{
		Voter:    "curator",
		Author:   "alice",
		Permlink: "my-post",
		Weight:   1000,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if broadcasts != 1 {
		t.Errorf("expected one broadcast, got %d", broadcasts)
	}
}

func TestBroadcastVoteWrapsFailure(t *testing.T) {
	// A node that is already gone fails the very first call.
	dead := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	dead.Close()

	signer, err := hive.NewSigner("5HpjKrb7dH5kKQQzmbjB87Mxova7mek5bXUTWfndcX6tBoqUwzm", hive.MainnetChainID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	g := NewHiveGateway(hive.NewClient(dead.URL), nil, signer)
	err = g.BroadcastVote(context.Background(), domain.VoteOrder{Voter: "curator", Author: "alice", Permlink: "p", Weight: 1})
	if !errors.Is(err, domain.ErrGateway) {
		t.Fatalf("expected gateway error, got %v", err)
	}
}
