package gateway

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"github.com/yaziris/discured/hive"
	"github.com/yaziris/discured/internal/domain"
)

// HiveGateway implements the ledger boundary over a node RPC client,
// a sidechain contracts client, and a transaction signer. It maps wire
// payloads to domain values and node misses to domain errors; it never
// caches a balance or a piece of content.
type HiveGateway struct {
	node   *hive.Client
	engine *hive.EngineClient
	signer *hive.Signer
}

func NewHiveGateway(node *hive.Client, engine *hive.EngineClient, signer *hive.Signer) *HiveGateway {
	return &HiveGateway{
		node:   node,
		engine: engine,
		signer: signer,
	}
}

func (g *HiveGateway) ResolveAccount(ctx context.Context, name string) error {
	_, err := g.node.GetAccount(ctx, name)
	if errors.Is(err, hive.ErrNoSuchAccount) {
		return domain.NotFoundError{Resource: "account " + name}
	}
	if err != nil {
		return domain.GatewayError{Op: "resolve account", Err: err}
	}
	return nil
}

func (g *HiveGateway) TransfersSince(ctx context.Context, account string, since time.Time) ([]domain.Transfer, error) {
	ops, err := g.node.TransfersSince(ctx, account, since)
	if err != nil {
		return nil, domain.GatewayError{Op: "transfer history", Err: err}
	}
	transfers := make([]domain.Transfer, 0, len(ops))
	for _, op := range ops {
		transfers = append(transfers, domain.Transfer{
			From:      op.From,
			To:        op.To,
			Memo:      op.Memo,
			Timestamp: op.Timestamp,
		})
	}
	return transfers, nil
}

func (g *HiveGateway) TokenBalance(ctx context.Context, account, symbol string) (domain.TokenHolding, error) {
	record, err := g.engine.TokenBalance(ctx, account, symbol)
	if err != nil {
		return domain.TokenHolding{}, domain.GatewayError{Op: "token balance", Err: err}
	}
	if record == nil {
		// No balance row yet: the account simply holds zero.
		return domain.TokenHolding{Account: account}, nil
	}
	return holdingFromRecord(*record)
}

func (g *HiveGateway) TokenHolders(ctx context.Context, symbol string, limit, offset int) ([]domain.TokenHolding, error) {
	records, err := g.engine.TokenHolders(ctx, symbol, limit, offset)
	if err != nil {
		return nil, domain.GatewayError{Op: "token holders", Err: err}
	}
	holdings := make([]domain.TokenHolding, 0, len(records))
	for _, record := range records {
		holding, err := holdingFromRecord(record)
		if err != nil {
			return nil, err
		}
		holdings = append(holdings, holding)
	}
	return holdings, nil
}

func (g *HiveGateway) GetTarget(ctx context.Context, author, permlink string) (*domain.CurationTarget, error) {
	content, err := g.node.GetContent(ctx, author, permlink)
	if errors.Is(err, hive.ErrNoSuchContent) {
		return nil, domain.NotFoundError{Resource: "content @" + author + "/" + permlink}
	}
	if err != nil {
		return nil, domain.GatewayError{Op: "get content", Err: err}
	}

	voters := make([]string, 0, len(content.ActiveVotes))
	for _, vote := range content.ActiveVotes {
		voters = append(voters, vote.Voter)
	}
	return &domain.CurationTarget{
		Author:        content.Author,
		Permlink:      content.Permlink,
		Title:         content.Title,
		Tags:          content.Tags(),
		CreatedAt:     content.Created.Time,
		PendingPayout: content.PendingPayoutValue,
		Voters:        voters,
		IsTopLevel:    content.IsMainPost(),
	}, nil
}

func (g *HiveGateway) BroadcastVote(ctx context.Context, order domain.VoteOrder) error {
	props, err := g.node.GetDynamicGlobalProperties(ctx)
	if err != nil {
		return domain.GatewayError{Op: "global properties", Err: err}
	}
	tx, err := hive.NewTransaction(props, hive.VoteOperation{
		Voter:    order.Voter,
		Author:   order.Author,
		Permlink: order.Permlink,
		Weight:   order.Weight,
	})
	if err != nil {
		return domain.BroadcastError{Err: err}
	}
	if err := g.signer.Sign(tx); err != nil {
		return domain.BroadcastError{Err: err}
	}
	if err := g.node.BroadcastTransaction(ctx, tx); err != nil {
		return domain.BroadcastError{Err: err}
	}
	return nil
}

func holdingFromRecord(record hive.TokenRecord) (domain.TokenHolding, error) {
	liquid, err := parseAmount(record.Balance)
	if err != nil {
		return domain.TokenHolding{}, domain.GatewayError{Op: "parse balance", Err: err}
	}
	staked, err := parseAmount(record.Stake)
	if err != nil {
		return domain.TokenHolding{}, domain.GatewayError{Op: "parse stake", Err: err}
	}
	return domain.TokenHolding{
		Account: record.Account,
		Liquid:  liquid,
		Staked:  staked,
	}, nil
}

func parseAmount(s string) (decimal.Decimal, error) {
	if s == "" {
		return decimal.Zero, nil
	}
	return decimal.NewFromString(s)
}
