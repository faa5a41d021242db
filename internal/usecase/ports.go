package usecase

import (
	"context"
	"time"

	"github.com/yaziris/discured/internal/domain"
)

// LedgerGateway is the boundary to the ledger node and its sidechain.
// It is treated as an opaque, possibly flaky remote service: every
// method call reaches upstream, and implementations must not cache
// balances or content.
type LedgerGateway interface {
	// ResolveAccount returns domain.NotFoundError when the account
	// does not exist on chain.
	ResolveAccount(ctx context.Context, name string) error
	// TransfersSince lists the account's transfer operations recorded
	// at or after the cutoff, newest first.
	TransfersSince(ctx context.Context, account string, since time.Time) ([]domain.Transfer, error)
	// TokenBalance fetches the account's current holding of the given
	// token. Accounts with no record hold zero.
	TokenBalance(ctx context.Context, account, symbol string) (domain.TokenHolding, error)
	// TokenHolders returns one page of the token's holder table.
	TokenHolders(ctx context.Context, symbol string, limit, offset int) ([]domain.TokenHolding, error)
	// GetTarget fetches content by author and permlink, or
	// domain.NotFoundError.
	GetTarget(ctx context.Context, author, permlink string) (*domain.CurationTarget, error)
	// BroadcastVote signs and submits a single endorsement. It must
	// never retry on its own.
	BroadcastVote(ctx context.Context, order domain.VoteOrder) error
}

// ChatPlatform is the boundary to the chat service: role membership
// and replies. The connection and session layer behind it is not this
// system's concern.
type ChatPlatform interface {
	HasRole(ctx context.Context, chatID string) (bool, error)
	GrantRole(ctx context.Context, chatID string) error
	RevokeRole(ctx context.Context, chatID string) error
	Reply(ctx context.Context, channelID, messageID, text string) error
}

// LinkStore is the durable chat-identity to ledger-account mapping.
// Mutations are serialized by the implementation and flushed before
// Put returns.
type LinkStore interface {
	Get(chatID string) (string, bool)
	Put(ctx context.Context, chatID, account string) error
	Values() []string
	ContainsValue(account string) bool
	All() []domain.LinkedAccount
}

// EventSink receives domain events for the ops surface. Publishing is
// best effort; a failing sink must never fail the operation that
// raised the event.
type EventSink interface {
	Publish(ctx context.Context, event domain.Event) error
}
