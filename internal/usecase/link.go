package usecase

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"go.opentelemetry.io/otel"

	"github.com/yaziris/discured"
	"github.com/yaziris/discured/internal/domain"
)

var linkTracer = otel.Tracer("link")

// LinkUsecase proves that a chat identity controls a ledger account.
// The proof is a transfer to the curation account carrying a
// deterministic challenge memo; no key material ever changes hands.
type LinkUsecase struct {
	store    LinkStore
	ledger   LedgerGateway
	chat     ChatPlatform
	events   EventSink
	curation domain.Curation
	lookback time.Duration

	now func() time.Time
}

func NewLinkUsecase(
	store LinkStore,
	ledger LedgerGateway,
	chat ChatPlatform,
	events EventSink,
	curation domain.Curation,
	lookback time.Duration,
) *LinkUsecase {
	return &LinkUsecase{
		store:    store,
		ledger:   ledger,
		chat:     chat,
		events:   events,
		curation: curation,
		lookback: lookback,
		now:      time.Now,
	}
}

// NormalizeAccount canonicalizes a user-supplied account name.
func NormalizeAccount(account string) string {
	return strings.ToLower(strings.Trim(account, " @"))
}

// Begin validates a link claim and returns the challenge memo the user
// must send. The challenge is derived from the chat identity alone, so
// calling Begin again re-displays the same challenge.
func (uc *LinkUsecase) Begin(ctx context.Context, chatID, account string) (string, error) {
	ctx, span := linkTracer.Start(ctx, "Link.Begin")
	defer span.End()

	account = NormalizeAccount(account)

	if current, ok := uc.store.Get(chatID); ok && current == account {
		return "", domain.AlreadyLinkedError{Account: account}
	}
	if holder, taken := uc.linkedTo(account); taken && holder != chatID {
		return "", domain.ConflictError{Account: account}
	}
	if err := uc.ledger.ResolveAccount(ctx, account); err != nil {
		return "", err
	}
	return discured.ChallengeFor(chatID), nil
}

// Confirm scans the claimed account's recent transfers for the
// challenge memo and, on a match, persists the link and folds in a
// one-shot privilege check. A confirmed link makes repeated Confirm
// calls report the existing state without rescanning history.
func (uc *LinkUsecase) Confirm(ctx context.Context, chatID, account string) (domain.LinkState, error) {
	ctx, span := linkTracer.Start(ctx, "Link.Confirm")
	defer span.End()

	account = NormalizeAccount(account)

	if current, ok := uc.store.Get(chatID); ok && current == account {
		privileged, err := uc.syncPrivilege(ctx, chatID, account)
		if err != nil {
			return domain.LinkState{}, err
		}
		return domain.LinkState{
			Linked:     domain.LinkedAccount{ChatID: chatID, Account: account},
			Privileged: privileged,
		}, nil
	}
	if holder, taken := uc.linkedTo(account); taken && holder != chatID {
		return domain.LinkState{}, domain.ConflictError{Account: account}
	}

	matched, err := uc.findChallenge(ctx, chatID, account)
	if err != nil {
		return domain.LinkState{}, err
	}
	if !matched {
		return domain.LinkState{}, domain.VerificationError{Account: account}
	}

	if err := uc.store.Put(ctx, chatID, account); err != nil {
		return domain.LinkState{}, err
	}
	uc.publish(ctx, domain.Event{
		Type:    domain.EventLinkConfirmed,
		ChatID:  chatID,
		Account: account,
		At:      uc.now(),
	})

	privileged, err := uc.syncPrivilege(ctx, chatID, account)
	if err != nil {
		// The link itself is durable; privilege will be corrected on
		// the next reconciliation cycle.
		slog.Warn("privilege check after link failed",
			slog.String("error", err.Error()),
			slog.String("module", "link"),
		)
		err = nil
	}
	return domain.LinkState{
		Linked:     domain.LinkedAccount{ChatID: chatID, Account: account},
		Privileged: privileged,
	}, err
}

// findChallenge looks for a transfer to the curation account carrying
// the challenge memo inside the lookback window. The window is the
// challenge's implicit TTL.
func (uc *LinkUsecase) findChallenge(ctx context.Context, chatID, account string) (bool, error) {
	challenge := discured.ChallengeFor(chatID)
	cutoff := uc.now().Add(-uc.lookback)

	transfers, err := uc.ledger.TransfersSince(ctx, account, cutoff)
	if err != nil {
		return false, err
	}
	for _, transfer := range transfers {
		if transfer.To == uc.curation.Account && transfer.Memo == challenge {
			return true, nil
		}
	}
	return false, nil
}

// syncPrivilege applies a single iteration of the reconciler's
// per-account logic right after a link, so the user does not wait for
// the next scheduled cycle.
func (uc *LinkUsecase) syncPrivilege(ctx context.Context, chatID, account string) (bool, error) {
	holding, err := uc.ledger.TokenBalance(ctx, account, uc.curation.TokenSymbol)
	if err != nil {
		return false, err
	}
	qualified := holding.Amount(uc.curation.BalanceKind).
		GreaterThanOrEqual(decimalFromFloat(uc.curation.MinTokens))

	hasRole, err := uc.chat.HasRole(ctx, chatID)
	if err != nil {
		return qualified, err
	}
	switch {
	case qualified && !hasRole:
		if err := uc.chat.GrantRole(ctx, chatID); err != nil {
			return qualified, err
		}
		uc.publish(ctx, domain.Event{
			Type: domain.EventRoleGranted, ChatID: chatID, Account: account, At: uc.now(),
		})
	case !qualified && hasRole:
		if err := uc.chat.RevokeRole(ctx, chatID); err != nil {
			return qualified, err
		}
		uc.publish(ctx, domain.Event{
			Type: domain.EventRoleRevoked, ChatID: chatID, Account: account, At: uc.now(),
		})
	}
	return qualified, nil
}

// linkedTo finds the chat identity currently holding the account, if
// any.
func (uc *LinkUsecase) linkedTo(account string) (string, bool) {
	if !uc.store.ContainsValue(account) {
		return "", false
	}
	for _, linked := range uc.store.All() {
		if linked.Account == account {
			return linked.ChatID, true
		}
	}
	return "", false
}

func (uc *LinkUsecase) publish(ctx context.Context, event domain.Event) {
	if uc.events == nil {
		return
	}
	if err := uc.events.Publish(ctx, event); err != nil {
		slog.Debug("event publish failed",
			slog.String("error", err.Error()),
			slog.String("module", "link"),
		)
	}
}
