package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"

	"github.com/yaziris/discured"
	"github.com/yaziris/discured/internal/domain"
)

var curateTracer = otel.Tracer("curate")

// Submission is one inbound content submission from the curation
// channel.
type Submission struct {
	ChatID    string
	ChannelID string
	MessageID string
	Text      string
}

// CurateUsecase validates a submission against the ordered policy
// gates, weighs the submitter's holding into a vote percentage, and
// casts a single endorsement. A submission from an unlinked identity
// and a zero-weight submission both end silently; every other terminal
// state produces exactly one reply.
type CurateUsecase struct {
	store    LinkStore
	ledger   LedgerGateway
	chat     ChatPlatform
	events   EventSink
	curation domain.Curation

	now func() time.Time
}

func NewCurateUsecase(
	store LinkStore,
	ledger LedgerGateway,
	chat ChatPlatform,
	events EventSink,
	curation domain.Curation,
) *CurateUsecase {
	return &CurateUsecase{
		store:    store,
		ledger:   ledger,
		chat:     chat,
		events:   events,
		curation: curation,
		now:      time.Now,
	}
}

// Dispatch runs one submission through parse, policy gates, weighing
// and broadcast. The returned error covers only reply delivery and
// other unexpected failures; policy refusals and broadcast failures
// are terminal states inside the result.
func (uc *CurateUsecase) Dispatch(ctx context.Context, sub Submission) (domain.DispatchResult, error) {
	ctx, span := curateTracer.Start(ctx, "Curate.Dispatch")
	defer span.End()

	// Eligibility filter: casual non-participants get no response at
	// all.
	account, linked := uc.store.Get(sub.ChatID)
	if !linked {
		return domain.DispatchResult{Status: domain.DispatchIgnored}, nil
	}

	author, permlink, err := discured.ParsePostLink(sub.Text)
	if err != nil {
		return uc.reject(ctx, sub, nil, domain.PolicyError{
			Reason: domain.RejectMalformedLink,
			Detail: "make sure it's a valid link to a post or comment",
		})
	}

	target, err := uc.ledger.GetTarget(ctx, author, permlink)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return uc.reject(ctx, sub, nil, domain.PolicyError{
				Reason: domain.RejectMalformedLink,
				Detail: "make sure it's a valid link to a post or comment",
			})
		}
		return uc.replyError(ctx, sub, "❌ The ledger did not answer. Try again in a bit.", err)
	}

	if gate := uc.checkPolicy(target); gate != nil {
		return uc.reject(ctx, sub, target, *gate)
	}

	holding, err := uc.ledger.TokenBalance(ctx, account, uc.curation.TokenSymbol)
	if err != nil {
		return uc.replyError(ctx, sub, "❌ The ledger did not answer. Try again in a bit.", err)
	}
	weight := computeWeight(holding.Amount(uc.curation.BalanceKind), uc.curation)
	if !weight.IsPositive() {
		// Linked but currently under-funded: stays silent, same as an
		// unlinked submitter.
		return domain.DispatchResult{Status: domain.DispatchIgnored, Target: target}, nil
	}

	order := domain.VoteOrder{
		Voter:    uc.curation.Account,
		Author:   target.Author,
		Permlink: target.Permlink,
		Weight:   basisPoints(weight),
	}
	if err := uc.ledger.BroadcastVote(ctx, order); err != nil {
		// The broadcast is the point of no return; a failure here is
		// reported once and never retried automatically.
		slog.Warn("endorsement broadcast failed",
			slog.String("author", target.Author),
			slog.String("permlink", target.Permlink),
			slog.String("error", err.Error()),
			slog.String("module", "curate"),
		)
		reply := "❌ Could not vote. This could be due to ledger nodes being down, or an invalid posting key. Maybe try again in a bit."
		if replyErr := uc.chat.Reply(ctx, sub.ChannelID, sub.MessageID, reply); replyErr != nil {
			return domain.DispatchResult{Status: domain.DispatchRejected, Target: target, Reply: reply}, replyErr
		}
		return domain.DispatchResult{Status: domain.DispatchRejected, Target: target, Reply: reply}, nil
	}

	uc.publish(ctx, domain.Event{
		Type:     domain.EventEndorsementCast,
		ChatID:   sub.ChatID,
		Account:  account,
		Author:   target.Author,
		Permlink: target.Permlink,
		Weight:   weight.String(),
		At:       uc.now(),
	})

	reply := fmt.Sprintf(
		"🟢 Voted \"%s\" by @%s with %s%%\nCreated: %s\nPending payout: %s",
		target.Title, target.Author, weight.String(),
		target.CreatedAt.UTC().Format(time.RFC1123),
		target.PendingPayout,
	)
	if err := uc.chat.Reply(ctx, sub.ChannelID, sub.MessageID, reply); err != nil {
		return domain.DispatchResult{Status: domain.DispatchEndorsed, Target: target, Weight: weight, Reply: reply}, err
	}
	return domain.DispatchResult{Status: domain.DispatchEndorsed, Target: target, Weight: weight, Reply: reply}, nil
}

// checkPolicy evaluates the ordered, short-circuiting gates. The
// linked-submitter gate runs before parsing and is not repeated here.
func (uc *CurateUsecase) checkPolicy(target *domain.CurationTarget) *domain.PolicyError {
	if tag := uc.curation.RequiredTag; tag != "" && !target.HasTag(tag) {
		return &domain.PolicyError{
			Reason: domain.RejectMissingTag,
			Detail: fmt.Sprintf("the post doesn't have the #%s tag", tag),
		}
	}
	if target.VotedBy(uc.curation.Account) {
		return &domain.PolicyError{
			Reason: domain.RejectAlreadyVoted,
			Detail: fmt.Sprintf("the post has already been voted by %s", uc.curation.Account),
		}
	}
	if !target.IsTopLevel && !uc.curation.VoteComments {
		return &domain.PolicyError{
			Reason: domain.RejectCommentTarget,
			Detail: "voting comments is not allowed per this community's curation settings",
		}
	}
	window := time.Duration(uc.curation.WindowHours) * time.Hour
	if target.Age(uc.now()) > window {
		return &domain.PolicyError{
			Reason: domain.RejectTooOld,
			Detail: fmt.Sprintf("the post is older than the %d hour curation window", uc.curation.WindowHours),
		}
	}
	return nil
}

func (uc *CurateUsecase) reject(ctx context.Context, sub Submission, target *domain.CurationTarget, gate domain.PolicyError) (domain.DispatchResult, error) {
	reply := "❌ " + gate.Detail + "!"
	result := domain.DispatchResult{
		Status: domain.DispatchRejected,
		Target: target,
		Reply:  reply,
	}
	if err := uc.chat.Reply(ctx, sub.ChannelID, sub.MessageID, reply); err != nil {
		return result, err
	}
	return result, nil
}

func (uc *CurateUsecase) replyError(ctx context.Context, sub Submission, reply string, cause error) (domain.DispatchResult, error) {
	slog.Warn("dispatch hit a gateway failure",
		slog.String("error", cause.Error()),
		slog.String("module", "curate"),
	)
	result := domain.DispatchResult{Status: domain.DispatchRejected, Reply: reply}
	if err := uc.chat.Reply(ctx, sub.ChannelID, sub.MessageID, reply); err != nil {
		return result, err
	}
	return result, nil
}

func (uc *CurateUsecase) publish(ctx context.Context, event domain.Event) {
	if uc.events == nil {
		return
	}
	if err := uc.events.Publish(ctx, event); err != nil {
		slog.Debug("event publish failed",
			slog.String("error", err.Error()),
			slog.String("module", "curate"),
		)
	}
}
