package usecase

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"
	"go.opentelemetry.io/otel"

	"github.com/yaziris/discured/internal/domain"
)

var reconcileTracer = otel.Tracer("reconcile")

// ErrCycleInProgress is returned when a reconciliation cycle fires
// while a prior one is still running. The new cycle is skipped, not
// queued.
var ErrCycleInProgress = errors.New("reconciliation cycle already in progress")

// ReconcileUsecase keeps the privilege role in sync with the token
// holder table across the whole linked population. Each cycle starts
// from scratch against the authoritative current state; nothing is
// carried over between cycles, so the process can be killed and
// relaunched at any point.
type ReconcileUsecase struct {
	store    LinkStore
	ledger   LedgerGateway
	chat     ChatPlatform
	events   EventSink
	curation domain.Curation
	tuning   domain.Tuning

	running atomic.Bool
	now     func() time.Time

	mu   sync.Mutex
	last *domain.ReconcileReport
}

func NewReconcileUsecase(
	store LinkStore,
	ledger LedgerGateway,
	chat ChatPlatform,
	events EventSink,
	curation domain.Curation,
	tuning domain.Tuning,
) *ReconcileUsecase {
	return &ReconcileUsecase{
		store:    store,
		ledger:   ledger,
		chat:     chat,
		events:   events,
		curation: curation,
		tuning:   tuning,
		now:      time.Now,
	}
}

// Reconcile runs one full cycle. A failure to obtain the holder set
// aborts the cycle before any role mutation; failures on individual
// accounts are logged and skipped. The context cancels the cycle
// between per-account iterations.
func (uc *ReconcileUsecase) Reconcile(ctx context.Context) (*domain.ReconcileReport, error) {
	if !uc.running.CompareAndSwap(false, true) {
		return nil, ErrCycleInProgress
	}
	defer uc.running.Store(false)

	ctx, span := reconcileTracer.Start(ctx, "Reconcile.Cycle")
	defer span.End()

	started := uc.now()

	qualifying, err := uc.qualifyingAccounts(ctx)
	if err != nil {
		span.RecordError(err)
		return nil, domain.GatewayError{Op: "token holders", Err: err}
	}

	report := &domain.ReconcileReport{
		StartedAt:  started,
		Qualifying: len(qualifying),
	}

	for _, linked := range uc.store.All() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		report.Population++

		_, qualified := qualifying[linked.Account]
		if err := uc.syncOne(ctx, linked, qualified, report); err != nil {
			// One member leaving the community must not starve the
			// rest of the population.
			slog.Warn("role sync failed for member",
				slog.String("chatID", linked.ChatID),
				slog.String("account", linked.Account),
				slog.String("error", err.Error()),
				slog.String("module", "reconcile"),
			)
			report.Failed++
		}

		if err := uc.throttle(ctx); err != nil {
			return nil, err
		}
	}

	report.Duration = uc.now().Sub(report.StartedAt)

	uc.mu.Lock()
	uc.last = report
	uc.mu.Unlock()

	slog.Info("reconciliation cycle complete",
		slog.Int("population", report.Population),
		slog.Int("granted", report.Granted),
		slog.Int("revoked", report.Revoked),
		slog.Int("failed", report.Failed),
		slog.String("module", "reconcile"),
	)
	return report, nil
}

// LastReport returns the most recently completed cycle's report, if
// any.
func (uc *ReconcileUsecase) LastReport() *domain.ReconcileReport {
	uc.mu.Lock()
	defer uc.mu.Unlock()
	return uc.last
}

// qualifyingAccounts walks the paginated holder table and keeps the
// accounts at or above the threshold. Pagination ends on a short page
// or at the configured page cap, whichever comes first.
func (uc *ReconcileUsecase) qualifyingAccounts(ctx context.Context) (map[string]struct{}, error) {
	threshold := decimalFromFloat(uc.curation.MinTokens)
	qualifying := make(map[string]struct{})

	pageSize := uc.tuning.HolderPageSize
	for page := 0; page < uc.tuning.HolderMaxPages; page++ {
		holders, err := uc.ledger.TokenHolders(ctx, uc.curation.TokenSymbol, pageSize, page*pageSize)
		if err != nil {
			return nil, err
		}
		for _, holder := range holders {
			if holder.Amount(uc.curation.BalanceKind).GreaterThanOrEqual(threshold) {
				qualifying[holder.Account] = struct{}{}
			}
		}
		if len(holders) < pageSize {
			break
		}
	}
	return qualifying, nil
}

func (uc *ReconcileUsecase) syncOne(ctx context.Context, linked domain.LinkedAccount, qualified bool, report *domain.ReconcileReport) error {
	hasRole, err := uc.chat.HasRole(ctx, linked.ChatID)
	if err != nil {
		return err
	}

	switch {
	case qualified && !hasRole:
		if err := uc.chat.GrantRole(ctx, linked.ChatID); err != nil {
			return err
		}
		report.Granted++
		uc.publish(ctx, domain.Event{
			Type: domain.EventRoleGranted, ChatID: linked.ChatID, Account: linked.Account, At: uc.now(),
		})
	case !qualified && hasRole:
		if err := uc.chat.RevokeRole(ctx, linked.ChatID); err != nil {
			return err
		}
		report.Revoked++
		uc.publish(ctx, domain.Event{
			Type: domain.EventRoleRevoked, ChatID: linked.ChatID, Account: linked.Account, At: uc.now(),
		})
	}
	// Already-correct state is left untouched.
	return nil
}

// throttle pauses between per-account iterations so the chat
// platform's rate limits are respected, while staying cancellable.
func (uc *ReconcileUsecase) throttle(ctx context.Context) error {
	if uc.tuning.RoleThrottle <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(uc.tuning.RoleThrottle.Std())
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func (uc *ReconcileUsecase) publish(ctx context.Context, event domain.Event) {
	if uc.events == nil {
		return
	}
	if err := uc.events.Publish(ctx, event); err != nil {
		slog.Debug("event publish failed",
			slog.String("error", err.Error()),
			slog.String("module", "reconcile"),
		)
	}
}
