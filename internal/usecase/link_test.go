package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/yaziris/discured/internal/domain"
)

var testCuration = domain.Curation{
	Account:          "curator",
	TokenSymbol:      "LEO",
	BalanceKind:      domain.BalanceStaked,
	MinTokens:        100,
	TokensPerPercent: 50,
	WindowHours:      24,
}

func fixedNow() time.Time {
	return time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
}

func newLinkFixture() (*LinkUsecase, *mockStore, *mockLedger, *mockChat, *mockSink) {
	store := newMockStore()
	ledger := newMockLedger()
	chat := newMockChat()
	sink := &mockSink{}
	uc := NewLinkUsecase(store, ledger, chat, sink, testCuration, 10*time.Minute)
	uc.now = fixedNow
	return uc, store, ledger, chat, sink
}

func TestBeginReturnsChallenge(t *testing.T) {
	uc, _, ledger, _, _ := newLinkFixture()
	ledger.accounts["alice"] = true

	challenge, err := uc.Begin(context.Background(), "u1", " @Alice ")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if challenge != "dTE=" {
		t.Fatalf("challenge: got %s want dTE=", challenge)
	}
}

func TestBeginRejectsUnknownAccount(t *testing.T) {
	uc, _, _, _, _ := newLinkFixture()

	_, err := uc.Begin(context.Background(), "u1", "ghost")
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected NotFound, got %v", err)
	}
}

func TestBeginRejectsSameMapping(t *testing.T) {
	uc, store, ledger, _, _ := newLinkFixture()
	ledger.accounts["alice"] = true
	store.links["u1"] = "alice"

	_, err := uc.Begin(context.Background(), "u1", "alice")
	if !errors.Is(err, domain.ErrAlreadyLinked) {
		t.Fatalf("expected AlreadyLinked, got %v", err)
	}
}

func TestBeginRejectsConflict(t *testing.T) {
	uc, store, ledger, _, _ := newLinkFixture()
	ledger.accounts["alice"] = true
	store.links["u2"] = "alice"

	_, err := uc.Begin(context.Background(), "u1", "alice")
	if !errors.Is(err, domain.ErrConflict) {
		t.Fatalf("expected Conflict, got %v", err)
	}
}

func TestConfirmInsideWindow(t *testing.T) {
	uc, store, ledger, chat, sink := newLinkFixture()
	ledger.accounts["alice"] = true
	ledger.transfers = []domain.Transfer{{
		From:      "alice",
		To:        "curator",
		Memo:      "dTE=",
		Timestamp: fixedNow().Add(-3 * time.Minute),
	}}
	ledger.holdings["alice"] = holding("alice", 500)

	state, err := uc.Confirm(context.Background(), "u1", "alice")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if store.links["u1"] != "alice" {
		t.Fatal("link not persisted")
	}
	if !state.Privileged {
		t.Fatal("expected privilege: 500 held against a 100 threshold")
	}
	if len(chat.grants) != 1 || chat.grants[0] != "u1" {
		t.Fatalf("expected one role grant for u1, got %v", chat.grants)
	}
	if len(sink.ofType(domain.EventLinkConfirmed)) != 1 {
		t.Fatal("expected a link.confirmed event")
	}
}

func TestConfirmWindowBoundary(t *testing.T) {
	uc, store, ledger, _, _ := newLinkFixture()
	ledger.accounts["alice"] = true
	ledger.transfers = []domain.Transfer{{
		From:      "alice",
		To:        "curator",
		Memo:      "dTE=",
		Timestamp: fixedNow().Add(-11 * time.Minute),
	}}

	_, err := uc.Confirm(context.Background(), "u1", "alice")
	if !errors.Is(err, domain.ErrVerification) {
		t.Fatalf("an 11 minute old transfer must not confirm, got %v", err)
	}
	if len(store.links) != 0 {
		t.Fatal("no partial state may be written on failure")
	}

	// A nine minute old transfer confirms on retry without a new
	// Begin.
	ledger.transfers[0].Timestamp = fixedNow().Add(-9 * time.Minute)
	if _, err := uc.Confirm(context.Background(), "u1", "alice"); err != nil {
		t.Fatalf("retry inside window failed: %v", err)
	}
}

func TestConfirmRequiresExactMemoAndDestination(t *testing.T) {
	uc, _, ledger, _, _ := newLinkFixture()
	ledger.accounts["alice"] = true
	ledger.transfers = []domain.Transfer{
		{From: "alice", To: "curator", Memo: "wrong", Timestamp: fixedNow().Add(-time.Minute)},
		{From: "alice", To: "other", Memo: "dTE=", Timestamp: fixedNow().Add(-time.Minute)},
	}

	_, err := uc.Confirm(context.Background(), "u1", "alice")
	if !errors.Is(err, domain.ErrVerification) {
		t.Fatalf("expected VerificationError, got %v", err)
	}
}

func TestConfirmIdempotent(t *testing.T) {
	uc, store, ledger, _, _ := newLinkFixture()
	ledger.accounts["alice"] = true
	store.links["u1"] = "alice"
	ledger.holdings["alice"] = holding("alice", 500)

	state, err := uc.Confirm(context.Background(), "u1", "alice")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if state.Linked.Account != "alice" || !state.Privileged {
		t.Fatalf("unexpected state: %+v", state)
	}
	if ledger.historyCalls != 0 {
		t.Fatal("already-linked confirmation must not rescan history")
	}
	if store.puts != 0 {
		t.Fatal("already-linked confirmation must not rewrite the store")
	}
}

func TestRelinkOverwrites(t *testing.T) {
	uc, store, ledger, _, _ := newLinkFixture()
	ledger.accounts["bob"] = true
	store.links["u1"] = "alice"
	ledger.transfers = []domain.Transfer{{
		From:      "bob",
		To:        "curator",
		Memo:      "dTE=",
		Timestamp: fixedNow().Add(-time.Minute),
	}}

	if _, err := uc.Confirm(context.Background(), "u1", "bob"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := store.links["u1"]; got != "bob" {
		t.Fatalf("expected overwrite to bob, got %s", got)
	}
	if len(store.links) != 1 {
		t.Fatal("re-linking must not duplicate the mapping")
	}
}

func TestConfirmConflict(t *testing.T) {
	uc, store, ledger, _, _ := newLinkFixture()
	ledger.accounts["alice"] = true
	store.links["u2"] = "alice"

	_, err := uc.Confirm(context.Background(), "u1", "alice")
	if !errors.Is(err, domain.ErrConflict) {
		t.Fatalf("expected Conflict, got %v", err)
	}
}
