package usecase

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/yaziris/discured/internal/domain"
)

type mockStore struct {
	links map[string]string
	puts  int
}

func newMockStore() *mockStore {
	return &mockStore{links: make(map[string]string)}
}

func (m *mockStore) Get(chatID string) (string, bool) {
	account, ok := m.links[chatID]
	return account, ok
}

func (m *mockStore) Put(ctx context.Context, chatID, account string) error {
	m.links[chatID] = account
	m.puts++
	return nil
}

func (m *mockStore) Values() []string {
	var values []string
	for _, account := range m.links {
		values = append(values, account)
	}
	sort.Strings(values)
	return values
}

func (m *mockStore) ContainsValue(account string) bool {
	for _, have := range m.links {
		if have == account {
			return true
		}
	}
	return false
}

func (m *mockStore) All() []domain.LinkedAccount {
	var all []domain.LinkedAccount
	for chatID, account := range m.links {
		all = append(all, domain.LinkedAccount{ChatID: chatID, Account: account})
	}
	sort.Slice(all, func(i, j int) bool { return all[i].ChatID < all[j].ChatID })
	return all
}

type mockLedger struct {
	accounts  map[string]bool
	transfers []domain.Transfer
	holdings  map[string]domain.TokenHolding
	holders   []domain.TokenHolding
	targets   map[string]*domain.CurationTarget

	holdersErr   error
	broadcastErr error

	historyCalls int
	holderCalls  int
	broadcasts   []domain.VoteOrder
}

func newMockLedger() *mockLedger {
	return &mockLedger{
		accounts: make(map[string]bool),
		holdings: make(map[string]domain.TokenHolding),
		targets:  make(map[string]*domain.CurationTarget),
	}
}

func (m *mockLedger) ResolveAccount(ctx context.Context, name string) error {
	if !m.accounts[name] {
		return domain.NotFoundError{Resource: "account " + name}
	}
	return nil
}

func (m *mockLedger) TransfersSince(ctx context.Context, account string, since time.Time) ([]domain.Transfer, error) {
	m.historyCalls++
	var matched []domain.Transfer
	for _, transfer := range m.transfers {
		if transfer.From == account && !transfer.Timestamp.Before(since) {
			matched = append(matched, transfer)
		}
	}
	return matched, nil
}

func (m *mockLedger) TokenBalance(ctx context.Context, account, symbol string) (domain.TokenHolding, error) {
	holding, ok := m.holdings[account]
	if !ok {
		return domain.TokenHolding{Account: account}, nil
	}
	return holding, nil
}

func (m *mockLedger) TokenHolders(ctx context.Context, symbol string, limit, offset int) ([]domain.TokenHolding, error) {
	m.holderCalls++
	if m.holdersErr != nil {
		return nil, m.holdersErr
	}
	if offset >= len(m.holders) {
		return nil, nil
	}
	end := offset + limit
	if end > len(m.holders) {
		end = len(m.holders)
	}
	return m.holders[offset:end], nil
}

func (m *mockLedger) GetTarget(ctx context.Context, author, permlink string) (*domain.CurationTarget, error) {
	target, ok := m.targets[author+"/"+permlink]
	if !ok {
		return nil, domain.NotFoundError{Resource: "content"}
	}
	return target, nil
}

func (m *mockLedger) BroadcastVote(ctx context.Context, order domain.VoteOrder) error {
	if m.broadcastErr != nil {
		return domain.BroadcastError{Err: m.broadcastErr}
	}
	m.broadcasts = append(m.broadcasts, order)
	return nil
}

type mockChat struct {
	roles    map[string]bool
	failFor  map[string]error
	grants   []string
	revokes  []string
	replies  []string
	replyErr error
}

func newMockChat() *mockChat {
	return &mockChat{
		roles:   make(map[string]bool),
		failFor: make(map[string]error),
	}
}

func (m *mockChat) HasRole(ctx context.Context, chatID string) (bool, error) {
	if err := m.failFor[chatID]; err != nil {
		return false, err
	}
	return m.roles[chatID], nil
}

func (m *mockChat) GrantRole(ctx context.Context, chatID string) error {
	if err := m.failFor[chatID]; err != nil {
		return err
	}
	m.roles[chatID] = true
	m.grants = append(m.grants, chatID)
	return nil
}

func (m *mockChat) RevokeRole(ctx context.Context, chatID string) error {
	if err := m.failFor[chatID]; err != nil {
		return err
	}
	m.roles[chatID] = false
	m.revokes = append(m.revokes, chatID)
	return nil
}

func (m *mockChat) Reply(ctx context.Context, channelID, messageID, text string) error {
	if m.replyErr != nil {
		return m.replyErr
	}
	m.replies = append(m.replies, text)
	return nil
}

type mockSink struct {
	events []domain.Event
}

func (m *mockSink) Publish(ctx context.Context, event domain.Event) error {
	m.events = append(m.events, event)
	return nil
}

func (m *mockSink) ofType(kind domain.EventType) []domain.Event {
	var matched []domain.Event
	for _, event := range m.events {
		if event.Type == kind {
			matched = append(matched, event)
		}
	}
	return matched
}

var errUpstreamDown = fmt.Errorf("upstream down")

// holding builds a staked-only holding for tests.
func holding(account string, staked float64) domain.TokenHolding {
	return domain.TokenHolding{
		Account: account,
		Staked:  decimal.NewFromFloat(staked),
	}
}
