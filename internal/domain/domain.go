package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// LinkedAccount binds a chat identity to a ledger account. The mapping
// is bijective: re-verifying with a different account overwrites the
// prior binding, and an account already bound to someone else is
// rejected before verification starts.
type LinkedAccount struct {
	ChatID  string `json:"chatID"`
	Account string `json:"account"`
}

// TokenHolding is a point-in-time holding of the configured token,
// carrying both balance columns. It is fetched fresh for every
// decision and never cached across operations.
type TokenHolding struct {
	Account string
	Liquid  decimal.Decimal
	Staked  decimal.Decimal
}

// Amount returns the column selected by the configured balance kind.
func (h TokenHolding) Amount(kind BalanceKind) decimal.Decimal {
	if kind == BalanceLiquid {
		return h.Liquid
	}
	return h.Staked
}

// Transfer is a value movement on the ledger, carrying the free-text
// memo used as the verification back-channel.
type Transfer struct {
	From      string
	To        string
	Memo      string
	Timestamp time.Time
}


// CurationTarget is the content a submission points at, fetched fresh
// per dispatch.
type CurationTarget struct {
	Author        string
	Permlink      string
	Title         string
	Tags          []string
	CreatedAt     time.Time
	PendingPayout string
	Voters        []string
	IsTopLevel    bool
}

// HasTag reports whether the target carries the given tag.
func (t CurationTarget) HasTag(tag string) bool {
	for _, have := range t.Tags {
		if have == tag {
			return true
		}
	}
	return false
}

// VotedBy reports whether the given account already endorsed the target.
func (t CurationTarget) VotedBy(account string) bool {
	for _, voter := range t.Voters {
		if voter == account {
			return true
		}
	}
	return false
}

// Age is the time elapsed since the target was created.
func (t CurationTarget) Age(now time.Time) time.Duration {
	return now.Sub(t.CreatedAt)
}

// VoteOrder is a single endorsement operation ready to broadcast.
// Weight is in basis points, [-10000, 10000] on the wire; this system
// only ever emits [0, 10000].
type VoteOrder struct {
	Voter    string
	Author   string
	Permlink string
	Weight   int16
}

// LinkState is the outcome reported after a confirmed link, folding in
// the one-shot privilege check.
type LinkState struct {
	Linked     LinkedAccount
	Privileged bool
}

// ReconcileReport summarizes one reconciliation cycle.
type ReconcileReport struct {
	StartedAt  time.Time     `json:"startedAt"`
	Duration   time.Duration `json:"duration"`
	Population int           `json:"population"`
	Qualifying int           `json:"qualifying"`
	Granted    int           `json:"granted"`
	Revoked    int           `json:"revoked"`
	Failed     int           `json:"failed"`
}

// DispatchStatus is the terminal state of one submission.
type DispatchStatus int

const (
	// DispatchIgnored means no reply was produced: the submitter is
	// not linked, or is linked but currently weighs zero.
	DispatchIgnored DispatchStatus = iota
	DispatchRejected
	DispatchEndorsed
)

// EventType tags a domain event published for operators.
type EventType string

const (
	EventLinkConfirmed   EventType = "link.confirmed"
	EventRoleGranted     EventType = "role.granted"
	EventRoleRevoked     EventType = "role.revoked"
	EventEndorsementCast EventType = "endorsement.cast"
)

// Event is a domain occurrence streamed to the ops surface. It is
// strictly informational; no component consumes it to make decisions.
type Event struct {
	Type     EventType `json:"type"`
	ChatID   string    `json:"chatID,omitempty"`
	Account  string    `json:"account,omitempty"`
	Author   string    `json:"author,omitempty"`
	Permlink string    `json:"permlink,omitempty"`
	Weight   string    `json:"weight,omitempty"`
	At       time.Time `json:"at"`
}

// DispatchResult is the outcome of one submission run.
type DispatchResult struct {
	Status DispatchStatus
	Target *CurationTarget
	// Weight is the applied percentage, two decimal places, only set
	// on DispatchEndorsed.
	Weight decimal.Decimal
	// Reply is the message sent back to the submitter; empty on
	// DispatchIgnored.
	Reply string
}
