package hive

import (
	"encoding/json"
	"fmt"
	"time"
)

// Time is a block timestamp in the node's wire format, which carries
// no zone suffix and is always UTC.
type Time struct {
	time.Time
}

const timeLayout = "2006-01-02T15:04:05"

func (t Time) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.UTC().Format(timeLayout))
}

func (t *Time) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := time.ParseInLocation(timeLayout, s, time.UTC)
	if err != nil {
		return err
	}
	t.Time = parsed
	return nil
}

// Account is the subset of the on-chain account object this system
// reads.
type Account struct {
	ID                 int64  `json:"id"`
	Name               string `json:"name"`
	Created            Time   `json:"created"`
	PostingJSONMeta    string `json:"posting_json_metadata"`
	PostCount          int64  `json:"post_count"`
	BalanceString      string `json:"balance"`
	SavingsBalance     string `json:"savings_balance"`
	VestingSharesValue string `json:"vesting_shares"`
}

// DynamicGlobalProperties carries the chain head needed for TaPoS
// reference fields on a new transaction.
type DynamicGlobalProperties struct {
	HeadBlockNumber uint32 `json:"head_block_number"`
	HeadBlockID     string `json:"head_block_id"`
	Time            Time   `json:"time"`
}

// TransferOperation is a value movement extracted from an account's
// history.
type TransferOperation struct {
	From      string
	To        string
	Amount    string
	Memo      string
	Timestamp time.Time
}

// ActiveVote is one existing endorsement on a piece of content.
type ActiveVote struct {
	Voter   string `json:"voter"`
	Percent int    `json:"percent"`
}

// Content is a post or comment as returned by the node.
type Content struct {
	Author             string       `json:"author"`
	Permlink           string       `json:"permlink"`
	Title              string       `json:"title"`
	ParentAuthor       string       `json:"parent_author"`
	Depth              int          `json:"depth"`
	Created            Time         `json:"created"`
	JSONMetadata       string       `json:"json_metadata"`
	ActiveVotes        []ActiveVote `json:"active_votes"`
	PendingPayoutValue string       `json:"pending_payout_value"`
}

// contentMetadata is the parsed json_metadata blob; frontends write
// tags and images here.
type contentMetadata struct {
	Tags  []string `json:"tags"`
	Image []string `json:"image"`
}

// Tags parses the tag list out of the content's metadata blob. A
// malformed blob yields no tags rather than an error: metadata is
// frontend-controlled free text.
func (c Content) Tags() []string {
	if c.JSONMetadata == "" {
		return nil
	}
	var meta contentMetadata
	if err := json.Unmarshal([]byte(c.JSONMetadata), &meta); err != nil {
		return nil
	}
	return meta.Tags
}

// IsMainPost reports whether the content is a top-level post rather
// than a comment.
func (c Content) IsMainPost() bool {
	return c.ParentAuthor == "" && c.Depth == 0
}

// VoteOperation is a ledger endorsement. Weight is in basis points.
type VoteOperation struct {
	Voter    string `json:"voter"`
	Author   string `json:"author"`
	Permlink string `json:"permlink"`
	Weight   int16  `json:"weight"`
}

// MarshalJSON emits the node's [name, body] operation tuple.
func (op VoteOperation) MarshalJSON() ([]byte, error) {
	type body VoteOperation
	return json.Marshal([]any{"vote", body(op)})
}

// Transaction is a signable operation bundle.
type Transaction struct {
	RefBlockNum    uint16          `json:"ref_block_num"`
	RefBlockPrefix uint32          `json:"ref_block_prefix"`
	Expiration     Time            `json:"expiration"`
	Operations     []VoteOperation `json:"operations"`
	Extensions     []any           `json:"extensions"`
	Signatures     []string        `json:"signatures"`
}

// rpcError is the JSON-RPC error object returned by the node.
type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *rpcError) Error() string {
	return fmt.Sprintf("rpc error %d: %s", e.Code, e.Message)
}
