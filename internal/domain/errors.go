package domain

import "fmt"

// NotFoundError represents a missing ledger resource (account or
// content).
type NotFoundError struct {
	Resource string
}

func (e NotFoundError) Error() string {
	if e.Resource == "" {
		return "not found"
	}
	return fmt.Sprintf("%s not found", e.Resource)
}

// Is enables errors.Is matching on NotFoundError.
func (e NotFoundError) Is(target error) bool {
	_, ok := target.(NotFoundError)
	if ok {
		return true
	}
	_, ok = target.(*NotFoundError)
	return ok
}

// ErrNotFound is the sentinel error for missing resources.
var ErrNotFound = NotFoundError{}

// ConflictError means the claimed ledger account is already linked to
// a different chat identity.
type ConflictError struct {
	Account string
}

func (e ConflictError) Error() string {
	return fmt.Sprintf("account %s is already linked to another user", e.Account)
}

func (e ConflictError) Is(target error) bool {
	_, ok := target.(ConflictError)
	if ok {
		return true
	}
	_, ok = target.(*ConflictError)
	return ok
}

var ErrConflict = ConflictError{}

// AlreadyLinkedError means the chat identity already maps to the very
// account it is claiming; beginning a new link is a no-op.
type AlreadyLinkedError struct {
	Account string
}

func (e AlreadyLinkedError) Error() string {
	return fmt.Sprintf("already linked to %s", e.Account)
}

func (e AlreadyLinkedError) Is(target error) bool {
	_, ok := target.(AlreadyLinkedError)
	if ok {
		return true
	}
	_, ok = target.(*AlreadyLinkedError)
	return ok
}

var ErrAlreadyLinked = AlreadyLinkedError{}

// VerificationError means no transfer matching the challenge was found
// within the lookback window. The caller may retry confirmation
// without starting over.
type VerificationError struct {
	Account string
}

func (e VerificationError) Error() string {
	return fmt.Sprintf("no matching transfer from %s within the verification window", e.Account)
}

func (e VerificationError) Is(target error) bool {
	_, ok := target.(VerificationError)
	if ok {
		return true
	}
	_, ok = target.(*VerificationError)
	return ok
}

var ErrVerification = VerificationError{}

// RejectReason tags the policy gate that refused a submission.
type RejectReason string

const (
	RejectMalformedLink RejectReason = "malformed-link"
	RejectMissingTag    RejectReason = "missing-tag"
	RejectAlreadyVoted  RejectReason = "already-voted"
	RejectCommentTarget RejectReason = "comment-target"
	RejectTooOld        RejectReason = "too-old"
)

// PolicyError is an expected gate refusal during dispatch. It is
// surfaced to the submitter, never logged as an error.
type PolicyError struct {
	Reason RejectReason
	Detail string
}

func (e PolicyError) Error() string {
	if e.Detail == "" {
		return string(e.Reason)
	}
	return fmt.Sprintf("%s: %s", e.Reason, e.Detail)
}

func (e PolicyError) Is(target error) bool {
	_, ok := target.(PolicyError)
	if ok {
		return true
	}
	_, ok = target.(*PolicyError)
	return ok
}

var ErrPolicy = PolicyError{}

// GatewayError wraps a network or API failure talking to the ledger or
// the chat platform. During reconciliation it aborts the cycle; during
// dispatch it is reported as "try again later".
type GatewayError struct {
	Op  string
	Err error
}

func (e GatewayError) Error() string {
	return fmt.Sprintf("gateway failure on %s: %v", e.Op, e.Err)
}

func (e GatewayError) Unwrap() error { return e.Err }

func (e GatewayError) Is(target error) bool {
	_, ok := target.(GatewayError)
	if ok {
		return true
	}
	_, ok = target.(*GatewayError)
	return ok
}

var ErrGateway = GatewayError{}

// BroadcastError is a signing or submission failure for a ledger
// transaction. Broadcasts are never auto-retried: a duplicate
// endorsement is worse than a missed one.
type BroadcastError struct {
	Err error
}

func (e BroadcastError) Error() string {
	return fmt.Sprintf("broadcast failed: %v", e.Err)
}

func (e BroadcastError) Unwrap() error { return e.Err }

func (e BroadcastError) Is(target error) bool {
	_, ok := target.(BroadcastError)
	if ok {
		return true
	}
	_, ok = target.(*BroadcastError)
	return ok
}

var ErrBroadcast = BroadcastError{}
