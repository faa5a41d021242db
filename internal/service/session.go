package service

import (
	"crypto/rand"
	"encoding/hex"
	"sync"
	"time"

	"github.com/pkg/errors"
)

// Session errors. Expired and hijacked actions look the same to the
// initiator; the distinction only matters for logging.
var (
	ErrSessionNotFound = errors.New("no such pending verification")
	ErrSessionExpired  = errors.New("verification timed out")
	ErrNotInitiator    = errors.New("action belongs to another user")
)

// Session is one pending account verification. The tag ties follow-up
// actions (confirm, cancel) back to it, and only the initiating chat
// identity may act on it.
type Session struct {
	Tag       string
	ChatID    string
	Account   string
	Challenge string
	StartedAt time.Time
}

// SessionService tracks pending verifications in memory. A restart
// drops them, which is fine: the user just starts over, and nothing
// durable happens before confirmation.
type SessionService struct {
	timeout time.Duration
	now     func() time.Time

	mu       sync.Mutex
	sessions map[string]*Session
	byChat   map[string]string
}

func NewSessionService(timeout time.Duration) *SessionService {
	return &SessionService{
		timeout:  timeout,
		now:      time.Now,
		sessions: make(map[string]*Session),
		byChat:   make(map[string]string),
	}
}

// Start opens a pending verification for the chat identity, replacing
// any earlier one it had, and returns the action tag.
func (s *SessionService) Start(chatID, account, challenge string) (*Session, error) {
	tag, err := newTag()
	if err != nil {
		return nil, errors.Wrap(err, "failed to create session tag")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if prior, ok := s.byChat[chatID]; ok {
		delete(s.sessions, prior)
	}
	session := &Session{
		Tag:       tag,
		ChatID:    chatID,
		Account:   account,
		Challenge: challenge,
		StartedAt: s.now(),
	}
	s.sessions[tag] = session
	s.byChat[chatID] = tag
	return session, nil
}

// Claim validates and consumes a pending verification: the tag must
// exist, must not have timed out, and the actor must be the identity
// that started it. On success the session is removed.
func (s *SessionService) Claim(tag, chatID string) (*Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, ok := s.sessions[tag]
	if !ok {
		return nil, ErrSessionNotFound
	}
	if session.ChatID != chatID {
		// Leave the session alone; the initiator can still use it.
		return nil, ErrNotInitiator
	}
	s.removeLocked(session)
	if s.now().Sub(session.StartedAt) > s.timeout {
		return nil, ErrSessionExpired
	}
	return session, nil
}

// Cancel discards a pending verification. Only the initiator may
// cancel.
func (s *SessionService) Cancel(tag, chatID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, ok := s.sessions[tag]
	if !ok {
		return ErrSessionNotFound
	}
	if session.ChatID != chatID {
		return ErrNotInitiator
	}
	s.removeLocked(session)
	return nil
}

// Pending returns the chat identity's open verification, if it has one
// and it has not timed out.
func (s *SessionService) Pending(chatID string) (*Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tag, ok := s.byChat[chatID]
	if !ok {
		return nil, false
	}
	session := s.sessions[tag]
	if s.now().Sub(session.StartedAt) > s.timeout {
		s.removeLocked(session)
		return nil, false
	}
	return session, true
}

func (s *SessionService) removeLocked(session *Session) {
	delete(s.sessions, session.Tag)
	if s.byChat[session.ChatID] == session.Tag {
		delete(s.byChat, session.ChatID)
	}
}

func newTag() (string, error) {
	raw := make([]byte, 16)
	if _, err := rand.Read(raw); err != nil {
		return "", err
	}
	return hex.EncodeToString(raw), nil
}
