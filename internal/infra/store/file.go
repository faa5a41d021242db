package store

import (
	"context"
	"encoding/json"
	"os"
	"sort"
	"sync"

	"github.com/pkg/errors"

	"github.com/yaziris/discured/internal/domain"
)

// FileStore is the durable chat-identity to ledger-account mapping,
// serialized as one flat JSON object. Every mutation rewrites the
// whole file and flushes it before returning; writes are rare enough
// that simplicity beats partial-write performance here.
type FileStore struct {
	path string

	mu    sync.RWMutex
	links map[string]string
}

// Open loads the mapping from disk. A missing file is an empty store,
// not an error.
func Open(path string) (*FileStore, error) {
	s := &FileStore{
		path:  path,
		links: make(map[string]string),
	}

	raw, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return s, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to read link store")
	}
	if len(raw) == 0 {
		return s, nil
	}
	if err := json.Unmarshal(raw, &s.links); err != nil {
		return nil, errors.Wrap(err, "failed to decode link store")
	}
	return s, nil
}

// Get returns the account linked to the chat identity, if any.
func (s *FileStore) Get(chatID string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	account, ok := s.links[chatID]
	return account, ok
}

// Put binds the chat identity to the account, replacing any prior
// binding for that identity, and flushes the whole store.
func (s *FileStore) Put(ctx context.Context, chatID, account string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	prior, had := s.links[chatID]
	s.links[chatID] = account
	if err := s.flushLocked(); err != nil {
		// Keep memory and disk consistent.
		if had {
			s.links[chatID] = prior
		} else {
			delete(s.links, chatID)
		}
		return err
	}
	return nil
}

// Values lists all linked ledger accounts.
func (s *FileStore) Values() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	values := make([]string, 0, len(s.links))
	for _, account := range s.links {
		values = append(values, account)
	}
	sort.Strings(values)
	return values
}

// ContainsValue reports whether any chat identity links to the
// account.
func (s *FileStore) ContainsValue(account string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, have := range s.links {
		if have == account {
			return true
		}
	}
	return false
}

// All lists every link pair.
func (s *FileStore) All() []domain.LinkedAccount {
	s.mu.RLock()
	defer s.mu.RUnlock()
	all := make([]domain.LinkedAccount, 0, len(s.links))
	for chatID, account := range s.links {
		all = append(all, domain.LinkedAccount{ChatID: chatID, Account: account})
	}
	sort.Slice(all, func(i, j int) bool { return all[i].ChatID < all[j].ChatID })
	return all
}

// Len reports the linked population size.
func (s *FileStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.links)
}

func (s *FileStore) flushLocked() error {
	raw, err := json.MarshalIndent(s.links, "", "  ")
	if err != nil {
		return errors.Wrap(err, "failed to encode link store")
	}

	tmp := s.path + ".tmp"
	file, err := os.OpenFile(tmp, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return errors.Wrap(err, "failed to create link store")
	}
	if _, err := file.Write(raw); err != nil {
		file.Close()
		return errors.Wrap(err, "failed to write link store")
	}
	if err := file.Sync(); err != nil {
		file.Close()
		return errors.Wrap(err, "failed to sync link store")
	}
	if err := file.Close(); err != nil {
		return errors.Wrap(err, "failed to close link store")
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return errors.Wrap(err, "failed to replace link store")
	}
	return nil
}
