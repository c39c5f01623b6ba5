package hub

import (
	"fmt"
	"slices"
	"strings"
	"sync"
)

// Store owns the mapping of username to account. It is the only data store
// of the application and is handed to every other component explicitly.
//
// Accounts keep signup order; that order is the iteration order of every
// view that gathers across all accounts.
//
// All mutations run under one write lock and are followed by a whole-store
// persist, so a reader never observes a half-applied follow or unfollow.
type Store struct {
	mu        sync.RWMutex
	persister Persister
	idgen     IDGenerator
	logger    Logger
	accounts  map[string]*Account
	order     []string
}

// NewStore creates an empty store backed by persister. Call Load before use.
func NewStore(persister Persister, idgen IDGenerator, logger Logger) *Store {
	return &Store{
		persister: persister,
		idgen:     idgen,
		logger:    logger,
		accounts:  make(map[string]*Account),
	}
}

// Load replaces the in-memory mapping with the persisted snapshot.
// Snapshots written by older versions are normalized (missing post IDs,
// duplicate or dangling relationship entries, one-sided follows); when
// anything was repaired the normalized snapshot is written back.
func (s *Store) Load() error {
	accounts, err := s.persister.Load()
	if err != nil {
		return fmt.Errorf("loading accounts: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	repaired := s.install(accounts)
	s.logger.Debug("store loaded", "accounts", len(s.order))
	if repaired {
		s.logger.Info("snapshot normalized on load", "accounts", len(s.order))
		if err := s.persistLocked("load"); err != nil {
			return err
		}
	}
	return nil
}

// Create registers a new account. The username and bio are trimmed; the
// password is stored exactly as given.
func (s *Store) Create(username, password, bio string) error {
	username = strings.TrimSpace(username)
	bio = strings.TrimSpace(bio)

	acct, err := NewAccount(username, password, bio)
	if err != nil {
		return fmt.Errorf("%w: username and password are required", err)
	}

	return s.update("create", func() error {
		if _, ok := s.accounts[username]; ok {
			return ErrDuplicateUser
		}
		s.accounts[username] = acct
		s.order = append(s.order, username)
		s.logger.Info("account created", "user", username)
		return nil
	})
}

// Get returns a copy of the named account. Lookup is exact and case-sensitive.
func (s *Store) Get(username string) (*Account, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	acct, ok := s.accounts[username]
	if !ok {
		return nil, false
	}
	return acct.Clone(), true
}

// Usernames returns every username in signup order.
func (s *Store) Usernames() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.order)
}

// Len returns the number of accounts.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.order)
}

// Snapshot returns copies of every account in signup order.
func (s *Store) Snapshot() []*Account {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*Account, len(s.order))
	for i, name := range s.order {
		out[i] = s.accounts[name].Clone()
	}
	return out
}

// Persist writes the entire mapping through the persister.
func (s *Store) Persist() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.persistLocked("persist")
}

// Replace swaps the whole mapping for accounts and persists it.
func (s *Store) Replace(accounts []*Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	copies := make([]*Account, len(accounts))
	for i, a := range accounts {
		copies[i] = a.Clone()
	}
	s.install(copies)
	s.logger.Info("store replaced", "accounts", len(s.order))
	return s.persistLocked("replace")
}

// Close releases the persister.
func (s *Store) Close() error {
	return s.persister.Close()
}

// update runs fn under the write lock and persists if fn succeeds.
func (s *Store) update(op string, fn func() error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := fn(); err != nil {
		return err
	}
	return s.persistLocked(op)
}

// view runs fn under the read lock.
func (s *Store) view(fn func()) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	fn()
}

// lookup returns the live account. Callers must hold the lock.
func (s *Store) lookup(username string) *Account {
	return s.accounts[username]
}

// each calls fn for every live account in signup order. Callers must hold the lock.
func (s *Store) each(fn func(*Account)) {
	for _, name := range s.order {
		fn(s.accounts[name])
	}
}

func (s *Store) persistLocked(op string) error {
	accounts := make([]*Account, len(s.order))
	for i, name := range s.order {
		accounts[i] = s.accounts[name]
	}
	if err := s.persister.Save(accounts); err != nil {
		s.logger.Error("persist failed", "op", op, "error", err)
		return &PersistenceError{Op: op, Err: err}
	}
	return nil
}

// install replaces the mapping with accounts and repairs anything that breaks
// the data model. It reports whether a repair was needed.
func (s *Store) install(accounts []*Account) bool {
	s.accounts = make(map[string]*Account, len(accounts))
	s.order = s.order[:0]
	repaired := false

	for _, a := range accounts {
		if a == nil || a.Username == "" {
			repaired = true
			continue
		}
		if _, dup := s.accounts[a.Username]; dup {
			repaired = true
			continue
		}
		s.accounts[a.Username] = a
		s.order = append(s.order, a.Username)
	}

	// Drop dangling, duplicate and self references, then restore any
	// one-sided follow so the mirror invariant holds.
	for _, name := range s.order {
		a := s.accounts[name]
		following := s.validRefs(name, a.Following)
		followers := s.validRefs(name, a.Followers)
		if len(following) != len(a.Following) || len(followers) != len(a.Followers) {
			repaired = true
		}
		a.Following, a.Followers = following, followers
	}
	for _, name := range s.order {
		a := s.accounts[name]
		for _, to := range a.Following {
			if target := s.accounts[to]; !target.HasFollower(name) {
				target.Followers = append(target.Followers, name)
				repaired = true
			}
		}
		for _, from := range a.Followers {
			if source := s.accounts[from]; !source.IsFollowing(name) {
				source.Following = append(source.Following, name)
				repaired = true
			}
		}
	}

	seenIDs := make(map[string]bool)
	for _, name := range s.order {
		a := s.accounts[name]
		posts := slices.DeleteFunc(a.Posts, func(p *Post) bool { return p == nil })
		if len(posts) != len(a.Posts) {
			repaired = true
		}
		a.Posts = posts
		if a.Posts == nil {
			a.Posts = []*Post{}
		}
		for _, p := range a.Posts {
			if p.ID == "" || seenIDs[p.ID] {
				p.ID = s.idgen.New()
				repaired = true
			}
			seenIDs[p.ID] = true
			if p.Tags == nil {
				p.Tags = []string{}
			}
			if p.Likes == nil {
				p.Likes = []string{}
			}
			if deduped := dedupe(p.Likes); len(deduped) != len(p.Likes) {
				p.Likes = deduped
				repaired = true
			}
		}
	}

	return repaired
}

// validRefs filters refs down to existing accounts other than self, without
// duplicates, keeping order.
func (s *Store) validRefs(self string, refs []string) []string {
	out := make([]string, 0, len(refs))
	for _, r := range dedupe(refs) {
		if r != self && s.accounts[r] != nil {
			out = append(out, r)
		}
	}
	return out
}

func dedupe(items []string) []string {
	seen := make(map[string]bool, len(items))
	out := make([]string, 0, len(items))
	for _, it := range items {
		if seen[it] {
			continue
		}
		seen[it] = true
		out = append(out, it)
	}
	return out
}
