package testutil

import (
	"testing"

	"habithub/internal/hub"
	"habithub/internal/storage"
	"habithub/internal/storage/migrations"
)

// NewTestStore creates a loaded, empty store backed by a memory persister.
// The persister is returned so tests can inspect saves or inject failures.
func NewTestStore(t *testing.T, idgen hub.IDGenerator) (*hub.Store, *storage.MemoryPersister) {
	t.Helper()

	p := storage.NewMemoryPersister()
	s := hub.NewStore(p, idgen, hub.NewNopLogger())
	if err := s.Load(); err != nil {
		t.Fatalf("failed to load store: %v", err)
	}
	t.Cleanup(func() {
		s.Close()
	})
	return s, p
}

// NewSQLiteTestPersister creates an in-memory SQLite persister with the
// schema applied. It is closed when the test completes.
func NewSQLiteTestPersister(t *testing.T) *storage.SQLPersister {
	t.Helper()

	db, err := storage.OpenSQLite(":memory:")
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}

	p, err := storage.NewSQLPersister(db, migrations.SQLite, hub.NewNopLogger())
	if err != nil {
		db.Close()
		t.Fatalf("failed to create persister: %v", err)
	}
	if err := p.Migrate(); err != nil {
		p.Close()
		t.Fatalf("failed to apply schema: %v", err)
	}

	t.Cleanup(func() {
		p.Close()
	})
	return p
}

// Hub bundles the core components over one store, wired with stub clock and
// ID generator.
type Hub struct {
	Store     *hub.Store
	Persister *storage.MemoryPersister
	Clock     *StubClock
	IDs       *StubIDGenerator
	Auth      *hub.AuthGate
	Graph     *hub.SocialGraph
	Posts     *hub.PostRegistry
	Feeds     *hub.FeedAssembler
}

// NewHub creates a Hub over an empty memory-backed store.
func NewHub(t *testing.T) *Hub {
	t.Helper()

	ids := NewStubIDGenerator()
	clock := FixedClock()
	store, p := NewTestStore(t, ids)
	logger := hub.NewNopLogger()

	return &Hub{
		Store:     store,
		Persister: p,
		Clock:     clock,
		IDs:       ids,
		Auth:      hub.NewAuthGate(store, logger),
		Graph:     hub.NewSocialGraph(store, logger),
		Posts:     hub.NewPostRegistry(store, clock, ids, logger),
		Feeds:     hub.NewFeedAssembler(store, logger),
	}
}

// SignupAndLogin registers username with password "pw" and returns its session.
func (h *Hub) SignupAndLogin(t *testing.T, username string) *hub.Session {
	t.Helper()

	if err := h.Auth.Signup(username, "pw", ""); err != nil {
		t.Fatalf("Signup(%q) error = %v", username, err)
	}
	s, err := h.Auth.Login(username, "pw")
	if err != nil {
		t.Fatalf("Login(%q) error = %v", username, err)
	}
	return s
}
