package storage_test

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"habithub/internal/hub"
	"habithub/internal/storage"
	"habithub/internal/storage/migrations"
	"habithub/internal/testutil"
)

// sampleAccounts builds a snapshot that exercises every field, including
// relationship and post ordering that differs from alphabetical.
func sampleAccounts() []*hub.Account {
	return []*hub.Account{
		{
			Username:  "zoe",
			Password:  "pw1",
			Bio:       "early riser",
			Followers: []string{"bob", "amy"},
			Following: []string{"amy"},
			Posts: []*hub.Post{
				{
					ID:        "p-2",
					Content:   "",
					Timestamp: "2024-01-15 10:31",
					Image:     []byte{0x89, 'P', 'N', 'G', 0x00, 0xff},
					ImageExt:  "png",
					Tags:      []string{},
					Likes:     []string{"amy", "zoe"},
				},
				{
					ID:        "p-1",
					Content:   "drank water #hydrated #sleep",
					Timestamp: "2024-01-15 10:30",
					Tags:      []string{"#hydrated", "#sleep"},
					Likes:     []string{},
				},
			},
		},
		{
			Username:  "amy",
			Password:  "pw2",
			Followers: []string{"zoe"},
			Following: []string{"zoe"},
			Posts:     []*hub.Post{},
		},
		{
			Username:  "bob",
			Password:  " spaced ",
			Followers: []string{},
			Following: []string{"zoe"},
			Posts:     []*hub.Post{},
		},
	}
}

func assertSnapshotEqual(t *testing.T, got, want []*hub.Account) {
	t.Helper()

	if len(got) != len(want) {
		t.Fatalf("len(accounts) = %d, want %d", len(got), len(want))
	}
	for i := range want {
		if !reflect.DeepEqual(got[i], want[i]) {
			t.Errorf("account[%d] = %+v, want %+v", i, got[i], want[i])
			for j := range want[i].Posts {
				if j < len(got[i].Posts) && !reflect.DeepEqual(got[i].Posts[j], want[i].Posts[j]) {
					t.Errorf("  post[%d] = %+v, want %+v", j, got[i].Posts[j], want[i].Posts[j])
				}
			}
		}
	}
}

func TestJSONFilePersister_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "users.json")
	p, err := storage.NewJSONFilePersister(path, hub.NewNopLogger())
	if err != nil {
		t.Fatalf("NewJSONFilePersister() error = %v", err)
	}

	want := sampleAccounts()
	if err := p.Save(want); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	got, err := p.Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	assertSnapshotEqual(t, got, want)
}

func TestJSONFilePersister_MissingFile(t *testing.T) {
	p, err := storage.NewJSONFilePersister(filepath.Join(t.TempDir(), "nested", "users.json"), hub.NewNopLogger())
	if err != nil {
		t.Fatalf("NewJSONFilePersister() error = %v", err)
	}

	got, err := p.Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if len(got) != 0 {
		t.Errorf("Load() returned %d accounts, want 0", len(got))
	}
}

func TestJSONFilePersister_MalformedFileLoadsEmpty(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"truncated", `{"amy": {"password": "x"`},
		{"array", `[1, 2, 3]`},
		{"garbage", `not json at all`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "users.json")
			if err := os.WriteFile(path, []byte(tt.content), 0644); err != nil {
				t.Fatalf("WriteFile() error = %v", err)
			}
			p, err := storage.NewJSONFilePersister(path, hub.NewNopLogger())
			if err != nil {
				t.Fatalf("NewJSONFilePersister() error = %v", err)
			}

			got, err := p.Load()
			if err != nil {
				t.Fatalf("Load() error = %v", err)
			}
			if len(got) != 0 {
				t.Errorf("Load() returned %d accounts, want 0", len(got))
			}
		})
	}
}

func TestJSONFilePersister_ReadsLegacyFile(t *testing.T) {
	// Written by the earlier program: no post IDs, base64 images, an
	// account-level likes list and keys out of alphabetical order.
	legacy := `{
    "zed": {
        "password": "secret",
        "bio": "hi",
        "followers": [],
        "following": ["ann"],
        "posts": [
            {
                "content": "",
                "timestamp": "2023-05-01 09:00",
                "likes": ["ann"],
                "image": "AAEC",
                "tags": []
            }
        ],
        "likes": []
    },
    "ann": {
        "password": "pw",
        "bio": "",
        "followers": ["zed"],
        "following": [],
        "posts": [],
        "likes": []
    }
}`
	path := filepath.Join(t.TempDir(), "users.json")
	if err := os.WriteFile(path, []byte(legacy), 0644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	p, err := storage.NewJSONFilePersister(path, hub.NewNopLogger())
	if err != nil {
		t.Fatalf("NewJSONFilePersister() error = %v", err)
	}

	got, err := p.Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if len(got) != 2 || got[0].Username != "zed" || got[1].Username != "ann" {
		t.Fatalf("Load() order = %v, want [zed ann]", usernames(got))
	}
	post := got[0].Posts[0]
	if !reflect.DeepEqual(post.Image, []byte{0, 1, 2}) {
		t.Errorf("Image = %v, want [0 1 2]", post.Image)
	}
	if post.ID != "" {
		t.Errorf("ID = %q, want empty for legacy post", post.ID)
	}
	if !reflect.DeepEqual(post.Likes, []string{"ann"}) {
		t.Errorf("Likes = %v, want [ann]", post.Likes)
	}
}

func TestJSONCodec_EmptySnapshot(t *testing.T) {
	var codec storage.JSONCodec
	path := filepath.Join(t.TempDir(), "empty.json")
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if err := codec.Encode(f, nil); err != nil {
		t.Fatalf("Encode() error = %v", err)
	}
	f.Close()

	f, err = os.Open(path)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer f.Close()
	got, err := codec.Decode(f)
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if got == nil || len(got) != 0 {
		t.Errorf("Decode() = %v, want empty non-nil slice", got)
	}
}

func TestSQLPersister_SQLite_RoundTrip(t *testing.T) {
	p := testutil.NewSQLiteTestPersister(t)

	want := sampleAccounts()
	if err := p.Save(want); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	got, err := p.Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	assertSnapshotEqual(t, got, want)

	// A second save replaces the first rather than adding to it.
	smaller := want[1:2]
	smaller[0].Following = []string{}
	smaller[0].Followers = []string{}
	if err := p.Save(smaller); err != nil {
		t.Fatalf("second Save() error = %v", err)
	}
	got, err = p.Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	assertSnapshotEqual(t, got, smaller)
}

func TestSQLPersister_SQLite_EmptyDatabase(t *testing.T) {
	p := testutil.NewSQLiteTestPersister(t)

	got, err := p.Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if len(got) != 0 {
		t.Errorf("Load() returned %d accounts, want 0", len(got))
	}
}

func TestSQLPersister_SQLite_FailedSaveKeepsPrevious(t *testing.T) {
	p := testutil.NewSQLiteTestPersister(t)

	want := sampleAccounts()
	if err := p.Save(want); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	// Two posts sharing an ID violate the primary key mid-transaction.
	bad := sampleAccounts()
	bad[0].Posts[1].ID = bad[0].Posts[0].ID
	if err := p.Save(bad); err == nil {
		t.Fatal("Save() expected error for duplicate post ID")
	}

	got, err := p.Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	assertSnapshotEqual(t, got, want)
}

func TestSQLPersister_SQLite_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "habithub.db")

	p, err := storage.NewPersisterFromConfig(configFor("sqlite", path), hub.NewNopLogger())
	if err != nil {
		t.Fatalf("NewPersisterFromConfig() error = %v", err)
	}
	if err := p.Save(sampleAccounts()); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if err := p.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	// Reopening runs migrations again, which must be a no-op.
	p, err = storage.NewPersisterFromConfig(configFor("sqlite", path), hub.NewNopLogger())
	if err != nil {
		t.Fatalf("reopen error = %v", err)
	}
	defer p.Close()

	got, err := p.Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	assertSnapshotEqual(t, got, sampleAccounts())
}

func TestSQLPersister_Postgres_RoundTrip(t *testing.T) {
	dsn := os.Getenv("HABITHUB_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("HABITHUB_TEST_POSTGRES_DSN not set")
	}

	db, err := storage.OpenPostgres(dsn)
	if err != nil {
		t.Fatalf("OpenPostgres() error = %v", err)
	}
	p, err := storage.NewSQLPersister(db, migrations.Postgres, hub.NewNopLogger())
	if err != nil {
		t.Fatalf("NewSQLPersister() error = %v", err)
	}
	defer p.Close()

	if err := p.Migrate(); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}

	want := sampleAccounts()
	if err := p.Save(want); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	got, err := p.Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	assertSnapshotEqual(t, got, want)

	if err := p.Save(nil); err != nil {
		t.Fatalf("cleanup Save() error = %v", err)
	}
}

func TestNewSQLPersister_UnknownDialect(t *testing.T) {
	if _, err := storage.NewSQLPersister(nil, "oracle", hub.NewNopLogger()); err == nil {
		t.Error("NewSQLPersister() expected error for unknown dialect")
	}
}

func TestMemoryPersister(t *testing.T) {
	p := storage.NewMemoryPersister()

	accounts := sampleAccounts()
	if err := p.Save(accounts); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	// Saved state is isolated from later changes to the caller's values.
	accounts[0].Bio = "changed"

	got, err := p.Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if got[0].Bio != "early riser" {
		t.Errorf("Bio = %q, want %q", got[0].Bio, "early riser")
	}

	boom := errors.New("disk full")
	p.FailSaves(boom)
	if err := p.Save(accounts); !errors.Is(err, boom) {
		t.Errorf("Save() error = %v, want %v", err, boom)
	}
	if p.Saves() != 1 {
		t.Errorf("Saves() = %d, want 1", p.Saves())
	}
}

func TestNewPersisterFromConfig(t *testing.T) {
	tests := []struct {
		name    string
		typ     string
		path    string
		wantErr bool
	}{
		{"memory store", "memory", "", false},
		{"json store", "json", filepath.Join(t.TempDir(), "users.json"), false},
		{"json store without path", "json", "", true},
		{"sqlite store without path", "sqlite", "", true},
		{"postgres store without dsn", "postgres", "", true},
		{"unknown store type", "unknown", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := storage.NewPersisterFromConfig(configFor(tt.typ, tt.path), hub.NewNopLogger())
			if (err != nil) != tt.wantErr {
				t.Fatalf("NewPersisterFromConfig() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				if got != nil {
					t.Error("NewPersisterFromConfig() should return nil on error")
				}
				return
			}
			if got == nil {
				t.Fatal("NewPersisterFromConfig() returned nil")
			}
			got.Close()
		})
	}
}

func usernames(accounts []*hub.Account) []string {
	out := make([]string, len(accounts))
	for i, a := range accounts {
		out[i] = a.Username
	}
	return out
}
