package storage

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"habithub/internal/hub"
)

// accountRecord is the on-disk shape of one account, keyed by username in
// the enclosing object. Likes is kept for files written by older versions,
// which always carried an empty account-level list.
type accountRecord struct {
	Password  string        `json:"password"`
	Bio       string        `json:"bio"`
	Followers []string      `json:"followers"`
	Following []string      `json:"following"`
	Posts     []*postRecord `json:"posts"`
	Likes     []string      `json:"likes"`
}

type postRecord struct {
	ID        string   `json:"id,omitempty"`
	Content   string   `json:"content"`
	Timestamp string   `json:"timestamp"`
	Likes     []string `json:"likes"`
	Image     []byte   `json:"image"` // base64, null when absent
	ImageExt  string   `json:"image_ext,omitempty"`
	Tags      []string `json:"tags"`
}

// JSONCodec reads and writes a whole snapshot as one JSON object mapping
// username to account. Key order in the object is account order.
type JSONCodec struct{}

// Encode writes accounts as an indented JSON object.
func (JSONCodec) Encode(w io.Writer, accounts []*hub.Account) error {
	bw := bufio.NewWriter(w)

	if len(accounts) == 0 {
		bw.WriteString("{}\n")
		return bw.Flush()
	}

	bw.WriteString("{\n")
	for i, a := range accounts {
		key, err := json.Marshal(a.Username)
		if err != nil {
			return fmt.Errorf("encoding username %q: %w", a.Username, err)
		}
		val, err := json.MarshalIndent(toRecord(a), "    ", "    ")
		if err != nil {
			return fmt.Errorf("encoding account %q: %w", a.Username, err)
		}
		bw.WriteString("    ")
		bw.Write(key)
		bw.WriteString(": ")
		bw.Write(val)
		if i < len(accounts)-1 {
			bw.WriteString(",")
		}
		bw.WriteString("\n")
	}
	bw.WriteString("}\n")
	return bw.Flush()
}

// Decode reads a snapshot written by Encode, keeping the object's key order.
func (JSONCodec) Decode(r io.Reader) ([]*hub.Account, error) {
	dec := json.NewDecoder(r)

	tok, err := dec.Token()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return []*hub.Account{}, nil
		}
		return nil, fmt.Errorf("reading snapshot: %w", err)
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return nil, fmt.Errorf("snapshot is not a JSON object")
	}

	accounts := []*hub.Account{}
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, fmt.Errorf("reading username: %w", err)
		}
		username, ok := tok.(string)
		if !ok {
			return nil, fmt.Errorf("unexpected token %v", tok)
		}

		var rec accountRecord
		if err := dec.Decode(&rec); err != nil {
			return nil, fmt.Errorf("decoding account %q: %w", username, err)
		}
		accounts = append(accounts, fromRecord(username, &rec))
	}

	if _, err := dec.Token(); err != nil {
		return nil, fmt.Errorf("reading end of snapshot: %w", err)
	}
	return accounts, nil
}

func toRecord(a *hub.Account) *accountRecord {
	rec := &accountRecord{
		Password:  a.Password,
		Bio:       a.Bio,
		Followers: nonNil(a.Followers),
		Following: nonNil(a.Following),
		Posts:     make([]*postRecord, len(a.Posts)),
		Likes:     []string{},
	}
	for i, p := range a.Posts {
		rec.Posts[i] = &postRecord{
			ID:        p.ID,
			Content:   p.Content,
			Timestamp: p.Timestamp,
			Likes:     nonNil(p.Likes),
			ImageExt:  p.ImageExt,
			Tags:      nonNil(p.Tags),
		}
		if p.HasImage() {
			rec.Posts[i].Image = p.Image
		}
	}
	return rec
}

func fromRecord(username string, rec *accountRecord) *hub.Account {
	a := &hub.Account{
		Username:  username,
		Password:  rec.Password,
		Bio:       rec.Bio,
		Followers: nonNil(rec.Followers),
		Following: nonNil(rec.Following),
		Posts:     make([]*hub.Post, 0, len(rec.Posts)),
	}
	for _, p := range rec.Posts {
		if p == nil {
			continue
		}
		post := &hub.Post{
			ID:        p.ID,
			Content:   p.Content,
			Timestamp: p.Timestamp,
			ImageExt:  p.ImageExt,
			Tags:      nonNil(p.Tags),
			Likes:     nonNil(p.Likes),
		}
		if len(p.Image) > 0 {
			post.Image = p.Image
		}
		a.Posts = append(a.Posts, post)
	}
	return a
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

// JSONFilePersister keeps the whole store in one JSON file, rewritten on
// every save. A missing or unreadable file loads as an empty store.
type JSONFilePersister struct {
	path   string
	codec  JSONCodec
	logger hub.Logger
}

// NewJSONFilePersister creates a persister for the file at path. The parent
// directory is created if needed.
func NewJSONFilePersister(path string, logger hub.Logger) (*JSONFilePersister, error) {
	if path == "" {
		return nil, fmt.Errorf("json store requires a path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create store directory: %w", err)
	}
	return &JSONFilePersister{path: path, logger: logger}, nil
}

// Load reads the file. Malformed content is logged and treated as empty.
func (p *JSONFilePersister) Load() ([]*hub.Account, error) {
	data, err := os.ReadFile(p.path)
	if err != nil {
		if os.IsNotExist(err) {
			return []*hub.Account{}, nil
		}
		return nil, fmt.Errorf("reading %s: %w", p.path, err)
	}

	accounts, err := p.codec.Decode(bytes.NewReader(data))
	if err != nil {
		p.logger.Warn("ignoring unreadable store file", "path", p.path, "error", err)
		return []*hub.Account{}, nil
	}
	return accounts, nil
}

// Save writes accounts to a temp file and renames it over the store file.
func (p *JSONFilePersister) Save(accounts []*hub.Account) error {
	tmp, err := os.CreateTemp(filepath.Dir(p.path), ".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmp.Name()

	success := false
	defer func() {
		if !success {
			os.Remove(tmpPath)
		}
	}()

	if err := p.codec.Encode(tmp, accounts); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write store: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := os.Rename(tmpPath, p.path); err != nil {
		return fmt.Errorf("failed to rename temp file: %w", err)
	}

	success = true
	return nil
}

// Path returns the store file path.
func (p *JSONFilePersister) Path() string {
	return p.path
}

func (p *JSONFilePersister) Close() error {
	return nil
}

var (
	_ hub.SnapshotCodec = JSONCodec{}
	_ hub.Persister     = (*JSONFilePersister)(nil)
)
