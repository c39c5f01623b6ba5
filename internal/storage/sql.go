package storage

import (
	"context"
	"database/sql"
	"fmt"
	"slices"
	"strconv"
	"strings"

	_ "github.com/jackc/pgx/v5/stdlib" // PostgreSQL driver, registered as "pgx"
	_ "github.com/mattn/go-sqlite3"    // SQLite driver

	"habithub/internal/hub"
	"habithub/internal/storage/migrations"
)

// SQLPersister stores the account snapshot in relational tables. Save
// rewrites every table inside one transaction, so a failed save leaves the
// previous snapshot intact.
type SQLPersister struct {
	db      *sql.DB
	dialect string
	logger  hub.Logger
}

// OpenSQLite opens a SQLite database with foreign keys enforced on every
// connection. path can be a file path or ":memory:".
func OpenSQLite(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", path+"?_foreign_keys=on&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if path == ":memory:" {
		// Every connection to :memory: is a separate database.
		db.SetMaxOpenConns(1)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return db, nil
}

// OpenPostgres opens a PostgreSQL database through the pgx stdlib driver.
func OpenPostgres(dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return db, nil
}

// NewSQLPersister wraps an open connection. dialect is migrations.SQLite or
// migrations.Postgres. The schema is not touched; call Migrate or
// CheckMigrations before use.
func NewSQLPersister(db *sql.DB, dialect string, logger hub.Logger) (*SQLPersister, error) {
	switch dialect {
	case migrations.SQLite, migrations.Postgres:
	default:
		return nil, fmt.Errorf("unknown sql dialect: %s", dialect)
	}
	return &SQLPersister{db: db, dialect: dialect, logger: logger}, nil
}

// Migrate applies any pending schema migrations.
func (p *SQLPersister) Migrate() error {
	return migrations.MigrateUp(p.db, p.dialect)
}

// CheckMigrations verifies the schema is up to date.
func (p *SQLPersister) CheckMigrations() error {
	return migrations.CheckStatus(p.db, p.dialect)
}

// Dialect returns the SQL dialect in use.
func (p *SQLPersister) Dialect() string {
	return p.dialect
}

// Load reads every account in stored order.
func (p *SQLPersister) Load() ([]*hub.Account, error) {
	ctx := context.Background()

	rows, err := p.db.QueryContext(ctx,
		"SELECT username, password, bio FROM accounts ORDER BY position")
	if err != nil {
		return nil, fmt.Errorf("loading accounts: %w", err)
	}
	accounts := []*hub.Account{}
	byName := make(map[string]*hub.Account)
	for rows.Next() {
		a := &hub.Account{Followers: []string{}, Following: []string{}, Posts: []*hub.Post{}}
		if err := rows.Scan(&a.Username, &a.Password, &a.Bio); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scanning account: %w", err)
		}
		accounts = append(accounts, a)
		byName[a.Username] = a
	}
	if err := closeRows(rows); err != nil {
		return nil, fmt.Errorf("loading accounts: %w", err)
	}

	if err := p.loadFollows(ctx, byName); err != nil {
		return nil, err
	}
	posts, err := p.loadPosts(ctx, byName)
	if err != nil {
		return nil, err
	}
	if err := p.loadPostLists(ctx, posts); err != nil {
		return nil, err
	}

	p.logger.Debug("sql snapshot loaded", "dialect", p.dialect, "accounts", len(accounts), "posts", len(posts))
	return accounts, nil
}

func (p *SQLPersister) loadFollows(ctx context.Context, byName map[string]*hub.Account) error {
	rows, err := p.db.QueryContext(ctx,
		"SELECT follower, followee FROM follows ORDER BY follower, follower_pos")
	if err != nil {
		return fmt.Errorf("loading following: %w", err)
	}
	for rows.Next() {
		var follower, followee string
		if err := rows.Scan(&follower, &followee); err != nil {
			rows.Close()
			return fmt.Errorf("scanning follow: %w", err)
		}
		if a := byName[follower]; a != nil {
			a.Following = append(a.Following, followee)
		}
	}
	if err := closeRows(rows); err != nil {
		return fmt.Errorf("loading following: %w", err)
	}

	rows, err = p.db.QueryContext(ctx,
		"SELECT followee, follower FROM follows ORDER BY followee, followee_pos")
	if err != nil {
		return fmt.Errorf("loading followers: %w", err)
	}
	for rows.Next() {
		var followee, follower string
		if err := rows.Scan(&followee, &follower); err != nil {
			rows.Close()
			return fmt.Errorf("scanning follow: %w", err)
		}
		if a := byName[followee]; a != nil {
			a.Followers = append(a.Followers, follower)
		}
	}
	if err := closeRows(rows); err != nil {
		return fmt.Errorf("loading followers: %w", err)
	}
	return nil
}

func (p *SQLPersister) loadPosts(ctx context.Context, byName map[string]*hub.Account) (map[string]*hub.Post, error) {
	rows, err := p.db.QueryContext(ctx,
		"SELECT id, author, content, created_at, image, image_ext FROM posts ORDER BY author, position")
	if err != nil {
		return nil, fmt.Errorf("loading posts: %w", err)
	}
	posts := make(map[string]*hub.Post)
	for rows.Next() {
		var author string
		post := &hub.Post{Tags: []string{}, Likes: []string{}}
		if err := rows.Scan(&post.ID, &author, &post.Content, &post.Timestamp, &post.Image, &post.ImageExt); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scanning post: %w", err)
		}
		if len(post.Image) == 0 {
			post.Image = nil
		}
		if a := byName[author]; a != nil {
			a.Posts = append(a.Posts, post)
			posts[post.ID] = post
		}
	}
	if err := closeRows(rows); err != nil {
		return nil, fmt.Errorf("loading posts: %w", err)
	}
	return posts, nil
}

func (p *SQLPersister) loadPostLists(ctx context.Context, posts map[string]*hub.Post) error {
	rows, err := p.db.QueryContext(ctx,
		"SELECT post_id, tag FROM post_tags ORDER BY post_id, position")
	if err != nil {
		return fmt.Errorf("loading tags: %w", err)
	}
	for rows.Next() {
		var id, tag string
		if err := rows.Scan(&id, &tag); err != nil {
			rows.Close()
			return fmt.Errorf("scanning tag: %w", err)
		}
		if post := posts[id]; post != nil {
			post.Tags = append(post.Tags, tag)
		}
	}
	if err := closeRows(rows); err != nil {
		return fmt.Errorf("loading tags: %w", err)
	}

	rows, err = p.db.QueryContext(ctx,
		"SELECT post_id, username FROM post_likes ORDER BY post_id, position")
	if err != nil {
		return fmt.Errorf("loading likes: %w", err)
	}
	for rows.Next() {
		var id, username string
		if err := rows.Scan(&id, &username); err != nil {
			rows.Close()
			return fmt.Errorf("scanning like: %w", err)
		}
		if post := posts[id]; post != nil {
			post.Likes = append(post.Likes, username)
		}
	}
	if err := closeRows(rows); err != nil {
		return fmt.Errorf("loading likes: %w", err)
	}
	return nil
}

// Save replaces every table's contents with accounts.
func (p *SQLPersister) Save(accounts []*hub.Account) error {
	ctx := context.Background()

	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback()

	for _, table := range []string{"post_likes", "post_tags", "posts", "follows", "accounts"} {
		if _, err := tx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return fmt.Errorf("clearing %s: %w", table, err)
		}
	}

	byName := make(map[string]*hub.Account, len(accounts))
	for i, a := range accounts {
		byName[a.Username] = a
		if _, err := tx.ExecContext(ctx, p.rebind(
			"INSERT INTO accounts (username, position, password, bio) VALUES (?, ?, ?, ?)"),
			a.Username, i, a.Password, a.Bio); err != nil {
			return fmt.Errorf("inserting account %s: %w", a.Username, err)
		}
	}

	for _, a := range accounts {
		for i, followee := range a.Following {
			target := byName[followee]
			if target == nil {
				continue
			}
			pos := slices.Index(target.Followers, a.Username)
			if pos < 0 {
				pos = len(target.Followers)
			}
			if _, err := tx.ExecContext(ctx, p.rebind(
				"INSERT INTO follows (follower, followee, follower_pos, followee_pos) VALUES (?, ?, ?, ?)"),
				a.Username, followee, i, pos); err != nil {
				return fmt.Errorf("inserting follow %s -> %s: %w", a.Username, followee, err)
			}
		}
	}

	for _, a := range accounts {
		for i, post := range a.Posts {
			if err := p.insertPost(ctx, tx, a.Username, i, post); err != nil {
				return err
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

func (p *SQLPersister) insertPost(ctx context.Context, tx *sql.Tx, author string, position int, post *hub.Post) error {
	var image []byte
	if post.HasImage() {
		image = post.Image
	}
	if _, err := tx.ExecContext(ctx, p.rebind(
		"INSERT INTO posts (id, author, position, content, created_at, image, image_ext) VALUES (?, ?, ?, ?, ?, ?, ?)"),
		post.ID, author, position, post.Content, post.Timestamp, image, post.ImageExt); err != nil {
		return fmt.Errorf("inserting post %s: %w", post.ID, err)
	}
	for i, tag := range post.Tags {
		if _, err := tx.ExecContext(ctx, p.rebind(
			"INSERT INTO post_tags (post_id, position, tag) VALUES (?, ?, ?)"),
			post.ID, i, tag); err != nil {
			return fmt.Errorf("inserting tag for post %s: %w", post.ID, err)
		}
	}
	for i, username := range post.Likes {
		if _, err := tx.ExecContext(ctx, p.rebind(
			"INSERT INTO post_likes (post_id, position, username) VALUES (?, ?, ?)"),
			post.ID, i, username); err != nil {
			return fmt.Errorf("inserting like for post %s: %w", post.ID, err)
		}
	}
	return nil
}

// rebind rewrites ? placeholders to $n for PostgreSQL.
func (p *SQLPersister) rebind(query string) string {
	if p.dialect != migrations.Postgres {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// Close closes the database connection.
func (p *SQLPersister) Close() error {
	if p.db != nil {
		return p.db.Close()
	}
	return nil
}

func closeRows(rows *sql.Rows) error {
	if err := rows.Err(); err != nil {
		rows.Close()
		return err
	}
	return rows.Close()
}

var _ hub.Persister = (*SQLPersister)(nil)
