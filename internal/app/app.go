package app

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"habithub/internal/config"
	"habithub/internal/encryption"
	"habithub/internal/hub"
	"habithub/internal/media"
	"habithub/internal/storage"
	"habithub/internal/vault"
)

// HabitApp is the application layer between the CLI and the core.
// It constructs all dependencies from config, holds the session for the
// lifetime of one command, and closes the store and log on Close.
type HabitApp struct {
	cfg       *config.Config
	store     *hub.Store
	auth      *hub.AuthGate
	graph     *hub.SocialGraph
	posts     *hub.PostRegistry
	feeds     *hub.FeedAssembler
	archiver  *hub.Archiver
	encryptor hub.Encryptor
	vault     hub.Vault
	media     *media.Loader
	session   *hub.Session
	op        *Operation
	logger    *slog.Logger
	logFile   *os.File
}

// NewHabitApp creates a fully wired HabitApp from the given config and loads
// the store. operation names the CLI command being run (e.g. "follow").
// The caller must call Close when done.
func NewHabitApp(cfg *config.Config, operation string) (*HabitApp, error) {
	level, err := parseLevel(cfg.LogLevel)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	opID := now.UTC().Format("20060102T150405Z")
	logger, logFile, err := newLogger(cfg.LogDir, opID, level, cfg.Verbose)
	if err != nil {
		return nil, fmt.Errorf("creating logger: %w", err)
	}
	hubLogger := &slogAdapter{l: logger}

	persister, err := storage.NewPersisterFromConfig(cfg.Store, hubLogger)
	if err != nil {
		logFile.Close()
		return nil, fmt.Errorf("creating store: %w", err)
	}

	store := hub.NewStore(persister, hub.UUIDGenerator{}, hubLogger)
	if err := store.Load(); err != nil {
		store.Close()
		logFile.Close()
		return nil, fmt.Errorf("loading store: %w", err)
	}

	enc, err := encryption.NewEncryptorFromConfig(cfg.Encryption)
	if err != nil {
		store.Close()
		logFile.Close()
		return nil, fmt.Errorf("creating encryptor: %w", err)
	}

	// A vault is only needed for backup and restore.
	var v hub.Vault
	var archiver *hub.Archiver
	if len(cfg.Vaults) > 0 {
		v, err = vault.NewVaultFromConfig(cfg.Vaults[0])
		if err != nil {
			store.Close()
			logFile.Close()
			return nil, fmt.Errorf("creating vault: %w", err)
		}
		archiver = hub.NewArchiver(store, v, enc, storage.JSONCodec{}, cfg.InstanceID, hubLogger)
	}

	a := &HabitApp{
		cfg:       cfg,
		store:     store,
		auth:      hub.NewAuthGate(store, hubLogger),
		graph:     hub.NewSocialGraph(store, hubLogger),
		posts:     hub.NewPostRegistry(store, hub.RealClock{}, hub.UUIDGenerator{}, hubLogger),
		feeds:     hub.NewFeedAssembler(store, hubLogger),
		archiver:  archiver,
		encryptor: enc,
		vault:     v,
		media:     media.NewLoader(cfg.Media),
		op:        NewOperation(opID, operation, now),
		logger:    logger,
		logFile:   logFile,
	}
	logger.Debug("operation started", "op", operation, "store", cfg.Store.Type, "accounts", store.Len())
	return a, nil
}

// record folds err into the operation status and returns it unchanged.
func (a *HabitApp) record(err error) error {
	a.op.Record(err)
	return err
}

// Signup creates an account. It does not log in.
func (a *HabitApp) Signup(username, password, bio string) error {
	a.op.User = username
	return a.record(a.auth.Signup(username, password, bio))
}

// Login authenticates username and keeps the session until Logout or Close.
func (a *HabitApp) Login(username, password string) error {
	a.op.User = username
	s, err := a.auth.Login(username, password)
	if err != nil {
		return a.record(err)
	}
	a.session = s
	return nil
}

// Logout ends the current session. Safe to call when not logged in.
func (a *HabitApp) Logout() {
	a.auth.Logout(a.session)
	a.session = nil
}

// Session returns the current session, nil when logged out.
func (a *HabitApp) Session() *hub.Session {
	return a.session
}

// Follow makes the session user follow target.
func (a *HabitApp) Follow(target string) error {
	return a.record(a.graph.Follow(a.session, target))
}

// Unfollow removes the session user's follow of target.
func (a *HabitApp) Unfollow(target string) error {
	return a.record(a.graph.Unfollow(a.session, target))
}

// Post publishes content, attaching the image at imagePath when it is not empty.
func (a *HabitApp) Post(content, imagePath string) (*hub.Post, error) {
	var att *hub.Attachment
	if imagePath != "" {
		var err error
		att, err = a.media.Load(imagePath)
		if err != nil {
			return nil, a.record(fmt.Errorf("attaching image: %w", err))
		}
	}
	p, err := a.posts.CreatePost(a.session, content, att)
	return p, a.record(err)
}

// Like records a like on author's post.
func (a *HabitApp) Like(author, postID string) error {
	return a.record(a.posts.LikePost(a.session, author, postID))
}

// HomeFeed returns the session user's home feed.
func (a *HabitApp) HomeFeed() ([]hub.FeedItem, error) {
	items, err := a.feeds.HomeFeed(a.session)
	return items, a.record(err)
}

// Ranking returns the post-count leaderboard.
func (a *HabitApp) Ranking() ([]hub.RankEntry, error) {
	entries, err := a.feeds.Ranking(a.session)
	return entries, a.record(err)
}

// Explore returns every post, optionally filtered by tag.
func (a *HabitApp) Explore(tag string) ([]hub.FeedItem, error) {
	items, err := a.feeds.Explore(a.session, tag)
	return items, a.record(err)
}

// Discover lists other users with their follow state.
func (a *HabitApp) Discover() ([]hub.DiscoverEntry, error) {
	entries, err := a.feeds.Discover(a.session)
	return entries, a.record(err)
}

// Friends lists the accounts the session user follows.
func (a *HabitApp) Friends() ([]hub.FriendEntry, error) {
	entries, err := a.feeds.Friends(a.session)
	return entries, a.record(err)
}

// Profile returns username's profile, or the session user's when empty.
func (a *HabitApp) Profile(username string) (*hub.ProfileView, error) {
	view, err := a.feeds.Profile(a.session, username)
	return view, a.record(err)
}

// SetupKeys generates the archive key pair protected by passphrase.
func (a *HabitApp) SetupKeys(passphrase string) error {
	if err := a.encryptor.Setup(passphrase); err != nil {
		return a.record(fmt.Errorf("setting up encryption keys: %w", err))
	}
	a.logger.Info("encryption keys created", "public_key", a.cfg.Encryption.PublicKeyPath)
	return nil
}

// Backup uploads an encrypted snapshot of the store and returns its version.
func (a *HabitApp) Backup() (int64, error) {
	if a.archiver == nil {
		return 0, a.record(fmt.Errorf("no vaults configured"))
	}
	if err := a.vault.ValidateSetup(); err != nil {
		return 0, a.record(fmt.Errorf("vault not ready: %w", err))
	}
	version, err := a.archiver.Backup()
	return version, a.record(err)
}

// Restore replaces the store with the latest archive and returns the number
// of accounts restored. Any session is ended first.
func (a *HabitApp) Restore(passphrase string) (int, error) {
	if a.archiver == nil {
		return 0, a.record(fmt.Errorf("no vaults configured"))
	}
	a.Logout()
	n, err := a.archiver.Restore(passphrase)
	return n, a.record(err)
}

// Close ends the session, closes the store and writes the operation summary.
func (a *HabitApp) Close() error {
	var firstErr error

	a.Logout()

	if err := a.store.Close(); err != nil {
		firstErr = fmt.Errorf("closing store: %w", err)
	}

	a.logger.Info("operation finished",
		"op", a.op.Name,
		"user", a.op.User,
		"status", a.op.Status,
		"duration", time.Since(a.op.Started).Round(time.Millisecond))

	if a.logFile != nil {
		if err := a.logFile.Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("closing log file: %w", err)
		}
	}

	return firstErr
}
