package hub

import (
	"fmt"
	"slices"
	"sort"
	"strings"
)

// KnownTags are the hashtags the explore view can filter on.
var KnownTags = []string{"#study", "#hydrated", "#nutrition", "#fitness", "#sleep"}

// FeedItem is one post in a feed together with its author.
type FeedItem struct {
	Author string
	Post   *Post
}

// RankEntry is one row of the post-count leaderboard.
type RankEntry struct {
	Rank       int // 1-based position
	Username   string
	Bio        string
	PostCount  int
	IsSelf     bool
	IsFollowed bool
}

// DiscoverEntry describes another user and whether the session user follows them.
type DiscoverEntry struct {
	Username      string
	Bio           string
	PostCount     int
	FollowerCount int
	Following     bool
}

// FriendEntry describes an account the session user follows.
type FriendEntry struct {
	Username      string
	Bio           string
	PostCount     int
	FollowerCount int
}

// ProfileView is everything shown on a user's profile page.
type ProfileView struct {
	Username  string
	Bio       string
	Followers []string // sorted
	Following []string // sorted
	Posts     []*Post  // newest first
}

// FeedAssembler derives ordered, read-only views from the store.
type FeedAssembler struct {
	store  *Store
	logger Logger
}

// NewFeedAssembler creates a FeedAssembler over store.
func NewFeedAssembler(store *Store, logger Logger) *FeedAssembler {
	return &FeedAssembler{store: store, logger: logger}
}

// HomeFeed returns the posts of every followed account and of the session
// user, newest first. Posts sharing a timestamp keep the order they were
// gathered in: following set in stored order, then self.
func (f *FeedAssembler) HomeFeed(s *Session) ([]FeedItem, error) {
	user, err := requireUser(s)
	if err != nil {
		return nil, err
	}

	var items []FeedItem
	f.store.view(func() {
		self := f.store.lookup(user)
		if self == nil {
			err = ErrUnauthenticated
			return
		}
		for _, name := range append(slices.Clone(self.Following), user) {
			if acct := f.store.lookup(name); acct != nil {
				items = gather(items, acct)
			}
		}
	})
	if err != nil {
		return nil, err
	}

	sortNewestFirst(items)
	f.logger.Debug("home feed assembled", "user", user, "posts", len(items))
	return items, nil
}

// Ranking returns every account with at least one post ordered by post count
// descending. Ties are broken by username ascending.
func (f *FeedAssembler) Ranking(s *Session) ([]RankEntry, error) {
	user, err := requireUser(s)
	if err != nil {
		return nil, err
	}

	var entries []RankEntry
	f.store.view(func() {
		self := f.store.lookup(user)
		f.store.each(func(a *Account) {
			if len(a.Posts) == 0 {
				return
			}
			entries = append(entries, RankEntry{
				Username:   a.Username,
				Bio:        a.Bio,
				PostCount:  len(a.Posts),
				IsSelf:     a.Username == user,
				IsFollowed: self != nil && self.IsFollowing(a.Username),
			})
		})
	})

	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].PostCount != entries[j].PostCount {
			return entries[i].PostCount > entries[j].PostCount
		}
		return entries[i].Username < entries[j].Username
	})
	for i := range entries {
		entries[i].Rank = i + 1
	}
	return entries, nil
}

// Explore returns every post on the platform, newest first. When tag is not
// empty only posts carrying that tag are returned; tag must be one of
// KnownTags, compared case-insensitively, with or without the leading '#'.
func (f *FeedAssembler) Explore(s *Session, tag string) ([]FeedItem, error) {
	user, err := requireUser(s)
	if err != nil {
		return nil, err
	}

	filter := ""
	if strings.TrimSpace(tag) != "" {
		filter, err = NormalizeTag(tag)
		if err != nil {
			return nil, err
		}
	}

	var items []FeedItem
	f.store.view(func() {
		f.store.each(func(a *Account) {
			items = gather(items, a)
		})
	})

	if filter != "" {
		items = slices.DeleteFunc(items, func(it FeedItem) bool {
			return !slices.Contains(it.Post.Tags, filter)
		})
	}

	sortNewestFirst(items)
	f.logger.Debug("explore assembled", "user", user, "tag", filter, "posts", len(items))
	return items, nil
}

// Discover lists every other user in ascending order with their current
// follow state. Follow state is read fresh on every call.
func (f *FeedAssembler) Discover(s *Session) ([]DiscoverEntry, error) {
	user, err := requireUser(s)
	if err != nil {
		return nil, err
	}

	var entries []DiscoverEntry
	f.store.view(func() {
		self := f.store.lookup(user)
		f.store.each(func(a *Account) {
			if a.Username == user {
				return
			}
			entries = append(entries, DiscoverEntry{
				Username:      a.Username,
				Bio:           a.Bio,
				PostCount:     len(a.Posts),
				FollowerCount: len(a.Followers),
				Following:     self != nil && self.IsFollowing(a.Username),
			})
		})
	})

	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Username < entries[j].Username
	})
	return entries, nil
}

// Friends lists the accounts the session user follows in ascending order.
func (f *FeedAssembler) Friends(s *Session) ([]FriendEntry, error) {
	user, err := requireUser(s)
	if err != nil {
		return nil, err
	}

	var entries []FriendEntry
	f.store.view(func() {
		self := f.store.lookup(user)
		if self == nil {
			err = ErrUnauthenticated
			return
		}
		for _, name := range self.Following {
			acct := f.store.lookup(name)
			if acct == nil {
				continue
			}
			entries = append(entries, FriendEntry{
				Username:      acct.Username,
				Bio:           acct.Bio,
				PostCount:     len(acct.Posts),
				FollowerCount: len(acct.Followers),
			})
		}
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Username < entries[j].Username
	})
	return entries, nil
}

// Profile returns the profile of username, or of the session user when
// username is empty.
func (f *FeedAssembler) Profile(s *Session, username string) (*ProfileView, error) {
	user, err := requireUser(s)
	if err != nil {
		return nil, err
	}
	username = strings.TrimSpace(username)
	if username == "" {
		username = user
	}

	var view *ProfileView
	f.store.view(func() {
		acct := f.store.lookup(username)
		if acct == nil {
			return
		}
		c := acct.Clone()
		slices.Sort(c.Followers)
		slices.Sort(c.Following)
		view = &ProfileView{
			Username:  c.Username,
			Bio:       c.Bio,
			Followers: c.Followers,
			Following: c.Following,
			Posts:     c.Posts,
		}
	})
	if view == nil {
		return nil, ErrNoSuchUser
	}
	return view, nil
}

// NormalizeTag lowercases tag, adds the leading '#' when missing and checks
// it against KnownTags.
func NormalizeTag(tag string) (string, error) {
	t := strings.ToLower(strings.TrimSpace(tag))
	if !strings.HasPrefix(t, "#") {
		t = "#" + t
	}
	if !slices.Contains(KnownTags, t) {
		return "", fmt.Errorf("%w: unknown tag %q", ErrInvalidInput, tag)
	}
	return t, nil
}

// gather appends copies of acct's posts in stored order.
func gather(items []FeedItem, acct *Account) []FeedItem {
	for _, p := range acct.Posts {
		items = append(items, FeedItem{Author: acct.Username, Post: p.Clone()})
	}
	return items
}

// sortNewestFirst orders by timestamp descending, keeping gather order for
// equal timestamps.
func sortNewestFirst(items []FeedItem) {
	sort.SliceStable(items, func(i, j int) bool {
		return items[i].Post.Timestamp > items[j].Post.Timestamp
	})
}
