package hub

import (
	"slices"
	"strings"
)

// SocialGraph owns follow and unfollow. Both sides of a relationship are
// always updated together under the store's write lock.
type SocialGraph struct {
	store  *Store
	logger Logger
}

// NewSocialGraph creates a SocialGraph over store.
func NewSocialGraph(store *Store, logger Logger) *SocialGraph {
	return &SocialGraph{store: store, logger: logger}
}

// Follow adds target to the session user's following set and the session
// user to target's followers set.
func (g *SocialGraph) Follow(s *Session, target string) error {
	user, err := requireUser(s)
	if err != nil {
		return err
	}
	target = strings.TrimSpace(target)

	return g.store.update("follow", func() error {
		if target == user {
			return ErrSelfFollow
		}
		dst := g.store.lookup(target)
		if dst == nil {
			return ErrNoSuchUser
		}
		src := g.store.lookup(user)
		if src == nil {
			return ErrUnauthenticated
		}
		if src.IsFollowing(target) {
			return ErrAlreadyFollowing
		}

		src.Following = append(src.Following, target)
		if !dst.HasFollower(user) {
			dst.Followers = append(dst.Followers, user)
		}
		g.logger.Info("followed", "user", user, "target", target)
		return nil
	})
}

// Unfollow removes the relationship from both sides. It returns
// ErrNotFollowing, leaving both sets untouched, when there is nothing to remove.
func (g *SocialGraph) Unfollow(s *Session, target string) error {
	user, err := requireUser(s)
	if err != nil {
		return err
	}
	target = strings.TrimSpace(target)

	return g.store.update("unfollow", func() error {
		dst := g.store.lookup(target)
		if dst == nil {
			return ErrNoSuchUser
		}
		src := g.store.lookup(user)
		if src == nil {
			return ErrUnauthenticated
		}
		if !src.IsFollowing(target) {
			return ErrNotFollowing
		}

		src.Following = remove(src.Following, target)
		dst.Followers = remove(dst.Followers, user)
		g.logger.Info("unfollowed", "user", user, "target", target)
		return nil
	})
}

// IsFollowing reports whether the session user follows target.
func (g *SocialGraph) IsFollowing(s *Session, target string) (bool, error) {
	user, err := requireUser(s)
	if err != nil {
		return false, err
	}

	var following, exists bool
	g.store.view(func() {
		if g.store.lookup(target) == nil {
			return
		}
		exists = true
		if src := g.store.lookup(user); src != nil {
			following = src.IsFollowing(target)
		}
	})
	if !exists {
		return false, ErrNoSuchUser
	}
	return following, nil
}

func remove(items []string, item string) []string {
	return slices.DeleteFunc(items, func(s string) bool { return s == item })
}
