package hub

import (
	"errors"
	"slices"
	"strings"
)

// PostRegistry creates posts and records likes.
type PostRegistry struct {
	store  *Store
	clock  Clock
	idgen  IDGenerator
	logger Logger
}

// NewPostRegistry creates a PostRegistry over store.
func NewPostRegistry(store *Store, clock Clock, idgen IDGenerator, logger Logger) *PostRegistry {
	return &PostRegistry{store: store, clock: clock, idgen: idgen, logger: logger}
}

// CreatePost publishes a post for the session user. Content is trimmed; a
// post needs either text or an image. The new post is placed first in the
// author's post list.
func (r *PostRegistry) CreatePost(s *Session, content string, attachment *Attachment) (*Post, error) {
	user, err := requireUser(s)
	if err != nil {
		return nil, err
	}

	content = strings.TrimSpace(content)
	if content == "" && (attachment == nil || len(attachment.Data) == 0) {
		return nil, ErrEmptyPost
	}

	post := &Post{
		ID:        r.idgen.New(),
		Content:   content,
		Timestamp: r.clock.Now().Format(TimestampLayout),
		Tags:      ExtractTags(content),
		Likes:     []string{},
	}
	if attachment != nil && len(attachment.Data) > 0 {
		post.Image = slices.Clone(attachment.Data)
		post.ImageExt = strings.ToLower(strings.TrimPrefix(attachment.Ext, "."))
	}

	err = r.store.update("post", func() error {
		author := r.store.lookup(user)
		if author == nil {
			return ErrUnauthenticated
		}
		author.Posts = slices.Insert(author.Posts, 0, post)
		r.logger.Info("post created", "user", user, "post", post.ID, "tags", len(post.Tags), "image", post.HasImage())
		return nil
	})
	var perr *PersistenceError
	if errors.As(err, &perr) {
		// The post exists in memory even though the snapshot write failed.
		return post.Clone(), err
	}
	if err != nil {
		return nil, err
	}
	return post.Clone(), nil
}

// LikePost records a like by the session user on author's post. Likes are
// one-way; a second like by the same user returns ErrAlreadyLiked.
func (r *PostRegistry) LikePost(s *Session, author, postID string) error {
	user, err := requireUser(s)
	if err != nil {
		return err
	}

	return r.store.update("like", func() error {
		acct := r.store.lookup(author)
		if acct == nil {
			return ErrNoSuchUser
		}
		post := acct.FindPost(postID)
		if post == nil {
			return ErrNoSuchPost
		}
		if post.LikedBy(user) {
			return ErrAlreadyLiked
		}
		post.Likes = append(post.Likes, user)
		r.logger.Info("post liked", "user", user, "author", author, "post", postID)
		return nil
	})
}

// ExtractTags returns the hashtags in content: whitespace-separated tokens
// starting with '#' and longer than one character, lowercased, first-seen
// order, no duplicates.
func ExtractTags(content string) []string {
	tags := []string{}
	for _, word := range strings.Fields(content) {
		if !strings.HasPrefix(word, "#") || len(word) <= 1 {
			continue
		}
		tag := strings.ToLower(word)
		if !slices.Contains(tags, tag) {
			tags = append(tags, tag)
		}
	}
	return tags
}
