package hub

import "slices"

// TimestampLayout is the layout of Post.Timestamp. Lexicographic order on
// strings in this layout equals chronological order.
const TimestampLayout = "2006-01-02 15:04"

// Account is a registered user's record: credentials, profile, relationships
// and authored posts.
//
// Followers and Following hold usernames, never account pointers. Both are
// ordered sets: insertion order, no duplicates, never the account itself.
type Account struct {
	Username  string
	Password  string // stored in plaintext; see DESIGN.md
	Bio       string
	Followers []string
	Following []string
	Posts     []*Post // newest first
}

// Post is a single text and/or image entry authored by one account.
type Post struct {
	ID        string // stable synthetic ID, assigned at creation
	Content   string
	Timestamp string // TimestampLayout, minute granularity
	Image     []byte // opaque payload, empty when no image is attached
	ImageExt  string
	Tags      []string // lowercase, first-seen order
	Likes     []string // usernames, no duplicates
}

// Attachment is the raw image payload handed over by the file-attachment
// collaborator. The core never inspects Data.
type Attachment struct {
	Data []byte
	Ext  string
}

// NewAccount validates the required fields and returns an account with empty
// relationships and no posts.
func NewAccount(username, password, bio string) (*Account, error) {
	if username == "" || password == "" {
		return nil, ErrInvalidInput
	}
	return &Account{
		Username:  username,
		Password:  password,
		Bio:       bio,
		Followers: []string{},
		Following: []string{},
		Posts:     []*Post{},
	}, nil
}

// IsFollowing reports whether username is in the account's following set.
func (a *Account) IsFollowing(username string) bool {
	return slices.Contains(a.Following, username)
}

// HasFollower reports whether username is in the account's followers set.
func (a *Account) HasFollower(username string) bool {
	return slices.Contains(a.Followers, username)
}

// FindPost returns the post with the given ID, or nil.
func (a *Account) FindPost(id string) *Post {
	for _, p := range a.Posts {
		if p.ID == id {
			return p
		}
	}
	return nil
}

// Clone returns a deep copy so callers cannot mutate store-owned state.
func (a *Account) Clone() *Account {
	c := &Account{
		Username:  a.Username,
		Password:  a.Password,
		Bio:       a.Bio,
		Followers: slices.Clone(a.Followers),
		Following: slices.Clone(a.Following),
		Posts:     make([]*Post, len(a.Posts)),
	}
	if c.Followers == nil {
		c.Followers = []string{}
	}
	if c.Following == nil {
		c.Following = []string{}
	}
	for i, p := range a.Posts {
		c.Posts[i] = p.Clone()
	}
	return c
}

// HasImage reports whether an image payload is attached.
func (p *Post) HasImage() bool {
	return len(p.Image) > 0
}

// LikedBy reports whether username has liked the post.
func (p *Post) LikedBy(username string) bool {
	return slices.Contains(p.Likes, username)
}

// Clone returns a deep copy of the post.
func (p *Post) Clone() *Post {
	c := *p
	if len(p.Image) > 0 {
		c.Image = slices.Clone(p.Image)
	} else {
		c.Image = nil
	}
	c.Tags = slices.Clone(p.Tags)
	c.Likes = slices.Clone(p.Likes)
	if c.Tags == nil {
		c.Tags = []string{}
	}
	if c.Likes == nil {
		c.Likes = []string{}
	}
	return &c
}

// Session is the transient authenticated-user context. A nil Session, or one
// that has been logged out, is anonymous.
type Session struct {
	username string
}

// Username returns the bound username, or "" when anonymous.
func (s *Session) Username() string {
	if s == nil {
		return ""
	}
	return s.username
}

// Authenticated reports whether the session is bound to a user.
func (s *Session) Authenticated() bool {
	return s != nil && s.username != ""
}

// requireUser returns the session's username or ErrUnauthenticated.
func requireUser(s *Session) (string, error) {
	if !s.Authenticated() {
		return "", ErrUnauthenticated
	}
	return s.username, nil
}
