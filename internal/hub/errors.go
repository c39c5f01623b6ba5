package hub

import (
	"errors"
	"fmt"
)

// Errors returned by the core. All of them are recoverable by the caller.
var (
	ErrInvalidInput       = errors.New("invalid input")
	ErrDuplicateUser      = errors.New("username already exists")
	ErrInvalidCredentials = errors.New("invalid username or password")
	ErrSelfFollow         = errors.New("cannot follow yourself")
	ErrNoSuchUser         = errors.New("no such user")
	ErrNoSuchPost         = errors.New("no such post")
	ErrAlreadyFollowing   = errors.New("already following")
	ErrNotFollowing       = errors.New("not following")
	ErrEmptyPost          = errors.New("post cannot be empty, add text or an image")
	ErrAlreadyLiked       = errors.New("post already liked")
	ErrUnauthenticated    = errors.New("not logged in")
)

// PersistenceError reports that an in-memory mutation succeeded but the
// snapshot could not be written. The store and durable storage diverge until
// the next successful persist.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persisting after %s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// IsNotice reports whether err is a non-fatal signal that left state
// unchanged (ErrNotFollowing, ErrAlreadyLiked).
func IsNotice(err error) bool {
	return errors.Is(err, ErrNotFollowing) || errors.Is(err, ErrAlreadyLiked)
}
