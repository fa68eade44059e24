package user

import (
	"context"
	"errors"
)

// ErrUserNotFound is returned by a Directory when no profile exists for an id.
var ErrUserNotFound = errors.New("user not found")

// Directory resolves campus profiles.
type Directory interface {
	// Resolve returns the profile for id or ErrUserNotFound.
	Resolve(ctx context.Context, id string) (User, error)

	// List returns every profile, ordered by id.
	List(ctx context.Context) ([]User, error)
}

// Presence is implemented by directories that track who is signed in.
type Presence interface {
	// SetOnline records whether id has a live session. Unknown ids are ignored.
	SetOnline(ctx context.Context, id string, online bool) error
}
