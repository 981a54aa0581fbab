package petalpress

import (
	"context"
	"errors"
)

// Store error taxonomy. Callers branch on these with errors.Is; everything
// else coming out of a store is treated as transient.
var (
	// ErrNotFound is returned when a requested post does not exist.
	ErrNotFound = errors.New("post not found")
	// ErrPermissionDenied is returned when the store's access rules reject
	// the operation. Not retried.
	ErrPermissionDenied = errors.New("store permission denied")
	// ErrUnavailable is returned for transient store or network failures.
	ErrUnavailable = errors.New("store unavailable")
)

// PostStore is the capability interface over the remote post collection.
// Implementations do the ordering: list operations return posts by
// CreatedAt descending. No operation spans multiple documents atomically;
// concurrent writers simply overwrite (last write wins).
type PostStore interface {
	// Ready reports whether the store can serve requests. Awaited once at
	// startup under a bounded timeout.
	Ready(ctx context.Context) error

	// ListAll returns every post, drafts included, newest first.
	ListAll(ctx context.Context) ([]Post, error)

	// ListPublished returns only posts visible to anonymous visitors,
	// newest first.
	ListPublished(ctx context.Context) ([]Post, error)

	// Get returns a single post by id, or ErrNotFound.
	Get(ctx context.Context, id string) (Post, error)

	// Create stores a new post, assigning its id and timestamps.
	Create(ctx context.Context, fields PostFields) (Post, error)

	// Update overwrites the mutable fields of an existing post and bumps
	// UpdatedAt. Returns ErrNotFound if the id does not exist.
	Update(ctx context.Context, id string, fields PostFields) (Post, error)

	// SetPublished flips visibility in a single store call and bumps
	// UpdatedAt. Returns ErrNotFound if the id does not exist.
	SetPublished(ctx context.Context, id string, published bool) error

	// Delete permanently removes a post. Returns ErrNotFound if the id
	// does not exist.
	Delete(ctx context.Context, id string) error

	Close(ctx context.Context) error
}
