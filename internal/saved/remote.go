package saved

import (
	"context"
	"errors"
	"fmt"

	"github.com/ppiankov/redreader/internal/source"
)

// RemoteCollection is the authenticated caller's server-side collection.
// List returns records most recent first.
type RemoteCollection interface {
	List(ctx context.Context) ([]Record, error)
	Create(ctx context.Context, item source.Item) (string, error)
}

// Deleter removes a record from the remote collection by its remote id.
type Deleter interface {
	Delete(ctx context.Context, remoteID string) error
}

// RemoteOption configures a RemoteBackend.
type RemoteOption func(*RemoteBackend)

// WithDeleter enables remote deletion. Without it every authenticated
// removal reports ErrRemoteDeleteUnavailable.
func WithDeleter(d Deleter) RemoteOption {
	return func(b *RemoteBackend) { b.deleter = d }
}

// RemoteBackend stores records in a RemoteCollection.
type RemoteBackend struct {
	coll    RemoteCollection
	deleter Deleter
}

func NewRemoteBackend(coll RemoteCollection, opts ...RemoteOption) (*RemoteBackend, error) {
	if coll == nil {
		return nil, errors.New("saved: remote collection is required")
	}
	b := &RemoteBackend{coll: coll}
	for _, opt := range opts {
		opt(b)
	}
	return b, nil
}

func (b *RemoteBackend) Name() string { return "remote" }

func (b *RemoteBackend) Load(ctx context.Context) ([]Record, error) {
	records, err := b.coll.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list remote saved items: %w", err)
	}
	return records, nil
}

func (b *RemoteBackend) Save(ctx context.Context, ch Change) (string, error) {
	remoteID, err := b.coll.Create(ctx, ch.Record.Item)
	if err != nil {
		return "", fmt.Errorf("%w: %s: %w", ErrRemoteSaveFailed, ch.Record.Item.ID, err)
	}
	return remoteID, nil
}

func (b *RemoteBackend) Remove(ctx context.Context, ch Change) error {
	id := ch.Record.Item.ID
	if ch.Record.RemoteID == "" {
		return fmt.Errorf("%w: %s has no remote id", ErrRemoteDeleteUnavailable, id)
	}
	if b.deleter == nil {
		return fmt.Errorf("%w: %s: remote deletion is not enabled", ErrRemoteDeleteUnavailable, id)
	}
	if err := b.deleter.Delete(ctx, ch.Record.RemoteID); err != nil {
		return fmt.Errorf("remote delete %s: %w", id, err)
	}
	return nil
}
