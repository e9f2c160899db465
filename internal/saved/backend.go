package saved

import (
	"context"
	"errors"

	"github.com/ppiankov/redreader/internal/source"
)

var (
	// ErrRemoteSaveFailed wraps a failed remote create. The optimistic record
	// stays in memory until the next reload.
	ErrRemoteSaveFailed = errors.New("remote save failed")

	// ErrRemoteDeleteUnavailable reports a removal that could not reach the
	// remote collection, either because the record has no remote id or because
	// remote deletion is not available. The removal is local to the session.
	ErrRemoteDeleteUnavailable = errors.New("remote delete unavailable")
)

// Record is one saved item. RemoteID is empty until the remote collection
// confirms the record.
type Record struct {
	Item     source.Item
	RemoteID string
}

// Change describes one mutation handed to a backend.
type Change struct {
	Record   Record   // the record saved or removed
	Snapshot []Record // the full record set after the mutation, in list order
	Revision uint64   // strictly increasing per Store
}

// Backend persists the record set for one identity mode.
type Backend interface {
	// Name labels the backend in logs and metrics.
	Name() string
	// Load returns the persisted record set in list order.
	Load(ctx context.Context) ([]Record, error)
	// Save persists a newly inserted record and returns its remote id, if any.
	Save(ctx context.Context, ch Change) (string, error)
	// Remove persists the removal of a record.
	Remove(ctx context.Context, ch Change) error
}

// Backends selects the backend for an identity.
type Backends interface {
	Backend(id Identity) (Backend, error)
}

// ModeBackends uses Local for anonymous identities and Remote for
// authenticated ones.
type ModeBackends struct {
	Local  Backend
	Remote func(id Identity) (Backend, error)
}

func (m ModeBackends) Backend(id Identity) (Backend, error) {
	if !id.IsAuthenticated() {
		if m.Local == nil {
			return nil, errors.New("saved: no local backend configured")
		}
		return m.Local, nil
	}
	if m.Remote == nil {
		return nil, errors.New("saved: no remote backend configured")
	}
	return m.Remote(id)
}
