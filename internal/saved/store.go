// Package saved keeps the caller's saved items in local persistence when
// anonymous and in a remote collection when authenticated.
package saved

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/ppiankov/redreader/internal/metrics"
	"github.com/ppiankov/redreader/internal/source"
	"github.com/samber/lo"
	log "github.com/sirupsen/logrus"
)

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the entry used for warnings and debug output.
func WithLogger(l *log.Entry) Option {
	return func(s *Store) {
		if l != nil {
			s.log = l
		}
	}
}

// Store is the in-memory saved set for the current identity. Mutations are
// applied to memory first and then handed to the backend. The mutex is never
// held during backend calls.
type Store struct {
	backends Backends
	log      *log.Entry

	mu       sync.Mutex
	identity Identity
	backend  Backend
	records  []Record
	index    map[string]struct{}
	gen      uint64
	revision uint64
}

// NewStore returns a store in anonymous mode with an empty in-memory set.
// Call SetIdentity or Reload to materialize persisted records.
func NewStore(backends Backends, opts ...Option) (*Store, error) {
	if backends == nil {
		return nil, errors.New("saved: backends are required")
	}
	backend, err := backends.Backend(Anonymous())
	if err != nil {
		return nil, fmt.Errorf("select backend: %w", err)
	}
	s := &Store{
		backends: backends,
		log:      log.WithField("component", "saved"),
		backend:  backend,
		index:    make(map[string]struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// SetIdentity switches mode and reloads from the backend of the new mode.
// Records of the previous mode are dropped from memory, never merged, and
// responses still in flight for the previous mode are ignored.
func (s *Store) SetIdentity(ctx context.Context, id Identity) error {
	backend, err := s.backends.Backend(id)
	if err != nil {
		return fmt.Errorf("select backend for %s: %w", id, err)
	}

	s.mu.Lock()
	s.gen++
	s.identity = id
	s.backend = backend
	s.records = nil
	s.index = make(map[string]struct{})
	s.mu.Unlock()

	s.log.WithFields(log.Fields{
		"identity": id.String(),
		"backend":  backend.Name(),
	}).Debug("identity changed")

	return s.Reload(ctx)
}

// Reload replaces the in-memory set with the backend's. On failure the
// current set is kept.
func (s *Store) Reload(ctx context.Context) error {
	s.mu.Lock()
	gen := s.gen
	backend := s.backend
	s.mu.Unlock()

	records, err := backend.Load(ctx)
	if err != nil {
		return fmt.Errorf("reload saved items from %s: %w", backend.Name(), err)
	}
	records = lo.UniqBy(records, func(r Record) string { return r.Item.ID })

	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.gen {
		s.log.WithField("backend", backend.Name()).Debug("discarding reload for previous identity")
		return nil
	}
	s.records = records
	s.index = make(map[string]struct{}, len(records))
	for _, r := range records {
		s.index[r.Item.ID] = struct{}{}
	}
	return nil
}

// Identity returns the current mode.
func (s *Store) Identity() Identity {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.identity
}

// List returns the saved items in the order last materialized from the
// backend, with items saved since then at the end.
func (s *Store) List() []source.Item {
	s.mu.Lock()
	defer s.mu.Unlock()
	return lo.Map(s.records, func(r Record, _ int) source.Item { return r.Item })
}

// Records returns a copy of the saved records including remote ids.
func (s *Store) Records() []Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.records)
}

func (s *Store) IsSaved(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.index[id]
	return ok
}

func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records)
}

// Save adds item. Saving an id that is already present does nothing. A
// remote failure returns an error wrapping ErrRemoteSaveFailed and keeps the
// item in memory.
func (s *Store) Save(ctx context.Context, item source.Item) error {
	if item.ID == "" {
		return errors.New("saved: item id is required")
	}

	s.mu.Lock()
	if _, ok := s.index[item.ID]; ok {
		s.mu.Unlock()
		return nil
	}
	rec := Record{Item: item}
	s.records = append(s.records, rec)
	s.index[item.ID] = struct{}{}
	ch := s.changeLocked(rec)
	gen := s.gen
	backend := s.backend
	s.mu.Unlock()

	remoteID, err := backend.Save(ctx, ch)
	if err != nil {
		metrics.SavedMutations.WithLabelValues("save", backend.Name(), "error").Inc()
		s.log.WithError(err).WithField("id", item.ID).Warn("saved item not persisted")
		return err
	}
	metrics.SavedMutations.WithLabelValues("save", backend.Name(), "ok").Inc()

	if remoteID == "" {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.gen {
		s.log.WithField("id", item.ID).Debug("discarding remote id for previous identity")
		return nil
	}
	if i := s.position(item.ID); i >= 0 {
		s.records[i].RemoteID = remoteID
	}
	return nil
}

// Remove deletes the record with id. Removing an absent id does nothing.
// When the removal cannot reach the remote collection the error wraps
// ErrRemoteDeleteUnavailable and the record stays removed for this session
// only.
func (s *Store) Remove(ctx context.Context, id string) error {
	s.mu.Lock()
	i := s.position(id)
	if i < 0 {
		s.mu.Unlock()
		return nil
	}
	rec := s.records[i]
	s.records = slices.Delete(s.records, i, i+1)
	delete(s.index, id)
	ch := s.changeLocked(rec)
	backend := s.backend
	s.mu.Unlock()

	err := backend.Remove(ctx, ch)
	switch {
	case errors.Is(err, ErrRemoteDeleteUnavailable):
		metrics.SavedMutations.WithLabelValues("remove", backend.Name(), "unavailable").Inc()
		s.log.WithFields(log.Fields{
			"id":      id,
			"backend": backend.Name(),
		}).Warn("removal is local to this session, the item will return on next reload")
		return err
	case err != nil:
		metrics.SavedMutations.WithLabelValues("remove", backend.Name(), "error").Inc()
		s.log.WithError(err).WithField("id", id).Warn("saved item removal not persisted")
		return err
	}
	metrics.SavedMutations.WithLabelValues("remove", backend.Name(), "ok").Inc()
	return nil
}

// changeLocked bumps the revision and captures the set. s.mu must be held.
func (s *Store) changeLocked(rec Record) Change {
	s.revision++
	return Change{
		Record:   rec,
		Snapshot: slices.Clone(s.records),
		Revision: s.revision,
	}
}

func (s *Store) position(id string) int {
	if _, ok := s.index[id]; !ok {
		return -1
	}
	return slices.IndexFunc(s.records, func(r Record) bool { return r.Item.ID == id })
}
