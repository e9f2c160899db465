package saved

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/ppiankov/redreader/internal/source"
	"github.com/samber/lo"
	log "github.com/sirupsen/logrus"
)

// LocalKey is the fixed key holding the anonymous record set.
const LocalKey = "redreader_saved"

// KeyValue is a scoped key-value surface.
type KeyValue interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte) error
}

// LocalBackend stores the anonymous record set as a JSON array of items under
// LocalKey. Writes carrying an older revision than the last one written are
// skipped so a slow caller cannot overwrite a newer snapshot.
type LocalBackend struct {
	kv  KeyValue
	log *log.Entry

	mu      sync.Mutex
	written uint64
}

func NewLocalBackend(kv KeyValue) (*LocalBackend, error) {
	if kv == nil {
		return nil, errors.New("saved: key-value store is required")
	}
	return &LocalBackend{
		kv:  kv,
		log: log.WithFields(log.Fields{"component": "saved", "backend": "local"}),
	}, nil
}

func (b *LocalBackend) Name() string { return "local" }

// Load returns the stored records in insertion order. A corrupt value is
// logged and treated as an empty set.
func (b *LocalBackend) Load(ctx context.Context) ([]Record, error) {
	data, ok, err := b.kv.Get(ctx, LocalKey)
	if err != nil {
		return nil, fmt.Errorf("read local saved items: %w", err)
	}
	if !ok || len(data) == 0 {
		return []Record{}, nil
	}

	var items []source.Item
	if err := json.Unmarshal(data, &items); err != nil {
		b.log.WithError(err).Warn("failed to parse local saved items, starting empty")
		return []Record{}, nil
	}

	items = lo.UniqBy(items, func(it source.Item) string { return it.ID })
	return lo.Map(items, func(it source.Item, _ int) Record {
		return Record{Item: it}
	}), nil
}

// Save persists the snapshot. Local records never carry a remote id.
func (b *LocalBackend) Save(ctx context.Context, ch Change) (string, error) {
	return "", b.persist(ctx, ch)
}

// Remove persists the snapshot.
func (b *LocalBackend) Remove(ctx context.Context, ch Change) error {
	return b.persist(ctx, ch)
}

func (b *LocalBackend) persist(ctx context.Context, ch Change) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if ch.Revision != 0 && ch.Revision <= b.written {
		b.log.WithFields(log.Fields{
			"revision": ch.Revision,
			"written":  b.written,
		}).Debug("skipping stale local snapshot")
		return nil
	}

	items := lo.Map(ch.Snapshot, func(r Record, _ int) source.Item { return r.Item })
	data, err := json.Marshal(items)
	if err != nil {
		return fmt.Errorf("encode local saved items: %w", err)
	}
	if err := b.kv.Set(ctx, LocalKey, data); err != nil {
		return fmt.Errorf("write local saved items: %w", err)
	}
	b.written = ch.Revision
	return nil
}
