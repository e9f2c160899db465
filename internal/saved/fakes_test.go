package saved

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/ppiankov/redreader/internal/source"
)

type memKV struct {
	mu     sync.Mutex
	data   map[string][]byte
	sets   int
	setErr error
	getErr error
}

func newMemKV() *memKV {
	return &memKV{data: make(map[string][]byte)}
}

func (m *memKV) Get(_ context.Context, key string) ([]byte, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getErr != nil {
		return nil, false, m.getErr
	}
	v, ok := m.data[key]
	return v, ok, nil
}

func (m *memKV) Set(_ context.Context, key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.setErr != nil {
		return m.setErr
	}
	m.sets++
	m.data[key] = append([]byte(nil), value...)
	return nil
}

func (m *memKV) raw(key string) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return string(m.data[key])
}

// fakeCollection keeps records most recent first, like the server.
type fakeCollection struct {
	mu        sync.Mutex
	records   []Record
	next      int
	createErr error
	listErr   error
	deleted   []string

	// When set, Create signals started and waits on release.
	started chan struct{}
	release chan struct{}
}

func (f *fakeCollection) List(context.Context) ([]Record, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listErr != nil {
		return nil, f.listErr
	}
	return append([]Record(nil), f.records...), nil
}

func (f *fakeCollection) Create(ctx context.Context, item source.Item) (string, error) {
	if f.started != nil {
		f.started <- struct{}{}
		select {
		case <-f.release:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return "", f.createErr
	}
	f.next++
	id := fmt.Sprintf("rec-%d", f.next)
	f.records = append([]Record{{Item: item, RemoteID: id}}, f.records...)
	return id, nil
}

func (f *fakeCollection) Delete(_ context.Context, remoteID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, r := range f.records {
		if r.RemoteID == remoteID {
			f.records = append(f.records[:i], f.records[i+1:]...)
			f.deleted = append(f.deleted, remoteID)
			return nil
		}
	}
	return errors.New("not found")
}

func item(id string) source.Item {
	return source.Item{
		ID:        id,
		Title:     "post " + id,
		SourceURL: "https://i.example.com/" + id + ".jpg",
		Permalink: "/r/pics/comments/" + id,
		Kind:      source.KindImage,
	}
}
