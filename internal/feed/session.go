// Package feed holds the pagination state of one listing selection.
package feed

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/ppiankov/redreader/internal/metrics"
	"github.com/ppiankov/redreader/internal/source"
	log "github.com/sirupsen/logrus"
)

// ErrFetchFailed wraps every fetcher failure surfaced by LoadNextPage.
var ErrFetchFailed = errors.New("fetch failed")

// Selection identifies the listing a session pages through.
type Selection struct {
	Collection string
	Sort       source.Sort
	TimeRange  source.TimeRange
}

func (sel Selection) String() string {
	s := fmt.Sprintf("r/%s/%s", sel.Collection, sel.Sort)
	if sel.Sort.UsesTimeRange() && sel.TimeRange != source.TimeNone {
		s += "?t=" + string(sel.TimeRange)
	}
	return s
}

// PageResult describes what a LoadNextPage call did.
type PageResult struct {
	Fetched    bool // a request was issued and its response applied
	Added      int  // new items appended
	Skipped    int  // entries that were not displayable media
	Duplicates int  // items whose id was already present
	Discarded  bool // the response arrived after a Reset and was dropped
}

// Option configures a Session.
type Option func(*Session)

// WithPageSize sets the per-request page size hint.
func WithPageSize(n int) Option {
	return func(s *Session) { s.pageSize = n }
}

// WithLogger sets the entry used for debug and warning output.
func WithLogger(l *log.Entry) Option {
	return func(s *Session) {
		if l != nil {
			s.log = l
		}
	}
}

// Session accumulates normalized items for one selection, strictly forward.
// A mutex guards the state but is never held while a fetch is outstanding.
type Session struct {
	fetcher  source.Fetcher
	pageSize int
	log      *log.Entry

	mu        sync.Mutex
	sel       Selection
	items     []source.Item
	seen      map[string]struct{}
	cursor    string
	exhausted bool
	inFlight  bool
	gen       uint64
	cancel    context.CancelFunc
}

// NewSession creates a session ready for its first fetch.
func NewSession(fetcher source.Fetcher, sel Selection, opts ...Option) (*Session, error) {
	if fetcher == nil {
		return nil, errors.New("feed: fetcher is required")
	}
	s := &Session{
		fetcher: fetcher,
		log:     log.WithField("component", "feed"),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.Reset(sel)
	return s, nil
}

// Reset switches to sel and clears all accumulated state. A fetch still in
// flight for the previous selection is cancelled and its response ignored.
func (s *Session) Reset(sel Selection) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.gen++
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	s.sel = sel
	s.items = nil
	s.seen = make(map[string]struct{})
	s.cursor = ""
	s.exhausted = false
	s.inFlight = false
}

// LoadNextPage fetches the page after the current cursor and appends the
// displayable items not seen before. It is a no-op once the listing is
// exhausted or while another fetch is outstanding. On failure nothing changes
// and the call can be retried with the same cursor.
func (s *Session) LoadNextPage(ctx context.Context) (PageResult, error) {
	s.mu.Lock()
	if s.exhausted || s.inFlight {
		s.mu.Unlock()
		return PageResult{}, nil
	}
	s.inFlight = true
	gen := s.gen
	sel := s.sel
	q := source.Query{
		Collection: sel.Collection,
		Sort:       sel.Sort,
		TimeRange:  sel.TimeRange,
		Cursor:     s.cursor,
		Limit:      s.pageSize,
	}
	fetchCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.mu.Unlock()

	page, err := s.fetcher.FetchPage(fetchCtx, q)
	cancel()

	s.mu.Lock()
	defer s.mu.Unlock()

	if gen != s.gen {
		metrics.StaleResponsesDiscarded.Inc()
		s.log.WithField("selection", sel.String()).Debug("discarding response for reset session")
		return PageResult{Discarded: true}, nil
	}
	s.inFlight = false
	s.cancel = nil

	if err != nil {
		metrics.PagesFetched.WithLabelValues("error").Inc()
		return PageResult{}, fmt.Errorf("%w: %s: %w", ErrFetchFailed, sel, err)
	}
	metrics.PagesFetched.WithLabelValues("ok").Inc()

	items, skipped := source.NormalizePage(page.Entries)
	metrics.EntriesNormalized.WithLabelValues("skipped").Add(float64(skipped))

	res := PageResult{Fetched: true, Skipped: skipped}
	for _, it := range items {
		if _, dup := s.seen[it.ID]; dup {
			res.Duplicates++
			continue
		}
		s.seen[it.ID] = struct{}{}
		s.items = append(s.items, it)
		res.Added++
		metrics.EntriesNormalized.WithLabelValues(string(it.Kind)).Inc()
	}
	if res.Duplicates > 0 {
		metrics.DuplicatesDropped.Add(float64(res.Duplicates))
	}

	s.cursor = page.Next
	s.exhausted = page.Next == ""

	s.log.WithFields(log.Fields{
		"selection":  sel.String(),
		"added":      res.Added,
		"skipped":    res.Skipped,
		"duplicates": res.Duplicates,
		"exhausted":  s.exhausted,
	}).Debug("page loaded")

	return res, nil
}

// Items returns a copy of the accumulated items in arrival order.
func (s *Session) Items() []source.Item {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.items)
}

// Len returns the number of accumulated items.
func (s *Session) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.items)
}

func (s *Session) Selection() Selection {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sel
}

// Cursor returns the opaque continuation token for the next page.
func (s *Session) Cursor() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cursor
}

// Exhausted reports whether the upstream returned its last page.
func (s *Session) Exhausted() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.exhausted
}

// InFlight reports whether a fetch is outstanding.
func (s *Session) InFlight() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inFlight
}
