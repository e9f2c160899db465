package feed

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/ppiankov/redreader/internal/source"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeFetcher struct {
	mu      sync.Mutex
	pages   map[string]source.Page // keyed by cursor
	errs    map[string]error
	queries []source.Query
}

func (f *fakeFetcher) FetchPage(_ context.Context, q source.Query) (source.Page, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queries = append(f.queries, q)
	if err, ok := f.errs[q.Cursor]; ok {
		return source.Page{}, err
	}
	return f.pages[q.Cursor], nil
}

func (f *fakeFetcher) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.queries)
}

func image(id string) source.Entry {
	return source.Entry{ID: id, Title: id, PostHint: "image", URL: "https://i.redd.it/" + id + ".jpg"}
}

func selfPost(id string) source.Entry {
	return source.Entry{ID: id, PostHint: "self", URL: "https://reddit.com/" + id}
}

func ids(items []source.Item) []string {
	out := make([]string, 0, len(items))
	for _, it := range items {
		out = append(out, it.ID)
	}
	return out
}

var pics = Selection{Collection: "pics", Sort: source.SortHot}

func newSession(t *testing.T, f source.Fetcher) *Session {
	t.Helper()
	s, err := NewSession(f, pics, WithPageSize(25))
	require.NoError(t, err)
	return s
}

func TestNewSession_RequiresFetcher(t *testing.T) {
	_, err := NewSession(nil, pics)
	assert.Error(t, err)
}

func TestLoadNextPage_AccumulatesAndFollowsCursor(t *testing.T) {
	f := &fakeFetcher{pages: map[string]source.Page{
		"":     {Entries: []source.Entry{image("a"), selfPost("b"), image("c")}, Next: "t3_c"},
		"t3_c": {Entries: []source.Entry{image("d")}, Next: "t3_d"},
	}}
	s := newSession(t, f)

	res, err := s.LoadNextPage(context.Background())
	require.NoError(t, err)
	assert.Equal(t, PageResult{Fetched: true, Added: 2, Skipped: 1}, res)
	assert.Equal(t, "t3_c", s.Cursor())
	assert.False(t, s.Exhausted())

	_, err = s.LoadNextPage(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "c", "d"}, ids(s.Items()))
	assert.Equal(t, "t3_d", s.Cursor())

	require.Len(t, f.queries, 2)
	assert.Equal(t, "", f.queries[0].Cursor)
	assert.Equal(t, "t3_c", f.queries[1].Cursor)
	assert.Equal(t, 25, f.queries[1].Limit)
	assert.Equal(t, "pics", f.queries[1].Collection)
}

func TestLoadNextPage_DropsDuplicateIDsAcrossPages(t *testing.T) {
	f := &fakeFetcher{pages: map[string]source.Page{
		"":   {Entries: []source.Entry{image("a"), image("b")}, Next: "p2"},
		"p2": {Entries: []source.Entry{image("b"), image("c"), image("a")}, Next: "p3"},
		"p3": {Entries: []source.Entry{image("c")}},
	}}
	s := newSession(t, f)

	for !s.Exhausted() {
		_, err := s.LoadNextPage(context.Background())
		require.NoError(t, err)
	}

	got := ids(s.Items())
	assert.Equal(t, []string{"a", "b", "c"}, got)

	seen := map[string]bool{}
	for _, id := range got {
		assert.False(t, seen[id], "duplicate id %s", id)
		seen[id] = true
	}
}

func TestLoadNextPage_EmptyTerminalPage(t *testing.T) {
	f := &fakeFetcher{pages: map[string]source.Page{
		"":   {Entries: []source.Entry{image("a")}, Next: "p2"},
		"p2": {},
	}}
	s := newSession(t, f)
	_, err := s.LoadNextPage(context.Background())
	require.NoError(t, err)

	res, err := s.LoadNextPage(context.Background())
	require.NoError(t, err)
	assert.True(t, res.Fetched)
	assert.Zero(t, res.Added)
	assert.True(t, s.Exhausted())
	assert.Equal(t, []string{"a"}, ids(s.Items()))
}

func TestLoadNextPage_NoOpOnceExhausted(t *testing.T) {
	f := &fakeFetcher{pages: map[string]source.Page{
		"": {Entries: []source.Entry{image("a")}},
	}}
	s := newSession(t, f)
	_, err := s.LoadNextPage(context.Background())
	require.NoError(t, err)
	require.True(t, s.Exhausted())

	for i := 0; i < 3; i++ {
		res, err := s.LoadNextPage(context.Background())
		require.NoError(t, err)
		assert.Equal(t, PageResult{}, res)
	}
	assert.Equal(t, 1, f.calls())
	assert.Equal(t, []string{"a"}, ids(s.Items()))
	assert.Equal(t, "", s.Cursor())
}

func TestLoadNextPage_FailureLeavesStateAndIsRetryable(t *testing.T) {
	upstream := errors.New("status 503")
	f := &fakeFetcher{
		pages: map[string]source.Page{
			"":   {Entries: []source.Entry{image("a")}, Next: "p2"},
			"p2": {Entries: []source.Entry{image("b")}, Next: "p3"},
		},
		errs: map[string]error{"p2": upstream},
	}
	s := newSession(t, f)
	_, err := s.LoadNextPage(context.Background())
	require.NoError(t, err)

	_, err = s.LoadNextPage(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrFetchFailed)
	assert.ErrorIs(t, err, upstream)
	assert.Equal(t, "p2", s.Cursor())
	assert.False(t, s.Exhausted())
	assert.False(t, s.InFlight())
	assert.Equal(t, []string{"a"}, ids(s.Items()))

	f.mu.Lock()
	delete(f.errs, "p2")
	f.mu.Unlock()

	_, err = s.LoadNextPage(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, ids(s.Items()))
	assert.Equal(t, "p2", f.queries[2].Cursor)
}

func TestReset_ClearsState(t *testing.T) {
	f := &fakeFetcher{pages: map[string]source.Page{
		"": {Entries: []source.Entry{image("a")}},
	}}
	s := newSession(t, f)
	_, err := s.LoadNextPage(context.Background())
	require.NoError(t, err)
	require.True(t, s.Exhausted())

	next := Selection{Collection: "earthporn", Sort: source.SortTop, TimeRange: source.TimeWeek}
	s.Reset(next)
	assert.Empty(t, s.Items())
	assert.False(t, s.Exhausted())
	assert.Equal(t, "", s.Cursor())
	assert.Equal(t, next, s.Selection())

	_, err = s.LoadNextPage(context.Background())
	require.NoError(t, err)
	last := f.queries[len(f.queries)-1]
	assert.Equal(t, "earthporn", last.Collection)
	assert.Equal(t, source.SortTop, last.Sort)
	assert.Equal(t, source.TimeWeek, last.TimeRange)
}

// blockingFetcher parks every request until released, per collection.
type blockingFetcher struct {
	started chan source.Query
	release map[string]chan source.Page
}

func newBlockingFetcher(collections ...string) *blockingFetcher {
	b := &blockingFetcher{
		started: make(chan source.Query, len(collections)+1),
		release: make(map[string]chan source.Page),
	}
	for _, c := range collections {
		b.release[c] = make(chan source.Page)
	}
	return b
}

func (b *blockingFetcher) FetchPage(_ context.Context, q source.Query) (source.Page, error) {
	b.started <- q
	return <-b.release[q.Collection], nil
}

func TestReset_DiscardsStaleInFlightResponse(t *testing.T) {
	b := newBlockingFetcher("pics", "aww")
	s := newSession(t, b)

	type outcome struct {
		res PageResult
		err error
	}
	stale := make(chan outcome, 1)
	go func() {
		res, err := s.LoadNextPage(context.Background())
		stale <- outcome{res, err}
	}()
	<-b.started
	assert.True(t, s.InFlight())

	s.Reset(Selection{Collection: "aww", Sort: source.SortNew})
	assert.False(t, s.InFlight())

	fresh := make(chan outcome, 1)
	go func() {
		res, err := s.LoadNextPage(context.Background())
		fresh <- outcome{res, err}
	}()
	q := <-b.started
	assert.Equal(t, "aww", q.Collection)

	// The stale request completes first, then the fresh one.
	b.release["pics"] <- source.Page{Entries: []source.Entry{image("old")}, Next: "old-cursor"}
	got := <-stale
	require.NoError(t, got.err)
	assert.True(t, got.res.Discarded)
	assert.True(t, s.InFlight(), "stale response must not clear the fresh fetch")

	b.release["aww"] <- source.Page{Entries: []source.Entry{image("new")}}
	got = <-fresh
	require.NoError(t, got.err)
	assert.Equal(t, 1, got.res.Added)

	assert.Equal(t, []string{"new"}, ids(s.Items()))
	assert.True(t, s.Exhausted())
	assert.Equal(t, "", s.Cursor())
}

func TestLoadNextPage_NoConcurrentDuplicateRequest(t *testing.T) {
	b := newBlockingFetcher("pics")
	s := newSession(t, b)

	done := make(chan struct{})
	go func() {
		_, _ = s.LoadNextPage(context.Background())
		close(done)
	}()
	<-b.started

	res, err := s.LoadNextPage(context.Background())
	require.NoError(t, err)
	assert.Equal(t, PageResult{}, res)

	b.release["pics"] <- source.Page{Entries: []source.Entry{image("a")}, Next: "n"}
	<-done
	assert.Equal(t, []string{"a"}, ids(s.Items()))
	assert.Len(t, b.started, 0)
}

func TestSelection_String(t *testing.T) {
	assert.Equal(t, "r/pics/hot", pics.String())
	assert.Equal(t, "r/pics/top?t=day", Selection{Collection: "pics", Sort: source.SortTop, TimeRange: source.TimeDay}.String())
	assert.Equal(t, "r/pics/new", Selection{Collection: "pics", Sort: source.SortNew, TimeRange: source.TimeDay}.String())
}
