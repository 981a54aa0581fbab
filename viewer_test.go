package petalpress

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func testLogger() zerolog.Logger {
	return zerolog.Nop()
}

// fnStore lets a test script store behavior per call.
type fnStore struct {
	MemStore
	listPublished func(ctx context.Context) ([]Post, error)
}

func (s *fnStore) ListPublished(ctx context.Context) ([]Post, error) {
	if s.listPublished != nil {
		return s.listPublished(ctx)
	}
	return s.MemStore.ListPublished(ctx)
}

func seedPosts(t *testing.T, store *MemStore, titles ...string) []Post {
	t.Helper()
	posts := make([]Post, 0, len(titles))
	for _, title := range titles {
		p, err := store.Create(context.Background(), PostFields{
			Title:     title,
			Body:      "Body of " + title,
			Published: true,
		})
		if err != nil {
			t.Fatalf("seed %q: %v", title, err)
		}
		posts = append(posts, p)
	}
	return posts
}

func newTestViewer(t *testing.T, store PostStore, cfg ViewerConfig) *Viewer {
	t.Helper()
	if cfg.RetryBaseDelay == 0 {
		cfg.RetryBaseDelay = time.Millisecond
	}
	v := NewViewer(store, cfg, testLogger())
	return v
}

func TestViewerPagination(t *testing.T) {
	store := NewMemStore()
	titles := make([]string, 8)
	for i := range titles {
		titles[i] = fmt.Sprintf("Post %d", i+1)
	}
	seedPosts(t, store, titles...)

	v := newTestViewer(t, store, ViewerConfig{})
	if err := v.Refresh(context.Background()); err != nil {
		t.Fatalf("refresh: %v", err)
	}

	page := v.Page()
	if page.State != ViewerReady {
		t.Fatalf("state = %v, want ViewerReady", page.State)
	}
	if len(page.Posts) != 6 {
		t.Fatalf("first page has %d posts, want 6", len(page.Posts))
	}
	if !page.HasMore {
		t.Fatal("HasMore = false after first page, want true")
	}

	changed, err := v.LoadMore(context.Background())
	if err != nil || !changed {
		t.Fatalf("LoadMore = (%v, %v), want (true, nil)", changed, err)
	}
	page = v.Page()
	if len(page.Posts) != 8 {
		t.Fatalf("second page has %d posts, want 8", len(page.Posts))
	}
	if page.HasMore {
		t.Fatal("HasMore = true at end of set, want false")
	}

	// At the end, further loads are no-ops.
	changed, err = v.LoadMore(context.Background())
	if err != nil || changed {
		t.Fatalf("LoadMore past end = (%v, %v), want (false, nil)", changed, err)
	}
	if got := len(v.Page().Posts); got != 8 {
		t.Fatalf("post count after no-op load = %d, want 8", got)
	}
}

func TestViewerOrdering(t *testing.T) {
	store := NewMemStore()
	seedPosts(t, store, "Oldest", "Middle", "Newest")

	v := newTestViewer(t, store, ViewerConfig{})
	if err := v.Refresh(context.Background()); err != nil {
		t.Fatalf("refresh: %v", err)
	}
	page := v.Page()
	if len(page.Posts) != 3 {
		t.Fatalf("got %d posts, want 3", len(page.Posts))
	}
	if page.Posts[0].TitleHTML != "Newest" || page.Posts[2].TitleHTML != "Oldest" {
		t.Fatalf("order = [%s %s %s], want newest first",
			page.Posts[0].TitleHTML, page.Posts[1].TitleHTML, page.Posts[2].TitleHTML)
	}
}

func TestViewerUnpublishedHidden(t *testing.T) {
	store := NewMemStore()
	seedPosts(t, store, "Visible")
	if _, err := store.Create(context.Background(), PostFields{Title: "Draft", Body: "b"}); err != nil {
		t.Fatal(err)
	}

	v := newTestViewer(t, store, ViewerConfig{})
	if err := v.Refresh(context.Background()); err != nil {
		t.Fatalf("refresh: %v", err)
	}
	page := v.Page()
	if len(page.Posts) != 1 || page.Posts[0].TitleHTML != "Visible" {
		t.Fatalf("page shows %d posts, want only the published one", len(page.Posts))
	}
}

func TestViewerSearch(t *testing.T) {
	store := NewMemStore()
	seedPosts(t, store, "Spring Gala", "Winter Ball", "Spring Fling")

	v := newTestViewer(t, store, ViewerConfig{})
	if err := v.Refresh(context.Background()); err != nil {
		t.Fatalf("refresh: %v", err)
	}

	v.SearchNow("spring")
	page := v.Page()
	if page.Total != 2 {
		t.Fatalf("Total = %d for %q, want 2", page.Total, "spring")
	}
	for _, p := range page.Posts {
		if !strings.Contains(p.TitleHTML, "<mark>Spring</mark>") {
			t.Errorf("title %q lacks highlight", p.TitleHTML)
		}
	}

	// Clearing the query restores the full set from page one.
	v.SearchNow("")
	page = v.Page()
	if page.Total != 3 || page.Query != "" {
		t.Fatalf("after clear: Total = %d, Query = %q, want 3 and empty", page.Total, page.Query)
	}
}

func TestViewerSearchBody(t *testing.T) {
	store := NewMemStore()
	if _, err := store.Create(context.Background(), PostFields{
		Title: "Untitled", Body: "The venue was decorated with peonies.", Published: true,
	}); err != nil {
		t.Fatal(err)
	}
	seedPosts(t, store, "Roses")

	v := newTestViewer(t, store, ViewerConfig{})
	if err := v.Refresh(context.Background()); err != nil {
		t.Fatalf("refresh: %v", err)
	}
	v.SearchNow("peonies")
	page := v.Page()
	if page.Total != 1 {
		t.Fatalf("body search Total = %d, want 1", page.Total)
	}
	if !strings.Contains(page.Posts[0].BodyHTML, "<mark>peonies</mark>") {
		t.Errorf("body %q lacks highlight", page.Posts[0].BodyHTML)
	}
}

func TestViewerSearchMinLength(t *testing.T) {
	store := NewMemStore()
	seedPosts(t, store, "Alpha", "Beta")

	v := newTestViewer(t, store, ViewerConfig{})
	if err := v.Refresh(context.Background()); err != nil {
		t.Fatalf("refresh: %v", err)
	}
	v.SearchNow("a")
	page := v.Page()
	if page.Query != "" || page.Total != 2 {
		t.Fatalf("one-char query applied: Query = %q, Total = %d", page.Query, page.Total)
	}
}

func TestViewerSearchMaxResults(t *testing.T) {
	store := NewMemStore()
	titles := make([]string, 25)
	for i := range titles {
		titles[i] = fmt.Sprintf("Gala %d", i+1)
	}
	seedPosts(t, store, titles...)

	v := newTestViewer(t, store, ViewerConfig{})
	if err := v.Refresh(context.Background()); err != nil {
		t.Fatalf("refresh: %v", err)
	}
	v.SearchNow("gala")
	if got := v.Page().Total; got != 20 {
		t.Fatalf("Total = %d, want capped at 20", got)
	}
}

func TestViewerSearchResetsPagination(t *testing.T) {
	store := NewMemStore()
	titles := make([]string, 10)
	for i := range titles {
		titles[i] = fmt.Sprintf("Entry %d", i+1)
	}
	seedPosts(t, store, titles...)

	v := newTestViewer(t, store, ViewerConfig{})
	if err := v.Refresh(context.Background()); err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if _, err := v.LoadMore(context.Background()); err != nil {
		t.Fatalf("load more: %v", err)
	}
	if got := len(v.Page().Posts); got != 10 {
		t.Fatalf("expanded to %d posts, want 10", got)
	}

	v.SearchNow("entry")
	if got := len(v.Page().Posts); got != 6 {
		t.Fatalf("search result page has %d posts, want first page of 6", got)
	}
}

func TestViewerDebounce(t *testing.T) {
	store := NewMemStore()
	seedPosts(t, store, "Spring Gala", "Winter Ball")

	v := newTestViewer(t, store, ViewerConfig{SearchDebounce: 20 * time.Millisecond})
	if err := v.Refresh(context.Background()); err != nil {
		t.Fatalf("refresh: %v", err)
	}

	v.SetQuery("spr")
	v.SetQuery("winter")
	if q := v.Page().Query; q != "" {
		t.Fatalf("query applied before debounce elapsed: %q", q)
	}

	time.Sleep(100 * time.Millisecond)
	page := v.Page()
	if page.Query != "winter" {
		t.Fatalf("Query = %q after debounce, want last typed value", page.Query)
	}
	if page.Total != 1 {
		t.Fatalf("Total = %d, want 1", page.Total)
	}
}

func TestViewerRetryTransient(t *testing.T) {
	store := NewMemStore()
	seedPosts(t, store, "Eventually")

	var calls atomic.Int32
	flaky := &fnStore{}
	flaky.listPublished = func(ctx context.Context) ([]Post, error) {
		if calls.Add(1) <= 2 {
			return nil, fmt.Errorf("%w: connection reset", ErrUnavailable)
		}
		return store.ListPublished(ctx)
	}

	v := newTestViewer(t, flaky, ViewerConfig{})
	if err := v.Refresh(context.Background()); err != nil {
		t.Fatalf("refresh should recover: %v", err)
	}
	if got := calls.Load(); got != 3 {
		t.Fatalf("store called %d times, want 3", got)
	}
	if state := v.Page().State; state != ViewerReady {
		t.Fatalf("state = %v, want ViewerReady", state)
	}
}

func TestViewerRetriesExhausted(t *testing.T) {
	var calls atomic.Int32
	down := &fnStore{}
	down.listPublished = func(ctx context.Context) ([]Post, error) {
		calls.Add(1)
		return nil, fmt.Errorf("%w: no reachable servers", ErrUnavailable)
	}

	v := newTestViewer(t, down, ViewerConfig{LoadRetries: 2})
	if err := v.Refresh(context.Background()); err == nil {
		t.Fatal("refresh succeeded against a dead store")
	}
	if got := calls.Load(); got != 3 {
		t.Fatalf("store called %d times, want initial + 2 retries", got)
	}
	if state := v.Page().State; state != ViewerUnavailable {
		t.Fatalf("state = %v, want ViewerUnavailable", state)
	}
}

func TestViewerPermissionDeniedNotRetried(t *testing.T) {
	var calls atomic.Int32
	locked := &fnStore{}
	locked.listPublished = func(ctx context.Context) ([]Post, error) {
		calls.Add(1)
		return nil, fmt.Errorf("%w: rules reject read", ErrPermissionDenied)
	}

	v := newTestViewer(t, locked, ViewerConfig{})
	err := v.Refresh(context.Background())
	if !errors.Is(err, ErrPermissionDenied) {
		t.Fatalf("refresh error = %v, want ErrPermissionDenied", err)
	}
	if got := calls.Load(); got != 1 {
		t.Fatalf("store called %d times, want 1 (no retries)", got)
	}
	if state := v.Page().State; state != ViewerForbidden {
		t.Fatalf("state = %v, want ViewerForbidden", state)
	}
}

func TestViewerLoadMoreRetriesAfterOutage(t *testing.T) {
	store := NewMemStore()
	seedPosts(t, store, "Back online")

	healthy := atomic.Bool{}
	flaky := &fnStore{}
	flaky.listPublished = func(ctx context.Context) ([]Post, error) {
		if !healthy.Load() {
			return nil, fmt.Errorf("%w: outage", ErrUnavailable)
		}
		return store.ListPublished(ctx)
	}

	v := newTestViewer(t, flaky, ViewerConfig{LoadRetries: 1})
	if err := v.Refresh(context.Background()); err == nil {
		t.Fatal("refresh succeeded during outage")
	}
	if state := v.Page().State; state != ViewerUnavailable {
		t.Fatalf("state = %v, want ViewerUnavailable", state)
	}

	healthy.Store(true)
	if _, err := v.LoadMore(context.Background()); err != nil {
		t.Fatalf("load-more retry: %v", err)
	}
	page := v.Page()
	if page.State != ViewerReady || len(page.Posts) != 1 {
		t.Fatalf("state = %v with %d posts after recovery, want ready with 1", page.State, len(page.Posts))
	}
}

func TestViewerStaleFetchDiscarded(t *testing.T) {
	store := NewMemStore()
	seedPosts(t, store, "Fresh")

	release := make(chan struct{})
	slowDone := make(chan error, 1)
	slow := &fnStore{}
	first := atomic.Bool{}
	slow.listPublished = func(ctx context.Context) ([]Post, error) {
		if first.CompareAndSwap(false, true) {
			<-release
			return []Post{{ID: "stale", Title: "Stale", Published: true, CreatedAt: time.Now()}}, nil
		}
		return store.ListPublished(ctx)
	}

	v := newTestViewer(t, slow, ViewerConfig{})
	go func() { slowDone <- v.Refresh(context.Background()) }()

	// Wait for the slow fetch to claim its generation.
	for i := 0; !first.Load() && i < 100; i++ {
		time.Sleep(time.Millisecond)
	}

	if err := v.Refresh(context.Background()); err != nil {
		t.Fatalf("second refresh: %v", err)
	}
	close(release)
	if err := <-slowDone; err != nil {
		t.Fatalf("slow refresh: %v", err)
	}

	page := v.Page()
	if len(page.Posts) != 1 || page.Posts[0].TitleHTML != "Fresh" {
		t.Fatalf("stale fetch overwrote the newer result: %+v", page.Posts)
	}
}

func TestViewerRefreshClearsSessionState(t *testing.T) {
	store := NewMemStore()
	seedPosts(t, store, "Spring Gala", "Winter Ball")

	v := newTestViewer(t, store, ViewerConfig{})
	if err := v.Refresh(context.Background()); err != nil {
		t.Fatalf("refresh: %v", err)
	}
	v.SearchNow("spring")
	if err := v.Refresh(context.Background()); err != nil {
		t.Fatalf("second refresh: %v", err)
	}
	page := v.Page()
	if page.Query != "" || page.Total != 2 {
		t.Fatalf("refresh kept session state: Query = %q, Total = %d", page.Query, page.Total)
	}
}

func TestViewerEmpty(t *testing.T) {
	v := newTestViewer(t, NewMemStore(), ViewerConfig{})
	if err := v.Refresh(context.Background()); err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if state := v.Page().State; state != ViewerEmpty {
		t.Fatalf("state = %v, want ViewerEmpty", state)
	}
}

func TestViewerShouldLoadMore(t *testing.T) {
	store := NewMemStore()
	titles := make([]string, 8)
	for i := range titles {
		titles[i] = fmt.Sprintf("Post %d", i+1)
	}
	seedPosts(t, store, titles...)

	v := newTestViewer(t, store, ViewerConfig{ScrollThreshold: 200})
	if err := v.Refresh(context.Background()); err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if v.ShouldLoadMore(500) {
		t.Error("triggered outside the threshold")
	}
	if !v.ShouldLoadMore(150) {
		t.Error("did not trigger inside the threshold")
	}
	if _, err := v.LoadMore(context.Background()); err != nil {
		t.Fatalf("load more: %v", err)
	}
	if v.ShouldLoadMore(0) {
		t.Error("triggered with no pages remaining")
	}
}

func TestViewerToggleExpand(t *testing.T) {
	store := NewMemStore()
	long := strings.Repeat("word ", 100)
	p, err := store.Create(context.Background(), PostFields{Title: "Long", Body: long, Published: true})
	if err != nil {
		t.Fatal(err)
	}

	v := newTestViewer(t, store, ViewerConfig{})
	if err := v.Refresh(context.Background()); err != nil {
		t.Fatalf("refresh: %v", err)
	}

	page := v.Page()
	if !page.Posts[0].Truncated {
		t.Fatal("long post not truncated")
	}

	if scroll := v.ToggleExpand(p.ID); scroll {
		t.Error("expanding asked for a scroll-to-top")
	}
	page = v.Page()
	if !page.Posts[0].Expanded || page.Posts[0].Truncated {
		t.Fatalf("post not expanded: %+v", page.Posts[0])
	}

	if scroll := v.ToggleExpand(p.ID); !scroll {
		t.Error("collapsing did not ask for a scroll-to-top")
	}
	if v.Page().Posts[0].Expanded {
		t.Fatal("post still expanded after collapse")
	}
}

func TestTruncateAtWord(t *testing.T) {
	tests := []struct {
		name  string
		in    string
		limit int
		want  string
		cut   bool
	}{
		{"short untouched", "hello world", 200, "hello world", false},
		{"cuts at space", "one two three four", 9, "one two", true},
		{"exact limit", "12345", 5, "12345", false},
		{"single giant word", "aaaaaaaaaa", 5, "aaaaa", true},
		{"unicode", "héllo wörld again", 12, "héllo wörld", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, cut := truncateAtWord(tt.in, tt.limit)
			if got != tt.want || cut != tt.cut {
				t.Errorf("truncateAtWord(%q, %d) = (%q, %v), want (%q, %v)",
					tt.in, tt.limit, got, cut, tt.want, tt.cut)
			}
		})
	}
}

func TestHighlight(t *testing.T) {
	tests := []struct {
		name  string
		s     string
		query string
		want  string
	}{
		{"no query", "hello", "", "hello"},
		{"simple match", "Spring Gala", "spring", "<mark>Spring</mark> Gala"},
		{"escapes html", "<b>bold</b>", "", "&lt;b&gt;bold&lt;/b&gt;"},
		{"regex metachars literal", "cost (usd)", "(usd)", "cost <mark>(usd)</mark>"},
		{"no match", "Winter", "spring", "Winter"},
		{"query never matches inside entities", "A & B", "amp", "A &amp; B"},
		{"ampersand query matches raw text", "A & B", "&", "A <mark>&amp;</mark> B"},
		{"match inside escaped content", "<Spring>", "spring", "&lt;<mark>Spring</mark>&gt;"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := highlight(tt.s, tt.query); got != tt.want {
				t.Errorf("highlight(%q, %q) = %q, want %q", tt.s, tt.query, got, tt.want)
			}
		})
	}
}

func TestFormatBody(t *testing.T) {
	got := formatBody("First paragraph.\n\nSecond paragraph.", "")
	want := "<p>First paragraph.</p><p>Second paragraph.</p>"
	if got != want {
		t.Errorf("formatBody = %q, want %q", got, want)
	}
}
