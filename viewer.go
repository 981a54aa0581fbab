package petalpress

import (
	"context"
	"errors"
	"fmt"
	"html"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// ViewerState describes what the display layer should show in place of, or
// around, the post list.
type ViewerState int

const (
	// ViewerLoading: no fetch has completed yet.
	ViewerLoading ViewerState = iota
	// ViewerReady: posts are available for display.
	ViewerReady
	// ViewerEmpty: the fetch succeeded and there are no published posts.
	ViewerEmpty
	// ViewerUnavailable: the fetch failed after retries; the visitor must
	// reload to try again.
	ViewerUnavailable
	// ViewerForbidden: the store rejected the read. Shown as a distinct
	// "service being set up" message and never retried.
	ViewerForbidden
)

// ViewerConfig tunes the public viewer. Zero values fall back to the
// defaults applied by NewViewer.
type ViewerConfig struct {
	PageSize         int           `yaml:"page_size"`          // posts appended per page (default 6)
	SearchDebounce   time.Duration `yaml:"search_debounce"`    // quiet period before a query applies (default 300ms)
	SearchMinLength  int           `yaml:"search_min_length"`  // shorter queries leave the full set active (default 2)
	SearchMaxResults int           `yaml:"search_max_results"` // cap on the search result set (default 20)
	PreviewLength    int           `yaml:"preview_length"`     // preview character budget (default 200)
	LoadRetries      int           `yaml:"load_retries"`       // transient-failure retries on fetch (default 3)
	RetryBaseDelay   time.Duration `yaml:"retry_base_delay"`   // linear backoff unit (default 1s)
	ScrollThreshold  int           `yaml:"scroll_threshold"`   // px from page bottom that arms load-more (default 200)
}

func (c *ViewerConfig) setDefaults() {
	if c.PageSize == 0 {
		c.PageSize = 6
	}
	if c.SearchDebounce == 0 {
		c.SearchDebounce = 300 * time.Millisecond
	}
	if c.SearchMinLength == 0 {
		c.SearchMinLength = 2
	}
	if c.SearchMaxResults == 0 {
		c.SearchMaxResults = 20
	}
	if c.PreviewLength == 0 {
		c.PreviewLength = 200
	}
	if c.LoadRetries == 0 {
		c.LoadRetries = 3
	}
	if c.RetryBaseDelay == 0 {
		c.RetryBaseDelay = time.Second
	}
	if c.ScrollThreshold == 0 {
		c.ScrollThreshold = 200
	}
}

// PostView is one displayable post: escaped, highlighted, truncated.
type PostView struct {
	ID        string
	TitleHTML string // escaped title with <mark> around query matches
	BodyHTML  string // escaped preview or full body, highlighted
	Expanded  bool   // full body shown instead of the preview
	Truncated bool   // a preview exists, so a read-more affordance applies
	Image     string // image filename; resolved lazily by the ImageLoader
	CreatedAt time.Time
}

// ViewerPage is the snapshot handed to the rendering collaborator.
type ViewerPage struct {
	State   ViewerState
	Query   string // active search term ("" when below the minimum length)
	Posts   []PostView
	HasMore bool
	Total   int // size of the active sequence (search results or full set)
}

// Viewer owns the public blog view: one fetch of the published set, then
// search and pagination composed over it in memory. All methods are safe
// for concurrent use; the post list is written only by the refresh path.
type Viewer struct {
	store PostStore
	cfg   ViewerConfig
	log   zerolog.Logger

	mu         sync.Mutex
	state      ViewerState
	posts      []Post // full published set, store-ordered newest first
	query      string
	pending    string // typed query waiting out the debounce
	page       int    // pages currently shown (1-based)
	hasMore    bool
	loading    bool   // at most one page load in flight
	generation uint64 // discards fetches superseded by a newer refresh
	expanded   map[string]bool
	debounce   *time.Timer
}

func NewViewer(store PostStore, cfg ViewerConfig, log zerolog.Logger) *Viewer {
	cfg.setDefaults()
	return &Viewer{
		store:    store,
		cfg:      cfg,
		log:      log,
		state:    ViewerLoading,
		page:     1,
		expanded: make(map[string]bool),
	}
}

// Refresh discards all session state and re-fetches the published set.
// Transient failures are retried with linearly increasing backoff before
// the unavailable state is surfaced; permission failures are terminal
// immediately. A refresh that loses the race to a newer refresh discards
// its result.
func (v *Viewer) Refresh(ctx context.Context) error {
	v.mu.Lock()
	v.generation++
	gen := v.generation
	v.loading = true
	v.mu.Unlock()

	posts, err := v.fetch(ctx)

	v.mu.Lock()
	defer v.mu.Unlock()
	if gen != v.generation {
		// A newer refresh started while this one was in flight.
		v.log.Debug().Uint64("generation", gen).Msg("discarding stale fetch")
		return nil
	}
	v.loading = false
	if err != nil {
		if errors.Is(err, ErrPermissionDenied) {
			v.state = ViewerForbidden
		} else {
			v.state = ViewerUnavailable
		}
		v.posts = nil
		v.log.Error().Err(err).Msg("blog fetch failed")
		return err
	}

	v.posts = posts
	v.query = ""
	v.pending = ""
	v.page = 1
	v.expanded = make(map[string]bool)
	if len(posts) == 0 {
		v.state = ViewerEmpty
	} else {
		v.state = ViewerReady
	}
	v.recomputeHasMore()
	return nil
}

// fetch pulls the published set with the retry policy. Runs without the
// lock so a slow store never blocks readers of the current state.
func (v *Viewer) fetch(ctx context.Context) ([]Post, error) {
	var lastErr error
	for attempt := 0; ; attempt++ {
		posts, err := v.store.ListPublished(ctx)
		if err == nil {
			return posts, nil
		}
		if errors.Is(err, ErrPermissionDenied) {
			return nil, err
		}
		lastErr = err
		if attempt >= v.cfg.LoadRetries {
			break
		}
		delay := time.Duration(attempt+1) * v.cfg.RetryBaseDelay
		v.log.Warn().Err(err).Int("attempt", attempt+1).Dur("backoff", delay).Msg("retrying blog fetch")
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, fmt.Errorf("%w: %v", ErrUnavailable, ctx.Err())
		}
	}
	return nil, lastErr
}

// SetQuery feeds a keystroke-level query change into the debounce timer.
// Only the last value within a quiet period is evaluated.
func (v *Viewer) SetQuery(q string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.pending = q
	if v.debounce != nil {
		v.debounce.Stop()
	}
	v.debounce = time.AfterFunc(v.cfg.SearchDebounce, func() {
		v.mu.Lock()
		defer v.mu.Unlock()
		v.applyQueryLocked(v.pending)
	})
}

// SearchNow applies a query immediately, canceling any pending debounce.
func (v *Viewer) SearchNow(q string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.debounce != nil {
		v.debounce.Stop()
	}
	v.pending = q
	v.applyQueryLocked(q)
}

func (v *Viewer) applyQueryLocked(q string) {
	q = strings.TrimSpace(q)
	if len([]rune(q)) < v.cfg.SearchMinLength {
		q = ""
	}
	if q == v.query {
		return
	}
	v.query = q
	v.page = 1
	v.recomputeHasMore()
}

// LoadMore advances pagination by one page. It is a no-op while another
// load is in flight or when no further pages remain; the bool reports
// whether anything changed. A failed backing load re-arms the control.
func (v *Viewer) LoadMore(ctx context.Context) (bool, error) {
	v.mu.Lock()
	if v.loading {
		v.mu.Unlock()
		return false, nil
	}
	if v.state == ViewerUnavailable {
		v.mu.Unlock()
		// The initial load never landed; load-more retries it rather than
		// staying stuck. Refresh clears the loading flag on every path.
		return false, v.Refresh(ctx)
	}
	if !v.hasMore {
		v.mu.Unlock()
		return false, nil
	}
	v.page++
	v.recomputeHasMore()
	v.mu.Unlock()
	return true, nil
}

// ShouldLoadMore reports whether scroll proximity to the page bottom should
// trigger an implicit LoadMore.
func (v *Viewer) ShouldLoadMore(remainingPx int) bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.hasMore && !v.loading && remainingPx <= v.cfg.ScrollThreshold
}

// ToggleExpand flips a post between preview and full body. Collapsing is
// the only way back to the preview; the returned flag tells the display
// layer to scroll to the post top for continuity.
func (v *Viewer) ToggleExpand(id string) (scrollToTop bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.expanded[id] {
		delete(v.expanded, id)
		return true
	}
	v.expanded[id] = true
	return false
}

// Page snapshots the current view for the rendering collaborator.
func (v *Viewer) Page() ViewerPage {
	v.mu.Lock()
	defer v.mu.Unlock()

	active := v.activeLocked()
	shown := v.page * v.cfg.PageSize
	if shown > len(active) {
		shown = len(active)
	}

	page := ViewerPage{
		State:   v.state,
		Query:   v.query,
		HasMore: v.hasMore,
		Total:   len(active),
		Posts:   make([]PostView, 0, shown),
	}
	for _, p := range active[:shown] {
		page.Posts = append(page.Posts, v.viewLocked(p))
	}
	return page
}

// activeLocked returns the sequence pagination operates over: the capped
// search result set when a query is active, the full set otherwise.
func (v *Viewer) activeLocked() []Post {
	if v.query == "" {
		return v.posts
	}
	needle := strings.ToLower(v.query)
	var matched []Post
	for _, p := range v.posts {
		if strings.Contains(strings.ToLower(p.Title), needle) ||
			strings.Contains(strings.ToLower(p.Body), needle) {
			matched = append(matched, p)
			if len(matched) == v.cfg.SearchMaxResults {
				break
			}
		}
	}
	return matched
}

func (v *Viewer) recomputeHasMore() {
	v.hasMore = len(v.activeLocked()) > v.page*v.cfg.PageSize
}

func (v *Viewer) viewLocked(p Post) PostView {
	body := p.Body
	truncated := false
	if !v.expanded[p.ID] {
		if cut, ok := truncateAtWord(body, v.cfg.PreviewLength); ok {
			body = cut
			truncated = true
		}
	}
	return PostView{
		ID:        p.ID,
		TitleHTML: highlight(p.Title, v.query),
		BodyHTML:  formatBody(body, v.query),
		Expanded:  v.expanded[p.ID],
		Truncated: truncated,
		Image:     p.Image,
		CreatedAt: p.CreatedAt,
	}
}

// truncateAtWord cuts s to at most limit characters, backing up to the
// nearest preceding whitespace so no word is split. The bool reports
// whether anything was cut.
func truncateAtWord(s string, limit int) (string, bool) {
	runes := []rune(s)
	if len(runes) <= limit {
		return s, false
	}
	cut := limit
	for cut > 0 && !isSpace(runes[cut]) {
		cut--
	}
	if cut == 0 {
		cut = limit // one giant word; cut mid-word rather than show nothing
	}
	return strings.TrimRight(string(runes[:cut]), " \t\n"), true
}

func isSpace(r rune) bool {
	return r == ' ' || r == '\t' || r == '\n' || r == '\r'
}

// highlight wraps case-insensitive matches of query in <mark> and escapes
// everything for HTML. Matching runs over the raw text, never the escaped
// form, so a query like "amp" cannot land inside an entity; regex
// metacharacters in the query are treated literally.
func highlight(s, query string) string {
	if query == "" {
		return html.EscapeString(s)
	}
	pattern, err := regexp.Compile("(?i)" + regexp.QuoteMeta(query))
	if err != nil {
		return html.EscapeString(s)
	}
	var b strings.Builder
	last := 0
	for _, m := range pattern.FindAllStringIndex(s, -1) {
		b.WriteString(html.EscapeString(s[last:m[0]]))
		b.WriteString("<mark>")
		b.WriteString(html.EscapeString(s[m[0]:m[1]]))
		b.WriteString("</mark>")
		last = m[1]
	}
	b.WriteString(html.EscapeString(s[last:]))
	return b.String()
}

// formatBody renders body text as highlighted paragraphs, splitting on
// blank lines the way the source text uses them.
func formatBody(body, query string) string {
	var b strings.Builder
	for _, para := range strings.Split(body, "\n\n") {
		para = strings.TrimSpace(para)
		if para == "" {
			continue
		}
		b.WriteString("<p>")
		b.WriteString(highlight(para, query))
		b.WriteString("</p>")
	}
	return b.String()
}
