package petalpress

import (
	"context"
	"strings"
	"testing"
	"time"
)

func renderPage(t *testing.T, r Renderer, page ViewerPage) string {
	t.Helper()
	var b strings.Builder
	if err := r.PostList(page).Render(context.Background(), &b); err != nil {
		t.Fatalf("render: %v", err)
	}
	return b.String()
}

func testRenderer() *htmlRenderer {
	set := NewImageSet("Images/", []ImagePattern{{Prefix: "Gallery", Count: 6, Ext: "png"}})
	return newHTMLRenderer(NewImageLoader(set, 100))
}

func TestRenderStates(t *testing.T) {
	r := testRenderer()
	tests := []struct {
		name  string
		state ViewerState
		want  string
	}{
		{"loading", ViewerLoading, "Loading posts"},
		{"empty", ViewerEmpty, "No blog posts yet"},
		{"forbidden", ViewerForbidden, "still being set up"},
		{"unavailable", ViewerUnavailable, "unavailable right now"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := renderPage(t, r, ViewerPage{State: tt.state})
			if !strings.Contains(out, tt.want) {
				t.Errorf("output %q lacks %q", out, tt.want)
			}
		})
	}
}

func TestRenderPostList(t *testing.T) {
	r := testRenderer()
	page := ViewerPage{
		State: ViewerReady,
		Posts: []PostView{
			{ID: "a1", TitleHTML: "First", BodyHTML: "<p>body</p>", Truncated: true, CreatedAt: time.Now()},
			{ID: "b2", TitleHTML: "Second", BodyHTML: "<p>body</p>", Expanded: true, CreatedAt: time.Now()},
		},
		HasMore: true,
		Total:   2,
	}
	out := renderPage(t, r, page)

	if !strings.Contains(out, `id="post-a1"`) || !strings.Contains(out, `id="post-b2"`) {
		t.Errorf("missing post anchors: %q", out)
	}
	if !strings.Contains(out, "Read more") {
		t.Error("truncated post lacks a read-more control")
	}
	if !strings.Contains(out, `data-url="/blog/post/a1/expand/"`) {
		t.Error("read-more control lacks its endpoint hook")
	}
	if !strings.Contains(out, "Show less") {
		t.Error("expanded post lacks a show-less control")
	}
	if !strings.Contains(out, `data-url="/blog/more/"`) {
		t.Error("HasMore page lacks a load-more control with its endpoint hook")
	}
}

func TestRenderNoLoadMoreAtEnd(t *testing.T) {
	r := testRenderer()
	out := renderPage(t, r, ViewerPage{
		State: ViewerReady,
		Posts: []PostView{{ID: "a1", TitleHTML: "Only", BodyHTML: "<p>b</p>"}},
	})
	if strings.Contains(out, "blog-load-more") {
		t.Errorf("final page offers load-more: %q", out)
	}
}

func TestRenderSearchSummary(t *testing.T) {
	r := testRenderer()
	out := renderPage(t, r, ViewerPage{
		State: ViewerReady,
		Query: `<q>`,
		Total: 1,
		Posts: []PostView{{ID: "a1", TitleHTML: "Hit", BodyHTML: "<p>b</p>"}},
	})
	if !strings.Contains(out, "1 result(s)") {
		t.Errorf("missing search summary: %q", out)
	}
	if strings.Contains(out, "<q>") {
		t.Errorf("query not escaped in summary: %q", out)
	}
}

func TestRenderLazyImages(t *testing.T) {
	r := testRenderer()
	posts := make([]PostView, 6)
	for i := range posts {
		posts[i] = PostView{
			ID:        string(rune('a' + i)),
			TitleHTML: "Post",
			BodyHTML:  "<p>b</p>",
			Image:     "Gallery" + string(rune('1'+i)) + ".png",
		}
	}
	out := renderPage(t, r, ViewerPage{State: ViewerReady, Posts: posts, Total: 6})

	// The first screenful resolves eagerly; later rows defer to data-src.
	if !strings.Contains(out, `src="Images/Gallery1.png"`) {
		t.Errorf("first image not resolved: %q", out)
	}
	if !strings.Contains(out, `data-src="Gallery6.png"`) {
		t.Errorf("distant image not deferred: %q", out)
	}
}
