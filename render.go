package petalpress

import (
	"context"
	"fmt"
	"html"
	"io"
	"net/http"

	"github.com/a-h/templ"
	"github.com/labstack/echo/v4"
)

// Renderer is the rendering collaborator: it turns a viewer page snapshot
// into a displayable list.
type Renderer interface {
	PostList(page ViewerPage) templ.Component
}

// htmlRenderer is the default Renderer. Post bodies and titles arrive
// pre-escaped and pre-highlighted from the viewer; everything else is
// escaped here.
type htmlRenderer struct {
	images *ImageLoader
}

func newHTMLRenderer(images *ImageLoader) *htmlRenderer {
	return &htmlRenderer{images: images}
}

func (r *htmlRenderer) PostList(page ViewerPage) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		switch page.State {
		case ViewerLoading:
			_, err := io.WriteString(w, `<p class="blog-status">Loading posts…</p>`)
			return err
		case ViewerEmpty:
			_, err := io.WriteString(w, `<p class="blog-status">No blog posts yet.</p>`)
			return err
		case ViewerForbidden:
			_, err := io.WriteString(w, `<p class="blog-status">The blog is still being set up. Check back soon!</p>`)
			return err
		case ViewerUnavailable:
			_, err := io.WriteString(w, `<p class="blog-status">Posts are unavailable right now. Please try again later.</p>`)
			return err
		}

		if page.Query != "" {
			fmt.Fprintf(w, `<p class="blog-search-summary">%d result(s) for &quot;%s&quot;</p>`,
				page.Total, html.EscapeString(page.Query))
		}
		io.WriteString(w, `<div class="blog-list">`)
		for i, p := range page.Posts {
			if err := r.writePost(w, p, i); err != nil {
				return err
			}
		}
		io.WriteString(w, `</div>`)
		if page.HasMore {
			io.WriteString(w, `<button class="blog-load-more" data-url="/blog/more/">Load more</button>`)
		}
		return nil
	})
}

// postRowHeight approximates where a post sits on the page so the lazy
// loader can compare it against the viewport. Server-rendered pages have
// no real scroll position; the first screenful resolves eagerly and the
// rest defer to data-src until the client reports proximity.
const (
	postRowHeight   = 400
	initialViewport = postRowHeight * 2
)

func (r *htmlRenderer) writePost(w io.Writer, p PostView, index int) error {
	fmt.Fprintf(w, `<article class="blog-post" id="post-%s">`, html.EscapeString(p.ID))
	fmt.Fprintf(w, `<h3 class="blog-post-title">%s</h3>`, p.TitleHTML)
	if p.Image != "" {
		src := r.images.Source(p.Image, index*postRowHeight, initialViewport)
		if src != "" {
			fmt.Fprintf(w, `<img class="blog-post-image" src="%s" alt="">`, html.EscapeString(src))
		} else {
			fmt.Fprintf(w, `<img class="blog-post-image" data-src="%s" alt="">`, html.EscapeString(p.Image))
		}
	}
	fmt.Fprintf(w, `<div class="blog-post-body">%s</div>`, p.BodyHTML)
	if p.Truncated {
		fmt.Fprintf(w, `<button class="blog-read-more" data-url="/blog/post/%s/expand/">Read more</button>`, html.EscapeString(p.ID))
	} else if p.Expanded {
		fmt.Fprintf(w, `<button class="blog-read-more" data-url="/blog/post/%s/expand/">Show less</button>`, html.EscapeString(p.ID))
	}
	_, err := io.WriteString(w, `</article>`)
	return err
}

// Render writes a templ component as an HTTP 200 HTML response.
func Render(c echo.Context, cmp templ.Component) error {
	return RenderStatus(c, http.StatusOK, cmp)
}

// RenderStatus writes a templ component with a specific HTTP status code.
func RenderStatus(c echo.Context, code int, cmp templ.Component) error {
	c.Response().Header().Set(echo.HeaderContentType, echo.MIMETextHTMLCharsetUTF8)
	c.Response().WriteHeader(code)
	return cmp.Render(c.Request().Context(), c.Response().Writer)
}
