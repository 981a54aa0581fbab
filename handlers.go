package petalpress

import (
	"context"
	"errors"
	"fmt"
	"html"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/a-h/templ"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/mwren/petalpress/markdown"
)

const visitorCookie = "visitor_id"

// visitorID returns the visitor's session key, minting and setting the
// cookie on first contact. The key only selects a viewer from the pool; it
// carries no authentication.
func (a *App) visitorID(c echo.Context) string {
	if cookie, err := c.Cookie(visitorCookie); err == nil && cookie.Value != "" {
		return cookie.Value
	}
	id := uuid.NewString()
	c.SetCookie(&http.Cookie{
		Name:     visitorCookie,
		Value:    id,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Secure:   a.Config.CookieSecure,
		MaxAge:   int(viewerSessionTTL.Seconds()),
	})
	return id
}

func (a *App) viewer(c echo.Context) *Viewer {
	return a.pool.get(c.Request().Context(), a.visitorID(c))
}

func (a *App) handleHome(c echo.Context) error {
	v := a.viewer(c)
	applyQueryParam(c, v)
	return Render(c, a.pageShell(a.Config.Name, a.homePage(v.Page())))
}

// handleBlog serves the post list partial. A q parameter applies a search
// immediately, bypassing the debounce (used by full page loads with a
// query in the URL); an empty q clears any previous search.
func (a *App) handleBlog(c echo.Context) error {
	v := a.viewer(c)
	applyQueryParam(c, v)
	return Render(c, a.renderer.PostList(v.Page()))
}

// applyQueryParam applies ?q= when the parameter is present at all: an
// empty value means "search cleared", which must not leave the pooled
// viewer's previous query active.
func applyQueryParam(c echo.Context, v *Viewer) {
	if params := c.QueryParams(); params.Has("q") {
		v.SearchNow(params.Get("q"))
	}
}

// handlePost serves the permalink page for a single published post, the
// URL the feed and sitemap advertise.
func (a *App) handlePost(c echo.Context) error {
	post, err := a.Store.Get(c.Request().Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return echo.NewHTTPError(http.StatusNotFound)
		}
		return err
	}
	if !post.Published {
		return echo.NewHTTPError(http.StatusNotFound)
	}
	return Render(c, a.pageShell(post.Title, a.postPage(post)))
}

func (a *App) postPage(p Post) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		fmt.Fprintf(w, `<article class="blog-post" id="post-%s">`, html.EscapeString(p.ID))
		fmt.Fprintf(w, `<h2 class="blog-post-title">%s</h2>`, html.EscapeString(p.Title))
		fmt.Fprintf(w, `<time datetime="%s">%s</time>`,
			p.CreatedAt.Format(time.RFC3339), p.CreatedAt.Format("January 2, 2006"))
		if p.Image != "" {
			fmt.Fprintf(w, `<img class="blog-post-image" src="%s" alt="">`,
				html.EscapeString(a.Images.Path(p.Image)))
		}
		fmt.Fprintf(w, `<div class="blog-post-body">%s</div>`, formatBody(p.Body, ""))
		_, err := io.WriteString(w, `</article>`)
		return err
	})
}

// homePage is the search form plus the post list, wrapped so the site
// script can swap the list in place.
func (a *App) homePage(page ViewerPage) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		io.WriteString(w, `<form class="blog-search" method="get" action="/">`)
		fmt.Fprintf(w, `<input id="blog-search" type="search" name="q" placeholder="Search posts" value="%s">`,
			html.EscapeString(page.Query))
		io.WriteString(w, `</form>`)
		io.WriteString(w, `<section id="blog">`)
		if err := a.renderer.PostList(page).Render(ctx, w); err != nil {
			return err
		}
		_, err := io.WriteString(w, `</section>`)
		return err
	})
}

// handleLoadMore appends the next page. The remaining query parameter is
// the client-reported distance to the page bottom in pixels; when present,
// the load only happens inside the scroll threshold.
func (a *App) handleLoadMore(c echo.Context) error {
	v := a.viewer(c)
	if remaining := c.QueryParam("remaining"); remaining != "" {
		px, err := strconv.Atoi(remaining)
		if err != nil || !v.ShouldLoadMore(px) {
			return Render(c, a.renderer.PostList(v.Page()))
		}
	}
	if _, err := v.LoadMore(c.Request().Context()); err != nil {
		a.log.Warn().Err(err).Msg("load more failed")
	}
	return Render(c, a.renderer.PostList(v.Page()))
}

// handleQuery feeds a keystroke-level search change through the debounce.
// The response renders the current state; the debounced result arrives
// with the client's follow-up poll.
func (a *App) handleQuery(c echo.Context) error {
	v := a.viewer(c)
	v.SetQuery(c.FormValue("q"))
	return Render(c, a.renderer.PostList(v.Page()))
}

func (a *App) handleExpand(c echo.Context) error {
	v := a.viewer(c)
	scrollToTop := v.ToggleExpand(c.Param("id"))
	if scrollToTop {
		c.Response().Header().Set("X-Scroll-To", "post-"+c.Param("id"))
	}
	return Render(c, a.renderer.PostList(v.Page()))
}

// legalSlugs are the markdown documents servable under /legal/.
var legalSlugs = map[string]string{
	"privacy": "Privacy Policy",
	"terms":   "Terms of Service",
}

func (a *App) handleLegal(c echo.Context) error {
	slug := c.Param("slug")
	title, ok := legalSlugs[slug]
	if !ok {
		return echo.NewHTTPError(http.StatusNotFound)
	}
	raw, err := os.ReadFile(filepath.Join("legal", slug+".md"))
	if err != nil {
		a.log.Error().Err(err).Str("slug", slug).Msg("legal document missing")
		return echo.NewHTTPError(http.StatusNotFound)
	}
	return Render(c, a.pageShell(title, markdown.Markdown(string(raw))))
}

func (a *App) handleContact(c echo.Context) error {
	inq := Inquiry{
		Name:        c.FormValue("name"),
		Email:       c.FormValue("email"),
		InquiryType: c.FormValue("inquiry_type"),
		Message:     c.FormValue("message"),
	}
	if errs := inq.Validate(); len(errs) > 0 {
		return RenderStatus(c, http.StatusBadRequest, contactResult(false, errs))
	}
	if _, err := a.Inquiries.Save(inq); err != nil {
		a.log.Error().Err(err).Msg("saving inquiry")
		return RenderStatus(c, http.StatusInternalServerError,
			contactResult(false, []string{"Something went wrong. Please try again later."}))
	}
	a.log.Info().Str("type", inq.InquiryType).Msg("inquiry received")
	return Render(c, contactResult(true, nil))
}

func contactResult(ok bool, errs []string) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		if ok {
			_, err := io.WriteString(w, `<p class="contact-result success">Thank you! Your message has been sent.</p>`)
			return err
		}
		io.WriteString(w, `<ul class="contact-result errors">`)
		for _, e := range errs {
			fmt.Fprintf(w, `<li>%s</li>`, html.EscapeString(e))
		}
		_, err := io.WriteString(w, `</ul>`)
		return err
	})
}

func (a *App) handleFavicon(c echo.Context) error {
	return c.File(filepath.Join(a.staticDir, "favicon.svg"))
}

func (a *App) handleRobots(c echo.Context) error {
	var b strings.Builder
	b.WriteString("User-agent: *\n")
	b.WriteString("Disallow: /admin/\n")
	b.WriteString("Sitemap: " + strings.TrimSuffix(a.Config.URL, "/") + "/sitemap.xml\n")
	return c.String(http.StatusOK, b.String())
}

// pageShell wraps a body component in the shared document frame.
func (a *App) pageShell(title string, body templ.Component) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		fmt.Fprintf(w, `<!DOCTYPE html><html lang="en"><head><meta charset="utf-8">`)
		fmt.Fprintf(w, `<meta name="viewport" content="width=device-width, initial-scale=1">`)
		fmt.Fprintf(w, `<title>%s</title>`, html.EscapeString(title))
		if a.Config.Description != "" {
			fmt.Fprintf(w, `<meta name="description" content="%s">`, html.EscapeString(a.Config.Description))
		}
		io.WriteString(w, `<link rel="stylesheet" href="/public/styles.css">`)
		io.WriteString(w, `<link rel="icon" href="/favicon.svg" type="image/svg+xml">`)
		io.WriteString(w, `<script src="/public/site.js" defer></script>`)
		io.WriteString(w, `</head><body>`)
		fmt.Fprintf(w, `<header class="site-header"><a href="/">%s</a></header>`, html.EscapeString(a.Config.Name))
		io.WriteString(w, `<main id="content">`)
		if err := body.Render(ctx, w); err != nil {
			return err
		}
		io.WriteString(w, `</main>`)
		fmt.Fprintf(w, `<footer class="site-footer"><a href="/legal/privacy/">Privacy</a> · <a href="/legal/terms/">Terms</a></footer>`)
		_, err := io.WriteString(w, `</body></html>`)
		return err
	})
}
