package petalpress

import (
	"encoding/xml"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/gorilla/feeds"
	"github.com/labstack/echo/v4"
)

// buildFeed converts the published set into an RSS feed.
func (a *App) buildFeed(posts []Post) *feeds.Feed {
	feed := &feeds.Feed{
		Title:       a.Config.Name,
		Link:        &feeds.Link{Href: a.Config.URL},
		Description: a.Config.Description,
		Created:     time.Now(),
	}
	if a.Config.Author != "" {
		feed.Author = &feeds.Author{Name: a.Config.Author}
	}
	for _, p := range posts {
		postURL := BuildURL(a.Config.URL, "blog", p.ID)
		feed.Items = append(feed.Items, &feeds.Item{
			Id:          postURL,
			Title:       p.Title,
			Link:        &feeds.Link{Href: postURL},
			Description: previewText(p.Body),
			Created:     p.CreatedAt,
			Updated:     p.UpdatedAt,
		})
	}
	return feed
}

// previewText is the plain-text feed summary: the first paragraph.
func previewText(body string) string {
	para, _, _ := strings.Cut(strings.TrimSpace(body), "\n\n")
	return para
}

func (a *App) handleFeed(c echo.Context) error {
	posts, err := a.Store.ListPublished(c.Request().Context())
	if err != nil {
		return err
	}
	rss, err := a.buildFeed(posts).ToRss()
	if err != nil {
		return err
	}
	return c.Blob(http.StatusOK, "application/rss+xml; charset=utf-8", []byte(rss))
}

// --- Sitemap ---

type sitemapURLSet struct {
	XMLName xml.Name     `xml:"urlset"`
	XMLNS   string       `xml:"xmlns,attr"`
	URLs    []sitemapURL `xml:"url"`
}

type sitemapURL struct {
	Loc     string `xml:"loc"`
	LastMod string `xml:"lastmod,omitempty"`
}

func (a *App) handleSitemap(c echo.Context) error {
	posts, err := a.Store.ListPublished(c.Request().Context())
	if err != nil {
		return err
	}
	base := a.Config.URL
	urls := []sitemapURL{
		{Loc: BuildURL(base)},
		{Loc: BuildURL(base, "legal", "privacy")},
		{Loc: BuildURL(base, "legal", "terms")},
	}
	for _, p := range posts {
		urls = append(urls, sitemapURL{
			Loc:     BuildURL(base, "blog", p.ID),
			LastMod: p.UpdatedAt.Format("2006-01-02"),
		})
	}
	sitemap := sitemapURLSet{
		XMLNS: "http://www.sitemaps.org/schemas/sitemap/0.9",
		URLs:  urls,
	}
	c.Response().Header().Set(echo.HeaderContentType, "application/xml; charset=utf-8")
	c.Response().WriteHeader(http.StatusOK)
	c.Response().Write([]byte(xml.Header))
	return xml.NewEncoder(c.Response()).Encode(sitemap)
}

// BuildURL joins a base URL with path segments, ensuring a trailing slash.
func BuildURL(base string, pathSegments ...string) string {
	u, err := url.Parse(base)
	if err != nil {
		return base
	}
	u.Path = path.Join(u.Path, path.Join(pathSegments...))
	if len(pathSegments) > 0 && !strings.HasSuffix(u.Path, "/") {
		u.Path += "/"
	}
	return u.String()
}
