// Package petalpress is a small portfolio-site engine built with Go and
// Echo. It serves a public blog viewer with search, incremental
// pagination, and lazy images over a remote document store, plus an
// owner-only authoring workflow, a contact form, and legal pages.
package petalpress

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
)

// viewerSessionTTL bounds how long an idle visitor keeps their search and
// pagination state.
const viewerSessionTTL = 30 * time.Minute

// App is the central petalpress application. It wires together the post
// store, per-visitor viewers, the authoring workflow, and the HTTP layer.
// Every collaborator is constructed once here and passed by reference; no
// component reaches for ambient globals.
type App struct {
	Config    SiteConfig
	Echo      *echo.Echo
	Store     PostStore
	Workflow  *Workflow
	Images    *ImageSet
	Inquiries *InquiryStore

	log          zerolog.Logger
	pool         *viewerPool
	imageLoader  *ImageLoader
	renderer     Renderer
	notifier     Notifier
	loginLimiter *LoginLimiter
	customRoutes []func(*App)
	staticDir    string
}

// New creates a petalpress App with the given configuration.
func New(cfg SiteConfig, opts ...Option) *App {
	cfg.setDefaults()

	a := &App{
		Config:    cfg,
		Echo:      echo.New(),
		log:       NewLogger(cfg.LogLevel),
		staticDir: "public",
	}

	for _, opt := range opts {
		opt(a)
	}

	return a
}

// Start initializes the store, collaborators, middleware, and routes, then
// starts the server.
func (a *App) Start() error {
	if err := a.init(); err != nil {
		return err
	}
	if err := a.Echo.Start(a.Config.Addr); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (a *App) init() error {
	if a.Config.AdminPassword == "" {
		return fmt.Errorf("petalpress: AdminPassword is required")
	}
	if a.Config.SessionSecret == "" {
		return fmt.Errorf("petalpress: SessionSecret is required")
	}

	ctx := context.Background()

	if a.Store == nil {
		store, err := NewMongoStore(ctx, a.Config.MongoURI, a.Config.Database, a.Config.Collection)
		if err != nil {
			return fmt.Errorf("petalpress: init store: %w", err)
		}
		a.Store = store
	}

	// Explicit readiness handshake: wait once, bounded, and fail startup
	// with a named error instead of polling forever.
	readyCtx, cancel := context.WithTimeout(ctx, a.Config.StoreReadyWait)
	defer cancel()
	if err := a.Store.Ready(readyCtx); err != nil {
		return fmt.Errorf("petalpress: store not ready within %s: %w", a.Config.StoreReadyWait, err)
	}
	a.log.Info().Str("collection", a.Config.Collection).Msg("post store ready")

	a.Images = NewImageSet(a.Config.ImageBasePath, a.Config.ImagePatterns)
	a.imageLoader = NewImageLoader(a.Images, a.Config.LazyMargin)
	if a.renderer == nil {
		a.renderer = newHTMLRenderer(a.imageLoader)
	}
	if a.notifier == nil {
		a.notifier = newLogNotifier(a.log)
	}

	a.pool = newViewerPool(a.Store, a.Config.Viewer, viewerSessionTTL, a.log)

	a.Workflow = NewWorkflow(
		a.Store,
		a.notifier,
		ContextConfirmer(),
		a.Images,
		func() { a.pool.refreshAll(context.Background()) },
		a.log,
	)

	inquiries, err := NewInquiryStore(a.Config.InquiryDBPath)
	if err != nil {
		return fmt.Errorf("petalpress: init inquiry store: %w", err)
	}
	a.Inquiries = inquiries

	a.loginLimiter = NewLoginLimiter(5, time.Minute)

	a.setupMiddleware()
	a.setupRoutes()

	for _, fn := range a.customRoutes {
		fn(a)
	}
	return nil
}

func (a *App) setupRoutes() {
	e := a.Echo

	e.Static("/public", a.staticDir)
	e.GET("/favicon.svg", a.handleFavicon)
	e.GET("/robots.txt", a.handleRobots)

	// Public routes
	e.GET("/sitemap.xml", a.handleSitemap)
	e.GET("/feed.xml", a.handleFeed)
	e.GET("/", a.handleHome)
	e.GET("/blog/", a.handleBlog)
	e.GET("/blog/:id/", a.handlePost)
	e.POST("/blog/more/", a.handleLoadMore)
	e.POST("/blog/query/", a.handleQuery)
	e.POST("/blog/post/:id/expand/", a.handleExpand)
	e.GET("/legal/:slug/", a.handleLegal)
	e.POST("/contact/", a.handleContact)

	// Admin routes
	e.GET("/admin/", a.handleAdmin)
	e.POST("/admin/login/", a.handleAdminLogin)
	e.POST("/admin/logout/", handleAdminLogout)
	e.GET("/admin/post/:id/", a.handleAdminPost)
	e.POST("/admin/save/", a.handleAdminSave)
	e.POST("/admin/publish/:id/", a.handleAdminPublish)
	e.DELETE("/admin/post/:id/", a.handleAdminDelete)
	e.GET("/admin/images/", a.handleAdminImages)
	e.POST("/admin/images/stage/", a.handleImageStage)
	e.GET("/admin/inquiries/", a.handleAdminInquiries)
}

// Close cleans up resources. Call this when the app is shutting down.
func (a *App) Close() error {
	if a.Store != nil {
		if err := a.Store.Close(context.Background()); err != nil {
			a.log.Warn().Err(err).Msg("closing post store")
		}
	}
	if a.Inquiries != nil {
		return a.Inquiries.Close()
	}
	return nil
}
