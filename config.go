package petalpress

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// SiteConfig holds all configuration for a petalpress site.
type SiteConfig struct {
	Name        string `yaml:"name"`        // site name (default "Portfolio")
	URL         string `yaml:"url"`         // canonical URL
	Description string `yaml:"description"` // description for the feed and meta tags
	Author      string `yaml:"author"`      // owner name

	Addr string `yaml:"addr"` // listen address (default ":3000")

	MongoURI       string        `yaml:"mongo_uri"`        // document store URI (default "mongodb://localhost:27017")
	Database       string        `yaml:"database"`         // database name (default "petalpress")
	Collection     string        `yaml:"collection"`       // post collection (default "posts")
	StoreReadyWait time.Duration `yaml:"store_ready_wait"` // ready-handshake bound (default 10s)

	InquiryDBPath string `yaml:"inquiry_db_path"` // contact inquiry SQLite path (default "data/inquiries.db")

	AdminPassword string `yaml:"admin_password"` // required: owner login password
	SessionSecret string `yaml:"session_secret"` // required: session encryption secret
	CookieSecure  bool   `yaml:"cookie_secure"`  // set true for HTTPS

	Viewer ViewerConfig `yaml:"viewer"`

	ImageBasePath string         `yaml:"image_base_path"` // asset prefix (default "Images/")
	ImagePatterns []ImagePattern `yaml:"image_patterns"`
	LazyMargin    int            `yaml:"lazy_margin"` // px before the viewport an image resolves (default 100)

	LogLevel string `yaml:"log_level"` // zerolog level (default "info")
}

func (c *SiteConfig) setDefaults() {
	if c.Name == "" {
		c.Name = "Portfolio"
	}
	if c.URL == "" {
		c.URL = "http://localhost:3000"
	}
	if c.Addr == "" {
		c.Addr = ":3000"
	}
	if c.MongoURI == "" {
		c.MongoURI = "mongodb://localhost:27017"
	}
	if c.Database == "" {
		c.Database = "petalpress"
	}
	if c.Collection == "" {
		c.Collection = "posts"
	}
	if c.StoreReadyWait == 0 {
		c.StoreReadyWait = 10 * time.Second
	}
	if c.InquiryDBPath == "" {
		c.InquiryDBPath = "data/inquiries.db"
	}
	if c.ImageBasePath == "" {
		c.ImageBasePath = "Images/"
	}
	if len(c.ImagePatterns) == 0 {
		c.ImagePatterns = []ImagePattern{
			{Prefix: "Gallery", Count: 6, Ext: "png"},
			{Prefix: "Portrait", Count: 4, Ext: "png"},
		}
	}
	if c.LazyMargin == 0 {
		c.LazyMargin = 100
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	c.Viewer.setDefaults()
}

// LoadConfig reads an optional YAML config file and applies environment
// overrides on top. A missing file is not an error; env vars and defaults
// still apply.
func LoadConfig(path string) (SiteConfig, error) {
	var cfg SiteConfig
	if path != "" {
		data, err := os.ReadFile(path)
		if err == nil {
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return cfg, fmt.Errorf("parse config %s: %w", path, err)
			}
		} else if !os.IsNotExist(err) {
			return cfg, fmt.Errorf("read config %s: %w", path, err)
		}
	}
	cfg.applyEnv()
	cfg.setDefaults()
	return cfg, nil
}

func (c *SiteConfig) applyEnv() {
	setStr := func(dst *string, key string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}
	setStr(&c.Name, "SITE_NAME")
	setStr(&c.Description, "SITE_DESCRIPTION")
	setStr(&c.Author, "SITE_AUTHOR")
	setStr(&c.Addr, "ADDR")
	setStr(&c.MongoURI, "MONGO_URI")
	setStr(&c.Database, "MONGO_DATABASE")
	setStr(&c.Collection, "MONGO_COLLECTION")
	setStr(&c.InquiryDBPath, "INQUIRY_DB_PATH")
	setStr(&c.AdminPassword, "ADMIN_PASSWORD")
	setStr(&c.SessionSecret, "ADMIN_SESSION_SECRET")
	setStr(&c.LogLevel, "LOG_LEVEL")
	if v := os.Getenv("SITE_URL"); v != "" {
		c.URL = strings.TrimSuffix(v, "/")
	}
	if strings.EqualFold(os.Getenv("COOKIE_SECURE"), "true") {
		c.CookieSecure = true
	}
}

// Option configures additional App behavior.
type Option func(*App)

// WithStore injects a PostStore, bypassing the MongoDB connection. Used by
// tests and storeless development runs.
func WithStore(store PostStore) Option {
	return func(a *App) {
		a.Store = store
	}
}

// WithNotifier replaces the default log-backed notification collaborator.
func WithNotifier(n Notifier) Option {
	return func(a *App) {
		a.notifier = n
	}
}

// WithRenderer replaces the default HTML renderer.
func WithRenderer(r Renderer) Option {
	return func(a *App) {
		a.renderer = r
	}
}

// WithStaticDir sets the directory for static assets (default "public").
func WithStaticDir(dir string) Option {
	return func(a *App) {
		a.staticDir = dir
	}
}

// WithCustomRoutes registers additional routes on the Echo instance before
// the server starts.
func WithCustomRoutes(fn func(*App)) Option {
	return func(a *App) {
		a.customRoutes = append(a.customRoutes, fn)
	}
}
