// Package magstand is the content cache and synchronization engine behind a
// magazine-reading app. It mirrors posts from a remote WordPress-style
// content API into a local SQLite store, assigns access tiers at ingestion,
// preserves user-owned state (the saved flag) across syncs, and serves the
// read queries and access gating the app's screens are built on.
package magstand

import (
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
)

// App is the central magstand application. It wires together the store, the
// sync pipeline, the session/entitlement resolver and the HTTP surface.
type App struct {
	Config   Config
	Echo     *echo.Echo
	Store    *Store
	Syncer   *Syncer
	Gate     *AccessGate
	Sessions *SessionManager

	source       Source
	entitlements Entitlements
	settings     *SettingsClient
	loginLimiter *LoginLimiter
	customRoutes []func(*App)
}

// New creates a magstand App with the given configuration. Nothing touches
// the disk or the network until Start (or init) runs.
func New(cfg Config, opts ...Option) *App {
	cfg.setDefaults()

	a := &App{
		Config: cfg,
		Echo:   echo.New(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// init opens the store and wires the pipeline. Store failure is the one
// blocking failure mode: without it the cache cannot function at all.
func (a *App) init() error {
	if a.Config.SessionSecret == "" {
		return fmt.Errorf("magstand: SessionSecret is required")
	}

	store, err := NewStore(a.Config.DatabasePath)
	if err != nil {
		return fmt.Errorf("magstand: init store: %w", err)
	}
	a.Store = store

	if a.source == nil {
		a.source = NewWordPressSource(a.Config.ContentAPIURL)
	}
	a.Syncer = NewSyncer(a.Store, a.source)

	if a.entitlements == nil {
		a.Sessions = NewSessionManager(NewWordPressAuth(a.Config.SiteURL))
		a.entitlements = a.Sessions
	}
	a.Gate = NewAccessGate(a.Store, a.entitlements)

	if a.Config.ContentAPIURL != "" {
		a.settings = NewSettingsClient(a.Config.ContentAPIURL)
	}
	a.loginLimiter = NewLoginLimiter(5, time.Minute)

	a.setupMiddleware()
	a.setupRoutes()
	for _, fn := range a.customRoutes {
		fn(a)
	}
	return nil
}

// Start initializes the engine and serves the HTTP API until shutdown.
func (a *App) Start() error {
	if err := a.init(); err != nil {
		return err
	}
	if err := a.Echo.Start(a.Config.Addr); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Close releases the store and background workers. Call when shutting down.
func (a *App) Close() error {
	if a.loginLimiter != nil {
		a.loginLimiter.Stop()
	}
	if a.Store != nil {
		return a.Store.Close()
	}
	return nil
}
