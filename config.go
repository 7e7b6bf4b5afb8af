package magstand

// Config holds all configuration for a magstand engine instance.
type Config struct {
	Addr         string // Listen address (default ":8080")
	DatabasePath string // SQLite path (default "data/magazine.db")

	ContentAPIURL string // Content API base, e.g. https://site/wp-json/mag/v1
	SiteURL       string // Site root for auth/membership routes

	SessionSecret string // Required: cookie session encryption secret
	CookieSecure  bool   // Set true for HTTPS

	SyncLimit    int // Posts per sync batch (default 10)
	TeaserLength int // Teaser length in runes for gated posts (default 280)
}

func (c *Config) setDefaults() {
	if c.Addr == "" {
		c.Addr = ":8080"
	}
	if c.DatabasePath == "" {
		c.DatabasePath = "data/magazine.db"
	}
	if c.SyncLimit == 0 {
		c.SyncLimit = DefaultSyncLimit
	}
	if c.TeaserLength == 0 {
		c.TeaserLength = 280
	}
}

// Option configures additional App behavior.
type Option func(*App)

// WithSource replaces the default WordPress remote source, e.g. to sync
// from a different backend or a fake in tests.
func WithSource(src Source) Option {
	return func(a *App) {
		a.source = src
	}
}

// WithEntitlements replaces the default session manager as the entitlement
// resolver consulted by access gating.
func WithEntitlements(ent Entitlements) Option {
	return func(a *App) {
		a.entitlements = ent
	}
}

// WithCustomRoutes registers additional routes on the Echo instance.
// The callback receives the App before the server starts.
func WithCustomRoutes(fn func(*App)) Option {
	return func(a *App) {
		a.customRoutes = append(a.customRoutes, fn)
	}
}
