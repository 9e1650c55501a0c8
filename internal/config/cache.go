package config

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/quickshelf/api/internal/logging"
)

// ErrNotInitialized is returned by Current before the first Load. Serving an
// empty configuration would mask a startup bug, so this fails fast instead.
var ErrNotInitialized = errors.New("configuration cache not initialized")

// ErrSettingsNotFound is returned by a SettingsSource when no persisted
// settings record exists yet.
var ErrSettingsNotFound = errors.New("settings record not found")

// Settings is the persisted overlay for the effective configuration. Empty
// fields leave the environment value in place.
type Settings struct {
	SiteName        string
	FrontendURL     string
	SupportEmail    string
	TokenSigningKey string
	SMTPHost        string
	SMTPPort        string
	SMTPUser        string
	SMTPPassword    string
}

// SettingsSource fetches the persisted settings singleton.
type SettingsSource interface {
	Get(ctx context.Context) (*Settings, error)
}

// Runtime is the effective configuration: the environment base overridden by
// whatever persisted settings were available at load time. It is immutable
// once published; Reload publishes a fresh Runtime rather than mutating.
type Runtime struct {
	SiteName     string
	FrontendURL  string
	SupportEmail string
	SigningKey   string
	SMTPHost     string
	SMTPPort     string
	SMTPUser     string
	SMTPPassword string

	// SettingsApplied is false when the cache fell back to environment-only
	// configuration (no record, or the fetch failed).
	SettingsApplied bool
	LoadedAt        time.Time
}

// MailConfigured reports whether outbound mail can be sent with the current
// effective configuration.
func (r *Runtime) MailConfigured() bool {
	return r.SMTPHost != "" && r.SMTPUser != ""
}

// Cache holds the process-wide effective configuration. Readers dereference
// the current Runtime through a single atomic pointer, so they always see a
// fully-built configuration, never a partial merge. Reloads are serialized
// against each other but never block readers.
type Cache struct {
	base   *Config
	source SettingsSource
	logger *logging.Logger

	reloadMu sync.Mutex
	current  atomic.Pointer[Runtime]
}

func NewCache(base *Config, source SettingsSource, logger *logging.Logger) *Cache {
	return &Cache{
		base:   base,
		source: source,
		logger: logger,
	}
}

// Load builds the effective configuration and publishes it. A missing or
// unreadable settings record degrades to environment-only configuration
// rather than leaving the cache empty: a configuration outage must not
// become a total outage.
func (c *Cache) Load(ctx context.Context) {
	c.reloadMu.Lock()
	defer c.reloadMu.Unlock()

	c.current.Store(c.buildRuntime(ctx))
}

// Reload re-runs Load. Intended to be called after an administrator edits
// the persisted settings.
func (c *Cache) Reload(ctx context.Context) {
	c.Load(ctx)
}

// Current returns the effective configuration, or ErrNotInitialized if Load
// has not completed yet.
func (c *Cache) Current() (*Runtime, error) {
	rt := c.current.Load()
	if rt == nil {
		return nil, ErrNotInitialized
	}
	return rt, nil
}

func (c *Cache) buildRuntime(ctx context.Context) *Runtime {
	rt := &Runtime{
		SiteName:     c.base.Site.Name,
		FrontendURL:  c.base.Site.FrontendURL,
		SupportEmail: c.base.Site.SupportEmail,
		SigningKey:   c.base.Auth.SigningKey,
		SMTPHost:     c.base.Email.SMTPHost,
		SMTPPort:     c.base.Email.SMTPPort,
		SMTPUser:     c.base.Email.SMTPUser,
		SMTPPassword: c.base.Email.SMTPPassword,
		LoadedAt:     time.Now(),
	}

	settings, err := c.source.Get(ctx)
	if err != nil {
		if errors.Is(err, ErrSettingsNotFound) {
			c.logger.Warn("no persisted settings record, using environment configuration only")
		} else {
			// Degraded but alive. Missing settings can silently narrow
			// capability (e.g. disable mail), so log loudly.
			c.logger.Error("failed to load persisted settings, falling back to environment configuration",
				"error", err.Error())
		}
		return rt
	}

	applyOverride(&rt.SiteName, settings.SiteName)
	applyOverride(&rt.FrontendURL, settings.FrontendURL)
	applyOverride(&rt.SupportEmail, settings.SupportEmail)
	applyOverride(&rt.SigningKey, settings.TokenSigningKey)
	applyOverride(&rt.SMTPHost, settings.SMTPHost)
	applyOverride(&rt.SMTPPort, settings.SMTPPort)
	applyOverride(&rt.SMTPUser, settings.SMTPUser)
	applyOverride(&rt.SMTPPassword, settings.SMTPPassword)
	rt.SettingsApplied = true

	return rt
}

func applyOverride(dst *string, value string) {
	if value != "" {
		*dst = value
	}
}
