package config

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quickshelf/api/internal/logging"
)

type stubSource struct {
	mu       sync.Mutex
	settings *Settings
	err      error
	calls    int
}

func (s *stubSource) Get(ctx context.Context) (*Settings, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	if s.settings == nil {
		return nil, ErrSettingsNotFound
	}
	result := *s.settings
	return &result, nil
}

func baseConfig() *Config {
	cfg := &Config{}
	cfg.Site.Name = "Quickshelf"
	cfg.Site.FrontendURL = "http://localhost:3000"
	cfg.Site.SupportEmail = "support@quickshelf.test"
	cfg.Auth.SigningKey = "env-key"
	cfg.Email.SMTPHost = "smtp.env.test"
	cfg.Email.SMTPPort = "587"
	cfg.Email.SMTPUser = "env-user"
	cfg.Email.SMTPPassword = "env-pass"
	return cfg
}

func TestCurrentBeforeLoadFails(t *testing.T) {
	cache := NewCache(baseConfig(), &stubSource{}, logging.NewLogger(true))

	_, err := cache.Current()
	assert.ErrorIs(t, err, ErrNotInitialized)
}

func TestLoadWithoutSettingsRecordUsesEnvironment(t *testing.T) {
	cache := NewCache(baseConfig(), &stubSource{}, logging.NewLogger(true))
	cache.Load(context.Background())

	rt, err := cache.Current()
	require.NoError(t, err)

	assert.Equal(t, "Quickshelf", rt.SiteName)
	assert.Equal(t, "env-key", rt.SigningKey)
	assert.False(t, rt.SettingsApplied)
}

func TestLoadPersistedSettingsWin(t *testing.T) {
	source := &stubSource{settings: &Settings{
		SiteName:        "Shelf & Co",
		TokenSigningKey: "persisted-key",
		SMTPHost:        "smtp.persisted.test",
	}}
	cache := NewCache(baseConfig(), source, logging.NewLogger(true))
	cache.Load(context.Background())

	rt, err := cache.Current()
	require.NoError(t, err)

	assert.Equal(t, "Shelf & Co", rt.SiteName)
	assert.Equal(t, "persisted-key", rt.SigningKey)
	assert.Equal(t, "smtp.persisted.test", rt.SMTPHost)
	assert.True(t, rt.SettingsApplied)

	// Empty persisted fields leave the environment value in place.
	assert.Equal(t, "http://localhost:3000", rt.FrontendURL)
	assert.Equal(t, "support@quickshelf.test", rt.SupportEmail)
	assert.Equal(t, "env-user", rt.SMTPUser)
}

func TestLoadFetchFailureDegradesToEnvironment(t *testing.T) {
	source := &stubSource{err: errors.New("connection refused")}
	cache := NewCache(baseConfig(), source, logging.NewLogger(true))
	cache.Load(context.Background())

	rt, err := cache.Current()
	require.NoError(t, err)

	assert.Equal(t, "env-key", rt.SigningKey)
	assert.False(t, rt.SettingsApplied)
}

func TestReloadPublishesFreshRuntime(t *testing.T) {
	source := &stubSource{}
	cache := NewCache(baseConfig(), source, logging.NewLogger(true))
	cache.Load(context.Background())

	before, err := cache.Current()
	require.NoError(t, err)
	assert.Equal(t, "env-key", before.SigningKey)

	source.mu.Lock()
	source.settings = &Settings{TokenSigningKey: "rotated-key"}
	source.mu.Unlock()
	cache.Reload(context.Background())

	after, err := cache.Current()
	require.NoError(t, err)
	assert.Equal(t, "rotated-key", after.SigningKey)

	// The previously handed out runtime is immutable.
	assert.Equal(t, "env-key", before.SigningKey)
}

func TestCurrentDoesNotRefetch(t *testing.T) {
	source := &stubSource{}
	cache := NewCache(baseConfig(), source, logging.NewLogger(true))
	cache.Load(context.Background())

	for range 50 {
		_, err := cache.Current()
		require.NoError(t, err)
	}

	source.mu.Lock()
	defer source.mu.Unlock()
	assert.Equal(t, 1, source.calls)
}

func TestMailConfigured(t *testing.T) {
	rt := &Runtime{SMTPHost: "smtp.test", SMTPUser: "user"}
	assert.True(t, rt.MailConfigured())

	assert.False(t, (&Runtime{SMTPUser: "user"}).MailConfigured())
	assert.False(t, (&Runtime{SMTPHost: "smtp.test"}).MailConfigured())
}
