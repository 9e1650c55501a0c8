package auth

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/quickshelf/api/internal/config"
	"github.com/quickshelf/api/internal/logging"
	"github.com/quickshelf/api/internal/user"
)

// fakeUserStore is an in-memory UserStore honoring the same predicates as
// the bun repository, including strict token expiry and conditional updates.
type fakeUserStore struct {
	mu    sync.Mutex
	users map[uuid.UUID]*user.User
}

func newFakeUserStore() *fakeUserStore {
	return &fakeUserStore{users: make(map[uuid.UUID]*user.User)}
}

func (s *fakeUserStore) Create(ctx context.Context, u *user.User) (*user.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	email := user.NormalizeEmail(u.Email)
	for _, existing := range s.users {
		if existing.Email == email || existing.Username == u.Username {
			return nil, user.ErrDuplicateEmail
		}
	}

	stored := *u
	stored.ID = uuid.New()
	stored.Email = email
	stored.CreatedAt = time.Now()
	stored.UpdatedAt = stored.CreatedAt
	s.users[stored.ID] = &stored

	result := stored
	return &result, nil
}

func (s *fakeUserStore) GetByID(ctx context.Context, id uuid.UUID) (*user.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[id]
	if !ok {
		return nil, user.ErrNotFound
	}
	result := *u
	return &result, nil
}

func (s *fakeUserStore) GetByEmail(ctx context.Context, email string) (*user.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	email = user.NormalizeEmail(email)
	for _, u := range s.users {
		if u.Email == email {
			result := *u
			return &result, nil
		}
	}
	return nil, user.ErrNotFound
}

func (s *fakeUserStore) GetByIdentifier(ctx context.Context, identifier string) (*user.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	email := user.NormalizeEmail(identifier)
	taxID := user.NormalizeTaxID(identifier)
	for _, u := range s.users {
		if u.Email == email || u.Username == identifier {
			result := *u
			return &result, nil
		}
		if u.TaxID != nil && *u.TaxID == taxID {
			result := *u
			return &result, nil
		}
	}
	return nil, user.ErrNotFound
}

func (s *fakeUserStore) GetByLiveVerificationToken(ctx context.Context, token string) (*user.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, u := range s.users {
		if tokenLive(u.VerificationToken, u.VerificationExpiresAt, token) {
			result := *u
			return &result, nil
		}
	}
	return nil, user.ErrNotFound
}

func (s *fakeUserStore) GetByLiveResetToken(ctx context.Context, token string) (*user.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, u := range s.users {
		if tokenLive(u.PasswordResetToken, u.PasswordResetExpiresAt, token) {
			result := *u
			return &result, nil
		}
	}
	return nil, user.ErrNotFound
}

func (s *fakeUserStore) SetVerificationToken(ctx context.Context, userID uuid.UUID, token string, expiresAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[userID]
	if !ok || u.EmailVerified {
		return user.ErrNotFound
	}
	u.VerificationToken = &token
	u.VerificationExpiresAt = &expiresAt
	return nil
}

func (s *fakeUserStore) MarkEmailVerified(ctx context.Context, userID uuid.UUID, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[userID]
	if !ok || !tokenLive(u.VerificationToken, u.VerificationExpiresAt, token) {
		return user.ErrNotFound
	}
	u.EmailVerified = true
	u.VerificationToken = nil
	u.VerificationExpiresAt = nil
	return nil
}

func (s *fakeUserStore) SetPasswordResetToken(ctx context.Context, userID uuid.UUID, token string, expiresAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[userID]
	if !ok {
		return user.ErrNotFound
	}
	u.PasswordResetToken = &token
	u.PasswordResetExpiresAt = &expiresAt
	return nil
}

func (s *fakeUserStore) ResetPasswordByToken(ctx context.Context, token, passwordHash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, u := range s.users {
		if tokenLive(u.PasswordResetToken, u.PasswordResetExpiresAt, token) {
			u.PasswordHash = passwordHash
			u.PasswordResetToken = nil
			u.PasswordResetExpiresAt = nil
			return nil
		}
	}
	return user.ErrNotFound
}

// patch mutates a stored user directly, bypassing the public API. Tests use
// it to expire tokens or revoke admin rights behind an issued token.
func (s *fakeUserStore) patch(userID uuid.UUID, fn func(*user.User)) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if u, ok := s.users[userID]; ok {
		fn(u)
	}
}

// tokenLive checks exact match plus a strictly-future expiry.
func tokenLive(stored *string, expiresAt *time.Time, token string) bool {
	return stored != nil && expiresAt != nil && *stored == token && expiresAt.After(time.Now())
}

type sentMail struct {
	to    string
	token string
}

// fakeEmailService records dispatches and fails on demand.
type fakeEmailService struct {
	mu              sync.Mutex
	verifications   []sentMail
	resets          []sentMail
	verificationErr error
	resetErr        error
}

func (f *fakeEmailService) SendVerificationEmail(ctx context.Context, toEmail, token string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.verificationErr != nil {
		return f.verificationErr
	}
	f.verifications = append(f.verifications, sentMail{to: toEmail, token: token})
	return nil
}

func (f *fakeEmailService) SendPasswordResetEmail(ctx context.Context, toEmail, token string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.resetErr != nil {
		return f.resetErr
	}
	f.resets = append(f.resets, sentMail{to: toEmail, token: token})
	return nil
}

func (f *fakeEmailService) lastVerification() (sentMail, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if len(f.verifications) == 0 {
		return sentMail{}, false
	}
	return f.verifications[len(f.verifications)-1], true
}

func (f *fakeEmailService) lastReset() (sentMail, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if len(f.resets) == 0 {
		return sentMail{}, false
	}
	return f.resets[len(f.resets)-1], true
}

// fakeSettingsSource drives the config cache in tests.
type fakeSettingsSource struct {
	mu       sync.Mutex
	settings *config.Settings
	err      error
}

func (f *fakeSettingsSource) Get(ctx context.Context) (*config.Settings, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.err != nil {
		return nil, f.err
	}
	if f.settings == nil {
		return nil, config.ErrSettingsNotFound
	}
	result := *f.settings
	return &result, nil
}

// newTestCache builds a loaded config cache whose effective signing key is
// the given value (via the environment layer).
func newTestCache(signingKey string) *config.Cache {
	base := &config.Config{}
	base.Auth.SigningKey = signingKey
	base.Site.Name = "Quickshelf"
	base.Site.FrontendURL = "http://localhost:3000"

	cache := config.NewCache(base, &fakeSettingsSource{}, logging.NewLogger(true))
	cache.Load(context.Background())
	return cache
}

func newTestService(store *fakeUserStore, mail *fakeEmailService) *Service {
	return NewService(store, NewJWTService(newTestCache("test-signing-key")), mail, logging.NewLogger(true))
}
