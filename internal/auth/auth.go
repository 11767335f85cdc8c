// Package auth is the authentication service (C4): credential validation,
// challenge-response login backed by TOTP, device-token fast path, and
// owner-only persisted session material. Session persistence reuses
// internal/atomicio (itself adapted from the teacher's
// internal/storage.JSONStorage atomic-write pattern). TOTP generation
// uses github.com/pquerna/otp/totp instead of hand-rolling RFC 6238.
package auth

import (
	"context"
	"encoding/base32"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/pquerna/otp/totp"

	"github.com/ridgecrest/sentrytrader/internal/atomicio"
	"github.com/ridgecrest/sentrytrader/internal/auditlog"
	"github.com/ridgecrest/sentrytrader/internal/models"
	"github.com/ridgecrest/sentrytrader/internal/retryx"
)

var emailShape = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)

// ValidateCredentials enforces the mandatory shape checks from spec.md
// §4.3: username email-shaped and non-empty, password non-empty,
// challenge secret (if present) valid base32, device token only checked
// for non-emptiness when present. Missing required fields are fatal.
func ValidateCredentials(c models.Credentials) error {
	if c.Username == "" || !emailShape.MatchString(c.Username) {
		return fmt.Errorf("username must be a non-empty email-shaped address")
	}
	if c.Password == "" {
		return fmt.Errorf("password must not be empty")
	}
	if c.ChallengeSecret != "" {
		normalized := strings.ToUpper(strings.TrimSpace(c.ChallengeSecret))
		if _, err := base32.StdEncoding.WithPadding(base32.NoPadding).DecodeString(normalized); err != nil {
			return fmt.Errorf("challenge secret is not valid base32: %w", err)
		}
	}
	if c.DeviceToken != "" && len(strings.TrimSpace(c.DeviceToken)) == 0 {
		return fmt.Errorf("device token must not be blank when present")
	}
	return nil
}

// ChallengeKind tells Broker.Authenticate what happened server-side.
type ChallengeKind string

const (
	ChallengeNone   ChallengeKind = "none"
	ChallengeTOTP   ChallengeKind = "totp"
	ChallengeDevice ChallengeKind = "device"
)

// AuthResult is what the broker returns from the first authentication
// call, before any challenge has been answered.
type AuthResult struct {
	Session  models.Session
	Needs    ChallengeKind
}

// Broker is the external brokerage client's authentication surface. It is
// an explicit collaborator interface — the concrete HTTP client is out of
// scope and supplied by the caller at composition time.
type Broker interface {
	Authenticate(ctx context.Context, creds models.Credentials) (AuthResult, error)
	RespondToChallenge(ctx context.Context, code string) (models.Session, error)
	RespondToDeviceToken(ctx context.Context, token string) (models.Session, error)
	Logout(ctx context.Context, session models.Session) error
	Refresh(ctx context.Context, session models.Session) (models.Session, error)
}

// Service implements the authentication operations of spec.md §4.3.
type Service struct {
	broker      Broker
	logger      *auditlog.Logger
	creds       models.Credentials
	sessionPath string

	mu      sync.Mutex
	session *models.Session
}

// NewService constructs the auth service. sessionPath is the on-disk
// location for persisted session material; an empty path disables
// persistence (session becomes process-bounded only).
func NewService(broker Broker, logger *auditlog.Logger, creds models.Credentials, sessionPath string) *Service {
	return &Service{
		broker:      broker,
		logger:      logger,
		creds:       creds,
		sessionPath: sessionPath,
	}
}

type persistedSession struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
	CreatedAt time.Time `json:"created_at"`
}

// Login implements spec.md §4.3: restore a persisted session if present
// and parseable; on any parse failure, delete it and authenticate fresh.
// Login is wrapped by C1's default retry policy; wrong credentials or a
// wrong challenge code surface immediately without retrying.
func (s *Service) Login(ctx context.Context) (bool, error) {
	if sess, ok := s.restorePersisted(); ok {
		s.mu.Lock()
		s.session = &sess
		s.mu.Unlock()
		return true, nil
	}

	if err := ValidateCredentials(s.creds); err != nil {
		return false, &retryx.NonRetriableError{Cause: err}
	}

	session, err := retryx.WithRetry(ctx, func(ctx context.Context) (models.Session, error) {
		return s.authenticate(ctx)
	}, retryx.DefaultPolicy)
	if err != nil {
		return false, err
	}

	s.mu.Lock()
	s.session = &session
	s.mu.Unlock()

	s.persist(session)
	return true, nil
}

func (s *Service) authenticate(ctx context.Context) (models.Session, error) {
	result, err := s.broker.Authenticate(ctx, s.creds)
	if err != nil {
		return models.Session{}, err
	}

	switch result.Needs {
	case ChallengeNone:
		return result.Session, nil
	case ChallengeDevice:
		s.logger.Event(auditlog.DomainTrading, "auth.login_device_token", "", nil)
		return s.broker.RespondToDeviceToken(ctx, s.creds.DeviceToken)
	case ChallengeTOTP:
		code, genErr := totp.GenerateCode(strings.ToUpper(strings.TrimSpace(s.creds.ChallengeSecret)), time.Now())
		if genErr != nil {
			return models.Session{}, &retryx.NonRetriableError{Cause: fmt.Errorf("generating challenge code: %w", genErr)}
		}
		s.logger.Event(auditlog.DomainTrading, "auth.challenge_generated", "", nil)
		return s.broker.RespondToChallenge(ctx, code)
	default:
		return models.Session{}, &retryx.NonRetriableError{Cause: fmt.Errorf("unrecognised challenge kind %q", result.Needs)}
	}
}

// Logout invokes broker logout, deletes persisted session material, and
// clears in-memory session state. Broker logout errors are logged but
// non-fatal — the caller always ends up logged out locally.
func (s *Service) Logout(ctx context.Context) {
	s.mu.Lock()
	session := s.session
	s.session = nil
	s.mu.Unlock()

	if session != nil {
		if err := s.broker.Logout(ctx, *session); err != nil {
			s.logger.Event(auditlog.DomainTrading, "auth.logout_error", "", map[string]any{"error": err.Error()})
		}
	}

	if s.sessionPath != "" {
		_ = os.Remove(s.sessionPath)
	}
}

// IsAuthenticated reports whether a usable, unexpired session is held.
func (s *Service) IsAuthenticated() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.session == nil {
		return false
	}
	return !s.session.Expired(time.Now().UTC())
}

// GetSession returns the current session, or ok=false if absent.
func (s *Service) GetSession() (models.Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.session == nil {
		return models.Session{}, false
	}
	return *s.session, true
}

// RefreshToken re-establishes the session without a full credential flow.
func (s *Service) RefreshToken(ctx context.Context) (bool, error) {
	s.mu.Lock()
	session := s.session
	s.mu.Unlock()
	if session == nil {
		return false, errors.New("no session to refresh")
	}

	refreshed, err := s.broker.Refresh(ctx, *session)
	if err != nil {
		return false, err
	}

	s.mu.Lock()
	s.session = &refreshed
	s.mu.Unlock()
	s.persist(refreshed)
	return true, nil
}

func (s *Service) restorePersisted() (models.Session, bool) {
	if s.sessionPath == "" {
		return models.Session{}, false
	}
	raw, err := os.ReadFile(s.sessionPath)
	if err != nil {
		return models.Session{}, false
	}
	var p persistedSession
	if err := json.Unmarshal(raw, &p); err != nil {
		_ = os.Remove(s.sessionPath)
		return models.Session{}, false
	}
	session := models.Session{Token: p.Token, ExpiresAt: p.ExpiresAt, CreatedAt: p.CreatedAt}
	if session.Expired(time.Now().UTC()) {
		_ = os.Remove(s.sessionPath)
		return models.Session{}, false
	}
	return session, true
}

func (s *Service) persist(session models.Session) {
	if s.sessionPath == "" {
		return
	}
	p := persistedSession{Token: session.Token, ExpiresAt: session.ExpiresAt, CreatedAt: session.CreatedAt}
	data, err := json.Marshal(p)
	if err != nil {
		s.logger.Event(auditlog.DomainTrading, "auth.persist_error", "", map[string]any{"error": err.Error()})
		return
	}
	if err := atomicio.WriteFile(s.sessionPath, data, 0o600); err != nil {
		s.logger.Event(auditlog.DomainTrading, "auth.persist_error", "", map[string]any{"error": err.Error()})
	}
}
