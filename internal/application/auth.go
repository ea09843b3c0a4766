package application

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Mukul-raii/Miss-Minutes/internal/domain"
	"golang.org/x/crypto/bcrypt"
)

// BootstrapAdmin creates the initial account when the user table is
// empty. No-op otherwise.
func (s *TrackerService) BootstrapAdmin(ctx context.Context, email, password string) error {
	if strings.TrimSpace(email) == "" || strings.TrimSpace(password) == "" {
		return domain.NewValidationError("bootstrap admin", "email and password are required")
	}

	count, err := s.repo.CountUsers(ctx)
	if err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	hash, err := hashPassword(password)
	if err != nil {
		return err
	}

	u, err := s.repo.CreateUser(ctx, domain.User{Email: strings.ToLower(strings.TrimSpace(email)), PasswordHash: hash})
	if err != nil {
		return err
	}

	return s.repo.CreateAuditLog(ctx, domain.AuditLog{ActorUserID: &u.ID, Action: "auth.bootstrap_admin", TargetType: "user", TargetID: &u.ID, Metadata: "initial admin created"})
}

// LoginWithSession authenticates email/password and issues a session
// token for the dashboard surface.
func (s *TrackerService) LoginWithSession(ctx context.Context, email, password string, ttl time.Duration) (domain.User, string, error) {
	u, err := s.authenticateEmailPassword(ctx, email, password)
	if err != nil {
		return domain.User{}, "", err
	}

	plain, hash, err := newTokenPair()
	if err != nil {
		return domain.User{}, "", err
	}

	_, err = s.repo.CreateSession(ctx, domain.AuthSession{
		UserID:    u.ID,
		TokenHash: hash,
		ExpiresAt: time.Now().UTC().Add(ttl),
	})
	if err != nil {
		return domain.User{}, "", err
	}

	_ = s.repo.CreateAuditLog(ctx, domain.AuditLog{ActorUserID: &u.ID, Action: "auth.login.session", TargetType: "user", TargetID: &u.ID, Metadata: "session login"})
	return u, plain, nil
}

// LoginWithAPIToken authenticates email/password and issues the
// long-lived bearer credential the tracking client syncs with.
func (s *TrackerService) LoginWithAPIToken(ctx context.Context, email, password, tokenName string, ttl *time.Duration) (domain.User, string, error) {
	u, err := s.authenticateEmailPassword(ctx, email, password)
	if err != nil {
		return domain.User{}, "", err
	}

	plain, hash, err := newTokenPair()
	if err != nil {
		return domain.User{}, "", err
	}

	var expiresAt *time.Time
	if ttl != nil {
		t := time.Now().UTC().Add(*ttl)
		expiresAt = &t
	}

	name := strings.TrimSpace(tokenName)
	if name == "" {
		name = "tracker"
	}
	_, err = s.repo.CreateAPIToken(ctx, domain.APIToken{
		UserID:    u.ID,
		Name:      name,
		TokenHash: hash,
		ExpiresAt: expiresAt,
	})
	if err != nil {
		return domain.User{}, "", err
	}

	_ = s.repo.CreateAuditLog(ctx, domain.AuditLog{ActorUserID: &u.ID, Action: "auth.login.api_token", TargetType: "user", TargetID: &u.ID, Metadata: "api token issued"})
	return u, plain, nil
}

func (s *TrackerService) AuthenticateSession(ctx context.Context, token string) (domain.Identity, error) {
	hash := hashToken(token)
	session, err := s.repo.GetSessionByTokenHash(ctx, hash)
	if err != nil {
		return domain.Identity{}, authLookupError("session", err)
	}
	if session.ExpiresAt.Before(time.Now().UTC()) {
		_ = s.repo.DeleteSessionByTokenHash(ctx, hash)
		return domain.Identity{}, domain.ErrUnauthorized
	}

	u, err := s.repo.GetUserByID(ctx, session.UserID)
	if err != nil {
		return domain.Identity{}, authLookupError("session user", err)
	}
	return domain.Identity{User: u}, nil
}

func (s *TrackerService) AuthenticateBearerToken(ctx context.Context, token string) (domain.Identity, error) {
	u, err := s.authenticateAPIToken(ctx, token)
	if err != nil {
		return domain.Identity{}, err
	}
	return domain.Identity{User: u}, nil
}

func (s *TrackerService) LogoutSession(ctx context.Context, token string) error {
	if strings.TrimSpace(token) == "" {
		return nil
	}
	return s.repo.DeleteSessionByTokenHash(ctx, hashToken(token))
}

// authenticateAPIToken resolves the bearer credential once, before any
// batch write. Every sync operation calls this first. Only a token
// that genuinely does not exist reads as unauthorized; a failing store
// propagates as an error so clients do not discard a live token.
func (s *TrackerService) authenticateAPIToken(ctx context.Context, token string) (domain.User, error) {
	if strings.TrimSpace(token) == "" {
		return domain.User{}, domain.ErrUnauthorized
	}
	apit, err := s.repo.GetAPITokenByTokenHash(ctx, hashToken(token))
	if err != nil {
		return domain.User{}, authLookupError("api token", err)
	}
	if apit.ExpiresAt != nil && apit.ExpiresAt.Before(time.Now().UTC()) {
		return domain.User{}, domain.ErrUnauthorized
	}
	u, err := s.repo.GetUserByID(ctx, apit.UserID)
	if err != nil {
		return domain.User{}, authLookupError("token user", err)
	}
	return u, nil
}

func (s *TrackerService) authenticateEmailPassword(ctx context.Context, email, password string) (domain.User, error) {
	u, err := s.repo.GetUserByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		return domain.User{}, authLookupError("user", err)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		return domain.User{}, domain.ErrUnauthorized
	}
	return u, nil
}

// authLookupError distinguishes a missing credential from a store
// failure during its lookup.
func authLookupError(what string, err error) error {
	if errors.Is(err, domain.ErrNotFound) {
		return domain.ErrUnauthorized
	}
	return fmt.Errorf("look up %s: %w", what, err)
}

func hashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

func newTokenPair() (string, string, error) {
	raw := make([]byte, 32)
	if _, err := rand.Read(raw); err != nil {
		return "", "", err
	}
	plain := base64.RawURLEncoding.EncodeToString(raw)
	return plain, hashToken(plain), nil
}

func hashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return fmt.Sprintf("%x", sum[:])
}
