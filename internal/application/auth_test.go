package application

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Mukul-raii/Miss-Minutes/internal/domain"
)

func TestBootstrapAdminRunsOnce(t *testing.T) {
	ctx := context.Background()
	service, _ := newTestService(t)

	// Second bootstrap is a no-op once a user exists.
	if err := service.BootstrapAdmin(ctx, "second@example.com", "other"); err != nil {
		t.Fatalf("second bootstrap: %v", err)
	}
	if _, _, err := service.LoginWithAPIToken(ctx, "second@example.com", "other", "cli", nil); err == nil {
		t.Fatalf("second bootstrap should not have created a user")
	}
}

func TestLoginRejectsWrongPassword(t *testing.T) {
	ctx := context.Background()
	service, _ := newTestService(t)

	if _, _, err := service.LoginWithAPIToken(ctx, "dev@example.com", "wrong", "cli", nil); err == nil {
		t.Fatalf("expected login failure")
	}
	if _, _, err := service.LoginWithAPIToken(ctx, "DEV@example.com", "secret", "cli", nil); err != nil {
		t.Fatalf("email should be case insensitive: %v", err)
	}
}

func TestSessionLifecycle(t *testing.T) {
	ctx := context.Background()
	service, _ := newTestService(t)

	_, token, err := service.LoginWithSession(ctx, "dev@example.com", "secret", time.Hour)
	if err != nil {
		t.Fatalf("login: %v", err)
	}

	identity, err := service.AuthenticateSession(ctx, token)
	if err != nil {
		t.Fatalf("authenticate: %v", err)
	}
	if identity.User.Email != "dev@example.com" {
		t.Fatalf("unexpected identity: %+v", identity)
	}

	if err := service.LogoutSession(ctx, token); err != nil {
		t.Fatalf("logout: %v", err)
	}
	if _, err := service.AuthenticateSession(ctx, token); err == nil {
		t.Fatalf("session should be gone after logout")
	}
}

func TestExpiredSessionIsRejected(t *testing.T) {
	ctx := context.Background()
	service, _ := newTestService(t)

	_, token, err := service.LoginWithSession(ctx, "dev@example.com", "secret", -time.Minute)
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if _, err := service.AuthenticateSession(ctx, token); err == nil {
		t.Fatalf("expired session should be rejected")
	}
}

func TestAPITokenExpiry(t *testing.T) {
	ctx := context.Background()
	service, _ := newTestService(t)

	ttl := -time.Minute
	_, token, err := service.LoginWithAPIToken(ctx, "dev@example.com", "secret", "expired", &ttl)
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if _, err := service.AuthenticateBearerToken(ctx, token); err == nil {
		t.Fatalf("expired token should be rejected")
	}
}

// failingCredentialRepo simulates a store that errors on credential
// lookups, for example a locked database under concurrent writers.
type failingCredentialRepo struct {
	domain.TrackerRepository
	err error
}

func (r failingCredentialRepo) GetAPITokenByTokenHash(ctx context.Context, tokenHash string) (domain.APIToken, error) {
	return domain.APIToken{}, r.err
}

func (r failingCredentialRepo) GetSessionByTokenHash(ctx context.Context, tokenHash string) (domain.AuthSession, error) {
	return domain.AuthSession{}, r.err
}

func TestStoreFailureDuringAuthIsNotUnauthorized(t *testing.T) {
	ctx := context.Background()
	storeErr := errors.New("database is locked (5) (SQLITE_BUSY)")
	service := NewTrackerService(failingCredentialRepo{err: storeErr})

	if _, err := service.AuthenticateBearerToken(ctx, "live-token"); errors.Is(err, domain.ErrUnauthorized) {
		t.Fatalf("store failure must not read as a bad token: %v", err)
	} else if !errors.Is(err, storeErr) {
		t.Fatalf("store failure should propagate: %v", err)
	}

	if _, err := service.AuthenticateSession(ctx, "live-session"); errors.Is(err, domain.ErrUnauthorized) {
		t.Fatalf("store failure must not read as a bad session: %v", err)
	} else if !errors.Is(err, storeErr) {
		t.Fatalf("store failure should propagate: %v", err)
	}

	// Sync callers authenticate first and must see the same distinction.
	if _, err := service.SyncCommits(ctx, "live-token", nil); errors.Is(err, domain.ErrUnauthorized) {
		t.Fatalf("store failure must not abort a sync as unauthorized: %v", err)
	} else if !errors.Is(err, storeErr) {
		t.Fatalf("store failure should propagate through sync: %v", err)
	}
}
