package auth

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/codesync/codesync-server/internal/store/sqlite"
)

func newTestService(t *testing.T) *Service {
	t.Helper()

	st, err := sqlite.NewWithSetup(":memory:", func(db *sql.DB) error {
		return sqlite.ApplySchema(db)
	})
	if err != nil {
		t.Fatalf("failed to create test store: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })

	return NewService(st, &JWTConfig{
		Secret:   []byte("test-secret"),
		Issuer:   "test",
		Audience: "test",
		TTL:      time.Hour,
	})
}

func TestRegisterAndLogin(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	token, err := svc.Register(ctx, "alice", "Alice", "password123")
	if err != nil {
		t.Fatalf("register failed: %v", err)
	}

	claims, err := svc.ValidateToken(token)
	if err != nil {
		t.Fatalf("registration token did not validate: %v", err)
	}
	if claims.Username != "alice" || claims.DisplayName != "Alice" || claims.IsGuest {
		t.Fatalf("unexpected claims: %+v", claims)
	}

	if _, err := svc.Login(ctx, "alice", "password123"); err != nil {
		t.Fatalf("login failed: %v", err)
	}
	if _, err := svc.Login(ctx, "alice", "wrong"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
	if _, err := svc.Login(ctx, "nobody", "password123"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials for unknown user, got %v", err)
	}
}

func TestRegisterValidation(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	if _, err := svc.Register(ctx, "ab", "", "password123"); !errors.Is(err, ErrInvalidUsername) {
		t.Fatalf("expected ErrInvalidUsername for short name, got %v", err)
	}
	if _, err := svc.Register(ctx, "alice", "", "short"); !errors.Is(err, ErrInvalidPassword) {
		t.Fatalf("expected ErrInvalidPassword, got %v", err)
	}

	if _, err := svc.Register(ctx, "alice", "", "password123"); err != nil {
		t.Fatalf("register failed: %v", err)
	}
	if _, err := svc.Register(ctx, "alice", "", "password123"); !errors.Is(err, ErrUserExists) {
		t.Fatalf("expected ErrUserExists, got %v", err)
	}
}

func TestRegisterDefaultsDisplayName(t *testing.T) {
	svc := newTestService(t)

	token, err := svc.Register(context.Background(), "alice", "  ", "password123")
	if err != nil {
		t.Fatalf("register failed: %v", err)
	}
	claims, err := svc.ValidateToken(token)
	if err != nil {
		t.Fatalf("token did not validate: %v", err)
	}
	if claims.DisplayName != "alice" {
		t.Fatalf("expected display name to default to username, got %q", claims.DisplayName)
	}
}

func TestCreateGuestUser(t *testing.T) {
	svc := newTestService(t)

	token, sessionID, err := svc.CreateGuestUser(context.Background())
	if err != nil {
		t.Fatalf("guest creation failed: %v", err)
	}
	if sessionID == "" {
		t.Fatal("expected a session id")
	}

	claims, err := svc.ValidateToken(token)
	if err != nil {
		t.Fatalf("guest token did not validate: %v", err)
	}
	if !claims.IsGuest {
		t.Fatal("expected guest claims")
	}

	// Session ids must not repeat.
	_, other, err := svc.CreateGuestUser(context.Background())
	if err != nil {
		t.Fatalf("second guest creation failed: %v", err)
	}
	if other == sessionID {
		t.Fatal("expected distinct session ids")
	}
}

func TestValidateTokenRejectsTampering(t *testing.T) {
	svc := newTestService(t)

	token, err := svc.Register(context.Background(), "alice", "", "password123")
	if err != nil {
		t.Fatalf("register failed: %v", err)
	}

	if _, err := svc.ValidateToken(token + "x"); err == nil {
		t.Fatal("expected a tampered token to fail validation")
	}

	otherIssuer := NewService(nil, &JWTConfig{
		Secret:   []byte("other-secret"),
		Issuer:   "test",
		Audience: "test",
		TTL:      time.Hour,
	})
	if _, err := otherIssuer.ValidateToken(token); err == nil {
		t.Fatal("expected a token signed with a different secret to fail")
	}
}
