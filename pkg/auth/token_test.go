package auth

import (
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/angelmondragon/playfunia-backend/pkg/config"
	"github.com/angelmondragon/playfunia-backend/pkg/enums"
)

func testConfig() config.JWTConfig {
	return config.JWTConfig{Secret: "secret", Issuer: "playfunia", ExpirationMinutes: 30, LeewaySeconds: 30}
}

func TestIssueAndVerifyToken(t *testing.T) {
	cfg := testConfig()
	now := time.Now().UTC()
	userID := uuid.New()

	token, err := IssueToken(cfg, now, Identity{UserID: userID, Email: " parent@example.com ", Role: enums.RoleStaff})
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}
	claims, err := VerifyToken(cfg, token)
	if err != nil {
		t.Fatalf("verify token: %v", err)
	}

	id := claims.Identity()
	if id.UserID != userID || id.Role != enums.RoleStaff || id.Email != "parent@example.com" {
		t.Fatalf("unexpected identity %+v", id)
	}
	if claims.Subject != userID.String() || claims.ID == "" {
		t.Fatalf("unexpected registered claims %+v", claims.RegisteredClaims)
	}
	if got := claims.ExpiresAt.Sub(now.Add(30 * time.Minute)); got > time.Second || got < -time.Second {
		t.Fatalf("expiry off by %v", got)
	}
}

func TestVerifyTokenRejectsForeignTokens(t *testing.T) {
	cfg := testConfig()
	token, err := IssueToken(cfg, time.Now(), Identity{UserID: uuid.New(), Role: enums.RoleCustomer})
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}

	otherSecret := cfg
	otherSecret.Secret = "different"
	if _, err := VerifyToken(otherSecret, token); err == nil {
		t.Fatal("expected signature validation failure")
	}
	otherIssuer := cfg
	otherIssuer.Issuer = "someone-else"
	if _, err := VerifyToken(otherIssuer, token); err == nil {
		t.Fatal("expected issuer validation failure")
	}
}

func TestVerifyTokenExpiryHonoursLeeway(t *testing.T) {
	cfg := testConfig()
	cfg.ExpirationMinutes = 1

	// expired 10s ago, inside the 30s leeway
	fresh, err := IssueToken(cfg, time.Now().Add(-70*time.Second), Identity{UserID: uuid.New(), Role: enums.RoleAdmin})
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}
	if _, err := VerifyToken(cfg, fresh); err != nil {
		t.Fatalf("expected token within leeway to verify, got %v", err)
	}

	stale, err := IssueToken(cfg, time.Now().Add(-2*time.Hour), Identity{UserID: uuid.New(), Role: enums.RoleAdmin})
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}
	if _, err := VerifyToken(cfg, stale); err == nil || !strings.Contains(err.Error(), "expired") {
		t.Fatalf("expected expired token error, got %v", err)
	}
}

func TestVerifyTokenRequiresExpiryAndKnownRole(t *testing.T) {
	cfg := testConfig()
	sign := func(claims Claims) string {
		t.Helper()
		raw, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(cfg.Secret))
		if err != nil {
			t.Fatalf("sign: %v", err)
		}
		return raw
	}

	noExpiry := sign(Claims{UserID: uuid.New(), Role: enums.RoleCustomer, RegisteredClaims: jwt.RegisteredClaims{Issuer: cfg.Issuer}})
	if _, err := VerifyToken(cfg, noExpiry); err == nil {
		t.Fatal("expected missing exp to be rejected")
	}

	exp := jwt.NewNumericDate(time.Now().Add(time.Hour))
	owner := sign(Claims{UserID: uuid.New(), Role: "owner", RegisteredClaims: jwt.RegisteredClaims{Issuer: cfg.Issuer, ExpiresAt: exp}})
	if _, err := VerifyToken(cfg, owner); err == nil {
		t.Fatal("expected unknown role to be rejected")
	}
	anonymous := sign(Claims{Role: enums.RoleCustomer, RegisteredClaims: jwt.RegisteredClaims{Issuer: cfg.Issuer, ExpiresAt: exp}})
	if _, err := VerifyToken(cfg, anonymous); err == nil {
		t.Fatal("expected missing user id to be rejected")
	}
}

func TestIssueTokenValidatesInput(t *testing.T) {
	cfg := testConfig()
	if _, err := IssueToken(cfg, time.Now(), Identity{UserID: uuid.New(), Role: "owner"}); err == nil {
		t.Fatal("expected invalid role error")
	}
	if _, err := IssueToken(cfg, time.Now(), Identity{Role: enums.RoleAdmin}); err == nil {
		t.Fatal("expected missing user id error")
	}
	if _, err := IssueToken(config.JWTConfig{Issuer: "playfunia"}, time.Now(), Identity{UserID: uuid.New(), Role: enums.RoleAdmin}); err == nil {
		t.Fatal("expected missing secret error")
	}
}
