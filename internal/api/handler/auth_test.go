package handler

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"supportchat/backend/internal/config"
	"supportchat/backend/internal/models"

	"github.com/gin-gonic/gin"
	jwt "github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newAuthTestHandler() *Handler {
	return &Handler{Cfg: &config.Config{
		JWT: config.JWTConfig{
			Secret: "test-secret",
			TTL:    time.Hour,
			Issuer: "supportchat",
		},
	}}
}

func TestJWTRoundTrip(t *testing.T) {
	h := newAuthTestHandler()
	minted := Identity{UserID: "cust-1", DisplayName: "Alice", Role: models.RoleCustomer}

	token, err := h.generateJWT(minted)
	require.NoError(t, err)

	resolved, err := h.resolveIdentity(token)
	require.NoError(t, err)
	assert.Equal(t, minted, resolved)
}

func TestResolveIdentityRejectsBadTokens(t *testing.T) {
	h := newAuthTestHandler()

	token, err := h.generateJWT(Identity{UserID: "cust-1", DisplayName: "Alice", Role: models.RoleCustomer})
	require.NoError(t, err)

	tests := []struct {
		name  string
		token string
	}{
		{"empty", ""},
		{"garbage", "not.a.token"},
		{"tampered payload", tamper(token)},
		{"wrong secret", signWith(t, "other-secret", jwt.MapClaims{
			"user_id": "cust-1",
			"role":    models.RoleCustomer,
			"exp":     time.Now().Add(time.Hour).Unix(),
		})},
		{"expired", signWith(t, "test-secret", jwt.MapClaims{
			"user_id": "cust-1",
			"role":    models.RoleCustomer,
			"exp":     time.Now().Add(-time.Minute).Unix(),
		})},
		{"missing user id", signWith(t, "test-secret", jwt.MapClaims{
			"role": models.RoleCustomer,
			"exp":  time.Now().Add(time.Hour).Unix(),
		})},
		{"unknown role", signWith(t, "test-secret", jwt.MapClaims{
			"user_id": "cust-1",
			"role":    "superuser",
			"exp":     time.Now().Add(time.Hour).Unix(),
		})},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := h.resolveIdentity(tt.token)
			assert.ErrorIs(t, err, errInvalidToken)
		})
	}
}

func TestResolveIdentityDefaultsDisplayName(t *testing.T) {
	h := newAuthTestHandler()
	token := signWith(t, "test-secret", jwt.MapClaims{
		"user_id": "cust-1",
		"role":    models.RoleCustomer,
		"exp":     time.Now().Add(time.Hour).Unix(),
	})

	id, err := h.resolveIdentity(token)
	require.NoError(t, err)
	assert.Equal(t, "Anonymous", id.DisplayName)
}

func TestBearerFromRequest(t *testing.T) {
	gin.SetMode(gin.TestMode)

	// Authorization header wins.
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	c.Request = httptest.NewRequest("GET", "/ws/chat?token=from-query", nil)
	c.Request.Header.Set("Authorization", "Bearer from-header")
	assert.Equal(t, "from-header", bearerFromRequest(c))

	// Browser WebSocket clients fall back to the query parameter.
	c, _ = gin.CreateTestContext(httptest.NewRecorder())
	c.Request = httptest.NewRequest("GET", "/ws/chat?token=from-query", nil)
	assert.Equal(t, "from-query", bearerFromRequest(c))

	// Non-bearer schemes are ignored.
	c, _ = gin.CreateTestContext(httptest.NewRecorder())
	c.Request = httptest.NewRequest("GET", "/ws/chat", nil)
	c.Request.Header.Set("Authorization", "Basic dXNlcjpwYXNz")
	assert.Empty(t, bearerFromRequest(c))
}

// tamper flips the payload segment of a JWT so the signature no longer matches.
func tamper(token string) string {
	parts := strings.Split(token, ".")
	parts[1] = "eyJ1c2VyX2lkIjoib3AtMSIsInJvbGUiOiJvcGVyYXRvciJ9"
	return strings.Join(parts, ".")
}

func signWith(t *testing.T, secret string, claims jwt.MapClaims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	require.NoError(t, err)
	return token
}
