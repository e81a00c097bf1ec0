package trackersync

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func TestJWTAuth_GenerateToken(t *testing.T) {
	jwtAuth := NewJWTAuth("test-secret")
	clientID := "test-client-123"
	duration := time.Hour

	token, err := jwtAuth.GenerateToken(clientID, duration)
	if err != nil {
		t.Fatalf("Failed to generate token: %v", err)
	}

	if token == "" {
		t.Error("Generated token should not be empty")
	}

	// Verify the token can be parsed
	claims, err := jwtAuth.ValidateToken(token)
	if err != nil {
		t.Fatalf("Failed to validate generated token: %v", err)
	}

	if claims.Subject != clientID {
		t.Errorf("Expected client_id %s, got %s", clientID, claims.Subject)
	}

	if claims.Issuer != "go-trackersync" {
		t.Errorf("Expected issuer 'go-trackersync', got %s", claims.Issuer)
	}

	// Verify token expiration
	if claims.ExpiresAt == nil {
		t.Error("Token should have expiration time")
	}

	expectedExpiry := time.Now().Add(duration)
	actualExpiry := claims.ExpiresAt.Time
	timeDiff := actualExpiry.Sub(expectedExpiry).Abs()

	if timeDiff > time.Second {
		t.Errorf("Token expiry time differs by more than 1 second: expected ~%v, got %v", expectedExpiry, actualExpiry)
	}
}

func TestJWTAuth_ValidateToken_InvalidSecret(t *testing.T) {
	jwtAuth1 := NewJWTAuth("secret-1")
	jwtAuth2 := NewJWTAuth("secret-2")

	// Generate token with first secret
	token, err := jwtAuth1.GenerateToken("test-client", time.Hour)
	if err != nil {
		t.Fatalf("Failed to generate token: %v", err)
	}

	// Try to validate with different secret
	_, err = jwtAuth2.ValidateToken(token)
	if err == nil {
		t.Error("Expected validation to fail with different secret")
	}
}

func TestJWTAuth_ValidateToken_ExpiredToken(t *testing.T) {
	jwtAuth := NewJWTAuth("test-secret")

	// Generate token with very short expiration
	token, err := jwtAuth.GenerateToken("test-client", time.Millisecond)
	if err != nil {
		t.Fatalf("Failed to generate token: %v", err)
	}

	// Wait for token to expire
	time.Sleep(10 * time.Millisecond)

	// Try to validate expired token
	_, err = jwtAuth.ValidateToken(token)
	if err == nil {
		t.Error("Expected validation to fail for expired token")
	}
}

func TestJWTAuth_ValidateToken_MalformedToken(t *testing.T) {
	jwtAuth := NewJWTAuth("test-secret")

	testCases := []struct {
		name  string
		token string
	}{
		{"empty token", ""},
		{"invalid format", "not.a.jwt"},
		{"random string", "random-string"},
		{"partial token", "eyJhbGciOiJIUzI1NiIsInR5cCI6IkpXVCJ9"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := jwtAuth.ValidateToken(tc.token)
			if err == nil {
				t.Errorf("Expected validation to fail for %s", tc.name)
			}
		})
	}
}

func TestJWTAuth_ValidateToken_MissingClientID(t *testing.T) {
	jwtAuth := NewJWTAuth("test-secret")

	// Create token without a subject
	claims := &JWTClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString(jwtAuth.secret)
	if err != nil {
		t.Fatalf("Failed to sign token: %v", err)
	}

	// Try to validate token without a client id
	_, err = jwtAuth.ValidateToken(tokenString)
	if err == nil {
		t.Error("Expected validation to fail for missing client id")
	}
}

func TestJWTAuth_TokenRoundTrip(t *testing.T) {
	jwtAuth := NewJWTAuth("test-secret-roundtrip")

	testCases := []struct {
		clientID string
		duration time.Duration
	}{
		{"client-1", time.Hour},
		{"client-with-special-chars-@#$", 30 * time.Minute},
		{"very-long-client-id-with-many-characters", 24 * time.Hour},
		{"123", time.Minute},
	}

	for _, tc := range testCases {
		t.Run(tc.clientID, func(t *testing.T) {
			token, err := jwtAuth.GenerateToken(tc.clientID, tc.duration)
			if err != nil {
				t.Fatalf("Failed to generate token: %v", err)
			}

			claims, err := jwtAuth.ValidateToken(token)
			if err != nil {
				t.Fatalf("Failed to validate token: %v", err)
			}

			if claims.Subject != tc.clientID {
				t.Errorf("client ID mismatch: expected %s, got %s", tc.clientID, claims.Subject)
			}

			if claims.ExpiresAt != nil && claims.ExpiresAt.Before(time.Now()) {
				t.Error("Token should not be expired immediately after generation")
			}
		})
	}
}
