package auth

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"
)

func TestJWT_GenerateAndValidate(t *testing.T) {
	j := NewJWT("my-secret-key")

	userID := "0b8f3c4e-7c1d-4f7a-9d8e-1a2b3c4d5e6f"
	username := "alice"

	token, err := j.Generate(userID, username)
	if err != nil {
		t.Fatalf("Generate() failed: %v", err)
	}
	if token == "" {
		t.Fatal("Generate() returned empty token")
	}

	claims, err := j.Validate(token)
	if err != nil {
		t.Fatalf("Validate() failed: %v", err)
	}
	if claims.UserID != userID {
		t.Errorf("Validate() got UserID %s, want %s", claims.UserID, userID)
	}
	if claims.Username != username {
		t.Errorf("Validate() got Username %s, want %s", claims.Username, username)
	}

	parts := strings.Split(token, ".")
	tampered := parts[0] + "." + parts[1] + ".invalid-signature"
	if _, err := j.Validate(tampered); !errors.Is(err, ErrInvalidSignature) {
		t.Errorf("Validate() tampered signature: got %v, want ErrInvalidSignature", err)
	}

	if _, err := j.Validate("invalid.token"); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("Validate() invalid format: got %v, want ErrInvalidToken", err)
	}
}

func TestJWT_WrongSecret(t *testing.T) {
	token, err := NewJWT("secret-a").Generate("user-1", "bob")
	if err != nil {
		t.Fatalf("Generate() failed: %v", err)
	}
	if _, err := NewJWT("secret-b").Validate(token); !errors.Is(err, ErrInvalidSignature) {
		t.Errorf("Validate() with other secret: got %v, want ErrInvalidSignature", err)
	}
}

func TestJWT_ExpiredToken(t *testing.T) {
	j := NewJWT("my-secret-key")

	header := map[string]string{"alg": "HS256", "typ": "JWT"}
	claims := JWTClaims{
		UserID:   "user-1",
		Username: "expired",
		Iat:      time.Now().Add(-25 * time.Hour).Unix(),
		Exp:      time.Now().Add(-1 * time.Hour).Unix(),
	}

	headerJSON, _ := json.Marshal(header)
	claimsJSON, _ := json.Marshal(claims)

	message := base64.RawURLEncoding.EncodeToString(headerJSON) + "." +
		base64.RawURLEncoding.EncodeToString(claimsJSON)
	token := message + "." + j.sign(message)

	if _, err := j.Validate(token); !errors.Is(err, ErrTokenExpired) {
		t.Errorf("Validate() expired token: got %v, want ErrTokenExpired", err)
	}
}

func TestJWT_WithTTL(t *testing.T) {
	j := NewJWT("my-secret-key").WithTTL(time.Minute)

	token, err := j.Generate("user-1", "carol")
	if err != nil {
		t.Fatalf("Generate() failed: %v", err)
	}
	claims, err := j.Validate(token)
	if err != nil {
		t.Fatalf("Validate() failed: %v", err)
	}
	if got := claims.Exp - claims.Iat; got != 60 {
		t.Errorf("token lifetime = %ds, want 60s", got)
	}
}
