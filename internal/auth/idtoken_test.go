package auth

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"encoding/base64"
	"errors"
	"fmt"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// testSigner はテスト用のRSA鍵ペアとJWKSサーバーを提供する。
type testSigner struct {
	key    *rsa.PrivateKey
	kid    string
	server *httptest.Server
}

func newTestSigner(t *testing.T) *testSigner {
	t.Helper()

	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("Failed to generate RSA key: %v", err)
	}

	s := &testSigner{key: key, kid: "test-kid-1"}

	n := base64.RawURLEncoding.EncodeToString(key.N.Bytes())
	e := base64.RawURLEncoding.EncodeToString(big.NewInt(int64(key.E)).Bytes())
	jwksBody := fmt.Sprintf(`{"keys": [{"kid": %q, "kty": "RSA", "alg": "RS256", "use": "sig", "n": %q, "e": %q}]}`,
		s.kid, n, e)

	s.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(jwksBody))
	}))
	t.Cleanup(s.server.Close)

	return s
}

// sign は指定クレームのIDトークンを署名する。
func (s *testSigner) sign(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()

	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	token.Header["kid"] = s.kid
	signed, err := token.SignedString(s.key)
	if err != nil {
		t.Fatalf("Failed to sign token: %v", err)
	}
	return signed
}

func validClaims(audience string) jwt.MapClaims {
	now := time.Now()
	return jwt.MapClaims{
		"iss":            "https://accounts.google.com",
		"aud":            audience,
		"sub":            "google-sub-456",
		"email":          "hanako@example.com",
		"email_verified": true,
		"name":           "鈴木花子",
		"picture":        "https://example.com/hanako.jpg",
		"iat":            now.Unix(),
		"exp":            now.Add(time.Hour).Unix(),
	}
}

func TestVerifyIDTokenSuccess(t *testing.T) {
	signer := newTestSigner(t)
	verifier := NewGoogleIDTokenVerifier(IDTokenVerifierConfig{
		WebClientID: "web-client-id",
		IOSClientID: "ios-client-id",
		JWKSURL:     signer.server.URL,
	})

	idToken := signer.sign(t, validClaims("web-client-id"))

	ident, err := verifier.Verify(context.Background(), idToken, OriginWeb)
	if err != nil {
		t.Fatalf("Verify failed: %v", err)
	}
	if ident.Subject != "google-sub-456" {
		t.Errorf("Expected subject 'google-sub-456', got '%s'", ident.Subject)
	}
	if ident.Email != "hanako@example.com" {
		t.Errorf("Expected email 'hanako@example.com', got '%s'", ident.Email)
	}
	if !ident.EmailVerified {
		t.Error("Expected email_verified to be true")
	}
}

func TestVerifyIDTokenIOSAudience(t *testing.T) {
	signer := newTestSigner(t)
	verifier := NewGoogleIDTokenVerifier(IDTokenVerifierConfig{
		WebClientID: "web-client-id",
		IOSClientID: "ios-client-id",
		JWKSURL:     signer.server.URL,
	})

	idToken := signer.sign(t, validClaims("ios-client-id"))

	// iOS向けトークンはiOSオリジンでのみ検証に成功する
	if _, err := verifier.Verify(context.Background(), idToken, OriginIOS); err != nil {
		t.Errorf("Verify with ios origin failed: %v", err)
	}
	if _, err := verifier.Verify(context.Background(), idToken, OriginWeb); !errors.Is(err, ErrInvalidIDToken) {
		t.Errorf("Expected ErrInvalidIDToken for web origin, got %v", err)
	}
}

func TestVerifyIDTokenWrongAudience(t *testing.T) {
	signer := newTestSigner(t)
	verifier := NewGoogleIDTokenVerifier(IDTokenVerifierConfig{
		WebClientID: "web-client-id",
		JWKSURL:     signer.server.URL,
	})

	idToken := signer.sign(t, validClaims("attacker-client-id"))

	_, err := verifier.Verify(context.Background(), idToken, OriginWeb)
	if !errors.Is(err, ErrInvalidIDToken) {
		t.Errorf("Expected ErrInvalidIDToken, got %v", err)
	}
}

func TestVerifyIDTokenWrongIssuer(t *testing.T) {
	signer := newTestSigner(t)
	verifier := NewGoogleIDTokenVerifier(IDTokenVerifierConfig{
		WebClientID: "web-client-id",
		JWKSURL:     signer.server.URL,
	})

	claims := validClaims("web-client-id")
	claims["iss"] = "https://evil.example.com"
	idToken := signer.sign(t, claims)

	_, err := verifier.Verify(context.Background(), idToken, OriginWeb)
	if !errors.Is(err, ErrInvalidIDToken) {
		t.Errorf("Expected ErrInvalidIDToken, got %v", err)
	}
}

func TestVerifyIDTokenExpired(t *testing.T) {
	signer := newTestSigner(t)
	verifier := NewGoogleIDTokenVerifier(IDTokenVerifierConfig{
		WebClientID: "web-client-id",
		JWKSURL:     signer.server.URL,
	})

	claims := validClaims("web-client-id")
	claims["exp"] = time.Now().Add(-time.Hour).Unix()
	idToken := signer.sign(t, claims)

	_, err := verifier.Verify(context.Background(), idToken, OriginWeb)
	if !errors.Is(err, ErrInvalidIDToken) {
		t.Errorf("Expected ErrInvalidIDToken, got %v", err)
	}
}

func TestVerifyIDTokenMissingEmail(t *testing.T) {
	signer := newTestSigner(t)
	verifier := NewGoogleIDTokenVerifier(IDTokenVerifierConfig{
		WebClientID: "web-client-id",
		JWKSURL:     signer.server.URL,
	})

	// emailクレームを欠くトークンは署名が正しくても拒否する
	claims := validClaims("web-client-id")
	delete(claims, "email")
	idToken := signer.sign(t, claims)

	_, err := verifier.Verify(context.Background(), idToken, OriginWeb)
	if !errors.Is(err, ErrInvalidIDToken) {
		t.Errorf("Expected ErrInvalidIDToken for missing email, got %v", err)
	}
}

func TestVerifyIDTokenRecordsJWKSLatency(t *testing.T) {
	signer := newTestSigner(t)
	recorder := &stubLatencyRecorder{}
	verifier := NewGoogleIDTokenVerifier(IDTokenVerifierConfig{
		WebClientID: "web-client-id",
		JWKSURL:     signer.server.URL,
		Metrics:     recorder,
	})

	idToken := signer.sign(t, validClaims("web-client-id"))

	if _, err := verifier.Verify(context.Background(), idToken, OriginWeb); err != nil {
		t.Fatalf("Verify failed: %v", err)
	}
	if recorder.calls != 1 {
		t.Errorf("Expected 1 latency observation after first verify, got %d", recorder.calls)
	}

	// 2回目はキャッシュ済みの鍵を使うためJWKSへは往復しない
	if _, err := verifier.Verify(context.Background(), idToken, OriginWeb); err != nil {
		t.Fatalf("Second verify failed: %v", err)
	}
	if recorder.calls != 1 {
		t.Errorf("Expected no additional latency observation on cached key, got %d", recorder.calls)
	}
}

func TestVerifyIDTokenJWKSUnreachable(t *testing.T) {
	signer := newTestSigner(t)
	jwksServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	jwksServer.Close() // 到達不能なエンドポイントにする

	verifier := NewGoogleIDTokenVerifier(IDTokenVerifierConfig{
		WebClientID: "web-client-id",
		JWKSURL:     jwksServer.URL,
	})

	idToken := signer.sign(t, validClaims("web-client-id"))

	_, err := verifier.Verify(context.Background(), idToken, OriginWeb)
	if !errors.Is(err, ErrProviderUnavailable) {
		t.Errorf("Expected ErrProviderUnavailable, got %v", err)
	}
}

func TestVerifyIDTokenUnknownOrigin(t *testing.T) {
	signer := newTestSigner(t)
	verifier := NewGoogleIDTokenVerifier(IDTokenVerifierConfig{
		WebClientID: "web-client-id",
		JWKSURL:     signer.server.URL,
	})

	idToken := signer.sign(t, validClaims("web-client-id"))

	_, err := verifier.Verify(context.Background(), idToken, "android")
	if !errors.Is(err, ErrInvalidIDToken) {
		t.Errorf("Expected ErrInvalidIDToken, got %v", err)
	}
}

func TestVerifyIDTokenHMACRejected(t *testing.T) {
	signer := newTestSigner(t)
	verifier := NewGoogleIDTokenVerifier(IDTokenVerifierConfig{
		WebClientID: "web-client-id",
		JWKSURL:     signer.server.URL,
	})

	// RS256以外のアルゴリズムで署名されたトークンは拒否する
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, validClaims("web-client-id"))
	token.Header["kid"] = signer.kid
	signed, err := token.SignedString([]byte("secret"))
	if err != nil {
		t.Fatalf("Failed to sign token: %v", err)
	}

	_, err = verifier.Verify(context.Background(), signed, OriginWeb)
	if !errors.Is(err, ErrInvalidIDToken) {
		t.Errorf("Expected ErrInvalidIDToken, got %v", err)
	}
}
