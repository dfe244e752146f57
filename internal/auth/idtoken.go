package auth

import (
	"context"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/focusflow/backend/internal/model"
)

const (
	defaultGoogleJWKSURL = "https://www.googleapis.com/oauth2/v3/certs"

	// jwksCacheTTL は取得した公開鍵セットのキャッシュ期間。
	jwksCacheTTL = time.Hour
)

// OriginWeb, OriginIOS はIDトークンの提示元クライアント種別。
// 種別ごとに期待するaudience（クライアントID）が異なる。
const (
	OriginWeb = "web"
	OriginIOS = "ios"
)

// googleIssuers はGoogleが発行するIDトークンの正当なissクレーム値。
var googleIssuers = []string{"accounts.google.com", "https://accounts.google.com"}

// IDTokenVerifierConfig はGoogleIDTokenVerifierの設定。
type IDTokenVerifierConfig struct {
	WebClientID string
	IOSClientID string

	Timeout time.Duration

	// Metrics はJWKS取得のレイテンシを記録する。nilの場合は記録しない。
	Metrics LatencyRecorder

	// テスト用にオーバーライド可能なURL
	JWKSURL string
}

// GoogleIDTokenVerifier はGoogleが署名したIDトークンをJWKS公開鍵で検証する。
// モバイルクライアントがネイティブサインインで取得したIDトークンの検証に使用する。
type GoogleIDTokenVerifier struct {
	config IDTokenVerifierConfig
	client *http.Client

	mu        sync.RWMutex
	keys      map[string]*rsa.PublicKey
	fetchedAt time.Time
}

// NewGoogleIDTokenVerifier はGoogleIDTokenVerifierを生成する。
func NewGoogleIDTokenVerifier(config IDTokenVerifierConfig) *GoogleIDTokenVerifier {
	if config.JWKSURL == "" {
		config.JWKSURL = defaultGoogleJWKSURL
	}
	if config.Timeout == 0 {
		config.Timeout = defaultProviderTimeout
	}
	return &GoogleIDTokenVerifier{
		config: config,
		client: &http.Client{Timeout: config.Timeout},
		keys:   map[string]*rsa.PublicKey{},
	}
}

// idTokenClaims はGoogleのIDトークンに含まれるクレーム。
type idTokenClaims struct {
	jwt.RegisteredClaims
	Email         string `json:"email"`
	EmailVerified bool   `json:"email_verified"`
	Name          string `json:"name"`
	Picture       string `json:"picture"`
}

// Verify はIDトークンの署名・発行者・宛先・期限を検証し、身元情報を返す。
// originに応じて期待するaudience（Web用/iOS用クライアントID）を切り替える。
// 検証失敗はErrInvalidIDToken、鍵セット取得失敗はErrProviderUnavailableを返す。
func (v *GoogleIDTokenVerifier) Verify(ctx context.Context, idToken, origin string) (*model.ExternalIdentity, error) {
	audience, err := v.audienceFor(origin)
	if err != nil {
		return nil, err
	}

	claims := &idTokenClaims{}
	token, err := jwt.ParseWithClaims(idToken, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodRSA); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		kid, ok := t.Header["kid"].(string)
		if !ok || kid == "" {
			return nil, fmt.Errorf("missing kid header")
		}
		return v.publicKey(ctx, kid)
	})
	if err != nil {
		if errors.Is(err, ErrProviderUnavailable) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalidIDToken, err)
	}
	if !token.Valid {
		return nil, ErrInvalidIDToken
	}

	if !validIssuer(claims.Issuer) {
		return nil, fmt.Errorf("%w: unexpected issuer %q", ErrInvalidIDToken, claims.Issuer)
	}
	if !containsAudience(claims.Audience, audience) {
		return nil, fmt.Errorf("%w: audience mismatch", ErrInvalidIDToken)
	}
	if claims.Subject == "" {
		return nil, fmt.Errorf("%w: empty sub claim", ErrInvalidIDToken)
	}
	// メールアドレスはユーザー解決のキーであるため、欠落は不正なトークンとして扱う
	if claims.Email == "" {
		return nil, fmt.Errorf("%w: empty email claim", ErrInvalidIDToken)
	}

	return &model.ExternalIdentity{
		Subject:       claims.Subject,
		Email:         claims.Email,
		EmailVerified: claims.EmailVerified,
		Name:          claims.Name,
		PictureURL:    claims.Picture,
	}, nil
}

// audienceFor はクライアント種別に対応するクライアントIDを返す。
func (v *GoogleIDTokenVerifier) audienceFor(origin string) (string, error) {
	switch origin {
	case OriginIOS:
		if v.config.IOSClientID == "" {
			return "", fmt.Errorf("%w: iOS client ID is not configured", ErrInvalidIDToken)
		}
		return v.config.IOSClientID, nil
	case OriginWeb, "":
		return v.config.WebClientID, nil
	default:
		return "", fmt.Errorf("%w: unknown origin %q", ErrInvalidIDToken, origin)
	}
}

// publicKey はkidに対応する公開鍵を返す。キャッシュが古い場合はJWKSを再取得する。
func (v *GoogleIDTokenVerifier) publicKey(ctx context.Context, kid string) (*rsa.PublicKey, error) {
	v.mu.RLock()
	key, ok := v.keys[kid]
	fresh := time.Since(v.fetchedAt) < jwksCacheTTL
	v.mu.RUnlock()

	if ok && fresh {
		return key, nil
	}

	if err := v.refreshKeys(ctx); err != nil {
		return nil, err
	}

	v.mu.RLock()
	key, ok = v.keys[kid]
	v.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unknown key ID: %s", kid)
	}
	return key, nil
}

// jwksResponse はJWKSエンドポイントのレスポンス。
type jwksResponse struct {
	Keys []struct {
		Kid string `json:"kid"`
		Kty string `json:"kty"`
		N   string `json:"n"`
		E   string `json:"e"`
	} `json:"keys"`
}

// refreshKeys はJWKSエンドポイントから公開鍵セットを取得しキャッシュを更新する。
func (v *GoogleIDTokenVerifier) refreshKeys(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, v.config.JWKSURL, nil)
	if err != nil {
		return fmt.Errorf("failed to create JWKS request: %w", err)
	}

	start := time.Now()
	resp, err := v.client.Do(req)
	if v.config.Metrics != nil {
		v.config.Metrics.RecordProviderLatency(time.Since(start))
	}
	if err != nil {
		return fmt.Errorf("%w: JWKS request: %v", ErrProviderUnavailable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%w: failed to read JWKS response: %v", ErrProviderUnavailable, err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: JWKS fetch failed with status %d", ErrProviderUnavailable, resp.StatusCode)
	}

	var jwks jwksResponse
	if err := json.Unmarshal(body, &jwks); err != nil {
		return fmt.Errorf("%w: failed to parse JWKS response: %v", ErrProviderUnavailable, err)
	}

	keys := make(map[string]*rsa.PublicKey, len(jwks.Keys))
	for _, k := range jwks.Keys {
		if k.Kty != "RSA" || k.Kid == "" {
			continue
		}
		pub, err := parseRSAKey(k.N, k.E)
		if err != nil {
			continue
		}
		keys[k.Kid] = pub
	}
	if len(keys) == 0 {
		return fmt.Errorf("%w: no usable keys in JWKS response", ErrProviderUnavailable)
	}

	v.mu.Lock()
	v.keys = keys
	v.fetchedAt = time.Now()
	v.mu.Unlock()

	return nil
}

// parseRSAKey はJWKのn/eパラメータからRSA公開鍵を復元する。
func parseRSAKey(n, e string) (*rsa.PublicKey, error) {
	nBytes, err := base64.RawURLEncoding.DecodeString(n)
	if err != nil {
		return nil, fmt.Errorf("failed to decode modulus: %w", err)
	}
	eBytes, err := base64.RawURLEncoding.DecodeString(e)
	if err != nil {
		return nil, fmt.Errorf("failed to decode exponent: %w", err)
	}

	return &rsa.PublicKey{
		N: new(big.Int).SetBytes(nBytes),
		E: int(new(big.Int).SetBytes(eBytes).Int64()),
	}, nil
}

func validIssuer(issuer string) bool {
	for _, iss := range googleIssuers {
		if issuer == iss {
			return true
		}
	}
	return false
}

func containsAudience(audience jwt.ClaimStrings, expected string) bool {
	for _, aud := range audience {
		if aud == expected {
			return true
		}
	}
	return false
}

// compile-time interface check
var _ IDTokenVerifier = (*GoogleIDTokenVerifier)(nil)
