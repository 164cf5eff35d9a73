package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"flyer-agent/internal/domain"
)

// IdentityVerifier valida un bearer token y devuelve la identidad verificada.
type IdentityVerifier interface {
	Verify(ctx context.Context, token string) (domain.Identity, error)
}

// SupabaseClaims son los claims de un access token emitido por Supabase Auth.
type SupabaseClaims struct {
	Email string `json:"email,omitempty"`
	Role  string `json:"role,omitempty"`
	jwt.RegisteredClaims
}

// JWTVerifier valida access tokens HS256 firmados con el secreto del proyecto.
type JWTVerifier struct {
	secret   []byte
	audience string
}

func NewJWTVerifier(secret, audience string) *JWTVerifier {
	return &JWTVerifier{secret: []byte(secret), audience: strings.TrimSpace(audience)}
}

func (v *JWTVerifier) Verify(_ context.Context, token string) (domain.Identity, error) {
	if v == nil || len(v.secret) == 0 {
		return domain.Identity{}, fmt.Errorf("%w: jwt secret not configured", domain.ErrAuth)
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return domain.Identity{}, fmt.Errorf("%w: empty token", domain.ErrAuth)
	}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
	}
	if v.audience != "" {
		opts = append(opts, jwt.WithAudience(v.audience))
	}

	var claims SupabaseClaims
	_, err := jwt.NewParser(opts...).ParseWithClaims(token, &claims, func(_ *jwt.Token) (any, error) {
		return v.secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return domain.Identity{}, fmt.Errorf("%w: token expired", domain.ErrAuth)
		}
		return domain.Identity{}, fmt.Errorf("%w: invalid token", domain.ErrAuth)
	}

	userID := strings.TrimSpace(claims.Subject)
	if userID == "" {
		return domain.Identity{}, fmt.Errorf("%w: token without subject", domain.ErrAuth)
	}
	return domain.Identity{UserID: userID, Email: claims.Email, Role: claims.Role}, nil
}

// IssueToken firma un access token compatible; se usa en desarrollo y tests.
func (v *JWTVerifier) IssueToken(userID, email string, ttl time.Duration) (string, error) {
	if len(v.secret) == 0 {
		return "", fmt.Errorf("%w: jwt secret not configured", domain.ErrAuth)
	}
	if ttl <= 0 {
		ttl = time.Hour
	}
	now := time.Now().UTC()
	claims := SupabaseClaims{
		Email: email,
		Role:  "authenticated",
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	if v.audience != "" {
		claims.Audience = jwt.ClaimStrings{v.audience}
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(v.secret)
}

// SupabaseVerifier delega la validacion en GET /auth/v1/user del proyecto.
type SupabaseVerifier struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

func NewSupabaseVerifier(baseURL, apiKey string, httpClient *http.Client) *SupabaseVerifier {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 5 * time.Second}
	}
	return &SupabaseVerifier{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		client:  httpClient,
	}
}

func (v *SupabaseVerifier) Verify(ctx context.Context, token string) (domain.Identity, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return domain.Identity{}, fmt.Errorf("%w: empty token", domain.ErrAuth)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, v.baseURL+"/auth/v1/user", nil)
	if err != nil {
		return domain.Identity{}, fmt.Errorf("%w: create request: %v", domain.ErrAuth, err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("apikey", v.apiKey)

	resp, err := v.client.Do(req)
	if err != nil {
		return domain.Identity{}, fmt.Errorf("%w: identity provider unreachable: %v", domain.ErrAuth, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return domain.Identity{}, fmt.Errorf("%w: read response: %v", domain.ErrAuth, err)
	}
	if resp.StatusCode != http.StatusOK {
		return domain.Identity{}, fmt.Errorf("%w: identity provider status %d", domain.ErrAuth, resp.StatusCode)
	}

	var user struct {
		ID    string `json:"id"`
		Email string `json:"email"`
		Role  string `json:"role"`
	}
	if err := json.Unmarshal(body, &user); err != nil {
		return domain.Identity{}, fmt.Errorf("%w: decode user: %v", domain.ErrAuth, err)
	}
	if strings.TrimSpace(user.ID) == "" {
		return domain.Identity{}, fmt.Errorf("%w: user without id", domain.ErrAuth)
	}
	return domain.Identity{UserID: user.ID, Email: user.Email, Role: user.Role}, nil
}
