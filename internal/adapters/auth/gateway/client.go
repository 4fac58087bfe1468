package gateway

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"patient-portal/internal/platform/httpclient"
	"patient-portal/internal/ports/auth"
)

var (
	ErrGatewayNotConfigured = errors.New("auth gateway client not configured")
	ErrGatewayUnauthorized  = errors.New("auth gateway unauthorized")
	ErrGatewayUpstream      = errors.New("auth gateway upstream error")
)

// Config del cliente del gateway de autenticación del portal.
// BaseURL y APIKey vienen de env vars (AUTH_BASE_URL / AUTH_API_KEY).
type Config struct {
	BaseURL string
	APIKey  string

	// Opcional: header donde se manda la API key. Default "X-Api-Key".
	APIKeyHeader string
	Timeout      time.Duration
}

type Client struct {
	http         *httpclient.Client
	apiKey       string
	apiKeyHeader string
}

func NewClient(cfg Config) (*Client, error) {
	h := strings.TrimSpace(cfg.APIKeyHeader)
	if h == "" {
		h = "X-Api-Key"
	}

	hc, err := httpclient.NewWithBaseURL(strings.TrimSpace(cfg.BaseURL), cfg.Timeout)
	if err != nil {
		return nil, err
	}

	return &Client{
		http:         hc,
		apiKey:       strings.TrimSpace(cfg.APIKey),
		apiKeyHeader: h,
	}, nil
}

func (c *Client) IsConfigured() bool {
	return c != nil && c.http != nil && c.http.BaseURL != "" && c.apiKey != ""
}

type verifyResponse struct {
	UserID string `json:"user_id"`
	Role   string `json:"role"`
	Email  string `json:"email"`
}

// VerifyToken valida un token de sesión contra el gateway y trae claims.
func (c *Client) VerifyToken(ctx context.Context, token string) (auth.Claims, error) {
	if !c.IsConfigured() {
		return auth.Claims{}, ErrGatewayNotConfigured
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return auth.Claims{}, ErrGatewayUnauthorized
	}

	headers := map[string]string{
		c.apiKeyHeader: c.apiKey,
		"Authorization": "Bearer " + token,
	}

	var out verifyResponse
	err := c.http.DoJSON(ctx, http.MethodPost, "/v1/tokens/verify", headers, map[string]string{"token": token}, &out)
	if err != nil {
		var he *httpclient.HTTPError
		if errors.As(err, &he) && (he.StatusCode == http.StatusUnauthorized || he.StatusCode == http.StatusForbidden) {
			return auth.Claims{}, ErrGatewayUnauthorized
		}
		return auth.Claims{}, fmt.Errorf("%w: %v", ErrGatewayUpstream, err)
	}

	return auth.Claims{
		UserID: strings.TrimSpace(out.UserID),
		Role:   auth.Role(strings.TrimSpace(out.Role)),
		Email:  strings.TrimSpace(out.Email),
	}, nil
}
