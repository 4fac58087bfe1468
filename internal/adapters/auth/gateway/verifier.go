package gateway

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"patient-portal/internal/ports/auth"
)

var (
	ErrTokenEmpty = errors.New("token is empty")
)

// Verifier implementa auth.AuthVerifier contra el gateway.
// Se instancia desde main/router cuando AUTH_BASE_URL está configurado.
type Verifier struct {
	client *Client
}

func NewVerifier(client *Client) *Verifier {
	return &Verifier{client: client}
}

func (v *Verifier) Verify(ctx context.Context, token string) (auth.Claims, error) {
	if v == nil || v.client == nil {
		return auth.Claims{}, ErrGatewayNotConfigured
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return auth.Claims{}, ErrTokenEmpty
	}

	claims, err := v.client.VerifyToken(ctx, token)
	if err != nil {
		return auth.Claims{}, fmt.Errorf("gateway verify failed: %w", err)
	}

	claims.UserID = strings.TrimSpace(claims.UserID)
	if claims.UserID == "" {
		return auth.Claims{}, errors.New("gateway claims missing user id")
	}
	// Sin rol no podemos decidir qué se muestra; mejor cortar acá que adivinar.
	if claims.Role != auth.RolePatient && claims.Role != auth.RoleDoctor {
		return auth.Claims{}, errors.New("gateway claims missing role")
	}

	return claims, nil
}
