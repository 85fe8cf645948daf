// Package auth gates the API behind portal-issued session tokens.
package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
)

// Session is the portal's view of an authenticated user.
type Session struct {
	UserID    string `json:"userId"`
	Email     string `json:"email"`
	Nome      string `json:"nome"`
	ExpiresAt string `json:"expiresAt"`
}

// VerifyResponse is the portal's verdict on a token.
type VerifyResponse struct {
	Valid   bool    `json:"valid"`
	Session Session `json:"session"`
}

type verifyRequest struct {
	SessionToken string `json:"sessionToken"`
}

// SessionVerifier asks an authority whether a token is valid.
type SessionVerifier interface {
	Verify(ctx context.Context, token string) (VerifyResponse, error)
}

// PortalClient verifies tokens against the external portal.
type PortalClient struct {
	client *resty.Client
}

// NewPortalClient builds the portal HTTP client. Transient failures are
// retried twice before the verdict is treated as unavailable.
func NewPortalClient(baseURL string, timeout time.Duration) *PortalClient {
	client := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(timeout).
		SetRetryCount(2).
		SetRetryWaitTime(200 * time.Millisecond).
		SetHeader("Content-Type", "application/json")
	return &PortalClient{client: client}
}

// Verify posts the token to the portal's verify-session endpoint.
func (p *PortalClient) Verify(ctx context.Context, token string) (VerifyResponse, error) {
	resp, err := p.client.R().
		SetContext(ctx).
		SetBody(verifyRequest{SessionToken: token}).
		Post("/api/verify-session")
	if err != nil {
		return VerifyResponse{}, fmt.Errorf("auth: portal request: %w", err)
	}
	if resp.IsError() {
		return VerifyResponse{}, fmt.Errorf("auth: portal status %d", resp.StatusCode())
	}

	var out VerifyResponse
	if err := json.Unmarshal(resp.Body(), &out); err != nil {
		return VerifyResponse{}, fmt.Errorf("auth: portal response: %w", err)
	}
	return out, nil
}
