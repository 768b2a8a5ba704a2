package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"climate_hub/internal/models"
)

// RESTAuth authenticates against the cloud's token endpoint.
type RESTAuth struct {
	authURL string
	client  *http.Client
}

// NewRESTAuth builds an auth provider for the given endpoint base URL.
func NewRESTAuth(authURL string, timeout time.Duration) *RESTAuth {
	if timeout <= 0 {
		timeout = defaultHTTPTimeout
	}
	return &RESTAuth{
		authURL: authURL,
		client:  &http.Client{Timeout: timeout},
	}
}

type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int    `json:"expires_in"` // seconds
}

// Authenticate exchanges credentials for a token pair.
func (a *RESTAuth) Authenticate(ctx context.Context, creds Credentials) (Token, error) {
	payload := map[string]string{
		"username": creds.Username,
		"password": creds.Password,
	}
	return a.tokenRequest(ctx, "/v1/auth/login", payload)
}

// Refresh exchanges the refresh token for a fresh token pair.
func (a *RESTAuth) Refresh(ctx context.Context, tok Token) (Token, error) {
	payload := map[string]string{
		"grant_type":    "refresh_token",
		"refresh_token": tok.RefreshValue,
	}
	return a.tokenRequest(ctx, "/v1/auth/refresh", payload)
}

func (a *RESTAuth) tokenRequest(ctx context.Context, path string, payload map[string]string) (Token, error) {
	buf, err := json.Marshal(payload)
	if err != nil {
		return Token{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.authURL+path, bytes.NewReader(buf))
	if err != nil {
		return Token{}, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		return Token{}, fmt.Errorf("%w: %v", models.ErrUpstreamUnavailable, err)
	}
	defer func() { _ = resp.Body.Close() }()

	switch {
	case resp.StatusCode == http.StatusUnauthorized, resp.StatusCode == http.StatusForbidden:
		return Token{}, models.ErrAuthExpired
	case resp.StatusCode >= 400:
		return Token{}, fmt.Errorf("%w: auth status %d", models.ErrUpstreamUnavailable, resp.StatusCode)
	}

	var tr tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tr); err != nil {
		return Token{}, fmt.Errorf("decode token response: %w", err)
	}
	return Token{
		Value:        tr.AccessToken,
		RefreshValue: tr.RefreshToken,
		ExpiresAt:    time.Now().UTC().Add(time.Duration(tr.ExpiresIn) * time.Second),
	}, nil
}
