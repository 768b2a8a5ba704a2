package transport

import (
	"context"
	"sync"
	"time"
)

// DefaultRefreshMargin triggers a proactive refresh this close to
// expiry instead of waiting for the upstream to reject the token.
const DefaultRefreshMargin = 2 * time.Minute

// TokenSource caches one account token and hands it to every channel.
// It refreshes proactively near expiry and falls back to a full login
// when the refresh token is rejected. Safe for concurrent use by the
// push loop, the poll loop and the dispatcher.
type TokenSource struct {
	auth   AuthProvider
	creds  Credentials
	margin time.Duration

	mu  sync.Mutex
	tok Token
}

// NewTokenSource builds a token source for the account.
func NewTokenSource(auth AuthProvider, creds Credentials, margin time.Duration) *TokenSource {
	if margin <= 0 {
		margin = DefaultRefreshMargin
	}
	return &TokenSource{auth: auth, creds: creds, margin: margin}
}

// Token returns a valid token, authenticating or refreshing as needed.
func (s *TokenSource) Token(ctx context.Context) (Token, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	switch {
	case s.tok.Value == "":
		tok, err := s.auth.Authenticate(ctx, s.creds)
		if err != nil {
			return Token{}, err
		}
		s.tok = tok
	case s.tok.NearExpiry(now, s.margin):
		tok, err := s.auth.Refresh(ctx, s.tok)
		if err != nil {
			tok, err = s.auth.Authenticate(ctx, s.creds)
			if err != nil {
				return Token{}, err
			}
		}
		s.tok = tok
	}
	return s.tok, nil
}

// Invalidate discards the cached token after an upstream rejection, so
// the next Token call performs a fresh exchange.
func (s *TokenSource) Invalidate() {
	s.mu.Lock()
	s.tok = Token{}
	s.mu.Unlock()
}
