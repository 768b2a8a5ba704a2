package transport

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestTokenSource_AuthenticatesOnceAndCaches(t *testing.T) {
	t.Parallel()

	auth := &FakeAuth{Tok: Token{Value: "tok", ExpiresAt: time.Now().Add(time.Hour)}}
	src := NewTokenSource(auth, Credentials{Username: "u"}, time.Minute)

	for i := 0; i < 3; i++ {
		tok, err := src.Token(context.Background())
		if err != nil {
			t.Fatalf("Token: %v", err)
		}
		if tok.Value != "tok" {
			t.Fatalf("token = %+v", tok)
		}
	}

	if calls, _ := auth.Calls(); calls != 1 {
		t.Fatalf("auth calls = %d, want 1", calls)
	}
}

func TestTokenSource_RefreshesNearExpiry(t *testing.T) {
	t.Parallel()

	auth := &FakeAuth{Tok: Token{Value: "first", ExpiresAt: time.Now().Add(30 * time.Second)}}
	src := NewTokenSource(auth, Credentials{}, time.Minute)

	if _, err := src.Token(context.Background()); err != nil {
		t.Fatalf("Token: %v", err)
	}

	// Cached token expires inside the margin, so the next call refreshes.
	auth.Tok = Token{Value: "second", ExpiresAt: time.Now().Add(time.Hour)}
	tok, err := src.Token(context.Background())
	if err != nil {
		t.Fatalf("Token: %v", err)
	}
	if tok.Value != "second" {
		t.Fatalf("token = %q, want refreshed", tok.Value)
	}
	if _, refreshes := auth.Calls(); refreshes != 1 {
		t.Fatalf("refresh calls = %d, want 1", refreshes)
	}
}

func TestTokenSource_RefreshFailureFallsBackToLogin(t *testing.T) {
	t.Parallel()

	auth := &FakeAuth{
		Tok:        Token{Value: "tok", ExpiresAt: time.Now().Add(30 * time.Second)},
		RefreshErr: errors.New("refresh token revoked"),
	}
	src := NewTokenSource(auth, Credentials{}, time.Minute)

	if _, err := src.Token(context.Background()); err != nil {
		t.Fatalf("first Token: %v", err)
	}
	if _, err := src.Token(context.Background()); err != nil {
		t.Fatalf("fallback Token: %v", err)
	}

	if calls, _ := auth.Calls(); calls != 2 {
		t.Fatalf("auth calls = %d, want fallback login", calls)
	}
}

func TestTokenSource_InvalidateForcesFreshExchange(t *testing.T) {
	t.Parallel()

	auth := &FakeAuth{Tok: Token{Value: "tok", ExpiresAt: time.Now().Add(time.Hour)}}
	src := NewTokenSource(auth, Credentials{}, time.Minute)

	if _, err := src.Token(context.Background()); err != nil {
		t.Fatalf("Token: %v", err)
	}
	src.Invalidate()
	if _, err := src.Token(context.Background()); err != nil {
		t.Fatalf("Token after invalidate: %v", err)
	}

	if calls, _ := auth.Calls(); calls != 2 {
		t.Fatalf("auth calls = %d, want 2 after invalidate", calls)
	}
}
