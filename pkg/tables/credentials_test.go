package tables

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestStaticCredentials(t *testing.T) {
	c := NewStaticCredentials("anon")
	ctx := context.Background()

	if _, ok := c.UserToken(ctx, "foo@bar.com"); ok {
		t.Error("Expected no token before SetUserToken")
	}
	c.SetUserToken("foo@bar.com", "tok")
	if got, ok := c.UserToken(ctx, "foo@bar.com"); !ok || got != "tok" {
		t.Errorf("Expected tok, got %q %v", got, ok)
	}
	c.SetUserToken("foo@bar.com", "")
	if _, ok := c.UserToken(ctx, "foo@bar.com"); ok {
		t.Error("Expected token to be forgotten")
	}
	if c.ServiceKey() != "anon" {
		t.Errorf("Expected anon service key, got %q", c.ServiceKey())
	}
}

func TestTokenCache_ReusesValidTokens(t *testing.T) {
	calls := 0
	c := NewTokenCache("anon", func(ctx context.Context, email string) (Token, error) {
		calls++
		return Token{Token: "t-" + email, Expiry: time.Now().Add(time.Hour)}, nil
	})
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if got, ok := c.UserToken(ctx, "a@b.c"); !ok || got != "t-a@b.c" {
			t.Fatalf("Unexpected token %q %v", got, ok)
		}
	}
	if calls != 1 {
		t.Errorf("Expected a single issue call, got %d", calls)
	}
}

func TestTokenCache_RefreshesNearExpiry(t *testing.T) {
	calls := 0
	c := NewTokenCache("anon", func(ctx context.Context, email string) (Token, error) {
		calls++
		return Token{Token: "t", Expiry: time.Now().Add(30 * time.Second)}, nil
	})
	ctx := context.Background()

	c.UserToken(ctx, "a@b.c")
	c.UserToken(ctx, "a@b.c")
	if calls != 2 {
		t.Errorf("Expected a token expiring within a minute to be reissued, got %d calls", calls)
	}
}

func TestTokenCache_IssueFailure(t *testing.T) {
	c := NewTokenCache("anon", func(ctx context.Context, email string) (Token, error) {
		return Token{}, errors.New("auth down")
	})
	if _, ok := c.UserToken(context.Background(), "a@b.c"); ok {
		t.Error("Expected no token when the issuer fails")
	}

	empty := NewTokenCache("anon", nil)
	if _, ok := empty.UserToken(context.Background(), "a@b.c"); ok {
		t.Error("Expected no token without an issuer")
	}
	if empty.ServiceKey() != "anon" {
		t.Errorf("Expected anon service key, got %q", empty.ServiceKey())
	}
}
