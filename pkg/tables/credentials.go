package tables

import (
	"context"
	"sync"
	"time"
)

// Credentials supplies bearer tokens for the active identity.
type Credentials interface {
	// UserToken returns the token for email, or false if none is available.
	UserToken(ctx context.Context, email string) (string, bool)
	// ServiceKey is the service-level default credential, valid for reads only.
	ServiceKey() string
}

// StaticCredentials holds tokens handed over by the auth layer.
type StaticCredentials struct {
	Service string

	mu     sync.RWMutex
	tokens map[string]string
}

// NewStaticCredentials creates a provider with only a service key.
func NewStaticCredentials(serviceKey string) *StaticCredentials {
	return &StaticCredentials{Service: serviceKey, tokens: make(map[string]string)}
}

// SetUserToken stores the token for email. An empty token forgets it.
func (s *StaticCredentials) SetUserToken(email, token string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if token == "" {
		delete(s.tokens, email)
		return
	}
	s.tokens[email] = token
}

func (s *StaticCredentials) UserToken(_ context.Context, email string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.tokens[email]
	return t, ok
}

func (s *StaticCredentials) ServiceKey() string { return s.Service }

// Token is a bearer with its expiry.
type Token struct {
	Token  string
	Expiry time.Time
}

// TokenCache caches tokens minted by an issuer until shortly before expiry.
type TokenCache struct {
	cache sync.Map

	Issue   func(ctx context.Context, email string) (Token, error)
	Service string
}

// NewTokenCache creates a cache in front of issue.
func NewTokenCache(serviceKey string, issue func(ctx context.Context, email string) (Token, error)) *TokenCache {
	return &TokenCache{Issue: issue, Service: serviceKey}
}

func (c *TokenCache) UserToken(ctx context.Context, email string) (string, bool) {
	if got, ok := c.cache.Load(email); ok {
		t := got.(Token)
		if t.Expiry.After(time.Now().Add(time.Minute)) {
			return t.Token, true
		}
	}
	if c.Issue == nil {
		return "", false
	}
	t, err := c.Issue(ctx, email)
	if err != nil || t.Token == "" {
		return "", false
	}
	if t.Expiry.IsZero() {
		t.Expiry = time.Now().Add(45 * time.Minute)
	}
	c.cache.Store(email, t)
	return t.Token, true
}

func (c *TokenCache) ServiceKey() string { return c.Service }
