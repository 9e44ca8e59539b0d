// Package auth authorizes requests against instance memory. Two schemes are
// supported: an operator session that owns the instance, and the instance's
// own bearer credential used by agents to self-report decisions. A chain
// tries the schemes in a fixed order.
package auth

import (
	"context"
	"crypto/subtle"
	"errors"
	"net/http"
	"strings"

	"github.com/openclaw/nexus/internal/storage"
)

// ErrUnauthorized is returned when no scheme accepts the request.
var ErrUnauthorized = errors.New("auth: unauthorized")

// Authorizer decides whether a request may act on the given instance.
type Authorizer interface {
	Authorize(ctx context.Context, r *http.Request, instanceID string) error
}

// SessionVerifier resolves a session token to the set of instances its owner
// controls. Implementations live with the hosting platform, not here.
type SessionVerifier interface {
	// OwnsInstance reports whether the session identified by token owns the
	// instance. An invalid or expired token is not an error, just false.
	OwnsInstance(ctx context.Context, token, instanceID string) (bool, error)
}

// sessionCookie is the cookie carrying the operator session token.
const sessionCookie = "nexus_session"

// SessionAuthorizer accepts requests carrying a valid operator session that
// owns the target instance.
type SessionAuthorizer struct {
	sessions SessionVerifier
}

// NewSessionAuthorizer creates a session-based authorizer.
func NewSessionAuthorizer(sessions SessionVerifier) *SessionAuthorizer {
	return &SessionAuthorizer{sessions: sessions}
}

func (a *SessionAuthorizer) Authorize(ctx context.Context, r *http.Request, instanceID string) error {
	cookie, err := r.Cookie(sessionCookie)
	if err != nil || cookie.Value == "" {
		return ErrUnauthorized
	}
	owns, err := a.sessions.OwnsInstance(ctx, cookie.Value, instanceID)
	if err != nil {
		return err
	}
	if !owns {
		return ErrUnauthorized
	}
	return nil
}

// BearerAuthorizer accepts requests presenting the instance's rotatable API
// credential as a bearer token.
type BearerAuthorizer struct {
	configs storage.ConfigStore
}

// NewBearerAuthorizer creates a bearer-credential authorizer backed by the
// config store.
func NewBearerAuthorizer(configs storage.ConfigStore) *BearerAuthorizer {
	return &BearerAuthorizer{configs: configs}
}

func (a *BearerAuthorizer) Authorize(ctx context.Context, r *http.Request, instanceID string) error {
	header := r.Header.Get("Authorization")
	if !strings.HasPrefix(header, "Bearer ") {
		return ErrUnauthorized
	}
	token := strings.TrimPrefix(header, "Bearer ")

	config, err := a.configs.GetOrCreateConfig(ctx, instanceID)
	if err != nil {
		return err
	}
	if config.APIKey == "" {
		return ErrUnauthorized
	}
	if subtle.ConstantTimeCompare([]byte(token), []byte(config.APIKey)) != 1 {
		return ErrUnauthorized
	}
	return nil
}

// Chain tries each authorizer in order and accepts on the first success.
// Non-authorization failures (storage errors) abort the chain immediately so
// an outage cannot be mistaken for a bad credential.
type Chain []Authorizer

func (c Chain) Authorize(ctx context.Context, r *http.Request, instanceID string) error {
	for _, a := range c {
		err := a.Authorize(ctx, r, instanceID)
		if err == nil {
			return nil
		}
		if !errors.Is(err, ErrUnauthorized) {
			return err
		}
	}
	return ErrUnauthorized
}
