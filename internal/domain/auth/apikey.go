// Package auth models the API keys guarding back-office operations.
package auth

import (
	"context"

	"github.com/go-faster/errors"
)

// ErrNotFound is returned when no active key matches the presented hash.
var ErrNotFound = errors.New("api key not found")

// ScopeBackOffice allows shipping, delivery confirmation and sales reports.
const ScopeBackOffice = "back_office"

// APIKeyInfo is a validated API key with its granted scopes. Only the
// HMAC-SHA256 hash of a key is ever stored.
type APIKeyInfo struct {
	ID      string
	KeyHash string
	Name    string
	Scopes  []string
}

// HasScope reports whether the key grants the given scope.
func (k *APIKeyInfo) HasScope(scope string) bool {
	for _, s := range k.Scopes {
		if s == scope {
			return true
		}
	}
	return false
}

// Repository provides API key lookup by key hash.
type Repository interface {
	FindByHash(ctx context.Context, hash string) (*APIKeyInfo, error)
}
