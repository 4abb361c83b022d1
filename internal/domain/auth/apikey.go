package auth

import (
	"context"

	"github.com/go-faster/errors"
)

// ScopeAdmin lets a key act on carts owned by other customers.
const ScopeAdmin = "admin"

// ErrKeyNotFound is returned when no active key matches the given hash.
var ErrKeyNotFound = errors.New("api key not found")

// APIKeyInfo holds the identity and permission data for a validated API key.
// Every key belongs to a customer; storefront sessions act as that customer.
type APIKeyInfo struct {
	ID         string
	KeyHash    string
	CustomerID string
	Name       string
	Scopes     []string
}

// Admin reports whether the key carries the admin scope.
func (k *APIKeyInfo) Admin() bool {
	for _, s := range k.Scopes {
		if s == ScopeAdmin {
			return true
		}
	}
	return false
}

// Repository provides lookup of API keys by their HMAC hash.
type Repository interface {
	FindByHash(ctx context.Context, hash string) (*APIKeyInfo, error)
}
