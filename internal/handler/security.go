package handler

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"net/http"

	"github.com/Dmytriyev/plateforme-porsche-sub000/internal/domain/auth"
	"github.com/Dmytriyev/plateforme-porsche-sub000/internal/domain/cart"
)

// APIKeyHeader is the request header carrying the storefront API key.
const APIKeyHeader = "X-Api-Key"

type actorContextKey struct{}

// actorFrom extracts the authenticated actor set by SecurityMiddleware.
func actorFrom(ctx context.Context) (cart.Actor, bool) {
	a, ok := ctx.Value(actorContextKey{}).(cart.Actor)
	return a, ok
}

// SecurityMiddleware authenticates API requests via HMAC-SHA256 hashed API
// keys and attaches the resulting actor to the request context.
type SecurityMiddleware struct {
	apikeys auth.Repository
	pepper  []byte
}

// NewSecurityMiddleware creates a SecurityMiddleware with the given API key
// repository and HMAC pepper.
func NewSecurityMiddleware(apikeys auth.Repository, pepper []byte) *SecurityMiddleware {
	return &SecurityMiddleware{
		apikeys: apikeys,
		pepper:  pepper,
	}
}

// Handle validates the API key header before passing the request on. The
// stored hash is compared in constant time to prevent timing side-channels
// even though the lookup is already keyed by the computed hash.
func (s *SecurityMiddleware) Handle(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := r.Header.Get(APIKeyHeader)
		if key == "" {
			writeError(w, r, http.StatusUnauthorized, "missing API key")
			return
		}

		mac := hmac.New(sha256.New, s.pepper)
		mac.Write([]byte(key))
		hash := mac.Sum(nil)

		info, err := s.apikeys.FindByHash(r.Context(), hex.EncodeToString(hash))
		if err != nil {
			writeError(w, r, http.StatusUnauthorized, "unauthorized")
			return
		}

		stored, err := hex.DecodeString(info.KeyHash)
		if err != nil {
			writeError(w, r, http.StatusUnauthorized, "unauthorized")
			return
		}
		if subtle.ConstantTimeCompare(hash, stored) != 1 {
			writeError(w, r, http.StatusUnauthorized, "unauthorized")
			return
		}

		actor := cart.Actor{
			CustomerID: info.CustomerID,
			Admin:      info.Admin(),
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), actorContextKey{}, actor)))
	})
}
