package httpapi

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"net/http"

	"github.com/lojinha-dev/lojinha/internal/domain/auth"
)

// Security authenticates back-office requests via HMAC-SHA256 hashed API
// keys passed in the api_key header.
type Security struct {
	apikeys auth.Repository
	pepper  []byte
}

// NewSecurity creates a Security guard with the given API key repository and
// HMAC pepper.
func NewSecurity(apikeys auth.Repository, pepper []byte) *Security {
	return &Security{
		apikeys: apikeys,
		pepper:  pepper,
	}
}

// Require wraps a handler, rejecting requests without a valid API key
// carrying the back-office scope.
func (s *Security) Require(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		key := r.Header.Get("api_key")
		if key == "" {
			respondError(w, r, http.StatusUnauthorized, "unauthorized")
			return
		}
		info, ok := s.authenticate(r, key)
		if !ok {
			respondError(w, r, http.StatusUnauthorized, "unauthorized")
			return
		}
		if !info.HasScope(auth.ScopeBackOffice) {
			respondError(w, r, http.StatusForbidden, "api key lacks the back_office scope")
			return
		}
		next(w, r)
	}
}

// authenticate computes the HMAC-SHA256 of the provided API key, looks it up,
// and performs a constant-time comparison to prevent timing attacks.
func (s *Security) authenticate(r *http.Request, key string) (*auth.APIKeyInfo, bool) {
	mac := hmac.New(sha256.New, s.pepper)
	mac.Write([]byte(key))
	hash := mac.Sum(nil)

	info, err := s.apikeys.FindByHash(r.Context(), hex.EncodeToString(hash))
	if err != nil {
		return nil, false
	}

	// Constant-time comparison guards against timing side-channels even though
	// the lookup already succeeded: the stored hash could differ from what we
	// computed if the repository returns a stale/wrong row.
	storedBytes, err := hex.DecodeString(info.KeyHash)
	if err != nil {
		return nil, false
	}
	if subtle.ConstantTimeCompare(hash, storedBytes) != 1 {
		return nil, false
	}
	return info, true
}
