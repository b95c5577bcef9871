package cms

import (
	"strings"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/MarkoPoloResearchLab/leadlens/internal/storage"
)

const (
	// DefaultNonceTTL bounds how long an issued session token stays valid.
	DefaultNonceTTL = 12 * time.Minute

	nonceCleanupInterval = 5 * time.Minute
)

// NonceStore issues and validates browser-session-bound anti-forgery tokens.
// Tokens expire after the configured TTL; validation does not consume them,
// so parallel page loads within one session keep working.
type NonceStore struct {
	timeToLive time.Duration
	values     *gocache.Cache
}

// NewNonceStore builds a store with the given TTL; non-positive values fall
// back to the default.
func NewNonceStore(timeToLive time.Duration) *NonceStore {
	if timeToLive <= 0 {
		timeToLive = DefaultNonceTTL
	}
	return &NonceStore{
		timeToLive: timeToLive,
		values:     gocache.New(timeToLive, nonceCleanupInterval),
	}
}

// Issue creates a fresh nonce bound to the given browser session.
func (store *NonceStore) Issue(sessionID string) string {
	nonce := storage.NewID()
	store.values.Set(nonce, strings.TrimSpace(sessionID), store.timeToLive)
	return nonce
}

// Validate reports whether the nonce exists, has not expired, and is bound to
// the presenting session.
func (store *NonceStore) Validate(nonce string, sessionID string) bool {
	trimmedNonce := strings.TrimSpace(nonce)
	if trimmedNonce == "" {
		return false
	}
	boundValue, found := store.values.Get(trimmedNonce)
	if !found {
		return false
	}
	boundSessionID, isString := boundValue.(string)
	return isString && boundSessionID == strings.TrimSpace(sessionID)
}
