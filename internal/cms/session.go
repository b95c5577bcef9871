package cms

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/sessions"

	"github.com/MarkoPoloResearchLab/leadlens/internal/storage"
)

const (
	// SessionCookieName names the browser session cookie.
	SessionCookieName = "leadlens_session"

	sessionValueKeySessionID = "session_id"
)

// NewSessionStore builds the cookie store backing browser sessions.
func NewSessionStore(sessionSecret string) *sessions.CookieStore {
	cookieStore := sessions.NewCookieStore([]byte(sessionSecret))
	cookieStore.Options.HttpOnly = true
	cookieStore.Options.SameSite = http.SameSiteLaxMode
	return cookieStore
}

// EnsureBrowserSession returns the stable identifier of the caller's browser
// session, creating and persisting a new session when none exists yet. The
// cookie store returns a usable fresh session even when the inbound cookie is
// malformed, so decode errors are not fatal.
func EnsureBrowserSession(cookieStore *sessions.CookieStore, ginContext *gin.Context) (string, error) {
	browserSession, _ := cookieStore.Get(ginContext.Request, SessionCookieName)
	existingID, hasID := browserSession.Values[sessionValueKeySessionID].(string)
	if hasID && strings.TrimSpace(existingID) != "" {
		return existingID, nil
	}
	freshID := storage.NewID()
	browserSession.Values[sessionValueKeySessionID] = freshID
	if saveErr := browserSession.Save(ginContext.Request, ginContext.Writer); saveErr != nil {
		return "", saveErr
	}
	return freshID, nil
}
