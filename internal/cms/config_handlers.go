package cms

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/sessions"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/MarkoPoloResearchLab/leadlens/internal/dashboard"
)

const (
	jsonKeySuccess = "success"
	jsonKeyData    = "data"
	jsonKeyMessage = "message"
)

// Config wires the CMS HTTP surface.
type Config struct {
	Database      *gorm.DB
	Logger        *zap.Logger
	SessionStore  *sessions.CookieStore
	NonceStore    *NonceStore
	PublicBaseURL string
	BookingLink   string
	UseAjaxProxy  bool
}

// Handlers serves the dashboard configuration, visitor-record, and admin
// endpoints.
type Handlers struct {
	database      *gorm.DB
	logger        *zap.Logger
	sessionStore  *sessions.CookieStore
	nonceStore    *NonceStore
	publicBaseURL string
	bookingLink   string
	useAjaxProxy  bool
}

// NewHandlers builds the handler set. A nil logger is replaced with a no-op.
func NewHandlers(config Config) *Handlers {
	logger := config.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	nonceStore := config.NonceStore
	if nonceStore == nil {
		nonceStore = NewNonceStore(DefaultNonceTTL)
	}
	return &Handlers{
		database:      config.Database,
		logger:        logger,
		sessionStore:  config.SessionStore,
		nonceStore:    nonceStore,
		publicBaseURL: strings.TrimRight(strings.TrimSpace(config.PublicBaseURL), "/"),
		bookingLink:   strings.TrimSpace(config.BookingLink),
		useAjaxProxy:  config.UseAjaxProxy,
	}
}

func successEnvelope(data any) gin.H {
	return gin.H{jsonKeySuccess: true, jsonKeyData: data}
}

func failureEnvelope(message string) gin.H {
	return gin.H{jsonKeySuccess: false, jsonKeyData: gin.H{jsonKeyMessage: message}}
}

// HandleDashboardConfig issues the bootstrap payload the dashboard needs
// before it can fetch any visitor record: the record endpoint, a fresh
// session-bound nonce, and presentation settings.
func (handlers *Handlers) HandleDashboardConfig(ginContext *gin.Context) {
	sessionID, sessionErr := EnsureBrowserSession(handlers.sessionStore, ginContext)
	if sessionErr != nil {
		handlers.logger.Warn("session_save_failed", zap.Error(sessionErr))
		ginContext.JSON(http.StatusInternalServerError, failureEnvelope("session unavailable"))
		return
	}
	ginContext.JSON(http.StatusOK, successEnvelope(gin.H{
		"ajax_url":     handlers.publicBaseURL + dashboard.RecordEndpointPath,
		"nonce":        handlers.nonceStore.Issue(sessionID),
		"useAjaxProxy": handlers.useAjaxProxy,
		"bookingLink":  handlers.bookingLink,
	}))
}
