package cms

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/MarkoPoloResearchLab/leadlens/internal/dashboard"
	"github.com/MarkoPoloResearchLab/leadlens/internal/model"
)

const (
	messageProxyDisabled    = "record proxy disabled"
	messageInvalidAction    = "unknown action"
	messageInvalidVisitorID = "invalid visitor identifier"
	messageLookupFailed     = "record lookup failed"
)

// HandleVisitorRecord serves the token-gated record proxy. A missing record is
// a successful response with an empty data object; only transport, token, and
// storage problems produce failure envelopes.
func (handlers *Handlers) HandleVisitorRecord(ginContext *gin.Context) {
	if !handlers.useAjaxProxy {
		ginContext.JSON(http.StatusOK, failureEnvelope(messageProxyDisabled))
		return
	}
	if ginContext.PostForm(dashboard.FormFieldAction) != dashboard.FetchActionName {
		ginContext.JSON(http.StatusBadRequest, failureEnvelope(messageInvalidAction))
		return
	}

	sessionID, sessionErr := EnsureBrowserSession(handlers.sessionStore, ginContext)
	if sessionErr != nil {
		handlers.logger.Warn("session_save_failed", zap.Error(sessionErr))
		ginContext.JSON(http.StatusInternalServerError, failureEnvelope("session unavailable"))
		return
	}
	if !handlers.nonceStore.Validate(ginContext.PostForm(dashboard.FormFieldNonce), sessionID) {
		ginContext.JSON(http.StatusForbidden, failureEnvelope(dashboard.ErrorCodeExpiredNonce))
		return
	}

	visitorID, normalizeErr := model.NormalizeVisitorID(ginContext.PostForm(dashboard.FormFieldVisitorID))
	if normalizeErr != nil {
		ginContext.JSON(http.StatusBadRequest, failureEnvelope(messageInvalidVisitorID))
		return
	}

	var profile model.VisitorProfile
	lookupErr := handlers.database.WithContext(ginContext.Request.Context()).
		Where("visitor_id = ?", visitorID).
		First(&profile).Error
	if lookupErr != nil && !errors.Is(lookupErr, gorm.ErrRecordNotFound) {
		handlers.logger.Error("visitor_lookup_failed", zap.String("visitor_id", visitorID), zap.Error(lookupErr))
		ginContext.JSON(http.StatusInternalServerError, failureEnvelope(messageLookupFailed))
		return
	}
	recordFound := lookupErr == nil

	handlers.recordFetchAudit(ginContext, visitorID, recordFound)

	if !recordFound {
		ginContext.JSON(http.StatusOK, successEnvelope(gin.H{}))
		return
	}
	ginContext.JSON(http.StatusOK, successEnvelope(profile.RecordMap()))
}

// recordFetchAudit writes the fetch event best-effort; a failed audit write
// never blocks the record response.
func (handlers *Handlers) recordFetchAudit(ginContext *gin.Context, visitorID string, recordFound bool) {
	fetchEvent, buildErr := model.NewRecordFetch(model.RecordFetchInput{
		VisitorID: visitorID,
		Found:     recordFound,
		IP:        ginContext.ClientIP(),
		UserAgent: ginContext.Request.UserAgent(),
		Occurred:  time.Now().UTC(),
	})
	if buildErr != nil {
		handlers.logger.Debug("fetch_audit_skipped", zap.Error(buildErr))
		return
	}
	if createErr := handlers.database.Create(&fetchEvent).Error; createErr != nil {
		handlers.logger.Warn("fetch_audit_failed", zap.String("visitor_id", visitorID), zap.Error(createErr))
	}
}
