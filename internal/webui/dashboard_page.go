package webui

import (
	"bytes"
	"context"
	"html/template"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/sessions"
	"go.uber.org/zap"

	"github.com/MarkoPoloResearchLab/leadlens/internal/cms"
	"github.com/MarkoPoloResearchLab/leadlens/internal/view"
)

const (
	// DashboardRoutePath serves the personalized lead dashboard page.
	DashboardRoutePath = "/lead"
	// DashboardScriptRoutePath serves the page's presentation script.
	DashboardScriptRoutePath = "/assets/dashboard.js"

	// QueryParameterVisitorID carries the visitor identifier in the page URL.
	QueryParameterVisitorID = "visitor_id"

	dashboardTemplateName      = "dashboard"
	dashboardHTMLContentType   = "text/html; charset=utf-8"
	dashboardScriptContentType = "application/javascript; charset=utf-8"

	// settleWaitTimeout bounds how long a page render waits for the state
	// machine to reach a resting state before rendering whatever is current.
	settleWaitTimeout = 15 * time.Second
)

// DashboardPageHandlers renders the dashboard. Each request applies the URL's
// visitor identifier to the session's controller, waits for the state machine
// to settle, and renders the resulting snapshot. Rendering itself never
// triggers a fetch.
type DashboardPageHandlers struct {
	logger       *zap.Logger
	sessionStore *sessions.CookieStore
	pageSessions *PageSessions
	template     *template.Template
}

// NewDashboardPageHandlers constructs handlers rendering the dashboard template.
func NewDashboardPageHandlers(logger *zap.Logger, sessionStore *sessions.CookieStore, pageSessions *PageSessions) *DashboardPageHandlers {
	if logger == nil {
		logger = zap.NewNop()
	}
	compiledTemplate := template.Must(template.New(dashboardTemplateName).Parse(dashboardTemplateHTML))
	return &DashboardPageHandlers{
		logger:       logger,
		sessionStore: sessionStore,
		pageSessions: pageSessions,
		template:     compiledTemplate,
	}
}

// RenderDashboardPage writes the dashboard page response.
func (handlers *DashboardPageHandlers) RenderDashboardPage(ginContext *gin.Context) {
	sessionID, sessionErr := cms.EnsureBrowserSession(handlers.sessionStore, ginContext)
	if sessionErr != nil {
		handlers.logger.Warn("session_save_failed", zap.Error(sessionErr))
		ginContext.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "session_unavailable"})
		return
	}
	controller := handlers.pageSessions.Acquire(sessionID)

	// Fetches started here outlive this request; a visitor navigating away
	// mid-load must not cancel the work a later render will pick up.
	pageContext := context.WithoutCancel(ginContext.Request.Context())
	controller.Mount(pageContext)
	controller.SetIdentifier(pageContext, ginContext.Query(QueryParameterVisitorID))

	waitContext, waitCancel := context.WithTimeout(ginContext.Request.Context(), settleWaitTimeout)
	defer waitCancel()
	snapshot, waitErr := controller.WaitSettled(waitContext)
	if waitErr != nil {
		handlers.logger.Debug("settle_wait_aborted", zap.Error(waitErr))
		snapshot = controller.Snapshot()
	}

	pageModel := view.Project(snapshot, handlers.logger)

	var buffer bytes.Buffer
	if executeErr := handlers.template.Execute(&buffer, pageModel); executeErr != nil {
		handlers.logger.Error("render_dashboard_page", zap.Error(executeErr))
		ginContext.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "dashboard_render_failed"})
		return
	}
	ginContext.Data(http.StatusOK, dashboardHTMLContentType, buffer.Bytes())
}

// ServeDashboardScript writes the presentation script. The script paints the
// engagement chart and navigates on submit; it never fetches records itself.
func (handlers *DashboardPageHandlers) ServeDashboardScript(ginContext *gin.Context) {
	ginContext.Data(http.StatusOK, dashboardScriptContentType, []byte(dashboardJavaScriptSource))
}

// Register mounts the dashboard page routes.
func Register(router *gin.Engine, handlers *DashboardPageHandlers) {
	router.GET(DashboardRoutePath, handlers.RenderDashboardPage)
	router.GET(DashboardScriptRoutePath, handlers.ServeDashboardScript)
}
