package webui

import (
	"sync"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"go.uber.org/zap"

	"github.com/MarkoPoloResearchLab/leadlens/internal/dashboard"
)

const (
	// DefaultPageSessionTTL bounds how long an idle browser keeps its page
	// controller alive between requests.
	DefaultPageSessionTTL = 30 * time.Minute

	pageSessionCleanupInterval = 10 * time.Minute
)

// ControllerFactory builds a fresh page controller for a new browser session.
type ControllerFactory func() *dashboard.Controller

// PageSessions keeps one dashboard controller per browser session so that the
// page state machine survives across navigations. Idle sessions expire.
type PageSessions struct {
	mutex       sync.Mutex
	controllers *gocache.Cache
	factory     ControllerFactory
}

// NewPageSessions builds a registry with the given idle TTL; non-positive
// values fall back to the default. Evictions are logged.
func NewPageSessions(timeToLive time.Duration, factory ControllerFactory, logger *zap.Logger) *PageSessions {
	if timeToLive <= 0 {
		timeToLive = DefaultPageSessionTTL
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	controllers := gocache.New(timeToLive, pageSessionCleanupInterval)
	controllers.OnEvicted(func(sessionID string, _ any) {
		logger.Debug("page_session_evicted", zap.String("session_id", sessionID))
	})
	return &PageSessions{
		controllers: controllers,
		factory:     factory,
	}
}

// Acquire returns the controller bound to the session, creating one on first
// use. Every acquisition renews the idle TTL.
func (pageSessions *PageSessions) Acquire(sessionID string) *dashboard.Controller {
	pageSessions.mutex.Lock()
	defer pageSessions.mutex.Unlock()

	if cached, found := pageSessions.controllers.Get(sessionID); found {
		controller := cached.(*dashboard.Controller)
		pageSessions.controllers.Set(sessionID, controller, gocache.DefaultExpiration)
		return controller
	}
	controller := pageSessions.factory()
	pageSessions.controllers.Set(sessionID, controller, gocache.DefaultExpiration)
	return controller
}
