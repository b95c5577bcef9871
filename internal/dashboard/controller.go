package dashboard

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"
)

const (
	statusLoadingConfiguration = "Preparing your dashboard..."
	statusEnterIdentifier      = "Enter a Visitor ID to begin."
	statusLoadingRecordFormat  = "Loading data for %s..."
	statusNoDataFormat         = "No data found for Visitor ID %q. Please re-check the identifier or contact support."
)

// Controller owns the single source of truth for what the page currently
// shows. It sequences configuration loading, identifier-driven fetch
// triggering and result application.
//
// Three triggers may cause a transition: the identifier changed (URL or
// submit), the identifier was cleared, and a fetch resolved. Rendering never
// causes a fetch.
//
// Correctness of out-of-order resolutions rests on two rules: the
// last-fetched identifier marker is updated synchronously at trigger time,
// and every fetch carries a monotonic sequence number; a resolution whose
// sequence is not the latest issued is discarded outright. Superseded fetch
// contexts are additionally cancelled.
type Controller struct {
	loader  ConfigurationLoader
	fetcher RecordFetcher
	logger  *zap.Logger

	mu      sync.Mutex
	changed chan struct{}

	state         PageState
	statusMessage string
	failureKind   FailureKind

	configuration          *Configuration
	configurationAttempted bool
	refreshingConfiguration bool

	record                Record
	currentIdentifier     string
	lastFetchedIdentifier string

	fetchInFlight  bool
	latestSequence uint64
	cancelFetch    context.CancelFunc
}

// NewController builds a Controller in the initializing state.
func NewController(loader ConfigurationLoader, fetcher RecordFetcher, logger *zap.Logger) *Controller {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Controller{
		loader:  loader,
		fetcher: fetcher,
		logger:  logger,
		changed: make(chan struct{}),
		state:   StateInitializing,
	}
}

// Mount starts the page lifecycle: it invokes the configuration loader once.
// Subsequent calls are no-ops; the already-attempted guard lives here, not in
// the loader.
func (controller *Controller) Mount(ctx context.Context) {
	controller.mu.Lock()
	if controller.configurationAttempted {
		controller.mu.Unlock()
		return
	}
	controller.configurationAttempted = true
	controller.setStateLocked(StateInitializingConfig, statusLoadingConfiguration)
	controller.mu.Unlock()

	go controller.loadConfiguration(ctx)
}

func (controller *Controller) loadConfiguration(ctx context.Context) {
	configuration, failure := controller.loader.Load(ctx)

	controller.mu.Lock()
	defer controller.mu.Unlock()

	if failure != nil {
		controller.logger.Warn("configuration_load_failed", zap.String("message", failure.Message))
		controller.failureKind = FailureConfiguration
		controller.setStateLocked(StateError, failure.Message)
		return
	}

	controller.configuration = &configuration
	if pendingIdentifier := controller.currentIdentifier; pendingIdentifier != "" {
		controller.startFetchLocked(ctx, pendingIdentifier)
		return
	}
	controller.setStateLocked(StateReady, statusEnterIdentifier)
}

// SetIdentifier applies a URL change or manual submission of the visitor
// identifier. An empty identifier clears the page. A fetch is triggered only
// when the identifier differs from the last-fetched marker, except that
// resubmitting the same identifier from the error or no-data states retries.
func (controller *Controller) SetIdentifier(ctx context.Context, identifier string) {
	trimmedIdentifier := strings.TrimSpace(identifier)

	controller.mu.Lock()
	defer controller.mu.Unlock()

	if trimmedIdentifier == "" {
		controller.clearIdentifierLocked()
		return
	}

	controller.currentIdentifier = trimmedIdentifier

	switch controller.state {
	case StateInitializing, StateInitializingConfig:
		// Picked up when the configuration resolves.
		return
	case StateLoading:
		// One fetch in flight at a time; re-evaluated on resolution.
		return
	}

	if controller.configuration == nil {
		// Configuration failed; the page is unrecoverable without a reload.
		return
	}

	if trimmedIdentifier == controller.lastFetchedIdentifier {
		if controller.state != StateError && controller.state != StateNoDataForID {
			return
		}
	}

	controller.startFetchLocked(ctx, trimmedIdentifier)
}

// ClearIdentifier handles removal of the identifier from the page.
func (controller *Controller) ClearIdentifier() {
	controller.mu.Lock()
	defer controller.mu.Unlock()
	controller.clearIdentifierLocked()
}

func (controller *Controller) clearIdentifierLocked() {
	controller.currentIdentifier = ""
	controller.lastFetchedIdentifier = ""
	controller.record = nil
	controller.failureKind = FailureNone

	if controller.fetchInFlight {
		// Invalidate the in-flight resolution and cancel its request.
		controller.latestSequence++
		controller.fetchInFlight = false
		if controller.cancelFetch != nil {
			controller.cancelFetch()
			controller.cancelFetch = nil
		}
	}

	switch controller.state {
	case StateInitializing, StateInitializingConfig:
		// The configuration resolution will land in ready on its own.
		return
	}
	if controller.configuration == nil {
		// Configuration failure stays terminal.
		return
	}
	controller.setStateLocked(StateReady, statusEnterIdentifier)
}

func (controller *Controller) startFetchLocked(ctx context.Context, identifier string) {
	configuration := *controller.configuration

	controller.lastFetchedIdentifier = identifier
	controller.record = nil
	controller.failureKind = FailureNone

	controller.latestSequence++
	sequence := controller.latestSequence
	controller.fetchInFlight = true

	if controller.cancelFetch != nil {
		controller.cancelFetch()
	}
	fetchCtx, cancel := context.WithCancel(ctx)
	controller.cancelFetch = cancel

	controller.setStateLocked(StateLoading, fmt.Sprintf(statusLoadingRecordFormat, identifier))

	go func() {
		outcome := controller.fetcher.Fetch(fetchCtx, identifier, configuration)
		controller.resolveFetch(ctx, sequence, identifier, outcome)
	}()
}

func (controller *Controller) resolveFetch(ctx context.Context, sequence uint64, identifier string, outcome FetchOutcome) {
	controller.mu.Lock()
	defer controller.mu.Unlock()

	if sequence != controller.latestSequence {
		controller.logger.Debug("fetch_superseded", zap.String("visitor_id", identifier), zap.Uint64("sequence", sequence))
		return
	}

	controller.fetchInFlight = false
	controller.cancelFetch = nil

	// Re-derive the target from current state instead of trusting the
	// captured identifier; a trigger that arrived while this fetch was in
	// flight wins by issuing a new fetch now.
	if controller.currentIdentifier != identifier {
		if controller.currentIdentifier == "" {
			controller.setStateLocked(StateReady, statusEnterIdentifier)
			return
		}
		controller.startFetchLocked(ctx, controller.currentIdentifier)
		return
	}

	switch {
	case outcome.Failure != nil:
		controller.failureKind = outcome.Failure.Kind
		controller.setStateLocked(StateError, outcome.Failure.Message)
		if outcome.Failure.Kind == FailureSessionExpired {
			controller.refreshConfigurationLocked(ctx)
		}
	case outcome.NoData:
		controller.setStateLocked(StateNoDataForID, fmt.Sprintf(statusNoDataFormat, identifier))
	default:
		controller.record = outcome.Record
		controller.setStateLocked(StateDataLoaded, "")
	}
}

// refreshConfigurationLocked obtains a fresh session token after an expiry.
// The page stays in the error state; the retry is the user's, never a silent
// mid-flight one.
func (controller *Controller) refreshConfigurationLocked(ctx context.Context) {
	if controller.refreshingConfiguration {
		return
	}
	controller.refreshingConfiguration = true

	go func() {
		configuration, failure := controller.loader.Load(ctx)

		controller.mu.Lock()
		defer controller.mu.Unlock()
		controller.refreshingConfiguration = false

		if failure != nil {
			controller.logger.Warn("configuration_refresh_failed", zap.String("message", failure.Message))
			return
		}
		controller.configuration = &configuration
		controller.logger.Info("configuration_refreshed")
		controller.notifyLocked()
	}()
}

// Snapshot returns an immutable copy of the current state.
func (controller *Controller) Snapshot() Snapshot {
	controller.mu.Lock()
	defer controller.mu.Unlock()
	return controller.snapshotLocked()
}

func (controller *Controller) snapshotLocked() Snapshot {
	snapshot := Snapshot{
		State:         controller.state,
		Identifier:    controller.currentIdentifier,
		StatusMessage: controller.statusMessage,
		FailureKind:   controller.failureKind,
	}
	if controller.configuration != nil {
		configurationCopy := *controller.configuration
		snapshot.Configuration = &configurationCopy
	}
	if len(controller.record) > 0 {
		recordCopy := make(Record, len(controller.record))
		for fieldName, fieldValue := range controller.record {
			recordCopy[fieldName] = fieldValue
		}
		snapshot.Record = recordCopy
	}
	return snapshot
}

// WaitSettled blocks until the state is a resting state for the current
// inputs, then returns its snapshot. The context bounds the wait.
func (controller *Controller) WaitSettled(ctx context.Context) (Snapshot, error) {
	for {
		controller.mu.Lock()
		snapshot := controller.snapshotLocked()
		changed := controller.changed
		controller.mu.Unlock()

		if snapshot.State.Settled() {
			return snapshot, nil
		}

		select {
		case <-ctx.Done():
			return snapshot, ctx.Err()
		case <-changed:
		}
	}
}

// ConfigurationRefreshed reports whether a fresh configuration is available
// after a session expiry, so callers can prompt for a retry.
func (controller *Controller) ConfigurationRefreshed() bool {
	controller.mu.Lock()
	defer controller.mu.Unlock()
	return controller.failureKind == FailureSessionExpired && !controller.refreshingConfiguration && controller.configuration != nil
}

func (controller *Controller) setStateLocked(state PageState, statusMessage string) {
	controller.state = state
	controller.statusMessage = statusMessage
	controller.notifyLocked()
}

func (controller *Controller) notifyLocked() {
	close(controller.changed)
	controller.changed = make(chan struct{})
}
