package dashboard

// PageState identifies the dashboard page's current phase. The page holds
// exactly one PageState at a time; every transition goes through the
// Controller.
type PageState string

const (
	StateInitializing       PageState = "initializing"
	StateInitializingConfig PageState = "initializing_config"
	StateReady              PageState = "ready"
	StateLoading            PageState = "loading"
	StateDataLoaded         PageState = "data_loaded"
	StateNoDataForID        PageState = "no_data_for_id"
	StateError              PageState = "error"
)

// Settled reports whether the state is a resting state, i.e. no configuration
// load or record fetch is outstanding for the current inputs.
func (state PageState) Settled() bool {
	switch state {
	case StateInitializing, StateInitializingConfig, StateLoading:
		return false
	}
	return true
}

// Configuration is the page-lifetime bundle obtained once from the CMS
// configuration endpoint. Immutable after load except for nonce refresh on
// expiry, which replaces the whole value.
type Configuration struct {
	AjaxURL      string
	Nonce        string
	UseAjaxProxy bool
	BookingLink  string
}

// Record is the opaque visitor marketing profile returned by the proxy: a
// mapping from canonical field name to string value, with list-valued fields
// JSON-encoded. No field is guaranteed present.
type Record map[string]string

// Snapshot is an immutable copy of the controller state handed to renderers.
type Snapshot struct {
	State         PageState
	Identifier    string
	Record        Record
	Configuration *Configuration
	StatusMessage string
	FailureKind   FailureKind
}

// HasRecord reports whether the snapshot carries a loaded record.
func (snapshot Snapshot) HasRecord() bool {
	return snapshot.State == StateDataLoaded && len(snapshot.Record) > 0
}
