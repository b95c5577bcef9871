package dashboard

import "errors"

// FailureKind classifies terminal failures for user-facing messaging. The
// distinction matters to the caller: configuration failures are site-wide and
// unrecoverable without a reload, session expiry is recoverable by refreshing
// the configuration, transport and server failures recommend a retry.
type FailureKind string

const (
	FailureNone           FailureKind = ""
	FailureConfiguration  FailureKind = "configuration"
	FailureSessionExpired FailureKind = "session_expired"
	FailureTransport      FailureKind = "transport"
	FailureServer         FailureKind = "server"
)

// Failure is a typed terminal outcome of a loader or fetcher call. Loaders
// and fetchers never let transport or parse errors escape; everything is
// converted into a Failure at the component boundary.
type Failure struct {
	Kind    FailureKind
	Message string
}

func (failure *Failure) Error() string {
	return failure.Message
}

// NewConfigurationFailure builds a Failure fatal to the whole page.
func NewConfigurationFailure(message string) *Failure {
	return &Failure{Kind: FailureConfiguration, Message: message}
}

// NewSessionExpiredFailure builds a Failure recoverable by refreshing the configuration.
func NewSessionExpiredFailure(message string) *Failure {
	return &Failure{Kind: FailureSessionExpired, Message: message}
}

// NewTransportFailure builds a Failure for network-level errors.
func NewTransportFailure(message string) *Failure {
	return &Failure{Kind: FailureTransport, Message: message}
}

// NewServerFailure builds a Failure for application-level errors reported by the proxy.
func NewServerFailure(message string) *Failure {
	return &Failure{Kind: FailureServer, Message: message}
}

// AsFailure extracts a typed Failure from an error chain.
func AsFailure(err error) (*Failure, bool) {
	var failure *Failure
	if errors.As(err, &failure) {
		return failure, true
	}
	return nil, false
}

// FetchOutcome is the resolution of one record fetch. Exactly one of the
// three shapes holds: a non-nil Record, NoData, or a non-nil Failure. NoData
// is a valid expected terminal outcome, not a failure.
type FetchOutcome struct {
	Record  Record
	NoData  bool
	Failure *Failure
}
