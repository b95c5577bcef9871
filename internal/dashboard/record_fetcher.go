package dashboard

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"go.uber.org/zap"
)

const (
	// FetchActionName identifies the server-side handler for record fetches.
	FetchActionName = "leadlens_fetch_visitor"

	// RecordEndpointPath is the fixed path of the CMS visitor-record proxy.
	RecordEndpointPath = "/api/visitor-record"

	// ErrorCodeExpiredNonce is the error code the proxy reports when the
	// session token is rejected.
	ErrorCodeExpiredNonce = "expired_nonce"

	FormFieldAction    = "action"
	FormFieldNonce     = "nonce"
	FormFieldVisitorID = "visitor_id"

	maxRecordBodyBytes = 256 * 1024

	messageMissingIdentifier    = "A record fetch requires a visitor identifier."
	messageMissingConfiguration = "A record fetch requires a loaded configuration."
	messageRecordUnreachable    = "Could not reach the data service. Please check your connection and try again."
	messageRecordMalformed      = "The data service returned an unexpected response. Please try again."
	messageSessionExpired       = "Your session has expired. A fresh session is being prepared; please resubmit the Visitor ID."
	messageServerRejected       = "The data service could not complete the request."
)

// RecordFetcher retrieves one visitor record through the proxy endpoint.
type RecordFetcher interface {
	Fetch(ctx context.Context, identifier string, configuration Configuration) FetchOutcome
}

// HTTPRecordFetcher submits a token-bearing form POST to the proxy endpoint
// named by the configuration.
type HTTPRecordFetcher struct {
	httpClient *http.Client
	logger     *zap.Logger
}

// NewHTTPRecordFetcher builds a fetcher. A nil client gets a default with a
// timeout; a nil logger is replaced with a nop.
func NewHTTPRecordFetcher(httpClient *http.Client, logger *zap.Logger) *HTTPRecordFetcher {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultHTTPClientTimeout}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &HTTPRecordFetcher{httpClient: httpClient, logger: logger}
}

type recordEnvelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
}

type recordErrorPayload struct {
	Message string `json:"message"`
}

// Fetch issues the proxied record request. Preconditions fail fast without a
// network call; every other path resolves into exactly one FetchOutcome shape.
func (fetcher *HTTPRecordFetcher) Fetch(ctx context.Context, identifier string, configuration Configuration) FetchOutcome {
	trimmedIdentifier := strings.TrimSpace(identifier)
	if trimmedIdentifier == "" {
		return FetchOutcome{Failure: NewConfigurationFailure(messageMissingIdentifier)}
	}
	if strings.TrimSpace(configuration.AjaxURL) == "" || strings.TrimSpace(configuration.Nonce) == "" {
		return FetchOutcome{Failure: NewConfigurationFailure(messageMissingConfiguration)}
	}

	form := url.Values{}
	form.Set(FormFieldAction, FetchActionName)
	form.Set(FormFieldNonce, configuration.Nonce)
	form.Set(FormFieldVisitorID, trimmedIdentifier)

	request, requestErr := http.NewRequestWithContext(ctx, http.MethodPost, configuration.AjaxURL, strings.NewReader(form.Encode()))
	if requestErr != nil {
		return FetchOutcome{Failure: NewTransportFailure(messageRecordUnreachable)}
	}
	request.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	response, doErr := fetcher.httpClient.Do(request)
	if doErr != nil {
		fetcher.logger.Debug("record_request_failed", zap.String("visitor_id", trimmedIdentifier), zap.Error(doErr))
		return FetchOutcome{Failure: NewTransportFailure(messageRecordUnreachable)}
	}
	defer func() {
		_ = response.Body.Close()
	}()

	body, readErr := io.ReadAll(io.LimitReader(response.Body, maxRecordBodyBytes))
	if readErr != nil {
		return FetchOutcome{Failure: NewTransportFailure(messageRecordUnreachable)}
	}

	var envelope recordEnvelope
	if unmarshalErr := json.Unmarshal(body, &envelope); unmarshalErr != nil {
		fetcher.logger.Debug("record_parse_failed", zap.Int("status", response.StatusCode), zap.Error(unmarshalErr))
		return FetchOutcome{Failure: NewServerFailure(messageRecordMalformed)}
	}

	if !envelope.Success {
		return FetchOutcome{Failure: classifyEnvelopeFailure(envelope.Data)}
	}

	record, parseErr := decodeRecordData(envelope.Data)
	if parseErr != nil {
		fetcher.logger.Debug("record_data_malformed", zap.Error(parseErr))
		return FetchOutcome{Failure: NewServerFailure(messageRecordMalformed)}
	}
	if len(record) == 0 {
		return FetchOutcome{NoData: true}
	}
	return FetchOutcome{Record: record}
}

func classifyEnvelopeFailure(data json.RawMessage) *Failure {
	var payload recordErrorPayload
	if len(data) > 0 {
		_ = json.Unmarshal(data, &payload)
	}
	serverMessage := strings.TrimSpace(payload.Message)
	if serverMessage == ErrorCodeExpiredNonce {
		return NewSessionExpiredFailure(messageSessionExpired)
	}
	if serverMessage != "" {
		return NewServerFailure(serverMessage)
	}
	return NewServerFailure(messageServerRejected)
}

// decodeRecordData converts the envelope data object into the opaque
// field-name to string record. String values pass through, numbers are
// formatted, and nested values stay JSON-encoded so consumers parse them at
// the point of use.
func decodeRecordData(data json.RawMessage) (Record, error) {
	trimmed := strings.TrimSpace(string(data))
	if trimmed == "" || trimmed == "null" || trimmed == "{}" || trimmed == "[]" || trimmed == `""` {
		return nil, nil
	}

	var rawFields map[string]json.RawMessage
	if unmarshalErr := json.Unmarshal(data, &rawFields); unmarshalErr != nil {
		return nil, unmarshalErr
	}

	record := make(Record, len(rawFields))
	for fieldName, rawValue := range rawFields {
		value := decodeRecordValue(rawValue)
		if value == "" {
			continue
		}
		record[fieldName] = value
	}
	return record, nil
}

func decodeRecordValue(rawValue json.RawMessage) string {
	var stringValue string
	if unmarshalErr := json.Unmarshal(rawValue, &stringValue); unmarshalErr == nil {
		return stringValue
	}
	var numberValue float64
	if unmarshalErr := json.Unmarshal(rawValue, &numberValue); unmarshalErr == nil {
		return strconv.FormatFloat(numberValue, 'f', -1, 64)
	}
	trimmed := strings.TrimSpace(string(rawValue))
	if trimmed == "null" {
		return ""
	}
	return trimmed
}
