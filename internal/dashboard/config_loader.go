package dashboard

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
)

const (
	// ConfigurationEndpointPath is the fixed path of the CMS configuration endpoint.
	ConfigurationEndpointPath = "/api/dashboard-config"

	defaultHTTPClientTimeout  = 10 * time.Second
	maxConfigurationBodyBytes = 64 * 1024

	messageMissingBaseURL          = "The dashboard is not configured with a service address. Please reload the page or contact support."
	messageConfigurationUnreachable = "Could not reach the dashboard configuration service."
	messageConfigurationMalformed   = "The dashboard configuration service returned an unexpected response."
)

// ConfigurationLoader obtains the page configuration. Implementations return
// a typed Failure instead of raising errors past the boundary.
type ConfigurationLoader interface {
	Load(ctx context.Context) (Configuration, *Failure)
}

// HTTPConfigurationLoader fetches the configuration with one GET against the
// CMS configuration endpoint.
type HTTPConfigurationLoader struct {
	baseURL    string
	httpClient *http.Client
	logger     *zap.Logger
}

// NewHTTPConfigurationLoader builds a loader for the given base URL. A nil
// client gets a default with a timeout; a nil logger is replaced with a nop.
func NewHTTPConfigurationLoader(baseURL string, httpClient *http.Client, logger *zap.Logger) *HTTPConfigurationLoader {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultHTTPClientTimeout}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &HTTPConfigurationLoader{
		baseURL:    strings.TrimSpace(baseURL),
		httpClient: httpClient,
		logger:     logger,
	}
}

type configurationEnvelope struct {
	Success bool                  `json:"success"`
	Data    *configurationPayload `json:"data"`
}

type configurationPayload struct {
	AjaxURL      string `json:"ajax_url"`
	Nonce        string `json:"nonce"`
	UseAjaxProxy bool   `json:"useAjaxProxy"`
	BookingLink  string `json:"bookingLink"`
}

// Load performs the configuration request. A missing base URL fails
// immediately without a network call. Transport errors, non-success
// envelopes and success-shaped payloads missing required sub-fields all
// yield a ConfigurationFailure.
func (loader *HTTPConfigurationLoader) Load(ctx context.Context) (Configuration, *Failure) {
	if loader.baseURL == "" {
		return Configuration{}, NewConfigurationFailure(messageMissingBaseURL)
	}

	requestURL := strings.TrimRight(loader.baseURL, "/") + ConfigurationEndpointPath
	request, requestErr := http.NewRequestWithContext(ctx, http.MethodGet, requestURL, nil)
	if requestErr != nil {
		return Configuration{}, NewConfigurationFailure(messageConfigurationUnreachable)
	}

	response, doErr := loader.httpClient.Do(request)
	if doErr != nil {
		loader.logger.Debug("configuration_request_failed", zap.Error(doErr))
		return Configuration{}, NewConfigurationFailure(messageConfigurationUnreachable)
	}
	defer func() {
		_ = response.Body.Close()
	}()

	body, readErr := io.ReadAll(io.LimitReader(response.Body, maxConfigurationBodyBytes))
	if readErr != nil {
		loader.logger.Debug("configuration_read_failed", zap.Error(readErr))
		return Configuration{}, NewConfigurationFailure(messageConfigurationUnreachable)
	}

	if response.StatusCode != http.StatusOK {
		loader.logger.Debug("configuration_unexpected_status", zap.Int("status", response.StatusCode))
		return Configuration{}, NewConfigurationFailure(fmt.Sprintf("%s (status %d)", messageConfigurationMalformed, response.StatusCode))
	}

	var envelope configurationEnvelope
	if unmarshalErr := json.Unmarshal(body, &envelope); unmarshalErr != nil {
		loader.logger.Debug("configuration_parse_failed", zap.Error(unmarshalErr))
		return Configuration{}, NewConfigurationFailure(messageConfigurationMalformed)
	}

	if !envelope.Success || envelope.Data == nil {
		return Configuration{}, NewConfigurationFailure(messageConfigurationMalformed)
	}
	if strings.TrimSpace(envelope.Data.AjaxURL) == "" || strings.TrimSpace(envelope.Data.Nonce) == "" {
		return Configuration{}, NewConfigurationFailure(messageConfigurationMalformed)
	}

	return Configuration{
		AjaxURL:      strings.TrimSpace(envelope.Data.AjaxURL),
		Nonce:        strings.TrimSpace(envelope.Data.Nonce),
		UseAjaxProxy: envelope.Data.UseAjaxProxy,
		BookingLink:  strings.TrimSpace(envelope.Data.BookingLink),
	}, nil
}
