package view

import (
	"encoding/json"
	"fmt"
	"html/template"
	"net/url"
	"strings"

	"go.uber.org/zap"

	"github.com/MarkoPoloResearchLab/leadlens/internal/dashboard"
	"github.com/MarkoPoloResearchLab/leadlens/internal/model"
)

const (
	// FallbackFirstName greets visitors whose record carries no first name.
	FallbackFirstName = "Valued Lead"
	// FallbackCompanyName is displayed when neither company field is present.
	FallbackCompanyName = "Your Company"

	statusGreetingFormat = "Welcome, %s — here is the latest on %s."
)

// Model carries every value the dashboard template renders. It is a pure
// function of a controller snapshot; building it causes no fetches and no
// state transitions.
type Model struct {
	State         dashboard.PageState
	StatusMessage string
	Identifier    string
	InputEnabled  bool
	ShowRetryHint bool
	HasRecord     bool

	FirstName   string
	CompanyName string
	LogoURL     string
	WebsiteURL  string

	Overview     string
	USP          string
	FounderBio   string
	KeyChallenge string

	Services   []string
	KPIs       []KPI
	Series     []float64
	SeriesJSON template.JS
	ReportHTML template.HTML

	BookingLink string
}

// Project derives the view model from a controller snapshot, substituting the
// documented fallback for every absent or unparseable field.
func Project(snapshot dashboard.Snapshot, logger *zap.Logger) Model {
	if logger == nil {
		logger = zap.NewNop()
	}

	viewModel := Model{
		State:        snapshot.State,
		Identifier:   snapshot.Identifier,
		InputEnabled: snapshot.State.Settled() && snapshot.FailureKind != dashboard.FailureConfiguration,
		ShowRetryHint: snapshot.State == dashboard.StateError &&
			snapshot.FailureKind != dashboard.FailureConfiguration,
	}
	if snapshot.Configuration != nil {
		viewModel.BookingLink = absoluteURLOrEmpty(snapshot.Configuration.BookingLink)
	}

	viewModel.FirstName = fieldOrFallback(snapshot.Record, model.FieldFirstName, FallbackFirstName)
	viewModel.CompanyName = companyDisplayName(snapshot.Record)

	viewModel.StatusMessage = snapshot.StatusMessage
	if snapshot.State == dashboard.StateDataLoaded {
		viewModel.StatusMessage = fmt.Sprintf(statusGreetingFormat, viewModel.FirstName, viewModel.CompanyName)
	}

	if !snapshot.HasRecord() {
		return viewModel
	}
	viewModel.HasRecord = true

	record := snapshot.Record
	viewModel.LogoURL = absoluteURLOrEmpty(record[model.FieldLogoURL])
	viewModel.WebsiteURL = absoluteURLOrEmpty(record[model.FieldWebsiteURL])
	viewModel.Overview = strings.TrimSpace(record[model.FieldCompanyOverview])
	viewModel.USP = strings.TrimSpace(record[model.FieldUSP])
	viewModel.FounderBio = strings.TrimSpace(record[model.FieldFounderBio])
	viewModel.KeyChallenge = strings.TrimSpace(record[model.FieldKeyChallenge])

	viewModel.Services = parseServices(record[model.FieldCoreServices], logger)
	viewModel.KPIs = ParseKPIs(record[model.FieldKPIs], logger)
	viewModel.Series = parseSeries(record[model.FieldEngagementSeries], logger)
	viewModel.SeriesJSON = seriesJSON(viewModel.Series)
	viewModel.ReportHTML = RenderReport(record[model.FieldResearchReport])

	return viewModel
}

func fieldOrFallback(record dashboard.Record, fieldName string, fallback string) string {
	if value := strings.TrimSpace(record[fieldName]); value != "" {
		return value
	}
	return fallback
}

// companyDisplayName prefers the short-form name, falls back to the long-form
// one, and finally to the fixed literal. It never returns an empty string.
func companyDisplayName(record dashboard.Record) string {
	if shortName := strings.TrimSpace(record[model.FieldCompanyShort]); shortName != "" {
		return shortName
	}
	if longName := strings.TrimSpace(record[model.FieldOrganizationName]); longName != "" {
		return longName
	}
	return FallbackCompanyName
}

// absoluteURLOrEmpty keeps only absolute http(s) URLs; anything else is
// dropped rather than rendered.
func absoluteURLOrEmpty(rawURL string) string {
	trimmed := strings.TrimSpace(rawURL)
	if trimmed == "" {
		return ""
	}
	parsed, parseErr := url.Parse(trimmed)
	if parseErr != nil || parsed.Host == "" {
		return ""
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return ""
	}
	return trimmed
}

// parseServices decodes the JSON-encoded service-name list. A parse failure
// renders nothing; it is logged, never thrown.
func parseServices(rawField string, logger *zap.Logger) []string {
	trimmed := strings.TrimSpace(rawField)
	if trimmed == "" {
		return nil
	}
	var parsed []string
	if unmarshalErr := json.Unmarshal([]byte(trimmed), &parsed); unmarshalErr != nil {
		logger.Debug("services_field_unparseable", zap.Error(unmarshalErr))
		return nil
	}
	services := make([]string, 0, len(parsed))
	for _, serviceName := range parsed {
		if cleaned := strings.TrimSpace(serviceName); cleaned != "" {
			services = append(services, cleaned)
		}
	}
	if len(services) == 0 {
		return nil
	}
	return services
}

// defaultEngagementSeries is the illustrative series painted when the record
// carries no usable one.
func defaultEngagementSeries() []float64 {
	return []float64{12, 18, 15, 24, 30, 27, 36, 42}
}

func parseSeries(rawField string, logger *zap.Logger) []float64 {
	trimmed := strings.TrimSpace(rawField)
	if trimmed == "" {
		return defaultEngagementSeries()
	}
	var parsed []float64
	if unmarshalErr := json.Unmarshal([]byte(trimmed), &parsed); unmarshalErr != nil {
		logger.Debug("series_field_unparseable", zap.Error(unmarshalErr))
		return defaultEngagementSeries()
	}
	if len(parsed) == 0 {
		return defaultEngagementSeries()
	}
	return parsed
}

func seriesJSON(series []float64) template.JS {
	encoded, marshalErr := json.Marshal(series)
	if marshalErr != nil {
		return "[]"
	}
	return template.JS(encoded)
}
