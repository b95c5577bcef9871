package model

import (
	"errors"
	"strings"
	"time"
)

// Canonical record field names. The proxy, the dashboard client and the view
// all refer to these constants; nothing else spells the field names out.
const (
	FieldFirstName        = "first_name"
	FieldCompanyShort     = "company_short"
	FieldOrganizationName = "organization_name"
	FieldLogoURL          = "logo_url"
	FieldWebsiteURL       = "website_url"
	FieldCompanyOverview  = "company_overview"
	FieldUSP              = "usp"
	FieldFounderBio       = "founder_bio"
	FieldKeyChallenge     = "key_challenge"
	FieldCoreServices     = "core_services"
	FieldKPIs             = "kpis"
	FieldResearchReport   = "research_report"
	FieldEngagementSeries = "engagement_series"
)

const (
	VisitorIdentifierMaxLength = 64

	profileNameMaxLength      = 200
	profileURLMaxLength       = 500
	profileShortTextMaxLength = 2000
	profileLongTextMaxLength  = 8000
)

var (
	ErrInvalidVisitorIdentifier = errors.New("invalid_visitor_identifier")
)

// VisitorProfile stores one company's marketing profile, one column per
// canonical record field. The list-valued fields hold JSON-encoded strings.
type VisitorProfile struct {
	VisitorID        string    `gorm:"primaryKey;size:64"`
	FirstName        string    `gorm:"size:100"`
	CompanyShort     string    `gorm:"size:200"`
	OrganizationName string    `gorm:"size:200"`
	LogoURL          string    `gorm:"size:500"`
	WebsiteURL       string    `gorm:"size:500"`
	CompanyOverview  string    `gorm:"size:2000"`
	USP              string    `gorm:"size:2000"`
	FounderBio       string    `gorm:"size:2000"`
	KeyChallenge     string    `gorm:"size:2000"`
	CoreServices     string    `gorm:"size:2000"`
	KPIs             string    `gorm:"size:4000"`
	ResearchReport   string    `gorm:"size:8000"`
	EngagementSeries string    `gorm:"size:1000"`
	CreatedAt        time.Time `gorm:"autoCreateTime"`
	UpdatedAt        time.Time `gorm:"autoUpdateTime"`
}

// NormalizeVisitorID trims and validates a visitor identifier supplied by a
// caller. Identifiers are opaque tokens; only emptiness and length are checked.
func NormalizeVisitorID(raw string) (string, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" || len(trimmed) > VisitorIdentifierMaxLength {
		return "", ErrInvalidVisitorIdentifier
	}
	return trimmed, nil
}

// RecordMap converts the stored profile into its wire form: a field-name to
// string mapping with empty fields omitted, so absent and empty fields are
// indistinguishable to consumers.
func (profile VisitorProfile) RecordMap() map[string]string {
	fieldValues := map[string]string{
		FieldFirstName:        profile.FirstName,
		FieldCompanyShort:     profile.CompanyShort,
		FieldOrganizationName: profile.OrganizationName,
		FieldLogoURL:          profile.LogoURL,
		FieldWebsiteURL:       profile.WebsiteURL,
		FieldCompanyOverview:  profile.CompanyOverview,
		FieldUSP:              profile.USP,
		FieldFounderBio:       profile.FounderBio,
		FieldKeyChallenge:     profile.KeyChallenge,
		FieldCoreServices:     profile.CoreServices,
		FieldKPIs:             profile.KPIs,
		FieldResearchReport:   profile.ResearchReport,
		FieldEngagementSeries: profile.EngagementSeries,
	}

	record := make(map[string]string, len(fieldValues))
	for fieldName, fieldValue := range fieldValues {
		if strings.TrimSpace(fieldValue) == "" {
			continue
		}
		record[fieldName] = fieldValue
	}
	return record
}
