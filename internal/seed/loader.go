package seed

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
	"gorm.io/gorm"

	"github.com/MarkoPoloResearchLab/leadlens/internal/model"
)

// Document is the root of a seed file: a list of visitor profiles. The
// list-valued fields are written as native YAML lists and stored as the
// JSON-encoded strings the record endpoint serves.
type Document struct {
	Profiles []ProfileEntry `yaml:"profiles"`
}

// ProfileEntry mirrors one visitor profile in seed-file form.
type ProfileEntry struct {
	VisitorID        string     `yaml:"visitor_id"`
	FirstName        string     `yaml:"first_name"`
	CompanyShort     string     `yaml:"company_short"`
	OrganizationName string     `yaml:"organization_name"`
	LogoURL          string     `yaml:"logo_url"`
	WebsiteURL       string     `yaml:"website_url"`
	CompanyOverview  string     `yaml:"company_overview"`
	USP              string     `yaml:"usp"`
	FounderBio       string     `yaml:"founder_bio"`
	KeyChallenge     string     `yaml:"key_challenge"`
	CoreServices     []string   `yaml:"core_services"`
	KPIs             []KPIEntry `yaml:"kpis"`
	ResearchReport   string     `yaml:"research_report"`
	EngagementSeries []float64  `yaml:"engagement_series"`
}

// KPIEntry mirrors one KPI in seed-file form.
type KPIEntry struct {
	Label      string `yaml:"label" json:"label"`
	Value      string `yaml:"value" json:"value"`
	Target     string `yaml:"target" json:"target"`
	Icon       string `yaml:"icon" json:"icon,omitempty"`
	UnitSuffix string `yaml:"unit_suffix" json:"unit_suffix,omitempty"`
	Color      string `yaml:"color" json:"color,omitempty"`
}

// Load reads a seed file and converts every entry into a storable profile.
// Any invalid entry fails the whole load; seed files are curated, not
// best-effort input.
func Load(path string) ([]model.VisitorProfile, error) {
	content, readErr := os.ReadFile(path)
	if readErr != nil {
		return nil, fmt.Errorf("read seed file: %w", readErr)
	}

	var document Document
	if unmarshalErr := yaml.Unmarshal(content, &document); unmarshalErr != nil {
		return nil, fmt.Errorf("parse seed file: %w", unmarshalErr)
	}

	profiles := make([]model.VisitorProfile, 0, len(document.Profiles))
	for entryIndex, entry := range document.Profiles {
		profile, convertErr := entry.toProfile()
		if convertErr != nil {
			return nil, fmt.Errorf("seed entry %d: %w", entryIndex, convertErr)
		}
		profiles = append(profiles, profile)
	}
	return profiles, nil
}

func (entry ProfileEntry) toProfile() (model.VisitorProfile, error) {
	visitorID, normalizeErr := model.NormalizeVisitorID(entry.VisitorID)
	if normalizeErr != nil {
		return model.VisitorProfile{}, normalizeErr
	}

	coreServices, servicesErr := encodeListField(entry.CoreServices)
	if servicesErr != nil {
		return model.VisitorProfile{}, servicesErr
	}
	kpis, kpisErr := encodeListField(entry.KPIs)
	if kpisErr != nil {
		return model.VisitorProfile{}, kpisErr
	}
	engagementSeries, seriesErr := encodeListField(entry.EngagementSeries)
	if seriesErr != nil {
		return model.VisitorProfile{}, seriesErr
	}

	return model.VisitorProfile{
		VisitorID:        visitorID,
		FirstName:        entry.FirstName,
		CompanyShort:     entry.CompanyShort,
		OrganizationName: entry.OrganizationName,
		LogoURL:          entry.LogoURL,
		WebsiteURL:       entry.WebsiteURL,
		CompanyOverview:  entry.CompanyOverview,
		USP:              entry.USP,
		FounderBio:       entry.FounderBio,
		KeyChallenge:     entry.KeyChallenge,
		CoreServices:     coreServices,
		KPIs:             kpis,
		ResearchReport:   entry.ResearchReport,
		EngagementSeries: engagementSeries,
	}, nil
}

// encodeListField renders a YAML-native list as the JSON string the record
// wire format carries. Empty lists stay empty strings so the field is omitted
// from served records.
func encodeListField[Element any](elements []Element) (string, error) {
	if len(elements) == 0 {
		return "", nil
	}
	encoded, marshalErr := json.Marshal(elements)
	if marshalErr != nil {
		return "", fmt.Errorf("encode list field: %w", marshalErr)
	}
	return string(encoded), nil
}

// Apply upserts every profile, keyed by visitor identifier.
func Apply(ctx context.Context, database *gorm.DB, profiles []model.VisitorProfile) error {
	for _, profile := range profiles {
		target := profile
		if saveErr := database.WithContext(ctx).
			Where("visitor_id = ?", profile.VisitorID).
			Assign(profile).
			FirstOrCreate(&target).Error; saveErr != nil {
			return fmt.Errorf("apply seed profile %s: %w", profile.VisitorID, saveErr)
		}
	}
	return nil
}
