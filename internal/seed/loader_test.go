package seed_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/MarkoPoloResearchLab/leadlens/internal/model"
	"github.com/MarkoPoloResearchLab/leadlens/internal/seed"
	"github.com/MarkoPoloResearchLab/leadlens/internal/testutil"
)

const seedFileContent = `profiles:
  - visitor_id: visitor-alpha
    first_name: Dana
    company_short: Acme
    organization_name: Acme Industries
    company_overview: Acme builds everything.
    core_services:
      - Consulting
      - Training
    kpis:
      - label: Win Rate
        value: "18"
        target: "25"
        unit_suffix: "%"
    engagement_series: [10, 20, 30]
  - visitor_id: visitor-beta
    first_name: Robin
`

func writeSeedFile(testingT *testing.T, content string) string {
	testingT.Helper()
	path := filepath.Join(testingT.TempDir(), "profiles.yaml")
	require.NoError(testingT, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadParsesProfilesAndEncodesListFields(testingT *testing.T) {
	profiles, loadErr := seed.Load(writeSeedFile(testingT, seedFileContent))
	require.NoError(testingT, loadErr)
	require.Len(testingT, profiles, 2)

	alpha := profiles[0]
	require.Equal(testingT, "visitor-alpha", alpha.VisitorID)
	require.Equal(testingT, "Dana", alpha.FirstName)
	require.JSONEq(testingT, `["Consulting","Training"]`, alpha.CoreServices)
	require.JSONEq(testingT, `[{"label":"Win Rate","value":"18","target":"25","unit_suffix":"%"}]`, alpha.KPIs)
	require.JSONEq(testingT, `[10,20,30]`, alpha.EngagementSeries)

	beta := profiles[1]
	require.Empty(testingT, beta.CoreServices)
	require.Empty(testingT, beta.KPIs)
	require.Empty(testingT, beta.EngagementSeries)
}

func TestLoadRejectsMissingVisitorID(testingT *testing.T) {
	_, loadErr := seed.Load(writeSeedFile(testingT, "profiles:\n  - first_name: Dana\n"))
	require.ErrorIs(testingT, loadErr, model.ErrInvalidVisitorIdentifier)
}

func TestLoadRejectsMalformedYAML(testingT *testing.T) {
	_, loadErr := seed.Load(writeSeedFile(testingT, "profiles: [unclosed"))
	require.Error(testingT, loadErr)
}

func TestApplyUpsertsProfiles(testingT *testing.T) {
	database := testutil.NewSQLiteTestDatabase(testingT).OpenMigrated(testingT)
	profiles, loadErr := seed.Load(writeSeedFile(testingT, seedFileContent))
	require.NoError(testingT, loadErr)

	require.NoError(testingT, seed.Apply(context.Background(), database, profiles))

	var storedCount int64
	require.NoError(testingT, database.Model(&model.VisitorProfile{}).Count(&storedCount).Error)
	require.Equal(testingT, int64(2), storedCount)

	// A second apply with a changed field updates in place.
	profiles[0].FirstName = "Dana Updated"
	require.NoError(testingT, seed.Apply(context.Background(), database, profiles))

	var stored model.VisitorProfile
	require.NoError(testingT, database.Where("visitor_id = ?", "visitor-alpha").First(&stored).Error)
	require.Equal(testingT, "Dana Updated", stored.FirstName)
	require.NoError(testingT, database.Model(&model.VisitorProfile{}).Count(&storedCount).Error)
	require.Equal(testingT, int64(2), storedCount)
}
