package view

import (
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/MarkoPoloResearchLab/leadlens/internal/dashboard"
	"github.com/MarkoPoloResearchLab/leadlens/internal/model"
)

func loadedSnapshot(record dashboard.Record) dashboard.Snapshot {
	return dashboard.Snapshot{
		State:      dashboard.StateDataLoaded,
		Identifier: "42",
		Record:     record,
	}
}

func TestProjectUsesCompanyFallbackWhenBothNamesMissing(testingT *testing.T) {
	viewModel := Project(loadedSnapshot(dashboard.Record{model.FieldFirstName: "Ada"}), zap.NewNop())
	require.Equal(testingT, FallbackCompanyName, viewModel.CompanyName)
}

func TestProjectPrefersShortCompanyName(testingT *testing.T) {
	record := dashboard.Record{
		model.FieldCompanyShort:     "Acme",
		model.FieldOrganizationName: "Acme Robotics Incorporated",
	}
	require.Equal(testingT, "Acme", Project(loadedSnapshot(record), zap.NewNop()).CompanyName)
}

func TestProjectFallsBackToOrganizationName(testingT *testing.T) {
	record := dashboard.Record{model.FieldOrganizationName: "Acme Robotics Incorporated"}
	require.Equal(testingT, "Acme Robotics Incorporated", Project(loadedSnapshot(record), zap.NewNop()).CompanyName)
}

func TestProjectUsesFirstNameFallback(testingT *testing.T) {
	viewModel := Project(loadedSnapshot(dashboard.Record{model.FieldCompanyShort: "Acme"}), zap.NewNop())
	require.Equal(testingT, FallbackFirstName, viewModel.FirstName)
}

func TestProjectGreetingNamesVisitorAndCompany(testingT *testing.T) {
	record := dashboard.Record{
		model.FieldFirstName:    "Ada",
		model.FieldCompanyShort: "Acme",
	}
	viewModel := Project(loadedSnapshot(record), zap.NewNop())
	require.Contains(testingT, viewModel.StatusMessage, "Ada")
	require.Contains(testingT, viewModel.StatusMessage, "Acme")
}

func TestProjectDropsRelativeLogoURL(testingT *testing.T) {
	record := dashboard.Record{model.FieldLogoURL: "/assets/logo.png"}
	require.Empty(testingT, Project(loadedSnapshot(record), zap.NewNop()).LogoURL)
}

func TestProjectDropsNonHTTPWebsiteURL(testingT *testing.T) {
	record := dashboard.Record{model.FieldWebsiteURL: "javascript:alert(1)"}
	require.Empty(testingT, Project(loadedSnapshot(record), zap.NewNop()).WebsiteURL)
}

func TestProjectKeepsAbsoluteURLs(testingT *testing.T) {
	record := dashboard.Record{
		model.FieldLogoURL:    "https://cdn.example/logo.png",
		model.FieldWebsiteURL: "http://acme.example",
	}
	viewModel := Project(loadedSnapshot(record), zap.NewNop())
	require.Equal(testingT, "https://cdn.example/logo.png", viewModel.LogoURL)
	require.Equal(testingT, "http://acme.example", viewModel.WebsiteURL)
}

func TestProjectParsesValidServiceList(testingT *testing.T) {
	record := dashboard.Record{model.FieldCoreServices: `["Automation","Consulting"," "]`}
	require.Equal(testingT, []string{"Automation", "Consulting"}, Project(loadedSnapshot(record), zap.NewNop()).Services)
}

func TestProjectRendersNothingForInvalidServiceList(testingT *testing.T) {
	record := dashboard.Record{model.FieldCoreServices: `{"not":"a list"}`}
	require.Nil(testingT, Project(loadedSnapshot(record), zap.NewNop()).Services)
}

func TestProjectRendersThreeKPICardsForValidList(testingT *testing.T) {
	record := dashboard.Record{
		model.FieldKPIs: `[{"label":"Win Rate","value":18,"target":"25"},{"label":"Coverage","value":"2.1","target":3},{"label":"Response","value":"48","target":"4"}]`,
	}
	kpis := Project(loadedSnapshot(record), zap.NewNop()).KPIs
	require.Len(testingT, kpis, 3)
	require.Equal(testingT, "Win Rate", kpis[0].Label)
	require.Equal(testingT, "18", kpis[0].Value.String())
	require.Equal(testingT, "25", kpis[0].Target.String())
	require.Equal(testingT, "3", kpis[1].Target.String())
}

func TestProjectFallsBackToDefaultKPISetOnInvalidJSON(testingT *testing.T) {
	for _, rawField := range []string{"", "   ", "not json", "[]"} {
		record := dashboard.Record{model.FieldKPIs: rawField, model.FieldFirstName: "Ada"}
		kpis := Project(loadedSnapshot(record), zap.NewNop()).KPIs
		require.Len(testingT, kpis, len(DefaultKPIs()), rawField)
		require.Equal(testingT, DefaultKPIs()[0].Label, kpis[0].Label)
	}
}

func TestProjectDefaultsEngagementSeries(testingT *testing.T) {
	record := dashboard.Record{model.FieldEngagementSeries: "not json", model.FieldFirstName: "Ada"}
	viewModel := Project(loadedSnapshot(record), zap.NewNop())
	require.Equal(testingT, defaultEngagementSeries(), viewModel.Series)
	require.NotEmpty(testingT, viewModel.SeriesJSON)
}

func TestProjectParsesEngagementSeries(testingT *testing.T) {
	record := dashboard.Record{model.FieldEngagementSeries: `[1,2.5,3]`}
	require.Equal(testingT, []float64{1, 2.5, 3}, Project(loadedSnapshot(record), zap.NewNop()).Series)
}

func TestProjectReadyStateKeepsPromptAndEnablesInput(testingT *testing.T) {
	snapshot := dashboard.Snapshot{State: dashboard.StateReady, StatusMessage: "Enter a Visitor ID to begin."}
	viewModel := Project(snapshot, zap.NewNop())
	require.Equal(testingT, "Enter a Visitor ID to begin.", viewModel.StatusMessage)
	require.True(testingT, viewModel.InputEnabled)
	require.False(testingT, viewModel.HasRecord)
}

func TestProjectLoadingStateDisablesInput(testingT *testing.T) {
	snapshot := dashboard.Snapshot{State: dashboard.StateLoading, StatusMessage: "Loading data for 42..."}
	require.False(testingT, Project(snapshot, zap.NewNop()).InputEnabled)
}

func TestProjectConfigurationFailureDisablesInputAndRetryHint(testingT *testing.T) {
	snapshot := dashboard.Snapshot{
		State:         dashboard.StateError,
		FailureKind:   dashboard.FailureConfiguration,
		StatusMessage: "The dashboard configuration service returned an unexpected response.",
	}
	viewModel := Project(snapshot, zap.NewNop())
	require.False(testingT, viewModel.InputEnabled)
	require.False(testingT, viewModel.ShowRetryHint)
}

func TestProjectTransientFailureShowsRetryHint(testingT *testing.T) {
	snapshot := dashboard.Snapshot{
		State:         dashboard.StateError,
		FailureKind:   dashboard.FailureTransport,
		StatusMessage: "Could not reach the data service.",
	}
	viewModel := Project(snapshot, zap.NewNop())
	require.True(testingT, viewModel.ShowRetryHint)
	require.True(testingT, viewModel.InputEnabled)
}

func TestProjectBookingLinkRequiresAbsoluteURL(testingT *testing.T) {
	snapshot := dashboard.Snapshot{
		State:         dashboard.StateReady,
		Configuration: &dashboard.Configuration{BookingLink: "https://cal.example/book"},
	}
	require.Equal(testingT, "https://cal.example/book", Project(snapshot, zap.NewNop()).BookingLink)

	snapshot.Configuration.BookingLink = "book-now"
	require.Empty(testingT, Project(snapshot, zap.NewNop()).BookingLink)
}
