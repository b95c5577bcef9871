package model

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

const (
	testProfileVisitorID   = "42"
	testProfileFirstName   = "Ada"
	testProfileCompany     = "Acme Robotics"
	testProfileKPIDocument = `[{"label":"Win Rate","value":"18"}]`
)

func TestNormalizeVisitorIDTrims(testingT *testing.T) {
	normalized, normalizeErr := NormalizeVisitorID("  42  ")
	require.NoError(testingT, normalizeErr)
	require.Equal(testingT, testProfileVisitorID, normalized)
}

func TestNormalizeVisitorIDRejectsEmpty(testingT *testing.T) {
	_, normalizeErr := NormalizeVisitorID("   ")
	require.ErrorIs(testingT, normalizeErr, ErrInvalidVisitorIdentifier)
}

func TestNormalizeVisitorIDRejectsOverlong(testingT *testing.T) {
	_, normalizeErr := NormalizeVisitorID(strings.Repeat("x", VisitorIdentifierMaxLength+1))
	require.ErrorIs(testingT, normalizeErr, ErrInvalidVisitorIdentifier)
}

func TestRecordMapOmitsEmptyFields(testingT *testing.T) {
	profile := VisitorProfile{
		VisitorID:    testProfileVisitorID,
		FirstName:    testProfileFirstName,
		CompanyShort: testProfileCompany,
		KPIs:         testProfileKPIDocument,
	}

	record := profile.RecordMap()
	require.Equal(testingT, testProfileFirstName, record[FieldFirstName])
	require.Equal(testingT, testProfileCompany, record[FieldCompanyShort])
	require.Equal(testingT, testProfileKPIDocument, record[FieldKPIs])
	require.NotContains(testingT, record, FieldOrganizationName)
	require.NotContains(testingT, record, FieldResearchReport)
	require.Len(testingT, record, 3)
}

func TestRecordMapSkipsWhitespaceOnlyValues(testingT *testing.T) {
	profile := VisitorProfile{
		VisitorID:       testProfileVisitorID,
		CompanyOverview: "   ",
	}
	require.NotContains(testingT, profile.RecordMap(), FieldCompanyOverview)
}
