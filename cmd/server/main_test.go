package main_test

import (
	"bytes"
	"strings"
	"testing"

	"gorm.io/gorm"

	servercmd "github.com/MarkoPoloResearchLab/leadlens/cmd/server"
	"github.com/MarkoPoloResearchLab/leadlens/internal/storage"
)

const (
	testEnvironmentKeyDatabaseDataSourceName = "DB_DSN"
	testEnvironmentKeyPublicBaseURL          = "PUBLIC_BASE_URL"
	testEnvironmentKeyAdminBearerToken       = "ADMIN_BEARER_TOKEN"
	testEnvironmentKeySessionSecret          = "SESSION_SECRET"
	testPlaceholderDatabaseDSN               = "file:leadlens-test?mode=memory"
	testPlaceholderPublicBaseURL             = "https://dashboard.example.com"
	testPlaceholderAdminBearerToken          = "very-secret-token"
	testPlaceholderSessionSecret             = "session-secret-value"
	testMissingConfigurationMessage          = "missing required configuration"
	testFlagIndicator                        = "--"
	testUsagePrefix                          = "Usage:"
)

func TestServerCommandMissingConfigurationShowsHelp(t *testing.T) {
	testCases := []struct {
		name                string
		unsetEnvironmentKey string
		expectedMissingFlag string
	}{
		{
			name:                "missing database dsn",
			unsetEnvironmentKey: testEnvironmentKeyDatabaseDataSourceName,
			expectedMissingFlag: "db-dsn",
		},
		{
			name:                "missing public base url",
			unsetEnvironmentKey: testEnvironmentKeyPublicBaseURL,
			expectedMissingFlag: "public-base-url",
		},
		{
			name:                "missing admin bearer token",
			unsetEnvironmentKey: testEnvironmentKeyAdminBearerToken,
			expectedMissingFlag: "admin-bearer-token",
		},
		{
			name:                "missing session secret",
			unsetEnvironmentKey: testEnvironmentKeySessionSecret,
			expectedMissingFlag: "session-secret",
		},
	}

	for _, testCase := range testCases {
		testCase := testCase
		t.Run(testCase.name, func(t *testing.T) {
			environmentValues := map[string]string{
				testEnvironmentKeyDatabaseDataSourceName: testPlaceholderDatabaseDSN,
				testEnvironmentKeyPublicBaseURL:          testPlaceholderPublicBaseURL,
				testEnvironmentKeyAdminBearerToken:       testPlaceholderAdminBearerToken,
				testEnvironmentKeySessionSecret:          testPlaceholderSessionSecret,
			}
			environmentValues[testCase.unsetEnvironmentKey] = ""
			for environmentKey, environmentValue := range environmentValues {
				t.Setenv(environmentKey, environmentValue)
			}

			databaseOpenerStub := func(configuration storage.Config) (*gorm.DB, error) {
				t.Fatalf("database opener invoked with %s", configuration.DataSourceName)
				return nil, nil
			}

			application := servercmd.NewServerApplication().WithDatabaseOpener(databaseOpenerStub)
			command, commandErr := application.Command()
			if commandErr != nil {
				t.Fatalf("unexpected command construction error: %v", commandErr)
			}

			commandOutput := &bytes.Buffer{}
			command.SetOut(commandOutput)
			command.SetErr(commandOutput)

			executionErr := command.Execute()
			if executionErr == nil {
				t.Fatalf("expected error for missing configuration")
			}

			combinedOutput := commandOutput.String()
			if !strings.Contains(combinedOutput, testMissingConfigurationMessage) {
				t.Fatalf("expected combined output to mention missing configuration: %s", combinedOutput)
			}

			if !strings.Contains(combinedOutput, testUsagePrefix) {
				t.Fatalf("expected combined output to include usage instructions: %s", combinedOutput)
			}

			expectedFlagIndicator := testFlagIndicator + testCase.expectedMissingFlag
			if !strings.Contains(combinedOutput, expectedFlagIndicator) {
				t.Fatalf("expected help output to include flag %s, actual output: %s", expectedFlagIndicator, combinedOutput)
			}
		})
	}
}
