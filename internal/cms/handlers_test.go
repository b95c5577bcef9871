package cms_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/MarkoPoloResearchLab/leadlens/internal/cms"
	"github.com/MarkoPoloResearchLab/leadlens/internal/dashboard"
	"github.com/MarkoPoloResearchLab/leadlens/internal/model"
	"github.com/MarkoPoloResearchLab/leadlens/internal/testutil"
)

const (
	testAdminBearerToken = "admin-secret"
	testBookingLink      = "https://calendar.example.com/book"
	testVisitorID        = "visitor-alpha"
)

type testEnvelope struct {
	Success bool                       `json:"success"`
	Data    map[string]json.RawMessage `json:"data"`
}

func newCMSServer(testingT *testing.T, mutate func(*cms.Config)) (*httptest.Server, *gorm.DB) {
	testingT.Helper()
	gin.SetMode(gin.TestMode)

	database := testutil.NewSQLiteTestDatabase(testingT).OpenMigrated(testingT)

	configuration := cms.Config{
		Database:     database,
		Logger:       zap.NewNop(),
		SessionStore: cms.NewSessionStore("test-session-secret"),
		NonceStore:   cms.NewNonceStore(time.Minute),
		BookingLink:  testBookingLink,
		UseAjaxProxy: true,
	}
	if mutate != nil {
		mutate(&configuration)
	}

	router := gin.New()
	var recordLimiter *cms.ClientRateLimiter
	cms.Register(router, cms.NewHandlers(configuration), testAdminBearerToken, recordLimiter)

	server := httptest.NewServer(router)
	testingT.Cleanup(server.Close)
	return server, database
}

func newSessionClient(testingT *testing.T) *http.Client {
	testingT.Helper()
	jar, jarErr := cookiejar.New(nil)
	require.NoError(testingT, jarErr)
	return &http.Client{Jar: jar, Timeout: 5 * time.Second}
}

func fetchDashboardConfig(testingT *testing.T, client *http.Client, serverURL string) (string, string) {
	testingT.Helper()
	response, getErr := client.Get(serverURL + dashboard.ConfigurationEndpointPath)
	require.NoError(testingT, getErr)
	defer func() {
		_ = response.Body.Close()
	}()
	require.Equal(testingT, http.StatusOK, response.StatusCode)

	var envelope testEnvelope
	require.NoError(testingT, json.NewDecoder(response.Body).Decode(&envelope))
	require.True(testingT, envelope.Success)

	var ajaxURL string
	require.NoError(testingT, json.Unmarshal(envelope.Data["ajax_url"], &ajaxURL))
	var nonce string
	require.NoError(testingT, json.Unmarshal(envelope.Data["nonce"], &nonce))
	return ajaxURL, nonce
}

func postVisitorRecord(testingT *testing.T, client *http.Client, serverURL string, form url.Values) (*http.Response, testEnvelope) {
	testingT.Helper()
	response, postErr := client.PostForm(serverURL+dashboard.RecordEndpointPath, form)
	require.NoError(testingT, postErr)
	defer func() {
		_ = response.Body.Close()
	}()

	var envelope testEnvelope
	require.NoError(testingT, json.NewDecoder(response.Body).Decode(&envelope))
	return response, envelope
}

func recordForm(nonce string, visitorID string) url.Values {
	form := url.Values{}
	form.Set(dashboard.FormFieldAction, dashboard.FetchActionName)
	form.Set(dashboard.FormFieldNonce, nonce)
	form.Set(dashboard.FormFieldVisitorID, visitorID)
	return form
}

func seedProfile(testingT *testing.T, database *gorm.DB, visitorID string) {
	testingT.Helper()
	profile := model.VisitorProfile{
		VisitorID:        visitorID,
		FirstName:        "Dana",
		CompanyShort:     "Acme",
		OrganizationName: "Acme Industries",
		CompanyOverview:  "Acme builds everything.",
	}
	require.NoError(testingT, database.Create(&profile).Error)
}

func TestDashboardConfigIssuesSessionBoundNonce(testingT *testing.T) {
	server, _ := newCMSServer(testingT, nil)
	client := newSessionClient(testingT)

	response, getErr := client.Get(server.URL + dashboard.ConfigurationEndpointPath)
	require.NoError(testingT, getErr)
	defer func() {
		_ = response.Body.Close()
	}()
	require.Equal(testingT, http.StatusOK, response.StatusCode)

	var envelope testEnvelope
	require.NoError(testingT, json.NewDecoder(response.Body).Decode(&envelope))
	require.True(testingT, envelope.Success)

	var ajaxURL string
	require.NoError(testingT, json.Unmarshal(envelope.Data["ajax_url"], &ajaxURL))
	require.True(testingT, strings.HasSuffix(ajaxURL, dashboard.RecordEndpointPath))

	var nonce string
	require.NoError(testingT, json.Unmarshal(envelope.Data["nonce"], &nonce))
	require.NotEmpty(testingT, nonce)

	var bookingLink string
	require.NoError(testingT, json.Unmarshal(envelope.Data["bookingLink"], &bookingLink))
	require.Equal(testingT, testBookingLink, bookingLink)

	var useAjaxProxy bool
	require.NoError(testingT, json.Unmarshal(envelope.Data["useAjaxProxy"], &useAjaxProxy))
	require.True(testingT, useAjaxProxy)
}

func TestVisitorRecordRoundTrip(testingT *testing.T) {
	server, database := newCMSServer(testingT, nil)
	seedProfile(testingT, database, testVisitorID)
	client := newSessionClient(testingT)

	_, nonce := fetchDashboardConfig(testingT, client, server.URL)
	response, envelope := postVisitorRecord(testingT, client, server.URL, recordForm(nonce, testVisitorID))
	require.Equal(testingT, http.StatusOK, response.StatusCode)
	require.True(testingT, envelope.Success)

	var firstName string
	require.NoError(testingT, json.Unmarshal(envelope.Data[model.FieldFirstName], &firstName))
	require.Equal(testingT, "Dana", firstName)
	require.NotContains(testingT, envelope.Data, model.FieldLogoURL)
}

func TestVisitorRecordUnknownVisitorReturnsEmptySuccess(testingT *testing.T) {
	server, database := newCMSServer(testingT, nil)
	client := newSessionClient(testingT)

	_, nonce := fetchDashboardConfig(testingT, client, server.URL)
	response, envelope := postVisitorRecord(testingT, client, server.URL, recordForm(nonce, "visitor-unknown"))
	require.Equal(testingT, http.StatusOK, response.StatusCode)
	require.True(testingT, envelope.Success)
	require.Empty(testingT, envelope.Data)

	var auditCount int64
	require.NoError(testingT, database.Model(&model.RecordFetch{}).
		Where("visitor_id = ? AND found = ?", "visitor-unknown", false).
		Count(&auditCount).Error)
	require.Equal(testingT, int64(1), auditCount)
}

func TestVisitorRecordRejectsInvalidNonce(testingT *testing.T) {
	server, _ := newCMSServer(testingT, nil)
	client := newSessionClient(testingT)

	response, envelope := postVisitorRecord(testingT, client, server.URL, recordForm("not-a-nonce", testVisitorID))
	require.Equal(testingT, http.StatusForbidden, response.StatusCode)
	require.False(testingT, envelope.Success)

	var message string
	require.NoError(testingT, json.Unmarshal(envelope.Data["message"], &message))
	require.Equal(testingT, dashboard.ErrorCodeExpiredNonce, message)
}

func TestVisitorRecordNonceBoundToIssuingSession(testingT *testing.T) {
	server, _ := newCMSServer(testingT, nil)
	issuingClient := newSessionClient(testingT)
	otherClient := newSessionClient(testingT)

	_, nonce := fetchDashboardConfig(testingT, issuingClient, server.URL)
	response, _ := postVisitorRecord(testingT, otherClient, server.URL, recordForm(nonce, testVisitorID))
	require.Equal(testingT, http.StatusForbidden, response.StatusCode)
}

func TestVisitorRecordRejectsUnknownAction(testingT *testing.T) {
	server, _ := newCMSServer(testingT, nil)
	client := newSessionClient(testingT)

	_, nonce := fetchDashboardConfig(testingT, client, server.URL)
	form := recordForm(nonce, testVisitorID)
	form.Set(dashboard.FormFieldAction, "some_other_action")
	response, envelope := postVisitorRecord(testingT, client, server.URL, form)
	require.Equal(testingT, http.StatusBadRequest, response.StatusCode)
	require.False(testingT, envelope.Success)
}

func TestVisitorRecordProxyDisabled(testingT *testing.T) {
	server, _ := newCMSServer(testingT, func(configuration *cms.Config) {
		configuration.UseAjaxProxy = false
	})
	client := newSessionClient(testingT)

	response, envelope := postVisitorRecord(testingT, client, server.URL, recordForm("ignored", testVisitorID))
	require.Equal(testingT, http.StatusOK, response.StatusCode)
	require.False(testingT, envelope.Success)
}

func TestVisitorRecordRateLimitRejectsBursts(testingT *testing.T) {
	gin.SetMode(gin.TestMode)
	database := testutil.NewSQLiteTestDatabase(testingT).OpenMigrated(testingT)
	router := gin.New()
	handlers := cms.NewHandlers(cms.Config{
		Database:     database,
		Logger:       zap.NewNop(),
		SessionStore: cms.NewSessionStore("test-session-secret"),
		NonceStore:   cms.NewNonceStore(time.Minute),
		UseAjaxProxy: true,
	})
	cms.Register(router, handlers, testAdminBearerToken, cms.NewClientRateLimiter(1, 1))
	server := httptest.NewServer(router)
	testingT.Cleanup(server.Close)
	client := newSessionClient(testingT)

	firstResponse, _ := postVisitorRecord(testingT, client, server.URL, recordForm("stale", testVisitorID))
	require.Equal(testingT, http.StatusForbidden, firstResponse.StatusCode)

	secondResponse, postErr := client.PostForm(server.URL+dashboard.RecordEndpointPath, recordForm("stale", testVisitorID))
	require.NoError(testingT, postErr)
	defer func() {
		_ = secondResponse.Body.Close()
	}()
	require.Equal(testingT, http.StatusTooManyRequests, secondResponse.StatusCode)
}

func TestDashboardClientRoundTripAgainstCMS(testingT *testing.T) {
	server, database := newCMSServer(testingT, func(configuration *cms.Config) {
		configuration.PublicBaseURL = ""
	})
	seedProfile(testingT, database, testVisitorID)
	client := newSessionClient(testingT)

	loader := dashboard.NewHTTPConfigurationLoader(server.URL, client, zap.NewNop())
	configuration, loadFailure := loader.Load(context.Background())
	require.Nil(testingT, loadFailure)

	// The public base URL is unset in tests, so the advertised ajax_url is
	// path-only; point it at the test server.
	configuration.AjaxURL = server.URL + dashboard.RecordEndpointPath

	fetcher := dashboard.NewHTTPRecordFetcher(client, zap.NewNop())
	outcome := fetcher.Fetch(context.Background(), testVisitorID, configuration)
	require.Nil(testingT, outcome.Failure)
	require.False(testingT, outcome.NoData)
	require.Equal(testingT, "Dana", outcome.Record[model.FieldFirstName])
}
