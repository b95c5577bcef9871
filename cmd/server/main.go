package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"os"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/MarkoPoloResearchLab/leadlens/internal/cms"
	"github.com/MarkoPoloResearchLab/leadlens/internal/dashboard"
	"github.com/MarkoPoloResearchLab/leadlens/internal/storage"
	"github.com/MarkoPoloResearchLab/leadlens/internal/task"
	"github.com/MarkoPoloResearchLab/leadlens/internal/webui"
)

const (
	commandUseName              = "server"
	commandShortDescription     = "Run the lead dashboard server"
	commandLongDescription      = "Launch the personalized lead dashboard HTTP server"
	missingConfigurationMessage = "missing required configuration"
	loggerCreationErrorMessage  = "logger"
	logEventListening           = "listening"
	logFieldAddress             = "addr"

	flagNameApplicationAddress     = "app-addr"
	flagNameDatabaseDataSourceName = "db-dsn"
	flagNamePublicBaseURL          = "public-base-url"
	flagNameAdminBearerToken       = "admin-bearer-token"
	flagNameSessionSecret          = "session-secret"
	flagNameBookingLink            = "booking-link"
	flagNameNonceTTL               = "nonce-ttl"
	flagNameProxyEnabled           = "proxy-enabled"
	flagNameFetchRetentionDays     = "fetch-retention-days"
	flagNameRollupInterval         = "rollup-interval"

	environmentKeyApplicationAddress = "APP_ADDR"
	environmentKeyDatabaseDataSource = "DB_DSN"
	environmentKeyPublicBaseURL      = "PUBLIC_BASE_URL"
	environmentKeyAdminBearerToken   = "ADMIN_BEARER_TOKEN"
	environmentKeySessionSecret      = "SESSION_SECRET"
	environmentKeyBookingLink        = "BOOKING_LINK"
	environmentKeyNonceTTL           = "NONCE_TTL"
	environmentKeyProxyEnabled       = "PROXY_ENABLED"
	environmentKeyFetchRetentionDays = "FETCH_RETENTION_DAYS"
	environmentKeyRollupInterval     = "ROLLUP_INTERVAL"

	defaultApplicationAddress = ":8080"
	defaultNonceTTL           = cms.DefaultNonceTTL
	defaultProxyEnabled       = true
	defaultFetchRetentionDays = 90
	defaultRollupInterval     = time.Hour

	recordRateLimitPerSecond = 5.0
	recordRateLimitBurst     = 10

	corsOriginWildcard      = "*"
	corsHeaderAuthorization = "Authorization"
	corsHeaderContentType   = "Content-Type"
	httpMethodGet           = "GET"
	httpMethodOptions       = "OPTIONS"
	httpMethodPost          = "POST"

	loggerContextOpenDatabase = "open_db"
	loggerContextAutoMigrate  = "migrate"
	loggerContextServer       = "server"
	loggerContextRollup       = "fetch_rollup"

	readHeaderTimeoutSeconds      = 5
	controllerHTTPTimeout         = 10 * time.Second
	unexpectedArgumentsMessage    = "unexpected command arguments"
	commandInitializationFailure  = "failed to configure command"
	flagNotDefinedMessage         = "flag %s not defined"
	environmentConfigurationError = "failed to apply environment configuration"
)

var (
	corsAllowedMethods = []string{httpMethodPost, httpMethodGet, httpMethodOptions}
	corsAllowedHeaders = []string{corsHeaderAuthorization, corsHeaderContentType}
	corsExposedHeaders = []string{corsHeaderContentType}
	corsAllowOrigins   = []string{corsOriginWildcard}
)

// ServerConfig captures configuration needed to run the server.
type ServerConfig struct {
	ApplicationAddress     string
	DatabaseDataSourceName string
	PublicBaseURL          string
	AdminBearerToken       string
	SessionSecret          string
	BookingLink            string
	NonceTTL               time.Duration
	ProxyEnabled           bool
	FetchRetentionDays     int
	RollupInterval         time.Duration
}

// DatabaseOpener opens a database connection from a storage configuration.
type DatabaseOpener func(storage.Config) (*gorm.DB, error)

// ServerApplication constructs and executes the server command.
type ServerApplication struct {
	configurationLoader *viper.Viper
	databaseOpener      DatabaseOpener
}

// NewServerApplication creates a ServerApplication with default dependencies.
func NewServerApplication() *ServerApplication {
	return &ServerApplication{
		configurationLoader: viper.New(),
		databaseOpener:      storage.OpenDatabase,
	}
}

// WithDatabaseOpener overrides the database opener dependency.
func (application *ServerApplication) WithDatabaseOpener(databaseOpener DatabaseOpener) *ServerApplication {
	application.databaseOpener = databaseOpener
	return application
}

// Command builds the Cobra command for the server.
func (application *ServerApplication) Command() (*cobra.Command, error) {
	rootCommand := &cobra.Command{
		Use:   commandUseName,
		Short: commandShortDescription,
		Long:  commandLongDescription,
		RunE:  application.runCommand,
	}

	if configurationErr := application.configureCommand(rootCommand); configurationErr != nil {
		return nil, configurationErr
	}

	return rootCommand, nil
}

// flagBindings pairs every flag with the environment key that overrides it.
var flagBindings = []struct {
	environmentKey string
	flagName       string
}{
	{environmentKeyApplicationAddress, flagNameApplicationAddress},
	{environmentKeyDatabaseDataSource, flagNameDatabaseDataSourceName},
	{environmentKeyPublicBaseURL, flagNamePublicBaseURL},
	{environmentKeyAdminBearerToken, flagNameAdminBearerToken},
	{environmentKeySessionSecret, flagNameSessionSecret},
	{environmentKeyBookingLink, flagNameBookingLink},
	{environmentKeyNonceTTL, flagNameNonceTTL},
	{environmentKeyProxyEnabled, flagNameProxyEnabled},
	{environmentKeyFetchRetentionDays, flagNameFetchRetentionDays},
	{environmentKeyRollupInterval, flagNameRollupInterval},
}

var requiredFlagNames = []string{
	flagNameDatabaseDataSourceName,
	flagNamePublicBaseURL,
	flagNameAdminBearerToken,
	flagNameSessionSecret,
}

func (application *ServerApplication) configureCommand(command *cobra.Command) error {
	application.configurationLoader.SetDefault(environmentKeyApplicationAddress, defaultApplicationAddress)
	application.configurationLoader.AutomaticEnv()

	commandFlags := command.Flags()
	commandFlags.String(flagNameApplicationAddress, defaultApplicationAddress, "address for the HTTP server to listen on")
	commandFlags.String(flagNameDatabaseDataSourceName, "", "SQLite connection string")
	commandFlags.String(flagNamePublicBaseURL, "", "absolute base URL the dashboard is served from")
	commandFlags.String(flagNameAdminBearerToken, "", "bearer token required for admin API access")
	commandFlags.String(flagNameSessionSecret, "", "secret key for browser session cookies")
	commandFlags.String(flagNameBookingLink, "", "absolute URL of the booking call-to-action")
	commandFlags.Duration(flagNameNonceTTL, defaultNonceTTL, "lifetime of issued session tokens")
	commandFlags.Bool(flagNameProxyEnabled, defaultProxyEnabled, "serve visitor records through the proxy endpoint")
	commandFlags.Int(flagNameFetchRetentionDays, defaultFetchRetentionDays, "days to keep raw fetch audit rows")
	commandFlags.Duration(flagNameRollupInterval, defaultRollupInterval, "interval between fetch rollup runs")

	for _, binding := range flagBindings {
		if bindErr := application.bindFlag(commandFlags, binding.environmentKey, binding.flagName); bindErr != nil {
			return bindErr
		}
		if environmentErr := application.applyEnvironmentConfiguration(commandFlags, binding.environmentKey, binding.flagName); environmentErr != nil {
			return environmentErr
		}
	}

	for _, flagName := range requiredFlagNames {
		if markErr := command.MarkFlagRequired(flagName); markErr != nil {
			return markErr
		}
	}

	return nil
}

func (application *ServerApplication) bindFlag(flagSet *pflag.FlagSet, environmentKey string, flagName string) error {
	flag := flagSet.Lookup(flagName)
	if flag == nil {
		return fmt.Errorf(flagNotDefinedMessage, flagName)
	}

	if bindErr := application.configurationLoader.BindPFlag(environmentKey, flag); bindErr != nil {
		return bindErr
	}

	return nil
}

func (application *ServerApplication) applyEnvironmentConfiguration(flagSet *pflag.FlagSet, environmentKey string, flagName string) error {
	environmentValue, environmentFound := os.LookupEnv(environmentKey)
	if !environmentFound {
		return nil
	}

	if setErr := flagSet.Set(flagName, environmentValue); setErr != nil {
		return fmt.Errorf("%s: %w", environmentConfigurationError, setErr)
	}

	return nil
}

func (application *ServerApplication) loadConfiguration() ServerConfig {
	return ServerConfig{
		ApplicationAddress:     application.configurationLoader.GetString(environmentKeyApplicationAddress),
		DatabaseDataSourceName: strings.TrimSpace(application.configurationLoader.GetString(environmentKeyDatabaseDataSource)),
		PublicBaseURL:          strings.TrimSpace(application.configurationLoader.GetString(environmentKeyPublicBaseURL)),
		AdminBearerToken:       strings.TrimSpace(application.configurationLoader.GetString(environmentKeyAdminBearerToken)),
		SessionSecret:          strings.TrimSpace(application.configurationLoader.GetString(environmentKeySessionSecret)),
		BookingLink:            strings.TrimSpace(application.configurationLoader.GetString(environmentKeyBookingLink)),
		NonceTTL:               application.configurationLoader.GetDuration(environmentKeyNonceTTL),
		ProxyEnabled:           application.configurationLoader.GetBool(environmentKeyProxyEnabled),
		FetchRetentionDays:     application.configurationLoader.GetInt(environmentKeyFetchRetentionDays),
		RollupInterval:         application.configurationLoader.GetDuration(environmentKeyRollupInterval),
	}
}

func (application *ServerApplication) runCommand(command *cobra.Command, arguments []string) error {
	if len(arguments) > 0 {
		return fmt.Errorf("%s: %s", unexpectedArgumentsMessage, strings.Join(arguments, " "))
	}

	serverConfig := application.loadConfiguration()
	if validationErr := application.ensureRequiredConfiguration(serverConfig); validationErr != nil {
		return validationErr
	}

	logger, loggerErr := zap.NewProduction()
	if loggerErr != nil {
		return fmt.Errorf("%s: %w", loggerCreationErrorMessage, loggerErr)
	}
	defer func() {
		_ = logger.Sync()
	}()

	database, databaseErr := application.databaseOpener(storage.Config{
		DriverName:     storage.DriverNameSQLite,
		DataSourceName: serverConfig.DatabaseDataSourceName,
	})
	if databaseErr != nil {
		logger.Fatal(loggerContextOpenDatabase, zap.Error(databaseErr))
	}

	if migrateErr := storage.AutoMigrate(database); migrateErr != nil {
		logger.Fatal(loggerContextAutoMigrate, zap.Error(migrateErr))
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(cms.RequestLogger(logger))

	router.Use(cors.New(cors.Config{
		AllowOrigins:     corsAllowOrigins,
		AllowMethods:     corsAllowedMethods,
		AllowHeaders:     corsAllowedHeaders,
		ExposeHeaders:    corsExposedHeaders,
		AllowCredentials: false,
		MaxAge:           12 * time.Hour,
	}))

	sessionStore := cms.NewSessionStore(serverConfig.SessionSecret)
	cmsHandlers := cms.NewHandlers(cms.Config{
		Database:      database,
		Logger:        logger,
		SessionStore:  sessionStore,
		NonceStore:    cms.NewNonceStore(serverConfig.NonceTTL),
		PublicBaseURL: serverConfig.PublicBaseURL,
		BookingLink:   serverConfig.BookingLink,
		UseAjaxProxy:  serverConfig.ProxyEnabled,
	})
	cms.Register(router, cmsHandlers, serverConfig.AdminBearerToken,
		cms.NewClientRateLimiter(recordRateLimitPerSecond, recordRateLimitBurst))

	pageSessions := webui.NewPageSessions(webui.DefaultPageSessionTTL,
		newControllerFactory(serverConfig.PublicBaseURL, logger), logger)
	pageHandlers := webui.NewDashboardPageHandlers(logger, sessionStore, pageSessions)
	webui.Register(router, pageHandlers)

	rollupJob := task.NewFetchRollupJob(database, logger, task.FetchRollupConfig{
		RetentionDays: serverConfig.FetchRetentionDays,
	})
	rollupScheduler := task.NewScheduler(serverConfig.RollupInterval, func(ctx context.Context) {
		if runErr := rollupJob.Run(ctx); runErr != nil {
			logger.Warn(loggerContextRollup, zap.Error(runErr))
		}
	})
	rollupScheduler.Start(context.Background())
	defer rollupScheduler.Stop()

	httpServer := &http.Server{
		Addr:              serverConfig.ApplicationAddress,
		Handler:           router,
		ReadHeaderTimeout: readHeaderTimeoutSeconds * time.Second,
	}

	logger.Info(logEventListening, zap.String(logFieldAddress, serverConfig.ApplicationAddress))
	if serveErr := httpServer.ListenAndServe(); serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
		logger.Fatal(loggerContextServer, zap.Error(serveErr))
	}

	return nil
}

// newControllerFactory builds per-session dashboard controllers. Each
// controller gets its own cookie-carrying HTTP client so the session token it
// is issued stays bound to the browser session it serves.
func newControllerFactory(publicBaseURL string, logger *zap.Logger) webui.ControllerFactory {
	return func() *dashboard.Controller {
		jar, jarErr := cookiejar.New(nil)
		if jarErr != nil {
			jar = nil
		}
		loopbackClient := &http.Client{Jar: jar, Timeout: controllerHTTPTimeout}
		loader := dashboard.NewHTTPConfigurationLoader(publicBaseURL, loopbackClient, logger)
		fetcher := dashboard.NewHTTPRecordFetcher(loopbackClient, logger)
		return dashboard.NewController(loader, fetcher, logger)
	}
}

func (application *ServerApplication) ensureRequiredConfiguration(configuration ServerConfig) error {
	var missingParameters []string

	if configuration.DatabaseDataSourceName == "" {
		missingParameters = append(missingParameters, flagNameDatabaseDataSourceName)
	}

	if configuration.PublicBaseURL == "" {
		missingParameters = append(missingParameters, flagNamePublicBaseURL)
	}

	if configuration.AdminBearerToken == "" {
		missingParameters = append(missingParameters, flagNameAdminBearerToken)
	}

	if configuration.SessionSecret == "" {
		missingParameters = append(missingParameters, flagNameSessionSecret)
	}

	if len(missingParameters) == 0 {
		return nil
	}

	return fmt.Errorf("%s: %s", missingConfigurationMessage, strings.Join(missingParameters, ", "))
}

func main() {
	application := NewServerApplication()
	rootCommand, commandErr := application.Command()
	if commandErr != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", commandInitializationFailure, commandErr)
		os.Exit(1)
	}

	if executeErr := rootCommand.Execute(); executeErr != nil {
		os.Exit(1)
	}
}
