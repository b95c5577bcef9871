package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/MarkoPoloResearchLab/leadlens/internal/seed"
	"github.com/MarkoPoloResearchLab/leadlens/internal/storage"
)

const (
	commandUseName          = "seed"
	commandShortDescription = "Load visitor profiles from a seed file"
	commandLongDescription  = "Parse a YAML seed file and upsert its visitor profiles into the database"

	flagNameDatabaseDataSourceName = "db-dsn"
	flagNameSeedFile               = "seed-file"

	environmentKeyDatabaseDataSource = "DB_DSN"
	environmentKeySeedFile           = "SEED_FILE"

	missingConfigurationMessage   = "missing required configuration"
	loggerCreationErrorMessage    = "logger"
	logEventSeeded                = "seeded"
	logFieldProfileCount          = "profiles"
	loggerContextOpenDatabase     = "open_db"
	loggerContextAutoMigrate      = "migrate"
	loggerContextLoadSeed         = "load_seed"
	loggerContextApplySeed        = "apply_seed"
	unexpectedArgumentsMessage    = "unexpected command arguments"
	commandInitializationFailure  = "failed to configure command"
	flagNotDefinedMessage         = "flag %s not defined"
	environmentConfigurationError = "failed to apply environment configuration"
)

// SeedConfig captures configuration needed to run the seeder.
type SeedConfig struct {
	DatabaseDataSourceName string
	SeedFilePath           string
}

// DatabaseOpener opens a database connection from a storage configuration.
type DatabaseOpener func(storage.Config) (*gorm.DB, error)

// SeedApplication constructs and executes the seed command.
type SeedApplication struct {
	configurationLoader *viper.Viper
	databaseOpener      DatabaseOpener
}

// NewSeedApplication creates a SeedApplication with default dependencies.
func NewSeedApplication() *SeedApplication {
	return &SeedApplication{
		configurationLoader: viper.New(),
		databaseOpener:      storage.OpenDatabase,
	}
}

// Command builds the Cobra command for the seeder.
func (application *SeedApplication) Command() (*cobra.Command, error) {
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

func (application *SeedApplication) configureCommand(command *cobra.Command) error {
	application.configurationLoader.AutomaticEnv()

	commandFlags := command.Flags()
	commandFlags.String(flagNameDatabaseDataSourceName, "", "SQLite connection string")
	commandFlags.String(flagNameSeedFile, "", "path to the YAML seed file")

	bindings := []struct {
		environmentKey string
		flagName       string
	}{
		{environmentKeyDatabaseDataSource, flagNameDatabaseDataSourceName},
		{environmentKeySeedFile, flagNameSeedFile},
	}
	for _, binding := range bindings {
		if bindErr := application.bindFlag(commandFlags, binding.environmentKey, binding.flagName); bindErr != nil {
			return bindErr
		}
		if environmentErr := application.applyEnvironmentConfiguration(commandFlags, binding.environmentKey, binding.flagName); environmentErr != nil {
			return environmentErr
		}
	}

	if markErr := command.MarkFlagRequired(flagNameDatabaseDataSourceName); markErr != nil {
		return markErr
	}
	if markErr := command.MarkFlagRequired(flagNameSeedFile); markErr != nil {
		return markErr
	}

	return nil
}

func (application *SeedApplication) bindFlag(flagSet *pflag.FlagSet, environmentKey string, flagName string) error {
	flag := flagSet.Lookup(flagName)
	if flag == nil {
		return fmt.Errorf(flagNotDefinedMessage, flagName)
	}

	if bindErr := application.configurationLoader.BindPFlag(environmentKey, flag); bindErr != nil {
		return bindErr
	}

	return nil
}

func (application *SeedApplication) applyEnvironmentConfiguration(flagSet *pflag.FlagSet, environmentKey string, flagName string) error {
	environmentValue, environmentFound := os.LookupEnv(environmentKey)
	if !environmentFound {
		return nil
	}

	if setErr := flagSet.Set(flagName, environmentValue); setErr != nil {
		return fmt.Errorf("%s: %w", environmentConfigurationError, setErr)
	}

	return nil
}

func (application *SeedApplication) runCommand(command *cobra.Command, arguments []string) error {
	if len(arguments) > 0 {
		return fmt.Errorf("%s: %s", unexpectedArgumentsMessage, strings.Join(arguments, " "))
	}

	seedConfig := SeedConfig{
		DatabaseDataSourceName: strings.TrimSpace(application.configurationLoader.GetString(environmentKeyDatabaseDataSource)),
		SeedFilePath:           strings.TrimSpace(application.configurationLoader.GetString(environmentKeySeedFile)),
	}

	var missingParameters []string
	if seedConfig.DatabaseDataSourceName == "" {
		missingParameters = append(missingParameters, flagNameDatabaseDataSourceName)
	}
	if seedConfig.SeedFilePath == "" {
		missingParameters = append(missingParameters, flagNameSeedFile)
	}
	if len(missingParameters) > 0 {
		return fmt.Errorf("%s: %s", missingConfigurationMessage, strings.Join(missingParameters, ", "))
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
		DataSourceName: seedConfig.DatabaseDataSourceName,
	})
	if databaseErr != nil {
		logger.Fatal(loggerContextOpenDatabase, zap.Error(databaseErr))
	}

	if migrateErr := storage.AutoMigrate(database); migrateErr != nil {
		logger.Fatal(loggerContextAutoMigrate, zap.Error(migrateErr))
	}

	profiles, loadErr := seed.Load(seedConfig.SeedFilePath)
	if loadErr != nil {
		logger.Fatal(loggerContextLoadSeed, zap.Error(loadErr))
	}

	if applyErr := seed.Apply(context.Background(), database, profiles); applyErr != nil {
		logger.Fatal(loggerContextApplySeed, zap.Error(applyErr))
	}

	logger.Info(logEventSeeded, zap.Int(logFieldProfileCount, len(profiles)))
	return nil
}

func main() {
	application := NewSeedApplication()
	rootCommand, commandErr := application.Command()
	if commandErr != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", commandInitializationFailure, commandErr)
		os.Exit(1)
	}

	if executeErr := rootCommand.Execute(); executeErr != nil {
		os.Exit(1)
	}
}
