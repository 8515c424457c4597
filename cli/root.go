package cli

import (
	"fmt"

	"github.com/spf13/cobra"
	"gorm.io/gorm"

	"autocatalog/common"
	"autocatalog/config"
	"autocatalog/database"
	"autocatalog/logger"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:           "autocatalog",
	Short:         "Automotive catalog server",
	Long:          "autocatalog serves the car catalog, articles, comments and the staff back office.",
	SilenceUsage:  true,
	SilenceErrors: false,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to a YAML config file")
	rootCmd.AddCommand(serveCmd, migrateCmd, createUserCmd)
}

// Execute runs the CLI
func Execute() error {
	return rootCmd.Execute()
}

// setup loads the config, starts the logger and opens the migrated store.
func setup(serve bool) (*config.Config, *gorm.DB, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, err
	}
	if serve {
		err = cfg.ValidateServe()
	} else {
		err = cfg.Validate()
	}
	if err != nil {
		return nil, nil, fmt.Errorf("invalid config: %w", err)
	}

	if err := logger.Init(cfg.LogJSON); err != nil {
		return nil, nil, fmt.Errorf("init logger: %w", err)
	}

	db, err := common.ConnectDb(cfg.DatabaseURL)
	if err != nil {
		return nil, nil, err
	}
	if err := database.RunMigrations(db); err != nil {
		return nil, nil, fmt.Errorf("run migrations: %w", err)
	}
	return cfg, db, nil
}
