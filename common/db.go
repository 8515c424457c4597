package common

import (
	"fmt"
	"os"
	"strings"

	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"autocatalog/logger"
)

// ConnectDb opens the store named by databaseURL. sqlite://path and
// postgres:// URLs are supported; a bare path is treated as a sqlite file.
// When databaseURL is empty the legacy sqlite_db variable is consulted.
func ConnectDb(databaseURL string) (*gorm.DB, error) {
	if databaseURL == "" {
		databaseURL = os.Getenv("sqlite_db")
	}
	if databaseURL == "" {
		return nil, fmt.Errorf("database url not set")
	}

	dialector, err := dialectorFor(databaseURL)
	if err != nil {
		return nil, err
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		DisableForeignKeyConstraintWhenMigrating: true,
		Logger:                                   logger.NewGormLogger(),
	})
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	logger.L().Info("opened database", zap.String("driver", dialector.Name()))
	return db, nil
}

func dialectorFor(databaseURL string) (gorm.Dialector, error) {
	switch {
	case strings.HasPrefix(databaseURL, "postgres://"), strings.HasPrefix(databaseURL, "postgresql://"):
		return postgres.Open(databaseURL), nil
	case strings.HasPrefix(databaseURL, "sqlite://"):
		return sqlite.Open(sqliteDSN(strings.TrimPrefix(databaseURL, "sqlite://"))), nil
	case strings.Contains(databaseURL, "://"):
		return nil, fmt.Errorf("unsupported database url: %s", databaseURL)
	default:
		return sqlite.Open(sqliteDSN(databaseURL)), nil
	}
}

// sqliteDSN adds a busy timeout so concurrent writers wait instead of
// failing with SQLITE_BUSY.
func sqliteDSN(path string) string {
	if path == ":memory:" || strings.Contains(path, "_busy_timeout") {
		return path
	}
	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	return path + sep + "_busy_timeout=5000"
}
