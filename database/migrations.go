package database

import (
	"go.uber.org/zap"
	"gorm.io/gorm"

	"autocatalog/logger"
	"autocatalog/models"
)

func RunMigrations(db *gorm.DB) error {
	logger.L().Info("running database migrations")

	if err := db.AutoMigrate(models.All()...); err != nil {
		logger.L().Error("migrations failed", zap.Error(err))
		return err
	}

	logger.L().Info("migrations completed")
	return nil
}
