package db

import (
	"fmt"
	"strings"

	"github.com/glebarez/sqlite"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const defaultURL = "sqlite://careerboard.db"

// Open connects to the database named by url. Supported prefixes are
// postgres:// (or postgresql://) and sqlite://; an empty url uses a local
// SQLite file.
func Open(url string, log *zap.Logger) (*gorm.DB, error) {
	if url == "" {
		url = defaultURL
		log.Info("DATABASE_URL not set, using default", zap.String("url", defaultURL))
	}

	var dialector gorm.Dialector

	switch {
	case strings.HasPrefix(url, "postgres://"), strings.HasPrefix(url, "postgresql://"):
		dialector = postgres.Open(url)
		log.Info("connecting to PostgreSQL database")
	case strings.HasPrefix(url, "sqlite://"):
		dsn := strings.TrimPrefix(url, "sqlite://")
		dialector = sqlite.Open(dsn)
		log.Info("connecting to SQLite database", zap.String("path", dsn))
	default:
		return nil, fmt.Errorf("invalid DATABASE_URL prefix: must start with postgres:// or sqlite://")
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(100)

	log.Info("database connection established")
	return db, nil
}
