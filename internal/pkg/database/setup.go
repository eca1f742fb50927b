package database

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/driver/mysql"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/ManuelReschke/Arcana/app/models"
	"github.com/ManuelReschke/Arcana/internal/pkg/deck"
	"github.com/ManuelReschke/Arcana/internal/pkg/env"
	"github.com/ManuelReschke/Arcana/internal/pkg/logging"
)

const maxRetries = 5
const retryDelay = 5 * time.Second

const (
	DriverMySQL  = "mysql"
	DriverSQLite = "sqlite"
)

// SetupDatabase connects using DB_DRIVER (mysql by default), retrying while
// the database container comes up, and runs the automigration.
func SetupDatabase(log *zap.Logger) (*gorm.DB, error) {
	log = logging.OrNop(log)
	driver := strings.ToLower(env.GetEnv("DB_DRIVER", DriverMySQL))

	var (
		db  *gorm.DB
		err error
	)
	for i := 0; i < maxRetries; i++ {
		switch driver {
		case DriverSQLite:
			db, err = OpenSQLite(env.GetEnv("DB_PATH", "arcana.db"))
		default:
			db, err = OpenMySQL(mysqlDSN())
		}
		if err == nil {
			if err := AutoMigrate(db); err != nil {
				return nil, fmt.Errorf("database: migrate: %w", err)
			}
			log.Info("database ready", zap.String("driver", driver))
			return db, nil
		}

		log.Warn("failed to connect to database",
			zap.String("driver", driver),
			zap.Int("attempt", i+1),
			zap.Int("max_attempts", maxRetries),
			zap.Error(err))
		if i < maxRetries-1 {
			time.Sleep(retryDelay)
		}
	}

	return nil, fmt.Errorf("database: connect %s: %w", driver, err)
}

func mysqlDSN() string {
	// "user:pass@tcp(127.0.0.1:3306)/dbname?charset=utf8mb4&parseTime=True&loc=UTC"
	return fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?charset=utf8mb4&parseTime=True&loc=UTC",
		env.GetEnv("DB_USER", ""),
		env.GetEnv("DB_PASSWORD", ""),
		env.GetEnv("DB_HOST", "127.0.0.1"),
		env.GetEnv("DB_PORT", "3306"),
		env.GetEnv("DB_NAME", ""),
	)
}

func gormConfig() *gorm.Config {
	return &gorm.Config{
		// Unique violations surface as gorm.ErrDuplicatedKey.
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Warn),
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
	}
}

// OpenMySQL opens a MySQL connection pool.
func OpenMySQL(dsn string) (*gorm.DB, error) {
	db, err := gorm.Open(mysql.New(mysql.Config{
		DSN:                       dsn,
		DefaultStringSize:         256,
		SkipInitializeWithVersion: false,
	}), gormConfig())
	if err != nil {
		return nil, err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(env.GetEnvInt("DB_MAX_OPEN_CONNS", 25))
	sqlDB.SetMaxIdleConns(env.GetEnvInt("DB_MAX_IDLE_CONNS", 5))
	sqlDB.SetConnMaxLifetime(30 * time.Minute)
	return db, nil
}

// OpenSQLite opens a SQLite database. SQLite allows a single writer, so the
// pool is pinned to one connection and transactions queue behind each other.
func OpenSQLite(dsn string) (*gorm.DB, error) {
	db, err := gorm.Open(sqlite.Open(dsn), gormConfig())
	if err != nil {
		return nil, err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(1)
	return db, nil
}

// OpenInMemory returns an isolated in-memory SQLite database with the schema
// applied. name must be unique per test.
func OpenInMemory(name string) (*gorm.DB, error) {
	db, err := OpenSQLite(fmt.Sprintf("file:%s?mode=memory&cache=shared", name))
	if err != nil {
		return nil, err
	}
	if err := AutoMigrate(db); err != nil {
		return nil, err
	}
	return db, nil
}

func AutoMigrate(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&models.User{},
		&models.Reading{},
		&models.WebhookEvent{},
		&models.UsageRecord{},
		&models.Card{},
	); err != nil {
		return err
	}
	return SeedCards(db)
}

// SeedCards loads the standard deck into an empty card table. A table that
// already has rows is left alone.
func SeedCards(db *gorm.DB) error {
	var count int64
	if err := db.Model(&models.Card{}).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return nil
	}
	cards, err := deck.Standard()
	if err != nil {
		return err
	}
	if err := db.CreateInBatches(cards, len(cards)).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil
		}
		return err
	}
	return nil
}
