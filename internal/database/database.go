package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"storefront/internal/models"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// ErrUnsupportedDriver is returned for drivers other than postgres and sqlite.
var ErrUnsupportedDriver = errors.New("unsupported database driver")

// NewLogger returns the GORM logger used by Open. It reports slow queries
// and errors, but not lookups that simply found nothing.
func NewLogger(w gormlogger.Writer) gormlogger.Interface {
	return gormlogger.New(w, gormlogger.Config{
		SlowThreshold:             200 * time.Millisecond,
		LogLevel:                  gormlogger.Warn,
		IgnoreRecordNotFoundError: true,
	})
}

// Open connects to the database. TranslateError is enabled so unique
// violations surface as gorm.ErrDuplicatedKey on every driver. GORM's own
// log lines go to log.
func Open(driver, dsn string, log *zap.Logger) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch driver {
	case "postgres":
		dialector = postgres.Open(dsn)
	case "sqlite":
		dialector = sqlite.Open(dsn)
	default:
		return nil, fmt.Errorf("%w %q", ErrUnsupportedDriver, driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		TranslateError: true,
		Logger:         NewLogger(zap.NewStdLog(log.Named("gorm"))),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return db, nil
}

// OpenInMemory opens a private in-memory SQLite database with the schema
// migrated. Each call gets its own database.
func OpenInMemory() (*gorm.DB, error) {
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.New().String())
	db, err := Open("sqlite", dsn, zap.NewNop())
	if err != nil {
		return nil, err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get sql.DB: %w", err)
	}
	// one connection keeps the in-memory database alive and serialises writers
	sqlDB.SetMaxOpenConns(1)
	if err := Migrate(db); err != nil {
		return nil, err
	}
	return db, nil
}

// Migrate creates or updates the schema.
func Migrate(db *gorm.DB) error {
	err := db.AutoMigrate(
		&models.User{},
		&models.Product{},
		&models.Address{},
		&models.CartItem{},
		&models.ShippingRule{},
		&models.Order{},
		&models.OrderItem{},
		&models.PaymentIntent{},
	)
	if err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}
	return nil
}

// Seed populates the catalog and shipping rules when they are empty.
func Seed(ctx context.Context, db *gorm.DB, log *zap.Logger) error {
	var count int64
	if err := db.WithContext(ctx).Model(&models.ShippingRule{}).Count(&count).Error; err != nil {
		return fmt.Errorf("failed to count shipping rules: %w", err)
	}
	if count == 0 {
		rules := []models.ShippingRule{
			{MinOrderValue: decimal.NewFromInt(500), Charge: decimal.Zero, Active: true},
			{MinOrderValue: decimal.Zero, Charge: decimal.NewFromInt(40), Active: true},
		}
		if err := db.WithContext(ctx).Create(&rules).Error; err != nil {
			return fmt.Errorf("failed to seed shipping rules: %w", err)
		}
		log.Info("Seeded shipping rules", zap.Int("count", len(rules)))
	}

	err := db.WithContext(ctx).Model(&models.Product{}).Count(&count).Error
	if err != nil {
		return fmt.Errorf("failed to count products: %w", err)
	}
	if count > 0 {
		return nil
	}
	products := []models.Product{
		{ID: uuid.New().String(), Name: "Laptop", Description: "High performance laptop", Price: decimal.NewFromInt(1200), Stock: 10},
		{ID: uuid.New().String(), Name: "Keyboard", Description: "Mechanical keyboard", Price: decimal.NewFromInt(75), Stock: 25},
		{ID: uuid.New().String(), Name: "Mouse", Description: "Ergonomic wireless mouse", Price: decimal.NewFromInt(25), Stock: 50},
	}
	if err := db.WithContext(ctx).Create(&products).Error; err != nil {
		return fmt.Errorf("failed to seed products: %w", err)
	}
	for _, p := range products {
		log.Info("Seeded product", zap.String("name", p.Name), zap.String("id", p.ID))
	}
	return nil
}
