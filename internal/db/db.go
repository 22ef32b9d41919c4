package db

import (
	"fmt"
	"log"
	"os"
	"time"

	"gorm.io/driver/mysql"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/kitchenops/checklists/internal/config"
	"github.com/kitchenops/checklists/internal/models"
)

var conn *gorm.DB

// Init opens the configured store, migrates it and installs it as Conn().
func Init(cfg config.Config) error {
	gdb, err := Open(cfg)
	if err != nil {
		return err
	}
	if err := Migrate(gdb); err != nil {
		return fmt.Errorf("auto-migrate: %w", err)
	}
	conn = gdb
	config.Logger().WithField("driver", cfg.DBDriver).Info("database ready")
	return nil
}

func Open(cfg config.Config) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch cfg.DBDriver {
	case "mysql":
		dialector = mysql.Open(cfg.DBDSN)
	case "sqlite", "":
		dialector = sqlite.Open(cfg.DBDSN)
	default:
		return nil, fmt.Errorf("unsupported DB_DRIVER %q", cfg.DBDriver)
	}

	gdb, err := gorm.Open(dialector, &gorm.Config{
		Logger:         gormLogger(),
		TranslateError: true,
		NowFunc:        func() time.Time { return time.Now().UTC() },
	})
	if err != nil {
		return nil, err
	}
	sqlDB, err := gdb.DB()
	if err != nil {
		return nil, err
	}
	if cfg.DBMaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(cfg.DBMaxOpenConns)
		sqlDB.SetMaxIdleConns(cfg.DBMaxOpenConns)
	}
	sqlDB.SetConnMaxLifetime(5 * time.Minute)

	if err := gdb.Use(NewTenantGuardPlugin()); err != nil {
		return nil, fmt.Errorf("tenant guard: %w", err)
	}
	return gdb, nil
}

// Migrate creates or updates every table the service owns.
func Migrate(gdb *gorm.DB) error {
	return gdb.AutoMigrate(
		&models.Template{},
		&models.ChecklistItem{},
		&models.ItemConnection{},
		&models.Instance{},
		&models.ItemProgress{},
		&models.ConnectedItemProgress{},
		&models.InventoryItem{},
		&models.Precaution{},
		&models.Manual{},
	)
}

func gormLogger() logger.Interface {
	return logger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags),
		logger.Config{
			Colorful:      false,
			LogLevel:      logger.Error,
			SlowThreshold: time.Second,
		},
	)
}

func Conn() *gorm.DB {
	return conn
}
