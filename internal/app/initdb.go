package app

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/funkostack/funkostore/config"
	"github.com/funkostack/funkostore/internal/domain"
)

func domainTables() []interface{} {
	return domain.Tables
}

func openDatabase(cfg config.DatabaseConfig, workdir string) (*gorm.DB, error) {
	logLevel := logger.Silent
	if cfg.Debug {
		logLevel = logger.Info
	}
	gcfg := &gorm.Config{Logger: logger.Default.LogMode(logLevel)}

	var db *gorm.DB
	var err error
	switch cfg.Type {
	case "sqlite":
		_ = os.MkdirAll(workdir, 0o755)
		dsn := filepath.Join(workdir, cfg.Name+".db")
		db, err = gorm.Open(sqlite.Open(dsn), gcfg)
	default:
		dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=disable TimeZone=UTC",
			cfg.Host, cfg.Port, cfg.User, cfg.Passwd, cfg.Name)
		db, err = gorm.Open(postgres.Open(dsn), gcfg)
	}
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	maxConn := cfg.MaxConn
	if maxConn <= 0 {
		maxConn = 100
	}
	idleConn := cfg.IdleConn
	if idleConn <= 0 {
		idleConn = 10
	}
	sqlDB.SetMaxOpenConns(maxConn)
	sqlDB.SetMaxIdleConns(idleConn)
	sqlDB.SetConnMaxLifetime(time.Hour)
	return db, nil
}

// checkAdmin seeds the default ADMIN account on first boot and repairs
// its role if it was downgraded.
func (a *Application) checkAdmin() {
	const adminUsername = "admin"
	defaultPassword := os.Getenv("FUNKOSTORE_ADMIN_PWD")
	if defaultPassword == "" {
		defaultPassword = "funkostore"
	}

	var admin domain.User
	err := a.gormDB.Where("username = ?", adminUsername).First(&admin).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		hash, herr := bcrypt.GenerateFromPassword([]byte(defaultPassword), bcrypt.DefaultCost)
		if herr != nil {
			zap.L().Error("failed to hash default admin password", zap.Error(herr))
			return
		}
		now := time.Now()
		if err := a.gormDB.Create(&domain.User{
			Username:  adminUsername,
			Email:     "admin@funkostore.local",
			Password:  string(hash),
			Role:      domain.RoleAdmin,
			CreatedAt: now,
			UpdatedAt: now,
		}).Error; err != nil {
			zap.L().Error("failed to create default admin", zap.Error(err))
		} else {
			zap.L().Info("initialized default admin account", zap.String("username", adminUsername))
		}
		return
	case err != nil:
		zap.L().Error("failed to query admin account", zap.Error(err))
		return
	}

	if admin.Role == domain.RoleAdmin && !admin.IsDeleted {
		return
	}
	if err := a.gormDB.Model(&domain.User{}).Where("id = ?", admin.ID).Updates(map[string]interface{}{
		"role":       domain.RoleAdmin,
		"is_deleted": false,
		"updated_at": time.Now(),
	}).Error; err != nil {
		zap.L().Error("failed to repair admin account", zap.Error(err))
		return
	}
	zap.L().Warn("repaired default admin account", zap.String("username", adminUsername))
}
