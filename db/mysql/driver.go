package mysql

import (
	"fmt"
	"time"

	drv "github.com/go-sql-driver/mysql"
	"github.com/kasuganosora/mvabs/config"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// indexedStringSize keeps varchar keys within the utf8mb4 index prefix limit.
const indexedStringSize = 191

// NormalizeDSN rewrites dsn so DATETIME columns scan into time.Time in UTC.
// Memory records and audit rows compare UpdatedAt across processes, so a
// server-local zone or string scanning would break restores.
func NormalizeDSN(dsn string) (string, error) {
	dc, err := drv.ParseDSN(dsn)
	if err != nil {
		return "", fmt.Errorf("mysql: parse dsn: %w", err)
	}
	dc.ParseTime = true
	dc.Loc = time.UTC
	return dc.FormatDSN(), nil
}

// Open connects to cfg.MySQLDSN and sizes the pool from cfg.
func Open(cfg config.DatabaseConfig) (*gorm.DB, error) {
	dsn, err := NormalizeDSN(cfg.MySQLDSN)
	if err != nil {
		return nil, err
	}
	db, err := gorm.Open(mysql.New(mysql.Config{
		DSN:               dsn,
		DefaultStringSize: indexedStringSize,
	}), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	if cfg.MaxOpen > 0 {
		sqlDB.SetMaxOpenConns(cfg.MaxOpen)
	}
	if cfg.MaxIdle > 0 {
		sqlDB.SetMaxIdleConns(cfg.MaxIdle)
	}
	if cfg.MaxLife > 0 {
		sqlDB.SetConnMaxLifetime(cfg.MaxLife)
	}
	return db, nil
}
