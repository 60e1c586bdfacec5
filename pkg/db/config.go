package db

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/smallbiznis/escrutinio/internal/config"
)

const defaultSQLiteFile = "escrutinio.db"

// Config describes one database connection and its pool.
type Config struct {
	Type     string
	Host     string
	Port     string
	Name     string
	User     string
	Password string
	SSLMode  string
	Pool     PoolConfig
}

// PoolConfig bounds the database/sql pool. Zero keeps the driver default.
type PoolConfig struct {
	MaxIdle     int
	MaxOpen     int
	MaxLifetime time.Duration
	MaxIdleTime time.Duration
}

// ConfigFrom maps the application config onto the store config. Pool
// lifetimes are configured in seconds.
func ConfigFrom(cfg config.Config) Config {
	return Config{
		Type:     strings.ToLower(strings.TrimSpace(cfg.DBType)),
		Host:     cfg.DBHost,
		Port:     cfg.DBPort,
		Name:     cfg.DBName,
		User:     cfg.DBUser,
		Password: cfg.DBPassword,
		SSLMode:  cfg.DBSSLMode,
		Pool: PoolConfig{
			MaxIdle:     cfg.DBMaxIdleConn,
			MaxOpen:     cfg.DBMaxOpenConn,
			MaxLifetime: time.Duration(cfg.DBConnMaxLifetime) * time.Second,
			MaxIdleTime: time.Duration(cfg.DBConnMaxIdleTime) * time.Second,
		},
	}
}

// DSN renders the driver connection string. Timestamps are read and written in UTC.
func (c Config) DSN() (string, error) {
	switch c.Type {
	case "mysql":
		return fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?charset=utf8mb4&parseTime=True&loc=UTC",
			c.User, c.Password, c.Host, c.Port, c.Name), nil
	case "postgres":
		sslMode := c.SSLMode
		if sslMode == "" {
			sslMode = "disable"
		}
		return fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=%s TimeZone=UTC",
			c.Host, c.User, c.Password, c.Name, c.Port, sslMode), nil
	case "sqlite":
		name := strings.TrimSpace(c.Name)
		if name == "" {
			name = defaultSQLiteFile
		}
		return name, nil
	default:
		return "", fmt.Errorf("unsupported %s type", c.Type)
	}
}

func (p PoolConfig) apply(sqlDB *sql.DB) {
	if p.MaxIdle > 0 {
		sqlDB.SetMaxIdleConns(p.MaxIdle)
	}
	if p.MaxOpen > 0 {
		sqlDB.SetMaxOpenConns(p.MaxOpen)
	}
	if p.MaxLifetime > 0 {
		sqlDB.SetConnMaxLifetime(p.MaxLifetime)
	}
	if p.MaxIdleTime > 0 {
		sqlDB.SetConnMaxIdleTime(p.MaxIdleTime)
	}
}
