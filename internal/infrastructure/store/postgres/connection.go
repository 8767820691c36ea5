// Package postgres holds the sqlx/lib-pq backed implementations of every
// internal/domain store interface, plus the pooled connection they share.
package postgres

import (
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"github.com/saan/taskflow-agent/internal/infrastructure/config"
	"github.com/saan/taskflow-agent/pkg/logger"
)

// Connection wraps a pooled sqlx.DB.
type Connection struct {
	DB  *sqlx.DB
	log logger.Logger
}

// NewConnection opens and pings the connection, configuring the pool the
// way the teacher's database package does.
func NewConnection(cfg config.DatabaseConfig, log logger.Logger) (*Connection, error) {
	dsn := fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.DBName, cfg.SSLMode,
	)

	db, err := sqlx.Connect("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}

	log.Info("database connection established")
	return &Connection{DB: db, log: log}, nil
}

func (c *Connection) Close() error {
	if c.DB == nil {
		return nil
	}
	c.log.Info("closing database connection")
	return c.DB.Close()
}

func (c *Connection) Health() error {
	if c.DB == nil {
		return fmt.Errorf("database connection is nil")
	}
	return c.DB.Ping()
}
