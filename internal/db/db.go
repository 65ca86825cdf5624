// Package db owns the MySQL connection: bounded-retry connect at
// startup plus database and table bootstrap. Transaction isolation is
// the executor's concern, set per transaction.
package db

import (
	"context"
	"fmt"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/jmoiron/sqlx"
	"github.com/sirupsen/logrus"

	"github.com/roach88/qpipe/internal/config"
	"github.com/roach88/qpipe/internal/retry"
	"github.com/roach88/qpipe/internal/schema"
	"github.com/roach88/qpipe/internal/sqlgen"
)

// connectPolicy bounds the startup connect. Past the deadline the
// caller treats the database as unreachable and exits.
var connectPolicy = retry.Policy{
	InitialWait: time.Second,
	Multiplier:  2,
	MaxWait:     10 * time.Second,
	Deadline:    10 * time.Second,
}

// DSN builds the driver connection string. An empty name connects
// without selecting a database, which bootstrap needs before the
// database exists.
func DSN(cfg config.Database, name string) string {
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s", cfg.User, cfg.Password, cfg.Host, cfg.Port, name)
}

// Open connects to MySQL with bounded retry, creating the configured
// database if it does not exist, and returns a pool selected onto it.
func Open(ctx context.Context, cfg config.Database, log logrus.FieldLogger) (*sqlx.DB, error) {
	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)
	log.WithField("addr", addr).Info("connecting to database")

	admin, err := connect(ctx, DSN(cfg, ""))
	if err != nil {
		return nil, fmt.Errorf("connect to mysql at %s: %w", addr, err)
	}
	if _, err := admin.ExecContext(ctx, "CREATE DATABASE IF NOT EXISTS "+cfg.Name); err != nil {
		admin.Close()
		return nil, fmt.Errorf("create database %s: %w", cfg.Name, err)
	}
	admin.Close()

	pool, err := connect(ctx, DSN(cfg, cfg.Name))
	if err != nil {
		return nil, fmt.Errorf("connect to database %s at %s: %w", cfg.Name, addr, err)
	}
	log.WithField("addr", addr).WithField("database", cfg.Name).Info("connected")
	return pool, nil
}

func connect(ctx context.Context, dsn string) (*sqlx.DB, error) {
	var pool *sqlx.DB
	err := retry.Do(ctx, connectPolicy, func(ctx context.Context) error {
		var err error
		pool, err = sqlx.ConnectContext(ctx, "mysql", dsn)
		return err
	})
	return pool, err
}

// InitTables creates every table in the schema registry. Idempotent:
// the generated DDL is CREATE TABLE IF NOT EXISTS.
func InitTables(ctx context.Context, pool *sqlx.DB, b *sqlgen.Builder) error {
	for _, t := range schema.Tables() {
		if _, err := pool.ExecContext(ctx, b.CreateTable(t)); err != nil {
			return fmt.Errorf("create table %s: %w", t.Name, err)
		}
	}
	return nil
}
