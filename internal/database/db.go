// Package database is the data store façade: persistent CRUD over
// dialogs, participants, access scopes, messages, and attachments,
// plus the transactional multi-writes the concurrency model requires.
package database

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"time"

	"github.com/pohodnya/mtchat/internal/config"
	"github.com/pohodnya/mtchat/internal/errors"

	_ "github.com/lib/pq" // PostgreSQL driver
)

// DB holds the database connection pool.
type DB struct {
	*sql.DB
}

// NewConnection opens and validates the PostgreSQL connection pool,
// sized per the concurrency model's default max-20 bound.
func NewConnection(cfg *config.Config) (*DB, error) {
	if cfg.Database.URL == "" {
		return nil, errors.New(errors.ErrMissingEnvVar, "DATABASE_URL environment variable is required")
	}

	db, err := sql.Open("postgres", cfg.Database.URL)
	if err != nil {
		return nil, errors.New(errors.ErrDatabaseError, fmt.Sprintf("failed to open database connection: %v", err))
	}

	maxConns := cfg.Database.MaxConnections
	if maxConns <= 0 {
		maxConns = 20
	}
	db.SetMaxOpenConns(maxConns)
	db.SetMaxIdleConns(maxConns / 2)
	db.SetConnMaxLifetime(time.Duration(cfg.Database.ConnMaxLifetime) * time.Second)
	db.SetConnMaxIdleTime(time.Duration(cfg.Database.MaxIdleTime) * time.Second)

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	var lastErr error
	for i := 0; i < 3; i++ {
		if err := db.PingContext(ctx); err != nil {
			lastErr = err
			log.Printf("database connection attempt %d/3 failed: %v", i+1, err)
			if i < 2 {
				time.Sleep(2 * time.Second)
				continue
			}
		} else {
			lastErr = nil
			break
		}
	}

	if lastErr != nil {
		db.Close()
		return nil, errors.New(errors.ErrDatabaseError, fmt.Sprintf("failed to connect to database after 3 attempts: %v", lastErr))
	}

	log.Println("successfully connected to PostgreSQL database")
	return &DB{db}, nil
}

func (db *DB) Close() error {
	if db.DB != nil {
		return db.DB.Close()
	}
	return nil
}

// Migrate is a placeholder for migration tooling such as
// golang-migrate: it only logs and returns nil. The schema is expected
// to be created by PostgreSQL init scripts, which this repository does
// not include.
func (db *DB) Migrate() error {
	log.Println("database migrations handled by PostgreSQL init scripts")
	return nil
}

// Transaction runs fn inside a single transaction, rolling back on
// any error or panic. Every multi-row write the concurrency model
// requires (dialog creation, message submission, scope replacement)
// goes through this helper so readers see either the whole change or
// none of it.
func (db *DB) Transaction(fn func(*sql.Tx) error) error {
	tx, err := db.Begin()
	if err != nil {
		return errors.Wrap(err, errors.ErrDatabaseError)
	}

	defer func() {
		if p := recover(); p != nil {
			tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}

	if err := tx.Commit(); err != nil {
		return errors.Wrap(err, errors.ErrDatabaseError)
	}

	return nil
}

func NullStringToString(ns sql.NullString) string {
	if ns.Valid {
		return ns.String
	}
	return ""
}

func StringToNullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{Valid: false}
	}
	return sql.NullString{String: s, Valid: true}
}
