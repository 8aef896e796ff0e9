package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"

	"imagetag/internal/repository"
)

// querier is satisfied by both *sql.DB and *sql.Tx so repositories run inside or outside a unit of work.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// DB wraps the SQLite database connection.
type DB struct {
	conn *sql.DB
}

// New creates and initializes a new SQLite database connection.
func New(dbPath string) (*DB, error) {
	if dir := filepath.Dir(dbPath); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	conn, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// One connection serializes writers; an open unit of work holds it until commit or rollback.
	conn.SetMaxOpenConns(1)
	conn.SetMaxIdleConns(1)
	conn.SetConnMaxLifetime(0)

	db := &DB{conn: conn}

	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return db, nil
}

// migrate creates the necessary tables if they don't exist.
func (db *DB) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS users (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		username TEXT NOT NULL,
		email TEXT NOT NULL UNIQUE,
		password_hash TEXT NOT NULL,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS user_images (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		user_id INTEGER NOT NULL,
		image_path TEXT NOT NULL UNIQUE,
		is_detected BOOLEAN NOT NULL DEFAULT 0,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		FOREIGN KEY (user_id) REFERENCES users(id)
	);

	CREATE TABLE IF NOT EXISTS user_image_tags (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		user_image_id INTEGER NOT NULL,
		tag_name TEXT NOT NULL,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		FOREIGN KEY (user_image_id) REFERENCES user_images(id)
	);

	CREATE INDEX IF NOT EXISTS idx_user_images_user_id ON user_images(user_id);
	CREATE INDEX IF NOT EXISTS idx_user_image_tags_image_id ON user_image_tags(user_image_id);
	CREATE INDEX IF NOT EXISTS idx_user_image_tags_tag_name ON user_image_tags(tag_name);
	`

	_, err := db.conn.Exec(schema)
	return err
}

// Close closes the database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

// Conn returns the underlying database connection.
func (db *DB) Conn() *sql.DB {
	return db.conn
}

// Users returns a repository bound to the connection pool.
func (db *DB) Users() repository.UserRepository {
	return NewUserRepository(db.conn)
}

// Images returns a repository bound to the connection pool.
func (db *DB) Images() repository.ImageRepository {
	return NewImageRepository(db.conn)
}

// Tags returns a repository bound to the connection pool.
func (db *DB) Tags() repository.TagRepository {
	return NewTagRepository(db.conn)
}

// Begin starts a unit of work. Callers must end it with Commit or Rollback.
func (db *DB) Begin(ctx context.Context) (repository.UnitOfWork, error) {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	return &UnitOfWork{tx: tx}, nil
}

// UnitOfWork runs repository calls inside one SQLite transaction.
type UnitOfWork struct {
	tx   *sql.Tx
	done bool
}

// Images returns an image repository bound to the transaction.
func (u *UnitOfWork) Images() repository.ImageRepository {
	return NewImageRepository(u.tx)
}

// Tags returns a tag repository bound to the transaction.
func (u *UnitOfWork) Tags() repository.TagRepository {
	return NewTagRepository(u.tx)
}

// Commit makes the unit's writes visible.
func (u *UnitOfWork) Commit() error {
	u.done = true
	if err := u.tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// Rollback discards the unit's writes. It is a no-op once the unit has ended.
func (u *UnitOfWork) Rollback() error {
	if u.done {
		return nil
	}
	u.done = true
	if err := u.tx.Rollback(); err != nil {
		return fmt.Errorf("failed to roll back transaction: %w", err)
	}
	return nil
}
