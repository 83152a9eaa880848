package store

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/ashureev/diffbot/internal/domain"
	_ "modernc.org/sqlite"
)

//go:embed schema.sql
var schemaSQL string

// SQLiteStore implements Repository using SQLite.
type SQLiteStore struct {
	db *sql.DB

	// userLocks serializes writes to one user's rows; different users
	// write without coordinating.
	userLocks sync.Map // int64 -> *sync.Mutex

	now func() time.Time
}

// NewSQLite creates a new SQLite-backed repository.
func NewSQLite(dbPath string) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}

	// Open database with WAL mode for better concurrency.
	dsn := "file:" + dbPath + "?_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)&_pragma=busy_timeout(5000)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	s := &SQLiteStore{db: db, now: time.Now}
	if err := s.initSchema(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("initialize schema: %w", err)
	}

	return s, nil
}

func (s *SQLiteStore) initSchema() error {
	if _, err := s.db.Exec(schemaSQL); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

func (s *SQLiteStore) lockUser(userID int64) func() {
	v, _ := s.userLocks.LoadOrStore(userID, &sync.Mutex{})
	mu := v.(*sync.Mutex)
	mu.Lock()
	return mu.Unlock
}

// Ping verifies database connectivity.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("ping database: %w: %w", ErrStorage, err)
	}
	return nil
}

// Insert appends a record and returns its generated ID.
func (s *SQLiteStore) Insert(ctx context.Context, rec domain.Record) (int64, error) {
	unlock := s.lockUser(rec.UserID)
	defer unlock()

	createdAt := rec.CreatedAt
	if createdAt.IsZero() {
		createdAt = s.now()
	}

	query := `
	INSERT INTO results (user_id, number1, number2, result, description, created_at)
	VALUES (?, ?, ?, ?, ?, ?)`

	var id int64
	err := withRetry(ctx, "insert record", func() error {
		res, err := s.db.ExecContext(ctx, query,
			rec.UserID, rec.Operand1, rec.Operand2, rec.Result,
			rec.Description, createdAt.Unix(),
		)
		if err != nil {
			return err
		}
		id, err = res.LastInsertId()
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("insert record: %w: %w", ErrStorage, err)
	}
	return id, nil
}

// ListByUser returns a user's records ordered by insertion.
func (s *SQLiteStore) ListByUser(ctx context.Context, userID int64) ([]domain.Record, error) {
	query := `
		SELECT id, user_id, number1, number2, result, description, created_at
		FROM results WHERE user_id = ? ORDER BY id ASC`

	rows, err := s.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("query records: %w: %w", ErrStorage, err)
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			slog.Warn("failed to close record rows", "error", closeErr)
		}
	}()

	records := make([]domain.Record, 0)
	for rows.Next() {
		var rec domain.Record
		var createdAt int64
		if err := rows.Scan(
			&rec.ID, &rec.UserID, &rec.Operand1, &rec.Operand2,
			&rec.Result, &rec.Description, &createdAt,
		); err != nil {
			return nil, fmt.Errorf("scan record row: %w: %w", ErrStorage, err)
		}
		rec.CreatedAt = time.Unix(createdAt, 0)
		records = append(records, rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate records: %w: %w", ErrStorage, err)
	}

	return records, nil
}

// DeleteByUser removes every record owned by the user.
func (s *SQLiteStore) DeleteByUser(ctx context.Context, userID int64) (int64, error) {
	unlock := s.lockUser(userID)
	defer unlock()

	var deleted int64
	err := withRetry(ctx, "delete records", func() error {
		res, err := s.db.ExecContext(ctx, `DELETE FROM results WHERE user_id = ?`, userID)
		if err != nil {
			return err
		}
		deleted, err = res.RowsAffected()
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("delete records: %w: %w", ErrStorage, err)
	}

	if deleted == 0 {
		slog.Debug("DeleteByUser affected 0 rows", "user_id", userID)
	}
	return deleted, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("close database: %w", err)
	}
	return nil
}
