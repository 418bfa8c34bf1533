package credential

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteStore implements Store over a single-file SQLite database.
//
// It exists for development mode and for store-backed tests; production
// deployments use PostgresStore. The contract is identical.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (or creates) the SQLite-backed credential store and
// migrates its schema.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("credential: empty sqlite path")
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("credential: open sqlite: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("credential: set WAL: %w", err)
	}
	// Single writer; serializes conflicting mutations at the engine level.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS user_credentials (
		username      TEXT PRIMARY KEY,
		password_hash TEXT NOT NULL,
		authority     INTEGER NOT NULL CHECK (authority IN (0, 1)),
		created_at    TEXT NOT NULL,
		updated_at    TEXT NOT NULL
	)`); err != nil {
		db.Close()
		return nil, fmt.Errorf("credential: create table: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// Close releases the underlying database handle.
func (s *SQLiteStore) Close() error { return s.db.Close() }

// Ping reports whether the database file is still usable.
func (s *SQLiteStore) Ping(ctx context.Context) error { return s.db.PingContext(ctx) }

// Create inserts a new credential row.
func (s *SQLiteStore) Create(ctx context.Context, username, passwordHash string, authority AuthorityLevel) error {
	const op = "credential.Create"

	if err := checkCreateArgs(op, username, passwordHash, authority); err != nil {
		return err
	}

	now := time.Now().UTC().Format(time.RFC3339Nano)
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO user_credentials (username, password_hash, authority, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?)`,
		username, passwordHash, int(authority), now, now,
	)
	if err != nil {
		if sqliteIsUniqueViolation(err) {
			return OpError{Op: op, Kind: ErrDuplicateUsername}
		}
		return StorageError{Op: op, Err: err}
	}
	return nil
}

// FindByUsername loads a credential row.
func (s *SQLiteStore) FindByUsername(ctx context.Context, username string) (Credential, error) {
	const op = "credential.FindByUsername"

	var (
		c                    Credential
		authority            int
		createdAt, updatedAt string
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT username, password_hash, authority, created_at, updated_at
		 FROM user_credentials WHERE username = ?`,
		username,
	).Scan(&c.Username, &c.PasswordHash, &authority, &createdAt, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Credential{}, OpError{Op: op, Kind: ErrNotFound}
	}
	if err != nil {
		return Credential{}, StorageError{Op: op, Err: err}
	}

	c.Authority = AuthorityLevel(authority)
	c.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
	c.UpdatedAt, _ = time.Parse(time.RFC3339Nano, updatedAt)
	return c, nil
}

// UpdatePasswordHash replaces the stored hash; reports whether a row matched.
func (s *SQLiteStore) UpdatePasswordHash(ctx context.Context, username, newHash string) (bool, error) {
	const op = "credential.UpdatePasswordHash"

	if strings.TrimSpace(newHash) == "" {
		return false, OpError{Op: op, Kind: ErrInvalidInput, Msg: "empty password hash"}
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE user_credentials SET password_hash = ?, updated_at = ? WHERE username = ?`,
		newHash, time.Now().UTC().Format(time.RFC3339Nano), username,
	)
	if err != nil {
		return false, StorageError{Op: op, Err: err}
	}
	return oneRowAffected(op, res)
}

// UpdateAuthority replaces the stored authority level; reports whether a row matched.
func (s *SQLiteStore) UpdateAuthority(ctx context.Context, username string, newAuthority AuthorityLevel) (bool, error) {
	const op = "credential.UpdateAuthority"

	if !newAuthority.Valid() {
		return false, OpError{Op: op, Kind: ErrInvalidInput, Msg: "unknown authority level"}
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE user_credentials SET authority = ?, updated_at = ? WHERE username = ?`,
		int(newAuthority), time.Now().UTC().Format(time.RFC3339Nano), username,
	)
	if err != nil {
		return false, StorageError{Op: op, Err: err}
	}
	return oneRowAffected(op, res)
}

// Delete removes a credential row; reports whether a row matched.
func (s *SQLiteStore) Delete(ctx context.Context, username string) (bool, error) {
	const op = "credential.Delete"

	res, err := s.db.ExecContext(ctx,
		`DELETE FROM user_credentials WHERE username = ?`,
		username,
	)
	if err != nil {
		return false, StorageError{Op: op, Err: err}
	}
	return oneRowAffected(op, res)
}

// HasAdmin reports whether any ADMIN credential exists.
func (s *SQLiteStore) HasAdmin(ctx context.Context) (bool, error) {
	const op = "credential.HasAdmin"

	var one int
	err := s.db.QueryRowContext(ctx,
		`SELECT 1 FROM user_credentials WHERE authority = ? LIMIT 1`,
		int(AuthorityAdmin),
	).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, StorageError{Op: op, Err: err}
	}
	return true, nil
}

func oneRowAffected(op string, res sql.Result) (bool, error) {
	n, err := res.RowsAffected()
	if err != nil {
		return false, StorageError{Op: op, Err: err}
	}
	return n == 1, nil
}

func sqliteIsUniqueViolation(err error) bool {
	// modernc.org/sqlite surfaces constraint failures in the error text;
	// the username column is the only unique key on this table.
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
