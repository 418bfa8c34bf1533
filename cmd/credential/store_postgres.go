package credential

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore implements Store over PostgreSQL.
//
// Design notes:
// - The pgx pool is owned by the caller; this store must NOT close it.
// - Schema/table identifiers are safely quoted to avoid SQL injection via identifiers.
// - All data values travel as statement parameters, never as concatenated SQL.
// - Driver errors are mapped to the package sentinel kinds; unique violations
//   become ErrDuplicateUsername, everything unexpected becomes StorageError.
type PostgresStore struct {
	pool   *pgxpool.Pool
	schema string
}

// PostgresOption configures the store.
type PostgresOption func(*PostgresStore) error

var pgIdentRe = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// WithSchema sets the Postgres schema used by the credential store (default "authd").
// The schema name is validated to be a legal PostgreSQL identifier.
func WithSchema(schema string) PostgresOption {
	return func(s *PostgresStore) error {
		schema = strings.TrimSpace(schema)
		if schema == "" || !pgIdentRe.MatchString(schema) {
			return fmt.Errorf("credential: invalid schema identifier")
		}
		s.schema = schema
		return nil
	}
}

// NewPostgresStore constructs a PostgresStore with secure defaults.
func NewPostgresStore(pool *pgxpool.Pool, opts ...PostgresOption) (*PostgresStore, error) {
	st := &PostgresStore{
		pool:   pool,
		schema: "authd",
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt(st); err != nil {
			return nil, err
		}
	}
	if st.pool == nil {
		return nil, fmt.Errorf("credential: nil pool")
	}
	return st, nil
}

func (s *PostgresStore) table() string {
	return `"` + s.schema + `"."user_credentials"`
}

// Ping reports whether the backing pool can still hand out connections.
func (s *PostgresStore) Ping(ctx context.Context) error { return s.pool.Ping(ctx) }

// Create inserts a new credential row.
func (s *PostgresStore) Create(ctx context.Context, username, passwordHash string, authority AuthorityLevel) error {
	const op = "credential.Create"

	if err := checkCreateArgs(op, username, passwordHash, authority); err != nil {
		return err
	}

	now := time.Now().UTC()
	_, err := s.pool.Exec(ctx,
		`INSERT INTO `+s.table()+` (username, password_hash, authority, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $4)`,
		username, passwordHash, int(authority), now,
	)
	if err != nil {
		if pgIsUniqueViolation(err) {
			return OpError{Op: op, Kind: ErrDuplicateUsername}
		}
		return StorageError{Op: op, Err: err}
	}
	return nil
}

// FindByUsername loads a credential row.
func (s *PostgresStore) FindByUsername(ctx context.Context, username string) (Credential, error) {
	const op = "credential.FindByUsername"

	var (
		c         Credential
		authority int
	)
	err := s.pool.QueryRow(ctx,
		`SELECT username, password_hash, authority, created_at, updated_at
		 FROM `+s.table()+`
		 WHERE username = $1`,
		username,
	).Scan(&c.Username, &c.PasswordHash, &authority, &c.CreatedAt, &c.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Credential{}, OpError{Op: op, Kind: ErrNotFound}
	}
	if err != nil {
		return Credential{}, StorageError{Op: op, Err: err}
	}
	c.Authority = AuthorityLevel(authority)
	return c, nil
}

// UpdatePasswordHash replaces the stored hash; reports whether a row matched.
func (s *PostgresStore) UpdatePasswordHash(ctx context.Context, username, newHash string) (bool, error) {
	const op = "credential.UpdatePasswordHash"

	if strings.TrimSpace(newHash) == "" {
		return false, OpError{Op: op, Kind: ErrInvalidInput, Msg: "empty password hash"}
	}

	tag, err := s.pool.Exec(ctx,
		`UPDATE `+s.table()+`
		 SET password_hash = $2, updated_at = $3
		 WHERE username = $1`,
		username, newHash, time.Now().UTC(),
	)
	if err != nil {
		return false, StorageError{Op: op, Err: err}
	}
	return tag.RowsAffected() == 1, nil
}

// UpdateAuthority replaces the stored authority level; reports whether a row matched.
func (s *PostgresStore) UpdateAuthority(ctx context.Context, username string, newAuthority AuthorityLevel) (bool, error) {
	const op = "credential.UpdateAuthority"

	if !newAuthority.Valid() {
		return false, OpError{Op: op, Kind: ErrInvalidInput, Msg: "unknown authority level"}
	}

	tag, err := s.pool.Exec(ctx,
		`UPDATE `+s.table()+`
		 SET authority = $2, updated_at = $3
		 WHERE username = $1`,
		username, int(newAuthority), time.Now().UTC(),
	)
	if err != nil {
		return false, StorageError{Op: op, Err: err}
	}
	return tag.RowsAffected() == 1, nil
}

// Delete removes a credential row; reports whether a row matched.
func (s *PostgresStore) Delete(ctx context.Context, username string) (bool, error) {
	const op = "credential.Delete"

	tag, err := s.pool.Exec(ctx,
		`DELETE FROM `+s.table()+` WHERE username = $1`,
		username,
	)
	if err != nil {
		return false, StorageError{Op: op, Err: err}
	}
	return tag.RowsAffected() == 1, nil
}

// HasAdmin reports whether any ADMIN credential exists.
func (s *PostgresStore) HasAdmin(ctx context.Context) (bool, error) {
	const op = "credential.HasAdmin"

	var one int
	err := s.pool.QueryRow(ctx,
		`SELECT 1 FROM `+s.table()+` WHERE authority = $1 LIMIT 1`,
		int(AuthorityAdmin),
	).Scan(&one)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, StorageError{Op: op, Err: err}
	}
	return true, nil
}

func checkCreateArgs(op, username, passwordHash string, authority AuthorityLevel) error {
	if !ValidUsername(username) {
		return OpError{Op: op, Kind: ErrInvalidInput, Msg: "invalid username"}
	}
	if strings.TrimSpace(passwordHash) == "" {
		return OpError{Op: op, Kind: ErrInvalidInput, Msg: "empty password hash"}
	}
	if !authority.Valid() {
		return OpError{Op: op, Kind: ErrInvalidInput, Msg: "unknown authority level"}
	}
	return nil
}

func pgIsUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505" // unique_violation
}
