package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"snippets/internal/domain"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
)

const (
	DriverSQLite   = "sqlite"
	DriverMySQL    = "mysql"
	DriverPostgres = "postgres"
)

// Options describes how to reach the SQL database. Path is used by SQLite
// only; the network fields by MySQL and PostgreSQL.
type Options struct {
	Driver   string
	Path     string
	Host     string
	Port     int
	Database string
	Username string
	Password string
	SSLMode  string

	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// DB wraps a SQL connection and the dialect it speaks.
type DB struct {
	conn   *sql.DB
	driver string
}

// Open connects with opts and runs migrations.
func Open(opts Options) (*DB, error) {
	dsn, err := DSN(opts)
	if err != nil {
		return nil, err
	}
	if opts.Driver == DriverSQLite {
		if err := os.MkdirAll(filepath.Dir(opts.Path), 0755); err != nil {
			return nil, fmt.Errorf("create db directory: %w", err)
		}
	}

	conn, err := sql.Open(opts.Driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", opts.Driver, err)
	}
	if opts.Driver == DriverSQLite {
		// SQLite only supports one writer; a single connection avoids SQLITE_BUSY.
		conn.SetMaxOpenConns(1)
	} else {
		conn.SetMaxOpenConns(orDefault(opts.MaxOpenConns, 10))
		conn.SetMaxIdleConns(orDefault(opts.MaxIdleConns, 5))
		if opts.ConnMaxLifetime > 0 {
			conn.SetConnMaxLifetime(opts.ConnMaxLifetime)
		} else {
			conn.SetConnMaxLifetime(5 * time.Minute)
		}
	}

	db := &DB{conn: conn, driver: opts.Driver}
	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return db, nil
}

// OpenSQLite is Open for a SQLite file at path.
func OpenSQLite(path string) (*DB, error) {
	return Open(Options{Driver: DriverSQLite, Path: path})
}

// DSN builds the driver-specific connection string.
func DSN(opts Options) (string, error) {
	switch opts.Driver {
	case DriverSQLite:
		if opts.Path == "" {
			return "", errors.New("sqlite: path is required")
		}
		return opts.Path + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)", nil
	case DriverMySQL:
		port := orDefault(opts.Port, 3306)
		// Format: user:password@tcp(host:port)/dbname?parseTime=true
		dsn := fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?parseTime=true&charset=utf8mb4",
			opts.Username, opts.Password, opts.Host, port, opts.Database,
		)
		if opts.SSLMode == "require" {
			dsn += "&tls=true"
		}
		return dsn, nil
	case DriverPostgres:
		port := orDefault(opts.Port, 5432)
		sslMode := opts.SSLMode
		if sslMode == "" {
			sslMode = "disable"
		}
		return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
			opts.Host, port, opts.Username, opts.Password, opts.Database, sslMode,
		), nil
	}
	return "", fmt.Errorf("unsupported driver: %q", opts.Driver)
}

func (db *DB) Close() error {
	return db.conn.Close()
}

// Conn returns the underlying database connection.
func (db *DB) Conn() *sql.DB {
	return db.conn
}

func (db *DB) Driver() string {
	return db.driver
}

func (db *DB) Ping(ctx context.Context) error {
	return db.conn.PingContext(ctx)
}

// rebind rewrites ? placeholders to $n for PostgreSQL.
func (db *DB) rebind(q string) string {
	if db.driver != DriverPostgres {
		return q
	}
	var b strings.Builder
	b.Grow(len(q) + 8)
	n := 0
	for i := 0; i < len(q); i++ {
		if q[i] == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteByte(q[i])
	}
	return b.String()
}

func (db *DB) exec(ctx context.Context, q string, args ...any) (sql.Result, error) {
	return db.conn.ExecContext(ctx, db.rebind(q), args...)
}

func (db *DB) query(ctx context.Context, q string, args ...any) (*sql.Rows, error) {
	return db.conn.QueryContext(ctx, db.rebind(q), args...)
}

func (db *DB) queryRow(ctx context.Context, q string, args ...any) *sql.Row {
	return db.conn.QueryRowContext(ctx, db.rebind(q), args...)
}

// ── Migrations ──────────────────────────────────────────────

// column types per dialect: {id}, {str}, {long}, {ts}, {int64}
var columnTypes = map[string]*strings.Replacer{
	DriverSQLite: strings.NewReplacer(
		"{id}", "TEXT", "{str}", "TEXT", "{long}", "TEXT", "{ts}", "DATETIME", "{int64}", "INTEGER"),
	DriverMySQL: strings.NewReplacer(
		"{id}", "VARCHAR(64)", "{str}", "VARCHAR(255)", "{long}", "LONGTEXT", "{ts}", "DATETIME(6)", "{int64}", "BIGINT"),
	DriverPostgres: strings.NewReplacer(
		"{id}", "VARCHAR(64)", "{str}", "VARCHAR(255)", "{long}", "TEXT", "{ts}", "TIMESTAMPTZ", "{int64}", "BIGINT"),
}

var migrations = []string{
	`CREATE TABLE IF NOT EXISTS workspaces (
		id {id} PRIMARY KEY,
		name {str} NOT NULL,
		owner_id {id} NOT NULL DEFAULT '',
		created_at {ts} NOT NULL,
		updated_at {ts} NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS members (
		workspace_id {id} NOT NULL,
		user_id {id} NOT NULL,
		role {str} NOT NULL DEFAULT 'editor',
		created_at {ts} NOT NULL,
		PRIMARY KEY (workspace_id, user_id)
	)`,
	`CREATE TABLE IF NOT EXISTS projects (
		id {id} PRIMARY KEY,
		workspace_id {id} NOT NULL,
		name {str} NOT NULL,
		created_at {ts} NOT NULL,
		updated_at {ts} NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS folders (
		id {id} PRIMARY KEY,
		project_id {id} NOT NULL,
		parent_id {id} NOT NULL DEFAULT '',
		name {str} NOT NULL,
		created_at {ts} NOT NULL,
		updated_at {ts} NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS snippets (
		id {id} PRIMARY KEY,
		project_id {id} NOT NULL,
		folder_id {id} NOT NULL DEFAULT '',
		name {str} NOT NULL,
		data {long} NOT NULL,
		created_by {id} NOT NULL DEFAULT '',
		created_at {ts} NOT NULL,
		updated_at {ts} NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS stars (
		user_id {id} NOT NULL,
		snippet_id {id} NOT NULL,
		created_at {ts} NOT NULL,
		PRIMARY KEY (user_id, snippet_id)
	)`,
	`CREATE TABLE IF NOT EXISTS snippet_revisions (
		id {id} PRIMARY KEY,
		snippet_id {id} NOT NULL,
		patch_json {long} NOT NULL,
		created_ns {int64} NOT NULL
	)`,
	`CREATE INDEX idx_members_user ON members(user_id)`,
	`CREATE INDEX idx_projects_workspace ON projects(workspace_id)`,
	`CREATE INDEX idx_folders_project ON folders(project_id)`,
	`CREATE INDEX idx_snippets_project ON snippets(project_id)`,
	`CREATE INDEX idx_stars_snippet ON stars(snippet_id)`,
	`CREATE INDEX idx_revisions_snippet ON snippet_revisions(snippet_id, created_ns)`,
}

func (db *DB) migrate() error {
	types, ok := columnTypes[db.driver]
	if !ok {
		return fmt.Errorf("unsupported driver: %q", db.driver)
	}
	for _, m := range migrations {
		stmt := types.Replace(m)
		if db.driver != DriverMySQL {
			stmt = strings.Replace(stmt, "CREATE INDEX ", "CREATE INDEX IF NOT EXISTS ", 1)
		}
		if _, err := db.conn.Exec(stmt); err != nil {
			// MySQL has no CREATE INDEX IF NOT EXISTS; a rerun reports a duplicate key name.
			if strings.HasPrefix(m, "CREATE INDEX") && isDuplicate(err) {
				continue
			}
			return fmt.Errorf("migration failed: %.40s: %w", stmt, err)
		}
	}
	return nil
}

func isDuplicate(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "duplicate") || strings.Contains(msg, "already exists")
}

// notFound maps sql.ErrNoRows to domain.ErrNotFound.
func notFound(err error, what, id string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%s %s: %w", what, id, domain.ErrNotFound)
	}
	return fmt.Errorf("get %s: %w", what, err)
}

func orDefault(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}
