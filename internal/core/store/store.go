package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"
	_ "github.com/tursodatabase/go-libsql"
	_ "modernc.org/sqlite"

	"github.com/promptfill/promptfill/internal/config"
)

// DefaultPrincipal is the role applied to store transactions when the
// configuration does not name one.
const DefaultPrincipal = "service_role"

const localBusyTimeout = 5 * time.Second

// Store is the SQL-backed TemplateStore.
type Store struct {
	DB        *sql.DB
	driver    string
	dialect   dialect
	principal string
}

// New opens the configured engine and applies migrations. The memory driver
// returns a process-local store.
func New(ctx context.Context, cfg config.StoreConfig) (TemplateStore, error) {
	if normalizeDriver(cfg.Driver) == driverMemory {
		return NewMemory(), nil
	}
	s, err := Open(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if err := s.Migrate(ctx); err != nil {
		_ = s.Close()
		return nil, err
	}
	return s, nil
}

// Open initializes a SQL store connection using the provided configuration.
func Open(ctx context.Context, cfg config.StoreConfig) (*Store, error) {
	driver := normalizeDriver(cfg.Driver)

	if ctx == nil {
		ctx = context.Background()
	}

	d, err := dialectFor(driver)
	if err != nil {
		return nil, err
	}

	var (
		sqlDriver = driver
		dsn       string
	)
	switch driver {
	case driverLibsql:
		dsn, err = buildLibsqlDSN(cfg)
	case driverSQLite:
		dsn, err = buildSQLiteDSN(cfg)
	case driverPostgres, driverMySQL:
		dsn = strings.TrimSpace(cfg.URL)
		if dsn == "" {
			err = fmt.Errorf("store url is required for %s", driver)
		}
	}
	if err != nil {
		return nil, err
	}

	db, err := sql.Open(sqlDriver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s store: %w", driver, err)
	}

	if d.name == driverSQLite && isLocalSQLite(dsn) {
		if err := configureLocalSQLite(ctx, db); err != nil {
			_ = db.Close()
			return nil, err
		}
	} else if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping %s store: %w", driver, err)
	}

	principal := strings.TrimSpace(cfg.Principal)
	if principal == "" {
		principal = DefaultPrincipal
	}

	return &Store{DB: db, driver: driver, dialect: d, principal: principal}, nil
}

// Close releases database resources.
func (s *Store) Close() error {
	if s == nil || s.DB == nil {
		return nil
	}
	return s.DB.Close()
}

// Driver returns the configured store driver.
func (s *Store) Driver() string {
	if s == nil {
		return ""
	}
	return s.driver
}

// Ping checks that the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	if s == nil || s.DB == nil {
		return errors.New("store is not initialized")
	}
	return s.DB.PingContext(ctx)
}

// Principal returns the role applied to each transaction.
func (s *Store) Principal() string {
	if s == nil {
		return ""
	}
	return s.principal
}

func normalizeDriver(driver string) string {
	driver = strings.ToLower(strings.TrimSpace(driver))
	switch driver {
	case "":
		return driverLibsql
	case "sqlite3":
		return driverSQLite
	case "postgresql", "supabase":
		return driverPostgres
	}
	return driver
}

// configureLocalSQLite serializes access to an embedded database file so
// writers never see "database is locked".
func configureLocalSQLite(ctx context.Context, db *sql.DB) error {
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys = ON"); err != nil {
		return fmt.Errorf("configure sqlite foreign keys: %w", err)
	}

	// Both pragmas echo their new value as a row.
	pragmas := []string{
		fmt.Sprintf("PRAGMA busy_timeout = %d", localBusyTimeout.Milliseconds()),
		"PRAGMA journal_mode = WAL",
	}
	for _, pragma := range pragmas {
		var result string
		err := db.QueryRowContext(ctx, pragma).Scan(&result)
		if err != nil && !errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("configure sqlite (%s): %w", pragma, err)
		}
	}
	return nil
}

func isLocalSQLite(dsn string) bool {
	return !strings.HasPrefix(dsn, "libsql:") &&
		!strings.HasPrefix(dsn, "http:") &&
		!strings.HasPrefix(dsn, "https:") &&
		!strings.HasPrefix(dsn, "wss:")
}

func buildLibsqlDSN(cfg config.StoreConfig) (string, error) {
	if dsn := strings.TrimSpace(cfg.URL); dsn != "" {
		return addAuthToken(dsn, cfg.AuthToken)
	}

	path := strings.TrimSpace(cfg.Path)
	if path == "" {
		return "", errors.New("store path or url is required")
	}

	if path == ":memory:" {
		return path, nil
	}

	if strings.HasPrefix(path, "file:") {
		localPath, err := extractFilePath(path)
		if err != nil {
			return "", err
		}
		if err := ensureStoreDir(localPath); err != nil {
			return "", err
		}
		return path, nil
	}

	if strings.HasPrefix(path, "libsql:") {
		return path, nil
	}

	if err := ensureStoreDir(path); err != nil {
		return "", err
	}
	return "file:" + filepath.Clean(path), nil
}

// buildSQLiteDSN maps store.path onto a modernc sqlite DSN.
func buildSQLiteDSN(cfg config.StoreConfig) (string, error) {
	path := strings.TrimSpace(cfg.Path)
	if path == "" {
		path = strings.TrimSpace(cfg.URL)
	}
	if path == "" {
		return "", errors.New("store path is required for sqlite")
	}
	if path == ":memory:" {
		return path, nil
	}

	localPath := path
	if strings.HasPrefix(path, "file:") {
		extracted, err := extractFilePath(path)
		if err != nil {
			return "", err
		}
		localPath = extracted
	} else {
		path = filepath.Clean(path)
	}
	if err := ensureStoreDir(localPath); err != nil {
		return "", err
	}
	return path, nil
}

func addAuthToken(dsn string, token string) (string, error) {
	if strings.TrimSpace(token) == "" {
		return dsn, nil
	}

	parsed, err := url.Parse(dsn)
	if err != nil {
		return "", fmt.Errorf("invalid store url: %w", err)
	}

	query := parsed.Query()
	if query.Get("authToken") == "" {
		query.Set("authToken", token)
		parsed.RawQuery = query.Encode()
	}

	return parsed.String(), nil
}

func extractFilePath(dsn string) (string, error) {
	parsed, err := url.Parse(dsn)
	if err != nil {
		return "", fmt.Errorf("invalid store path: %w", err)
	}

	if parsed.Path != "" {
		return strings.TrimPrefix(parsed.Path, "//"), nil
	}

	return strings.TrimPrefix(parsed.Opaque, "//"), nil
}

func ensureStoreDir(path string) error {
	if strings.TrimSpace(path) == "" || path == ":memory:" {
		return nil
	}

	dir := filepath.Dir(filepath.Clean(path))
	if dir == "." || dir == string(filepath.Separator) {
		return nil
	}

	// #nosec G301 -- data directories use 0755 for multi-user access compatibility
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create store directory: %w", err)
	}
	return nil
}
