package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

const (
	templatesTable = "promptfill_templates"
	versionsTable  = "promptfill_template_versions"
)

var sqliteSchema = []string{
	`CREATE TABLE IF NOT EXISTS promptfill_templates (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL UNIQUE,
		description TEXT NOT NULL DEFAULT '',
		body TEXT NOT NULL,
		variables TEXT NOT NULL,
		current_version_id TEXT,
		current_version INTEGER NOT NULL DEFAULT 0,
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL
	);`,
	`CREATE TABLE IF NOT EXISTS promptfill_template_versions (
		id TEXT PRIMARY KEY,
		template_id TEXT NOT NULL REFERENCES promptfill_templates(id) ON DELETE CASCADE,
		version_number INTEGER NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		body TEXT NOT NULL,
		variables TEXT NOT NULL,
		created_at INTEGER NOT NULL,
		UNIQUE(template_id, version_number)
	);`,
	`CREATE INDEX IF NOT EXISTS idx_promptfill_templates_updated ON promptfill_templates(updated_at);`,
}

var postgresSchema = []string{
	`CREATE TABLE IF NOT EXISTS public.promptfill_templates (
		id uuid PRIMARY KEY,
		name text NOT NULL UNIQUE,
		description text NOT NULL DEFAULT '',
		body text NOT NULL,
		variables jsonb NOT NULL DEFAULT '[]'::jsonb,
		current_version_id uuid,
		current_version integer NOT NULL DEFAULT 0,
		created_at bigint NOT NULL,
		updated_at bigint NOT NULL
	);`,
	`CREATE TABLE IF NOT EXISTS public.promptfill_template_versions (
		id uuid PRIMARY KEY,
		template_id uuid NOT NULL REFERENCES public.promptfill_templates(id) ON DELETE CASCADE,
		version_number integer NOT NULL,
		description text NOT NULL DEFAULT '',
		body text NOT NULL,
		variables jsonb NOT NULL DEFAULT '[]'::jsonb,
		created_at bigint NOT NULL,
		UNIQUE (template_id, version_number)
	);`,
	`CREATE INDEX IF NOT EXISTS idx_promptfill_templates_updated ON public.promptfill_templates(updated_at);`,
	`CREATE SCHEMA IF NOT EXISTS auth;`,
	`DO $$
	BEGIN
		IF NOT EXISTS (
			SELECT 1 FROM pg_proc p JOIN pg_namespace n ON n.oid = p.pronamespace
			WHERE n.nspname = 'auth' AND p.proname = 'role'
		) THEN
			CREATE FUNCTION auth.role() RETURNS text LANGUAGE sql STABLE AS $fn$
				SELECT coalesce(
					nullif(current_setting('request.jwt.claim.role', true), ''),
					(nullif(current_setting('request.jwt.claims', true), '')::jsonb ->> 'role')
				)::text
			$fn$;
		END IF;
	END
	$$;`,
	`alter table public.promptfill_templates enable row level security;`,
	`alter table public.promptfill_template_versions enable row level security;`,
	policyStatement(templatesTable),
	policyStatement(versionsTable),
}

var mysqlSchema = []string{
	`CREATE TABLE IF NOT EXISTS promptfill_templates (
		id CHAR(36) PRIMARY KEY,
		name VARCHAR(255) NOT NULL,
		description TEXT NOT NULL,
		body MEDIUMTEXT NOT NULL,
		variables MEDIUMTEXT NOT NULL,
		current_version_id CHAR(36),
		current_version INT NOT NULL DEFAULT 0,
		created_at BIGINT NOT NULL,
		updated_at BIGINT NOT NULL,
		UNIQUE KEY uq_promptfill_templates_name (name)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4;`,
	`CREATE TABLE IF NOT EXISTS promptfill_template_versions (
		id CHAR(36) PRIMARY KEY,
		template_id CHAR(36) NOT NULL,
		version_number INT NOT NULL,
		description TEXT NOT NULL,
		body MEDIUMTEXT NOT NULL,
		variables MEDIUMTEXT NOT NULL,
		created_at BIGINT NOT NULL,
		UNIQUE KEY uq_promptfill_versions_number (template_id, version_number),
		CONSTRAINT fk_promptfill_versions_template FOREIGN KEY (template_id)
			REFERENCES promptfill_templates(id) ON DELETE CASCADE
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4;`,
}

// policyStatement grants every operation on table to the service role only.
func policyStatement(table string) string {
	policy := table + "_service_role_all"
	return fmt.Sprintf(`DO $$
	BEGIN
		IF NOT EXISTS (
			SELECT 1 FROM pg_policies
			WHERE schemaname = 'public' AND tablename = '%[1]s' AND policyname = '%[2]s'
		) THEN
			create policy %[2]s on public.%[1]s
				for all
				using (auth.role() = 'service_role')
				with check (auth.role() = 'service_role');
		END IF;
	END
	$$;`, table, policy)
}

func schemaFor(driver string) ([]string, error) {
	d, err := dialectFor(driver)
	if err != nil {
		return nil, err
	}
	switch d.name {
	case driverPostgres:
		return postgresSchema, nil
	case driverMySQL:
		return mysqlSchema, nil
	default:
		return sqliteSchema, nil
	}
}

// Schema renders the DDL that Migrate applies for driver.
func Schema(driver string) (string, error) {
	stmts, err := schemaFor(normalizeDriver(driver))
	if err != nil {
		return "", err
	}
	var b strings.Builder
	for i, stmt := range stmts {
		if i > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString(strings.TrimSpace(stmt))
	}
	b.WriteString("\n")
	return b.String(), nil
}

// Migrate ensures the template tables exist.
func (s *Store) Migrate(ctx context.Context) error {
	if s == nil || s.DB == nil {
		return errors.New("store is not initialized")
	}

	if ctx == nil {
		ctx = context.Background()
	}

	stmts, err := schemaFor(s.driver)
	if err != nil {
		return err
	}
	for _, stmt := range stmts {
		if _, err := s.DB.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("store migration failed: %w", err)
		}
	}

	if s.dialect.name == driverSQLite {
		if err := s.ensureColumn(ctx, versionsTable, "description", "TEXT NOT NULL DEFAULT ''"); err != nil {
			return err
		}
	}

	return nil
}

// ensureColumn adds a column to an existing SQLite table created by an
// older schema.
func (s *Store) ensureColumn(ctx context.Context, table, column, columnDef string) error {
	rows, err := s.DB.QueryContext(ctx, fmt.Sprintf("SELECT name FROM pragma_table_info('%s')", table))
	if err != nil {
		return fmt.Errorf("inspect %s schema: %w", table, err)
	}
	defer rows.Close() // nolint:errcheck // best-effort cleanup on SQL rows

	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return fmt.Errorf("inspect %s columns: %w", table, err)
		}
		if name == column {
			return nil
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("inspect %s columns: %w", table, err)
	}

	if _, err := s.DB.ExecContext(ctx, fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s %s", table, column, columnDef)); err != nil {
		return fmt.Errorf("add %s.%s column: %w", table, column, err)
	}

	return nil
}
