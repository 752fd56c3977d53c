package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/promptfill/promptfill/internal/core/template"
)

const (
	templateColumns = `id, name, description, body, variables, current_version_id, current_version, created_at, updated_at`
	versionColumns  = `id, template_id, version_number, description, body, variables, created_at`

	defaultVersionLimit = 20
)

var _ TemplateStore = (*Store)(nil)

type rowScanner interface {
	Scan(dest ...any) error
}

// Save creates a template and its first version.
func (s *Store) Save(ctx context.Context, in SaveInput) (*Template, error) {
	tpl, version, err := newTemplate(in, nowUTC())
	if err != nil {
		return nil, err
	}

	err = s.withTx(ctx, func(tx *sql.Tx) error {
		var one int
		err := tx.QueryRowContext(ctx, s.q(`SELECT 1 FROM promptfill_templates WHERE name = ?`), tpl.Name).Scan(&one)
		switch {
		case err == nil:
			return fmt.Errorf("%w: %s", ErrAlreadyExists, tpl.Name)
		case !errors.Is(err, sql.ErrNoRows):
			return fmt.Errorf("check template name: %w", err)
		}

		if err := s.insertTemplate(ctx, tx, tpl); err != nil {
			return err
		}
		return s.insertVersion(ctx, tx, version)
	})
	if err != nil {
		return nil, err
	}
	return tpl, nil
}

// Update appends a version with the requested changes and repoints the
// template at it.
func (s *Store) Update(ctx context.Context, name string, in UpdateInput) (*Template, error) {
	name, err := normalizeName(name)
	if err != nil {
		return nil, err
	}

	var updated *Template
	err = s.withTx(ctx, func(tx *sql.Tx) error {
		current, err := s.loadTemplate(ctx, tx, name, true)
		if err != nil {
			return err
		}
		next, version, err := applyUpdate(*current, in, nowUTC())
		if err != nil {
			return err
		}
		if err := s.insertVersion(ctx, tx, version); err != nil {
			return err
		}
		if err := s.advance(ctx, tx, next, current.Version); err != nil {
			return err
		}
		updated = next
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// Restore appends a version whose content is copied from an older one.
func (s *Store) Restore(ctx context.Context, name string, number int) (*Template, error) {
	name, err := normalizeName(name)
	if err != nil {
		return nil, err
	}

	var restored *Template
	err = s.withTx(ctx, func(tx *sql.Tx) error {
		current, err := s.loadTemplate(ctx, tx, name, true)
		if err != nil {
			return err
		}
		snapshot, err := s.loadVersion(ctx, tx, current, number)
		if err != nil {
			return err
		}
		next, version := restoreFrom(*current, *snapshot, nowUTC())
		if err := s.insertVersion(ctx, tx, version); err != nil {
			return err
		}
		if err := s.advance(ctx, tx, next, current.Version); err != nil {
			return err
		}
		restored = next
		return nil
	})
	if err != nil {
		return nil, err
	}
	return restored, nil
}

// Get returns the current state of a template.
func (s *Store) Get(ctx context.Context, name string) (*Template, error) {
	name, err := normalizeName(name)
	if err != nil {
		return nil, err
	}

	var tpl *Template
	err = s.withTx(ctx, func(tx *sql.Tx) error {
		tpl, err = s.loadTemplate(ctx, tx, name, false)
		return err
	})
	if err != nil {
		return nil, err
	}
	return tpl, nil
}

// List returns every template ordered by name.
func (s *Store) List(ctx context.Context) ([]Template, error) {
	var out []Template
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		rows, err := tx.QueryContext(ctx, `SELECT `+templateColumns+` FROM promptfill_templates ORDER BY name`)
		if err != nil {
			return fmt.Errorf("list templates: %w", err)
		}
		defer rows.Close() // nolint:errcheck // best-effort cleanup on SQL rows

		out = []Template{}
		for rows.Next() {
			tpl, err := scanTemplate(rows)
			if err != nil {
				return err
			}
			out = append(out, *tpl)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Search ranks templates against query. An empty query lists templates.
func (s *Store) Search(ctx context.Context, query string, limit int) ([]Template, error) {
	all, err := s.List(ctx)
	if err != nil {
		return nil, err
	}
	return rankTemplates(all, query, limit), nil
}

// Delete removes a template and all of its versions.
func (s *Store) Delete(ctx context.Context, name string) error {
	name, err := normalizeName(name)
	if err != nil {
		return err
	}

	return s.withTx(ctx, func(tx *sql.Tx) error {
		current, err := s.loadTemplate(ctx, tx, name, true)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, s.q(`DELETE FROM promptfill_template_versions WHERE template_id = ?`), current.ID); err != nil {
			return fmt.Errorf("delete template versions: %w", err)
		}
		if _, err := tx.ExecContext(ctx, s.q(`DELETE FROM promptfill_templates WHERE id = ?`), current.ID); err != nil {
			return fmt.Errorf("delete template: %w", err)
		}
		return nil
	})
}

// Versions returns the newest versions of a template first.
func (s *Store) Versions(ctx context.Context, name string, limit int) ([]Version, error) {
	name, err := normalizeName(name)
	if err != nil {
		return nil, err
	}
	limit = clampLimit(limit, defaultVersionLimit)

	var out []Version
	err = s.withTx(ctx, func(tx *sql.Tx) error {
		current, err := s.loadTemplate(ctx, tx, name, false)
		if err != nil {
			return err
		}
		rows, err := tx.QueryContext(ctx, s.q(`SELECT `+versionColumns+` FROM promptfill_template_versions
			WHERE template_id = ? ORDER BY version_number DESC LIMIT ?`), current.ID, limit)
		if err != nil {
			return fmt.Errorf("list template versions: %w", err)
		}
		defer rows.Close() // nolint:errcheck // best-effort cleanup on SQL rows

		out = []Version{}
		for rows.Next() {
			version, err := scanVersion(rows)
			if err != nil {
				return err
			}
			out = append(out, *version)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Version returns one numbered snapshot of a template.
func (s *Store) Version(ctx context.Context, name string, number int) (*Version, error) {
	name, err := normalizeName(name)
	if err != nil {
		return nil, err
	}

	var version *Version
	err = s.withTx(ctx, func(tx *sql.Tx) error {
		current, err := s.loadTemplate(ctx, tx, name, false)
		if err != nil {
			return err
		}
		version, err = s.loadVersion(ctx, tx, current, number)
		return err
	})
	if err != nil {
		return nil, err
	}
	return version, nil
}

func (s *Store) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	if s == nil || s.DB == nil {
		return errors.New("store is not initialized")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := s.applyPrincipal(ctx, tx); err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// applyPrincipal scopes the transaction to the configured role so the
// row-level security policy admits it.
func (s *Store) applyPrincipal(ctx context.Context, tx *sql.Tx) error {
	if s.dialect.name != driverPostgres {
		return nil
	}
	var applied string
	if err := tx.QueryRowContext(ctx, `SELECT set_config('request.jwt.claim.role', $1, true)`, s.principal).Scan(&applied); err != nil {
		return fmt.Errorf("apply store principal: %w", err)
	}
	return nil
}

func (s *Store) q(query string) string {
	return s.dialect.rebind(query)
}

func (s *Store) loadTemplate(ctx context.Context, tx *sql.Tx, name string, lock bool) (*Template, error) {
	query := `SELECT ` + templateColumns + ` FROM promptfill_templates WHERE name = ?`
	if lock {
		query += s.dialect.lockSuffix
	}
	tpl, err := scanTemplate(tx.QueryRowContext(ctx, s.q(query), name))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	if err != nil {
		return nil, fmt.Errorf("load template: %w", err)
	}
	return tpl, nil
}

func (s *Store) loadVersion(ctx context.Context, tx *sql.Tx, tpl *Template, number int) (*Version, error) {
	version, err := scanVersion(tx.QueryRowContext(ctx, s.q(`SELECT `+versionColumns+` FROM promptfill_template_versions
		WHERE template_id = ? AND version_number = ?`), tpl.ID, number))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s version %d", ErrNotFound, tpl.Name, number)
	}
	if err != nil {
		return nil, fmt.Errorf("load template version: %w", err)
	}
	return version, nil
}

func (s *Store) insertTemplate(ctx context.Context, tx *sql.Tx, tpl *Template) error {
	vars, err := encodeVariables(tpl.Variables)
	if err != nil {
		return err
	}
	_, err = tx.ExecContext(ctx, s.q(`INSERT INTO promptfill_templates (`+templateColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`),
		tpl.ID, tpl.Name, tpl.Description, tpl.Body, vars, tpl.CurrentVersionID, tpl.Version,
		tpl.CreatedAt.UnixMilli(), tpl.UpdatedAt.UnixMilli())
	if isUniqueViolation(err) {
		return fmt.Errorf("%w: %s", ErrAlreadyExists, tpl.Name)
	}
	if err != nil {
		return fmt.Errorf("insert template: %w", err)
	}
	return nil
}

func (s *Store) insertVersion(ctx context.Context, tx *sql.Tx, version *Version) error {
	vars, err := encodeVariables(version.Variables)
	if err != nil {
		return err
	}
	_, err = tx.ExecContext(ctx, s.q(`INSERT INTO promptfill_template_versions (`+versionColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?)`),
		version.ID, version.TemplateID, version.Number, version.Description, version.Body, vars,
		version.CreatedAt.UnixMilli())
	if isUniqueViolation(err) {
		return fmt.Errorf("%w: version %d already recorded", ErrConflict, version.Number)
	}
	if err != nil {
		return fmt.Errorf("insert template version: %w", err)
	}
	return nil
}

// advance repoints the template row at its new version, guarded by the
// version number the caller read.
func (s *Store) advance(ctx context.Context, tx *sql.Tx, next *Template, expectedVersion int) error {
	vars, err := encodeVariables(next.Variables)
	if err != nil {
		return err
	}
	res, err := tx.ExecContext(ctx, s.q(`UPDATE promptfill_templates SET
			description = ?, body = ?, variables = ?, current_version_id = ?, current_version = ?, updated_at = ?
		WHERE id = ? AND current_version = ?`),
		next.Description, next.Body, vars, next.CurrentVersionID, next.Version, next.UpdatedAt.UnixMilli(),
		next.ID, expectedVersion)
	if err != nil {
		return fmt.Errorf("update template: %w", err)
	}
	affected, err := res.RowsAffected()
	if err == nil && affected == 0 {
		return fmt.Errorf("%w: %s", ErrConflict, next.Name)
	}
	return nil
}

func scanTemplate(row rowScanner) (*Template, error) {
	var (
		tpl       Template
		vars      string
		versionID sql.NullString
		created   int64
		updated   int64
	)
	if err := row.Scan(&tpl.ID, &tpl.Name, &tpl.Description, &tpl.Body, &vars, &versionID,
		&tpl.Version, &created, &updated); err != nil {
		return nil, err
	}
	decoded, err := decodeVariables(vars)
	if err != nil {
		return nil, err
	}
	tpl.Variables = decoded
	tpl.CurrentVersionID = versionID.String
	tpl.CreatedAt = time.UnixMilli(created).UTC()
	tpl.UpdatedAt = time.UnixMilli(updated).UTC()
	return &tpl, nil
}

func scanVersion(row rowScanner) (*Version, error) {
	var (
		version Version
		vars    string
		created int64
	)
	if err := row.Scan(&version.ID, &version.TemplateID, &version.Number, &version.Description,
		&version.Body, &vars, &created); err != nil {
		return nil, err
	}
	decoded, err := decodeVariables(vars)
	if err != nil {
		return nil, err
	}
	version.Variables = decoded
	version.CreatedAt = time.UnixMilli(created).UTC()
	return &version, nil
}

func encodeVariables(vars []template.Variable) (string, error) {
	if vars == nil {
		vars = []template.Variable{}
	}
	data, err := json.Marshal(vars)
	if err != nil {
		return "", fmt.Errorf("encode variables: %w", err)
	}
	return string(data), nil
}

func decodeVariables(raw string) ([]template.Variable, error) {
	vars := []template.Variable{}
	if raw == "" {
		return vars, nil
	}
	if err := json.Unmarshal([]byte(raw), &vars); err != nil {
		return nil, fmt.Errorf("decode variables: %w", err)
	}
	return vars, nil
}
