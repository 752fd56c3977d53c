package store

import (
	"fmt"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/promptfill/promptfill/internal/core/template"
)

func normalizeName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", fmt.Errorf("%w: name is required", ErrInvalidInput)
	}
	if utf8.RuneCountInString(name) > maxNameLength {
		return "", fmt.Errorf("%w: name exceeds %d characters", ErrInvalidInput, maxNameLength)
	}
	for _, r := range name {
		if unicode.IsControl(r) {
			return "", fmt.Errorf("%w: name contains control characters", ErrInvalidInput)
		}
	}
	return name, nil
}

// reconcileBody validates placeholders and aligns variable metadata with the
// paths actually present in body.
func reconcileBody(body string, declared []template.Variable) ([]template.Variable, error) {
	if strings.TrimSpace(body) == "" {
		return nil, fmt.Errorf("%w: template body is required", ErrInvalidInput)
	}
	if err := template.Validate(body); err != nil {
		return nil, err
	}
	vars, _, err := template.Reconcile(body, declared)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	return vars, nil
}

// newTemplate builds version 1 of a template from a save request.
func newTemplate(in SaveInput, now time.Time) (*Template, *Version, error) {
	name, err := normalizeName(in.Name)
	if err != nil {
		return nil, nil, err
	}
	vars, err := reconcileBody(in.Body, in.Variables)
	if err != nil {
		return nil, nil, err
	}

	tpl := &Template{
		ID:          uuid.NewString(),
		Name:        name,
		Description: strings.TrimSpace(in.Description),
		Body:        in.Body,
		Variables:   vars,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	version := tpl.nextVersion(now)
	return tpl, version, nil
}

// applyUpdate returns the template as it looks after in is applied, together
// with the version row that records it.
func applyUpdate(current Template, in UpdateInput, now time.Time) (*Template, *Version, error) {
	if in.empty() {
		return nil, nil, fmt.Errorf("%w: nothing to update", ErrInvalidInput)
	}

	next := current
	if in.Body != nil {
		next.Body = *in.Body
	}
	if in.Description != nil {
		next.Description = strings.TrimSpace(*in.Description)
	}
	declared := current.Variables
	if in.Variables != nil {
		declared = in.Variables
	}
	vars, err := reconcileBody(next.Body, declared)
	if err != nil {
		return nil, nil, err
	}
	next.Variables = vars
	next.UpdatedAt = now

	version := next.nextVersion(now)
	return &next, version, nil
}

// restoreFrom rolls a template forward to the content of an older snapshot.
func restoreFrom(current Template, snapshot Version, now time.Time) (*Template, *Version) {
	next := current
	next.Body = snapshot.Body
	next.Variables = append([]template.Variable(nil), snapshot.Variables...)
	next.Description = snapshot.Description
	next.UpdatedAt = now
	return &next, next.nextVersion(now)
}

// nextVersion advances t to a fresh version and returns its snapshot.
func (t *Template) nextVersion(now time.Time) *Version {
	t.Version++
	t.CurrentVersionID = uuid.NewString()
	return &Version{
		ID:          t.CurrentVersionID,
		TemplateID:  t.ID,
		Number:      t.Version,
		Description: t.Description,
		Body:        t.Body,
		Variables:   t.Variables,
		CreatedAt:   now,
	}
}

func clampLimit(limit, fallback int) int {
	if limit <= 0 {
		return fallback
	}
	if limit > MaxSearchLimit {
		return MaxSearchLimit
	}
	return limit
}

func nowUTC() time.Time {
	return time.Now().UTC().Truncate(time.Millisecond)
}
