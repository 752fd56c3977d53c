package store

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/promptfill/promptfill/internal/core/template"
)

type memoryRecord struct {
	tpl      Template
	versions []Version
}

// MemoryStore is a process-local TemplateStore. Contents are lost on exit.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[string]*memoryRecord
}

var _ TemplateStore = (*MemoryStore)(nil)

// NewMemory returns an empty in-memory store.
func NewMemory() *MemoryStore {
	return &MemoryStore{records: make(map[string]*memoryRecord)}
}

func (m *MemoryStore) Save(ctx context.Context, in SaveInput) (*Template, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	tpl, version, err := newTemplate(in, nowUTC())
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.records[tpl.Name]; ok {
		return nil, fmt.Errorf("%w: %s", ErrAlreadyExists, tpl.Name)
	}
	m.records[tpl.Name] = &memoryRecord{tpl: *tpl, versions: []Version{*version}}
	return cloneTemplate(*tpl), nil
}

func (m *MemoryStore) Update(ctx context.Context, name string, in UpdateInput) (*Template, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	name, err := normalizeName(name)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	rec, ok := m.records[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	next, version, err := applyUpdate(rec.tpl, in, nowUTC())
	if err != nil {
		return nil, err
	}
	rec.tpl = *next
	rec.versions = append(rec.versions, *version)
	return cloneTemplate(*next), nil
}

func (m *MemoryStore) Restore(ctx context.Context, name string, number int) (*Template, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	name, err := normalizeName(name)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	rec, ok := m.records[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	snapshot, ok := rec.version(number)
	if !ok {
		return nil, fmt.Errorf("%w: %s version %d", ErrNotFound, name, number)
	}
	next, version := restoreFrom(rec.tpl, snapshot, nowUTC())
	rec.tpl = *next
	rec.versions = append(rec.versions, *version)
	return cloneTemplate(*next), nil
}

func (m *MemoryStore) Get(ctx context.Context, name string) (*Template, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	name, err := normalizeName(name)
	if err != nil {
		return nil, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	rec, ok := m.records[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	return cloneTemplate(rec.tpl), nil
}

func (m *MemoryStore) List(ctx context.Context) ([]Template, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]Template, 0, len(m.records))
	for _, rec := range m.records {
		out = append(out, *cloneTemplate(rec.tpl))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (m *MemoryStore) Search(ctx context.Context, query string, limit int) ([]Template, error) {
	all, err := m.List(ctx)
	if err != nil {
		return nil, err
	}
	return rankTemplates(all, query, limit), nil
}

func (m *MemoryStore) Delete(ctx context.Context, name string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	name, err := normalizeName(name)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.records[name]; !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	delete(m.records, name)
	return nil
}

func (m *MemoryStore) Versions(ctx context.Context, name string, limit int) ([]Version, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	name, err := normalizeName(name)
	if err != nil {
		return nil, err
	}
	limit = clampLimit(limit, defaultVersionLimit)

	m.mu.RLock()
	defer m.mu.RUnlock()

	rec, ok := m.records[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	out := make([]Version, 0, min(limit, len(rec.versions)))
	for i := len(rec.versions) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, cloneVersion(rec.versions[i]))
	}
	return out, nil
}

func (m *MemoryStore) Version(ctx context.Context, name string, number int) (*Version, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	name, err := normalizeName(name)
	if err != nil {
		return nil, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	rec, ok := m.records[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	version, ok := rec.version(number)
	if !ok {
		return nil, fmt.Errorf("%w: %s version %d", ErrNotFound, name, number)
	}
	return &version, nil
}

func (m *MemoryStore) Ping(ctx context.Context) error { return ctx.Err() }

func (m *MemoryStore) Driver() string { return driverMemory }

func (m *MemoryStore) Close() error { return nil }

func (r *memoryRecord) version(number int) (Version, bool) {
	for _, v := range r.versions {
		if v.Number == number {
			return cloneVersion(v), true
		}
	}
	return Version{}, false
}

func cloneTemplate(t Template) *Template {
	t.Variables = cloneVariables(t.Variables)
	return &t
}

func cloneVersion(v Version) Version {
	v.Variables = cloneVariables(v.Variables)
	return v
}

func cloneVariables(vars []template.Variable) []template.Variable {
	out := make([]template.Variable, len(vars))
	for i, v := range vars {
		v.Options = append([]string(nil), v.Options...)
		out[i] = v
	}
	return out
}
