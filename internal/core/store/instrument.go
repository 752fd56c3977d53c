package store

import (
	"context"
	"time"

	"github.com/promptfill/promptfill/internal/metrics"
)

type instrumented struct {
	TemplateStore
}

// Instrument records an operation metric for every call made through s.
func Instrument(s TemplateStore) TemplateStore {
	if s == nil {
		return nil
	}
	if _, ok := s.(instrumented); ok {
		return s
	}
	return instrumented{TemplateStore: s}
}

func (i instrumented) observe(operation string, start time.Time, err *error) {
	metrics.RecordStoreOperation(i.Driver(), operation, *err, time.Since(start))
}

func (i instrumented) Save(ctx context.Context, in SaveInput) (_ *Template, err error) {
	defer i.observe("save", time.Now(), &err)
	return i.TemplateStore.Save(ctx, in)
}

func (i instrumented) Update(ctx context.Context, name string, in UpdateInput) (_ *Template, err error) {
	defer i.observe("update", time.Now(), &err)
	return i.TemplateStore.Update(ctx, name, in)
}

func (i instrumented) Get(ctx context.Context, name string) (_ *Template, err error) {
	defer i.observe("get", time.Now(), &err)
	return i.TemplateStore.Get(ctx, name)
}

func (i instrumented) List(ctx context.Context) (_ []Template, err error) {
	defer i.observe("list", time.Now(), &err)
	return i.TemplateStore.List(ctx)
}

func (i instrumented) Search(ctx context.Context, query string, limit int) (_ []Template, err error) {
	defer i.observe("search", time.Now(), &err)
	return i.TemplateStore.Search(ctx, query, limit)
}

func (i instrumented) Delete(ctx context.Context, name string) (err error) {
	defer i.observe("delete", time.Now(), &err)
	return i.TemplateStore.Delete(ctx, name)
}

func (i instrumented) Versions(ctx context.Context, name string, limit int) (_ []Version, err error) {
	defer i.observe("versions", time.Now(), &err)
	return i.TemplateStore.Versions(ctx, name, limit)
}

func (i instrumented) Version(ctx context.Context, name string, number int) (_ *Version, err error) {
	defer i.observe("version", time.Now(), &err)
	return i.TemplateStore.Version(ctx, name, number)
}

func (i instrumented) Restore(ctx context.Context, name string, number int) (_ *Template, err error) {
	defer i.observe("restore", time.Now(), &err)
	return i.TemplateStore.Restore(ctx, name, number)
}
