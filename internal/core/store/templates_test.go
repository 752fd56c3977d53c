package store

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/promptfill/promptfill/internal/config"
	"github.com/promptfill/promptfill/internal/core/template"
)

func engines() map[string]func(t *testing.T) TemplateStore {
	return map[string]func(t *testing.T) TemplateStore{
		"memory": func(t *testing.T) TemplateStore {
			return NewMemory()
		},
		"instrumented": func(t *testing.T) TemplateStore {
			return Instrument(NewMemory())
		},
		"sqlite": func(t *testing.T) TemplateStore {
			s, err := New(context.Background(), config.StoreConfig{Driver: "sqlite", Path: ":memory:"})
			require.NoError(t, err)
			t.Cleanup(func() { _ = s.Close() })
			return s
		},
	}
}

func forEachEngine(t *testing.T, fn func(t *testing.T, s TemplateStore)) {
	for name, open := range engines() {
		t.Run(name, func(t *testing.T) {
			fn(t, open(t))
		})
	}
}

func ptr[T any](v T) *T { return &v }

func TestSaveAndGet(t *testing.T) {
	forEachEngine(t, func(t *testing.T, s TemplateStore) {
		ctx := context.Background()

		saved, err := s.Save(ctx, SaveInput{
			Name:        "  launch-note ",
			Body:        "Tell {{audience}} about {{topic}} in a {{tone}} voice.",
			Description: "Launch announcement",
			Variables: []template.Variable{
				{Name: "topic", Type: template.TypeText, Description: "what shipped"},
				{Name: "unused", Type: template.TypeString},
			},
		})
		require.NoError(t, err)
		require.Equal(t, "launch-note", saved.Name)
		require.Equal(t, 1, saved.Version)
		require.NotEmpty(t, saved.ID)
		require.NotEmpty(t, saved.CurrentVersionID)

		got, err := s.Get(ctx, "launch-note")
		require.NoError(t, err)
		require.Equal(t, saved.ID, got.ID)
		require.Equal(t, saved.Body, got.Body)
		require.Equal(t, "Launch announcement", got.Description)
		require.Equal(t, saved.CreatedAt, got.CreatedAt)

		names := make([]string, 0, len(got.Variables))
		for _, v := range got.Variables {
			names = append(names, v.Name)
		}
		require.Equal(t, []string{"audience", "topic", "tone"}, names)
		require.Equal(t, "what shipped", got.Variables[1].Description)
		require.Equal(t, template.TypeEnum, got.Variables[2].Type)
	})
}

func TestSaveDuplicate(t *testing.T) {
	forEachEngine(t, func(t *testing.T, s TemplateStore) {
		ctx := context.Background()

		_, err := s.Save(ctx, SaveInput{Name: "dup", Body: "one"})
		require.NoError(t, err)

		_, err = s.Save(ctx, SaveInput{Name: "dup", Body: "two"})
		require.ErrorIs(t, err, ErrAlreadyExists)

		got, err := s.Get(ctx, "dup")
		require.NoError(t, err)
		require.Equal(t, "one", got.Body)
	})
}

func TestSaveValidation(t *testing.T) {
	forEachEngine(t, func(t *testing.T, s TemplateStore) {
		ctx := context.Background()

		_, err := s.Save(ctx, SaveInput{Name: "bad", Body: "Hi {{ first name }}"})
		require.ErrorIs(t, err, template.ErrInvalidPlaceholder)

		_, err = s.Save(ctx, SaveInput{Name: "", Body: "x"})
		require.ErrorIs(t, err, ErrInvalidInput)

		_, err = s.Save(ctx, SaveInput{Name: "empty", Body: "   "})
		require.ErrorIs(t, err, ErrInvalidInput)

		_, err = s.Save(ctx, SaveInput{Name: "enum", Body: "{{a}}", Variables: []template.Variable{{Name: "a", Type: template.TypeEnum}}})
		require.ErrorIs(t, err, ErrInvalidInput)

		list, err := s.List(ctx)
		require.NoError(t, err)
		require.Empty(t, list)
	})
}

func TestUpdate(t *testing.T) {
	forEachEngine(t, func(t *testing.T, s TemplateStore) {
		ctx := context.Background()

		saved, err := s.Save(ctx, SaveInput{
			Name:      "reply",
			Body:      "Answer {{question}}",
			Variables: []template.Variable{{Name: "question", Type: template.TypeText, Description: "customer question"}},
		})
		require.NoError(t, err)

		updated, err := s.Update(ctx, "reply", UpdateInput{Body: ptr("Answer {{question}} politely in {{language}}")})
		require.NoError(t, err)
		require.Equal(t, saved.Version+1, updated.Version)
		require.NotEqual(t, saved.CurrentVersionID, updated.CurrentVersionID)

		got, err := s.Get(ctx, "reply")
		require.NoError(t, err)
		require.Equal(t, "Answer {{question}} politely in {{language}}", got.Body)
		require.Equal(t, 2, got.Version)
		require.Len(t, got.Variables, 2)
		require.Equal(t, "customer question", got.Variables[0].Description)
		require.Equal(t, saved.ID, got.ID)

		versions, err := s.Versions(ctx, "reply", 0)
		require.NoError(t, err)
		require.Len(t, versions, 2)
		require.Equal(t, 2, versions[0].Number)
		require.Equal(t, 1, versions[1].Number)
		require.Equal(t, "Answer {{question}}", versions[1].Body)
		require.Equal(t, got.CurrentVersionID, versions[0].ID)

		described, err := s.Update(ctx, "reply", UpdateInput{Description: ptr("support macro")})
		require.NoError(t, err)
		require.Equal(t, 3, described.Version)
		require.Equal(t, got.Body, described.Body)
	})
}

func TestUpdateErrors(t *testing.T) {
	forEachEngine(t, func(t *testing.T, s TemplateStore) {
		ctx := context.Background()

		_, err := s.Update(ctx, "ghost", UpdateInput{Body: ptr("x")})
		require.ErrorIs(t, err, ErrNotFound)

		_, err = s.Save(ctx, SaveInput{Name: "real", Body: "{{a}}"})
		require.NoError(t, err)

		_, err = s.Update(ctx, "real", UpdateInput{})
		require.ErrorIs(t, err, ErrInvalidInput)

		_, err = s.Update(ctx, "real", UpdateInput{Body: ptr("{{a b}}")})
		require.True(t, errors.Is(err, template.ErrInvalidPlaceholder))

		got, err := s.Get(ctx, "real")
		require.NoError(t, err)
		require.Equal(t, 1, got.Version)
	})
}

func TestDelete(t *testing.T) {
	forEachEngine(t, func(t *testing.T, s TemplateStore) {
		ctx := context.Background()

		_, err := s.Save(ctx, SaveInput{Name: "temp", Body: "v1"})
		require.NoError(t, err)
		_, err = s.Update(ctx, "temp", UpdateInput{Body: ptr("v2")})
		require.NoError(t, err)

		require.NoError(t, s.Delete(ctx, "temp"))

		_, err = s.Get(ctx, "temp")
		require.ErrorIs(t, err, ErrNotFound)
		_, err = s.Versions(ctx, "temp", 10)
		require.ErrorIs(t, err, ErrNotFound)
		require.ErrorIs(t, s.Delete(ctx, "temp"), ErrNotFound)

		if sqlStore, ok := s.(*Store); ok {
			var orphans int
			require.NoError(t, sqlStore.DB.QueryRowContext(ctx, `SELECT COUNT(*) FROM promptfill_template_versions`).Scan(&orphans))
			require.Zero(t, orphans)
		}

		_, err = s.Save(ctx, SaveInput{Name: "temp", Body: "again"})
		require.NoError(t, err)
	})
}

func TestRestore(t *testing.T) {
	forEachEngine(t, func(t *testing.T, s TemplateStore) {
		ctx := context.Background()

		_, err := s.Save(ctx, SaveInput{Name: "digest", Body: "Summarize {{notes}}", Description: "first"})
		require.NoError(t, err)
		_, err = s.Update(ctx, "digest", UpdateInput{Body: ptr("Summarize {{notes}} for {{audience}}"), Description: ptr("second")})
		require.NoError(t, err)

		restored, err := s.Restore(ctx, "digest", 1)
		require.NoError(t, err)
		require.Equal(t, 3, restored.Version)
		require.Equal(t, "Summarize {{notes}}", restored.Body)
		require.Equal(t, "first", restored.Description)
		require.Len(t, restored.Variables, 1)

		v1, err := s.Version(ctx, "digest", 1)
		require.NoError(t, err)
		require.Equal(t, "Summarize {{notes}}", v1.Body)

		v2, err := s.Version(ctx, "digest", 2)
		require.NoError(t, err)
		require.Equal(t, "Summarize {{notes}} for {{audience}}", v2.Body)

		_, err = s.Restore(ctx, "digest", 9)
		require.ErrorIs(t, err, ErrNotFound)
		_, err = s.Version(ctx, "digest", 9)
		require.ErrorIs(t, err, ErrNotFound)

		versions, err := s.Versions(ctx, "digest", 2)
		require.NoError(t, err)
		require.Len(t, versions, 2)
		require.Equal(t, 3, versions[0].Number)
	})
}

func TestSearch(t *testing.T) {
	forEachEngine(t, func(t *testing.T, s TemplateStore) {
		ctx := context.Background()

		seed := []SaveInput{
			{Name: "email-outreach", Body: "Write to {{recipient_name}} about {{topic}}"},
			{Name: "exec-summary", Body: "Summarize {{source_notes}} for executives", Description: "Board update"},
			{Name: "support-reply", Body: "Reply to {{customer_email}} with empathy"},
		}
		for _, in := range seed {
			_, err := s.Save(ctx, in)
			require.NoError(t, err)
		}

		results, err := s.Search(ctx, "EMAIL", 0)
		require.NoError(t, err)
		require.Equal(t, []string{"email-outreach", "support-reply"}, templateNames(results))

		results, err = s.Search(ctx, "executives", 10)
		require.NoError(t, err)
		require.Equal(t, []string{"exec-summary"}, templateNames(results))

		results, err = s.Search(ctx, "board", 10)
		require.NoError(t, err)
		require.Equal(t, []string{"exec-summary"}, templateNames(results))

		results, err = s.Search(ctx, "emlout", 10)
		require.NoError(t, err)
		require.Equal(t, []string{"email-outreach"}, templateNames(results))

		results, err = s.Search(ctx, "", 2)
		require.NoError(t, err)
		require.Equal(t, []string{"email-outreach", "exec-summary"}, templateNames(results))

		results, err = s.Search(ctx, "zzzz", 10)
		require.NoError(t, err)
		require.Empty(t, results)
	})
}

func templateNames(list []Template) []string {
	out := make([]string, 0, len(list))
	for _, tpl := range list {
		out = append(out, tpl.Name)
	}
	return out
}
