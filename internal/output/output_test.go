package output

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/promptfill/promptfill/internal/core/store"
	"github.com/promptfill/promptfill/internal/core/template"
	"github.com/promptfill/promptfill/internal/routing"
	"github.com/promptfill/promptfill/internal/tools"
)

func TestParseFormat(t *testing.T) {
	tests := []struct {
		in      string
		want    Format
		wantErr bool
	}{
		{"table", FormatTable, false},
		{"JSON", FormatJSON, false},
		{"", FormatTable, false},
		{"md", FormatMarkdown, false},
		{"csv", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseFormat(tt.in)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func sampleTemplate() store.Template {
	stamp := time.Date(2026, 3, 4, 5, 6, 7, 0, time.UTC)
	return store.Template{
		ID:          "t1",
		Name:        "weekly-digest",
		Description: "Digest for the | team",
		Body:        "Summarize {{notes}} for {{audience}}.",
		Variables: []template.Variable{
			{Name: "notes", Type: template.TypeText, Required: true},
			{Name: "audience", Type: template.TypeEnum, Options: []string{"eng", "sales"}, Default: "eng"},
		},
		Version:   2,
		CreatedAt: stamp,
		UpdatedAt: stamp,
	}
}

func TestTemplates(t *testing.T) {
	items := []store.Template{sampleTemplate()}

	t.Run("Table", func(t *testing.T) {
		out, err := NewFormatter(FormatTable).Templates(items)
		require.NoError(t, err)
		assert.Contains(t, out, "weekly-digest")
		assert.Contains(t, out, "1 TEMPLATES")
		assert.Contains(t, out, "2026-03-04 05:06:07")
	})

	t.Run("Empty", func(t *testing.T) {
		out, err := NewFormatter(FormatTable).Templates(nil)
		require.NoError(t, err)
		assert.Equal(t, "No templates saved.", out)

		out, err = NewFormatter(FormatJSON).Templates(nil)
		require.NoError(t, err)
		assert.Equal(t, "[]", out)
	})

	t.Run("Markdown", func(t *testing.T) {
		out, err := NewFormatter(FormatMarkdown).Templates(items)
		require.NoError(t, err)
		assert.True(t, strings.HasPrefix(out, "## Templates\n\n"))
		assert.Contains(t, out, "| weekly-digest |")
	})

	t.Run("JSON", func(t *testing.T) {
		out, err := NewFormatter(FormatJSON).Templates(items)
		require.NoError(t, err)
		var decoded []map[string]any
		require.NoError(t, json.Unmarshal([]byte(out), &decoded))
		require.Len(t, decoded, 1)
		assert.Equal(t, "weekly-digest", decoded[0]["name"])
		assert.Equal(t, "Summarize {{notes}} for {{audience}}.", decoded[0]["template"])
	})
}

func TestTemplateDetail(t *testing.T) {
	item := sampleTemplate()
	out, err := NewFormatter(FormatTable).Template(&item)
	require.NoError(t, err)
	assert.Contains(t, out, "Template:\nSummarize {{notes}} for {{audience}}.")
	assert.Contains(t, out, "eng, sales")

	md, err := NewFormatter(FormatMarkdown).Template(&item)
	require.NoError(t, err)
	assert.Contains(t, md, "```\nSummarize {{notes}} for {{audience}}.\n```")
}

func TestVersions(t *testing.T) {
	out, err := NewFormatter(FormatTable).Versions("weekly-digest", nil)
	require.NoError(t, err)
	assert.Equal(t, "No versions recorded for weekly-digest.", out)

	versions := []store.Version{{Number: 2, Description: "second"}, {Number: 1}}
	out, err = NewFormatter(FormatJSON).Versions("weekly-digest", versions)
	require.NoError(t, err)
	var decoded struct {
		Name     string          `json:"name"`
		Versions []store.Version `json:"versions"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &decoded))
	assert.Equal(t, "weekly-digest", decoded.Name)
	assert.Equal(t, 2, decoded.Versions[0].Number)
}

func TestExtraction(t *testing.T) {
	result := template.Extract("Write a cold email to Dana at Acme about the launch.", template.ExtractOptions{})
	out, err := NewFormatter(FormatTable).Extraction(result)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "Template:\n"+result.Body))
	for _, v := range result.Variables {
		assert.Contains(t, out, v.Name)
	}
}

func TestFillResult(t *testing.T) {
	result := template.FillResult{Text: "Hi Ana"}

	t.Run("Table", func(t *testing.T) {
		out, err := NewFormatter(FormatTable).FillResult(result)
		require.NoError(t, err)
		assert.Equal(t, "Hi Ana", out)
	})

	t.Run("JSON", func(t *testing.T) {
		out, err := NewFormatter(FormatJSON).FillResult(result)
		require.NoError(t, err)
		assert.JSONEq(t, `{"rendered_prompt":"Hi Ana","missing_required":[]}`, out)
	})
}

func TestTools(t *testing.T) {
	router, err := tools.NewRouter(store.NewMemory())
	require.NoError(t, err)
	out, err := NewFormatter(FormatTable).Tools(router.Definitions())
	require.NoError(t, err)
	for _, name := range router.Names() {
		assert.Contains(t, out, name)
	}
	assert.Contains(t, out, "destructive")
	assert.Contains(t, out, "read-only")
}

func TestRoutingReport(t *testing.T) {
	report := &routing.Report{
		Model:       "gpt-test",
		MinAccuracy: 0.8,
		Overall:     routing.Summary{Total: 2, Passed: 1, Accuracy: 0.5},
		Buckets: map[string]routing.BucketResult{
			routing.BucketDirect: {
				Summary: routing.Summary{Total: 2, Passed: 1, Accuracy: 0.5},
				Rows: []routing.Row{
					{Bucket: routing.BucketDirect, Prompt: "save it", Expected: tools.SaveTemplate, Prediction: tools.SaveTemplate, Correct: true},
					{Bucket: routing.BucketDirect, Prompt: "drop it", Expected: tools.DeleteTemplate, Prediction: routing.NoTool},
				},
			},
		},
	}

	out, err := NewFormatter(FormatTable).RoutingReport(report)
	require.NoError(t, err)
	assert.Contains(t, out, "Routing eval FAIL: gpt-test (threshold 80.0%)")
	assert.Contains(t, out, "50.0%")
	assert.Contains(t, out, "drop it")
	assert.NotContains(t, out, "save it")
}
