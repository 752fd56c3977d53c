package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	gferrors "github.com/fulmenhq/gofulmen/errors"
	"github.com/fulmenhq/gofulmen/foundry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/promptfill/promptfill/internal/errors"
	"github.com/promptfill/promptfill/internal/llm"
	"github.com/promptfill/promptfill/internal/routing"
	"github.com/promptfill/promptfill/internal/tools"
)

// isolate points config discovery and the store at a temp directory.
func isolate(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("HOME", dir)
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(dir, "config"))
	t.Setenv("XDG_DATA_HOME", filepath.Join(dir, "data"))
	t.Setenv("PROMPTFILL_DB_DRIVER", "sqlite")
	t.Setenv("PROMPTFILL_DB_PATH", filepath.Join(dir, "promptfill.db"))
	t.Setenv("PROMPTFILL_EVAL_API_KEY", "")
	t.Setenv("OPENAI_API_KEY", "")
	return dir
}

func runCLI(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	root := newRootCmd()
	root.AddCommand(
		newExtractCmd(),
		newRenderCmd(),
		newTemplateCmd(),
		newToolsCmd(),
		newStoreCmd(),
		newEvalCmd(),
		newVersionCmd(),
	)

	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(io.Discard)
	root.SetIn(strings.NewReader(stdin))
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func errorCode(t *testing.T, err error) string {
	t.Helper()
	var envelope *gferrors.ErrorEnvelope
	require.True(t, errors.As(err, &envelope), "expected an error envelope, got %v", err)
	return envelope.Code
}

func TestExtractCommand(t *testing.T) {
	isolate(t)

	out, err := runCLI(t, "Write a cold email to Dana at Acme about our Q3 launch.", "extract", "--json")
	require.NoError(t, err)

	var decoded struct {
		Template  string           `json:"template"`
		Variables []map[string]any `json:"variables"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &decoded))
	assert.Contains(t, decoded.Template, "{{")
	assert.NotEmpty(t, decoded.Variables)

	t.Run("EmptyInput", func(t *testing.T) {
		_, err := runCLI(t, "", "extract")
		assert.Equal(t, apperrors.CodeInvalidInput, errorCode(t, err))
	})
}

func TestRenderCommand(t *testing.T) {
	isolate(t)

	t.Run("InlineTemplate", func(t *testing.T) {
		out, err := runCLI(t, "", "render",
			"--template", "Hi {{name}}, data {{o}}{{missing}}",
			"--values", `{"name":"Ana","o":{"z":1,"a":2}}`)
		require.NoError(t, err)
		assert.Equal(t, `Hi Ana, data {"z":1,"a":2}`, out)
	})

	t.Run("ValuesFromStdin", func(t *testing.T) {
		out, err := runCLI(t, `{"user":{"name":"Bo"}}`, "render", "--template", "{{ user.name }}!", "--values-file", "-")
		require.NoError(t, err)
		assert.Equal(t, "Bo!", out)
	})

	t.Run("JSONOutput", func(t *testing.T) {
		out, err := runCLI(t, "", "render", "-o", "json",
			"--template", "Hi {{items.0}}", "--values", `{"items":["Ana"]}`)
		require.NoError(t, err)
		var decoded map[string]any
		require.NoError(t, json.Unmarshal([]byte(out), &decoded))
		assert.Equal(t, "Hi Ana", decoded["rendered_prompt"])
		assert.Equal(t, []any{}, decoded["missing_required"])
	})

	t.Run("NeedsExactlyOneSource", func(t *testing.T) {
		_, err := runCLI(t, "", "render", "--values", "{}")
		assert.Equal(t, apperrors.CodeInvalidInput, errorCode(t, err))
	})

	t.Run("ValuesMustBeObject", func(t *testing.T) {
		_, err := runCLI(t, "", "render", "--template", "x", "--values", "[1]")
		assert.Equal(t, apperrors.CodeInvalidInput, errorCode(t, err))
	})
}

func TestTemplateLifecycle(t *testing.T) {
	isolate(t)

	_, err := runCLI(t, "", "template", "save", "weekly-digest",
		"--template", "Summarize {{notes}} for {{audience}}.",
		"--description", "team digest")
	require.NoError(t, err)

	t.Run("DuplicateSave", func(t *testing.T) {
		_, err := runCLI(t, "", "template", "save", "weekly-digest", "--template", "x")
		assert.Equal(t, apperrors.CodeAlreadyExists, errorCode(t, err))
	})

	t.Run("InvalidPlaceholder", func(t *testing.T) {
		_, err := runCLI(t, "", "template", "save", "broken", "--template", "Hi {{ bad name }}")
		assert.Equal(t, apperrors.CodeInvalidPlaceholder, errorCode(t, err))
	})

	_, err = runCLI(t, "Summarize {{notes}} for {{audience}} by {{deadline}}.",
		"template", "update", "weekly-digest", "--file", "-")
	require.NoError(t, err)

	t.Run("UpdateNeedsAField", func(t *testing.T) {
		_, err := runCLI(t, "", "template", "update", "weekly-digest")
		assert.Equal(t, apperrors.CodeInvalidInput, errorCode(t, err))
	})

	t.Run("History", func(t *testing.T) {
		out, err := runCLI(t, "", "template", "history", "weekly-digest", "-o", "json")
		require.NoError(t, err)
		var decoded struct {
			Versions []struct {
				Number int `json:"version_number"`
			} `json:"versions"`
		}
		require.NoError(t, json.Unmarshal([]byte(out), &decoded))
		require.Len(t, decoded.Versions, 2)
		assert.Equal(t, 2, decoded.Versions[0].Number)
	})

	t.Run("GetHistoricalVersion", func(t *testing.T) {
		out, err := runCLI(t, "", "template", "get", "weekly-digest", "--version", "1", "-o", "json")
		require.NoError(t, err)
		assert.Contains(t, out, `"template": "Summarize {{notes}} for {{audience}}."`)
	})

	t.Run("Restore", func(t *testing.T) {
		out, err := runCLI(t, "", "template", "restore", "weekly-digest", "1", "-o", "json")
		require.NoError(t, err)
		assert.Contains(t, out, `"version": 3`)
		assert.Contains(t, out, `"template": "Summarize {{notes}} for {{audience}}."`)

		_, err = runCLI(t, "", "template", "restore", "weekly-digest", "zero")
		assert.Equal(t, apperrors.CodeInvalidInput, errorCode(t, err))
	})

	t.Run("ListAndSearch", func(t *testing.T) {
		out, err := runCLI(t, "", "template", "list")
		require.NoError(t, err)
		assert.Contains(t, out, "weekly-digest")

		out, err = runCLI(t, "", "template", "search", "AUDIENCE", "-o", "json")
		require.NoError(t, err)
		assert.Contains(t, out, "weekly-digest")
	})

	t.Run("RenderSaved", func(t *testing.T) {
		out, err := runCLI(t, "", "render", "--name", "weekly-digest", "--values", `{"notes":"n","audience":"a"}`)
		require.NoError(t, err)
		assert.Equal(t, "Summarize n for a.", out)
	})

	t.Run("Delete", func(t *testing.T) {
		out, err := runCLI(t, "", "template", "delete", "weekly-digest")
		require.NoError(t, err)
		assert.Equal(t, "Deleted weekly-digest\n", out)

		_, err = runCLI(t, "", "template", "get", "weekly-digest")
		assert.Equal(t, apperrors.CodeNotFound, errorCode(t, err))
		assert.Equal(t, foundry.ExitFailure, ExitCodeFor(err))
	})
}

func TestToolsCommands(t *testing.T) {
	isolate(t)

	t.Run("List", func(t *testing.T) {
		out, err := runCLI(t, "", "tools", "list", "-o", "json")
		require.NoError(t, err)
		var defs []tools.Definition
		require.NoError(t, json.Unmarshal([]byte(out), &defs))
		require.Len(t, defs, 9)
		for _, def := range defs {
			assert.True(t, strings.HasPrefix(def.Description, tools.DescriptionPrefix), def.Name)
		}
	})

	t.Run("CallRender", func(t *testing.T) {
		out, err := runCLI(t, "", "tools", "call", tools.RenderPrompt,
			"--args", `{"template":"Data: {{o}}","values":{"o":{"b":1,"a":2}}}`)
		require.NoError(t, err)
		assert.Contains(t, out, `"rendered_prompt": "Data: {\"b\":1,\"a\":2}"`)
	})

	t.Run("CallUnknownField", func(t *testing.T) {
		_, err := runCLI(t, "", "tools", "call", tools.ListTemplates, "--args", `{"bogus":true}`)
		assert.Equal(t, apperrors.CodeInvalidInput, errorCode(t, err))
	})

	t.Run("CallMissingTemplate", func(t *testing.T) {
		_, err := runCLI(t, "", "tools", "call", tools.GetTemplate, "--args", `{"name":"nope"}`)
		assert.Equal(t, apperrors.CodeNotFound, errorCode(t, err))
	})
}

func TestStoreCommands(t *testing.T) {
	isolate(t)

	out, err := runCLI(t, "", "store", "schema", "--driver", "postgres")
	require.NoError(t, err)
	assert.Contains(t, out, "promptfill_templates")
	assert.Contains(t, out, "promptfill_template_versions")
	assert.Contains(t, strings.ToLower(out), "row level security")

	out, err = runCLI(t, "", "store", "migrate")
	require.NoError(t, err)
	assert.Equal(t, "sqlite store is up to date\n", out)
}

func TestEvalRouting(t *testing.T) {
	t.Run("SkipsWithoutKey", func(t *testing.T) {
		isolate(t)
		out, err := runCLI(t, "", "eval", "routing")
		require.NoError(t, err)
		assert.Contains(t, out, "Skipping routing eval")
	})

	t.Run("RequiredWithoutKey", func(t *testing.T) {
		isolate(t)
		_, err := runCLI(t, "", "eval", "routing", "--required")
		assert.Equal(t, apperrors.CodeUpstreamUnavailable, errorCode(t, err))
		assert.Equal(t, foundry.ExitExternalServiceUnavailable, ExitCodeFor(err))
	})

	t.Run("FakeModel", func(t *testing.T) {
		dir := isolate(t)
		golden, err := routing.LoadGolden()
		require.NoError(t, err)
		answers := map[string]string{}
		for _, bucket := range routing.Buckets {
			for _, c := range golden.Bucket(bucket) {
				answers["Prompt: "+c.Prompt] = c.Expected()
			}
		}

		model := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var req struct {
				Messages []llm.Message `json:"messages"`
			}
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil || len(req.Messages) != 2 {
				w.WriteHeader(http.StatusBadRequest)
				return
			}
			_ = json.NewEncoder(w).Encode(map[string]any{
				"choices": []any{map[string]any{
					"message": map[string]any{"content": answers[req.Messages[1].Content]},
				}},
			})
		}))
		defer model.Close()

		t.Setenv("PROMPTFILL_EVAL_BASE_URL", model.URL)
		t.Setenv("PROMPTFILL_EVAL_API_KEY", "test-key")
		report := filepath.Join(dir, "out", "routing.json")

		out, err := runCLI(t, "", "eval", "routing", "--model", "fake", "--report", report)
		require.NoError(t, err)
		assert.Contains(t, out, "Routing eval PASS: fake")

		data, err := os.ReadFile(report)
		require.NoError(t, err)
		var decoded routing.Report
		require.NoError(t, json.Unmarshal(data, &decoded))
		assert.Equal(t, 1.0, decoded.Overall.Accuracy)
	})
}

func TestExitCodeFor(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want foundry.ExitCode
	}{
		{"ConfigInvalid", apperrors.NewConfigInvalidError("bad"), foundry.ExitConfigInvalid},
		{"Upstream", apperrors.NewUpstreamUnavailableError("down"), foundry.ExitExternalServiceUnavailable},
		{"ToolError", &tools.Error{Code: apperrors.CodeUpstreamUnavailable}, foundry.ExitExternalServiceUnavailable},
		{"Plain", errors.New("boom"), foundry.ExitFailure},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExitCodeFor(tt.err))
		})
	}
}

func TestExitReport(t *testing.T) {
	t.Run("Envelope", func(t *testing.T) {
		err := apperrors.WrapDatabaseError(context.Background(), errors.New("disk full"), "save failed")
		report := exitReport(1, "EXIT_FAILURE", "General failure", "Command failed", err)
		assert.Equal(t, "FATAL: Command failed [DATABASE_ERROR]: save failed\nCause: disk full\n"+
			"Exit Code: 1 (EXIT_FAILURE) - General failure\n", report)
	})

	t.Run("PlainError", func(t *testing.T) {
		report := exitReport(1, "EXIT_FAILURE", "", "Command failed", errors.New("boom"))
		assert.Equal(t, "FATAL: Command failed: boom\nExit Code: 1 (EXIT_FAILURE)\n", report)
	})

	t.Run("NoError", func(t *testing.T) {
		assert.True(t, strings.HasPrefix(exitReport(3, "X", "", "Stopped", nil), "FATAL: Stopped\n"))
	})
}
