package template

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestValidate(t *testing.T) {
	valid := []string{
		"",
		"no placeholders",
		"{{name}} and {{ user.first_name }} and {{a-b}}",
		"single {brace} is text",
		"unclosed {{ is text",
	}
	for _, body := range valid {
		require.NoError(t, Validate(body), body)
	}

	invalid := []string{
		"{{}}",
		"{{   }}",
		"{{ first name }}",
		"{{name!}}",
		"{{a..b}}",
		"{{.a}}",
	}
	for _, body := range invalid {
		err := Validate(body)
		require.Error(t, err, body)
		require.True(t, errors.Is(err, ErrInvalidPlaceholder), body)

		var perr *PlaceholderError
		require.ErrorAs(t, err, &perr)
		require.Equal(t, 0, perr.Offset)
	}
}

func TestPaths(t *testing.T) {
	body := "{{b}} {{ a.c }} {{b}} {{d}}"
	require.Equal(t, []string{"b", "a.c", "d"}, Paths(body))

	spans := Scan(body)
	require.Len(t, spans, 4)
	require.Equal(t, "{{ a.c }}", spans[1].Raw)
	require.Equal(t, body[spans[1].Start:spans[1].End], spans[1].Raw)
}

func TestCompact(t *testing.T) {
	require.Equal(t, "{{a}} {{b.c}}", Compact("{{ a }} {{\tb.c }}"))
}

func TestReconcile(t *testing.T) {
	t.Run("InfersUndeclared", func(t *testing.T) {
		vars, unreferenced, err := Reconcile("{{tone}} {{topic}}", []Variable{
			{Name: "topic", Type: TypeText, Description: "what to write about"},
			{Name: "stale", Type: TypeString},
		})
		require.NoError(t, err)
		require.Equal(t, []string{"tone", "topic"}, variableNames(vars))
		require.Equal(t, TypeEnum, vars[0].Type)
		require.Equal(t, TypeText, vars[1].Type)
		require.Equal(t, []string{"stale"}, unreferenced)
	})

	t.Run("RejectsUnknownType", func(t *testing.T) {
		_, _, err := Reconcile("{{a}}", []Variable{{Name: "a", Type: "date"}})
		require.Error(t, err)
	})

	t.Run("EnumNeedsOptions", func(t *testing.T) {
		_, _, err := Reconcile("{{a}}", []Variable{{Name: "a", Type: TypeEnum}})
		require.Error(t, err)
	})
}

func TestVariableUnmarshalJSON(t *testing.T) {
	var vars []Variable
	raw := `[
		{"name":"follow_up","type":"boolean","required":true,"default_value":true},
		{"name":"bullets","type":"number","default_value":5},
		{"name":"tone","type":"enum","default_value":"friendly","options":["friendly","formal"]},
		{"name":"blank","default_value":null}
	]`
	require.NoError(t, json.Unmarshal([]byte(raw), &vars))
	require.Equal(t, "true", vars[0].Default)
	require.True(t, vars[0].Required)
	require.Equal(t, "5", vars[1].Default)
	require.Equal(t, []string{"friendly", "formal"}, vars[2].Options)
	require.Empty(t, vars[3].Default)

	require.Error(t, json.Unmarshal([]byte(`[{"name":"x","default_value":{"a":1}}]`), &vars))
	require.Error(t, json.Unmarshal([]byte(`[{"name":"x","colour":"red"}]`), &vars))
}
