package template

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func variableNames(vars []Variable) []string {
	out := make([]string, 0, len(vars))
	for _, v := range vars {
		out = append(out, v.Name)
	}
	return out
}

func TestExtract(t *testing.T) {
	t.Run("NothingFound", func(t *testing.T) {
		text := "Summarize the thread in three sentences"
		res := Extract(text, ExtractOptions{})
		require.Equal(t, text, res.Body)
		require.Empty(t, res.Variables)
		require.NotEmpty(t, res.Notes)
	})

	t.Run("BracketMarkers", func(t *testing.T) {
		res := Extract("Write to [Recipient Name] about <topic> in a {tone} voice.", ExtractOptions{})
		require.Equal(t, "Write to {{recipient_name}} about {{topic}} in a {{tone}} voice.", res.Body)
		require.Equal(t, []string{"recipient_name", "topic", "tone"}, variableNames(res.Variables))
		require.Equal(t, TypeEnum, res.Variables[2].Type)
	})

	t.Run("ExistingPlaceholdersCompactedWhenLenient", func(t *testing.T) {
		res := Extract("Hello {{ name }} and {{user.email}}", ExtractOptions{})
		require.Equal(t, "Hello {{name}} and {{user.email}}", res.Body)
		require.Equal(t, []string{"name", "user.email"}, variableNames(res.Variables))
	})

	t.Run("ExistingPlaceholdersKeptWhenStrict", func(t *testing.T) {
		res := Extract("Hello {{ name }}", ExtractOptions{Strict: true})
		require.Equal(t, "Hello {{ name }}", res.Body)
	})

	t.Run("LabelledValues", func(t *testing.T) {
		res := Extract("Draft the launch note.\nTone: warm\nOutput format: annotated\nLength: short", ExtractOptions{})
		require.Equal(t, "Draft the launch note.\nTone: {{tone}}\nOutput format: {{output_format}}\nLength: {{length}}", res.Body)

		byName := map[string]Variable{}
		for _, v := range res.Variables {
			byName[v.Name] = v
		}
		require.Equal(t, "warm", byName["tone"].Default)
		require.Contains(t, byName["tone"].Options, "warm")
		require.Equal(t, "annotated", byName["output_format"].Default)
	})

	t.Run("PhrasingRules", func(t *testing.T) {
		res := Extract("Write an email to Dana Kim about the Q3 pricing change, for executives. Max bullets: 4", ExtractOptions{})
		require.Equal(t, "Write an email to {{recipient_name}} about {{topic}}, for {{audience}}. Max bullets: {{max_bullets}}", res.Body)

		byName := map[string]Variable{}
		for _, v := range res.Variables {
			byName[v.Name] = v
		}
		require.Equal(t, "Dana Kim", byName["recipient_name"].Default)
		require.Equal(t, TypeNumber, byName["max_bullets"].Type)
		require.Equal(t, "4", byName["max_bullets"].Default)
	})

	t.Run("ExplicitMarkerBeatsInferredName", func(t *testing.T) {
		res := Extract("Use a [tone] voice. Tone: formal", ExtractOptions{})
		require.Equal(t, "Use a {{tone}} voice. Tone: formal", res.Body)
	})

	t.Run("EntityCollisionsGetSuffix", func(t *testing.T) {
		res := Extract("Reply to ana@example.com and cc bo@example.org", ExtractOptions{})
		require.Equal(t, "Reply to {{email}} and cc {{email_2}}", res.Body)
		require.Equal(t, []string{"email", "email_2"}, variableNames(res.Variables))
	})

	t.Run("SameOriginalSharesVariable", func(t *testing.T) {
		res := Extract("Ping ana@example.com, then ana@example.com again", ExtractOptions{Strict: true})
		require.Equal(t, "Ping {{email}}, then {{email}} again", res.Body)
		require.Len(t, res.Variables, 1)
	})

	t.Run("StrictSuffixesDifferentMarkers", func(t *testing.T) {
		res := Extract("[Tone] then {tone}", ExtractOptions{Strict: true})
		require.Equal(t, "{{tone}} then {{tone_2}}", res.Body)

		lenient := Extract("[Tone] then {tone}", ExtractOptions{})
		require.Equal(t, "{{tone}} then {{tone}}", lenient.Body)
		require.Len(t, lenient.Variables, 1)
	})

	t.Run("MarkdownLinksIgnored", func(t *testing.T) {
		text := "See [the docs](https://example.com/docs) first"
		res := Extract(text, ExtractOptions{})
		require.Equal(t, "See [the docs]({{url}}) first", res.Body)
	})

	t.Run("HTMLTagsIgnored", func(t *testing.T) {
		text := "Line one<br>Line two"
		res := Extract(text, ExtractOptions{})
		require.Equal(t, text, res.Body)
	})

	t.Run("MinConfidence", func(t *testing.T) {
		res := Extract("Write about the roadmap", ExtractOptions{MinConfidence: 0.8})
		require.Equal(t, "Write about the roadmap", res.Body)
	})

	t.Run("NamesAreValidPaths", func(t *testing.T) {
		res := Extract("Hi [Ünïcode Näme] on 2024-05-01 at https://x.io/a.", ExtractOptions{})
		for _, v := range res.Variables {
			require.True(t, ValidPath(v.Name), v.Name)
		}
		require.Equal(t, []string{"unicode_name", "date", "url"}, variableNames(res.Variables))
	})

	t.Run("BodyVariablesMatchPaths", func(t *testing.T) {
		res := Extract("Write an email to Sam about renewals. Tone: direct. Notes: [context]", ExtractOptions{})
		require.Equal(t, Paths(res.Body), variableNames(res.Variables))
	})
}

func TestExtractStrictRoundTrip(t *testing.T) {
	inputs := []string{
		"Write an email to Dana Kim about the Q3 pricing change, for executives. Max bullets: 4",
		"Summarize [source notes] for <audience>.\nTone: crisp\nLanguage: french",
		"Reply to ana@example.com and bo@example.org before 2025-01-31 using https://example.com/help.",
		"[Tone] then {tone} then [Tone]",
		"Nothing to see here.",
		"  padded  [name]  \n\t trailing whitespace  ",
	}

	for _, input := range inputs {
		res := Extract(input, ExtractOptions{Strict: true})
		require.Equal(t, input, Render(res.Body, res.IdentityFill()), "round trip for %q", input)
	}
}

func TestNormalizeName(t *testing.T) {
	cases := map[string]string{
		"Recipient Name":  "recipient_name",
		"  --Tone--  ":    "tone",
		"Crème brûlée":    "creme_brulee",
		"max   bullets!!": "max_bullets",
		"already_snake_1": "already_snake_1",
		"***":             "",
	}
	for in, want := range cases {
		require.Equal(t, want, NormalizeName(in), in)
	}
}

func TestInfer(t *testing.T) {
	require.Equal(t, TypeEnum, Infer("tone").Type)
	require.Equal(t, []string{"execs", "engineering", "sales", "customers"}, Infer("audience").Options)
	require.Equal(t, TypeEnum, Infer("email_format").Type)
	require.Equal(t, TypeNumber, Infer("max_bullets").Type)
	require.Equal(t, TypeBoolean, Infer("include_examples").Type)
	require.Equal(t, "true", Infer("preserve_whitespace").Default)
	require.Equal(t, TypeText, Infer("source_notes").Type)
	require.Equal(t, TypeString, Infer("recipient_name").Type)
	require.True(t, Infer("recipient_name").Required)
}
