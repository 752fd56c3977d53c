package template

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var enumOptionSets = map[string][]string{
	"tone":          {"concise", "friendly", "direct", "formal"},
	"audience":      {"execs", "engineering", "sales", "customers"},
	"format":        {"bullets", "paragraphs", "email", "slack_update"},
	"length":        {"short", "medium", "long"},
	"language":      {"english", "spanish", "french", "german"},
	"style":         {"friendly", "crisp", "executive", "casual"},
	"relationship":  {"customer", "investor", "coworker", "friend"},
	"doc_type":      {"prd", "brief", "one_pager"},
	"risk_profile":  {"strict", "balanced", "fast"},
	"output_format": {"bullets", "annotated"},
	"tone_style":    {"friendly", "crisp", "executive", "casual"},
}

// Checked in order when a name only contains an enum keyword.
var enumKeywords = []string{"tone", "audience", "format", "length", "language", "style", "relationship", "profile"}

var (
	numberHint  = regexp.MustCompile(`(max_|min_|count|num|total|bullets?|items?|lines?|days?|months?|years?|words)`)
	booleanHint = regexp.MustCompile(`(include|exclude|is_|has_|preserve_|allow_|enable_|disable_)`)
	textHint    = regexp.MustCompile(`(notes|context|transcript|thread|body|input|message|diff|source|schema|constraints|benefits|paste)`)
)

// Infer guesses metadata for a variable from its name.
func Infer(name string) Variable {
	lower := strings.ToLower(name)
	key := lower
	if i := strings.LastIndex(key, "."); i >= 0 {
		key = key[i+1:]
	}

	if options, ok := enumOptionSets[key]; ok {
		return enumVariable(name, options)
	}
	for _, keyword := range enumKeywords {
		if !strings.Contains(key, keyword) {
			continue
		}
		if options, ok := enumOptionSets[keyword]; ok {
			return enumVariable(name, options)
		}
		return enumVariable(name, enumOptionSets["tone"])
	}

	switch {
	case numberHint.MatchString(key):
		return Variable{Name: name, Type: TypeNumber, Default: "5"}
	case booleanHint.MatchString(key):
		def := "false"
		if strings.HasPrefix(key, "preserve_") {
			def = "true"
		}
		return Variable{Name: name, Type: TypeBoolean, Default: def}
	case textHint.MatchString(key):
		return Variable{Name: name, Type: TypeText}
	}
	return Variable{Name: name, Type: TypeString, Required: true}
}

func enumVariable(name string, options []string) Variable {
	opts := make([]string, len(options))
	copy(opts, options)
	return Variable{Name: name, Type: TypeEnum, Required: true, Default: opts[0], Options: opts}
}

// NormalizeName folds free text into a snake_case variable name: accents are
// stripped, runs of anything other than ASCII letters and digits collapse to
// a single underscore, and leading or trailing underscores are dropped.
func NormalizeName(raw string) string {
	t := transform.Chain(norm.NFKD, runes.Remove(runes.In(unicode.Mn)))
	folded, _, err := transform.String(t, strings.TrimSpace(raw))
	if err != nil {
		folded = raw
	}
	folded = strings.ToLower(folded)

	var b strings.Builder
	pending := false
	for _, r := range folded {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			if pending && b.Len() > 0 {
				b.WriteByte('_')
			}
			pending = false
			b.WriteRune(r)
			continue
		}
		pending = true
	}
	return b.String()
}
