package template

import (
	"fmt"
	"regexp"
	"strings"
)

// candidate is a span of source text that a rule proposes to parameterize.
type candidate struct {
	start      int
	end        int
	name       string
	rule       string
	confidence float64
	explicit   bool
	existing   bool
	note       string
}

func (c candidate) overlaps(o candidate) bool {
	return c.start < o.end && o.start < c.end
}

const (
	ruleExisting = "placeholder"
	ruleMarker   = "marker"
	ruleLabel    = "label"
	rulePhrase   = "phrase"
	ruleEntity   = "entity"
)

var (
	squareMarker = regexp.MustCompile(`\[\s*(\pL[\pL\pN _.\-]{1,63}?)\s*\]`)
	angleMarker  = regexp.MustCompile(`<\s*(\pL[\pL\pN _.\-]{1,63}?)\s*>`)
	curlyMarker  = regexp.MustCompile(`\{\s*(\pL[\pL\pN _.\-]{1,63}?)\s*\}`)

	emailRecipientPattern = regexp.MustCompile(`(?i)\bwrite\s+an?\s+email\s+to\s+([^,\n.{}]+?)(?:\s+about\b|[,\n.]|$)`)
	aboutPattern          = regexp.MustCompile(`(?i)\babout\s+([^,\n.{}]+?)(?:[,\n.]|$)`)
	audiencePattern       = regexp.MustCompile(`(?i)\bfor\s+(executives?|execs?|engineering|sales|customers|leadership|stakeholders)\b`)
	maxBulletsPattern     = regexp.MustCompile(`(?i)\bmax(?:imum)?\s+bullets?\s*:\s*(\d+)`)

	emailAddressPattern = regexp.MustCompile(`[A-Za-z0-9._%+\-]+@[A-Za-z0-9.\-]+\.[A-Za-z]{2,}`)
	urlPattern          = regexp.MustCompile(`https?://[^\s<>"'\]\)]+`)
	isoDatePattern      = regexp.MustCompile(`\b\d{4}-\d{2}-\d{2}\b`)
)

// HTML-looking angle markers are left alone.
var htmlTags = map[string]struct{}{
	"br": {}, "hr": {}, "div": {}, "span": {}, "p": {}, "li": {}, "ul": {}, "ol": {},
	"code": {}, "pre": {}, "em": {}, "strong": {}, "table": {}, "tr": {}, "td": {},
	"th": {}, "html": {}, "body": {}, "head": {}, "img": {}, "script": {}, "style": {},
}

type labelRule struct {
	label      string
	name       string
	confidence float64
}

var labelRules = []labelRule{
	{label: `risk\s+profile`, name: "risk_profile", confidence: 0.87},
	{label: `output\s+format`, name: "output_format", confidence: 0.87},
	{label: `tone`, name: "tone", confidence: 0.85},
	{label: `audience`, name: "audience", confidence: 0.85},
	{label: `format`, name: "format", confidence: 0.85},
	{label: `length`, name: "length", confidence: 0.85},
	{label: `language`, name: "language", confidence: 0.85},
	{label: `style`, name: "style", confidence: 0.85},
}

var labelPatterns = func() []*regexp.Regexp {
	out := make([]*regexp.Regexp, len(labelRules))
	for i, rule := range labelRules {
		out[i] = regexp.MustCompile(`(?i)\b` + rule.label + `\s*:[ \t]*([^\n.,;]+)`)
	}
	return out
}()

func existingCandidates(text string) []candidate {
	var out []candidate
	for _, p := range Scan(text) {
		out = append(out, candidate{
			start:      p.Start,
			end:        p.End,
			name:       p.Path,
			rule:       ruleExisting,
			confidence: 1,
			explicit:   true,
			existing:   true,
			note:       fmt.Sprintf("Kept existing placeholder {{%s}}.", p.Path),
		})
	}
	return out
}

func markerCandidates(text string) []candidate {
	var out []candidate
	collect := func(pattern *regexp.Regexp, open string, confidence float64) {
		for _, m := range pattern.FindAllStringSubmatchIndex(text, -1) {
			inner := text[m[2]:m[3]]
			if open == "[" && m[1] < len(text) && text[m[1]] == '(' {
				// markdown link text
				continue
			}
			if open == "<" {
				if _, ok := htmlTags[strings.ToLower(strings.TrimSpace(inner))]; ok {
					continue
				}
			}
			name := NormalizeName(inner)
			if len(name) < 2 {
				continue
			}
			out = append(out, candidate{
				start:      m[0],
				end:        m[1],
				name:       name,
				rule:       ruleMarker,
				confidence: confidence,
				explicit:   true,
				note:       fmt.Sprintf("Converted %s to {{%s}}.", text[m[0]:m[1]], name),
			})
		}
	}
	collect(curlyMarker, "{", 0.95)
	collect(squareMarker, "[", 0.95)
	collect(angleMarker, "<", 0.9)
	return out
}

func labelCandidates(text string) []candidate {
	var out []candidate
	for i, rule := range labelRules {
		m := labelPatterns[i].FindStringSubmatchIndex(text)
		if m == nil {
			continue
		}
		start, end := trimSpan(text, m[2], m[3])
		if start >= end || strings.Contains(text[start:end], "{") {
			continue
		}
		out = append(out, candidate{
			start:      start,
			end:        end,
			name:       rule.name,
			rule:       ruleLabel,
			confidence: rule.confidence,
			note:       fmt.Sprintf("Mapped labelled %s value to {{%s}}.", strings.ReplaceAll(rule.name, "_", " "), rule.name),
		})
	}
	return out
}

func phraseCandidates(text string) []candidate {
	var out []candidate

	if m := emailRecipientPattern.FindStringSubmatchIndex(text); m != nil {
		start, end := trimSpan(text, m[2], m[3])
		if start < end && end-start <= 80 {
			out = append(out, candidate{
				start: start, end: end, name: "recipient_name", rule: rulePhrase, confidence: 0.8,
				note: "Inferred {{recipient_name}} from email-recipient phrasing.",
			})
		}
	}

	if m := aboutPattern.FindStringSubmatchIndex(text); m != nil {
		start, end := trimSpan(text, m[2], m[3])
		if start < end && end-start <= 100 {
			out = append(out, candidate{
				start: start, end: end, name: "topic", rule: rulePhrase, confidence: 0.7,
				note: "Inferred {{topic}} from \"about ...\" phrasing.",
			})
		}
	}

	if m := audiencePattern.FindStringSubmatchIndex(text); m != nil {
		out = append(out, candidate{
			start: m[2], end: m[3], name: "audience", rule: rulePhrase, confidence: 0.75,
			note: "Inferred {{audience}} from target-audience phrasing.",
		})
	}

	if m := maxBulletsPattern.FindStringSubmatchIndex(text); m != nil {
		out = append(out, candidate{
			start: m[2], end: m[3], name: "max_bullets", rule: rulePhrase, confidence: 0.9,
			note: "Inferred {{max_bullets}} from numeric bullet constraint.",
		})
	}

	return out
}

func entityCandidates(text string) []candidate {
	var out []candidate
	add := func(pattern *regexp.Regexp, name string, confidence float64, trim string) {
		for _, m := range pattern.FindAllStringIndex(text, -1) {
			start, end := m[0], m[1]
			for end > start && strings.ContainsRune(trim, rune(text[end-1])) {
				end--
			}
			if start >= end {
				continue
			}
			out = append(out, candidate{
				start: start, end: end, name: name, rule: ruleEntity, confidence: confidence,
				note: fmt.Sprintf("Detected %s value and mapped it to {{%s}}.", strings.ReplaceAll(name, "_", " "), name),
			})
		}
	}
	add(urlPattern, "url", 0.9, ".,;:!?")
	add(emailAddressPattern, "email", 0.9, ".")
	add(isoDatePattern, "date", 0.85, "")
	return out
}

func trimSpan(text string, start, end int) (int, int) {
	for start < end && isSpace(text[start]) {
		start++
	}
	for end > start && isSpace(text[end-1]) {
		end--
	}
	return start, end
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r' || c == '\f' || c == '\v'
}
