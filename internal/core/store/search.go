package store

import (
	"sort"
	"strings"

	"github.com/sahilm/fuzzy"
	"golang.org/x/text/cases"
)

// Match weights, highest first. Fuzzy name matches rank below every
// substring match.
const (
	scoreExactName    = 100
	scoreNamePrefix   = 80
	scoreNameContains = 60
	scoreVariable     = 40
	scoreDescription  = 30
	scoreBody         = 20
	scoreFuzzyName    = 10
)

type scored struct {
	tpl   Template
	score int
	fuzzy int
}

// rankTemplates filters templates by a case-insensitive query and orders
// them by match quality. Templates whose name only matches as a fuzzy
// subsequence are kept as typo-tolerant fallbacks.
func rankTemplates(templates []Template, query string, limit int) []Template {
	limit = clampLimit(limit, DefaultSearchLimit)
	fold := cases.Fold()
	needle := fold.String(strings.TrimSpace(query))

	if needle == "" {
		if len(templates) > limit {
			templates = templates[:limit]
		}
		return templates
	}

	names := make([]string, len(templates))
	for i, tpl := range templates {
		names[i] = fold.String(tpl.Name)
	}
	fuzzyScores := make(map[int]int)
	for _, match := range fuzzy.Find(needle, names) {
		fuzzyScores[match.Index] = match.Score
	}

	var hits []scored
	for i, tpl := range templates {
		score := substringScore(tpl, names[i], needle, fold)
		fz, fuzzyHit := fuzzyScores[i]
		if score == 0 && fuzzyHit {
			score = scoreFuzzyName
		}
		if score == 0 {
			continue
		}
		hits = append(hits, scored{tpl: tpl, score: score, fuzzy: fz})
	}

	sort.SliceStable(hits, func(i, j int) bool {
		if hits[i].score != hits[j].score {
			return hits[i].score > hits[j].score
		}
		if hits[i].fuzzy != hits[j].fuzzy {
			return hits[i].fuzzy > hits[j].fuzzy
		}
		return hits[i].tpl.Name < hits[j].tpl.Name
	})

	out := make([]Template, 0, min(limit, len(hits)))
	for _, hit := range hits {
		if len(out) == limit {
			break
		}
		out = append(out, hit.tpl)
	}
	return out
}

func substringScore(tpl Template, name, needle string, fold cases.Caser) int {
	switch {
	case name == needle:
		return scoreExactName
	case strings.HasPrefix(name, needle):
		return scoreNamePrefix
	case strings.Contains(name, needle):
		return scoreNameContains
	}
	for _, v := range tpl.Variables {
		if strings.Contains(fold.String(v.Name), needle) {
			return scoreVariable
		}
	}
	if strings.Contains(fold.String(tpl.Description), needle) {
		return scoreDescription
	}
	if strings.Contains(fold.String(tpl.Body), needle) {
		return scoreBody
	}
	return 0
}
