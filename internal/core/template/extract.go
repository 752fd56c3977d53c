package template

import (
	"slices"
	"sort"
	"strconv"
	"strings"
)

// ExtractOptions tunes the extractor.
type ExtractOptions struct {
	// Strict keeps every byte outside parameterized spans, including the
	// spelling of existing placeholders, and never merges two spans whose
	// original text differs.
	Strict bool
	// MinConfidence drops candidate spans scored below it.
	MinConfidence float64
}

// Span records one parameterized region of the source text.
type Span struct {
	Name       string  `json:"name"`
	Original   string  `json:"original"`
	Start      int     `json:"start"`
	End        int     `json:"end"`
	Rule       string  `json:"rule"`
	Confidence float64 `json:"confidence"`
}

// Extraction is the result of Extract.
type Extraction struct {
	Source    string     `json:"source_prompt"`
	Body      string     `json:"template"`
	Variables []Variable `json:"variables"`
	Spans     []Span     `json:"spans"`
	Notes     []string   `json:"notes"`
}

// IdentityFill maps every variable to the original text of its first span,
// so rendering Body with it reproduces the source in strict mode.
func (e Extraction) IdentityFill() *Object {
	bag := NewObject()
	for _, span := range e.Spans {
		if _, ok := bag.Get(span.Name); ok {
			continue
		}
		setPath(bag, span.Name, StringValue(span.Original))
	}
	return bag
}

// setPath stores value under a dotted path, creating intermediate objects.
func setPath(bag *Object, path string, value Value) {
	segments := strings.Split(path, ".")
	current := bag
	for _, segment := range segments[:len(segments)-1] {
		next, ok := current.Get(segment)
		if !ok || next.kind != KindObject {
			next = ObjectValue(NewObject())
			current.Set(segment, next)
		}
		current = next.obj
	}
	current.Set(segments[len(segments)-1], value)
}

type slot struct {
	original string
	explicit bool
	existing bool
}

// Extract proposes a template for free-form text. Explicit markers are
// converted first; labelled values, phrasing rules and entities then claim
// the remaining text. Text outside the chosen spans is copied unchanged.
func Extract(text string, opts ExtractOptions) Extraction {
	result := Extraction{
		Source:    text,
		Body:      text,
		Variables: []Variable{},
		Spans:     []Span{},
		Notes:     []string{},
	}

	explicit := append(existingCandidates(text), markerCandidates(text)...)
	var inferred []candidate
	inferred = append(inferred, labelCandidates(text)...)
	inferred = append(inferred, phraseCandidates(text)...)
	inferred = append(inferred, entityCandidates(text)...)

	accepted := selectCandidates(explicit, inferred, opts.MinConfidence)
	if len(accepted) == 0 {
		result.Notes = append(result.Notes, "No variables detected; the prompt was kept as written.")
		return result
	}

	slots := make(map[string]slot)
	order := []string{}
	var body strings.Builder
	last := 0
	for _, c := range accepted {
		original := text[c.start:c.end]
		name := assignName(slots, c, original, opts.Strict)
		if _, ok := slots[name]; !ok {
			slots[name] = slot{original: original, explicit: c.explicit, existing: c.existing}
			order = append(order, name)
		}

		body.WriteString(text[last:c.start])
		if c.existing && opts.Strict {
			body.WriteString(original)
		} else {
			body.WriteString("{{" + name + "}}")
		}
		last = c.end

		result.Spans = append(result.Spans, Span{
			Name:       name,
			Original:   original,
			Start:      c.start,
			End:        c.end,
			Rule:       c.rule,
			Confidence: c.confidence,
		})
		if c.note != "" && !slices.Contains(result.Notes, c.note) {
			result.Notes = append(result.Notes, c.note)
		}
	}
	body.WriteString(text[last:])
	result.Body = body.String()

	for _, name := range order {
		s := slots[name]
		v := Infer(name)
		if !s.explicit {
			applyObservedDefault(&v, s.original)
		}
		result.Variables = append(result.Variables, v)
	}

	return result
}

// selectCandidates resolves overlaps: explicit markers first, then inferred
// spans by confidence and position. An inferred rule never claims a name an
// explicit marker already uses.
func selectCandidates(explicit, inferred []candidate, minConfidence float64) []candidate {
	byScore := func(list []candidate) {
		sort.SliceStable(list, func(i, j int) bool {
			if list[i].confidence != list[j].confidence {
				return list[i].confidence > list[j].confidence
			}
			if list[i].start != list[j].start {
				return list[i].start < list[j].start
			}
			return list[i].end-list[i].start > list[j].end-list[j].start
		})
	}
	byScore(explicit)
	byScore(inferred)

	var accepted []candidate
	fits := func(c candidate) bool {
		if c.confidence < minConfidence {
			return false
		}
		for _, a := range accepted {
			if a.overlaps(c) {
				return false
			}
		}
		return true
	}

	claimed := make(map[string]struct{})
	for _, c := range explicit {
		if fits(c) {
			accepted = append(accepted, c)
			claimed[c.name] = struct{}{}
		}
	}
	for _, c := range inferred {
		if _, taken := claimed[c.name]; taken {
			continue
		}
		if fits(c) {
			accepted = append(accepted, c)
		}
	}

	sort.Slice(accepted, func(i, j int) bool { return accepted[i].start < accepted[j].start })
	return accepted
}

// assignName picks the variable name for a span. Spans reuse a name when
// their original text matches; existing placeholders always keep their path;
// in lenient mode explicit markers with the same name share one variable.
// Anything else gets a numeric suffix.
func assignName(slots map[string]slot, c candidate, original string, strict bool) string {
	if c.existing {
		return c.name
	}
	for n := 1; ; n++ {
		name := c.name
		if n > 1 {
			name = c.name + "_" + strconv.Itoa(n)
		}
		s, taken := slots[name]
		if !taken {
			return name
		}
		if s.existing {
			continue
		}
		if s.original == original {
			return name
		}
		if !strict && s.explicit && c.explicit {
			return name
		}
	}
}

// applyObservedDefault seeds the default from the text the span replaced.
func applyObservedDefault(v *Variable, original string) {
	value := strings.TrimSpace(original)
	if value == "" {
		return
	}
	switch v.Type {
	case TypeEnum:
		v.Default = value
		if !slices.Contains(v.Options, value) {
			v.Options = append(v.Options, value)
		}
	case TypeNumber:
		if _, err := strconv.ParseFloat(value, 64); err == nil {
			v.Default = value
		}
	case TypeBoolean:
		if _, err := strconv.ParseBool(value); err == nil {
			v.Default = strings.ToLower(value)
		}
	default:
		v.Default = value
	}
}
