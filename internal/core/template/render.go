package template

import "strings"

// Render substitutes every placeholder in body with its value from bag in a
// single left-to-right pass. Substituted text is never scanned again.
func Render(body string, bag *Object) string {
	return substitute(body, func(path string) Value {
		return Resolve(bag, path)
	})
}

// FillResult is the outcome of Fill.
type FillResult struct {
	Text            string   `json:"rendered_prompt"`
	MissingRequired []string `json:"missing_required"`
}

// Fill renders body like Render, falling back to declared defaults for
// values that resolve empty. Required variables that remain empty are
// reported, never rejected.
func Fill(body string, variables []Variable, bag *Object) FillResult {
	declared := make(map[string]Variable, len(variables))
	for _, v := range variables {
		declared[v.Name] = v
	}

	lookup := func(path string) Value {
		value := Resolve(bag, path)
		if !value.IsEmpty() {
			return value
		}
		if v, ok := declared[path]; ok && v.Default != "" {
			return StringValue(v.Default)
		}
		return value
	}

	missing := []string{}
	for _, v := range variables {
		if v.Required && lookup(v.Name).IsEmpty() {
			missing = append(missing, v.Name)
		}
	}

	return FillResult{
		Text:            substitute(body, lookup),
		MissingRequired: missing,
	}
}

func substitute(body string, lookup func(path string) Value) string {
	matches := placeholderPattern.FindAllStringSubmatchIndex(body, -1)
	if len(matches) == 0 {
		return body
	}

	var b strings.Builder
	b.Grow(len(body))
	last := 0
	for _, m := range matches {
		b.WriteString(body[last:m[0]])
		b.WriteString(lookup(body[m[2]:m[3]]).Text())
		last = m[1]
	}
	b.WriteString(body[last:])
	return b.String()
}
