package output

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/promptfill/promptfill/internal/core/store"
	"github.com/promptfill/promptfill/internal/core/template"
	"github.com/promptfill/promptfill/internal/routing"
	"github.com/promptfill/promptfill/internal/tools"
)

const (
	maxCellWidth = 60
	timeLayout   = "2006-01-02 15:04:05"
)

// TableFormatter renders results as rounded ASCII tables, or as Markdown
// tables when Markdown is set.
type TableFormatter struct {
	Markdown bool
}

func (f *TableFormatter) newTable(header table.Row) table.Writer {
	t := table.NewWriter()
	t.SetStyle(table.StyleRounded)
	t.AppendHeader(header)
	return t
}

func (f *TableFormatter) render(title string, t table.Writer) string {
	if f.Markdown {
		return markdownHeading(title) + t.RenderMarkdown()
	}
	if title != "" {
		t.SetTitle(title)
	}
	return t.Render()
}

func (f *TableFormatter) cell(value string) string {
	value = strings.Join(strings.Fields(value), " ")
	if f.Markdown {
		return value
	}
	return text.Snip(value, maxCellWidth, "…")
}

func (f *TableFormatter) block(title, body string) string {
	if f.Markdown {
		return markdownHeading(title) + markdownCode(body)
	}
	return title + ":\n" + strings.TrimRight(body, "\n")
}

func (f *TableFormatter) Templates(items []store.Template) (string, error) {
	if len(items) == 0 {
		return "No templates saved.", nil
	}

	t := f.newTable(table.Row{"Name", "Version", "Variables", "Description", "Updated"})
	for _, item := range items {
		t.AppendRow(table.Row{
			item.Name,
			item.Version,
			len(item.Variables),
			f.cell(item.Description),
			item.UpdatedAt.UTC().Format(timeLayout),
		})
	}
	t.AppendFooter(table.Row{"", "", "", "", fmt.Sprintf("%d templates", len(items))})

	return f.render("Templates", t), nil
}

func (f *TableFormatter) Template(item *store.Template) (string, error) {
	if item == nil {
		return "", nil
	}

	meta := f.newTable(table.Row{"Field", "Value"})
	meta.AppendRows([]table.Row{
		{"Name", item.Name},
		{"Version", item.Version},
		{"Description", f.cell(item.Description)},
		{"Created", item.CreatedAt.UTC().Format(timeLayout)},
		{"Updated", item.UpdatedAt.UTC().Format(timeLayout)},
	})

	sections := []string{
		f.render(item.Name, meta),
		f.block("Template", item.Body),
	}
	if len(item.Variables) > 0 {
		sections = append(sections, f.variables(item.Variables))
	}
	return strings.Join(sections, "\n\n"), nil
}

func (f *TableFormatter) Versions(name string, items []store.Version) (string, error) {
	if len(items) == 0 {
		return fmt.Sprintf("No versions recorded for %s.", name), nil
	}

	t := f.newTable(table.Row{"Version", "Variables", "Description", "Created"})
	for _, item := range items {
		t.AppendRow(table.Row{
			item.Number,
			len(item.Variables),
			f.cell(item.Description),
			item.CreatedAt.UTC().Format(timeLayout),
		})
	}

	return f.render("History of "+name, t), nil
}

func (f *TableFormatter) Extraction(result template.Extraction) (string, error) {
	sections := []string{f.block("Template", result.Body)}
	if len(result.Variables) > 0 {
		sections = append(sections, f.variables(result.Variables))
	}

	if len(result.Spans) > 0 {
		t := f.newTable(table.Row{"Variable", "Original", "Rule", "Confidence"})
		for _, span := range result.Spans {
			t.AppendRow(table.Row{
				span.Name,
				f.cell(span.Original),
				span.Rule,
				strconv.FormatFloat(span.Confidence, 'f', 2, 64),
			})
		}
		sections = append(sections, f.render("Spans", t))
	}

	if len(result.Notes) > 0 {
		var sb strings.Builder
		if f.Markdown {
			sb.WriteString(markdownHeading("Notes"))
		} else {
			sb.WriteString("Notes:\n")
		}
		for _, note := range result.Notes {
			sb.WriteString("- " + note + "\n")
		}
		sections = append(sections, strings.TrimRight(sb.String(), "\n"))
	}

	return strings.Join(sections, "\n\n"), nil
}

// FillResult returns the rendered prompt verbatim.
func (f *TableFormatter) FillResult(result template.FillResult) (string, error) {
	return result.Text, nil
}

func (f *TableFormatter) variables(vars []template.Variable) string {
	t := f.newTable(table.Row{"Variable", "Type", "Required", "Default", "Options"})
	for _, v := range vars {
		required := "no"
		if v.Required {
			required = "yes"
		}
		t.AppendRow(table.Row{
			v.Name,
			string(v.Type),
			required,
			f.cell(v.Default),
			f.cell(strings.Join(v.Options, ", ")),
		})
	}
	return f.render("Variables", t)
}

func (f *TableFormatter) Tools(defs []tools.Definition) (string, error) {
	t := f.newTable(table.Row{"Tool", "Title", "Access", "Widget"})
	for _, def := range defs {
		access := "write"
		switch {
		case def.Destructive:
			access = "destructive"
		case def.ReadOnly:
			access = "read-only"
		}
		widget := ""
		if def.Widget {
			widget = "inline"
		}
		t.AppendRow(table.Row{def.Name, def.Title, access, widget})
	}
	return f.render("Tools", t), nil
}

func (f *TableFormatter) RoutingReport(report *routing.Report) (string, error) {
	if report == nil {
		return "", nil
	}

	t := f.newTable(table.Row{"Bucket", "Passed", "Total", "Accuracy"})
	for _, bucket := range routing.Buckets {
		result := report.Buckets[bucket]
		t.AppendRow(table.Row{bucket, result.Passed, result.Total, percent(result.Accuracy)})
	}
	t.AppendFooter(table.Row{"overall", report.Overall.Passed, report.Overall.Total, percent(report.Overall.Accuracy)})

	verdict := "PASS"
	if !report.Passed() {
		verdict = "FAIL"
	}
	title := fmt.Sprintf("Routing eval %s: %s (threshold %s)", verdict, report.Model, percent(report.MinAccuracy))
	sections := []string{f.render(title, t)}

	misses := f.newTable(table.Row{"Bucket", "Prompt", "Expected", "Predicted"})
	missed := 0
	for _, bucket := range routing.Buckets {
		for _, row := range report.Buckets[bucket].Rows {
			if row.Correct {
				continue
			}
			missed++
			misses.AppendRow(table.Row{bucket, f.cell(row.Prompt), row.Expected, row.Prediction})
		}
	}
	if missed > 0 {
		sections = append(sections, f.render("Misrouted prompts", misses))
	}

	return strings.Join(sections, "\n\n"), nil
}

func percent(value float64) string {
	return strconv.FormatFloat(value*100, 'f', 1, 64) + "%"
}
