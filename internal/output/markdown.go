package output

import "strings"

func escapeMarkdownCell(value string) string {
	value = strings.ReplaceAll(value, "|", "\\|")
	return strings.ReplaceAll(value, "\n", " ")
}

func markdownHeading(title string) string {
	if title == "" {
		return ""
	}
	return "## " + escapeMarkdownCell(title) + "\n\n"
}

func markdownCode(body string) string {
	return "```\n" + strings.TrimRight(body, "\n") + "\n```\n"
}
