package retriever

import (
	"encoding/json"
	"fmt"
	"strings"
)

// FormatResults renders results in the requested output format, adapted from the
// teacher's internal/mcp/format.go FormatSearchResults/formatResult, cut
// down to the single wire shape in §6: no BM25 "matched terms" or
// multi-signal explain data, since those belong to the dropped
// hybrid-search stack.
func FormatResults(query string, results []Result, format Format) (string, error) {
	switch format {
	case FormatJSON, "":
		return formatJSON(results)
	case FormatMarkdown:
		return formatMarkdown(query, results), nil
	case FormatPlain:
		return formatPlain(query, results), nil
	default:
		return "", fmt.Errorf("retriever: unknown output format %q", format)
	}
}

func formatJSON(results []Result) (string, error) {
	blob, err := json.MarshalIndent(results, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal results: %w", err)
	}
	return string(blob), nil
}

func formatMarkdown(query string, results []Result) string {
	if len(results) == 0 {
		return fmt.Sprintf("No results found for %q", query)
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "## Results for %q\n\n", query)
	fmt.Fprintf(&sb, "Found %d result%s\n\n", len(results), plural(len(results)))

	for i, r := range results {
		formatMarkdownResult(&sb, i+1, r)
	}
	return sb.String()
}

func formatMarkdownResult(sb *strings.Builder, num int, r Result) {
	fmt.Fprintf(sb, "### %d. %s (score: %.2f)\n\n", num, r.FilePath, r.Score)
	if r.Name != "" {
		fmt.Fprintf(sb, "**%s** `%s`\n\n", capitalize(r.Kind), r.Name)
	}
	fmt.Fprintf(sb, "%s\n\n", r.Summary)
	if len(r.Dependencies) > 0 {
		fmt.Fprintf(sb, "**Dependencies:** %s\n\n", strings.Join(r.Dependencies, ", "))
	}
	fmt.Fprintf(sb, "```\n%s\n```\n\n", r.Snippet)
}

func formatPlain(query string, results []Result) string {
	if len(results) == 0 {
		return fmt.Sprintf("No results found for %q", query)
	}

	var sb strings.Builder
	for i, r := range results {
		fmt.Fprintf(&sb, "%d. %s:%d %s (%s, score %.2f)\n", i+1, r.FilePath, r.StartLine, r.Signature, r.Kind, r.Score)
		fmt.Fprintf(&sb, "   %s\n", r.Summary)
	}
	return sb.String()
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

func plural(n int) string {
	if n == 1 {
		return ""
	}
	return "s"
}
