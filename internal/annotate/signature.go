package annotate

import (
	"strings"

	"github.com/codelens-dev/codelens/internal/lang"
)

// extractSignature returns the declaration prototype: everything up to
// the body's opening delimiter, collapsed to one line. Generalizes the
// teacher's per-language extractGoName/extractTypeScriptName family
// (there a name lookup, here a prototype-text cut) into one table keyed
// by the descriptor's brace convention rather than a language-by-
// language switch, since every language in the registry uses either a
// '{'-delimited body (Go, JS/TS, Java, C#, C++, PHP, Rust) or Python's
// ':'-then-indent convention.
func extractSignature(nodeText string, desc *lang.Descriptor) string {
	if idx := strings.IndexByte(nodeText, '{'); idx >= 0 {
		return collapseWhitespace(nodeText[:idx])
	}
	if desc.Name == "python" {
		if idx := strings.IndexByte(nodeText, ':'); idx >= 0 {
			return collapseWhitespace(nodeText[:idx+1])
		}
	}
	if idx := strings.IndexByte(nodeText, '\n'); idx >= 0 {
		return collapseWhitespace(nodeText[:idx])
	}
	return collapseWhitespace(nodeText)
}

func collapseWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// countParameters counts comma-separated entries inside the first
// balanced parenthesis group of a signature, or 0 when the declaration
// has no parameter list (a struct, class, or constant).
func countParameters(nodeText string, desc *lang.Descriptor) int {
	sig := extractSignature(nodeText, desc)
	open := strings.IndexByte(sig, '(')
	if open < 0 {
		return 0
	}

	depth := 0
	var inner strings.Builder
scan:
	for i := open; i < len(sig); i++ {
		switch sig[i] {
		case '(':
			depth++
			if depth == 1 {
				continue
			}
		case ')':
			depth--
			if depth == 0 {
				break scan
			}
		}
		inner.WriteByte(sig[i])
	}
	content := strings.TrimSpace(inner.String())
	if content == "" {
		return 0
	}
	return countTopLevelCommas(content) + 1
}

// countTopLevelCommas counts commas not nested inside another bracket
// pair, so a parameter like "m map[string]int" doesn't get split.
func countTopLevelCommas(s string) int {
	depth := 0
	count := 0
	for _, r := range s {
		switch r {
		case '(', '[', '<', '{':
			depth++
		case ')', ']', '>', '}':
			if depth > 0 {
				depth--
			}
		case ',':
			if depth == 0 {
				count++
			}
		}
	}
	return count
}
