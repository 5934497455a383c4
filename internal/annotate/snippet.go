package annotate

import "strings"

// truncateSnippet implements §4.4's snippet rule: at most s lines; when
// the fragment's text exceeds s lines, keep the first ceil(s/2) and last
// floor(s/2) lines separated by one truncation sentinel line using the
// language's comment token. Directly adapted from the teacher's
// code_chunker.go chunk-context truncation idiom.
func truncateSnippet(text string, s int, commentToken string) string {
	lines := strings.Split(text, "\n")
	if len(lines) <= s {
		return text
	}

	head := (s + 1) / 2 // ceil(s/2)
	tail := s / 2        // floor(s/2)

	sentinel := commentToken + " … truncated …"

	out := make([]string, 0, head+tail+1)
	out = append(out, lines[:head]...)
	out = append(out, sentinel)
	out = append(out, lines[len(lines)-tail:]...)
	return strings.Join(out, "\n")
}
