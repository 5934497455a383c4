package annotate

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codelens-dev/codelens/internal/lang"
	"github.com/codelens-dev/codelens/internal/parser"
	"github.com/codelens-dev/codelens/internal/store"
)

const sampleSource = `package sample

func Add(a, b int) int {
	if a > b {
		return a + b
	}
	return b
}

func Sum(values []int) int {
	total := 0
	for _, v := range values {
		total = total + v
	}
	return total
}
`

func fragmentNamed(t *testing.T, source, name string) (*parser.Tree, *store.Fragment) {
	t.Helper()
	p := parser.New(lang.Default())
	tree, frags, err := p.ParseTree(context.Background(), "sample.go", []byte(source), "go")
	require.NoError(t, err)
	t.Cleanup(tree.Close)

	for _, f := range frags {
		if f.Name == name {
			return tree, f
		}
	}
	t.Fatalf("no fragment named %s", name)
	return nil, nil
}

func TestAnnotate_SignatureAndSummary(t *testing.T) {
	tree, frag := fragmentNamed(t, sampleSource, "Add")
	ann, err := Annotate(context.Background(), tree, frag)
	require.NoError(t, err)

	assert.Contains(t, ann.Signature, "Add")
	assert.Contains(t, ann.Signature, "(a, b int) int")
	assert.Equal(t, "Function Add with 2 parameter(s)", ann.Summary)
}

func TestAnnotate_ComplexityCountsDecisionPoints(t *testing.T) {
	tree, frag := fragmentNamed(t, sampleSource, "Add")
	ann, err := Annotate(context.Background(), tree, frag)
	require.NoError(t, err)
	assert.Equal(t, 2, ann.Complexity) // 1 + one if statement

	tree2, frag2 := fragmentNamed(t, sampleSource, "Sum")
	ann2, err := Annotate(context.Background(), tree2, frag2)
	require.NoError(t, err)
	assert.Equal(t, 2, ann2.Complexity) // 1 + one for loop
}

func TestAnnotate_SnippetTruncatesLongFragments(t *testing.T) {
	var b strings.Builder
	b.WriteString("func Long() {\n")
	for i := 0; i < 30; i++ {
		b.WriteString("\tdoSomething()\n")
	}
	b.WriteString("}\n")
	source := "package sample\n\n" + b.String()

	tree, frag := fragmentNamed(t, source, "Long")
	ann, err := Annotate(context.Background(), tree, frag)
	require.NoError(t, err)

	assert.LessOrEqual(t, strings.Count(ann.Snippet, "\n")+1, DefaultSnippetLines+1)
	assert.Contains(t, ann.Snippet, "truncated")
}
