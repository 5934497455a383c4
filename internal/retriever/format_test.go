package retriever

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleResults() []Result {
	return []Result{
		{FragmentID: "f1", Kind: "function", Name: "calcTax", FilePath: "tax.go", Signature: "func calcTax(income, rate int) int",
			Summary: "Function calcTax with 2 parameter(s)", Complexity: 1, Dependencies: []string{}, Snippet: "return income*rate", Score: 0.92, StartLine: 10},
	}
}

func TestFormatResults_JSONRoundTrips(t *testing.T) {
	out, err := FormatResults("tax", sampleResults(), FormatJSON)
	require.NoError(t, err)

	var decoded []Result
	require.NoError(t, json.Unmarshal([]byte(out), &decoded))
	want := sampleResults()
	want[0].StartLine = 0 // StartLine is not part of the JSON wire shape
	assert.Equal(t, want, decoded)
}

func TestFormatResults_MarkdownIncludesNameAndSnippet(t *testing.T) {
	out, err := FormatResults("tax", sampleResults(), FormatMarkdown)
	require.NoError(t, err)
	assert.Contains(t, out, "calcTax")
	assert.Contains(t, out, "return income*rate")
}

func TestFormatResults_PlainOneLinePerResult(t *testing.T) {
	out, err := FormatResults("tax", sampleResults(), FormatPlain)
	require.NoError(t, err)
	assert.Contains(t, out, "tax.go:10")
}

func TestFormatResults_EmptyResultsMessage(t *testing.T) {
	out, err := FormatResults("nothing", nil, FormatMarkdown)
	require.NoError(t, err)
	assert.Contains(t, out, "No results found")
}

func TestFormatResults_UnknownFormatErrors(t *testing.T) {
	_, err := FormatResults("tax", sampleResults(), Format("xml"))
	assert.Error(t, err)
}
