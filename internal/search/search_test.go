package search

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestStemCommonSuffixes(t *testing.T) {
	cases := map[string]string{
		"caresses":  "caress",
		"ponies":    "poni",
		"relational": "relat",
		"agreed":    "agre",
		"feed":      "feed",
		"plastered": "plaster",
		"motoring":  "motor",
	}
	for in, want := range cases {
		require.Equal(t, want, Stem(in), "stem(%s)", in)
	}
}

func TestTokenizeDropsStopwordsAndStems(t *testing.T) {
	toks := Tokenize("The Running Dogs are Running")
	require.Equal(t, []string{"run", "dog", "run"}, toks)
}

func TestPairwiseSimilarityThreshold(t *testing.T) {
	docs := []Document{
		{ID: "a", Terms: Tokenize("graph traversal with weighted edges")},
		{ID: "b", Terms: Tokenize("graph traversal with weighted edges and costs")},
		{ID: "c", Terms: Tokenize("baking sourdough bread at home")},
	}
	pairs := PairwiseSimilarity(docs, 0.5)
	require.Len(t, pairs, 1)
	require.ElementsMatch(t, []string{"a", "b"}, []string{pairs[0].A, pairs[0].B})
}

func TestRelatedExcludesSelf(t *testing.T) {
	docs := []Document{
		{ID: "a", Terms: Tokenize("graph traversal engine")},
		{ID: "b", Terms: Tokenize("graph traversal engine design")},
	}
	related := Related("a", docs, 5)
	require.Len(t, related, 1)
	require.Equal(t, "b", related[0].B)
}
