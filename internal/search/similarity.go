package search

import "math"

// Document is a tokenized note body, the unit TF-IDF similarity works
// over. Callers build one per note from title+summary+body.
type Document struct {
	ID     string
	Terms  []string
}

// tfidfVectors builds per-document TF-IDF weight maps from a corpus,
// shared by Related (approximate "related notes") and PairwiseSimilarity.
func tfidfVectors(docs []Document) map[string]map[string]float64 {
	df := map[string]int{}
	for _, d := range docs {
		seen := map[string]bool{}
		for _, t := range d.Terms {
			if !seen[t] {
				seen[t] = true
				df[t]++
			}
		}
	}

	n := float64(len(docs))
	vectors := make(map[string]map[string]float64, len(docs))
	for _, d := range docs {
		tf := map[string]int{}
		for _, t := range d.Terms {
			tf[t]++
		}
		vec := make(map[string]float64, len(tf))
		for term, count := range tf {
			idf := math.Log(n/float64(df[term])) + 1
			vec[term] = float64(count) * idf
		}
		vectors[d.ID] = vec
	}
	return vectors
}

func cosine(a, b map[string]float64) float64 {
	var dot, na, nb float64
	for term, av := range a {
		na += av * av
		if bv, ok := b[term]; ok {
			dot += av * bv
		}
	}
	for _, bv := range b {
		nb += bv * bv
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

// SimilarityPair is one scored pair from PairwiseSimilarity.
type SimilarityPair struct {
	A, B  string
	Score float64
}

// PairwiseSimilarity returns every pair of documents with cosine
// similarity >= threshold, sorted most-similar first. Used by
// `compact suggest` (default threshold 0.85); doctor does not run a
// near-duplicate content check.
func PairwiseSimilarity(docs []Document, threshold float64) []SimilarityPair {
	vectors := tfidfVectors(docs)
	var out []SimilarityPair
	for i := 0; i < len(docs); i++ {
		for j := i + 1; j < len(docs); j++ {
			score := cosine(vectors[docs[i].ID], vectors[docs[j].ID])
			if score >= threshold {
				out = append(out, SimilarityPair{A: docs[i].ID, B: docs[j].ID, Score: score})
			}
		}
	}
	for i := 1; i < len(out); i++ {
		for k := i; k > 0 && out[k].Score > out[k-1].Score; k-- {
			out[k], out[k-1] = out[k-1], out[k]
		}
	}
	return out
}

// Related returns, for a single note, the top-N most similar other
// notes by TF-IDF cosine similarity — qipu's lightweight approximation
// of a semantic "related" suggestion (spec §4.3).
func Related(target string, docs []Document, limit int) []SimilarityPair {
	vectors := tfidfVectors(docs)
	targetVec, ok := vectors[target]
	if !ok {
		return nil
	}
	var out []SimilarityPair
	for _, d := range docs {
		if d.ID == target {
			continue
		}
		score := cosine(targetVec, vectors[d.ID])
		if score > 0 {
			out = append(out, SimilarityPair{A: target, B: d.ID, Score: score})
		}
	}
	for i := 1; i < len(out); i++ {
		for k := i; k > 0 && out[k].Score > out[k-1].Score; k-- {
			out[k], out[k-1] = out[k-1], out[k]
		}
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}
