// Copyright (C) 2025 AI-Impact UK (engineering@aiimpact.uk)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package corpus

import (
	"math"
	"strings"
	"unicode"
)

// tfidfIndex is a TF-IDF vector space over the clause documents.
//
// Vectors are L2-normalized sparse maps keyed by vocabulary index, so cosine
// similarity reduces to a dot product. IDF uses the smoothed formulation
// ln((1+n)/(1+df)) + 1, which keeps unseen-but-rare terms from blowing up
// and matches the weighting the retrieval quality was tuned against.
type tfidfIndex struct {
	vocab map[string]int
	idf   []float64
	docs  []map[int]float64
}

func buildTFIDFIndex(documents []string) *tfidfIndex {
	idx := &tfidfIndex{vocab: make(map[string]int)}

	counts := make([]map[string]int, len(documents))
	df := make(map[string]int)
	for i, doc := range documents {
		tc := make(map[string]int)
		for _, tok := range tokenize(doc) {
			tc[tok]++
		}
		counts[i] = tc
		for tok := range tc {
			df[tok]++
			if _, ok := idx.vocab[tok]; !ok {
				idx.vocab[tok] = len(idx.vocab)
			}
		}
	}

	n := float64(len(documents))
	idx.idf = make([]float64, len(idx.vocab))
	for tok, id := range idx.vocab {
		idx.idf[id] = math.Log((1+n)/(1+float64(df[tok]))) + 1
	}

	idx.docs = make([]map[int]float64, len(documents))
	for i, tc := range counts {
		idx.docs[i] = idx.vectorize(tc)
	}
	return idx
}

// vectorize turns raw term counts into an L2-normalized TF-IDF vector.
func (idx *tfidfIndex) vectorize(termCounts map[string]int) map[int]float64 {
	vec := make(map[int]float64, len(termCounts))
	var norm float64
	for tok, count := range termCounts {
		id, ok := idx.vocab[tok]
		if !ok {
			continue
		}
		w := float64(count) * idx.idf[id]
		vec[id] = w
		norm += w * w
	}
	if norm > 0 {
		norm = math.Sqrt(norm)
		for id := range vec {
			vec[id] /= norm
		}
	}
	return vec
}

// similarities scores the query against every document in corpus order.
func (idx *tfidfIndex) similarities(query string) []float64 {
	tc := make(map[string]int)
	for _, tok := range tokenize(query) {
		tc[tok]++
	}
	qvec := idx.vectorize(tc)

	scores := make([]float64, len(idx.docs))
	if len(qvec) == 0 {
		return scores
	}
	for i, dvec := range idx.docs {
		var dot float64
		// Iterate the smaller vector.
		a, b := qvec, dvec
		if len(b) < len(a) {
			a, b = b, a
		}
		for id, w := range a {
			if w2, ok := b[id]; ok {
				dot += w * w2
			}
		}
		scores[i] = dot
	}
	return scores
}

// tokenize lowercases, splits on non-letter/digit runs, and drops English
// stop-words and single-character tokens.
func tokenize(text string) []string {
	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		if len(f) < 2 {
			continue
		}
		if _, stop := englishStopWords[f]; stop {
			continue
		}
		out = append(out, f)
	}
	return out
}
