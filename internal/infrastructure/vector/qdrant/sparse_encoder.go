package qdrant

import (
	"hash/fnv"
	"math"
	"sort"
	"strings"
	"unicode"
)

type sparseVector struct {
	Indices []uint32  `json:"indices"`
	Values  []float32 `json:"values"`
}

const (
	queryBM25K     = 1.2
	maxSparseTerms = 256
)

// encodeSparseQuery hashes query terms into a BM25-saturated sparse
// vector matching the indexing side's encoding.
func encodeSparseQuery(query string) sparseVector {
	termFreq := make(map[uint32]float64, 32)
	for _, token := range tokenizeMixed(query) {
		termFreq[hashTerm(token)]++
	}
	return termFreqToSparse(termFreq, queryBM25K)
}

func termFreqToSparse(tf map[uint32]float64, k float64) sparseVector {
	if len(tf) == 0 {
		return sparseVector{}
	}
	indices := make([]uint32, 0, len(tf))
	for idx := range tf {
		indices = append(indices, idx)
	}
	sort.Slice(indices, func(i, j int) bool { return indices[i] < indices[j] })
	if len(indices) > maxSparseTerms {
		indices = indices[:maxSparseTerms]
	}

	values := make([]float32, 0, len(indices))
	for _, idx := range indices {
		tfValue := tf[idx]
		weight := (tfValue * (k + 1.0)) / (tfValue + k)
		if math.IsNaN(weight) || math.IsInf(weight, 0) {
			weight = 0
		}
		values = append(values, float32(weight))
	}

	return sparseVector{Indices: indices, Values: values}
}

func hashTerm(term string) uint32 {
	h := fnv.New32a()
	_, _ = h.Write([]byte(term))
	sum := h.Sum32()
	if sum == 0 {
		return 1
	}
	return sum
}

func isCJK(r rune) bool {
	return unicode.In(r, unicode.Han, unicode.Hiragana, unicode.Katakana, unicode.Hangul)
}

// tokenizeMixed emits lowercase latin/digit runs as single terms and CJK
// text as character bigrams (plus unigrams for isolated characters), so
// Chinese queries produce useful lexical terms without a segmenter.
func tokenizeMixed(s string) []string {
	out := make([]string, 0, 24)
	var latin strings.Builder
	var prevCJK rune

	flushLatin := func() {
		if latin.Len() > 0 {
			out = append(out, latin.String())
			latin.Reset()
		}
	}

	for _, r := range s {
		switch {
		case isCJK(r):
			flushLatin()
			if prevCJK != 0 {
				out = append(out, string([]rune{prevCJK, r}))
			} else {
				out = append(out, string(r))
			}
			prevCJK = r
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			prevCJK = 0
			latin.WriteRune(unicode.ToLower(r))
		default:
			prevCJK = 0
			flushLatin()
		}
	}
	flushLatin()
	return out
}
