package qdrant

import "testing"

func TestEncodeSparseQueryDeterministic(t *testing.T) {
	v1 := encodeSparseQuery("how to install docker on ubuntu")
	v2 := encodeSparseQuery("how to install docker on ubuntu")
	if len(v1.Indices) != len(v2.Indices) || len(v1.Values) != len(v2.Values) {
		t.Fatalf("vector sizes mismatch: v1=%d/%d v2=%d/%d", len(v1.Indices), len(v1.Values), len(v2.Indices), len(v2.Values))
	}
	for i := range v1.Indices {
		if v1.Indices[i] != v2.Indices[i] || v1.Values[i] != v2.Values[i] {
			t.Fatalf("encoding not deterministic at %d", i)
		}
	}
}

func TestEncodeSparseQuerySortsIndices(t *testing.T) {
	v := encodeSparseQuery("zulu alpha beta gamma")
	if len(v.Indices) == 0 {
		t.Fatalf("expected non-empty sparse vector")
	}
	for i := 1; i < len(v.Indices); i++ {
		if v.Indices[i-1] > v.Indices[i] {
			t.Fatalf("indices not sorted at %d: %d > %d", i, v.Indices[i-1], v.Indices[i])
		}
	}
}

func TestEncodeSparseQueryEmptyNoiseInput(t *testing.T) {
	v := encodeSparseQuery("___---!!!")
	if len(v.Indices) != 0 || len(v.Values) != 0 {
		t.Fatalf("expected empty sparse vector, got %+v", v)
	}
}

func TestTokenizeMixedLatinRuns(t *testing.T) {
	tokens := tokenizeMixed("Install Docker-CE v2")
	want := map[string]bool{"install": false, "docker": false, "ce": false, "v2": false}
	for _, tok := range tokens {
		if _, ok := want[tok]; ok {
			want[tok] = true
		}
	}
	for tok, seen := range want {
		if !seen {
			t.Fatalf("expected token %q in %v", tok, tokens)
		}
	}
}

func TestTokenizeMixedChineseBigrams(t *testing.T) {
	tokens := tokenizeMixed("如何安装docker")
	found := map[string]bool{}
	for _, tok := range tokens {
		found[tok] = true
	}
	for _, want := range []string{"如", "如何", "何安", "安装", "docker"} {
		if !found[want] {
			t.Fatalf("expected %q among tokens %v", want, tokens)
		}
	}
}

func TestTokenizeMixedBigramsDoNotCrossLatinBoundary(t *testing.T) {
	tokens := tokenizeMixed("安装docker容器")
	for _, tok := range tokens {
		if tok == "装容" {
			t.Fatalf("bigram crossed a latin boundary: %v", tokens)
		}
	}
}
