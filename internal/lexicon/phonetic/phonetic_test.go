package phonetic_test

import (
	"testing"

	"github.com/MrWong99/medscribe/internal/lexicon/phonetic"
)

var drugs = []string{"lisinopril", "metformin", "atorvastatin", "amlodipine", "metoprolol"}

func TestMatcher_RecoversMisheardDrugNames(t *testing.T) {
	t.Parallel()

	m := phonetic.New(drugs)

	tests := []struct {
		heard string
		want  string
	}{
		{"lisinoprill", "lisinopril"},
		{"metaformin", "metformin"},
		{"atorvastatine", "atorvastatin"},
		{"Amlodipene", "amlodipine"},
	}
	for _, tc := range tests {
		t.Run(tc.heard, func(t *testing.T) {
			t.Parallel()
			res, ok := m.Match(tc.heard)
			if !ok {
				t.Fatalf("Match(%q): matched=false, want true", tc.heard)
			}
			if res.Term != tc.want {
				t.Errorf("Match(%q) = %q, want %q", tc.heard, res.Term, tc.want)
			}
			if res.Score < 0.7 {
				t.Errorf("Match(%q): score=%f, want >= 0.7", tc.heard, res.Score)
			}
		})
	}
}

func TestMatcher_NoMatch(t *testing.T) {
	t.Parallel()

	m := phonetic.New(drugs)
	if res, ok := m.Match("yesterday"); ok {
		t.Errorf("Match(yesterday) = %+v, want no match", res)
	}
	if _, ok := m.Match("   "); ok {
		t.Error("Match(blank) matched, want false")
	}
}

func TestMatcher_EmptyVocabulary(t *testing.T) {
	t.Parallel()

	m := phonetic.New(nil)
	if _, ok := m.Match("metformin"); ok {
		t.Error("Match on empty vocabulary matched, want false")
	}
}

func TestMatcher_ExactMatchScoresOne(t *testing.T) {
	t.Parallel()

	m := phonetic.New(drugs)
	res, ok := m.Match("METFORMIN")
	if !ok || res.Term != "metformin" {
		t.Fatalf("Match(METFORMIN) = %+v, %v", res, ok)
	}
	if res.Score != 1 {
		t.Errorf("score = %f, want 1", res.Score)
	}
	if !res.Phonetic {
		t.Error("exact match should be phonetic")
	}
}

func TestMatcher_ThresholdOptions(t *testing.T) {
	t.Parallel()

	strict := phonetic.New(drugs, phonetic.WithPhoneticThreshold(0.99), phonetic.WithFuzzyThreshold(0.99))
	if res, ok := strict.Match("lisinoprill"); ok {
		t.Errorf("strict Match(lisinoprill) = %+v, want no match", res)
	}
}
