package usecase

import (
	"testing"
)

func TestNormalizeQuestion(t *testing.T) {
	testCases := []struct {
		name string
		text string
		want string
	}{
		{
			name: "sorts tokens and drops filler",
			text: "Quelle est la différence entre vitamine D3 et magnésium ?",
			want: "d3 difference magnesium vitamine",
		},
		{
			name: "drops greetings",
			text: "Bonjour, je voudrais savoir si le collagène marche. Merci !",
			want: "collagene marche",
		},
		{
			name: "splits elided articles",
			text: "C'est quoi l'huile d'onagre ?",
			want: "huile onagre",
		},
		{
			name: "handles english questions",
			text: "Hi! What is the best protein for muscle gain?",
			want: "best gain muscle protein",
		},
		{
			name: "keeps digits",
			text: "Omega-3 1000mg",
			want: "1000mg omega",
		},
		{
			name: "empty input",
			text: "",
			want: "",
		},
		{
			name: "only filler",
			text: "Bonjour, merci !",
			want: "",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got := NormalizeQuestion(tc.text)
			if got != tc.want {
				t.Errorf("NormalizeQuestion(%q) = %q, want %q", tc.text, got, tc.want)
			}
		})
	}
}

func TestNormalizeQuestion_Idempotent(t *testing.T) {
	inputs := []string{
		"Quelle est la différence entre vitamine D3 et magnésium ?",
		"C'est quoi l'huile d'onagre ?",
		"Which is better: zinc or magnesium?",
		"  Œmega   3 ,, pour le cœur  ",
	}

	for _, in := range inputs {
		once := NormalizeQuestion(in)
		twice := NormalizeQuestion(once)
		if once != twice {
			t.Errorf("NormalizeQuestion not idempotent for %q: %q then %q", in, once, twice)
		}
	}
}

func TestNormalizeQuestion_OrderAndFillerIndependent(t *testing.T) {
	a := NormalizeQuestion("quelle difference entre vitamine d et magnesium")
	b := NormalizeQuestion("magnesium et vitamine d quelle difference")

	if a != b {
		t.Errorf("paraphrases normalized differently: %q vs %q", a, b)
	}
	if a != "difference magnesium vitamine" {
		t.Errorf("NormalizeQuestion = %q, want %q", a, "difference magnesium vitamine")
	}
}
