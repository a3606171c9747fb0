package tokenize_test

import (
	"slices"
	"testing"

	"github.com/JaimeStill/covenant/pkg/tokenize"
)

func TestWords(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  []string
	}{
		{"empty", "", nil},
		{"punctuation only", "?!.,;", nil},
		{"lowercases and strips", "Either Party MAY terminate!", []string{"either", "party", "may", "terminate"}},
		{"keeps numbers", "90 days' notice", []string{"90", "days", "notice"}},
		{"drops possessive", "the Supplier's fees", []string{"the", "supplier", "fees"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tokenize.Words(tt.input)
			if !slices.Equal(got, tt.want) {
				t.Errorf("Words(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestStem(t *testing.T) {
	groups := [][]string{
		{"terminate", "terminated", "termination", "terminating", "terminates"},
		{"notice", "notices", "noticed"},
		{"agreement", "agreements"},
		{"party", "parties"},
		{"day", "days"},
	}

	for _, group := range groups {
		want := tokenize.Stem(group[0])
		for _, w := range group[1:] {
			if got := tokenize.Stem(w); got != want {
				t.Errorf("Stem(%q) = %q, want %q (stem of %q)", w, got, want, group[0])
			}
		}
	}

	unchanged := []string{"90", "fee", "process", "business"}
	for _, w := range unchanged {
		if got := tokenize.Stem(w); got != w {
			t.Errorf("Stem(%q) = %q, want unchanged", w, got)
		}
	}
}

func TestQueryTerms(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  []string
	}{
		{"empty", "   ", nil},
		{"punctuation", "???", nil},
		{"drops stopwords", "What is the termination notice period?", []string{"termin", "notic", "period"}},
		{"dedupes", "notice notices", []string{"notic"}},
		{"all stopwords fall back", "what is the", []string{"what", "is", "the"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tokenize.QueryTerms(tt.input)
			if !slices.Equal(got, tt.want) {
				t.Errorf("QueryTerms(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestOverlap(t *testing.T) {
	tests := []struct {
		name string
		a, b string
		want float64
	}{
		{"identical", "fees are due monthly", "fees are due monthly", 1},
		{"subset", "fees due", "fees due monthly upon invoice", 1},
		{"disjoint", "termination notice", "governing law", 0},
		{"half", "alpha beta", "alpha gamma", 0.5},
		{"one empty", "", "alpha", 0},
		{"both empty", "", "", 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tokenize.Overlap(tokenize.Set(tt.a), tokenize.Set(tt.b))
			if got != tt.want {
				t.Errorf("Overlap(%q, %q) = %v, want %v", tt.a, tt.b, got, tt.want)
			}
		})
	}
}

func TestSentences(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  []string
	}{
		{
			name:  "simple",
			input: "First sentence. Second one! Third?",
			want:  []string{"First sentence.", "Second one!", "Third?"},
		},
		{
			name:  "abbreviations",
			input: "Acme Inc. agrees to pay. Payment is due.",
			want:  []string{"Acme Inc. agrees to pay.", "Payment is due."},
		},
		{
			name:  "decimal numbers",
			input: "Rate is 1.5 percent. Done.",
			want:  []string{"Rate is 1.5 percent.", "Done."},
		},
		{
			name:  "paragraph break",
			input: "ARTICLE 1\n\nThe term begins today.",
			want:  []string{"ARTICLE 1", "The term begins today."},
		},
		{
			name:  "ascii closing quote",
			input: `He said "stop." Then he left.`,
			want:  []string{`He said "stop."`, "Then he left."},
		},
		{
			name:  "curly closing quotes",
			input: "Notice is “written.” Delivery is ‘effective.’ Done.",
			want:  []string{"Notice is “written.”", "Delivery is ‘effective.’", "Done."},
		},
		{
			name:  "closing bracket",
			input: "Fees apply (see Section 4.) Payment follows.",
			want:  []string{"Fees apply (see Section 4.)", "Payment follows."},
		},
		{
			name:  "no terminator",
			input: "trailing text without end",
			want:  []string{"trailing text without end"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tokenize.Sentences(tt.input)
			if !slices.Equal(got, tt.want) {
				t.Errorf("Sentences(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}
