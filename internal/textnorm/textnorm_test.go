package textnorm

import "testing"

func TestFold(t *testing.T) {
	tests := map[string]string{
		"  Amanhã de MANHÃ! ":  "amanha de manha",
		"Dra. Conceição":        "dra conceicao",
		"14:30, por favor":      "14:30 por favor",
		"dia 05/07/2025":        "dia 05/07/2025",
		"\tmultiple\n\nspaces": "multiple spaces",
	}
	for in, want := range tests {
		if got := Fold(in); got != want {
			t.Errorf("Fold(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestContainsPhraseRespectsWordBoundaries(t *testing.T) {
	if ContainsPhrase("I don't know", "no") {
		t.Fatal("expected no match inside another word")
	}
	if !ContainsPhrase("No, at 3pm", "no") {
		t.Fatal("expected leading word match")
	}
	if !ContainsPhrase("any date is fine", "any date") {
		t.Fatal("expected multi word phrase match")
	}
	if !ContainsPhrase("pode ser às 10", "as") {
		t.Fatal("expected accent folded match")
	}
	if ContainsPhrase("", "no") || ContainsPhrase("no", "") {
		t.Fatal("expected empty inputs to never match")
	}
}

func TestContainsAnyAndHasDigit(t *testing.T) {
	if !ContainsAny("sure, sounds good", []string{"yes", "sounds good"}) {
		t.Fatal("expected phrase list match")
	}
	if ContainsAny("maybe", []string{"yes", "no"}) {
		t.Fatal("expected no match")
	}
	if !HasDigit("at 3pm") || HasDigit("three") {
		t.Fatal("unexpected digit detection")
	}
}
