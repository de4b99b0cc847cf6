package scheduling

import (
	"strings"

	"github.com/wolfman30/clinic-scheduling-assistant/internal/textnorm"
)

var honorifics = map[string]bool{
	"dr": true, "dra": true, "doctor": true, "doutor": true, "doutora": true,
	"prof": true, "professor": true, "professora": true,
}

// minStemLength is the shared prefix needed to treat "cardiologist" and
// "cardiologia" as the same specialty.
const minStemLength = 6

func nameTokens(s string) []string {
	tokens := textnorm.Tokens(s)
	out := tokens[:0]
	for _, t := range tokens {
		if honorifics[t] {
			continue
		}
		out = append(out, t)
	}
	return out
}

type matchRank int

const (
	rankNone matchRank = iota
	rankOverlap
	rankSubstring
	rankExact
)

func rankNames(query, candidate []string, stems bool) matchRank {
	if len(query) == 0 || len(candidate) == 0 {
		return rankNone
	}
	q := " " + strings.Join(query, " ") + " "
	c := " " + strings.Join(candidate, " ") + " "
	switch {
	case q == c:
		return rankExact
	case strings.Contains(c, q) || strings.Contains(q, c):
		return rankSubstring
	}
	for _, qt := range query {
		for _, ct := range candidate {
			if len(qt) < 3 || len(ct) < 3 {
				continue
			}
			if qt == ct {
				return rankOverlap
			}
			if stems && commonPrefix(qt, ct) >= minStemLength {
				return rankOverlap
			}
		}
	}
	return rankNone
}

func commonPrefix(a, b string) int {
	n := 0
	for n < len(a) && n < len(b) && a[n] == b[n] {
		n++
	}
	return n
}

// MatchProfessional finds the professional the patient meant. Matching is
// case and accent insensitive, ignores honorifics and accepts a substring in
// either direction (on word boundaries) or a shared name token. The strongest match wins; ties go
// to roster order.
func MatchProfessional(name string, pros []Professional) (Professional, bool) {
	query := nameTokens(name)
	best, bestRank := Professional{}, rankNone
	for _, p := range pros {
		r := rankNames(query, nameTokens(p.Name), false)
		if r > bestRank {
			best, bestRank = p, r
		}
	}
	return best, bestRank != rankNone
}

// MatchSpecialty finds the specialty the patient meant. Besides the
// professional rules it accepts word stems, so "dermatologist" matches
// "Dermatologia".
func MatchSpecialty(name string, specs []Specialty) (Specialty, bool) {
	query := textnorm.Tokens(name)
	best, bestRank := Specialty{}, rankNone
	for _, s := range specs {
		r := rankNames(query, textnorm.Tokens(s.Name), true)
		if r > bestRank {
			best, bestRank = s, r
		}
	}
	return best, bestRank != rankNone
}
