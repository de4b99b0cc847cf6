package confirmation

import (
	_ "embed"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/wolfman30/clinic-scheduling-assistant/internal/booking"
)

//go:embed lexicon.yaml
var defaultLexiconYAML []byte

// Lexicon holds the word lists behind the deterministic classifier.
type Lexicon struct {
	Affirmative []string                    `yaml:"affirmative"`
	Negative    []string                    `yaml:"negative"`
	Uncertainty []string                    `yaml:"uncertainty"`
	Fields      map[booking.FieldID][]string `yaml:"fields"`
}

// DefaultLexicon returns the embedded lexicon.
func DefaultLexicon() *Lexicon {
	lex, err := ParseLexicon(defaultLexiconYAML)
	if err != nil {
		panic(fmt.Sprintf("confirmation: embedded lexicon: %v", err))
	}
	return lex
}

// ParseLexicon decodes a YAML lexicon.
func ParseLexicon(data []byte) (*Lexicon, error) {
	var lex Lexicon
	if err := yaml.Unmarshal(data, &lex); err != nil {
		return nil, fmt.Errorf("confirmation: parse lexicon: %w", err)
	}
	if len(lex.Affirmative) == 0 || len(lex.Negative) == 0 {
		return nil, fmt.Errorf("confirmation: lexicon needs affirmative and negative entries")
	}
	return &lex, nil
}

// LoadLexicon reads a lexicon file, or returns the embedded one when path is empty.
func LoadLexicon(path string) (*Lexicon, error) {
	if path == "" {
		return DefaultLexicon(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("confirmation: read lexicon: %w", err)
	}
	return ParseLexicon(data)
}
