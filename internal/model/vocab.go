package model

import (
	"bufio"
	"fmt"
	"os"
)

// Sub-word boundary markers produced by the tokenizers this service
// understands. SentencePiece prefixes word-initial pieces with U+2581;
// WordPiece prefixes word-continuation pieces with "##".
const (
	SentencePieceMarker = "▁"
	WordPieceMarker     = "##"
)

// Vocabulary is the ordered token list of the model: line number in the
// vocab file (0-indexed) is the token id. Immutable after load.
type Vocabulary struct {
	tokens []string
}

// LoadVocabulary reads a newline-delimited token list.
func LoadVocabulary(path string) (*Vocabulary, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open vocabulary %s: %w", path, err)
	}
	defer f.Close()

	var tokens []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		tokens = append(tokens, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read vocabulary %s: %w", path, err)
	}

	if len(tokens) == 0 {
		return nil, fmt.Errorf("vocabulary %s is empty", path)
	}

	return &Vocabulary{tokens: tokens}, nil
}

// NewVocabulary wraps an in-memory token list. Used by tests and by
// callers that embed their vocabulary.
func NewVocabulary(tokens []string) *Vocabulary {
	return &Vocabulary{tokens: tokens}
}

// Size returns the number of tokens.
func (v *Vocabulary) Size() int {
	return len(v.tokens)
}

// Token returns the token string for an id, with bounds checking.
func (v *Vocabulary) Token(id int) (string, bool) {
	if id < 0 || id >= len(v.tokens) {
		return "", false
	}
	return v.tokens[id], true
}
