package tokenizer

import (
	"strings"
	"unicode"
)

// DefaultStopWords is the stopword set used when none is configured.
var DefaultStopWords = []string{"the", "of", "to", "and", "a", "in", "is", "it"}

// Token is a word at its position in the token stream. Positions count every
// token, stopwords included.
type Token struct {
	Word     string
	Position int
}

type Tokenizer struct {
	stopWords map[string]bool
	stemmer   *Stemmer
}

type Option func(*Tokenizer)

// WithStemming reduces every word to its english snowball stem.
func WithStemming() Option {
	return func(t *Tokenizer) {
		t.stemmer = NewStemmer()
	}
}

func New(stopWords []string, opts ...Option) *Tokenizer {
	t := &Tokenizer{stopWords: make(map[string]bool, len(stopWords))}
	for _, word := range stopWords {
		t.stopWords[strings.ToLower(strings.TrimSpace(word))] = true
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Split lowercases text and splits it on runs of non-alphabetic characters.
func (t *Tokenizer) Split(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r)
	})
}

// Tokenize returns the indexable tokens of text. Stopwords are dropped but
// still advance the position counter.
func (t *Tokenizer) Tokenize(text string) []Token {
	words := t.Split(text)
	tokens := make([]Token, 0, len(words))
	for i, word := range words {
		if t.stopWords[word] {
			continue
		}
		tokens = append(tokens, Token{Word: t.stem(word), Position: i})
	}
	return tokens
}

// Words returns only the words of Tokenize, in order.
func (t *Tokenizer) Words(text string) []string {
	tokens := t.Tokenize(text)
	words := make([]string, len(tokens))
	for i, tok := range tokens {
		words[i] = tok.Word
	}
	return words
}

// Normalize maps a single query term onto the indexed vocabulary. It returns
// "" for stopwords.
func (t *Tokenizer) Normalize(term string) string {
	term = strings.ToLower(strings.TrimSpace(term))
	if term == "" || t.stopWords[term] {
		return ""
	}
	return t.stem(term)
}

func (t *Tokenizer) stem(word string) string {
	if t.stemmer == nil {
		return word
	}
	return t.stemmer.Stem(word)
}
