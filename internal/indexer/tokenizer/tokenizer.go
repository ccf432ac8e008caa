// Package tokenizer splits document and query text into upper-cased terms.
//
// A term is a maximal run of numeric runes, a maximal run of letters and
// digits starting with a letter, or any other single non-space rune.
// Whitespace only separates terms and is never part of one.
package tokenizer

import (
	"iter"
	"strings"
	"unicode"
)

// Lexer walks a rune slice and yields one term at a time. It does not copy
// or modify the slice. A Lexer is forward-only and not safe for concurrent
// use.
type Lexer struct {
	content []rune
	pos     int
}

// NewLexer returns a Lexer positioned at the start of content.
func NewLexer(content []rune) *Lexer {
	return &Lexer{content: content}
}

// NextToken returns the next upper-cased term, or false when only whitespace
// (or nothing) remains.
func (l *Lexer) NextToken() (string, bool) {
	for l.pos < len(l.content) && unicode.IsSpace(l.content[l.pos]) {
		l.pos++
	}
	if l.pos >= len(l.content) {
		return "", false
	}

	start := l.pos
	switch r := l.content[l.pos]; {
	case unicode.IsNumber(r):
		l.chopWhile(unicode.IsNumber)
	case isAlphabetic(r):
		l.chopWhile(isAlphanumeric)
	default:
		l.pos++
	}
	return strings.ToUpper(string(l.content[start:l.pos])), true
}

// All returns the remaining terms as a sequence. Ranging over it advances
// the Lexer.
func (l *Lexer) All() iter.Seq[string] {
	return func(yield func(string) bool) {
		for {
			tok, ok := l.NextToken()
			if !ok || !yield(tok) {
				return
			}
		}
	}
}

func (l *Lexer) chopWhile(pred func(rune) bool) {
	for l.pos < len(l.content) && pred(l.content[l.pos]) {
		l.pos++
	}
}

// isAlphabetic matches the Unicode Alphabetic property: letters, letter
// numbers and the Other_Alphabetic marks (Indic vowel signs, circled letters).
func isAlphabetic(r rune) bool {
	return unicode.IsLetter(r) || unicode.In(r, unicode.Nl, unicode.Other_Alphabetic)
}

func isAlphanumeric(r rune) bool {
	return isAlphabetic(r) || unicode.IsNumber(r)
}

// Tokenize returns every term of text in order.
func Tokenize(text string) []string {
	var terms []string
	for t := range NewLexer([]rune(text)).All() {
		terms = append(terms, t)
	}
	return terms
}
