package mql

import (
	"fmt"
	"strings"

	"github.com/mongosql-engine/mongosql/mapping"
)

// SyntaxError reports command text that fails to parse as a structural
// document, with position info. It is distinct from unsupported-feature
// errors: the text is malformed, not merely untranslatable.
type SyntaxError struct {
	Message  string
	Position int
	Line     int
	Column   int
	Token    string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("syntax error at line %d, column %d: %s", e.Line, e.Column, e.Message)
}

func newSyntaxError(tok Token, message string) *SyntaxError {
	return &SyntaxError{
		Message:  message,
		Position: tok.Position,
		Line:     tok.Line,
		Column:   tok.Column,
		Token:    tok.Value,
	}
}

// SuggestCommand finds the closest known command word for an unknown
// top-level key, or "" when nothing is within two edits.
func SuggestCommand(unknown string) string {
	unknown = strings.ToLower(unknown)

	bestMatch := ""
	bestDistance := 999
	maxDistance := 2

	for _, cmd := range mapping.KnownCommands {
		dist := levenshtein(unknown, cmd)
		if dist < bestDistance && dist <= maxDistance {
			bestDistance = dist
			bestMatch = cmd
		}
	}

	return bestMatch
}

// levenshtein calculates edit distance between two strings
func levenshtein(a, b string) int {
	if len(a) == 0 {
		return len(b)
	}
	if len(b) == 0 {
		return len(a)
	}

	matrix := make([][]int, len(a)+1)
	for i := range matrix {
		matrix[i] = make([]int, len(b)+1)
		matrix[i][0] = i
	}
	for j := range matrix[0] {
		matrix[0][j] = j
	}

	for i := 1; i <= len(a); i++ {
		for j := 1; j <= len(b); j++ {
			cost := 1
			if a[i-1] == b[j-1] {
				cost = 0
			}
			matrix[i][j] = minOf(
				matrix[i-1][j]+1,      // deletion
				matrix[i][j-1]+1,      // insertion
				matrix[i-1][j-1]+cost, // substitution
			)
		}
	}

	return matrix[len(a)][len(b)]
}

func minOf(a, b, c int) int {
	if a < b {
		if a < c {
			return a
		}
		return c
	}
	if b < c {
		return b
	}
	return c
}
