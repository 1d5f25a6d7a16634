package mql

import (
	"fmt"
	"strings"
	"unicode"
)

// TokenType represents the category of a token
type TokenType int

const (
	TOKEN_UNKNOWN     TokenType = iota
	TOKEN_LBRACE                // {
	TOKEN_RBRACE                // }
	TOKEN_LBRACKET              // [
	TOKEN_RBRACKET              // ]
	TOKEN_COLON                 // :
	TOKEN_COMMA                 // ,
	TOKEN_STRING                // 'abc', "abc"
	TOKEN_NUMBER                // 25, -3.14, 1e9
	TOKEN_WORD                  // bare words: $eq, true, null, title
	TOKEN_PLACEHOLDER           // ?
	TOKEN_EOF                   // End of input
)

// String returns human-readable token type name
func (t TokenType) String() string {
	names := []string{
		"UNKNOWN", "LBRACE", "RBRACE", "LBRACKET", "RBRACKET",
		"COLON", "COMMA", "STRING", "NUMBER", "WORD", "PLACEHOLDER", "EOF",
	}
	if int(t) < len(names) {
		return names[t]
	}
	return "UNKNOWN"
}

// Token represents a single token with position info
type Token struct {
	Type     TokenType
	Value    string
	Position int // Character position in input
	Line     int // Line number (1-indexed)
	Column   int // Column number (1-indexed)
}

// Tokenizer converts command text to tokens
type Tokenizer struct {
	input  string
	pos    int
	line   int
	column int
	tokens []Token
}

// Tokenize converts extended-JSON command text to tokens. The grammar
// is JSON with two extensions: unquoted bare words (keys, operator
// names, keywords) and the '?' placeholder token.
func Tokenize(input string) ([]Token, error) {
	t := &Tokenizer{
		input:  input,
		pos:    0,
		line:   1,
		column: 1,
	}
	return t.tokenize()
}

func (t *Tokenizer) tokenize() ([]Token, error) {
	for t.pos < len(t.input) {
		if t.skipWhitespace() {
			continue
		}

		ch := t.input[t.pos]

		// Structural punctuation
		switch ch {
		case '{':
			t.addToken(TOKEN_LBRACE, "{")
			t.advance()
			continue
		case '}':
			t.addToken(TOKEN_RBRACE, "}")
			t.advance()
			continue
		case '[':
			t.addToken(TOKEN_LBRACKET, "[")
			t.advance()
			continue
		case ']':
			t.addToken(TOKEN_RBRACKET, "]")
			t.advance()
			continue
		case ':':
			t.addToken(TOKEN_COLON, ":")
			t.advance()
			continue
		case ',':
			t.addToken(TOKEN_COMMA, ",")
			t.advance()
			continue
		case '?':
			t.addToken(TOKEN_PLACEHOLDER, "?")
			t.advance()
			continue
		case '\'', '"':
			token, err := t.scanString(ch)
			if err != nil {
				return nil, err
			}
			t.tokens = append(t.tokens, token)
			continue
		}

		// Bare words: keys, operators ($eq), keywords (true, null)
		if unicode.IsLetter(rune(ch)) || ch == '_' || ch == '$' {
			t.tokens = append(t.tokens, t.scanWord())
			continue
		}

		if unicode.IsDigit(rune(ch)) || (ch == '-' && t.peekDigit()) {
			t.tokens = append(t.tokens, t.scanNumber())
			continue
		}

		return nil, &SyntaxError{
			Message:  fmt.Sprintf("unexpected character '%c'", ch),
			Position: t.pos,
			Line:     t.line,
			Column:   t.column,
		}
	}

	t.addToken(TOKEN_EOF, "")

	return t.tokens, nil
}

func (t *Tokenizer) skipWhitespace() bool {
	skipped := false
	for t.pos < len(t.input) {
		ch := t.input[t.pos]
		if ch == ' ' || ch == '\t' {
			t.column++
			t.pos++
			skipped = true
		} else if ch == '\n' {
			t.line++
			t.column = 1
			t.pos++
			skipped = true
		} else if ch == '\r' {
			t.pos++
			skipped = true
		} else {
			break
		}
	}
	return skipped
}

func (t *Tokenizer) advance() {
	t.pos++
	t.column++
}

func (t *Tokenizer) peekDigit() bool {
	if t.pos+1 < len(t.input) {
		return unicode.IsDigit(rune(t.input[t.pos+1]))
	}
	return false
}

func (t *Tokenizer) addToken(tokenType TokenType, value string) {
	t.tokens = append(t.tokens, Token{
		Type:     tokenType,
		Value:    value,
		Position: t.pos,
		Line:     t.line,
		Column:   t.column,
	})
}

func (t *Tokenizer) scanString(quote byte) (Token, error) {
	startPos := t.pos
	startLine := t.line
	startCol := t.column

	t.advance() // Skip opening quote

	var value strings.Builder
	for t.pos < len(t.input) {
		ch := t.input[t.pos]

		if ch == '\\' && t.pos+1 < len(t.input) {
			// Escape sequence
			t.advance()
			switch t.input[t.pos] {
			case 'n':
				value.WriteByte('\n')
			case 't':
				value.WriteByte('\t')
			case 'r':
				value.WriteByte('\r')
			case '\\':
				value.WriteByte('\\')
			case '\'':
				value.WriteByte('\'')
			case '"':
				value.WriteByte('"')
			case '/':
				value.WriteByte('/')
			default:
				value.WriteByte(t.input[t.pos])
			}
			t.advance()
			continue
		}

		if ch == quote {
			t.advance() // Skip closing quote
			return Token{
				Type:     TOKEN_STRING,
				Value:    value.String(),
				Position: startPos,
				Line:     startLine,
				Column:   startCol,
			}, nil
		}

		if ch == '\n' {
			t.line++
			t.column = 0
		}
		value.WriteByte(ch)
		t.advance()
	}

	return Token{}, &SyntaxError{
		Message:  fmt.Sprintf("unclosed string, expected %c", quote),
		Position: startPos,
		Line:     startLine,
		Column:   startCol,
	}
}

func (t *Tokenizer) scanNumber() Token {
	startPos := t.pos
	startCol := t.column

	var value strings.Builder

	if t.input[t.pos] == '-' {
		value.WriteByte('-')
		t.advance()
	}

	// Integer part
	for t.pos < len(t.input) && unicode.IsDigit(rune(t.input[t.pos])) {
		value.WriteByte(t.input[t.pos])
		t.advance()
	}

	// Decimal part
	if t.pos < len(t.input) && t.input[t.pos] == '.' {
		value.WriteByte('.')
		t.advance()
		for t.pos < len(t.input) && unicode.IsDigit(rune(t.input[t.pos])) {
			value.WriteByte(t.input[t.pos])
			t.advance()
		}
	}

	// Exponent part
	if t.pos < len(t.input) && (t.input[t.pos] == 'e' || t.input[t.pos] == 'E') {
		value.WriteByte(t.input[t.pos])
		t.advance()
		if t.pos < len(t.input) && (t.input[t.pos] == '+' || t.input[t.pos] == '-') {
			value.WriteByte(t.input[t.pos])
			t.advance()
		}
		for t.pos < len(t.input) && unicode.IsDigit(rune(t.input[t.pos])) {
			value.WriteByte(t.input[t.pos])
			t.advance()
		}
	}

	return Token{
		Type:     TOKEN_NUMBER,
		Value:    value.String(),
		Position: startPos,
		Line:     t.line,
		Column:   startCol,
	}
}

func (t *Tokenizer) scanWord() Token {
	startPos := t.pos
	startCol := t.column

	var value strings.Builder
	for t.pos < len(t.input) {
		ch := t.input[t.pos]
		if unicode.IsLetter(rune(ch)) || unicode.IsDigit(rune(ch)) || ch == '_' || ch == '$' || ch == '.' {
			value.WriteByte(ch)
			t.advance()
		} else {
			break
		}
	}

	return Token{
		Type:     TOKEN_WORD,
		Value:    value.String(),
		Position: startPos,
		Line:     t.line,
		Column:   startCol,
	}
}
