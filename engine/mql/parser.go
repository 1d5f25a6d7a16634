package mql

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Parser implements a recursive descent parser over the token stream.
type Parser struct {
	tokens []Token
	pos    int
}

// Parse is the package-level entry point. It parses one command
// document of extended-JSON text. Placeholder tokens are rewritten to
// the BSON undefined sentinel, so the resulting tree carries an
// explicit marker at every bound-parameter position.
func Parse(input string) (bson.D, error) {
	p, err := New(input)
	if err != nil {
		return nil, err
	}

	doc, err := p.ParseDocument()
	if err != nil {
		return nil, err
	}

	if !p.isAtEnd() {
		tok := p.current()
		return nil, newSyntaxError(tok, fmt.Sprintf("unexpected '%s' after command document", tok.Value))
	}

	return doc, nil
}

// New creates a new parser from command text
func New(input string) (*Parser, error) {
	tokens, err := Tokenize(input)
	if err != nil {
		return nil, err
	}
	return &Parser{
		tokens: tokens,
		pos:    0,
	}, nil
}

// =============================================================================
// TOKEN NAVIGATION
// =============================================================================

func (p *Parser) current() Token {
	if p.pos >= len(p.tokens) {
		return Token{Type: TOKEN_EOF}
	}
	return p.tokens[p.pos]
}

func (p *Parser) advance() Token {
	tok := p.current()
	if p.pos < len(p.tokens) {
		p.pos++
	}
	return tok
}

func (p *Parser) isAtEnd() bool {
	return p.current().Type == TOKEN_EOF
}

func (p *Parser) expect(tokenType TokenType, what string) (Token, error) {
	tok := p.current()
	if tok.Type != tokenType {
		return Token{}, newSyntaxError(tok, fmt.Sprintf("expected %s, got '%s'", what, tok.Value))
	}
	return p.advance(), nil
}

// =============================================================================
// GRAMMAR
// =============================================================================

// ParseDocument parses { key: value, ... } into an ordered document.
func (p *Parser) ParseDocument() (bson.D, error) {
	if _, err := p.expect(TOKEN_LBRACE, "'{'"); err != nil {
		return nil, err
	}

	doc := bson.D{}

	if p.current().Type == TOKEN_RBRACE {
		p.advance()
		return doc, nil
	}

	for {
		key, err := p.parseKey()
		if err != nil {
			return nil, err
		}

		if _, err := p.expect(TOKEN_COLON, "':'"); err != nil {
			return nil, err
		}

		value, err := p.parseValue()
		if err != nil {
			return nil, err
		}

		doc = append(doc, bson.E{Key: key, Value: value})

		if p.current().Type == TOKEN_COMMA {
			p.advance()
			continue
		}
		break
	}

	if _, err := p.expect(TOKEN_RBRACE, "'}' or ','"); err != nil {
		return nil, err
	}

	return doc, nil
}

// parseKey accepts quoted strings and bare words as document keys.
func (p *Parser) parseKey() (string, error) {
	tok := p.current()
	switch tok.Type {
	case TOKEN_STRING, TOKEN_WORD:
		p.advance()
		return tok.Value, nil
	default:
		return "", newSyntaxError(tok, fmt.Sprintf("expected document key, got '%s'", tok.Value))
	}
}

func (p *Parser) parseValue() (any, error) {
	tok := p.current()

	switch tok.Type {
	case TOKEN_LBRACE:
		return p.ParseDocument()
	case TOKEN_LBRACKET:
		return p.parseArray()
	case TOKEN_STRING:
		p.advance()
		return tok.Value, nil
	case TOKEN_NUMBER:
		p.advance()
		return parseNumber(tok)
	case TOKEN_PLACEHOLDER:
		p.advance()
		return primitive.Undefined{}, nil
	case TOKEN_WORD:
		p.advance()
		return parseWordValue(tok.Value), nil
	default:
		return nil, newSyntaxError(tok, fmt.Sprintf("expected value, got '%s'", tok.Value))
	}
}

func (p *Parser) parseArray() (bson.A, error) {
	if _, err := p.expect(TOKEN_LBRACKET, "'['"); err != nil {
		return nil, err
	}

	arr := bson.A{}

	if p.current().Type == TOKEN_RBRACKET {
		p.advance()
		return arr, nil
	}

	for {
		value, err := p.parseValue()
		if err != nil {
			return nil, err
		}
		arr = append(arr, value)

		if p.current().Type == TOKEN_COMMA {
			p.advance()
			continue
		}
		break
	}

	if _, err := p.expect(TOKEN_RBRACKET, "']' or ','"); err != nil {
		return nil, err
	}

	return arr, nil
}

// parseNumber picks the narrowest BSON numeric type that holds the
// literal: int32, then int64, then double.
func parseNumber(tok Token) (any, error) {
	if !strings.ContainsAny(tok.Value, ".eE") {
		n, err := strconv.ParseInt(tok.Value, 10, 64)
		if err == nil {
			if n >= math.MinInt32 && n <= math.MaxInt32 {
				return int32(n), nil
			}
			return n, nil
		}
		// Out of int64 range, fall through to double
	}

	f, err := strconv.ParseFloat(tok.Value, 64)
	if err != nil {
		return nil, newSyntaxError(tok, fmt.Sprintf("invalid number '%s'", tok.Value))
	}
	return f, nil
}

// parseWordValue maps bare-word keywords to their values; any other
// bare word in value position reads as a string.
func parseWordValue(word string) any {
	switch word {
	case "true":
		return true
	case "false":
		return false
	case "null":
		return primitive.Null{}
	case "NaN":
		return math.NaN()
	case "Infinity":
		return math.Inf(1)
	default:
		return word
	}
}
