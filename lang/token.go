package lang

import (
	"strconv"
	"time"
)

// Position identifies a location in document source.
type Position struct {
	Offset int // byte offset, 0-based
	Line   int // 1-based
	Column int // 1-based, in runes
}

func (p Position) String() string {
	return strconv.Itoa(p.Line) + ":" + strconv.Itoa(p.Column)
}

// TokenKind classifies a lexical token.
type TokenKind uint8

const (
	TokenEOF TokenKind = iota
	TokenLBrace
	TokenRBrace
	TokenLBracket
	TokenRBracket
	TokenColon
	TokenComma
	TokenIdent
	TokenInteger
	TokenFloat
	TokenString
	TokenDate
	TokenDateTime
	TokenDocstring
)

var tokenNames = [...]string{
	TokenEOF:       "end of input",
	TokenLBrace:    "'{'",
	TokenRBrace:    "'}'",
	TokenLBracket:  "'['",
	TokenRBracket:  "']'",
	TokenColon:     "':'",
	TokenComma:     "','",
	TokenIdent:     "identifier",
	TokenInteger:   "integer",
	TokenFloat:     "float",
	TokenString:    "string",
	TokenDate:      "date",
	TokenDateTime:  "datetime",
	TokenDocstring: "docstring",
}

func (k TokenKind) String() string {
	if int(k) < len(tokenNames) {
		return tokenNames[k]
	}

	return "TokenKind(" + strconv.Itoa(int(k)) + ")"
}

// StringStyle is the source form a string token was written in.
type StringStyle uint8

const (
	StyleEscaped       StringStyle = iota // "..."
	StyleLiteral                          // #"..."#
	StyleDedentEscaped                    // d"..."
	StyleDedentLiteral                    // d#"..."#
)

func (s StringStyle) dedented() bool {
	return s == StyleDedentEscaped || s == StyleDedentLiteral
}

// Token is a single lexical unit. Only the fields relevant to Kind are set.
type Token struct {
	Time   time.Time // TokenDate, TokenDateTime
	Text   string    // decoded content of identifiers, strings, docstrings
	Raw    string    // source text of the token
	Pos    Position  // first character
	End    Position  // just past the last character
	Int    int64
	Float  float64
	Hashes int // delimiter count of literal strings
	Kind   TokenKind
	Style  StringStyle
}
