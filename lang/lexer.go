package lang

import (
	"log/slog"
	"strconv"
	"strings"
	"time"
	"unicode"
	"unicode/utf16"
	"unicode/utf8"
)

// lexer produces tokens from document source on demand.
type lexer struct {
	input []byte
	pos   int
	line  int
	col   int
}

func newLexer(src []byte) *lexer {
	l := &lexer{input: src, line: 1, col: 1}

	// A leading byte order mark is not part of the document.
	if strings.HasPrefix(string(src), "\ufeff") {
		l.pos = len("\ufeff")
	}

	return l
}

// next returns the next token, skipping whitespace and comments.
func (l *lexer) next() (Token, error) {
	if err := l.skipWhitespaceAndComments(); err != nil {
		return Token{}, err
	}

	start := l.position()

	if l.eof() {
		return Token{Kind: TokenEOF, Pos: start, End: start}, nil
	}

	tok, err := l.scan(start)
	if err != nil {
		return Token{}, err
	}

	tok.Pos = start
	tok.End = l.position()
	tok.Raw = string(l.input[start.Offset:l.pos])

	return tok, nil
}

func (l *lexer) scan(start Position) (Token, error) {
	ch := l.peek()

	switch {
	case ch == '/' && l.isDocstring():
		return l.scanDocstring(), nil

	case ch == '{', ch == '}', ch == '[', ch == ']', ch == ':', ch == ',':
		l.advance()

		return Token{Kind: punctuation[ch]}, nil

	case ch == '"':
		return l.scanEscaped(start, StyleEscaped)

	case ch == '#':
		return l.scanLiteral(start, StyleLiteral)

	case ch == 'd' && l.peekAt(1) == '"':
		l.advance()

		return l.scanEscaped(start, StyleDedentEscaped)

	case ch == 'd' && l.peekAt(1) == '#':
		l.advance()

		return l.scanLiteral(start, StyleDedentLiteral)

	case isKeyStart(ch):
		return l.scanIdent(), nil

	case ch == '-' || isDigit(ch):
		return l.scanNumber(start)
	}

	return Token{}, l.fail(
		ErrUnexpectedChar.With(slog.String("char", strconv.QuoteRune(ch))),
		start,
	)
}

var punctuation = map[rune]TokenKind{
	'{': TokenLBrace,
	'}': TokenRBrace,
	'[': TokenLBracket,
	']': TokenRBracket,
	':': TokenColon,
	',': TokenComma,
}

// isDocstring reports whether the input at the current position is exactly
// three slashes. Four or more begin an ordinary comment.
func (l *lexer) isDocstring() bool {
	return l.peekN(3) == "///" && l.peekAt(3) != '/'
}

func (l *lexer) scanDocstring() Token {
	l.advanceN(3)

	start := l.pos
	for !l.eof() && l.peek() != '\n' {
		l.advance()
	}

	text := strings.TrimRight(string(l.input[start:l.pos]), "\r")

	return Token{Kind: TokenDocstring, Text: text}
}

func (l *lexer) scanIdent() Token {
	start := l.pos

	l.advance()

	for !l.eof() && isKeyContinue(l.peek()) {
		l.advance()
	}

	return Token{Kind: TokenIdent, Text: string(l.input[start:l.pos])}
}

// scanEscaped scans a double-quoted string with escape sequences. The
// current position is the opening quote.
func (l *lexer) scanEscaped(start Position, style StringStyle) (Token, error) {
	l.advance() // skip '"'

	var buf strings.Builder

	for {
		if l.eof() {
			return Token{}, l.fail(ErrUnterminatedString, start)
		}

		switch l.peek() {
		case '"':
			l.advance()

			text := buf.String()
			if style.dedented() {
				text = DedentBlock(text)
			}

			return Token{Kind: TokenString, Text: text, Style: style}, nil

		case '\\':
			if err := l.scanEscape(&buf, start); err != nil {
				return Token{}, err
			}

		default:
			_, size := utf8.DecodeRune(l.input[l.pos:])
			buf.Write(l.input[l.pos : l.pos+size])
			l.advance()
		}
	}
}

var simpleEscapes = map[rune]byte{
	'r':  '\r',
	'n':  '\n',
	't':  '\t',
	'"':  '"',
	'\\': '\\',
	'/':  '/',
	'b':  '\b',
	'f':  '\f',
}

func (l *lexer) scanEscape(buf *strings.Builder, start Position) error {
	esc := l.position()

	l.advance() // skip '\'

	if l.eof() {
		return l.fail(ErrUnterminatedString, start)
	}

	ch := l.peek()
	if b, ok := simpleEscapes[ch]; ok {
		l.advance()
		buf.WriteByte(b)

		return nil
	}

	invalid := func() error {
		return l.fail(
			ErrInvalidEscape.With(slog.String("sequence", l.escapeText(esc))),
			esc,
		)
	}

	switch ch {
	case 'x':
		l.advance()

		n, ok := l.scanHex(2)
		if !ok || n > utf8.RuneSelf-1 {
			return invalid()
		}

		buf.WriteByte(byte(n))

		return nil

	case 'u':
		l.advance()

		n, ok := l.scanHex(4)
		if !ok {
			return invalid()
		}

		r := rune(n)
		if utf16.IsSurrogate(r) {
			if r >= 0xDC00 || l.peekN(2) != `\u` {
				return invalid()
			}

			l.advanceN(2)

			lo, ok := l.scanHex(4)
			if !ok {
				return invalid()
			}

			r = utf16.DecodeRune(r, rune(lo))
			if r == utf8.RuneError {
				return invalid()
			}
		}

		buf.WriteRune(r)

		return nil
	}

	return invalid()
}

// escapeText returns the escape sequence starting at pos, for error context.
func (l *lexer) escapeText(pos Position) string {
	end := min(pos.Offset+6, len(l.input))

	return string(l.input[pos.Offset:end])
}

// scanHex consumes exactly n hex digits.
func (l *lexer) scanHex(n int) (uint64, bool) {
	digits := l.peekN(n)
	if len(digits) != n {
		return 0, false
	}

	v, err := strconv.ParseUint(digits, 16, 32)
	if err != nil {
		return 0, false
	}

	l.advanceN(n)

	return v, true
}

// scanLiteral scans a literal string delimited by one or more '#' and a
// quote. The current position is the first '#'.
func (l *lexer) scanLiteral(start Position, style StringStyle) (Token, error) {
	hashes := l.countHashes(l.pos)
	l.advanceN(hashes)

	if l.peek() != '"' {
		return Token{}, l.fail(
			ErrUnexpectedChar.With(slog.String("expected", `"`)),
			l.position(),
		)
	}

	l.advance()

	content := l.pos

	for !l.eof() {
		if l.peek() != '"' {
			l.advance()

			continue
		}

		closing := l.countHashes(l.pos + 1)

		switch {
		case closing == hashes:
			text := string(l.input[content:l.pos])
			l.advanceN(1 + hashes)

			if style.dedented() {
				text = DedentBlock(text)
			}

			return Token{
				Kind:   TokenString,
				Text:   text,
				Style:  style,
				Hashes: hashes,
			}, nil

		case closing > hashes, l.pos+1+closing == len(l.input):
			return Token{}, l.fail(
				ErrDelimiterMismatch.With(
					slog.Int("open", hashes),
					slog.Int("close", closing),
				),
				l.position(),
			)
		}

		// A quote followed by fewer hashes than the opening is content.
		l.advanceN(1 + closing)
	}

	return Token{}, l.fail(ErrUnterminatedString, start)
}

func (l *lexer) countHashes(offset int) int {
	n := 0
	for offset+n < len(l.input) && l.input[offset+n] == '#' {
		n++
	}

	return n
}

// scanNumber scans an integer, float, date, or datetime.
func (l *lexer) scanNumber(start Position) (Token, error) {
	invalid := func() (Token, error) {
		return Token{}, l.fail(
			ErrInvalidNumber.With(
				slog.String("text", string(l.input[start.Offset:l.pos])),
			),
			start,
		)
	}

	signed := l.peek() == '-'
	if signed {
		l.advance()

		if !isDigit(l.peek()) {
			return invalid()
		}
	}

	// A run of digits immediately followed by '-' can only be a date.
	if !signed {
		if run := l.countDigits(l.pos); l.peekAt(run) == '-' {
			return l.scanDate(start)
		}
	}

	if l.peek() == '0' && (l.peekAt(1) == 'x' || l.peekAt(1) == 'X') {
		l.advanceN(2)

		digits := l.pos
		for isHexDigit(l.peek()) {
			l.advance()
		}

		if l.pos == digits {
			return invalid()
		}

		text := string(l.input[digits:l.pos])
		if signed {
			text = "-" + text
		}

		n, err := strconv.ParseInt(text, 16, 64)
		if err != nil {
			return invalid()
		}

		return Token{Kind: TokenInteger, Int: n}, nil
	}

	run := l.countDigits(l.pos)
	leadingZero := l.peek() == '0' && run > 1

	l.advanceN(run)

	isFloat := false

	if l.peek() == '.' {
		isFloat = true

		l.advance()

		if !isDigit(l.peek()) {
			return invalid()
		}

		l.advanceN(l.countDigits(l.pos))
	}

	if ch := l.peek(); ch == 'e' || ch == 'E' {
		isFloat = true

		l.advance()

		if ch := l.peek(); ch == '+' || ch == '-' {
			l.advance()
		}

		if !isDigit(l.peek()) {
			return invalid()
		}

		l.advanceN(l.countDigits(l.pos))
	}

	text := string(l.input[start.Offset:l.pos])

	if isFloat {
		f, err := strconv.ParseFloat(text, 64)
		if err != nil {
			return invalid()
		}

		return Token{Kind: TokenFloat, Float: f}, nil
	}

	base := 10
	if leadingZero {
		base = 8
	}

	n, err := strconv.ParseInt(text, base, 64)
	if err != nil {
		return invalid()
	}

	return Token{Kind: TokenInteger, Int: n}, nil
}

func (l *lexer) countDigits(offset int) int {
	n := 0
	for offset+n < len(l.input) && isDigit(rune(l.input[offset+n])) {
		n++
	}

	return n
}

// scanDate scans YYYY-MM-DD with an optional THH:MM:SS[.frac]zone suffix.
func (l *lexer) scanDate(start Position) (Token, error) {
	year, ok := l.scanFixedDigits(4)
	if !ok || isDigit(l.peek()) {
		return Token{}, l.fail(ErrMissingYear, start)
	}

	l.advance() // '-'

	month, ok := l.scanFixedDigits(2)
	if !ok {
		return Token{}, l.fail(ErrMissingMonth, l.position())
	}

	if l.peek() != '-' {
		return Token{}, l.fail(ErrMissingDay, l.position())
	}

	l.advance()

	day, ok := l.scanFixedDigits(2)
	if !ok {
		return Token{}, l.fail(ErrMissingDay, l.position())
	}

	if !validDate(year, month, day) {
		return Token{}, l.fail(
			ErrInvalidDate.With(
				slog.String("text", string(l.input[start.Offset:l.pos])),
			),
			start,
		)
	}

	if l.peek() != 'T' {
		t := time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)

		return Token{Kind: TokenDate, Time: t}, nil
	}

	l.advance()

	t, ok := l.scanClock(year, month, day)
	if !ok {
		// Consume the rest of the word so the error shows what was read.
		for isDateChar(l.peek()) {
			l.advance()
		}

		return Token{}, l.fail(
			ErrInvalidDateTime.With(
				slog.String("text", string(l.input[start.Offset:l.pos])),
			),
			start,
		)
	}

	return Token{Kind: TokenDateTime, Time: t}, nil
}

// scanClock scans HH:MM:SS[.frac](Z|+HHMM|+HH:MM) following the 'T'.
func (l *lexer) scanClock(year, month, day int) (time.Time, bool) {
	hour, ok := l.scanFixedDigits(2)
	if !ok || hour > 23 || l.peek() != ':' {
		return time.Time{}, false
	}

	l.advance()

	minute, ok := l.scanFixedDigits(2)
	if !ok || minute > 59 || l.peek() != ':' {
		return time.Time{}, false
	}

	l.advance()

	second, ok := l.scanFixedDigits(2)
	if !ok || second > 59 {
		return time.Time{}, false
	}

	nsec := 0

	if l.peek() == '.' {
		l.advance()

		run := l.countDigits(l.pos)
		if run == 0 || run > 9 {
			return time.Time{}, false
		}

		frac := string(l.input[l.pos:l.pos+run]) + strings.Repeat("0", 9-run)
		nsec, _ = strconv.Atoi(frac)

		l.advanceN(run)
	}

	var loc *time.Location

	switch l.peek() {
	case 'Z':
		l.advance()

		loc = time.UTC

	case '+', '-':
		sign := 1
		if l.peek() == '-' {
			sign = -1
		}

		l.advance()

		oh, ok := l.scanFixedDigits(2)
		if !ok || oh > 23 {
			return time.Time{}, false
		}

		if l.peek() == ':' {
			l.advance()
		}

		om, ok := l.scanFixedDigits(2)
		if !ok || om > 59 {
			return time.Time{}, false
		}

		loc = time.FixedZone("", sign*(oh*3600+om*60))

	default:
		return time.Time{}, false
	}

	if isDateChar(l.peek()) {
		return time.Time{}, false
	}

	return time.Date(
		year, time.Month(month), day, hour, minute, second, nsec, loc,
	), true
}

// scanFixedDigits consumes exactly n digits and returns their value.
func (l *lexer) scanFixedDigits(n int) (int, bool) {
	if l.countDigits(l.pos) < n {
		return 0, false
	}

	v, err := strconv.Atoi(string(l.input[l.pos : l.pos+n]))
	if err != nil {
		return 0, false
	}

	l.advanceN(n)

	return v, true
}

func validDate(year, month, day int) bool {
	if month < 1 || month > 12 || day < 1 {
		return false
	}

	t := time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)

	return t.Year() == year && int(t.Month()) == month && t.Day() == day
}

// Helper methods

func (l *lexer) peek() rune {
	if l.eof() {
		return 0
	}

	r, _ := utf8.DecodeRune(l.input[l.pos:])

	return r
}

// peekAt returns the byte n bytes ahead of the current position, or 0.
func (l *lexer) peekAt(n int) rune {
	if l.pos+n >= len(l.input) {
		return 0
	}

	return rune(l.input[l.pos+n])
}

func (l *lexer) peekN(n int) string {
	if l.pos+n > len(l.input) {
		return string(l.input[l.pos:])
	}

	return string(l.input[l.pos : l.pos+n])
}

func (l *lexer) advance() {
	if l.eof() {
		return
	}

	r, size := utf8.DecodeRune(l.input[l.pos:])

	l.pos += size
	if r == '\n' {
		l.line++
		l.col = 1
	} else {
		l.col++
	}
}

func (l *lexer) advanceN(n int) {
	for range n {
		l.advance()
	}
}

func (l *lexer) eof() bool {
	return l.pos >= len(l.input)
}

func (l *lexer) position() Position {
	return Position{
		Offset: l.pos,
		Line:   l.line,
		Column: l.col,
	}
}

func (l *lexer) fail(err *Error, pos Position) error {
	return newParseError(StageLex, err, pos)
}

func (l *lexer) skipWhitespaceAndComments() error {
	for {
		for !l.eof() && unicode.IsSpace(l.peek()) {
			l.advance()
		}

		if l.eof() || l.peek() != '/' {
			return nil
		}

		switch {
		case l.isDocstring():
			return nil

		case l.peekN(2) == "//":
			for !l.eof() && l.peek() != '\n' {
				l.advance()
			}

		case l.peekN(2) == "/*":
			// Block comments do not nest: the first "*/" closes.
			start := l.position()

			l.advanceN(2)

			for !l.eof() && l.peekN(2) != "*/" {
				l.advance()
			}

			if l.eof() {
				return l.fail(ErrUnterminatedBlock, start)
			}

			l.advanceN(2)

		default:
			return nil
		}
	}
}

// Character classification

func isDigit(r rune) bool { return '0' <= r && r <= '9' }

func isHexDigit(r rune) bool {
	return isDigit(r) || ('a' <= r && r <= 'f') || ('A' <= r && r <= 'F')
}

func isKeyStart(r rune) bool {
	return ('a' <= r && r <= 'z') || ('A' <= r && r <= 'Z')
}

func isKeyContinue(r rune) bool {
	return isKeyStart(r) || isDigit(r) || r == '_' || r == '-'
}

func isDateChar(r rune) bool {
	return isKeyContinue(r) || r == ':' || r == '.' || r == '+'
}

// IsIdentifier reports whether s can be written as a bare property key.
func IsIdentifier(s string) bool {
	if s == "" || !isKeyStart(rune(s[0])) {
		return false
	}

	for _, r := range s[1:] {
		if !isKeyContinue(r) {
			return false
		}
	}

	return true
}
