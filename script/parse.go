package script

//go:generate go tool stringer --linecomment --type Shape --output shape_string.go

import (
	"log/slog"
	"strings"

	"github.com/ardnew/folio/lang"
)

// Shape classifies a definition by its parameter list. It decides how the
// pipeline invokes a hook and never changes after a script is loaded.
type Shape uint8

const (
	ShapeConst      Shape = iota // const
	ShapeItem                    // item
	ShapeCollection              // collection
	ShapeFunc                    // func
)

// Definition is one entry of a view script:
//
//	name [param ...] : expression
//	name ...param    : expression
type Definition struct {
	Name     string
	Params   []string
	Source   string // expression text, comments removed
	Line     int
	Variadic bool // the last parameter collects all remaining arguments
}

// Shape reports how the definition is invoked.
func (d Definition) Shape() Shape {
	switch {
	case len(d.Params) == 0:
		return ShapeConst
	case len(d.Params) == 1 && d.Variadic:
		return ShapeCollection
	case len(d.Params) == 1:
		return ShapeItem
	}

	return ShapeFunc
}

// Parse splits a view script into definitions.
//
// Definitions end at a ';' or at a line break outside brackets when the next
// non-blank line starts a new definition header. Comments are "//" and
// "/* */" anywhere outside strings, and "#" at the start of a line ('#' inside
// an expression is left to expr's closure syntax).
func Parse(src []byte) ([]Definition, error) {
	p := &parser{input: src, line: 1}

	var (
		defs []Definition
		seen = make(map[string]int)
	)

	for {
		if err := p.skipSeparators(); err != nil {
			return nil, err
		}

		if p.eof() {
			return defs, nil
		}

		def, err := p.parseDefinition()
		if err != nil {
			return nil, err
		}

		if line, dup := seen[def.Name]; dup {
			return nil, p.fail(def.Line, ErrDuplicate.With(
				slog.String("name", def.Name),
				slog.Int("first_line", line),
			))
		}

		seen[def.Name] = def.Line
		defs = append(defs, def)
	}
}

type parser struct {
	input []byte
	pos   int
	line  int
}

func (p *parser) fail(line int, err error) error {
	return newError(ErrSyntax, "", "", line, err)
}

func (p *parser) eof() bool { return p.pos >= len(p.input) }

func (p *parser) peek() byte {
	if p.eof() {
		return 0
	}

	return p.input[p.pos]
}

func (p *parser) peekN(n int) string {
	if p.pos+n > len(p.input) {
		return string(p.input[p.pos:])
	}

	return string(p.input[p.pos : p.pos+n])
}

func (p *parser) advance() {
	if p.eof() {
		return
	}

	if p.input[p.pos] == '\n' {
		p.line++
	}

	p.pos++
}

// skipSeparators skips whitespace, ';' and comments between definitions.
func (p *parser) skipSeparators() error {
	for !p.eof() {
		switch ch := p.peek(); {
		case ch == ' ' || ch == '\t' || ch == '\r' || ch == '\n' || ch == ';':
			p.advance()
		case ch == '#' || p.peekN(2) == "//":
			p.skipLine()
		case p.peekN(2) == "/*":
			if err := p.skipBlock(nil); err != nil {
				return err
			}
		default:
			return nil
		}
	}

	return nil
}

// skipInline skips spaces and tabs.
func (p *parser) skipInline() {
	for p.peek() == ' ' || p.peek() == '\t' {
		p.advance()
	}
}

// skipLine skips to the next line break, leaving it unread.
func (p *parser) skipLine() {
	for !p.eof() && p.peek() != '\n' {
		p.advance()
	}
}

// skipBlock skips a non-nesting block comment. A space is written to out in
// its place so adjacent tokens stay apart.
func (p *parser) skipBlock(out *strings.Builder) error {
	line := p.line

	p.advance()
	p.advance()

	for !p.eof() {
		if p.peekN(2) == "*/" {
			p.advance()
			p.advance()

			if out != nil {
				out.WriteByte(' ')
			}

			return nil
		}

		p.advance()
	}

	return p.fail(line, lang.ErrUnterminatedBlock)
}

// parseDefinition parses: name param* ['...' param] ':' expression.
func (p *parser) parseDefinition() (Definition, error) {
	def := Definition{Line: p.line}

	name, ok := p.scanName(true)
	if !ok {
		return def, p.fail(def.Line, lang.ErrUnexpectedChar.With(
			slog.String("expected", "definition name"),
			slog.String("found", string(p.peek())),
		))
	}

	def.Name = name

	for {
		p.skipInline()

		if p.peek() == ':' {
			p.advance()

			break
		}

		if def.Variadic {
			return def, p.fail(p.line, lang.ErrUnexpectedChar.With(
				slog.String("expected", "':' after variadic parameter"),
				slog.String("name", def.Name),
			))
		}

		if p.peekN(3) == "..." {
			p.pos += 3
			def.Variadic = true

			p.skipInline()
		}

		param, ok := p.scanName(false)
		if !ok {
			return def, p.fail(p.line, lang.ErrUnexpectedChar.With(
				slog.String("expected", "parameter or ':'"),
				slog.String("name", def.Name),
			))
		}

		def.Params = append(def.Params, param)
	}

	src, err := p.captureExpression()
	if err != nil {
		return def, err
	}

	if src == "" {
		return def, p.fail(def.Line, lang.ErrUnexpectedEOF.With(
			slog.String("expected", "expression"),
			slog.String("name", def.Name),
		))
	}

	def.Source = src

	return def, nil
}

// scanName reads an identifier. Definition names may contain interior
// hyphens ("format-date"); parameter names may not.
func (p *parser) scanName(hyphens bool) (string, bool) {
	start := p.pos

	if !isNameStart(p.peek()) {
		return "", false
	}

	p.advance()

	for !p.eof() {
		ch := p.peek()

		switch {
		case isNameContinue(ch):
			p.advance()
		case ch == '-' && hyphens && p.pos+1 < len(p.input) &&
			isNameContinue(p.input[p.pos+1]):
			p.advance()
		default:
			return string(p.input[start:p.pos]), true
		}
	}

	return string(p.input[start:p.pos]), true
}

// captureExpression reads an expression body up to its terminator and
// returns it with comments removed and surrounding space trimmed.
func (p *parser) captureExpression() (string, error) {
	var (
		out       strings.Builder
		depth     int
		startLine = p.line
		lineStart = false // only whitespace seen since the last line break
	)

	for !p.eof() {
		ch := p.peek()

		switch {
		case ch == '"' || ch == '\'' || ch == '`':
			if err := p.copyString(&out); err != nil {
				return "", err
			}

			lineStart = false

			continue

		case p.peekN(2) == "//", ch == '#' && lineStart:
			p.skipLine()

			continue

		case p.peekN(2) == "/*":
			if err := p.skipBlock(&out); err != nil {
				return "", err
			}

			continue

		case ch == '(' || ch == '[' || ch == '{':
			depth++

		case ch == ')' || ch == ']' || ch == '}':
			if depth == 0 {
				return "", p.fail(p.line, lang.ErrUnexpectedChar.With(
					slog.String("found", string(ch)),
					slog.String("expected", "matching opening bracket"),
				))
			}

			depth--

		case ch == ';' && depth == 0:
			return strings.TrimSpace(out.String()), nil

		case ch == '\n' && depth == 0:
			if p.atHeader() {
				return strings.TrimSpace(out.String()), nil
			}
		}

		switch ch {
		case '\n':
			lineStart = true
		case ' ', '\t', '\r':
		default:
			lineStart = false
		}

		out.WriteByte(ch)
		p.advance()
	}

	if depth > 0 {
		return "", p.fail(startLine, lang.ErrUnexpectedEOF.With(
			slog.String("expected", "closing bracket"),
		))
	}

	return strings.TrimSpace(out.String()), nil
}

// copyString copies a quoted string literal to out verbatim.
func (p *parser) copyString(out *strings.Builder) error {
	quote := p.peek()
	line := p.line

	out.WriteByte(quote)
	p.advance()

	for !p.eof() {
		ch := p.peek()

		out.WriteByte(ch)
		p.advance()

		switch {
		case ch == '\\' && quote != '`' && !p.eof():
			out.WriteByte(p.peek())
			p.advance()
		case ch == quote:
			return nil
		}
	}

	return p.fail(line, lang.ErrUnterminatedString)
}

// atHeader reports whether the first non-blank, non-comment line after the
// current line break begins a definition header ("name params :").
func (p *parser) atHeader() bool {
	look := &parser{input: p.input, pos: p.pos, line: p.line}

	for !look.eof() {
		switch ch := look.peek(); {
		case ch == ' ' || ch == '\t' || ch == '\r' || ch == '\n':
			look.advance()

			continue
		case ch == '#' || look.peekN(2) == "//":
			look.skipLine()

			continue
		case look.peekN(2) == "/*":
			if look.skipBlock(nil) != nil {
				return false
			}

			continue
		}

		break
	}

	if _, ok := look.scanName(true); !ok {
		return false
	}

	for {
		look.skipInline()

		switch {
		case look.peek() == ':':
			return true
		case look.peekN(3) == "...":
			look.pos += 3
			look.skipInline()
		}

		if _, ok := look.scanName(false); !ok {
			return false
		}
	}
}

func isNameStart(ch byte) bool {
	return ch == '_' || ('a' <= ch && ch <= 'z') || ('A' <= ch && ch <= 'Z')
}

func isNameContinue(ch byte) bool {
	return isNameStart(ch) || ('0' <= ch && ch <= '9')
}
