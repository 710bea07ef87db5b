package lang

import (
	"context"
	"errors"
	"log/slog"

	"github.com/ardnew/folio/log"
)

// DefaultMaxDepth is the default limit on array and object nesting.
const DefaultMaxDepth = 512

// Option configures parsing.
type Option func(*options)

type options struct {
	logger   log.Logger
	path     string
	maxDepth int
}

func makeOptions(opts ...Option) options {
	o := options{maxDepth: DefaultMaxDepth}
	for _, opt := range opts {
		opt(&o)
	}

	return o
}

// WithPath sets the source path reported by errors and [Document.Path].
func WithPath(path string) Option {
	return func(o *options) { o.path = path }
}

// WithLogger sets the logger used for trace output.
func WithLogger(logger log.Logger) Option {
	return func(o *options) { o.logger = logger }
}

// WithMaxDepth limits array and object nesting. Values below 1 select
// [DefaultMaxDepth].
func WithMaxDepth(depth int) Option {
	return func(o *options) {
		if depth < 1 {
			depth = DefaultMaxDepth
		}

		o.maxDepth = depth
	}
}

// ParseString parses a document from a string.
func ParseString(ctx context.Context, s string, opts ...Option) (*Document, error) {
	return Parse(ctx, []byte(s), opts...)
}

// Parse parses a document from src.
//
// Errors are *[ParseError] values matching [ErrLex] or [ErrParse] with
// errors.Is, and the specific failure (e.g. [ErrDuplicateProperty]).
func Parse(ctx context.Context, src []byte, opts ...Option) (*Document, error) {
	o := makeOptions(opts...)

	p := &parser{lex: newLexer(src), opts: o}

	doc, err := p.parseDocument()
	if err != nil {
		var pe *ParseError
		if errors.As(err, &pe) {
			pe.Path = o.path
			pe.Source = string(src)
		}

		o.logger.TraceContext(ctx, "parse failed",
			slog.String("path", o.path),
			slog.Any("error", err))

		return nil, err
	}

	o.logger.TraceContext(ctx, "parse complete",
		slog.String("path", o.path),
		slog.Int("source_bytes", len(src)),
		slog.String("root", doc.root.kind.String()))

	return doc, nil
}

// parser holds the parser state. tok is the one-token lookahead; prevEnd is
// the end of the most recently consumed token.
type parser struct {
	lex     *lexer
	tok     Token
	prevEnd Position
	opts    options
}

func (p *parser) advance() error {
	p.prevEnd = p.tok.End

	tok, err := p.lex.next()
	if err != nil {
		return err
	}

	p.tok = tok

	return nil
}

func (p *parser) fail(err *Error, pos Position) error {
	return newParseError(StageParse, err, pos)
}

func (p *parser) unexpected() error {
	if p.tok.Kind == TokenEOF {
		return p.fail(ErrUnexpectedEOF, p.tok.Pos)
	}

	return p.fail(
		ErrUnexpectedToken.With(
			slog.String("token", p.tok.Kind.String()),
			slog.String("text", p.tok.Raw),
		),
		p.tok.Pos,
	)
}

// parseDocument parses: [docstring] value EOF.
func (p *parser) parseDocument() (*Document, error) {
	if err := p.advance(); err != nil {
		return nil, err
	}

	lead, leadPos, err := p.parseDocstring()
	if err != nil {
		return nil, err
	}

	if lead != nil && p.tok.Kind == TokenEOF {
		return nil, p.fail(ErrDanglingDocstring, leadPos)
	}

	root, err := p.parseValue(0)
	if err != nil {
		return nil, err
	}

	if p.tok.Kind == TokenDocstring {
		return nil, p.fail(ErrMisplacedDocstring, p.tok.Pos)
	}

	if p.tok.Kind != TokenEOF {
		return nil, p.unexpected()
	}

	return &Document{root: root, doc: lead, path: p.opts.path}, nil
}

// parseDocstring collects consecutive docstring lines, if any.
func (p *parser) parseDocstring() (Docstring, Position, error) {
	pos := p.tok.Pos

	var doc Docstring

	for p.tok.Kind == TokenDocstring {
		doc = append(doc, p.tok.Text)

		if err := p.advance(); err != nil {
			return nil, pos, err
		}
	}

	return doc, pos, nil
}

func (p *parser) parseValue(depth int) (Value, error) {
	tok := p.tok

	var v Value

	switch tok.Kind {
	case TokenLBrace:
		return p.parseObject(depth + 1)

	case TokenLBracket:
		return p.parseArray(depth + 1)

	case TokenIdent:
		switch tok.Text {
		case "null":
			v = Null()
		case "true":
			v = Bool(true)
		case "false":
			v = Bool(false)
		default:
			return Value{}, p.unexpected()
		}

	case TokenInteger:
		v = Int(tok.Int)

	case TokenFloat:
		v = Float(tok.Float)

	case TokenString:
		v = String(tok.Text)

	case TokenDate:
		v = NewDate(DateOf(tok.Time))

	case TokenDateTime:
		v = NewDateTime(tok.Time)

	case TokenDocstring:
		return Value{}, p.fail(ErrMisplacedDocstring, tok.Pos)

	default:
		return Value{}, p.unexpected()
	}

	return v, p.advance()
}

func (p *parser) enter(depth int) error {
	if depth > p.opts.maxDepth {
		return p.fail(
			ErrMaxDepthExceeded.With(slog.Int("max_depth", p.opts.maxDepth)),
			p.tok.Pos,
		)
	}

	return p.advance()
}

// parseObject parses: '{' (property (sep property)* sep?)? '}'.
func (p *parser) parseObject(depth int) (Value, error) {
	if err := p.enter(depth); err != nil {
		return Value{}, err
	}

	var (
		props []Property
		seen  = make(map[string]struct{})
	)

	for {
		lead, leadPos, err := p.parseDocstring()
		if err != nil {
			return Value{}, err
		}

		switch p.tok.Kind {
		case TokenRBrace:
			if lead != nil {
				return Value{}, p.fail(ErrDanglingDocstring, leadPos)
			}

			if err := p.advance(); err != nil {
				return Value{}, err
			}

			return Value{kind: KindObject, obj: props}, nil

		case TokenEOF:
			if lead != nil {
				return Value{}, p.fail(ErrDanglingDocstring, leadPos)
			}

			return Value{}, p.unexpected()
		}

		prop, err := p.parseProperty(depth, lead)
		if err != nil {
			return Value{}, err
		}

		if _, dup := seen[prop.key]; dup {
			return Value{}, p.fail(
				ErrDuplicateProperty.With(slog.String("key", prop.key)),
				prop.pos,
			)
		}

		seen[prop.key] = struct{}{}
		props = append(props, Prop(prop.key, prop.value))

		if p.tok.Kind != TokenComma {
			if err := p.parseSeparator(TokenRBrace); err != nil {
				return Value{}, err
			}

			continue
		}

		if err := p.advance(); err != nil {
			return Value{}, err
		}

		// "key: value, /// text" also documents the value.
		if p.tok.Kind == TokenDocstring && p.tok.Pos.Line == p.prevEnd.Line {
			last := &props[len(props)-1]
			if last.value.doc != nil {
				return Value{}, p.fail(ErrDocumentedTwice, p.tok.Pos)
			}

			last.value = last.value.WithDoc(p.tok.Text)

			if err := p.advance(); err != nil {
				return Value{}, err
			}
		}
	}
}

type parsedProperty struct {
	key   string
	value Value
	pos   Position
}

// parseProperty parses: key [':'] value [docstring].
func (p *parser) parseProperty(depth int, lead Docstring) (parsedProperty, error) {
	key := parsedProperty{pos: p.tok.Pos}

	switch {
	case p.tok.Kind == TokenIdent:
		key.key = p.tok.Text
	case p.tok.Kind == TokenString && p.tok.Style == StyleEscaped:
		key.key = p.tok.Text
	default:
		return key, p.fail(
			ErrInvalidKey.With(slog.String("token", p.tok.Kind.String())),
			p.tok.Pos,
		)
	}

	if err := p.advance(); err != nil {
		return key, err
	}

	if p.tok.Kind == TokenColon {
		if err := p.advance(); err != nil {
			return key, err
		}
	}

	if p.tok.Kind == TokenDocstring {
		return key, p.fail(ErrMisplacedDocstring, p.tok.Pos)
	}

	value, err := p.parseValue(depth)
	if err != nil {
		return key, err
	}

	// A docstring starting on the line where the value ends trails it.
	if p.tok.Kind == TokenDocstring && p.tok.Pos.Line == p.prevEnd.Line {
		if lead != nil {
			return key, p.fail(ErrDocumentedTwice, p.tok.Pos)
		}

		lead = Docstring{p.tok.Text}

		if err := p.advance(); err != nil {
			return key, err
		}
	}

	key.value = value.WithDoc(lead...)

	return key, nil
}

// parseSeparator consumes a comma, or accepts a line break, between members.
// The closing token is left for the caller.
func (p *parser) parseSeparator(closing TokenKind) error {
	switch {
	case p.tok.Kind == TokenComma:
		return p.advance()

	case p.tok.Kind == closing:
		return nil

	case p.tok.Kind == TokenEOF:
		return p.unexpected()

	case p.tok.Pos.Line > p.prevEnd.Line:
		return nil
	}

	return p.fail(
		ErrExpectedSeparator.With(slog.String("found", p.tok.Kind.String())),
		p.tok.Pos,
	)
}

// parseArray parses: '[' (value (sep value)* sep?)? ']'.
func (p *parser) parseArray(depth int) (Value, error) {
	if err := p.enter(depth); err != nil {
		return Value{}, err
	}

	var elems []Value

	for {
		switch p.tok.Kind {
		case TokenRBracket:
			if err := p.advance(); err != nil {
				return Value{}, err
			}

			return Value{kind: KindArray, arr: elems}, nil

		case TokenDocstring:
			return Value{}, p.fail(ErrMisplacedDocstring, p.tok.Pos)
		}

		v, err := p.parseValue(depth)
		if err != nil {
			return Value{}, err
		}

		elems = append(elems, v)

		if p.tok.Kind == TokenDocstring {
			return Value{}, p.fail(ErrMisplacedDocstring, p.tok.Pos)
		}

		if err := p.parseSeparator(TokenRBracket); err != nil {
			return Value{}, err
		}
	}
}
