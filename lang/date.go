package lang

import (
	"fmt"
	"log/slog"
	"time"
)

// Date is a calendar date without a time of day or zone.
type Date struct {
	Year  int
	Month time.Month
	Day   int
}

// DateOf returns the calendar date of t in t's location.
func DateOf(t time.Time) Date {
	y, m, d := t.Date()

	return Date{Year: y, Month: m, Day: d}
}

// Time returns midnight UTC at the start of d.
func (d Date) Time() time.Time {
	return time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, time.UTC)
}

// String returns d in YYYY-MM-DD form.
func (d Date) String() string {
	return fmt.Sprintf("%04d-%02d-%02d", d.Year, int(d.Month), d.Day)
}

// Compare returns -1, 0, or +1 as d is before, equal to, or after o.
func (d Date) Compare(o Date) int {
	return d.Time().Compare(o.Time())
}

// DateTimeLayout formats datetimes the way the document language writes
// them. A zero offset is written as "Z".
const DateTimeLayout = "2006-01-02T15:04:05.999999999Z07:00"

// ParseDate parses s as a document date literal (YYYY-MM-DD).
func ParseDate(s string) (Date, error) {
	tok, err := scanOne(s)
	if err != nil {
		return Date{}, err
	}

	if tok.Kind != TokenDate {
		return Date{}, ErrInvalidDate.With(slog.String("text", s))
	}

	return DateOf(tok.Time), nil
}

// ParseDateTime parses s as a document datetime literal
// (YYYY-MM-DDTHH:MM:SS[.frac] followed by Z, ±HHMM, or ±HH:MM).
func ParseDateTime(s string) (time.Time, error) {
	tok, err := scanOne(s)
	if err != nil {
		return time.Time{}, err
	}

	if tok.Kind != TokenDateTime {
		return time.Time{}, ErrInvalidDateTime.With(slog.String("text", s))
	}

	return tok.Time, nil
}

// scanOne lexes s, which must consist of exactly one token.
func scanOne(s string) (Token, error) {
	l := newLexer([]byte(s))

	tok, err := l.next()
	if err != nil {
		return Token{}, err
	}

	rest, err := l.next()
	if err != nil {
		return Token{}, err
	}

	if rest.Kind != TokenEOF {
		return Token{}, newParseError(
			StageLex,
			ErrUnexpectedToken.With(slog.String("text", rest.Raw)),
			rest.Pos,
		)
	}

	return tok, nil
}
