package lang

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"math"
	"strconv"
	"strings"

	"github.com/goccy/go-yaml"
)

// Format writes the document in native syntax. An indent of zero writes the
// compact form; otherwise nested members are indented by indent spaces.
//
// Parsing the output yields a document equal to d. Docstrings attached to
// array elements cannot be expressed and are omitted.
func (d *Document) Format(_ context.Context, w io.Writer, indent int) error {
	var buf bytes.Buffer

	for _, line := range d.doc {
		if err := writeDocLine(&buf, line); err != nil {
			return err
		}

		buf.WriteByte('\n')
	}

	if err := writeValue(&buf, d.root, indent, 0); err != nil {
		return err
	}

	buf.WriteByte('\n')

	_, err := w.Write(buf.Bytes())

	return err
}

// FormatJSON writes the document root as JSON. Dates and datetimes become
// strings; docstrings are dropped.
func (d *Document) FormatJSON(_ context.Context, w io.Writer, indent int) error {
	data, err := d.root.MarshalJSON()
	if err != nil {
		return err
	}

	if indent > 0 {
		var out bytes.Buffer
		if err := json.Indent(&out, data, "", strings.Repeat(" ", indent)); err != nil {
			return err
		}

		data = out.Bytes()
	}

	_, err = fmt.Fprintln(w, string(data))

	return err
}

// FormatYAML writes the document root as YAML. Docstrings of object
// properties become head comments.
func (d *Document) FormatYAML(ctx context.Context, w io.Writer, indent int) error {
	var opts []yaml.EncodeOption
	if indent > 0 {
		opts = append(opts, yaml.Indent(indent))
	} else {
		opts = append(opts, yaml.Flow(true))
	}

	comments := yaml.CommentMap{}
	collectComments(comments, "$", d.root)

	if len(comments) > 0 && indent > 0 {
		opts = append(opts, yaml.WithComment(comments))
	}

	yamlData, err := yaml.MarshalContext(ctx, toYAML(d.root), opts...)
	if err != nil {
		return err
	}

	_, err = fmt.Fprint(w, string(yamlData))

	return err
}

// toYAML converts v to values goccy/go-yaml encodes in order.
func toYAML(v Value) any {
	switch v.kind {
	case KindObject:
		ms := make(yaml.MapSlice, 0, len(v.obj))
		for _, p := range v.obj {
			ms = append(ms, yaml.MapItem{Key: p.key, Value: toYAML(p.value)})
		}

		return ms

	case KindArray:
		elems := make([]any, 0, len(v.arr))
		for _, e := range v.arr {
			elems = append(elems, toYAML(e))
		}

		return elems

	case KindDate:
		return DateOf(v.t).String()

	case KindDateTime:
		return v.t.Format(DateTimeLayout)
	}

	return ToNative(v)
}

func collectComments(cm yaml.CommentMap, path string, v Value) {
	switch v.kind {
	case KindObject:
		for _, p := range v.obj {
			if !IsIdentifier(p.key) {
				continue
			}

			child := path + "." + p.key
			if len(p.value.doc) > 0 {
				cm[child] = []*yaml.Comment{yaml.HeadComment(p.value.doc...)}
			}

			collectComments(cm, child, p.value)
		}

	case KindArray:
		for i, e := range v.arr {
			collectComments(cm, path+"["+strconv.Itoa(i)+"]", e)
		}
	}
}

func writeValue(buf *bytes.Buffer, v Value, indent, depth int) error {
	switch v.kind {
	case KindNull:
		buf.WriteString("null")

	case KindBool:
		buf.WriteString(strconv.FormatBool(v.b))

	case KindInt:
		buf.WriteString(strconv.FormatInt(v.i, 10))

	case KindFloat:
		s, err := formatFloat(v.f)
		if err != nil {
			return err
		}

		buf.WriteString(s)

	case KindString:
		writeQuoted(buf, v.s)

	case KindDate:
		buf.WriteString(DateOf(v.t).String())

	case KindDateTime:
		buf.WriteString(v.t.Format(DateTimeLayout))

	case KindArray:
		return writeArray(buf, v.arr, indent, depth)

	case KindObject:
		return writeObject(buf, v.obj, indent, depth)
	}

	return nil
}

func writeArray(buf *bytes.Buffer, elems []Value, indent, depth int) error {
	if len(elems) == 0 {
		buf.WriteString("[]")

		return nil
	}

	buf.WriteByte('[')

	for i, e := range elems {
		if indent > 0 {
			newline(buf, indent, depth+1)
		} else if i > 0 {
			buf.WriteString(", ")
		}

		if err := writeValue(buf, e, indent, depth+1); err != nil {
			return err
		}

		if indent > 0 {
			buf.WriteByte(',')
		}
	}

	if indent > 0 {
		newline(buf, indent, depth)
	}

	buf.WriteByte(']')

	return nil
}

func writeObject(buf *bytes.Buffer, props []Property, indent, depth int) error {
	if len(props) == 0 {
		buf.WriteString("{}")

		return nil
	}

	buf.WriteByte('{')

	for i, p := range props {
		if indent > 0 {
			newline(buf, indent, depth+1)
		} else if i > 0 {
			buf.WriteString(", ")
		}

		// A docstring always runs to the end of its line.
		for _, line := range p.value.doc {
			if indent == 0 {
				buf.WriteByte('\n')
			}

			if err := writeDocLine(buf, line); err != nil {
				return err
			}

			if indent > 0 {
				newline(buf, indent, depth+1)
			} else {
				buf.WriteByte('\n')
			}
		}

		if IsIdentifier(p.key) {
			buf.WriteString(p.key)
		} else {
			writeQuoted(buf, p.key)
		}

		buf.WriteString(": ")

		if err := writeValue(buf, p.value, indent, depth+1); err != nil {
			return err
		}

		if indent > 0 {
			buf.WriteByte(',')
		}
	}

	if indent > 0 {
		newline(buf, indent, depth)
	}

	buf.WriteByte('}')

	return nil
}

func newline(buf *bytes.Buffer, indent, depth int) {
	buf.WriteByte('\n')
	buf.WriteString(strings.Repeat(" ", indent*depth))
}

func writeDocLine(buf *bytes.Buffer, line string) error {
	// Text starting with '/' would turn the line into a comment.
	if strings.Contains(line, "\n") || strings.HasSuffix(line, "\r") ||
		strings.HasPrefix(line, "/") {
		return ErrUnsupportedValue.With(slog.String("docstring", line))
	}

	buf.WriteString("///")
	buf.WriteString(line)

	return nil
}

func formatFloat(f float64) (string, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return "", ErrUnsupportedValue.With(slog.Float64("float", f))
	}

	s := strconv.FormatFloat(f, 'g', -1, 64)
	if !strings.ContainsAny(s, ".eE") {
		s += ".0"
	}

	return s, nil
}

var quotedEscapes = map[byte]string{
	'"':  `\"`,
	'\\': `\\`,
	'\n': `\n`,
	'\r': `\r`,
	'\t': `\t`,
	'\b': `\b`,
	'\f': `\f`,
}

// writeQuoted writes s as an escaped string. Bytes are copied as is so
// invalid UTF-8 survives a round trip.
func writeQuoted(buf *bytes.Buffer, s string) {
	buf.WriteByte('"')

	for i := range len(s) {
		c := s[i]

		if esc, ok := quotedEscapes[c]; ok {
			buf.WriteString(esc)

			continue
		}

		if c < 0x20 || c == 0x7f {
			fmt.Fprintf(buf, `\x%02x`, c)

			continue
		}

		buf.WriteByte(c)
	}

	buf.WriteByte('"')
}
