package lang

import (
	"bytes"
	"log/slog"
	"math"
	"slices"
	"strconv"
	"strings"
	"time"
)

// Kind identifies the variant held by a [Value].
type Kind uint8

const (
	KindNull Kind = iota
	KindBool
	KindInt
	KindFloat
	KindString
	KindDate
	KindDateTime
	KindArray
	KindObject
)

var kindNames = [...]string{
	KindNull:     "null",
	KindBool:     "boolean",
	KindInt:      "integer",
	KindFloat:    "float",
	KindString:   "string",
	KindDate:     "date",
	KindDateTime: "datetime",
	KindArray:    "array",
	KindObject:   "object",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}

	return "Kind(" + strconv.Itoa(int(k)) + ")"
}

// Docstring is the ordered text of the "///" lines attached to a value.
type Docstring []string

func (d Docstring) String() string { return strings.Join(d, "\n") }

// Value is an immutable document value. The zero Value is null.
type Value struct {
	t    time.Time
	s    string
	arr  []Value
	obj  []Property
	doc  Docstring
	i    int64
	f    float64
	kind Kind
	b    bool
}

// Property is a key and the value bound to it within an object.
type Property struct {
	key   string
	value Value
}

// Prop returns a property binding key to v.
func Prop(key string, v Value) Property { return Property{key: key, value: v} }

// Key returns the property key.
func (p Property) Key() string { return p.key }

// Value returns the property value.
func (p Property) Value() Value { return p.value }

// Null returns the null value.
func Null() Value { return Value{} }

// Bool returns a boolean value.
func Bool(b bool) Value { return Value{kind: KindBool, b: b} }

// Int returns an integer value.
func Int(n int64) Value { return Value{kind: KindInt, i: n} }

// Float returns a float value.
func Float(f float64) Value { return Value{kind: KindFloat, f: f} }

// String returns a string value.
func String(s string) Value { return Value{kind: KindString, s: s} }

// NewDate returns a date value.
func NewDate(d Date) Value { return Value{kind: KindDate, t: d.Time()} }

// NewDateTime returns a datetime value. The zone offset of t is retained.
func NewDateTime(t time.Time) Value { return Value{kind: KindDateTime, t: t} }

// Array returns an array holding a copy of elems.
func Array(elems ...Value) Value {
	return Value{kind: KindArray, arr: slices.Clone(elems)}
}

// Object returns an object holding a copy of props in order. Keys must be
// unique.
func Object(props ...Property) (Value, error) {
	seen := make(map[string]struct{}, len(props))

	for _, p := range props {
		if _, dup := seen[p.key]; dup {
			return Value{}, ErrDuplicateProperty.With(slog.String("key", p.key))
		}

		seen[p.key] = struct{}{}
	}

	return Value{kind: KindObject, obj: slices.Clone(props)}, nil
}

// MustObject is like [Object] but panics on duplicate keys.
func MustObject(props ...Property) Value {
	v, err := Object(props...)
	if err != nil {
		panic(err)
	}

	return v
}

// WithDoc returns a copy of v carrying the given docstring lines. No lines
// removes the docstring.
func (v Value) WithDoc(lines ...string) Value {
	v.doc = Docstring(lines).clone()

	return v
}

// Kind returns the variant held by v.
func (v Value) Kind() Kind { return v.kind }

// IsNull reports whether v is null.
func (v Value) IsNull() bool { return v.kind == KindNull }

// Doc returns a copy of the docstring attached to v, or nil.
func (v Value) Doc() Docstring { return slices.Clone(v.doc) }

// Bool returns the boolean held by v.
func (v Value) Bool() (bool, bool) { return v.b, v.kind == KindBool }

// Int returns the integer held by v.
func (v Value) Int() (int64, bool) { return v.i, v.kind == KindInt }

// Float returns the float held by v.
func (v Value) Float() (float64, bool) { return v.f, v.kind == KindFloat }

// Number returns v as a float64 if it is an integer or a float.
func (v Value) Number() (float64, bool) {
	switch v.kind {
	case KindInt:
		return float64(v.i), true
	case KindFloat:
		return v.f, true
	}

	return 0, false
}

// Text returns the string held by v.
func (v Value) Text() (string, bool) { return v.s, v.kind == KindString }

// Date returns the date held by v.
func (v Value) Date() (Date, bool) {
	if v.kind != KindDate {
		return Date{}, false
	}

	return DateOf(v.t), true
}

// DateTime returns the datetime held by v.
func (v Value) DateTime() (time.Time, bool) {
	return v.t, v.kind == KindDateTime
}

// Len returns the number of elements of an array or properties of an object.
func (v Value) Len() int {
	switch v.kind {
	case KindArray:
		return len(v.arr)
	case KindObject:
		return len(v.obj)
	}

	return 0
}

// Index returns the i'th element of an array.
func (v Value) Index(i int) Value {
	if v.kind != KindArray || i < 0 || i >= len(v.arr) {
		return Value{}
	}

	return v.arr[i]
}

// Elems returns a copy of the elements of an array.
func (v Value) Elems() []Value {
	if v.kind != KindArray {
		return nil
	}

	return slices.Clone(v.arr)
}

// Props returns a copy of the properties of an object in source order.
func (v Value) Props() []Property {
	if v.kind != KindObject {
		return nil
	}

	return slices.Clone(v.obj)
}

// Keys returns the property keys of an object in source order.
func (v Value) Keys() []string {
	keys := make([]string, 0, len(v.obj))
	for _, p := range v.obj {
		keys = append(keys, p.key)
	}

	return keys
}

// Get returns the value bound to key in an object.
func (v Value) Get(key string) (Value, bool) {
	for _, p := range v.obj {
		if p.key == key {
			return p.value, true
		}
	}

	return Value{}, false
}

// With returns a copy of the object v with key bound to val. An existing
// property keeps its position; a new one is appended.
func (v Value) With(key string, val Value) Value {
	if v.kind != KindObject {
		return v
	}

	obj := slices.Clone(v.obj)

	for i := range obj {
		if obj[i].key == key {
			obj[i].value = val
			v.obj = obj

			return v
		}
	}

	v.obj = append(obj, Prop(key, val))

	return v
}

// Equal reports whether v and o hold the same value and docstrings.
// Datetimes are equal when they denote the same instant with the same offset.
// NaN floats compare equal to each other.
func (v Value) Equal(o Value) bool {
	if v.kind != o.kind || !slices.Equal(v.doc, o.doc) {
		return false
	}

	switch v.kind {
	case KindBool:
		return v.b == o.b
	case KindInt:
		return v.i == o.i
	case KindFloat:
		return v.f == o.f || (math.IsNaN(v.f) && math.IsNaN(o.f))
	case KindString:
		return v.s == o.s
	case KindDate:
		return v.t.Equal(o.t)
	case KindDateTime:
		_, vo := v.t.Zone()
		_, oo := o.t.Zone()

		return v.t.Equal(o.t) && vo == oo
	case KindArray:
		return slices.EqualFunc(v.arr, o.arr, Value.Equal)
	case KindObject:
		return slices.EqualFunc(v.obj, o.obj, func(a, b Property) bool {
			return a.key == b.key && a.value.Equal(b.value)
		})
	}

	return true
}

// String returns v in compact document syntax.
func (v Value) String() string {
	var buf bytes.Buffer
	if err := writeValue(&buf, v, 0, 0); err != nil {
		return "<" + err.Error() + ">"
	}

	return buf.String()
}

// Document is a parsed source file.
type Document struct {
	root Value
	doc  Docstring
	path string
}

// NewDocument returns a document with the given root value and docstring.
func NewDocument(path string, root Value, doc ...string) *Document {
	return &Document{
		root: root,
		doc:  Docstring(doc).clone(),
		path: path,
	}
}

// Root returns the root value.
func (d *Document) Root() Value { return d.root }

// Doc returns a copy of the root docstring, or nil.
func (d *Document) Doc() Docstring { return slices.Clone(d.doc) }

// Path returns the source path of the document, if known.
func (d *Document) Path() string { return d.path }

// Equal reports whether d and o hold equal roots and docstrings. Paths are
// not compared.
func (d *Document) Equal(o *Document) bool {
	return slices.Equal(d.doc, o.doc) && d.root.Equal(o.root)
}

func (d Docstring) clone() Docstring {
	if len(d) == 0 {
		return nil
	}

	return slices.Clone(d)
}

// LogValue implements slog.LogValuer.
func (d *Document) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("path", d.path),
		slog.String("kind", d.root.kind.String()),
		slog.Int("len", d.root.Len()),
	)
}
