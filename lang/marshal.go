package lang

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"maps"
	"math"
	"reflect"
	"slices"
	"strconv"
	"time"

	"github.com/goccy/go-yaml"
)

// NativeDate is the representation of a date inside view scripts and
// templates.
type NativeDate struct {
	ISO       string `expr:"iso"       json:"iso"`
	Year      int    `expr:"year"      json:"year"`
	Month     int    `expr:"month"     json:"month"`
	Day       int    `expr:"day"       json:"day"`
	Timestamp int64  `expr:"timestamp" json:"timestamp"` // Unix seconds at midnight UTC
}

func (d NativeDate) String() string { return d.ISO }

// NativeDateTime is the representation of a datetime inside view scripts and
// templates. Offset is the zone offset in minutes east of UTC.
type NativeDateTime struct {
	ISO        string `expr:"iso"        json:"iso"`
	Year       int    `expr:"year"       json:"year"`
	Month      int    `expr:"month"      json:"month"`
	Day        int    `expr:"day"        json:"day"`
	Hour       int    `expr:"hour"       json:"hour"`
	Minute     int    `expr:"minute"     json:"minute"`
	Second     int    `expr:"second"     json:"second"`
	Nanosecond int    `expr:"nanosecond" json:"nanosecond"`
	Offset     int    `expr:"offset"     json:"offset"`
	Timestamp  int64  `expr:"timestamp"  json:"timestamp"` // Unix seconds
}

func (d NativeDateTime) String() string { return d.ISO }

// Time returns the instant d denotes in its own zone offset.
func (d NativeDateTime) Time() time.Time {
	if d.ISO != "" {
		if t, err := ParseDateTime(d.ISO); err == nil {
			return t
		}
	}

	return time.Date(
		d.Year, time.Month(d.Month), d.Day,
		d.Hour, d.Minute, d.Second, d.Nanosecond,
		time.FixedZone("", d.Offset*60),
	)
}

// Date returns the calendar date d denotes.
func (d NativeDate) Date() Date {
	if d.ISO != "" {
		if date, err := ParseDate(d.ISO); err == nil {
			return date
		}
	}

	return Date{Year: d.Year, Month: time.Month(d.Month), Day: d.Day}
}

// MakeNativeDate returns the native form of d.
func MakeNativeDate(d Date) NativeDate {
	return NativeDate{
		ISO:       d.String(),
		Year:      d.Year,
		Month:     int(d.Month),
		Day:       d.Day,
		Timestamp: d.Time().Unix(),
	}
}

// MakeNativeDateTime returns the native form of t.
func MakeNativeDateTime(t time.Time) NativeDateTime {
	_, offset := t.Zone()

	return NativeDateTime{
		ISO:        t.Format(DateTimeLayout),
		Year:       t.Year(),
		Month:      int(t.Month()),
		Day:        t.Day(),
		Hour:       t.Hour(),
		Minute:     t.Minute(),
		Second:     t.Second(),
		Nanosecond: t.Nanosecond(),
		Offset:     offset / 60,
		Timestamp:  t.Unix(),
	}
}

// ToNative converts v to plain Go values: nil, bool, int, float64, string,
// [NativeDate], [NativeDateTime], []any and map[string]any.
func ToNative(v Value) any { return (*Marshaler)(nil).ToNative(v) }

// FromNative converts a plain Go value back to a Value. Maps become objects
// with keys in lexical order; [yaml.MapSlice] keeps its order.
func FromNative(x any) (Value, error) { return (*Marshaler)(nil).FromNative(x) }

// Marshaler converts values to and from native form and remembers the
// property order of every object it converts. A map it created comes back
// with its keys in that order; keys added since follow in lexical order.
// The zero Marshaler and a nil *Marshaler remember nothing.
//
// A Marshaler is not safe for concurrent use.
type Marshaler struct {
	order map[uintptr][]string
}

// NewMarshaler returns an empty Marshaler.
func NewMarshaler() *Marshaler {
	return &Marshaler{order: make(map[uintptr][]string)}
}

// Clone returns a Marshaler that starts with the order m has recorded.
func (m *Marshaler) Clone() *Marshaler {
	c := NewMarshaler()
	if m != nil {
		maps.Copy(c.order, m.order)
	}

	return c
}

// ToNative is [ToNative], recording object property order.
func (m *Marshaler) ToNative(v Value) any {
	switch v.kind {
	case KindBool:
		return v.b
	case KindInt:
		return int(v.i)
	case KindFloat:
		return v.f
	case KindString:
		return v.s
	case KindDate:
		return MakeNativeDate(DateOf(v.t))
	case KindDateTime:
		return MakeNativeDateTime(v.t)
	case KindArray:
		elems := make([]any, len(v.arr))
		for i, e := range v.arr {
			elems[i] = m.ToNative(e)
		}

		return elems
	case KindObject:
		obj := make(map[string]any, len(v.obj))
		keys := make([]string, len(v.obj))

		for i, p := range v.obj {
			obj[p.key] = m.ToNative(p.value)
			keys[i] = p.key
		}

		if m != nil && m.order != nil {
			m.order[reflect.ValueOf(obj).Pointer()] = keys
		}

		return obj
	}

	return nil
}

// keys returns the keys of x, recorded ones first.
func (m *Marshaler) keys(x map[string]any) []string {
	var known []string
	if m != nil && m.order != nil {
		known = m.order[reflect.ValueOf(x).Pointer()]
	}

	keys := make([]string, 0, len(x))
	seen := make(map[string]bool, len(known))

	for _, k := range known {
		if _, ok := x[k]; ok && !seen[k] {
			keys = append(keys, k)
			seen[k] = true
		}
	}

	var added []string

	for k := range x {
		if !seen[k] {
			added = append(added, k)
		}
	}

	slices.Sort(added)

	return append(keys, added...)
}

// FromNative is [FromNative], restoring recorded object property order.
func (m *Marshaler) FromNative(x any) (Value, error) {
	switch x := x.(type) {
	case nil:
		return Null(), nil
	case Value:
		return x, nil
	case bool:
		return Bool(x), nil
	case int:
		return Int(int64(x)), nil
	case int8:
		return Int(int64(x)), nil
	case int16:
		return Int(int64(x)), nil
	case int32:
		return Int(int64(x)), nil
	case int64:
		return Int(x), nil
	case uint8:
		return Int(int64(x)), nil
	case uint16:
		return Int(int64(x)), nil
	case uint32:
		return Int(int64(x)), nil
	case uint:
		return fromUint(uint64(x))
	case uint64:
		return fromUint(x)
	case float32:
		return fromFloat(float64(x))
	case float64:
		return fromFloat(x)
	case string:
		return String(x), nil
	case NativeDate:
		return NewDate(x.Date()), nil
	case *NativeDate:
		return NewDate(x.Date()), nil
	case NativeDateTime:
		return NewDateTime(x.Time()), nil
	case *NativeDateTime:
		return NewDateTime(x.Time()), nil
	case Date:
		return NewDate(x), nil
	case time.Time:
		return NewDateTime(x), nil
	case []any:
		return m.fromSlice(len(x), func(i int) any { return x[i] })
	case map[string]any:
		keys := m.keys(x)
		props := make([]Property, 0, len(keys))

		for _, k := range keys {
			v, err := m.FromNative(x[k])
			if err != nil {
				return Value{}, err
			}

			props = append(props, Prop(k, v))
		}

		return Value{kind: KindObject, obj: props}, nil
	case yaml.MapSlice:
		props := make([]Property, 0, len(x))

		for _, item := range x {
			k, ok := item.Key.(string)
			if !ok {
				k = stringify(item.Key)
			}

			v, err := m.FromNative(item.Value)
			if err != nil {
				return Value{}, err
			}

			props = append(props, Prop(k, v))
		}

		return Object(props...)
	}

	return m.fromReflect(reflect.ValueOf(x))
}

func fromUint(n uint64) (Value, error) {
	if n > math.MaxInt64 {
		return Value{}, ErrUnsupportedValue.With(slog.Uint64("integer", n))
	}

	return Int(int64(n)), nil
}

func fromFloat(f float64) (Value, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return Value{}, ErrUnsupportedValue.With(slog.Float64("float", f))
	}

	return Float(f), nil
}

func (m *Marshaler) fromSlice(n int, at func(int) any) (Value, error) {
	elems := make([]Value, n)

	for i := range n {
		v, err := m.FromNative(at(i))
		if err != nil {
			return Value{}, err
		}

		elems[i] = v
	}

	return Value{kind: KindArray, arr: elems}, nil
}

// fromReflect handles typed slices and string-keyed maps.
func (m *Marshaler) fromReflect(rv reflect.Value) (Value, error) {
	switch rv.Kind() {
	case reflect.Slice, reflect.Array:
		return m.fromSlice(rv.Len(), func(i int) any { return rv.Index(i).Interface() })

	case reflect.Map:
		if rv.Type().Key().Kind() != reflect.String {
			break
		}

		obj := make(map[string]any, rv.Len())
		for iter := rv.MapRange(); iter.Next(); {
			obj[iter.Key().String()] = iter.Value().Interface()
		}

		return m.FromNative(obj)

	case reflect.Pointer:
		if rv.IsNil() {
			return Null(), nil
		}

		return m.FromNative(rv.Elem().Interface())
	}

	typ := "nil"
	if rv.IsValid() {
		typ = rv.Type().String()
	}

	return Value{}, ErrUnsupportedValue.With(slog.String("type", typ))
}

func stringify(x any) string {
	switch x := x.(type) {
	case string:
		return x
	case int:
		return strconv.Itoa(x)
	case uint64:
		return strconv.FormatUint(x, 10)
	case int64:
		return strconv.FormatInt(x, 10)
	}

	b, _ := json.Marshal(x)

	return string(b)
}

// MarshalJSON implements json.Marshaler. Object key order is preserved.
func (v Value) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	if err := writeJSON(&buf, v); err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}

func writeJSON(buf *bytes.Buffer, v Value) error {
	switch v.kind {
	case KindNull:
		buf.WriteString("null")

	case KindBool:
		buf.WriteString(strconv.FormatBool(v.b))

	case KindInt:
		buf.WriteString(strconv.FormatInt(v.i, 10))

	case KindFloat:
		if math.IsNaN(v.f) || math.IsInf(v.f, 0) {
			return ErrUnsupportedValue.With(slog.Float64("float", v.f))
		}

		buf.WriteString(strconv.FormatFloat(v.f, 'g', -1, 64))

	case KindString:
		return writeJSONString(buf, v.s)

	case KindDate:
		return writeJSONString(buf, DateOf(v.t).String())

	case KindDateTime:
		return writeJSONString(buf, v.t.Format(DateTimeLayout))

	case KindArray:
		buf.WriteByte('[')

		for i, e := range v.arr {
			if i > 0 {
				buf.WriteByte(',')
			}

			if err := writeJSON(buf, e); err != nil {
				return err
			}
		}

		buf.WriteByte(']')

	case KindObject:
		buf.WriteByte('{')

		for i, p := range v.obj {
			if i > 0 {
				buf.WriteByte(',')
			}

			if err := writeJSONString(buf, p.key); err != nil {
				return err
			}

			buf.WriteByte(':')

			if err := writeJSON(buf, p.value); err != nil {
				return err
			}
		}

		buf.WriteByte('}')
	}

	return nil
}

func writeJSONString(buf *bytes.Buffer, s string) error {
	b, err := json.Marshal(s)
	if err != nil {
		return err
	}

	buf.Write(b)

	return nil
}
