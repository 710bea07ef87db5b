package script

import (
	"fmt"
	"log/slog"
	"reflect"
	"strconv"

	"github.com/ardnew/folio/lang"
)

// natives converts arguments for the sandbox.
func natives(m *lang.Marshaler, vals []lang.Value) []any {
	out := make([]any, len(vals))
	for i, v := range vals {
		out[i] = m.ToNative(v)
	}

	return out
}

// callable reports whether fn can be passed to invoke.
func callable(fn any) bool {
	if fn == nil {
		return false
	}

	return reflect.TypeOf(fn).Kind() == reflect.Func
}

// invoke calls a definition or a host function value with args. Functions
// may return one value, or a value and an error.
func invoke(fn any, args ...any) (any, error) {
	if f, ok := fn.(func(...any) (any, error)); ok {
		return f(args...)
	}

	rv := reflect.ValueOf(fn)
	if !callable(fn) {
		return nil, ErrNotCallable.With(slog.String("type", typeName(fn)))
	}

	rt := rv.Type()

	if rt.IsVariadic() && len(args) < rt.NumIn()-1 ||
		!rt.IsVariadic() && len(args) != rt.NumIn() {
		return nil, ErrArity.With(slog.Int("want", rt.NumIn()), slog.Int("got", len(args)))
	}

	in := make([]reflect.Value, len(args))

	for i, a := range args {
		var want reflect.Type
		if rt.IsVariadic() && i >= rt.NumIn()-1 {
			want = rt.In(rt.NumIn() - 1).Elem()
		} else {
			want = rt.In(i)
		}

		if a == nil {
			in[i] = reflect.Zero(want)

			continue
		}

		av := reflect.ValueOf(a)
		if !av.Type().AssignableTo(want) {
			if !av.Type().ConvertibleTo(want) {
				return nil, invalidArgument(i, a, want.String())
			}

			av = av.Convert(want)
		}

		in[i] = av
	}

	out := rv.Call(in)

	switch len(out) {
	case 0:
		return nil, nil
	case 1:
		return out[0].Interface(), nil
	}

	if err, ok := out[len(out)-1].Interface().(error); ok && err != nil {
		return nil, err
	}

	return out[0].Interface(), nil
}

// toNumber widens any numeric sandbox value to float64.
func toNumber(x any) (float64, bool) {
	switch n := x.(type) {
	case int:
		return float64(n), true
	case int8:
		return float64(n), true
	case int16:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint8:
		return float64(n), true
	case uint16:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	}

	return 0, false
}

// display renders a scalar the way it appears in output paths and padding.
func display(x any) string {
	switch x := x.(type) {
	case nil:
		return ""
	case string:
		return x
	case int:
		return strconv.Itoa(x)
	case int64:
		return strconv.FormatInt(x, 10)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case fmt.Stringer:
		return x.String()
	}

	return fmt.Sprint(x)
}

func typeName(x any) string {
	switch x.(type) {
	case nil:
		return "nil"
	case bool:
		return "bool"
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return "int"
	case float32, float64:
		return "float"
	case string:
		return "string"
	case lang.NativeDate:
		return "date"
	case lang.NativeDateTime:
		return "datetime"
	case []any:
		return "array"
	case map[string]any:
		return "map"
	}

	return reflect.TypeOf(x).String()
}
