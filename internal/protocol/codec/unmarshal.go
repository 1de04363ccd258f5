package codec

import (
	"errors"
	"fmt"
	"math"
	"reflect"
	"slices"
	"strconv"
	"time"
	"unicode/utf8"

	"github.com/danmuck/xmlrpc/internal/protocol"
)

var (
	unmarshalerType    = reflect.TypeFor[Unmarshaler]()
	variantDecoderType = reflect.TypeFor[VariantDecoder]()
)

const singleElementExpected = "array with a single element expected."

// Unmarshal stores the value tree v into out, which must be a non-nil
// pointer or an Unmarshaler such as Tuple. Mismatched shapes return a
// Decoding error naming the expected shape.
func Unmarshal(v protocol.Value, out any) error {
	if u, ok := out.(Unmarshaler); ok {
		return u.UnmarshalXMLRPC(v)
	}
	rv := reflect.ValueOf(out)
	if rv.Kind() != reflect.Pointer || rv.IsNil() {
		return protocol.Unsupportedf("decode target must be a non-nil pointer, got %T", out)
	}
	return unmarshalValue(v, rv.Elem())
}

func unmarshalValue(v protocol.Value, rv reflect.Value) error {
	if v == nil {
		v = protocol.Nil{}
	}
	t := rv.Type()

	if t == valueType {
		rv.Set(reflect.ValueOf(v))
		return nil
	}
	if t.Kind() != reflect.Interface && t.Implements(valueType) {
		if reflect.TypeOf(v) != t {
			return mismatch(v, reflect.Zero(t).Interface().(protocol.Value).Kind().String())
		}
		rv.Set(reflect.ValueOf(v))
		return nil
	}
	if t.Kind() != reflect.Pointer && t.Kind() != reflect.Interface {
		if rv.CanAddr() && rv.Addr().Type().Implements(unmarshalerType) {
			return rv.Addr().Interface().(Unmarshaler).UnmarshalXMLRPC(v)
		}
		if t.Implements(unmarshalerType) {
			return rv.Interface().(Unmarshaler).UnmarshalXMLRPC(v)
		}
		if rv.CanAddr() && rv.Addr().Type().Implements(variantDecoderType) {
			return unmarshalVariant(v, rv.Addr().Interface().(VariantDecoder))
		}
	}
	switch t {
	case charType:
		return unmarshalChar(v, rv)
	case timeType:
		return unmarshalTime(v, rv)
	}

	switch rv.Kind() {
	case reflect.Pointer:
		return unmarshalOption(v, rv)
	case reflect.Interface:
		if t.NumMethod() != 0 {
			return protocol.Unsupportedf("cannot decode into non-empty interface %s", t)
		}
		g, err := Generic(v)
		if err != nil {
			return err
		}
		if g == nil {
			rv.SetZero()
			return nil
		}
		rv.Set(reflect.ValueOf(g))
		return nil
	case reflect.Bool:
		b, ok := v.(protocol.Bool)
		if !ok {
			return mismatch(v, "a boolean")
		}
		rv.SetBool(bool(b))
		return nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return unmarshalInt(v, rv)
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return unmarshalUint(v, rv)
	case reflect.Float32, reflect.Float64:
		return unmarshalFloat(v, rv)
	case reflect.String:
		s, ok := v.(protocol.String)
		if !ok {
			return mismatch(v, "a string")
		}
		rv.SetString(string(s))
		return nil
	case reflect.Slice:
		return unmarshalSlice(v, rv)
	case reflect.Array:
		return unmarshalArray(v, rv)
	case reflect.Map:
		return unmarshalMap(v, rv)
	case reflect.Struct:
		return unmarshalStruct(v, rv)
	default:
		return protocol.Unsupportedf("cannot decode into %s", t)
	}
}

func unmarshalOption(v protocol.Value, rv reflect.Value) error {
	var inner protocol.Value
	switch val := v.(type) {
	case protocol.Nil:
		rv.SetZero()
		return nil
	case protocol.Array:
		switch len(val) {
		case 0:
			rv.SetZero()
			return nil
		case 1:
			inner = val[0]
		default:
			return protocol.Decodingf("invalid length %d, %s", len(val), singleElementExpected)
		}
	default:
		inner = v
	}
	elem := reflect.New(rv.Type().Elem())
	if err := unmarshalValue(inner, elem.Elem()); err != nil {
		return err
	}
	rv.Set(elem)
	return nil
}

func unmarshalInt(v protocol.Value, rv reflect.Value) error {
	var n int64
	switch val := v.(type) {
	case protocol.Int:
		n = int64(val)
	case protocol.String:
		parsed, err := strconv.ParseInt(string(val), 10, 64)
		if err != nil {
			return protocol.Decodingf("invalid integer %q: %v", string(val), err)
		}
		n = parsed
	default:
		return mismatch(v, "an integer")
	}
	if rv.OverflowInt(n) {
		return protocol.Decodingf("integer %d out of range for %s", n, rv.Type())
	}
	rv.SetInt(n)
	return nil
}

func unmarshalUint(v protocol.Value, rv reflect.Value) error {
	var n uint64
	switch val := v.(type) {
	case protocol.Int:
		if val < 0 {
			return protocol.Decodingf("integer %d out of range for %s", val, rv.Type())
		}
		n = uint64(val)
	case protocol.String:
		parsed, err := strconv.ParseUint(string(val), 10, 64)
		if err != nil {
			return protocol.Decodingf("invalid integer %q: %v", string(val), err)
		}
		n = parsed
	default:
		return mismatch(v, "an unsigned integer")
	}
	if rv.OverflowUint(n) {
		return protocol.Decodingf("integer %d out of range for %s", n, rv.Type())
	}
	rv.SetUint(n)
	return nil
}

func unmarshalFloat(v protocol.Value, rv reflect.Value) error {
	var f float64
	switch val := v.(type) {
	case protocol.Double:
		f = float64(val)
	case protocol.String:
		parsed, err := strconv.ParseFloat(string(val), 64)
		if err != nil {
			return protocol.Decodingf("invalid float %q: %v", string(val), err)
		}
		f = parsed
	case protocol.Int:
		if rv.Kind() != reflect.Float64 {
			return mismatch(v, "a double")
		}
		f = float64(val)
	default:
		return mismatch(v, "a double")
	}
	if rv.Kind() == reflect.Float32 && !math.IsInf(f, 0) && rv.OverflowFloat(f) {
		return protocol.Decodingf("float %v out of range for %s", f, rv.Type())
	}
	rv.SetFloat(f)
	return nil
}

func unmarshalChar(v protocol.Value, rv reflect.Value) error {
	s, ok := v.(protocol.String)
	if !ok || utf8.RuneCountInString(string(s)) != 1 {
		return mismatch(v, "a character")
	}
	r, _ := utf8.DecodeRuneInString(string(s))
	rv.SetInt(int64(r))
	return nil
}

func unmarshalTime(v protocol.Value, rv reflect.Value) error {
	var text string
	switch val := v.(type) {
	case protocol.DateTime:
		text = string(val)
	case protocol.String:
		text = string(val)
	default:
		return mismatch(v, "a dateTime.iso8601")
	}
	for _, layout := range []string{DateTimeLayout, "2006-01-02T15:04:05", time.RFC3339} {
		if ts, err := time.Parse(layout, text); err == nil {
			rv.Set(reflect.ValueOf(ts))
			return nil
		}
	}
	return protocol.Decodingf("invalid dateTime.iso8601 %q", text)
}

func unmarshalSlice(v protocol.Value, rv reflect.Value) error {
	if _, ok := v.(protocol.Nil); ok {
		rv.SetZero()
		return nil
	}
	if rv.Type().Elem().Kind() == reflect.Uint8 {
		b, ok := v.(protocol.Base64)
		if !ok {
			return mismatch(v, "a byte buffer")
		}
		rv.SetBytes(slices.Clone([]byte(b)))
		return nil
	}
	arr, ok := v.(protocol.Array)
	if !ok {
		return mismatch(v, "a sequence")
	}
	out := reflect.MakeSlice(rv.Type(), len(arr), len(arr))
	for i, item := range arr {
		if err := unmarshalValue(item, out.Index(i)); err != nil {
			return withPath(err, fmt.Sprintf("element %d", i))
		}
	}
	rv.Set(out)
	return nil
}

func unmarshalArray(v protocol.Value, rv reflect.Value) error {
	if rv.Type().Elem().Kind() == reflect.Uint8 {
		b, ok := v.(protocol.Base64)
		if !ok {
			return mismatch(v, "a byte buffer")
		}
		if len(b) != rv.Len() {
			return protocol.Decodingf("invalid length %d, expected %d bytes", len(b), rv.Len())
		}
		for i, c := range b {
			rv.Index(i).SetUint(uint64(c))
		}
		return nil
	}
	arr, ok := v.(protocol.Array)
	if !ok {
		return mismatch(v, "a sequence")
	}
	if len(arr) != rv.Len() {
		return protocol.Decodingf("invalid length %d, expected %d elements", len(arr), rv.Len())
	}
	for i, item := range arr {
		if err := unmarshalValue(item, rv.Index(i)); err != nil {
			return withPath(err, fmt.Sprintf("element %d", i))
		}
	}
	return nil
}

func unmarshalMap(v protocol.Value, rv reflect.Value) error {
	if _, ok := v.(protocol.Nil); ok {
		rv.SetZero()
		return nil
	}
	st, ok := v.(protocol.Struct)
	if !ok {
		return mismatch(v, "a map")
	}
	t := rv.Type()
	out := reflect.MakeMapWithSize(t, len(st))
	for _, m := range st {
		key := reflect.New(t.Key()).Elem()
		if err := unmarshalKey(m.Name, key); err != nil {
			return withPath(err, fmt.Sprintf("key %q", m.Name))
		}
		val := reflect.New(t.Elem()).Elem()
		if err := unmarshalValue(m.Value, val); err != nil {
			return withPath(err, fmt.Sprintf("member %q", m.Name))
		}
		out.SetMapIndex(key, val)
	}
	rv.Set(out)
	return nil
}

// unmarshalKey feeds a member name back through the key type's own decode
// path. Boolean keys accept only the text Marshal writes: "true" or "false".
func unmarshalKey(name string, key reflect.Value) error {
	if key.Kind() == reflect.Bool {
		switch name {
		case "true":
			key.SetBool(true)
		case "false":
			key.SetBool(false)
		default:
			return protocol.Decodingf("invalid boolean key %q", name)
		}
		return nil
	}
	return unmarshalValue(protocol.String(name), key)
}

func unmarshalStruct(v protocol.Value, rv reflect.Value) error {
	info := cachedFields(rv.Type())
	if len(info.fields) == 0 {
		switch val := v.(type) {
		case protocol.Nil:
			return nil
		case protocol.Struct:
			if len(val) == 0 {
				return nil
			}
		}
		return mismatch(v, "an empty struct")
	}
	st, ok := v.(protocol.Struct)
	if !ok {
		return mismatch(v, "a struct")
	}
	for _, m := range st {
		f, ok := info.lookup(m.Name)
		if !ok {
			continue
		}
		fv, err := fieldByIndexAlloc(rv, f.index)
		if err != nil {
			return err
		}
		if err := unmarshalValue(m.Value, fv); err != nil {
			return withPath(err, fmt.Sprintf("field %q", f.name))
		}
	}
	return nil
}

func fieldByIndexAlloc(rv reflect.Value, index []int) (reflect.Value, error) {
	for i, x := range index {
		if i > 0 && rv.Kind() == reflect.Pointer {
			if rv.IsNil() {
				rv.Set(reflect.New(rv.Type().Elem()))
			}
			rv = rv.Elem()
		}
		rv = rv.Field(x)
	}
	if !rv.CanSet() {
		return rv, protocol.Unsupportedf("field of %s is not settable", rv.Type())
	}
	return rv, nil
}

func unmarshalVariant(v protocol.Value, dec VariantDecoder) error {
	st, ok := v.(protocol.Struct)
	if !ok {
		return mismatch(v, "an enum")
	}
	if len(st) != 1 {
		return protocol.Decodingf("invalid length %d, expected an enum as a struct with exactly one member", len(st))
	}
	name, payload := st[0].Name, st[0].Value
	target, err := dec.DecodeVariant(name)
	if err != nil {
		return err
	}
	if target == nil {
		if inner, ok := payload.(protocol.Struct); ok && len(inner) == 0 {
			return nil
		}
		return withPath(mismatch(payload, "an empty struct"), fmt.Sprintf("variant %q", name))
	}
	if err := Unmarshal(payload, target); err != nil {
		return withPath(err, fmt.Sprintf("variant %q", name))
	}
	return nil
}

// Generic converts v into plain Go values: int32, bool, string, float64,
// []byte, []any, map[string]any or nil. DateTime becomes its raw string.
func Generic(v protocol.Value) (any, error) {
	switch val := v.(type) {
	case nil, protocol.Nil:
		return nil, nil
	case protocol.Int:
		return int32(val), nil
	case protocol.Bool:
		return bool(val), nil
	case protocol.String:
		return string(val), nil
	case protocol.Double:
		return float64(val), nil
	case protocol.DateTime:
		return string(val), nil
	case protocol.Base64:
		return []byte(val), nil
	case protocol.Array:
		out := make([]any, len(val))
		for i, item := range val {
			g, err := Generic(item)
			if err != nil {
				return nil, err
			}
			out[i] = g
		}
		return out, nil
	case protocol.Struct:
		out := make(map[string]any, len(val))
		for _, m := range val {
			g, err := Generic(m.Value)
			if err != nil {
				return nil, err
			}
			out[m.Name] = g
		}
		return out, nil
	default:
		return nil, protocol.Unsupportedf("unknown value %T", v)
	}
}

func mismatch(v protocol.Value, expected string) error {
	return protocol.Decodingf("invalid value: %s, expected %s", describe(v), expected)
}

func describe(v protocol.Value) string {
	switch val := v.(type) {
	case nil, protocol.Nil:
		return "nil"
	case protocol.Int:
		return fmt.Sprintf("integer `%d`", int32(val))
	case protocol.Bool:
		return fmt.Sprintf("boolean `%t`", bool(val))
	case protocol.String:
		return fmt.Sprintf("string %q", string(val))
	case protocol.Double:
		return fmt.Sprintf("floating point `%v`", float64(val))
	case protocol.DateTime:
		return fmt.Sprintf("dateTime %q", string(val))
	case protocol.Base64:
		return "byte array"
	case protocol.Array:
		return fmt.Sprintf("array of %d elements", len(val))
	case protocol.Struct:
		return fmt.Sprintf("struct of %d members", len(val))
	default:
		return fmt.Sprintf("%T", v)
	}
}

// withPath prefixes a decode failure with where it happened, keeping the
// FormatError kind intact.
func withPath(err error, where string) error {
	var fe *protocol.FormatError
	if errors.As(err, &fe) {
		return &protocol.FormatError{Kind: fe.Kind, Detail: where + ": " + fe.Detail}
	}
	return fmt.Errorf("%s: %w", where, err)
}
