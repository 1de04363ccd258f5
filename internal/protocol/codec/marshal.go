package codec

import (
	"math"
	"reflect"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/danmuck/xmlrpc/internal/protocol"
)

// DateTimeLayout is the compact ISO 8601 form used for time.Time values.
// The form carries no offset, so times are written in UTC.
const DateTimeLayout = "20060102T15:04:05"

var (
	valueType     = reflect.TypeFor[protocol.Value]()
	marshalerType = reflect.TypeFor[Marshaler]()
	variantType   = reflect.TypeFor[Variant]()
	charType      = reflect.TypeFor[Char]()
	timeType      = reflect.TypeFor[time.Time]()
)

// Marshal converts v into a value tree. It fails only with an
// UnsupportedFormat error, for channels, functions, complex numbers and map
// keys that do not encode to a scalar.
func Marshal(v any) (protocol.Value, error) {
	if v == nil {
		return protocol.Nil{}, nil
	}
	return marshalValue(reflect.ValueOf(v))
}

func marshalValue(rv reflect.Value) (protocol.Value, error) {
	if !rv.IsValid() {
		return protocol.Nil{}, nil
	}
	switch rv.Kind() {
	case reflect.Interface:
		if rv.IsNil() {
			return protocol.Nil{}, nil
		}
		return marshalValue(rv.Elem())
	case reflect.Pointer:
		if rv.IsNil() {
			return protocol.Array{}, nil
		}
		inner, err := marshalValue(rv.Elem())
		if err != nil {
			return nil, err
		}
		return protocol.Array{inner}, nil
	}

	t := rv.Type()
	if t.Implements(valueType) {
		return rv.Interface().(protocol.Value), nil
	}
	if m, ok := asInterface[Marshaler](rv, marshalerType); ok {
		return m.MarshalXMLRPC()
	}
	if v, ok := asInterface[Variant](rv, variantType); ok {
		return marshalVariant(v)
	}
	switch t {
	case charType:
		return protocol.String(string(rune(rv.Int()))), nil
	case timeType:
		return protocol.DateTime(rv.Interface().(time.Time).UTC().Format(DateTimeLayout)), nil
	}

	switch rv.Kind() {
	case reflect.Bool:
		return protocol.Bool(rv.Bool()), nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		n := rv.Int()
		if n >= math.MinInt32 && n <= math.MaxInt32 {
			return protocol.Int(n), nil
		}
		return protocol.String(strconv.FormatInt(n, 10)), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		n := rv.Uint()
		if n <= math.MaxInt32 {
			return protocol.Int(n), nil
		}
		return protocol.String(strconv.FormatUint(n, 10)), nil
	case reflect.Float32, reflect.Float64:
		return protocol.Double(rv.Float()), nil
	case reflect.String:
		return protocol.String(rv.String()), nil
	case reflect.Slice:
		if t.Elem().Kind() == reflect.Uint8 {
			return protocol.Base64(slices.Clone(rv.Bytes())), nil
		}
		return marshalSeq(rv)
	case reflect.Array:
		if t.Elem().Kind() == reflect.Uint8 {
			buf := make([]byte, rv.Len())
			for i := range buf {
				buf[i] = byte(rv.Index(i).Uint())
			}
			return protocol.Base64(buf), nil
		}
		return marshalSeq(rv)
	case reflect.Map:
		return marshalMap(rv)
	case reflect.Struct:
		return marshalStruct(rv)
	default:
		return nil, protocol.Unsupportedf("type %s cannot be represented", t)
	}
}

// asInterface finds an implementation of I on the value or, when
// addressable, on its pointer.
func asInterface[I any](rv reflect.Value, it reflect.Type) (I, bool) {
	var zero I
	if rv.Type().Implements(it) {
		return rv.Interface().(I), true
	}
	if rv.CanAddr() && rv.Addr().Type().Implements(it) {
		return rv.Addr().Interface().(I), true
	}
	return zero, false
}

func marshalVariant(v Variant) (protocol.Value, error) {
	name, payload := v.XMLRPCVariant()
	var inner protocol.Value = protocol.Struct{}
	if payload != nil {
		var err error
		if inner, err = Marshal(payload); err != nil {
			return nil, err
		}
	}
	return protocol.Struct{{Name: name, Value: inner}}, nil
}

func marshalSeq(rv reflect.Value) (protocol.Value, error) {
	out := make(protocol.Array, 0, rv.Len())
	for i := 0; i < rv.Len(); i++ {
		item, err := marshalValue(rv.Index(i))
		if err != nil {
			return nil, err
		}
		out = append(out, item)
	}
	return out, nil
}

func marshalStruct(rv reflect.Value) (protocol.Value, error) {
	info := cachedFields(rv.Type())
	out := make(protocol.Struct, 0, len(info.fields))
	for _, f := range info.fields {
		fv := rv.FieldByIndex(f.index)
		if f.omitEmpty && isEmptyValue(fv) {
			continue
		}
		v, err := marshalValue(fv)
		if err != nil {
			return nil, err
		}
		out = append(out, protocol.Member{Name: f.name, Value: v})
	}
	return out, nil
}

func marshalMap(rv reflect.Value) (protocol.Value, error) {
	enc := &structEncoder{members: make(protocol.Struct, 0, rv.Len())}
	iter := rv.MapRange()
	for iter.Next() {
		if err := enc.key(iter.Key()); err != nil {
			return nil, err
		}
		if err := enc.value(iter.Value()); err != nil {
			return nil, err
		}
	}
	return enc.end(), nil
}

// structEncoder assembles a Struct from alternating key and value calls.
type structEncoder struct {
	members protocol.Struct
	nextKey *string
}

func (e *structEncoder) key(k reflect.Value) error {
	kv, err := marshalValue(k)
	if err != nil {
		return err
	}
	name, err := keyText(kv)
	if err != nil {
		return err
	}
	e.nextKey = &name
	return nil
}

// value panics when no key is pending; only a broken caller can get here.
func (e *structEncoder) value(v reflect.Value) error {
	if e.nextKey == nil {
		panic("codec: map value encoded before its key")
	}
	name := *e.nextKey
	e.nextKey = nil
	mv, err := marshalValue(v)
	if err != nil {
		return err
	}
	e.members = append(e.members, protocol.Member{Name: name, Value: mv})
	return nil
}

// end returns the members ordered by key text.
func (e *structEncoder) end() protocol.Struct {
	slices.SortStableFunc(e.members, func(a, b protocol.Member) int {
		return strings.Compare(a.Name, b.Name)
	})
	return e.members
}

func keyText(v protocol.Value) (string, error) {
	switch kv := v.(type) {
	case protocol.Bool:
		return strconv.FormatBool(bool(kv)), nil
	case protocol.Int:
		return strconv.FormatInt(int64(kv), 10), nil
	case protocol.Double:
		return strconv.FormatFloat(float64(kv), 'f', -1, 64), nil
	case protocol.String:
		return string(kv), nil
	default:
		return "", protocol.Unsupportedf("Key must be a bool, int, float, char or string, got %s.", protocol.KindOf(v))
	}
}
