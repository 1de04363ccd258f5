package codec

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/danmuck/xmlrpc/internal/protocol"
	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
)

type unit struct{}

// shape is an enum with unit, newtype, tuple and struct variants.
type shape struct {
	kind   string
	radius float64
	flag   bool
	label  string
	point  point
}

type point struct {
	X int32 `xmlrpc:"x"`
	Y int32 `xmlrpc:"y"`
}

func (s shape) XMLRPCVariant() (string, any) {
	switch s.kind {
	case "Circle":
		return s.kind, s.radius
	case "Baz":
		return s.kind, Tuple{s.flag, s.label}
	case "At":
		return s.kind, s.point
	default:
		return s.kind, nil
	}
}

func (s *shape) DecodeVariant(name string) (any, error) {
	s.kind = name
	switch name {
	case "Foo":
		return nil, nil
	case "Circle":
		return &s.radius, nil
	case "Baz":
		return Tuple{&s.flag, &s.label}, nil
	case "At":
		return &s.point, nil
	}
	return nil, protocol.Decodingf("unknown variant %q", name)
}

type account struct {
	Name    string            `xmlrpc:"name"`
	Balance uint64            `xmlrpc:"balance"`
	Tags    []string          `xmlrpc:"tags,omitempty"`
	Nick    *string           `xmlrpc:"nick"`
	Limits  map[string]int32  `xmlrpc:"limits"`
	Secret  string            `xmlrpc:"-"`
	Extra   map[int32]float64 `xmlrpc:"extra,omitempty"`
	audit
}

type audit struct {
	Created time.Time `xmlrpc:"created"`
}

func TestMarshalOverflowPolicy(t *testing.T) {
	v, err := Marshal(uint32(4_200_000_000))
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if v != protocol.String("4200000000") {
		t.Fatalf("expected decimal string, got %#v", v)
	}
	var back uint32
	if err := Unmarshal(v, &back); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if back != 4_200_000_000 {
		t.Fatalf("expected 4200000000, got %d", back)
	}

	v, err = Marshal(int32(2_000_000_000))
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if v != protocol.Int(2_000_000_000) {
		t.Fatalf("expected Int, got %#v", v)
	}

	v, _ = Marshal(int64(math.MinInt64))
	if v != protocol.String("-9223372036854775808") {
		t.Fatalf("expected wide negative as string, got %#v", v)
	}
}

func TestUnmarshalRejectsOutOfRangeIntegers(t *testing.T) {
	var small int8
	if err := Unmarshal(protocol.Int(300), &small); !errors.Is(err, protocol.ErrDecoding) {
		t.Fatalf("expected decoding error for int8 overflow, got %v", err)
	}
	var u uint16
	if err := Unmarshal(protocol.Int(-1), &u); !errors.Is(err, protocol.ErrDecoding) {
		t.Fatalf("expected decoding error for negative uint, got %v", err)
	}
	var n int32
	if err := Unmarshal(protocol.String("12x"), &n); !errors.Is(err, protocol.ErrDecoding) {
		t.Fatalf("expected decoding error for bad digits, got %v", err)
	}
}

func TestOptionConvention(t *testing.T) {
	var none *int32
	v, err := Marshal(none)
	if err != nil {
		t.Fatalf("marshal none: %v", err)
	}
	if !protocol.Equal(v, protocol.Array{}) {
		t.Fatalf("expected empty array, got %#v", v)
	}
	some := int32(33)
	v, err = Marshal(&some)
	if err != nil {
		t.Fatalf("marshal some: %v", err)
	}
	if !protocol.Equal(v, protocol.Array{protocol.Int(33)}) {
		t.Fatalf("expected single element array, got %#v", v)
	}

	var back *int32
	if err := Unmarshal(v, &back); err != nil {
		t.Fatalf("unmarshal some: %v", err)
	}
	if back == nil || *back != 33 {
		t.Fatalf("expected Some(33), got %v", back)
	}
	if err := Unmarshal(protocol.Array{}, &back); err != nil || back != nil {
		t.Fatalf("expected None, got %v (%v)", back, err)
	}
	if err := Unmarshal(protocol.Int(7), &back); err != nil || back == nil || *back != 7 {
		t.Fatalf("expected bare value as present, got %v (%v)", back, err)
	}
	err = Unmarshal(protocol.Array{protocol.Int(1), protocol.Int(2)}, &back)
	if err == nil || !strings.Contains(err.Error(), "array with a single element expected.") {
		t.Fatalf("expected single element error, got %v", err)
	}
}

func TestEnumConvention(t *testing.T) {
	cases := []struct {
		in   shape
		want protocol.Value
	}{
		{shape{kind: "Foo"}, protocol.Struct{{Name: "Foo", Value: protocol.Struct{}}}},
		{shape{kind: "Baz", flag: false, label: "tsk"}, protocol.Struct{{Name: "Baz", Value: protocol.Array{protocol.Bool(false), protocol.String("tsk")}}}},
		{shape{kind: "Circle", radius: 1.5}, protocol.Struct{{Name: "Circle", Value: protocol.Double(1.5)}}},
		{shape{kind: "At", point: point{X: 1, Y: -2}}, protocol.Struct{{Name: "At", Value: protocol.Struct{
			{Name: "x", Value: protocol.Int(1)},
			{Name: "y", Value: protocol.Int(-2)},
		}}}},
	}
	for _, tc := range cases {
		got, err := Marshal(tc.in)
		if err != nil {
			t.Fatalf("marshal %s: %v", tc.in.kind, err)
		}
		if diff := cmp.Diff(tc.want, got); diff != "" {
			t.Fatalf("marshal %s mismatch (-want +got):\n%s", tc.in.kind, diff)
		}
		var back shape
		if err := Unmarshal(got, &back); err != nil {
			t.Fatalf("unmarshal %s: %v", tc.in.kind, err)
		}
		if diff := cmp.Diff(tc.in, back, cmp.AllowUnexported(shape{})); diff != "" {
			t.Fatalf("round trip %s mismatch (-want +got):\n%s", tc.in.kind, diff)
		}
	}
}

func TestEnumRejectsWrongShape(t *testing.T) {
	bad := []protocol.Value{
		protocol.String("Foo"),
		protocol.Struct{},
		protocol.Struct{{Name: "Foo", Value: protocol.Struct{}}, {Name: "Baz", Value: protocol.Array{}}},
		protocol.Struct{{Name: "Foo", Value: protocol.Int(1)}},
		protocol.Struct{{Name: "Nope", Value: protocol.Struct{}}},
		protocol.Struct{{Name: "Baz", Value: protocol.Array{protocol.Bool(true)}}},
	}
	for _, v := range bad {
		var s shape
		if err := Unmarshal(v, &s); !errors.Is(err, protocol.ErrDecoding) {
			t.Fatalf("expected decoding error for %#v, got %v", v, err)
		}
	}
}

func TestMapKeyCoercion(t *testing.T) {
	in := map[int32]string{12: "a", -33: "b", 44: "c"}
	v, err := Marshal(in)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	st, ok := v.(protocol.Struct)
	if !ok {
		t.Fatalf("expected struct, got %#v", v)
	}
	names := st.Names()
	if diff := cmp.Diff([]string{"-33", "12", "44"}, names); diff != "" {
		t.Fatalf("keys mismatch (-want +got):\n%s", diff)
	}
	var back map[int32]string
	if err := Unmarshal(v, &back); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if diff := cmp.Diff(in, back); diff != "" {
		t.Fatalf("round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestMapKeysOfOtherScalarKinds(t *testing.T) {
	bools := map[bool]int32{true: 1, false: 0}
	v, err := Marshal(bools)
	if err != nil {
		t.Fatalf("marshal bool keys: %v", err)
	}
	var backBools map[bool]int32
	if err := Unmarshal(v, &backBools); err != nil {
		t.Fatalf("unmarshal bool keys: %v", err)
	}
	if diff := cmp.Diff(bools, backBools); diff != "" {
		t.Fatalf("bool keys mismatch (-want +got):\n%s", diff)
	}

	chars := map[Char]string{'a': "alpha", 'ß': "eszett"}
	v, err = Marshal(chars)
	if err != nil {
		t.Fatalf("marshal char keys: %v", err)
	}
	var backChars map[Char]string
	if err := Unmarshal(v, &backChars); err != nil {
		t.Fatalf("unmarshal char keys: %v", err)
	}
	if diff := cmp.Diff(chars, backChars); diff != "" {
		t.Fatalf("char keys mismatch (-want +got):\n%s", diff)
	}

	wide := map[uint64]bool{math.MaxUint64: true}
	v, err = Marshal(wide)
	if err != nil {
		t.Fatalf("marshal wide keys: %v", err)
	}
	var backWide map[uint64]bool
	if err := Unmarshal(v, &backWide); err != nil || !backWide[math.MaxUint64] {
		t.Fatalf("expected wide key round trip, got %v (%v)", backWide, err)
	}
}

func TestMapKeyMustBeScalar(t *testing.T) {
	_, err := Marshal(map[[2]int32]string{{1, 2}: "pair"})
	if !errors.Is(err, protocol.ErrUnsupportedFormat) {
		t.Fatalf("expected unsupported format error, got %v", err)
	}
	if !strings.Contains(err.Error(), "Key must be a bool, int, float, char or string") {
		t.Fatalf("unexpected message: %v", err)
	}
	if _, err := Marshal(map[*int32]string{nil: "x"}); !errors.Is(err, protocol.ErrUnsupportedFormat) {
		t.Fatalf("expected unsupported format for option key, got %v", err)
	}
}

func TestMapValueBeforeKeyPanics(t *testing.T) {
	defer func() {
		r := recover()
		if r == nil || !strings.Contains(fmt.Sprint(r), "before its key") {
			t.Fatalf("expected misuse panic, got %v", r)
		}
	}()
	enc := &structEncoder{}
	_ = enc.value(reflectValue(int32(1)))
}

func TestUnsupportedKinds(t *testing.T) {
	for _, v := range []any{make(chan int), func() {}, complex(1, 2)} {
		if _, err := Marshal(v); !errors.Is(err, protocol.ErrUnsupportedFormat) {
			t.Fatalf("expected unsupported format for %T, got %v", v, err)
		}
	}
}

func TestScalarsAndUnits(t *testing.T) {
	cases := []struct {
		in   any
		want protocol.Value
	}{
		{true, protocol.Bool(true)},
		{3.25, protocol.Double(3.25)},
		{"hi", protocol.String("hi")},
		{Char('x'), protocol.String("x")},
		{[]byte("raw"), protocol.Base64("raw")},
		{[3]byte{1, 2, 3}, protocol.Base64{1, 2, 3}},
		{unit{}, protocol.Struct{}},
		{nil, protocol.Nil{}},
		{protocol.Int(5), protocol.Int(5)},
		{time.Date(1998, 7, 17, 14, 8, 55, 0, time.UTC), protocol.DateTime("19980717T14:08:55")},
		{Tuple{int32(1), "a"}, protocol.Array{protocol.Int(1), protocol.String("a")}},
	}
	for _, tc := range cases {
		got, err := Marshal(tc.in)
		if err != nil {
			t.Fatalf("marshal %#v: %v", tc.in, err)
		}
		if !protocol.Equal(got, tc.want) {
			t.Fatalf("marshal %#v: got %#v want %#v", tc.in, got, tc.want)
		}
	}

	var u unit
	if err := Unmarshal(protocol.Struct{}, &u); err != nil {
		t.Fatalf("unit from empty struct: %v", err)
	}
	if err := Unmarshal(protocol.Struct{{Name: "a", Value: protocol.Int(1)}}, &u); !errors.Is(err, protocol.ErrDecoding) {
		t.Fatalf("expected unit to reject members, got %v", err)
	}
	var c Char
	if err := Unmarshal(protocol.String("ab"), &c); !errors.Is(err, protocol.ErrDecoding) {
		t.Fatalf("expected char to reject two code points, got %v", err)
	}
	var buf []byte
	if err := Unmarshal(protocol.String("raw"), &buf); !errors.Is(err, protocol.ErrDecoding) {
		t.Fatalf("expected byte buffer to require base64, got %v", err)
	}
}

func TestFloatTargets(t *testing.T) {
	var f float64
	if err := Unmarshal(protocol.Int(4), &f); err != nil || f != 4 {
		t.Fatalf("expected int widening, got %v (%v)", f, err)
	}
	if err := Unmarshal(protocol.String("2.5"), &f); err != nil || f != 2.5 {
		t.Fatalf("expected string parse, got %v (%v)", f, err)
	}
	var f32 float32
	if err := Unmarshal(protocol.Int(4), &f32); !errors.Is(err, protocol.ErrDecoding) {
		t.Fatalf("expected float32 to reject int, got %v", err)
	}
}

func TestStructRoundTrip(t *testing.T) {
	nick := "al"
	in := account{
		Name:    "alice",
		Balance: 5_000_000_000,
		Tags:    []string{"a", "b"},
		Nick:    &nick,
		Limits:  map[string]int32{"daily": 10, "monthly": 200},
		Secret:  "hidden",
		audit:   audit{Created: time.Date(2020, 1, 2, 3, 4, 5, 0, time.UTC)},
	}
	v, err := Marshal(in)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	st := v.(protocol.Struct)
	if diff := cmp.Diff([]string{"name", "balance", "tags", "nick", "limits", "created"}, st.Names()); diff != "" {
		t.Fatalf("member order mismatch (-want +got):\n%s", diff)
	}
	if got, _ := st.Get("balance"); got != protocol.String("5000000000") {
		t.Fatalf("expected wide balance as string, got %#v", got)
	}

	var back account
	if err := Unmarshal(v, &back); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	in.Secret = ""
	if diff := cmp.Diff(in, back, cmp.AllowUnexported(account{}), cmpopts.EquateEmpty()); diff != "" {
		t.Fatalf("round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestStructDecodingIgnoresUnknownAndUsesLastDuplicate(t *testing.T) {
	v := protocol.Struct{
		{Name: "x", Value: protocol.Int(1)},
		{Name: "unknown", Value: protocol.String("skip")},
		{Name: "x", Value: protocol.Int(9)},
		{Name: "Y", Value: protocol.Int(4)},
	}
	var p point
	if err := Unmarshal(v, &p); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if p != (point{X: 9, Y: 4}) {
		t.Fatalf("unexpected point %+v", p)
	}
}

func TestDecodeErrorsNameThePath(t *testing.T) {
	v := protocol.Struct{{Name: "limits", Value: protocol.Struct{{Name: "daily", Value: protocol.String("lots")}}}}
	var a account
	err := Unmarshal(v, &a)
	if !errors.Is(err, protocol.ErrDecoding) {
		t.Fatalf("expected decoding error, got %v", err)
	}
	if !strings.Contains(err.Error(), `field "limits": member "daily"`) {
		t.Fatalf("expected path in error, got %v", err)
	}
}

func TestSequenceArity(t *testing.T) {
	arr := protocol.Array{protocol.Int(1), protocol.Int(2), protocol.Int(3)}
	var fixed [2]int32
	if err := Unmarshal(arr, &fixed); !errors.Is(err, protocol.ErrDecoding) {
		t.Fatalf("expected arity error for array, got %v", err)
	}
	var a, b int32
	if err := Unmarshal(arr, Tuple{&a, &b}); !errors.Is(err, protocol.ErrDecoding) {
		t.Fatalf("expected arity error for tuple, got %v", err)
	}
	var c int32
	if err := Unmarshal(arr, Tuple{&a, &b, &c}); err != nil || a != 1 || b != 2 || c != 3 {
		t.Fatalf("expected tuple decode, got %d %d %d (%v)", a, b, c, err)
	}
	var dyn []int32
	if err := Unmarshal(arr, &dyn); err != nil || len(dyn) != 3 {
		t.Fatalf("expected slice of 3, got %v (%v)", dyn, err)
	}
}

func TestNilDecodesAsAbsent(t *testing.T) {
	var (
		p  *int32
		s  []string
		m  map[string]int32
		i  any
		un unit
	)
	for _, out := range []any{&p, &s, &m, &i, &un} {
		if err := Unmarshal(protocol.Nil{}, out); err != nil {
			t.Fatalf("nil into %T: %v", out, err)
		}
	}
	if p != nil || s != nil || m != nil || i != nil {
		t.Fatalf("expected zero values, got %v %v %v %v", p, s, m, i)
	}
}

func TestGenericTargets(t *testing.T) {
	v := protocol.Struct{
		{Name: "n", Value: protocol.Int(1)},
		{Name: "list", Value: protocol.Array{protocol.Bool(true), protocol.Double(0.5)}},
		{Name: "raw", Value: protocol.Base64("xy")},
		{Name: "none", Value: protocol.Nil{}},
	}
	var out any
	if err := Unmarshal(v, &out); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	want := map[string]any{
		"n":    int32(1),
		"list": []any{true, 0.5},
		"raw":  []byte("xy"),
		"none": nil,
	}
	if diff := cmp.Diff(want, out); diff != "" {
		t.Fatalf("generic mismatch (-want +got):\n%s", diff)
	}
}

func TestValueFieldsPassThrough(t *testing.T) {
	type envelope struct {
		Any  protocol.Value  `xmlrpc:"any"`
		Text protocol.String `xmlrpc:"text"`
	}
	v := protocol.Struct{
		{Name: "any", Value: protocol.Array{protocol.Int(1)}},
		{Name: "text", Value: protocol.String("t")},
	}
	var e envelope
	if err := Unmarshal(v, &e); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !protocol.Equal(e.Any, protocol.Array{protocol.Int(1)}) || e.Text != "t" {
		t.Fatalf("unexpected envelope %+v", e)
	}
	err := Unmarshal(protocol.Struct{{Name: "text", Value: protocol.Int(1)}}, &e)
	if !errors.Is(err, protocol.ErrDecoding) {
		t.Fatalf("expected mismatch for typed value field, got %v", err)
	}
}

func TestUnmarshalRequiresPointer(t *testing.T) {
	var n int32
	if err := Unmarshal(protocol.Int(1), n); !errors.Is(err, protocol.ErrUnsupportedFormat) {
		t.Fatalf("expected unsupported target error, got %v", err)
	}
}

func TestTimeRoundTripKeepsInstant(t *testing.T) {
	in := time.Date(2024, 1, 2, 10, 0, 0, 0, time.FixedZone("CET", 60*60))
	v, err := Marshal(in)
	if err != nil {
		t.Fatalf("marshal time: %v", err)
	}
	if v != protocol.DateTime("20240102T09:00:00") {
		t.Fatalf("expected UTC wire form, got %#v", v)
	}
	var out time.Time
	if err := Unmarshal(v, &out); err != nil {
		t.Fatalf("unmarshal time: %v", err)
	}
	if !out.Equal(in) {
		t.Fatalf("instant shifted: sent %v got %v", in, out)
	}
}

func TestBoolKeysAcceptOnlyCanonicalText(t *testing.T) {
	for _, name := range []string{"1", "t", "TRUE", "False"} {
		var back map[bool]int32
		err := Unmarshal(protocol.Struct{{Name: name, Value: protocol.Int(1)}}, &back)
		if !errors.Is(err, protocol.ErrDecoding) {
			t.Fatalf("key %q: expected decoding error, got %v", name, err)
		}
	}
}
