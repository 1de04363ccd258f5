package protocol

import "strconv"

// Kind tags the variant held by a Value.
type Kind uint8

const (
	KindInvalid Kind = iota
	KindInt
	KindBool
	KindString
	KindDouble
	KindDateTime
	KindBase64
	KindArray
	KindStruct
	KindNil
)

var kindNames = [...]string{
	KindInvalid:  "invalid",
	KindInt:      "i4",
	KindBool:     "boolean",
	KindString:   "string",
	KindDouble:   "double",
	KindDateTime: "dateTime.iso8601",
	KindBase64:   "base64",
	KindArray:    "array",
	KindStruct:   "struct",
	KindNil:      "nil",
}

// String returns the wire tag name of k.
func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "kind(" + strconv.Itoa(int(k)) + ")"
}

// Value is one node of the XML-RPC value tree. The set of implementations is
// closed: Int, Bool, String, Double, DateTime, Base64, Array, Struct and Nil.
type Value interface {
	Kind() Kind
	isValue()
}

// Int is a signed 32-bit integer (<i4> / <int>).
type Int int32

// Bool is <boolean>.
type Bool bool

// String is <string>, also produced for untyped <value> text. Invalid UTF-8
// and control characters other than tab, newline and carriage return are
// encoded as U+FFFD, since XML 1.0 cannot carry them.
type String string

// Double is a 64-bit float.
type Double float64

// DateTime is passed through verbatim without validation.
//
// Deprecated: XML-RPC dateTime carries no timezone; prefer a String.
type DateTime string

// Base64 is raw binary data, base64 encoded on the wire.
type Base64 []byte

// Array is an ordered sequence of values.
type Array []Value

// Struct is an ordered list of named members. Names are not required to be
// unique; decoding keeps duplicates in document order.
type Struct []Member

// Nil is the <nil/> extension value, also used for "no value".
type Nil struct{}

// Member is one name/value pair of a Struct.
type Member struct {
	Name  string
	Value Value
}

func (Int) Kind() Kind      { return KindInt }
func (Bool) Kind() Kind     { return KindBool }
func (String) Kind() Kind   { return KindString }
func (Double) Kind() Kind   { return KindDouble }
func (DateTime) Kind() Kind { return KindDateTime }
func (Base64) Kind() Kind   { return KindBase64 }
func (Array) Kind() Kind    { return KindArray }
func (Struct) Kind() Kind   { return KindStruct }
func (Nil) Kind() Kind      { return KindNil }

func (Int) isValue()      {}
func (Bool) isValue()     {}
func (String) isValue()   {}
func (Double) isValue()   {}
func (DateTime) isValue() {}
func (Base64) isValue()   {}
func (Array) isValue()    {}
func (Struct) isValue()   {}
func (Nil) isValue()      {}

// KindOf returns the kind of v, treating a nil interface as Nil.
func KindOf(v Value) Kind {
	if v == nil {
		return KindNil
	}
	return v.Kind()
}

// NewMember builds a struct member.
func NewMember(name string, v Value) Member {
	return Member{Name: name, Value: v}
}

// Get returns the value of the last member called name.
func (s Struct) Get(name string) (Value, bool) {
	for i := len(s) - 1; i >= 0; i-- {
		if s[i].Name == name {
			return s[i].Value, true
		}
	}
	return nil, false
}

// Names lists member names in declaration order, duplicates included.
func (s Struct) Names() []string {
	out := make([]string, 0, len(s))
	for _, m := range s {
		out = append(out, m.Name)
	}
	return out
}

// Equal reports whether a and b are the same tree. Doubles compare by value,
// so NaN is never equal to itself.
func Equal(a, b Value) bool {
	if KindOf(a) != KindOf(b) {
		return false
	}
	switch av := a.(type) {
	case Array:
		bv := b.(Array)
		if len(av) != len(bv) {
			return false
		}
		for i := range av {
			if !Equal(av[i], bv[i]) {
				return false
			}
		}
		return true
	case Struct:
		bv := b.(Struct)
		if len(av) != len(bv) {
			return false
		}
		for i := range av {
			if av[i].Name != bv[i].Name || !Equal(av[i].Value, bv[i].Value) {
				return false
			}
		}
		return true
	case Base64:
		bv := b.(Base64)
		if len(av) != len(bv) {
			return false
		}
		for i := range av {
			if av[i] != bv[i] {
				return false
			}
		}
		return true
	case nil, Nil:
		return true
	default:
		return a == b
	}
}
