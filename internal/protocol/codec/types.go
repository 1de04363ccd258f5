package codec

import (
	"fmt"

	"github.com/danmuck/xmlrpc/internal/protocol"
)

// Marshaler is implemented by types that render their own value tree.
type Marshaler interface {
	MarshalXMLRPC() (protocol.Value, error)
}

// Unmarshaler is implemented by types that decode their own value tree.
type Unmarshaler interface {
	UnmarshalXMLRPC(protocol.Value) error
}

// Variant is implemented by enum-like types. A nil payload is a unit
// variant; a Tuple payload is a tuple variant; a struct payload is a struct
// variant; anything else is a newtype variant.
type Variant interface {
	XMLRPCVariant() (name string, payload any)
}

// VariantDecoder selects the decode target for a variant name. It returns
// nil for unit variants, otherwise a pointer or Unmarshaler that receives
// the payload.
type VariantDecoder interface {
	DecodeVariant(name string) (payload any, err error)
}

// Char is a single Unicode code point, carried as a one-character String.
type Char rune

// Tuple is a fixed-arity sequence of heterogeneous values. It marshals as an
// Array. As a decode target each element must be a pointer and the Array
// length must match exactly.
type Tuple []any

// UnmarshalXMLRPC decodes an Array element-wise into the tuple's pointers.
func (t Tuple) UnmarshalXMLRPC(v protocol.Value) error {
	arr, ok := v.(protocol.Array)
	if !ok {
		return mismatch(v, "array")
	}
	if len(arr) != len(t) {
		return protocol.Decodingf("invalid length %d, expected tuple of %d elements", len(arr), len(t))
	}
	for i := range t {
		if err := Unmarshal(arr[i], t[i]); err != nil {
			return withPath(err, fmt.Sprintf("element %d", i))
		}
	}
	return nil
}
