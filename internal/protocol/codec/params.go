package codec

import (
	"errors"

	"github.com/danmuck/xmlrpc/internal/protocol"
)

// IntoParams marshals v into positional params. A value that marshals to an
// Array spreads into one param per element, Nil yields no params, and
// anything else is one param.
func IntoParams(v any) (protocol.Params, error) {
	tree, err := Marshal(v)
	if err != nil {
		return nil, err
	}
	return protocol.SplitParams(tree), nil
}

// FromParams decodes positional params into out. A single param is decoded
// directly; zero or several params are decoded as one Array.
func FromParams(params protocol.Params, out any) error {
	var tree protocol.Value
	if len(params) == 1 {
		tree = params[0]
	} else {
		tree = protocol.Array(params)
	}
	if tree == nil {
		tree = protocol.Array{}
	}
	if err := Unmarshal(tree, out); err != nil {
		var fe *protocol.FormatError
		if errors.As(err, &fe) && fe.Kind != protocol.Decoding {
			return &protocol.FormatError{Kind: fe.Kind, Detail: "Failed to convert XML-RPC to structure. " + fe.Detail}
		}
		return protocol.Decodingf("Failed to convert XML-RPC to structure. %v", err)
	}
	return nil
}
