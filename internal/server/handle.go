package server

import (
	"context"
	"fmt"

	"github.com/danmuck/xmlrpc/internal/protocol"
	"github.com/danmuck/xmlrpc/internal/protocol/codec"
)

// FailureFunc turns a bridge failure into the response sent to the caller.
type FailureFunc func(err error) protocol.Response

type handleOptions struct {
	onDecode FailureFunc
	onEncode FailureFunc
}

type HandleOption func(*handleOptions)

// WithDecodeFailure overrides the response for params that do not decode
// into the request type.
func WithDecodeFailure(fn FailureFunc) HandleOption {
	return func(o *handleOptions) {
		if fn != nil {
			o.onDecode = fn
		}
	}
}

// WithEncodeFailure overrides the response for results that do not encode.
func WithEncodeFailure(fn FailureFunc) HandleOption {
	return func(o *handleOptions) {
		if fn != nil {
			o.onEncode = fn
		}
	}
}

func decodeFailure(err error) protocol.Response {
	return protocol.Failure(FaultBadParams, fmt.Sprintf("Invalid parameters: %v", err))
}

func encodeFailure(err error) protocol.Response {
	return protocol.Failure(FaultInternal, fmt.Sprintf("Failed to encode response data: %v", err))
}

// Handle registers a typed handler. Params are decoded into Req with
// codec.FromParams and the result is spread back with codec.IntoParams.
// Returning a *protocol.Fault sends that fault; any other error is a 500
// fault.
func Handle[Req, Res any](r *Registry, name string, fn func(ctx context.Context, req Req) (Res, error), opts ...HandleOption) {
	o := handleOptions{onDecode: decodeFailure, onEncode: encodeFailure}
	for _, opt := range opts {
		opt(&o)
	}
	r.Register(name, func(ctx context.Context, params protocol.Params) protocol.Response {
		var req Req
		if err := codec.FromParams(params, &req); err != nil {
			return o.onDecode(err)
		}
		res, err := fn(ctx, req)
		if err != nil {
			return faultFrom(err)
		}
		out, err := codec.IntoParams(res)
		if err != nil {
			return o.onEncode(err)
		}
		return protocol.Success(out...)
	})
}
