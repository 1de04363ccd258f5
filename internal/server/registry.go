// Package server dispatches XML-RPC calls to registered handlers and serves
// them over HTTP.
package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"sync"
	"time"

	"github.com/danmuck/xmlrpc/internal/observability"
	"github.com/danmuck/xmlrpc/internal/protocol"
	"github.com/rs/zerolog/log"
)

const (
	FaultInvalidRequest int32 = -1
	FaultBadParams      int32 = 400
	FaultNotFound       int32 = 404
	FaultInternal       int32 = 500

	MethodListMethods = "system.listMethods"

	// unknownMethodLabel stands in for unregistered names in metrics so
	// callers cannot mint new series.
	unknownMethodLabel = "<unknown>"
)

// HandlerFunc answers one call. It may run concurrently with itself.
type HandlerFunc func(ctx context.Context, params protocol.Params) protocol.Response

// MissingFunc answers calls for names with no registered handler.
type MissingFunc func(ctx context.Context, call protocol.Call) protocol.Response

// Registry maps method names to handlers. Lookups are safe from many
// goroutines while registration is in progress.
type Registry struct {
	mu        sync.RWMutex
	handlers  map[string]HandlerFunc
	onMissing MissingFunc
}

// NewRegistry returns a registry holding only system.listMethods.
func NewRegistry() *Registry {
	r := &Registry{
		handlers:  make(map[string]HandlerFunc),
		onMissing: missingMethod,
	}
	r.Register(MethodListMethods, func(context.Context, protocol.Params) protocol.Response {
		names := r.Methods()
		out := make(protocol.Array, 0, len(names))
		for _, name := range names {
			out = append(out, protocol.String(name))
		}
		return protocol.Success(out)
	})
	return r
}

func missingMethod(_ context.Context, call protocol.Call) protocol.Response {
	return protocol.Failure(FaultNotFound, fmt.Sprintf("Requested method does not exist: %s", call.Name))
}

// Register installs h under name, replacing any previous handler.
func (r *Registry) Register(name string, h HandlerFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[name] = h
}

// SetOnMissing replaces the fallback for unknown methods; nil restores the
// default 404 fault.
func (r *Registry) SetOnMissing(fn MissingFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if fn == nil {
		fn = missingMethod
	}
	r.onMissing = fn
}

func (r *Registry) Lookup(name string) (HandlerFunc, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.handlers[name]
	return h, ok
}

// Methods returns the registered names in sorted order.
func (r *Registry) Methods() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.handlers))
	for name := range r.handlers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Dispatch runs the handler for call.Name. A panicking handler becomes a
// 500 fault.
func (r *Registry) Dispatch(ctx context.Context, call protocol.Call) (resp protocol.Response) {
	start := time.Now()
	h, ok := r.Lookup(call.Name)
	outcome := observability.OutcomeOK
	label := call.Name
	if !ok {
		label = unknownMethodLabel
	}
	defer func() {
		if rec := recover(); rec != nil {
			log.Error().Str("method", call.Name).Interface("panic", rec).Msg("handler panicked")
			resp = protocol.Failure(FaultInternal, fmt.Sprintf("%v", rec))
		}
		if outcome == observability.OutcomeOK && resp.IsFault() {
			outcome = observability.OutcomeFault
		}
		observability.RecordRPC(label, outcome, time.Since(start))
	}()

	if !ok {
		outcome = observability.OutcomeMissing
		r.mu.RLock()
		missing := r.onMissing
		r.mu.RUnlock()
		return missing(ctx, call)
	}
	params := call.Params
	if params == nil {
		params = protocol.Params{}
	}
	return h(ctx, params)
}

// ServeXML decodes one methodCall document, dispatches it and returns the
// encoded methodResponse. An undecodable call is answered with fault -1.
func (r *Registry) ServeXML(ctx context.Context, body io.Reader) []byte {
	call, err := protocol.DecodeCall(body)
	if err != nil {
		observability.RecordRPC(unknownMethodLabel, observability.OutcomeDecodeError, 0)
		log.Warn().Err(err).Msg("undecodable call")
		return protocol.EncodeResponse(protocol.Failure(FaultInvalidRequest, err.Error()))
	}
	return protocol.EncodeResponse(r.Dispatch(ctx, call))
}

// faultFrom maps a handler error onto a fault response.
func faultFrom(err error) protocol.Response {
	var fault *protocol.Fault
	if errors.As(err, &fault) {
		return protocol.Failure(fault.Code, fault.Message)
	}
	return protocol.Failure(FaultInternal, err.Error())
}
