package main

import (
	"context"
	"math"
	"testing"

	"github.com/danmuck/xmlrpc/internal/protocol"
	"github.com/danmuck/xmlrpc/internal/protocol/codec"
	"github.com/danmuck/xmlrpc/internal/server"
	"github.com/danmuck/xmlrpc/internal/testutil/testlog"
)

func dispatch(t *testing.T, name string, args any) protocol.Response {
	t.Helper()
	r := server.NewRegistry()
	registerMethods(r)
	params, err := codec.IntoParams(args)
	if err != nil {
		t.Fatalf("into params: %v", err)
	}
	return r.Dispatch(context.Background(), protocol.NewCall(name, params...))
}

func TestSum(t *testing.T) {
	testlog.Start(t)
	resp := dispatch(t, "sum", []int64{1, 2, 3_000_000_000})
	if resp.IsFault() {
		t.Fatalf("unexpected fault %+v", resp.Fault)
	}
	var total int64
	if err := codec.FromParams(resp.Params, &total); err != nil {
		t.Fatalf("from params: %v", err)
	}
	if total != 3_000_000_003 {
		t.Fatalf("unexpected total %d", total)
	}
}

func TestGreet(t *testing.T) {
	testlog.Start(t)
	title := "Dr."
	resp := dispatch(t, "greet", greeting{Name: "Ada", Title: &title})
	if resp.IsFault() || resp.Params[0] != protocol.String("Hello, Dr. Ada!") {
		t.Fatalf("unexpected response %+v", resp)
	}
}

func TestDivideByZeroFaults(t *testing.T) {
	testlog.Start(t)
	resp := dispatch(t, "divide", division{Dividend: 1, Divisor: 0})
	if !resp.IsFault() || resp.Fault.Code != 1 {
		t.Fatalf("expected fault, got %+v", resp)
	}
}

func TestShapeArea(t *testing.T) {
	testlog.Start(t)
	resp := dispatch(t, "shape.area", shape{kind: "Rect", width: 2, height: 3})
	if resp.IsFault() || resp.Params[0] != protocol.Double(6) {
		t.Fatalf("unexpected rect area %+v", resp)
	}
	resp = dispatch(t, "shape.area", shape{kind: "Circle", radius: 1})
	if resp.IsFault() || math.Abs(float64(resp.Params[0].(protocol.Double))-math.Pi) > 1e-9 {
		t.Fatalf("unexpected circle area %+v", resp)
	}
	resp = dispatch(t, "shape.area", shape{kind: "Point"})
	if resp.IsFault() || resp.Params[0] != protocol.Double(0) {
		t.Fatalf("unexpected point area %+v", resp)
	}
}

func TestTimeNowIsDateTime(t *testing.T) {
	testlog.Start(t)
	resp := dispatch(t, "time.now", codec.Tuple{})
	if resp.IsFault() || protocol.KindOf(resp.Params[0]) != protocol.KindDateTime {
		t.Fatalf("expected dateTime result, got %+v", resp)
	}
}
