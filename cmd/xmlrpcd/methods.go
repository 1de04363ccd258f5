package main

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/danmuck/xmlrpc/internal/protocol"
	"github.com/danmuck/xmlrpc/internal/protocol/codec"
	"github.com/danmuck/xmlrpc/internal/server"
)

type greeting struct {
	Name     string  `xmlrpc:"name"`
	Greeting string  `xmlrpc:"greeting,omitempty"`
	Title    *string `xmlrpc:"title"`
}

type division struct {
	Dividend float64 `xmlrpc:"dividend"`
	Divisor  float64 `xmlrpc:"divisor"`
}

type shape struct {
	kind   string
	radius float64
	width  float64
	height float64
}

func (s shape) XMLRPCVariant() (string, any) {
	switch s.kind {
	case "Circle":
		return s.kind, s.radius
	case "Rect":
		return s.kind, codec.Tuple{s.width, s.height}
	default:
		return s.kind, nil
	}
}

func (s *shape) DecodeVariant(name string) (any, error) {
	s.kind = name
	switch name {
	case "Point":
		return nil, nil
	case "Circle":
		return &s.radius, nil
	case "Rect":
		return codec.Tuple{&s.width, &s.height}, nil
	}
	return nil, protocol.Decodingf("unknown shape %q", name)
}

func (s shape) area() float64 {
	switch s.kind {
	case "Circle":
		return math.Pi * s.radius * s.radius
	case "Rect":
		return s.width * s.height
	default:
		return 0
	}
}

func registerMethods(r *server.Registry) {
	r.Register("echo", func(_ context.Context, params protocol.Params) protocol.Response {
		return protocol.Success(params...)
	})
	server.Handle(r, "sum", func(_ context.Context, nums []int64) (int64, error) {
		var total int64
		for _, n := range nums {
			total += n
		}
		return total, nil
	})
	server.Handle(r, "greet", func(_ context.Context, g greeting) (string, error) {
		word := g.Greeting
		if word == "" {
			word = "Hello"
		}
		name := strings.TrimSpace(g.Name)
		if g.Title != nil {
			name = *g.Title + " " + name
		}
		return fmt.Sprintf("%s, %s!", word, name), nil
	})
	server.Handle(r, "divide", func(_ context.Context, d division) (float64, error) {
		if d.Divisor == 0 {
			return 0, protocol.NewFault(1, "division by zero")
		}
		return d.Dividend / d.Divisor, nil
	})
	server.Handle(r, "shape.area", func(_ context.Context, s shape) (float64, error) {
		return s.area(), nil
	})
	server.Handle(r, "time.now", func(_ context.Context, _ []any) (time.Time, error) {
		return time.Now(), nil
	})
}
