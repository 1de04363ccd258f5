package main

import (
	"encoding/base64"
	"fmt"
	"strconv"
	"strings"

	"github.com/danmuck/xmlrpc/internal/protocol"
)

// parseArg reads one command-line param. A "type:" prefix selects the wire
// type (i4, int, bool, double, str, date, b64, nil, xml); untyped text is a
// string.
func parseArg(raw string) (protocol.Value, error) {
	kind, text, ok := strings.Cut(raw, ":")
	if !ok {
		return protocol.String(raw), nil
	}
	switch strings.ToLower(kind) {
	case "i4", "int":
		n, err := strconv.ParseInt(text, 10, 32)
		if err != nil {
			return nil, fmt.Errorf("param %q: %w", raw, err)
		}
		return protocol.Int(n), nil
	case "bool", "boolean":
		b, err := strconv.ParseBool(text)
		if err != nil {
			return nil, fmt.Errorf("param %q: %w", raw, err)
		}
		return protocol.Bool(b), nil
	case "double":
		f, err := strconv.ParseFloat(text, 64)
		if err != nil {
			return nil, fmt.Errorf("param %q: %w", raw, err)
		}
		return protocol.Double(f), nil
	case "str", "string":
		return protocol.String(text), nil
	case "date":
		return protocol.DateTime(text), nil
	case "b64", "base64":
		b, err := base64.StdEncoding.DecodeString(text)
		if err != nil {
			return nil, fmt.Errorf("param %q: %w", raw, err)
		}
		return protocol.Base64(b), nil
	case "nil":
		return protocol.Nil{}, nil
	case "xml":
		v, err := protocol.ParseValue([]byte(text))
		if err != nil {
			return nil, fmt.Errorf("param %q: %w", raw, err)
		}
		return v, nil
	default:
		return protocol.String(raw), nil
	}
}

func parseArgs(raw []string) (protocol.Params, error) {
	params := make(protocol.Params, 0, len(raw))
	for _, r := range raw {
		v, err := parseArg(r)
		if err != nil {
			return nil, err
		}
		params = append(params, v)
	}
	return params, nil
}
