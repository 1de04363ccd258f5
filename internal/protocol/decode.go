package protocol

import (
	"bytes"
	"encoding/base64"
	"encoding/xml"
	"errors"
	"io"
	"strconv"
	"strings"

	"golang.org/x/net/html/charset"
)

// DecodeValue reads a document whose root is either <value> or a bare type
// element such as <string> or <struct>.
func DecodeValue(r io.Reader) (Value, error) {
	p, err := newParser(r)
	if err != nil {
		return nil, err
	}
	root, err := p.start()
	if err != nil {
		return nil, err
	}
	var v Value
	if root.Name.Local == "value" {
		v, err = p.value()
	} else {
		v, err = p.typed(root)
	}
	if err != nil {
		return nil, err
	}
	if err := p.eof(); err != nil {
		return nil, err
	}
	return v, nil
}

// DecodeCall reads a methodCall document. A missing <params> element is an
// empty parameter list.
func DecodeCall(r io.Reader) (Call, error) {
	p, err := newParser(r)
	if err != nil {
		return Call{}, err
	}
	if err := p.root("methodCall"); err != nil {
		return Call{}, err
	}
	call := Call{Params: Params{}}
	var haveName, haveParams bool
	for {
		child, ok, err := p.childOrEnd()
		if err != nil {
			return Call{}, err
		}
		if !ok {
			break
		}
		switch child.Name.Local {
		case "methodName":
			if haveName {
				return Call{}, Decodingf("duplicate <methodName>")
			}
			name, err := p.text()
			if err != nil {
				return Call{}, err
			}
			call.Name = strings.TrimSpace(name)
			haveName = true
		case "params":
			if haveParams {
				return Call{}, Decodingf("duplicate <params>")
			}
			params, err := p.params()
			if err != nil {
				return Call{}, err
			}
			call.Params = params
			haveParams = true
		default:
			return Call{}, Decodingf("unexpected <%s> in <methodCall>", child.Name.Local)
		}
	}
	if !haveName {
		return Call{}, Decodingf("<methodCall> is missing <methodName>")
	}
	if err := p.eof(); err != nil {
		return Call{}, err
	}
	return call, nil
}

// DecodeResponse reads a methodResponse document holding either <params>
// or <fault>.
func DecodeResponse(r io.Reader) (Response, error) {
	p, err := newParser(r)
	if err != nil {
		return Response{}, err
	}
	if err := p.root("methodResponse"); err != nil {
		return Response{}, err
	}
	child, ok, err := p.childOrEnd()
	if err != nil {
		return Response{}, err
	}
	if !ok {
		return Response{}, Decodingf("<methodResponse> holds neither <params> nor <fault>")
	}
	var resp Response
	switch child.Name.Local {
	case "params":
		params, err := p.params()
		if err != nil {
			return Response{}, err
		}
		resp.Params = params
	case "fault":
		fault, err := p.fault()
		if err != nil {
			return Response{}, err
		}
		resp.Fault = fault
	default:
		return Response{}, Decodingf("unexpected <%s> in <methodResponse>", child.Name.Local)
	}
	if err := p.end(); err != nil {
		return Response{}, err
	}
	if err := p.eof(); err != nil {
		return Response{}, err
	}
	return resp, nil
}

// ParseValue is DecodeValue over a byte slice.
func ParseValue(data []byte) (Value, error) {
	return DecodeValue(bytes.NewReader(data))
}

// ParseCall is DecodeCall over a byte slice.
func ParseCall(data []byte) (Call, error) {
	return DecodeCall(bytes.NewReader(data))
}

// ParseResponse is DecodeResponse over a byte slice.
func ParseResponse(data []byte) (Response, error) {
	return DecodeResponse(bytes.NewReader(data))
}

type parser struct {
	dec *xml.Decoder
}

func newParser(r io.Reader) (*parser, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, Decodingf("Failed to read data source: %v", err)
	}
	dec := xml.NewDecoder(bytes.NewReader(data))
	dec.Strict = true
	dec.CharsetReader = charset.NewReaderLabel
	return &parser{dec: dec}, nil
}

// next returns the next element or text token, skipping the prolog,
// comments and directives.
func (p *parser) next() (xml.Token, error) {
	for {
		tok, err := p.dec.Token()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil, Decodingf("unexpected end of document")
			}
			return nil, Decodingf("Failed to parse XML-RPC data: %v", err)
		}
		switch t := tok.(type) {
		case xml.StartElement, xml.EndElement:
			return t, nil
		case xml.CharData:
			return t.Copy(), nil
		}
	}
}

func (p *parser) root(name string) error {
	start, err := p.start()
	if err != nil {
		return err
	}
	if start.Name.Local != name {
		return Decodingf("expected <%s> document, got <%s>", name, start.Name.Local)
	}
	return nil
}

// start returns the next start element, skipping whitespace.
func (p *parser) start() (xml.StartElement, error) {
	start, ok, err := p.childOrEnd()
	if err != nil {
		return xml.StartElement{}, err
	}
	if !ok {
		return xml.StartElement{}, Decodingf("unexpected closing tag")
	}
	return start, nil
}

// childOrEnd returns the next child element, or ok=false when the enclosing
// element closes first. Only whitespace may sit between structural elements.
func (p *parser) childOrEnd() (xml.StartElement, bool, error) {
	for {
		tok, err := p.next()
		if err != nil {
			return xml.StartElement{}, false, err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			return t, true, nil
		case xml.EndElement:
			return xml.StartElement{}, false, nil
		case xml.CharData:
			if !isSpace(t) {
				return xml.StartElement{}, false, Decodingf("unexpected text %q", truncate(string(t)))
			}
		}
	}
}

// end consumes the closing tag of the current element.
func (p *parser) end() error {
	child, ok, err := p.childOrEnd()
	if err != nil {
		return err
	}
	if ok {
		return Decodingf("unexpected <%s>", child.Name.Local)
	}
	return nil
}

// text reads the character data of the current element up to its closing tag.
func (p *parser) text() (string, error) {
	var buf []byte
	for {
		tok, err := p.next()
		if err != nil {
			return "", err
		}
		switch t := tok.(type) {
		case xml.CharData:
			buf = append(buf, t...)
		case xml.EndElement:
			return string(buf), nil
		case xml.StartElement:
			return "", Decodingf("unexpected <%s> inside scalar", t.Name.Local)
		}
	}
}

// eof accepts only trailing whitespace after the root element.
func (p *parser) eof() error {
	for {
		tok, err := p.dec.Token()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return Decodingf("Failed to parse XML-RPC data: %v", err)
		}
		switch t := tok.(type) {
		case xml.CharData:
			if !isSpace(t) {
				return Decodingf("trailing text after document")
			}
		case xml.StartElement:
			return Decodingf("trailing <%s> after document", t.Name.Local)
		}
	}
}

// value parses the content of a <value> element. Text with no child element
// is the untyped string form.
func (p *parser) value() (Value, error) {
	var text []byte
	for {
		tok, err := p.next()
		if err != nil {
			return nil, err
		}
		switch t := tok.(type) {
		case xml.CharData:
			text = append(text, t...)
		case xml.EndElement:
			return String(text), nil
		case xml.StartElement:
			if !isSpace(text) {
				return nil, Decodingf("mixed text and <%s> inside <value>", t.Name.Local)
			}
			v, err := p.typed(t)
			if err != nil {
				return nil, err
			}
			if err := p.end(); err != nil {
				return nil, err
			}
			return v, nil
		}
	}
}

// typed parses a type element whose start tag was consumed.
func (p *parser) typed(start xml.StartElement) (Value, error) {
	switch name := start.Name.Local; name {
	case "array":
		return p.array()
	case "struct":
		return p.structure()
	case "i4", "int", "boolean", "string", "double", "dateTime.iso8601", "base64", "nil":
		text, err := p.text()
		if err != nil {
			return nil, err
		}
		return scalar(name, text)
	default:
		return nil, Decodingf("unknown value type <%s>", name)
	}
}

func scalar(name, text string) (Value, error) {
	switch name {
	case "i4", "int":
		n, err := strconv.ParseInt(strings.TrimSpace(text), 10, 32)
		if err != nil {
			return nil, Decodingf("Failed to parse integer %q", truncate(text))
		}
		return Int(n), nil
	case "boolean":
		n, err := strconv.ParseInt(strings.TrimSpace(text), 10, 64)
		if err != nil {
			return nil, Decodingf("Failed to parse boolean %q", truncate(text))
		}
		return Bool(n != 0), nil
	case "string":
		return String(text), nil
	case "double":
		f, err := strconv.ParseFloat(strings.TrimSpace(text), 64)
		if err != nil {
			return nil, Decodingf("Failed to parse double %q", truncate(text))
		}
		return Double(f), nil
	case "dateTime.iso8601":
		return DateTime(text), nil
	case "base64":
		raw, err := base64.StdEncoding.DecodeString(strings.Join(strings.Fields(text), ""))
		if err != nil {
			return nil, Decodingf("Failed to parse base64: %v", err)
		}
		return Base64(raw), nil
	default:
		if !isSpace([]byte(text)) {
			return nil, Decodingf("<nil/> must be empty")
		}
		return Nil{}, nil
	}
}

func (p *parser) array() (Value, error) {
	out := Array{}
	child, ok, err := p.childOrEnd()
	if err != nil {
		return nil, err
	}
	if !ok {
		return out, nil
	}
	if child.Name.Local != "data" {
		return nil, Decodingf("expected <data> inside <array>, got <%s>", child.Name.Local)
	}
	for {
		item, ok, err := p.childOrEnd()
		if err != nil {
			return nil, err
		}
		if !ok {
			break
		}
		if item.Name.Local != "value" {
			return nil, Decodingf("expected <value> inside <data>, got <%s>", item.Name.Local)
		}
		v, err := p.value()
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	if err := p.end(); err != nil {
		return nil, err
	}
	return out, nil
}

func (p *parser) structure() (Value, error) {
	out := Struct{}
	for {
		child, ok, err := p.childOrEnd()
		if err != nil {
			return nil, err
		}
		if !ok {
			return out, nil
		}
		if child.Name.Local != "member" {
			return nil, Decodingf("expected <member> inside <struct>, got <%s>", child.Name.Local)
		}
		m, err := p.member()
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
}

func (p *parser) member() (Member, error) {
	var (
		m                   Member
		haveName, haveValue bool
	)
	for {
		child, ok, err := p.childOrEnd()
		if err != nil {
			return Member{}, err
		}
		if !ok {
			break
		}
		switch child.Name.Local {
		case "name":
			if haveName {
				return Member{}, Decodingf("duplicate <name> in <member>")
			}
			if m.Name, err = p.text(); err != nil {
				return Member{}, err
			}
			haveName = true
		case "value":
			if haveValue {
				return Member{}, Decodingf("duplicate <value> in <member>")
			}
			if m.Value, err = p.value(); err != nil {
				return Member{}, err
			}
			haveValue = true
		default:
			return Member{}, Decodingf("unexpected <%s> in <member>", child.Name.Local)
		}
	}
	if !haveName || !haveValue {
		return Member{}, Decodingf("<member> requires <name> and <value>")
	}
	return m, nil
}

func (p *parser) params() (Params, error) {
	out := Params{}
	for {
		child, ok, err := p.childOrEnd()
		if err != nil {
			return nil, err
		}
		if !ok {
			return out, nil
		}
		if child.Name.Local != "param" {
			return nil, Decodingf("expected <param> inside <params>, got <%s>", child.Name.Local)
		}
		if err := p.expect("value"); err != nil {
			return nil, err
		}
		v, err := p.value()
		if err != nil {
			return nil, err
		}
		if err := p.end(); err != nil {
			return nil, err
		}
		out = append(out, v)
	}
}

func (p *parser) fault() (*Fault, error) {
	if err := p.expect("value"); err != nil {
		return nil, err
	}
	v, err := p.value()
	if err != nil {
		return nil, err
	}
	if err := p.end(); err != nil {
		return nil, err
	}
	return FaultFromValue(v)
}

func (p *parser) expect(name string) error {
	start, err := p.start()
	if err != nil {
		return err
	}
	if start.Name.Local != name {
		return Decodingf("expected <%s>, got <%s>", name, start.Name.Local)
	}
	return nil
}

func isSpace(b []byte) bool {
	return len(bytes.TrimSpace(b)) == 0
}

func truncate(s string) string {
	const limit = 64
	if len(s) <= limit {
		return s
	}
	return s[:limit] + "..."
}
