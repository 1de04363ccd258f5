package protocol

import (
	"bytes"
	"encoding/base64"
	"io"
	"strconv"
	"strings"
	"unicode/utf8"
)

const xmlHeader = `<?xml version="1.0"?>`

var textEscaper = strings.NewReplacer(
	"&", "&amp;",
	"<", "&lt;",
	">", "&gt;",
	"\r", "&#xD;",
)

// writeText escapes s as XML character data. Invalid UTF-8 and runes XML
// 1.0 cannot carry are replaced with U+FFFD.
func writeText(buf *bytes.Buffer, s string) {
	s = strings.ToValidUTF8(s, string(utf8.RuneError))
	s = strings.Map(func(r rune) rune {
		if isXMLChar(r) {
			return r
		}
		return utf8.RuneError
	}, s)
	textEscaper.WriteString(buf, s)
}

func isXMLChar(r rune) bool {
	switch {
	case r == '\t' || r == '\n' || r == '\r':
		return true
	case r >= 0x20 && r <= 0xD7FF:
		return true
	case r >= 0xE000 && r <= 0xFFFD:
		return true
	case r >= 0x10000 && r <= utf8.MaxRune:
		return true
	}
	return false
}

// EncodeValue renders v as a <value> fragment.
func EncodeValue(v Value) []byte {
	var buf bytes.Buffer
	writeValue(&buf, v)
	return buf.Bytes()
}

// EncodeCall renders a full methodCall document.
func EncodeCall(c Call) []byte {
	var buf bytes.Buffer
	buf.WriteString(xmlHeader)
	buf.WriteString("<methodCall><methodName>")
	writeText(&buf, c.Name)
	buf.WriteString("</methodName>")
	writeParams(&buf, c.Params)
	buf.WriteString("</methodCall>")
	return buf.Bytes()
}

// EncodeResponse renders a full methodResponse document.
func EncodeResponse(r Response) []byte {
	var buf bytes.Buffer
	buf.WriteString(xmlHeader)
	buf.WriteString("<methodResponse>")
	if r.Fault != nil {
		buf.WriteString("<fault>")
		writeValue(&buf, r.Fault.Value())
		buf.WriteString("</fault>")
	} else {
		writeParams(&buf, r.Params)
	}
	buf.WriteString("</methodResponse>")
	return buf.Bytes()
}

// WriteCall writes the encoded call to w.
func WriteCall(w io.Writer, c Call) error {
	_, err := w.Write(EncodeCall(c))
	return err
}

// WriteResponse writes the encoded response to w.
func WriteResponse(w io.Writer, r Response) error {
	_, err := w.Write(EncodeResponse(r))
	return err
}

func writeParams(buf *bytes.Buffer, params Params) {
	buf.WriteString("<params>")
	for _, p := range params {
		buf.WriteString("<param>")
		writeValue(buf, p)
		buf.WriteString("</param>")
	}
	buf.WriteString("</params>")
}

func writeValue(buf *bytes.Buffer, v Value) {
	buf.WriteString("<value>")
	switch tv := v.(type) {
	case Int:
		buf.WriteString("<i4>")
		buf.WriteString(strconv.FormatInt(int64(tv), 10))
		buf.WriteString("</i4>")
	case Bool:
		if tv {
			buf.WriteString("<boolean>1</boolean>")
		} else {
			buf.WriteString("<boolean>0</boolean>")
		}
	case String:
		buf.WriteString("<string>")
		writeText(buf, string(tv))
		buf.WriteString("</string>")
	case Double:
		buf.WriteString("<double>")
		buf.WriteString(strconv.FormatFloat(float64(tv), 'f', -1, 64))
		buf.WriteString("</double>")
	case DateTime:
		buf.WriteString("<dateTime.iso8601>")
		buf.WriteString(string(tv))
		buf.WriteString("</dateTime.iso8601>")
	case Base64:
		buf.WriteString("<base64>")
		buf.WriteString(base64.StdEncoding.EncodeToString(tv))
		buf.WriteString("</base64>")
	case Array:
		buf.WriteString("<array><data>")
		for _, item := range tv {
			writeValue(buf, item)
		}
		buf.WriteString("</data></array>")
	case Struct:
		buf.WriteString("<struct>")
		for _, m := range tv {
			buf.WriteString("<member><name>")
			writeText(buf, m.Name)
			buf.WriteString("</name>")
			writeValue(buf, m.Value)
			buf.WriteString("</member>")
		}
		buf.WriteString("</struct>")
	default:
		buf.WriteString("<nil/>")
	}
	buf.WriteString("</value>")
}
