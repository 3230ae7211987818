// Package json provides strict JSON decoding helpers for model responses.
//
// Models are told to answer with a bare JSON object but sometimes wrap it in
// a markdown code fence anyway. This package removes exactly one wrapping
// fence and then decodes without any further leniency: no brace hunting,
// no trailing text.
package json

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
)

const fence = "```"

// ErrTrailingData is returned when a document holds more than one JSON value.
var ErrTrailingData = errors.New("unexpected data after JSON value")

// StripCodeFence trims whitespace and removes one pair of markdown code
// fences if the whole text is wrapped in them. The opening fence may carry a
// language tag (```json). Text that is not fully wrapped is returned trimmed
// but otherwise untouched.
func StripCodeFence(text string) string {
	trimmed := strings.TrimSpace(text)
	if !strings.HasPrefix(trimmed, fence) || len(trimmed) < 2*len(fence) {
		return trimmed
	}
	if !strings.HasSuffix(trimmed, fence) {
		return trimmed
	}

	inner := trimmed[len(fence) : len(trimmed)-len(fence)]

	// The language tag runs to the end of the opening line.
	newline := strings.IndexByte(inner, '\n')
	if newline == -1 {
		return stripInlineTag(strings.TrimSpace(inner))
	}
	tag := strings.TrimSpace(inner[:newline])
	if tag != "" && !isLanguageTag(tag) {
		return trimmed
	}
	return strings.TrimSpace(inner[newline+1:])
}

// stripInlineTag removes a language tag from a single-line fence body such
// as `json {...}`. The tag must be followed by whitespace or an opening brace.
func stripInlineTag(body string) string {
	end := strings.IndexFunc(body, func(r rune) bool { return !isLanguageTag(string(r)) })
	if end <= 0 {
		return body
	}
	rest := body[end:]
	if rest[0] != '{' && strings.TrimLeft(rest, " \t") == rest {
		return body
	}
	return strings.TrimSpace(rest)
}

// isLanguageTag accepts identifiers such as json, JSON or jsonc.
func isLanguageTag(tag string) bool {
	for _, r := range tag {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		case r == '-', r == '_', r == '+', r == '.':
		default:
			return false
		}
	}
	return true
}

// DecodeStrict decodes exactly one JSON value from data into v.
// Numbers decode as json.Number when v is an interface or map of any.
func DecodeStrict(data string, v any) error {
	dec := json.NewDecoder(strings.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(v); err != nil {
		return err
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return ErrTrailingData
	}
	return nil
}

// DecodeObject strict-decodes data and requires the value to be a JSON object.
func DecodeObject(data string) (map[string]any, error) {
	var value any
	if err := DecodeStrict(data, &value); err != nil {
		return nil, err
	}
	obj, ok := value.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("got %s", kindOf(value))
	}
	return obj, nil
}

// Compact returns the compact encoding of v, used when echoing values back to a model.
func Compact(v any) (string, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return "", err
	}
	return strings.TrimSuffix(buf.String(), "\n"), nil
}

func kindOf(v any) string {
	switch v.(type) {
	case nil:
		return "null"
	case []any:
		return "array"
	case string:
		return "string"
	case bool:
		return "boolean"
	case json.Number:
		return "number"
	default:
		return fmt.Sprintf("%T", v)
	}
}
