// Package jsonx extracts JSON payloads from language-model output.
//
// Model providers do not guarantee clean JSON: responses arrive wrapped in
// markdown fences, prefixed with prose, or followed by free-text reasoning.
// ExtractObject pulls the first balanced JSON object out of such text and
// unmarshals it, so callers never parse model prose themselves.
package jsonx

import (
	"fmt"
	"strings"

	"github.com/goccy/go-json"
)

// ExtractObject finds the first balanced JSON object in text and unmarshals
// it into v. Text before and after the object is ignored.
func ExtractObject(text string, v interface{}) error {
	raw, err := firstObject(text)
	if err != nil {
		return err
	}
	if err := json.Unmarshal([]byte(raw), v); err != nil {
		return fmt.Errorf("invalid json object in response: %w", err)
	}
	return nil
}

// firstObject returns the first balanced {...} substring of text.
// Braces inside JSON strings are not counted.
func firstObject(text string) (string, error) {
	start := strings.IndexByte(text, '{')
	if start < 0 {
		return "", fmt.Errorf("no json object in response")
	}

	depth := 0
	inString := false
	escaped := false

	for i := start; i < len(text); i++ {
		c := text[i]

		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}

		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return text[start : i+1], nil
			}
		}
	}

	return "", fmt.Errorf("unterminated json object in response")
}
