// Package normalize turns free-form language-model replies into validated JSON.
//
// Model output is unreliable in framing (prose, markdown fences, a stray "json"
// label) but usually reliable in content. Normalization applies a blunt textual
// pre-clean followed by a strict JSON parse and, for the typed helpers, a JSON
// Schema check against the shape the caller expects.
package normalize

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
)

// Variant selects how the cleaned reply is located before parsing.
type Variant int

const (
	// Array extracts a bracketed JSON array from the reply; see ExtractArray.
	Array Variant = iota
	// Object parses the whole cleaned reply. There is no extraction fallback.
	Object
)

func (v Variant) String() string {
	switch v {
	case Array:
		return "array"
	case Object:
		return "object"
	}
	return fmt.Sprintf("variant(%d)", int(v))
}

// ParseVariant maps "array" or "object" to a Variant.
func ParseVariant(s string) (Variant, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "array":
		return Array, nil
	case "object":
		return Object, nil
	}
	return 0, fmt.Errorf("unknown variant %q: want array or object", s)
}

// Every error returned by this package wraps exactly one of these.
var (
	ErrNoArrayFound   = errors.New("no JSON array found in response")
	ErrInvalidJSON    = errors.New("invalid JSON format")
	ErrSchemaMismatch = errors.New("response does not match expected schema")
)

// Kind returns a short label for a normalization error, for logs and metrics.
func Kind(err error) string {
	switch {
	case err == nil:
		return "none"
	case errors.Is(err, ErrNoArrayFound):
		return "no_array_found"
	case errors.Is(err, ErrInvalidJSON):
		return "invalid_json"
	case errors.Is(err, ErrSchemaMismatch):
		return "schema_mismatch"
	}
	return "unknown"
}

// stripper removes the "json" label and backtick fences anywhere in the text.
// It is a global substitution, not a markdown parser: a literal "json" inside
// string content is removed as well.
var stripper = strings.NewReplacer("json", "", "```", "", "`", "")

// Clean trims surrounding whitespace and strips every "json", "```" and "`".
func Clean(raw string) string {
	return stripper.Replace(strings.TrimSpace(raw))
}

// ExtractArray returns the JSON array span inside s.
//
// Candidates start at each '[' in order and end at the matching ']', skipping
// brackets inside string literals. The first balanced candidate that parses to
// a non-empty array of objects wins, then the first that is valid JSON, then
// the first balanced candidate at all. A bracketed aside such as "[5]" in the
// prose therefore loses to the real payload. With no balanced candidate the
// span from the first '[' to the last ']' is returned so that malformed arrays
// surface as ErrInvalidJSON rather than ErrNoArrayFound.
func ExtractArray(s string) (string, error) {
	return extractArray(s, isObjectArray)
}

// extractArray is ExtractArray with the preferred-candidate test supplied.
func extractArray(s string, accept func(any) bool) (string, error) {
	first := strings.IndexByte(s, '[')
	if first < 0 {
		return "", ErrNoArrayFound
	}

	var valid, balanced string
	for start := first; start >= 0; {
		if end := matchBracket(s, start); end > 0 {
			span := s[start : end+1]
			if v, err := decode(span); err == nil {
				if accept(v) {
					return span, nil
				}
				if valid == "" {
					valid = span
				}
			}
			if balanced == "" {
				balanced = span
			}
		}
		next := strings.IndexByte(s[start+1:], '[')
		if next < 0 {
			break
		}
		start += next + 1
	}
	switch {
	case valid != "":
		return valid, nil
	case balanced != "":
		return balanced, nil
	}

	last := strings.LastIndexByte(s, ']')
	if last < first {
		return "", ErrNoArrayFound
	}
	return s[first : last+1], nil
}

func isObjectArray(v any) bool {
	items, ok := v.([]any)
	if !ok || len(items) == 0 {
		return false
	}
	for _, item := range items {
		if _, ok := item.(map[string]any); !ok {
			return false
		}
	}
	return true
}

// matchBracket returns the index of the ']' closing the '[' at start, or -1.
func matchBracket(s string, start int) int {
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		c := s[i]
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
		case '[':
			depth++
		case ']':
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}

// Normalize cleans raw, locates the JSON according to v and parses it.
// Numbers decode as json.Number; the value is otherwise returned as-is.
func Normalize(raw string, v Variant) (any, error) {
	s := Clean(raw)
	if v == Array {
		var err error
		if s, err = ExtractArray(s); err != nil {
			return nil, err
		}
	}
	return decode(s)
}

// decode parses exactly one JSON value; trailing content is an error.
func decode(s string) (any, error) {
	dec := json.NewDecoder(strings.NewReader(s))
	dec.UseNumber()

	var out any
	if err := dec.Decode(&out); err != nil {
		if err == io.EOF {
			return nil, fmt.Errorf("%w: unexpected end of JSON input", ErrInvalidJSON)
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalidJSON, err)
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, fmt.Errorf("%w: unexpected content after JSON value", ErrInvalidJSON)
	}
	return out, nil
}
