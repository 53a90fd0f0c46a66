package relevance

import (
	"encoding/json"
	"fmt"
	"strings"
)

// ParseError reports that classifier output could not be parsed as JSON.
// It is recoverable: the caller logs it and proceeds with an empty
// result, since a confused classifier is equivalent to "nothing matched".
type ParseError struct {
	Raw string
	Err error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("failed to parse relevance response: %v", e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// ExtractJSON pulls a JSON payload out of a model reply that may wrap it
// in a markdown fence. Three shapes are accepted: ```json ... ```,
// ``` ... ``` without a language tag, and bare JSON. With no fence, the
// trimmed reply is returned as-is.
func ExtractJSON(text string) string {
	text = strings.TrimSpace(text)

	if start := strings.Index(text, "```json"); start != -1 {
		inner := text[start+len("```json"):]
		if end := strings.Index(inner, "```"); end != -1 {
			return strings.TrimSpace(inner[:end])
		}
	}

	if start := strings.Index(text, "```"); start != -1 {
		inner := text[start+len("```"):]
		if end := strings.Index(inner, "```"); end != -1 {
			return strings.TrimSpace(inner[:end])
		}
	}

	return text
}

// parseJSON unmarshals classifier output into T after unfencing it.
// Unknown fields are ignored; missing fields keep their zero values.
func parseJSON[T any](response string) (T, error) {
	var result T
	raw := ExtractJSON(response)
	if err := json.Unmarshal([]byte(raw), &result); err != nil {
		return result, &ParseError{Raw: raw, Err: err}
	}
	return result, nil
}
