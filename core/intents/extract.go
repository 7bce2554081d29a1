package intents

import (
	"fmt"
	"strings"

	"github.com/tidwall/gjson"
)

// Accepted field names, preferred name first.
var (
	kindFields      = []string{"kind", "type"}
	userInputFields = []string{"userInput", "user_input"}
	replyFields     = []string{"reply", "response"}
)

// ExtractSpan returns the first balanced {...} span in text. Braces inside
// JSON string literals do not count towards the balance. Prose, code fences
// and trailing text around the span are ignored.
func ExtractSpan(text string) (string, bool) {
	for start := strings.IndexByte(text, '{'); start >= 0; {
		if end, ok := balancedEnd(text, start); ok {
			return text[start : end+1], true
		}

		next := strings.IndexByte(text[start+1:], '{')
		if next < 0 {
			break
		}
		start += next + 1
	}
	return "", false
}

// balancedEnd returns the index of the brace closing the one at start.
func balancedEnd(text string, start int) (int, bool) {
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
				return i, true
			}
		}
	}
	return 0, false
}

// ParseReply turns a raw upstream reply into an [Intent]. Errors wrap
// [ErrMalformedReply].
func ParseReply(reply string) (Intent, error) {
	span, ok := ExtractSpan(reply)
	if !ok {
		return Intent{}, ErrNoStructuredSpan
	}
	if !gjson.Valid(span) {
		return Intent{}, ErrInvalidJSON
	}

	payload := gjson.Parse(span)
	if !payload.IsObject() {
		return Intent{}, ErrInvalidJSON
	}

	kindText, err := stringField(payload, kindFields)
	if err != nil {
		return Intent{}, err
	}
	userInput, err := stringField(payload, userInputFields)
	if err != nil {
		return Intent{}, err
	}
	replyText, err := stringField(payload, replyFields)
	if err != nil {
		return Intent{}, err
	}

	kind, err := ParseKind(kindText)
	if err != nil {
		return Intent{}, err
	}

	intent := Intent{
		Kind:      kind,
		UserInput: strings.TrimSpace(userInput),
		Reply:     strings.TrimSpace(replyText),
	}
	// temporal replies are rebuilt from the local clock
	if intent.Reply == "" && !kind.IsTemporal() {
		return Intent{}, fmt.Errorf("%w: %q is empty", ErrMissingField, replyFields[0])
	}
	if intent.UserInput == "" && kind.NeedsQuery() {
		return Intent{}, fmt.Errorf("%w: %q is empty for %s", ErrMissingField, userInputFields[0], kind)
	}
	return intent, nil
}

func stringField(payload gjson.Result, names []string) (string, error) {
	for _, name := range names {
		value := payload.Get(name)
		if !value.Exists() {
			continue
		}
		if value.Type != gjson.String {
			return "", fmt.Errorf("%w: %q is not a string", ErrMissingField, name)
		}
		return value.String(), nil
	}
	return "", fmt.Errorf("%w: %q", ErrMissingField, names[0])
}
