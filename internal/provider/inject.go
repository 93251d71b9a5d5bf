package provider

import (
	"strconv"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"

	"github.com/mnemo-run/mnemo/internal/merrors"
)

// InjectFormatted splices a pre-rendered memory block (from internal/inject) into body per
// spec.md §4.9. An empty formatted string is a no-op. Requests with no user content are
// returned unmodified.
func InjectFormatted(kind Kind, body []byte, formatted string) ([]byte, error) {
	if formatted == "" {
		return body, nil
	}
	if ExtractUserQuery(kind, body) == "" {
		return body, nil
	}

	switch kind {
	case OpenAI:
		return injectOpenAI(body, formatted)
	case Anthropic:
		return injectAnthropic(body, formatted)
	default:
		return body, nil
	}
}

func injectOpenAI(body []byte, formatted string) ([]byte, error) {
	messages := gjson.GetBytes(body, "messages")
	if !messages.Exists() || !messages.IsArray() {
		return body, nil
	}

	for i, msg := range messages.Array() {
		if msg.Get("role").String() == "system" {
			existing := msg.Get("content").String()
			merged := existing + "\n" + formatted
			out, err := sjson.SetBytes(body, "messages."+strconv.Itoa(i)+".content", merged)
			if err != nil {
				return nil, merrors.Wrap(merrors.Ingestion, "inject openai system message", err)
			}
			return out, nil
		}
	}

	systemMsg := map[string]any{"role": "system", "content": formatted}
	out, err := sjson.SetBytes(body, "messages.-1", systemMsg)
	if err != nil {
		return nil, merrors.Wrap(merrors.Ingestion, "prepend openai system message", err)
	}
	// sjson appends with -1; move it to index 0 by rewriting the full array.
	return moveLastMessageToFront(out)
}

// moveLastMessageToFront relocates the just-appended message (spec.md requires prepending
// at index 0 when no system message exists) without a full struct round trip.
func moveLastMessageToFront(body []byte) ([]byte, error) {
	arr := gjson.GetBytes(body, "messages").Array()
	if len(arr) == 0 {
		return body, nil
	}
	last := arr[len(arr)-1]
	reordered := []any{last.Value()}
	for _, m := range arr[:len(arr)-1] {
		reordered = append(reordered, m.Value())
	}
	out, err := sjson.SetBytes(body, "messages", reordered)
	if err != nil {
		return nil, merrors.Wrap(merrors.Ingestion, "reorder messages", err)
	}
	return out, nil
}

func injectAnthropic(body []byte, formatted string) ([]byte, error) {
	system := gjson.GetBytes(body, "system")
	var newVal string
	if system.Exists() && system.Type == gjson.String {
		newVal = system.String() + "\n" + formatted
	} else {
		newVal = formatted
	}
	out, err := sjson.SetBytes(body, "system", newVal)
	if err != nil {
		return nil, merrors.Wrap(merrors.Ingestion, "inject anthropic system field", err)
	}
	return out, nil
}
