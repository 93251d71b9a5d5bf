package provider

import (
	"strings"

	"github.com/tidwall/gjson"
)

// ExtractUserQuery returns the last user message's text, or "" if none exists (spec.md
// §4.9: extract_user_query). For OpenAI-shaped bodies, content is either a plain string or
// an array of typed content parts; for Anthropic, content may additionally be an array of
// text-typed content blocks that get concatenated.
func ExtractUserQuery(kind Kind, body []byte) string {
	messages := gjson.GetBytes(body, "messages").Array()
	for i := len(messages) - 1; i >= 0; i-- {
		msg := messages[i]
		if msg.Get("role").String() != "user" {
			continue
		}
		return extractContentText(msg.Get("content"))
	}
	return ""
}

// extractContentText handles both the string and content-block-array shapes shared by
// OpenAI and Anthropic message content fields.
func extractContentText(content gjson.Result) string {
	if content.Type == gjson.String {
		return content.String()
	}
	if !content.IsArray() {
		return ""
	}
	var parts []string
	for _, block := range content.Array() {
		t := block.Get("type").String()
		if t == "text" || t == "" {
			if text := block.Get("text").String(); text != "" {
				parts = append(parts, text)
			}
		}
	}
	return strings.Join(parts, "\n")
}
