package provider

import (
	"strings"

	"github.com/tidwall/gjson"
)

// ParseResponseContent extracts the assistant's full text from a non-streaming completion
// body (spec.md §4.9). OpenAI nests it at choices[0].message.content; Anthropic returns a
// content array of typed blocks at the top level.
func ParseResponseContent(kind Kind, body []byte) string {
	switch kind {
	case OpenAI:
		return gjson.GetBytes(body, "choices.0.message.content").String()
	case Anthropic:
		return extractContentText(gjson.GetBytes(body, "content"))
	default:
		return ""
	}
}

// ParseSSEContent reassembles assistant text from a full buffered SSE stream. OpenAI emits
// `data: {...}` lines with choices[0].delta.content; Anthropic emits typed events, of which
// only content_block_delta/text_delta carries prose — thinking_delta and input_json_delta
// (tool-use argument streaming) are skipped per spec.md §4.9.
func ParseSSEContent(kind Kind, buffer []byte) string {
	var out strings.Builder
	for _, line := range strings.Split(string(buffer), "\n") {
		line = strings.TrimSpace(line)
		if !strings.HasPrefix(line, "data:") {
			continue
		}
		payload := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		if payload == "" || payload == "[DONE]" {
			continue
		}

		switch kind {
		case OpenAI:
			out.WriteString(gjson.Get(payload, "choices.0.delta.content").String())
		case Anthropic:
			if gjson.Get(payload, "type").String() != "content_block_delta" {
				continue
			}
			delta := gjson.Get(payload, "delta")
			if delta.Get("type").String() != "text_delta" {
				continue
			}
			out.WriteString(delta.Get("text").String())
		}
	}
	return out.String()
}
