// Package provider detects the target LLM API shape and manipulates its wire format
// (memory injection, user-query extraction, response parsing) without a full
// unmarshal/remarshal round trip (spec.md §4.9).
package provider

import (
	"net/http"
	"strings"

	"github.com/tidwall/gjson"
)

// Kind identifies the detected provider shape.
type Kind string

const (
	OpenAI    Kind = "openai"
	Anthropic Kind = "anthropic"
	Unknown   Kind = "unknown"
)

// Detect runs the cascade from spec.md §4.9: URL host, then headers, then body shape.
func Detect(host string, headers http.Header, body []byte) Kind {
	host = strings.ToLower(host)
	switch {
	case strings.HasSuffix(host, ".openai.com") || host == "openai.com":
		return OpenAI
	case strings.HasSuffix(host, ".anthropic.com") || host == "anthropic.com":
		return Anthropic
	}

	if headers.Get("x-api-key") != "" {
		return Anthropic
	}
	if headers.Get("Authorization") != "" && strings.HasPrefix(headers.Get("Authorization"), "Bearer ") {
		return OpenAI
	}

	if len(body) > 0 {
		if gjson.GetBytes(body, "system").Exists() || gjson.GetBytes(body, "max_tokens").Exists() {
			return Anthropic
		}
		if gjson.GetBytes(body, "messages.0.role").String() == "system" {
			return OpenAI
		}
	}

	return Unknown
}
