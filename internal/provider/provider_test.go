package provider

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
)

func TestDetectByHost(t *testing.T) {
	assert.Equal(t, OpenAI, Detect("api.openai.com", http.Header{}, nil))
	assert.Equal(t, Anthropic, Detect("api.anthropic.com", http.Header{}, nil))
}

func TestDetectByHeader(t *testing.T) {
	h := http.Header{}
	h.Set("x-api-key", "sk-ant-xxx")
	assert.Equal(t, Anthropic, Detect("llm.internal.example.com", h, nil))

	h = http.Header{}
	h.Set("Authorization", "Bearer sk-xxx")
	assert.Equal(t, OpenAI, Detect("llm.internal.example.com", h, nil))
}

func TestDetectByBodyShape(t *testing.T) {
	anthropicBody := []byte(`{"model":"claude","max_tokens":1024,"messages":[{"role":"user","content":"hi"}]}`)
	assert.Equal(t, Anthropic, Detect("proxy.example.com", http.Header{}, anthropicBody))

	openaiBody := []byte(`{"model":"gpt","messages":[{"role":"system","content":"be nice"},{"role":"user","content":"hi"}]}`)
	assert.Equal(t, OpenAI, Detect("proxy.example.com", http.Header{}, openaiBody))

	assert.Equal(t, Unknown, Detect("proxy.example.com", http.Header{}, []byte(`{}`)))
}

func TestExtractUserQueryPlainString(t *testing.T) {
	body := []byte(`{"messages":[{"role":"system","content":"sys"},{"role":"user","content":"what's the weather"}]}`)
	assert.Equal(t, "what's the weather", ExtractUserQuery(OpenAI, body))
}

func TestExtractUserQueryContentBlocks(t *testing.T) {
	body := []byte(`{"messages":[{"role":"user","content":[{"type":"text","text":"part one"},{"type":"text","text":"part two"}]}]}`)
	assert.Equal(t, "part one\npart two", ExtractUserQuery(Anthropic, body))
}

func TestExtractUserQueryReturnsLastUserMessage(t *testing.T) {
	body := []byte(`{"messages":[{"role":"user","content":"first"},{"role":"assistant","content":"reply"},{"role":"user","content":"second"}]}`)
	assert.Equal(t, "second", ExtractUserQuery(OpenAI, body))
}

func TestExtractUserQueryNoUserMessage(t *testing.T) {
	body := []byte(`{"messages":[{"role":"system","content":"sys"}]}`)
	assert.Equal(t, "", ExtractUserQuery(OpenAI, body))
}

func TestInjectFormattedNoopWhenEmpty(t *testing.T) {
	body := []byte(`{"messages":[{"role":"user","content":"hi"}]}`)
	out, err := InjectFormatted(OpenAI, body, "")
	require.NoError(t, err)
	assert.Equal(t, body, out)
}

func TestInjectFormattedNoopWithoutUserContent(t *testing.T) {
	body := []byte(`{"messages":[{"role":"system","content":"sys"}]}`)
	out, err := InjectFormatted(OpenAI, body, "<mnemo-memories></mnemo-memories>")
	require.NoError(t, err)
	assert.Equal(t, body, out)
}

func TestInjectFormattedOpenAIPrependsSystemMessage(t *testing.T) {
	body := []byte(`{"messages":[{"role":"user","content":"hi"}]}`)
	out, err := InjectFormatted(OpenAI, body, "<mnemo-memories>x</mnemo-memories>")
	require.NoError(t, err)

	msgs := gjson.GetBytes(out, "messages").Array()
	require.Len(t, msgs, 2)
	assert.Equal(t, "system", msgs[0].Get("role").String())
	assert.Contains(t, msgs[0].Get("content").String(), "<mnemo-memories>")
	assert.Equal(t, "user", msgs[1].Get("role").String())
	assert.Equal(t, "hi", msgs[1].Get("content").String())
}

func TestInjectFormattedOpenAIAppendsToExistingSystemMessage(t *testing.T) {
	body := []byte(`{"messages":[{"role":"system","content":"be nice"},{"role":"user","content":"hi"}]}`)
	out, err := InjectFormatted(OpenAI, body, "<mnemo-memories>x</mnemo-memories>")
	require.NoError(t, err)

	msgs := gjson.GetBytes(out, "messages").Array()
	require.Len(t, msgs, 2)
	assert.Contains(t, msgs[0].Get("content").String(), "be nice")
	assert.Contains(t, msgs[0].Get("content").String(), "<mnemo-memories>")
}

func TestInjectFormattedAnthropicSetsTopLevelSystem(t *testing.T) {
	body := []byte(`{"messages":[{"role":"user","content":"hi"}]}`)
	out, err := InjectFormatted(Anthropic, body, "<mnemo-memories>x</mnemo-memories>")
	require.NoError(t, err)
	assert.Contains(t, gjson.GetBytes(out, "system").String(), "<mnemo-memories>")

	msgs := gjson.GetBytes(out, "messages").Array()
	require.Len(t, msgs, 1)
	assert.Equal(t, "user", msgs[0].Get("role").String())
}

func TestInjectFormattedAnthropicAppendsToExistingSystem(t *testing.T) {
	body := []byte(`{"system":"be nice","messages":[{"role":"user","content":"hi"}]}`)
	out, err := InjectFormatted(Anthropic, body, "<mnemo-memories>x</mnemo-memories>")
	require.NoError(t, err)
	sys := gjson.GetBytes(out, "system").String()
	assert.Contains(t, sys, "be nice")
	assert.Contains(t, sys, "<mnemo-memories>")
}

func TestParseResponseContentOpenAI(t *testing.T) {
	body := []byte(`{"choices":[{"message":{"role":"assistant","content":"hello there"}}]}`)
	assert.Equal(t, "hello there", ParseResponseContent(OpenAI, body))
}

func TestParseResponseContentAnthropic(t *testing.T) {
	body := []byte(`{"content":[{"type":"text","text":"hi"},{"type":"text","text":"there"}]}`)
	assert.Equal(t, "hi\nthere", ParseResponseContent(Anthropic, body))
}

func TestParseSSEContentOpenAI(t *testing.T) {
	buf := []byte("data: {\"choices\":[{\"delta\":{\"content\":\"Hel\"}}]}\n\ndata: {\"choices\":[{\"delta\":{\"content\":\"lo\"}}]}\n\ndata: [DONE]\n")
	assert.Equal(t, "Hello", ParseSSEContent(OpenAI, buf))
}

func TestParseSSEContentAnthropicSkipsThinkingAndToolDeltas(t *testing.T) {
	buf := []byte(
		"data: {\"type\":\"content_block_delta\",\"delta\":{\"type\":\"thinking_delta\",\"thinking\":\"reasoning...\"}}\n\n" +
			"data: {\"type\":\"content_block_delta\",\"delta\":{\"type\":\"input_json_delta\",\"partial_json\":\"{\\\"x\\\":1}\"}}\n\n" +
			"data: {\"type\":\"content_block_delta\",\"delta\":{\"type\":\"text_delta\",\"text\":\"Hi\"}}\n\n" +
			"data: {\"type\":\"content_block_delta\",\"delta\":{\"type\":\"text_delta\",\"text\":\" there\"}}\n\n",
	)
	assert.Equal(t, "Hi there", ParseSSEContent(Anthropic, buf))
}
