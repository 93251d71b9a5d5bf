package proxyserver

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCaptureBufferKeepsAllBytesUnderCapacity(t *testing.T) {
	c := newCaptureBuffer(1024)
	n, err := c.Write([]byte("hello world"))
	assert.NoError(t, err)
	assert.Equal(t, 11, n)
	assert.Equal(t, "hello world", c.String())
}

func TestCaptureBufferDropsTailBeyondCapacity(t *testing.T) {
	c := newCaptureBuffer(10)
	n, err := c.Write([]byte("0123456789ABCDEF"))
	assert.NoError(t, err)
	assert.Equal(t, 16, n, "Write always reports the full input consumed, per io.Writer")
	assert.Equal(t, "0123456789", c.String(), "front bytes are kept so a JSON envelope's opening keys survive")
}

func TestCaptureBufferKeepsFrontAcrossMultipleWrites(t *testing.T) {
	c := newCaptureBuffer(10)
	body := `{"choices":[{"message":{"content":"` + strings.Repeat("x", 100) + `"}}]}`
	for _, chunk := range splitEvery(body, 4) {
		_, err := c.Write([]byte(chunk))
		assert.NoError(t, err)
	}
	assert.Equal(t, `{"choices"`, c.String())
}

func splitEvery(s string, n int) []string {
	var out []string
	for len(s) > n {
		out = append(out, s[:n])
		s = s[n:]
	}
	if len(s) > 0 {
		out = append(out, s)
	}
	return out
}
