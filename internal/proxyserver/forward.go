package proxyserver

import (
	"net/http"
	"strings"
)

// hopByHopHeaders are stripped from both the outbound request and the returned response
// per spec.md §4.11.
var hopByHopHeaders = []string{
	"Host", "Connection", "Keep-Alive", "Transfer-Encoding", "Proxy-Connection", "Te", "Upgrade",
}

func copyHeadersExceptHopByHop(dst, src http.Header) {
	for key, values := range src {
		if isHopByHop(key) {
			continue
		}
		for _, v := range values {
			dst.Add(key, v)
		}
	}
}

func isHopByHop(header string) bool {
	for _, h := range hopByHopHeaders {
		if strings.EqualFold(h, header) {
			return true
		}
	}
	return false
}

// flushWriter flushes after every write so a streamed upstream response reaches the client
// without added buffering (spec.md §4.11).
type flushWriter struct {
	w http.ResponseWriter
}

func (f flushWriter) Write(p []byte) (int, error) {
	n, err := f.w.Write(p)
	if flusher, ok := f.w.(http.Flusher); ok {
		flusher.Flush()
	}
	return n, err
}
