package utils

import (
	"fmt"
	"net"
	"net/http"
	"strings"
)

// Extractor represents the way we will extract the actor key from an HTTP request, this could be
// a value from a header, the remote address, user authentication information, any information that
// is available at the HTTP request that wouldn't cause side effects if it was collected (this object shouldn't
// read the body of the request).
type Extractor interface {
	Extract(r *http.Request) (string, error)
}

type httpHeaderExtractor struct {
	headers []string
}

// NewHTTPHeadersExtractor creates a new HTTP header extractor
func NewHTTPHeadersExtractor(headers ...string) Extractor {
	return &httpHeaderExtractor{headers: headers}
}

// Extract extracts a collection of http headers and joins them to build the key that will be used for
// rate limiting. You should use headers that are guaranteed to be unique for a client.
func (h *httpHeaderExtractor) Extract(r *http.Request) (string, error) {
	if len(h.headers) == 0 {
		return "", fmt.Errorf("no key headers configured")
	}

	values := make([]string, 0, len(h.headers))
	for _, key := range h.headers {
		// if we can't find a value for the headers, give up and return an error.
		value := strings.TrimSpace(r.Header.Get(key))
		if value == "" {
			return "", fmt.Errorf("the header %v must have a value set", key)
		}
		values = append(values, value)
	}

	return strings.Join(values, "-"), nil
}

type remoteAddrExtractor struct{}

// NewRemoteAddrExtractor keys requests by client IP. Pair it with chi's RealIP
// middleware when running behind a proxy.
func NewRemoteAddrExtractor() Extractor {
	return remoteAddrExtractor{}
}

func (remoteAddrExtractor) Extract(r *http.Request) (string, error) {
	addr := strings.TrimSpace(r.RemoteAddr)
	if addr == "" {
		return "", fmt.Errorf("request has no remote address")
	}
	if host, _, err := net.SplitHostPort(addr); err == nil {
		return host, nil
	}
	return addr, nil
}
