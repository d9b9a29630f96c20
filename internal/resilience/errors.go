package resilience

import (
	"errors"
	"net"
	"strings"
	"syscall"

	"github.com/rankline/seo-cli/pkg/firecrawl"
	"github.com/rankline/seo-cli/pkg/openai"
	"github.com/rankline/seo-cli/pkg/perplexity"
)

// IsTransient reports whether the error is safe to retry: provider 429/5xx
// responses, network timeouts, connection resets, and DNS failures.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}

	var fcErr *firecrawl.APIError
	if errors.As(err, &fcErr) {
		return IsTransientHTTPStatus(fcErr.StatusCode)
	}
	var pplxErr *perplexity.APIError
	if errors.As(err, &pplxErr) {
		return IsTransientHTTPStatus(pplxErr.StatusCode)
	}
	var oaErr *openai.APIError
	if errors.As(err, &oaErr) {
		return IsTransientHTTPStatus(oaErr.StatusCode)
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	if errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.ECONNABORTED) {
		return true
	}

	// SDK-backed clients surface the upstream status inside the message
	// rather than a typed error.
	msg := strings.ToLower(err.Error())
	transientPatterns := []string{
		"status 429",
		"status 500",
		"status 502",
		"status 503",
		"status 504",
		"connection reset by peer",
		"broken pipe",
		"temporary failure in name resolution",
		"no such host",
		"tls handshake timeout",
		"i/o timeout",
		"server closed idle connection",
		"transport connection broken",
	}
	for _, p := range transientPatterns {
		if strings.Contains(msg, p) {
			return true
		}
	}

	return false
}

// IsTransientHTTPStatus reports whether the status code indicates a
// transient server-side issue.
func IsTransientHTTPStatus(statusCode int) bool {
	switch statusCode {
	case 408, 429, 500, 502, 503, 504:
		return true
	default:
		return false
	}
}
