package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/rankline/seo-cli/internal/store"
	"github.com/rankline/seo-cli/pkg/firecrawl"
	"github.com/rankline/seo-cli/pkg/openai"
	"github.com/rankline/seo-cli/pkg/perplexity"
)

// envelope is the uniform response body for every API operation.
type envelope struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, body envelope) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		zap.L().Warn("server: encode response", zap.Error(err))
	}
}

func writeData(w http.ResponseWriter, data interface{}) {
	writeJSON(w, http.StatusOK, envelope{Success: true, Data: data})
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, envelope{Success: false, Error: msg})
}

// statusFor maps an operation error to an HTTP status. Upstream provider
// statuses pass through where known; everything unclassified is a 500 with
// the error text preserved.
func statusFor(err error) int {
	if errors.Is(err, store.ErrNotFound) {
		return http.StatusNotFound
	}

	var upstream int
	var fcErr *firecrawl.APIError
	var pplxErr *perplexity.APIError
	var oaErr *openai.APIError
	switch {
	case errors.As(err, &fcErr):
		upstream = fcErr.StatusCode
	case errors.As(err, &pplxErr):
		upstream = pplxErr.StatusCode
	case errors.As(err, &oaErr):
		upstream = oaErr.StatusCode
	}
	if upstream != 0 {
		switch upstream {
		case http.StatusUnauthorized, http.StatusForbidden,
			http.StatusTooManyRequests, http.StatusBadRequest:
			return upstream
		default:
			return http.StatusBadGateway
		}
	}

	// SDK-backed clients surface the upstream status inside the message.
	msg := err.Error()
	switch {
	case strings.Contains(msg, "status 401"):
		return http.StatusUnauthorized
	case strings.Contains(msg, "status 403"):
		return http.StatusForbidden
	case strings.Contains(msg, "status 429"):
		return http.StatusTooManyRequests
	}
	return http.StatusInternalServerError
}

func writeOpError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		zap.L().Error("server: operation failed", zap.Error(err))
	}
	writeError(w, status, msg)
}
