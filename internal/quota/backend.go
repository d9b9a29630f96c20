package quota

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
)

// ErrUnknownIdentity is returned by a Backend when the billing service has
// no record of the identity.
var ErrUnknownIdentity = errors.New("quota: unknown identity")

// HTTPBackend talks to the billing service over its JSON API.
type HTTPBackend struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// BackendOption configures an HTTPBackend.
type BackendOption func(*HTTPBackend)

// WithBaseURL overrides the billing service URL.
func WithBaseURL(u string) BackendOption {
	return func(b *HTTPBackend) { b.baseURL = u }
}

// WithHTTPClient overrides the HTTP client.
func WithHTTPClient(c *http.Client) BackendOption {
	return func(b *HTTPBackend) { b.httpClient = c }
}

// NewHTTPBackend creates a billing-service backend.
func NewHTTPBackend(baseURL, apiKey string, opts ...BackendOption) *HTTPBackend {
	b := &HTTPBackend{
		baseURL: baseURL,
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

type checkRequest struct {
	Identity  string `json:"identity"`
	Operation string `json:"operation"`
}

type checkResponse struct {
	Allowed   bool   `json:"allowed"`
	Remaining int    `json:"remaining"`
	Reason    string `json:"reason,omitempty"`
}

// Check asks the billing service whether identity has remaining quota for op.
func (b *HTTPBackend) Check(ctx context.Context, identity string, op OpClass) (Decision, error) {
	var resp checkResponse
	err := b.post(ctx, "/v1/usage/check", checkRequest{
		Identity:  identity,
		Operation: string(op),
	}, &resp)
	if err != nil {
		return Decision{}, err
	}
	return Decision{Allowed: resp.Allowed, Remaining: resp.Remaining, Reason: resp.Reason}, nil
}

// Record reports one consumed usage unit for identity and op.
func (b *HTTPBackend) Record(ctx context.Context, identity string, op OpClass) error {
	return b.post(ctx, "/v1/usage/events", checkRequest{
		Identity:  identity,
		Operation: string(op),
	}, nil)
}

func (b *HTTPBackend) post(ctx context.Context, path string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return eris.Wrap(err, "marshaling quota request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return eris.Wrap(err, "creating quota request")
	}
	req.Header.Set("Content-Type", "application/json")
	if b.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+b.apiKey)
	}

	resp, err := b.httpClient.Do(req)
	if err != nil {
		return eris.Wrap(err, "calling quota backend")
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return ErrUnknownIdentity
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		data, _ := io.ReadAll(resp.Body)
		return eris.New(fmt.Sprintf("quota backend: unexpected status %d: %s", resp.StatusCode, string(data)))
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return eris.Wrap(err, "decoding quota response")
	}
	return nil
}
