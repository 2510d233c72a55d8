// Package clients holds outbound HTTP clients for the collaborator services
// the back office talks to: the patient registry, the doctor directory, the
// appointment service, the pharmacy, the billing ingestion endpoint, and the
// notification sink.
// All clients share one http.Client with a short timeout and forward the
// request correlation id in X-Request-ID.
package clients

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/bits-grahate/hospital-management-system/internal/platform/correlation"
	"github.com/bits-grahate/hospital-management-system/pkg/apperror"
)

// NewHTTPClient returns the shared client used by all collaborators.
func NewHTTPClient(timeout time.Duration) *http.Client {
	return &http.Client{Timeout: timeout}
}

func newRequest(ctx context.Context, method, url string, body interface{}) (*http.Request, error) {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshal request body: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if rid := correlation.FromContext(ctx); rid != "" {
		req.Header.Set("X-Request-ID", rid)
	}
	return req, nil
}

// doJSON executes the request and decodes a 2xx response body into out.
// A 404 maps to NotFound; any other non-2xx status or transport failure maps
// to DependencyUnavailable so callers can apply their fallback policy.
func doJSON(hc *http.Client, req *http.Request, out interface{}) error {
	resp, err := hc.Do(req)
	if err != nil {
		return apperror.DependencyUnavailable("call %s: %v", req.URL.Path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return apperror.NotFound("%s not found", req.URL.Path)
	}
	if resp.StatusCode == http.StatusConflict {
		return apperror.Conflict("call %s: conflict", req.URL.Path)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return apperror.DependencyUnavailable("call %s: status %d", req.URL.Path, resp.StatusCode)
	}

	if out == nil {
		io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return apperror.DependencyUnavailable("decode %s response: %v", req.URL.Path, err)
	}
	return nil
}
