// Package clients holds the JSON-over-HTTP plumbing shared by the
// collaborator clients.
package clients

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"
)

// HTTPError is a non-2xx response.
type HTTPError struct {
	StatusCode int
	Body       string
}

func (e *HTTPError) Error() string {
	body := strings.TrimSpace(e.Body)
	if len(body) > 256 {
		body = body[:256] + "..."
	}
	return fmt.Sprintf("http %d: %s", e.StatusCode, body)
}

// JSON performs one request with a JSON body and decodes a JSON response.
// There are no retries.
type JSON struct {
	BaseURL    string
	HTTPClient *http.Client
	Validate   *validator.Validate
}

// NewJSON returns a JSON transport with a shared validator.
func NewJSON(baseURL string, httpClient *http.Client) *JSON {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &JSON{
		BaseURL:    strings.TrimRight(baseURL, "/"),
		HTTPClient: httpClient,
		Validate:   validator.New(validator.WithRequiredStructEnabled()),
	}
}

// Do sends body (may be nil) and decodes the response into out (may be nil).
// out is validated with its `validate` tags when it is a struct pointer.
func (j *JSON) Do(ctx context.Context, method, path string, body, out any) error {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
	}

	req, err := http.NewRequestWithContext(ctx, method, j.BaseURL+path, &buf)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := j.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	raw, readErr := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	if readErr != nil {
		return fmt.Errorf("failed to read response: %w", readErr)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &HTTPError{StatusCode: resp.StatusCode, Body: string(raw)}
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	if err := j.Validate.Struct(out); err != nil {
		var invalid *validator.InvalidValidationError
		if errors.As(err, &invalid) {
			// out is not a struct, nothing to validate
			return nil
		}
		return fmt.Errorf("invalid response: %w", err)
	}
	return nil
}

// StatusCode extracts the HTTP status from err, or 0.
func StatusCode(err error) int {
	var he *HTTPError
	if errors.As(err, &he) {
		return he.StatusCode
	}
	return 0
}
