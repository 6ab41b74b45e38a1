// Package idphttp holds the HTTP plumbing shared by the identity provider
// adapters: request helpers and the mapping of HTTP outcomes onto the provider
// failure taxonomy.
package idphttp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/firefly/security-center/internal/core/domain"
)

const (
	defaultTimeout = 10 * time.Second
	maxBodyBytes   = 1 << 20
)

// NewClient returns an HTTP client with a request timeout. The caller's
// context deadline still applies.
func NewClient(timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &http.Client{Timeout: timeout}
}

// ClassifyStatus maps a non-2xx status to a provider failure.
func ClassifyStatus(status int) error {
	switch {
	case status == http.StatusBadRequest, status == http.StatusUnauthorized, status == http.StatusForbidden:
		return domain.ErrInvalidCredentials
	case status == http.StatusRequestTimeout, status == http.StatusTooManyRequests, status >= 500:
		return domain.ErrProviderUnavailable
	default:
		return domain.ErrMalformedResponse
	}
}

// StatusError describes a non-2xx provider response.
type StatusError struct {
	Status int
	Code   string
	Body   string
	Kind   error
}

func (e *StatusError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("provider returned %d (%s)", e.Status, e.Code)
	}
	return fmt.Sprintf("provider returned %d", e.Status)
}

func (e *StatusError) Unwrap() error { return e.Kind }

// Transport wraps a failure to reach the provider.
func Transport(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %w", domain.ErrProviderUnavailable, err)
}

// Malformed wraps a response that could not be understood.
func Malformed(format string, args ...any) error {
	return fmt.Errorf("%w: %s", domain.ErrMalformedResponse, fmt.Sprintf(format, args...))
}

// errorBody covers the OAuth2 error shape and the AWS JSON error shape.
type errorBody struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
	Type             string `json:"__type"`
	Message          string `json:"message"`
}

// Do sends req and decodes a 2xx JSON body into out (when non-nil). A non-2xx
// response becomes a *StatusError classified with classify (ClassifyStatus
// when nil).
func Do(client *http.Client, req *http.Request, out any, classify func(status int, code string) error) error {
	resp, err := client.Do(req)
	if err != nil {
		return Transport(err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return Transport(err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var eb errorBody
		_ = json.Unmarshal(body, &eb)
		code := eb.Error
		if code == "" {
			code = eb.Type
		}
		kind := ClassifyStatus(resp.StatusCode)
		if classify != nil {
			kind = classify(resp.StatusCode, code)
		}
		return &StatusError{Status: resp.StatusCode, Code: code, Body: truncate(string(body), 256), Kind: kind}
	}

	if out == nil || len(body) == 0 {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return Malformed("decode %s response: %v", req.URL.Path, err)
	}
	return nil
}

// PostForm builds a form-encoded POST request.
func PostForm(ctx context.Context, endpoint string, form url.Values) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")
	return req, nil
}

// IsCode reports whether err is a StatusError carrying the given error code.
func IsCode(err error, code string) bool {
	var se *StatusError
	return errors.As(err, &se) && strings.EqualFold(se.Code, code)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
