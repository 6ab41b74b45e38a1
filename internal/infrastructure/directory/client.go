// Package directory holds the REST clients for the platform services that
// own party, contract, product and reference master data.
package directory

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
	defaultTimeout = 5 * time.Second
	maxBodyBytes   = 4 << 20
)

// ErrUpstream wraps any non-2xx answer other than 404.
var ErrUpstream = errors.New("upstream service error")

// client is the JSON-over-HTTP plumbing shared by the service clients.
type client struct {
	base string
	http *http.Client
}

func newClient(baseURL string, timeout time.Duration) client {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return client{
		base: strings.TrimRight(baseURL, "/"),
		http: &http.Client{Timeout: timeout},
	}
}

// get decodes the JSON body of GET base+path into out. 404 becomes notFound.
func (c client) get(ctx context.Context, path string, query url.Values, out any, notFound error) error {
	endpoint := c.base + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("GET %s: %w", path, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		_, _ = io.Copy(io.Discard, resp.Body)
		return fmt.Errorf("GET %s: %w", path, notFound)
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		_, _ = io.Copy(io.Discard, resp.Body)
		return fmt.Errorf("GET %s: %w: status %d", path, ErrUpstream, resp.StatusCode)
	}

	if err := json.NewDecoder(io.LimitReader(resp.Body, maxBodyBytes)).Decode(out); err != nil {
		return fmt.Errorf("GET %s: decode: %w", path, err)
	}
	return nil
}

// page is the paginated envelope the platform services answer lists with.
type page[T any] struct {
	Content []T `json:"content"`
}

func notFound(what string) error {
	return fmt.Errorf("%w: %s", domain.ErrNotFound, what)
}
