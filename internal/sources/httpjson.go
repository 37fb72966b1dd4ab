package sources

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"shortbox/internal/config"
	"shortbox/internal/services"
)

const defaultRequestTimeout = 15 * time.Second

// Requester issues JSON GET requests against one provider and classifies
// failures with the services markers. Provider packages embed one.
type Requester struct {
	Source    string
	BaseURL   string
	UserAgent string
	Client    *http.Client
	// Prepare adds credentials or headers before the request is sent.
	Prepare func(*http.Request)
}

// NewRequester builds a Requester from a source settings block.
func NewRequester(source string, settings config.Source) *Requester {
	timeout := defaultRequestTimeout
	if settings.TimeoutSeconds > 0 {
		timeout = time.Duration(settings.TimeoutSeconds) * time.Second
	}
	return &Requester{
		Source:    source,
		BaseURL:   strings.TrimRight(strings.TrimSpace(settings.BaseURL), "/"),
		UserAgent: strings.TrimSpace(settings.UserAgent),
		Client:    &http.Client{Timeout: timeout},
	}
}

// GetJSON fetches path (relative to BaseURL) and decodes the body into out.
func (r *Requester) GetJSON(ctx context.Context, path string, params url.Values, out any) error {
	endpoint, err := url.Parse(r.BaseURL + path)
	if err != nil {
		return services.Wrap(services.ErrConfiguration, r.Source, "build url", "invalid base_url "+r.BaseURL, err)
	}
	if len(params) > 0 {
		endpoint.RawQuery = params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint.String(), nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if r.UserAgent != "" {
		req.Header.Set("User-Agent", r.UserAgent)
	}
	if r.Prepare != nil {
		r.Prepare(req)
	}

	client := r.Client
	if client == nil {
		client = &http.Client{Timeout: defaultRequestTimeout}
	}
	requestStart := time.Now()
	resp, err := client.Do(req)
	latency := time.Since(requestStart)
	if err != nil {
		return classifyTransportError(r.Source, latency, err)
	}
	defer resp.Body.Close()

	if err := classifyStatus(r.Source, path, resp.StatusCode, latency); err != nil {
		return err
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return services.Wrap(services.ErrExternal, r.Source, "decode", "unexpected response body", err)
	}
	return nil
}

func classifyTransportError(source string, latency time.Duration, err error) error {
	detail := fmt.Sprintf("request failed (latency=%v)", latency)
	if errors.Is(err, context.Canceled) {
		return fmt.Errorf("%s request canceled: %w", source, err)
	}
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		return services.Wrap(services.ErrTimeout, source, "request", detail, err)
	}
	return services.Wrap(services.ErrTransient, source, "request", detail, err)
}

func classifyStatus(source, path string, status int, latency time.Duration) error {
	switch {
	case status == http.StatusOK:
		return nil
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return services.Wrap(services.ErrConfiguration, source, "authenticate",
			fmt.Sprintf("credentials rejected with %d; check the [sources.%s] settings", status, source), nil)
	case status == http.StatusNotFound:
		return services.Wrap(services.ErrNotFound, source, "request", path+" not found", nil)
	case status == http.StatusTooManyRequests || status >= 500:
		return services.Wrap(services.ErrTransient, source, "request",
			fmt.Sprintf("returned %d (latency=%v)", status, latency), nil)
	default:
		return services.Wrap(services.ErrExternal, source, "request",
			fmt.Sprintf("returned %d (latency=%v)", status, latency), nil)
	}
}

// MissingCredential builds the configuration error adapters return from
// Validate.
func MissingCredential(source, setting, envVar string) error {
	hint := fmt.Sprintf("set %s in [sources.%s]", setting, source)
	if envVar != "" {
		hint += " or export " + envVar
	}
	return services.Wrap(services.ErrConfiguration, source, "validate", hint, nil)
}

// Limit clamps a requested page size.
func Limit(requested, fallback, max int) int {
	if requested <= 0 {
		requested = fallback
	}
	if max > 0 && requested > max {
		requested = max
	}
	return requested
}
