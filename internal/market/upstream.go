package market

import (
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"swapEngine/internal/observability"
	"swapEngine/internal/ratelimit"
)

// DefaultTimeout is the HTTP request timeout.
const DefaultTimeout = 30 * time.Second

// maxBodyBytes caps how much of an upstream response is read.
const maxBodyBytes = 8 << 20

// upstream sends rate-limited, instrumented HTTP requests to one service.
type upstream struct {
	name       string
	httpClient *http.Client
	limiter    *ratelimit.Limiter
	metrics    *observability.Metrics
}

func (u *upstream) do(req *http.Request) ([]byte, error) {
	if u.limiter != nil {
		if err := u.limiter.AwaitTurn(req.Context()); err != nil {
			return nil, err
		}
	}

	start := time.Now()
	resp, err := u.httpClient.Do(req)
	if err != nil {
		u.metrics.RecordUpstream(u.name, "transport_error", time.Since(start))
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	u.metrics.RecordUpstream(u.name, strconv.Itoa(resp.StatusCode), time.Since(start))
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("%s API error (status %d): %s", u.name, resp.StatusCode, truncate(string(body), 256))
	}
	return body, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
