// Package bank adapts the banking domain service behind a narrow interface.
// The HTTP client talks to the real service; MemoryService is a seeded
// in-process stand-in used by tests and `serve --local`.
package bank

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/tellergate/tellergate/internal/schema"
)

// Service is the contract the tool executor dispatches through.
type Service interface {
	// Call invokes one domain operation. op is the tool name; args are the
	// validated parameters. Classified failures come back as *schema.Error.
	Call(ctx context.Context, op string, args map[string]any) (map[string]any, error)
}

// HTTPClient calls the domain service over HTTP.
// Each operation maps to POST {base}/v1/ops/{op} with a JSON body.
type HTTPClient struct {
	base   string
	client *http.Client
}

// NewHTTPClient creates an HTTPClient for the service at base.
// The transport-level timeout is a backstop; per-call deadlines come from
// the caller's context.
func NewHTTPClient(base string, timeout time.Duration) *HTTPClient {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &HTTPClient{
		base:   strings.TrimRight(base, "/"),
		client: &http.Client{Timeout: timeout},
	}
}

func (c *HTTPClient) Call(ctx context.Context, op string, args map[string]any) (map[string]any, error) {
	body, err := json.Marshal(args)
	if err != nil {
		return nil, fmt.Errorf("bank: marshal %s args: %w", op, err)
	}

	url := c.base + "/v1/ops/" + op
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("bank: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if tok, ok := args["authToken"].(string); ok {
		req.Header.Set("Authorization", "Bearer "+tok)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, classifyTransportError(op, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, schema.NewTransient(schema.CodeToolExecution, "bank: read %s response: %v", op, err)
	}

	switch {
	case resp.StatusCode >= 500:
		return nil, schema.NewTransient(schema.CodeToolExecution,
			"bank: %s returned %d", op, resp.StatusCode)
	case resp.StatusCode >= 400:
		return nil, schema.NewError(schema.CodeToolExecution,
			"bank: %s rejected: %s", op, strings.TrimSpace(string(data)))
	}

	var out map[string]any
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, schema.NewError(schema.CodeToolExecution, "bank: decode %s response: %v", op, err)
	}
	return out, nil
}

// classifyTransportError maps network failures onto the retry taxonomy:
// timeouts and connection errors are transient. Context errors pass
// through untouched so the executor can tell cancellation from timeout.
func classifyTransportError(op string, err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return err
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return schema.NewTransient(schema.CodeTimeout, "bank: %s timed out: %v", op, err)
	}
	return schema.NewTransient(schema.CodeToolExecution, "bank: %s unreachable: %v", op, err)
}
