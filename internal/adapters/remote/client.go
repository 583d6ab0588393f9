package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/bnema/tgpanel/internal/domain"
	"github.com/google/uuid"
)

const (
	defaultMaxResponseBytes = 1 << 20
	defaultRequestTimeout   = 30 * time.Second

	requestIDHeader = "X-Request-ID"
)

// Client talks to the scraping backend over its JSON API. One Client serves
// every remote port the panel consumes.
type Client struct {
	BaseURL          string
	HTTPClient       *http.Client
	RequestTimeout   time.Duration
	MaxResponseBytes int64
	Logger           *slog.Logger
}

type errorResponse struct {
	Detail json.RawMessage `json:"detail"`
	Kind   string          `json:"kind"`
}

// request describes one call. Body is JSON-encoded unless ContentType is
// set, in which case it must already be an io.Reader.
type request struct {
	op          string
	method      string
	path        string
	query       url.Values
	body        any
	contentType string
}

func (c Client) do(ctx context.Context, req request, out any) error {
	endpoint, err := buildAPIURL(c.BaseURL, req.path, req.query)
	if err != nil {
		return err
	}

	var body io.Reader
	contentType := req.contentType
	switch b := req.body.(type) {
	case nil:
	case io.Reader:
		body = b
	default:
		encoded, err := json.Marshal(b)
		if err != nil {
			return fmt.Errorf("encode %s request: %w", req.op, err)
		}
		body = bytes.NewReader(encoded)
		contentType = "application/json"
	}

	requestCtx, cancel := c.requestContext(ctx)
	defer cancel()
	httpReq, err := http.NewRequestWithContext(requestCtx, req.method, endpoint, body)
	if err != nil {
		return fmt.Errorf("create %s request: %w", req.op, err)
	}
	if contentType != "" {
		httpReq.Header.Set("Content-Type", contentType)
	}
	httpReq.Header.Set("Accept", "application/json")
	requestID := uuid.NewString()
	httpReq.Header.Set(requestIDHeader, requestID)

	resp, err := c.httpClient().Do(httpReq)
	if err != nil {
		c.logger().Debug("remote call failed", "op", req.op, "request_id", requestID, "error", err)
		return fmt.Errorf("%s: %w", req.op, err)
	}
	defer func() { _ = resp.Body.Close() }()

	limited := io.LimitReader(resp.Body, c.maxResponseBytes())
	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		remoteErr := decodeRemoteError(req.op, resp.StatusCode, limited)
		c.logger().Debug("remote call rejected",
			"op", req.op,
			"request_id", requestID,
			"status", resp.StatusCode,
			"detail", remoteErr.Detail,
		)
		return remoteErr
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, limited)
		return nil
	}
	if err := json.NewDecoder(limited).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", req.op, err)
	}
	return nil
}

func (c Client) httpClient() *http.Client {
	if c.HTTPClient != nil {
		return c.HTTPClient
	}
	return http.DefaultClient
}

func (c Client) logger() *slog.Logger {
	if c.Logger != nil {
		return c.Logger
	}
	return slog.New(slog.DiscardHandler)
}

func (c Client) maxResponseBytes() int64 {
	if c.MaxResponseBytes > 0 {
		return c.MaxResponseBytes
	}
	return defaultMaxResponseBytes
}

func (c Client) requestContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if _, hasDeadline := ctx.Deadline(); hasDeadline {
		return ctx, func() {}
	}

	requestTimeout := c.RequestTimeout
	if requestTimeout <= 0 {
		requestTimeout = defaultRequestTimeout
	}

	return context.WithTimeout(ctx, requestTimeout)
}

// decodeRemoteError reads the backend's {"detail": ...} envelope. Detail is
// a string for handled errors and a list of objects for request validation
// failures.
func decodeRemoteError(op string, status int, body io.Reader) *domain.RemoteError {
	remoteErr := &domain.RemoteError{Op: op, Status: status}

	var payload errorResponse
	if err := json.NewDecoder(body).Decode(&payload); err != nil {
		remoteErr.Detail = http.StatusText(status)
		return remoteErr
	}
	remoteErr.Kind = strings.TrimSpace(payload.Kind)

	var text string
	if err := json.Unmarshal(payload.Detail, &text); err == nil {
		remoteErr.Detail = text
		return remoteErr
	}

	var items []struct {
		Msg string `json:"msg"`
	}
	if err := json.Unmarshal(payload.Detail, &items); err == nil {
		messages := make([]string, 0, len(items))
		for _, item := range items {
			if item.Msg != "" {
				messages = append(messages, item.Msg)
			}
		}
		remoteErr.Detail = strings.Join(messages, "; ")
	}
	if remoteErr.Detail == "" {
		remoteErr.Detail = http.StatusText(status)
	}
	return remoteErr
}

func buildAPIURL(baseURL string, path string, query url.Values) (string, error) {
	if baseURL == "" {
		return "", errors.New("api base url is required")
	}
	if path == "" {
		return "", errors.New("api path is required")
	}

	parsed, err := url.Parse(baseURL)
	if err != nil {
		return "", fmt.Errorf("parse api base url: %w", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return "", errors.New("api base url must use http or https")
	}
	if parsed.Host == "" {
		return "", errors.New("api base url host is required")
	}

	endpoint := parsed.JoinPath(path)
	if len(query) > 0 {
		endpoint.RawQuery = query.Encode()
	}
	return endpoint.String(), nil
}
