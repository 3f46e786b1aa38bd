package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/kirillkom/notepeel/internal/core/domain"
	"github.com/kirillkom/notepeel/internal/infrastructure/resilience"
)

const (
	requestIDHeader = "X-Request-Id"
	// maxResponseBytes bounds a response; full notes carry a base64 image.
	maxResponseBytes = 64 << 20
)

// TokenSource yields the current session token, empty when logged out.
type TokenSource interface {
	Token() string
}

// RequestObserver receives the outcome of every request; status 0 means no response arrived.
type RequestObserver interface {
	StartRequest(operation, method string) func(status int)
}

// ResponseValidator checks a successful response against the API contract.
type ResponseValidator interface {
	ValidateResponse(ctx context.Context, route string, req *http.Request, status int, header http.Header, body []byte) error
}

// FilePart is the binary part of a multipart request.
type FilePart struct {
	Field    string
	Filename string
	MimeType string
	Body     io.Reader
}

type Request struct {
	// Operation names the call in logs, metrics and errors, e.g. "notes.list".
	Operation string
	Method    string
	Path      string
	// Route is the path template used for contract validation.
	Route string
	Body  any
	// Upload switches the request to multipart/form-data with Fields as extra form values.
	Upload *FilePart
	Fields map[string]string
	Auth   bool
	// FailureMessage replaces the generic message when the error body carries none.
	FailureMessage string
}

type Options struct {
	HTTPClient     *http.Client
	Timeout        time.Duration
	RateLimit      float64
	RateBurst      int
	Executor       *resilience.Executor
	Observer       RequestObserver
	Validator      ResponseValidator
	OnUnauthorized func(ctx context.Context, token string)
	Logger         *slog.Logger
}

// Client sends requests to the notes service and maps every failure onto the
// domain error kinds.
type Client struct {
	baseURL        string
	httpClient     *http.Client
	tokens         TokenSource
	limiter        *rate.Limiter
	executor       *resilience.Executor
	observer       RequestObserver
	validator      ResponseValidator
	onUnauthorized func(ctx context.Context, token string)
	logger         *slog.Logger
}

func New(baseURL string, tokens TokenSource, opts Options) *Client {
	httpClient := opts.HTTPClient
	if httpClient == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = 60 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	var limiter *rate.Limiter
	if opts.RateLimit > 0 {
		burst := opts.RateBurst
		if burst <= 0 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(opts.RateLimit), burst)
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		baseURL:        strings.TrimRight(baseURL, "/"),
		httpClient:     httpClient,
		tokens:         tokens,
		limiter:        limiter,
		executor:       opts.Executor,
		observer:       opts.Observer,
		validator:      opts.Validator,
		onUnauthorized: opts.OnUnauthorized,
		logger:         logger,
	}
}

// Do sends req and decodes a successful JSON body into out when out is non-nil.
// Only GET requests go through the retry executor; writes are sent once.
func (c *Client) Do(ctx context.Context, req Request, out any) error {
	token := ""
	if req.Auth {
		if c.tokens != nil {
			token = c.tokens.Token()
		}
		if token == "" {
			return domain.WrapError(domain.ErrNoSession, req.Operation, errors.New("authenticated request without a session"))
		}
	}

	call := func(ctx context.Context) error {
		return c.roundTrip(ctx, req, token, out)
	}

	var err error
	if c.executor != nil && req.Method == http.MethodGet {
		err = c.executor.Execute(ctx, "notepeel."+req.Operation, call, classifyTransportError)
		if resilience.IsCircuitOpen(err) {
			err = domain.WrapError(domain.ErrNetworkUnavailable, req.Operation, err)
		}
	} else {
		err = call(ctx)
	}

	if err != nil && req.Auth && domain.IsKind(err, domain.ErrUnauthorized) && c.onUnauthorized != nil {
		c.onUnauthorized(ctx, token)
	}
	return err
}

func (c *Client) roundTrip(ctx context.Context, req Request, token string, out any) error {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("%s: rate limit wait: %w", req.Operation, err)
		}
	}

	body, contentType, err := encodeBody(req)
	if err != nil {
		return fmt.Errorf("encode %s request: %w", req.Operation, err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, c.baseURL+req.Path, body)
	if err != nil {
		return fmt.Errorf("create %s request: %w", req.Operation, err)
	}
	requestID := uuid.NewString()
	httpReq.Header.Set(requestIDHeader, requestID)
	httpReq.Header.Set("Accept", "application/json")
	if contentType != "" {
		httpReq.Header.Set("Content-Type", contentType)
	}
	if token != "" {
		httpReq.Header.Set("Authorization", "Bearer "+token)
	}

	finish := func(int) {}
	if c.observer != nil {
		finish = c.observer.StartRequest(req.Operation, req.Method)
	}
	start := time.Now()

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		finish(0)
		c.logger.Warn("api_request_failed",
			"request_id", requestID,
			"operation", req.Operation,
			"method", req.Method,
			"path", req.Path,
			"duration_ms", float64(time.Since(start).Microseconds())/1000.0,
			"error", err,
		)
		if ctxErr := ctx.Err(); ctxErr != nil && !errors.Is(ctxErr, context.DeadlineExceeded) {
			return fmt.Errorf("%s: %w", req.Operation, ctxErr)
		}
		return domain.WrapError(domain.ErrNetworkUnavailable, req.Operation, err)
	}
	defer resp.Body.Close()

	raw, readErr := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	finish(resp.StatusCode)
	c.logResponse(requestID, req, resp.StatusCode, time.Since(start), len(raw))
	if readErr != nil {
		return domain.WrapError(domain.ErrNetworkUnavailable, req.Operation, fmt.Errorf("read response: %w", readErr))
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return statusError(req, resp.StatusCode, resp.Header, raw)
	}

	if c.validator != nil && req.Route != "" {
		if err := c.validator.ValidateResponse(ctx, req.Route, httpReq, resp.StatusCode, resp.Header, raw); err != nil {
			return fmt.Errorf("%s: %w", req.Operation, &domain.RemoteError{
				Code:    resp.StatusCode,
				Message: "response does not match the API contract: " + err.Error(),
			})
		}
	}

	if out == nil || len(bytes.TrimSpace(raw)) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode %s response: %w", req.Operation, &domain.RemoteError{
			Code:    resp.StatusCode,
			Message: "malformed response body",
		})
	}
	return nil
}

func (c *Client) logResponse(requestID string, req Request, status int, elapsed time.Duration, size int) {
	attrs := []any{
		"request_id", requestID,
		"operation", req.Operation,
		"method", req.Method,
		"path", req.Path,
		"status", status,
		"duration_ms", float64(elapsed.Microseconds()) / 1000.0,
		"bytes", size,
	}
	switch {
	case status >= 500:
		c.logger.Error("api_request", attrs...)
	case status >= 400:
		c.logger.Warn("api_request", attrs...)
	default:
		c.logger.Debug("api_request", attrs...)
	}
}

func encodeBody(req Request) (io.Reader, string, error) {
	if req.Upload != nil {
		return encodeMultipart(req.Upload, req.Fields)
	}
	if req.Body == nil {
		return nil, "", nil
	}
	payload, err := json.Marshal(req.Body)
	if err != nil {
		return nil, "", err
	}
	return bytes.NewReader(payload), "application/json", nil
}

// encodeMultipart buffers the form so the content length is known; note
// photos are small enough for that.
func encodeMultipart(part *FilePart, fields map[string]string) (io.Reader, string, error) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	for name, value := range fields {
		if err := writer.WriteField(name, value); err != nil {
			return nil, "", err
		}
	}

	field := part.Field
	if field == "" {
		field = "file"
	}
	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name=%q; filename=%q`, field, part.Filename))
	mimeType := part.MimeType
	if mimeType == "" {
		mimeType = "application/octet-stream"
	}
	header.Set("Content-Type", mimeType)

	fileWriter, err := writer.CreatePart(header)
	if err != nil {
		return nil, "", err
	}
	if part.Body != nil {
		if _, err := io.Copy(fileWriter, part.Body); err != nil {
			return nil, "", err
		}
	}
	if err := writer.Close(); err != nil {
		return nil, "", err
	}
	return &buf, writer.FormDataContentType(), nil
}
