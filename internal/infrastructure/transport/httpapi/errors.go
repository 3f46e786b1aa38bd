package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/kirillkom/notepeel/internal/core/domain"
	"github.com/kirillkom/notepeel/internal/infrastructure/resilience"
)

const (
	defaultFailureMessage = "Request failed"
	maxPlainTextMessage   = 200
)

func statusError(req Request, status int, header http.Header, body []byte) error {
	fallback := req.FailureMessage
	if fallback == "" {
		fallback = defaultFailureMessage
	}
	remoteErr := &domain.RemoteError{
		Code:       status,
		Message:    extractMessage(body, fallback),
		RetryAfter: retryAfter(header.Get("Retry-After"), time.Now()),
	}
	if status == http.StatusUnauthorized {
		return domain.WrapError(domain.ErrUnauthorized, req.Operation, remoteErr)
	}
	return fmt.Errorf("%s: %w", req.Operation, remoteErr)
}

// extractMessage reads the human-readable reason out of an error body. The
// service answers FastAPI style {"detail": ...}; recognition failures use
// {"error": ...}.
func extractMessage(body []byte, fallback string) string {
	trimmed := strings.TrimSpace(string(body))
	if trimmed == "" {
		return fallback
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal([]byte(trimmed), &fields); err != nil {
		if strings.HasPrefix(trimmed, "<") || !utf8.ValidString(trimmed) || len(trimmed) > maxPlainTextMessage {
			return fallback
		}
		return trimmed
	}

	for _, key := range []string{"detail", "error", "message"} {
		raw, ok := fields[key]
		if !ok {
			continue
		}
		if msg := messageFrom(raw); msg != "" {
			return msg
		}
	}
	return fallback
}

func messageFrom(raw json.RawMessage) string {
	var text string
	if err := json.Unmarshal(raw, &text); err == nil {
		return strings.TrimSpace(text)
	}

	// Validation errors: [{"loc": [...], "msg": "...", "type": "..."}]
	var items []struct {
		Msg     string `json:"msg"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(raw, &items); err == nil {
		parts := make([]string, 0, len(items))
		for _, item := range items {
			switch {
			case strings.TrimSpace(item.Msg) != "":
				parts = append(parts, strings.TrimSpace(item.Msg))
			case strings.TrimSpace(item.Message) != "":
				parts = append(parts, strings.TrimSpace(item.Message))
			}
		}
		return strings.Join(parts, "; ")
	}

	var object struct {
		Msg     string `json:"msg"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(raw, &object); err == nil {
		if strings.TrimSpace(object.Msg) != "" {
			return strings.TrimSpace(object.Msg)
		}
		return strings.TrimSpace(object.Message)
	}
	return ""
}

func classifyTransportError(err error) resilience.ErrorClassification {
	if err == nil {
		return resilience.ErrorClassification{}
	}
	if errors.Is(err, context.Canceled) {
		return resilience.ErrorClassification{Retryable: false, RecordFailure: false}
	}
	if resilience.IsCircuitOpen(err) {
		return resilience.ErrorClassification{Retryable: true, RecordFailure: false}
	}
	if domain.IsKind(err, domain.ErrNetworkUnavailable) {
		return resilience.ErrorClassification{Retryable: true, RecordFailure: true}
	}
	if remoteErr := domain.AsRemoteError(err); remoteErr != nil {
		if isRetryableHTTPStatus(remoteErr.Code) {
			return resilience.ErrorClassification{Retryable: true, RecordFailure: true, Wait: remoteErr.RetryAfter}
		}
		return resilience.ErrorClassification{Retryable: false, RecordFailure: false}
	}
	return resilience.ErrorClassification{Retryable: false, RecordFailure: true}
}

// retryAfter reads delay-seconds or an HTTP date.
func retryAfter(raw string, now time.Time) time.Duration {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0
	}
	if seconds, err := strconv.Atoi(raw); err == nil {
		if seconds <= 0 {
			return 0
		}
		return time.Duration(seconds) * time.Second
	}
	if at, err := http.ParseTime(raw); err == nil && at.After(now) {
		return at.Sub(now)
	}
	return 0
}

func isRetryableHTTPStatus(statusCode int) bool {
	switch statusCode {
	case http.StatusRequestTimeout,
		http.StatusTooManyRequests,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return true
	default:
		return statusCode >= 500
	}
}
