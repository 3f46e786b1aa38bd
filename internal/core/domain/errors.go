package domain

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrUnauthorized       = errors.New("unauthorized")
	ErrNetworkUnavailable = errors.New("network unavailable")
	ErrNotFound           = errors.New("not found")
	ErrRemote             = errors.New("remote error")
	ErrInvalidInput       = errors.New("invalid input")

	// ErrNoSession is returned before sending an authenticated request without a token.
	ErrNoSession = errors.New("no active session")
	// ErrNoActiveNote is returned by detail operations while nothing is open.
	ErrNoActiveNote = errors.New("no active note")
	// ErrStaleResponse marks a reply to an Open that a later Open superseded.
	ErrStaleResponse = errors.New("stale response discarded")
)

// RemoteError is a non-success status reported by a remote collaborator.
type RemoteError struct {
	Code    int
	Message string
	// RetryAfter is the delay the server asked for, zero when it gave none.
	RetryAfter time.Duration
}

func (e *RemoteError) Error() string {
	if e == nil {
		return "remote error"
	}
	return fmt.Sprintf("remote error (%d): %s", e.Code, e.Message)
}

// Is lets errors.Is match ErrRemote for every RemoteError and ErrNotFound for 404s.
func (e *RemoteError) Is(target error) bool {
	if e == nil {
		return false
	}
	switch target {
	case ErrRemote:
		return true
	case ErrNotFound:
		return e.Code == http.StatusNotFound
	default:
		return false
	}
}

// WrapError preserves typed semantic errors with operation context.
func WrapError(kind error, operation string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w: %w", operation, kind, err)
}

func IsKind(err error, kind error) bool {
	return errors.Is(err, kind)
}

func AsRemoteError(err error) *RemoteError {
	var remoteErr *RemoteError
	if errors.As(err, &remoteErr) {
		return remoteErr
	}
	return nil
}

// UserMessage renders err for display, keeping any detail text the server supplied.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	switch {
	case IsKind(err, ErrInvalidCredentials):
		if remoteErr := AsRemoteError(err); remoteErr != nil && strings.TrimSpace(remoteErr.Message) != "" {
			return "credentials problem: " + remoteErr.Message
		}
		return "credentials problem: the email or password was rejected"
	case IsKind(err, ErrUnauthorized), IsKind(err, ErrNoSession):
		return "credentials problem: please log in again"
	case IsKind(err, ErrNetworkUnavailable):
		return "network problem: the server could not be reached"
	}
	if remoteErr := AsRemoteError(err); remoteErr != nil {
		return fmt.Sprintf("server problem (%d): %s", remoteErr.Code, remoteErr.Message)
	}
	switch {
	case IsKind(err, ErrNotFound):
		return "not found: " + err.Error()
	case IsKind(err, ErrNoActiveNote):
		return "no note is open"
	default:
		return err.Error()
	}
}
