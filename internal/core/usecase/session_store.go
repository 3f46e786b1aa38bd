package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"

	"github.com/kirillkom/notepeel/internal/core/domain"
	"github.com/kirillkom/notepeel/internal/core/ports"
)

// SessionStore owns the process-wide session. It is the only writer of the
// session and swaps it as one record, so readers never observe a token
// without an identity.
type SessionStore struct {
	identity ports.IdentityAPI
	repo     ports.SessionRepository
	logger   *slog.Logger

	mu         sync.RWMutex
	current    domain.Session
	onTeardown func(reason string)
}

var _ ports.SessionManager = (*SessionStore)(nil)

func NewSessionStore(identity ports.IdentityAPI, repo ports.SessionRepository, logger *slog.Logger) *SessionStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &SessionStore{
		identity: identity,
		repo:     repo,
		logger:   logger,
	}
}

// OnTeardown registers fn to run whenever a present session is destroyed.
func (s *SessionStore) OnTeardown(fn func(reason string)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onTeardown = fn
}

func (s *SessionStore) Login(ctx context.Context, email, password string) (domain.Session, error) {
	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		return domain.Session{}, domain.WrapError(domain.ErrInvalidInput, "login", errors.New("email and password are required"))
	}

	token, err := s.identity.Login(ctx, email, password)
	if err != nil {
		return domain.Session{}, credentialsError("login", err)
	}
	session, err := domain.NewSession(token, email)
	if err != nil {
		return domain.Session{}, domain.WrapError(domain.ErrInvalidCredentials, "login", errors.New("identity service returned an empty token"))
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.repo.Save(ctx, session); err != nil {
		return domain.Session{}, fmt.Errorf("persist session: %w", err)
	}
	s.current = session
	s.logger.Info("session_started", "identity", session.Identity)
	return session, nil
}

// Register creates the account and then logs in with the same credentials.
func (s *SessionStore) Register(ctx context.Context, email, username, password string) (domain.Session, error) {
	email = strings.TrimSpace(email)
	username = strings.TrimSpace(username)
	if email == "" || username == "" || password == "" {
		return domain.Session{}, domain.WrapError(domain.ErrInvalidInput, "register", errors.New("email, username and password are required"))
	}
	if _, err := s.identity.Register(ctx, email, username, password); err != nil {
		return domain.Session{}, credentialsError("register", err)
	}
	return s.Login(ctx, email, password)
}

// Restore loads the persisted session without validating it remotely; the
// first authenticated request does that.
func (s *SessionStore) Restore(ctx context.Context) (domain.Session, bool, error) {
	session, ok, err := s.repo.Load(ctx)
	if err != nil {
		return domain.Session{}, false, fmt.Errorf("load session: %w", err)
	}
	if !ok || !session.Present() {
		return domain.Session{}, false, nil
	}

	s.mu.Lock()
	s.current = session
	s.mu.Unlock()
	s.logger.Debug("session_restored", "identity", session.Identity)
	return session, true, nil
}

// Logout always succeeds; a failed persistent clear is only logged.
func (s *SessionStore) Logout(ctx context.Context) {
	s.mu.Lock()
	hook := s.teardownLocked(ctx, "logout")
	s.mu.Unlock()
	hook()
}

// Invalidate tears the session down if token is still the current one. Only
// the first of several concurrent rejections for the same token returns true.
func (s *SessionStore) Invalidate(ctx context.Context, token string) bool {
	s.mu.Lock()
	if !s.current.Present() || s.current.Token != token {
		s.mu.Unlock()
		return false
	}
	hook := s.teardownLocked(ctx, "unauthorized")
	s.mu.Unlock()
	hook()
	return true
}

// teardownLocked clears the session and returns the observer call to run
// once the lock is released.
func (s *SessionStore) teardownLocked(ctx context.Context, reason string) func() {
	wasPresent := s.current.Present()
	identity := s.current.Identity
	s.current = domain.Session{}

	if err := s.repo.Clear(context.WithoutCancel(ctx)); err != nil {
		s.logger.Warn("session_clear_failed", "reason", reason, "error", err)
	}
	if !wasPresent {
		return func() {}
	}
	s.logger.Info("session_ended", "identity", identity, "reason", reason)
	onTeardown := s.onTeardown
	return func() {
		if onTeardown != nil {
			onTeardown(reason)
		}
	}
}

func (s *SessionStore) Current() domain.Session {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

// Token is the transport's credential source.
func (s *SessionStore) Token() string {
	return s.Current().Token
}

func (s *SessionStore) Me(ctx context.Context) (domain.User, error) {
	return s.identity.Me(ctx)
}

// credentialsError turns an identity-service rejection into ErrInvalidCredentials
// and leaves network failures alone.
func credentialsError(operation string, err error) error {
	if domain.IsKind(err, domain.ErrNetworkUnavailable) || domain.IsKind(err, domain.ErrInvalidCredentials) {
		return err
	}
	remoteErr := domain.AsRemoteError(err)
	if remoteErr == nil {
		if domain.IsKind(err, domain.ErrUnauthorized) {
			return domain.WrapError(domain.ErrInvalidCredentials, operation, errors.New("credentials rejected"))
		}
		return err
	}
	switch remoteErr.Code {
	case http.StatusBadRequest, http.StatusUnauthorized, http.StatusForbidden, http.StatusConflict, http.StatusUnprocessableEntity:
		// The rejection is not a stale session, so ErrUnauthorized is not carried over.
		return domain.WrapError(domain.ErrInvalidCredentials, operation, remoteErr)
	}
	return err
}
