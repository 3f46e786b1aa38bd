package usecase

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"

	"github.com/kirillkom/notepeel/internal/core/domain"
	"github.com/kirillkom/notepeel/internal/core/ports"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type sessionRepoFake struct {
	mu      sync.Mutex
	stored  domain.Session
	has     bool
	saveErr error
	clears  int
}

func (f *sessionRepoFake) Load(context.Context) (domain.Session, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.stored, f.has, nil
}

func (f *sessionRepoFake) Save(_ context.Context, session domain.Session) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.saveErr != nil {
		return f.saveErr
	}
	f.stored = session
	f.has = true
	return nil
}

func (f *sessionRepoFake) Clear(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stored = domain.Session{}
	f.has = false
	f.clears++
	return nil
}

type identityFake struct {
	token       string
	loginErr    error
	registerErr error
	me          domain.User
	registered  []string
}

func (f *identityFake) Register(_ context.Context, email, username, _ string) (domain.User, error) {
	if f.registerErr != nil {
		return domain.User{}, f.registerErr
	}
	f.registered = append(f.registered, email+"/"+username)
	return domain.User{ID: 1, Email: email, Username: username, IsActive: true}, nil
}

func (f *identityFake) Login(context.Context, string, string) (string, error) {
	if f.loginErr != nil {
		return "", f.loginErr
	}
	return f.token, nil
}

func (f *identityFake) Me(context.Context) (domain.User, error) {
	return f.me, nil
}

// noteAPIFake serves notes from memory. getFull, when set, replaces the
// default lookup so tests can hold a reply back.
type noteAPIFake struct {
	mu        sync.Mutex
	listed    []domain.NoteSummary
	listErr   error
	details   map[domain.NoteID]domain.NoteDetail
	getFull   func(ctx context.Context, id domain.NoteID) (domain.NoteDetail, error)
	updates   []noteUpdateCall
	updateErr error
	deleted   []domain.NoteID
	deleteErr error
	uploaded  []ports.Upload
	uploadErr error
	nextID    domain.NoteID
}

type noteUpdateCall struct {
	id     domain.NoteID
	update domain.NoteUpdate
}

func (f *noteAPIFake) Upload(_ context.Context, upload ports.Upload, title string) (domain.NoteSummary, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.uploadErr != nil {
		return domain.NoteSummary{}, f.uploadErr
	}
	raw, err := io.ReadAll(upload.Body)
	if err != nil {
		return domain.NoteSummary{}, err
	}
	f.uploaded = append(f.uploaded, upload)
	f.nextID++
	summary := domain.NoteSummary{ID: f.nextID, Title: title, Filename: upload.Filename, Status: domain.NoteStatusPending}
	if f.details == nil {
		f.details = map[domain.NoteID]domain.NoteDetail{}
	}
	f.details[summary.ID] = domain.NoteDetail{
		NoteSummary: summary,
		Image:       domain.Image{Data: raw, MimeType: upload.MimeType},
		RawText:     "recognized",
	}
	return summary, nil
}

func (f *noteAPIFake) List(context.Context) ([]domain.NoteSummary, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listErr != nil {
		return nil, f.listErr
	}
	out := make([]domain.NoteSummary, len(f.listed))
	copy(out, f.listed)
	return out, nil
}

func (f *noteAPIFake) GetFull(ctx context.Context, id domain.NoteID) (domain.NoteDetail, error) {
	if f.getFull != nil {
		return f.getFull(ctx, id)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	detail, ok := f.details[id]
	if !ok {
		return domain.NoteDetail{}, &domain.RemoteError{Code: 404, Message: "Note not found"}
	}
	return detail.Clone(), nil
}

func (f *noteAPIFake) Update(_ context.Context, id domain.NoteID, update domain.NoteUpdate) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.updateErr != nil {
		return f.updateErr
	}
	f.updates = append(f.updates, noteUpdateCall{id: id, update: update})
	return nil
}

func (f *noteAPIFake) Delete(_ context.Context, id domain.NoteID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.deleteErr != nil {
		return f.deleteErr
	}
	f.deleted = append(f.deleted, id)
	return nil
}

func (f *noteAPIFake) updateCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.updates)
}

type recognizerFake struct {
	result domain.RecognitionResult
	err    error
	seen   []string
}

func (f *recognizerFake) Recognize(_ context.Context, upload ports.Upload) (domain.RecognitionResult, error) {
	if f.err != nil {
		return domain.RecognitionResult{}, f.err
	}
	raw, err := io.ReadAll(upload.Body)
	if err != nil {
		return domain.RecognitionResult{}, err
	}
	f.seen = append(f.seen, string(raw))
	return f.result, nil
}

type publisherFake struct {
	events []domain.NoteEvent
	err    error
}

func (f *publisherFake) PublishNoteEvent(_ context.Context, event domain.NoteEvent) error {
	if f.err != nil {
		return f.err
	}
	f.events = append(f.events, event)
	return nil
}

var errTransportDown = domain.WrapError(domain.ErrNetworkUnavailable, "fake", errors.New("connection refused"))
