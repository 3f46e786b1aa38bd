package usecase

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/kirillkom/notepeel/internal/core/domain"
	"github.com/kirillkom/notepeel/internal/core/ports"
)

// Notebook drives the user-facing flows across the session, the collection
// cache and the active note.
type Notebook struct {
	sessions   *SessionStore
	notes      ports.NoteAPI
	collection *NoteCollectionCache
	reconciler *NoteReconciler
	recognizer ports.Recognizer
	events     ports.NoteEventPublisher
	logger     *slog.Logger
	now        func() time.Time
}

func NewNotebook(
	sessions *SessionStore,
	notes ports.NoteAPI,
	collection *NoteCollectionCache,
	reconciler *NoteReconciler,
	recognizer ports.Recognizer,
	events ports.NoteEventPublisher,
	logger *slog.Logger,
) *Notebook {
	if logger == nil {
		logger = slog.Default()
	}
	return &Notebook{
		sessions:   sessions,
		notes:      notes,
		collection: collection,
		reconciler: reconciler,
		recognizer: recognizer,
		events:     events,
		logger:     logger,
		now:        time.Now,
	}
}

func (nb *Notebook) Sessions() *SessionStore { return nb.sessions }

func (nb *Notebook) Collection() *NoteCollectionCache { return nb.collection }

func (nb *Notebook) Reconciler() *NoteReconciler { return nb.reconciler }

func (nb *Notebook) Refresh(ctx context.Context) ([]domain.NoteSummary, error) {
	if err := nb.requireSession("list notes"); err != nil {
		return nil, err
	}
	return nb.collection.Refresh(ctx)
}

// Upload sends a photo, puts the new summary at the head of the collection
// and opens it.
func (nb *Notebook) Upload(ctx context.Context, filename, mimeType string, body io.Reader, title string) (domain.NoteDetail, error) {
	if err := nb.requireSession("upload note"); err != nil {
		return domain.NoteDetail{}, err
	}
	if body == nil {
		return domain.NoteDetail{}, domain.WrapError(domain.ErrInvalidInput, "upload note", errors.New("image body is required"))
	}

	summary, err := nb.notes.Upload(ctx, ports.Upload{
		Filename: sanitizeFilename(filename),
		MimeType: mimeType,
		Body:     body,
	}, strings.TrimSpace(title))
	if err != nil {
		return domain.NoteDetail{}, err
	}

	nb.collection.Insert(summary)
	nb.publish(ctx, domain.EventNoteUploaded, summary.ID, summary.Title)

	detail, err := nb.Open(ctx, summary.ID)
	if err != nil {
		return domain.NoteDetail{NoteSummary: summary}, err
	}
	return detail, nil
}

// Open makes id the active note and brings its cached summary in line with
// what the server reports.
func (nb *Notebook) Open(ctx context.Context, id domain.NoteID) (domain.NoteDetail, error) {
	if err := nb.requireSession("open note"); err != nil {
		return domain.NoteDetail{}, err
	}
	detail, err := nb.reconciler.Open(ctx, id)
	if err != nil {
		return domain.NoteDetail{}, err
	}
	nb.collection.UpdateSummary(id, func(summary *domain.NoteSummary) {
		summary.Title = detail.Title
		summary.Status = detail.Status
	})
	return detail, nil
}

func (nb *Notebook) Edit(text string) (domain.DetailState, error) {
	return nb.reconciler.Edit(text)
}

func (nb *Notebook) Save(ctx context.Context) (domain.NoteDetail, error) {
	if err := nb.requireSession("save note"); err != nil {
		return domain.NoteDetail{}, err
	}
	sending := nb.reconciler.State() == domain.DetailDirty
	detail, err := nb.reconciler.Save(ctx)
	if err != nil {
		return domain.NoteDetail{}, err
	}
	if sending {
		nb.publish(ctx, domain.EventNoteSaved, detail.ID, detail.Title)
	}
	return detail, nil
}

func (nb *Notebook) Rename(ctx context.Context, title string) (domain.NoteDetail, error) {
	if err := nb.requireSession("rename note"); err != nil {
		return domain.NoteDetail{}, err
	}
	detail, err := nb.reconciler.Rename(ctx, title)
	if err != nil {
		return domain.NoteDetail{}, err
	}
	nb.collection.UpdateSummary(detail.ID, func(summary *domain.NoteSummary) {
		summary.Title = detail.Title
	})
	nb.publish(ctx, domain.EventNoteRenamed, detail.ID, detail.Title)
	return detail, nil
}

// Delete removes the note remotely and from the cache, closing it if it is active.
func (nb *Notebook) Delete(ctx context.Context, id domain.NoteID) error {
	if err := nb.requireSession("delete note"); err != nil {
		return err
	}
	summary, cached := nb.collection.Get(id)
	if err := nb.collection.Remove(ctx, id); err != nil {
		return err
	}
	nb.reconciler.Forget(id)
	if cached {
		nb.publish(ctx, domain.EventNoteDeleted, id, summary.Title)
	}
	return nil
}

func (nb *Notebook) Close() {
	nb.reconciler.Close()
}

// Recognize runs the recognition service on an image without storing it.
func (nb *Notebook) Recognize(ctx context.Context, filename, mimeType string, body io.Reader) (domain.RecognitionResult, string, error) {
	result, err := nb.recognizer.Recognize(ctx, ports.Upload{
		Filename: sanitizeFilename(filename),
		MimeType: mimeType,
		Body:     body,
	})
	if err != nil {
		return domain.RecognitionResult{}, "", err
	}
	return result, Normalize(result), nil
}

// Rerecognize sends the active note's image through recognition again and
// installs the normalized text as the draft.
func (nb *Notebook) Rerecognize(ctx context.Context) (domain.DetailState, string, error) {
	active, ok := nb.reconciler.Active()
	if !ok {
		return nb.reconciler.State(), "", domain.WrapError(domain.ErrNoActiveNote, "rerecognize note", errors.New("open a note first"))
	}
	if len(active.Image.Data) == 0 {
		return nb.reconciler.State(), "", domain.WrapError(domain.ErrInvalidInput, "rerecognize note", errors.New("note has no image"))
	}

	_, text, err := nb.Recognize(ctx, active.Filename, active.Image.MimeType, bytes.NewReader(active.Image.Data))
	if err != nil {
		return nb.reconciler.State(), "", err
	}
	state, err := nb.reconciler.EditNote(active.ID, text)
	if err != nil {
		return state, "", err
	}
	return state, text, nil
}

func (nb *Notebook) requireSession(operation string) error {
	if nb.sessions.Current().Present() {
		return nil
	}
	return domain.WrapError(domain.ErrNoSession, operation, errors.New("log in first"))
}

func (nb *Notebook) publish(ctx context.Context, eventType domain.NoteEventType, id domain.NoteID, title string) {
	if nb.events == nil {
		return
	}
	event := domain.NoteEvent{
		Type:     eventType,
		NoteID:   id,
		Title:    title,
		Identity: nb.sessions.Current().Identity,
		At:       nb.now().UTC(),
	}
	if err := nb.events.PublishNoteEvent(ctx, event); err != nil {
		nb.logger.Warn("note_event_publish_failed", "type", eventType, "note_id", id, "error", err)
	}
}

func sanitizeFilename(name string) string {
	base := filepath.Base(strings.TrimSpace(name))
	if base == "." || base == string(filepath.Separator) {
		base = ""
	}
	base = strings.ReplaceAll(base, " ", "_")
	base = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z':
			return r
		case r >= 'A' && r <= 'Z':
			return r
		case r >= '0' && r <= '9':
			return r
		case r == '.', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, base)
	if base == "" {
		return "note.png"
	}
	return base
}
