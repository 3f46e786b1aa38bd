package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/kirillkom/notepeel/internal/core/domain"
	"github.com/kirillkom/notepeel/internal/core/ports"
)

// NoteReconciler owns the single active note and its draft.
//
// States: Empty -> Loading -> Viewing <-> Dirty, back to Empty on Close or
// when the active note is deleted. Only the most recently issued Open may
// install a note; replies to superseded Opens are dropped, and failed Opens
// return their own error.
//
// Dirty is measured against the text the note opened with, so for a note
// without structured text the raw text is the clean draft and an empty draft
// counts as an edit.
type NoteReconciler struct {
	notes  ports.NoteAPI
	logger *slog.Logger

	mu         sync.Mutex
	state      domain.DetailState
	active     *domain.NoteDetail
	loadingID  domain.NoteID
	generation uint64
	// baseline is the text the server currently holds for the active note:
	// the structured text, or the raw text until something has been saved.
	baseline string
	onStale  func()
}

var _ ports.NoteEditor = (*NoteReconciler)(nil)

func NewNoteReconciler(notes ports.NoteAPI, logger *slog.Logger) *NoteReconciler {
	if logger == nil {
		logger = slog.Default()
	}
	return &NoteReconciler{
		notes:  notes,
		logger: logger,
		state:  domain.DetailEmpty,
	}
}

// OnStale registers fn to run whenever a superseded response is discarded.
// fn runs under the reconciler lock and must not call back into it.
func (r *NoteReconciler) OnStale(fn func()) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.onStale = fn
}

func (r *NoteReconciler) Open(ctx context.Context, id domain.NoteID) (domain.NoteDetail, error) {
	r.mu.Lock()
	r.generation++
	gen := r.generation
	r.state = domain.DetailLoading
	r.active = nil
	r.baseline = ""
	r.loadingID = id
	r.mu.Unlock()

	detail, err := r.notes.GetFull(ctx, id)

	r.mu.Lock()
	defer r.mu.Unlock()
	current := gen == r.generation
	if err != nil {
		if current {
			r.state = domain.DetailEmpty
			r.loadingID = 0
		}
		return domain.NoteDetail{}, err
	}
	if !current {
		r.staleLocked("open", id)
		return domain.NoteDetail{}, domain.WrapError(domain.ErrStaleResponse, "open note", fmt.Errorf("note %d superseded", id))
	}

	detail.DraftText = detail.InitialDraft()
	r.active = &detail
	r.baseline = detail.DraftText
	r.state = domain.DetailViewing
	r.loadingID = 0
	return detail.Clone(), nil
}

// Edit replaces the draft. Equality with the saved text decides between
// Viewing and Dirty, so undoing an edit returns to Viewing.
func (r *NoteReconciler) Edit(text string) (domain.DetailState, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.active == nil {
		return r.state, domain.WrapError(domain.ErrNoActiveNote, "edit note", errors.New("open a note first"))
	}
	return r.editLocked(text), nil
}

// EditNote is Edit guarded by the expected active note, for drafts produced
// by a network round trip that may have been overtaken by another Open.
func (r *NoteReconciler) EditNote(id domain.NoteID, text string) (domain.DetailState, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.active == nil {
		return r.state, domain.WrapError(domain.ErrNoActiveNote, "edit note", errors.New("open a note first"))
	}
	if r.active.ID != id {
		r.staleLocked("edit", id)
		return r.state, domain.WrapError(domain.ErrStaleResponse, "edit note", fmt.Errorf("note %d is no longer active", id))
	}
	return r.editLocked(text), nil
}

func (r *NoteReconciler) editLocked(text string) domain.DetailState {
	r.active.DraftText = text
	r.state = r.stateLocked()
	return r.state
}

// Save sends the draft when it differs from the saved text. From Viewing it
// returns the active note without any request. A failed save keeps the draft
// and the Dirty state; retrying is up to the caller.
func (r *NoteReconciler) Save(ctx context.Context) (domain.NoteDetail, error) {
	r.mu.Lock()
	if r.active == nil {
		r.mu.Unlock()
		return domain.NoteDetail{}, domain.WrapError(domain.ErrNoActiveNote, "save note", errors.New("open a note first"))
	}
	if r.state != domain.DetailDirty {
		out := r.active.Clone()
		r.mu.Unlock()
		return out, nil
	}
	gen := r.generation
	snapshot := r.active.Clone()
	draft := snapshot.DraftText
	r.mu.Unlock()

	err := r.notes.Update(ctx, snapshot.ID, domain.NoteUpdate{StructuredText: &draft})

	r.mu.Lock()
	defer r.mu.Unlock()
	superseded := gen != r.generation || r.active == nil || r.active.ID != snapshot.ID
	if err != nil {
		if !superseded {
			r.logger.Warn("note_save_failed", "note_id", snapshot.ID, "error", err)
		}
		return domain.NoteDetail{}, err
	}

	snapshot.StructuredText = draft
	if superseded {
		r.staleLocked("save", snapshot.ID)
		return snapshot, nil
	}

	r.active.StructuredText = draft
	r.baseline = draft
	r.state = r.stateLocked()
	return r.active.Clone(), nil
}

// Rename changes the active note's title remotely and locally.
func (r *NoteReconciler) Rename(ctx context.Context, title string) (domain.NoteDetail, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return domain.NoteDetail{}, domain.WrapError(domain.ErrInvalidInput, "rename note", errors.New("title is required"))
	}

	r.mu.Lock()
	if r.active == nil {
		r.mu.Unlock()
		return domain.NoteDetail{}, domain.WrapError(domain.ErrNoActiveNote, "rename note", errors.New("open a note first"))
	}
	gen := r.generation
	snapshot := r.active.Clone()
	r.mu.Unlock()

	if err := r.notes.Update(ctx, snapshot.ID, domain.NoteUpdate{Title: &title}); err != nil {
		return domain.NoteDetail{}, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	snapshot.Title = title
	if gen != r.generation || r.active == nil || r.active.ID != snapshot.ID {
		r.staleLocked("rename", snapshot.ID)
		return snapshot, nil
	}
	r.active.Title = title
	return r.active.Clone(), nil
}

// Close discards the active note and any unsaved draft.
func (r *NoteReconciler) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.resetLocked()
}

// Forget closes the active or loading note if it is id. It reports whether
// anything was discarded.
func (r *NoteReconciler) Forget(id domain.NoteID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	activeMatch := r.active != nil && r.active.ID == id
	loadingMatch := r.state == domain.DetailLoading && r.loadingID == id
	if !activeMatch && !loadingMatch {
		return false
	}
	r.resetLocked()
	return true
}

func (r *NoteReconciler) Active() (domain.NoteDetail, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.active == nil {
		return domain.NoteDetail{}, false
	}
	return r.active.Clone(), true
}

func (r *NoteReconciler) State() domain.DetailState {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

func (r *NoteReconciler) resetLocked() {
	r.generation++
	r.active = nil
	r.baseline = ""
	r.loadingID = 0
	r.state = domain.DetailEmpty
}

func (r *NoteReconciler) stateLocked() domain.DetailState {
	if r.active.DraftText == r.baseline {
		return domain.DetailViewing
	}
	return domain.DetailDirty
}

func (r *NoteReconciler) staleLocked(operation string, id domain.NoteID) {
	r.logger.Debug("stale_response_discarded", "operation", operation, "note_id", id)
	if r.onStale != nil {
		r.onStale()
	}
}
