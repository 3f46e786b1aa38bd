package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/kirillkom/notepeel/internal/core/domain"
)

func detailFixture(id domain.NoteID, raw, structured string) domain.NoteDetail {
	return domain.NoteDetail{
		NoteSummary:    domain.NoteSummary{ID: id, Title: "note", Status: domain.NoteStatusProcessed},
		Image:          domain.Image{Data: []byte{0x89, 0x50}, MimeType: "image/png"},
		RawText:        raw,
		StructuredText: structured,
	}
}

func openedReconciler(t *testing.T, detail domain.NoteDetail) (*NoteReconciler, *noteAPIFake) {
	t.Helper()
	api := &noteAPIFake{details: map[domain.NoteID]domain.NoteDetail{detail.ID: detail}}
	r := NewNoteReconciler(api, testLogger())
	if _, err := r.Open(context.Background(), detail.ID); err != nil {
		t.Fatalf("open: %v", err)
	}
	return r, api
}

func TestReconcilerOpenUsesStructuredTextAsDraft(t *testing.T) {
	r, _ := openedReconciler(t, detailFixture(1, "raw", "structured"))
	active, ok := r.Active()
	if !ok || active.DraftText != "structured" {
		t.Fatalf("unexpected draft: %+v", active)
	}
	if r.State() != domain.DetailViewing {
		t.Fatalf("expected viewing, got %s", r.State())
	}
}

func TestReconcilerOpenFallsBackToRawText(t *testing.T) {
	r, _ := openedReconciler(t, detailFixture(1, "raw only", ""))
	active, _ := r.Active()
	if active.DraftText != "raw only" {
		t.Fatalf("expected raw draft, got %q", active.DraftText)
	}
	if r.State() != domain.DetailViewing {
		t.Fatalf("expected viewing, got %s", r.State())
	}
}

func TestReconcilerOpenFailureReturnsToEmpty(t *testing.T) {
	r := NewNoteReconciler(&noteAPIFake{}, testLogger())
	_, err := r.Open(context.Background(), 9)
	if !domain.IsKind(err, domain.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if r.State() != domain.DetailEmpty {
		t.Fatalf("expected empty, got %s", r.State())
	}
}

func TestReconcilerEditBackToSavedTextIsViewing(t *testing.T) {
	r, _ := openedReconciler(t, detailFixture(1, "", "saved"))

	state, err := r.Edit("changed")
	if err != nil || state != domain.DetailDirty {
		t.Fatalf("expected dirty, got %s (%v)", state, err)
	}
	state, err = r.Edit("saved")
	if err != nil || state != domain.DetailViewing {
		t.Fatalf("expected viewing after undo, got %s (%v)", state, err)
	}
}

func TestReconcilerSaveFromViewingSendsNothing(t *testing.T) {
	r, api := openedReconciler(t, detailFixture(1, "", "saved"))

	detail, err := r.Save(context.Background())
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	if api.updateCount() != 0 {
		t.Fatalf("expected no update request, got %d", api.updateCount())
	}
	if detail.StructuredText != "saved" {
		t.Fatalf("unexpected detail: %+v", detail)
	}
}

func TestReconcilerSaveDirtyDraft(t *testing.T) {
	r, api := openedReconciler(t, detailFixture(1, "raw", "old"))
	if _, err := r.Edit("new text"); err != nil {
		t.Fatalf("edit: %v", err)
	}

	detail, err := r.Save(context.Background())
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	if detail.StructuredText != "new text" || detail.DraftText != "new text" {
		t.Fatalf("unexpected saved detail: %+v", detail)
	}
	if r.State() != domain.DetailViewing {
		t.Fatalf("expected viewing after save, got %s", r.State())
	}
	if len(api.updates) != 1 || api.updates[0].id != 1 || *api.updates[0].update.StructuredText != "new text" {
		t.Fatalf("unexpected update calls: %+v", api.updates)
	}
	if api.updates[0].update.Title != nil {
		t.Fatalf("save must only send structured text")
	}
}

func TestReconcilerSaveFailureKeepsDraft(t *testing.T) {
	r, api := openedReconciler(t, detailFixture(1, "", "old"))
	if _, err := r.Edit("unsaved"); err != nil {
		t.Fatalf("edit: %v", err)
	}
	api.updateErr = errTransportDown

	if _, err := r.Save(context.Background()); !domain.IsKind(err, domain.ErrNetworkUnavailable) {
		t.Fatalf("expected network error, got %v", err)
	}
	active, _ := r.Active()
	if active.DraftText != "unsaved" || active.StructuredText != "old" {
		t.Fatalf("expected draft kept and saved text untouched: %+v", active)
	}
	if r.State() != domain.DetailDirty {
		t.Fatalf("expected dirty, got %s", r.State())
	}
}

func TestReconcilerSaveWithoutActiveNote(t *testing.T) {
	r := NewNoteReconciler(&noteAPIFake{}, testLogger())
	if _, err := r.Save(context.Background()); !domain.IsKind(err, domain.ErrNoActiveNote) {
		t.Fatalf("expected no active note, got %v", err)
	}
}

func TestReconcilerDiscardsStaleOpen(t *testing.T) {
	release := make(chan struct{})
	started := make(chan domain.NoteID, 2)
	api := &noteAPIFake{}
	api.getFull = func(_ context.Context, id domain.NoteID) (domain.NoteDetail, error) {
		started <- id
		if id == 1 {
			<-release
		}
		return detailFixture(id, "", "text of note"), nil
	}
	r := NewNoteReconciler(api, testLogger())
	stale := 0
	r.OnStale(func() { stale++ })

	firstDone := make(chan error, 1)
	go func() {
		_, err := r.Open(context.Background(), 1)
		firstDone <- err
	}()
	select {
	case <-started:
	case <-time.After(2 * time.Second):
		t.Fatalf("first open never reached the API")
	}

	if _, err := r.Open(context.Background(), 2); err != nil {
		t.Fatalf("open 2: %v", err)
	}
	close(release)

	select {
	case err := <-firstDone:
		if !domain.IsKind(err, domain.ErrStaleResponse) {
			t.Fatalf("expected stale response, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("first open never returned")
	}

	active, ok := r.Active()
	if !ok || active.ID != 2 {
		t.Fatalf("expected note 2 active, got %+v", active)
	}
	if stale != 1 {
		t.Fatalf("expected one stale notification, got %d", stale)
	}
}

func TestReconcilerRenameKeepsDraft(t *testing.T) {
	r, api := openedReconciler(t, detailFixture(1, "", "saved"))
	if _, err := r.Edit("draft"); err != nil {
		t.Fatalf("edit: %v", err)
	}

	detail, err := r.Rename(context.Background(), "  Lecture 3 ")
	if err != nil {
		t.Fatalf("rename: %v", err)
	}
	if detail.Title != "Lecture 3" || detail.DraftText != "draft" {
		t.Fatalf("unexpected detail: %+v", detail)
	}
	if r.State() != domain.DetailDirty {
		t.Fatalf("rename must not touch draft state, got %s", r.State())
	}
	if len(api.updates) != 1 || *api.updates[0].update.Title != "Lecture 3" || api.updates[0].update.StructuredText != nil {
		t.Fatalf("unexpected update calls: %+v", api.updates)
	}
}

func TestReconcilerRenameRequiresTitle(t *testing.T) {
	r, _ := openedReconciler(t, detailFixture(1, "", "saved"))
	if _, err := r.Rename(context.Background(), " "); !domain.IsKind(err, domain.ErrInvalidInput) {
		t.Fatalf("expected invalid input, got %v", err)
	}
}

func TestReconcilerForgetActiveNote(t *testing.T) {
	r, _ := openedReconciler(t, detailFixture(5, "", "saved"))
	if r.Forget(6) {
		t.Fatalf("forget of another note must be a no-op")
	}
	if !r.Forget(5) {
		t.Fatalf("expected active note forgotten")
	}
	if r.State() != domain.DetailEmpty {
		t.Fatalf("expected empty, got %s", r.State())
	}
	if _, ok := r.Active(); ok {
		t.Fatalf("expected no active note")
	}
}

func TestReconcilerEditNoteRejectsSupersededNote(t *testing.T) {
	r, _ := openedReconciler(t, detailFixture(1, "", "saved"))
	if _, err := r.EditNote(2, "late"); !domain.IsKind(err, domain.ErrStaleResponse) {
		t.Fatalf("expected stale response, got %v", err)
	}
	active, _ := r.Active()
	if active.DraftText != "saved" {
		t.Fatalf("draft must not change, got %q", active.DraftText)
	}
}

func TestReconcilerActiveReturnsCopy(t *testing.T) {
	r, _ := openedReconciler(t, detailFixture(1, "", "saved"))
	active, _ := r.Active()
	active.Image.Data[0] = 0
	again, _ := r.Active()
	if again.Image.Data[0] != 0x89 {
		t.Fatalf("image bytes shared with caller")
	}
}

func TestReconcilerSupersededOpenFailureKeepsItsError(t *testing.T) {
	api := &noteAPIFake{}
	r := NewNoteReconciler(api, testLogger())
	stale := 0
	r.OnStale(func() { stale++ })
	api.getFull = func(context.Context, domain.NoteID) (domain.NoteDetail, error) {
		r.Close()
		return domain.NoteDetail{}, domain.WrapError(domain.ErrUnauthorized, "notes.get_full", errors.New("expired"))
	}

	_, err := r.Open(context.Background(), 7)
	if !domain.IsKind(err, domain.ErrUnauthorized) || domain.IsKind(err, domain.ErrStaleResponse) {
		t.Fatalf("expected the open error, got %v", err)
	}
	if stale != 0 {
		t.Fatalf("failed open counted as stale %d times", stale)
	}
	if r.State() != domain.DetailEmpty {
		t.Fatalf("expected empty, got %s", r.State())
	}
}

func TestReconcilerRawTextIsTheCleanDraft(t *testing.T) {
	r, _ := openedReconciler(t, detailFixture(1, "raw only", ""))

	if state, _ := r.Edit("rewritten"); state != domain.DetailDirty {
		t.Fatalf("expected dirty, got %s", state)
	}
	if state, _ := r.Edit(""); state != domain.DetailDirty {
		t.Fatalf("clearing a raw-text draft is an edit, got %s", state)
	}
	if state, _ := r.Edit("raw only"); state != domain.DetailViewing {
		t.Fatalf("expected viewing when the raw text is restored, got %s", state)
	}
}
