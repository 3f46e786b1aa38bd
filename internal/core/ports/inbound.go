package ports

import (
	"context"

	"github.com/kirillkom/notepeel/internal/core/domain"
)

// SessionManager is the inbound contract for the session lifecycle.
type SessionManager interface {
	Login(ctx context.Context, email, password string) (domain.Session, error)
	Register(ctx context.Context, email, username, password string) (domain.Session, error)
	Restore(ctx context.Context) (domain.Session, bool, error)
	Logout(ctx context.Context)
	Current() domain.Session
}

// NoteCollection is the inbound contract for the cached note list.
type NoteCollection interface {
	Refresh(ctx context.Context) ([]domain.NoteSummary, error)
	Insert(summary domain.NoteSummary)
	Remove(ctx context.Context, id domain.NoteID) error
	List() []domain.NoteSummary
	Get(id domain.NoteID) (domain.NoteSummary, bool)
}

// NoteEditor is the inbound contract for the single active note.
type NoteEditor interface {
	Open(ctx context.Context, id domain.NoteID) (domain.NoteDetail, error)
	Edit(text string) (domain.DetailState, error)
	Save(ctx context.Context) (domain.NoteDetail, error)
	Close()
	Active() (domain.NoteDetail, bool)
	State() domain.DetailState
}
