package ports

import (
	"context"
	"io"

	"github.com/kirillkom/notepeel/internal/core/domain"
)

// SessionRepository persists the single session record across restarts.
type SessionRepository interface {
	Load(ctx context.Context) (domain.Session, bool, error)
	Save(ctx context.Context, session domain.Session) error
	Clear(ctx context.Context) error
}

// IdentityAPI is the remote identity service.
type IdentityAPI interface {
	Register(ctx context.Context, email, username, password string) (domain.User, error)
	Login(ctx context.Context, email, password string) (token string, err error)
	Me(ctx context.Context) (domain.User, error)
}

// Upload is a binary image sent as a multipart body.
type Upload struct {
	Filename string
	MimeType string
	Body     io.Reader
}

// NoteAPI is the remote note store.
type NoteAPI interface {
	Upload(ctx context.Context, upload Upload, title string) (domain.NoteSummary, error)
	List(ctx context.Context) ([]domain.NoteSummary, error)
	GetFull(ctx context.Context, id domain.NoteID) (domain.NoteDetail, error)
	Update(ctx context.Context, id domain.NoteID, update domain.NoteUpdate) error
	Delete(ctx context.Context, id domain.NoteID) error
}

// Recognizer is the unauthenticated recognition service.
type Recognizer interface {
	Recognize(ctx context.Context, upload Upload) (domain.RecognitionResult, error)
}

// NoteEventPublisher announces confirmed mutations. Delivery is best-effort.
type NoteEventPublisher interface {
	PublishNoteEvent(ctx context.Context, event domain.NoteEvent) error
}

// NoteEventSubscriber streams events until ctx is done.
type NoteEventSubscriber interface {
	SubscribeNoteEvents(ctx context.Context, handler func(context.Context, domain.NoteEvent) error) error
}
