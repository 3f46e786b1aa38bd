package httpapi

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/oapi-codegen/runtime"

	"github.com/kirillkom/notepeel/internal/core/domain"
	"github.com/kirillkom/notepeel/internal/core/ports"
)

// Route templates as named in the API contract.
const (
	RouteRegister   = "/api/auth/register"
	RouteLogin      = "/api/auth/login"
	RouteMe         = "/api/auth/me"
	RouteNotes      = "/api/notes/"
	RouteNoteUpload = "/api/notes/upload"
	RouteNote       = "/api/notes/{id}"
	RouteNoteFull   = "/api/notes/{id}/full"
	RouteOCR        = "/ocr"
)

// IdentityAPI implements ports.IdentityAPI over the auth endpoints.
type IdentityAPI struct {
	client *Client
}

func NewIdentityAPI(client *Client) *IdentityAPI {
	return &IdentityAPI{client: client}
}

func (a *IdentityAPI) Register(ctx context.Context, email, username, password string) (domain.User, error) {
	var out userDTO
	err := a.client.Do(ctx, Request{
		Operation: "auth.register",
		Method:    http.MethodPost,
		Path:      RouteRegister,
		Route:     RouteRegister,
		Body: map[string]string{
			"email":    email,
			"username": username,
			"password": password,
		},
	}, &out)
	if err != nil {
		return domain.User{}, err
	}
	return out.toDomain(), nil
}

func (a *IdentityAPI) Login(ctx context.Context, email, password string) (string, error) {
	var out tokenDTO
	err := a.client.Do(ctx, Request{
		Operation: "auth.login",
		Method:    http.MethodPost,
		Path:      RouteLogin,
		Route:     RouteLogin,
		Body: map[string]string{
			"email":    email,
			"password": password,
		},
	}, &out)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(out.AccessToken), nil
}

func (a *IdentityAPI) Me(ctx context.Context) (domain.User, error) {
	var out userDTO
	err := a.client.Do(ctx, Request{
		Operation: "auth.me",
		Method:    http.MethodGet,
		Path:      RouteMe,
		Route:     RouteMe,
		Auth:      true,
	}, &out)
	if err != nil {
		return domain.User{}, err
	}
	return out.toDomain(), nil
}

// NotesAPI implements ports.NoteAPI over the notes endpoints.
type NotesAPI struct {
	client *Client
}

func NewNotesAPI(client *Client) *NotesAPI {
	return &NotesAPI{client: client}
}

func (a *NotesAPI) Upload(ctx context.Context, upload ports.Upload, title string) (domain.NoteSummary, error) {
	var fields map[string]string
	if title != "" {
		fields = map[string]string{"title": title}
	}
	var out noteSummaryDTO
	err := a.client.Do(ctx, Request{
		Operation: "notes.upload",
		Method:    http.MethodPost,
		Path:      RouteNoteUpload,
		Route:     RouteNoteUpload,
		Upload: &FilePart{
			Field:    "file",
			Filename: upload.Filename,
			MimeType: upload.MimeType,
			Body:     upload.Body,
		},
		Fields:         fields,
		Auth:           true,
		FailureMessage: "Upload failed",
	}, &out)
	if err != nil {
		return domain.NoteSummary{}, err
	}
	return out.toDomain(), nil
}

func (a *NotesAPI) List(ctx context.Context) ([]domain.NoteSummary, error) {
	var out []noteSummaryDTO
	err := a.client.Do(ctx, Request{
		Operation: "notes.list",
		Method:    http.MethodGet,
		Path:      RouteNotes,
		Route:     RouteNotes,
		Auth:      true,
	}, &out)
	if err != nil {
		return nil, err
	}
	summaries := make([]domain.NoteSummary, 0, len(out))
	for _, item := range out {
		summaries = append(summaries, item.toDomain())
	}
	return summaries, nil
}

func (a *NotesAPI) GetFull(ctx context.Context, id domain.NoteID) (domain.NoteDetail, error) {
	path, err := notePath(id, "/full")
	if err != nil {
		return domain.NoteDetail{}, err
	}
	var out noteFullDTO
	err = a.client.Do(ctx, Request{
		Operation: "notes.get_full",
		Method:    http.MethodGet,
		Path:      path,
		Route:     RouteNoteFull,
		Auth:      true,
	}, &out)
	if err != nil {
		return domain.NoteDetail{}, err
	}
	detail, err := out.toDomain()
	if err != nil {
		return domain.NoteDetail{}, fmt.Errorf("notes.get_full: %w", &domain.RemoteError{
			Code:    http.StatusOK,
			Message: "note image is not valid base64",
		})
	}
	return detail, nil
}

func (a *NotesAPI) Update(ctx context.Context, id domain.NoteID, update domain.NoteUpdate) error {
	path, err := notePath(id, "")
	if err != nil {
		return err
	}
	var out messageDTO
	return a.client.Do(ctx, Request{
		Operation: "notes.update",
		Method:    http.MethodPut,
		Path:      path,
		Route:     RouteNote,
		Body:      update,
		Auth:      true,
	}, &out)
}

func (a *NotesAPI) Delete(ctx context.Context, id domain.NoteID) error {
	path, err := notePath(id, "")
	if err != nil {
		return err
	}
	var out messageDTO
	return a.client.Do(ctx, Request{
		Operation: "notes.delete",
		Method:    http.MethodDelete,
		Path:      path,
		Route:     RouteNote,
		Auth:      true,
	}, &out)
}

// RecognitionAPI implements ports.Recognizer over the unauthenticated OCR endpoint.
type RecognitionAPI struct {
	client *Client
}

func NewRecognitionAPI(client *Client) *RecognitionAPI {
	return &RecognitionAPI{client: client}
}

func (a *RecognitionAPI) Recognize(ctx context.Context, upload ports.Upload) (domain.RecognitionResult, error) {
	var out domain.RecognitionResult
	err := a.client.Do(ctx, Request{
		Operation: "ocr.recognize",
		Method:    http.MethodPost,
		Path:      RouteOCR,
		Route:     RouteOCR,
		Upload: &FilePart{
			Field:    "file",
			Filename: upload.Filename,
			MimeType: upload.MimeType,
			Body:     upload.Body,
		},
		FailureMessage: "OCR failed",
	}, &out)
	if err != nil {
		return domain.RecognitionResult{}, err
	}
	return out, nil
}

func notePath(id domain.NoteID, suffix string) (string, error) {
	if id <= 0 {
		return "", domain.WrapError(domain.ErrInvalidInput, "note path", fmt.Errorf("invalid note id %d", id))
	}
	param, err := runtime.StyleParamWithLocation("simple", false, "id", runtime.ParamLocationPath, int64(id))
	if err != nil {
		return "", fmt.Errorf("style note id: %w", err)
	}
	return "/api/notes/" + param + suffix, nil
}
