package httpapi

import (
	"encoding/base64"
	"strings"
	"time"

	"github.com/kirillkom/notepeel/internal/core/domain"
)

type userDTO struct {
	ID        int64  `json:"id"`
	Email     string `json:"email"`
	Username  string `json:"username"`
	IsActive  bool   `json:"is_active"`
	CreatedAt string `json:"created_at"`
}

func (u userDTO) toDomain() domain.User {
	return domain.User{
		ID:        u.ID,
		Email:     u.Email,
		Username:  u.Username,
		IsActive:  u.IsActive,
		CreatedAt: parseServerTime(u.CreatedAt),
	}
}

type tokenDTO struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
}

type messageDTO struct {
	Message string `json:"message"`
}

type noteSummaryDTO struct {
	ID            int64   `json:"id"`
	Title         *string `json:"title"`
	ImageFilename *string `json:"image_filename"`
	Status        string  `json:"status"`
	CreatedAt     string  `json:"created_at"`
	Subject       *string `json:"subject"`
	Topic         *string `json:"topic"`
}

func (n noteSummaryDTO) toDomain() domain.NoteSummary {
	return domain.NoteSummary{
		ID:        domain.NoteID(n.ID),
		Title:     deref(n.Title),
		Filename:  deref(n.ImageFilename),
		Subject:   deref(n.Subject),
		Topic:     deref(n.Topic),
		Status:    domain.ParseNoteStatus(n.Status),
		CreatedAt: parseServerTime(n.CreatedAt),
	}
}

type noteFullDTO struct {
	noteSummaryDTO
	ImageMimetype  *string `json:"image_mimetype"`
	ImageBase64    string  `json:"image_base64"`
	RawText        *string `json:"raw_text"`
	StructuredText *string `json:"structured_text"`
	ErrorMessage   *string `json:"error_message"`
}

func (n noteFullDTO) toDomain() (domain.NoteDetail, error) {
	var image []byte
	if payload := strings.TrimSpace(n.ImageBase64); payload != "" {
		decoded, err := base64.StdEncoding.DecodeString(payload)
		if err != nil {
			return domain.NoteDetail{}, err
		}
		image = decoded
	}
	mimeType := deref(n.ImageMimetype)
	if mimeType == "" {
		mimeType = "image/png"
	}
	return domain.NoteDetail{
		NoteSummary:    n.noteSummaryDTO.toDomain(),
		Image:          domain.Image{Data: image, MimeType: mimeType},
		RawText:        deref(n.RawText),
		StructuredText: deref(n.StructuredText),
		ErrorMessage:   deref(n.ErrorMessage),
	}, nil
}

var serverTimeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
}

// parseServerTime accepts zoned and naive ISO timestamps; naive ones are UTC.
// Unparseable input yields the zero time.
func parseServerTime(raw string) time.Time {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}
	}
	for _, layout := range serverTimeLayouts {
		if ts, err := time.Parse(layout, raw); err == nil {
			return ts.UTC()
		}
	}
	return time.Time{}
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
