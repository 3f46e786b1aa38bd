package domain

import (
	"strings"
	"time"
)

type NoteID int64

type NoteStatus string

const (
	NoteStatusPending   NoteStatus = "pending"
	NoteStatusProcessed NoteStatus = "processed"
	NoteStatusFailed    NoteStatus = "failed"
)

// ParseNoteStatus folds the server's processing states into the client's three.
func ParseNoteStatus(raw string) NoteStatus {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "completed", "processed", "done":
		return NoteStatusProcessed
	case "failed", "error":
		return NoteStatusFailed
	default:
		return NoteStatusPending
	}
}

// NoteSummary identifies a note in the collection without its heavy payload.
type NoteSummary struct {
	ID        NoteID     `json:"id"`
	Title     string     `json:"title,omitempty"`
	Filename  string     `json:"image_filename,omitempty"`
	Subject   string     `json:"subject,omitempty"`
	Topic     string     `json:"topic,omitempty"`
	Status    NoteStatus `json:"status"`
	CreatedAt time.Time  `json:"created_at"`
}

type Image struct {
	Data     []byte
	MimeType string
}

// NoteDetail is a full note. StructuredText is the last value confirmed saved
// remotely; DraftText is the local edit and equals StructuredText once a save succeeds.
type NoteDetail struct {
	NoteSummary
	Image          Image
	RawText        string
	StructuredText string
	DraftText      string
	ErrorMessage   string
}

// InitialDraft is the structured text when the server has one, the raw text otherwise.
func (d NoteDetail) InitialDraft() string {
	if d.StructuredText != "" {
		return d.StructuredText
	}
	return d.RawText
}

// Clone returns a copy that shares no mutable memory with d.
func (d NoteDetail) Clone() NoteDetail {
	out := d
	if d.Image.Data != nil {
		out.Image.Data = append([]byte(nil), d.Image.Data...)
	}
	return out
}

// NoteUpdate is a partial update; nil fields are left untouched remotely.
type NoteUpdate struct {
	StructuredText *string `json:"structured_text,omitempty"`
	Title          *string `json:"title,omitempty"`
}

type DetailState string

const (
	DetailEmpty   DetailState = "empty"
	DetailLoading DetailState = "loading"
	DetailViewing DetailState = "viewing"
	DetailDirty   DetailState = "dirty"
)
