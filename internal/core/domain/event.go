package domain

import "time"

type NoteEventType string

const (
	EventNoteUploaded NoteEventType = "note.uploaded"
	EventNoteSaved    NoteEventType = "note.saved"
	EventNoteRenamed  NoteEventType = "note.renamed"
	EventNoteDeleted  NoteEventType = "note.deleted"
)

// NoteEvent announces a confirmed remote mutation to local listeners.
type NoteEvent struct {
	Type     NoteEventType `json:"type"`
	NoteID   NoteID        `json:"note_id"`
	Title    string        `json:"title,omitempty"`
	Identity string        `json:"identity,omitempty"`
	At       time.Time     `json:"at"`
}
