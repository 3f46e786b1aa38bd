package usecase

import (
	"context"
	"log/slog"
	"sync"

	"github.com/kirillkom/notepeel/internal/core/domain"
	"github.com/kirillkom/notepeel/internal/core/ports"
)

// NoteCollectionCache mirrors the remote note list, most recent first.
// The cache never holds two summaries with the same id.
type NoteCollectionCache struct {
	notes  ports.NoteAPI
	logger *slog.Logger

	mu        sync.RWMutex
	summaries []domain.NoteSummary
}

var _ ports.NoteCollection = (*NoteCollectionCache)(nil)

func NewNoteCollectionCache(notes ports.NoteAPI, logger *slog.Logger) *NoteCollectionCache {
	if logger == nil {
		logger = slog.Default()
	}
	return &NoteCollectionCache{
		notes:  notes,
		logger: logger,
	}
}

// Refresh replaces the whole cache with the server listing. On failure the
// previous contents are kept.
func (c *NoteCollectionCache) Refresh(ctx context.Context) ([]domain.NoteSummary, error) {
	listed, err := c.notes.List(ctx)
	if err != nil {
		return nil, err
	}

	fresh := dedupeSummaries(listed)
	if len(fresh) != len(listed) {
		c.logger.Warn("note_list_duplicates_dropped", "listed", len(listed), "kept", len(fresh))
	}

	c.mu.Lock()
	c.summaries = fresh
	out := cloneSummaries(c.summaries)
	c.mu.Unlock()
	return out, nil
}

// Insert prepends a freshly created summary without waiting for a refresh.
func (c *NoteCollectionCache) Insert(summary domain.NoteSummary) {
	c.mu.Lock()
	defer c.mu.Unlock()

	next := make([]domain.NoteSummary, 0, len(c.summaries)+1)
	next = append(next, summary)
	for _, existing := range c.summaries {
		if existing.ID == summary.ID {
			continue
		}
		next = append(next, existing)
	}
	c.summaries = next
}

// Remove deletes the note remotely and then locally. An id the cache does not
// hold is a no-op success; a remote 404 counts as already deleted.
func (c *NoteCollectionCache) Remove(ctx context.Context, id domain.NoteID) error {
	if _, ok := c.Get(id); !ok {
		return nil
	}

	if err := c.notes.Delete(ctx, id); err != nil {
		if !domain.IsKind(err, domain.ErrNotFound) {
			return err
		}
		c.logger.Debug("note_already_deleted", "note_id", id)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	next := make([]domain.NoteSummary, 0, len(c.summaries))
	for _, existing := range c.summaries {
		if existing.ID != id {
			next = append(next, existing)
		}
	}
	c.summaries = next
	return nil
}

// UpdateSummary applies fn to the cached summary for id so the list stays
// consistent with mutations made on the detail view.
func (c *NoteCollectionCache) UpdateSummary(id domain.NoteID, fn func(*domain.NoteSummary)) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i := range c.summaries {
		if c.summaries[i].ID == id {
			fn(&c.summaries[i])
			c.summaries[i].ID = id
			return true
		}
	}
	return false
}

func (c *NoteCollectionCache) List() []domain.NoteSummary {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return cloneSummaries(c.summaries)
}

func (c *NoteCollectionCache) Get(id domain.NoteID) (domain.NoteSummary, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, summary := range c.summaries {
		if summary.ID == id {
			return summary, true
		}
	}
	return domain.NoteSummary{}, false
}

func dedupeSummaries(in []domain.NoteSummary) []domain.NoteSummary {
	seen := make(map[domain.NoteID]struct{}, len(in))
	out := make([]domain.NoteSummary, 0, len(in))
	for _, summary := range in {
		if _, ok := seen[summary.ID]; ok {
			continue
		}
		seen[summary.ID] = struct{}{}
		out = append(out, summary)
	}
	return out
}

func cloneSummaries(in []domain.NoteSummary) []domain.NoteSummary {
	out := make([]domain.NoteSummary, len(in))
	copy(out, in)
	return out
}
