package repository

import (
	"context"
	"sync"
	"time"

	"github.com/draftdeck/draftdeck/internal/block"
	"github.com/draftdeck/draftdeck/internal/document"
	"github.com/google/uuid"
)

// MemoryRepo keeps documents in a process-local map. It backs unit tests and
// the standalone dev entrypoint; deployments use the Mongo repository.
// Reads hand out deep copies so a reader never observes a recipient set
// mid-transition.
type MemoryRepo struct {
	mu    sync.RWMutex
	store map[string]*document.Document
}

func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{store: make(map[string]*document.Document)}
}

func clone(d *document.Document) *document.Document {
	cp := *d
	cp.Content = append(block.List(nil), d.Content...)
	cp.Recipients = append([]document.Recipient(nil), d.Recipients...)
	if d.Variables != nil {
		cp.Variables = make(map[string]string, len(d.Variables))
		for k, v := range d.Variables {
			cp.Variables[k] = v
		}
	}
	return &cp
}

func (m *MemoryRepo) Create(ctx context.Context, d *document.Document) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if d.ID == "" {
		d.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	d.CreatedAt = now
	d.UpdatedAt = now
	if d.Status == "" {
		d.Status = document.StatusDraft
	}
	m.store[d.ID] = clone(d)
	return nil
}

func (m *MemoryRepo) Get(ctx context.Context, id string) (*document.Document, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if d, ok := m.store[id]; ok {
		return clone(d), nil
	}
	return nil, ErrNotFound
}

func (m *MemoryRepo) GetByToken(ctx context.Context, token string) (*document.Document, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, d := range m.store {
		if d.RecipientByToken(token) != nil {
			return clone(d), nil
		}
	}
	return nil, ErrNotFound
}

func (m *MemoryRepo) ListByOwner(ctx context.Context, ownerID string) ([]*document.Document, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := []*document.Document{}
	for _, d := range m.store {
		if d.OwnerID == ownerID {
			out = append(out, clone(d))
		}
	}
	return out, nil
}

func (m *MemoryRepo) UpdateDraft(ctx context.Context, d *document.Document) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.store[d.ID]
	if !ok {
		return ErrNotFound
	}
	if cur.Status != document.StatusDraft {
		return ErrConflict
	}
	cur.Title = d.Title
	cur.Content = append(cur.Content[:0:0], d.Content...)
	cur.Variables = d.Variables
	cur.Settings = d.Settings
	cur.UpdatedAt = time.Now().UTC()
	return nil
}

func (m *MemoryRepo) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.store[id]; !ok {
		return ErrNotFound
	}
	delete(m.store, id)
	return nil
}

func statusIn(s document.Status, set []document.Status) bool {
	for _, v := range set {
		if v == s {
			return true
		}
	}
	return false
}

func (m *MemoryRepo) MarkSent(ctx context.Context, id string, from []document.Status, recipients []document.Recipient, sentAt time.Time, expiresAt *time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.store[id]
	if !ok {
		return ErrNotFound
	}
	if !statusIn(cur.Status, from) {
		return ErrConflict
	}
	cur.Status = document.StatusSent
	cur.Recipients = append([]document.Recipient(nil), recipients...)
	cur.SentAt = &sentAt
	cur.ExpiresAt = expiresAt
	cur.UpdatedAt = time.Now().UTC()
	return nil
}

func (m *MemoryRepo) MarkViewed(ctx context.Context, docID, recipientID string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.store[docID]
	if !ok {
		return ErrNotFound
	}
	r := cur.RecipientByID(recipientID)
	if r == nil {
		return ErrNotFound
	}
	if r.Status != document.RecipientPending {
		return nil
	}
	r.Status = document.RecipientViewed
	r.ViewedAt = &at
	cur.UpdatedAt = time.Now().UTC()
	return nil
}

func (m *MemoryRepo) TransitionRecipient(ctx context.Context, docID, recipientID string, from []document.RecipientStatus, to document.RecipientStatus, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.store[docID]
	if !ok {
		return ErrNotFound
	}
	r := cur.RecipientByID(recipientID)
	if r == nil {
		return ErrNotFound
	}
	match := false
	for _, f := range from {
		if r.Status == f {
			match = true
			break
		}
	}
	if !match {
		return ErrConflict
	}
	r.Status = to
	if to == document.RecipientSigned {
		r.SignedAt = &at
	}
	cur.UpdatedAt = time.Now().UTC()
	return nil
}

func (m *MemoryRepo) SetStatus(ctx context.Context, docID string, status document.Status) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.store[docID]
	if !ok {
		return ErrNotFound
	}
	cur.Status = status
	cur.UpdatedAt = time.Now().UTC()
	return nil
}

func (m *MemoryRepo) ListOverdue(ctx context.Context, now time.Time) ([]*document.Document, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := []*document.Document{}
	for _, d := range m.store {
		if (d.Status == document.StatusSent || d.Status == document.StatusViewed) &&
			d.ExpiresAt != nil && now.After(*d.ExpiresAt) {
			out = append(out, clone(d))
		}
	}
	return out, nil
}
