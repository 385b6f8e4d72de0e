package repository

import (
	"context"
	"errors"
	"time"

	"github.com/draftdeck/draftdeck/internal/document"
)

var (
	ErrNotFound = errors.New("document not found")
	// ErrConflict means the stored state no longer matches the requested
	// transition (already sent, already signed, lost a concurrent race).
	ErrConflict = errors.New("document state conflict")
)

// Repository persists documents with their embedded recipient sets. Status
// transitions are conditional updates: the filter carries the expected
// current state and a miss is reported as ErrConflict, never overwritten.
type Repository interface {
	Create(ctx context.Context, d *document.Document) error
	Get(ctx context.Context, id string) (*document.Document, error)
	// GetByToken resolves a recipient access token to its document.
	GetByToken(ctx context.Context, token string) (*document.Document, error)
	ListByOwner(ctx context.Context, ownerID string) ([]*document.Document, error)
	// UpdateDraft replaces title/content/variables/settings while the
	// document is still a draft; anything later is a conflict.
	UpdateDraft(ctx context.Context, d *document.Document) error
	Delete(ctx context.Context, id string) error

	// MarkSent atomically replaces the recipient set and moves the document
	// to sent, but only when the stored status is one of from.
	MarkSent(ctx context.Context, id string, from []document.Status, recipients []document.Recipient, sentAt time.Time, expiresAt *time.Time) error
	// MarkViewed flips a pending recipient to viewed. Repeat views are a
	// no-op, not an error.
	MarkViewed(ctx context.Context, docID, recipientID string, at time.Time) error
	// TransitionRecipient is the compare-and-set behind signing and
	// declining: it succeeds only when the recipient's current status is in
	// from, so two racing requests cannot both win.
	TransitionRecipient(ctx context.Context, docID, recipientID string, from []document.RecipientStatus, to document.RecipientStatus, at time.Time) error
	// SetStatus persists the derived status enum used for indexing.
	SetStatus(ctx context.Context, docID string, status document.Status) error
	// ListOverdue returns sent/viewed documents whose expiry has passed.
	ListOverdue(ctx context.Context, now time.Time) ([]*document.Document, error)
}
