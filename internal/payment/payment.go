package payment

import (
	"context"
	"errors"
	"time"

	"github.com/draftdeck/draftdeck/internal/document"
	"github.com/google/uuid"
)

// Fact statuses as reported by the settlement collaborator.
const (
	StatusSucceeded = "succeeded"
	StatusFailed    = "failed"
	StatusPending   = "pending"
)

var (
	// ErrPaymentRequired is a distinct conflict so callers can tell "pay
	// first" apart from generic permission or state errors.
	ErrPaymentRequired = errors.New("payment required")
	ErrValidation      = errors.New("invalid payment fact")
)

// Fact records the outcome of one payment attempt for a document/recipient
// pair. Facts are produced by external settlement collaborators; this
// package only stores and reads them.
type Fact struct {
	ID                string    `json:"id" bson:"id"`
	DocumentID        string    `json:"documentId" bson:"documentId"`
	RecipientID       string    `json:"recipientId" bson:"recipientId"`
	Amount            float64   `json:"amount" bson:"amount"`
	Currency          string    `json:"currency" bson:"currency"`
	Status            string    `json:"status" bson:"status"`
	Method            string    `json:"method,omitempty" bson:"method,omitempty"`
	ExternalReference string    `json:"externalReference,omitempty" bson:"externalReference,omitempty"`
	RecordedAt        time.Time `json:"recordedAt" bson:"recordedAt"`
}

func (f *Fact) validate() error {
	if f.DocumentID == "" || f.RecipientID == "" {
		return ErrValidation
	}
	switch f.Status {
	case StatusSucceeded, StatusFailed, StatusPending:
	default:
		return ErrValidation
	}
	if f.Amount < 0 {
		return ErrValidation
	}
	return nil
}

// Repository stores payment facts.
type Repository interface {
	Record(ctx context.Context, f *Fact) error
	ListForDocument(ctx context.Context, documentID string) ([]*Fact, error)
	HasSucceeded(ctx context.Context, documentID, recipientID string) (bool, error)
}

// Gate binds a document's payment settings to the signing lifecycle. It
// reads facts only; it never initiates a charge.
type Gate struct {
	repo Repository
}

func NewGate(repo Repository) *Gate { return &Gate{repo: repo} }

// Record validates and stores a fact reported by a collaborator.
func (g *Gate) Record(ctx context.Context, f *Fact) error {
	if err := f.validate(); err != nil {
		return err
	}
	if f.ID == "" {
		f.ID = uuid.NewString()
	}
	if f.RecordedAt.IsZero() {
		f.RecordedAt = time.Now().UTC()
	}
	return g.repo.Record(ctx, f)
}

// AllowSign rejects a before-signature-gated signing attempt until a
// successful fact exists for the document/recipient pair.
func (g *Gate) AllowSign(ctx context.Context, d *document.Document, recipientID string) error {
	p := d.Settings.Payment
	if !p.Enabled || p.Timing != document.PayBeforeSignature {
		return nil
	}
	ok, err := g.repo.HasSucceeded(ctx, d.ID, recipientID)
	if err != nil {
		return err
	}
	if !ok {
		return ErrPaymentRequired
	}
	return nil
}

// Cleared reports whether any recipient of the document has a successful
// fact. Used by status derivation for the after-signature gate.
func (g *Gate) Cleared(ctx context.Context, d *document.Document) (bool, error) {
	p := d.Settings.Payment
	if !p.Enabled {
		return true, nil
	}
	facts, err := g.repo.ListForDocument(ctx, d.ID)
	if err != nil {
		return false, err
	}
	for _, f := range facts {
		if f.Status == StatusSucceeded {
			return true, nil
		}
	}
	return false, nil
}
