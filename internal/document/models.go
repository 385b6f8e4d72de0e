package document

import (
	"time"

	"github.com/draftdeck/draftdeck/internal/block"
)

// Status is the stored document lifecycle enum. Beyond draft/sent it is
// derived from the recipient set (see Derive) and persisted only for
// indexing; the recipient set remains the source of truth.
type Status string

const (
	StatusDraft     Status = "draft"
	StatusSent      Status = "sent"
	StatusViewed    Status = "viewed"
	StatusCompleted Status = "completed"
	StatusExpired   Status = "expired"
	StatusDeclined  Status = "declined"
)

type Role string

const (
	RoleSigner   Role = "signer"
	RoleViewer   Role = "viewer"
	RoleApprover Role = "approver"
)

func ValidRole(r Role) bool {
	switch r {
	case RoleSigner, RoleViewer, RoleApprover:
		return true
	}
	return false
}

type RecipientStatus string

const (
	RecipientPending  RecipientStatus = "pending"
	RecipientViewed   RecipientStatus = "viewed"
	RecipientSigned   RecipientStatus = "signed"
	RecipientDeclined RecipientStatus = "declined"
)

// Signing-order policies.
const (
	OrderParallel   = "parallel"
	OrderSequential = "sequential"
)

// Payment gate timings.
const (
	PayBeforeSignature = "before_signature"
	PayAfterSignature  = "after_signature"
)

// PaymentSettings ties a payment requirement to a point in the signing
// lifecycle. The gate only reads payment facts; settlement happens elsewhere.
type PaymentSettings struct {
	Enabled  bool    `json:"enabled" bson:"enabled"`
	Timing   string  `json:"timing,omitempty" bson:"timing,omitempty"`
	Amount   float64 `json:"amount,omitempty" bson:"amount,omitempty"`
	Currency string  `json:"currency,omitempty" bson:"currency,omitempty"`
}

type Settings struct {
	ExpirationDays int             `json:"expirationDays,omitempty" bson:"expirationDays,omitempty"`
	SigningOrder   string          `json:"signingOrder,omitempty" bson:"signingOrder,omitempty"`
	Payment        PaymentSettings `json:"payment" bson:"payment"`
}

// Recipient is a person an in-flight document was sent to. AccessToken is
// the sole bearer credential for the recipient-facing flow; every
// send/resend replaces the whole set with fresh tokens.
type Recipient struct {
	ID           string          `json:"id" bson:"id"`
	Email        string          `json:"email" bson:"email"`
	Name         string          `json:"name,omitempty" bson:"name,omitempty"`
	Role         Role            `json:"role" bson:"role"`
	SigningOrder int             `json:"signingOrder" bson:"signingOrder"`
	Status       RecipientStatus `json:"status" bson:"status"`
	AccessToken  string          `json:"-" bson:"accessToken"`
	ViewedAt     *time.Time      `json:"viewedAt,omitempty" bson:"viewedAt,omitempty"`
	SignedAt     *time.Time      `json:"signedAt,omitempty" bson:"signedAt,omitempty"`
}

// Document is the aggregate root. Ownership is either personal (OwnerID) or
// organizational (OrgID), never both.
type Document struct {
	ID         string            `json:"id" bson:"id"`
	OwnerID    string            `json:"ownerId,omitempty" bson:"ownerId,omitempty"`
	OrgID      string            `json:"orgId,omitempty" bson:"orgId,omitempty"`
	Title      string            `json:"title" bson:"title"`
	Content    block.List        `json:"content" bson:"content"`
	Variables  map[string]string `json:"variables,omitempty" bson:"variables,omitempty"`
	Settings   Settings          `json:"settings" bson:"settings"`
	Status     Status            `json:"status" bson:"status"`
	IsTemplate bool              `json:"isTemplate,omitempty" bson:"isTemplate,omitempty"`
	Recipients []Recipient       `json:"recipients,omitempty" bson:"recipients,omitempty"`
	CreatedAt  time.Time         `json:"createdAt" bson:"createdAt"`
	UpdatedAt  time.Time         `json:"updatedAt" bson:"updatedAt"`
	SentAt     *time.Time        `json:"sentAt,omitempty" bson:"sentAt,omitempty"`
	ExpiresAt  *time.Time        `json:"expiresAt,omitempty" bson:"expiresAt,omitempty"`
}

// Mutable reports whether content and variables may still change. Sending
// freezes the document.
func (d *Document) Mutable() bool { return d.Status == StatusDraft }

// RecipientByID returns a pointer into the document's recipient slice.
func (d *Document) RecipientByID(id string) *Recipient {
	for i := range d.Recipients {
		if d.Recipients[i].ID == id {
			return &d.Recipients[i]
		}
	}
	return nil
}

// RecipientByToken resolves the bearer credential to its recipient. Tokens
// from a superseded send no longer appear in the set and resolve to nil.
func (d *Document) RecipientByToken(token string) *Recipient {
	for i := range d.Recipients {
		if d.Recipients[i].AccessToken == token {
			return &d.Recipients[i]
		}
	}
	return nil
}

// SignersBefore reports whether every recipient with a signing order lower
// than k has signed. Ordering is by signingOrder value irrespective of role;
// assigning orders to non-signers is the caller's concern.
func (d *Document) SignersBefore(k int) bool {
	for i := range d.Recipients {
		r := &d.Recipients[i]
		if r.SigningOrder < k && r.Status != RecipientSigned {
			return false
		}
	}
	return true
}

// Derive computes the document status from the recipient set at the given
// instant. paymentCleared matters only for the after-signature gate: until
// it clears the document cannot reach completed.
func (d *Document) Derive(now time.Time, paymentCleared bool) Status {
	if d.Status == StatusDraft {
		return StatusDraft
	}
	// persisted expiry is sticky; only a resend revives the document
	if d.Status == StatusExpired {
		return StatusExpired
	}
	for i := range d.Recipients {
		if d.Recipients[i].Status == RecipientDeclined {
			return StatusDeclined
		}
	}
	hasSigner := false
	allSigned := true
	anyViewed := false
	for i := range d.Recipients {
		r := &d.Recipients[i]
		if r.Role == RoleSigner {
			hasSigner = true
			if r.Status != RecipientSigned {
				allSigned = false
			}
		}
		if r.Status == RecipientViewed || r.Status == RecipientSigned {
			anyViewed = true
		}
	}
	if hasSigner && allSigned {
		p := d.Settings.Payment
		if !p.Enabled || p.Timing != PayAfterSignature || paymentCleared {
			return StatusCompleted
		}
		// signed but awaiting payment: remains viewed
		return StatusViewed
	}
	if d.ExpiresAt != nil && now.After(*d.ExpiresAt) {
		return StatusExpired
	}
	if anyViewed {
		return StatusViewed
	}
	return StatusSent
}
