package service

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"sort"
	"time"

	"github.com/draftdeck/draftdeck/internal/document"
	"github.com/draftdeck/draftdeck/internal/document/repository"
	"github.com/draftdeck/draftdeck/internal/payment"
	"github.com/draftdeck/draftdeck/internal/tokens"
	"github.com/draftdeck/draftdeck/pkg/logger"
	"github.com/draftdeck/draftdeck/pkg/metrics"
	"github.com/google/uuid"
)

var (
	ErrNotFound   = repository.ErrNotFound
	ErrConflict   = repository.ErrConflict
	ErrValidation = errors.New("validation failed")
	// ErrExpired covers documents past their expiry; the signing surface
	// reports it distinctly from an unknown token.
	ErrExpired = errors.New("document expired")
	// ErrTokenInvalid covers unknown or superseded access tokens.
	ErrTokenInvalid = errors.New("invalid access token")
)

// Notifier delivers send notifications. Delivery failures are recorded but
// never fail the send; recipients still get working access links.
type Notifier interface {
	NotifyRecipient(ctx context.Context, d *document.Document, r *document.Recipient, message, link string) error
}

// Service implements the document lifecycle and the recipient signing state
// machine on top of a repository whose transitions are atomic
// compare-and-set updates.
type Service struct {
	repo        repository.Repository
	gate        *payment.Gate
	notifier    Notifier
	signBaseURL string
}

func New(repo repository.Repository, gate *payment.Gate, notifier Notifier, signBaseURL string) *Service {
	return &Service{repo: repo, gate: gate, notifier: notifier, signBaseURL: signBaseURL}
}

// SendRecipient is one entry of a send request.
type SendRecipient struct {
	Email        string        `json:"email"`
	Name         string        `json:"name"`
	Role         document.Role `json:"role"`
	SigningOrder int           `json:"signingOrder"`
}

type SendRequest struct {
	Recipients    []SendRecipient `json:"recipients"`
	Message       string          `json:"message,omitempty"`
	ExpiresInDays *int            `json:"expiresInDays,omitempty"`
}

// CreateDraft validates and stores a new draft document.
func (s *Service) CreateDraft(ctx context.Context, d *document.Document) (*document.Document, error) {
	if d.Title == "" {
		return nil, fmt.Errorf("%w: title required", ErrValidation)
	}
	if d.OwnerID != "" && d.OrgID != "" {
		return nil, fmt.Errorf("%w: document is either personal or org-owned, not both", ErrValidation)
	}
	if d.OwnerID == "" && d.OrgID == "" {
		return nil, fmt.Errorf("%w: owner required", ErrValidation)
	}
	if err := d.Content.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidation, err)
	}
	if d.Settings.SigningOrder == "" {
		d.Settings.SigningOrder = document.OrderParallel
	}
	d.Status = document.StatusDraft
	d.Recipients = nil
	if err := s.repo.Create(ctx, d); err != nil {
		return nil, err
	}
	return d, nil
}

func (s *Service) Get(ctx context.Context, id string) (*document.Document, error) {
	d, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.withDerivedStatus(ctx, d), nil
}

func (s *Service) ListByOwner(ctx context.Context, ownerID string) ([]*document.Document, error) {
	return s.repo.ListByOwner(ctx, ownerID)
}

// UpdateDraft replaces mutable fields. Content and variables are only
// mutable while the document is a draft; the repository enforces that with
// a conditional update.
func (s *Service) UpdateDraft(ctx context.Context, d *document.Document) error {
	if err := d.Content.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrValidation, err)
	}
	return s.repo.UpdateDraft(ctx, d)
}

// Delete removes a draft. Sent documents are part of an audit trail and
// cannot be deleted through this path.
func (s *Service) Delete(ctx context.Context, id string) error {
	d, err := s.repo.Get(ctx, id)
	if err != nil {
		return err
	}
	if d.Status != document.StatusDraft {
		return ErrConflict
	}
	return s.repo.Delete(ctx, id)
}

// Instantiate creates a fresh draft from a template. Templates themselves
// can never be sent.
func (s *Service) Instantiate(ctx context.Context, templateID, ownerID, title string) (*document.Document, error) {
	tpl, err := s.repo.Get(ctx, templateID)
	if err != nil {
		return nil, err
	}
	if !tpl.IsTemplate {
		return nil, fmt.Errorf("%w: document %s is not a template", ErrValidation, templateID)
	}
	if title == "" {
		title = tpl.Title
	}
	vars := make(map[string]string, len(tpl.Variables))
	for k, v := range tpl.Variables {
		vars[k] = v
	}
	d := &document.Document{
		ID:        uuid.NewString(),
		OwnerID:   ownerID,
		Title:     title,
		Content:   tpl.Content.Clone(),
		Variables: vars,
		Settings:  tpl.Settings,
	}
	return s.CreateDraft(ctx, d)
}

// Send moves a draft to sent: validates the recipient list, freezes content,
// computes expiry (request override, then settings, then none) and replaces
// the recipient set atomically with fresh access tokens.
func (s *Service) Send(ctx context.Context, docID string, req SendRequest) (*document.Document, error) {
	return s.send(ctx, docID, req, []document.Status{document.StatusDraft})
}

// Resend regenerates the whole recipient set of an in-flight document. All
// previously issued access tokens stop resolving. Resending an expired
// document revives it with a fresh expiry window.
func (s *Service) Resend(ctx context.Context, docID string, req SendRequest) (*document.Document, error) {
	return s.send(ctx, docID, req, []document.Status{document.StatusSent, document.StatusViewed, document.StatusExpired})
}

func (s *Service) send(ctx context.Context, docID string, req SendRequest, from []document.Status) (*document.Document, error) {
	d, err := s.repo.Get(ctx, docID)
	if err != nil {
		return nil, err
	}
	if d.IsTemplate {
		return nil, fmt.Errorf("%w: templates must be instantiated before sending", ErrValidation)
	}
	recipients, err := buildRecipients(req.Recipients)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	var expiresAt *time.Time
	days := 0
	switch {
	case req.ExpiresInDays != nil:
		days = *req.ExpiresInDays
	case d.Settings.ExpirationDays > 0:
		days = d.Settings.ExpirationDays
	}
	if days > 0 {
		t := now.AddDate(0, 0, days)
		expiresAt = &t
	}

	if err := s.repo.MarkSent(ctx, docID, from, recipients, now, expiresAt); err != nil {
		return nil, err
	}
	metrics.DocumentsSent.Inc()

	d, err = s.repo.Get(ctx, docID)
	if err != nil {
		return nil, err
	}
	s.notify(ctx, d, req.Message)
	return d, nil
}

func buildRecipients(in []SendRecipient) ([]document.Recipient, error) {
	if len(in) == 0 {
		return nil, fmt.Errorf("%w: at least one recipient required", ErrValidation)
	}
	seen := map[string]bool{}
	out := make([]document.Recipient, 0, len(in))
	for _, r := range in {
		if _, err := mail.ParseAddress(r.Email); err != nil {
			return nil, fmt.Errorf("%w: invalid email %q", ErrValidation, r.Email)
		}
		if seen[r.Email] {
			return nil, fmt.Errorf("%w: duplicate email %q", ErrValidation, r.Email)
		}
		seen[r.Email] = true
		role := r.Role
		if role == "" {
			role = document.RoleSigner
		}
		if !document.ValidRole(role) {
			return nil, fmt.Errorf("%w: invalid role %q", ErrValidation, r.Role)
		}
		order := r.SigningOrder
		if order <= 0 {
			order = 1
		}
		tok, err := tokens.NewAccessToken()
		if err != nil {
			return nil, err
		}
		out = append(out, document.Recipient{
			ID:           uuid.NewString(),
			Email:        r.Email,
			Name:         r.Name,
			Role:         role,
			SigningOrder: order,
			Status:       document.RecipientPending,
			AccessToken:  tok,
		})
	}
	// stable presentation order for the signing surface
	sort.SliceStable(out, func(i, j int) bool { return out[i].SigningOrder < out[j].SigningOrder })
	return out, nil
}

func (s *Service) notify(ctx context.Context, d *document.Document, message string) {
	if s.notifier == nil {
		return
	}
	for i := range d.Recipients {
		r := &d.Recipients[i]
		link := s.SigningLink(r.AccessToken)
		if err := s.notifier.NotifyRecipient(ctx, d, r, message, link); err != nil {
			// delivery failure never rolls back the send
			logger.Warnf("notify %s for document %s failed: %v", r.Email, d.ID, err)
		}
	}
}

// SigningLink builds the recipient-facing URL for a token.
func (s *Service) SigningLink(token string) string {
	return s.signBaseURL + "/sign/" + token
}

// ViewByToken resolves an access token to the document and marks the
// recipient viewed on first read. Repeat views are idempotent.
func (s *Service) ViewByToken(ctx context.Context, token string) (*document.Document, *document.Recipient, error) {
	d, err := s.repo.GetByToken(ctx, token)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, nil, ErrTokenInvalid
		}
		return nil, nil, err
	}
	r := d.RecipientByToken(token)
	if r == nil {
		return nil, nil, ErrTokenInvalid
	}
	if st := d.Derive(time.Now().UTC(), false); st == document.StatusExpired {
		s.persistStatus(ctx, d.ID, st)
		return nil, nil, ErrExpired
	}
	if err := s.repo.MarkViewed(ctx, d.ID, r.ID, time.Now().UTC()); err != nil {
		return nil, nil, err
	}
	d, err = s.repo.Get(ctx, d.ID)
	if err != nil {
		return nil, nil, err
	}
	d = s.withDerivedStatus(ctx, d)
	return d, d.RecipientByID(r.ID), nil
}

// Sign transitions the token's recipient to signed. It enforces the
// document's signing-order policy and the before-signature payment gate,
// then performs the atomic status swap; a concurrent duplicate loses with
// ErrConflict.
func (s *Service) Sign(ctx context.Context, token string) (*document.Document, error) {
	d, err := s.repo.GetByToken(ctx, token)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrTokenInvalid
		}
		return nil, err
	}
	r := d.RecipientByToken(token)
	if r == nil {
		return nil, ErrTokenInvalid
	}

	now := time.Now().UTC()
	switch d.Derive(now, false) {
	case document.StatusExpired:
		s.persistStatus(ctx, d.ID, document.StatusExpired)
		return nil, ErrExpired
	case document.StatusDeclined, document.StatusCompleted:
		return nil, ErrConflict
	}
	if r.Role != document.RoleSigner {
		return nil, fmt.Errorf("%w: role %s cannot sign", ErrValidation, r.Role)
	}
	if r.Status == document.RecipientSigned {
		return nil, ErrConflict
	}
	if d.Settings.SigningOrder == document.OrderSequential && !d.SignersBefore(r.SigningOrder) {
		return nil, fmt.Errorf("%w: earlier recipients have not signed yet", ErrConflict)
	}
	if s.gate != nil {
		if err := s.gate.AllowSign(ctx, d, r.ID); err != nil {
			return nil, err
		}
	}

	err = s.repo.TransitionRecipient(ctx, d.ID, r.ID,
		[]document.RecipientStatus{document.RecipientPending, document.RecipientViewed},
		document.RecipientSigned, now)
	if err != nil {
		return nil, err
	}
	metrics.RecipientsSigned.Inc()

	d, err = s.repo.Get(ctx, d.ID)
	if err != nil {
		return nil, err
	}
	return s.withDerivedStatus(ctx, d), nil
}

// Decline is terminal for the recipient and, by derivation, for the
// document.
func (s *Service) Decline(ctx context.Context, token string) (*document.Document, error) {
	d, err := s.repo.GetByToken(ctx, token)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrTokenInvalid
		}
		return nil, err
	}
	r := d.RecipientByToken(token)
	if r == nil {
		return nil, ErrTokenInvalid
	}
	err = s.repo.TransitionRecipient(ctx, d.ID, r.ID,
		[]document.RecipientStatus{document.RecipientPending, document.RecipientViewed},
		document.RecipientDeclined, time.Now().UTC())
	if err != nil {
		return nil, err
	}
	d, err = s.repo.Get(ctx, d.ID)
	if err != nil {
		return nil, err
	}
	return s.withDerivedStatus(ctx, d), nil
}

// ExpireOverdue sweeps sent documents past their expiry. Intended to run
// periodically; the derived status still reports expired even between
// sweeps.
func (s *Service) ExpireOverdue(ctx context.Context, now time.Time) (int, error) {
	docs, err := s.repo.ListOverdue(ctx, now)
	if err != nil {
		return 0, err
	}
	n := 0
	for _, d := range docs {
		if d.Derive(now, false) == document.StatusExpired {
			if err := s.repo.SetStatus(ctx, d.ID, document.StatusExpired); err != nil {
				logger.Warnf("expire sweep: document %s: %v", d.ID, err)
				continue
			}
			n++
		}
	}
	return n, nil
}

// withDerivedStatus recomputes the status from the recipient snapshot and
// persists the enum when it moved.
func (s *Service) withDerivedStatus(ctx context.Context, d *document.Document) *document.Document {
	cleared := false
	if s.gate != nil && d.Settings.Payment.Enabled {
		var err error
		cleared, err = s.gate.Cleared(ctx, d)
		if err != nil {
			logger.Warnf("payment gate read for document %s: %v", d.ID, err)
		}
	}
	derived := d.Derive(time.Now().UTC(), cleared)
	if derived != d.Status {
		s.persistStatus(ctx, d.ID, derived)
		d.Status = derived
	}
	return d
}

func (s *Service) persistStatus(ctx context.Context, id string, st document.Status) {
	if err := s.repo.SetStatus(ctx, id, st); err != nil {
		logger.Warnf("persist status %s for document %s: %v", st, id, err)
	}
}
