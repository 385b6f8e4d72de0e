package service

import (
	"context"
	"testing"
	"time"

	"github.com/draftdeck/draftdeck/internal/block"
	"github.com/draftdeck/draftdeck/internal/document"
	"github.com/draftdeck/draftdeck/internal/document/repository"
	"github.com/draftdeck/draftdeck/internal/payment"
	"github.com/stretchr/testify/require"
)

func newTestService() (*Service, *payment.Gate) {
	gate := payment.NewGate(payment.NewMemoryRepo())
	return New(repository.NewMemoryRepo(), gate, nil, "http://localhost:5001"), gate
}

func draft(t *testing.T, svc *Service, settings document.Settings) *document.Document {
	t.Helper()
	d, err := svc.CreateDraft(context.Background(), &document.Document{
		OwnerID:  "owner-1",
		Title:    "Consulting agreement",
		Content:  block.List{block.NewText("<p>Terms</p>")},
		Settings: settings,
	})
	require.NoError(t, err)
	return d
}

func sendTo(t *testing.T, svc *Service, id string, recipients ...SendRecipient) *document.Document {
	t.Helper()
	d, err := svc.Send(context.Background(), id, SendRequest{Recipients: recipients})
	require.NoError(t, err)
	return d
}

func TestCreateDraft_Validation(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	_, err := svc.CreateDraft(ctx, &document.Document{OwnerID: "o", Content: block.List{}})
	require.ErrorIs(t, err, ErrValidation)

	_, err = svc.CreateDraft(ctx, &document.Document{Title: "t"})
	require.ErrorIs(t, err, ErrValidation)

	_, err = svc.CreateDraft(ctx, &document.Document{Title: "t", OwnerID: "o", OrgID: "org"})
	require.ErrorIs(t, err, ErrValidation)

	d, err := svc.CreateDraft(ctx, &document.Document{Title: "t", OrgID: "org"})
	require.NoError(t, err)
	require.Equal(t, document.StatusDraft, d.Status)
	require.Equal(t, document.OrderParallel, d.Settings.SigningOrder)
}

func TestSend_IssuesTokensAndExpiry(t *testing.T) {
	svc, _ := newTestService()
	d := draft(t, svc, document.Settings{ExpirationDays: 7})

	sent := sendTo(t, svc, d.ID,
		SendRecipient{Email: "alice@example.com", Name: "Alice"},
		SendRecipient{Email: "bob@example.com", Name: "Bob"},
	)
	require.Equal(t, document.StatusSent, sent.Status)
	require.Len(t, sent.Recipients, 2)
	for _, r := range sent.Recipients {
		require.Len(t, r.AccessToken, 64)
		require.Equal(t, document.RecipientPending, r.Status)
		require.Equal(t, document.RoleSigner, r.Role)
	}
	require.NotNil(t, sent.ExpiresAt)
	require.WithinDuration(t, time.Now().UTC().AddDate(0, 0, 7), *sent.ExpiresAt, time.Minute)

	// a second send of the same document is a state conflict
	_, err := svc.Send(context.Background(), d.ID, SendRequest{Recipients: []SendRecipient{{Email: "alice@example.com"}}})
	require.ErrorIs(t, err, ErrConflict)
}

func TestSend_RecipientValidation(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	d := draft(t, svc, document.Settings{})
	_, err := svc.Send(ctx, d.ID, SendRequest{})
	require.ErrorIs(t, err, ErrValidation)

	_, err = svc.Send(ctx, d.ID, SendRequest{Recipients: []SendRecipient{{Email: "not-an-email"}}})
	require.ErrorIs(t, err, ErrValidation)

	_, err = svc.Send(ctx, d.ID, SendRequest{Recipients: []SendRecipient{
		{Email: "dup@example.com"}, {Email: "dup@example.com"},
	}})
	require.ErrorIs(t, err, ErrValidation)
}

func TestViewByToken_IdempotentAndDerived(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()
	d := draft(t, svc, document.Settings{})
	sent := sendTo(t, svc, d.ID, SendRecipient{Email: "alice@example.com"})
	token := sent.Recipients[0].AccessToken

	got, rec, err := svc.ViewByToken(ctx, token)
	require.NoError(t, err)
	require.Equal(t, document.StatusViewed, got.Status)
	require.Equal(t, document.RecipientViewed, rec.Status)
	require.NotNil(t, rec.ViewedAt)
	first := *rec.ViewedAt

	// repeat views keep the original timestamp
	_, rec2, err := svc.ViewByToken(ctx, token)
	require.NoError(t, err)
	require.Equal(t, first, *rec2.ViewedAt)

	_, _, err = svc.ViewByToken(ctx, "no-such-token")
	require.ErrorIs(t, err, ErrTokenInvalid)
}

func TestSign_ParallelCompletes(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()
	d := draft(t, svc, document.Settings{})
	sent := sendTo(t, svc, d.ID,
		SendRecipient{Email: "alice@example.com"},
		SendRecipient{Email: "bob@example.com"},
	)

	mid, err := svc.Sign(ctx, sent.Recipients[1].AccessToken)
	require.NoError(t, err)
	require.Equal(t, document.StatusViewed, mid.Status)

	done, err := svc.Sign(ctx, sent.Recipients[0].AccessToken)
	require.NoError(t, err)
	require.Equal(t, document.StatusCompleted, done.Status)

	// terminal: no further signing or declining
	_, err = svc.Sign(ctx, sent.Recipients[0].AccessToken)
	require.ErrorIs(t, err, ErrConflict)
}

func TestSign_SequentialOrder(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()
	d := draft(t, svc, document.Settings{SigningOrder: document.OrderSequential})
	sent := sendTo(t, svc, d.ID,
		SendRecipient{Email: "first@example.com", SigningOrder: 1},
		SendRecipient{Email: "second@example.com", SigningOrder: 2},
	)

	second := sent.Recipients[1]
	_, err := svc.Sign(ctx, second.AccessToken)
	require.ErrorIs(t, err, ErrConflict)

	_, err = svc.Sign(ctx, sent.Recipients[0].AccessToken)
	require.NoError(t, err)

	done, err := svc.Sign(ctx, second.AccessToken)
	require.NoError(t, err)
	require.Equal(t, document.StatusCompleted, done.Status)
}

func TestSign_ViewerCannotSign(t *testing.T) {
	svc, _ := newTestService()
	d := draft(t, svc, document.Settings{})
	sent := sendTo(t, svc, d.ID,
		SendRecipient{Email: "alice@example.com"},
		SendRecipient{Email: "cc@example.com", Role: document.RoleViewer},
	)

	var viewer document.Recipient
	for _, r := range sent.Recipients {
		if r.Role == document.RoleViewer {
			viewer = r
		}
	}
	_, err := svc.Sign(context.Background(), viewer.AccessToken)
	require.ErrorIs(t, err, ErrValidation)
}

func TestDecline_Terminal(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()
	d := draft(t, svc, document.Settings{})
	sent := sendTo(t, svc, d.ID,
		SendRecipient{Email: "alice@example.com"},
		SendRecipient{Email: "bob@example.com"},
	)

	got, err := svc.Decline(ctx, sent.Recipients[0].AccessToken)
	require.NoError(t, err)
	require.Equal(t, document.StatusDeclined, got.Status)

	// the other recipient can no longer sign
	_, err = svc.Sign(ctx, sent.Recipients[1].AccessToken)
	require.ErrorIs(t, err, ErrConflict)
}

func TestResend_InvalidatesOldTokens(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()
	d := draft(t, svc, document.Settings{})
	sent := sendTo(t, svc, d.ID, SendRecipient{Email: "alice@example.com"})
	oldToken := sent.Recipients[0].AccessToken

	resent, err := svc.Resend(ctx, d.ID, SendRequest{Recipients: []SendRecipient{{Email: "alice@example.com"}}})
	require.NoError(t, err)
	require.NotEqual(t, oldToken, resent.Recipients[0].AccessToken)

	_, _, err = svc.ViewByToken(ctx, oldToken)
	require.ErrorIs(t, err, ErrTokenInvalid)

	_, _, err = svc.ViewByToken(ctx, resent.Recipients[0].AccessToken)
	require.NoError(t, err)
}

func TestPaymentGate_BeforeSignature(t *testing.T) {
	svc, gate := newTestService()
	ctx := context.Background()
	d := draft(t, svc, document.Settings{Payment: document.PaymentSettings{
		Enabled: true, Timing: document.PayBeforeSignature, Amount: 100, Currency: "USD",
	}})
	sent := sendTo(t, svc, d.ID, SendRecipient{Email: "alice@example.com"})
	rec := sent.Recipients[0]

	_, err := svc.Sign(ctx, rec.AccessToken)
	require.ErrorIs(t, err, payment.ErrPaymentRequired)

	// a failed attempt does not open the gate
	require.NoError(t, gate.Record(ctx, &payment.Fact{
		DocumentID: d.ID, RecipientID: rec.ID, Amount: 100, Status: payment.StatusFailed,
	}))
	_, err = svc.Sign(ctx, rec.AccessToken)
	require.ErrorIs(t, err, payment.ErrPaymentRequired)

	require.NoError(t, gate.Record(ctx, &payment.Fact{
		DocumentID: d.ID, RecipientID: rec.ID, Amount: 100, Status: payment.StatusSucceeded,
	}))
	done, err := svc.Sign(ctx, rec.AccessToken)
	require.NoError(t, err)
	require.Equal(t, document.StatusCompleted, done.Status)
}

func TestPaymentGate_AfterSignature(t *testing.T) {
	svc, gate := newTestService()
	ctx := context.Background()
	d := draft(t, svc, document.Settings{Payment: document.PaymentSettings{
		Enabled: true, Timing: document.PayAfterSignature, Amount: 50, Currency: "EUR",
	}})
	sent := sendTo(t, svc, d.ID, SendRecipient{Email: "alice@example.com"})
	rec := sent.Recipients[0]

	// signing succeeds but completion is withheld until payment clears
	got, err := svc.Sign(ctx, rec.AccessToken)
	require.NoError(t, err)
	require.Equal(t, document.StatusViewed, got.Status)

	require.NoError(t, gate.Record(ctx, &payment.Fact{
		DocumentID: d.ID, RecipientID: rec.ID, Amount: 50, Status: payment.StatusSucceeded,
	}))
	got, err = svc.Get(ctx, d.ID)
	require.NoError(t, err)
	require.Equal(t, document.StatusCompleted, got.Status)
}

func TestExpiration(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()
	days := 1
	d := draft(t, svc, document.Settings{})
	sent, err := svc.Send(ctx, d.ID, SendRequest{
		Recipients:    []SendRecipient{{Email: "alice@example.com"}},
		ExpiresInDays: &days,
	})
	require.NoError(t, err)
	token := sent.Recipients[0].AccessToken

	// the sweep ignores documents still inside their window
	n, err := svc.ExpireOverdue(ctx, time.Now().UTC())
	require.NoError(t, err)
	require.Zero(t, n)

	future := time.Now().UTC().AddDate(0, 0, 2)
	n, err = svc.ExpireOverdue(ctx, future)
	require.NoError(t, err)
	require.Equal(t, 1, n)

	got, err := svc.Get(ctx, d.ID)
	require.NoError(t, err)
	require.Equal(t, document.StatusExpired, got.Status)

	_, _, err = svc.ViewByToken(ctx, token)
	require.ErrorIs(t, err, ErrExpired)
	_, err = svc.Sign(ctx, token)
	require.ErrorIs(t, err, ErrExpired)
}

func TestUpdateDraft_FrozenAfterSend(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()
	d := draft(t, svc, document.Settings{})

	d.Title = "Updated title"
	require.NoError(t, svc.UpdateDraft(ctx, d))

	sendTo(t, svc, d.ID, SendRecipient{Email: "alice@example.com"})
	d.Title = "Too late"
	require.ErrorIs(t, svc.UpdateDraft(ctx, d), ErrConflict)
}

func TestDelete_DraftOnly(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	d := draft(t, svc, document.Settings{})
	sendTo(t, svc, d.ID, SendRecipient{Email: "alice@example.com"})
	require.ErrorIs(t, svc.Delete(ctx, d.ID), ErrConflict)

	d2 := draft(t, svc, document.Settings{})
	require.NoError(t, svc.Delete(ctx, d2.ID))
	_, err := svc.Get(ctx, d2.ID)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestInstantiate(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	tpl, err := svc.CreateDraft(ctx, &document.Document{
		OwnerID:    "owner-1",
		Title:      "NDA template",
		Content:    block.List{block.NewText("<p>{{company}}</p>")},
		Variables:  map[string]string{"company": "Acme"},
		IsTemplate: true,
	})
	require.NoError(t, err)

	// templates cannot be sent directly
	_, err = svc.Send(ctx, tpl.ID, SendRequest{Recipients: []SendRecipient{{Email: "a@example.com"}}})
	require.ErrorIs(t, err, ErrValidation)

	d, err := svc.Instantiate(ctx, tpl.ID, "owner-2", "NDA with Acme")
	require.NoError(t, err)
	require.NotEqual(t, tpl.ID, d.ID)
	require.False(t, d.IsTemplate)
	require.Equal(t, "owner-2", d.OwnerID)
	require.Equal(t, "Acme", d.Variables["company"])

	// instance content is a deep copy
	d.Content[0].(*block.Text).HTML = "<p>changed</p>"
	tplAgain, err := svc.Get(ctx, tpl.ID)
	require.NoError(t, err)
	require.Equal(t, "<p>{{company}}</p>", tplAgain.Content[0].(*block.Text).HTML)

	// instantiating a plain document is rejected
	_, err = svc.Instantiate(ctx, d.ID, "owner-2", "")
	require.ErrorIs(t, err, ErrValidation)
}
