package repository

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/draftdeck/draftdeck/internal/block"
	"github.com/draftdeck/draftdeck/internal/document"
	"github.com/stretchr/testify/require"
)

func seedSent(t *testing.T, m *MemoryRepo) *document.Document {
	t.Helper()
	ctx := context.Background()
	d := &document.Document{
		OwnerID: "owner-1",
		Title:   "Offer letter",
		Content: block.List{block.NewText("<p>hi</p>")},
	}
	require.NoError(t, m.Create(ctx, d))
	recipients := []document.Recipient{
		{ID: "r1", Email: "a@example.com", Role: document.RoleSigner, SigningOrder: 1, Status: document.RecipientPending, AccessToken: "tok-1"},
		{ID: "r2", Email: "b@example.com", Role: document.RoleSigner, SigningOrder: 2, Status: document.RecipientPending, AccessToken: "tok-2"},
	}
	require.NoError(t, m.MarkSent(ctx, d.ID, []document.Status{document.StatusDraft}, recipients, time.Now().UTC(), nil))
	return d
}

func TestMemoryRepo_GetByToken(t *testing.T) {
	m := NewMemoryRepo()
	d := seedSent(t, m)

	got, err := m.GetByToken(context.Background(), "tok-2")
	require.NoError(t, err)
	require.Equal(t, d.ID, got.ID)

	_, err = m.GetByToken(context.Background(), "nope")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryRepo_ReadsAreCopies(t *testing.T) {
	m := NewMemoryRepo()
	d := seedSent(t, m)

	got, err := m.Get(context.Background(), d.ID)
	require.NoError(t, err)
	got.Recipients[0].Status = document.RecipientSigned
	got.Title = "mutated"

	again, err := m.Get(context.Background(), d.ID)
	require.NoError(t, err)
	require.Equal(t, document.RecipientPending, again.Recipients[0].Status)
	require.Equal(t, "Offer letter", again.Title)
}

func TestMemoryRepo_TransitionCAS(t *testing.T) {
	m := NewMemoryRepo()
	d := seedSent(t, m)
	ctx := context.Background()

	from := []document.RecipientStatus{document.RecipientPending, document.RecipientViewed}
	require.NoError(t, m.TransitionRecipient(ctx, d.ID, "r1", from, document.RecipientSigned, time.Now().UTC()))

	// the second identical swap must lose
	err := m.TransitionRecipient(ctx, d.ID, "r1", from, document.RecipientSigned, time.Now().UTC())
	require.ErrorIs(t, err, ErrConflict)
}

func TestMemoryRepo_ConcurrentSignExactlyOnce(t *testing.T) {
	m := NewMemoryRepo()
	d := seedSent(t, m)
	from := []document.RecipientStatus{document.RecipientPending, document.RecipientViewed}

	const n = 16
	wins := make(chan error, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			wins <- m.TransitionRecipient(context.Background(), d.ID, "r1", from, document.RecipientSigned, time.Now().UTC())
		}()
	}
	wg.Wait()
	close(wins)

	ok := 0
	for err := range wins {
		if err == nil {
			ok++
		} else {
			require.ErrorIs(t, err, ErrConflict)
		}
	}
	require.Equal(t, 1, ok)
}

func TestMemoryRepo_MarkSentStatusGuard(t *testing.T) {
	m := NewMemoryRepo()
	d := seedSent(t, m)

	err := m.MarkSent(context.Background(), d.ID, []document.Status{document.StatusDraft}, nil, time.Now().UTC(), nil)
	require.ErrorIs(t, err, ErrConflict)
}

func TestMemoryRepo_ListOverdue(t *testing.T) {
	m := NewMemoryRepo()
	ctx := context.Background()
	past := time.Now().UTC().Add(-time.Hour)

	d := &document.Document{OwnerID: "o", Title: "t", Content: block.List{}}
	require.NoError(t, m.Create(ctx, d))
	require.NoError(t, m.MarkSent(ctx, d.ID, []document.Status{document.StatusDraft},
		[]document.Recipient{{ID: "r", Email: "a@example.com", Role: document.RoleSigner, SigningOrder: 1, Status: document.RecipientPending, AccessToken: "tk"}},
		past, &past))

	// drafts and unexpired documents never show up
	d2 := &document.Document{OwnerID: "o", Title: "draft", Content: block.List{}}
	require.NoError(t, m.Create(ctx, d2))

	overdue, err := m.ListOverdue(ctx, time.Now().UTC())
	require.NoError(t, err)
	require.Len(t, overdue, 1)
	require.Equal(t, d.ID, overdue[0].ID)
}
