package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/auxoro/cas-server/internal/core/domain"
	apperrors "github.com/auxoro/cas-server/internal/core/errors"
)

func newTestTicketRepo(t *testing.T) *TicketRepository {
	t.Helper()
	require.NotNil(t, testPool, "test pool not initialised")
	return NewTicketRepository(testPool)
}

func TestTicketRepository_ServiceTicketRoundTrip(t *testing.T) {
	ctx := context.Background()
	repo := newTestTicketRepo(t)

	st := domain.NewServiceTicket("alice", "https://app.example.com/", "")

	require.NoError(t, repo.InsertServiceTicket(ctx, st))

	found, err := repo.GetServiceTicket(ctx, st.Ticket)
	require.NoError(t, err)
	assert.Equal(t, "alice", found.Username)
	assert.Equal(t, "https://app.example.com/", found.Service)
	assert.Nil(t, found.GrantedByTGT)
	assert.False(t, found.Consumed)
}

func TestTicketRepository_GetServiceTicket_NotFound(t *testing.T) {
	ctx := context.Background()
	repo := newTestTicketRepo(t)

	_, err := repo.GetServiceTicket(ctx, domain.NewTicketID(domain.PrefixServiceTicket))
	assert.ErrorIs(t, err, apperrors.ErrTicketNotFound)
}

func TestTicketRepository_InsertServiceTicket_Duplicate(t *testing.T) {
	ctx := context.Background()
	repo := newTestTicketRepo(t)

	st := domain.NewServiceTicket("alice", "https://app.example.com/", "")
	require.NoError(t, repo.InsertServiceTicket(ctx, st))

	err := repo.InsertServiceTicket(ctx, st)
	assert.ErrorIs(t, err, apperrors.ErrDuplicateTicket)
}

func TestTicketRepository_ConsumeServiceTicket_OnlyOnce(t *testing.T) {
	ctx := context.Background()
	repo := newTestTicketRepo(t)

	st := domain.NewServiceTicket("alice", "https://app.example.com/", "")
	require.NoError(t, repo.InsertServiceTicket(ctx, st))

	ok, err := repo.ConsumeServiceTicket(ctx, st.Ticket)
	require.NoError(t, err)
	assert.True(t, ok, "first consume should win")

	ok, err = repo.ConsumeServiceTicket(ctx, st.Ticket)
	require.NoError(t, err)
	assert.False(t, ok, "second consume must lose")

	found, err := repo.GetServiceTicket(ctx, st.Ticket)
	require.NoError(t, err)
	assert.True(t, found.Consumed)
}

func TestTicketRepository_ConsumeServiceTicket_Missing(t *testing.T) {
	ctx := context.Background()
	repo := newTestTicketRepo(t)

	ok, err := repo.ConsumeServiceTicket(ctx, domain.NewTicketID(domain.PrefixServiceTicket))
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestTicketRepository_ProxyTicketRoundTrip(t *testing.T) {
	ctx := context.Background()
	repo := newTestTicketRepo(t)

	pt := domain.NewProxyTicket("bob", "https://backend.example.com/api", domain.NewTicketID(domain.PrefixProxyGrantingTicket))
	require.NoError(t, repo.InsertProxyTicket(ctx, pt))

	found, err := repo.GetProxyTicket(ctx, pt.Ticket)
	require.NoError(t, err)
	assert.Equal(t, "bob", found.Username)
	assert.Equal(t, pt.GrantedByPGT, found.GrantedByPGT)

	ok, err := repo.ConsumeProxyTicket(ctx, pt.Ticket)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = repo.ConsumeProxyTicket(ctx, pt.Ticket)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestTicketRepository_ProxyGrantingTicketRoundTrip(t *testing.T) {
	ctx := context.Background()
	repo := newTestTicketRepo(t)

	st := domain.NewServiceTicket("carol", "https://app.example.com/", "")
	require.NoError(t, repo.InsertServiceTicket(ctx, st))

	pgt := domain.NewProxyGrantingTicket("carol", "https://proxy.example.com/callback", &st.Ticket, nil)
	require.NoError(t, repo.InsertProxyGrantingTicket(ctx, pgt))

	found, err := repo.GetProxyGrantingTicket(ctx, pgt.Ticket)
	require.NoError(t, err)
	assert.Equal(t, pgt.IOU, found.IOU)
	assert.Equal(t, "https://proxy.example.com/callback", found.PGTURL)
	require.NotNil(t, found.GrantedByST)
	assert.Equal(t, st.Ticket, *found.GrantedByST)
	assert.Nil(t, found.GrantedByPT)
}

func TestTicketRepository_TicketGrantingTicketRoundTrip(t *testing.T) {
	ctx := context.Background()
	repo := newTestTicketRepo(t)

	tgt := domain.NewTicketGrantingTicket("dave")
	require.NoError(t, repo.InsertTicketGrantingTicket(ctx, tgt))

	found, err := repo.GetTicketGrantingTicket(ctx, tgt.Ticket)
	require.NoError(t, err)
	assert.Equal(t, "dave", found.Username)
}

func TestTicketRepository_DeleteInvalid(t *testing.T) {
	ctx := context.Background()
	repo := newTestTicketRepo(t)

	now := time.Now().UTC()

	// Fresh, unconsumed ticket that must survive the purge.
	keep := domain.NewServiceTicket("erin", "https://keep.example.com/", "")
	require.NoError(t, repo.InsertServiceTicket(ctx, keep))

	// Consumed ticket, removed regardless of age.
	burned := domain.NewServiceTicket("erin", "https://burned.example.com/", "")
	require.NoError(t, repo.InsertServiceTicket(ctx, burned))
	ok, err := repo.ConsumeServiceTicket(ctx, burned.Ticket)
	require.NoError(t, err)
	require.True(t, ok)

	// Stale ticket, older than the cutoff.
	stale := domain.NewServiceTicket("erin", "https://stale.example.com/", "")
	stale.Created = now.Add(-time.Hour)
	require.NoError(t, repo.InsertServiceTicket(ctx, stale))

	deleted, err := repo.DeleteInvalid(ctx, now.Add(-5*time.Minute), now.Add(-8*time.Hour))
	require.NoError(t, err)
	assert.GreaterOrEqual(t, deleted, int64(2))

	_, err = repo.GetServiceTicket(ctx, burned.Ticket)
	assert.ErrorIs(t, err, apperrors.ErrTicketNotFound)
	_, err = repo.GetServiceTicket(ctx, stale.Ticket)
	assert.ErrorIs(t, err, apperrors.ErrTicketNotFound)

	kept, err := repo.GetServiceTicket(ctx, keep.Ticket)
	require.NoError(t, err)
	assert.False(t, kept.Consumed)
}
