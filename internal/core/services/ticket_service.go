package services

import (
	"context"
	"errors"
	"net/url"
	"time"

	"github.com/auxoro/cas-server/internal/core/domain"
	apperrors "github.com/auxoro/cas-server/internal/core/errors"
	"github.com/auxoro/cas-server/internal/core/ports"
)

// maxIssueAttempts bounds identifier-collision retries against the store's
// primary-key constraint.
const maxIssueAttempts = 3

// TicketService implements the ticket factory.
type TicketService struct {
	ticketRepo ports.TicketRepository
	callback   ports.ProxyCallback
	pgtExpiry  time.Duration

	now func() time.Time
}

var _ ports.TicketService = (*TicketService)(nil)

// NewTicketService creates a new ticket factory backed by the given store and
// proxy callback client. pgtExpiry is the proxy-granting ticket validity
// window, tied to the single sign-on session length.
func NewTicketService(ticketRepo ports.TicketRepository, callback ports.ProxyCallback, pgtExpiry time.Duration) ports.TicketService {
	return &TicketService{
		ticketRepo: ticketRepo,
		callback:   callback,
		pgtExpiry:  pgtExpiry,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// IssueTicketGrantingTicket mints the session anchor created on login.
func (s *TicketService) IssueTicketGrantingTicket(ctx context.Context, username string) (*domain.TicketGrantingTicket, error) {
	var tgt *domain.TicketGrantingTicket
	err := s.insertWithRetry(func() error {
		tgt = domain.NewTicketGrantingTicket(username)
		return s.ticketRepo.InsertTicketGrantingTicket(ctx, tgt)
	})
	if err != nil {
		return nil, err
	}
	return tgt, nil
}

// IssueServiceTicket mints an ST for the given user and service URL.
func (s *TicketService) IssueServiceTicket(ctx context.Context, username, service, tgt string) (*domain.ServiceTicket, error) {
	var st *domain.ServiceTicket
	err := s.insertWithRetry(func() error {
		st = domain.NewServiceTicket(username, service, tgt)
		return s.ticketRepo.InsertServiceTicket(ctx, st)
	})
	if err != nil {
		return nil, err
	}
	return st, nil
}

// IssueProxyTicket mints a PT bound to targetService from an existing PGT.
func (s *TicketService) IssueProxyTicket(ctx context.Context, targetService, pgt string) (*domain.ProxyTicket, error) {
	if !domain.ValidTicketID(pgt, domain.PrefixProxyGrantingTicket) {
		return nil, apperrors.ErrBadPGT
	}

	granting, err := s.ticketRepo.GetProxyGrantingTicket(ctx, pgt)
	if err != nil {
		if errors.Is(err, apperrors.ErrTicketNotFound) {
			return nil, apperrors.ErrBadPGT
		}
		return nil, err
	}

	// An expired PGT row may linger until the purge sweep; it must behave
	// exactly like an absent one.
	if granting.Expired(s.now(), s.pgtExpiry) {
		return nil, apperrors.ErrBadPGT
	}

	var pt *domain.ProxyTicket
	err = s.insertWithRetry(func() error {
		pt = domain.NewProxyTicket(granting.Username, targetService, granting.Ticket)
		return s.ticketRepo.InsertProxyTicket(ctx, pt)
	})
	if err != nil {
		return nil, err
	}
	return pt, nil
}

// IssueProxyGrantingTicket performs the pgtUrl handshake and persists the PGT
// only after the relying service acknowledged the callback. The PGT is not
// considered issued on any callback failure.
func (s *TicketService) IssueProxyGrantingTicket(ctx context.Context, username, pgtURL, grantedByST, grantedByPT string) (*domain.ProxyGrantingTicket, error) {
	u, err := url.Parse(pgtURL)
	if err != nil || u.Scheme != "https" {
		return nil, apperrors.ErrCallbackScheme
	}

	var stRef, ptRef *string
	if grantedByST != "" {
		stRef = &grantedByST
	}
	if grantedByPT != "" {
		ptRef = &grantedByPT
	}

	pgt := domain.NewProxyGrantingTicket(username, pgtURL, stRef, ptRef)

	if err := s.callback.Deliver(ctx, pgtURL, pgt.Ticket, pgt.IOU); err != nil {
		return nil, err
	}

	err = s.insertWithRetry(func() error {
		return s.ticketRepo.InsertProxyGrantingTicket(ctx, pgt)
	})
	if err != nil {
		if errors.Is(err, apperrors.ErrDuplicateTicket) {
			// The delivered identifier collided; re-minting would orphan the
			// callback, so give up rather than hand out a different id.
			return nil, apperrors.ErrCallbackFailed
		}
		return nil, err
	}
	return pgt, nil
}

// insertWithRetry runs an insert closure, retrying on identifier collisions.
// The closure is expected to mint a fresh identifier on each call.
func (s *TicketService) insertWithRetry(insert func() error) error {
	var err error
	for attempt := 0; attempt < maxIssueAttempts; attempt++ {
		err = insert()
		if err == nil || !errors.Is(err, apperrors.ErrDuplicateTicket) {
			return err
		}
	}
	return err
}
