package services

import (
	"context"
	"errors"
	"time"

	"github.com/auxoro/cas-server/internal/core/domain"
	apperrors "github.com/auxoro/cas-server/internal/core/errors"
	"github.com/auxoro/cas-server/internal/core/ports"
)

// ValidationService resolves tickets and atomically consumes them. All
// failure modes other than a service mismatch collapse to ErrInvalidTicket so
// callers cannot probe the store through error differences.
type ValidationService struct {
	ticketRepo ports.TicketRepository
	stExpiry   time.Duration
	now        func() time.Time
}

var _ ports.ValidationService = (*ValidationService)(nil)

// NewValidationService creates a validator. stExpiry is the validity window
// shared by service and proxy tickets.
func NewValidationService(ticketRepo ports.TicketRepository, stExpiry time.Duration) *ValidationService {
	return &ValidationService{
		ticketRepo: ticketRepo,
		stExpiry:   stExpiry,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// ValidateServiceTicket accepts only ST identifiers; a PT presented here
// fails the shape check and reports INVALID_TICKET.
func (s *ValidationService) ValidateServiceTicket(ctx context.Context, ticket, service string) (*ports.ValidationResult, error) {
	if ticket == "" || service == "" {
		return nil, apperrors.ErrInvalidRequest
	}
	if !domain.ValidTicketID(ticket, domain.PrefixServiceTicket) {
		return nil, apperrors.ErrInvalidTicket
	}
	return s.validateST(ctx, ticket, service)
}

// ValidateTicket accepts either an ST or a PT identifier. On a PT success the
// result carries the proxy chain, most recently accessed proxy first.
func (s *ValidationService) ValidateTicket(ctx context.Context, ticket, service string) (*ports.ValidationResult, error) {
	if ticket == "" || service == "" {
		return nil, apperrors.ErrInvalidRequest
	}
	switch {
	case domain.ValidTicketID(ticket, domain.PrefixServiceTicket):
		return s.validateST(ctx, ticket, service)
	case domain.ValidTicketID(ticket, domain.PrefixProxyTicket):
		return s.validatePT(ctx, ticket, service)
	default:
		return nil, apperrors.ErrInvalidTicket
	}
}

func (s *ValidationService) validateST(ctx context.Context, ticket, service string) (*ports.ValidationResult, error) {
	st, err := s.ticketRepo.GetServiceTicket(ctx, ticket)
	if err != nil {
		return nil, collapseLookupError(err)
	}

	// The service check precedes consumption: a mismatched request must not
	// burn the ticket.
	if !domain.ServiceMatches(st.Service, service) {
		return nil, apperrors.ErrInvalidService
	}
	if st.Consumed || st.Expired(s.now(), s.stExpiry) {
		return nil, apperrors.ErrInvalidTicket
	}

	ok, err := s.ticketRepo.ConsumeServiceTicket(ctx, ticket)
	if err != nil {
		return nil, err
	}
	if !ok {
		// A concurrent validation won the conditional update.
		return nil, apperrors.ErrInvalidTicket
	}

	return &ports.ValidationResult{
		Username:    st.Username,
		GrantedByST: st.Ticket,
	}, nil
}

func (s *ValidationService) validatePT(ctx context.Context, ticket, service string) (*ports.ValidationResult, error) {
	pt, err := s.ticketRepo.GetProxyTicket(ctx, ticket)
	if err != nil {
		return nil, collapseLookupError(err)
	}

	if !domain.ServiceMatches(pt.Service, service) {
		return nil, apperrors.ErrInvalidService
	}
	if pt.Consumed || pt.Expired(s.now(), s.stExpiry) {
		return nil, apperrors.ErrInvalidTicket
	}

	ok, err := s.ticketRepo.ConsumeProxyTicket(ctx, ticket)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, apperrors.ErrInvalidTicket
	}

	proxies, err := s.proxyChain(ctx, pt)
	if err != nil {
		return nil, err
	}

	return &ports.ValidationResult{
		Username:    pt.Username,
		Proxies:     proxies,
		GrantedByPT: pt.Ticket,
	}, nil
}

// proxyChain walks from the validated PT up through its granting PGTs to the
// root service ticket, recording the service of every proxy ticket on the
// path. The walk order is reverse order of access: the validated ticket's
// service comes first, the proxy closest to the root last.
func (s *ValidationService) proxyChain(ctx context.Context, pt *domain.ProxyTicket) ([]string, error) {
	proxies := []string{pt.Service}

	current := pt
	for {
		pgt, err := s.ticketRepo.GetProxyGrantingTicket(ctx, current.GrantedByPGT)
		if err != nil {
			return nil, err
		}
		if pgt.GrantedByPT == nil {
			// Granted by the root service ticket; the chain ends here.
			return proxies, nil
		}
		parent, err := s.ticketRepo.GetProxyTicket(ctx, *pgt.GrantedByPT)
		if err != nil {
			return nil, err
		}
		proxies = append(proxies, parent.Service)
		current = parent
	}
}

// collapseLookupError maps store-level lookup failures to the single
// protocol-visible invalid-ticket error.
func collapseLookupError(err error) error {
	if errors.Is(err, apperrors.ErrTicketNotFound) ||
		errors.Is(err, apperrors.ErrTicketConsumed) ||
		errors.Is(err, apperrors.ErrTicketExpired) {
		return apperrors.ErrInvalidTicket
	}
	return err
}
