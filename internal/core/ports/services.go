package ports

import (
	"context"

	"github.com/auxoro/cas-server/internal/core/domain"
)

// AuthService verifies end-user credentials for /login.
type AuthService interface {
	Login(ctx context.Context, username, password string) (*domain.User, error)
}

// TicketService is the ticket factory. It enforces the granting edges between
// ticket kinds and retries identifier collisions against the store.
type TicketService interface {
	IssueTicketGrantingTicket(ctx context.Context, username string) (*domain.TicketGrantingTicket, error)
	IssueServiceTicket(ctx context.Context, username, service, tgt string) (*domain.ServiceTicket, error)

	// IssueProxyTicket mints a PT bound to targetService from an existing
	// PGT. A malformed or unknown pgt yields ErrBadPGT.
	IssueProxyTicket(ctx context.Context, targetService, pgt string) (*domain.ProxyTicket, error)

	// IssueProxyGrantingTicket performs the pgtUrl callback handshake and,
	// only if the relying service acknowledged it, persists the PGT. A
	// non-https pgtUrl or failed callback returns an error and no PGT.
	// Exactly one of grantedByST and grantedByPT must be non-empty.
	IssueProxyGrantingTicket(ctx context.Context, username, pgtURL, grantedByST, grantedByPT string) (*domain.ProxyGrantingTicket, error)
}

// ValidationService resolves and atomically consumes validatable tickets.
type ValidationService interface {
	// ValidateServiceTicket accepts only ST identifiers (the /validate and
	// /serviceValidate contract).
	ValidateServiceTicket(ctx context.Context, ticket, service string) (*ValidationResult, error)

	// ValidateTicket accepts ST or PT identifiers (the /proxyValidate
	// contract). For a PT, Proxies holds the chain in reverse order of
	// access, most recent proxy first.
	ValidateTicket(ctx context.Context, ticket, service string) (*ValidationResult, error)
}

// ValidationResult is the outcome of a successful validation.
type ValidationResult struct {
	Username string

	// Proxies is non-nil only for proxy-ticket validations.
	Proxies []string

	// GrantedByST / GrantedByPT identify the validated ticket for use as a
	// PGT grant edge; exactly one is set.
	GrantedByST string
	GrantedByPT string
}

// ProxyCallback delivers a freshly minted PGT to a relying service's
// callback URL. Deliver returns nil only for an acknowledged (2xx) response
// over verified TLS.
type ProxyCallback interface {
	Deliver(ctx context.Context, pgtURL, pgtID, pgtIOU string) error
}
