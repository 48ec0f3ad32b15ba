package ports

import (
	"context"
	"time"

	"github.com/auxoro/cas-server/internal/core/domain"
)

// TicketRepository is the persistence port for all four ticket kinds.
//
// Insert methods return ErrDuplicateTicket on an identifier collision so the
// factory can retry with a fresh id. Consume methods perform a conditional
// update and report whether this caller observed the unconsumed ticket;
// exactly one of any number of concurrent callers sees true.
type TicketRepository interface {
	InsertServiceTicket(ctx context.Context, st *domain.ServiceTicket) error
	GetServiceTicket(ctx context.Context, ticket string) (*domain.ServiceTicket, error)
	ConsumeServiceTicket(ctx context.Context, ticket string) (bool, error)

	InsertProxyTicket(ctx context.Context, pt *domain.ProxyTicket) error
	GetProxyTicket(ctx context.Context, ticket string) (*domain.ProxyTicket, error)
	ConsumeProxyTicket(ctx context.Context, ticket string) (bool, error)

	InsertProxyGrantingTicket(ctx context.Context, pgt *domain.ProxyGrantingTicket) error
	GetProxyGrantingTicket(ctx context.Context, ticket string) (*domain.ProxyGrantingTicket, error)

	InsertTicketGrantingTicket(ctx context.Context, tgt *domain.TicketGrantingTicket) error
	GetTicketGrantingTicket(ctx context.Context, ticket string) (*domain.TicketGrantingTicket, error)

	// DeleteInvalid removes consumed tickets and tickets issued before the
	// given cutoffs. The janitor calls this periodically; validation never
	// depends on it having run.
	DeleteInvalid(ctx context.Context, stCutoff, tgtCutoff time.Time) (int64, error)
}

// UserRepository is the credential-directory port.
type UserRepository interface {
	GetByUsername(ctx context.Context, username string) (*domain.User, error)
}
