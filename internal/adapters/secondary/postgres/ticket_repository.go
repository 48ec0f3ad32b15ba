package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/auxoro/cas-server/internal/core/domain"
	apperrors "github.com/auxoro/cas-server/internal/core/errors"
	"github.com/auxoro/cas-server/internal/core/ports"
)

// uniqueViolation is the SQLSTATE for a primary-key collision; it maps to
// ErrDuplicateTicket so the factory can retry with a fresh identifier.
const uniqueViolation = "23505"

// TicketRepository is the secondary adapter for ticket persistence. One
// table per ticket kind, ticket identifier as primary key.
type TicketRepository struct {
	pool *pgxpool.Pool
	txm  *TransactionManager
}

var _ ports.TicketRepository = (*TicketRepository)(nil)

// NewTicketRepository creates a new ticket repository.
func NewTicketRepository(pool *pgxpool.Pool) *TicketRepository {
	return &TicketRepository{
		pool: pool,
		txm:  NewTransactionManager(pool),
	}
}

func isDuplicate(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}

func (r *TicketRepository) db(ctx context.Context) DBTX {
	return GetDBTX(ctx, r.pool)
}

// --- Service tickets ---

func (r *TicketRepository) InsertServiceTicket(ctx context.Context, st *domain.ServiceTicket) error {
	_, err := r.db(ctx).Exec(ctx, `
		INSERT INTO service_ticket (ticket, username, service, granted_by_tgt, created, consumed)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		st.Ticket, st.Username, st.Service, st.GrantedByTGT, st.Created, st.Consumed,
	)
	if isDuplicate(err) {
		return apperrors.ErrDuplicateTicket
	}
	return err
}

func (r *TicketRepository) GetServiceTicket(ctx context.Context, ticket string) (*domain.ServiceTicket, error) {
	st := &domain.ServiceTicket{}
	err := r.db(ctx).QueryRow(ctx, `
		SELECT ticket, username, service, granted_by_tgt, created, consumed
		FROM service_ticket WHERE ticket = $1`, ticket,
	).Scan(&st.Ticket, &st.Username, &st.Service, &st.GrantedByTGT, &st.Created, &st.Consumed)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrTicketNotFound
		}
		return nil, err
	}
	return st, nil
}

// ConsumeServiceTicket flips consumed with a conditional update; the affected
// row count tells exactly one concurrent caller that it won.
func (r *TicketRepository) ConsumeServiceTicket(ctx context.Context, ticket string) (bool, error) {
	tag, err := r.db(ctx).Exec(ctx, `
		UPDATE service_ticket SET consumed = TRUE
		WHERE ticket = $1 AND consumed = FALSE`, ticket,
	)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// --- Proxy tickets ---

func (r *TicketRepository) InsertProxyTicket(ctx context.Context, pt *domain.ProxyTicket) error {
	_, err := r.db(ctx).Exec(ctx, `
		INSERT INTO proxy_ticket (ticket, username, service, granted_by_pgt, created, consumed)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		pt.Ticket, pt.Username, pt.Service, pt.GrantedByPGT, pt.Created, pt.Consumed,
	)
	if isDuplicate(err) {
		return apperrors.ErrDuplicateTicket
	}
	return err
}

func (r *TicketRepository) GetProxyTicket(ctx context.Context, ticket string) (*domain.ProxyTicket, error) {
	pt := &domain.ProxyTicket{}
	err := r.db(ctx).QueryRow(ctx, `
		SELECT ticket, username, service, granted_by_pgt, created, consumed
		FROM proxy_ticket WHERE ticket = $1`, ticket,
	).Scan(&pt.Ticket, &pt.Username, &pt.Service, &pt.GrantedByPGT, &pt.Created, &pt.Consumed)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrTicketNotFound
		}
		return nil, err
	}
	return pt, nil
}

func (r *TicketRepository) ConsumeProxyTicket(ctx context.Context, ticket string) (bool, error) {
	tag, err := r.db(ctx).Exec(ctx, `
		UPDATE proxy_ticket SET consumed = TRUE
		WHERE ticket = $1 AND consumed = FALSE`, ticket,
	)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// --- Proxy-granting tickets ---

func (r *TicketRepository) InsertProxyGrantingTicket(ctx context.Context, pgt *domain.ProxyGrantingTicket) error {
	_, err := r.db(ctx).Exec(ctx, `
		INSERT INTO proxy_granting_ticket (ticket, pgt_iou, username, pgt_url, granted_by_st, granted_by_pt, created)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		pgt.Ticket, pgt.IOU, pgt.Username, pgt.PGTURL, pgt.GrantedByST, pgt.GrantedByPT, pgt.Created,
	)
	if isDuplicate(err) {
		return apperrors.ErrDuplicateTicket
	}
	return err
}

func (r *TicketRepository) GetProxyGrantingTicket(ctx context.Context, ticket string) (*domain.ProxyGrantingTicket, error) {
	pgt := &domain.ProxyGrantingTicket{}
	err := r.db(ctx).QueryRow(ctx, `
		SELECT ticket, pgt_iou, username, pgt_url, granted_by_st, granted_by_pt, created
		FROM proxy_granting_ticket WHERE ticket = $1`, ticket,
	).Scan(&pgt.Ticket, &pgt.IOU, &pgt.Username, &pgt.PGTURL, &pgt.GrantedByST, &pgt.GrantedByPT, &pgt.Created)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrTicketNotFound
		}
		return nil, err
	}
	return pgt, nil
}

// --- Ticket-granting tickets ---

func (r *TicketRepository) InsertTicketGrantingTicket(ctx context.Context, tgt *domain.TicketGrantingTicket) error {
	_, err := r.db(ctx).Exec(ctx, `
		INSERT INTO ticket_granting_ticket (ticket, username, created)
		VALUES ($1, $2, $3)`,
		tgt.Ticket, tgt.Username, tgt.Created,
	)
	if isDuplicate(err) {
		return apperrors.ErrDuplicateTicket
	}
	return err
}

func (r *TicketRepository) GetTicketGrantingTicket(ctx context.Context, ticket string) (*domain.TicketGrantingTicket, error) {
	tgt := &domain.TicketGrantingTicket{}
	err := r.db(ctx).QueryRow(ctx, `
		SELECT ticket, username, created
		FROM ticket_granting_ticket WHERE ticket = $1`, ticket,
	).Scan(&tgt.Ticket, &tgt.Username, &tgt.Created)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrTicketNotFound
		}
		return nil, err
	}
	return tgt, nil
}

// DeleteInvalid purges consumed and expired rows across all four tables in a
// single transaction. PGT rows hang off the session window, so they share the
// TGT cutoff.
func (r *TicketRepository) DeleteInvalid(ctx context.Context, stCutoff, tgtCutoff time.Time) (int64, error) {
	var total int64
	err := r.txm.WithTransaction(ctx, func(ctx context.Context, tx pgx.Tx) error {
		statements := []struct {
			sql    string
			cutoff time.Time
		}{
			{`DELETE FROM proxy_ticket WHERE consumed = TRUE OR created < $1`, stCutoff},
			{`DELETE FROM service_ticket WHERE consumed = TRUE OR created < $1`, stCutoff},
			{`DELETE FROM proxy_granting_ticket WHERE created < $1`, tgtCutoff},
			{`DELETE FROM ticket_granting_ticket WHERE created < $1`, tgtCutoff},
		}
		for _, stmt := range statements {
			tag, err := tx.Exec(ctx, stmt.sql, stmt.cutoff)
			if err != nil {
				return err
			}
			total += tag.RowsAffected()
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return total, nil
}
