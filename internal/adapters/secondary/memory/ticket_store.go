// Package memory provides an in-memory ticket store with the same
// consumption semantics as the Postgres adapter. It backs the endpoint and
// concurrency tests, where a real database would only add noise.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/auxoro/cas-server/internal/core/domain"
	apperrors "github.com/auxoro/cas-server/internal/core/errors"
	"github.com/auxoro/cas-server/internal/core/ports"
)

// TicketStore keeps all four ticket kinds in maps guarded by one mutex, so a
// consume is exactly as atomic as the conditional UPDATE it stands in for.
type TicketStore struct {
	mu   sync.Mutex
	sts  map[string]*domain.ServiceTicket
	pts  map[string]*domain.ProxyTicket
	pgts map[string]*domain.ProxyGrantingTicket
	tgts map[string]*domain.TicketGrantingTicket
}

var _ ports.TicketRepository = (*TicketStore)(nil)

// NewTicketStore creates an empty in-memory store.
func NewTicketStore() *TicketStore {
	return &TicketStore{
		sts:  make(map[string]*domain.ServiceTicket),
		pts:  make(map[string]*domain.ProxyTicket),
		pgts: make(map[string]*domain.ProxyGrantingTicket),
		tgts: make(map[string]*domain.TicketGrantingTicket),
	}
}

func (s *TicketStore) InsertServiceTicket(_ context.Context, st *domain.ServiceTicket) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.sts[st.Ticket]; exists {
		return apperrors.ErrDuplicateTicket
	}
	cp := *st
	s.sts[st.Ticket] = &cp
	return nil
}

func (s *TicketStore) GetServiceTicket(_ context.Context, ticket string) (*domain.ServiceTicket, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.sts[ticket]
	if !ok {
		return nil, apperrors.ErrTicketNotFound
	}
	cp := *st
	return &cp, nil
}

func (s *TicketStore) ConsumeServiceTicket(_ context.Context, ticket string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.sts[ticket]
	if !ok || st.Consumed {
		return false, nil
	}
	st.Consumed = true
	return true, nil
}

func (s *TicketStore) InsertProxyTicket(_ context.Context, pt *domain.ProxyTicket) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.pts[pt.Ticket]; exists {
		return apperrors.ErrDuplicateTicket
	}
	cp := *pt
	s.pts[pt.Ticket] = &cp
	return nil
}

func (s *TicketStore) GetProxyTicket(_ context.Context, ticket string) (*domain.ProxyTicket, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	pt, ok := s.pts[ticket]
	if !ok {
		return nil, apperrors.ErrTicketNotFound
	}
	cp := *pt
	return &cp, nil
}

func (s *TicketStore) ConsumeProxyTicket(_ context.Context, ticket string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	pt, ok := s.pts[ticket]
	if !ok || pt.Consumed {
		return false, nil
	}
	pt.Consumed = true
	return true, nil
}

func (s *TicketStore) InsertProxyGrantingTicket(_ context.Context, pgt *domain.ProxyGrantingTicket) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.pgts[pgt.Ticket]; exists {
		return apperrors.ErrDuplicateTicket
	}
	cp := *pgt
	s.pgts[pgt.Ticket] = &cp
	return nil
}

func (s *TicketStore) GetProxyGrantingTicket(_ context.Context, ticket string) (*domain.ProxyGrantingTicket, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	pgt, ok := s.pgts[ticket]
	if !ok {
		return nil, apperrors.ErrTicketNotFound
	}
	cp := *pgt
	return &cp, nil
}

func (s *TicketStore) InsertTicketGrantingTicket(_ context.Context, tgt *domain.TicketGrantingTicket) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.tgts[tgt.Ticket]; exists {
		return apperrors.ErrDuplicateTicket
	}
	cp := *tgt
	s.tgts[tgt.Ticket] = &cp
	return nil
}

func (s *TicketStore) GetTicketGrantingTicket(_ context.Context, ticket string) (*domain.TicketGrantingTicket, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	tgt, ok := s.tgts[ticket]
	if !ok {
		return nil, apperrors.ErrTicketNotFound
	}
	cp := *tgt
	return &cp, nil
}

func (s *TicketStore) DeleteInvalid(_ context.Context, stCutoff, tgtCutoff time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for id, st := range s.sts {
		if st.Consumed || st.Created.Before(stCutoff) {
			delete(s.sts, id)
			n++
		}
	}
	for id, pt := range s.pts {
		if pt.Consumed || pt.Created.Before(stCutoff) {
			delete(s.pts, id)
			n++
		}
	}
	for id, tgt := range s.tgts {
		if tgt.Created.Before(tgtCutoff) {
			delete(s.tgts, id)
			n++
		}
	}
	for id, pgt := range s.pgts {
		if pgt.Created.Before(tgtCutoff) {
			delete(s.pgts, id)
			n++
		}
	}
	return n, nil
}
