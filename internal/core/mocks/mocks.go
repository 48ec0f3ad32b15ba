package mocks

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/auxoro/cas-server/internal/core/domain"
)

// MockTicketRepository is a mock implementation of ports.TicketRepository
type MockTicketRepository struct {
	mock.Mock
}

func NewMockTicketRepository() *MockTicketRepository {
	return &MockTicketRepository{}
}

func (m *MockTicketRepository) InsertServiceTicket(ctx context.Context, st *domain.ServiceTicket) error {
	args := m.Called(ctx, st)
	return args.Error(0)
}

func (m *MockTicketRepository) GetServiceTicket(ctx context.Context, ticket string) (*domain.ServiceTicket, error) {
	args := m.Called(ctx, ticket)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.ServiceTicket), args.Error(1)
}

func (m *MockTicketRepository) ConsumeServiceTicket(ctx context.Context, ticket string) (bool, error) {
	args := m.Called(ctx, ticket)
	return args.Bool(0), args.Error(1)
}

func (m *MockTicketRepository) InsertProxyTicket(ctx context.Context, pt *domain.ProxyTicket) error {
	args := m.Called(ctx, pt)
	return args.Error(0)
}

func (m *MockTicketRepository) GetProxyTicket(ctx context.Context, ticket string) (*domain.ProxyTicket, error) {
	args := m.Called(ctx, ticket)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.ProxyTicket), args.Error(1)
}

func (m *MockTicketRepository) ConsumeProxyTicket(ctx context.Context, ticket string) (bool, error) {
	args := m.Called(ctx, ticket)
	return args.Bool(0), args.Error(1)
}

func (m *MockTicketRepository) InsertProxyGrantingTicket(ctx context.Context, pgt *domain.ProxyGrantingTicket) error {
	args := m.Called(ctx, pgt)
	return args.Error(0)
}

func (m *MockTicketRepository) GetProxyGrantingTicket(ctx context.Context, ticket string) (*domain.ProxyGrantingTicket, error) {
	args := m.Called(ctx, ticket)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.ProxyGrantingTicket), args.Error(1)
}

func (m *MockTicketRepository) InsertTicketGrantingTicket(ctx context.Context, tgt *domain.TicketGrantingTicket) error {
	args := m.Called(ctx, tgt)
	return args.Error(0)
}

func (m *MockTicketRepository) GetTicketGrantingTicket(ctx context.Context, ticket string) (*domain.TicketGrantingTicket, error) {
	args := m.Called(ctx, ticket)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.TicketGrantingTicket), args.Error(1)
}

func (m *MockTicketRepository) DeleteInvalid(ctx context.Context, stCutoff, tgtCutoff time.Time) (int64, error) {
	args := m.Called(ctx, stCutoff, tgtCutoff)
	return args.Get(0).(int64), args.Error(1)
}

// MockUserRepository is a mock implementation of ports.UserRepository
type MockUserRepository struct {
	mock.Mock
}

func NewMockUserRepository() *MockUserRepository {
	return &MockUserRepository{}
}

func (m *MockUserRepository) GetByUsername(ctx context.Context, username string) (*domain.User, error) {
	args := m.Called(ctx, username)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.User), args.Error(1)
}

// MockProxyCallback is a mock implementation of ports.ProxyCallback
type MockProxyCallback struct {
	mock.Mock
}

func NewMockProxyCallback() *MockProxyCallback {
	return &MockProxyCallback{}
}

func (m *MockProxyCallback) Deliver(ctx context.Context, pgtURL, pgtID, pgtIOU string) error {
	args := m.Called(ctx, pgtURL, pgtID, pgtIOU)
	return args.Error(0)
}
