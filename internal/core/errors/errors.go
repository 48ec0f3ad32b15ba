package errors

import "errors"

// Protocol-level failures. The CAS 2.0 endpoints translate these to failure
// codes; the CAS 1.0 endpoint collapses them all to "no\n\n".
var (
	ErrInvalidRequest = errors.New("required request parameters are missing")
	ErrInvalidTicket  = errors.New("ticket is invalid")
	ErrInvalidService = errors.New("service does not match the ticket")
	ErrBadPGT         = errors.New("proxy-granting ticket is invalid")
	ErrInternal       = errors.New("internal server error")
)

// Store-level failures. These are distinct internally but collapse to
// ErrInvalidTicket at the protocol boundary.
var (
	ErrTicketNotFound  = errors.New("ticket not found")
	ErrTicketConsumed  = errors.New("ticket has already been consumed")
	ErrTicketExpired   = errors.New("ticket has expired")
	ErrDuplicateTicket = errors.New("ticket identifier already exists")
)

// Authentication failures.
var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrUserNotFound       = errors.New("user not found")
)

// Proxy callback failures. Never surfaced on the wire; a failed callback only
// suppresses the proxyGrantingTicket element of an otherwise successful
// validation response.
var (
	ErrCallbackScheme = errors.New("pgtUrl must use the https scheme")
	ErrCallbackFailed = errors.New("proxy callback was not acknowledged")
)
