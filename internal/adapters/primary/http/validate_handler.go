package http

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	apperrors "github.com/auxoro/cas-server/internal/core/errors"
	"github.com/auxoro/cas-server/internal/core/ports"
)

// ValidationHandler serves the three ticket validation endpoints and /proxy.
type ValidationHandler struct {
	validationService ports.ValidationService
	ticketService     ports.TicketService
	logger            *slog.Logger
}

// NewValidationHandler creates a new validation handler.
func NewValidationHandler(validationService ports.ValidationService, ticketService ports.TicketService, logger *slog.Logger) *ValidationHandler {
	return &ValidationHandler{
		validationService: validationService,
		ticketService:     ticketService,
		logger:            logger.With("handler", "validation"),
	}
}

// HandleValidate implements the CAS 1.0 /validate endpoint. The body is plain
// text, two lines, and the reply is always HTTP 200. Accepts service tickets
// only.
func (h *ValidationHandler) HandleValidate(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	ticket := q.Get("ticket")
	service := q.Get("service")

	result, err := h.validationService.ValidateServiceTicket(r.Context(), ticket, service)
	if err != nil {
		h.logger.WarnContext(r.Context(), "legacy validation failed",
			"ticket", ticket, "service", service, "error", err)
		writeLegacyNo(w)
		return
	}

	writeLegacyYes(w, result.Username)
}

// HandleServiceValidate implements the CAS 2.0 /serviceValidate endpoint.
// Accepts service tickets only; a proxy ticket presented here fails with
// INVALID_TICKET.
func (h *ValidationHandler) HandleServiceValidate(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	ticket := q.Get("ticket")
	service := q.Get("service")

	result, err := h.validationService.ValidateServiceTicket(r.Context(), ticket, service)
	if err != nil {
		h.failValidation(w, r, ticket, service, err)
		return
	}

	pgtIOU := h.maybeIssuePGT(r.Context(), q.Get("pgtUrl"), result)
	writeAuthenticationSuccess(w, result.Username, pgtIOU, nil)
}

// HandleProxyValidate implements the CAS 2.0 /proxyValidate endpoint. Accepts
// service tickets and proxy tickets; on a proxy ticket the success body lists
// the traversed proxy chain.
func (h *ValidationHandler) HandleProxyValidate(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	ticket := q.Get("ticket")
	service := q.Get("service")

	result, err := h.validationService.ValidateTicket(r.Context(), ticket, service)
	if err != nil {
		h.failValidation(w, r, ticket, service, err)
		return
	}

	pgtIOU := h.maybeIssuePGT(r.Context(), q.Get("pgtUrl"), result)
	writeAuthenticationSuccess(w, result.Username, pgtIOU, result.Proxies)
}

// HandleProxy implements the CAS 2.0 /proxy endpoint: it exchanges a PGT for
// a proxy ticket bound to targetService.
func (h *ValidationHandler) HandleProxy(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	pgt := q.Get("pgt")
	targetService := q.Get("targetService")

	if pgt == "" || targetService == "" {
		writeProxyFailure(w, codeInvalidRequest, "pgt and targetService parameters are both required")
		return
	}

	pt, err := h.ticketService.IssueProxyTicket(r.Context(), targetService, pgt)
	if err != nil {
		if errors.Is(err, apperrors.ErrBadPGT) {
			h.logger.WarnContext(r.Context(), "proxy ticket refused", "pgt", pgt, "target_service", targetService)
			writeProxyFailure(w, codeBadPGT, "pgt is not a valid proxy-granting ticket")
			return
		}
		h.logger.ErrorContext(r.Context(), "proxy ticket issuance failed", "error", err)
		writeProxyFailure(w, codeInternalError, "an internal error prevented proxy ticket issuance")
		return
	}

	h.logger.InfoContext(r.Context(), "proxy ticket issued",
		"ticket", pt.Ticket, "target_service", targetService, "username", pt.Username)
	writeProxySuccess(w, pt.Ticket)
}

func (h *ValidationHandler) failValidation(w http.ResponseWriter, r *http.Request, ticket, service string, err error) {
	code, message := validationFailure(err)
	if code == codeInternalError {
		h.logger.ErrorContext(r.Context(), "validation error", "ticket", ticket, "error", err)
	} else {
		h.logger.WarnContext(r.Context(), "validation failed",
			"ticket", ticket, "service", service, "code", code)
	}
	writeAuthenticationFailure(w, code, message)
}

// maybeIssuePGT runs the pgtUrl handshake when the parameter is present. A
// failed handshake never fails the validation; the success body simply omits
// the proxyGrantingTicket element.
func (h *ValidationHandler) maybeIssuePGT(ctx context.Context, pgtURL string, result *ports.ValidationResult) string {
	if pgtURL == "" {
		return ""
	}

	pgt, err := h.ticketService.IssueProxyGrantingTicket(ctx, result.Username, pgtURL, result.GrantedByST, result.GrantedByPT)
	if err != nil {
		h.logger.WarnContext(ctx, "pgt handshake failed", "pgt_url", pgtURL, "error", err)
		return ""
	}

	h.logger.InfoContext(ctx, "pgt issued", "ticket", pgt.Ticket, "pgt_url", pgtURL, "username", result.Username)
	return pgt.IOU
}
