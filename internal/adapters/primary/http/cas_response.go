package http

import (
	"encoding/xml"
	"errors"
	"fmt"
	"net/http"

	apperrors "github.com/auxoro/cas-server/internal/core/errors"
)

// casNamespace is the XML namespace of every protocol response body.
const casNamespace = "http://www.yale.edu/tp/cas"

// Protocol failure codes carried in the code attribute of
// cas:authenticationFailure and cas:proxyFailure elements.
const (
	codeInvalidRequest = "INVALID_REQUEST"
	codeInvalidTicket  = "INVALID_TICKET"
	codeInvalidService = "INVALID_SERVICE"
	codeBadPGT         = "BAD_PGT"
	codeInternalError  = "INTERNAL_ERROR"
)

// serviceResponse is the root element of every CAS 2.0 response, validation
// and proxy alike. Exactly one child is non-nil.
type serviceResponse struct {
	XMLName      xml.Name `xml:"cas:serviceResponse"`
	Namespace    string   `xml:"xmlns:cas,attr"`
	AuthSuccess  *authenticationSuccess
	AuthFailure  *authenticationFailure
	ProxySuccess *proxySuccess
	ProxyFailure *proxyFailure
}

type authenticationSuccess struct {
	XMLName             xml.Name `xml:"cas:authenticationSuccess"`
	User                string   `xml:"cas:user"`
	ProxyGrantingTicket string   `xml:"cas:proxyGrantingTicket,omitempty"`
	Proxies             *proxyList
}

// proxyList is emitted only for proxy-ticket validations with a non-empty
// chain, the most recently traversed proxy first.
type proxyList struct {
	XMLName xml.Name `xml:"cas:proxies"`
	Proxies []string `xml:"cas:proxy"`
}

type authenticationFailure struct {
	XMLName xml.Name `xml:"cas:authenticationFailure"`
	Code    string   `xml:"code,attr"`
	Message string   `xml:",chardata"`
}

type proxySuccess struct {
	XMLName xml.Name `xml:"cas:proxySuccess"`
	Ticket  string   `xml:"cas:proxyTicket"`
}

type proxyFailure struct {
	XMLName xml.Name `xml:"cas:proxyFailure"`
	Code    string   `xml:"code,attr"`
	Message string   `xml:",chardata"`
}

// writeCASXML writes a protocol response body. Protocol outcomes, failures
// included, always travel with HTTP 200; the body carries the verdict.
func writeCASXML(w http.ResponseWriter, resp *serviceResponse) {
	resp.Namespace = casNamespace
	w.Header().Set("Content-Type", "text/xml; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	enc := xml.NewEncoder(w)
	enc.Indent("", "    ")
	_ = enc.Encode(resp)
	_ = enc.Close()
	_, _ = w.Write([]byte("\n"))
}

func writeAuthenticationSuccess(w http.ResponseWriter, user, pgtIOU string, proxies []string) {
	success := &authenticationSuccess{
		User:                user,
		ProxyGrantingTicket: pgtIOU,
	}
	if len(proxies) > 0 {
		success.Proxies = &proxyList{Proxies: proxies}
	}
	writeCASXML(w, &serviceResponse{AuthSuccess: success})
}

func writeAuthenticationFailure(w http.ResponseWriter, code, message string) {
	writeCASXML(w, &serviceResponse{AuthFailure: &authenticationFailure{
		Code:    code,
		Message: message,
	}})
}

func writeProxySuccess(w http.ResponseWriter, ticket string) {
	writeCASXML(w, &serviceResponse{ProxySuccess: &proxySuccess{Ticket: ticket}})
}

func writeProxyFailure(w http.ResponseWriter, code, message string) {
	writeCASXML(w, &serviceResponse{ProxyFailure: &proxyFailure{
		Code:    code,
		Message: message,
	}})
}

// writeLegacyYes emits the CAS 1.0 success body: the literal yes line followed
// by the username, each newline terminated.
func writeLegacyYes(w http.ResponseWriter, user string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = fmt.Fprintf(w, "yes\n%s\n", user)
}

// writeLegacyNo emits the CAS 1.0 failure body. No reason is ever given.
func writeLegacyNo(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = fmt.Fprint(w, "no\n\n")
}

// validationFailure maps a validator error to its protocol code and a short
// operator-readable message.
func validationFailure(err error) (string, string) {
	switch {
	case errors.Is(err, apperrors.ErrInvalidRequest):
		return codeInvalidRequest, "ticket and service parameters are both required"
	case errors.Is(err, apperrors.ErrInvalidTicket):
		return codeInvalidTicket, "ticket is invalid, expired or already consumed"
	case errors.Is(err, apperrors.ErrInvalidService):
		return codeInvalidService, "ticket is not valid for the requested service"
	default:
		return codeInternalError, "an internal error prevented validation"
	}
}
