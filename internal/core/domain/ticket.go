package domain

import (
	"crypto/rand"
	"fmt"
	"regexp"
	"strings"
	"time"
)

// Ticket identifier prefixes, one per ticket kind.
const (
	PrefixServiceTicket        = "ST"
	PrefixProxyTicket          = "PT"
	PrefixProxyGrantingTicket  = "PGT"
	PrefixProxyGrantingIOU     = "PGTIOU"
	PrefixTicketGrantingTicket = "TGT"
)

const (
	// ticketSuffixLength is the number of random characters after the
	// timestamp segment of an identifier.
	ticketSuffixLength = 32

	ticketAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"
)

// ticketIDPattern matches any well-formed ticket identifier:
// PREFIX-<10 digit decimal>-<32 alphanumeric characters>.
var ticketIDPattern = regexp.MustCompile(`^(ST|PT|PGT|PGTIOU|TGT)-[0-9]{10}-[A-Za-z0-9]{32}$`)

// NewTicketID generates a fresh ticket identifier for the given prefix. The
// middle segment is the zero-padded issuance time in unix seconds, the suffix
// is sampled from a cryptographically strong source. Uniqueness is ultimately
// enforced by the store's primary key; callers retry on collision.
func NewTicketID(prefix string) string {
	buf := make([]byte, ticketSuffixLength)
	if _, err := rand.Read(buf); err != nil {
		// crypto/rand does not fail on supported platforms
		panic(fmt.Sprintf("ticket id entropy unavailable: %v", err))
	}
	for i, b := range buf {
		buf[i] = ticketAlphabet[int(b)%len(ticketAlphabet)]
	}
	return fmt.Sprintf("%s-%010d-%s", prefix, time.Now().Unix(), buf)
}

// ValidTicketID reports whether id is a well-formed ticket identifier
// carrying the expected prefix.
func ValidTicketID(id, prefix string) bool {
	if !strings.HasPrefix(id, prefix+"-") {
		return false
	}
	return ticketIDPattern.MatchString(id)
}

// ServiceMatches compares a caller-supplied service URL against a stored one.
// The only normalization applied is stripping a single trailing slash from
// each side; scheme, host, path and query are otherwise compared literally.
func ServiceMatches(stored, supplied string) bool {
	return strings.TrimSuffix(stored, "/") == strings.TrimSuffix(supplied, "/")
}

// ServiceTicket is a one-time credential tying an authenticated user to a
// single service URL.
type ServiceTicket struct {
	Ticket       string
	Username     string
	Service      string
	GrantedByTGT *string
	Created      time.Time
	Consumed     bool
}

// ProxyTicket is the service-ticket analog issued on behalf of a proxying
// service; it always descends from exactly one proxy-granting ticket.
type ProxyTicket struct {
	Ticket       string
	Username     string
	Service      string
	GrantedByPGT string
	Created      time.Time
	Consumed     bool
}

// ProxyGrantingTicket is the long-lived handle a relying service holds to
// mint proxy tickets. Exactly one of GrantedByST and GrantedByPT is set.
type ProxyGrantingTicket struct {
	Ticket      string
	IOU         string
	Username    string
	PGTURL      string
	GrantedByST *string
	GrantedByPT *string
	Created     time.Time
}

// TicketGrantingTicket anchors a single sign-on session.
type TicketGrantingTicket struct {
	Ticket   string
	Username string
	Created  time.Time
}

// Expired reports whether the ticket's validity window has elapsed.
func (t *ServiceTicket) Expired(now time.Time, window time.Duration) bool {
	return now.After(t.Created.Add(window))
}

func (t *ProxyTicket) Expired(now time.Time, window time.Duration) bool {
	return now.After(t.Created.Add(window))
}

func (t *ProxyGrantingTicket) Expired(now time.Time, window time.Duration) bool {
	return now.After(t.Created.Add(window))
}

func (t *TicketGrantingTicket) Expired(now time.Time, window time.Duration) bool {
	return now.After(t.Created.Add(window))
}

// NewServiceTicket mints a service ticket for the given user and service.
// tgt, when non-empty, records the granting session ticket.
func NewServiceTicket(username, service, tgt string) *ServiceTicket {
	st := &ServiceTicket{
		Ticket:   NewTicketID(PrefixServiceTicket),
		Username: username,
		Service:  service,
		Created:  time.Now().UTC(),
	}
	if tgt != "" {
		st.GrantedByTGT = &tgt
	}
	return st
}

// NewProxyTicket mints a proxy ticket bound to targetService, granted by pgt.
func NewProxyTicket(username, targetService, pgt string) *ProxyTicket {
	return &ProxyTicket{
		Ticket:       NewTicketID(PrefixProxyTicket),
		Username:     username,
		Service:      targetService,
		GrantedByPGT: pgt,
		Created:      time.Now().UTC(),
	}
}

// NewProxyGrantingTicket mints a PGT and its IOU, granted by either a service
// ticket or a proxy ticket, never both.
func NewProxyGrantingTicket(username, pgtURL string, grantedByST, grantedByPT *string) *ProxyGrantingTicket {
	return &ProxyGrantingTicket{
		Ticket:      NewTicketID(PrefixProxyGrantingTicket),
		IOU:         NewTicketID(PrefixProxyGrantingIOU),
		Username:    username,
		PGTURL:      pgtURL,
		GrantedByST: grantedByST,
		GrantedByPT: grantedByPT,
		Created:     time.Now().UTC(),
	}
}

// NewTicketGrantingTicket mints the session anchor issued on login.
func NewTicketGrantingTicket(username string) *TicketGrantingTicket {
	return &TicketGrantingTicket{
		Ticket:   NewTicketID(PrefixTicketGrantingTicket),
		Username: username,
		Created:  time.Now().UTC(),
	}
}
