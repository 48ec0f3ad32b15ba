package http

import (
	"context"
	"encoding/xml"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/auxoro/cas-server/internal/adapters/secondary/memory"
	"github.com/auxoro/cas-server/internal/auth"
	"github.com/auxoro/cas-server/internal/core/domain"
	apperrors "github.com/auxoro/cas-server/internal/core/errors"
	"github.com/auxoro/cas-server/internal/core/ports"
	"github.com/auxoro/cas-server/internal/core/services"
	"github.com/auxoro/cas-server/internal/infrastructure/logging"
)

// staticUserRepo is a fixed credential directory for endpoint tests.
type staticUserRepo struct {
	users map[string]*domain.User
}

func (r *staticUserRepo) GetByUsername(_ context.Context, username string) (*domain.User, error) {
	if u, ok := r.users[username]; ok {
		return u, nil
	}
	return nil, apperrors.ErrUserNotFound
}

// callbackRecorder stands in for the pgtUrl handshake client.
type callbackRecorder struct {
	mu         sync.Mutex
	deliveries []string
	err        error
}

func (c *callbackRecorder) Deliver(_ context.Context, pgtURL, pgtID, pgtIOU string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return c.err
	}
	c.deliveries = append(c.deliveries, pgtURL+" "+pgtID+" "+pgtIOU)
	return nil
}

type testServer struct {
	router   http.Handler
	store    *memory.TicketStore
	tickets  ports.TicketService
	callback *callbackRecorder
	sessions *auth.SessionManager
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	hash, err := domain.HashPassword("s3cret")
	require.NoError(t, err)

	userRepo := &staticUserRepo{users: map[string]*domain.User{
		"alice": {Username: "alice", PasswordHash: hash, IsActive: true},
	}}

	store := memory.NewTicketStore()
	cb := &callbackRecorder{}
	logger := logging.NewLogger(logging.Config{Level: "error"})
	sessions := auth.NewSessionManager("endpoint-test-secret", 8*time.Hour)

	authService := services.NewAuthService(userRepo)
	ticketService := services.NewTicketService(store, cb, 8*time.Hour)
	validationService := services.NewValidationService(store, 5*time.Minute)

	loginHandler := NewLoginHandler(authService, ticketService, sessions, logger)
	validationHandler := NewValidationHandler(validationService, ticketService, logger)

	return &testServer{
		router:   NewRouter(loginHandler, validationHandler, nil, sessions, nil, logger),
		store:    store,
		tickets:  ticketService,
		callback: cb,
		sessions: sessions,
	}
}

func (ts *testServer) get(path string, query url.Values) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path+"?"+query.Encode(), nil)
	rec := httptest.NewRecorder()
	ts.router.ServeHTTP(rec, req)
	return rec
}

func (ts *testServer) postLogin(form url.Values) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/login", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	ts.router.ServeHTTP(rec, req)
	return rec
}

// issueST inserts a service ticket directly, bypassing the login flow.
func (ts *testServer) issueST(t *testing.T, username, service string) *domain.ServiceTicket {
	t.Helper()
	st, err := ts.tickets.IssueServiceTicket(context.Background(), username, service, "")
	require.NoError(t, err)
	return st
}

// casResponse mirrors the response document for decoding in assertions.
type casResponse struct {
	XMLName xml.Name `xml:"serviceResponse"`
	Success *struct {
		User    string `xml:"user"`
		PGT     string `xml:"proxyGrantingTicket"`
		Proxies struct {
			Proxy []string `xml:"proxy"`
		} `xml:"proxies"`
	} `xml:"authenticationSuccess"`
	Failure *struct {
		Code    string `xml:"code,attr"`
		Message string `xml:",chardata"`
	} `xml:"authenticationFailure"`
	ProxySuccess *struct {
		Ticket string `xml:"proxyTicket"`
	} `xml:"proxySuccess"`
	ProxyFailure *struct {
		Code string `xml:"code,attr"`
	} `xml:"proxyFailure"`
}

func decodeCAS(t *testing.T, rec *httptest.ResponseRecorder) *casResponse {
	t.Helper()
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/xml")
	resp := &casResponse{}
	require.NoError(t, xml.Unmarshal(rec.Body.Bytes(), resp))
	return resp
}

// --- /login ---

func TestLogin_SuccessRedirectsWithTicket(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.postLogin(url.Values{
		"username": {"alice"},
		"password": {"s3cret"},
		"service":  {"https://app.example.com/?page=1"},
	})

	require.Equal(t, http.StatusFound, rec.Code)

	loc, err := url.Parse(rec.Header().Get("Location"))
	require.NoError(t, err)
	assert.Equal(t, "app.example.com", loc.Host)
	assert.Equal(t, "1", loc.Query().Get("page"), "existing query parameters survive")
	ticket := loc.Query().Get("ticket")
	assert.True(t, domain.ValidTicketID(ticket, domain.PrefixServiceTicket))

	// The redirect carries a session cookie bound to a persisted TGT.
	cookies := rec.Result().Cookies()
	require.NotEmpty(t, cookies)
	var session string
	for _, c := range cookies {
		if c.Name == auth.SessionCookieName {
			session = c.Value
		}
	}
	require.NotEmpty(t, session)
	claims, err := ts.sessions.ValidateToken(session)
	require.NoError(t, err)
	assert.Equal(t, "alice", claims.Username)
	_, err = ts.store.GetTicketGrantingTicket(context.Background(), claims.TGT)
	assert.NoError(t, err)
}

func TestLogin_BadCredentialsRerendersForm(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.postLogin(url.Values{
		"username": {"alice"},
		"password": {"wrong"},
		"service":  {"https://app.example.com/"},
	})

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Incorrect username or password.")
	assert.Contains(t, rec.Body.String(), `name="service" value="https://app.example.com/"`)
	assert.Empty(t, rec.Result().Cookies())
}

func TestLogin_FormRendered(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.get("/login", url.Values{"service": {"https://app.example.com/"}})

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/html")
	assert.Contains(t, rec.Body.String(), `<form method="post" action="/login">`)
}

func TestLogin_ExistingSessionShortCircuits(t *testing.T) {
	ts := newTestServer(t)

	// Establish a session.
	first := ts.postLogin(url.Values{"username": {"alice"}, "password": {"s3cret"}})
	require.Equal(t, http.StatusFound, first.Code)
	cookie := first.Result().Cookies()[0]

	// Revisit /login for a service; no credentials, fresh ticket.
	req := httptest.NewRequest(http.MethodGet, "/login?service="+url.QueryEscape("https://app.example.com/"), nil)
	req.AddCookie(cookie)
	rec := httptest.NewRecorder()
	ts.router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusFound, rec.Code)
	loc, err := url.Parse(rec.Header().Get("Location"))
	require.NoError(t, err)
	ticket := loc.Query().Get("ticket")
	require.True(t, domain.ValidTicketID(ticket, domain.PrefixServiceTicket))

	// The minted ticket validates for alice.
	val := ts.get("/serviceValidate", url.Values{
		"ticket":  {ticket},
		"service": {"https://app.example.com/"},
	})
	resp := decodeCAS(t, val)
	require.NotNil(t, resp.Success)
	assert.Equal(t, "alice", resp.Success.User)
}

func TestLogout_ClearsCookie(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.get("/logout", url.Values{})

	require.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "/login", rec.Header().Get("Location"))

	cookies := rec.Result().Cookies()
	require.NotEmpty(t, cookies)
	assert.Equal(t, auth.SessionCookieName, cookies[0].Name)
	assert.Empty(t, cookies[0].Value)
	assert.Negative(t, cookies[0].MaxAge)
}

// --- /validate (CAS 1.0) ---

func TestValidate_ExactWireFormat(t *testing.T) {
	ts := newTestServer(t)
	st := ts.issueST(t, "alice", "https://app.example.com/")

	rec := ts.get("/validate", url.Values{
		"ticket":  {st.Ticket},
		"service": {"https://app.example.com/"},
	})

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/plain")
	assert.Equal(t, "yes\nalice\n", rec.Body.String())
}

func TestValidate_FailureBody(t *testing.T) {
	ts := newTestServer(t)

	tests := []struct {
		name  string
		query url.Values
	}{
		{"missing params", url.Values{}},
		{"unknown ticket", url.Values{
			"ticket":  {domain.NewTicketID(domain.PrefixServiceTicket)},
			"service": {"https://app.example.com/"},
		}},
		{"malformed ticket", url.Values{
			"ticket":  {"garbage"},
			"service": {"https://app.example.com/"},
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := ts.get("/validate", tt.query)
			require.Equal(t, http.StatusOK, rec.Code, "failures still answer 200")
			assert.Equal(t, "no\n\n", rec.Body.String())
		})
	}
}

func TestValidate_ConsumesTicket(t *testing.T) {
	ts := newTestServer(t)
	st := ts.issueST(t, "alice", "https://app.example.com/")
	q := url.Values{"ticket": {st.Ticket}, "service": {"https://app.example.com/"}}

	first := ts.get("/validate", q)
	assert.Equal(t, "yes\nalice\n", first.Body.String())

	second := ts.get("/validate", q)
	assert.Equal(t, "no\n\n", second.Body.String())
}

// --- /serviceValidate (CAS 2.0) ---

func TestServiceValidate_Success(t *testing.T) {
	ts := newTestServer(t)
	st := ts.issueST(t, "alice", "https://app.example.com/")

	rec := ts.get("/serviceValidate", url.Values{
		"ticket":  {st.Ticket},
		"service": {"https://app.example.com/"},
	})

	resp := decodeCAS(t, rec)
	require.NotNil(t, resp.Success)
	assert.Equal(t, "alice", resp.Success.User)
	assert.Empty(t, resp.Success.PGT)
	assert.Empty(t, resp.Success.Proxies.Proxy)
	assert.Contains(t, rec.Body.String(), `xmlns:cas="http://www.yale.edu/tp/cas"`)
}

func TestServiceValidate_FailureCodes(t *testing.T) {
	ts := newTestServer(t)
	st := ts.issueST(t, "alice", "https://app.example.com/")

	consumed := ts.issueST(t, "alice", "https://app.example.com/")
	_, err := ts.store.ConsumeServiceTicket(context.Background(), consumed.Ticket)
	require.NoError(t, err)

	tests := []struct {
		name  string
		query url.Values
		code  string
	}{
		{"missing ticket", url.Values{"service": {"https://app.example.com/"}}, "INVALID_REQUEST"},
		{"missing service", url.Values{"ticket": {st.Ticket}}, "INVALID_REQUEST"},
		{"unknown ticket", url.Values{
			"ticket":  {domain.NewTicketID(domain.PrefixServiceTicket)},
			"service": {"https://app.example.com/"},
		}, "INVALID_TICKET"},
		{"consumed ticket", url.Values{
			"ticket":  {consumed.Ticket},
			"service": {"https://app.example.com/"},
		}, "INVALID_TICKET"},
		{"service mismatch", url.Values{
			"ticket":  {st.Ticket},
			"service": {"https://other.example.com/"},
		}, "INVALID_SERVICE"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := decodeCAS(t, ts.get("/serviceValidate", tt.query))
			require.NotNil(t, resp.Failure)
			assert.Equal(t, tt.code, resp.Failure.Code)
			assert.NotEmpty(t, strings.TrimSpace(resp.Failure.Message))
		})
	}
}

func TestServiceValidate_RejectsProxyTicket(t *testing.T) {
	ts := newTestServer(t)
	ctx := context.Background()

	st := ts.issueST(t, "alice", "https://a.example.com/")
	pgt, err := ts.tickets.IssueProxyGrantingTicket(ctx, "alice", "https://a.example.com/cb", st.Ticket, "")
	require.NoError(t, err)
	pt, err := ts.tickets.IssueProxyTicket(ctx, "https://b.example.com/", pgt.Ticket)
	require.NoError(t, err)

	resp := decodeCAS(t, ts.get("/serviceValidate", url.Values{
		"ticket":  {pt.Ticket},
		"service": {"https://b.example.com/"},
	}))
	require.NotNil(t, resp.Failure)
	assert.Equal(t, "INVALID_TICKET", resp.Failure.Code)
}

func TestServiceValidate_PGTHandshake(t *testing.T) {
	ts := newTestServer(t)
	st := ts.issueST(t, "alice", "https://app.example.com/")

	rec := ts.get("/serviceValidate", url.Values{
		"ticket":  {st.Ticket},
		"service": {"https://app.example.com/"},
		"pgtUrl":  {"https://app.example.com/pgtCallback"},
	})

	resp := decodeCAS(t, rec)
	require.NotNil(t, resp.Success)
	assert.Equal(t, "alice", resp.Success.User)
	require.True(t, domain.ValidTicketID(resp.Success.PGT, domain.PrefixProxyGrantingIOU),
		"the body carries the IOU, never the PGT itself")
	require.Len(t, ts.callback.deliveries, 1)
	assert.Contains(t, ts.callback.deliveries[0], "https://app.example.com/pgtCallback")
}

func TestServiceValidate_PGTHandshakeFailureOmitsElement(t *testing.T) {
	ts := newTestServer(t)
	ts.callback.err = apperrors.ErrCallbackFailed
	st := ts.issueST(t, "alice", "https://app.example.com/")

	resp := decodeCAS(t, ts.get("/serviceValidate", url.Values{
		"ticket":  {st.Ticket},
		"service": {"https://app.example.com/"},
		"pgtUrl":  {"https://app.example.com/pgtCallback"},
	}))

	// Validation still succeeds; only the pgt element is missing.
	require.NotNil(t, resp.Success)
	assert.Equal(t, "alice", resp.Success.User)
	assert.Empty(t, resp.Success.PGT)
}

func TestServiceValidate_PlainHTTPpgtUrlOmitsElement(t *testing.T) {
	ts := newTestServer(t)
	st := ts.issueST(t, "alice", "https://app.example.com/")

	resp := decodeCAS(t, ts.get("/serviceValidate", url.Values{
		"ticket":  {st.Ticket},
		"service": {"https://app.example.com/"},
		"pgtUrl":  {"http://app.example.com/pgtCallback"},
	}))

	require.NotNil(t, resp.Success)
	assert.Empty(t, resp.Success.PGT)
	assert.Empty(t, ts.callback.deliveries, "no handshake over plain http")
}

// --- /proxyValidate ---

func TestProxyValidate_ProxyChain(t *testing.T) {
	ts := newTestServer(t)
	ctx := context.Background()

	st := ts.issueST(t, "alice", "https://a.example.com/")
	pgtA, err := ts.tickets.IssueProxyGrantingTicket(ctx, "alice", "https://a.example.com/cb", st.Ticket, "")
	require.NoError(t, err)
	ptB, err := ts.tickets.IssueProxyTicket(ctx, "https://b.example.com/", pgtA.Ticket)
	require.NoError(t, err)
	pgtB, err := ts.tickets.IssueProxyGrantingTicket(ctx, "alice", "https://b.example.com/cb", "", ptB.Ticket)
	require.NoError(t, err)
	ptC, err := ts.tickets.IssueProxyTicket(ctx, "https://c.example.com/", pgtB.Ticket)
	require.NoError(t, err)

	resp := decodeCAS(t, ts.get("/proxyValidate", url.Values{
		"ticket":  {ptC.Ticket},
		"service": {"https://c.example.com/"},
	}))

	require.NotNil(t, resp.Success)
	assert.Equal(t, "alice", resp.Success.User)
	assert.Equal(t, []string{"https://c.example.com/", "https://b.example.com/"}, resp.Success.Proxies.Proxy)
}

func TestProxyValidate_AcceptsServiceTicketWithoutProxies(t *testing.T) {
	ts := newTestServer(t)
	st := ts.issueST(t, "alice", "https://app.example.com/")

	resp := decodeCAS(t, ts.get("/proxyValidate", url.Values{
		"ticket":  {st.Ticket},
		"service": {"https://app.example.com/"},
	}))

	require.NotNil(t, resp.Success)
	assert.Equal(t, "alice", resp.Success.User)
	assert.Empty(t, resp.Success.Proxies.Proxy)
}

// --- /proxy ---

func TestProxy_Success(t *testing.T) {
	ts := newTestServer(t)
	ctx := context.Background()

	st := ts.issueST(t, "alice", "https://a.example.com/")
	pgt, err := ts.tickets.IssueProxyGrantingTicket(ctx, "alice", "https://a.example.com/cb", st.Ticket, "")
	require.NoError(t, err)

	resp := decodeCAS(t, ts.get("/proxy", url.Values{
		"pgt":           {pgt.Ticket},
		"targetService": {"https://b.example.com/"},
	}))

	require.NotNil(t, resp.ProxySuccess)
	ticket := resp.ProxySuccess.Ticket
	require.True(t, domain.ValidTicketID(ticket, domain.PrefixProxyTicket))

	// The minted PT validates through /proxyValidate.
	val := decodeCAS(t, ts.get("/proxyValidate", url.Values{
		"ticket":  {ticket},
		"service": {"https://b.example.com/"},
	}))
	require.NotNil(t, val.Success)
	assert.Equal(t, "alice", val.Success.User)
}

func TestProxy_Failures(t *testing.T) {
	ts := newTestServer(t)

	tests := []struct {
		name  string
		query url.Values
		code  string
	}{
		{"missing params", url.Values{}, "INVALID_REQUEST"},
		{"missing target", url.Values{"pgt": {domain.NewTicketID(domain.PrefixProxyGrantingTicket)}}, "INVALID_REQUEST"},
		{"malformed pgt", url.Values{
			"pgt":           {"garbage"},
			"targetService": {"https://b.example.com/"},
		}, "BAD_PGT"},
		{"unknown pgt", url.Values{
			"pgt":           {domain.NewTicketID(domain.PrefixProxyGrantingTicket)},
			"targetService": {"https://b.example.com/"},
		}, "BAD_PGT"},
		{"iou instead of pgt", url.Values{
			"pgt":           {domain.NewTicketID(domain.PrefixProxyGrantingIOU)},
			"targetService": {"https://b.example.com/"},
		}, "BAD_PGT"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := decodeCAS(t, ts.get("/proxy", tt.query))
			require.NotNil(t, resp.ProxyFailure)
			assert.Equal(t, tt.code, resp.ProxyFailure.Code)
		})
	}
}

// --- method discipline ---

func TestProtocolEndpoints_RejectNonGET(t *testing.T) {
	ts := newTestServer(t)

	for _, path := range []string{"/validate", "/serviceValidate", "/proxyValidate", "/proxy", "/logout"} {
		t.Run(path, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, path, nil)
			rec := httptest.NewRecorder()
			ts.router.ServeHTTP(rec, req)
			assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
		})
	}
}
