package http

import (
	"html/template"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	mw "github.com/auxoro/cas-server/internal/adapters/primary/http/middleware"
	"github.com/auxoro/cas-server/internal/auth"
	"github.com/auxoro/cas-server/internal/core/ports"
)

// loginPage is the minimal credential form. Service travels through a hidden
// field so the post-login redirect lands back on the requesting application.
const loginPage = `<!DOCTYPE html>
<html lang="en">
<head>
  <meta charset="utf-8">
  <title>Central Authentication Service</title>
</head>
<body>
  <h1>Log In</h1>
  {{if .Error}}<p class="error">{{.Error}}</p>{{end}}
  {{if .Message}}<p class="message">{{.Message}}</p>{{end}}
  <form method="post" action="/login">
    <input type="hidden" name="service" value="{{.Service}}">
    <label>Username <input type="text" name="username" autofocus></label>
    <label>Password <input type="password" name="password"></label>
    <button type="submit">Log In</button>
  </form>
</body>
</html>
`

type loginPageData struct {
	Service string
	Error   string
	Message string
}

// LoginHandler serves the credential form, the session cookie lifecycle and
// the post-login service ticket redirect.
type LoginHandler struct {
	authService   ports.AuthService
	ticketService ports.TicketService
	sessions      *auth.SessionManager
	logger        *slog.Logger
	tmpl          *template.Template
}

// NewLoginHandler creates a new login handler.
func NewLoginHandler(authService ports.AuthService, ticketService ports.TicketService, sessions *auth.SessionManager, logger *slog.Logger) *LoginHandler {
	return &LoginHandler{
		authService:   authService,
		ticketService: ticketService,
		sessions:      sessions,
		logger:        logger.With("handler", "login"),
		tmpl:          template.Must(template.New("login").Parse(loginPage)),
	}
}

// HandleLoginForm serves GET /login. A visitor holding a live session and
// asking for a service skips the form entirely: a fresh service ticket is
// minted against the existing session and the browser is sent straight back.
func (h *LoginHandler) HandleLoginForm(w http.ResponseWriter, r *http.Request) {
	service := r.URL.Query().Get("service")
	claims := mw.SessionClaims(r.Context())

	if claims != nil && service != "" {
		st, err := h.ticketService.IssueServiceTicket(r.Context(), claims.Username, service, claims.TGT)
		if err != nil {
			h.logger.ErrorContext(r.Context(), "single sign-on ticket issuance failed",
				"username", claims.Username, "service", service, "error", err)
			h.renderForm(w, http.StatusOK, loginPageData{Service: service, Error: "Unable to sign you in right now."})
			return
		}
		h.logger.InfoContext(r.Context(), "service ticket issued via existing session",
			"ticket", st.Ticket, "username", claims.Username, "service", service)
		h.redirectWithTicket(w, r, service, st.Ticket)
		return
	}

	data := loginPageData{Service: service}
	if claims != nil {
		data.Message = "You are signed in as " + claims.Username + "."
	}
	h.renderForm(w, http.StatusOK, data)
}

// HandleLogin serves POST /login: credential check, session establishment and
// the service ticket redirect.
func (h *LoginHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		h.renderForm(w, http.StatusOK, loginPageData{Error: "The submitted form could not be read."})
		return
	}

	username := r.PostFormValue("username")
	password := r.PostFormValue("password")
	service := r.PostFormValue("service")

	user, err := h.authService.Login(r.Context(), username, password)
	if err != nil {
		// A generic message, and still HTTP 200: the form simply reappears.
		h.logger.WarnContext(r.Context(), "login refused", "username", username)
		h.renderForm(w, http.StatusOK, loginPageData{Service: service, Error: "Incorrect username or password."})
		return
	}

	tgt, err := h.ticketService.IssueTicketGrantingTicket(r.Context(), user.Username)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "session establishment failed", "username", user.Username, "error", err)
		h.renderForm(w, http.StatusOK, loginPageData{Service: service, Error: "Unable to sign you in right now."})
		return
	}

	token, err := h.sessions.GenerateToken(user.Username, tgt.Ticket)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "session token signing failed", "username", user.Username, "error", err)
		h.renderForm(w, http.StatusOK, loginPageData{Service: service, Error: "Unable to sign you in right now."})
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     auth.SessionCookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   int(h.sessions.TTL() / time.Second),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})

	h.logger.InfoContext(r.Context(), "login succeeded", "username", user.Username, "tgt", tgt.Ticket)

	if service == "" {
		http.Redirect(w, r, "/login", http.StatusFound)
		return
	}

	st, err := h.ticketService.IssueServiceTicket(r.Context(), user.Username, service, tgt.Ticket)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "service ticket issuance failed",
			"username", user.Username, "service", service, "error", err)
		h.renderForm(w, http.StatusOK, loginPageData{Service: service, Error: "Unable to sign you in right now."})
		return
	}

	h.logger.InfoContext(r.Context(), "service ticket issued",
		"ticket", st.Ticket, "username", user.Username, "service", service)
	h.redirectWithTicket(w, r, service, st.Ticket)
}

// HandleLogout serves GET /logout: the session cookie is dropped and the
// browser returns to the form. Issued tickets are left to expire on their own.
func (h *LoginHandler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:     auth.SessionCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})

	if claims := mw.SessionClaims(r.Context()); claims != nil {
		h.logger.InfoContext(r.Context(), "logout", "username", claims.Username)
	}
	http.Redirect(w, r, "/login", http.StatusFound)
}

// redirectWithTicket sends the browser back to service with the ticket
// appended to its query string, preserving parameters already present.
func (h *LoginHandler) redirectWithTicket(w http.ResponseWriter, r *http.Request, service, ticket string) {
	u, err := url.Parse(service)
	if err != nil {
		h.logger.WarnContext(r.Context(), "unparsable service url", "service", service)
		h.renderForm(w, http.StatusOK, loginPageData{Error: "The requested service URL is not valid."})
		return
	}

	q := u.Query()
	q.Set("ticket", ticket)
	u.RawQuery = q.Encode()

	http.Redirect(w, r, u.String(), http.StatusFound)
}

func (h *LoginHandler) renderForm(w http.ResponseWriter, status int, data loginPageData) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := h.tmpl.Execute(w, data); err != nil {
		h.logger.Error("login template render failed", "error", err)
	}
}
