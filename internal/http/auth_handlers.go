package httpserver

import (
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/Clark-Hu/cinepuma/internal/auth"
	"github.com/Clark-Hu/cinepuma/internal/domain"
	"github.com/Clark-Hu/cinepuma/internal/session"
	"github.com/Clark-Hu/cinepuma/internal/view"
)

var (
	noticeAuthMissing = domain.Notice{
		Level:   domain.NoticeWarning,
		Title:   "Advertencia",
		Message: "El servicio de autenticación no está configurado. El Login y Registro no están disponibles.",
	}
	noticeAuthUnavailable = domain.Notice{
		Level:   domain.NoticeError,
		Title:   "Error",
		Message: "El servicio de autenticación no está disponible.",
	}
)

func (s *Server) loginBody(email string) view.Login {
	return view.Login{Email: email, PasswordEnabled: s.deps.Auth.PasswordEnabled()}
}

func (s *Server) handleLoginPage(w http.ResponseWriter, r *http.Request) {
	if sess, ok := session.FromContext(r.Context()); ok && !sess.Anonymous {
		http.Redirect(w, r, "/welcome", http.StatusSeeOther)
		return
	}
	var notices []domain.Notice
	if !s.deps.Auth.PasswordEnabled() {
		notices = append(notices, noticeAuthMissing)
	}
	s.deps.Renderer.Render(w, http.StatusOK, view.PageLogin, s.page(r, "Iniciar sesión", s.loginBody(""), notices...))
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBody)
	if err := r.ParseForm(); err != nil {
		s.renderLogin(w, r, http.StatusBadRequest, "", domain.Notice{
			Level: domain.NoticeError, Title: "Error", Message: "Formulario inválido.",
		})
		return
	}
	email := r.PostForm.Get("email")
	password := r.PostForm.Get("password")

	var (
		user  *auth.User
		err   error
		title string
	)
	if r.PostForm.Get("action") == "signup" {
		title = "Error de Registro"
		user, err = s.deps.Auth.SignUp(r.Context(), email, password)
	} else {
		title = "Error de Inicio de Sesión"
		user, err = s.deps.Auth.SignIn(r.Context(), email, password)
	}
	if err != nil {
		s.renderLogin(w, r, statusFor(err), email, authNotice(title, err))
		return
	}
	if _, err := s.deps.Sessions.Issue(w, user); err != nil {
		s.logger.Error("http: issue session", zap.Error(err))
		s.renderLogin(w, r, http.StatusInternalServerError, email, noticeAuthUnavailable)
		return
	}
	http.Redirect(w, r, "/welcome", http.StatusSeeOther)
}

func (s *Server) renderLogin(w http.ResponseWriter, r *http.Request, status int, email string, notice domain.Notice) {
	s.deps.Renderer.Render(w, status, view.PageLogin, s.page(r, "Iniciar sesión", s.loginBody(email), notice))
}

// authNotice shows provider rejections verbatim.
func authNotice(title string, err error) domain.Notice {
	switch {
	case errors.Is(err, auth.ErrConfigMissing):
		return noticeAuthUnavailable
	case errors.Is(err, domain.ErrValidation):
		msg := auth.SignInRequiredMessage
		if title == "Error de Registro" {
			msg = auth.SignUpRequiredMessage
		}
		return domain.Notice{Level: domain.NoticeWarning, Title: "Campos Requeridos", Message: msg}
	case auth.ProviderMessage(err) != "":
		return domain.Notice{Level: domain.NoticeError, Title: title, Message: "Error: " + auth.ProviderMessage(err)}
	default:
		return noticeAuthUnavailable
	}
}

func (s *Server) handleAnonymous(w http.ResponseWriter, r *http.Request) {
	user, err := s.deps.Auth.SignInAnonymously(r.Context())
	if err != nil {
		s.renderLogin(w, r, statusFor(err), "", authNotice("Error de Inicio de Sesión", err))
		return
	}
	if _, err := s.deps.Sessions.Issue(w, user); err != nil {
		s.logger.Error("http: issue session", zap.Error(err))
		s.renderLogin(w, r, http.StatusInternalServerError, "", noticeAuthUnavailable)
		return
	}
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

type tokenRequest struct {
	IDToken string `json:"idToken"`
}

type sessionResponse struct {
	UID       string `json:"uid"`
	Email     string `json:"email,omitempty"`
	Anonymous bool   `json:"anonymous"`
	Name      string `json:"name"`
}

func (s *Server) handleToken(w http.ResponseWriter, r *http.Request) {
	var req tokenRequest
	if err := decodeJSONBody(w, r, &req); err != nil {
		s.respondDecodeError(w, err)
		return
	}
	user, err := s.deps.Auth.SignInWithToken(r.Context(), req.IDToken)
	if err != nil {
		status := statusFor(err)
		switch {
		case errors.Is(err, domain.ErrValidation):
			s.respondError(w, status, "VALIDATION_ERROR", "idToken is required")
		case errors.Is(err, domain.ErrConfigMissing):
			s.respondError(w, status, "NOT_CONFIGURED", "token sign-in is not configured")
		case auth.ProviderMessage(err) != "":
			s.respondError(w, status, "AUTH_FAILED", auth.ProviderMessage(err))
		default:
			s.respondError(w, status, "AUTH_UNAVAILABLE", "authentication service unavailable")
		}
		return
	}
	sess, err := s.deps.Sessions.Issue(w, user)
	if err != nil {
		s.logger.Error("http: issue session", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, "INTERNAL", "could not create session")
		return
	}
	s.respondJSON(w, http.StatusOK, sessionResponse{
		UID:       sess.UID,
		Email:     sess.Email,
		Anonymous: sess.Anonymous,
		Name:      sess.DisplayName(),
	})
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	var user *auth.User
	if sess, ok := session.FromContext(r.Context()); ok {
		user = &auth.User{UID: sess.UID, Email: sess.Email, Anonymous: sess.Anonymous}
	}
	s.deps.Auth.SignOut(r.Context(), user)
	s.deps.Sessions.Clear(w)
	http.Redirect(w, r, "/login", http.StatusSeeOther)
}
