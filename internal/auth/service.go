package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/Clark-Hu/cinepuma/internal/metrics"
)

var validate = validator.New()

type signInForm struct {
	Email    string `validate:"required"`
	Password string `validate:"required"`
}

type signUpForm struct {
	Email    string `validate:"required,email"`
	Password string `validate:"required,min=6"`
}

// Validation messages shown next to the form.
const (
	SignInRequiredMessage = "El email y la contraseña son obligatorios."
	SignUpRequiredMessage = "El email y una contraseña de al menos 6 caracteres son obligatorios para registrarse."
)

// StateListener observes sign-in and sign-out. user is nil after sign-out.
type StateListener func(ctx context.Context, user *User)

// Service validates forms, calls the configured backends and notifies
// listeners of every state change. Either backend may be nil.
type Service struct {
	password PasswordBackend
	tokens   TokenVerifier
	logger   *zap.Logger

	mu        sync.RWMutex
	listeners []StateListener
}

// NewService wires the backends.
func NewService(password PasswordBackend, tokens TokenVerifier, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{password: password, tokens: tokens, logger: logger}
}

// PasswordEnabled reports whether email and anonymous sign-in are available.
func (s *Service) PasswordEnabled() bool {
	return s != nil && s.password != nil
}

// TokenEnabled reports whether ID tokens can be exchanged for a session.
func (s *Service) TokenEnabled() bool {
	return s != nil && s.tokens != nil
}

// OnStateChange registers fn. Listeners run synchronously in registration order.
func (s *Service) OnStateChange(fn StateListener) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, fn)
}

func (s *Service) notify(ctx context.Context, user *User) {
	s.mu.RLock()
	listeners := append([]StateListener(nil), s.listeners...)
	s.mu.RUnlock()
	for _, fn := range listeners {
		fn(ctx, user)
	}
}

// SignIn authenticates an existing account.
func (s *Service) SignIn(ctx context.Context, email, password string) (*User, error) {
	email = strings.TrimSpace(email)
	if err := validate.Struct(signInForm{Email: email, Password: password}); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrInvalidCredentials, SignInRequiredMessage)
	}
	if !s.PasswordEnabled() {
		return nil, ErrConfigMissing
	}
	return s.finish(ctx, "sign_in")(s.password.SignIn(ctx, email, password))
}

// SignUp creates an account. The email must be well formed and the password
// at least six characters long.
func (s *Service) SignUp(ctx context.Context, email, password string) (*User, error) {
	email = strings.TrimSpace(email)
	if err := validate.Struct(signUpForm{Email: email, Password: password}); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrInvalidCredentials, SignUpRequiredMessage)
	}
	if !s.PasswordEnabled() {
		return nil, ErrConfigMissing
	}
	return s.finish(ctx, "sign_up")(s.password.SignUp(ctx, email, password))
}

// SignInAnonymously creates a guest identity.
func (s *Service) SignInAnonymously(ctx context.Context) (*User, error) {
	if !s.PasswordEnabled() {
		return nil, ErrConfigMissing
	}
	return s.finish(ctx, "anonymous")(s.password.SignInAnonymously(ctx))
}

// SignInWithToken exchanges an ID token issued by the identity service.
func (s *Service) SignInWithToken(ctx context.Context, token string) (*User, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, fmt.Errorf("%w: token is required", ErrInvalidCredentials)
	}
	if !s.TokenEnabled() {
		return nil, ErrConfigMissing
	}
	return s.finish(ctx, "token")(s.tokens.Verify(ctx, token))
}

// SignOut tells listeners the user left. Sessions are client-held, so there
// is nothing to revoke upstream.
func (s *Service) SignOut(ctx context.Context, user *User) {
	if user != nil {
		s.logger.Info("auth: signed out", zap.String("uid", user.UID))
	}
	s.notify(ctx, nil)
}

func (s *Service) finish(ctx context.Context, op string) func(*User, error) (*User, error) {
	return func(user *User, err error) (*User, error) {
		metrics.AuthAttemptsTotal.WithLabelValues(op, metrics.Outcome(err)).Inc()
		if err != nil {
			var authErr *Error
			if !errors.As(err, &authErr) {
				s.logger.Warn("auth: backend failure", zap.String("op", op), zap.Error(err))
			}
			return nil, err
		}
		s.logger.Info("auth: signed in",
			zap.String("op", op),
			zap.String("uid", user.UID),
			zap.Bool("anonymous", user.Anonymous))
		s.notify(ctx, user)
		return user, nil
	}
}
