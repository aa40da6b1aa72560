// Package auth delegates sign-in to the external identity service and keeps
// the user's profile document up to date.
package auth

import (
	"context"
	"errors"
	"fmt"

	"github.com/Clark-Hu/cinepuma/internal/domain"
)

var (
	// ErrConfigMissing means no identity backend is configured for the operation.
	ErrConfigMissing = fmt.Errorf("auth: %w", domain.ErrConfigMissing)
	// ErrInvalidCredentials is returned when the form fails local validation.
	ErrInvalidCredentials = fmt.Errorf("auth: %w", domain.ErrValidation)
)

// User is the signed-in identity.
type User struct {
	UID       string
	Email     string
	Anonymous bool

	// New is set when the account was created by this call.
	New bool
}

// Error is a rejection from the identity service. Message is the provider's
// own text and is shown to the user unchanged.
type Error struct {
	Op      string
	Status  int
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("auth: %s: %s", e.Op, e.Message)
}

// Unwrap makes every provider rejection an authentication failure.
func (e *Error) Unwrap() error {
	return domain.ErrAuthFailure
}

// ProviderMessage returns the provider text of err, or "" if err did not come
// from the identity service.
func ProviderMessage(err error) string {
	var authErr *Error
	if errors.As(err, &authErr) {
		return authErr.Message
	}
	return ""
}

// Provider is the full sign-in surface used by the HTTP layer.
type Provider interface {
	SignIn(ctx context.Context, email, password string) (*User, error)
	SignUp(ctx context.Context, email, password string) (*User, error)
	SignInAnonymously(ctx context.Context) (*User, error)
	SignInWithToken(ctx context.Context, token string) (*User, error)
}

// PasswordBackend performs password and anonymous flows. *IdentityToolkit
// implements it.
type PasswordBackend interface {
	SignIn(ctx context.Context, email, password string) (*User, error)
	SignUp(ctx context.Context, email, password string) (*User, error)
	SignInAnonymously(ctx context.Context) (*User, error)
}

// TokenVerifier turns an ID token into a user. *FirebaseVerifier implements it.
type TokenVerifier interface {
	Verify(ctx context.Context, token string) (*User, error)
}
