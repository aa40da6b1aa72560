package auth

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/Clark-Hu/cinepuma/internal/docstore"
)

// Profile document defaults.
const (
	AppName     = "CinePuma App"
	DefaultRole = "standard"
)

// ProfileRecorder writes the profile document of every real sign-in with
// merge, so fields set elsewhere survive. registrationDate is only written
// when the account is new.
type ProfileRecorder struct {
	docs   docstore.Store
	appID  string
	now    func() time.Time
	logger *zap.Logger
}

// NewProfileRecorder returns a recorder writing under appID.
func NewProfileRecorder(docs docstore.Store, appID string, logger *zap.Logger) *ProfileRecorder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ProfileRecorder{docs: docs, appID: appID, now: time.Now, logger: logger}
}

// Record writes the profile of user. Anonymous users have none.
func (p *ProfileRecorder) Record(ctx context.Context, user *User) error {
	if user == nil || user.Anonymous {
		return nil
	}
	now := p.now().UTC()
	data := map[string]any{
		"email":     user.Email,
		"lastLogin": now,
		"appName":   AppName,
		"role":      DefaultRole,
	}
	if user.New {
		data["registrationDate"] = now
	}
	return p.docs.Write(ctx, docstore.ProfileDocument(p.appID, user.UID), data, docstore.WriteOptions{Merge: true})
}

// Listener adapts Record to Service.OnStateChange. Failures are logged; the
// sign-in itself has already succeeded.
func (p *ProfileRecorder) Listener() StateListener {
	return func(ctx context.Context, user *User) {
		if err := p.Record(ctx, user); err != nil {
			p.logger.Error("auth: profile not saved", zap.Error(err))
		}
	}
}
