package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/Clark-Hu/cinepuma/internal/domain"
)

const maxResponseBody = 1 << 20

// IdentityToolkit calls the Identity Toolkit REST API with a web API key.
type IdentityToolkit struct {
	baseURL *url.URL
	apiKey  string
	client  *http.Client
	logger  *zap.Logger
}

// NewIdentityToolkit constructs a client for baseURL
// (https://identitytoolkit.googleapis.com in production).
func NewIdentityToolkit(baseURL, apiKey string, timeout time.Duration, logger *zap.Logger) (*IdentityToolkit, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if strings.TrimSpace(apiKey) == "" {
		return nil, ErrConfigMissing
	}
	parsed, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse identity toolkit url: %w", err)
	}
	return &IdentityToolkit{
		baseURL: parsed,
		apiKey:  apiKey,
		client: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				Proxy: http.ProxyFromEnvironment,
				DialContext: (&net.Dialer{
					Timeout:   timeout,
					KeepAlive: 30 * time.Second,
				}).DialContext,
				TLSHandshakeTimeout:   timeout,
				ResponseHeaderTimeout: timeout,
			},
		},
		logger: logger,
	}, nil
}

type accountRequest struct {
	Email             string `json:"email,omitempty"`
	Password          string `json:"password,omitempty"`
	ReturnSecureToken bool   `json:"returnSecureToken"`
}

type accountResponse struct {
	LocalID string `json:"localId"`
	Email   string `json:"email"`
	IDToken string `json:"idToken"`
}

type errorResponse struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// SignIn checks an email and password.
func (c *IdentityToolkit) SignIn(ctx context.Context, email, password string) (*User, error) {
	resp, err := c.call(ctx, "signInWithPassword", accountRequest{Email: email, Password: password, ReturnSecureToken: true})
	if err != nil {
		return nil, err
	}
	return &User{UID: resp.LocalID, Email: resp.Email}, nil
}

// SignUp creates an email and password account.
func (c *IdentityToolkit) SignUp(ctx context.Context, email, password string) (*User, error) {
	resp, err := c.call(ctx, "signUp", accountRequest{Email: email, Password: password, ReturnSecureToken: true})
	if err != nil {
		return nil, err
	}
	return &User{UID: resp.LocalID, Email: resp.Email, New: true}, nil
}

// SignInAnonymously creates a guest account.
func (c *IdentityToolkit) SignInAnonymously(ctx context.Context) (*User, error) {
	resp, err := c.call(ctx, "signUp", accountRequest{ReturnSecureToken: true})
	if err != nil {
		return nil, err
	}
	return &User{UID: resp.LocalID, Anonymous: true, New: true}, nil
}

func (c *IdentityToolkit) call(ctx context.Context, method string, body accountRequest) (*accountResponse, error) {
	rel := &url.URL{Path: c.baseURL.Path + "/v1/accounts:" + method}
	q := rel.Query()
	q.Set("key", c.apiKey)
	rel.RawQuery = q.Encode()
	endpoint := c.baseURL.ResolveReference(rel)

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("encode %s request: %w", method, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint.String(), bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("auth: %s: %w: %w", method, domain.ErrNetworkFailure, err)
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		return nil, fmt.Errorf("auth: %s: read response: %w: %w", method, domain.ErrNetworkFailure, err)
	}

	if resp.StatusCode/100 != 2 {
		var e errorResponse
		msg := ""
		if json.Unmarshal(raw, &e) == nil {
			msg = e.Error.Message
		}
		if msg == "" {
			msg = http.StatusText(resp.StatusCode)
		}
		c.logger.Info("auth: provider rejected request",
			zap.String("method", method),
			zap.Int("status", resp.StatusCode),
			zap.String("message", msg))
		return nil, &Error{Op: method, Status: resp.StatusCode, Message: msg}
	}

	var out accountResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("decode %s response: %w", method, err)
	}
	if out.LocalID == "" {
		return nil, &Error{Op: method, Status: resp.StatusCode, Message: "missing localId"}
	}
	return &out, nil
}
