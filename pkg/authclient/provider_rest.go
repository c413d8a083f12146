package authclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
)

// RESTProviderConfig configures the REST identity provider client.
type RESTProviderConfig struct {
	// Endpoint is the provider REST base URL, e.g.
	// https://identitytoolkit.googleapis.com/v1.
	Endpoint string
	APIKey   string

	// GoogleTokenSource supplies a Google OAuth credential for the federated
	// flow; the interactive part lives behind this hook.
	GoogleTokenSource func(ctx context.Context) (string, error)

	HTTPClient *http.Client
	Logger     *zap.Logger
}

// RESTProvider implements Provider over an identity-toolkit style REST API.
// It owns the locally cached user and identity token, mirroring what a
// provider SDK keeps in browser storage.
type RESTProvider struct {
	endpoint    string
	apiKey      string
	googleToken func(ctx context.Context) (string, error)
	client      *http.Client
	logger      *zap.Logger

	mu        sync.Mutex
	user      *User
	idToken   string
	listeners map[int]func(*User)
	nextID    int
}

// NewRESTProvider builds the provider client.
func NewRESTProvider(cfg RESTProviderConfig) *RESTProvider {
	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RESTProvider{
		endpoint:    strings.TrimSuffix(cfg.Endpoint, "/"),
		apiKey:      cfg.APIKey,
		googleToken: cfg.GoogleTokenSource,
		client:      client,
		logger:      logger,
		listeners:   make(map[int]func(*User)),
	}
}

type signInResponse struct {
	LocalID string `json:"localId"`
	Email   string `json:"email"`
	IDToken string `json:"idToken"`
}

type lookupResponse struct {
	Users []struct {
		LocalID       string `json:"localId"`
		Email         string `json:"email"`
		EmailVerified bool   `json:"emailVerified"`
		DisplayName   string `json:"displayName"`
		PhotoURL      string `json:"photoUrl"`
	} `json:"users"`
}

type idpSignInResponse struct {
	LocalID       string `json:"localId"`
	Email         string `json:"email"`
	EmailVerified bool   `json:"emailVerified"`
	DisplayName   string `json:"displayName"`
	PhotoURL      string `json:"photoUrl"`
	IDToken       string `json:"idToken"`
}

type updateResponse struct {
	DisplayName string `json:"displayName"`
	PhotoURL    string `json:"photoUrl"`
}

// SignInWithPassword authenticates with email/password, then refreshes the
// full profile so EmailVerified is authoritative.
func (p *RESTProvider) SignInWithPassword(ctx context.Context, email, password string) (*AuthResult, error) {
	var res signInResponse
	err := p.call(ctx, "signInWithPassword", map[string]any{
		"email":             email,
		"password":          password,
		"returnSecureToken": true,
	}, &res)
	if err != nil {
		return nil, err
	}

	user, err := p.lookup(ctx, res.IDToken)
	if err != nil {
		return nil, err
	}

	p.setCurrent(user, res.IDToken)
	return &AuthResult{User: user, IDToken: res.IDToken}, nil
}

// SignInWithGoogle exchanges a Google OAuth credential for a provider
// identity token via the federated endpoint.
func (p *RESTProvider) SignInWithGoogle(ctx context.Context) (*AuthResult, error) {
	if p.googleToken == nil {
		return nil, &ProviderError{Code: ProviderUnavailable, Message: "google sign-in not configured"}
	}

	oauthToken, err := p.googleToken(ctx)
	if err != nil {
		return nil, &ProviderError{Code: ProviderUnavailable, Message: "google credential unavailable", Err: err}
	}

	var res idpSignInResponse
	err = p.call(ctx, "signInWithIdp", map[string]any{
		"postBody":            "id_token=" + url.QueryEscape(oauthToken) + "&providerId=google.com",
		"requestUri":          "http://localhost",
		"returnSecureToken":   true,
		"returnIdpCredential": true,
	}, &res)
	if err != nil {
		return nil, err
	}

	user := &User{
		ID:            res.LocalID,
		Email:         res.Email,
		EmailVerified: res.EmailVerified,
		DisplayName:   res.DisplayName,
		PhotoURL:      res.PhotoURL,
	}
	p.setCurrent(user, res.IDToken)
	return &AuthResult{User: user, IDToken: res.IDToken}, nil
}

// SignUp creates a new, unverified account and caches it locally.
func (p *RESTProvider) SignUp(ctx context.Context, email, password string) (*AuthResult, error) {
	var res signInResponse
	err := p.call(ctx, "signUp", map[string]any{
		"email":             email,
		"password":          password,
		"returnSecureToken": true,
	}, &res)
	if err != nil {
		return nil, err
	}

	user := &User{ID: res.LocalID, Email: res.Email}
	p.setCurrent(user, res.IDToken)
	return &AuthResult{User: user, IDToken: res.IDToken}, nil
}

// SendEmailVerification dispatches a verification email to the current user.
func (p *RESTProvider) SendEmailVerification(ctx context.Context) error {
	token := p.currentToken()
	if token == "" {
		return ErrNoCurrentUser
	}
	return p.call(ctx, "sendOobCode", map[string]any{
		"requestType": "VERIFY_EMAIL",
		"idToken":     token,
	}, nil)
}

// SendPasswordReset dispatches a password reset email.
func (p *RESTProvider) SendPasswordReset(ctx context.Context, email string) error {
	return p.call(ctx, "sendOobCode", map[string]any{
		"requestType": "PASSWORD_RESET",
		"email":       email,
	}, nil)
}

// UpdateProfile changes display name or photo on the current user.
func (p *RESTProvider) UpdateProfile(ctx context.Context, update ProfileUpdate) (*User, error) {
	token := p.currentToken()
	if token == "" {
		return nil, ErrNoCurrentUser
	}

	payload := map[string]any{"idToken": token, "returnSecureToken": false}
	if update.DisplayName != nil {
		payload["displayName"] = *update.DisplayName
	}
	if update.PhotoURL != nil {
		payload["photoUrl"] = *update.PhotoURL
	}

	var res updateResponse
	if err := p.call(ctx, "update", payload, &res); err != nil {
		return nil, err
	}

	p.mu.Lock()
	if p.user != nil {
		if update.DisplayName != nil {
			p.user.DisplayName = res.DisplayName
		}
		if update.PhotoURL != nil {
			p.user.PhotoURL = res.PhotoURL
		}
	}
	user := cloneUser(p.user)
	p.mu.Unlock()

	p.notify(user)
	return user, nil
}

// ReloadUser refreshes the cached user from the provider.
func (p *RESTProvider) ReloadUser(ctx context.Context) (*User, error) {
	token := p.currentToken()
	if token == "" {
		return nil, nil
	}

	user, err := p.lookup(ctx, token)
	if err != nil {
		return nil, err
	}

	p.mu.Lock()
	changed := p.user == nil || *p.user != *user
	p.user = cloneUser(user)
	p.mu.Unlock()

	if changed {
		p.notify(user)
	}
	return user, nil
}

// CurrentUser returns the cached local user without a network call.
func (p *RESTProvider) CurrentUser() *User {
	p.mu.Lock()
	defer p.mu.Unlock()
	return cloneUser(p.user)
}

// SignOut clears the local session. The provider API itself holds no
// server-side session for this flow.
func (p *RESTProvider) SignOut(ctx context.Context) error {
	p.mu.Lock()
	p.user = nil
	p.idToken = ""
	p.mu.Unlock()

	p.notify(nil)
	return nil
}

// OnAuthStateChanged registers a local-user listener.
func (p *RESTProvider) OnAuthStateChanged(fn func(*User)) (cancel func()) {
	p.mu.Lock()
	id := p.nextID
	p.nextID++
	p.listeners[id] = fn
	p.mu.Unlock()

	return func() {
		p.mu.Lock()
		delete(p.listeners, id)
		p.mu.Unlock()
	}
}

func (p *RESTProvider) lookup(ctx context.Context, idToken string) (*User, error) {
	var res lookupResponse
	if err := p.call(ctx, "lookup", map[string]any{"idToken": idToken}, &res); err != nil {
		return nil, err
	}
	if len(res.Users) == 0 {
		return nil, &ProviderError{Code: ProviderUserNotFound, Message: "account lookup returned no users"}
	}

	u := res.Users[0]
	return &User{
		ID:            u.LocalID,
		Email:         u.Email,
		EmailVerified: u.EmailVerified,
		DisplayName:   u.DisplayName,
		PhotoURL:      u.PhotoURL,
	}, nil
}

func (p *RESTProvider) setCurrent(user *User, idToken string) {
	p.mu.Lock()
	p.user = cloneUser(user)
	p.idToken = idToken
	p.mu.Unlock()

	p.notify(user)
}

func (p *RESTProvider) currentToken() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.idToken
}

func (p *RESTProvider) notify(user *User) {
	p.mu.Lock()
	listeners := make([]func(*User), 0, len(p.listeners))
	for _, fn := range p.listeners {
		listeners = append(listeners, fn)
	}
	p.mu.Unlock()

	for _, fn := range listeners {
		fn(cloneUser(user))
	}
}

type apiError struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func (p *RESTProvider) call(ctx context.Context, action string, payload any, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	endpoint := fmt.Sprintf("%s/accounts:%s?key=%s", p.endpoint, action, url.QueryEscape(p.apiKey))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return &ProviderError{Code: ProviderUnavailable, Message: "provider unreachable", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		var apiErr apiError
		_ = json.NewDecoder(resp.Body).Decode(&apiErr)
		return mapProviderError(apiErr.Error.Message)
	}

	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func mapProviderError(message string) error {
	code := ProviderUnavailable
	switch {
	case strings.HasPrefix(message, "EMAIL_NOT_FOUND"):
		code = ProviderUserNotFound
	case strings.HasPrefix(message, "INVALID_PASSWORD"),
		strings.HasPrefix(message, "INVALID_LOGIN_CREDENTIALS"):
		code = ProviderInvalidCredentials
	case strings.HasPrefix(message, "USER_DISABLED"):
		code = ProviderUserDisabled
	case strings.HasPrefix(message, "TOO_MANY_ATTEMPTS_TRY_LATER"):
		code = ProviderTooManyAttempts
	case strings.HasPrefix(message, "EMAIL_EXISTS"):
		code = ProviderEmailExists
	}
	return &ProviderError{Code: code, Message: message}
}

func cloneUser(user *User) *User {
	if user == nil {
		return nil
	}
	clone := *user
	return &clone
}
