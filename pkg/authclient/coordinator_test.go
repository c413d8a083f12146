package authclient_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spec-kit/session-service/pkg/authclient"
)

type stubProvider struct {
	mu        sync.Mutex
	user      *authclient.User
	idToken   string
	signInErr error
	signUpErr error

	verificationSends int
	profileUpdates    []authclient.ProfileUpdate
	resetEmails       []string
	signOutErr        error
	reloadQueue       []*authclient.User
	callLog           *[]string

	listeners []func(*authclient.User)
}

func (p *stubProvider) log(entry string) {
	if p.callLog != nil {
		p.mu.Lock()
		*p.callLog = append(*p.callLog, entry)
		p.mu.Unlock()
	}
}

func (p *stubProvider) SignInWithPassword(ctx context.Context, email, password string) (*authclient.AuthResult, error) {
	if p.signInErr != nil {
		return nil, p.signInErr
	}
	return &authclient.AuthResult{User: p.user, IDToken: p.idToken}, nil
}

func (p *stubProvider) SignInWithGoogle(ctx context.Context) (*authclient.AuthResult, error) {
	if p.signInErr != nil {
		return nil, p.signInErr
	}
	return &authclient.AuthResult{User: p.user, IDToken: p.idToken}, nil
}

func (p *stubProvider) SignUp(ctx context.Context, email, password string) (*authclient.AuthResult, error) {
	if p.signUpErr != nil {
		return nil, p.signUpErr
	}
	p.log("signup")
	user := &authclient.User{ID: "new-user", Email: email}
	p.mu.Lock()
	p.user = user
	p.idToken = "signup-token"
	p.mu.Unlock()
	return &authclient.AuthResult{User: user, IDToken: "signup-token"}, nil
}

func (p *stubProvider) SendEmailVerification(ctx context.Context) error {
	p.mu.Lock()
	p.verificationSends++
	p.mu.Unlock()
	p.log("send_verification")
	return nil
}

func (p *stubProvider) SendPasswordReset(ctx context.Context, email string) error {
	p.mu.Lock()
	p.resetEmails = append(p.resetEmails, email)
	p.mu.Unlock()
	return nil
}

func (p *stubProvider) UpdateProfile(ctx context.Context, update authclient.ProfileUpdate) (*authclient.User, error) {
	p.mu.Lock()
	p.profileUpdates = append(p.profileUpdates, update)
	user := p.user
	p.mu.Unlock()
	p.log("update_profile")
	return user, nil
}

func (p *stubProvider) ReloadUser(ctx context.Context) (*authclient.User, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.reloadQueue) == 0 {
		return p.user, nil
	}
	user := p.reloadQueue[0]
	p.reloadQueue = p.reloadQueue[1:]
	return user, nil
}

func (p *stubProvider) CurrentUser() *authclient.User {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.user
}

func (p *stubProvider) SignOut(ctx context.Context) error {
	if p.signOutErr != nil {
		return p.signOutErr
	}
	p.log("provider_signout")
	p.mu.Lock()
	p.user = nil
	p.idToken = ""
	p.mu.Unlock()
	return nil
}

func (p *stubProvider) OnAuthStateChanged(fn func(*authclient.User)) (cancel func()) {
	p.mu.Lock()
	p.listeners = append(p.listeners, fn)
	p.mu.Unlock()
	return func() {}
}

func (p *stubProvider) fire(user *authclient.User) {
	p.mu.Lock()
	p.user = user
	listeners := append([]func(*authclient.User){}, p.listeners...)
	p.mu.Unlock()
	for _, fn := range listeners {
		fn(user)
	}
}

type stubSessions struct {
	mu          sync.Mutex
	createCalls []string
	createErr   error
	verifyValid bool
	verifyErr   error
	destroyErr  error
	callLog     *[]string
}

func (s *stubSessions) log(entry string) {
	if s.callLog != nil {
		s.mu.Lock()
		*s.callLog = append(*s.callLog, entry)
		s.mu.Unlock()
	}
}

func (s *stubSessions) CreateSession(ctx context.Context, idToken string) error {
	s.mu.Lock()
	s.createCalls = append(s.createCalls, idToken)
	s.mu.Unlock()
	return s.createErr
}

func (s *stubSessions) VerifySession(ctx context.Context) (bool, error) {
	return s.verifyValid, s.verifyErr
}

func (s *stubSessions) DestroySession(ctx context.Context) error {
	if s.destroyErr != nil {
		return s.destroyErr
	}
	s.log("destroy_session")
	return nil
}

func (s *stubSessions) createCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.createCalls)
}

func newCoordinator(provider *stubProvider, sessions authclient.SessionAPI, opts ...authclient.CoordinatorOption) *authclient.Coordinator {
	return authclient.NewCoordinator(provider, sessions, zap.NewNop(), opts...)
}

func TestState_InitializingBeforeStart(t *testing.T) {
	c := newCoordinator(&stubProvider{}, &stubSessions{})
	assert.Equal(t, authclient.PhaseInitializing, c.State().Phase)
}

func TestStart_NoProviderUser(t *testing.T) {
	c := newCoordinator(&stubProvider{}, &stubSessions{verifyErr: errors.New("must not be called")})
	c.Start(context.Background())
	defer c.Close()

	assert.Equal(t, authclient.PhaseUnauthenticated, c.State().Phase)
}

func TestStart_BothSignalsAgree(t *testing.T) {
	provider := &stubProvider{user: &authclient.User{ID: "user-1", EmailVerified: true}}
	c := newCoordinator(provider, &stubSessions{verifyValid: true})
	c.Start(context.Background())
	defer c.Close()

	state := c.State()
	assert.Equal(t, authclient.PhaseAuthenticated, state.Phase)
	assert.Equal(t, "user-1", state.Subject)
	assert.True(t, state.EmailVerified)
}

func TestStart_StaleProviderUserFailsClosed(t *testing.T) {
	// the provider still reports a cached user, but the server session is gone
	provider := &stubProvider{user: &authclient.User{ID: "user-1", EmailVerified: true}}
	c := newCoordinator(provider, &stubSessions{verifyValid: false})
	c.Start(context.Background())
	defer c.Close()

	assert.Equal(t, authclient.PhaseUnauthenticated, c.State().Phase)
}

func TestStart_VerifyTransportErrorFailsClosed(t *testing.T) {
	provider := &stubProvider{user: &authclient.User{ID: "user-1"}}
	c := newCoordinator(provider, &stubSessions{verifyErr: errors.New("network down")})
	c.Start(context.Background())
	defer c.Close()

	assert.Equal(t, authclient.PhaseUnauthenticated, c.State().Phase)
}

func TestProviderEvent_DrivesReconciliation(t *testing.T) {
	provider := &stubProvider{}
	sessions := &stubSessions{verifyValid: true}
	c := newCoordinator(provider, sessions)
	c.Start(context.Background())
	defer c.Close()

	require.Equal(t, authclient.PhaseUnauthenticated, c.State().Phase)

	provider.fire(&authclient.User{ID: "user-2", EmailVerified: true})
	assert.Equal(t, authclient.PhaseAuthenticated, c.State().Phase)

	provider.fire(nil)
	assert.Equal(t, authclient.PhaseUnauthenticated, c.State().Phase)
}

func TestSignInWithEmail_Success(t *testing.T) {
	provider := &stubProvider{
		user:    &authclient.User{ID: "user-1", Email: "a@x.com", EmailVerified: true},
		idToken: "fresh-id-token",
	}
	sessions := &stubSessions{}
	c := newCoordinator(provider, sessions)

	require.NoError(t, c.SignInWithEmail(context.Background(), "a@x.com", "secret1"))

	assert.Equal(t, []string{"fresh-id-token"}, sessions.createCalls)
	state := c.State()
	assert.Equal(t, authclient.PhaseAuthenticated, state.Phase)
	assert.Equal(t, "user-1", state.Subject)
}

func TestSignInWithEmail_UnverifiedEmail(t *testing.T) {
	provider := &stubProvider{
		user:    &authclient.User{ID: "user-1", Email: "a@x.com", EmailVerified: false},
		idToken: "fresh-id-token",
	}
	sessions := &stubSessions{}
	c := newCoordinator(provider, sessions)

	err := c.SignInWithEmail(context.Background(), "a@x.com", "secret1")
	require.ErrorIs(t, err, authclient.ErrEmailNotVerified)

	assert.Zero(t, sessions.createCount(), "no session call may happen for unverified accounts")
	assert.Equal(t, authclient.PhaseUnauthenticated, c.State().Phase)
}

func TestSignInWithEmail_ProviderError(t *testing.T) {
	provider := &stubProvider{
		signInErr: &authclient.ProviderError{Code: authclient.ProviderInvalidCredentials, Message: "INVALID_PASSWORD"},
	}
	sessions := &stubSessions{}
	c := newCoordinator(provider, sessions)

	err := c.SignInWithEmail(context.Background(), "a@x.com", "wrong")
	require.Error(t, err)
	assert.Equal(t, authclient.ProviderInvalidCredentials, authclient.ProviderCode(err))
	assert.Zero(t, sessions.createCount())
	assert.Equal(t, authclient.PhaseUnauthenticated, c.State().Phase)
}

func TestSignInWithEmail_SessionRejected(t *testing.T) {
	provider := &stubProvider{
		user:    &authclient.User{ID: "user-1", EmailVerified: true},
		idToken: "fresh-id-token",
	}
	sessions := &stubSessions{createErr: authclient.ErrSessionRejected}
	c := newCoordinator(provider, sessions)

	err := c.SignInWithEmail(context.Background(), "a@x.com", "secret1")
	require.ErrorIs(t, err, authclient.ErrSessionRejected)
	assert.Equal(t, authclient.PhaseUnauthenticated, c.State().Phase)
}

func TestSignInWithGoogle_NoVerificationGate(t *testing.T) {
	provider := &stubProvider{
		user:    &authclient.User{ID: "user-g", EmailVerified: false},
		idToken: "google-id-token",
	}
	sessions := &stubSessions{}
	c := newCoordinator(provider, sessions)

	require.NoError(t, c.SignInWithGoogle(context.Background()))
	assert.Equal(t, []string{"google-id-token"}, sessions.createCalls)
	assert.Equal(t, authclient.PhaseAuthenticated, c.State().Phase)
}

func TestSignUpWithEmail_NoSessionNoStateChange(t *testing.T) {
	provider := &stubProvider{}
	sessions := &stubSessions{}
	c := newCoordinator(provider, sessions)
	c.Start(context.Background())
	defer c.Close()

	require.NoError(t, c.SignUpWithEmail(context.Background(), "a@x.com", "secret1", "Ann"))

	assert.Zero(t, sessions.createCount(), "sign-up must not create a session")
	assert.Equal(t, authclient.PhaseUnauthenticated, c.State().Phase)
	assert.Equal(t, 1, provider.verificationSends)
	require.Len(t, provider.profileUpdates, 1)
	require.NotNil(t, provider.profileUpdates[0].DisplayName)
	assert.Equal(t, "Ann", *provider.profileUpdates[0].DisplayName)
}

func TestSignUpWithEmail_WithoutDisplayName(t *testing.T) {
	provider := &stubProvider{}
	c := newCoordinator(provider, &stubSessions{})

	require.NoError(t, c.SignUpWithEmail(context.Background(), "a@x.com", "secret1", ""))
	assert.Empty(t, provider.profileUpdates)
	assert.Equal(t, 1, provider.verificationSends)
}

func TestLogout_Order(t *testing.T) {
	var calls []string
	provider := &stubProvider{user: &authclient.User{ID: "user-1"}, callLog: &calls}
	sessions := &stubSessions{callLog: &calls}
	c := newCoordinator(provider, sessions)

	require.NoError(t, c.Logout(context.Background()))

	assert.Equal(t, []string{"provider_signout", "destroy_session"}, calls)
	assert.Equal(t, authclient.PhaseUnauthenticated, c.State().Phase)
}

func TestLogout_ProviderFailureSkipsDestroy(t *testing.T) {
	var calls []string
	provider := &stubProvider{
		user:       &authclient.User{ID: "user-1"},
		signOutErr: errors.New("popup closed"),
		callLog:    &calls,
	}
	sessions := &stubSessions{callLog: &calls}
	c := newCoordinator(provider, sessions)

	err := c.Logout(context.Background())
	require.Error(t, err)
	assert.Empty(t, calls, "session destroy must wait for a logout retry")

	// re-invoking after the provider recovers runs the full sequence
	provider.signOutErr = nil
	require.NoError(t, c.Logout(context.Background()))
	assert.Equal(t, []string{"provider_signout", "destroy_session"}, calls)
}

func TestResetPassword(t *testing.T) {
	provider := &stubProvider{}
	c := newCoordinator(provider, &stubSessions{})

	require.NoError(t, c.ResetPassword(context.Background(), "a@x.com"))
	assert.Equal(t, []string{"a@x.com"}, provider.resetEmails)
}

// gatedSessions blocks each VerifySession call until the test releases it,
// so reconciliation ordering can be controlled deterministically.
type gatedSessions struct {
	calls chan verifyCall
}

type verifyCall struct {
	reply chan verifyReply
}

type verifyReply struct {
	valid bool
	err   error
}

func (g *gatedSessions) CreateSession(ctx context.Context, idToken string) error { return nil }

func (g *gatedSessions) VerifySession(ctx context.Context) (bool, error) {
	call := verifyCall{reply: make(chan verifyReply)}
	g.calls <- call
	reply := <-call.reply
	return reply.valid, reply.err
}

func (g *gatedSessions) DestroySession(ctx context.Context) error { return nil }

func TestReconcile_SupersededPassIsDiscarded(t *testing.T) {
	provider := &stubProvider{}
	sessions := &gatedSessions{calls: make(chan verifyCall, 2)}
	c := newCoordinator(provider, sessions)

	states := make(chan authclient.AuthState, 8)
	defer c.Subscribe(func(s authclient.AuthState) { states <- s })()

	c.Start(context.Background())
	defer c.Close()
	require.Equal(t, authclient.PhaseUnauthenticated, (<-states).Phase)

	user := &authclient.User{ID: "user-1", EmailVerified: true}

	go provider.fire(user)
	first := <-sessions.calls

	go provider.fire(user)
	second := <-sessions.calls

	// the later pass completes first and must win
	second.reply <- verifyReply{valid: true}
	require.Equal(t, authclient.PhaseAuthenticated, (<-states).Phase)

	// the superseded pass finishes afterwards with a stale "invalid"
	first.reply <- verifyReply{valid: false}

	// no further state notification may arrive, and the state must hold
	select {
	case state := <-states:
		t.Fatalf("superseded pass overwrote state: %+v", state)
	case <-time.After(50 * time.Millisecond):
	}
	assert.Equal(t, authclient.PhaseAuthenticated, c.State().Phase)
}

func TestSubscribe_CancelStopsNotifications(t *testing.T) {
	provider := &stubProvider{}
	sessions := &stubSessions{}
	c := newCoordinator(provider, sessions)

	var notifications int
	cancel := c.Subscribe(func(authclient.AuthState) { notifications++ })

	c.Start(context.Background())
	defer c.Close()
	require.Equal(t, 1, notifications)

	cancel()
	provider.fire(&authclient.User{ID: "user-1"})
	assert.Equal(t, 1, notifications)
}
