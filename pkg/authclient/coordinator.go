package authclient

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Coordinator reconciles the identity provider's local user signal with the
// server's session-validity signal into a single AuthState. It is the only
// writer of that state; everything else reads.
type Coordinator struct {
	provider Provider
	sessions SessionAPI
	logger   *zap.Logger

	mu          sync.Mutex
	state       AuthState
	seq         uint64
	listeners   map[int]func(AuthState)
	nextID      int
	unsubscribe func()

	pollInterval time.Duration
	pollCancel   context.CancelFunc
	pollDone     chan struct{}
}

// CoordinatorOption customizes coordinator construction.
type CoordinatorOption func(*Coordinator)

// WithPollInterval overrides the email-verification poll interval
// (useful for tests).
func WithPollInterval(interval time.Duration) CoordinatorOption {
	return func(c *Coordinator) {
		if interval > 0 {
			c.pollInterval = interval
		}
	}
}

const defaultPollInterval = 5 * time.Second

// NewCoordinator builds a coordinator in the Initializing phase.
func NewCoordinator(provider Provider, sessions SessionAPI, logger *zap.Logger, opts ...CoordinatorOption) *Coordinator {
	c := &Coordinator{
		provider:     provider,
		sessions:     sessions,
		logger:       logger,
		state:        AuthState{Phase: PhaseInitializing},
		listeners:    make(map[int]func(AuthState)),
		pollInterval: defaultPollInterval,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Start subscribes to provider state changes and runs the initial
// reconciliation. Initializing ends only once that pass completes.
func (c *Coordinator) Start(ctx context.Context) {
	c.mu.Lock()
	if c.unsubscribe == nil {
		c.unsubscribe = c.provider.OnAuthStateChanged(func(user *User) {
			c.reconcile(ctx, user)
		})
	}
	c.mu.Unlock()

	c.reconcile(ctx, c.provider.CurrentUser())
}

// Close tears down the provider subscription and any running poll.
func (c *Coordinator) Close() {
	c.StopVerificationPoll()

	c.mu.Lock()
	unsubscribe := c.unsubscribe
	c.unsubscribe = nil
	c.mu.Unlock()

	if unsubscribe != nil {
		unsubscribe()
	}
}

// State returns the current reconciled state.
func (c *Coordinator) State() AuthState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Subscribe registers a state listener. The returned function cancels the
// subscription.
func (c *Coordinator) Subscribe(fn func(AuthState)) (cancel func()) {
	c.mu.Lock()
	id := c.nextID
	c.nextID++
	c.listeners[id] = fn
	c.mu.Unlock()

	return func() {
		c.mu.Lock()
		delete(c.listeners, id)
		c.mu.Unlock()
	}
}

// reconcile combines the provider signal with the server's session check.
// Authenticated requires both; any disagreement fails closed to
// Unauthenticated. Passes are sequenced so a superseded in-flight
// verification never overwrites a later result.
func (c *Coordinator) reconcile(ctx context.Context, user *User) {
	c.mu.Lock()
	c.seq++
	seq := c.seq
	c.mu.Unlock()

	if user == nil {
		c.storeState(seq, AuthState{Phase: PhaseUnauthenticated})
		return
	}

	valid, err := c.sessions.VerifySession(ctx)
	if err != nil {
		c.logger.Warn("session verification failed", zap.Error(err))
		valid = false
	}
	if !valid {
		// the provider still reports a local user, but the server no longer
		// backs it: stale local trust
		c.storeState(seq, AuthState{Phase: PhaseUnauthenticated})
		return
	}

	c.storeState(seq, AuthState{
		Phase:         PhaseAuthenticated,
		Subject:       user.ID,
		EmailVerified: user.EmailVerified,
	})
}

// storeState commits a reconciliation result unless a later pass or action
// has started since.
func (c *Coordinator) storeState(seq uint64, state AuthState) {
	c.mu.Lock()
	if seq != c.seq {
		c.mu.Unlock()
		return
	}
	c.state = state
	listeners := c.snapshotListenersLocked()
	c.mu.Unlock()

	for _, fn := range listeners {
		fn(state)
	}
}

// setState commits a state decided by a direct action, superseding any
// in-flight reconciliation.
func (c *Coordinator) setState(state AuthState) {
	c.mu.Lock()
	c.seq++
	c.state = state
	listeners := c.snapshotListenersLocked()
	c.mu.Unlock()

	for _, fn := range listeners {
		fn(state)
	}
}

func (c *Coordinator) snapshotListenersLocked() []func(AuthState) {
	listeners := make([]func(AuthState), 0, len(c.listeners))
	for _, fn := range c.listeners {
		listeners = append(listeners, fn)
	}
	return listeners
}

// SignInWithEmail authenticates with email/password. Unverified accounts are
// rejected before any session is created.
func (c *Coordinator) SignInWithEmail(ctx context.Context, email, password string) error {
	result, err := c.provider.SignInWithPassword(ctx, email, password)
	if err != nil {
		c.setState(AuthState{Phase: PhaseUnauthenticated})
		return err
	}

	if !result.User.EmailVerified {
		c.setState(AuthState{Phase: PhaseUnauthenticated})
		return ErrEmailNotVerified
	}

	return c.establishSession(ctx, result)
}

// SignInWithGoogle runs the federated Google flow.
func (c *Coordinator) SignInWithGoogle(ctx context.Context) error {
	result, err := c.provider.SignInWithGoogle(ctx)
	if err != nil {
		c.setState(AuthState{Phase: PhaseUnauthenticated})
		return err
	}

	return c.establishSession(ctx, result)
}

func (c *Coordinator) establishSession(ctx context.Context, result *AuthResult) error {
	if err := c.sessions.CreateSession(ctx, result.IDToken); err != nil {
		c.setState(AuthState{Phase: PhaseUnauthenticated})
		return err
	}

	c.setState(AuthState{
		Phase:         PhaseAuthenticated,
		Subject:       result.User.ID,
		EmailVerified: result.User.EmailVerified,
	})
	return nil
}

// SignUpWithEmail creates an account, optionally sets a display name, and
// sends a verification email. It deliberately creates no session and leaves
// AuthState alone; the new account must verify first.
func (c *Coordinator) SignUpWithEmail(ctx context.Context, email, password, displayName string) error {
	if _, err := c.provider.SignUp(ctx, email, password); err != nil {
		return err
	}

	if displayName != "" {
		if _, err := c.provider.UpdateProfile(ctx, ProfileUpdate{DisplayName: &displayName}); err != nil {
			return err
		}
	}

	return c.provider.SendEmailVerification(ctx)
}

// Logout signs out of the provider, destroys the server session, then flips
// the state, in that order. A provider failure surfaces immediately; the
// session destroy is only retried by calling Logout again.
func (c *Coordinator) Logout(ctx context.Context) error {
	if err := c.provider.SignOut(ctx); err != nil {
		return err
	}
	if err := c.sessions.DestroySession(ctx); err != nil {
		return err
	}
	c.setState(AuthState{Phase: PhaseUnauthenticated})
	return nil
}

// SendVerificationEmail re-sends the verification email for the current user.
func (c *Coordinator) SendVerificationEmail(ctx context.Context) error {
	return c.provider.SendEmailVerification(ctx)
}

// ResetPassword dispatches a password reset email.
func (c *Coordinator) ResetPassword(ctx context.Context, email string) error {
	return c.provider.SendPasswordReset(ctx, email)
}

// UpdateUserProfile updates the provider-owned profile of the current user.
func (c *Coordinator) UpdateUserProfile(ctx context.Context, update ProfileUpdate) (*User, error) {
	return c.provider.UpdateProfile(ctx, update)
}
