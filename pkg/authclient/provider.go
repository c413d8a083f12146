package authclient

import "context"

// Provider abstracts the external identity provider. Implementations own
// the local cached user; the coordinator never talks to the provider's wire
// protocol directly.
type Provider interface {
	// SignInWithPassword authenticates with email and password and returns
	// the user plus a fresh identity token.
	SignInWithPassword(ctx context.Context, email, password string) (*AuthResult, error)

	// SignInWithGoogle runs the provider's federated Google flow.
	SignInWithGoogle(ctx context.Context) (*AuthResult, error)

	// SignUp creates a new account. The account starts unverified.
	SignUp(ctx context.Context, email, password string) (*AuthResult, error)

	// SendEmailVerification dispatches a verification email to the current
	// user. Fails with ErrNoCurrentUser when nobody is signed in.
	SendEmailVerification(ctx context.Context) error

	// SendPasswordReset dispatches a password reset email.
	SendPasswordReset(ctx context.Context, email string) error

	// UpdateProfile changes the current user's display name or photo.
	UpdateProfile(ctx context.Context, update ProfileUpdate) (*User, error)

	// ReloadUser refreshes the cached user from the provider and returns the
	// fresh snapshot, or nil when nobody is signed in.
	ReloadUser(ctx context.Context) (*User, error)

	// CurrentUser returns the cached local user without a network call.
	CurrentUser() *User

	// SignOut clears the provider's local session.
	SignOut(ctx context.Context) error

	// OnAuthStateChanged registers a listener invoked with the new local
	// user (or nil) whenever the provider's cached session changes. The
	// returned function cancels the subscription.
	OnAuthStateChanged(fn func(*User)) (cancel func())
}
