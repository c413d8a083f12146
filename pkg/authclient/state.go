package authclient

// Phase enumerates the reconciled authentication phases.
type Phase int

const (
	// PhaseInitializing holds until the first reconciliation pass completes.
	// Consumers must not render protected content during this phase.
	PhaseInitializing Phase = iota
	PhaseUnauthenticated
	PhaseAuthenticated
)

func (p Phase) String() string {
	switch p {
	case PhaseInitializing:
		return "initializing"
	case PhaseUnauthenticated:
		return "unauthenticated"
	case PhaseAuthenticated:
		return "authenticated"
	default:
		return "unknown"
	}
}

// AuthState is the single reconciled authentication state. Subject and
// EmailVerified are only meaningful when Phase is PhaseAuthenticated.
type AuthState struct {
	Phase         Phase
	Subject       string
	EmailVerified bool
}

// User is a snapshot of the provider-owned profile. The subsystem never
// persists these.
type User struct {
	ID            string
	Email         string
	EmailVerified bool
	DisplayName   string
	PhotoURL      string
}

// ProfileUpdate carries optional profile changes; nil fields stay untouched.
type ProfileUpdate struct {
	DisplayName *string
	PhotoURL    *string
}

// AuthResult is the outcome of a provider sign-in or sign-up: the local user
// plus the short-lived identity token to exchange for a session.
type AuthResult struct {
	User    *User
	IDToken string
}
