package authclient

// Decision tells a route consumer what to do for the current AuthState.
type Decision int

const (
	// DecisionLoading means the state is not settled yet; show a loading
	// indicator and never redirect.
	DecisionLoading Decision = iota
	// DecisionRender means the guarded content may be shown.
	DecisionRender
	// DecisionRedirect means navigate to GuardResult.RedirectTo.
	DecisionRedirect
)

// GuardResult is the outcome of evaluating a guard.
type GuardResult struct {
	Decision   Decision
	RedirectTo string
}

// Default navigation targets for the two guards.
const (
	DefaultSignInPath = "/signin"
	DefaultHomePath   = "/dashboard"
)

// PrivateRoute guards protected content. Initializing is non-terminal: it
// renders a loading indicator rather than redirecting, which prevents a
// flash-redirect before the server confirms the session.
func PrivateRoute(state AuthState) GuardResult {
	switch state.Phase {
	case PhaseInitializing:
		return GuardResult{Decision: DecisionLoading}
	case PhaseAuthenticated:
		return GuardResult{Decision: DecisionRender}
	default:
		return GuardResult{Decision: DecisionRedirect, RedirectTo: DefaultSignInPath}
	}
}

// PublicRoute guards sign-in/sign-up/landing content. Only a settled
// Authenticated state redirects away.
func PublicRoute(state AuthState) GuardResult {
	if state.Phase == PhaseAuthenticated {
		return GuardResult{Decision: DecisionRedirect, RedirectTo: DefaultHomePath}
	}
	return GuardResult{Decision: DecisionRender}
}
