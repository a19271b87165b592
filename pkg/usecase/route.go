package usecase

// Page paths served by the front end.
const (
	LandingPath    = "/"
	OnboardingPath = "/onboarding"
	EmailSetupPath = "/email-setup"
	DashboardPath  = "/dashboard"
	SettingsPath   = "/settings"
)

// Access is the precondition of a page.
type Access int

const (
	// AccessPublic pages render for everyone.
	AccessPublic Access = iota
	// AccessGuest pages send authenticated users to their destination.
	AccessGuest
	// AccessAuthenticated pages require a signed-in user.
	AccessAuthenticated
	// AccessConnected pages also require a Slack connection.
	AccessConnected
)

// Destination is the screen a user in state belongs on.
func Destination(state AuthState) string {
	switch state {
	case AuthComplete:
		return DashboardPath
	case AuthIncomplete:
		return OnboardingPath
	default:
		return LoginPath
	}
}

// Guard decides whether a page with the given access may render for state.
// It returns the redirect target when it may not. Loading never reaches
// here because Resolve completes before screen selection.
func Guard(access Access, state AuthState) (string, bool) {
	switch access {
	case AccessGuest:
		if state.Authenticated() {
			return Destination(state), false
		}
	case AccessAuthenticated:
		if !state.Authenticated() {
			return LoginPath, false
		}
	case AccessConnected:
		if !state.Authenticated() {
			return LoginPath, false
		}
		if state != AuthComplete {
			return OnboardingPath, false
		}
	}
	return "", true
}
