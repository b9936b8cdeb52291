package browser

import "fmt"

// Phase is the session lifecycle state. Expired can transition back to
// AwaitingLogin through CheckAuth; Error requires an explicit Start.
type Phase string

const (
	PhaseUninitialized Phase = "uninitialized"
	PhaseLaunching     Phase = "launching"
	PhaseAwaitingLogin Phase = "awaiting_login"
	PhaseActive        Phase = "active"
	PhaseExpired       Phase = "expired"
	PhaseBlocked       Phase = "blocked"
	PhaseError         Phase = "error"
)

// AuthRequiredError means navigation landed on a login surface. The
// caller recovers by re-running the login/CheckAuth cycle.
type AuthRequiredError struct {
	Phase Phase
	URL   string
}

func (e *AuthRequiredError) Error() string {
	return fmt.Sprintf("authentication required (phase=%s, url=%s)", e.Phase, e.URL)
}

// BlockedError means an anti-bot challenge was detected and did not
// resolve within the bounded wait. Recovery needs human confirmation
// through ConfirmChallenge.
type BlockedError struct {
	Phase     Phase
	Challenge string
}

func (e *BlockedError) Error() string {
	return fmt.Sprintf("blocked by %s challenge (phase=%s)", e.Challenge, e.Phase)
}

// LaunchError means the browser control surface failed to start;
// unrecoverable without external intervention.
type LaunchError struct {
	Phase Phase
	Err   error
}

func (e *LaunchError) Error() string {
	return fmt.Sprintf("browser launch failed (phase=%s): %v", e.Phase, e.Err)
}

func (e *LaunchError) Unwrap() error { return e.Err }

// InvalidPhaseError means an operation was called from a phase it is
// not valid in (e.g. Navigate before authentication).
type InvalidPhaseError struct {
	Phase Phase
	Op    string
}

func (e *InvalidPhaseError) Error() string {
	return fmt.Sprintf("%s is not valid in phase %s", e.Op, e.Phase)
}
