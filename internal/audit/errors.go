package audit

import (
	"errors"
	"fmt"
)

// ErrInvalidURL is returned before any browser work when the target URL is
// not an absolute http(s) URL.
var ErrInvalidURL = errors.New("target must be an absolute http or https URL")

// InsufficientCreditsError aborts a run when the authenticated caller cannot
// cover the audit cost.
type InsufficientCreditsError struct {
	Balance  int
	Required int
}

func (e *InsufficientCreditsError) Error() string {
	return fmt.Sprintf("insufficient credits: have %d, need %d", e.Balance, e.Required)
}

// TrialLimitExceededError aborts a run when an anonymous caller has used up
// the free trial allowance.
type TrialLimitExceededError struct {
	Message string
}

func (e *TrialLimitExceededError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return "free trial limit exceeded"
}

// NavigationError is fatal: both the network-idle and the fallback
// dom-content-loaded navigation attempts failed, so there is no page to audit.
type NavigationError struct {
	URL string
	Err error
}

func (e *NavigationError) Error() string {
	return fmt.Sprintf("navigation to %s failed: %v", e.URL, e.Err)
}

func (e *NavigationError) Unwrap() error { return e.Err }
