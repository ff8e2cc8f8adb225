package ledger

import "errors"

// Error classes. Implementations wrap them together with the cause, e.g.
// fmt.Errorf("%w: startFlashloan: %w", ErrSubmission, err), so callers can
// test with errors.Is and still print the underlying failure.
var (
	// ErrSubmission: request malformed or rejected before inclusion.
	ErrSubmission = errors.New("submission error")
	// ErrExecution: on-chain revert, confirmation timeout or failed wait.
	ErrExecution = errors.New("execution error")
	// ErrRead: a stats/query call could not complete.
	ErrRead = errors.New("read error")
	// ErrConnectivity: start-up self-test failed.
	ErrConnectivity = errors.New("connectivity error")
)

// Classify names the error class of err, or "unknown".
func Classify(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrSubmission):
		return "submission"
	case errors.Is(err, ErrExecution):
		return "execution"
	case errors.Is(err, ErrRead):
		return "read"
	case errors.Is(err, ErrConnectivity):
		return "connectivity"
	default:
		return "unknown"
	}
}
