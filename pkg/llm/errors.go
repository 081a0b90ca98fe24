package llm

import (
	"errors"
	"fmt"
)

// Sentinel classes for dispatch outcome mapping. Providers wrap their raw
// failures in one of these so callers never inspect vendor status codes.
var (
	ErrAuth     = errors.New("llm: authentication rejected")
	ErrQuota    = errors.New("llm: vendor quota exhausted")
	ErrOverload = errors.New("llm: backend overloaded")
	ErrContent  = errors.New("llm: content rejected or malformed")
)

// StatusError classifies an HTTP status into the matching sentinel class.
// Transient statuses (5xx, 429-overloaded) wrap ErrOverload so the dispatcher
// retries them; the rest are permanent.
func StatusError(status int, body []byte) error {
	base := fmt.Errorf("status %d: %s", status, string(body))
	switch {
	case status == 401 || status == 403:
		return fmt.Errorf("%w: %v", ErrAuth, base)
	case status == 429:
		return fmt.Errorf("%w: %v", ErrQuota, base)
	case status >= 500:
		return fmt.Errorf("%w: %v", ErrOverload, base)
	default:
		return fmt.Errorf("%w: %v", ErrContent, base)
	}
}
