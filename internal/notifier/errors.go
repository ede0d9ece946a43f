package notifier

import (
	"errors"
	"fmt"

	"bioswatch/internal/errdefs"
)

var (
	// ErrConfig is the same value as config.ErrConfig.
	ErrConfig = errdefs.ErrConfig

	ErrConnection = errors.New("connection error")
)

// DeliveryError reports a (partially) failed Send. Errs holds one error per
// failed recipient.
type DeliveryError struct {
	Succeeded int
	Total     int
	Errs      []error
}

func (e *DeliveryError) Error() string {
	msg := fmt.Sprintf("delivery failed: %d of %d succeeded", e.Succeeded, e.Total)
	if len(e.Errs) > 0 {
		msg += ": " + errors.Join(e.Errs...).Error()
	}
	return msg
}

func (e *DeliveryError) Unwrap() []error { return e.Errs }

// NewDeliveryError returns nil when errs holds no failures.
func NewDeliveryError(total int, errs []error) error {
	failed := make([]error, 0, len(errs))
	for _, err := range errs {
		if err != nil {
			failed = append(failed, err)
		}
	}
	if len(failed) == 0 {
		return nil
	}
	return &DeliveryError{Succeeded: total - len(failed), Total: total, Errs: failed}
}
