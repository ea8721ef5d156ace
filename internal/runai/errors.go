package runai

import (
	"context"
	"errors"
	"fmt"
	"net"
)

// Sentinel errors for remote call failures.
var (
	ErrTransport     = errors.New("remote call failed")
	ErrTimeout       = errors.New("remote call timeout")
	ErrCommandFailed = errors.New("remote command exited with error")
)

// classifyError maps transport-level errors to sentinel errors.
func classifyError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	}

	return fmt.Errorf("%w: %v", ErrTransport, err)
}

// IsTransient reports whether err is a transport failure or timeout, i.e. the
// job should be shown as unavailable for this cycle only.
func IsTransient(err error) bool {
	return errors.Is(err, ErrTransport) || errors.Is(err, ErrTimeout)
}
