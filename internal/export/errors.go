package export

import (
	"context"
	"errors"
	"fmt"
)

// deliveryError pairs a classification sentinel with the message shown to the user.
type deliveryError struct {
	kind    error
	message string
	cause   error
}

func (e *deliveryError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%v: %s: %v", e.kind, e.message, e.cause)
	}
	return fmt.Sprintf("%v: %s", e.kind, e.message)
}

func (e *deliveryError) Unwrap() []error {
	if e.cause != nil {
		return []error{e.kind, e.cause}
	}
	return []error{e.kind}
}

func unavailable(message string, cause error) error {
	return &deliveryError{kind: ErrChannelUnavailable, message: message, cause: cause}
}

func failed(message string, cause error) error {
	return &deliveryError{kind: ErrChannelFailed, message: message, cause: cause}
}

func cancelled(cause error) error {
	return &deliveryError{kind: ErrUserCancelled, message: "cancelled", cause: cause}
}

func userMessage(err error) string {
	var de *deliveryError
	if errors.As(err, &de) && de.kind != ErrUserCancelled {
		return de.message
	}
	return ""
}

// isCancellation reports whether err stems from the caller backing out.
func isCancellation(ctx context.Context, err error) bool {
	return errors.Is(err, context.Canceled) && ctx.Err() != nil
}
