package xerrors

import (
	"errors"
	"fmt"
)

// Common reusable application errors
var (
	ErrNotFound     = errors.New("resource not found")
	ErrUnauthorized = errors.New("unauthorized access")
	ErrForbidden    = errors.New("forbidden")
	ErrInvalidInput = errors.New("invalid input")
	ErrConflict     = errors.New("conflict: resource already exists")
	ErrInternal     = errors.New("internal server error")
	ErrBadRequest   = errors.New("bad request")
)

// Settlement errors
var (
	// ErrConfiguration marks missing or malformed secrets/settings.
	// Fatal: callers must never proceed with a half-configured codec.
	ErrConfiguration = errors.New("configuration error")

	// ErrSignature marks an inbound callback that failed MAC verification.
	ErrSignature = errors.New("signature verification failed")

	// ErrDuplicateDelivery marks a gateway callback already applied once.
	// Absorbed: the gateway gets a success ack and no state changes.
	ErrDuplicateDelivery = errors.New("duplicate callback delivery")

	// ErrInvalidStateTransition marks a disallowed order/activation edge,
	// e.g. refunding an order that never became paid.
	ErrInvalidStateTransition = errors.New("invalid state transition")

	// ErrConcurrencyConflict marks a lost conditional-update race, e.g. two
	// requests redeeming the same activation token.
	ErrConcurrencyConflict = errors.New("concurrent update conflict")

	// ErrExpired marks an activation link or payment code past its deadline.
	ErrExpired = errors.New("resource expired")

	// ErrUpstreamGateway marks a network/timeout/non-2xx failure from the
	// payment gateway. Local state is left unchanged.
	ErrUpstreamGateway = errors.New("upstream gateway error")
)

// Wrap adds context to an error (similar to fmt.Errorf("%w")).
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// Is allows checking whether an error is a specific sentinel error.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// Unwrap extracts the underlying wrapped error.
func Unwrap(err error) error {
	return errors.Unwrap(err)
}

// MessageOrDefault returns err.Error() or a fallback message if err is nil.
func MessageOrDefault(err error, fallback string) string {
	if err != nil {
		return err.Error()
	}
	return fallback
}
