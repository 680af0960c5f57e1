package gateway

import (
	"errors"
	"fmt"
	"strings"
)

// Typed wallet-interaction errors. Callers classify with errors.As / errors.Is
// instead of matching provider message strings.

// UserRejectedError means the wallet owner declined to sign. This is an
// expected user action, not a system fault.
type UserRejectedError struct {
	Cause error
}

func (e *UserRejectedError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("User rejected the request: %v", e.Cause)
	}
	return "User rejected the request"
}

func (e *UserRejectedError) Unwrap() error {
	return e.Cause
}

// NotConnectedError means no wallet is available to sign for the requested
// network.
type NotConnectedError struct {
	Cause error
}

func (e *NotConnectedError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("Connector not connected: %v", e.Cause)
	}
	return "Connector not connected"
}

func (e *NotConnectedError) Unwrap() error {
	return e.Cause
}

// RevertError means the transaction was included but reverted on-chain.
type RevertError struct {
	TxHash string
}

func (e *RevertError) Error() string {
	return fmt.Sprintf("transaction %s reverted on-chain", e.TxHash)
}

// ErrWrongNetwork is returned when a write targets a chain other than the
// wallet's active network. The caller must switch networks first.
var ErrWrongNetwork = errors.New("wallet is connected to a different network")

// IsUserRejected reports whether err was caused by the user declining a
// wallet prompt.
func IsUserRejected(err error) bool {
	var rejected *UserRejectedError
	return errors.As(err, &rejected)
}

// IsNotConnected reports whether err was caused by a missing wallet
// connection.
func IsNotConnected(err error) bool {
	var notConnected *NotConnectedError
	return errors.As(err, &notConnected)
}

// WrapProviderError converts raw provider failures into the typed hierarchy
// at the wallet boundary. Provider SDKs only expose rejection via message
// text, so the single string match in the codebase lives here.
func WrapProviderError(err error) error {
	if err == nil {
		return nil
	}
	msg := err.Error()
	switch {
	case strings.Contains(msg, "User rejected the request"):
		return &UserRejectedError{Cause: err}
	case strings.Contains(msg, "Connector not connected"):
		return &NotConnectedError{Cause: err}
	default:
		return err
	}
}
