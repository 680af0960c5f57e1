package orchestrator

import (
	"errors"

	"github.com/equito-network/equitovote/x/gateway"
	"github.com/equito-network/equitovote/x/gateway/contracts"
)

// ErrOperationInFlight is returned when Execute is called on an operation
// that is not at rest.
var ErrOperationInFlight = errors.New("operation already in flight")

// UserAction tells the caller how to present a failed operation.
type UserAction int

const (
	// ActionSilent means no notification. The user declined a wallet prompt
	// on purpose; the operation quietly returns to its starting state.
	ActionSilent UserAction = iota
	// ActionPromptConnect asks the user to connect a wallet first.
	ActionPromptConnect
	// ActionNotify shows a retryable failure notification.
	ActionNotify
)

// Classify maps an operation failure to the user-facing action and message.
func Classify(err error) (UserAction, string) {
	switch {
	case err == nil:
		return ActionSilent, ""
	case gateway.IsUserRejected(err):
		return ActionSilent, ""
	case gateway.IsNotConnected(err):
		return ActionPromptConnect, "Please connect a wallet"
	case errors.Is(err, contracts.ErrMessageNotFound):
		return ActionNotify, "Cross-chain message missing from transaction logs, please retry"
	default:
		return ActionNotify, "Operation failed, please retry"
	}
}
