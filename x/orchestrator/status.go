package orchestrator

import "fmt"

// Status tracks one in-flight cross-chain operation. Transitions move
// strictly forward through the sequence; any failure lands in StatusRetry,
// from which a fresh invocation restarts.
type Status int

const (
	StatusStart Status = iota
	StatusExecutingBaseTx
	StatusRetrievingBlock
	StatusGeneratingProof
	StatusExecutingMessage
	StatusCompleted
	StatusRetry
)

// String returns the snake_case status name used in logs and API responses.
func (s Status) String() string {
	switch s {
	case StatusStart:
		return "start"
	case StatusExecutingBaseTx:
		return "executing_base_tx_on_source_chain"
	case StatusRetrievingBlock:
		return "retrieving_block_on_source_chain"
	case StatusGeneratingProof:
		return "generating_proof_on_source_chain"
	case StatusExecutingMessage:
		return "executing_message_on_destination_chain"
	case StatusCompleted:
		return "completed"
	case StatusRetry:
		return "retry"
	default:
		return fmt.Sprintf("Status(%d)", int(s))
	}
}

// AtRest reports whether a fresh invocation may begin from this status.
func (s Status) AtRest() bool {
	switch s {
	case StatusStart, StatusCompleted, StatusRetry:
		return true
	case StatusExecutingBaseTx, StatusRetrievingBlock, StatusGeneratingProof, StatusExecutingMessage:
		return false
	default:
		return false
	}
}
