package orchestrator

import (
	"context"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/equito-network/equitovote/x/gateway"
	"github.com/equito-network/equitovote/x/gateway/contracts"
	"github.com/equito-network/equitovote/x/registry"
	"github.com/equito-network/equitovote/x/relay"
)

// ChainWriter is the gateway surface the orchestrator drives.
type ChainWriter interface {
	SwitchNetwork(ctx context.Context, chainID uint64) error
	Write(ctx context.Context, req gateway.WriteRequest) (*gateway.WriteResult, error)
	BlockTimestamp(ctx context.Context, chain *registry.ChainDescriptor, blockNumber *big.Int) (uint64, error)
}

// ProofSource resolves delivery proofs and router deployments.
type ProofSource interface {
	WaitForProof(ctx context.Context, req relay.ProofRequest) (*relay.DeliveryProof, error)
	RouterAddress(ctx context.Context, chainSelector uint64) (common.Address, error)
}

var (
	_ ChainWriter = (*gateway.Gateway)(nil)
	_ ProofSource = (*relay.Client)(nil)
)

// BaseAction is the flow-specific half of a cross-chain operation: the
// source-chain transaction to submit and the fees already summed by the flow.
type BaseAction struct {
	// Flow names the feature for logs and metrics ("create_proposal",
	// "vote", "bridge", "ping", "pong").
	Flow string
	// Source is the chain the base transaction runs on.
	Source *registry.ChainDescriptor
	// To and Calldata describe the base contract call.
	To       common.Address
	Calldata []byte
	// Value is the native amount attached to the base transaction: the
	// source messaging fee plus the feature's own protocol fee.
	Value *big.Int
	// DeliverValue is the native amount attached to the delivery
	// transaction: the destination messaging fee.
	DeliverValue *big.Int
	// SwitchBack returns the wallet to the source network after delivery.
	SwitchBack bool
	// OnCompleted runs after the operation completes, for optimistic local
	// state updates.
	OnCompleted func()
}

// StatusObserver receives every status transition of one operation.
type StatusObserver func(id uuid.UUID, status Status)

// Operation is one user-initiated cross-chain action. Progress captured from
// a partially-successful attempt (base receipt, extracted message, block
// timestamp) survives into the retry so the base transaction is never
// double-spent.
type Operation struct {
	ID     uuid.UUID
	action BaseAction

	mu        sync.Mutex
	status    Status
	err       error
	observers []StatusObserver

	baseResult      *gateway.WriteResult
	message         *contracts.MessageSendRequested
	timestampMillis uint64
	deliverResult   *gateway.WriteResult
}

// Status returns the operation's current status.
func (op *Operation) Status() Status {
	op.mu.Lock()
	defer op.mu.Unlock()
	return op.status
}

// Err returns the last failure, nil while running or after success.
func (op *Operation) Err() error {
	op.mu.Lock()
	defer op.mu.Unlock()
	return op.err
}

// DeliverResult returns the delivery receipt, nil until delivery confirms.
func (op *Operation) DeliverResult() *gateway.WriteResult {
	op.mu.Lock()
	defer op.mu.Unlock()
	return op.deliverResult
}

// Snapshot is the externally-visible view of an operation.
type Snapshot struct {
	ID            uuid.UUID `json:"id"`
	Flow          string    `json:"flow"`
	Status        string    `json:"status"`
	Error         string    `json:"error,omitempty"`
	BaseTxHash    string    `json:"base_tx_hash,omitempty"`
	DeliverTxHash string    `json:"deliver_tx_hash,omitempty"`
}

// Snapshot returns a copy of the operation's visible state.
func (op *Operation) Snapshot() Snapshot {
	op.mu.Lock()
	defer op.mu.Unlock()
	s := Snapshot{
		ID:     op.ID,
		Flow:   op.action.Flow,
		Status: op.status.String(),
	}
	if op.err != nil {
		s.Error = op.err.Error()
	}
	if op.baseResult != nil {
		s.BaseTxHash = op.baseResult.TxHash.Hex()
	}
	if op.deliverResult != nil {
		s.DeliverTxHash = op.deliverResult.TxHash.Hex()
	}
	return s
}

func (op *Operation) setStatus(status Status) {
	op.mu.Lock()
	op.status = status
	observers := op.observers
	id := op.ID
	op.mu.Unlock()
	for _, fn := range observers {
		fn(id, status)
	}
}

func (op *Operation) setErr(err error) {
	op.mu.Lock()
	op.err = err
	op.mu.Unlock()
}

func (op *Operation) resumable() bool {
	op.mu.Lock()
	defer op.mu.Unlock()
	return op.baseResult != nil && op.message != nil && op.timestampMillis != 0
}

// Orchestrator executes the cross-chain operation sequence: base transaction
// on the source chain, message extraction, proof retrieval, delivery on the
// destination chain.
type Orchestrator struct {
	gw            ChainWriter
	proofs        ProofSource
	reg           *registry.Registry
	log           zerolog.Logger
	metrics       *Metrics
	verifierIndex *big.Int

	mu      sync.Mutex
	routers map[uint64]*contracts.RouterBinding
	ops     map[uuid.UUID]*Operation
}

// Option configures optional orchestrator behavior.
type Option func(*Orchestrator)

// WithMetrics attaches operation metrics.
func WithMetrics(m *Metrics) Option {
	return func(o *Orchestrator) {
		o.metrics = m
	}
}

// WithVerifierIndex overrides the verifier set used for delivery.
func WithVerifierIndex(index *big.Int) Option {
	return func(o *Orchestrator) {
		o.verifierIndex = index
	}
}

// New creates an orchestrator.
func New(gw ChainWriter, proofs ProofSource, reg *registry.Registry, logger zerolog.Logger, opts ...Option) (*Orchestrator, error) {
	if gw == nil || proofs == nil || reg == nil {
		return nil, fmt.Errorf("gateway, proof source and registry are required")
	}
	o := &Orchestrator{
		gw:            gw,
		proofs:        proofs,
		reg:           reg,
		log:           logger.With().Str("component", "orchestrator").Logger(),
		verifierIndex: big.NewInt(0),
		routers:       make(map[uint64]*contracts.RouterBinding),
		ops:           make(map[uuid.UUID]*Operation),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o, nil
}

// NewOperation registers a fresh operation for the action. Observers receive
// every status transition, starting at StatusStart.
func (o *Orchestrator) NewOperation(action BaseAction, observers ...StatusObserver) *Operation {
	op := &Operation{
		ID:        uuid.New(),
		action:    action,
		status:    StatusStart,
		observers: observers,
	}
	o.mu.Lock()
	o.ops[op.ID] = op
	o.mu.Unlock()
	return op
}

// NewResumedOperation registers an operation that starts from an already
// captured message instead of submitting a base transaction. Used when one
// delivery emits the next message, as in the ping-pong health check.
func (o *Orchestrator) NewResumedOperation(
	action BaseAction,
	base *gateway.WriteResult,
	message *contracts.MessageSendRequested,
	blockTimestampMillis uint64,
	observers ...StatusObserver,
) *Operation {
	op := o.NewOperation(action, observers...)
	op.mu.Lock()
	op.baseResult = base
	op.message = message
	op.timestampMillis = blockTimestampMillis
	op.mu.Unlock()
	return op
}

// ExtractMessage decodes the MessageSendRequested event from receipt logs on
// the chain with the given selector.
func (o *Orchestrator) ExtractMessage(ctx context.Context, chainSelector uint64, logs []*types.Log) (*contracts.MessageSendRequested, error) {
	binding, err := o.routerBinding(ctx, chainSelector)
	if err != nil {
		return nil, err
	}
	return binding.ExtractMessageSendRequested(logs)
}

// Get looks up a registered operation by id.
func (o *Orchestrator) Get(id uuid.UUID) (*Operation, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	op, ok := o.ops[id]
	return op, ok
}

// Run is NewOperation followed by Execute.
func (o *Orchestrator) Run(ctx context.Context, action BaseAction, observers ...StatusObserver) (*Operation, error) {
	op := o.NewOperation(action, observers...)
	return op, o.Execute(ctx, op)
}

// Execute drives the operation to completion. It may only be called when the
// operation is at rest; re-invoking after a failure retries. A retry restarts
// from the beginning unless the previous attempt already captured the base
// receipt and message, in which case it resumes at proof retrieval.
func (o *Orchestrator) Execute(ctx context.Context, op *Operation) (err error) {
	if !op.Status().AtRest() {
		return ErrOperationInFlight
	}
	op.setErr(nil)
	// observers see the full sequence from the starting state; a retry
	// re-enters through it as well
	op.setStatus(StatusStart)

	action := op.action
	logger := o.log.With().
		Str("operation_id", op.ID.String()).
		Str("flow", action.Flow).
		Logger()

	defer func() {
		switch {
		case err == nil:
			o.metrics.countOutcome(action.Flow, "completed")
		case gateway.IsUserRejected(err):
			// expected user action: quietly return to the starting state
			op.setErr(err)
			op.setStatus(StatusStart)
			o.metrics.countOutcome(action.Flow, "rejected")
			logger.Debug().Msg("operation abandoned by user")
		default:
			op.setErr(err)
			op.setStatus(StatusRetry)
			o.metrics.countOutcome(action.Flow, "retry")
			logger.Error().Err(err).Str("status", StatusRetry.String()).Msg("operation failed")
		}
	}()

	if action.Source == nil {
		return fmt.Errorf("no source chain selected")
	}

	if op.resumable() {
		logger.Info().Msg("resuming operation at proof retrieval")
	} else {
		if err = o.runSourcePhase(ctx, op, logger); err != nil {
			return err
		}
	}
	return o.runDeliveryPhase(ctx, op, logger)
}

// runSourcePhase covers the source-chain half: network switch, base
// transaction, message extraction and block timestamp lookup.
func (o *Orchestrator) runSourcePhase(ctx context.Context, op *Operation, logger zerolog.Logger) error {
	action := op.action

	if err := o.gw.SwitchNetwork(ctx, action.Source.ChainID); err != nil {
		return fmt.Errorf("switch to source network %s: %w", action.Source.Name, err)
	}

	op.setStatus(StatusExecutingBaseTx)
	start := time.Now()
	baseResult, err := o.gw.Write(ctx, gateway.WriteRequest{
		Chain:    action.Source,
		To:       action.To,
		Calldata: action.Calldata,
		Value:    action.Value,
	})
	if err != nil {
		return fmt.Errorf("base transaction on %s: %w", action.Source.Name, err)
	}
	o.metrics.observeStep("base_tx", start)

	sourceRouter, err := o.routerBinding(ctx, action.Source.ChainSelector)
	if err != nil {
		return err
	}
	message, err := sourceRouter.ExtractMessageSendRequested(baseResult.Logs)
	if err != nil {
		return fmt.Errorf("base transaction %s: %w", baseResult.TxHash.Hex(), err)
	}

	op.setStatus(StatusRetrievingBlock)
	start = time.Now()
	blockTime, err := o.gw.BlockTimestamp(ctx, action.Source, baseResult.BlockNumber)
	if err != nil {
		return fmt.Errorf("source block timestamp: %w", err)
	}
	o.metrics.observeStep("block_timestamp", start)

	op.mu.Lock()
	op.baseResult = baseResult
	op.message = message
	op.timestampMillis = blockTime * 1000
	op.mu.Unlock()

	logger.Info().
		Str("base_tx_hash", baseResult.TxHash.Hex()).
		Str("block", baseResult.BlockNumber.String()).
		Msg("cross-chain message captured")
	return nil
}

// runDeliveryPhase covers proof retrieval and the destination-chain delivery
// transaction.
func (o *Orchestrator) runDeliveryPhase(ctx context.Context, op *Operation, logger zerolog.Logger) error {
	action := op.action

	op.mu.Lock()
	message := op.message
	timestampMillis := op.timestampMillis
	op.mu.Unlock()

	op.setStatus(StatusGeneratingProof)
	messageHash, err := contracts.HashMessage(message.Message)
	if err != nil {
		return err
	}
	start := time.Now()
	proof, err := o.proofs.WaitForProof(ctx, relay.ProofRequest{
		MessageHash:         messageHash,
		ChainSelector:       action.Source.ChainSelector,
		FromTimestampMillis: timestampMillis,
	})
	if err != nil {
		return fmt.Errorf("proof for message %s: %w", messageHash.Hex(), err)
	}
	o.metrics.observeStep("proof", start)

	destination, err := o.reg.BySelector(message.Message.DestinationChainSelector.Uint64())
	if err != nil {
		return fmt.Errorf("resolve destination chain: %w", err)
	}
	if destination.ChainID != action.Source.ChainID {
		if err := o.gw.SwitchNetwork(ctx, destination.ChainID); err != nil {
			return fmt.Errorf("switch to destination network %s: %w", destination.Name, err)
		}
	}

	op.setStatus(StatusExecutingMessage)
	destRouter, err := o.routerBinding(ctx, destination.ChainSelector)
	if err != nil {
		return err
	}
	calldata, err := destRouter.BuildDeliverCalldata(message.Message, message.MessageData, o.verifierIndex, proof.Proof)
	if err != nil {
		return err
	}
	start = time.Now()
	deliverResult, err := o.gw.Write(ctx, gateway.WriteRequest{
		Chain:    destination,
		To:       destRouter.Address(),
		Calldata: calldata,
		Value:    action.DeliverValue,
	})
	if err != nil {
		return fmt.Errorf("delivery transaction on %s: %w", destination.Name, err)
	}
	o.metrics.observeStep("deliver_tx", start)

	op.mu.Lock()
	op.deliverResult = deliverResult
	op.mu.Unlock()

	if action.SwitchBack && destination.ChainID != action.Source.ChainID {
		// per-flow convenience, not part of the operation's guarantee
		if err := o.gw.SwitchNetwork(ctx, action.Source.ChainID); err != nil {
			logger.Warn().Err(err).Msg("switch back to source network failed")
		}
	}

	op.setStatus(StatusCompleted)
	logger.Info().
		Str("deliver_tx_hash", deliverResult.TxHash.Hex()).
		Str("destination", destination.Name).
		Msg("operation completed")
	if action.OnCompleted != nil {
		action.OnCompleted()
	}
	return nil
}

// routerBinding resolves and caches the router deployment for a selector.
func (o *Orchestrator) routerBinding(ctx context.Context, chainSelector uint64) (*contracts.RouterBinding, error) {
	o.mu.Lock()
	binding, ok := o.routers[chainSelector]
	o.mu.Unlock()
	if ok {
		return binding, nil
	}

	address, err := o.proofs.RouterAddress(ctx, chainSelector)
	if err != nil {
		return nil, fmt.Errorf("router for selector %d: %w", chainSelector, err)
	}
	binding, err = contracts.NewRouterBinding(address)
	if err != nil {
		return nil, err
	}
	o.mu.Lock()
	o.routers[chainSelector] = binding
	o.mu.Unlock()
	return binding, nil
}
