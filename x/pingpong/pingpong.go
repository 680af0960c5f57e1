package pingpong

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/equito-network/equitovote/x/flows"
	"github.com/equito-network/equitovote/x/orchestrator"
	"github.com/equito-network/equitovote/x/registry"
)

// Status tracks the health check across its two chained operations: the ping
// delivery emits the pong message, which is approved and delivered back.
type Status string

const (
	StatusIdle                         Status = "idle"
	StatusSendingPing                  Status = "sending_ping"
	StatusApprovingSentPing            Status = "approving_sent_ping"
	StatusDeliveringPingAndSendingPong Status = "delivering_ping_and_sending_pong"
	StatusApprovingSentPong            Status = "approving_sent_pong"
	StatusDeliveringPong               Status = "delivering_pong"
	StatusCompleted                    Status = "completed"
	StatusError                        Status = "error"
)

// Result reports one finished health check.
type Result struct {
	PingTxHash    string `json:"ping_tx_hash"`
	PingDelivery  string `json:"ping_delivery_tx_hash"`
	PongDelivery  string `json:"pong_delivery_tx_hash"`
	RoundTripOK   bool   `json:"round_trip_ok"`
	FailureReason string `json:"failure_reason,omitempty"`
}

// StatusObserver receives every health-check status change.
type StatusObserver func(status Status)

// Service exercises the messaging layer end to end: ping from source to
// destination, pong back from destination to source.
type Service struct {
	orch    *orchestrator.Orchestrator
	builder *flows.Builder
	fees    *flows.FeeService
	gw      orchestrator.ChainWriter
	reg     *registry.Registry
	log     zerolog.Logger

	mu     sync.Mutex
	status Status
}

// NewService creates a ping-pong service.
func NewService(
	orch *orchestrator.Orchestrator,
	builder *flows.Builder,
	fees *flows.FeeService,
	gw orchestrator.ChainWriter,
	reg *registry.Registry,
	logger zerolog.Logger,
) *Service {
	return &Service{
		orch:    orch,
		builder: builder,
		fees:    fees,
		gw:      gw,
		reg:     reg,
		log:     logger.With().Str("component", "pingpong").Logger(),
		status:  StatusIdle,
	}
}

// Status returns the current health-check status.
func (s *Service) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

func (s *Service) set(status Status, observers []StatusObserver) {
	s.mu.Lock()
	s.status = status
	s.mu.Unlock()
	for _, fn := range observers {
		fn(status)
	}
}

// pingObserver maps orchestration progress of the ping half onto health-check
// statuses.
func (s *Service) pingObserver(observers []StatusObserver) orchestrator.StatusObserver {
	return func(id uuid.UUID, status orchestrator.Status) {
		switch status {
		case orchestrator.StatusExecutingBaseTx, orchestrator.StatusRetrievingBlock:
			s.set(StatusSendingPing, observers)
		case orchestrator.StatusGeneratingProof:
			s.set(StatusApprovingSentPing, observers)
		case orchestrator.StatusExecutingMessage:
			s.set(StatusDeliveringPingAndSendingPong, observers)
		case orchestrator.StatusStart, orchestrator.StatusCompleted, orchestrator.StatusRetry:
		}
	}
}

// pongObserver maps orchestration progress of the pong half.
func (s *Service) pongObserver(observers []StatusObserver) orchestrator.StatusObserver {
	return func(id uuid.UUID, status orchestrator.Status) {
		switch status {
		case orchestrator.StatusGeneratingProof:
			s.set(StatusApprovingSentPong, observers)
		case orchestrator.StatusExecutingMessage:
			s.set(StatusDeliveringPong, observers)
		case orchestrator.StatusStart, orchestrator.StatusExecutingBaseTx,
			orchestrator.StatusRetrievingBlock, orchestrator.StatusCompleted, orchestrator.StatusRetry:
		}
	}
}

// Run drives one full round trip. The returned Result is also populated on
// failure, with the reason recorded.
func (s *Service) Run(ctx context.Context, source, destination *registry.ChainDescriptor, message string, observers ...StatusObserver) (Result, error) {
	fail := func(result Result, err error) (Result, error) {
		result.FailureReason = err.Error()
		s.set(StatusError, observers)
		return result, err
	}
	var result Result

	s.set(StatusSendingPing, observers)
	action, err := s.builder.BuildPing(ctx, source, destination, message)
	if err != nil {
		return fail(result, err)
	}
	pingOp := s.orch.NewOperation(action, s.pingObserver(observers))
	if err := s.orch.Execute(ctx, pingOp); err != nil {
		return fail(result, fmt.Errorf("ping: %w", err))
	}
	snap := pingOp.Snapshot()
	result.PingTxHash = snap.BaseTxHash
	result.PingDelivery = snap.DeliverTxHash

	// the ping delivery emitted the answering pong message
	delivery := pingOp.DeliverResult()
	pongMessage, err := s.orch.ExtractMessage(ctx, destination.ChainSelector, delivery.Logs)
	if err != nil {
		return fail(result, fmt.Errorf("pong message: %w", err))
	}
	blockTime, err := s.gw.BlockTimestamp(ctx, destination, delivery.BlockNumber)
	if err != nil {
		return fail(result, fmt.Errorf("pong block timestamp: %w", err))
	}

	sourcePingAddr, err := source.Contract(registry.ContractPingPong)
	if err != nil {
		return fail(result, err)
	}
	deliverValue, err := s.fees.MessagingFee(ctx, source, sourcePingAddr)
	if err != nil {
		return fail(result, err)
	}

	pongOp := s.orch.NewResumedOperation(orchestrator.BaseAction{
		Flow:         "pong",
		Source:       destination,
		DeliverValue: deliverValue,
	}, delivery, pongMessage, blockTime*1000, s.pongObserver(observers))
	if err := s.orch.Execute(ctx, pongOp); err != nil {
		return fail(result, fmt.Errorf("pong: %w", err))
	}
	result.PongDelivery = pongOp.Snapshot().DeliverTxHash
	result.RoundTripOK = true

	s.set(StatusCompleted, observers)
	s.log.Info().
		Str("source", source.Name).
		Str("destination", destination.Name).
		Msg("messaging round trip completed")
	return result, nil
}
