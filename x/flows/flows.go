package flows

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/rs/zerolog"

	"github.com/equito-network/equitovote/x/gateway/contracts"
	"github.com/equito-network/equitovote/x/orchestrator"
	"github.com/equito-network/equitovote/x/registry"
)

// Builder assembles orchestrator actions for each feature. Builders are
// deterministic given the fee reads; all wallet interaction happens later in
// the orchestrator.
type Builder struct {
	reg  *registry.Registry
	fees *FeeService
	log  zerolog.Logger
}

// NewBuilder creates a flow builder.
func NewBuilder(reg *registry.Registry, fees *FeeService, logger zerolog.Logger) *Builder {
	return &Builder{
		reg:  reg,
		fees: fees,
		log:  logger.With().Str("component", "flows").Logger(),
	}
}

// CreateProposalInput is the create-proposal form state.
type CreateProposalInput struct {
	Title         string
	Description   string
	TokenName     string
	DurationHours uint64
}

// ProposalEndTimestamp computes the voting deadline: now plus the duration,
// floored to whole seconds.
func ProposalEndTimestamp(now time.Time, durationHours uint64) *big.Int {
	return big.NewInt(now.Unix() + int64(durationHours)*3600)
}

// BuildCreateProposal builds the create-proposal action for the given source
// chain.
func (b *Builder) BuildCreateProposal(ctx context.Context, source *registry.ChainDescriptor, in CreateProposalInput, now time.Time) (orchestrator.BaseAction, error) {
	if in.Title == "" {
		return orchestrator.BaseAction{}, fmt.Errorf("title is required")
	}
	if in.DurationHours == 0 {
		return orchestrator.BaseAction{}, fmt.Errorf("duration must be at least one hour")
	}
	if _, err := registry.TokenByName(in.TokenName); err != nil {
		return orchestrator.BaseAction{}, err
	}

	appAddr, err := source.Contract(registry.ContractEquitoVote)
	if err != nil {
		return orchestrator.BaseAction{}, err
	}
	binding, err := contracts.NewEquitoVoteBinding(appAddr.Hex())
	if err != nil {
		return orchestrator.BaseAction{}, err
	}
	calldata, err := binding.BuildCreateProposalCalldata(
		new(big.Int).SetUint64(b.reg.Destination().ChainSelector),
		ProposalEndTimestamp(now, in.DurationHours),
		in.Title,
		in.Description,
		in.TokenName,
		new(big.Int).SetUint64(source.ChainSelector),
	)
	if err != nil {
		return orchestrator.BaseAction{}, err
	}

	value, err := b.fees.CreateProposalTotal(ctx, source)
	if err != nil {
		return orchestrator.BaseAction{}, err
	}
	deliverValue, err := b.fees.DeliveryFee(ctx, registry.ContractEquitoVote)
	if err != nil {
		return orchestrator.BaseAction{}, err
	}

	return orchestrator.BaseAction{
		Flow:         "create_proposal",
		Source:       source,
		To:           appAddr,
		Calldata:     calldata,
		Value:        value,
		DeliverValue: deliverValue,
	}, nil
}

// VoteInput is the vote form state. Amount is the human-entered token amount;
// TokenAddress and TokenDecimals come from the proposal's governance token on
// the source chain.
type VoteInput struct {
	ProposalID            [32]byte
	Amount                string
	Option                contracts.VoteOption
	TokenAddress          common.Address
	TokenDecimals         uint8
	IsGetPastVotesEnabled bool
}

// BuildVote builds the vote action for the given source chain.
func (b *Builder) BuildVote(ctx context.Context, source *registry.ChainDescriptor, in VoteInput) (orchestrator.BaseAction, error) {
	if in.ProposalID == ([32]byte{}) {
		return orchestrator.BaseAction{}, fmt.Errorf("proposal id is required")
	}
	if in.TokenAddress == (common.Address{}) {
		return orchestrator.BaseAction{}, fmt.Errorf("governance token address is required")
	}
	numVotes, err := ScaleAmount(in.Amount, in.TokenDecimals)
	if err != nil {
		return orchestrator.BaseAction{}, err
	}

	appAddr, err := source.Contract(registry.ContractEquitoVote)
	if err != nil {
		return orchestrator.BaseAction{}, err
	}
	binding, err := contracts.NewEquitoVoteBinding(appAddr.Hex())
	if err != nil {
		return orchestrator.BaseAction{}, err
	}
	calldata, err := binding.BuildVoteCalldata(
		new(big.Int).SetUint64(b.reg.Destination().ChainSelector),
		in.ProposalID,
		numVotes,
		in.Option,
		in.TokenAddress,
		in.IsGetPastVotesEnabled,
	)
	if err != nil {
		return orchestrator.BaseAction{}, err
	}

	value, err := b.fees.VoteTotal(ctx, source)
	if err != nil {
		return orchestrator.BaseAction{}, err
	}
	deliverValue, err := b.fees.DeliveryFee(ctx, registry.ContractEquitoVote)
	if err != nil {
		return orchestrator.BaseAction{}, err
	}

	return orchestrator.BaseAction{
		Flow:         "vote",
		Source:       source,
		To:           appAddr,
		Calldata:     calldata,
		Value:        value,
		DeliverValue: deliverValue,
		SwitchBack:   true,
	}, nil
}

// BridgeInput is the token-bridge form state.
type BridgeInput struct {
	TokenAddress  common.Address
	TokenDecimals uint8
	Amount        string
	// DestinationSelector is the receiving chain. Zero means the fixed
	// destination chain.
	DestinationSelector uint64
}

// BuildBridge builds the token-bridge action for the given source chain.
func (b *Builder) BuildBridge(ctx context.Context, source *registry.ChainDescriptor, in BridgeInput) (orchestrator.BaseAction, error) {
	if in.TokenAddress == (common.Address{}) {
		return orchestrator.BaseAction{}, fmt.Errorf("token address is required")
	}
	amount, err := ScaleAmount(in.Amount, in.TokenDecimals)
	if err != nil {
		return orchestrator.BaseAction{}, err
	}
	destSelector := in.DestinationSelector
	if destSelector == 0 {
		destSelector = b.reg.Destination().ChainSelector
	}
	if _, err := b.reg.BySelector(destSelector); err != nil {
		return orchestrator.BaseAction{}, err
	}

	swapAddr, err := source.Contract(registry.ContractSwap)
	if err != nil {
		return orchestrator.BaseAction{}, err
	}
	binding, err := contracts.NewSwapBinding(swapAddr)
	if err != nil {
		return orchestrator.BaseAction{}, err
	}
	calldata, err := binding.BuildBridgeTokenCalldata(
		new(big.Int).SetUint64(destSelector), in.TokenAddress, amount)
	if err != nil {
		return orchestrator.BaseAction{}, err
	}

	messaging, err := b.fees.MessagingFee(ctx, source, swapAddr)
	if err != nil {
		return orchestrator.BaseAction{}, err
	}
	bridgeFeeCalldata, err := binding.BuildBridgeFeeCalldata()
	if err != nil {
		return orchestrator.BaseAction{}, err
	}
	out, err := b.fees.reader.Read(ctx, source, swapAddr, bridgeFeeCalldata)
	if err != nil {
		return orchestrator.BaseAction{}, fmt.Errorf("bridge fee on %s: %w", source.Name, err)
	}
	bridgeFee, err := binding.DecodeBridgeFee(out)
	if err != nil {
		return orchestrator.BaseAction{}, err
	}

	destChain, err := b.reg.BySelector(destSelector)
	if err != nil {
		return orchestrator.BaseAction{}, err
	}
	destSwapAddr, err := destChain.Contract(registry.ContractSwap)
	if err != nil {
		return orchestrator.BaseAction{}, err
	}
	deliverValue, err := b.fees.MessagingFee(ctx, destChain, destSwapAddr)
	if err != nil {
		return orchestrator.BaseAction{}, err
	}

	return orchestrator.BaseAction{
		Flow:         "bridge",
		Source:       source,
		To:           swapAddr,
		Calldata:     calldata,
		Value:        new(big.Int).Add(messaging, bridgeFee),
		DeliverValue: deliverValue,
	}, nil
}

// BuildPing builds the ping half of the messaging-layer health check. The
// delivery of the ping makes the destination contract emit the answering
// pong, which runs as a second chained operation.
func (b *Builder) BuildPing(ctx context.Context, source *registry.ChainDescriptor, destination *registry.ChainDescriptor, message string) (orchestrator.BaseAction, error) {
	pingAddr, err := source.Contract(registry.ContractPingPong)
	if err != nil {
		return orchestrator.BaseAction{}, err
	}
	binding, err := contracts.NewPingPongBinding(pingAddr)
	if err != nil {
		return orchestrator.BaseAction{}, err
	}
	calldata, err := binding.BuildSendPingCalldata(
		new(big.Int).SetUint64(destination.ChainSelector), message)
	if err != nil {
		return orchestrator.BaseAction{}, err
	}

	value, err := b.fees.MessagingFee(ctx, source, pingAddr)
	if err != nil {
		return orchestrator.BaseAction{}, err
	}
	destPingAddr, err := destination.Contract(registry.ContractPingPong)
	if err != nil {
		return orchestrator.BaseAction{}, err
	}
	deliverValue, err := b.fees.MessagingFee(ctx, destination, destPingAddr)
	if err != nil {
		return orchestrator.BaseAction{}, err
	}

	return orchestrator.BaseAction{
		Flow:         "ping",
		Source:       source,
		To:           pingAddr,
		Calldata:     calldata,
		Value:        value,
		DeliverValue: deliverValue,
	}, nil
}
