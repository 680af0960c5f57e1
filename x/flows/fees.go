package flows

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/rs/zerolog"

	"github.com/equito-network/equitovote/x/gateway"
	"github.com/equito-network/equitovote/x/gateway/contracts"
	"github.com/equito-network/equitovote/x/registry"
)

// ContractReader is the read-only gateway surface the fee service needs.
type ContractReader interface {
	Read(ctx context.Context, chain *registry.ChainDescriptor, to common.Address, calldata []byte) ([]byte, error)
}

// RouterResolver resolves the messaging router deployed on a chain.
type RouterResolver interface {
	RouterAddress(ctx context.Context, chainSelector uint64) (common.Address, error)
}

var _ ContractReader = (*gateway.Gateway)(nil)

// FeeService reads the messaging and protocol fees a flow must attach. Every
// fee is fetched fresh per operation; fee levels move with gas markets.
type FeeService struct {
	reader  ContractReader
	routers RouterResolver
	reg     *registry.Registry
	log     zerolog.Logger
}

// NewFeeService creates a fee service.
func NewFeeService(reader ContractReader, routers RouterResolver, reg *registry.Registry, logger zerolog.Logger) *FeeService {
	return &FeeService{
		reader:  reader,
		routers: routers,
		reg:     reg,
		log:     logger.With().Str("component", "fee_service").Logger(),
	}
}

// MessagingFee reads router.getFee(app) on the given chain: the fee the
// messaging protocol charges the app contract for one cross-chain message.
func (s *FeeService) MessagingFee(ctx context.Context, chain *registry.ChainDescriptor, app common.Address) (*big.Int, error) {
	routerAddr, err := s.routers.RouterAddress(ctx, chain.ChainSelector)
	if err != nil {
		return nil, err
	}
	binding, err := contracts.NewRouterBinding(routerAddr)
	if err != nil {
		return nil, err
	}
	calldata, err := binding.BuildGetFeeCalldata(app)
	if err != nil {
		return nil, err
	}
	out, err := s.reader.Read(ctx, chain, routerAddr, calldata)
	if err != nil {
		return nil, fmt.Errorf("messaging fee on %s: %w", chain.Name, err)
	}
	return binding.DecodeGetFee(out)
}

// votingAppFee reads a fee view from the chain's EquitoVote contract.
func (s *FeeService) votingAppFee(ctx context.Context, chain *registry.ChainDescriptor, build func(*contracts.EquitoVoteBinding) ([]byte, error), method string) (*big.Int, error) {
	appAddr, err := chain.Contract(registry.ContractEquitoVote)
	if err != nil {
		return nil, err
	}
	binding, err := contracts.NewEquitoVoteBinding(appAddr.Hex())
	if err != nil {
		return nil, err
	}
	calldata, err := build(binding)
	if err != nil {
		return nil, err
	}
	out, err := s.reader.Read(ctx, chain, appAddr, calldata)
	if err != nil {
		return nil, fmt.Errorf("%s on %s: %w", method, chain.Name, err)
	}
	return binding.DecodeUint(method, out)
}

// CreateProposalTotal sums the source messaging fee and the protocol fee: the
// value to attach to a createProposal transaction.
func (s *FeeService) CreateProposalTotal(ctx context.Context, source *registry.ChainDescriptor) (*big.Int, error) {
	appAddr, err := source.Contract(registry.ContractEquitoVote)
	if err != nil {
		return nil, err
	}
	messaging, err := s.MessagingFee(ctx, source, appAddr)
	if err != nil {
		return nil, err
	}
	protocol, err := s.votingAppFee(ctx, source, (*contracts.EquitoVoteBinding).BuildProtocolFeeCalldata, "protocolFee")
	if err != nil {
		return nil, err
	}
	return new(big.Int).Add(messaging, protocol), nil
}

// VoteTotal sums the source messaging fee and the vote fee: the value to
// attach to a voteOnProposal transaction.
func (s *FeeService) VoteTotal(ctx context.Context, source *registry.ChainDescriptor) (*big.Int, error) {
	appAddr, err := source.Contract(registry.ContractEquitoVote)
	if err != nil {
		return nil, err
	}
	messaging, err := s.MessagingFee(ctx, source, appAddr)
	if err != nil {
		return nil, err
	}
	voteFee, err := s.votingAppFee(ctx, source, (*contracts.EquitoVoteBinding).BuildVoteFeeCalldata, "voteOnProposalFee")
	if err != nil {
		return nil, err
	}
	return new(big.Int).Add(messaging, voteFee), nil
}

// DeliveryFee reads the destination messaging fee charged for delivering a
// message to the given app contract on the destination chain.
func (s *FeeService) DeliveryFee(ctx context.Context, app registry.ContractName) (*big.Int, error) {
	destination := s.reg.Destination()
	appAddr, err := destination.Contract(app)
	if err != nil {
		return nil, err
	}
	return s.MessagingFee(ctx, destination, appAddr)
}
