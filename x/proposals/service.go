package proposals

import (
	"context"
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/rs/zerolog"

	"github.com/equito-network/equitovote/x/gateway"
	"github.com/equito-network/equitovote/x/gateway/contracts"
	"github.com/equito-network/equitovote/x/registry"
)

// Reader is the read-only gateway surface the service needs.
type Reader interface {
	Read(ctx context.Context, chain *registry.ChainDescriptor, to common.Address, calldata []byte) ([]byte, error)
}

// Writer covers the single-chain writes the service performs directly, such
// as vote-power delegation. These do not cross chains and bypass the
// orchestrator.
type Writer interface {
	SwitchNetwork(ctx context.Context, chainID uint64) error
	Write(ctx context.Context, req gateway.WriteRequest) (*gateway.WriteResult, error)
}

var (
	_ Reader = (*gateway.Gateway)(nil)
	_ Writer = (*gateway.Gateway)(nil)
)

// ListResult is one page of proposals.
type ListResult struct {
	Proposals  []Proposal `json:"proposals"`
	Page       uint64     `json:"page"`
	PageSize   uint64     `json:"page_size"`
	Total      uint64     `json:"total"`
	TotalPages uint64     `json:"total_pages"`
}

// VotingPower is a user's voting capacity on one proposal.
type VotingPower struct {
	// Delegated is the checkpointed vote weight, in token base units.
	Delegated *big.Int `json:"delegated"`
	// AlreadyVoted is the amount already spent on this proposal.
	AlreadyVoted *big.Int `json:"already_voted"`
	// Available is Delegated minus AlreadyVoted, floored at zero.
	Available *big.Int `json:"available"`
	// Decimals is the token's display precision.
	Decimals uint8 `json:"decimals"`
	// IsGetPastVotesEnabled tells the vote flow which historical lookup
	// convention the token supports.
	IsGetPastVotesEnabled bool `json:"is_get_past_votes_enabled"`
}

// Service reads canonical proposal state from the destination chain and
// keeps a small optimistic overlay that fresh chain reads replace.
type Service struct {
	reader  Reader
	writer  Writer
	reg     *registry.Registry
	binding *contracts.EquitoVoteBinding
	log     zerolog.Logger

	mu    sync.Mutex
	cache map[common.Hash]Proposal
}

// NewService creates a proposal service bound to the destination chain's
// EquitoVote contract.
func NewService(reader Reader, writer Writer, reg *registry.Registry, logger zerolog.Logger) (*Service, error) {
	destination := reg.Destination()
	appAddr, err := destination.Contract(registry.ContractEquitoVote)
	if err != nil {
		return nil, err
	}
	binding, err := contracts.NewEquitoVoteBinding(appAddr.Hex())
	if err != nil {
		return nil, err
	}
	return &Service{
		reader:  reader,
		writer:  writer,
		reg:     reg,
		binding: binding,
		log:     logger.With().Str("component", "proposals").Logger(),
		cache:   make(map[common.Hash]Proposal),
	}, nil
}

func (s *Service) destination() *registry.ChainDescriptor {
	return s.reg.Destination()
}

func (s *Service) readDestination(ctx context.Context, calldata []byte) ([]byte, error) {
	return s.reader.Read(ctx, s.destination(), s.binding.Address(), calldata)
}

// Count returns the total number of proposals.
func (s *Service) Count(ctx context.Context) (uint64, error) {
	calldata, err := s.binding.BuildProposalIdsLengthCalldata()
	if err != nil {
		return 0, err
	}
	out, err := s.readDestination(ctx, calldata)
	if err != nil {
		return 0, fmt.Errorf("proposal count: %w", err)
	}
	length, err := s.binding.DecodeUint("getProposalIdsLength", out)
	if err != nil {
		return 0, err
	}
	return length.Uint64(), nil
}

// List returns one page of proposals, newest layout as stored on-chain. The
// slice window is [page*pageSize, min((page+1)*pageSize, total)); pages past
// the end are empty, not errors.
func (s *Service) List(ctx context.Context, page, pageSize uint64) (ListResult, error) {
	if pageSize == 0 {
		return ListResult{}, fmt.Errorf("page size must be positive")
	}
	total, err := s.Count(ctx)
	if err != nil {
		return ListResult{}, err
	}

	result := ListResult{
		Page:       page,
		PageSize:   pageSize,
		Total:      total,
		TotalPages: (total + pageSize - 1) / pageSize,
	}
	start := page * pageSize
	if start >= total {
		return result, nil
	}
	end := start + pageSize
	if end > total {
		end = total
	}

	calldata, err := s.binding.BuildProposalsSliceCalldata(
		new(big.Int).SetUint64(start), new(big.Int).SetUint64(end))
	if err != nil {
		return ListResult{}, err
	}
	out, err := s.readDestination(ctx, calldata)
	if err != nil {
		return ListResult{}, fmt.Errorf("proposals slice [%d,%d): %w", start, end, err)
	}
	records, err := s.binding.DecodeProposalsSlice(out)
	if err != nil {
		return ListResult{}, err
	}

	result.Proposals = make([]Proposal, 0, len(records))
	s.mu.Lock()
	for _, rec := range records {
		p := FromRecord(rec)
		// fresh chain state replaces any optimistic overlay
		s.cache[p.ID] = p
		result.Proposals = append(result.Proposals, p)
	}
	s.mu.Unlock()
	return result, nil
}

// Get returns one proposal fresh from the chain, replacing any optimistic
// overlay for it.
func (s *Service) Get(ctx context.Context, id common.Hash) (Proposal, error) {
	calldata, err := s.binding.BuildProposalCalldata(id)
	if err != nil {
		return Proposal{}, err
	}
	out, err := s.readDestination(ctx, calldata)
	if err != nil {
		return Proposal{}, fmt.Errorf("proposal %s: %w", id.Hex(), err)
	}
	rec, err := s.binding.DecodeProposal(out)
	if err != nil {
		return Proposal{}, err
	}
	p := FromRecord(rec)
	if !p.Exists() {
		return Proposal{}, fmt.Errorf("proposal %s not found", id.Hex())
	}
	s.mu.Lock()
	s.cache[p.ID] = p
	s.mu.Unlock()
	return p, nil
}

// GetLocal returns the cached view of a proposal, including any optimistic
// vote not yet visible on-chain.
func (s *Service) GetLocal(id common.Hash) (Proposal, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.cache[id]
	return p, ok
}

// ApplyOptimisticVote bumps the local tally after a vote operation completes,
// so the result is visible before the destination chain read catches up.
func (s *Service) ApplyOptimisticVote(id common.Hash, option contracts.VoteOption, amount *big.Int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.cache[id]
	if !ok {
		return
	}
	p.ApplyVote(option, amount)
	s.cache[id] = p
}

// UserVotes returns the amount the user already voted on a proposal.
func (s *Service) UserVotes(ctx context.Context, user common.Address, id common.Hash) (*big.Int, error) {
	calldata, err := s.binding.BuildUserVotesCalldata(user, id)
	if err != nil {
		return nil, err
	}
	out, err := s.readDestination(ctx, calldata)
	if err != nil {
		return nil, fmt.Errorf("user votes: %w", err)
	}
	return s.binding.DecodeUint("userVotes", out)
}

// TokenAddress resolves a governance token's deployment on the chain with
// the given selector, from the destination contract's token registry.
func (s *Service) TokenAddress(ctx context.Context, tokenName string, chainSelector uint64) (common.Address, error) {
	calldata, err := s.binding.BuildTokenDataCalldata(tokenName, new(big.Int).SetUint64(chainSelector))
	if err != nil {
		return common.Address{}, err
	}
	out, err := s.readDestination(ctx, calldata)
	if err != nil {
		return common.Address{}, fmt.Errorf("token data for %s: %w", tokenName, err)
	}
	addr, err := s.binding.DecodeAddress("tokenData", out)
	if err != nil {
		return common.Address{}, err
	}
	if addr == (common.Address{}) {
		return common.Address{}, fmt.Errorf("token %s has no deployment on selector %d", tokenName, chainSelector)
	}
	return addr, nil
}

// TokenNames lists the governance tokens registered on the destination
// contract.
func (s *Service) TokenNames(ctx context.Context) ([]string, error) {
	lengthCalldata, err := s.binding.BuildTokenNamesLengthCalldata()
	if err != nil {
		return nil, err
	}
	out, err := s.readDestination(ctx, lengthCalldata)
	if err != nil {
		return nil, fmt.Errorf("token names length: %w", err)
	}
	length, err := s.binding.DecodeUint("getTokenNamesLength", out)
	if err != nil {
		return nil, err
	}
	if length.Sign() == 0 {
		return nil, nil
	}

	sliceCalldata, err := s.binding.BuildTokenNamesSliceCalldata(new(big.Int), length)
	if err != nil {
		return nil, err
	}
	out, err = s.readDestination(ctx, sliceCalldata)
	if err != nil {
		return nil, fmt.Errorf("token names slice: %w", err)
	}
	return s.binding.DecodeTokenNames(out)
}

// TokenDecimals reads a token's display precision on the given chain.
func (s *Service) TokenDecimals(ctx context.Context, chain *registry.ChainDescriptor, token common.Address) (uint8, error) {
	binding, err := contracts.NewERC20VotesBinding(token)
	if err != nil {
		return 0, err
	}
	calldata, err := binding.BuildDecimalsCalldata()
	if err != nil {
		return 0, err
	}
	out, err := s.reader.Read(ctx, chain, token, calldata)
	if err != nil {
		return 0, fmt.Errorf("token decimals: %w", err)
	}
	return binding.DecodeDecimals(out)
}

// VotingPowerFor computes the user's voting capacity on a proposal, using the
// token's clock convention for the historical lookup: block number or
// timestamp from the proposal's start, or the live balance when the token
// keeps no checkpoints.
func (s *Service) VotingPowerFor(ctx context.Context, source *registry.ChainDescriptor, token common.Address, user common.Address, p Proposal) (VotingPower, error) {
	binding, err := contracts.NewERC20VotesBinding(token)
	if err != nil {
		return VotingPower{}, err
	}

	decimalsCalldata, err := binding.BuildDecimalsCalldata()
	if err != nil {
		return VotingPower{}, err
	}
	out, err := s.reader.Read(ctx, source, token, decimalsCalldata)
	if err != nil {
		return VotingPower{}, fmt.Errorf("token decimals: %w", err)
	}
	decimals, err := binding.DecodeDecimals(out)
	if err != nil {
		return VotingPower{}, err
	}

	delegated, pastVotesEnabled, err := s.delegatedVotes(ctx, source, binding, user, p)
	if err != nil {
		return VotingPower{}, err
	}
	alreadyVoted, err := s.UserVotes(ctx, user, p.ID)
	if err != nil {
		return VotingPower{}, err
	}

	available := new(big.Int).Sub(delegated, alreadyVoted)
	if available.Sign() < 0 {
		available = new(big.Int)
	}
	return VotingPower{
		Delegated:             delegated,
		AlreadyVoted:          alreadyVoted,
		Available:             available,
		Decimals:              decimals,
		IsGetPastVotesEnabled: pastVotesEnabled,
	}, nil
}

// delegatedVotes picks the lookup the token supports. A token advertising a
// block-number clock is queried at the proposal's start block, a timestamp
// clock at the start timestamp. Tokens without CLOCK_MODE fall back to the
// live getVotes value.
func (s *Service) delegatedVotes(ctx context.Context, source *registry.ChainDescriptor, binding *contracts.ERC20VotesBinding, user common.Address, p Proposal) (*big.Int, bool, error) {
	clockCalldata, err := binding.BuildClockModeCalldata()
	if err != nil {
		return nil, false, err
	}
	out, err := s.reader.Read(ctx, source, binding.Address(), clockCalldata)
	if err != nil {
		// no ERC-6372 clock, use the live delegated balance
		votes, verr := s.tokenUint(ctx, source, binding, func() ([]byte, error) {
			return binding.BuildGetVotesCalldata(user)
		}, "getVotes")
		return votes, false, verr
	}
	mode, err := binding.DecodeClockMode(out)
	if err != nil {
		return nil, false, err
	}

	timepoint := new(big.Int).SetUint64(p.StartTimestamp)
	if mode == contracts.ClockModeBlockNumber {
		timepoint = new(big.Int).SetUint64(p.StartBlockNumber)
	}
	votes, err := s.tokenUint(ctx, source, binding, func() ([]byte, error) {
		return binding.BuildGetPastVotesCalldata(user, timepoint)
	}, "getPastVotes")
	return votes, true, err
}

func (s *Service) tokenUint(ctx context.Context, source *registry.ChainDescriptor, binding *contracts.ERC20VotesBinding, build func() ([]byte, error), method string) (*big.Int, error) {
	calldata, err := build()
	if err != nil {
		return nil, err
	}
	out, err := s.reader.Read(ctx, source, binding.Address(), calldata)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", method, err)
	}
	return binding.DecodeUint(method, out)
}

// Delegate performs the self-delegation a token requires before its balance
// counts as voting power. This is a single-chain write on the source network.
func (s *Service) Delegate(ctx context.Context, source *registry.ChainDescriptor, token common.Address, delegatee common.Address) (*gateway.WriteResult, error) {
	binding, err := contracts.NewERC20VotesBinding(token)
	if err != nil {
		return nil, err
	}
	calldata, err := binding.BuildDelegateCalldata(delegatee)
	if err != nil {
		return nil, err
	}
	if err := s.writer.SwitchNetwork(ctx, source.ChainID); err != nil {
		return nil, err
	}
	return s.writer.Write(ctx, gateway.WriteRequest{
		Chain:    source,
		To:       token,
		Calldata: calldata,
	})
}

// SetTokenData registers a governance token's deployment for a selector on
// the destination contract. Management operation, destination-chain write.
func (s *Service) SetTokenData(ctx context.Context, tokenName string, chainSelector uint64, token common.Address) (*gateway.WriteResult, error) {
	calldata, err := s.binding.BuildSetTokenDataCalldata(tokenName, new(big.Int).SetUint64(chainSelector), token)
	if err != nil {
		return nil, err
	}
	destination := s.destination()
	if err := s.writer.SwitchNetwork(ctx, destination.ChainID); err != nil {
		return nil, err
	}
	return s.writer.Write(ctx, gateway.WriteRequest{
		Chain:    destination,
		To:       s.binding.Address(),
		Calldata: calldata,
	})
}
