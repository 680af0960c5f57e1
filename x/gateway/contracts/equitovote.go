package contracts

import (
	_ "embed"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
)

// EquitoVote ABI JSON embedded at compile time
//
//go:embed abi/equito_vote.json
var equitoVoteABIJSON string

// ProposalRecord matches the Solidity Proposal struct stored by the
// EquitoVote contract. Field order follows the on-chain tuple layout.
type ProposalRecord struct {
	StartTimestamp      *big.Int
	EndTimestamp        *big.Int
	NumVotesYes         *big.Int
	NumVotesNo          *big.Int
	NumVotesAbstain     *big.Int
	Title               string
	Description         string
	Id                  [32]byte
	TokenName           string
	StartBlockNumber    *big.Int
	OriginChainSelector *big.Int
}

// VoteOption enumerates the vote choices understood by the contract.
type VoteOption uint8

const (
	VoteYes     VoteOption = 0
	VoteNo      VoteOption = 1
	VoteAbstain VoteOption = 2
)

func (v VoteOption) String() string {
	switch v {
	case VoteYes:
		return "yes"
	case VoteNo:
		return "no"
	case VoteAbstain:
		return "abstain"
	default:
		return fmt.Sprintf("VoteOption(%d)", uint8(v))
	}
}

// EquitoVoteBinding wraps the EquitoVote application contract deployed on one
// chain.
type EquitoVoteBinding struct {
	address common.Address
	abi     abi.ABI
}

// NewEquitoVoteBinding creates a binding for the EquitoVote contract at the
// given address.
func NewEquitoVoteBinding(contractAddr string) (*EquitoVoteBinding, error) {
	if strings.TrimSpace(contractAddr) == "" {
		return nil, fmt.Errorf("contract address cannot be empty")
	}
	parsedABI, err := abi.JSON(strings.NewReader(equitoVoteABIJSON))
	if err != nil {
		return nil, fmt.Errorf("failed to parse EquitoVote ABI: %w", err)
	}
	return &EquitoVoteBinding{
		address: common.HexToAddress(contractAddr),
		abi:     parsedABI,
	}, nil
}

// Address returns the EquitoVote contract address.
func (b *EquitoVoteBinding) Address() common.Address {
	return b.address
}

// ABI returns the parsed contract ABI.
func (b *EquitoVoteBinding) ABI() abi.ABI {
	return b.abi
}

// BuildCreateProposalCalldata encodes createProposal. The attached value must
// cover the source messaging fee plus the protocol fee.
func (b *EquitoVoteBinding) BuildCreateProposalCalldata(
	destinationSelector *big.Int,
	endTimestamp *big.Int,
	title string,
	description string,
	tokenName string,
	originSelector *big.Int,
) ([]byte, error) {
	if title == "" {
		return nil, fmt.Errorf("title cannot be empty")
	}
	data, err := b.abi.Pack("createProposal",
		destinationSelector, endTimestamp, title, description, tokenName, originSelector)
	if err != nil {
		return nil, fmt.Errorf("failed to pack createProposal calldata: %w", err)
	}
	return data, nil
}

// BuildVoteCalldata encodes voteOnProposal. The attached value must cover the
// source messaging fee plus the vote fee.
func (b *EquitoVoteBinding) BuildVoteCalldata(
	destinationSelector *big.Int,
	proposalID [32]byte,
	numVotes *big.Int,
	option VoteOption,
	tokenAddress common.Address,
	isGetPastVotesEnabled bool,
) ([]byte, error) {
	if numVotes == nil || numVotes.Sign() <= 0 {
		return nil, fmt.Errorf("vote amount must be positive")
	}
	data, err := b.abi.Pack("voteOnProposal",
		destinationSelector, proposalID, numVotes, uint8(option), tokenAddress, isGetPastVotesEnabled)
	if err != nil {
		return nil, fmt.Errorf("failed to pack voteOnProposal calldata: %w", err)
	}
	return data, nil
}

// BuildSetTokenDataCalldata encodes setTokenData, registering a governance
// token address for a chain selector.
func (b *EquitoVoteBinding) BuildSetTokenDataCalldata(
	tokenName string,
	chainSelector *big.Int,
	tokenAddress common.Address,
) ([]byte, error) {
	data, err := b.abi.Pack("setTokenData", tokenName, chainSelector, tokenAddress)
	if err != nil {
		return nil, fmt.Errorf("failed to pack setTokenData calldata: %w", err)
	}
	return data, nil
}

// View-call encoders. Each has a matching Decode method.

func (b *EquitoVoteBinding) BuildProtocolFeeCalldata() ([]byte, error) {
	return b.pack("protocolFee")
}

func (b *EquitoVoteBinding) BuildVoteFeeCalldata() ([]byte, error) {
	return b.pack("voteOnProposalFee")
}

func (b *EquitoVoteBinding) BuildProposalIdsLengthCalldata() ([]byte, error) {
	return b.pack("getProposalIdsLength")
}

func (b *EquitoVoteBinding) BuildProposalsSliceCalldata(start, end *big.Int) ([]byte, error) {
	return b.pack("getProposalsSlice", start, end)
}

func (b *EquitoVoteBinding) BuildProposalCalldata(id [32]byte) ([]byte, error) {
	return b.pack("proposals", id)
}

func (b *EquitoVoteBinding) BuildUserVotesCalldata(user common.Address, id [32]byte) ([]byte, error) {
	return b.pack("userVotes", user, id)
}

func (b *EquitoVoteBinding) BuildTokenDataCalldata(tokenName string, chainSelector *big.Int) ([]byte, error) {
	return b.pack("tokenData", tokenName, chainSelector)
}

func (b *EquitoVoteBinding) BuildTokenNamesLengthCalldata() ([]byte, error) {
	return b.pack("getTokenNamesLength")
}

func (b *EquitoVoteBinding) BuildTokenNamesSliceCalldata(start, end *big.Int) ([]byte, error) {
	return b.pack("getTokenNamesSlice", start, end)
}

func (b *EquitoVoteBinding) DecodeUint(method string, output []byte) (*big.Int, error) {
	values, err := b.abi.Unpack(method, output)
	if err != nil {
		return nil, fmt.Errorf("failed to unpack %s output: %w", method, err)
	}
	v, ok := values[0].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("unexpected %s output type %T", method, values[0])
	}
	return v, nil
}

func (b *EquitoVoteBinding) DecodeAddress(method string, output []byte) (common.Address, error) {
	values, err := b.abi.Unpack(method, output)
	if err != nil {
		return common.Address{}, fmt.Errorf("failed to unpack %s output: %w", method, err)
	}
	addr, ok := values[0].(common.Address)
	if !ok {
		return common.Address{}, fmt.Errorf("unexpected %s output type %T", method, values[0])
	}
	return addr, nil
}

// DecodeProposal decodes the proposals(id) return value.
func (b *EquitoVoteBinding) DecodeProposal(output []byte) (ProposalRecord, error) {
	values, err := b.abi.Unpack("proposals", output)
	if err != nil {
		return ProposalRecord{}, fmt.Errorf("failed to unpack proposals output: %w", err)
	}
	rec := *abi.ConvertType(values[0], new(ProposalRecord)).(*ProposalRecord)
	return rec, nil
}

// DecodeProposalsSlice decodes the getProposalsSlice return value.
func (b *EquitoVoteBinding) DecodeProposalsSlice(output []byte) ([]ProposalRecord, error) {
	values, err := b.abi.Unpack("getProposalsSlice", output)
	if err != nil {
		return nil, fmt.Errorf("failed to unpack getProposalsSlice output: %w", err)
	}
	recs := *abi.ConvertType(values[0], new([]ProposalRecord)).(*[]ProposalRecord)
	return recs, nil
}

// DecodeTokenNames decodes the getTokenNamesSlice return value.
func (b *EquitoVoteBinding) DecodeTokenNames(output []byte) ([]string, error) {
	values, err := b.abi.Unpack("getTokenNamesSlice", output)
	if err != nil {
		return nil, fmt.Errorf("failed to unpack getTokenNamesSlice output: %w", err)
	}
	names, ok := values[0].([]string)
	if !ok {
		return nil, fmt.Errorf("unexpected getTokenNamesSlice output type %T", values[0])
	}
	return names, nil
}

func (b *EquitoVoteBinding) pack(method string, args ...interface{}) ([]byte, error) {
	data, err := b.abi.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to pack %s calldata: %w", method, err)
	}
	return data, nil
}
