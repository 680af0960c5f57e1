package flows

import (
	"bytes"
	"context"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/equito-network/equitovote/x/gateway/contracts"
	"github.com/equito-network/equitovote/x/registry"
)

var (
	sourceVoteAddr = "0x00000000000000000000000000000000000000a1"
	destVoteAddr   = "0x00000000000000000000000000000000000000a2"
	sourceSwapAddr = "0x00000000000000000000000000000000000000a3"
	destSwapAddr   = "0x00000000000000000000000000000000000000a4"
	testRouterAddr = common.HexToAddress("0x00000000000000000000000000000000000000f1")
)

// wei converts a decimal ether string to wei.
func wei(s string) *big.Int {
	return decimal.RequireFromString(s).Shift(18).BigInt()
}

func uintWord(v *big.Int) []byte {
	return common.LeftPadBytes(v.Bytes(), 32)
}

type viewReader struct {
	// fees keyed by method selector hex for router/app views; router fee
	// differs per chain id
	routerFeeByChain map[uint64]*big.Int
	protocolFee      *big.Int
	voteFee          *big.Int
	bridgeFee        *big.Int

	selectors map[string][]byte
}

func (r *viewReader) Read(ctx context.Context, chain *registry.ChainDescriptor, to common.Address, calldata []byte) ([]byte, error) {
	sel := calldata[:4]
	switch {
	case bytes.Equal(sel, r.selectors["getFee"]):
		return uintWord(r.routerFeeByChain[chain.ChainID]), nil
	case bytes.Equal(sel, r.selectors["protocolFee"]):
		return uintWord(r.protocolFee), nil
	case bytes.Equal(sel, r.selectors["voteOnProposalFee"]):
		return uintWord(r.voteFee), nil
	case bytes.Equal(sel, r.selectors["bridgeFee"]):
		return uintWord(r.bridgeFee), nil
	default:
		return nil, nil
	}
}

func (r *viewReader) RouterAddress(ctx context.Context, chainSelector uint64) (common.Address, error) {
	return testRouterAddr, nil
}

func testSelectors(t *testing.T) map[string][]byte {
	t.Helper()
	router, err := contracts.NewRouterBinding(testRouterAddr)
	require.NoError(t, err)
	vote, err := contracts.NewEquitoVoteBinding(sourceVoteAddr)
	require.NoError(t, err)
	swap, err := contracts.NewSwapBinding(common.HexToAddress(sourceSwapAddr))
	require.NoError(t, err)
	bridgeFeeCalldata, err := swap.BuildBridgeFeeCalldata()
	require.NoError(t, err)
	return map[string][]byte{
		"getFee":            router.ABI().Methods["getFee"].ID,
		"protocolFee":       vote.ABI().Methods["protocolFee"].ID,
		"voteOnProposalFee": vote.ABI().Methods["voteOnProposalFee"].ID,
		"bridgeFee":         bridgeFeeCalldata[:4],
	}
}

func testBuilder(t *testing.T) (*Builder, *viewReader, *registry.Registry) {
	t.Helper()
	reg, err := registry.New([]registry.ChainDescriptor{
		{
			Name: "Alpha Testnet", ChainID: 1337, ChainSelector: 1001, NativeSymbol: "ETH",
			Contracts: map[registry.ContractName]string{
				registry.ContractEquitoVote: sourceVoteAddr,
				registry.ContractSwap:       sourceSwapAddr,
				registry.ContractPingPong:   "0x00000000000000000000000000000000000000b1",
			},
		},
		{
			Name: "Beta Testnet", ChainID: 1338, ChainSelector: 1004, NativeSymbol: "ETH",
			Contracts: map[registry.ContractName]string{
				registry.ContractEquitoVote: destVoteAddr,
				registry.ContractSwap:       destSwapAddr,
				registry.ContractPingPong:   "0x00000000000000000000000000000000000000b2",
			},
		},
	}, 1004)
	require.NoError(t, err)

	reader := &viewReader{
		routerFeeByChain: map[uint64]*big.Int{
			1337: wei("0.002"),
			1338: wei("0.001"),
		},
		protocolFee: wei("0.0015"),
		voteFee:     wei("0.0005"),
		bridgeFee:   wei("0.0001"),
		selectors:   testSelectors(t),
	}
	fees := NewFeeService(reader, reader, reg, zerolog.Nop())
	return NewBuilder(reg, fees, zerolog.Nop()), reader, reg
}

func TestScaleAmount(t *testing.T) {
	tests := []struct {
		amount   string
		decimals uint8
		want     *big.Int
		wantErr  bool
	}{
		{amount: "1", decimals: 18, want: wei("1")},
		{amount: "1.5", decimals: 18, want: wei("1.5")},
		{amount: "0.000001", decimals: 6, want: big.NewInt(1)},
		{amount: " 42 ", decimals: 0, want: big.NewInt(42)},
		{amount: "0", decimals: 18, wantErr: true},
		{amount: "-3", decimals: 18, wantErr: true},
		{amount: "1.2345", decimals: 2, wantErr: true},
		{amount: "abc", decimals: 18, wantErr: true},
	}
	for _, tc := range tests {
		t.Run(tc.amount, func(t *testing.T) {
			got, err := ScaleAmount(tc.amount, tc.decimals)
			if tc.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestFormatFee(t *testing.T) {
	assert.Equal(t, "0.00350000 ETH", FormatFee(wei("0.0035"), "ETH"))
	assert.Equal(t, "0.00000000 ETH", FormatFee(nil, "ETH"))
	assert.Equal(t, "1.50000000 BNB", FormatFee(wei("1.5"), "BNB"))
}

func TestProposalEndTimestamp(t *testing.T) {
	now := time.Unix(1_700_000_000, 999_000_000) // sub-second part dropped
	assert.Equal(t, big.NewInt(1_700_000_000+24*3600), ProposalEndTimestamp(now, 24))
}

func TestBuildCreateProposal(t *testing.T) {
	b, _, reg := testBuilder(t)
	source, err := reg.ByChainID(1337)
	require.NoError(t, err)

	action, err := b.BuildCreateProposal(context.Background(), source, CreateProposalInput{
		Title:         "Fund the grants program",
		Description:   "Q4 budget",
		TokenName:     "VoteSphere",
		DurationHours: 48,
	}, time.Unix(1_700_000_000, 0))
	require.NoError(t, err)

	assert.Equal(t, "create_proposal", action.Flow)
	assert.Equal(t, common.HexToAddress(sourceVoteAddr), action.To)
	// source messaging fee 0.002 + protocol fee 0.0015
	assert.Equal(t, wei("0.0035"), action.Value)
	assert.Equal(t, "0.00350000 ETH", FormatFee(action.Value, source.NativeSymbol))
	// destination messaging fee
	assert.Equal(t, wei("0.001"), action.DeliverValue)

	vote, err := contracts.NewEquitoVoteBinding(sourceVoteAddr)
	require.NoError(t, err)
	method := vote.ABI().Methods["createProposal"]
	require.Equal(t, method.ID, action.Calldata[:4])
	values, err := method.Inputs.Unpack(action.Calldata[4:])
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(1004), values[0])
	assert.Equal(t, big.NewInt(1_700_000_000+48*3600), values[1])
	assert.Equal(t, "Fund the grants program", values[2])
	assert.Equal(t, "VoteSphere", values[4])
	assert.Equal(t, big.NewInt(1001), values[5])
}

func TestBuildCreateProposalValidation(t *testing.T) {
	b, _, reg := testBuilder(t)
	source, err := reg.ByChainID(1337)
	require.NoError(t, err)

	_, err = b.BuildCreateProposal(context.Background(), source, CreateProposalInput{
		Title: "", TokenName: "VoteSphere", DurationHours: 1,
	}, time.Now())
	require.Error(t, err)

	_, err = b.BuildCreateProposal(context.Background(), source, CreateProposalInput{
		Title: "x", TokenName: "UnknownToken", DurationHours: 1,
	}, time.Now())
	require.Error(t, err)

	_, err = b.BuildCreateProposal(context.Background(), source, CreateProposalInput{
		Title: "x", TokenName: "VoteSphere", DurationHours: 0,
	}, time.Now())
	require.Error(t, err)
}

func TestBuildVote(t *testing.T) {
	b, _, reg := testBuilder(t)
	source, err := reg.ByChainID(1337)
	require.NoError(t, err)

	tokenAddr := common.HexToAddress("0x00000000000000000000000000000000000000e1")
	var proposalID [32]byte
	proposalID[31] = 7

	action, err := b.BuildVote(context.Background(), source, VoteInput{
		ProposalID:            proposalID,
		Amount:                "12.5",
		Option:                contracts.VoteYes,
		TokenAddress:          tokenAddr,
		TokenDecimals:         18,
		IsGetPastVotesEnabled: true,
	})
	require.NoError(t, err)

	assert.Equal(t, "vote", action.Flow)
	assert.True(t, action.SwitchBack)
	// source messaging fee 0.002 + vote fee 0.0005
	assert.Equal(t, wei("0.0025"), action.Value)
	assert.Equal(t, wei("0.001"), action.DeliverValue)

	vote, err := contracts.NewEquitoVoteBinding(sourceVoteAddr)
	require.NoError(t, err)
	method := vote.ABI().Methods["voteOnProposal"]
	require.Equal(t, method.ID, action.Calldata[:4])
	values, err := method.Inputs.Unpack(action.Calldata[4:])
	require.NoError(t, err)
	assert.Equal(t, proposalID, values[1])
	assert.Equal(t, wei("12.5"), values[2])
	assert.Equal(t, uint8(contracts.VoteYes), values[3])
	assert.Equal(t, tokenAddr, values[4])
	assert.Equal(t, true, values[5])
}

func TestBuildBridge(t *testing.T) {
	b, _, reg := testBuilder(t)
	source, err := reg.ByChainID(1337)
	require.NoError(t, err)

	action, err := b.BuildBridge(context.Background(), source, BridgeInput{
		TokenAddress:  common.HexToAddress("0x00000000000000000000000000000000000000e2"),
		TokenDecimals: 6,
		Amount:        "100",
	})
	require.NoError(t, err)

	assert.Equal(t, "bridge", action.Flow)
	assert.Equal(t, common.HexToAddress(sourceSwapAddr), action.To)
	// source messaging fee 0.002 + bridge fee 0.0001
	assert.Equal(t, wei("0.0021"), action.Value)
	assert.Equal(t, wei("0.001"), action.DeliverValue)
}

func TestBuildPing(t *testing.T) {
	b, _, reg := testBuilder(t)
	source, err := reg.ByChainID(1337)
	require.NoError(t, err)
	dest, err := reg.ByChainID(1338)
	require.NoError(t, err)

	action, err := b.BuildPing(context.Background(), source, dest, "hello equito")
	require.NoError(t, err)
	assert.Equal(t, "ping", action.Flow)
	assert.Equal(t, wei("0.002"), action.Value)
	assert.Equal(t, wei("0.001"), action.DeliverValue)
}
