package faucet

import (
	"context"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/equito-network/equitovote/x/gateway"
	"github.com/equito-network/equitovote/x/registry"
)

type mockChain struct {
	writes   []gateway.WriteRequest
	switched []uint64
	readOut  []byte
}

func (m *mockChain) Read(ctx context.Context, chain *registry.ChainDescriptor, to common.Address, calldata []byte) ([]byte, error) {
	return m.readOut, nil
}

func (m *mockChain) SwitchNetwork(ctx context.Context, chainID uint64) error {
	m.switched = append(m.switched, chainID)
	return nil
}

func (m *mockChain) Write(ctx context.Context, req gateway.WriteRequest) (*gateway.WriteResult, error) {
	m.writes = append(m.writes, req)
	return &gateway.WriteResult{TxHash: common.HexToHash("0x01"), BlockNumber: big.NewInt(1)}, nil
}

func testSetup(t *testing.T) (*Service, *mockChain, *registry.ChainDescriptor) {
	t.Helper()
	reg, err := registry.New([]registry.ChainDescriptor{
		{
			Name: "Alpha Testnet", ChainID: 1337, ChainSelector: 1004, NativeSymbol: "ETH",
			Contracts: map[registry.ContractName]string{
				registry.ContractFaucet:  "0x00000000000000000000000000000000000000c1",
				registry.TokenVoteSphere: "0x00000000000000000000000000000000000000e1",
			},
		},
	}, 1004)
	require.NoError(t, err)

	chain, err := reg.ByChainID(1337)
	require.NoError(t, err)

	mock := &mockChain{readOut: common.LeftPadBytes(big.NewInt(1000).Bytes(), 32)}
	return NewService(mock, mock, reg, zerolog.Nop()), mock, chain
}

func TestRequestTokens(t *testing.T) {
	svc, mock, chain := testSetup(t)

	result, err := svc.Request(context.Background(), chain, "VoteSphere")
	require.NoError(t, err)
	require.NotNil(t, result)

	assert.Equal(t, []uint64{1337}, mock.switched)
	require.Len(t, mock.writes, 1)
	assert.Equal(t, common.HexToAddress("0x00000000000000000000000000000000000000c1"), mock.writes[0].To)
	// token address rides in the calldata
	assert.Contains(t, common.Bytes2Hex(mock.writes[0].Calldata), "e1")
}

func TestRequestUnknownToken(t *testing.T) {
	svc, mock, chain := testSetup(t)

	_, err := svc.Request(context.Background(), chain, "NoSuchToken")
	require.Error(t, err)
	assert.Empty(t, mock.writes)
}

func TestRequestTokenMissingOnChain(t *testing.T) {
	svc, mock, chain := testSetup(t)

	// MetaQuorum is a known token but has no deployment on this chain
	_, err := svc.Request(context.Background(), chain, "MetaQuorum")
	require.Error(t, err)
	assert.Empty(t, mock.writes)
}

func TestDripAmount(t *testing.T) {
	svc, _, chain := testSetup(t)

	amount, err := svc.DripAmount(context.Background(), chain)
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(1000), amount)
}
