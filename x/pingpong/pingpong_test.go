package pingpong

import (
	"bytes"
	"context"
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/equito-network/equitovote/x/flows"
	"github.com/equito-network/equitovote/x/gateway"
	"github.com/equito-network/equitovote/x/gateway/contracts"
	"github.com/equito-network/equitovote/x/orchestrator"
	"github.com/equito-network/equitovote/x/registry"
	"github.com/equito-network/equitovote/x/relay"
)

var routerAddr = common.HexToAddress("0x00000000000000000000000000000000000000f1")

// harness wires mock chain and relay surfaces for a full round trip.
type harness struct {
	t          *testing.T
	logsByCall [][]*types.Log
	writes     []gateway.WriteRequest
	writeErrAt int // 1-based call index that fails, 0 disables
	proofCalls int
}

func (h *harness) SwitchNetwork(ctx context.Context, chainID uint64) error { return nil }

func (h *harness) Write(ctx context.Context, req gateway.WriteRequest) (*gateway.WriteResult, error) {
	call := len(h.writes) + 1
	if h.writeErrAt != 0 && call == h.writeErrAt {
		return nil, errors.New("rpc unavailable")
	}
	h.writes = append(h.writes, req)
	var logs []*types.Log
	if call <= len(h.logsByCall) {
		logs = h.logsByCall[call-1]
	}
	return &gateway.WriteResult{
		TxHash:      common.BytesToHash([]byte{byte(call)}),
		BlockNumber: big.NewInt(int64(100 + call)),
		Logs:        logs,
	}, nil
}

func (h *harness) BlockTimestamp(ctx context.Context, chain *registry.ChainDescriptor, blockNumber *big.Int) (uint64, error) {
	return 1_700_000_000, nil
}

func (h *harness) Read(ctx context.Context, chain *registry.ChainDescriptor, to common.Address, calldata []byte) ([]byte, error) {
	// the only reads in this flow are router getFee calls
	router, err := contracts.NewRouterBinding(routerAddr)
	require.NoError(h.t, err)
	if !bytes.Equal(calldata[:4], router.ABI().Methods["getFee"].ID) {
		h.t.Fatalf("unexpected read selector %x", calldata[:4])
	}
	return common.LeftPadBytes(big.NewInt(1000).Bytes(), 32), nil
}

// proofSourceImpl satisfies orchestrator.ProofSource and the fee service's
// router resolver.
type proofSourceImpl struct {
	h *harness
}

func (p *proofSourceImpl) WaitForProof(ctx context.Context, req relay.ProofRequest) (*relay.DeliveryProof, error) {
	p.h.proofCalls++
	return &relay.DeliveryProof{Proof: []byte{0xaa, 0xbb}}, nil
}

func (p *proofSourceImpl) RouterAddress(ctx context.Context, chainSelector uint64) (common.Address, error) {
	return routerAddr, nil
}

func messageLog(t *testing.T, sourceSelector, destSelector int64, payload string) *types.Log {
	t.Helper()
	msg := contracts.EquitoMessage{
		BlockNumber:              big.NewInt(100),
		SourceChainSelector:      big.NewInt(sourceSelector),
		DestinationChainSelector: big.NewInt(destSelector),
		HashedData:               common.HexToHash("0x01"),
	}
	binding, err := contracts.NewRouterBinding(routerAddr)
	require.NoError(t, err)
	event := binding.ABI().Events["MessageSendRequested"]
	data, err := event.Inputs.Pack(msg, []byte(payload))
	require.NoError(t, err)
	return &types.Log{Topics: []common.Hash{event.ID}, Data: data}
}

func testRegistry(t *testing.T) *registry.Registry {
	t.Helper()
	reg, err := registry.New([]registry.ChainDescriptor{
		{
			Name: "Alpha Testnet", ChainID: 1337, ChainSelector: 1001, NativeSymbol: "ETH",
			Contracts: map[registry.ContractName]string{
				registry.ContractPingPong: "0x00000000000000000000000000000000000000b1",
			},
		},
		{
			Name: "Beta Testnet", ChainID: 1338, ChainSelector: 1004, NativeSymbol: "ETH",
			Contracts: map[registry.ContractName]string{
				registry.ContractPingPong: "0x00000000000000000000000000000000000000b2",
			},
		},
	}, 1004)
	require.NoError(t, err)
	return reg
}

func testService(t *testing.T, h *harness) (*Service, *registry.Registry) {
	t.Helper()
	reg := testRegistry(t)
	proofs := &proofSourceImpl{h: h}
	orch, err := orchestrator.New(h, proofs, reg, zerolog.Nop())
	require.NoError(t, err)
	fees := flows.NewFeeService(h, proofs, reg, zerolog.Nop())
	builder := flows.NewBuilder(reg, fees, zerolog.Nop())
	return NewService(orch, builder, fees, h, reg, zerolog.Nop()), reg
}

func TestRunFullRoundTrip(t *testing.T) {
	pingLog := messageLog(t, 1001, 1004, "ping: hello")
	pongLog := messageLog(t, 1004, 1001, "pong: hello")
	h := &harness{
		t: t,
		logsByCall: [][]*types.Log{
			{pingLog}, // ping base tx on source
			{pongLog}, // ping delivery emits the pong message
			nil,       // pong delivery
		},
	}
	svc, reg := testService(t, h)
	source, err := reg.ByChainID(1337)
	require.NoError(t, err)
	dest, err := reg.ByChainID(1338)
	require.NoError(t, err)

	var statuses []Status
	result, err := svc.Run(context.Background(), source, dest, "hello",
		func(status Status) { statuses = append(statuses, status) })
	require.NoError(t, err)

	assert.True(t, result.RoundTripOK)
	assert.NotEmpty(t, result.PingTxHash)
	assert.NotEmpty(t, result.PingDelivery)
	assert.NotEmpty(t, result.PongDelivery)
	assert.Equal(t, StatusCompleted, svc.Status())

	// three writes total: ping base, ping delivery, pong delivery
	require.Len(t, h.writes, 3)
	assert.Equal(t, uint64(1337), h.writes[0].Chain.ChainID)
	assert.Equal(t, uint64(1338), h.writes[1].Chain.ChainID)
	assert.Equal(t, uint64(1337), h.writes[2].Chain.ChainID)
	// two proofs: one per direction
	assert.Equal(t, 2, h.proofCalls)

	// the pong half never repeats the ping statuses
	assert.Equal(t, []Status{
		StatusSendingPing,
		StatusSendingPing,
		StatusSendingPing,
		StatusApprovingSentPing,
		StatusDeliveringPingAndSendingPong,
		StatusApprovingSentPong,
		StatusDeliveringPong,
		StatusCompleted,
	}, statuses)
}

func TestRunFailureReportsError(t *testing.T) {
	pingLog := messageLog(t, 1001, 1004, "ping: hello")
	h := &harness{
		t:          t,
		logsByCall: [][]*types.Log{{pingLog}},
		writeErrAt: 2, // ping delivery fails
	}
	svc, reg := testService(t, h)
	source, err := reg.ByChainID(1337)
	require.NoError(t, err)
	dest, err := reg.ByChainID(1338)
	require.NoError(t, err)

	result, err := svc.Run(context.Background(), source, dest, "hello")
	require.Error(t, err)
	assert.False(t, result.RoundTripOK)
	assert.NotEmpty(t, result.FailureReason)
	assert.Equal(t, StatusError, svc.Status())
}
