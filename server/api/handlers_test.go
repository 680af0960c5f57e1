package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math/big"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/equito-network/equitovote/x/flows"
	"github.com/equito-network/equitovote/x/gateway"
	"github.com/equito-network/equitovote/x/gateway/contracts"
	"github.com/equito-network/equitovote/x/orchestrator"
	"github.com/equito-network/equitovote/x/pingpong"
	"github.com/equito-network/equitovote/x/proposals"
	"github.com/equito-network/equitovote/x/registry"
)

type appliedVote struct {
	id     common.Hash
	option contracts.VoteOption
	amount *big.Int
}

type mockStore struct {
	mu        sync.Mutex
	list      proposals.ListResult
	listCalls [][2]uint64
	byID      map[common.Hash]proposals.Proposal
	power     proposals.VotingPower
	tokenAddr common.Address
	decimals  uint8
	names     []string
	delegated []common.Address
	applied   []appliedVote
}

func (m *mockStore) List(ctx context.Context, page, pageSize uint64) (proposals.ListResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listCalls = append(m.listCalls, [2]uint64{page, pageSize})
	return m.list, nil
}

func (m *mockStore) Get(ctx context.Context, id common.Hash) (proposals.Proposal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.byID[id]
	if !ok {
		return proposals.Proposal{}, fmt.Errorf("proposal %s not found", id.Hex())
	}
	return p, nil
}

func (m *mockStore) TokenNames(ctx context.Context) ([]string, error) {
	return m.names, nil
}

func (m *mockStore) TokenAddress(ctx context.Context, tokenName string, chainSelector uint64) (common.Address, error) {
	if m.tokenAddr == (common.Address{}) {
		return common.Address{}, fmt.Errorf("token %s has no deployment on selector %d", tokenName, chainSelector)
	}
	return m.tokenAddr, nil
}

func (m *mockStore) TokenDecimals(ctx context.Context, chain *registry.ChainDescriptor, token common.Address) (uint8, error) {
	return m.decimals, nil
}

func (m *mockStore) VotingPowerFor(ctx context.Context, source *registry.ChainDescriptor, token, user common.Address, p proposals.Proposal) (proposals.VotingPower, error) {
	return m.power, nil
}

func (m *mockStore) Delegate(ctx context.Context, source *registry.ChainDescriptor, token, delegatee common.Address) (*gateway.WriteResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.delegated = append(m.delegated, delegatee)
	return &gateway.WriteResult{TxHash: common.HexToHash("0xd1"), BlockNumber: big.NewInt(9)}, nil
}

func (m *mockStore) ApplyOptimisticVote(id common.Hash, option contracts.VoteOption, amount *big.Int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.applied = append(m.applied, appliedVote{id: id, option: option, amount: amount})
}

type mockBuilder struct {
	mu        sync.Mutex
	proposals []flows.CreateProposalInput
	votes     []flows.VoteInput
	bridges   []flows.BridgeInput
}

func (m *mockBuilder) BuildCreateProposal(ctx context.Context, source *registry.ChainDescriptor, in flows.CreateProposalInput, now time.Time) (orchestrator.BaseAction, error) {
	if in.Title == "" {
		return orchestrator.BaseAction{}, fmt.Errorf("title is required")
	}
	m.mu.Lock()
	m.proposals = append(m.proposals, in)
	m.mu.Unlock()
	return orchestrator.BaseAction{Flow: "create_proposal", Source: source}, nil
}

func (m *mockBuilder) BuildVote(ctx context.Context, source *registry.ChainDescriptor, in flows.VoteInput) (orchestrator.BaseAction, error) {
	m.mu.Lock()
	m.votes = append(m.votes, in)
	m.mu.Unlock()
	return orchestrator.BaseAction{Flow: "vote", Source: source}, nil
}

func (m *mockBuilder) BuildBridge(ctx context.Context, source *registry.ChainDescriptor, in flows.BridgeInput) (orchestrator.BaseAction, error) {
	m.mu.Lock()
	m.bridges = append(m.bridges, in)
	m.mu.Unlock()
	return orchestrator.BaseAction{Flow: "bridge", Source: source}, nil
}

type mockRunner struct {
	mu       sync.Mutex
	executed chan orchestrator.BaseAction
	ops      map[uuid.UUID]*orchestrator.Operation
	actions  map[uuid.UUID]orchestrator.BaseAction
}

func newMockRunner() *mockRunner {
	return &mockRunner{
		executed: make(chan orchestrator.BaseAction, 8),
		ops:      make(map[uuid.UUID]*orchestrator.Operation),
		actions:  make(map[uuid.UUID]orchestrator.BaseAction),
	}
}

func (m *mockRunner) NewOperation(action orchestrator.BaseAction, observers ...orchestrator.StatusObserver) *orchestrator.Operation {
	op := &orchestrator.Operation{ID: uuid.New()}
	m.mu.Lock()
	m.ops[op.ID] = op
	m.actions[op.ID] = action
	m.mu.Unlock()
	return op
}

func (m *mockRunner) Execute(ctx context.Context, op *orchestrator.Operation) error {
	m.mu.Lock()
	action := m.actions[op.ID]
	m.mu.Unlock()
	if action.OnCompleted != nil {
		action.OnCompleted()
	}
	m.executed <- action
	return nil
}

func (m *mockRunner) Get(id uuid.UUID) (*orchestrator.Operation, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	op, ok := m.ops[id]
	return op, ok
}

type mockFaucet struct {
	mu       sync.Mutex
	requests []string
	err      error
}

func (m *mockFaucet) Request(ctx context.Context, chain *registry.ChainDescriptor, tokenName string) (*gateway.WriteResult, error) {
	if m.err != nil {
		return nil, m.err
	}
	m.mu.Lock()
	m.requests = append(m.requests, tokenName)
	m.mu.Unlock()
	return &gateway.WriteResult{TxHash: common.HexToHash("0xfa"), BlockNumber: big.NewInt(3)}, nil
}

type mockPingPong struct {
	mu     sync.Mutex
	runs   chan string
	status pingpong.Status
}

func (m *mockPingPong) Run(ctx context.Context, source, destination *registry.ChainDescriptor, message string, observers ...pingpong.StatusObserver) (pingpong.Result, error) {
	m.mu.Lock()
	m.status = pingpong.StatusCompleted
	m.mu.Unlock()
	m.runs <- message
	return pingpong.Result{RoundTripOK: true}, nil
}

func (m *mockPingPong) Status() pingpong.Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.status
}

type testEnv struct {
	router   *mux.Router
	store    *mockStore
	builder  *mockBuilder
	runner   *mockRunner
	faucet   *mockFaucet
	pingpong *mockPingPong
	reg      *registry.Registry
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	reg, err := registry.New([]registry.ChainDescriptor{
		{Name: "Alpha Testnet", ChainID: 1337, ChainSelector: 1001, NativeSymbol: "ETH"},
		{Name: "Beta Testnet", ChainID: 1338, ChainSelector: 1004, NativeSymbol: "ETH"},
	}, 1004)
	require.NoError(t, err)

	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	signer, err := gateway.NewLocalECDSASigner(key)
	require.NoError(t, err)
	wallet, err := gateway.NewWallet(signer, reg, 1337, zerolog.Nop())
	require.NoError(t, err)

	env := &testEnv{
		store:    &mockStore{byID: make(map[common.Hash]proposals.Proposal)},
		builder:  &mockBuilder{},
		runner:   newMockRunner(),
		faucet:   &mockFaucet{},
		pingpong: &mockPingPong{runs: make(chan string, 1), status: pingpong.StatusIdle},
		reg:      reg,
	}
	env.router = mux.NewRouter()
	h := NewHandlers(wallet, env.runner, env.builder, env.store, env.faucet, env.pingpong, reg, zerolog.Nop())
	h.Register(env.router)
	return env
}

func (e *testEnv) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func decodeResponse(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	body := decodeResponse(t, rec)
	errBody, ok := body["error"].(map[string]any)
	require.True(t, ok, "response has no error object: %s", rec.Body.String())
	code, _ := errBody["code"].(string)
	return code
}

func awaitExecution(t *testing.T, runner *mockRunner) orchestrator.BaseAction {
	t.Helper()
	select {
	case action := <-runner.executed:
		return action
	case <-time.After(time.Second):
		t.Fatal("operation was not executed")
		return orchestrator.BaseAction{}
	}
}

func activeProposal(id common.Hash) proposals.Proposal {
	return proposals.Proposal{
		ID:              id,
		Title:           "Treasury allocation",
		TokenName:       "VoteSphere",
		StartTimestamp:  uint64(time.Now().Add(-time.Hour).Unix()),
		EndTimestamp:    uint64(time.Now().Add(24 * time.Hour).Unix()),
		NumVotesYes:     big.NewInt(10),
		NumVotesNo:      big.NewInt(4),
		NumVotesAbstain: new(big.Int),
	}
}

func TestHealthz(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(t, http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestListChains(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(t, http.MethodGet, "/api/v1/chains", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	body := decodeResponse(t, rec)
	chains, ok := body["chains"].([]any)
	require.True(t, ok)
	assert.Len(t, chains, 2)

	destinations := 0
	for _, c := range chains {
		if c.(map[string]any)["is_destination"].(bool) {
			destinations++
		}
	}
	assert.Equal(t, 1, destinations)
}

func TestListProposalsPassesPagination(t *testing.T) {
	env := newTestEnv(t)
	env.store.list = proposals.ListResult{Page: 2, PageSize: 5, Total: 12, TotalPages: 3}

	rec := env.do(t, http.MethodGet, "/api/v1/proposals?page=2&page_size=5", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, env.store.listCalls, 1)
	assert.Equal(t, [2]uint64{2, 5}, env.store.listCalls[0])
}

func TestListProposalsDefaults(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/api/v1/proposals", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, env.store.listCalls, 1)
	assert.Equal(t, [2]uint64{0, 10}, env.store.listCalls[0])
}

func TestGetProposal(t *testing.T) {
	env := newTestEnv(t)
	id := common.HexToHash("0xaa")
	env.store.byID[id] = activeProposal(id)

	rec := env.do(t, http.MethodGet, "/api/v1/proposals/"+id.Hex(), nil)
	require.Equal(t, http.StatusOK, rec.Code)

	body := decodeResponse(t, rec)
	assert.Equal(t, true, body["active"])
	assert.Equal(t, "yes", body["decision"])
}

func TestGetProposalNotFound(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(t, http.MethodGet, "/api/v1/proposals/"+common.HexToHash("0xbb").Hex(), nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "proposal_not_found", errorCode(t, rec))
}

func TestGetProposalBadID(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(t, http.MethodGet, "/api/v1/proposals/not-a-hash", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid_proposal_id", errorCode(t, rec))
}

func TestCreateProposalAccepted(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/api/v1/proposals", createProposalRequest{
		ChainID:       1337,
		Title:         "Treasury allocation",
		Description:   "Fund the Q3 grants round",
		TokenName:     "VoteSphere",
		DurationHours: 48,
	})
	require.Equal(t, http.StatusAccepted, rec.Code)

	body := decodeResponse(t, rec)
	opID, err := uuid.Parse(body["operation_id"].(string))
	require.NoError(t, err)
	assert.Equal(t, "start", body["status"])

	action := awaitExecution(t, env.runner)
	assert.Equal(t, "create_proposal", action.Flow)
	require.Len(t, env.builder.proposals, 1)
	assert.Equal(t, "Treasury allocation", env.builder.proposals[0].Title)

	_, ok := env.runner.Get(opID)
	assert.True(t, ok)
}

func TestCreateProposalUnsupportedChain(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(t, http.MethodPost, "/api/v1/proposals", createProposalRequest{
		ChainID: 9999,
		Title:   "Treasury allocation",
	})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, "unsupported_chain", errorCode(t, rec))
}

func TestCreateProposalInvalidInput(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(t, http.MethodPost, "/api/v1/proposals", createProposalRequest{ChainID: 1337})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, "invalid_proposal", errorCode(t, rec))
}

func TestVoteAcceptedWithOptimisticUpdate(t *testing.T) {
	env := newTestEnv(t)
	id := common.HexToHash("0xaa")
	env.store.byID[id] = activeProposal(id)
	env.store.tokenAddr = common.HexToAddress("0xe1")
	env.store.power = proposals.VotingPower{
		Delegated:             big.NewInt(1500),
		AlreadyVoted:          new(big.Int),
		Available:             big.NewInt(1500),
		Decimals:              2,
		IsGetPastVotesEnabled: true,
	}

	rec := env.do(t, http.MethodPost, "/api/v1/proposals/"+id.Hex()+"/vote", voteRequest{
		ChainID: 1337,
		Amount:  "10",
		Option:  "yes",
	})
	require.Equal(t, http.StatusAccepted, rec.Code)

	action := awaitExecution(t, env.runner)
	assert.Equal(t, "vote", action.Flow)

	require.Len(t, env.builder.votes, 1)
	vote := env.builder.votes[0]
	assert.Equal(t, id, common.Hash(vote.ProposalID))
	assert.Equal(t, contracts.VoteYes, vote.Option)
	assert.True(t, vote.IsGetPastVotesEnabled)

	require.Len(t, env.store.applied, 1)
	assert.Equal(t, id, env.store.applied[0].id)
	assert.Equal(t, big.NewInt(1000), env.store.applied[0].amount)
}

func TestVoteRejectsUnknownOption(t *testing.T) {
	env := newTestEnv(t)
	id := common.HexToHash("0xaa")
	env.store.byID[id] = activeProposal(id)

	rec := env.do(t, http.MethodPost, "/api/v1/proposals/"+id.Hex()+"/vote", voteRequest{
		ChainID: 1337,
		Amount:  "10",
		Option:  "maybe",
	})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, "invalid_vote", errorCode(t, rec))
}

func TestVoteRejectsClosedProposal(t *testing.T) {
	env := newTestEnv(t)
	id := common.HexToHash("0xaa")
	p := activeProposal(id)
	p.EndTimestamp = uint64(time.Now().Add(-time.Minute).Unix())
	env.store.byID[id] = p

	rec := env.do(t, http.MethodPost, "/api/v1/proposals/"+id.Hex()+"/vote", voteRequest{
		ChainID: 1337,
		Amount:  "10",
		Option:  "yes",
	})
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "proposal_closed", errorCode(t, rec))
}

func TestVoteRejectsInsufficientPower(t *testing.T) {
	env := newTestEnv(t)
	id := common.HexToHash("0xaa")
	env.store.byID[id] = activeProposal(id)
	env.store.tokenAddr = common.HexToAddress("0xe1")
	env.store.power = proposals.VotingPower{
		Delegated:    big.NewInt(500),
		AlreadyVoted: new(big.Int),
		Available:    big.NewInt(500),
		Decimals:     2,
	}

	rec := env.do(t, http.MethodPost, "/api/v1/proposals/"+id.Hex()+"/vote", voteRequest{
		ChainID: 1337,
		Amount:  "10",
		Option:  "yes",
	})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, "insufficient_voting_power", errorCode(t, rec))
	assert.Empty(t, env.builder.votes)

	// the reported balance is in whole tokens, not base units
	body := decodeResponse(t, rec)
	details := body["error"].(map[string]any)["details"].(map[string]any)
	assert.Equal(t, "5", details["available"])
}

func TestVotingPower(t *testing.T) {
	env := newTestEnv(t)
	id := common.HexToHash("0xaa")
	env.store.byID[id] = activeProposal(id)
	env.store.tokenAddr = common.HexToAddress("0xe1")
	env.store.power = proposals.VotingPower{
		Delegated:             big.NewInt(100),
		AlreadyVoted:          big.NewInt(40),
		Available:             big.NewInt(60),
		Decimals:              18,
		IsGetPastVotesEnabled: true,
	}

	rec := env.do(t, http.MethodGet, "/api/v1/proposals/"+id.Hex()+"/voting-power?chain_id=1337", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	body := decodeResponse(t, rec)
	assert.Equal(t, float64(60), body["available"])
	assert.Equal(t, "0.00000000000000006", body["available_display"])
	assert.Equal(t, true, body["is_get_past_votes_enabled"])
}

func TestDelegate(t *testing.T) {
	env := newTestEnv(t)
	env.store.tokenAddr = common.HexToAddress("0xe1")

	rec := env.do(t, http.MethodPost, "/api/v1/delegate", delegateRequest{
		ChainID:   1337,
		TokenName: "VoteSphere",
	})
	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, env.store.delegated, 1)

	body := decodeResponse(t, rec)
	assert.NotEmpty(t, body["tx_hash"])
}

func TestFaucetRequest(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(t, http.MethodPost, "/api/v1/faucet", faucetRequestBody{
		ChainID:   1337,
		TokenName: "VoteSphere",
	})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{"VoteSphere"}, env.faucet.requests)
}

func TestBridgeAccepted(t *testing.T) {
	env := newTestEnv(t)
	env.store.decimals = 18

	rec := env.do(t, http.MethodPost, "/api/v1/bridge", bridgeRequest{
		ChainID:      1337,
		TokenAddress: "0x00000000000000000000000000000000000000e1",
		Amount:       "5",
	})
	require.Equal(t, http.StatusAccepted, rec.Code)

	action := awaitExecution(t, env.runner)
	assert.Equal(t, "bridge", action.Flow)
	require.Len(t, env.builder.bridges, 1)
	assert.Equal(t, uint8(18), env.builder.bridges[0].TokenDecimals)
}

func TestBridgeRejectsBadAddress(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(t, http.MethodPost, "/api/v1/bridge", bridgeRequest{
		ChainID:      1337,
		TokenAddress: "nonsense",
		Amount:       "5",
	})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, "invalid_token", errorCode(t, rec))
}

func TestPingAccepted(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(t, http.MethodPost, "/api/v1/ping", pingRequest{
		SourceChainID:      1337,
		DestinationChainID: 1338,
		Message:            "hello",
	})
	require.Equal(t, http.StatusAccepted, rec.Code)

	select {
	case msg := <-env.pingpong.runs:
		assert.Equal(t, "hello", msg)
	case <-time.After(time.Second):
		t.Fatal("round trip was not started")
	}
}

func TestPingRequiresMessage(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(t, http.MethodPost, "/api/v1/ping", pingRequest{
		SourceChainID:      1337,
		DestinationChainID: 1338,
	})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, "invalid_ping", errorCode(t, rec))
}

func TestGetOperation(t *testing.T) {
	env := newTestEnv(t)
	op := env.runner.NewOperation(orchestrator.BaseAction{Flow: "vote"})

	rec := env.do(t, http.MethodGet, "/api/v1/operations/"+op.ID.String(), nil)
	require.Equal(t, http.StatusOK, rec.Code)

	body := decodeResponse(t, rec)
	snap, ok := body["operation"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, op.ID.String(), snap["id"])
	assert.Equal(t, "start", snap["status"])
}

func TestGetOperationBadID(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(t, http.MethodGet, "/api/v1/operations/not-a-uuid", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid_operation_id", errorCode(t, rec))
}

func TestGetOperationUnknown(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(t, http.MethodGet, "/api/v1/operations/"+uuid.NewString(), nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "operation_not_found", errorCode(t, rec))
}
