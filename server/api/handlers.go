package api

import (
	"context"
	"encoding/json"
	"fmt"
	"math/big"
	"net/http"
	"strconv"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/rs/zerolog"

	"github.com/equito-network/equitovote/x/faucet"
	"github.com/equito-network/equitovote/x/flows"
	"github.com/equito-network/equitovote/x/gateway"
	"github.com/equito-network/equitovote/x/gateway/contracts"
	"github.com/equito-network/equitovote/x/orchestrator"
	"github.com/equito-network/equitovote/x/pingpong"
	"github.com/equito-network/equitovote/x/proposals"
	"github.com/equito-network/equitovote/x/registry"
)

// ProposalStore is the proposal service surface the handlers use.
type ProposalStore interface {
	List(ctx context.Context, page, pageSize uint64) (proposals.ListResult, error)
	Get(ctx context.Context, id common.Hash) (proposals.Proposal, error)
	TokenNames(ctx context.Context) ([]string, error)
	TokenAddress(ctx context.Context, tokenName string, chainSelector uint64) (common.Address, error)
	TokenDecimals(ctx context.Context, chain *registry.ChainDescriptor, token common.Address) (uint8, error)
	VotingPowerFor(ctx context.Context, source *registry.ChainDescriptor, token, user common.Address, p proposals.Proposal) (proposals.VotingPower, error)
	Delegate(ctx context.Context, source *registry.ChainDescriptor, token, delegatee common.Address) (*gateway.WriteResult, error)
	ApplyOptimisticVote(id common.Hash, option contracts.VoteOption, amount *big.Int)
}

// ActionBuilder assembles orchestrator actions from request input.
type ActionBuilder interface {
	BuildCreateProposal(ctx context.Context, source *registry.ChainDescriptor, in flows.CreateProposalInput, now time.Time) (orchestrator.BaseAction, error)
	BuildVote(ctx context.Context, source *registry.ChainDescriptor, in flows.VoteInput) (orchestrator.BaseAction, error)
	BuildBridge(ctx context.Context, source *registry.ChainDescriptor, in flows.BridgeInput) (orchestrator.BaseAction, error)
}

// OperationRunner registers and drives cross-chain operations.
type OperationRunner interface {
	NewOperation(action orchestrator.BaseAction, observers ...orchestrator.StatusObserver) *orchestrator.Operation
	Execute(ctx context.Context, op *orchestrator.Operation) error
	Get(id uuid.UUID) (*orchestrator.Operation, bool)
}

// TokenFaucet hands out governance test tokens.
type TokenFaucet interface {
	Request(ctx context.Context, chain *registry.ChainDescriptor, tokenName string) (*gateway.WriteResult, error)
}

// HealthChecker runs the messaging-layer round trip.
type HealthChecker interface {
	Run(ctx context.Context, source, destination *registry.ChainDescriptor, message string, observers ...pingpong.StatusObserver) (pingpong.Result, error)
	Status() pingpong.Status
}

var (
	_ ProposalStore   = (*proposals.Service)(nil)
	_ ActionBuilder   = (*flows.Builder)(nil)
	_ OperationRunner = (*orchestrator.Orchestrator)(nil)
	_ TokenFaucet     = (*faucet.Service)(nil)
	_ HealthChecker   = (*pingpong.Service)(nil)
)

// Handlers exposes the voting application over HTTP. Cross-chain operations
// are accepted with 202 and an operation id; progress is polled on the
// operations endpoint.
type Handlers struct {
	wallet    *gateway.Wallet
	orch      OperationRunner
	builder   ActionBuilder
	proposals ProposalStore
	faucet    TokenFaucet
	pingpong  HealthChecker
	reg       *registry.Registry
	log       zerolog.Logger
}

// NewHandlers creates the handler set.
func NewHandlers(
	wallet *gateway.Wallet,
	orch OperationRunner,
	builder ActionBuilder,
	proposalStore ProposalStore,
	tokenFaucet TokenFaucet,
	healthCheck HealthChecker,
	reg *registry.Registry,
	logger zerolog.Logger,
) *Handlers {
	return &Handlers{
		wallet:    wallet,
		orch:      orch,
		builder:   builder,
		proposals: proposalStore,
		faucet:    tokenFaucet,
		pingpong:  healthCheck,
		reg:       reg,
		log:       logger.With().Str("component", "api-handlers").Logger(),
	}
}

// Register mounts all routes on the router.
func (h *Handlers) Register(r *mux.Router) {
	r.HandleFunc("/healthz", h.health).Methods(http.MethodGet)

	v1 := r.PathPrefix("/api/v1").Subrouter()
	v1.HandleFunc("/chains", h.listChains).Methods(http.MethodGet)
	v1.HandleFunc("/tokens", h.listTokens).Methods(http.MethodGet)
	v1.HandleFunc("/proposals", h.listProposals).Methods(http.MethodGet)
	v1.HandleFunc("/proposals", h.createProposal).Methods(http.MethodPost)
	v1.HandleFunc("/proposals/{id}", h.getProposal).Methods(http.MethodGet)
	v1.HandleFunc("/proposals/{id}/vote", h.vote).Methods(http.MethodPost)
	v1.HandleFunc("/proposals/{id}/voting-power", h.votingPower).Methods(http.MethodGet)
	v1.HandleFunc("/delegate", h.delegate).Methods(http.MethodPost)
	v1.HandleFunc("/faucet", h.faucetRequest).Methods(http.MethodPost)
	v1.HandleFunc("/bridge", h.bridge).Methods(http.MethodPost)
	v1.HandleFunc("/ping", h.ping).Methods(http.MethodPost)
	v1.HandleFunc("/pingpong/status", h.pingpongStatus).Methods(http.MethodGet)
	v1.HandleFunc("/operations/{id}", h.getOperation).Methods(http.MethodGet)
}

func (h *Handlers) health(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handlers) listChains(w http.ResponseWriter, r *http.Request) {
	type chainView struct {
		Name          string `json:"name"`
		ChainID       uint64 `json:"chain_id"`
		ChainSelector uint64 `json:"chain_selector"`
		NativeSymbol  string `json:"native_symbol"`
		IsDestination bool   `json:"is_destination"`
	}
	destination := h.reg.Destination()
	chains := h.reg.Chains()
	out := make([]chainView, 0, len(chains))
	for _, c := range chains {
		out = append(out, chainView{
			Name:          c.Name,
			ChainID:       c.ChainID,
			ChainSelector: c.ChainSelector,
			NativeSymbol:  c.NativeSymbol,
			IsDestination: c.ChainSelector == destination.ChainSelector,
		})
	}
	WriteJSON(w, http.StatusOK, map[string]any{"chains": out})
}

func (h *Handlers) listTokens(w http.ResponseWriter, r *http.Request) {
	names, err := h.proposals.TokenNames(r.Context())
	if err != nil {
		WriteError(w, r, http.StatusBadGateway, "chain_read_failed", "could not list governance tokens", nil)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]any{"tokens": names})
}

func (h *Handlers) listProposals(w http.ResponseWriter, r *http.Request) {
	page := queryUint(r, "page", 0)
	pageSize := queryUint(r, "page_size", 10)

	result, err := h.proposals.List(r.Context(), page, pageSize)
	if err != nil {
		WriteError(w, r, http.StatusBadGateway, "chain_read_failed", "could not list proposals", err.Error())
		return
	}
	WriteJSON(w, http.StatusOK, result)
}

func (h *Handlers) getProposal(w http.ResponseWriter, r *http.Request) {
	id, ok := proposalID(w, r)
	if !ok {
		return
	}
	p, err := h.proposals.Get(r.Context(), id)
	if err != nil {
		WriteError(w, r, http.StatusNotFound, "proposal_not_found", "proposal not found", nil)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]any{
		"proposal": p,
		"active":   p.IsActive(time.Now()),
		"decision": p.Decision(),
	})
}

type createProposalRequest struct {
	ChainID       uint64 `json:"chain_id"`
	Title         string `json:"title"`
	Description   string `json:"description"`
	TokenName     string `json:"token_name"`
	DurationHours uint64 `json:"duration_hours"`
}

func (h *Handlers) createProposal(w http.ResponseWriter, r *http.Request) {
	var req createProposalRequest
	if !decodeBody(w, r, &req) {
		return
	}
	source, ok := h.sourceChain(w, r, req.ChainID)
	if !ok {
		return
	}

	action, err := h.builder.BuildCreateProposal(r.Context(), source, flows.CreateProposalInput{
		Title:         req.Title,
		Description:   req.Description,
		TokenName:     req.TokenName,
		DurationHours: req.DurationHours,
	}, time.Now())
	if err != nil {
		WriteError(w, r, http.StatusUnprocessableEntity, "invalid_proposal", err.Error(), nil)
		return
	}
	h.acceptOperation(w, action)
}

type voteRequest struct {
	ChainID uint64 `json:"chain_id"`
	Amount  string `json:"amount"`
	Option  string `json:"option"`
}

func parseVoteOption(s string) (contracts.VoteOption, error) {
	switch s {
	case "yes":
		return contracts.VoteYes, nil
	case "no":
		return contracts.VoteNo, nil
	case "abstain":
		return contracts.VoteAbstain, nil
	default:
		return 0, fmt.Errorf("unknown vote option %q", s)
	}
}

func (h *Handlers) vote(w http.ResponseWriter, r *http.Request) {
	id, ok := proposalID(w, r)
	if !ok {
		return
	}
	var req voteRequest
	if !decodeBody(w, r, &req) {
		return
	}
	option, err := parseVoteOption(req.Option)
	if err != nil {
		WriteError(w, r, http.StatusUnprocessableEntity, "invalid_vote", err.Error(), nil)
		return
	}
	source, ok := h.sourceChain(w, r, req.ChainID)
	if !ok {
		return
	}

	ctx := r.Context()
	p, err := h.proposals.Get(ctx, id)
	if err != nil {
		WriteError(w, r, http.StatusNotFound, "proposal_not_found", "proposal not found", nil)
		return
	}
	if !p.IsActive(time.Now()) {
		WriteError(w, r, http.StatusConflict, "proposal_closed", "voting period has ended", nil)
		return
	}

	user, err := h.wallet.Address()
	if err != nil {
		WriteError(w, r, http.StatusServiceUnavailable, "wallet_not_connected", "Please connect a wallet", nil)
		return
	}
	token, err := h.proposals.TokenAddress(ctx, p.TokenName, source.ChainSelector)
	if err != nil {
		WriteError(w, r, http.StatusUnprocessableEntity, "token_unavailable", err.Error(), nil)
		return
	}
	power, err := h.proposals.VotingPowerFor(ctx, source, token, user, p)
	if err != nil {
		WriteError(w, r, http.StatusBadGateway, "chain_read_failed", "could not read voting power", err.Error())
		return
	}

	amount, err := flows.ScaleAmount(req.Amount, power.Decimals)
	if err != nil {
		WriteError(w, r, http.StatusUnprocessableEntity, "invalid_amount", err.Error(), nil)
		return
	}
	if power.Available.Cmp(amount) < 0 {
		WriteError(w, r, http.StatusUnprocessableEntity, "insufficient_voting_power",
			"vote amount exceeds available voting power", map[string]string{
				"available": flows.UnscaleAmount(power.Available, power.Decimals).String(),
			})
		return
	}

	action, err := h.builder.BuildVote(ctx, source, flows.VoteInput{
		ProposalID:            id,
		Amount:                req.Amount,
		Option:                option,
		TokenAddress:          token,
		TokenDecimals:         power.Decimals,
		IsGetPastVotesEnabled: power.IsGetPastVotesEnabled,
	})
	if err != nil {
		WriteError(w, r, http.StatusUnprocessableEntity, "invalid_vote", err.Error(), nil)
		return
	}
	action.OnCompleted = func() {
		h.proposals.ApplyOptimisticVote(id, option, amount)
	}
	h.acceptOperation(w, action)
}

func (h *Handlers) votingPower(w http.ResponseWriter, r *http.Request) {
	id, ok := proposalID(w, r)
	if !ok {
		return
	}
	source, ok := h.sourceChain(w, r, queryUint(r, "chain_id", 0))
	if !ok {
		return
	}

	ctx := r.Context()
	p, err := h.proposals.Get(ctx, id)
	if err != nil {
		WriteError(w, r, http.StatusNotFound, "proposal_not_found", "proposal not found", nil)
		return
	}
	user, err := h.wallet.Address()
	if err != nil {
		WriteError(w, r, http.StatusServiceUnavailable, "wallet_not_connected", "Please connect a wallet", nil)
		return
	}
	token, err := h.proposals.TokenAddress(ctx, p.TokenName, source.ChainSelector)
	if err != nil {
		WriteError(w, r, http.StatusUnprocessableEntity, "token_unavailable", err.Error(), nil)
		return
	}
	power, err := h.proposals.VotingPowerFor(ctx, source, token, user, p)
	if err != nil {
		WriteError(w, r, http.StatusBadGateway, "chain_read_failed", "could not read voting power", err.Error())
		return
	}
	WriteJSON(w, http.StatusOK, struct {
		proposals.VotingPower
		// AvailableDisplay is Available rendered in whole tokens.
		AvailableDisplay string `json:"available_display"`
	}{power, flows.UnscaleAmount(power.Available, power.Decimals).String()})
}

type delegateRequest struct {
	ChainID   uint64 `json:"chain_id"`
	TokenName string `json:"token_name"`
}

func (h *Handlers) delegate(w http.ResponseWriter, r *http.Request) {
	var req delegateRequest
	if !decodeBody(w, r, &req) {
		return
	}
	source, ok := h.sourceChain(w, r, req.ChainID)
	if !ok {
		return
	}
	user, err := h.wallet.Address()
	if err != nil {
		WriteError(w, r, http.StatusServiceUnavailable, "wallet_not_connected", "Please connect a wallet", nil)
		return
	}
	token, err := h.proposals.TokenAddress(r.Context(), req.TokenName, source.ChainSelector)
	if err != nil {
		WriteError(w, r, http.StatusUnprocessableEntity, "token_unavailable", err.Error(), nil)
		return
	}

	result, err := h.proposals.Delegate(r.Context(), source, token, user)
	if err != nil {
		h.writeWalletError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]string{"tx_hash": result.TxHash.Hex()})
}

type faucetRequestBody struct {
	ChainID   uint64 `json:"chain_id"`
	TokenName string `json:"token_name"`
}

func (h *Handlers) faucetRequest(w http.ResponseWriter, r *http.Request) {
	var req faucetRequestBody
	if !decodeBody(w, r, &req) {
		return
	}
	source, ok := h.sourceChain(w, r, req.ChainID)
	if !ok {
		return
	}
	result, err := h.faucet.Request(r.Context(), source, req.TokenName)
	if err != nil {
		h.writeWalletError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]string{"tx_hash": result.TxHash.Hex()})
}

type bridgeRequest struct {
	ChainID             uint64 `json:"chain_id"`
	TokenAddress        string `json:"token_address"`
	Amount              string `json:"amount"`
	DestinationSelector uint64 `json:"destination_selector,omitempty"`
}

func (h *Handlers) bridge(w http.ResponseWriter, r *http.Request) {
	var req bridgeRequest
	if !decodeBody(w, r, &req) {
		return
	}
	source, ok := h.sourceChain(w, r, req.ChainID)
	if !ok {
		return
	}
	if !common.IsHexAddress(req.TokenAddress) {
		WriteError(w, r, http.StatusUnprocessableEntity, "invalid_token", "token_address is not a valid address", nil)
		return
	}
	token := common.HexToAddress(req.TokenAddress)
	decimals, err := h.proposals.TokenDecimals(r.Context(), source, token)
	if err != nil {
		WriteError(w, r, http.StatusBadGateway, "chain_read_failed", "could not read token decimals", err.Error())
		return
	}

	action, err := h.builder.BuildBridge(r.Context(), source, flows.BridgeInput{
		TokenAddress:        token,
		TokenDecimals:       decimals,
		Amount:              req.Amount,
		DestinationSelector: req.DestinationSelector,
	})
	if err != nil {
		WriteError(w, r, http.StatusUnprocessableEntity, "invalid_bridge", err.Error(), nil)
		return
	}
	h.acceptOperation(w, action)
}

type pingRequest struct {
	SourceChainID      uint64 `json:"source_chain_id"`
	DestinationChainID uint64 `json:"destination_chain_id"`
	Message            string `json:"message"`
}

func (h *Handlers) ping(w http.ResponseWriter, r *http.Request) {
	var req pingRequest
	if !decodeBody(w, r, &req) {
		return
	}
	source, ok := h.sourceChain(w, r, req.SourceChainID)
	if !ok {
		return
	}
	destination, err := h.reg.ByChainID(req.DestinationChainID)
	if err != nil {
		WriteError(w, r, http.StatusUnprocessableEntity, "unsupported_chain", err.Error(), nil)
		return
	}
	if req.Message == "" {
		WriteError(w, r, http.StatusUnprocessableEntity, "invalid_ping", "message is required", nil)
		return
	}

	go func() {
		// the round trip outlives the request
		if _, err := h.pingpong.Run(context.Background(), source, destination, req.Message); err != nil {
			_, msg := orchestrator.Classify(err)
			h.log.Warn().Err(err).Str("user_message", msg).Msg("ping-pong round trip failed")
		}
	}()
	WriteJSON(w, http.StatusAccepted, map[string]string{"status": string(h.pingpong.Status())})
}

func (h *Handlers) pingpongStatus(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusOK, map[string]string{"status": string(h.pingpong.Status())})
}

func (h *Handlers) getOperation(w http.ResponseWriter, r *http.Request) {
	idStr := mux.Vars(r)["id"]
	id, err := uuid.Parse(idStr)
	if err != nil {
		WriteError(w, r, http.StatusBadRequest, "invalid_operation_id", "operation id must be a UUID", nil)
		return
	}
	op, ok := h.orch.Get(id)
	if !ok {
		WriteError(w, r, http.StatusNotFound, "operation_not_found", "operation not found", nil)
		return
	}

	snap := op.Snapshot()
	response := map[string]any{"operation": snap}
	if opErr := op.Err(); opErr != nil {
		action, msg := orchestrator.Classify(opErr)
		response["user_message"] = msg
		response["silent"] = action == orchestrator.ActionSilent
	}
	WriteJSON(w, http.StatusOK, response)
}

// acceptOperation launches the orchestration in the background and answers
// 202 with the operation id.
func (h *Handlers) acceptOperation(w http.ResponseWriter, action orchestrator.BaseAction) {
	op := h.orch.NewOperation(action)
	go func() {
		if err := h.orch.Execute(context.Background(), op); err != nil {
			_, msg := orchestrator.Classify(err)
			h.log.Warn().
				Err(err).
				Str("operation_id", op.ID.String()).
				Str("flow", action.Flow).
				Str("user_message", msg).
				Msg("operation failed")
		}
	}()
	WriteJSON(w, http.StatusAccepted, map[string]string{
		"operation_id": op.ID.String(),
		"status":       op.Status().String(),
	})
}

func (h *Handlers) sourceChain(w http.ResponseWriter, r *http.Request, chainID uint64) (*registry.ChainDescriptor, bool) {
	chain, err := h.reg.ByChainID(chainID)
	if err != nil {
		WriteError(w, r, http.StatusUnprocessableEntity, "unsupported_chain", err.Error(), nil)
		return nil, false
	}
	return chain, true
}

func (h *Handlers) writeWalletError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case gateway.IsNotConnected(err):
		WriteError(w, r, http.StatusServiceUnavailable, "wallet_not_connected", "Please connect a wallet", nil)
	case gateway.IsUserRejected(err):
		WriteError(w, r, http.StatusConflict, "user_rejected", "request was rejected in the wallet", nil)
	default:
		WriteError(w, r, http.StatusBadGateway, "transaction_failed", err.Error(), nil)
	}
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		WriteError(w, r, http.StatusBadRequest, "invalid_body", "request body is not valid JSON", nil)
		return false
	}
	return true
}

func proposalID(w http.ResponseWriter, r *http.Request) (common.Hash, bool) {
	idStr := mux.Vars(r)["id"]
	if len(idStr) != 66 || idStr[:2] != "0x" {
		WriteError(w, r, http.StatusBadRequest, "invalid_proposal_id", "proposal id must be a 0x-prefixed 32-byte hash", nil)
		return common.Hash{}, false
	}
	return common.HexToHash(idStr), true
}

func queryUint(r *http.Request, key string, fallback uint64) uint64 {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return fallback
	}
	v, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return fallback
	}
	return v
}
