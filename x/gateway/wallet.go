package gateway

import (
	"context"
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/rs/zerolog"

	"github.com/equito-network/equitovote/x/registry"
)

// ApprovalRequest describes a pending wallet action presented to the
// approval hook before signing or switching networks.
type ApprovalRequest struct {
	// Kind is "transaction" or "switch_network".
	Kind string
	// ChainID is the network the action targets.
	ChainID uint64
	// To is the transaction recipient, zero for network switches.
	To common.Address
	// Value is the native amount attached, nil for network switches.
	Value *big.Int
	// Calldata is the encoded contract call, nil for network switches.
	Calldata []byte
}

// ApprovalFunc decides whether a wallet action proceeds. A non-nil return
// aborts the action; the wallet reports it as a user rejection.
type ApprovalFunc func(ctx context.Context, req ApprovalRequest) error

// Wallet holds the signing identity and the single active network shared by
// all flows. Network switches are last-writer-wins.
type Wallet struct {
	signer  Signer
	reg     *registry.Registry
	approve ApprovalFunc
	log     zerolog.Logger

	mu            sync.RWMutex
	activeChainID uint64
	subs          map[int]func(uint64)
	nextSubID     int
}

// WalletOption configures optional wallet behavior.
type WalletOption func(*Wallet)

// WithApprovalFunc installs a hook consulted before every signature and
// network switch.
func WithApprovalFunc(fn ApprovalFunc) WalletOption {
	return func(w *Wallet) {
		w.approve = fn
	}
}

// NewWallet creates a wallet on the given initial network. A nil signer
// models the disconnected state.
func NewWallet(signer Signer, reg *registry.Registry, initialChainID uint64, logger zerolog.Logger, opts ...WalletOption) (*Wallet, error) {
	if reg == nil {
		return nil, fmt.Errorf("registry cannot be nil")
	}
	if _, err := reg.ByChainID(initialChainID); err != nil {
		return nil, fmt.Errorf("initial network: %w", err)
	}
	w := &Wallet{
		signer:        signer,
		reg:           reg,
		log:           logger.With().Str("component", "wallet").Logger(),
		activeChainID: initialChainID,
		subs:          make(map[int]func(uint64)),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w, nil
}

// Connected reports whether a signing identity is available.
func (w *Wallet) Connected() bool {
	return w.signer != nil
}

// Address returns the wallet account address, or an error when disconnected.
func (w *Wallet) Address() (common.Address, error) {
	if w.signer == nil {
		return common.Address{}, &NotConnectedError{}
	}
	return w.signer.Address(), nil
}

// ActiveChainID returns the wallet's current network.
func (w *Wallet) ActiveChainID() uint64 {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.activeChainID
}

// SwitchNetwork moves the wallet to the given network. The change is visible
// to every flow sharing this wallet; concurrent switches resolve to whichever
// lands last.
func (w *Wallet) SwitchNetwork(ctx context.Context, chainID uint64) error {
	if w.signer == nil {
		return &NotConnectedError{}
	}
	chain, err := w.reg.ByChainID(chainID)
	if err != nil {
		return fmt.Errorf("switch network: %w", err)
	}
	if w.ActiveChainID() == chainID {
		return nil
	}
	if w.approve != nil {
		if err := w.approve(ctx, ApprovalRequest{Kind: "switch_network", ChainID: chainID}); err != nil {
			return &UserRejectedError{Cause: err}
		}
	}
	w.setActive(chainID)
	w.log.Info().Str("network", chain.Name).Uint64("chain_id", chainID).Msg("switched active network")
	return nil
}

// SubscribeNetworkChanges registers fn to run on every network change and
// returns an unsubscribe function. fn runs synchronously under the switch.
func (w *Wallet) SubscribeNetworkChanges(fn func(chainID uint64)) func() {
	w.mu.Lock()
	defer w.mu.Unlock()
	id := w.nextSubID
	w.nextSubID++
	w.subs[id] = fn
	return func() {
		w.mu.Lock()
		defer w.mu.Unlock()
		delete(w.subs, id)
	}
}

// RequestApproval consults the approval hook for a transaction. A rejection
// surfaces as UserRejectedError.
func (w *Wallet) RequestApproval(ctx context.Context, req ApprovalRequest) error {
	if w.approve == nil {
		return nil
	}
	if req.Kind == "" {
		req.Kind = "transaction"
	}
	if err := w.approve(ctx, req); err != nil {
		return &UserRejectedError{Cause: err}
	}
	return nil
}

// Signer exposes the signing identity, or nil when disconnected.
func (w *Wallet) Signer() Signer {
	return w.signer
}

func (w *Wallet) setActive(chainID uint64) {
	w.mu.Lock()
	w.activeChainID = chainID
	subs := make([]func(uint64), 0, len(w.subs))
	for _, fn := range w.subs {
		subs = append(subs, fn)
	}
	w.mu.Unlock()
	for _, fn := range subs {
		fn(chainID)
	}
}
