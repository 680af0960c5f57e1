package gateway

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/rs/zerolog"

	"github.com/equito-network/equitovote/x/registry"
)

// Config tunes transaction submission and confirmation behavior.
type Config struct {
	// ReceiptPollInterval is the delay between receipt lookups after a
	// transaction is broadcast.
	ReceiptPollInterval time.Duration `yaml:"receipt_poll_interval"`
	// ReceiptTimeout bounds how long a single transaction may stay pending
	// before the write fails.
	ReceiptTimeout time.Duration `yaml:"receipt_timeout"`
	// GasLimitBufferPercent is added on top of the node's gas estimate.
	GasLimitBufferPercent uint64 `yaml:"gas_limit_buffer_percent"`
}

// DefaultConfig returns production defaults.
func DefaultConfig() Config {
	return Config{
		ReceiptPollInterval:   2 * time.Second,
		ReceiptTimeout:        3 * time.Minute,
		GasLimitBufferPercent: 20,
	}
}

// Validate checks config invariants.
func (c Config) Validate() error {
	if c.ReceiptPollInterval <= 0 {
		return fmt.Errorf("receipt_poll_interval must be positive")
	}
	if c.ReceiptTimeout <= 0 {
		return fmt.Errorf("receipt_timeout must be positive")
	}
	return nil
}

// WriteRequest describes one state-changing contract call.
type WriteRequest struct {
	Chain    *registry.ChainDescriptor
	To       common.Address
	Calldata []byte
	// Value is the native amount attached to the call. Nil means zero.
	Value *big.Int
}

// WriteResult reports a confirmed transaction.
type WriteResult struct {
	TxHash      common.Hash
	BlockNumber *big.Int
	Logs        []*types.Log
	GasUsed     uint64
}

// Gateway executes reads and writes against the supported networks through
// the shared wallet. Writes go to the wallet's active network only.
type Gateway struct {
	cfg     Config
	reg     *registry.Registry
	wallet  *Wallet
	clients map[uint64]EthClient
	log     zerolog.Logger
}

// NewGateway creates a gateway over pre-dialed node clients keyed by chain id.
// Every registered chain must have a client.
func NewGateway(
	cfg Config,
	reg *registry.Registry,
	wallet *Wallet,
	clients map[uint64]EthClient,
	logger zerolog.Logger,
) (*Gateway, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid gateway config: %w", err)
	}
	if wallet == nil {
		return nil, fmt.Errorf("wallet cannot be nil")
	}
	for _, chain := range reg.Chains() {
		if _, ok := clients[chain.ChainID]; !ok {
			return nil, fmt.Errorf("no node client for chain %s (%d)", chain.Name, chain.ChainID)
		}
	}
	return &Gateway{
		cfg:     cfg,
		reg:     reg,
		wallet:  wallet,
		clients: clients,
		log:     logger.With().Str("component", "gateway").Logger(),
	}, nil
}

// Wallet returns the shared wallet.
func (g *Gateway) Wallet() *Wallet {
	return g.wallet
}

// Registry returns the chain registry.
func (g *Gateway) Registry() *registry.Registry {
	return g.reg
}

func (g *Gateway) client(chainID uint64) (EthClient, error) {
	c, ok := g.clients[chainID]
	if !ok {
		return nil, fmt.Errorf("no node client for chain id %d", chainID)
	}
	return c, nil
}

// Read executes a view call on the given chain at the latest block. Reads do
// not touch the wallet and may target any supported chain concurrently.
func (g *Gateway) Read(ctx context.Context, chain *registry.ChainDescriptor, to common.Address, calldata []byte) ([]byte, error) {
	client, err := g.client(chain.ChainID)
	if err != nil {
		return nil, err
	}
	out, err := client.CallContract(ctx, ethereum.CallMsg{To: &to, Data: calldata}, nil)
	if err != nil {
		return nil, fmt.Errorf("call on %s failed: %w", chain.Name, err)
	}
	return out, nil
}

// VerifyChainIDs checks every node client against its registry descriptor.
// A misconfigured RPC endpoint would otherwise surface much later as a
// signature for the wrong chain id.
func (g *Gateway) VerifyChainIDs(ctx context.Context) error {
	for _, chain := range g.reg.Chains() {
		client, err := g.client(chain.ChainID)
		if err != nil {
			return err
		}
		nodeID, err := client.ChainID(ctx)
		if err != nil {
			return fmt.Errorf("chain id query on %s: %w", chain.Name, err)
		}
		if nodeID.Uint64() != chain.ChainID {
			return fmt.Errorf("node for %s reports chain id %s, registry says %d",
				chain.Name, nodeID, chain.ChainID)
		}
	}
	return nil
}

// SwitchNetwork moves the shared wallet to the given chain.
func (g *Gateway) SwitchNetwork(ctx context.Context, chainID uint64) error {
	return g.wallet.SwitchNetwork(ctx, chainID)
}

// Write signs, broadcasts and confirms a transaction on the wallet's active
// network. It fails with ErrWrongNetwork when the request targets another
// chain, and with RevertError when the transaction is mined but reverts.
func (g *Gateway) Write(ctx context.Context, req WriteRequest) (*WriteResult, error) {
	if !g.wallet.Connected() {
		return nil, &NotConnectedError{}
	}
	if active := g.wallet.ActiveChainID(); active != req.Chain.ChainID {
		return nil, fmt.Errorf("%w: active %d, requested %d (%s)",
			ErrWrongNetwork, active, req.Chain.ChainID, req.Chain.Name)
	}
	client, err := g.client(req.Chain.ChainID)
	if err != nil {
		return nil, err
	}
	from, err := g.wallet.Address()
	if err != nil {
		return nil, err
	}

	value := req.Value
	if value == nil {
		value = new(big.Int)
	}
	if err := g.wallet.RequestApproval(ctx, ApprovalRequest{
		Kind:     "transaction",
		ChainID:  req.Chain.ChainID,
		To:       req.To,
		Value:    value,
		Calldata: req.Calldata,
	}); err != nil {
		return nil, err
	}

	tx, err := g.buildTx(ctx, client, req.Chain, from, req.To, value, req.Calldata)
	if err != nil {
		return nil, err
	}
	signed, err := g.wallet.Signer().SignTx(new(big.Int).SetUint64(req.Chain.ChainID), tx)
	if err != nil {
		return nil, err
	}
	if err := client.SendTransaction(ctx, signed); err != nil {
		return nil, WrapProviderError(fmt.Errorf("broadcast on %s failed: %w", req.Chain.Name, err))
	}

	txHash := signed.Hash()
	g.log.Info().
		Str("network", req.Chain.Name).
		Str("tx_hash", txHash.Hex()).
		Str("to", req.To.Hex()).
		Str("value_wei", value.String()).
		Msg("transaction broadcast")

	receipt, err := g.waitReceipt(ctx, client, txHash)
	if err != nil {
		return nil, err
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		return nil, &RevertError{TxHash: txHash.Hex()}
	}
	g.log.Info().
		Str("network", req.Chain.Name).
		Str("tx_hash", txHash.Hex()).
		Uint64("gas_used", receipt.GasUsed).
		Str("block", receipt.BlockNumber.String()).
		Msg("transaction confirmed")

	return &WriteResult{
		TxHash:      txHash,
		BlockNumber: receipt.BlockNumber,
		Logs:        receipt.Logs,
		GasUsed:     receipt.GasUsed,
	}, nil
}

// BlockTimestamp returns the timestamp of a block on the given chain.
func (g *Gateway) BlockTimestamp(ctx context.Context, chain *registry.ChainDescriptor, blockNumber *big.Int) (uint64, error) {
	client, err := g.client(chain.ChainID)
	if err != nil {
		return 0, err
	}
	header, err := client.HeaderByNumber(ctx, blockNumber)
	if err != nil {
		return 0, fmt.Errorf("header %s on %s: %w", blockNumber, chain.Name, err)
	}
	return header.Time, nil
}

func (g *Gateway) buildTx(
	ctx context.Context,
	client EthClient,
	chain *registry.ChainDescriptor,
	from, to common.Address,
	value *big.Int,
	calldata []byte,
) (*types.Transaction, error) {
	nonce, err := client.PendingNonceAt(ctx, from)
	if err != nil {
		return nil, fmt.Errorf("pending nonce on %s: %w", chain.Name, err)
	}
	head, err := client.HeaderByNumber(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("latest header on %s: %w", chain.Name, err)
	}

	gasLimit, err := client.EstimateGas(ctx, ethereum.CallMsg{
		From:  from,
		To:    &to,
		Value: value,
		Data:  calldata,
	})
	if err != nil {
		return nil, fmt.Errorf("gas estimate on %s: %w", chain.Name, err)
	}
	gasLimit += gasLimit * g.cfg.GasLimitBufferPercent / 100

	// pre-EIP-1559 chains have no base fee; fall back to a legacy gas price
	if head.BaseFee == nil {
		gasPrice, err := client.SuggestGasPrice(ctx)
		if err != nil {
			return nil, fmt.Errorf("gas price on %s: %w", chain.Name, err)
		}
		return types.NewTx(&types.LegacyTx{
			Nonce:    nonce,
			GasPrice: gasPrice,
			Gas:      gasLimit,
			To:       &to,
			Value:    value,
			Data:     calldata,
		}), nil
	}

	tipCap, err := client.SuggestGasTipCap(ctx)
	if err != nil {
		return nil, fmt.Errorf("gas tip cap on %s: %w", chain.Name, err)
	}
	// maxFee = 2*baseFee + tip tolerates base-fee growth while pending.
	feeCap := new(big.Int).Add(new(big.Int).Mul(head.BaseFee, big.NewInt(2)), tipCap)

	return types.NewTx(&types.DynamicFeeTx{
		ChainID:   new(big.Int).SetUint64(chain.ChainID),
		Nonce:     nonce,
		GasTipCap: tipCap,
		GasFeeCap: feeCap,
		Gas:       gasLimit,
		To:        &to,
		Value:     value,
		Data:      calldata,
	}), nil
}

func (g *Gateway) waitReceipt(ctx context.Context, client EthClient, txHash common.Hash) (*types.Receipt, error) {
	ctx, cancel := context.WithTimeout(ctx, g.cfg.ReceiptTimeout)
	defer cancel()

	ticker := time.NewTicker(g.cfg.ReceiptPollInterval)
	defer ticker.Stop()

	for {
		receipt, err := client.TransactionReceipt(ctx, txHash)
		if err == nil && receipt != nil {
			return receipt, nil
		}
		if err != nil && err != ethereum.NotFound {
			g.log.Warn().Err(err).Str("tx_hash", txHash.Hex()).Msg("receipt lookup failed, retrying")
		}
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("transaction %s not confirmed: %w", txHash.Hex(), ctx.Err())
		case <-ticker.C:
		}
	}
}
