package faucet

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

// Reader is the read-only gateway surface the faucet needs.
type Reader interface {
	Read(ctx context.Context, chain *registry.ChainDescriptor, to common.Address, calldata []byte) ([]byte, error)
}

// Writer covers the faucet's single-chain write.
type Writer interface {
	SwitchNetwork(ctx context.Context, chainID uint64) error
	Write(ctx context.Context, req gateway.WriteRequest) (*gateway.WriteResult, error)
}

var (
	_ Reader = (*gateway.Gateway)(nil)
	_ Writer = (*gateway.Gateway)(nil)
)

// Service hands out testnet governance tokens. One request grants the
// faucet's fixed drip amount of the chosen token.
type Service struct {
	reader Reader
	writer Writer
	reg    *registry.Registry
	log    zerolog.Logger
}

// NewService creates a faucet service.
func NewService(reader Reader, writer Writer, reg *registry.Registry, logger zerolog.Logger) *Service {
	return &Service{
		reader: reader,
		writer: writer,
		reg:    reg,
		log:    logger.With().Str("component", "faucet").Logger(),
	}
}

// tokenAddress resolves a governance token's deployment on a chain.
func (s *Service) tokenAddress(chain *registry.ChainDescriptor, tokenName string) (common.Address, error) {
	key, err := registry.TokenByName(tokenName)
	if err != nil {
		return common.Address{}, err
	}
	return chain.Contract(key)
}

// Request asks the faucet on the given chain to transfer tokens to the
// wallet account.
func (s *Service) Request(ctx context.Context, chain *registry.ChainDescriptor, tokenName string) (*gateway.WriteResult, error) {
	token, err := s.tokenAddress(chain, tokenName)
	if err != nil {
		return nil, err
	}
	faucetAddr, err := chain.Contract(registry.ContractFaucet)
	if err != nil {
		return nil, err
	}
	binding, err := contracts.NewFaucetBinding(faucetAddr)
	if err != nil {
		return nil, err
	}
	calldata, err := binding.BuildRequestTokensCalldata(token)
	if err != nil {
		return nil, err
	}

	if err := s.writer.SwitchNetwork(ctx, chain.ChainID); err != nil {
		return nil, err
	}
	result, err := s.writer.Write(ctx, gateway.WriteRequest{
		Chain:    chain,
		To:       faucetAddr,
		Calldata: calldata,
	})
	if err != nil {
		return nil, fmt.Errorf("faucet request on %s: %w", chain.Name, err)
	}
	s.log.Info().
		Str("network", chain.Name).
		Str("token", tokenName).
		Str("tx_hash", result.TxHash.Hex()).
		Msg("faucet drip requested")
	return result, nil
}

// DripAmount reads the fixed amount one faucet request grants.
func (s *Service) DripAmount(ctx context.Context, chain *registry.ChainDescriptor) (*big.Int, error) {
	faucetAddr, err := chain.Contract(registry.ContractFaucet)
	if err != nil {
		return nil, err
	}
	binding, err := contracts.NewFaucetBinding(faucetAddr)
	if err != nil {
		return nil, err
	}
	calldata, err := binding.BuildDripAmountCalldata()
	if err != nil {
		return nil, err
	}
	out, err := s.reader.Read(ctx, chain, faucetAddr, calldata)
	if err != nil {
		return nil, fmt.Errorf("drip amount on %s: %w", chain.Name, err)
	}
	return binding.DecodeDripAmount(out)
}
