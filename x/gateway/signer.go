package gateway

import (
	"crypto/ecdsa"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
)

// Signer signs transactions for one account across networks.
type Signer interface {
	Address() common.Address
	SignTx(chainID *big.Int, tx *types.Transaction) (*types.Transaction, error)
}

// LocalECDSASigner signs with an in-memory secp256k1 key.
type LocalECDSASigner struct {
	key     *ecdsa.PrivateKey
	address common.Address
}

var _ Signer = (*LocalECDSASigner)(nil)

// NewLocalECDSASigner creates a signer from a private key.
func NewLocalECDSASigner(key *ecdsa.PrivateKey) (*LocalECDSASigner, error) {
	if key == nil {
		return nil, fmt.Errorf("private key cannot be nil")
	}
	return &LocalECDSASigner{
		key:     key,
		address: crypto.PubkeyToAddress(key.PublicKey),
	}, nil
}

// NewLocalECDSASignerFromHex creates a signer from a hex-encoded private key,
// with or without the 0x prefix.
func NewLocalECDSASignerFromHex(hexKey string) (*LocalECDSASigner, error) {
	if len(hexKey) >= 2 && hexKey[:2] == "0x" {
		hexKey = hexKey[2:]
	}
	key, err := crypto.HexToECDSA(hexKey)
	if err != nil {
		return nil, fmt.Errorf("failed to parse private key: %w", err)
	}
	return NewLocalECDSASigner(key)
}

// Address returns the signer's account address.
func (s *LocalECDSASigner) Address() common.Address {
	return s.address
}

// SignTx signs tx for the given chain using the latest supported signer.
func (s *LocalECDSASigner) SignTx(chainID *big.Int, tx *types.Transaction) (*types.Transaction, error) {
	if chainID == nil || chainID.Sign() <= 0 {
		return nil, fmt.Errorf("chain id must be positive")
	}
	signed, err := types.SignTx(tx, types.LatestSignerForChainID(chainID), s.key)
	if err != nil {
		return nil, fmt.Errorf("failed to sign transaction: %w", err)
	}
	return signed, nil
}
