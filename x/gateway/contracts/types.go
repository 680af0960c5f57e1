package contracts

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// Bytes64 matches the Equito bytes64 struct: a 64-byte value split into two
// words, used for chain-agnostic addresses.
type Bytes64 struct {
	Lower [32]byte `abi:"lower"`
	Upper [32]byte `abi:"upper"`
}

// EquitoMessage matches the Solidity struct emitted by the Equito router.
// Field order matters: it is the canonical ABI encoding order used for
// message hashing.
type EquitoMessage struct {
	BlockNumber              *big.Int `abi:"blockNumber"`
	SourceChainSelector      *big.Int `abi:"sourceChainSelector"`
	Sender                   Bytes64  `abi:"sender"`
	DestinationChainSelector *big.Int `abi:"destinationChainSelector"`
	Receiver                 Bytes64  `abi:"receiver"`
	HashedData               [32]byte `abi:"hashedData"`
}

// MessageSendRequested is the router event signaling that a cross-chain
// message was requested. Emitted on both the base and the delivery
// transaction.
type MessageSendRequested struct {
	Message     EquitoMessage
	MessageData []byte
}

func mustParseType(typeName string, components []abi.ArgumentMarshaling) abi.Type {
	typ, err := abi.NewType(typeName, typeName, components)
	if err != nil {
		panic(fmt.Sprintf("failed to parse ABI type %s: %v", typeName, err))
	}
	return typ
}

func equitoMessageComponents() []abi.ArgumentMarshaling {
	bytes64 := []abi.ArgumentMarshaling{
		{Name: "lower", Type: "bytes32"},
		{Name: "upper", Type: "bytes32"},
	}
	return []abi.ArgumentMarshaling{
		{Name: "blockNumber", Type: "uint256"},
		{Name: "sourceChainSelector", Type: "uint256"},
		{Name: "sender", Type: "tuple", Components: bytes64},
		{Name: "destinationChainSelector", Type: "uint256"},
		{Name: "receiver", Type: "tuple", Components: bytes64},
		{Name: "hashedData", Type: "bytes32"},
	}
}

var equitoMessageArgs = abi.Arguments{
	{Type: mustParseType("tuple", equitoMessageComponents())},
}

// HashMessage computes the canonical Equito message hash: keccak256 of the
// ABI-encoded message struct. Deterministic for a given message.
func HashMessage(msg EquitoMessage) (common.Hash, error) {
	packed, err := equitoMessageArgs.Pack(msg)
	if err != nil {
		return common.Hash{}, fmt.Errorf("pack equito message: %w", err)
	}
	return crypto.Keccak256Hash(packed), nil
}
