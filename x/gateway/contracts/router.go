package contracts

import (
	_ "embed"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// Equito router ABI JSON embedded at compile time
//
//go:embed abi/router.json
var routerABIJSON string

// ErrMessageNotFound is returned when a transaction's logs carry no
// MessageSendRequested event. This signals a protocol-level fault, not a
// user error.
var ErrMessageNotFound = errors.New("no MessageSendRequested event in transaction logs")

// RouterBinding wraps the Equito messaging router deployed on one chain. It
// encodes fee queries and message delivery calls and decodes the router's
// message events.
type RouterBinding struct {
	address common.Address
	abi     abi.ABI
}

// NewRouterBinding creates a binding for the router at the given address.
func NewRouterBinding(address common.Address) (*RouterBinding, error) {
	if address == (common.Address{}) {
		return nil, fmt.Errorf("router address cannot be zero")
	}
	parsedABI, err := abi.JSON(strings.NewReader(routerABIJSON))
	if err != nil {
		return nil, fmt.Errorf("failed to parse router ABI: %w", err)
	}
	return &RouterBinding{address: address, abi: parsedABI}, nil
}

// Address returns the router contract address.
func (b *RouterBinding) Address() common.Address {
	return b.address
}

// ABI returns the parsed router ABI.
func (b *RouterBinding) ABI() abi.ABI {
	return b.abi
}

// BuildGetFeeCalldata encodes getFee(sender) where sender is the application
// contract paying the messaging fee.
func (b *RouterBinding) BuildGetFeeCalldata(app common.Address) ([]byte, error) {
	data, err := b.abi.Pack("getFee", app)
	if err != nil {
		return nil, fmt.Errorf("failed to pack getFee calldata: %w", err)
	}
	return data, nil
}

// DecodeGetFee decodes the return value of getFee.
func (b *RouterBinding) DecodeGetFee(output []byte) (*big.Int, error) {
	values, err := b.abi.Unpack("getFee", output)
	if err != nil {
		return nil, fmt.Errorf("failed to unpack getFee output: %w", err)
	}
	fee, ok := values[0].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("unexpected getFee output type %T", values[0])
	}
	return fee, nil
}

// BuildDeliverCalldata encodes deliverAndExecuteMessage(message, messageData,
// verifierIndex, proof). The destination messaging fee is attached as the
// transaction value, not part of the calldata.
func (b *RouterBinding) BuildDeliverCalldata(
	msg EquitoMessage,
	messageData []byte,
	verifierIndex *big.Int,
	proof []byte,
) ([]byte, error) {
	if len(proof) == 0 {
		return nil, fmt.Errorf("proof cannot be empty")
	}
	if verifierIndex == nil {
		verifierIndex = big.NewInt(0)
	}
	data, err := b.abi.Pack("deliverAndExecuteMessage", msg, messageData, verifierIndex, proof)
	if err != nil {
		return nil, fmt.Errorf("failed to pack deliverAndExecuteMessage calldata: %w", err)
	}
	return data, nil
}

// ExtractMessageSendRequested scans receipt logs for the first
// MessageSendRequested event emitted by any router and decodes it.
func (b *RouterBinding) ExtractMessageSendRequested(logs []*types.Log) (*MessageSendRequested, error) {
	eventID := b.abi.Events["MessageSendRequested"].ID
	for _, lg := range logs {
		if lg == nil || len(lg.Topics) == 0 || lg.Topics[0] != eventID {
			continue
		}
		ev := new(MessageSendRequested)
		if err := b.abi.UnpackIntoInterface(ev, "MessageSendRequested", lg.Data); err != nil {
			return nil, fmt.Errorf("failed to decode MessageSendRequested: %w", err)
		}
		return ev, nil
	}
	return nil, ErrMessageNotFound
}
