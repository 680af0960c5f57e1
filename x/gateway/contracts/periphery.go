package contracts

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
)

const faucetABIJSON = `[
{"type":"function","name":"requestTokens","stateMutability":"nonpayable","inputs":[{"name":"token","type":"address"}],"outputs":[]},
{"type":"function","name":"dripAmount","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint256"}]}
]`

const swapABIJSON = `[
{"type":"function","name":"bridgeToken","stateMutability":"payable","inputs":[{"name":"destinationChainSelector","type":"uint256"},{"name":"token","type":"address"},{"name":"amount","type":"uint256"}],"outputs":[]},
{"type":"function","name":"bridgeFee","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint256"}]}
]`

const pingPongABIJSON = `[
{"type":"function","name":"sendPing","stateMutability":"payable","inputs":[{"name":"destinationChainSelector","type":"uint256"},{"name":"message","type":"string"}],"outputs":[]}
]`

// FaucetBinding wraps the testnet token faucet.
type FaucetBinding struct {
	address common.Address
	abi     abi.ABI
}

func NewFaucetBinding(address common.Address) (*FaucetBinding, error) {
	if address == (common.Address{}) {
		return nil, fmt.Errorf("faucet address cannot be zero")
	}
	parsedABI, err := abi.JSON(strings.NewReader(faucetABIJSON))
	if err != nil {
		return nil, fmt.Errorf("failed to parse faucet ABI: %w", err)
	}
	return &FaucetBinding{address: address, abi: parsedABI}, nil
}

func (b *FaucetBinding) Address() common.Address {
	return b.address
}

// BuildRequestTokensCalldata encodes requestTokens(token). The faucet grants
// a fixed drip amount per request.
func (b *FaucetBinding) BuildRequestTokensCalldata(token common.Address) ([]byte, error) {
	data, err := b.abi.Pack("requestTokens", token)
	if err != nil {
		return nil, fmt.Errorf("failed to pack requestTokens calldata: %w", err)
	}
	return data, nil
}

func (b *FaucetBinding) BuildDripAmountCalldata() ([]byte, error) {
	return b.abi.Pack("dripAmount")
}

func (b *FaucetBinding) DecodeDripAmount(output []byte) (*big.Int, error) {
	values, err := b.abi.Unpack("dripAmount", output)
	if err != nil {
		return nil, fmt.Errorf("failed to unpack dripAmount output: %w", err)
	}
	amount, ok := values[0].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("unexpected dripAmount output type %T", values[0])
	}
	return amount, nil
}

// SwapBinding wraps the EquitoSwap token bridge contract.
type SwapBinding struct {
	address common.Address
	abi     abi.ABI
}

func NewSwapBinding(address common.Address) (*SwapBinding, error) {
	if address == (common.Address{}) {
		return nil, fmt.Errorf("swap address cannot be zero")
	}
	parsedABI, err := abi.JSON(strings.NewReader(swapABIJSON))
	if err != nil {
		return nil, fmt.Errorf("failed to parse swap ABI: %w", err)
	}
	return &SwapBinding{address: address, abi: parsedABI}, nil
}

func (b *SwapBinding) Address() common.Address {
	return b.address
}

// BuildBridgeTokenCalldata encodes bridgeToken. The attached value must cover
// the source messaging fee plus the bridge fee.
func (b *SwapBinding) BuildBridgeTokenCalldata(
	destinationSelector *big.Int,
	token common.Address,
	amount *big.Int,
) ([]byte, error) {
	if amount == nil || amount.Sign() <= 0 {
		return nil, fmt.Errorf("bridge amount must be positive")
	}
	data, err := b.abi.Pack("bridgeToken", destinationSelector, token, amount)
	if err != nil {
		return nil, fmt.Errorf("failed to pack bridgeToken calldata: %w", err)
	}
	return data, nil
}

func (b *SwapBinding) BuildBridgeFeeCalldata() ([]byte, error) {
	return b.abi.Pack("bridgeFee")
}

func (b *SwapBinding) DecodeBridgeFee(output []byte) (*big.Int, error) {
	values, err := b.abi.Unpack("bridgeFee", output)
	if err != nil {
		return nil, fmt.Errorf("failed to unpack bridgeFee output: %w", err)
	}
	fee, ok := values[0].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("unexpected bridgeFee output type %T", values[0])
	}
	return fee, nil
}

// PingPongBinding wraps the messaging-layer health check contract.
type PingPongBinding struct {
	address common.Address
	abi     abi.ABI
}

func NewPingPongBinding(address common.Address) (*PingPongBinding, error) {
	if address == (common.Address{}) {
		return nil, fmt.Errorf("ping-pong address cannot be zero")
	}
	parsedABI, err := abi.JSON(strings.NewReader(pingPongABIJSON))
	if err != nil {
		return nil, fmt.Errorf("failed to parse ping-pong ABI: %w", err)
	}
	return &PingPongBinding{address: address, abi: parsedABI}, nil
}

func (b *PingPongBinding) Address() common.Address {
	return b.address
}

// BuildSendPingCalldata encodes sendPing. Delivering the resulting message on
// the destination chain makes the contract emit the answering pong message.
func (b *PingPongBinding) BuildSendPingCalldata(destinationSelector *big.Int, message string) ([]byte, error) {
	if message == "" {
		return nil, fmt.Errorf("ping message cannot be empty")
	}
	data, err := b.abi.Pack("sendPing", destinationSelector, message)
	if err != nil {
		return nil, fmt.Errorf("failed to pack sendPing calldata: %w", err)
	}
	return data, nil
}
