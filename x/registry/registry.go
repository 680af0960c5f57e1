package registry

import (
	"fmt"
	"os"

	"github.com/ethereum/go-ethereum/common"
	"gopkg.in/yaml.v3"
)

// ContractName identifies a deployed contract within a chain's address map.
type ContractName string

const (
	ContractEquitoVote ContractName = "equito_vote"
	ContractFaucet     ContractName = "faucet"
	ContractSwap       ContractName = "swap"
	ContractPingPong   ContractName = "ping_pong"

	TokenVoteSphere ContractName = "vote_sphere"
	TokenMetaQuorum ContractName = "meta_quorum"
	TokenChainLight ContractName = "chain_light"
)

// ChainDescriptor describes one supported network. Immutable after load.
type ChainDescriptor struct {
	// Name is the human-readable network name.
	Name string `yaml:"name"`
	// ChainID is the EVM chain identifier used at the wallet/RPC level.
	ChainID uint64 `yaml:"chain_id"`
	// ChainSelector is the Equito messaging-protocol identifier. It lives in
	// a separate namespace from ChainID.
	ChainSelector uint64 `yaml:"chain_selector"`
	// NativeSymbol is the native-currency ticker used in fee displays.
	NativeSymbol string `yaml:"native_symbol"`
	// RPCEndpoint is the node URL for this network.
	RPCEndpoint string `yaml:"rpc_endpoint"`
	// Contracts maps logical contract names to deployed addresses.
	Contracts map[ContractName]string `yaml:"contracts"`
}

// Contract resolves a logical contract name to its deployed address.
func (c *ChainDescriptor) Contract(name ContractName) (common.Address, error) {
	hex, ok := c.Contracts[name]
	if !ok || hex == "" {
		return common.Address{}, fmt.Errorf("chain %s has no %q contract", c.Name, name)
	}
	if !common.IsHexAddress(hex) {
		return common.Address{}, fmt.Errorf("chain %s: invalid address %q for contract %q", c.Name, hex, name)
	}
	return common.HexToAddress(hex), nil
}

// TokenByName maps a governance-token display name to its registry key.
func TokenByName(name string) (ContractName, error) {
	switch name {
	case "VoteSphere":
		return TokenVoteSphere, nil
	case "MetaQuorum":
		return TokenMetaQuorum, nil
	case "ChainLight":
		return TokenChainLight, nil
	default:
		return "", fmt.Errorf("unknown governance token %q", name)
	}
}

// Registry is the static set of supported chains plus the fixed destination.
type Registry struct {
	chains              []ChainDescriptor
	byID                map[uint64]*ChainDescriptor
	bySelector          map[uint64]*ChainDescriptor
	destinationSelector uint64
}

type registryFile struct {
	DestinationSelector uint64            `yaml:"destination_selector"`
	Chains              []ChainDescriptor `yaml:"chains"`
}

// New builds a registry from descriptors. Exactly one chain must match the
// destination selector.
func New(chains []ChainDescriptor, destinationSelector uint64) (*Registry, error) {
	if len(chains) == 0 {
		return nil, fmt.Errorf("at least one chain is required")
	}

	r := &Registry{
		chains:              chains,
		byID:                make(map[uint64]*ChainDescriptor, len(chains)),
		bySelector:          make(map[uint64]*ChainDescriptor, len(chains)),
		destinationSelector: destinationSelector,
	}
	for i := range chains {
		c := &r.chains[i]
		if c.ChainID == 0 || c.ChainSelector == 0 {
			return nil, fmt.Errorf("chain %q must have chain_id and chain_selector", c.Name)
		}
		if _, dup := r.byID[c.ChainID]; dup {
			return nil, fmt.Errorf("duplicate chain_id %d", c.ChainID)
		}
		if _, dup := r.bySelector[c.ChainSelector]; dup {
			return nil, fmt.Errorf("duplicate chain_selector %d", c.ChainSelector)
		}
		r.byID[c.ChainID] = c
		r.bySelector[c.ChainSelector] = c
	}
	if _, ok := r.bySelector[destinationSelector]; !ok {
		return nil, fmt.Errorf("destination selector %d is not a registered chain", destinationSelector)
	}
	return r, nil
}

// Load reads a registry from a YAML file.
func Load(path string) (*Registry, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read registry file: %w", err)
	}
	var f registryFile
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("parse registry file %s: %w", path, err)
	}
	return New(f.Chains, f.DestinationSelector)
}

// Chains returns all supported chains in declaration order.
func (r *Registry) Chains() []ChainDescriptor {
	out := make([]ChainDescriptor, len(r.chains))
	copy(out, r.chains)
	return out
}

// ByChainID resolves a wallet-level chain identifier.
func (r *Registry) ByChainID(id uint64) (*ChainDescriptor, error) {
	c, ok := r.byID[id]
	if !ok {
		return nil, fmt.Errorf("unsupported chain id %d", id)
	}
	return c, nil
}

// BySelector resolves an Equito chain selector.
func (r *Registry) BySelector(selector uint64) (*ChainDescriptor, error) {
	c, ok := r.bySelector[selector]
	if !ok {
		return nil, fmt.Errorf("unsupported chain selector %d", selector)
	}
	return c, nil
}

// Destination returns the fixed chain holding canonical proposal state.
func (r *Registry) Destination() *ChainDescriptor {
	return r.bySelector[r.destinationSelector]
}
