package registry

// Testnet deployment of the EquitoVote protocol. Arbitrum Sepolia holds
// canonical proposal state; every other chain may act as a source.
const DefaultDestinationSelector = 1004

// DefaultChains mirrors the current testnet deployment addresses.
func DefaultChains() []ChainDescriptor {
	return []ChainDescriptor{
		{
			Name:          "Ethereum Sepolia",
			ChainID:       11155111,
			ChainSelector: 1001,
			NativeSymbol:  "ETH",
			RPCEndpoint:   "wss://ethereum-sepolia-rpc.publicnode.com",
			Contracts: map[ContractName]string{
				ContractEquitoVote: "0x4c56A9Fe1aE764E7Ad46a3b6AF076EDbbb22eB81",
				ContractFaucet:     "0x6a16Ee05aE124ba9a0b5Ecf26e245b68613Bf5ad",
				ContractSwap:       "0x27eEb830986B44eC05e78912Ee9A0CB9820211bb",
				ContractPingPong:   "0xDb8a55b811DEBBe5cd28a1db7E78f0fE5d282862",
				TokenVoteSphere:    "0x1C04808EE9d755f7B3b2d7fe7933F4Aec8D8Ee0a",
				TokenMetaQuorum:    "0x7E44F7aC8c4edB2FA7657188e2698fF96D7D9FB0",
				TokenChainLight:    "0x2c9E6077AbeD459BcB8e70eF90e5C841Fa4b1c1c",
			},
		},
		{
			Name:          "Arbitrum Sepolia",
			ChainID:       421614,
			ChainSelector: 1004,
			NativeSymbol:  "ETH",
			RPCEndpoint:   "wss://arbitrum-sepolia-rpc.publicnode.com",
			Contracts: map[ContractName]string{
				ContractEquitoVote: "0x75E4bbF4FBA5a5aE14E9791e3b5a17e1e0cbcB6f",
				ContractFaucet:     "0xcc4F55180C0d8e8A9e7b8b1E8cF1A5BDE39c00b5",
				ContractSwap:       "0x496667E89C15409e9a1E7e0f2D15DcDFac430300",
				ContractPingPong:   "0xCD7949891D3075EF8681b9624746Ea78a5C27aa4",
				TokenVoteSphere:    "0x93Fa9Dc0B3a442CaD65bd1E5F19e8c1bd9a7B879",
				TokenMetaQuorum:    "0xF9dd5F5a63A4fBA82b23dDa7e5EC3B6C4eFbb1f7",
				TokenChainLight:    "0x4CCa79B7F1c60F0D18Eaf94fe47b5fCbba9bb967",
			},
		},
		{
			Name:          "Optimism Sepolia",
			ChainID:       11155420,
			ChainSelector: 1006,
			NativeSymbol:  "ETH",
			RPCEndpoint:   "wss://optimism-sepolia-rpc.publicnode.com",
			Contracts: map[ContractName]string{
				ContractEquitoVote: "0x9A6cE1F9a9329Db50FcA0Ff2b264Ec60cBcC8d6A",
				ContractFaucet:     "0x48A3eD7eD2F02dBc4eFDA668e3A1C8ad17B9C7e0",
				TokenVoteSphere:    "0xA69B9ff41cFb2A1f1D7Ca5d0F1eB5dD1C19d6EbB",
				TokenMetaQuorum:    "0xD4bE6B6a2F4eBd243E4c5B4F3a9696EdE39D9dB8",
				TokenChainLight:    "0x61E5E1ea1E5d1EacF8B5cF1c9E5e9Ee1a98e9A88",
			},
		},
		{
			Name:          "Base Sepolia",
			ChainID:       84532,
			ChainSelector: 1007,
			NativeSymbol:  "ETH",
			RPCEndpoint:   "wss://base-sepolia-rpc.publicnode.com",
			Contracts: map[ContractName]string{
				ContractEquitoVote: "0xB32f6F6bd04e2E4c9e4e47Cad1a1e22C86Ee2cEE",
				ContractFaucet:     "0x0bD5DE5Bd1A5ccB9EA8eB84c9F0dB9A6BbF22e29",
				TokenVoteSphere:    "0x5Ff49C0cAbF549b1D0A4D9cE66fE3EdAd0a1F1A2",
				TokenMetaQuorum:    "0xCb6bD9E2C0dDdE458dF26a7D7C88B64Fa57C0bB6",
				TokenChainLight:    "0x63f4E60f5AcB1c1CE73Cf28c0e9BeE5D66F7ceA9",
			},
		},
		{
			Name:          "Blast Sepolia",
			ChainID:       168587773,
			ChainSelector: 1018,
			NativeSymbol:  "ETH",
			RPCEndpoint:   "wss://blast-sepolia-rpc.publicnode.com",
			Contracts: map[ContractName]string{
				ContractEquitoVote: "0xeD0e4E7eBdE2EaD1a3D0A63B9c5dEe19dCcAe6eD",
				ContractFaucet:     "0x7D6C60fE5C9D9A57Ea93DdE9DcF6CC6C5e2b99B2",
				TokenVoteSphere:    "0x1A7E59d0cD9B2E5dFfE02B9DCdE1EbC09ecA2dF6",
				TokenMetaQuorum:    "0xE5b1eF6Ec1Cbd15fB8A6c79E4c6Bd2e46a79aF4A",
				TokenChainLight:    "0x9fE0A6cB3F6E2eA7F1c1dEbD20E6E7a9e37F99D5",
			},
		},
	}
}

// Default returns the registry for the testnet deployment.
func Default() *Registry {
	r, err := New(DefaultChains(), DefaultDestinationSelector)
	if err != nil {
		panic(err)
	}
	return r
}
