// Small helper to generate a dev wallet key (secp256k1) and print
// - private key (hex), ready for WALLET_PRIVATE_KEY
// - Ethereum address derived from the public key
package main

import (
	"fmt"

	"github.com/ethereum/go-ethereum/crypto"
)

func main() {
	key, err := crypto.GenerateKey()
	if err != nil {
		panic(err)
	}
	priv := fmt.Sprintf("%x", crypto.FromECDSA(key))
	addr := crypto.PubkeyToAddress(key.PublicKey).Hex()
	fmt.Printf("WALLET_PRIVATE_KEY=%s\n", priv)
	fmt.Printf("# address: %s\n", addr)
}
