// Package wallet loads the fleet and provides balance snapshots over RPC.
package wallet

import (
	"encoding/base64"
	"fmt"
	"os"

	"github.com/gagliardetto/solana-go"
	"github.com/mr-tron/base58"
	"gopkg.in/yaml.v3"

	"github.com/solfleet/solfleet/internal/swap"
)

// fleetFile is the on-disk wallet list.
//
//	wallets:
//	  - name: main
//	    private_key: <base58 or base64>
//	  - name: watch-only
//	    address: <pubkey>
type fleetFile struct {
	Wallets []walletEntry `yaml:"wallets"`
}

type walletEntry struct {
	Name       string `yaml:"name"`
	PrivateKey string `yaml:"private_key,omitempty"`
	Address    string `yaml:"address,omitempty"`
}

// LoadFleet reads the wallet file and returns the fleet in file order.
// Wallets with a private key get a KeyProvider that re-derives the base58
// key on demand; address-only entries join without a signing key. A broken
// key is an error, not a silent skip: the file is operator-owned state.
func LoadFleet(path string) ([]swap.Wallet, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading wallet file: %w", err)
	}

	var file fleetFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return nil, fmt.Errorf("parsing wallet file: %w", err)
	}
	if len(file.Wallets) == 0 {
		return nil, fmt.Errorf("wallet file %s lists no wallets", path)
	}

	fleet := make([]swap.Wallet, 0, len(file.Wallets))
	for i, entry := range file.Wallets {
		w, err := buildWallet(i, entry)
		if err != nil {
			return nil, fmt.Errorf("wallet %d (%s): %w", i, entry.Name, err)
		}
		fleet = append(fleet, w)
	}
	return fleet, nil
}

func buildWallet(index int, entry walletEntry) (swap.Wallet, error) {
	if entry.PrivateKey == "" {
		if entry.Address == "" {
			return swap.Wallet{}, fmt.Errorf("needs a private_key or an address")
		}
		if _, err := solana.PublicKeyFromBase58(entry.Address); err != nil {
			return swap.Wallet{}, fmt.Errorf("invalid address: %w", err)
		}
		return swap.Wallet{Index: index, Address: entry.Address}, nil
	}

	keyBase58, err := normalizeKey(entry.PrivateKey)
	if err != nil {
		return swap.Wallet{}, err
	}
	priv, err := solana.PrivateKeyFromBase58(keyBase58)
	if err != nil {
		return swap.Wallet{}, fmt.Errorf("invalid private key: %w", err)
	}

	return swap.Wallet{
		Index:   index,
		Address: priv.PublicKey().String(),
		Keys:    func() (string, error) { return keyBase58, nil },
	}, nil
}

// normalizeKey accepts a base58 or base64 encoded 64-byte key and returns
// the base58 form the API expects. Some wallet exports ship base64.
func normalizeKey(key string) (string, error) {
	if decoded, err := base58.Decode(key); err == nil && len(decoded) == 64 {
		return key, nil
	}
	decoded, err := base64.StdEncoding.DecodeString(key)
	if err != nil {
		return "", fmt.Errorf("private key is neither base58 nor base64")
	}
	if len(decoded) != 64 {
		return "", fmt.Errorf("invalid private key length: expected 64 bytes, got %d", len(decoded))
	}
	return base58.Encode(decoded), nil
}
