// Package wallet loads the signing keypair used to submit staking transactions.
package wallet

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/gagliardetto/solana-go"
	"github.com/mr-tron/base58"
)

const secretKeySize = 64

// Wallet holds a single ed25519 keypair.
type Wallet struct {
	PrivateKey solana.PrivateKey
}

// Load reads a solana-keygen JSON file, or treats src as a base58 secret key
// when it is not a readable file.
func Load(src string) (*Wallet, error) {
	src = strings.TrimSpace(src)
	if src == "" {
		return nil, errors.New("no keypair configured")
	}

	if content, err := os.ReadFile(src); err == nil {
		key, err := solana.PrivateKeyFromSolanaKeygenFileBytes(content)
		if err != nil {
			return nil, fmt.Errorf("invalid keypair file %s: %w", src, err)
		}
		return &Wallet{PrivateKey: key}, nil
	}

	return FromBase58(src)
}

// FromBase58 parses a 64-byte base58 secret key.
func FromBase58(secret string) (*Wallet, error) {
	raw, err := base58.Decode(secret)
	if err != nil {
		return nil, fmt.Errorf("invalid base58 secret key: %w", err)
	}
	if len(raw) != secretKeySize {
		return nil, fmt.Errorf("invalid secret key length: expected %d bytes, got %d", secretKeySize, len(raw))
	}
	return &Wallet{PrivateKey: solana.PrivateKey(raw)}, nil
}

// Generate creates a fresh random wallet.
func Generate() (*Wallet, error) {
	key, err := solana.NewRandomPrivateKey()
	if err != nil {
		return nil, err
	}
	return &Wallet{PrivateKey: key}, nil
}

func (w *Wallet) PublicKey() solana.PublicKey {
	return w.PrivateKey.PublicKey()
}

// Base58 returns the secret key encoded for storage in env files.
func (w *Wallet) Base58() string {
	return base58.Encode(w.PrivateKey)
}
