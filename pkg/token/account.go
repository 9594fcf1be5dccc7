package token

import (
	"encoding/binary"
	"fmt"

	"github.com/gagliardetto/solana-go"
)

const (
	// AccountSize is the packed size of an SPL token account.
	AccountSize = 165

	MintOffset   = 0
	OwnerOffset  = 32
	AmountOffset = 64
	StateOffset  = 108
)

type AccountState uint8

const (
	StateUninitialized AccountState = iota
	StateInitialized
	StateFrozen
)

// Account is the subset of an SPL token account the staking flows read.
type Account struct {
	Address solana.PublicKey
	Mint    solana.PublicKey
	Owner   solana.PublicKey
	Amount  uint64
	State   AccountState
}

// Decode parses packed SPL token account data.
func (a *Account) Decode(data []byte) error {
	if len(data) < AccountSize {
		return fmt.Errorf("token account data too short: expected %d bytes, got %d", AccountSize, len(data))
	}
	copy(a.Mint[:], data[MintOffset:MintOffset+32])
	copy(a.Owner[:], data[OwnerOffset:OwnerOffset+32])
	a.Amount = binary.LittleEndian.Uint64(data[AmountOffset : AmountOffset+8])
	a.State = AccountState(data[StateOffset])
	return nil
}

// Encode packs the account back into its 165-byte layout. Fields not tracked are zero.
func (a *Account) Encode() []byte {
	data := make([]byte, AccountSize)
	copy(data[MintOffset:], a.Mint[:])
	copy(data[OwnerOffset:], a.Owner[:])
	binary.LittleEndian.PutUint64(data[AmountOffset:], a.Amount)
	data[StateOffset] = byte(a.State)
	return data
}

// HoldsSingle reports whether the account holds exactly one token, the shape of an NFT holding.
func (a *Account) HoldsSingle() bool {
	return a.Amount == 1 && a.State == StateInitialized
}

// FindATA derives the associated token account of owner for mint.
func FindATA(owner, mint solana.PublicKey) (solana.PublicKey, error) {
	ata, _, err := solana.FindAssociatedTokenAddress(owner, mint)
	if err != nil {
		return solana.PublicKey{}, fmt.Errorf("failed to derive ATA for %s/%s: %w", owner, mint, err)
	}
	return ata, nil
}
