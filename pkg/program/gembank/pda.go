package gembank

import (
	"fmt"

	"github.com/gagliardetto/solana-go"
)

// Program builds addresses and instructions for one gem bank deployment.
type Program struct {
	ID solana.PublicKey
}

func New(programID solana.PublicKey) *Program {
	return &Program{ID: programID}
}

// PDA is a program derived address with its canonical bump.
type PDA struct {
	Address solana.PublicKey `json:"address"`
	Bump    uint8            `json:"bump"`
}

func (p *Program) find(what string, seeds ...[]byte) (PDA, error) {
	addr, bump, err := solana.FindProgramAddress(seeds, p.ID)
	if err != nil {
		return PDA{}, fmt.Errorf("failed to derive %s address: %w", what, err)
	}
	return PDA{Address: addr, Bump: bump}, nil
}

func (p *Program) FindVaultPDA(bank, creator solana.PublicKey) (PDA, error) {
	return p.find("vault", []byte(SeedVault), bank[:], creator[:])
}

func (p *Program) FindGemBoxPDA(vault, mint solana.PublicKey) (PDA, error) {
	return p.find("gem box", []byte(SeedGemBox), vault[:], mint[:])
}

func (p *Program) FindGdrPDA(vault, mint solana.PublicKey) (PDA, error) {
	return p.find("gem deposit receipt", []byte(SeedGemDepositReceipt), vault[:], mint[:])
}

// FindVaultAuthorityPDA is seeded by the vault address alone.
func (p *Program) FindVaultAuthorityPDA(vault solana.PublicKey) (PDA, error) {
	return p.find("vault authority", vault[:])
}

func (p *Program) FindWhitelistProofPDA(bank, whitelistedAddress solana.PublicKey) (PDA, error) {
	return p.find("whitelist proof", []byte(SeedWhitelist), bank[:], whitelistedAddress[:])
}

func (p *Program) FindRarityPDA(bank, mint solana.PublicKey) (PDA, error) {
	return p.find("gem rarity", []byte(SeedGemRarity), bank[:], mint[:])
}
