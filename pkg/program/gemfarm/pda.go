package gemfarm

import (
	"fmt"

	"github.com/gagliardetto/solana-go"

	"gemstake/pkg/program/gembank"
)

// Program builds gem farm instructions. Bank is the gem bank deployment the farm delegates vaults to.
type Program struct {
	ID   solana.PublicKey
	Bank *gembank.Program
}

func New(programID solana.PublicKey, bank *gembank.Program) *Program {
	if bank == nil {
		bank = gembank.New(gembank.ProgramID)
	}
	return &Program{ID: programID, Bank: bank}
}

type PDA = gembank.PDA

func (p *Program) find(what string, seeds ...[]byte) (PDA, error) {
	addr, bump, err := solana.FindProgramAddress(seeds, p.ID)
	if err != nil {
		return PDA{}, fmt.Errorf("failed to derive %s address: %w", what, err)
	}
	return PDA{Address: addr, Bump: bump}, nil
}

func (p *Program) FindFarmerPDA(farm, identity solana.PublicKey) (PDA, error) {
	return p.find("farmer", []byte(SeedFarmer), farm[:], identity[:])
}

// FindFarmAuthorityPDA is seeded by the farm address alone.
func (p *Program) FindFarmAuthorityPDA(farm solana.PublicKey) (PDA, error) {
	return p.find("farm authority", farm[:])
}

func (p *Program) FindFarmTreasuryPDA(farm solana.PublicKey) (PDA, error) {
	return p.find("farm treasury", []byte(SeedTreasury), farm[:])
}

func (p *Program) FindAuthorizationProofPDA(farm, funder solana.PublicKey) (PDA, error) {
	return p.find("authorization proof", []byte(SeedAuthorization), farm[:], funder[:])
}

func (p *Program) FindRewardPotPDA(farm, rewardMint solana.PublicKey) (PDA, error) {
	return p.find("reward pot", []byte(SeedRewardPot), farm[:], rewardMint[:])
}
