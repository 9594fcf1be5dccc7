package protocol

import (
	"context"
	"fmt"

	"github.com/gagliardetto/solana-go"

	"gemstake/pkg/program/gemfarm"
	"gemstake/pkg/sol"
)

// GemFarmProtocol reads gem farm state and assembles wallet-facing farm instructions.
type GemFarmProtocol struct {
	SolClient sol.ClientProvider
	Program   *gemfarm.Program
	Bank      *GemBankProtocol
}

func NewGemFarm(solClient sol.ClientProvider, program *gemfarm.Program) *GemFarmProtocol {
	if program == nil {
		program = gemfarm.New(gemfarm.ProgramID, nil)
	}
	return &GemFarmProtocol{
		SolClient: solClient,
		Program:   program,
		Bank:      NewGemBank(solClient, program.Bank),
	}
}

func (p *GemFarmProtocol) ProtocolName() string {
	return "gem-farm"
}

func (p *GemFarmProtocol) FetchFarm(ctx context.Context, farm solana.PublicKey) (*gemfarm.Farm, error) {
	return fetchAccount[gemfarm.Farm](ctx, p.SolClient.GetClient(), farm, "farm")
}

// FetchFarmer reads the farmer record at its address, not by identity.
func (p *GemFarmProtocol) FetchFarmer(ctx context.Context, farmer solana.PublicKey) (*gemfarm.Farmer, error) {
	return fetchAccount[gemfarm.Farmer](ctx, p.SolClient.GetClient(), farmer, "farmer")
}

func (p *GemFarmProtocol) FetchAuthorizationProof(ctx context.Context, proof solana.PublicKey) (*gemfarm.AuthorizationProof, error) {
	return fetchAccount[gemfarm.AuthorizationProof](ctx, p.SolClient.GetClient(), proof, "authorization proof")
}

// FetchTreasuryBalance returns the lamports held by the farm treasury.
func (p *GemFarmProtocol) FetchTreasuryBalance(ctx context.Context, farm solana.PublicKey) (uint64, error) {
	treasury, err := p.Program.FindFarmTreasuryPDA(farm)
	if err != nil {
		return 0, err
	}
	balance, err := p.SolClient.GetClient().GetBalance(ctx, treasury.Address)
	if err != nil {
		return 0, fmt.Errorf("failed to get treasury balance of %s: %w", farm, err)
	}
	return balance, nil
}

func (p *GemFarmProtocol) FetchAllFarms(ctx context.Context, manager *solana.PublicKey) ([]Keyed[gemfarm.Farm], error) {
	return fetchAllAccounts[gemfarm.Farm](ctx, p.SolClient.GetClient(), p.Program.ID, gemfarm.AccountFarm,
		memcmpKey(gemfarm.FarmManagerOffset, manager)...)
}

func (p *GemFarmProtocol) FetchAllFarmers(ctx context.Context, farm, identity *solana.PublicKey) ([]Keyed[gemfarm.Farmer], error) {
	filters := memcmpKey(gemfarm.FarmerFarmOffset, farm)
	filters = append(filters, memcmpKey(gemfarm.FarmerIdentityOffset, identity)...)
	return fetchAllAccounts[gemfarm.Farmer](ctx, p.SolClient.GetClient(), p.Program.ID, gemfarm.AccountFarmer, filters...)
}

func (p *GemFarmProtocol) FetchAllAuthorizationProofs(ctx context.Context, farm, funder *solana.PublicKey) ([]Keyed[gemfarm.AuthorizationProof], error) {
	filters := memcmpKey(gemfarm.AuthorizationFarmOffset, farm)
	filters = append(filters, memcmpKey(gemfarm.AuthorizationFunderOff, funder)...)
	return fetchAllAccounts[gemfarm.AuthorizationProof](ctx, p.SolClient.GetClient(), p.Program.ID, gemfarm.AccountAuthorizationProof, filters...)
}

// InitFarmerWallet creates the wallet's farmer record, paid by the wallet.
func (p *GemFarmProtocol) InitFarmerWallet(owner, farm, bank solana.PublicKey) (*gemfarm.FarmerResult, error) {
	return p.Program.InitFarmer(farm, bank, owner, owner)
}

func (p *GemFarmProtocol) StakeWallet(owner, farm, bank solana.PublicKey) (*gemfarm.FarmerResult, error) {
	return p.Program.Stake(farm, bank, owner)
}

func (p *GemFarmProtocol) UnstakeWallet(owner, farm, bank solana.PublicKey) (*gemfarm.FarmerResult, error) {
	return p.Program.Unstake(farm, bank, owner)
}

func (p *GemFarmProtocol) ClaimWallet(owner, farm, rewardAMint, rewardBMint solana.PublicKey) (*gemfarm.ClaimResult, error) {
	return p.Program.Claim(farm, owner, rewardAMint, rewardBMint)
}

// FlashDepositWallet reads the farm's bank and deposits into the wallet's staked vault with all proofs attached.
func (p *GemFarmProtocol) FlashDepositWallet(ctx context.Context, owner, farm solana.PublicKey, amount uint64, gemMint, gemSource, creator solana.PublicKey) (*gemfarm.FlashDepositResult, error) {
	farmAcc, err := p.FetchFarm(ctx, farm)
	if err != nil {
		return nil, err
	}
	proofs, err := DepositProofs(p.Program.Bank, farmAcc.Bank, gemMint, creator)
	if err != nil {
		return nil, fmt.Errorf("failed to derive deposit proofs: %w", err)
	}
	return p.Program.FlashDeposit(gemfarm.FlashDepositParams{
		Farm:      farm,
		Bank:      farmAcc.Bank,
		Identity:  owner,
		GemMint:   gemMint,
		GemSource: gemSource,
		Amount:    amount,
		Proofs:    proofs,
	})
}

func (p *GemFarmProtocol) RefreshFarmerWallet(farm, identity solana.PublicKey) (*gemfarm.FarmerResult, error) {
	return p.Program.RefreshFarmer(farm, identity)
}
