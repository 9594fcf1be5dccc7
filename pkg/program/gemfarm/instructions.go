package gemfarm

import (
	"fmt"

	"github.com/gagliardetto/solana-go"

	"gemstake/pkg/anchor"
	"gemstake/pkg/program/gembank"
	"gemstake/pkg/token"
)

type initFarmArgs struct {
	BumpAuth     uint8
	BumpTreasury uint8
	BumpPotA     uint8
	BumpPotB     uint8
	RewardTypeA  RewardType
	RewardTypeB  RewardType
	FarmConfig   FarmConfig
}

type updateFarmArgs struct {
	Config  *FarmConfig       `bin:"optional"`
	Manager *solana.PublicKey `bin:"optional"`
}

type payoutArgs struct {
	BumpAuth     uint8
	BumpTreasury uint8
	Lamports     uint64
}

type addToBankWhitelistArgs struct {
	BumpAuth      uint8
	BumpWl        uint8
	WhitelistType uint8
}

type removeFromBankWhitelistArgs struct {
	BumpAuth uint8
	BumpWl   uint8
}

type initFarmerArgs struct {
	BumpFarmer uint8
	BumpVault  uint8
}

type stakeArgs struct {
	BumpAuth   uint8
	BumpFarmer uint8
}

type unstakeArgs struct {
	BumpAuth     uint8
	BumpTreasury uint8
	BumpFarmer   uint8
}

type claimArgs struct {
	BumpAuth   uint8
	BumpFarmer uint8
	BumpPotA   uint8
	BumpPotB   uint8
}

type flashDepositArgs struct {
	BumpFarmer    uint8
	BumpVaultAuth uint8
	BumpGemBox    uint8
	BumpGdr       uint8
	BumpRarity    uint8
	Amount        uint64
}

type refreshFarmerArgs struct {
	BumpFarmer uint8
}

type authorizeArgs struct {
	BumpProof uint8
}

type fundRewardArgs struct {
	BumpProof          uint8
	BumpPot            uint8
	VariableRateConfig *VariableRateConfig `bin:"optional"`
	FixedRateConfig    *FixedRateConfig    `bin:"optional"`
}

type cancelRewardArgs struct {
	BumpAuth uint8
	BumpPot  uint8
}

type addRaritiesArgs struct {
	BumpAuth      uint8
	RarityConfigs []RarityConfig
}

// --------------------------------------- farm admin

type InitFarmParams struct {
	Farm        solana.PublicKey
	FarmManager solana.PublicKey
	Payer       solana.PublicKey
	Bank        solana.PublicKey
	RewardAMint solana.PublicKey
	RewardAType RewardType
	RewardBMint solana.PublicKey
	RewardBType RewardType
	Config      FarmConfig
}

type InitFarmResult struct {
	Instruction   *anchor.Instruction
	FarmAuthority PDA
	FarmTreasury  PDA
	RewardAPot    PDA
	RewardBPot    PDA
}

// InitFarm creates a farm and its bank. Both addresses come from fresh keypairs that must co-sign.
func (p *Program) InitFarm(params InitFarmParams) (*InitFarmResult, error) {
	if params.RewardAMint.Equals(params.RewardBMint) {
		return nil, fmt.Errorf("reward mints must differ")
	}
	auth, err := p.FindFarmAuthorityPDA(params.Farm)
	if err != nil {
		return nil, err
	}
	treasury, err := p.FindFarmTreasuryPDA(params.Farm)
	if err != nil {
		return nil, err
	}
	potA, err := p.FindRewardPotPDA(params.Farm, params.RewardAMint)
	if err != nil {
		return nil, err
	}
	potB, err := p.FindRewardPotPDA(params.Farm, params.RewardBMint)
	if err != nil {
		return nil, err
	}

	args := &initFarmArgs{
		BumpAuth:     auth.Bump,
		BumpTreasury: treasury.Bump,
		BumpPotA:     potA.Bump,
		BumpPotB:     potB.Bump,
		RewardTypeA:  params.RewardAType,
		RewardTypeB:  params.RewardBType,
		FarmConfig:   params.Config,
	}
	inst := anchor.NewInstruction(p.ID, "init_farm", args,
		anchor.WritableSigner(params.Farm),
		anchor.Signer(params.FarmManager),
		anchor.Writable(auth.Address),
		anchor.ReadOnly(treasury.Address),
		anchor.WritableSigner(params.Payer),
		anchor.Writable(potA.Address),
		anchor.ReadOnly(params.RewardAMint),
		anchor.Writable(potB.Address),
		anchor.ReadOnly(params.RewardBMint),
		anchor.WritableSigner(params.Bank),
		anchor.ReadOnly(p.Bank.ID),
		anchor.ReadOnly(solana.TokenProgramID),
		anchor.ReadOnly(solana.SystemProgramID),
		anchor.ReadOnly(solana.SysVarRentPubkey),
	)
	return &InitFarmResult{Instruction: inst, FarmAuthority: auth, FarmTreasury: treasury, RewardAPot: potA, RewardBPot: potB}, nil
}

// UpdateFarm changes the config, the manager, or both. Nil leaves a field untouched.
func (p *Program) UpdateFarm(farm, farmManager solana.PublicKey, config *FarmConfig, newManager *solana.PublicKey) *anchor.Instruction {
	return anchor.NewInstruction(p.ID, "update_farm", &updateFarmArgs{Config: config, Manager: newManager},
		anchor.Writable(farm),
		anchor.Signer(farmManager),
	)
}

func (p *Program) PayoutFromTreasury(farm, farmManager, destination solana.PublicKey, lamports uint64) (*anchor.Instruction, error) {
	auth, err := p.FindFarmAuthorityPDA(farm)
	if err != nil {
		return nil, err
	}
	treasury, err := p.FindFarmTreasuryPDA(farm)
	if err != nil {
		return nil, err
	}
	return anchor.NewInstruction(p.ID, "payout_from_treasury", &payoutArgs{BumpAuth: auth.Bump, BumpTreasury: treasury.Bump, Lamports: lamports},
		anchor.ReadOnly(farm),
		anchor.Signer(farmManager),
		anchor.ReadOnly(auth.Address),
		anchor.Writable(treasury.Address),
		anchor.Writable(destination),
		anchor.ReadOnly(solana.SystemProgramID),
	), nil
}

// AddToBankWhitelist whitelists address in the farm's bank, signed by the farm authority.
func (p *Program) AddToBankWhitelist(farm, bank, farmManager, address solana.PublicKey, whitelistType gembank.WhitelistType) (*gembank.WhitelistResult, error) {
	if whitelistType == 0 {
		return nil, fmt.Errorf("whitelist type must be creator and/or mint")
	}
	auth, err := p.FindFarmAuthorityPDA(farm)
	if err != nil {
		return nil, err
	}
	proof, err := p.Bank.FindWhitelistProofPDA(bank, address)
	if err != nil {
		return nil, err
	}

	inst := anchor.NewInstruction(p.ID, "add_to_bank_whitelist",
		&addToBankWhitelistArgs{BumpAuth: auth.Bump, BumpWl: proof.Bump, WhitelistType: uint8(whitelistType)},
		anchor.ReadOnly(farm),
		anchor.WritableSigner(farmManager),
		anchor.ReadOnly(auth.Address),
		anchor.Writable(bank),
		anchor.ReadOnly(address),
		anchor.Writable(proof.Address),
		anchor.ReadOnly(solana.SystemProgramID),
		anchor.ReadOnly(p.Bank.ID),
	)
	return &gembank.WhitelistResult{Instruction: inst, WhitelistProof: proof}, nil
}

func (p *Program) RemoveFromBankWhitelist(farm, bank, farmManager, address solana.PublicKey) (*gembank.WhitelistResult, error) {
	auth, err := p.FindFarmAuthorityPDA(farm)
	if err != nil {
		return nil, err
	}
	proof, err := p.Bank.FindWhitelistProofPDA(bank, address)
	if err != nil {
		return nil, err
	}

	inst := anchor.NewInstruction(p.ID, "remove_from_bank_whitelist",
		&removeFromBankWhitelistArgs{BumpAuth: auth.Bump, BumpWl: proof.Bump},
		anchor.ReadOnly(farm),
		anchor.WritableSigner(farmManager),
		anchor.Writable(auth.Address),
		anchor.Writable(bank),
		anchor.ReadOnly(address),
		anchor.Writable(proof.Address),
		anchor.ReadOnly(p.Bank.ID),
	)
	return &gembank.WhitelistResult{Instruction: inst, WhitelistProof: proof}, nil
}

// --------------------------------------- farmer ops

// FarmerResult carries the farmer and vault addresses an instruction was built against.
type FarmerResult struct {
	Instruction *anchor.Instruction
	Farmer      PDA
	Vault       PDA
}

// InitFarmer creates the farmer record and its bank vault. A zero payer defaults to identity.
func (p *Program) InitFarmer(farm, bank, identity, payer solana.PublicKey) (*FarmerResult, error) {
	farmer, err := p.FindFarmerPDA(farm, identity)
	if err != nil {
		return nil, err
	}
	vault, err := p.Bank.FindVaultPDA(bank, identity)
	if err != nil {
		return nil, err
	}
	if payer.IsZero() {
		payer = identity
	}

	inst := anchor.NewInstruction(p.ID, "init_farmer", &initFarmerArgs{BumpFarmer: farmer.Bump, BumpVault: vault.Bump},
		anchor.Writable(farm),
		anchor.Writable(farmer.Address),
		anchor.Signer(identity),
		anchor.WritableSigner(payer),
		anchor.Writable(bank),
		anchor.Writable(vault.Address),
		anchor.ReadOnly(p.Bank.ID),
		anchor.ReadOnly(solana.SystemProgramID),
	)
	return &FarmerResult{Instruction: inst, Farmer: farmer, Vault: vault}, nil
}

func (p *Program) Stake(farm, bank, identity solana.PublicKey) (*FarmerResult, error) {
	auth, err := p.FindFarmAuthorityPDA(farm)
	if err != nil {
		return nil, err
	}
	farmer, vault, err := p.farmerAndVault(farm, bank, identity)
	if err != nil {
		return nil, err
	}

	inst := anchor.NewInstruction(p.ID, "stake", &stakeArgs{BumpAuth: auth.Bump, BumpFarmer: farmer.Bump},
		anchor.Writable(farm),
		anchor.Writable(farmer.Address),
		anchor.Signer(identity),
		anchor.ReadOnly(bank),
		anchor.Writable(vault.Address),
		anchor.ReadOnly(auth.Address),
		anchor.ReadOnly(p.Bank.ID),
	)
	return &FarmerResult{Instruction: inst, Farmer: farmer, Vault: vault}, nil
}

// Unstake begins cooldown for a staked farmer, or ends it once cooldown has passed.
func (p *Program) Unstake(farm, bank, identity solana.PublicKey) (*FarmerResult, error) {
	auth, err := p.FindFarmAuthorityPDA(farm)
	if err != nil {
		return nil, err
	}
	treasury, err := p.FindFarmTreasuryPDA(farm)
	if err != nil {
		return nil, err
	}
	farmer, vault, err := p.farmerAndVault(farm, bank, identity)
	if err != nil {
		return nil, err
	}

	inst := anchor.NewInstruction(p.ID, "unstake", &unstakeArgs{BumpAuth: auth.Bump, BumpTreasury: treasury.Bump, BumpFarmer: farmer.Bump},
		anchor.Writable(farm),
		anchor.Writable(farmer.Address),
		anchor.Writable(treasury.Address),
		anchor.WritableSigner(identity),
		anchor.ReadOnly(bank),
		anchor.Writable(vault.Address),
		anchor.ReadOnly(auth.Address),
		anchor.ReadOnly(p.Bank.ID),
		anchor.ReadOnly(solana.SystemProgramID),
	)
	return &FarmerResult{Instruction: inst, Farmer: farmer, Vault: vault}, nil
}

func (p *Program) farmerAndVault(farm, bank, identity solana.PublicKey) (PDA, PDA, error) {
	farmer, err := p.FindFarmerPDA(farm, identity)
	if err != nil {
		return PDA{}, PDA{}, err
	}
	vault, err := p.Bank.FindVaultPDA(bank, identity)
	if err != nil {
		return PDA{}, PDA{}, err
	}
	return farmer, vault, nil
}

type ClaimResult struct {
	Instruction        *anchor.Instruction
	Farmer             PDA
	RewardAPot         PDA
	RewardBPot         PDA
	RewardADestination solana.PublicKey
	RewardBDestination solana.PublicKey
}

// Claim pays both accrued rewards into identity's associated token accounts, creating them if needed.
func (p *Program) Claim(farm, identity, rewardAMint, rewardBMint solana.PublicKey) (*ClaimResult, error) {
	auth, err := p.FindFarmAuthorityPDA(farm)
	if err != nil {
		return nil, err
	}
	farmer, err := p.FindFarmerPDA(farm, identity)
	if err != nil {
		return nil, err
	}
	potA, err := p.FindRewardPotPDA(farm, rewardAMint)
	if err != nil {
		return nil, err
	}
	potB, err := p.FindRewardPotPDA(farm, rewardBMint)
	if err != nil {
		return nil, err
	}
	destA, err := token.FindATA(identity, rewardAMint)
	if err != nil {
		return nil, err
	}
	destB, err := token.FindATA(identity, rewardBMint)
	if err != nil {
		return nil, err
	}

	args := &claimArgs{BumpAuth: auth.Bump, BumpFarmer: farmer.Bump, BumpPotA: potA.Bump, BumpPotB: potB.Bump}
	inst := anchor.NewInstruction(p.ID, "claim", args,
		anchor.Writable(farm),
		anchor.ReadOnly(auth.Address),
		anchor.Writable(farmer.Address),
		anchor.WritableSigner(identity),
		anchor.Writable(potA.Address),
		anchor.ReadOnly(rewardAMint),
		anchor.Writable(destA),
		anchor.Writable(potB.Address),
		anchor.ReadOnly(rewardBMint),
		anchor.Writable(destB),
		anchor.ReadOnly(solana.TokenProgramID),
		anchor.ReadOnly(solana.SPLAssociatedTokenAccountProgramID),
		anchor.ReadOnly(solana.SystemProgramID),
		anchor.ReadOnly(solana.SysVarRentPubkey),
	)
	return &ClaimResult{
		Instruction:        inst,
		Farmer:             farmer,
		RewardAPot:         potA,
		RewardBPot:         potB,
		RewardADestination: destA,
		RewardBDestination: destB,
	}, nil
}

type FlashDepositParams struct {
	Farm      solana.PublicKey
	Bank      solana.PublicKey
	Identity  solana.PublicKey
	GemMint   solana.PublicKey
	GemSource solana.PublicKey
	Amount    uint64
	Proofs    gembank.DepositProofs
}

type FlashDepositResult struct {
	Instruction *anchor.Instruction
	Farmer      PDA
	Vault       PDA
	gembank.GemAddresses
}

// FlashDeposit adds gems to an already staked vault without leaving the staked state.
func (p *Program) FlashDeposit(params FlashDepositParams) (*FlashDepositResult, error) {
	auth, err := p.FindFarmAuthorityPDA(params.Farm)
	if err != nil {
		return nil, err
	}
	farmer, vault, err := p.farmerAndVault(params.Farm, params.Bank, params.Identity)
	if err != nil {
		return nil, err
	}
	gems, err := p.Bank.FindGemAddresses(params.Bank, vault.Address, params.GemMint)
	if err != nil {
		return nil, err
	}

	args := &flashDepositArgs{
		BumpFarmer:    farmer.Bump,
		BumpVaultAuth: gems.VaultAuthority.Bump,
		BumpGemBox:    gems.GemBox.Bump,
		BumpGdr:       gems.GemDepositReceipt.Bump,
		BumpRarity:    gems.GemRarity.Bump,
		Amount:        params.Amount,
	}
	inst := anchor.NewInstruction(p.ID, "flash_deposit", args,
		anchor.Writable(params.Farm),
		anchor.ReadOnly(auth.Address),
		anchor.Writable(farmer.Address),
		anchor.WritableSigner(params.Identity),
		anchor.ReadOnly(params.Bank),
		anchor.Writable(vault.Address),
		anchor.ReadOnly(gems.VaultAuthority.Address),
		anchor.Writable(gems.GemBox.Address),
		anchor.Writable(gems.GemDepositReceipt.Address),
		anchor.Writable(params.GemSource),
		anchor.ReadOnly(params.GemMint),
		anchor.ReadOnly(gems.GemRarity.Address),
		anchor.ReadOnly(solana.TokenProgramID),
		anchor.ReadOnly(solana.SystemProgramID),
		anchor.ReadOnly(solana.SysVarRentPubkey),
		anchor.ReadOnly(p.Bank.ID),
	).WithRemainingAccounts(params.Proofs.RemainingAccounts()...)

	return &FlashDepositResult{Instruction: inst, Farmer: farmer, Vault: vault, GemAddresses: *gems}, nil
}

// RefreshFarmer recomputes accrued rewards. It needs no signer.
func (p *Program) RefreshFarmer(farm, identity solana.PublicKey) (*FarmerResult, error) {
	farmer, err := p.FindFarmerPDA(farm, identity)
	if err != nil {
		return nil, err
	}
	inst := anchor.NewInstruction(p.ID, "refresh_farmer", &refreshFarmerArgs{BumpFarmer: farmer.Bump},
		anchor.Writable(farm),
		anchor.Writable(farmer.Address),
		anchor.ReadOnly(identity),
	)
	return &FarmerResult{Instruction: inst, Farmer: farmer}, nil
}

// --------------------------------------- funder ops

type AuthorizationResult struct {
	Instruction        *anchor.Instruction
	AuthorizationProof PDA
}

func (p *Program) AuthorizeFunder(farm, farmManager, funder solana.PublicKey) (*AuthorizationResult, error) {
	return p.authorizeCommon("authorize_funder", farm, farmManager, funder)
}

func (p *Program) DeauthorizeFunder(farm, farmManager, funder solana.PublicKey) (*AuthorizationResult, error) {
	return p.authorizeCommon("deauthorize_funder", farm, farmManager, funder)
}

func (p *Program) authorizeCommon(name string, farm, farmManager, funder solana.PublicKey) (*AuthorizationResult, error) {
	proof, err := p.FindAuthorizationProofPDA(farm, funder)
	if err != nil {
		return nil, err
	}
	inst := anchor.NewInstruction(p.ID, name, &authorizeArgs{BumpProof: proof.Bump},
		anchor.Writable(farm),
		anchor.WritableSigner(farmManager),
		anchor.ReadOnly(funder),
		anchor.Writable(proof.Address),
		anchor.ReadOnly(solana.SystemProgramID),
	)
	return &AuthorizationResult{Instruction: inst, AuthorizationProof: proof}, nil
}

type FundRewardParams struct {
	Farm         solana.PublicKey
	RewardMint   solana.PublicKey
	Funder       solana.PublicKey
	RewardSource solana.PublicKey
	Variable     *VariableRateConfig
	Fixed        *FixedRateConfig
}

type RewardPotResult struct {
	Instruction *anchor.Instruction
	RewardPot   PDA
}

// FundReward tops up a reward pot. Exactly one of the rate configs must be set.
func (p *Program) FundReward(params FundRewardParams) (*RewardPotResult, error) {
	if (params.Variable == nil) == (params.Fixed == nil) {
		return nil, fmt.Errorf("exactly one of variable or fixed rate config is required")
	}
	proof, err := p.FindAuthorizationProofPDA(params.Farm, params.Funder)
	if err != nil {
		return nil, err
	}
	pot, err := p.FindRewardPotPDA(params.Farm, params.RewardMint)
	if err != nil {
		return nil, err
	}

	args := &fundRewardArgs{
		BumpProof:          proof.Bump,
		BumpPot:            pot.Bump,
		VariableRateConfig: params.Variable,
		FixedRateConfig:    params.Fixed,
	}
	inst := anchor.NewInstruction(p.ID, "fund_reward", args,
		anchor.Writable(params.Farm),
		anchor.ReadOnly(proof.Address),
		anchor.WritableSigner(params.Funder),
		anchor.Writable(pot.Address),
		anchor.Writable(params.RewardSource),
		anchor.ReadOnly(params.RewardMint),
		anchor.ReadOnly(solana.TokenProgramID),
		anchor.ReadOnly(solana.SystemProgramID),
	)
	return &RewardPotResult{Instruction: inst, RewardPot: pot}, nil
}

// CancelReward returns unpromised funds from the pot to receiver's associated token account.
func (p *Program) CancelReward(farm, farmManager, rewardMint, receiver solana.PublicKey) (*RewardPotResult, error) {
	auth, err := p.FindFarmAuthorityPDA(farm)
	if err != nil {
		return nil, err
	}
	pot, err := p.FindRewardPotPDA(farm, rewardMint)
	if err != nil {
		return nil, err
	}
	destination, err := token.FindATA(receiver, rewardMint)
	if err != nil {
		return nil, err
	}

	inst := anchor.NewInstruction(p.ID, "cancel_reward", &cancelRewardArgs{BumpAuth: auth.Bump, BumpPot: pot.Bump},
		anchor.Writable(farm),
		anchor.WritableSigner(farmManager),
		anchor.ReadOnly(auth.Address),
		anchor.Writable(pot.Address),
		anchor.Writable(destination),
		anchor.ReadOnly(rewardMint),
		anchor.Writable(receiver),
		anchor.ReadOnly(solana.TokenProgramID),
		anchor.ReadOnly(solana.SPLAssociatedTokenAccountProgramID),
		anchor.ReadOnly(solana.SystemProgramID),
		anchor.ReadOnly(solana.SysVarRentPubkey),
	)
	return &RewardPotResult{Instruction: inst, RewardPot: pot}, nil
}

func (p *Program) LockReward(farm, farmManager, rewardMint solana.PublicKey) *anchor.Instruction {
	return anchor.NewInstruction(p.ID, "lock_reward", nil,
		anchor.Writable(farm),
		anchor.WritableSigner(farmManager),
		anchor.ReadOnly(rewardMint),
	)
}

// --------------------------------------- rarity

// AddRaritiesToBank sets rarity points per mint. Each config contributes its mint and rarity PDA as remaining accounts.
func (p *Program) AddRaritiesToBank(farm, bank, farmManager solana.PublicKey, configs []RarityConfig) (*anchor.Instruction, error) {
	if len(configs) == 0 {
		return nil, fmt.Errorf("no rarity configs")
	}
	auth, err := p.FindFarmAuthorityPDA(farm)
	if err != nil {
		return nil, err
	}

	remaining := make([]*solana.AccountMeta, 0, 2*len(configs))
	for _, cfg := range configs {
		rarity, err := p.Bank.FindRarityPDA(bank, cfg.Mint)
		if err != nil {
			return nil, err
		}
		remaining = append(remaining, anchor.ReadOnly(cfg.Mint), anchor.Writable(rarity.Address))
	}

	return anchor.NewInstruction(p.ID, "add_rarities_to_bank", &addRaritiesArgs{BumpAuth: auth.Bump, RarityConfigs: configs},
		anchor.ReadOnly(farm),
		anchor.WritableSigner(farmManager),
		anchor.ReadOnly(auth.Address),
		anchor.ReadOnly(bank),
		anchor.ReadOnly(p.Bank.ID),
		anchor.ReadOnly(solana.SystemProgramID),
	).WithRemainingAccounts(remaining...), nil
}
