// Package staking implements the user-level flows of a single gem farm:
// reading farm and farmer state, and assembling the instruction lists that
// stake, unstake and claim for a wallet.
package staking

import (
	"context"
	"errors"
	"fmt"

	"cosmossdk.io/math"
	"github.com/gagliardetto/solana-go"
	"go.uber.org/zap"

	"gemstake/pkg/nft"
	"gemstake/pkg/program/gemfarm"
	"gemstake/pkg/protocol"
	"gemstake/pkg/sol"
	"gemstake/pkg/wallet"
)

// ErrNoFarmer is returned when the identity has never staked on the farm.
var ErrNoFarmer = errors.New("farmer does not exist")

type Service struct {
	Farm   *protocol.GemFarmProtocol
	NFTs   *nft.Fetcher
	FarmID solana.PublicKey
	log    *zap.Logger
}

func NewService(farm *protocol.GemFarmProtocol, farmID solana.PublicKey, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{
		Farm:   farm,
		NFTs:   nft.NewFetcher(farm.SolClient, log),
		FarmID: farmID,
		log:    log.With(zap.Stringer("farm", farmID)),
	}
}

// FarmerInfo is a farmer record together with the identity it belongs to.
type FarmerInfo struct {
	Identity solana.PublicKey    `json:"identity"`
	Address  solana.PublicKey    `json:"address"`
	Account  *gemfarm.Farmer     `json:"account"`
	State    gemfarm.FarmerState `json:"state"`
}

// Rewards are the outstanding, unclaimed amounts of both farm rewards.
type Rewards struct {
	RewardA math.Int `json:"rewardA"`
	RewardB math.Int `json:"rewardB"`
}

func (s *Service) FetchFarm(ctx context.Context) (*gemfarm.Farm, error) {
	return s.Farm.FetchFarm(ctx, s.FarmID)
}

// FetchFarmer returns nil without error when identity has no farmer on this farm.
func (s *Service) FetchFarmer(ctx context.Context, identity solana.PublicKey) (*FarmerInfo, error) {
	pda, err := s.Farm.Program.FindFarmerPDA(s.FarmID, identity)
	if err != nil {
		return nil, err
	}
	farmer, err := s.Farm.FetchFarmer(ctx, pda.Address)
	if errors.Is(err, protocol.ErrAccountNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &FarmerInfo{
		Identity: identity,
		Address:  pda.Address,
		Account:  farmer,
		State:    farmer.State,
	}, nil
}

// FetchWalletNFTs lists the NFTs held directly by owner.
func (s *Service) FetchWalletNFTs(ctx context.Context, owner solana.PublicKey) ([]nft.NFT, error) {
	if owner.IsZero() {
		return []nft.NFT{}, nil
	}
	return s.NFTs.ByOwner(ctx, owner)
}

// FetchVaultNFTs lists the NFTs deposited in the farmer's vault. A missing farmer has an empty vault.
func (s *Service) FetchVaultNFTs(ctx context.Context, identity solana.PublicKey) ([]nft.NFT, error) {
	farmer, err := s.FetchFarmer(ctx, identity)
	if err != nil {
		return nil, err
	}
	if farmer == nil {
		return []nft.NFT{}, nil
	}

	vault := farmer.Account.Vault
	gdrs, err := s.Farm.Bank.FetchAllGDRs(ctx, &vault)
	if err != nil {
		return nil, err
	}
	mints := make([]solana.PublicKey, 0, len(gdrs))
	for _, gdr := range gdrs {
		mints = append(mints, gdr.Account.GemMint)
	}
	return s.NFTs.ForMints(ctx, mints)
}

// FetchAvailableRewards returns accrued minus paid out for each reward.
func (s *Service) FetchAvailableRewards(ctx context.Context, identity solana.PublicKey) (*Rewards, error) {
	farmer, err := s.FetchFarmer(ctx, identity)
	if err != nil {
		return nil, err
	}
	if farmer == nil {
		return nil, ErrNoFarmer
	}
	return &Rewards{
		RewardA: outstanding(farmer.Account.RewardA),
		RewardB: outstanding(farmer.Account.RewardB),
	}, nil
}

func outstanding(r gemfarm.FarmerReward) math.Int {
	return math.NewIntFromUint64(r.AccruedReward).Sub(math.NewIntFromUint64(r.PaidOutReward))
}

type StakeParams struct {
	Owner        solana.PublicKey
	Mint         solana.PublicKey
	TokenAccount solana.PublicKey
	// Creator is the collection creator whitelisted on the bank. Zero omits the creator proof.
	Creator solana.PublicKey
}

// StakeToken builds the instructions that put one NFT into the farm.
// A new farmer is initialized first. An already staked farmer gets a flash
// deposit; otherwise the gem is deposited and the vault staked.
func (s *Service) StakeToken(ctx context.Context, params StakeParams) ([]solana.Instruction, error) {
	farm, err := s.FetchFarm(ctx)
	if err != nil {
		return nil, err
	}
	farmer, err := s.FetchFarmer(ctx, params.Owner)
	if err != nil {
		return nil, err
	}

	var ixs []solana.Instruction
	var vault solana.PublicKey
	if farmer == nil {
		init, err := s.Farm.InitFarmerWallet(params.Owner, s.FarmID, farm.Bank)
		if err != nil {
			return nil, err
		}
		ixs = append(ixs, init.Instruction)
		vault = init.Vault.Address
	} else {
		vault = farmer.Account.Vault
	}

	if farmer != nil && farmer.State == gemfarm.FarmerStaked {
		flash, err := s.Farm.FlashDepositWallet(ctx, params.Owner, s.FarmID, 1, params.Mint, params.TokenAccount, params.Creator)
		if err != nil {
			return nil, err
		}
		ixs = append(ixs, flash.Instruction)
	} else {
		deposit, err := s.Farm.Bank.DepositGemWallet(params.Owner, farm.Bank, vault, 1, params.Mint, params.TokenAccount, params.Creator)
		if err != nil {
			return nil, err
		}
		stake, err := s.Farm.StakeWallet(params.Owner, s.FarmID, farm.Bank)
		if err != nil {
			return nil, err
		}
		ixs = append(ixs, deposit.Instruction, stake.Instruction)
	}

	s.log.Debug("stake instructions built",
		zap.Stringer("owner", params.Owner),
		zap.Stringer("mint", params.Mint),
		zap.Bool("newFarmer", farmer == nil),
		zap.Int("instructions", len(ixs)))
	return ixs, nil
}

// UnstakeToken builds the instructions that take one NFT out of the farm.
// Unstake runs twice: the first ends staking, the second ends the cooldown.
// The remaining gems are staked again when the vault held more than one.
func (s *Service) UnstakeToken(ctx context.Context, owner, mint solana.PublicKey) ([]solana.Instruction, error) {
	farm, err := s.FetchFarm(ctx)
	if err != nil {
		return nil, err
	}
	farmer, err := s.FetchFarmer(ctx, owner)
	if err != nil {
		return nil, err
	}
	if farmer == nil {
		return nil, ErrNoFarmer
	}
	vault, err := s.Farm.Bank.FetchVault(ctx, farmer.Account.Vault)
	if err != nil {
		return nil, err
	}

	unstake, err := s.Farm.UnstakeWallet(owner, s.FarmID, farm.Bank)
	if err != nil {
		return nil, err
	}
	cooldown, err := s.Farm.UnstakeWallet(owner, s.FarmID, farm.Bank)
	if err != nil {
		return nil, err
	}
	withdraw, err := s.Farm.Bank.WithdrawGemWallet(owner, farm.Bank, farmer.Account.Vault, 1, mint)
	if err != nil {
		return nil, err
	}
	ixs := []solana.Instruction{unstake.Instruction, cooldown.Instruction, withdraw.Instruction}

	if vault.GemCount > 1 {
		restake, err := s.Farm.StakeWallet(owner, s.FarmID, farm.Bank)
		if err != nil {
			return nil, err
		}
		ixs = append(ixs, restake.Instruction)
	}

	s.log.Debug("unstake instructions built",
		zap.Stringer("owner", owner),
		zap.Stringer("mint", mint),
		zap.Uint64("vaultGems", vault.GemCount))
	return ixs, nil
}

// ClaimAll builds the claim of both farm rewards for owner.
func (s *Service) ClaimAll(ctx context.Context, owner solana.PublicKey) ([]solana.Instruction, error) {
	farm, err := s.FetchFarm(ctx)
	if err != nil {
		return nil, err
	}
	claim, err := s.Farm.ClaimWallet(owner, s.FarmID, farm.RewardA.RewardMint, farm.RewardB.RewardMint)
	if err != nil {
		return nil, err
	}
	return []solana.Instruction{claim.Instruction}, nil
}

// Refresh builds a farmer refresh, which anyone may send.
func (s *Service) Refresh(identity solana.PublicKey) ([]solana.Instruction, error) {
	refresh, err := s.Farm.RefreshFarmerWallet(s.FarmID, identity)
	if err != nil {
		return nil, err
	}
	return []solana.Instruction{refresh.Instruction}, nil
}

// BuildUnsigned assembles ixs paid by feePayer and returns the base64 transaction for a wallet to sign.
func (s *Service) BuildUnsigned(ctx context.Context, ixs []solana.Instruction, feePayer solana.PublicKey) (string, error) {
	tx, err := s.Farm.SolClient.GetClient().BuildTransaction(ctx, ixs, feePayer)
	if err != nil {
		return "", err
	}
	return sol.EncodeUnsigned(tx)
}

// Execute builds, signs, sends and confirms ixs with w as fee payer and signer.
func (s *Service) Execute(ctx context.Context, ixs []solana.Instruction, w *wallet.Wallet) (solana.Signature, error) {
	client := s.Farm.SolClient.GetClient()
	tx, err := client.BuildTransaction(ctx, ixs, w.PublicKey())
	if err != nil {
		return solana.Signature{}, err
	}
	if err := sol.SignTransaction(tx, w.PrivateKey); err != nil {
		return solana.Signature{}, err
	}
	sig, err := client.SendAndConfirm(ctx, tx)
	if err != nil {
		return sig, fmt.Errorf("staking transaction: %w", err)
	}
	return sig, nil
}
