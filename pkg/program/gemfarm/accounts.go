package gemfarm

import (
	"github.com/gagliardetto/solana-go"
	"lukechampine.com/uint128"

	"gemstake/pkg/anchor"
)

const (
	AccountFarm               = "Farm"
	AccountFarmer             = "Farmer"
	AccountAuthorizationProof = "AuthorizationProof"
)

// Number128 is the program's fixed-point u128. The raw value is exposed as is.
type Number128 uint128.Uint128

func (n Number128) String() string {
	return uint128.Uint128(n).String()
}

func (n Number128) MarshalText() ([]byte, error) {
	return []byte(n.String()), nil
}

type FarmConfig struct {
	MinStakingPeriodSec uint64 `json:"minStakingPeriodSec"`
	CooldownPeriodSec   uint64 `json:"cooldownPeriodSec"`
	UnstakingFeeLamp    uint64 `json:"unstakingFeeLamp"`
}

type TierConfig struct {
	RewardRate     uint64 `json:"rewardRate"`
	RequiredTenure uint64 `json:"requiredTenure"`
}

type FixedRateSchedule struct {
	BaseRate    uint64      `json:"baseRate"`
	Tier1       *TierConfig `json:"tier1" bin:"optional"`
	Tier2       *TierConfig `json:"tier2" bin:"optional"`
	Tier3       *TierConfig `json:"tier3" bin:"optional"`
	Denominator uint64      `json:"denominator"`
}

type FixedRateConfig struct {
	Schedule    FixedRateSchedule `json:"schedule"`
	Amount      uint64            `json:"amount"`
	DurationSec uint64            `json:"durationSec"`
}

type VariableRateConfig struct {
	Amount      uint64 `json:"amount"`
	DurationSec uint64 `json:"durationSec"`
}

type RarityConfig struct {
	Mint         solana.PublicKey `json:"mint"`
	RarityPoints uint16           `json:"rarityPoints"`
}

type FixedRateReward struct {
	Schedule       FixedRateSchedule `json:"schedule"`
	ReservedAmount uint64            `json:"reservedAmount"`
	Reserved       [32]uint8         `json:"-"`
}

type VariableRateReward struct {
	RewardRate                  Number128 `json:"rewardRate"`
	RewardLastUpdatedTs         uint64    `json:"rewardLastUpdatedTs"`
	AccruedRewardPerRarityPoint Number128 `json:"accruedRewardPerRarityPoint"`
	Reserved                    [32]uint8 `json:"-"`
}

type FundsTracker struct {
	TotalFunded           uint64    `json:"totalFunded"`
	TotalRefunded         uint64    `json:"totalRefunded"`
	TotalAccruedToStakers uint64    `json:"totalAccruedToStakers"`
	Reserved              [32]uint8 `json:"-"`
}

type TimeTracker struct {
	DurationSec uint64 `json:"durationSec"`
	RewardEndTs uint64 `json:"rewardEndTs"`
	LockEndTs   uint64 `json:"lockEndTs"`
}

type FarmReward struct {
	RewardMint   solana.PublicKey   `json:"rewardMint"`
	RewardPot    solana.PublicKey   `json:"rewardPot"`
	RewardType   RewardType         `json:"rewardType"`
	FixedRate    FixedRateReward    `json:"fixedRate"`
	VariableRate VariableRateReward `json:"variableRate"`
	Funds        FundsTracker       `json:"funds"`
	Times        TimeTracker        `json:"times"`
	Reserved     [32]uint8          `json:"-"`
}

// Farm is decoded up to its reward trackers; trailing reserved space is ignored.
type Farm struct {
	Version               uint16           `json:"version"`
	FarmManager           solana.PublicKey `json:"farmManager"`
	FarmTreasury          solana.PublicKey `json:"farmTreasury"`
	FarmAuthority         solana.PublicKey `json:"farmAuthority"`
	FarmAuthoritySeed     solana.PublicKey `json:"farmAuthoritySeed"`
	FarmAuthorityBumpSeed [1]uint8         `json:"farmAuthorityBumpSeed"`
	Bank                  solana.PublicKey `json:"bank"`
	Config                FarmConfig       `json:"config"`
	FarmerCount           uint64           `json:"farmerCount"`
	StakedFarmerCount     uint64           `json:"stakedFarmerCount"`
	GemsStaked            uint64           `json:"gemsStaked"`
	RarityPointsStaked    uint64           `json:"rarityPointsStaked"`
	AuthorizedFunderCount uint64           `json:"authorizedFunderCount"`
	RewardA               FarmReward       `json:"rewardA"`
	RewardB               FarmReward       `json:"rewardB"`
}

func (f *Farm) Decode(data []byte) error {
	return anchor.DecodeAccount(data, AccountFarm, f)
}

type FarmerVariableRateReward struct {
	LastRecordedAccruedRewardPerRarityPoint Number128 `json:"lastRecordedAccruedRewardPerRarityPoint"`
	Reserved                                [32]uint8 `json:"-"`
}

type FarmerFixedRateReward struct {
	BeginStakingTs   uint64            `json:"beginStakingTs"`
	BeginScheduleTs  uint64            `json:"beginScheduleTs"`
	LastUpdatedTs    uint64            `json:"lastUpdatedTs"`
	PromisedSchedule FixedRateSchedule `json:"promisedSchedule"`
	PromisedDuration uint64            `json:"promisedDuration"`
	Reserved         [32]uint8         `json:"-"`
}

type FarmerReward struct {
	PaidOutReward uint64                   `json:"paidOutReward"`
	AccruedReward uint64                   `json:"accruedReward"`
	VariableRate  FarmerVariableRateReward `json:"variableRate"`
	FixedRate     FarmerFixedRateReward    `json:"fixedRate"`
	Reserved      [32]uint8                `json:"-"`
}

// Outstanding is what the farmer can still claim.
func (r FarmerReward) Outstanding() uint64 {
	if r.AccruedReward < r.PaidOutReward {
		return 0
	}
	return r.AccruedReward - r.PaidOutReward
}

type Farmer struct {
	Farm               solana.PublicKey `json:"farm"`
	Identity           solana.PublicKey `json:"identity"`
	Vault              solana.PublicKey `json:"vault"`
	State              FarmerState      `json:"state"`
	GemsStaked         uint64           `json:"gemsStaked"`
	RarityPointsStaked uint64           `json:"rarityPointsStaked"`
	MinStakingEndsTs   uint64           `json:"minStakingEndsTs"`
	CooldownEndsTs     uint64           `json:"cooldownEndsTs"`
	RewardA            FarmerReward     `json:"rewardA"`
	RewardB            FarmerReward     `json:"rewardB"`
}

func (f *Farmer) Decode(data []byte) error {
	return anchor.DecodeAccount(data, AccountFarmer, f)
}

type AuthorizationProof struct {
	AuthorizedFunder solana.PublicKey `json:"authorizedFunder"`
	Farm             solana.PublicKey `json:"farm"`
}

func (a *AuthorizationProof) Decode(data []byte) error {
	return anchor.DecodeAccount(data, AccountAuthorizationProof, a)
}
