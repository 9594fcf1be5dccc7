package gemfarm

import (
	"github.com/gagliardetto/solana-go"
)

const (
	GemFarmProgram = "farmL4xeBFVXJqtfxCzU9b28QACM7E2W2ctT6epAjvE"
)

var (
	ProgramID = solana.MustPublicKeyFromBase58(GemFarmProgram)
)

// PDA seed prefixes.
const (
	SeedFarmer        = "farmer"
	SeedTreasury      = "treasury"
	SeedAuthorization = "authorization"
	SeedRewardPot     = "reward_pot"
)

// Byte offsets used for getProgramAccounts memcmp filters.
const (
	FarmManagerOffset       = 10 // discriminator + version
	FarmerFarmOffset        = 8
	FarmerIdentityOffset    = 40
	AuthorizationFunderOff  = 8
	AuthorizationFarmOffset = 40
)

type RewardType uint8

const (
	RewardVariable RewardType = iota
	RewardFixed
)

// ParseRewardType returns the lower camel name of t.
func ParseRewardType(t RewardType) string {
	switch t {
	case RewardVariable:
		return "variable"
	case RewardFixed:
		return "fixed"
	}
	return "unknown"
}

func (t RewardType) String() string {
	return ParseRewardType(t)
}

func (t RewardType) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

type FarmerState uint8

const (
	FarmerUnstaked FarmerState = iota
	FarmerStaked
	FarmerPendingCooldown
)

// ParseFarmerState returns the lower camel name of s.
func ParseFarmerState(s FarmerState) string {
	switch s {
	case FarmerUnstaked:
		return "unstaked"
	case FarmerStaked:
		return "staked"
	case FarmerPendingCooldown:
		return "pendingCooldown"
	}
	return "unknown"
}

func (s FarmerState) String() string {
	return ParseFarmerState(s)
}

func (s FarmerState) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}
