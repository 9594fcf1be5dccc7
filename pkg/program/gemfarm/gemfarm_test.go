package gemfarm

import (
	"encoding/json"
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"lukechampine.com/uint128"

	"gemstake/pkg/anchor"
	"gemstake/pkg/program/gembank"
	"gemstake/pkg/token"
)

func key() solana.PublicKey {
	return solana.NewWallet().PublicKey()
}

func newProgram() *Program {
	return New(ProgramID, nil)
}

func TestPDASeeds(t *testing.T) {
	p := newProgram()
	farm, identity, funder, mint := key(), key(), key(), key()

	cases := []struct {
		name  string
		got   func() (PDA, error)
		seeds [][]byte
	}{
		{"farmer", func() (PDA, error) { return p.FindFarmerPDA(farm, identity) }, [][]byte{[]byte("farmer"), farm[:], identity[:]}},
		{"authority", func() (PDA, error) { return p.FindFarmAuthorityPDA(farm) }, [][]byte{farm[:]}},
		{"treasury", func() (PDA, error) { return p.FindFarmTreasuryPDA(farm) }, [][]byte{[]byte("treasury"), farm[:]}},
		{"authorization", func() (PDA, error) { return p.FindAuthorizationProofPDA(farm, funder) }, [][]byte{[]byte("authorization"), farm[:], funder[:]}},
		{"reward pot", func() (PDA, error) { return p.FindRewardPotPDA(farm, mint) }, [][]byte{[]byte("reward_pot"), farm[:], mint[:]}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := tc.got()
			require.NoError(t, err)
			addr, bump, err := solana.FindProgramAddress(tc.seeds, ProgramID)
			require.NoError(t, err)
			assert.Equal(t, addr, got.Address)
			assert.Equal(t, bump, got.Bump)
		})
	}
}

func sampleFarm() *Farm {
	return &Farm{
		Version:     1,
		FarmManager: key(),
		Bank:        key(),
		Config:      FarmConfig{MinStakingPeriodSec: 60, CooldownPeriodSec: 30, UnstakingFeeLamp: 1000},
		FarmerCount: 4,
		GemsStaked:  7,
		RewardA: FarmReward{
			RewardMint: key(),
			RewardType: RewardFixed,
			FixedRate: FixedRateReward{Schedule: FixedRateSchedule{
				BaseRate:    3,
				Tier1:       &TierConfig{RewardRate: 5, RequiredTenure: 100},
				Denominator: 1,
			}},
		},
		RewardB: FarmReward{
			RewardMint:   key(),
			RewardType:   RewardVariable,
			VariableRate: VariableRateReward{RewardRate: Number128(uint128.From64(42))},
			Funds:        FundsTracker{TotalFunded: 1_000_000},
		},
	}
}

func TestFarmRoundTrip(t *testing.T) {
	farm := sampleFarm()
	data, err := anchor.EncodeAccount(AccountFarm, farm)
	require.NoError(t, err)
	assert.Equal(t, farm.FarmManager[:], data[FarmManagerOffset:FarmManagerOffset+32])

	var decoded Farm
	require.NoError(t, decoded.Decode(data))
	assert.Equal(t, *farm, decoded)
	assert.Nil(t, decoded.RewardA.FixedRate.Schedule.Tier2)
	assert.Equal(t, "42", decoded.RewardB.VariableRate.RewardRate.String())

	var wrong Farmer
	assert.ErrorIs(t, wrong.Decode(data), anchor.ErrDiscriminatorMismatch)
}

func TestFarmerRoundTrip(t *testing.T) {
	farmer := &Farmer{
		Farm:       key(),
		Identity:   key(),
		Vault:      key(),
		State:      FarmerStaked,
		GemsStaked: 2,
		RewardA:    FarmerReward{PaidOutReward: 10, AccruedReward: 25},
	}
	data, err := anchor.EncodeAccount(AccountFarmer, farmer)
	require.NoError(t, err)
	assert.Equal(t, farmer.Farm[:], data[FarmerFarmOffset:FarmerFarmOffset+32])
	assert.Equal(t, farmer.Identity[:], data[FarmerIdentityOffset:FarmerIdentityOffset+32])

	var decoded Farmer
	require.NoError(t, decoded.Decode(data))
	assert.Equal(t, *farmer, decoded)
	assert.Equal(t, uint64(15), decoded.RewardA.Outstanding())
	assert.Equal(t, uint64(0), FarmerReward{PaidOutReward: 5, AccruedReward: 1}.Outstanding())

	out, err := json.Marshal(decoded)
	require.NoError(t, err)
	assert.Contains(t, string(out), `"state":"staked"`)
	assert.Contains(t, string(out), `"lastRecordedAccruedRewardPerRarityPoint":"0"`)
}

func TestAuthorizationProofOffsets(t *testing.T) {
	proof := &AuthorizationProof{AuthorizedFunder: key(), Farm: key()}
	data, err := anchor.EncodeAccount(AccountAuthorizationProof, proof)
	require.NoError(t, err)
	assert.Equal(t, proof.AuthorizedFunder[:], data[AuthorizationFunderOff:AuthorizationFunderOff+32])
	assert.Equal(t, proof.Farm[:], data[AuthorizationFarmOffset:AuthorizationFarmOffset+32])
}

func TestStateNames(t *testing.T) {
	assert.Equal(t, "pendingCooldown", FarmerPendingCooldown.String())
	assert.Equal(t, "unknown", FarmerState(9).String())
	assert.Equal(t, "fixed", RewardFixed.String())
}

func TestInitFarm(t *testing.T) {
	p := newProgram()
	farm, manager, bank, mintA, mintB := key(), key(), key(), key(), key()

	res, err := p.InitFarm(InitFarmParams{
		Farm: farm, FarmManager: manager, Payer: manager, Bank: bank,
		RewardAMint: mintA, RewardAType: RewardVariable,
		RewardBMint: mintB, RewardBType: RewardFixed,
		Config: FarmConfig{MinStakingPeriodSec: 1, CooldownPeriodSec: 2, UnstakingFeeLamp: 3},
	})
	require.NoError(t, err)

	accounts := res.Instruction.Accounts()
	require.Len(t, accounts, 14)
	assert.True(t, accounts[0].IsSigner && accounts[0].IsWritable)
	assert.Equal(t, res.FarmAuthority.Address, accounts[2].PublicKey)
	assert.Equal(t, res.RewardAPot.Address, accounts[5].PublicKey)
	assert.Equal(t, res.RewardBPot.Address, accounts[7].PublicKey)
	assert.True(t, accounts[9].IsSigner, "bank keypair co-signs")
	assert.Equal(t, gembank.ProgramID, accounts[10].PublicKey)

	data, err := res.Instruction.Data()
	require.NoError(t, err)
	assert.Equal(t, anchor.InstructionDiscriminator("init_farm"), data[:8])
	assert.Equal(t, []byte{res.FarmAuthority.Bump, res.FarmTreasury.Bump, res.RewardAPot.Bump, res.RewardBPot.Bump, 0, 1}, data[8:14])
	assert.Len(t, data, 14+24)

	_, err = p.InitFarm(InitFarmParams{Farm: farm, RewardAMint: mintA, RewardBMint: mintA})
	assert.Error(t, err)
}

func TestUpdateFarm(t *testing.T) {
	p := newProgram()
	farm, manager, next := key(), key(), key()

	data, err := p.UpdateFarm(farm, manager, nil, &next).Data()
	require.NoError(t, err)
	assert.Equal(t, byte(0), data[8], "config absent")
	assert.Equal(t, byte(1), data[9], "manager present")
	assert.Equal(t, next[:], data[10:])
}

func TestFarmerInstructions(t *testing.T) {
	p := newProgram()
	farm, bank, identity := key(), key(), key()

	init, err := p.InitFarmer(farm, bank, identity, solana.PublicKey{})
	require.NoError(t, err)
	vault, err := p.Bank.FindVaultPDA(bank, identity)
	require.NoError(t, err)
	assert.Equal(t, vault, init.Vault)
	accounts := init.Instruction.Accounts()
	require.Len(t, accounts, 8)
	assert.Equal(t, identity, accounts[3].PublicKey, "payer defaults to identity")
	assert.Equal(t, vault.Address, accounts[5].PublicKey)

	stake, err := p.Stake(farm, bank, identity)
	require.NoError(t, err)
	assert.Equal(t, init.Farmer, stake.Farmer)
	assert.Len(t, stake.Instruction.Accounts(), 7)

	unstake, err := p.Unstake(farm, bank, identity)
	require.NoError(t, err)
	treasury, err := p.FindFarmTreasuryPDA(farm)
	require.NoError(t, err)
	accounts = unstake.Instruction.Accounts()
	require.Len(t, accounts, 9)
	assert.Equal(t, treasury.Address, accounts[2].PublicKey)
	assert.True(t, accounts[3].IsWritable && accounts[3].IsSigner)

	refresh, err := p.RefreshFarmer(farm, identity)
	require.NoError(t, err)
	for _, meta := range refresh.Instruction.Accounts() {
		assert.False(t, meta.IsSigner)
	}
	data, err := refresh.Instruction.Data()
	require.NoError(t, err)
	assert.Equal(t, []byte{refresh.Farmer.Bump}, data[8:])
}

func TestClaim(t *testing.T) {
	p := newProgram()
	farm, identity, mintA, mintB := key(), key(), key(), key()

	res, err := p.Claim(farm, identity, mintA, mintB)
	require.NoError(t, err)

	ataA, err := token.FindATA(identity, mintA)
	require.NoError(t, err)
	assert.Equal(t, ataA, res.RewardADestination)

	accounts := res.Instruction.Accounts()
	require.Len(t, accounts, 14)
	assert.Equal(t, res.RewardAPot.Address, accounts[4].PublicKey)
	assert.Equal(t, ataA, accounts[6].PublicKey)
	assert.Equal(t, res.RewardBDestination, accounts[9].PublicKey)
}

func TestFlashDeposit(t *testing.T) {
	p := newProgram()
	farm, bank, identity, mint, source, proof := key(), key(), key(), key(), key(), key()

	res, err := p.FlashDeposit(FlashDepositParams{
		Farm: farm, Bank: bank, Identity: identity, GemMint: mint, GemSource: source, Amount: 1,
		Proofs: gembank.DepositProofs{MintProof: &proof},
	})
	require.NoError(t, err)

	accounts := res.Instruction.Accounts()
	require.Len(t, accounts, 17)
	assert.Equal(t, res.Vault.Address, accounts[5].PublicKey)
	assert.Equal(t, res.GemBox.Address, accounts[7].PublicKey)
	assert.Equal(t, proof, accounts[16].PublicKey)

	data, err := res.Instruction.Data()
	require.NoError(t, err)
	assert.Equal(t, []byte{res.Farmer.Bump, res.VaultAuthority.Bump, res.GemBox.Bump, res.GemDepositReceipt.Bump, res.GemRarity.Bump,
		1, 0, 0, 0, 0, 0, 0, 0}, data[8:])
}

func TestFunderInstructions(t *testing.T) {
	p := newProgram()
	farm, manager, funder, mint, source := key(), key(), key(), key(), key()

	auth, err := p.AuthorizeFunder(farm, manager, funder)
	require.NoError(t, err)
	deauth, err := p.DeauthorizeFunder(farm, manager, funder)
	require.NoError(t, err)
	assert.Equal(t, auth.AuthorizationProof, deauth.AuthorizationProof)

	a, err := auth.Instruction.Data()
	require.NoError(t, err)
	d, err := deauth.Instruction.Data()
	require.NoError(t, err)
	assert.NotEqual(t, a[:8], d[:8])

	_, err = p.FundReward(FundRewardParams{Farm: farm, RewardMint: mint, Funder: funder, RewardSource: source})
	assert.Error(t, err)

	fund, err := p.FundReward(FundRewardParams{
		Farm: farm, RewardMint: mint, Funder: funder, RewardSource: source,
		Variable: &VariableRateConfig{Amount: 100, DurationSec: 10},
	})
	require.NoError(t, err)
	data, err := fund.Instruction.Data()
	require.NoError(t, err)
	assert.Equal(t, byte(1), data[10], "variable config present")
	assert.Equal(t, byte(0), data[len(data)-1], "fixed config absent")
	assert.Len(t, data, 8+2+1+16+1)

	cancel, err := p.CancelReward(farm, manager, mint, manager)
	require.NoError(t, err)
	assert.Equal(t, fund.RewardPot, cancel.RewardPot)
	assert.Len(t, cancel.Instruction.Accounts(), 11)

	data, err = p.LockReward(farm, manager, mint).Data()
	require.NoError(t, err)
	assert.Len(t, data, 8)
}

func TestBankAdminInstructions(t *testing.T) {
	p := newProgram()
	farm, bank, manager, creator, mint := key(), key(), key(), key(), key()

	wl, err := p.AddToBankWhitelist(farm, bank, manager, creator, gembank.WhitelistCreator)
	require.NoError(t, err)
	want, err := p.Bank.FindWhitelistProofPDA(bank, creator)
	require.NoError(t, err)
	assert.Equal(t, want, wl.WhitelistProof)
	assert.Len(t, wl.Instruction.Accounts(), 8)

	_, err = p.AddToBankWhitelist(farm, bank, manager, creator, 0)
	assert.Error(t, err)

	rm, err := p.RemoveFromBankWhitelist(farm, bank, manager, creator)
	require.NoError(t, err)
	assert.Len(t, rm.Instruction.Accounts(), 7)

	inst, err := p.AddRaritiesToBank(farm, bank, manager, []RarityConfig{{Mint: mint, RarityPoints: 5}})
	require.NoError(t, err)
	accounts := inst.Accounts()
	require.Len(t, accounts, 8)
	rarity, err := p.Bank.FindRarityPDA(bank, mint)
	require.NoError(t, err)
	assert.Equal(t, mint, accounts[6].PublicKey)
	assert.False(t, accounts[6].IsWritable)
	assert.Equal(t, rarity.Address, accounts[7].PublicKey)
	assert.True(t, accounts[7].IsWritable)

	data, err := inst.Data()
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 0, 0, 0}, data[9:13], "vec length")
	assert.Equal(t, []byte{5, 0}, data[len(data)-2:])

	_, err = p.AddRaritiesToBank(farm, bank, manager, nil)
	assert.Error(t, err)

	payout, err := p.PayoutFromTreasury(farm, manager, manager, 10)
	require.NoError(t, err)
	assert.Len(t, payout.Accounts(), 6)
}
