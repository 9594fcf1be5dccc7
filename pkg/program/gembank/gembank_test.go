package gembank

import (
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gemstake/pkg/anchor"
	"gemstake/pkg/token"
)

func key() solana.PublicKey {
	return solana.NewWallet().PublicKey()
}

func TestPDASeeds(t *testing.T) {
	p := New(ProgramID)
	bank, creator, mint := key(), key(), key()

	vault, err := p.FindVaultPDA(bank, creator)
	require.NoError(t, err)
	want, bump, err := solana.FindProgramAddress([][]byte{[]byte("vault"), bank[:], creator[:]}, ProgramID)
	require.NoError(t, err)
	assert.Equal(t, PDA{Address: want, Bump: bump}, vault)

	cases := []struct {
		name  string
		got   func() (PDA, error)
		seeds [][]byte
	}{
		{"gem box", func() (PDA, error) { return p.FindGemBoxPDA(vault.Address, mint) }, [][]byte{[]byte("gem_box"), vault.Address[:], mint[:]}},
		{"gdr", func() (PDA, error) { return p.FindGdrPDA(vault.Address, mint) }, [][]byte{[]byte("gem_deposit_receipt"), vault.Address[:], mint[:]}},
		{"authority", func() (PDA, error) { return p.FindVaultAuthorityPDA(vault.Address) }, [][]byte{vault.Address[:]}},
		{"whitelist", func() (PDA, error) { return p.FindWhitelistProofPDA(bank, creator) }, [][]byte{[]byte("whitelist"), bank[:], creator[:]}},
		{"rarity", func() (PDA, error) { return p.FindRarityPDA(bank, mint) }, [][]byte{[]byte("gem_rarity"), bank[:], mint[:]}},
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

func TestFilterOffsets(t *testing.T) {
	manager, bank, vault := key(), key(), key()

	data, err := anchor.EncodeAccount(AccountBank, &Bank{Version: 1, BankManager: manager, Flags: FreezeVaults})
	require.NoError(t, err)
	assert.Equal(t, manager[:], data[BankManagerOffset:BankManagerOffset+32])

	data, err = anchor.EncodeAccount(AccountVault, &Vault{Bank: bank})
	require.NoError(t, err)
	assert.Equal(t, bank[:], data[VaultBankOffset:VaultBankOffset+32])

	data, err = anchor.EncodeAccount(AccountGemDepositReceipt, &GemDepositReceipt{Vault: vault, GemCount: 1})
	require.NoError(t, err)
	assert.Equal(t, vault[:], data[GemDepositReceiptVaultOff:GemDepositReceiptVaultOff+32])

	data, err = anchor.EncodeAccount(AccountWhitelistProof, &WhitelistProof{WhitelistType: WhitelistMint, WhitelistedAddress: key(), Bank: bank})
	require.NoError(t, err)
	assert.Equal(t, bank[:], data[WhitelistProofBankOffset:WhitelistProofBankOffset+32])

	var decoded WhitelistProof
	require.NoError(t, decoded.Decode(data))
	assert.Equal(t, WhitelistMint, decoded.WhitelistType)
}

func TestVaultName(t *testing.T) {
	var v Vault
	v.SetName("my vault")
	assert.Equal(t, "my vault", v.VaultName())
	assert.True(t, BankFlags(1).Has(FreezeVaults))
	assert.Equal(t, "creator|mint", (WhitelistCreator | WhitelistMint).String())
}

func TestDepositGem(t *testing.T) {
	p := New(ProgramID)
	bank, vault, owner, mint, source := key(), key(), key(), key(), key()
	mintProof, metadata := key(), key()

	res, err := p.DepositGem(DepositGemParams{
		Bank: bank, Vault: vault, Owner: owner, GemMint: mint, GemSource: source, Amount: 3,
		Proofs: DepositProofs{MintProof: &mintProof, Metadata: &metadata},
	})
	require.NoError(t, err)

	accounts := res.Instruction.Accounts()
	require.Len(t, accounts, 14)
	assert.Equal(t, owner, accounts[2].PublicKey)
	assert.True(t, accounts[2].IsSigner)
	assert.Equal(t, res.VaultAuthority.Address, accounts[3].PublicKey)
	assert.Equal(t, res.GemBox.Address, accounts[4].PublicKey)
	assert.Equal(t, res.GemDepositReceipt.Address, accounts[5].PublicKey)
	assert.Equal(t, res.GemRarity.Address, accounts[8].PublicKey)
	assert.Equal(t, solana.SysVarRentPubkey, accounts[11].PublicKey)
	// remaining accounts: only the supplied proofs, read-only, in order
	assert.Equal(t, mintProof, accounts[12].PublicKey)
	assert.Equal(t, metadata, accounts[13].PublicKey)
	assert.False(t, accounts[12].IsWritable || accounts[12].IsSigner)

	data, err := res.Instruction.Data()
	require.NoError(t, err)
	assert.Equal(t, anchor.InstructionDiscriminator("deposit_gem"), data[:8])
	assert.Equal(t, []byte{res.VaultAuthority.Bump, res.GemBox.Bump, res.GemDepositReceipt.Bump, res.GemRarity.Bump,
		3, 0, 0, 0, 0, 0, 0, 0}, data[8:])
}

func TestWithdrawGem(t *testing.T) {
	p := New(ProgramID)
	bank, vault, owner, mint, receiver := key(), key(), key(), key(), key()

	res, err := p.WithdrawGem(WithdrawGemParams{Bank: bank, Vault: vault, Owner: owner, GemMint: mint, Receiver: receiver, Amount: 1})
	require.NoError(t, err)

	ata, err := token.FindATA(receiver, mint)
	require.NoError(t, err)
	assert.Equal(t, ata, res.GemDestination)

	accounts := res.Instruction.Accounts()
	require.Len(t, accounts, 14)
	assert.Equal(t, ata, accounts[6].PublicKey)
	assert.Equal(t, receiver, accounts[9].PublicKey)
	assert.Equal(t, solana.SPLAssociatedTokenAccountProgramID, accounts[11].PublicKey)
}

func TestInitVault(t *testing.T) {
	p := New(ProgramID)
	bank, creator := key(), key()

	res, err := p.InitVault(bank, creator, creator, creator, "vault")
	require.NoError(t, err)

	data, err := res.Instruction.Data()
	require.NoError(t, err)
	assert.Equal(t, res.Vault.Bump, data[8])
	assert.Equal(t, creator[:], data[9:41])
	assert.Equal(t, []byte{5, 0, 0, 0, 'v', 'a', 'u', 'l', 't'}, data[41:])
	assert.Equal(t, res.Vault.Address, res.Instruction.Accounts()[1].PublicKey)
}

func TestWhitelistInstructions(t *testing.T) {
	p := New(ProgramID)
	bank, manager, creator := key(), key(), key()

	res, err := p.AddToWhitelist(bank, manager, creator, WhitelistCreator, solana.PublicKey{})
	require.NoError(t, err)
	accounts := res.Instruction.Accounts()
	require.Len(t, accounts, 6)
	assert.Equal(t, manager, accounts[5].PublicKey, "payer defaults to the manager")
	assert.Equal(t, res.WhitelistProof.Address, accounts[3].PublicKey)

	data, err := res.Instruction.Data()
	require.NoError(t, err)
	assert.Equal(t, []byte{res.WhitelistProof.Bump, 1}, data[8:])

	_, err = p.AddToWhitelist(bank, manager, creator, 0, manager)
	assert.Error(t, err)

	removed, err := p.RemoveFromWhitelist(bank, manager, creator)
	require.NoError(t, err)
	assert.Equal(t, res.WhitelistProof, removed.WhitelistProof)
	assert.Len(t, removed.Instruction.Accounts(), 4)
}

func TestSimpleInstructions(t *testing.T) {
	p := New(ProgramID)
	bank, manager, vault := key(), key(), key()

	data, err := p.SetBankFlags(bank, manager, FreezeVaults).Data()
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 0, 0, 0}, data[8:])

	data, err = p.SetVaultLock(bank, vault, manager, true).Data()
	require.NoError(t, err)
	assert.Equal(t, []byte{1}, data[8:])

	data, err = p.InitBank(bank, manager, manager).Data()
	require.NoError(t, err)
	assert.Len(t, data, 8)

	inst := p.UpdateBankManager(bank, manager, vault)
	data, err = inst.Data()
	require.NoError(t, err)
	assert.Equal(t, vault[:], data[8:])

	inst = p.UpdateVaultOwner(bank, vault, manager, bank)
	assert.True(t, inst.Accounts()[2].IsSigner)
}
