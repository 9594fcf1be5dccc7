package gembank

import (
	"fmt"

	"github.com/gagliardetto/solana-go"

	"gemstake/pkg/anchor"
	"gemstake/pkg/token"
)

type updateBankManagerArgs struct {
	NewManager solana.PublicKey
}

type initVaultArgs struct {
	BumpVault uint8
	Owner     solana.PublicKey
	Name      string
}

type updateVaultOwnerArgs struct {
	NewOwner solana.PublicKey
}

type setVaultLockArgs struct {
	VaultLock bool
}

type setBankFlagsArgs struct {
	Flags uint32
}

type gemTransferArgs struct {
	BumpAuth   uint8
	BumpGemBox uint8
	BumpGdr    uint8
	BumpRarity uint8
	Amount     uint64
}

type addToWhitelistArgs struct {
	BumpWl        uint8
	WhitelistType uint8
}

type removeFromWhitelistArgs struct {
	BumpWl uint8
}

// InitBank creates a bank at the address of a fresh keypair, which must co-sign.
func (p *Program) InitBank(bank, bankManager, payer solana.PublicKey) *anchor.Instruction {
	return anchor.NewInstruction(p.ID, "init_bank", nil,
		anchor.WritableSigner(bank),
		anchor.Signer(bankManager),
		anchor.WritableSigner(payer),
		anchor.ReadOnly(solana.SystemProgramID),
	)
}

func (p *Program) UpdateBankManager(bank, bankManager, newManager solana.PublicKey) *anchor.Instruction {
	return anchor.NewInstruction(p.ID, "update_bank_manager", &updateBankManagerArgs{NewManager: newManager},
		anchor.Writable(bank),
		anchor.Signer(bankManager),
	)
}

type InitVaultResult struct {
	Instruction    *anchor.Instruction
	Vault          PDA
	VaultAuthority PDA
}

// InitVault creates the vault of creator in bank, owned by owner.
func (p *Program) InitVault(bank, creator, payer, owner solana.PublicKey, name string) (*InitVaultResult, error) {
	vault, err := p.FindVaultPDA(bank, creator)
	if err != nil {
		return nil, err
	}
	authority, err := p.FindVaultAuthorityPDA(vault.Address)
	if err != nil {
		return nil, err
	}

	inst := anchor.NewInstruction(p.ID, "init_vault", &initVaultArgs{BumpVault: vault.Bump, Owner: owner, Name: name},
		anchor.Writable(bank),
		anchor.Writable(vault.Address),
		anchor.Signer(creator),
		anchor.WritableSigner(payer),
		anchor.ReadOnly(solana.SystemProgramID),
	)
	return &InitVaultResult{Instruction: inst, Vault: vault, VaultAuthority: authority}, nil
}

func (p *Program) UpdateVaultOwner(bank, vault, owner, newOwner solana.PublicKey) *anchor.Instruction {
	return anchor.NewInstruction(p.ID, "update_vault_owner", &updateVaultOwnerArgs{NewOwner: newOwner},
		anchor.ReadOnly(bank),
		anchor.Writable(vault),
		anchor.Signer(owner),
	)
}

func (p *Program) SetVaultLock(bank, vault, bankManager solana.PublicKey, locked bool) *anchor.Instruction {
	return anchor.NewInstruction(p.ID, "set_vault_lock", &setVaultLockArgs{VaultLock: locked},
		anchor.ReadOnly(bank),
		anchor.Writable(vault),
		anchor.Signer(bankManager),
	)
}

func (p *Program) SetBankFlags(bank, bankManager solana.PublicKey, flags BankFlags) *anchor.Instruction {
	return anchor.NewInstruction(p.ID, "set_bank_flags", &setBankFlagsArgs{Flags: uint32(flags)},
		anchor.Writable(bank),
		anchor.Signer(bankManager),
	)
}

// GemAddresses are the per-mint accounts touched by deposits and withdrawals.
type GemAddresses struct {
	VaultAuthority    PDA
	GemBox            PDA
	GemDepositReceipt PDA
	GemRarity         PDA
}

// FindGemAddresses derives the vault authority, gem box, receipt and rarity PDAs for mint.
func (p *Program) FindGemAddresses(bank, vault, mint solana.PublicKey) (*GemAddresses, error) {
	auth, err := p.FindVaultAuthorityPDA(vault)
	if err != nil {
		return nil, err
	}
	gemBox, err := p.FindGemBoxPDA(vault, mint)
	if err != nil {
		return nil, err
	}
	gdr, err := p.FindGdrPDA(vault, mint)
	if err != nil {
		return nil, err
	}
	rarity, err := p.FindRarityPDA(bank, mint)
	if err != nil {
		return nil, err
	}
	return &GemAddresses{VaultAuthority: auth, GemBox: gemBox, GemDepositReceipt: gdr, GemRarity: rarity}, nil
}

func (a *GemAddresses) args(amount uint64) *gemTransferArgs {
	return &gemTransferArgs{
		BumpAuth:   a.VaultAuthority.Bump,
		BumpGemBox: a.GemBox.Bump,
		BumpGdr:    a.GemDepositReceipt.Bump,
		BumpRarity: a.GemRarity.Bump,
		Amount:     amount,
	}
}

// DepositProofs are the optional whitelist accounts checked on deposit.
type DepositProofs struct {
	MintProof    *solana.PublicKey
	Metadata     *solana.PublicKey
	CreatorProof *solana.PublicKey
}

// RemainingAccounts lists the supplied proofs in the order the program reads them.
func (d DepositProofs) RemainingAccounts() []*solana.AccountMeta {
	var out []*solana.AccountMeta
	for _, pk := range []*solana.PublicKey{d.MintProof, d.Metadata, d.CreatorProof} {
		if pk != nil {
			out = append(out, anchor.ReadOnly(*pk))
		}
	}
	return out
}

type DepositGemParams struct {
	Bank      solana.PublicKey
	Vault     solana.PublicKey
	Owner     solana.PublicKey
	GemMint   solana.PublicKey
	GemSource solana.PublicKey
	Amount    uint64
	Proofs    DepositProofs
}

type GemResult struct {
	Instruction *anchor.Instruction
	GemAddresses
}

func (p *Program) DepositGem(params DepositGemParams) (*GemResult, error) {
	addrs, err := p.FindGemAddresses(params.Bank, params.Vault, params.GemMint)
	if err != nil {
		return nil, err
	}

	inst := anchor.NewInstruction(p.ID, "deposit_gem", addrs.args(params.Amount),
		anchor.ReadOnly(params.Bank),
		anchor.Writable(params.Vault),
		anchor.WritableSigner(params.Owner),
		anchor.ReadOnly(addrs.VaultAuthority.Address),
		anchor.Writable(addrs.GemBox.Address),
		anchor.Writable(addrs.GemDepositReceipt.Address),
		anchor.Writable(params.GemSource),
		anchor.ReadOnly(params.GemMint),
		anchor.ReadOnly(addrs.GemRarity.Address),
		anchor.ReadOnly(solana.TokenProgramID),
		anchor.ReadOnly(solana.SystemProgramID),
		anchor.ReadOnly(solana.SysVarRentPubkey),
	).WithRemainingAccounts(params.Proofs.RemainingAccounts()...)

	return &GemResult{Instruction: inst, GemAddresses: *addrs}, nil
}

type WithdrawGemParams struct {
	Bank     solana.PublicKey
	Vault    solana.PublicKey
	Owner    solana.PublicKey
	GemMint  solana.PublicKey
	Receiver solana.PublicKey
	Amount   uint64
}

type WithdrawGemResult struct {
	GemResult
	GemDestination solana.PublicKey
}

// WithdrawGem moves gems out of the vault into the receiver's associated token account.
func (p *Program) WithdrawGem(params WithdrawGemParams) (*WithdrawGemResult, error) {
	addrs, err := p.FindGemAddresses(params.Bank, params.Vault, params.GemMint)
	if err != nil {
		return nil, err
	}
	destination, err := token.FindATA(params.Receiver, params.GemMint)
	if err != nil {
		return nil, err
	}

	inst := anchor.NewInstruction(p.ID, "withdraw_gem", addrs.args(params.Amount),
		anchor.ReadOnly(params.Bank),
		anchor.Writable(params.Vault),
		anchor.WritableSigner(params.Owner),
		anchor.ReadOnly(addrs.VaultAuthority.Address),
		anchor.Writable(addrs.GemBox.Address),
		anchor.Writable(addrs.GemDepositReceipt.Address),
		anchor.Writable(destination),
		anchor.ReadOnly(params.GemMint),
		anchor.ReadOnly(addrs.GemRarity.Address),
		anchor.Writable(params.Receiver),
		anchor.ReadOnly(solana.TokenProgramID),
		anchor.ReadOnly(solana.SPLAssociatedTokenAccountProgramID),
		anchor.ReadOnly(solana.SystemProgramID),
		anchor.ReadOnly(solana.SysVarRentPubkey),
	)

	return &WithdrawGemResult{
		GemResult:      GemResult{Instruction: inst, GemAddresses: *addrs},
		GemDestination: destination,
	}, nil
}

type WhitelistResult struct {
	Instruction    *anchor.Instruction
	WhitelistProof PDA
}

// AddToWhitelist whitelists a creator or mint address. A zero payer defaults to the manager.
func (p *Program) AddToWhitelist(bank, bankManager, address solana.PublicKey, whitelistType WhitelistType, payer solana.PublicKey) (*WhitelistResult, error) {
	if whitelistType == 0 {
		return nil, fmt.Errorf("whitelist type must be creator and/or mint")
	}
	proof, err := p.FindWhitelistProofPDA(bank, address)
	if err != nil {
		return nil, err
	}
	if payer.IsZero() {
		payer = bankManager
	}

	inst := anchor.NewInstruction(p.ID, "add_to_whitelist", &addToWhitelistArgs{BumpWl: proof.Bump, WhitelistType: uint8(whitelistType)},
		anchor.Writable(bank),
		anchor.Signer(bankManager),
		anchor.ReadOnly(address),
		anchor.Writable(proof.Address),
		anchor.ReadOnly(solana.SystemProgramID),
		anchor.WritableSigner(payer),
	)
	return &WhitelistResult{Instruction: inst, WhitelistProof: proof}, nil
}

func (p *Program) RemoveFromWhitelist(bank, bankManager, address solana.PublicKey) (*WhitelistResult, error) {
	proof, err := p.FindWhitelistProofPDA(bank, address)
	if err != nil {
		return nil, err
	}

	inst := anchor.NewInstruction(p.ID, "remove_from_whitelist", &removeFromWhitelistArgs{BumpWl: proof.Bump},
		anchor.Writable(bank),
		anchor.WritableSigner(bankManager),
		anchor.ReadOnly(address),
		anchor.Writable(proof.Address),
	)
	return &WhitelistResult{Instruction: inst, WhitelistProof: proof}, nil
}
