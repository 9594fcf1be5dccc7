package gembank

import (
	"github.com/gagliardetto/solana-go"
)

const (
	GemBankProgram = "bankHHdqMuaaST4qQk6mkzxGeKPHWmqdgor6Gs8r88m"
)

var (
	ProgramID = solana.MustPublicKeyFromBase58(GemBankProgram)
)

// PDA seed prefixes.
const (
	SeedVault             = "vault"
	SeedGemBox            = "gem_box"
	SeedGemDepositReceipt = "gem_deposit_receipt"
	SeedWhitelist         = "whitelist"
	SeedGemRarity         = "gem_rarity"
)

// Byte offsets used for getProgramAccounts memcmp filters.
const (
	BankManagerOffset         = 10 // discriminator + version
	VaultBankOffset           = 8
	GemDepositReceiptVaultOff = 8
	WhitelistProofBankOffset  = 41 // discriminator + type + whitelisted address
)

type BankFlags uint32

const (
	FreezeVaults BankFlags = 1 << 0
)

func (f BankFlags) Has(flag BankFlags) bool {
	return f&flag != 0
}

type WhitelistType uint8

const (
	WhitelistCreator WhitelistType = 1 << 0
	WhitelistMint    WhitelistType = 1 << 1
)

func (t WhitelistType) String() string {
	switch t {
	case WhitelistCreator:
		return "creator"
	case WhitelistMint:
		return "mint"
	case WhitelistCreator | WhitelistMint:
		return "creator|mint"
	}
	return "none"
}
