package gembank

import (
	"bytes"

	"github.com/gagliardetto/solana-go"

	"gemstake/pkg/anchor"
)

// Account type names, used for discriminators.
const (
	AccountBank              = "Bank"
	AccountVault             = "Vault"
	AccountGemDepositReceipt = "GemDepositReceipt"
	AccountWhitelistProof    = "WhitelistProof"
	AccountRarity            = "Rarity"
)

type Bank struct {
	Version             uint16           `json:"version"`
	BankManager         solana.PublicKey `json:"bankManager"`
	Flags               BankFlags        `json:"flags"`
	WhitelistedCreators uint32           `json:"whitelistedCreators"`
	WhitelistedMints    uint32           `json:"whitelistedMints"`
	VaultCount          uint64           `json:"vaultCount"`
}

func (b *Bank) Decode(data []byte) error {
	return anchor.DecodeAccount(data, AccountBank, b)
}

type Vault struct {
	Bank              solana.PublicKey `json:"bank"`
	Owner             solana.PublicKey `json:"owner"`
	Creator           solana.PublicKey `json:"creator"`
	Authority         solana.PublicKey `json:"authority"`
	AuthoritySeed     solana.PublicKey `json:"authoritySeed"`
	AuthorityBumpSeed [1]uint8         `json:"authorityBumpSeed"`
	Locked            bool             `json:"locked"`
	Name              [32]uint8        `json:"-"`
	GemBoxCount       uint64           `json:"gemBoxCount"`
	GemCount          uint64           `json:"gemCount"`
	RarityPoints      uint64           `json:"rarityPoints"`
}

func (v *Vault) Decode(data []byte) error {
	return anchor.DecodeAccount(data, AccountVault, v)
}

// VaultName returns the vault name without its zero padding.
func (v *Vault) VaultName() string {
	return string(bytes.TrimRight(v.Name[:], "\x00"))
}

// SetName stores name truncated to the 32-byte field.
func (v *Vault) SetName(name string) {
	v.Name = [32]uint8{}
	copy(v.Name[:], name)
}

type GemDepositReceipt struct {
	Vault         solana.PublicKey `json:"vault"`
	GemBoxAddress solana.PublicKey `json:"gemBoxAddress"`
	GemMint       solana.PublicKey `json:"gemMint"`
	GemCount      uint64           `json:"gemCount"`
}

func (g *GemDepositReceipt) Decode(data []byte) error {
	return anchor.DecodeAccount(data, AccountGemDepositReceipt, g)
}

type WhitelistProof struct {
	WhitelistType      WhitelistType    `json:"whitelistType"`
	WhitelistedAddress solana.PublicKey `json:"whitelistedAddress"`
	Bank               solana.PublicKey `json:"bank"`
}

func (w *WhitelistProof) Decode(data []byte) error {
	return anchor.DecodeAccount(data, AccountWhitelistProof, w)
}

type Rarity struct {
	Points uint16 `json:"points"`
}

func (r *Rarity) Decode(data []byte) error {
	return anchor.DecodeAccount(data, AccountRarity, r)
}
