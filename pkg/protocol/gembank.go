package protocol

import (
	"context"
	"fmt"

	"github.com/gagliardetto/solana-go"

	"gemstake/pkg/nft"
	"gemstake/pkg/program/gembank"
	"gemstake/pkg/sol"
	"gemstake/pkg/token"
)

// GemBankProtocol reads gem bank state and assembles wallet-facing bank instructions.
type GemBankProtocol struct {
	SolClient sol.ClientProvider
	Program   *gembank.Program
}

func NewGemBank(solClient sol.ClientProvider, program *gembank.Program) *GemBankProtocol {
	if program == nil {
		program = gembank.New(gembank.ProgramID)
	}
	return &GemBankProtocol{
		SolClient: solClient,
		Program:   program,
	}
}

func (p *GemBankProtocol) ProtocolName() string {
	return "gem-bank"
}

func (p *GemBankProtocol) FetchBank(ctx context.Context, bank solana.PublicKey) (*gembank.Bank, error) {
	return fetchAccount[gembank.Bank](ctx, p.SolClient.GetClient(), bank, "bank")
}

func (p *GemBankProtocol) FetchVault(ctx context.Context, vault solana.PublicKey) (*gembank.Vault, error) {
	return fetchAccount[gembank.Vault](ctx, p.SolClient.GetClient(), vault, "vault")
}

func (p *GemBankProtocol) FetchGDR(ctx context.Context, gdr solana.PublicKey) (*gembank.GemDepositReceipt, error) {
	return fetchAccount[gembank.GemDepositReceipt](ctx, p.SolClient.GetClient(), gdr, "gem deposit receipt")
}

func (p *GemBankProtocol) FetchWhitelistProof(ctx context.Context, proof solana.PublicKey) (*gembank.WhitelistProof, error) {
	return fetchAccount[gembank.WhitelistProof](ctx, p.SolClient.GetClient(), proof, "whitelist proof")
}

func (p *GemBankProtocol) FetchRarity(ctx context.Context, rarity solana.PublicKey) (*gembank.Rarity, error) {
	return fetchAccount[gembank.Rarity](ctx, p.SolClient.GetClient(), rarity, "rarity")
}

// FetchTokenAccount reads an SPL token account, e.g. a gem box or reward pot.
func (p *GemBankProtocol) FetchTokenAccount(ctx context.Context, address solana.PublicKey) (*token.Account, error) {
	return FetchTokenAccount(ctx, p.SolClient.GetClient(), address)
}

func (p *GemBankProtocol) FetchAllBanks(ctx context.Context, manager *solana.PublicKey) ([]Keyed[gembank.Bank], error) {
	return fetchAllAccounts[gembank.Bank](ctx, p.SolClient.GetClient(), p.Program.ID, gembank.AccountBank,
		memcmpKey(gembank.BankManagerOffset, manager)...)
}

func (p *GemBankProtocol) FetchAllVaults(ctx context.Context, bank *solana.PublicKey) ([]Keyed[gembank.Vault], error) {
	return fetchAllAccounts[gembank.Vault](ctx, p.SolClient.GetClient(), p.Program.ID, gembank.AccountVault,
		memcmpKey(gembank.VaultBankOffset, bank)...)
}

func (p *GemBankProtocol) FetchAllGDRs(ctx context.Context, vault *solana.PublicKey) ([]Keyed[gembank.GemDepositReceipt], error) {
	return fetchAllAccounts[gembank.GemDepositReceipt](ctx, p.SolClient.GetClient(), p.Program.ID, gembank.AccountGemDepositReceipt,
		memcmpKey(gembank.GemDepositReceiptVaultOff, vault)...)
}

func (p *GemBankProtocol) FetchAllWhitelistProofs(ctx context.Context, bank *solana.PublicKey) ([]Keyed[gembank.WhitelistProof], error) {
	return fetchAllAccounts[gembank.WhitelistProof](ctx, p.SolClient.GetClient(), p.Program.ID, gembank.AccountWhitelistProof,
		memcmpKey(gembank.WhitelistProofBankOffset, bank)...)
}

func (p *GemBankProtocol) FetchAllRarities(ctx context.Context) ([]Keyed[gembank.Rarity], error) {
	return fetchAllAccounts[gembank.Rarity](ctx, p.SolClient.GetClient(), p.Program.ID, gembank.AccountRarity)
}

// FetchTokenAccount reads and decodes an SPL token account.
func FetchTokenAccount(ctx context.Context, client *sol.Client, address solana.PublicKey) (*token.Account, error) {
	acc, err := fetchAccount[token.Account](ctx, client, address, "token")
	if err != nil {
		return nil, err
	}
	acc.Address = address
	return acc, nil
}

// DepositProofs derives the whitelist proofs and metadata account a deposit of mint may be checked against.
// A zero creator omits the creator proof.
func DepositProofs(program *gembank.Program, bank, mint, creator solana.PublicKey) (gembank.DepositProofs, error) {
	mintProof, err := program.FindWhitelistProofPDA(bank, mint)
	if err != nil {
		return gembank.DepositProofs{}, err
	}
	metadata, err := nft.FindMetadataPDA(mint)
	if err != nil {
		return gembank.DepositProofs{}, err
	}
	proofs := gembank.DepositProofs{
		MintProof: mintProof.Address.ToPointer(),
		Metadata:  metadata.ToPointer(),
	}
	if !creator.IsZero() {
		creatorProof, err := program.FindWhitelistProofPDA(bank, creator)
		if err != nil {
			return gembank.DepositProofs{}, err
		}
		proofs.CreatorProof = creatorProof.Address.ToPointer()
	}
	return proofs, nil
}

// DepositGemWallet deposits from the wallet's gemSource into vault with all whitelist proofs attached.
func (p *GemBankProtocol) DepositGemWallet(owner, bank, vault solana.PublicKey, amount uint64, gemMint, gemSource, creator solana.PublicKey) (*gembank.GemResult, error) {
	proofs, err := DepositProofs(p.Program, bank, gemMint, creator)
	if err != nil {
		return nil, fmt.Errorf("failed to derive deposit proofs: %w", err)
	}
	return p.Program.DepositGem(gembank.DepositGemParams{
		Bank:      bank,
		Vault:     vault,
		Owner:     owner,
		GemMint:   gemMint,
		GemSource: gemSource,
		Amount:    amount,
		Proofs:    proofs,
	})
}

// WithdrawGemWallet withdraws to the wallet itself.
func (p *GemBankProtocol) WithdrawGemWallet(owner, bank, vault solana.PublicKey, amount uint64, gemMint solana.PublicKey) (*gembank.WithdrawGemResult, error) {
	return p.Program.WithdrawGem(gembank.WithdrawGemParams{
		Bank:     bank,
		Vault:    vault,
		Owner:    owner,
		GemMint:  gemMint,
		Receiver: owner,
		Amount:   amount,
	})
}
