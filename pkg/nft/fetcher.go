package nft

import (
	"context"
	"fmt"

	"github.com/gagliardetto/solana-go"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"gemstake/pkg/sol"
	"gemstake/pkg/token"
)

// maxAccountsPerRequest is the getMultipleAccounts key limit.
const maxAccountsPerRequest = 100

// NFT is a mint together with its on-chain metadata.
type NFT struct {
	Mint            solana.PublicKey `json:"mint"`
	TokenAccount    solana.PublicKey `json:"tokenAccount,omitempty"`
	MetadataAddress solana.PublicKey `json:"metadataAddress"`
	Metadata        *Metadata        `json:"metadata"`
}

type Fetcher struct {
	SolClient   sol.ClientProvider
	Concurrency int
	log         *zap.Logger
}

func NewFetcher(solClient sol.ClientProvider, log *zap.Logger) *Fetcher {
	if log == nil {
		log = zap.NewNop()
	}
	return &Fetcher{SolClient: solClient, Concurrency: 4, log: log}
}

// ByOwner returns the NFTs held by owner: token accounts with a balance of
// exactly one whose mint has metadata.
func (f *Fetcher) ByOwner(ctx context.Context, owner solana.PublicKey) ([]NFT, error) {
	accounts, err := f.SolClient.GetClient().GetTokenAccountsByOwner(ctx, owner)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch token accounts of %s: %w", owner, err)
	}

	mints := make([]solana.PublicKey, 0, len(accounts))
	holders := make(map[solana.PublicKey]solana.PublicKey, len(accounts))
	for _, ta := range accounts {
		var acc token.Account
		if err := acc.Decode(ta.Account.Data.GetBinary()); err != nil {
			f.log.Debug("skipping token account", zap.Stringer("account", ta.Pubkey), zap.Error(err))
			continue
		}
		if !acc.HoldsSingle() {
			continue
		}
		mints = append(mints, acc.Mint)
		holders[acc.Mint] = ta.Pubkey
	}

	nfts, err := f.ForMints(ctx, mints)
	if err != nil {
		return nil, err
	}
	for i := range nfts {
		nfts[i].TokenAccount = holders[nfts[i].Mint]
	}
	return nfts, nil
}

// ForMints loads metadata for mints, preserving order. Mints without a
// metadata account are dropped.
func (f *Fetcher) ForMints(ctx context.Context, mints []solana.PublicKey) ([]NFT, error) {
	if len(mints) == 0 {
		return []NFT{}, nil
	}

	addresses := make([]solana.PublicKey, len(mints))
	for i, mint := range mints {
		addr, err := FindMetadataPDA(mint)
		if err != nil {
			return nil, err
		}
		addresses[i] = addr
	}

	found := make([]*Metadata, len(mints))
	g, gctx := errgroup.WithContext(ctx)
	if f.Concurrency > 0 {
		g.SetLimit(f.Concurrency)
	}
	for start := 0; start < len(addresses); start += maxAccountsPerRequest {
		start := start
		end := start + maxAccountsPerRequest
		if end > len(addresses) {
			end = len(addresses)
		}
		g.Go(func() error {
			res, err := f.SolClient.GetClient().GetMultipleAccountsWithOpts(gctx, addresses[start:end])
			if err != nil {
				return fmt.Errorf("failed to fetch metadata accounts: %w", err)
			}
			for i, acc := range res.Value {
				if acc == nil {
					continue
				}
				md := &Metadata{}
				if err := md.Decode(acc.Data.GetBinary()); err != nil {
					f.log.Debug("undecodable metadata", zap.Stringer("mint", mints[start+i]), zap.Error(err))
					continue
				}
				found[start+i] = md
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := make([]NFT, 0, len(mints))
	for i, md := range found {
		if md == nil {
			continue
		}
		out = append(out, NFT{Mint: mints[i], MetadataAddress: addresses[i], Metadata: md})
	}
	return out, nil
}
