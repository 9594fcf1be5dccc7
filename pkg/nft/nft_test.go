package nft

import (
	"context"
	"testing"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gemstake/internal/rpctest"
	"gemstake/pkg/sol"
	"gemstake/pkg/token"
)

func metadataBytes(t *testing.T, mint, creator solana.PublicKey, name string) []byte {
	t.Helper()
	creators := []Creator{{Address: creator, Verified: true, Share: 100}}
	data, err := bin.MarshalBorsh(&Metadata{
		Key:             KeyMetadataV1,
		UpdateAuthority: creator,
		Mint:            mint,
		Data: Data{
			Name:     name + "\x00\x00\x00",
			Symbol:   "GEM\x00",
			URI:      "https://example.org/gem.json\x00\x00",
			Creators: &creators,
		},
		IsMutable: true,
	})
	require.NoError(t, err)
	return data
}

func TestMetadataDecode(t *testing.T) {
	mint := solana.NewWallet().PublicKey()
	creator := solana.NewWallet().PublicKey()

	var md Metadata
	require.NoError(t, md.Decode(metadataBytes(t, mint, creator, "Gem #1")))
	assert.Equal(t, "Gem #1", md.Data.Name)
	assert.Equal(t, "GEM", md.Data.Symbol)
	assert.Equal(t, "https://example.org/gem.json", md.Data.URI)
	assert.Equal(t, mint, md.Mint)
	assert.True(t, md.IsMutable)

	first, ok := md.FirstCreator()
	require.True(t, ok)
	assert.Equal(t, creator, first)

	assert.Error(t, md.Decode([]byte{1, 2, 3}))
}

func TestFetcherByOwner(t *testing.T) {
	srv := rpctest.NewServer(t)
	client, err := sol.NewClient(context.Background(), srv.URL, "", 0)
	require.NoError(t, err)

	owner := solana.NewWallet().PublicKey()
	creator := solana.NewWallet().PublicKey()
	withMeta := solana.NewWallet().PublicKey()
	fungible := solana.NewWallet().PublicKey()
	bare := solana.NewWallet().PublicKey()

	for mint, amount := range map[solana.PublicKey]uint64{withMeta: 1, fungible: 500, bare: 1} {
		acc := token.Account{Mint: mint, Owner: owner, Amount: amount, State: token.StateInitialized}
		ata, err := token.FindATA(owner, mint)
		require.NoError(t, err)
		srv.SetAccount(ata, solana.TokenProgramID, acc.Encode())
	}
	metaAddr, err := FindMetadataPDA(withMeta)
	require.NoError(t, err)
	srv.SetAccount(metaAddr, solana.TokenMetadataProgramID, metadataBytes(t, withMeta, creator, "Gem #7"))

	nfts, err := NewFetcher(client, nil).ByOwner(context.Background(), owner)
	require.NoError(t, err)
	require.Len(t, nfts, 1)
	assert.Equal(t, withMeta, nfts[0].Mint)
	assert.Equal(t, metaAddr, nfts[0].MetadataAddress)
	assert.Equal(t, "Gem #7", nfts[0].Metadata.Data.Name)

	expectedATA, err := token.FindATA(owner, withMeta)
	require.NoError(t, err)
	assert.Equal(t, expectedATA, nfts[0].TokenAccount)
}

func TestForMintsEmpty(t *testing.T) {
	nfts, err := (&Fetcher{}).ForMints(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, nfts)
}
