package nft

import (
	"fmt"
	"strings"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
)

// KeyMetadataV1 is the account key byte of a token metadata account.
const KeyMetadataV1 uint8 = 4

type Creator struct {
	Address  solana.PublicKey `json:"address"`
	Verified bool             `json:"verified"`
	Share    uint8            `json:"share"`
}

type Data struct {
	Name                 string     `json:"name"`
	Symbol               string     `json:"symbol"`
	URI                  string     `json:"uri"`
	SellerFeeBasisPoints uint16     `json:"sellerFeeBasisPoints"`
	Creators             *[]Creator `json:"creators,omitempty" bin:"optional"`
}

// Metadata is the leading, fixed part of a token metadata account. Later
// optional fields (collection, uses, ...) are not decoded.
type Metadata struct {
	Key                 uint8            `json:"-"`
	UpdateAuthority     solana.PublicKey `json:"updateAuthority"`
	Mint                solana.PublicKey `json:"mint"`
	Data                Data             `json:"data"`
	PrimarySaleHappened bool             `json:"primarySaleHappened"`
	IsMutable           bool             `json:"isMutable"`
}

// Decode parses metadata account data and trims the NUL padding of the strings.
func (m *Metadata) Decode(data []byte) error {
	if len(data) == 0 || data[0] != KeyMetadataV1 {
		return fmt.Errorf("not a metadata account")
	}
	if err := bin.NewBorshDecoder(data).Decode(m); err != nil {
		return fmt.Errorf("failed to decode metadata: %w", err)
	}
	m.Data.Name = trimPadding(m.Data.Name)
	m.Data.Symbol = trimPadding(m.Data.Symbol)
	m.Data.URI = trimPadding(m.Data.URI)
	return nil
}

// FirstCreator returns the first listed creator, the address gem bank whitelists check.
func (m *Metadata) FirstCreator() (solana.PublicKey, bool) {
	if m.Data.Creators == nil || len(*m.Data.Creators) == 0 {
		return solana.PublicKey{}, false
	}
	return (*m.Data.Creators)[0].Address, true
}

func trimPadding(s string) string {
	return strings.TrimRight(s, "\x00")
}

// FindMetadataPDA derives the token metadata account of mint.
func FindMetadataPDA(mint solana.PublicKey) (solana.PublicKey, error) {
	addr, _, err := solana.FindTokenMetadataAddress(mint)
	if err != nil {
		return solana.PublicKey{}, fmt.Errorf("failed to derive metadata address for %s: %w", mint, err)
	}
	return addr, nil
}
