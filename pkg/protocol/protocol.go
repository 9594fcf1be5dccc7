package protocol

import (
	"context"
	"errors"
	"fmt"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"

	"gemstake/pkg/anchor"
	"gemstake/pkg/sol"
)

// ErrAccountNotFound is returned when a requested account does not exist on chain.
var ErrAccountNotFound = errors.New("account not found")

// Account is any on-chain state that decodes itself from raw account data.
type Account interface {
	Decode(data []byte) error
}

type decodable[T any] interface {
	*T
	Account
}

// Keyed pairs a decoded account with its address.
type Keyed[T any] struct {
	Address solana.PublicKey `json:"address"`
	Account T                `json:"account"`
}

func fetchAccount[T any, P decodable[T]](ctx context.Context, client *sol.Client, address solana.PublicKey, what string) (*T, error) {
	res, err := client.GetAccountInfoWithOpts(ctx, address)
	if errors.Is(err, rpc.ErrNotFound) {
		return nil, fmt.Errorf("%s %s: %w", what, address, ErrAccountNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get %s account %s: %w", what, address, err)
	}

	acc := new(T)
	if err := P(acc).Decode(res.Value.Data.GetBinary()); err != nil {
		return nil, fmt.Errorf("failed to parse %s data for %s: %w", what, address, err)
	}
	return acc, nil
}

// fetchAllAccounts lists program accounts of one anchor type. Accounts that fail to decode are skipped.
func fetchAllAccounts[T any, P decodable[T]](ctx context.Context, client *sol.Client, program solana.PublicKey, accountName string, filters ...rpc.RPCFilter) ([]Keyed[T], error) {
	all := append([]rpc.RPCFilter{memcmpBytes(0, anchor.AccountDiscriminator(accountName))}, filters...)

	programAccounts, err := client.GetProgramAccountsWithOpts(ctx, program, &rpc.GetProgramAccountsOpts{
		Filters: all,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to fetch %s accounts: %w", accountName, err)
	}

	res := make([]Keyed[T], 0, len(programAccounts))
	for _, v := range programAccounts {
		var acc T
		if err := P(&acc).Decode(v.Account.Data.GetBinary()); err != nil {
			continue
		}
		res = append(res, Keyed[T]{Address: v.Pubkey, Account: acc})
	}
	return res, nil
}

func memcmpBytes(offset uint64, b []byte) rpc.RPCFilter {
	return rpc.RPCFilter{
		Memcmp: &rpc.RPCFilterMemcmp{
			Offset: offset,
			Bytes:  b,
		},
	}
}

// memcmpKey filters on key at offset. A nil key adds no filter.
func memcmpKey(offset uint64, key *solana.PublicKey) []rpc.RPCFilter {
	if key == nil {
		return nil
	}
	return []rpc.RPCFilter{memcmpBytes(offset, key.Bytes())}
}
