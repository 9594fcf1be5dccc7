package sol

import (
	"context"
	"testing"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gemstake/internal/rpctest"
)

func newTestClient(t *testing.T) (*Client, *rpctest.Server) {
	t.Helper()
	srv := rpctest.NewServer(t)
	c, err := NewClient(context.Background(), srv.URL, "", 0, WithConfirmation(2*time.Second, 10*time.Millisecond))
	require.NoError(t, err)
	return c, srv
}

func memo(payer solana.PublicKey) solana.Instruction {
	program := solana.MustPublicKeyFromBase58("MemoSq4gqABAXKb96qnH8TysNcWxMyWCqXgDLGmfcHr")
	return solana.NewInstruction(program, solana.AccountMetaSlice{solana.NewAccountMeta(payer, true, true)}, []byte("gm"))
}

func TestGetAccountInfoNotFound(t *testing.T) {
	c, srv := newTestClient(t)
	ctx := context.Background()

	missing := solana.NewWallet().PublicKey()
	_, err := c.GetAccountInfoWithOpts(ctx, missing)
	assert.ErrorIs(t, err, rpc.ErrNotFound)

	present := solana.NewWallet().PublicKey()
	srv.SetAccount(present, solana.SystemProgramID, []byte{1, 2, 3})
	res, err := c.GetAccountInfoWithOpts(ctx, present)
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2, 3}, res.Value.Data.GetBinary())

	multi, err := c.GetMultipleAccountsWithOpts(ctx, []solana.PublicKey{present, missing})
	require.NoError(t, err)
	require.Len(t, multi.Value, 2)
	assert.NotNil(t, multi.Value[0])
	assert.Nil(t, multi.Value[1])
}

func TestSendAndConfirm(t *testing.T) {
	c, srv := newTestClient(t)
	ctx := context.Background()

	payer, err := solana.NewRandomPrivateKey()
	require.NoError(t, err)

	tx, err := c.BuildTransaction(ctx, []solana.Instruction{memo(payer.PublicKey())}, payer.PublicKey())
	require.NoError(t, err)
	assert.Equal(t, srv.Blockhash, tx.Message.RecentBlockhash)

	require.NoError(t, SignTransaction(tx, payer))
	sig, err := c.SendAndConfirm(ctx, tx)
	require.NoError(t, err)
	assert.Equal(t, tx.Signatures[0], sig)
	require.Len(t, srv.Sent(), 1)
}

func TestConfirmReportsOnChainFailure(t *testing.T) {
	c, srv := newTestClient(t)
	srv.TxError = map[string]interface{}{"InstructionError": []interface{}{0, "Custom"}}

	err := c.ConfirmTransaction(context.Background(), solana.Signature{1})
	assert.ErrorIs(t, err, ErrTransactionFailed)
}

func TestSignTransactionRequiresAllSigners(t *testing.T) {
	c, _ := newTestClient(t)
	payer, err := solana.NewRandomPrivateKey()
	require.NoError(t, err)
	other, err := solana.NewRandomPrivateKey()
	require.NoError(t, err)

	tx, err := c.BuildTransaction(context.Background(), []solana.Instruction{memo(payer.PublicKey())}, payer.PublicKey())
	require.NoError(t, err)
	assert.Error(t, SignTransaction(tx, other))
}

func TestEncodeUnsigned(t *testing.T) {
	c, _ := newTestClient(t)
	payer := solana.NewWallet().PublicKey()

	tx, err := c.BuildTransaction(context.Background(), []solana.Instruction{memo(payer)}, payer)
	require.NoError(t, err)

	encoded, err := EncodeUnsigned(tx)
	require.NoError(t, err)

	decoded, err := solana.TransactionFromBase64(encoded)
	require.NoError(t, err)
	require.Len(t, decoded.Signatures, 1)
	assert.True(t, decoded.Signatures[0].IsZero())
	assert.Equal(t, payer, decoded.Message.AccountKeys[0])
}

func TestRPCPoolRoundRobin(t *testing.T) {
	srv := rpctest.NewServer(t)
	pool, err := NewRPCPool(context.Background(), []string{srv.URL, srv.URL + "/b"}, "", 5)
	require.NoError(t, err)
	require.Equal(t, 2, pool.Size())

	first := pool.GetClient()
	second := pool.GetClient()
	assert.NotSame(t, first, second)

	_, err = NewRPCPool(context.Background(), nil, "", 5)
	assert.Error(t, err)
}

func TestReached(t *testing.T) {
	assert.True(t, reached(rpc.ConfirmationStatusConfirmed, rpc.CommitmentConfirmed))
	assert.False(t, reached(rpc.ConfirmationStatusConfirmed, rpc.CommitmentFinalized))
	assert.True(t, reached(rpc.ConfirmationStatusFinalized, rpc.CommitmentFinalized))
	assert.False(t, reached(rpc.ConfirmationStatusProcessed, rpc.CommitmentConfirmed))
}
