package sol

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"go.uber.org/zap"
)

var (
	ErrTransactionFailed = errors.New("transaction failed")
	ErrConfirmTimeout    = errors.New("transaction confirmation timed out")
)

// BuildTransaction assembles instructions into a transaction with a fresh
// blockhash and feePayer as the paying account.
func (c *Client) BuildTransaction(ctx context.Context, instructions []solana.Instruction, feePayer solana.PublicKey) (*solana.Transaction, error) {
	if len(instructions) == 0 {
		return nil, errors.New("no instructions to send")
	}

	recent, err := c.GetLatestBlockhash(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get latest blockhash: %w", err)
	}

	tx, err := solana.NewTransaction(instructions, recent.Value.Blockhash, solana.TransactionPayer(feePayer))
	if err != nil {
		return nil, fmt.Errorf("failed to build transaction: %w", err)
	}
	return tx, nil
}

// SignTransaction signs tx with every provided key. All required signers must be present.
func SignTransaction(tx *solana.Transaction, signers ...solana.PrivateKey) error {
	keys := make(map[solana.PublicKey]solana.PrivateKey, len(signers))
	for _, s := range signers {
		keys[s.PublicKey()] = s
	}
	_, err := tx.Sign(func(key solana.PublicKey) *solana.PrivateKey {
		if k, ok := keys[key]; ok {
			return &k
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to sign transaction: %w", err)
	}
	return nil
}

// EncodeUnsigned serializes tx to base64 with zeroed signature slots for a wallet to fill.
func EncodeUnsigned(tx *solana.Transaction) (string, error) {
	if len(tx.Signatures) == 0 {
		tx.Signatures = make([]solana.Signature, tx.Message.Header.NumRequiredSignatures)
	}
	return tx.ToBase64()
}

// SendTransaction submits a signed transaction through jito when configured,
// otherwise through the rpc endpoint.
func (c *Client) SendTransaction(ctx context.Context, tx *solana.Transaction) (solana.Signature, error) {
	if c.JitoClient != nil {
		sig, err := c.sendViaJito(ctx, tx)
		observeSubmit("jito", err)
		if err == nil {
			return sig, nil
		}
		c.log.Warn("jito submission failed, falling back to rpc", zap.Error(err))
	}

	var sig solana.Signature
	err := c.call(ctx, "sendTransaction", func() (err error) {
		sig, err = c.RpcClient.SendTransactionWithOpts(ctx, tx, rpc.TransactionOpts{
			PreflightCommitment: c.commitment,
		})
		return err
	})
	observeSubmit("rpc", err)
	if err != nil {
		return solana.Signature{}, fmt.Errorf("failed to send transaction: %w", err)
	}
	return sig, nil
}

func (c *Client) sendViaJito(ctx context.Context, tx *solana.Transaction) (solana.Signature, error) {
	if err := ctx.Err(); err != nil {
		return solana.Signature{}, err
	}
	encoded, err := tx.ToBase64()
	if err != nil {
		return solana.Signature{}, fmt.Errorf("failed to encode transaction: %w", err)
	}

	params := []interface{}{
		encoded,
		map[string]string{"encoding": "base64"},
	}
	raw, err := c.JitoClient.SendTxn(params, false)
	if err != nil {
		return solana.Signature{}, fmt.Errorf("jito sendTransaction: %w", err)
	}

	var sigStr string
	if err := json.Unmarshal(raw, &sigStr); err != nil {
		return solana.Signature{}, fmt.Errorf("unexpected jito response %s: %w", string(raw), err)
	}
	return solana.SignatureFromBase58(sigStr)
}

// ConfirmTransaction polls the signature status until it reaches the client
// commitment, fails on chain, or the confirm timeout elapses.
func (c *Client) ConfirmTransaction(ctx context.Context, sig solana.Signature) error {
	ctx, cancel := context.WithTimeout(ctx, c.confirmTimeout)
	defer cancel()

	ticker := time.NewTicker(c.pollInterval)
	defer ticker.Stop()

	for {
		status, err := c.GetSignatureStatus(ctx, sig)
		if err != nil && ctx.Err() == nil {
			c.log.Debug("signature status lookup failed", zap.Stringer("signature", sig), zap.Error(err))
		}
		if status != nil {
			if status.Err != nil {
				return fmt.Errorf("%w: %s: %v", ErrTransactionFailed, sig, status.Err)
			}
			if reached(status.ConfirmationStatus, c.commitment) {
				return nil
			}
		}

		select {
		case <-ctx.Done():
			return fmt.Errorf("%w: %s", ErrConfirmTimeout, sig)
		case <-ticker.C:
		}
	}
}

// SendAndConfirm submits tx and waits for confirmation.
func (c *Client) SendAndConfirm(ctx context.Context, tx *solana.Transaction) (solana.Signature, error) {
	sig, err := c.SendTransaction(ctx, tx)
	if err != nil {
		return solana.Signature{}, err
	}
	c.log.Info("transaction sent", zap.Stringer("signature", sig))

	if err := c.ConfirmTransaction(ctx, sig); err != nil {
		return sig, err
	}
	c.log.Info("transaction confirmed", zap.Stringer("signature", sig))
	return sig, nil
}

func reached(status rpc.ConfirmationStatusType, want rpc.CommitmentType) bool {
	switch status {
	case rpc.ConfirmationStatusFinalized:
		return true
	case rpc.ConfirmationStatusConfirmed:
		return want != rpc.CommitmentFinalized
	case rpc.ConfirmationStatusProcessed:
		return want == rpc.CommitmentProcessed
	}
	return false
}
