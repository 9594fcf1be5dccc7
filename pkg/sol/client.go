package sol

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	jitorpc "github.com/jito-labs/jito-go-rpc"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// Client wraps the solana rpc client with request rate limiting, metrics and
// an optional jito block engine for transaction submission.
type Client struct {
	RpcClient  *rpc.Client
	JitoClient *jitorpc.JitoJsonRpcClient

	endpoint       string
	limiter        *rate.Limiter
	commitment     rpc.CommitmentType
	confirmTimeout time.Duration
	pollInterval   time.Duration
	log            *zap.Logger
}

type Option func(*Client)

func WithLogger(log *zap.Logger) Option {
	return func(c *Client) {
		if log != nil {
			c.log = log
		}
	}
}

func WithCommitment(commitment rpc.CommitmentType) Option {
	return func(c *Client) {
		if commitment != "" {
			c.commitment = commitment
		}
	}
}

// WithConfirmation sets how long SendAndConfirm waits and how often it polls.
func WithConfirmation(timeout, poll time.Duration) Option {
	return func(c *Client) {
		if timeout > 0 {
			c.confirmTimeout = timeout
		}
		if poll > 0 {
			c.pollInterval = poll
		}
	}
}

// NewClient creates a client for endpoint. jitoRpc may be empty; reqLimitPerSecond <= 0 disables limiting.
func NewClient(ctx context.Context, endpoint string, jitoRpc string, reqLimitPerSecond int, opts ...Option) (*Client, error) {
	if endpoint == "" {
		return nil, errors.New("rpc endpoint is required")
	}

	limit := rate.Inf
	burst := 1
	if reqLimitPerSecond > 0 {
		limit = rate.Limit(reqLimitPerSecond)
		burst = reqLimitPerSecond
	}

	c := &Client{
		RpcClient:      rpc.New(endpoint),
		endpoint:       endpoint,
		limiter:        rate.NewLimiter(limit, burst),
		commitment:     rpc.CommitmentConfirmed,
		confirmTimeout: 60 * time.Second,
		pollInterval:   time.Second,
		log:            zap.NewNop(),
	}
	if jitoRpc != "" {
		c.JitoClient = jitorpc.NewJitoJsonRpcClient(jitoRpc, "")
	}
	for _, opt := range opts {
		opt(c)
	}

	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	c.log.Debug("solana client created",
		zap.String("endpoint", endpoint),
		zap.Bool("jito", c.JitoClient != nil),
		zap.Int("rateLimit", reqLimitPerSecond))
	return c, nil
}

// GetClient returns c, so a single client can stand in for a pool.
func (c *Client) GetClient() *Client {
	return c
}

func (c *Client) Endpoint() string {
	return c.endpoint
}

func (c *Client) Commitment() rpc.CommitmentType {
	return c.commitment
}

// call waits for the limiter and records the request outcome.
func (c *Client) call(ctx context.Context, method string, fn func() error) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limiter: %w", err)
	}

	start := time.Now()
	err := fn()
	observeRequest(method, err, time.Since(start))
	if err != nil && !errors.Is(err, rpc.ErrNotFound) {
		c.log.Debug("rpc request failed", zap.String("method", method), zap.Error(err))
	}
	return err
}

// GetAccountInfoWithOpts returns rpc.ErrNotFound when the account does not exist.
func (c *Client) GetAccountInfoWithOpts(ctx context.Context, account solana.PublicKey) (*rpc.GetAccountInfoResult, error) {
	var out *rpc.GetAccountInfoResult
	err := c.call(ctx, "getAccountInfo", func() (err error) {
		out, err = c.RpcClient.GetAccountInfoWithOpts(ctx, account, &rpc.GetAccountInfoOpts{
			Encoding:   solana.EncodingBase64,
			Commitment: c.commitment,
		})
		return err
	})
	return out, err
}

// GetMultipleAccountsWithOpts returns one entry per key; missing accounts are nil.
func (c *Client) GetMultipleAccountsWithOpts(ctx context.Context, accounts []solana.PublicKey) (*rpc.GetMultipleAccountsResult, error) {
	var out *rpc.GetMultipleAccountsResult
	err := c.call(ctx, "getMultipleAccounts", func() (err error) {
		out, err = c.RpcClient.GetMultipleAccountsWithOpts(ctx, accounts, &rpc.GetMultipleAccountsOpts{
			Encoding:   solana.EncodingBase64,
			Commitment: c.commitment,
		})
		return err
	})
	return out, err
}

func (c *Client) GetProgramAccountsWithOpts(ctx context.Context, program solana.PublicKey, opts *rpc.GetProgramAccountsOpts) (rpc.GetProgramAccountsResult, error) {
	if opts == nil {
		opts = &rpc.GetProgramAccountsOpts{}
	}
	if opts.Commitment == "" {
		opts.Commitment = c.commitment
	}
	if opts.Encoding == "" {
		opts.Encoding = solana.EncodingBase64
	}

	var out rpc.GetProgramAccountsResult
	err := c.call(ctx, "getProgramAccounts", func() (err error) {
		out, err = c.RpcClient.GetProgramAccountsWithOpts(ctx, program, opts)
		return err
	})
	return out, err
}

// GetBalance returns the lamport balance of account.
func (c *Client) GetBalance(ctx context.Context, account solana.PublicKey) (uint64, error) {
	var out *rpc.GetBalanceResult
	err := c.call(ctx, "getBalance", func() (err error) {
		out, err = c.RpcClient.GetBalance(ctx, account, c.commitment)
		return err
	})
	if err != nil {
		return 0, err
	}
	return out.Value, nil
}

// GetTokenAccountsByOwner lists SPL token accounts owned by owner.
func (c *Client) GetTokenAccountsByOwner(ctx context.Context, owner solana.PublicKey) ([]*rpc.TokenAccount, error) {
	var out *rpc.GetTokenAccountsResult
	err := c.call(ctx, "getTokenAccountsByOwner", func() (err error) {
		out, err = c.RpcClient.GetTokenAccountsByOwner(ctx, owner,
			&rpc.GetTokenAccountsConfig{ProgramId: solana.TokenProgramID.ToPointer()},
			&rpc.GetTokenAccountsOpts{Commitment: c.commitment, Encoding: solana.EncodingBase64},
		)
		return err
	})
	if err != nil {
		return nil, err
	}
	return out.Value, nil
}

func (c *Client) GetLatestBlockhash(ctx context.Context) (*rpc.GetLatestBlockhashResult, error) {
	var out *rpc.GetLatestBlockhashResult
	err := c.call(ctx, "getLatestBlockhash", func() (err error) {
		out, err = c.RpcClient.GetLatestBlockhash(ctx, c.commitment)
		return err
	})
	return out, err
}

func (c *Client) GetSignatureStatus(ctx context.Context, sig solana.Signature) (*rpc.SignatureStatusesResult, error) {
	var out *rpc.GetSignatureStatusesResult
	err := c.call(ctx, "getSignatureStatuses", func() (err error) {
		out, err = c.RpcClient.GetSignatureStatuses(ctx, false, sig)
		return err
	})
	if err != nil {
		return nil, err
	}
	if out == nil || len(out.Value) == 0 {
		return nil, nil
	}
	return out.Value[0], nil
}
