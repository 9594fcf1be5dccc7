package staking

import (
	"context"
	"fmt"
	"time"

	"github.com/gagliardetto/solana-go/rpc"
	"go.uber.org/zap"

	"gemstake/pkg/config"
	"gemstake/pkg/program/gembank"
	"gemstake/pkg/program/gemfarm"
	"gemstake/pkg/protocol"
	"gemstake/pkg/sol"
)

// NewFromConfig connects to the configured endpoints and returns the service for the configured farm.
// More than one endpoint puts the client behind an RPC pool, which rotates per request.
func NewFromConfig(ctx context.Context, cfg config.Config, log *zap.Logger) (*Service, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	farmID, err := cfg.FarmID()
	if err != nil {
		return nil, err
	}
	bankID, err := cfg.GemBankProgramID()
	if err != nil {
		return nil, err
	}
	farmProgramID, err := cfg.GemFarmProgramID()
	if err != nil {
		return nil, err
	}

	opts := []sol.Option{
		sol.WithLogger(log),
		sol.WithCommitment(rpc.CommitmentType(cfg.Commitment)),
		sol.WithConfirmation(cfg.ConfirmTimeout, time.Second),
	}

	var client sol.ClientProvider
	if len(cfg.RPCEndpoints) > 1 {
		pool, err := sol.NewRPCPool(ctx, cfg.RPCEndpoints, cfg.JitoRPC, cfg.RateLimit, opts...)
		if err != nil {
			return nil, fmt.Errorf("failed to create RPC pool: %w", err)
		}
		client = pool
	} else {
		single, err := sol.NewClient(ctx, cfg.RPCEndpoints[0], cfg.JitoRPC, cfg.RateLimit, opts...)
		if err != nil {
			return nil, fmt.Errorf("failed to create Solana client: %w", err)
		}
		client = single
	}

	program := gemfarm.New(farmProgramID, gembank.New(bankID))
	return NewService(protocol.NewGemFarm(client, program), farmID, log), nil
}
