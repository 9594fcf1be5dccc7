package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/gagliardetto/solana-go"
	"go.uber.org/zap"

	"gemstake/pkg/anchor"
	"gemstake/pkg/config"
	"gemstake/pkg/logging"
	"gemstake/pkg/staking"
	"gemstake/pkg/wallet"
)

type ErrorResponse struct {
	Error string `json:"error"`
}

// TxResult is printed for write actions.
type TxResult struct {
	Action       string   `json:"action"`
	Instructions []string `json:"instructions"`
	Signature    string   `json:"signature,omitempty"`
	Transaction  string   `json:"transaction,omitempty"`
}

var (
	rpcEndpoints = flag.String("rpc", "", "Comma-separated Solana RPC endpoints (reads RPC_ENDPOINTS if not specified)")
	configPath   = flag.String("config", "", "YAML config file")
	keypair      = flag.String("keypair", "", "Keypair file or base58 secret key (reads KEYPAIR if not specified)")
	farmAddress  = flag.String("farm", "", "Farm address (reads FARM_ID if not specified)")
	action       = flag.String("action", "farm", "One of: "+strings.Join(actions, ", "))
	identity     = flag.String("identity", "", "Farmer identity or wallet owner (defaults to the keypair's public key)")
	mint         = flag.String("mint", "", "NFT mint to stake or unstake")
	tokenAccount = flag.String("token-account", "", "Token account holding the NFT to stake")
	creator      = flag.String("creator", "", "Whitelisted creator of the NFT (optional)")
	dryRun       = flag.Bool("dry-run", false, "Print the unsigned transaction instead of sending it")
	jsonOutput   = flag.Bool("json", true, "Output as JSON")
	verbose      = flag.Bool("v", false, "Debug logging")
)

var actions = []string{"farm", "farmer", "rewards", "vault-nfts", "wallet-nfts", "farmers", "stake", "unstake", "claim", "refresh"}

func main() {
	if err := config.LoadEnv(".env"); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: Could not load .env file: %v\n", err)
	}
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		exit(err)
	}
	if *rpcEndpoints != "" {
		cfg.RPCEndpoints = config.SplitList(*rpcEndpoints)
	}
	if *farmAddress != "" {
		cfg.Farm = *farmAddress
	}
	if *keypair != "" {
		cfg.Keypair = *keypair
	}
	if *verbose {
		cfg.LogLevel = "debug"
	}

	log, err := logging.New(cfg.LogLevel, !*jsonOutput)
	if err != nil {
		exit(err)
	}
	defer log.Sync() //nolint:errcheck

	ctx := context.Background()
	svc, err := staking.NewFromConfig(ctx, cfg, log)
	if err != nil {
		exit(err)
	}

	if err := run(ctx, svc, cfg, log); err != nil {
		exit(err)
	}
}

func run(ctx context.Context, svc *staking.Service, cfg config.Config, log *zap.Logger) error {
	var signer *wallet.Wallet
	if cfg.Keypair != "" {
		w, err := wallet.Load(cfg.Keypair)
		if err != nil {
			return err
		}
		signer = w
	}

	who, err := resolveIdentity(signer)
	if err != nil && *action != "farm" && *action != "farmers" {
		return err
	}

	switch *action {
	case "farm":
		farm, err := svc.FetchFarm(ctx)
		if err != nil {
			return err
		}
		return output(farm)
	case "farmer":
		info, err := svc.FetchFarmer(ctx, who)
		if err != nil {
			return err
		}
		if info == nil {
			return fmt.Errorf("%w: %s", staking.ErrNoFarmer, who)
		}
		return output(info)
	case "rewards":
		rewards, err := svc.FetchAvailableRewards(ctx, who)
		if err != nil {
			return err
		}
		return output(map[string]string{"rewardA": rewards.RewardA.String(), "rewardB": rewards.RewardB.String()})
	case "vault-nfts":
		nfts, err := svc.FetchVaultNFTs(ctx, who)
		if err != nil {
			return err
		}
		return output(nfts)
	case "wallet-nfts":
		nfts, err := svc.FetchWalletNFTs(ctx, who)
		if err != nil {
			return err
		}
		return output(nfts)
	case "farmers":
		farmID := svc.FarmID
		farmers, err := svc.Farm.FetchAllFarmers(ctx, &farmID, nil)
		if err != nil {
			return err
		}
		log.Sugar().Debugf("Found %d farmers", len(farmers))
		return output(farmers)
	}

	if err := checkSigner(*action, who, signer, *dryRun); err != nil {
		return err
	}
	ixs, err := buildInstructions(ctx, svc, who)
	if err != nil {
		return err
	}
	result := TxResult{Action: *action, Instructions: instructionNames(ixs)}

	if *dryRun {
		result.Transaction, err = svc.BuildUnsigned(ctx, ixs, who)
		if err != nil {
			return err
		}
		return output(result)
	}

	sig, err := svc.Execute(ctx, ixs, signer)
	if err != nil {
		return err
	}
	result.Signature = sig.String()
	return output(result)
}

// checkSigner rejects sending a transaction the keypair cannot sign. Refresh
// carries no identity signature, so any keypair may pay for it.
func checkSigner(action string, who solana.PublicKey, signer *wallet.Wallet, dryRun bool) error {
	if dryRun {
		return nil
	}
	if signer == nil {
		return errors.New("a keypair is required to send transactions; use -dry-run to print the transaction instead")
	}
	if action != "refresh" && !signer.PublicKey().Equals(who) {
		return fmt.Errorf("-identity %s does not match keypair %s; use -dry-run to build it for that wallet", who, signer.PublicKey())
	}
	return nil
}

func buildInstructions(ctx context.Context, svc *staking.Service, who solana.PublicKey) ([]solana.Instruction, error) {
	switch *action {
	case "stake":
		gemMint, err := requireKey("mint", *mint)
		if err != nil {
			return nil, err
		}
		source, err := requireKey("token-account", *tokenAccount)
		if err != nil {
			return nil, err
		}
		params := staking.StakeParams{Owner: who, Mint: gemMint, TokenAccount: source}
		if *creator != "" {
			if params.Creator, err = requireKey("creator", *creator); err != nil {
				return nil, err
			}
		}
		return svc.StakeToken(ctx, params)
	case "unstake":
		gemMint, err := requireKey("mint", *mint)
		if err != nil {
			return nil, err
		}
		return svc.UnstakeToken(ctx, who, gemMint)
	case "claim":
		return svc.ClaimAll(ctx, who)
	case "refresh":
		return svc.Refresh(who)
	}
	return nil, fmt.Errorf("unknown action %q, expected one of: %s", *action, strings.Join(actions, ", "))
}

// resolveIdentity prefers -identity and falls back to the keypair.
func resolveIdentity(signer *wallet.Wallet) (solana.PublicKey, error) {
	if *identity != "" {
		return requireKey("identity", *identity)
	}
	if signer != nil {
		return signer.PublicKey(), nil
	}
	return solana.PublicKey{}, errors.New("no identity: pass -identity or -keypair")
}

func requireKey(name, value string) (solana.PublicKey, error) {
	if value == "" {
		return solana.PublicKey{}, fmt.Errorf("missing required flag -%s", name)
	}
	pk, err := solana.PublicKeyFromBase58(value)
	if err != nil {
		return solana.PublicKey{}, fmt.Errorf("invalid -%s: %w", name, err)
	}
	return pk, nil
}

func instructionNames(ixs []solana.Instruction) []string {
	names := make([]string, 0, len(ixs))
	for _, ix := range ixs {
		if inst, ok := ix.(*anchor.Instruction); ok {
			names = append(names, inst.Name)
		}
	}
	return names
}

func output(v interface{}) error {
	if !*jsonOutput {
		fmt.Printf("%+v\n", v)
		return nil
	}
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}
	fmt.Println(string(data))
	return nil
}

func exit(err error) {
	if *jsonOutput {
		data, _ := json.MarshalIndent(ErrorResponse{Error: err.Error()}, "", "  ")
		fmt.Fprintln(os.Stderr, string(data))
	} else {
		fmt.Fprintln(os.Stderr, "Error:", err)
	}
	os.Exit(1)
}
