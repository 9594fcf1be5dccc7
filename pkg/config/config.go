package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"gopkg.in/yaml.v3"
)

const (
	DefaultGemBankProgram = "bankHHdqMuaaST4qQk6mkzxGeKPHWmqdgor6Gs8r88m"
	DefaultGemFarmProgram = "farmL4xeBFVXJqtfxCzU9b28QACM7E2W2ctT6epAjvE"
)

// Config is the runtime configuration shared by the CLI and the service.
type Config struct {
	RPCEndpoints   []string      `yaml:"rpcEndpoints"`
	WSEndpoint     string        `yaml:"wsEndpoint"`
	JitoRPC        string        `yaml:"jitoRpc"`
	RateLimit      int           `yaml:"rateLimit"`
	Commitment     string        `yaml:"commitment"`
	GemBankProgram string        `yaml:"gemBankProgram"`
	GemFarmProgram string        `yaml:"gemFarmProgram"`
	Farm           string        `yaml:"farm"`
	Keypair        string        `yaml:"keypair"`
	LogLevel       string        `yaml:"logLevel"`
	ConfirmTimeout time.Duration `yaml:"confirmTimeout"`
}

func Default() Config {
	return Config{
		RateLimit:      20,
		Commitment:     string(rpc.CommitmentConfirmed),
		GemBankProgram: DefaultGemBankProgram,
		GemFarmProgram: DefaultGemFarmProgram,
		LogLevel:       "info",
		ConfirmTimeout: 60 * time.Second,
	}
}

// Load reads path (when non-empty) over the defaults and applies environment overrides.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("failed to read config %s: %w", path, err)
		}
		// keys absent from the file keep their defaults; present ones win, zero included
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Default(), fmt.Errorf("failed to parse config %s: %w", path, err)
		}
	}

	ApplyEnvOverrides(&cfg)
	return cfg, nil
}

func ApplyEnvOverrides(cfg *Config) {
	if endpoints := GetRPCEndpoints(); len(endpoints) > 0 {
		cfg.RPCEndpoints = endpoints
	}
	envString("WS_ENDPOINT", &cfg.WSEndpoint)
	envString("JITO_RPC", &cfg.JitoRPC)
	envInt("RATE_LIMIT", &cfg.RateLimit)
	envString("COMMITMENT", &cfg.Commitment)
	envString("GEM_BANK_PROGRAM", &cfg.GemBankProgram)
	envString("GEM_FARM_PROGRAM", &cfg.GemFarmProgram)
	envString("FARM_ID", &cfg.Farm)
	envString("KEYPAIR", &cfg.Keypair)
	envString("LOG_LEVEL", &cfg.LogLevel)
}

func (c Config) Validate() error {
	if len(c.RPCEndpoints) == 0 {
		return errors.New("no RPC endpoints configured: set RPC_ENDPOINTS or rpcEndpoints")
	}
	if c.RateLimit < 0 {
		return fmt.Errorf("rateLimit must not be negative, got %d", c.RateLimit)
	}
	switch rpc.CommitmentType(c.Commitment) {
	case rpc.CommitmentProcessed, rpc.CommitmentConfirmed, rpc.CommitmentFinalized:
	default:
		return fmt.Errorf("unsupported commitment %q", c.Commitment)
	}
	if _, err := c.GemBankProgramID(); err != nil {
		return err
	}
	if _, err := c.GemFarmProgramID(); err != nil {
		return err
	}
	if c.Farm != "" {
		if _, err := c.FarmID(); err != nil {
			return err
		}
	}
	return nil
}

func (c Config) GemBankProgramID() (solana.PublicKey, error) {
	return parseKey("gemBankProgram", c.GemBankProgram)
}

func (c Config) GemFarmProgramID() (solana.PublicKey, error) {
	return parseKey("gemFarmProgram", c.GemFarmProgram)
}

// FarmID is the farm the staking flows operate on.
func (c Config) FarmID() (solana.PublicKey, error) {
	if c.Farm == "" {
		return solana.PublicKey{}, errors.New("no farm configured: set FARM_ID or farm")
	}
	return parseKey("farm", c.Farm)
}

// WebSocketURL returns the explicit ws endpoint or derives one from the first RPC endpoint.
func (c Config) WebSocketURL() string {
	if c.WSEndpoint != "" {
		return c.WSEndpoint
	}
	if len(c.RPCEndpoints) == 0 {
		return ""
	}
	ws := strings.Replace(c.RPCEndpoints[0], "https://", "wss://", 1)
	return strings.Replace(ws, "http://", "ws://", 1)
}

func parseKey(field, value string) (solana.PublicKey, error) {
	pk, err := solana.PublicKeyFromBase58(value)
	if err != nil {
		return solana.PublicKey{}, fmt.Errorf("invalid %s %q: %w", field, value, err)
	}
	return pk, nil
}
