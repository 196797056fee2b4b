package config

import (
	"flag"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Signer modes.
const (
	SignerModeKeypair   = "keypair"
	SignerModeCustodial = "custodial"
)

const (
	defaultCommitment     = "confirmed"
	defaultListenAddr     = ":8080"
	defaultWALDir         = "./wal/rewards"
	defaultConfirmTimeout = 90 * time.Second
	defaultSlippageBps    = 50
)

// Custodial holds the connection settings of the custodial wallet service.
// The API key is taken from the environment, never from the file.
type Custodial struct {
	BaseURL   string `yaml:"base_url"`
	WalletID  string `yaml:"wallet_id"`
	PublicKey string `yaml:"public_key"`
}

type Config struct {
	// RPCURL is the chain RPC endpoint.
	RPCURL string `yaml:"rpc_url"`
	// AggregatorURL is the base URL of the swap aggregator API.
	AggregatorURL string `yaml:"aggregator_url"`
	// Commitment level used for reads and confirmation polling.
	Commitment string `yaml:"commitment"`

	// PlatformFeeBps is the platform fee charged on every trade, in basis
	// points of the input amount.
	PlatformFeeBps uint16 `yaml:"platform_fee_bps"`
	// CreatorShareBps is the creator's share of the platform fee.
	CreatorShareBps uint16 `yaml:"creator_share_bps"`
	// FeeAccount is the on-chain referral account collecting platform fees.
	FeeAccount string `yaml:"fee_account"`
	// VaultAddress is the wallet reward claims are paid out from.
	VaultAddress string `yaml:"vault_address"`

	// SignerMode selects "keypair" or "custodial".
	SignerMode string    `yaml:"signer_mode"`
	Custodial  Custodial `yaml:"custodial"`

	DefaultSlippageBps uint16        `yaml:"default_slippage_bps"`
	ConfirmTimeout     time.Duration `yaml:"confirm_timeout"`

	ListenAddr string `yaml:"listen_addr"`
	WALDir     string `yaml:"wal_dir"`
}

// Get loads configuration from the yaml file named by --config, or from
// individual flags when no file is given.
func Get() (Config, error) {
	configPath := flag.String("config", "", "path to yaml config")
	rpcURL := flag.String("rpc", "", "chain RPC endpoint")
	aggregatorURL := flag.String("aggregator", "", "swap aggregator base URL")
	feeAccount := flag.String("feeaccount", "", "platform referral fee account")
	vaultAddress := flag.String("vault", "", "reward payout vault address")
	platformFeeBps := flag.Uint("platformfeebps", 100, "platform fee in basis points")
	creatorShareBps := flag.Uint("creatorsharebps", 5000, "creator share of the platform fee in basis points")
	signerMode := flag.String("signer", SignerModeKeypair, "signer mode: keypair or custodial")
	listenAddr := flag.String("listen", defaultListenAddr, "HTTP listen address")
	flag.Parse()

	if *configPath != "" {
		return Load(*configPath)
	}

	cfg := Config{
		RPCURL:          *rpcURL,
		AggregatorURL:   *aggregatorURL,
		FeeAccount:      *feeAccount,
		VaultAddress:    *vaultAddress,
		PlatformFeeBps:  uint16(*platformFeeBps),
		CreatorShareBps: uint16(*creatorShareBps),
		SignerMode:      *signerMode,
		ListenAddr:      *listenAddr,
	}
	return finalize(cfg)
}

// Load reads a yaml config file and applies defaults and validation.
func Load(path string) (Config, error) {
	f, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}

	var cfg Config
	if err := yaml.Unmarshal(f, &cfg); err != nil {
		return Config{}, err
	}
	return finalize(cfg)
}

func finalize(cfg Config) (Config, error) {
	if cfg.Commitment == "" {
		cfg.Commitment = defaultCommitment
	}
	if cfg.ListenAddr == "" {
		cfg.ListenAddr = defaultListenAddr
	}
	if cfg.WALDir == "" {
		cfg.WALDir = defaultWALDir
	}
	if cfg.ConfirmTimeout <= 0 {
		cfg.ConfirmTimeout = defaultConfirmTimeout
	}
	if cfg.DefaultSlippageBps == 0 {
		cfg.DefaultSlippageBps = defaultSlippageBps
	}
	if cfg.SignerMode == "" {
		cfg.SignerMode = SignerModeKeypair
	}

	if cfg.RPCURL == "" {
		return Config{}, fmt.Errorf("rpc_url is required")
	}
	if cfg.AggregatorURL == "" {
		return Config{}, fmt.Errorf("aggregator_url is required")
	}
	if cfg.FeeAccount == "" {
		return Config{}, fmt.Errorf("fee_account is required")
	}
	if cfg.PlatformFeeBps > 10_000 {
		return Config{}, fmt.Errorf("platform_fee_bps must not exceed 10000, got %d", cfg.PlatformFeeBps)
	}
	if cfg.CreatorShareBps > 10_000 {
		return Config{}, fmt.Errorf("creator_share_bps must not exceed 10000, got %d", cfg.CreatorShareBps)
	}

	switch cfg.SignerMode {
	case SignerModeKeypair:
	case SignerModeCustodial:
		if cfg.Custodial.BaseURL == "" || cfg.Custodial.WalletID == "" || cfg.Custodial.PublicKey == "" {
			return Config{}, fmt.Errorf("custodial signer requires base_url, wallet_id and public_key")
		}
	default:
		return Config{}, fmt.Errorf("unknown signer_mode %q", cfg.SignerMode)
	}

	return cfg, nil
}
