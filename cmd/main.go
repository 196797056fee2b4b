// Command tradecore runs the trade execution and reward settlement engine.
// It quotes swaps through an aggregator, executes them with a local or
// custodial signer, and settles creator rewards into an append-only ledger.
//
// Usage:
//
//	tradecore --config config.yaml
//	tradecore setup (interactive configuration wizard)
//
// Required environment variables:
//
//	For the keypair signer: TRADECORE_PRIVATE_KEY (base58)
//	For the custodial signer: TRADECORE_CUSTODIAL_API_KEY
//	For reward payouts: TRADECORE_VAULT_KEY (base58)
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/gagliardetto/solana-go"
	"github.com/pkg/errors"
	"github.com/tokenpost/tradecore/config"
	"github.com/tokenpost/tradecore/internal/clients"
	"github.com/tokenpost/tradecore/internal/services/broadcaster"
	"github.com/tokenpost/tradecore/internal/services/converter"
	"github.com/tokenpost/tradecore/internal/services/executor"
	"github.com/tokenpost/tradecore/internal/services/pricer"
	"github.com/tokenpost/tradecore/internal/services/quote"
	"github.com/tokenpost/tradecore/internal/services/settlement"
	"github.com/tokenpost/tradecore/internal/services/signer"
	"github.com/tokenpost/tradecore/internal/services/txbuilder"
	"github.com/tokenpost/tradecore/internal/setup"
	"github.com/tokenpost/tradecore/internal/storage/rewards"
	"github.com/tokenpost/tradecore/internal/web"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

func main() {
	var cfg config.Config
	var err error

	if len(os.Args) > 1 && os.Args[1] == "setup" {
		if err := setup.RunTUI(); err != nil {
			log.Fatal(err)
		}
		cfg, err = config.Load("config.gen.yaml")
	} else {
		cfg, err = config.Get()
	}
	if err != nil {
		log.Fatal(err)
	}

	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatal(err)
	}
	defer logger.Sync()

	if err := run(cfg, logger); err != nil {
		logger.Fatal("engine stopped", zap.Error(err))
	}
}

func run(cfg config.Config, logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	chain := clients.NewChainClient(cfg.RPCURL, cfg.Commitment, logger)
	aggregator := clients.NewAggregatorClient(cfg.AggregatorURL)

	conv := converter.New(chain)
	quotes := quote.New(aggregator, cfg.PlatformFeeBps, logger)
	builder := txbuilder.New(aggregator, chain, cfg.FeeAccount)
	sender := broadcaster.New(chain, cfg.ConfirmTimeout, logger)
	fees := settlement.NewFeeEstimator(pricer.NewAggregatorPricer(aggregator), conv)

	walletSigner, err := buildSigner(cfg)
	if err != nil {
		return err
	}

	ledger, err := rewards.NewWALStore(cfg.WALDir)
	if err != nil {
		return err
	}
	defer ledger.Close()

	exec := executor.New(executor.Config{
		Quotes:             quotes,
		Builder:            builder,
		Converter:          conv,
		Chain:              chain,
		Sender:             sender,
		Fees:               fees,
		Ledger:             ledger,
		Signer:             walletSigner,
		CreatorShareBps:    cfg.CreatorShareBps,
		DefaultSlippageBps: cfg.DefaultSlippageBps,
		Logger:             logger,
	})

	disburse, err := buildDisburser(cfg, chain, aggregator, logger)
	if err != nil {
		return err
	}

	server := web.NewServer(cfg.ListenAddr, exec, ledger, disburse, logger)

	logger.Info("engine started",
		zap.String("listen", cfg.ListenAddr),
		zap.String("signer_mode", cfg.SignerMode),
		zap.String("wallet", walletSigner.PublicKey()))

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return server.Start(ctx)
	})
	return g.Wait()
}

func buildSigner(cfg config.Config) (signer.Signer, error) {
	switch cfg.SignerMode {
	case config.SignerModeKeypair:
		key := os.Getenv("TRADECORE_PRIVATE_KEY")
		if key == "" {
			return nil, errors.New("TRADECORE_PRIVATE_KEY environment variable must be set")
		}
		return signer.NewKeypairFromBase58(key)
	case config.SignerModeCustodial:
		apiKey := os.Getenv("TRADECORE_CUSTODIAL_API_KEY")
		if apiKey == "" {
			return nil, errors.New("TRADECORE_CUSTODIAL_API_KEY environment variable must be set")
		}
		backend := clients.NewCustodialClient(cfg.Custodial.BaseURL, apiKey)
		return signer.NewCustodial(backend, cfg.Custodial.WalletID, cfg.Custodial.PublicKey), nil
	default:
		return nil, errors.Errorf("unsupported signer mode %q", cfg.SignerMode)
	}
}

// buildDisburser wires the vault payout path. Without a vault key the
// engine still trades and accrues rewards, but claims are rejected.
func buildDisburser(cfg config.Config, chain *clients.ChainClient, aggregator *clients.AggregatorClient, logger *zap.Logger) (rewards.DisburseFunc, error) {
	encoded := os.Getenv("TRADECORE_VAULT_KEY")
	if encoded == "" {
		logger.Warn("TRADECORE_VAULT_KEY not set, reward claims are disabled")
		return func(ctx context.Context, beneficiary string, owed uint64) (string, error) {
			return "", errors.New("reward payouts are not configured")
		}, nil
	}

	vaultKey, err := solana.PrivateKeyFromBase58(encoded)
	if err != nil {
		return nil, errors.Wrap(err, "parse vault key")
	}
	if cfg.VaultAddress != "" && vaultKey.PublicKey().String() != cfg.VaultAddress {
		return nil, errors.Errorf("vault key does not match configured vault address %s", cfg.VaultAddress)
	}

	disburser := settlement.NewDisburser(chain, aggregator, vaultKey, cfg.FeeAccount, logger)
	return func(ctx context.Context, beneficiary string, owed uint64) (string, error) {
		sig, err := disburser.Disburse(ctx, beneficiary, owed)
		if err != nil {
			return "", err
		}
		return sig.String(), nil
	}, nil
}
