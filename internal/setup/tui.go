package setup

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"
	"github.com/tokenpost/tradecore/config"
	"gopkg.in/yaml.v3"
)

var (
	subtle    = lipgloss.AdaptiveColor{Light: "#D9DCCF", Dark: "#383838"}
	highlight = lipgloss.AdaptiveColor{Light: "#874BFD", Dark: "#7D56F4"}
	special   = lipgloss.AdaptiveColor{Light: "#43BF6D", Dark: "#73F59F"}

	headerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("205")).
			Background(highlight).
			Padding(1, 2).
			Bold(true).
			MarginBottom(1)

	stepStyle = lipgloss.NewStyle().
			Foreground(special).
			Bold(true).
			MarginTop(1).
			MarginBottom(0)
)

// RunTUI launches the terminal configuration wizard.
func RunTUI() error {
	var (
		rpcURL             string
		aggregatorURL      string
		commitment         string
		platformFeeBpsStr  string
		creatorShareBpsStr string
		feeAccount         string
		vaultAddress       string
		signerMode         string
		custodialURL       string
		custodialWalletID  string
		custodialPublicKey string
		listenAddr         string
		walDir             string
		slippageBpsStr     string
		confirm            bool
	)

	// defaults
	rpcURL = "https://api.mainnet-beta.solana.com"
	aggregatorURL = "https://quote-api.jup.ag/v6"
	commitment = "confirmed"
	platformFeeBpsStr = "100"
	creatorShareBpsStr = "5000"
	slippageBpsStr = "50"
	listenAddr = ":8080"
	walDir = "./wal/rewards"

	// step 1: welcome
	fmt.Print("\033[H\033[2J") // Clear screen
	fmt.Println(headerStyle.Render("TRADECORE CONFIG WIZARD"))
	fmt.Println(lipgloss.NewStyle().Foreground(subtle).Render("Let's wire your trade engine.\n"))

	// endpoints
	fmt.Println(stepStyle.Render("STEP 1: ENDPOINTS"))
	err := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Chain RPC URL").
				Value(&rpcURL).
				Validate(notEmpty("RPC URL")),
			huh.NewInput().
				Title("Aggregator Base URL").
				Value(&aggregatorURL).
				Validate(notEmpty("aggregator URL")),
			huh.NewSelect[string]().
				Title("Commitment Level").
				Options(
					huh.NewOption("Confirmed", "confirmed"),
					huh.NewOption("Finalized", "finalized"),
					huh.NewOption("Processed", "processed"),
				).
				Value(&commitment),
		),
	).Run()
	if err != nil {
		return err
	}

	// fees
	fmt.Print("\033[H\033[2J")
	fmt.Println(headerStyle.Render("TRADECORE CONFIG WIZARD"))
	fmt.Println(stepStyle.Render("STEP 2: FEES & REWARDS"))
	err = huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Platform Fee (bps)").
				Description("Basis points charged on every trade (e.g. 100 = 1%)").
				Value(&platformFeeBpsStr).
				Validate(validateBps),
			huh.NewInput().
				Title("Creator Share (bps)").
				Description("Creator's share of the platform fee (e.g. 5000 = 50%)").
				Value(&creatorShareBpsStr).
				Validate(validateBps),
			huh.NewInput().
				Title("Fee Account").
				Description("On-chain referral account collecting platform fees").
				Value(&feeAccount).
				Validate(notEmpty("fee account")),
			huh.NewInput().
				Title("Vault Address").
				Description("Wallet reward claims are paid out from").
				Value(&vaultAddress),
		),
	).Run()
	if err != nil {
		return err
	}

	// signer
	fmt.Print("\033[H\033[2J")
	fmt.Println(headerStyle.Render("TRADECORE CONFIG WIZARD"))
	fmt.Println(stepStyle.Render("STEP 3: SIGNER"))
	err = huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("Signing Mode").
				Options(
					huh.NewOption("Keypair (local key, signs immediately)", config.SignerModeKeypair),
					huh.NewOption("Custodial (remote key, requires approval)", config.SignerModeCustodial),
				).
				Value(&signerMode),
		),
	).Run()
	if err != nil {
		return err
	}

	if signerMode == config.SignerModeCustodial {
		fmt.Print("\033[H\033[2J")
		fmt.Println(headerStyle.Render("TRADECORE CONFIG WIZARD"))
		fmt.Println(stepStyle.Render("STEP 4: CUSTODIAL WALLET"))
		err = huh.NewForm(
			huh.NewGroup(
				huh.NewInput().
					Title("Custodial Service URL").
					Value(&custodialURL).
					Validate(notEmpty("custodial URL")),
				huh.NewInput().
					Title("Wallet ID").
					Value(&custodialWalletID).
					Validate(notEmpty("wallet ID")),
				huh.NewInput().
					Title("Wallet Public Key").
					Value(&custodialPublicKey).
					Validate(notEmpty("public key")),
			),
		).Run()
		if err != nil {
			return err
		}
	}

	// server
	fmt.Print("\033[H\033[2J")
	fmt.Println(headerStyle.Render("TRADECORE CONFIG WIZARD"))
	fmt.Println(stepStyle.Render("STEP 5: SERVER"))
	err = huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Listen Address").
				Value(&listenAddr),
			huh.NewInput().
				Title("Ledger Directory").
				Description("Where the reward ledger WAL is stored").
				Value(&walDir),
			huh.NewInput().
				Title("Default Slippage (bps)").
				Value(&slippageBpsStr).
				Validate(validateBps),
		),
	).Run()
	if err != nil {
		return err
	}

	// confirmation
	fmt.Print("\033[H\033[2J")
	fmt.Println(headerStyle.Render("TRADECORE CONFIG WIZARD"))
	fmt.Println(stepStyle.Render("FINAL CONFIRMATION"))

	summary := fmt.Sprintf(
		"RPC: %s\nAggregator: %s\nPlatform fee: %s bps\nCreator share: %s bps\nSigner: %s\nListen: %s\n",
		rpcURL, aggregatorURL, platformFeeBpsStr, creatorShareBpsStr, signerMode, listenAddr,
	)
	fmt.Println(lipgloss.NewStyle().Border(lipgloss.NormalBorder()).Padding(1).Render(summary))

	err = huh.NewForm(
		huh.NewGroup(
			huh.NewConfirm().
				Title("Save Configuration?").
				Affirmative("Yes, save and start").
				Negative("No, exit").
				Value(&confirm),
		),
	).Run()
	if err != nil {
		return err
	}

	if !confirm {
		return fmt.Errorf("setup cancelled by user")
	}

	platformFeeBps, _ := strconv.ParseUint(platformFeeBpsStr, 10, 16)
	creatorShareBps, _ := strconv.ParseUint(creatorShareBpsStr, 10, 16)
	slippageBps, _ := strconv.ParseUint(slippageBpsStr, 10, 16)

	cfg := config.Config{
		RPCURL:          rpcURL,
		AggregatorURL:   aggregatorURL,
		Commitment:      commitment,
		PlatformFeeBps:  uint16(platformFeeBps),
		CreatorShareBps: uint16(creatorShareBps),
		FeeAccount:      feeAccount,
		VaultAddress:    vaultAddress,
		SignerMode:      signerMode,
		Custodial: config.Custodial{
			BaseURL:   custodialURL,
			WalletID:  custodialWalletID,
			PublicKey: custodialPublicKey,
		},
		DefaultSlippageBps: uint16(slippageBps),
		ListenAddr:         listenAddr,
		WALDir:             walDir,
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to generate yaml: %w", err)
	}

	// write to config.gen.yaml
	filename := "config.gen.yaml"
	if err := os.WriteFile(filename, data, 0644); err != nil {
		return fmt.Errorf("failed to save config file: %w", err)
	}

	fmt.Println(lipgloss.NewStyle().Foreground(special).Render(fmt.Sprintf("\n✓ Configuration saved to %s\nStarting engine...", filename)))
	time.Sleep(1500 * time.Millisecond) // small pause to read success message
	return nil
}

func notEmpty(name string) func(string) error {
	return func(s string) error {
		if s == "" {
			return fmt.Errorf("%s cannot be empty", name)
		}
		return nil
	}
}

func validateBps(s string) error {
	v, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return fmt.Errorf("must be a whole number")
	}
	if v > 10000 {
		return fmt.Errorf("must not exceed 10000")
	}
	return nil
}
