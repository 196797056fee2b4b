package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoad_AppliesDefaults(t *testing.T) {
	path := writeConfig(t, `
rpc_url: https://rpc.example
aggregator_url: https://agg.example
fee_account: FeeAccount111
platform_fee_bps: 100
creator_share_bps: 5000
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "confirmed", cfg.Commitment)
	require.Equal(t, ":8080", cfg.ListenAddr)
	require.Equal(t, "./wal/rewards", cfg.WALDir)
	require.Equal(t, 90*time.Second, cfg.ConfirmTimeout)
	require.Equal(t, uint16(50), cfg.DefaultSlippageBps)
	require.Equal(t, SignerModeKeypair, cfg.SignerMode)
}

func TestLoad_RequiredFields(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"missing rpc", "aggregator_url: a\nfee_account: f\n"},
		{"missing aggregator", "rpc_url: r\nfee_account: f\n"},
		{"missing fee account", "rpc_url: r\naggregator_url: a\n"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tc.yaml))
			require.Error(t, err)
		})
	}
}

func TestLoad_RejectsExcessiveBps(t *testing.T) {
	path := writeConfig(t, `
rpc_url: r
aggregator_url: a
fee_account: f
platform_fee_bps: 10001
`)

	_, err := Load(path)
	require.Error(t, err)
}

func TestLoad_CustodialRequiresSettings(t *testing.T) {
	path := writeConfig(t, `
rpc_url: r
aggregator_url: a
fee_account: f
signer_mode: custodial
`)

	_, err := Load(path)
	require.Error(t, err)
}

func TestLoad_CustodialComplete(t *testing.T) {
	path := writeConfig(t, `
rpc_url: r
aggregator_url: a
fee_account: f
signer_mode: custodial
custodial:
  base_url: https://custody.example
  wallet_id: w1
  public_key: Wallet111
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "w1", cfg.Custodial.WalletID)
}

func TestLoad_UnknownSignerMode(t *testing.T) {
	path := writeConfig(t, `
rpc_url: r
aggregator_url: a
fee_account: f
signer_mode: hardware
`)

	_, err := Load(path)
	require.Error(t, err)
}
