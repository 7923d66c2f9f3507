package config_test

import (
	"encoding/json"
	"math/big"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/chapool/wallet-core/internal/config"
	"github.com/chapool/wallet-core/internal/wallet/units"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func isolate(t *testing.T) {
	t.Helper()

	t.Setenv("HOME", t.TempDir())
	t.Setenv("WALLET_CONFIG", "")
}

func TestPrintServiceEnv(t *testing.T) {
	isolate(t)

	cfg := config.DefaultServiceConfigFromEnv()
	_, err := json.MarshalIndent(cfg, "", "  ")
	require.NoError(t, err)
}

func TestDefaultsAreValid(t *testing.T) {
	isolate(t)

	cfg, err := config.Load()
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, int64(1), cfg.Network.ChainID)
	assert.Equal(t, 12*time.Second, cfg.Network.BlockTime)
	assert.Equal(t, 3, cfg.RPC.RetryAttempts)
	assert.Greater(t, cfg.RPC.ReceiptTimeout, cfg.RPC.ReadTimeout)
	assert.Equal(t, cfg.RPC.ReceiptTimeout, cfg.RPCOptions().ReceiptTimeout)
	assert.Equal(t, config.StateBackendFile, cfg.State.Backend)

	fees, err := cfg.FeeConfig()
	require.NoError(t, err)
	assert.Equal(t, units.Gwei(1), fees.MinPriorityFee)
	assert.Equal(t, uint64(10), fees.HistoryBlocks)

	walletCfg, err := cfg.WalletConfig()
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(1), walletCfg.ChainID)
	assert.Equal(t, 2*time.Minute, walletCfg.ConfirmTimeout)

	level, err := cfg.Logger.ZerologLevel()
	require.NoError(t, err)
	assert.Equal(t, zerolog.InfoLevel, level)
}

func TestEnvOverridesDefaults(t *testing.T) {
	isolate(t)
	t.Setenv("WALLET_NETWORK_CHAIN_ID", "11155111")
	t.Setenv("WALLET_NETWORK_RPC_URL", "https://sepolia.example.org")
	t.Setenv("WALLET_SEND_CONFIRM_TIMEOUT", "30s")
	t.Setenv("WALLET_FEES_MIN_PRIORITY_FEE_GWEI", "0.5")
	t.Setenv("WALLET_STATE_BACKEND", "memory")
	t.Setenv("WALLET_RPC_RECEIPT_TIMEOUT", "45s")

	cfg, err := config.Load()
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, int64(11155111), cfg.Network.ChainID)
	assert.Equal(t, "https://sepolia.example.org", cfg.Endpoint().RPCURL)
	assert.Equal(t, 30*time.Second, cfg.Send.ConfirmTimeout)
	assert.Equal(t, config.StateBackendMemory, cfg.State.Backend)
	assert.Equal(t, 45*time.Second, cfg.RPCOptions().ReceiptTimeout)

	fees, err := cfg.FeeConfig()
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(500_000_000), fees.MinPriorityFee)
}

func TestConfigFile(t *testing.T) {
	isolate(t)

	path := filepath.Join(t.TempDir(), "wallet.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
network:
  chain_id: 137
  native_symbol: POL
  legacy_fees: true
logger:
  level: debug
`), 0o600))
	t.Setenv("WALLET_CONFIG", path)

	cfg, err := config.Load()
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, int64(137), cfg.Network.ChainID)
	assert.Equal(t, "POL", cfg.Network.NativeSymbol)
	assert.True(t, cfg.Endpoint().LegacyFees)
	assert.Equal(t, "debug", cfg.Logger.Level)

	t.Setenv("WALLET_CONFIG", filepath.Join(t.TempDir(), "missing.yaml"))
	_, err = config.Load()
	require.Error(t, err)
}

func TestValidateRejects(t *testing.T) {
	isolate(t)

	tests := map[string]func(*config.Service){
		"rpc url":         func(c *config.Service) { c.Network.RPCURL = "127.0.0.1:8545" },
		"chain id":        func(c *config.Service) { c.Network.ChainID = 0 },
		"retry attempts":  func(c *config.Service) { c.RPC.RetryAttempts = 0 },
		"receipt timeout": func(c *config.Service) { c.RPC.ReceiptTimeout = time.Second },
		"min fee":         func(c *config.Service) { c.Fees.MinPriorityFeeGwei = "-1" },
		"gas ceiling":     func(c *config.Service) { c.Fees.GasLimitCeiling = 20_000 },
		"poll interval":   func(c *config.Service) { c.Send.PollInterval = time.Hour },
		"entropy":         func(c *config.Service) { c.Vault.EntropyBits = 100 },
		"state backend":   func(c *config.Service) { c.State.Backend = "postgres" },
		"redis addr": func(c *config.Service) {
			c.State.Backend = config.StateBackendRedis
			c.State.Redis.Addr = ""
		},
		"log level":       func(c *config.Service) { c.Logger.Level = "loud" },
		"metrics address": func(c *config.Service) {
			c.Metrics.Enabled = true
			c.Metrics.ListenAddress = ""
		},
	}

	for name, mutate := range tests {
		t.Run(name, func(t *testing.T) {
			cfg, err := config.Load()
			require.NoError(t, err)

			mutate(&cfg)
			require.Error(t, cfg.Validate())
		})
	}
}

func TestScryptParams(t *testing.T) {
	isolate(t)

	cfg, err := config.Load()
	require.NoError(t, err)
	assert.Equal(t, 262144, cfg.ScryptParams().N)

	cfg.Vault.LightScrypt = true
	assert.Equal(t, 4096, cfg.ScryptParams().N)
}
