// Package config loads the settings of the wallet from defaults, an optional
// wallet.yaml and WALLET_* environment variables.
package config

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/chapool/wallet-core/internal/wallet"
	"github.com/chapool/wallet-core/internal/wallet/chain"
	"github.com/chapool/wallet-core/internal/wallet/fee"
	"github.com/chapool/wallet-core/internal/wallet/keystore"
	"github.com/chapool/wallet-core/internal/wallet/rpc"
	"github.com/chapool/wallet-core/internal/wallet/units"
	"github.com/chapool/wallet-core/internal/wallet/vault"
	"github.com/jellydator/validation"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/spf13/viper"
)

const (
	EnvPrefix      = "WALLET"
	configFileName = "wallet"

	StateBackendMemory = "memory"
	StateBackendFile   = "file"
	StateBackendRedis  = "redis"
)

type Network struct {
	ChainID      int64         `mapstructure:"chain_id"`
	RPCURL       string        `mapstructure:"rpc_url"`
	NativeSymbol string        `mapstructure:"native_symbol"`
	BlockTime    time.Duration `mapstructure:"block_time"`
	LegacyFees   bool          `mapstructure:"legacy_fees"`
}

type RPC struct {
	ReadTimeout    time.Duration `mapstructure:"read_timeout"`
	WriteTimeout   time.Duration `mapstructure:"write_timeout"`
	ReceiptTimeout time.Duration `mapstructure:"receipt_timeout"`
	RetryAttempts  int           `mapstructure:"retry_attempts"`
	RetryBaseDelay time.Duration `mapstructure:"retry_base_delay"`
	RetryMaxDelay  time.Duration `mapstructure:"retry_max_delay"`
	// VerifyChainID compares eth_chainId with Network.ChainID on startup.
	VerifyChainID bool `mapstructure:"verify_chain_id"`
}

type Fees struct {
	HistoryBlocks uint64 `mapstructure:"history_blocks"`
	// MinPriorityFeeGwei is a decimal amount of gwei, e.g. "1" or "0.5".
	MinPriorityFeeGwei string `mapstructure:"min_priority_fee_gwei"`
	GasLimitCeiling    uint64 `mapstructure:"gas_limit_ceiling"`
}

type Send struct {
	ConfirmTimeout time.Duration `mapstructure:"confirm_timeout"`
	PollInterval   time.Duration `mapstructure:"poll_interval"`
	MaxDataBytes   int           `mapstructure:"max_data_bytes"`
}

type Vault struct {
	Dir          string `mapstructure:"dir"`
	Password     string `mapstructure:"password"`
	AccountIndex uint32 `mapstructure:"account_index"`
	EntropyBits  int    `mapstructure:"entropy_bits"`
	// LightScrypt trades keystore strength for speed. Development only.
	LightScrypt bool `mapstructure:"light_scrypt"`
}

type Security struct {
	TokenTTL   time.Duration `mapstructure:"token_ttl"`
	BcryptCost int           `mapstructure:"bcrypt_cost"`
}

type Redis struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	Prefix   string `mapstructure:"prefix"`
}

type State struct {
	Backend  string `mapstructure:"backend"`
	FilePath string `mapstructure:"file_path"`
	Redis    Redis  `mapstructure:"redis"`
}

type Logger struct {
	Level              string `mapstructure:"level"`
	PrettyPrintConsole bool   `mapstructure:"pretty_print_console"`
}

// ZerologLevel parses Level, e.g. "debug" or "warn".
func (l Logger) ZerologLevel() (zerolog.Level, error) {
	level, err := zerolog.ParseLevel(l.Level)
	if err != nil {
		return zerolog.NoLevel, errors.Wrapf(err, "invalid log level %q", l.Level)
	}

	return level, nil
}

type Metrics struct {
	Enabled       bool   `mapstructure:"enabled"`
	ListenAddress string `mapstructure:"listen_address"`
}

// Service is the complete configuration of the wallet.
type Service struct {
	Network  Network  `mapstructure:"network"`
	RPC      RPC      `mapstructure:"rpc"`
	Fees     Fees     `mapstructure:"fees"`
	Send     Send     `mapstructure:"send"`
	Vault    Vault    `mapstructure:"vault"`
	Security Security `mapstructure:"security"`
	State    State    `mapstructure:"state"`
	Logger   Logger   `mapstructure:"logger"`
	Metrics  Metrics  `mapstructure:"metrics"`
}

func setDefaults(v *viper.Viper) {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	dataDir := filepath.Join(home, ".wallet-core")

	v.SetDefault("network.chain_id", 1)
	v.SetDefault("network.rpc_url", "http://127.0.0.1:8545")
	v.SetDefault("network.native_symbol", "ETH")
	v.SetDefault("network.block_time", 12*time.Second)
	v.SetDefault("network.legacy_fees", false)

	v.SetDefault("rpc.read_timeout", 10*time.Second)
	v.SetDefault("rpc.write_timeout", 30*time.Second)
	v.SetDefault("rpc.receipt_timeout", 20*time.Second)
	v.SetDefault("rpc.retry_attempts", 3)
	v.SetDefault("rpc.retry_base_delay", 200*time.Millisecond)
	v.SetDefault("rpc.retry_max_delay", 2*time.Second)
	v.SetDefault("rpc.verify_chain_id", true)

	v.SetDefault("fees.history_blocks", 10)
	v.SetDefault("fees.min_priority_fee_gwei", "1")
	v.SetDefault("fees.gas_limit_ceiling", 500_000)

	v.SetDefault("send.confirm_timeout", 2*time.Minute)
	v.SetDefault("send.poll_interval", 2*time.Second)
	v.SetDefault("send.max_data_bytes", 128*1024)

	v.SetDefault("vault.dir", filepath.Join(dataDir, "keystore"))
	v.SetDefault("vault.password", "")
	v.SetDefault("vault.account_index", 0)
	v.SetDefault("vault.entropy_bits", 128)
	v.SetDefault("vault.light_scrypt", false)

	v.SetDefault("security.token_ttl", 5*time.Minute)
	v.SetDefault("security.bcrypt_cost", 0)

	v.SetDefault("state.backend", StateBackendFile)
	v.SetDefault("state.file_path", filepath.Join(dataDir, "state.json"))
	v.SetDefault("state.redis.addr", "127.0.0.1:6379")
	v.SetDefault("state.redis.password", "")
	v.SetDefault("state.redis.db", 0)
	v.SetDefault("state.redis.prefix", "wallet-core:")

	v.SetDefault("logger.level", zerolog.InfoLevel.String())
	v.SetDefault("logger.pretty_print_console", false)

	v.SetDefault("metrics.enabled", false)
	v.SetDefault("metrics.listen_address", "127.0.0.1:9090")
}

// Load reads the configuration. A wallet.yaml in the working directory or in
// ~/.wallet-core is optional; WALLET_CONFIG names an explicit file.
// Environment variables override both, e.g. WALLET_NETWORK_RPC_URL.
func Load() (Service, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path := os.Getenv(EnvPrefix + "_CONFIG"); path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName(configFileName)
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".wallet-core"))
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return Service{}, errors.Wrap(err, "failed to read config file")
		}
	}

	var cfg Service
	if err := v.Unmarshal(&cfg); err != nil {
		return Service{}, errors.Wrap(err, "failed to decode config")
	}

	return cfg, nil
}

// DefaultServiceConfigFromEnv loads the configuration and panics when it is
// unreadable. Used by commands that cannot run without it.
func DefaultServiceConfigFromEnv() Service {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}

	return cfg
}

func (c Service) Validate() error {
	if err := c.Endpoint().Validate(); err != nil {
		return errors.Wrap(err, "network")
	}

	if err := validation.ValidateStruct(&c.RPC,
		validation.Field(&c.RPC.ReadTimeout, validation.Required),
		validation.Field(&c.RPC.WriteTimeout, validation.Required),
		validation.Field(&c.RPC.ReceiptTimeout, validation.Required, validation.Min(c.RPC.ReadTimeout)),
		validation.Field(&c.RPC.RetryAttempts, validation.Required, validation.Min(1)),
		validation.Field(&c.RPC.RetryMaxDelay, validation.Min(c.RPC.RetryBaseDelay)),
	); err != nil {
		return errors.Wrap(err, "rpc")
	}

	if err := validation.ValidateStruct(&c.Fees,
		validation.Field(&c.Fees.HistoryBlocks, validation.Required, validation.Max(uint64(1024))),
		validation.Field(&c.Fees.MinPriorityFeeGwei, validation.Required, validation.By(isGwei)),
		validation.Field(&c.Fees.GasLimitCeiling, validation.Required, validation.Min(uint64(21_000))),
	); err != nil {
		return errors.Wrap(err, "fees")
	}

	if err := validation.ValidateStruct(&c.Send,
		validation.Field(&c.Send.ConfirmTimeout, validation.Required),
		validation.Field(&c.Send.PollInterval, validation.Required, validation.Max(c.Send.ConfirmTimeout)),
		validation.Field(&c.Send.MaxDataBytes, validation.Required, validation.Min(1)),
	); err != nil {
		return errors.Wrap(err, "send")
	}

	if err := validation.ValidateStruct(&c.Vault,
		validation.Field(&c.Vault.Dir, validation.Required),
		validation.Field(&c.Vault.EntropyBits, validation.In(128, 160, 192, 224, 256)),
	); err != nil {
		return errors.Wrap(err, "vault")
	}

	if err := validation.ValidateStruct(&c.Security,
		validation.Field(&c.Security.TokenTTL, validation.Required),
		validation.Field(&c.Security.BcryptCost, validation.Max(31)),
	); err != nil {
		return errors.Wrap(err, "security")
	}

	if err := validation.ValidateStruct(&c.State,
		validation.Field(&c.State.Backend, validation.Required, validation.In(StateBackendMemory, StateBackendFile, StateBackendRedis)),
		validation.Field(&c.State.FilePath, validation.When(c.State.Backend == StateBackendFile, validation.Required)),
	); err != nil {
		return errors.Wrap(err, "state")
	}

	if c.State.Backend == StateBackendRedis {
		if err := validation.ValidateStruct(&c.State.Redis,
			validation.Field(&c.State.Redis.Addr, validation.Required),
		); err != nil {
			return errors.Wrap(err, "state.redis")
		}
	}

	if _, err := c.Logger.ZerologLevel(); err != nil {
		return errors.Wrap(err, "logger")
	}

	if err := validation.ValidateStruct(&c.Metrics,
		validation.Field(&c.Metrics.ListenAddress, validation.When(c.Metrics.Enabled, validation.Required)),
	); err != nil {
		return errors.Wrap(err, "metrics")
	}

	return nil
}

func (c Service) Endpoint() chain.Endpoint {
	return chain.Endpoint{
		ChainID:      c.Network.ChainID,
		RPCURL:       c.Network.RPCURL,
		NativeSymbol: c.Network.NativeSymbol,
		BlockTime:    c.Network.BlockTime,
		LegacyFees:   c.Network.LegacyFees,
	}
}

func (c Service) RPCOptions() rpc.Options {
	return rpc.Options{
		ReadTimeout:    c.RPC.ReadTimeout,
		WriteTimeout:   c.RPC.WriteTimeout,
		ReceiptTimeout: c.RPC.ReceiptTimeout,
	}
}

func (c Service) RetryPolicy() rpc.Policy {
	return rpc.Policy{
		Attempts:  c.RPC.RetryAttempts,
		BaseDelay: c.RPC.RetryBaseDelay,
		MaxDelay:  c.RPC.RetryMaxDelay,
	}
}

func (c Service) FeeConfig() (fee.Config, error) {
	minPriorityFee, err := units.ParseGwei(c.Fees.MinPriorityFeeGwei)
	if err != nil {
		return fee.Config{}, errors.Wrap(err, "fees.min_priority_fee_gwei")
	}

	return fee.Config{
		HistoryBlocks:   c.Fees.HistoryBlocks,
		MinPriorityFee:  minPriorityFee,
		GasLimitCeiling: c.Fees.GasLimitCeiling,
		BlockTime:       c.Network.BlockTime,
	}, nil
}

func (c Service) WalletConfig() (wallet.Config, error) {
	fees, err := c.FeeConfig()
	if err != nil {
		return wallet.Config{}, err
	}

	return wallet.Config{
		ChainID:        c.Endpoint().ChainIDBig(),
		Fees:           fees,
		MaxDataBytes:   c.Send.MaxDataBytes,
		Legacy:         c.Network.LegacyFees,
		ConfirmTimeout: c.Send.ConfirmTimeout,
		PollInterval:   c.Send.PollInterval,
	}, nil
}

// VaultConfig needs the password, which may come from a prompt instead of
// the configuration.
func (c Service) VaultConfig(password string) vault.Config {
	return vault.Config{
		Password:     password,
		AccountIndex: c.Vault.AccountIndex,
		EntropyBits:  c.Vault.EntropyBits,
	}
}

func (c Service) ScryptParams() keystore.ScryptParams {
	if c.Vault.LightScrypt {
		return keystore.LightScryptParams()
	}

	return keystore.DefaultScryptParams()
}

func isGwei(value any) error {
	s, _ := value.(string)
	if _, err := units.ParseGwei(s); err != nil {
		return err
	}

	return nil
}
