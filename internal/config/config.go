// Package config loads the client and mock backend settings from an optional
// file, .env files and ULTRAPAY_* environment variables.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"math/big"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/zeromicro/go-zero/core/conf"
	"github.com/zeromicro/go-zero/core/logx"

	"github.com/ultravioletadao/ultrapayx402/go/mechanisms/evm"
)

type Config struct {
	// ApiUrl is the generation backend
	ApiUrl  string `json:",default=http://localhost:3000"`
	UseMock bool   `json:",default=false"`

	X402 struct {
		FacilitatorUrl string `json:",default=https://facilitator.ultravioletadao.xyz/"`
		// WalletAddress receives payments on the mock backend
		WalletAddress string `json:",default=0x34033041a5944B8F10f8E4D8496Bfb84f1A293A8"`
		Network       string `json:",default=base-sepolia"`
		// MaxPayment is the per-call ceiling in USDC, e.g. "1.5"
		MaxPayment string `json:",default=1.5"`
	}

	Wallet struct {
		PrivateKey string `json:",optional"`
		RpcUrl     string `json:",optional"`
	}

	Mock struct {
		ListenOn string `json:",default=:3000"`
	}

	Timeout time.Duration `json:",default=60s"`
	Log     logx.LogConf
}

// Load reads path (JSON, YAML or TOML) when set, then the env files, then the
// environment. Missing env files are skipped; variables already set win over them.
func Load(path string, envFiles ...string) (Config, error) {
	var c Config

	if err := godotenv.Load(envFiles...); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return c, fmt.Errorf("failed to load env file: %w", err)
	}

	var err error
	if path == "" {
		err = conf.LoadFromJsonBytes([]byte("{}"), &c)
	} else {
		err = conf.Load(path, &c, conf.UseEnv())
	}
	if err != nil {
		return c, fmt.Errorf("failed to load config: %w", err)
	}

	if err := c.applyEnv(); err != nil {
		return c, err
	}
	if err := c.Validate(); err != nil {
		return c, err
	}
	return c, nil
}

// applyEnv overlays the ULTRAPAY_* variables that are set and non-empty.
// os.LookupEnv is read on every call so later changes to the environment are seen.
func (c *Config) applyEnv() error {
	strs := map[string]*string{
		"ULTRAPAY_API_URL":         &c.ApiUrl,
		"ULTRAPAY_FACILITATOR_URL": &c.X402.FacilitatorUrl,
		"ULTRAPAY_WALLET_ADDRESS":  &c.X402.WalletAddress,
		"ULTRAPAY_X402_NETWORK":    &c.X402.Network,
		"ULTRAPAY_MAX_PAYMENT":     &c.X402.MaxPayment,
		"ULTRAPAY_PRIVATE_KEY":     &c.Wallet.PrivateKey,
		"ULTRAPAY_RPC_URL":         &c.Wallet.RpcUrl,
		"ULTRAPAY_MOCK_LISTEN":     &c.Mock.ListenOn,
	}
	for key, field := range strs {
		if v, ok := os.LookupEnv(key); ok && v != "" {
			*field = v
		}
	}

	if v, ok := os.LookupEnv("ULTRAPAY_USE_MOCK"); ok && v != "" {
		useMock, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("config: invalid ULTRAPAY_USE_MOCK %q: %w", v, err)
		}
		c.UseMock = useMock
	}
	if v, ok := os.LookupEnv("ULTRAPAY_TIMEOUT"); ok && v != "" {
		timeout, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("config: invalid ULTRAPAY_TIMEOUT %q: %w", v, err)
		}
		c.Timeout = timeout
	}
	return nil
}

// MustLoad is Load that exits on error
func MustLoad(path string, envFiles ...string) Config {
	c, err := Load(path, envFiles...)
	if err != nil {
		logx.Must(err)
	}
	return c
}

// Validate reports settings that would make every payment fail
func (c Config) Validate() error {
	if strings.TrimSpace(c.ApiUrl) == "" {
		return errors.New("config: ApiUrl is required")
	}
	if !evm.IsSupported(c.X402.Network) {
		return fmt.Errorf("config: unsupported network %q (supported: %s)",
			c.X402.Network, strings.Join(evm.SupportedNetworks(), ", "))
	}
	if !evm.IsValidAddress(c.X402.WalletAddress) {
		return fmt.Errorf("config: invalid wallet address %q", c.X402.WalletAddress)
	}
	if _, err := c.MaxPaymentAmount(); err != nil {
		return err
	}
	return nil
}

// MaxPaymentAmount returns the per-call ceiling in atomic USDC units.
// An empty value disables the ceiling and returns nil.
func (c Config) MaxPaymentAmount() (*big.Int, error) {
	if strings.TrimSpace(c.X402.MaxPayment) == "" {
		return nil, nil
	}
	amount, err := evm.ParseAmount(c.X402.MaxPayment, evm.DefaultDecimals)
	if err != nil {
		return nil, fmt.Errorf("config: invalid MaxPayment %q: %w", c.X402.MaxPayment, err)
	}
	return amount, nil
}
