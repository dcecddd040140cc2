package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/holiman/uint256"
	"gopkg.in/yaml.v3"

	"github.com/simaogato/cellar-backend/internal/domain"
)

const (
	DefaultPlatformFeeBps    = 100
	DefaultPerformanceFeeBps = 500
	DefaultMaxLiquidity      = "5000000000000000000000000" // 5,000,000e18
	DefaultMaxDepositPerUser = "50000000000000000000000"   // 50,000e18
	DefaultRewardCooldown    = 10 * 24 * time.Hour

	// Unrestricted disables a liquidity or per-user cap
	Unrestricted = "none"
)

// Config holds all application configuration.
type Config struct {
	Server struct {
		GRPCAddr    string `yaml:"grpc_addr"`
		MetricsAddr string `yaml:"metrics_addr"`
		APIToken    string `yaml:"api_token"`
	} `yaml:"server"`
	Database struct {
		ConnStr    string `yaml:"conn_str"`
		SQLitePath string `yaml:"sqlite_path"`
	} `yaml:"database"`
	Vault struct {
		Address           string   `yaml:"address"`
		Owner             string   `yaml:"owner"`
		FeeCollector      string   `yaml:"fee_collector"`
		Asset             string   `yaml:"asset"`
		InputAssets       []string `yaml:"input_assets"`
		PlatformFeeBps    *uint64  `yaml:"platform_fee_bps"`
		PerformanceFeeBps *uint64  `yaml:"performance_fee_bps"`
		MaxLiquidity      string   `yaml:"max_liquidity"`
		MaxDepositPerUser string   `yaml:"max_deposit_per_user"`
	} `yaml:"vault"`
	Strategy struct {
		RewardAsset    string        `yaml:"reward_asset"`
		RewardSwapPath []string      `yaml:"reward_swap_path"`
		Cooldown       time.Duration `yaml:"cooldown"`
	} `yaml:"strategy"`
	Schedule struct {
		FeeAccrualCron string `yaml:"fee_accrual_cron"`
		SnapshotCron   string `yaml:"snapshot_cron"`
	} `yaml:"schedule"`
	Genesis []Balance `yaml:"genesis"`
	Log     struct {
		Env        string `yaml:"env"`
		File       string `yaml:"file"`
		MaxSizeMB  int    `yaml:"max_size_mb"`
		MaxBackups int    `yaml:"max_backups"`
		MaxAgeDays int    `yaml:"max_age_days"`
	} `yaml:"log"`
}

// Balance is an initial token balance credited to the in-memory bank
type Balance struct {
	Holder string `yaml:"holder"`
	Asset  string `yaml:"asset"`
	Amount string `yaml:"amount"`
}

// Load reads config from a YAML file, then applies environment variable overrides.
func Load(path string) (*Config, error) {
	cfg := &Config{}

	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if len(data) > 0 {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	// Environment variable overrides
	if v := os.Getenv("CELLAR_DB_CONN_STR"); v != "" {
		cfg.Database.ConnStr = v
	}
	if v := os.Getenv("CELLAR_SQLITE_PATH"); v != "" {
		cfg.Database.SQLitePath = v
	}
	if v := os.Getenv("CELLAR_API_TOKEN"); v != "" {
		cfg.Server.APIToken = v
	}
	if v := os.Getenv("CELLAR_GRPC_ADDR"); v != "" {
		cfg.Server.GRPCAddr = v
	}
	if v := os.Getenv("CELLAR_METRICS_ADDR"); v != "" {
		cfg.Server.MetricsAddr = v
	}
	if v := os.Getenv("CELLAR_PLATFORM_FEE_BPS"); v != "" {
		bps, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("parse CELLAR_PLATFORM_FEE_BPS: %w", err)
		}
		cfg.Vault.PlatformFeeBps = &bps
	}
	if v := os.Getenv("CELLAR_PERFORMANCE_FEE_BPS"); v != "" {
		bps, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("parse CELLAR_PERFORMANCE_FEE_BPS: %w", err)
		}
		cfg.Vault.PerformanceFeeBps = &bps
	}
	if v := os.Getenv("CELLAR_LOG_FILE"); v != "" {
		cfg.Log.File = v
	}
	if v := os.Getenv("CELLAR_ENV"); v != "" {
		cfg.Log.Env = v
	}

	// Defaults
	if cfg.Server.GRPCAddr == "" {
		cfg.Server.GRPCAddr = ":50051"
	}
	if cfg.Server.MetricsAddr == "" {
		cfg.Server.MetricsAddr = ":9090"
	}
	if cfg.Database.ConnStr == "" && cfg.Database.SQLitePath == "" {
		cfg.Database.SQLitePath = "data/cellar.db"
	}
	if cfg.Vault.Address == "" {
		cfg.Vault.Address = "cellar"
	}
	if cfg.Vault.Asset == "" {
		cfg.Vault.Asset = "USDC"
	}
	if cfg.Vault.PlatformFeeBps == nil {
		bps := uint64(DefaultPlatformFeeBps)
		cfg.Vault.PlatformFeeBps = &bps
	}
	if cfg.Vault.PerformanceFeeBps == nil {
		bps := uint64(DefaultPerformanceFeeBps)
		cfg.Vault.PerformanceFeeBps = &bps
	}
	if cfg.Vault.MaxLiquidity == "" {
		cfg.Vault.MaxLiquidity = DefaultMaxLiquidity
	}
	if cfg.Vault.MaxDepositPerUser == "" {
		cfg.Vault.MaxDepositPerUser = DefaultMaxDepositPerUser
	}
	if cfg.Strategy.RewardAsset == "" {
		cfg.Strategy.RewardAsset = "AAVE"
	}
	if cfg.Strategy.Cooldown == 0 {
		cfg.Strategy.Cooldown = DefaultRewardCooldown
	}
	if cfg.Schedule.FeeAccrualCron == "" {
		cfg.Schedule.FeeAccrualCron = "0 0 0 * * *"
	}
	if cfg.Schedule.SnapshotCron == "" {
		cfg.Schedule.SnapshotCron = "0 */15 * * * *"
	}
	if cfg.Log.Env == "" {
		cfg.Log.Env = "development"
	}

	return cfg, nil
}

// Validate checks that all required fields are set.
func (c *Config) Validate() error {
	if c.Vault.Owner == "" {
		return fmt.Errorf("vault.owner is required")
	}
	if c.Vault.FeeCollector == "" {
		return fmt.Errorf("vault.fee_collector is required")
	}
	if c.Vault.PlatformFeeBps != nil && *c.Vault.PlatformFeeBps > domain.BasisPoints {
		return fmt.Errorf("vault.platform_fee_bps must not exceed %d", domain.BasisPoints)
	}
	if c.Vault.PerformanceFeeBps != nil && *c.Vault.PerformanceFeeBps > domain.BasisPoints {
		return fmt.Errorf("vault.performance_fee_bps must not exceed %d", domain.BasisPoints)
	}
	if _, err := parseCap(c.Vault.MaxLiquidity); err != nil {
		return fmt.Errorf("vault.max_liquidity: %w", err)
	}
	if _, err := parseCap(c.Vault.MaxDepositPerUser); err != nil {
		return fmt.Errorf("vault.max_deposit_per_user: %w", err)
	}
	for i, b := range c.Genesis {
		if b.Holder == "" || b.Asset == "" {
			return fmt.Errorf("genesis[%d]: holder and asset are required", i)
		}
		if _, err := domain.ParseAmount(b.Amount); err != nil {
			return fmt.Errorf("genesis[%d]: %w", i, err)
		}
	}
	return nil
}

// VaultParams converts the vault section into domain parameters
func (c *Config) VaultParams(now time.Time) (domain.VaultParams, error) {
	maxLiquidity, err := parseCap(c.Vault.MaxLiquidity)
	if err != nil {
		return domain.VaultParams{}, fmt.Errorf("vault.max_liquidity: %w", err)
	}
	maxDeposit, err := parseCap(c.Vault.MaxDepositPerUser)
	if err != nil {
		return domain.VaultParams{}, fmt.Errorf("vault.max_deposit_per_user: %w", err)
	}

	p := domain.VaultParams{
		Address:           domain.Address(c.Vault.Address),
		Owner:             domain.Address(c.Vault.Owner),
		FeeCollector:      domain.Address(c.Vault.FeeCollector),
		Asset:             domain.Asset(c.Vault.Asset),
		PlatformFeeBps:    valueOr(c.Vault.PlatformFeeBps, DefaultPlatformFeeBps),
		PerformanceFeeBps: valueOr(c.Vault.PerformanceFeeBps, DefaultPerformanceFeeBps),
		MaxLiquidity:      maxLiquidity,
		MaxDepositPerUser: maxDeposit,
		CreatedAt:         now,
	}
	for _, a := range c.Vault.InputAssets {
		p.InputAssets = append(p.InputAssets, domain.Asset(a))
	}
	return p, p.Validate()
}

// RewardSwapPath returns the intermediate hops used when reinvesting rewards
func (c *Config) RewardSwapPath() []domain.Asset {
	path := make([]domain.Asset, 0, len(c.Strategy.RewardSwapPath))
	for _, a := range c.Strategy.RewardSwapPath {
		path = append(path, domain.Asset(a))
	}
	return path
}

func parseCap(s string) (*uint256.Int, error) {
	if s == "" || strings.EqualFold(s, Unrestricted) {
		return nil, nil
	}
	return domain.ParseAmount(s)
}

func valueOr(v *uint64, def uint64) uint64 {
	if v == nil {
		return def
	}
	return *v
}
