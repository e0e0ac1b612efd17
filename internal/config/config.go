// Package config loads the YAML configuration.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"amm-stats/internal/aggregation"
	"amm-stats/internal/domain"
	"amm-stats/internal/interval"
	"amm-stats/internal/logging"
)

// Configuration errors, returned before any I/O.
var (
	ErrUnknownNetwork = errors.New("unknown network")
	ErrMissingRPCURL  = errors.New("missing rpc url")
)

// Network families.
const (
	FamilySVM      = "svm"      // pool existence checked over JSON-RPC
	FamilySnapshot = "snapshot" // pools taken from the snapshot store
)

// Storage backends.
const (
	BackendMemory   = "memory"
	BackendJSONFile = "jsonfile"
	BackendPostgres = "postgres"
)

type Config struct {
	Logging  logging.Config  `yaml:"logging"`
	Storage  StorageConfig   `yaml:"storage"`
	Redis    RedisConfig     `yaml:"redis"`
	Prices   PricesConfig    `yaml:"prices"`
	NATS     NATSConfig      `yaml:"nats"`
	Server   ServerConfig    `yaml:"server"`
	Networks []NetworkConfig `yaml:"networks"`
}

type StorageConfig struct {
	Backend       string `yaml:"backend"` // memory|jsonfile|postgres
	DataDir       string `yaml:"data_dir"`
	PostgresDSN   string `yaml:"postgres_dsn"`
	ClickHouseDSN string `yaml:"clickhouse_dsn"` // optional; interval plots go to ClickHouse when set
}

type RedisConfig struct {
	Addr     string        `yaml:"addr"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	Prefix   string        `yaml:"prefix"`
	TTL      time.Duration `yaml:"ttl"`
}

type PricesConfig struct {
	Endpoint  string        `yaml:"endpoint"`
	ChunkSize int           `yaml:"chunk_size"`
	Workers   int           `yaml:"workers"`
	Timeout   time.Duration `yaml:"timeout"`
}

type NATSConfig struct {
	URL           string `yaml:"url"`
	SubjectPrefix string `yaml:"subject_prefix"`
}

type ServerConfig struct {
	Addr            string        `yaml:"addr"`
	MetricsAddr     string        `yaml:"metrics_addr"`
	Schedule        string        `yaml:"schedule"` // cron spec with seconds; empty disables
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// StaticPool is a pool tracked before any snapshot is recorded for it.
type StaticPool struct {
	Address string  `yaml:"address"`
	TokenX  string  `yaml:"token_x"`
	TokenY  string  `yaml:"token_y"`
	Fee     float64 `yaml:"fee"`
}

type NetworkConfig struct {
	Name            string         `yaml:"name"`
	Family          string         `yaml:"family"`
	RPCURLEnv       string         `yaml:"rpc_url_env"`
	ProgramID       string         `yaml:"program_id"`
	Commitment      string         `yaml:"commitment"`
	Timezone        string         `yaml:"timezone"`
	Resolutions     []string       `yaml:"resolutions"`
	HasLocked       bool           `yaml:"has_locked"`
	OmitFeeTiers    []float64      `yaml:"omit_fee_tiers"`
	TrailingWindows map[string]int `yaml:"trailing_windows"`
	Pools           []StaticPool   `yaml:"pools"`

	// RPCURL is resolved from RPCURLEnv by Network.
	RPCURL string `yaml:"-"`
}

// Load reads the YAML file at path, after loading .env files when present,
// and applies defaults.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal([]byte(os.ExpandEnv(string(b))), &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	cfg.applyDefaults()

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Storage.Backend == "" {
		c.Storage.Backend = BackendJSONFile
	}
	if c.Storage.DataDir == "" {
		c.Storage.DataDir = "data"
	}
	if c.Redis.Prefix == "" {
		c.Redis.Prefix = "amm-stats"
	}
	if c.Redis.TTL == 0 {
		c.Redis.TTL = 24 * time.Hour
	}
	if c.Prices.ChunkSize <= 0 {
		c.Prices.ChunkSize = 100
	}
	if c.Prices.Workers <= 0 {
		c.Prices.Workers = 4
	}
	if c.Prices.Timeout == 0 {
		c.Prices.Timeout = 10 * time.Second
	}
	if c.NATS.SubjectPrefix == "" {
		c.NATS.SubjectPrefix = "poolstats"
	}
	if c.Server.Addr == "" {
		c.Server.Addr = ":8080"
	}
	if c.Server.ShutdownTimeout == 0 {
		c.Server.ShutdownTimeout = 10 * time.Second
	}
	for i := range c.Networks {
		if c.Networks[i].Family == "" {
			c.Networks[i].Family = FamilySnapshot
		}
	}
}

func (c *Config) validate() error {
	switch c.Storage.Backend {
	case BackendMemory, BackendJSONFile:
	case BackendPostgres:
		if c.Storage.PostgresDSN == "" {
			return fmt.Errorf("storage.postgres_dsn is required for the postgres backend")
		}
	default:
		return fmt.Errorf("unknown storage backend %q", c.Storage.Backend)
	}

	seen := make(map[string]bool)
	for _, n := range c.Networks {
		if n.Name == "" {
			return fmt.Errorf("network without name")
		}
		if seen[n.Name] {
			return fmt.Errorf("duplicate network %q", n.Name)
		}
		seen[n.Name] = true
		if n.Family != FamilySVM && n.Family != FamilySnapshot {
			return fmt.Errorf("network %s: unknown family %q", n.Name, n.Family)
		}
		if _, err := n.Params(); err != nil {
			return fmt.Errorf("network %s: %w", n.Name, err)
		}
	}
	return nil
}

// NetworkNames returns the configured network names in file order.
func (c *Config) NetworkNames() []string {
	names := make([]string, len(c.Networks))
	for i, n := range c.Networks {
		names[i] = n.Name
	}
	return names
}

// Network returns the named network with its RPC URL resolved from the
// environment. svm networks without an RPC URL fail with ErrMissingRPCURL.
func (c *Config) Network(name string) (NetworkConfig, error) {
	for _, n := range c.Networks {
		if n.Name != name {
			continue
		}
		if n.RPCURLEnv != "" {
			n.RPCURL = os.Getenv(n.RPCURLEnv)
		}
		if n.Family == FamilySVM && n.RPCURL == "" {
			return n, fmt.Errorf("%w: network %s needs %s", ErrMissingRPCURL, name, envName(n.RPCURLEnv))
		}
		return n, nil
	}
	return NetworkConfig{}, fmt.Errorf("%w: %s", ErrUnknownNetwork, name)
}

func envName(env string) string {
	if env == "" {
		return "rpc_url_env"
	}
	return env
}

// Params converts the network settings into aggregation parameters.
func (n NetworkConfig) Params() (aggregation.Params, error) {
	params := aggregation.DefaultParams()
	params.HasLocked = n.HasLocked
	params.OmitFeeTiers = n.OmitFeeTiers

	if len(n.Resolutions) > 0 {
		params.Resolutions = nil
		for _, s := range n.Resolutions {
			r, err := domain.ParseResolution(s)
			if err != nil {
				return params, err
			}
			params.Resolutions = append(params.Resolutions, r)
		}
	}

	params.TrailingWindows = interval.DefaultWindows()
	for s, w := range n.TrailingWindows {
		r, err := domain.ParseResolution(s)
		if err != nil {
			return params, err
		}
		if w <= 0 {
			return params, fmt.Errorf("trailing window for %s must be positive", s)
		}
		params.TrailingWindows[r] = w
	}

	if n.Timezone != "" {
		loc, err := time.LoadLocation(n.Timezone)
		if err != nil {
			return params, fmt.Errorf("load timezone %q: %w", n.Timezone, err)
		}
		params.Location = loc
	}
	return params, nil
}

// StaticMeta returns the configured static pools as pool metadata.
func (n NetworkConfig) StaticMeta() []domain.PoolMeta {
	out := make([]domain.PoolMeta, len(n.Pools))
	for i, p := range n.Pools {
		out[i] = domain.PoolMeta{PoolKey: p.Address, TokenX: p.TokenX, TokenY: p.TokenY, Fee: p.Fee}
	}
	return out
}
