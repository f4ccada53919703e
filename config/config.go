package config

import (
	"fmt"
	"os"

	"github.com/shopspring/decimal"
	"github.com/spf13/viper"

	"github.com/helioswap/dca-engine/internal/asset"
	"github.com/helioswap/dca-engine/internal/engine"
	"github.com/helioswap/dca-engine/storage"
)

type Config struct {
	Server struct {
		Host     string `mapstructure:"host" json:"host,omitempty"`
		Port     int64  `mapstructure:"port" json:"port,omitempty"`
		Database struct {
			DSN string `mapstructure:"dsn" json:"dsn,omitempty"`
		} `mapstructure:"database" json:"database,omitempty"`
	} `mapstructure:"server" json:"server"`

	Redis        storage.RedisConfig        `mapstructure:"redis" json:"redis,omitempty"`
	BlockStorage storage.BlockStorageConfig `mapstructure:"block_storage" json:"block_storage,omitempty"`

	Datadog struct {
		Host string `mapstructure:"host" json:"host,omitempty"`
		Port string `mapstructure:"port" json:"port,omitempty"`
	} `mapstructure:"datadog" json:"datadog"`

	Ledger struct {
		BaseURL string `mapstructure:"base_url" json:"base_url,omitempty"`
	} `mapstructure:"ledger" json:"ledger,omitempty"`

	Router struct {
		BaseURL string `mapstructure:"base_url" json:"base_url,omitempty"`
	} `mapstructure:"router" json:"router,omitempty"`

	// Engine holds the bootstrap policy used the first time the service
	// starts against an empty database. Once stored, the database copy wins.
	Engine struct {
		Admin           string   `mapstructure:"admin" json:"admin,omitempty"`
		RouterEndpoint  string   `mapstructure:"router_endpoint" json:"router_endpoint,omitempty"`
		FactoryEndpoint string   `mapstructure:"factory_endpoint" json:"factory_endpoint,omitempty"`
		MaxHops         int      `mapstructure:"max_hops" json:"max_hops,omitempty"`
		MaxSpread       string   `mapstructure:"max_spread" json:"max_spread,omitempty"`
		PerHopFee       string   `mapstructure:"per_hop_fee" json:"per_hop_fee,omitempty"`
		TipAsset        string   `mapstructure:"tip_asset" json:"tip_asset,omitempty"`
		Whitelist       []string `mapstructure:"whitelist" json:"whitelist,omitempty"`
	} `mapstructure:"engine" json:"engine"`

	// Executor is decoded by the executor service itself.
	Executor map[string]interface{} `mapstructure:"executor" json:"executor,omitempty"`

	// Worker configures the standalone purchase worker binary.
	Worker struct {
		ServerURL  string `mapstructure:"server_url" json:"server_url,omitempty"`
		ExecutorID string `mapstructure:"executor_id" json:"executor_id,omitempty"`
	} `mapstructure:"worker" json:"worker,omitempty"`
}

func GetConfigure() (*Config, error) {
	configName := os.Getenv("DCA_CONFIG_NAME")
	if configName == "" {
		configName = "config"
	}

	return ReadConfig(configName)
}

func ReadConfig(configName string) (*Config, error) {
	viper.SetConfigName(configName)
	viper.AddConfigPath(".")
	viper.AutomaticEnv()

	viper.SetDefault("Engine.MaxHops", 3)
	viper.SetDefault("Engine.MaxSpread", "0.05")

	if err := viper.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("fail to reading config file, %w", err)
	}
	var cfg Config
	err := viper.Unmarshal(&cfg)
	if err != nil {
		return nil, fmt.Errorf("unable to decode into struct, %w", err)
	}
	return &cfg, nil
}

// BootstrapEngineConfig parses the Engine section into a GlobalConfig. The
// decimal and asset fields are kept as strings in the file so viper does not
// need custom decode hooks.
func (c *Config) BootstrapEngineConfig() (engine.GlobalConfig, error) {
	maxSpread, err := decimal.NewFromString(c.Engine.MaxSpread)
	if err != nil {
		return engine.GlobalConfig{}, fmt.Errorf("invalid engine.max_spread: %w", err)
	}
	perHopFee, err := decimal.NewFromString(c.Engine.PerHopFee)
	if err != nil {
		return engine.GlobalConfig{}, fmt.Errorf("invalid engine.per_hop_fee: %w", err)
	}
	tipAsset, err := asset.ParseRef(c.Engine.TipAsset)
	if err != nil {
		return engine.GlobalConfig{}, fmt.Errorf("invalid engine.tip_asset: %w", err)
	}
	var whitelist []asset.Ref
	for _, s := range c.Engine.Whitelist {
		ref, err := asset.ParseRef(s)
		if err != nil {
			return engine.GlobalConfig{}, fmt.Errorf("invalid engine.whitelist entry %q: %w", s, err)
		}
		whitelist = append(whitelist, ref)
	}

	return engine.GlobalConfig{
		Admin:           c.Engine.Admin,
		RouterEndpoint:  c.Engine.RouterEndpoint,
		FactoryEndpoint: c.Engine.FactoryEndpoint,
		MaxHops:         c.Engine.MaxHops,
		MaxSpread:       maxSpread,
		PerHopFee:       perHopFee,
		TipAsset:        tipAsset,
		Whitelist:       whitelist,
	}, nil
}
