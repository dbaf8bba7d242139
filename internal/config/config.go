// Package config provides configuration management using Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	Pipeline PipelineConfig `mapstructure:"pipeline"`
	Grid     GridConfig     `mapstructure:"grid"`
	COG      COGConfig      `mapstructure:"cog"`
	Stac     StacConfig     `mapstructure:"stac"`
	Storage  StorageConfig  `mapstructure:"storage"`
	Taxonomy TaxonomyConfig `mapstructure:"taxonomy"`
	Status   StatusConfig   `mapstructure:"status"`
	Watch    WatchConfig    `mapstructure:"watch"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

// PipelineConfig holds the inventory stage configuration.
type PipelineConfig struct {
	RootDir    string `mapstructure:"root_dir"`
	Extension  string `mapstructure:"extension"`
	SampleSize int    `mapstructure:"sample_size"`
	SampleSeed int64  `mapstructure:"sample_seed"`
	BatchSize  int    `mapstructure:"batch_size"`
	Database   string `mapstructure:"database"`
	ExportDir  string `mapstructure:"export_dir"`
}

// GridConfig holds the expected-grid validation configuration.
type GridConfig struct {
	Mode      string  `mapstructure:"mode"` // fixed, inferred
	CRSCode   int     `mapstructure:"crs_code"`
	ResX      float64 `mapstructure:"res_x"`
	ResY      float64 `mapstructure:"res_y"`
	XMin      float64 `mapstructure:"xmin"`
	XMax      float64 `mapstructure:"xmax"`
	YMin      float64 `mapstructure:"ymin"`
	YMax      float64 `mapstructure:"ymax"`
	Tolerance float64 `mapstructure:"tolerance"`
}

// COGConfig holds the conversion stage configuration.
type COGConfig struct {
	OutputDir   string `mapstructure:"output_dir"`
	Layout      string `mapstructure:"layout"` // flat, nested
	TileSize    int    `mapstructure:"tile_size"`
	Compression string `mapstructure:"compression"`
	Predictor   bool   `mapstructure:"predictor"`
	NumThreads  int    `mapstructure:"num_threads"`
	FlushEvery  int    `mapstructure:"flush_every"`
}

// StacConfig holds the catalog stage configuration.
type StacConfig struct {
	OutputDir      string `mapstructure:"output_dir"`
	CatalogID      string `mapstructure:"catalog_id"`
	CatalogDesc    string `mapstructure:"catalog_description"`
	CollectionID   string `mapstructure:"collection_id"`
	CollectionDesc string `mapstructure:"collection_description"`
	License        string `mapstructure:"license"`
	AssetMode      string `mapstructure:"asset_mode"` // local, hybrid
	Datetime       string `mapstructure:"datetime"`   // RFC 3339; empty = run time
}

// StorageConfig holds object storage configuration.
type StorageConfig struct {
	Type      string      `mapstructure:"type"` // s3, azure, http, local
	LocalPath string      `mapstructure:"local_path"`
	BaseURL   string      `mapstructure:"base_url"` // Public URL of the local tree
	S3        S3Config    `mapstructure:"s3"`
	Azure     AzureConfig `mapstructure:"azure"`
	HTTP      HTTPConfig  `mapstructure:"http"`
}

// S3Config holds AWS S3 configuration.
type S3Config struct {
	Bucket          string `mapstructure:"bucket"`
	Region          string `mapstructure:"region"`
	Prefix          string `mapstructure:"prefix"`
	Endpoint        string `mapstructure:"endpoint"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
	PublicBaseURL   string `mapstructure:"public_base_url"`
}

// AzureConfig holds Azure Blob Storage configuration.
type AzureConfig struct {
	Container        string `mapstructure:"container"`
	AccountName      string `mapstructure:"account_name"`
	AccountKey       string `mapstructure:"account_key"`
	ConnectionString string `mapstructure:"connection_string"`
	Prefix           string `mapstructure:"prefix"`
	PublicBaseURL    string `mapstructure:"public_base_url"`
}

// HTTPConfig holds read-only HTTP storage configuration.
type HTTPConfig struct {
	BaseURL   string        `mapstructure:"base_url"`
	IndexFile string        `mapstructure:"index_file"` // default: index.txt
	Timeout   time.Duration `mapstructure:"timeout"`
	Username  string        `mapstructure:"username"`
	Password  string        `mapstructure:"password"`
}

// TaxonomyConfig holds classification rule configuration.
type TaxonomyConfig struct {
	RulesFile string `mapstructure:"rules_file"` // Optional YAML rule overlay
}

// StatusConfig holds the status server configuration.
type StatusConfig struct {
	Enabled      bool          `mapstructure:"enabled"`
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

// WatchConfig holds watch mode configuration.
type WatchConfig struct {
	Debounce time.Duration `mapstructure:"debounce"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"` // json, text
}

// Defaults sets the default configuration values.
func Defaults() {
	// Pipeline defaults
	viper.SetDefault("pipeline.root_dir", "./data")
	viper.SetDefault("pipeline.extension", ".tif")
	viper.SetDefault("pipeline.sample_size", 0)
	viper.SetDefault("pipeline.sample_seed", 42)
	viper.SetDefault("pipeline.database", "./workspace/inventory.db")
	viper.SetDefault("pipeline.export_dir", "./workspace/export")

	// Grid defaults
	viper.SetDefault("grid.mode", "fixed")
	viper.SetDefault("grid.tolerance", 1e-6)

	// COG defaults
	viper.SetDefault("cog.output_dir", "./workspace/cog")
	viper.SetDefault("cog.layout", "flat")
	viper.SetDefault("cog.tile_size", 512)
	viper.SetDefault("cog.compression", "DEFLATE")
	viper.SetDefault("cog.predictor", true)

	// STAC defaults
	viper.SetDefault("stac.output_dir", "./workspace/stac")
	viper.SetDefault("stac.catalog_id", "stratum")
	viper.SetDefault("stac.catalog_description", "Raster inventory catalog")
	viper.SetDefault("stac.collection_id", "stratum-cog")
	viper.SetDefault("stac.collection_description", "Cloud-optimized GeoTIFF outputs")
	viper.SetDefault("stac.license", "proprietary")
	viper.SetDefault("stac.asset_mode", "local")

	// Storage defaults
	viper.SetDefault("storage.type", "local")
	viper.SetDefault("storage.local_path", "./workspace/cog")
	viper.SetDefault("storage.http.index_file", "index.txt")
	viper.SetDefault("storage.http.timeout", 5*time.Second)

	// Status server defaults
	viper.SetDefault("status.enabled", false)
	viper.SetDefault("status.host", "0.0.0.0")
	viper.SetDefault("status.port", 8080)
	viper.SetDefault("status.read_timeout", 5*time.Second)
	viper.SetDefault("status.write_timeout", 10*time.Second)

	// Watch defaults
	viper.SetDefault("watch.debounce", 2*time.Second)

	// Logging defaults
	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.format", "json")
}

// Load loads configuration from environment and config file.
func Load(configPath string) (*Config, error) {
	Defaults()

	// Environment variable binding
	viper.SetEnvPrefix("STRATUM")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	// Config file
	if configPath != "" {
		viper.SetConfigFile(configPath)
	} else {
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")
		viper.AddConfigPath("./config")
		viper.AddConfigPath("/etc/stratum")
	}

	// Try to read config file (not required)
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	switch c.Grid.Mode {
	case "fixed":
		if c.Grid.CRSCode == 0 {
			return fmt.Errorf("fixed grid mode requires grid.crs_code")
		}
		if c.Grid.ResX <= 0 || c.Grid.ResY <= 0 {
			return fmt.Errorf("fixed grid mode requires positive grid.res_x and grid.res_y")
		}
	case "inferred":
		// Expected values are derived from the inventory itself
	default:
		return fmt.Errorf("unknown grid mode: %s", c.Grid.Mode)
	}

	switch c.COG.Layout {
	case "flat", "nested":
	default:
		return fmt.Errorf("unknown cog layout: %s", c.COG.Layout)
	}

	switch c.Stac.AssetMode {
	case "local", "hybrid":
	default:
		return fmt.Errorf("unknown stac asset mode: %s", c.Stac.AssetMode)
	}
	if c.Stac.Datetime != "" {
		if _, err := time.Parse(time.RFC3339, c.Stac.Datetime); err != nil {
			return fmt.Errorf("invalid stac.datetime: %w", err)
		}
	}

	switch c.Storage.Type {
	case "local":
		if c.Storage.LocalPath == "" {
			return fmt.Errorf("local storage path is required")
		}
	case "s3":
		if c.Storage.S3.Bucket == "" {
			return fmt.Errorf("S3 bucket is required")
		}
		if c.Storage.S3.Region == "" {
			return fmt.Errorf("S3 region is required")
		}
	case "azure":
		if c.Storage.Azure.Container == "" {
			return fmt.Errorf("azure container is required")
		}
		if c.Storage.Azure.AccountName == "" && c.Storage.Azure.ConnectionString == "" {
			return fmt.Errorf("azure account name or connection string is required")
		}
	case "http":
		if c.Storage.HTTP.BaseURL == "" {
			return fmt.Errorf("HTTP base URL is required")
		}
	default:
		return fmt.Errorf("unknown storage type: %s", c.Storage.Type)
	}

	if c.Status.Enabled && (c.Status.Port < 1 || c.Status.Port > 65535) {
		return fmt.Errorf("invalid status port: %d", c.Status.Port)
	}

	return nil
}
