package config

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"

	"github.com/samirrijal/geoagg/internal/core/domain"
)

// Config holds all application configuration.
type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Database   DatabaseConfig   `mapstructure:"database"`
	NATS       NATSConfig       `mapstructure:"nats"`
	Valkey     ValkeyConfig     `mapstructure:"valkey"`
	Storage    StorageConfig    `mapstructure:"storage"`
	Temporal   TemporalConfig   `mapstructure:"temporal"`
	Telemetry  TelemetryConfig  `mapstructure:"telemetry"`
	Log        LogConfig        `mapstructure:"log"`
	Projection ProjectionConfig `mapstructure:"projection"`
	Pipeline   PipelineConfig   `mapstructure:"pipeline"`
}

type ServerConfig struct {
	Port         int `mapstructure:"port"`
	ReadTimeout  int `mapstructure:"read_timeout"`
	WriteTimeout int `mapstructure:"write_timeout"`
	BodyLimitMB  int `mapstructure:"body_limit_mb"`
}

type DatabaseConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname"`
	SSLMode  string `mapstructure:"sslmode"`
}

func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.DBName, d.SSLMode,
	)
}

type NATSConfig struct {
	URL string `mapstructure:"url"`
}

// ValkeyConfig configures the result cache. LocalCacheSeconds > 0 enables
// server-assisted client-side caching, which needs RESP3.
type ValkeyConfig struct {
	Addr              string `mapstructure:"addr"`
	TTLSeconds        int    `mapstructure:"ttl_seconds"`
	LocalCacheSeconds int    `mapstructure:"local_cache_seconds"`
}

// StorageConfig points at the S3-compatible bucket used for exports.
// An empty endpoint disables exports.
type StorageConfig struct {
	Endpoint  string `mapstructure:"endpoint"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
	Bucket    string `mapstructure:"bucket"`
	UseSSL    bool   `mapstructure:"use_ssl"`
}

type TemporalConfig struct {
	HostPort  string `mapstructure:"host_port"`
	Namespace string `mapstructure:"namespace"`
	TaskQueue string `mapstructure:"task_queue"`
}

type TelemetryConfig struct {
	ServiceName string `mapstructure:"service_name"`
	TempoAddr   string `mapstructure:"tempo_addr"`
	Enabled     bool   `mapstructure:"enabled"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type ProjectionConfig struct {
	TargetCRS string `mapstructure:"target_crs"`
}

// PipelineConfig is the default parameter set for aggregation runs.
type PipelineConfig struct {
	Epsilon       float64   `mapstructure:"epsilon"`
	HullTolerance float64   `mapstructure:"hull_tolerance"`
	BatchSize     int       `mapstructure:"batch_size"`
	WorkerCount   int       `mapstructure:"worker_count"`
	Scale         []float64 `mapstructure:"scale"`
	GroupBy       string    `mapstructure:"group_by"`
	TargetScale   float64   `mapstructure:"target_scale"`
	VertexEpsilon float64   `mapstructure:"vertex_epsilon"`
	MergeOverlaps bool      `mapstructure:"merge_overlaps"`
	FeatureHulls  bool      `mapstructure:"feature_hulls"`

	ExtensionDistance float64 `mapstructure:"extension_distance"`
	SegmentLength     float64 `mapstructure:"segment_length"`
	BendThreshold     float64 `mapstructure:"bend_threshold"`
}

// Params converts the pipeline section into run parameters.
func (c *Config) Params() (domain.Params, error) {
	s, err := domain.ScaleFromSlice(c.Pipeline.Scale)
	if err != nil {
		return domain.Params{}, err
	}
	p := domain.Params{
		Epsilon:       c.Pipeline.Epsilon,
		HullTolerance: c.Pipeline.HullTolerance,
		BatchSize:     c.Pipeline.BatchSize,
		WorkerCount:   c.Pipeline.WorkerCount,
		Scale:         s,
		GroupBy:       c.Pipeline.GroupBy,
		TargetCRS:     c.Projection.TargetCRS,
		TargetScale:   c.Pipeline.TargetScale,
		VertexEpsilon: c.Pipeline.VertexEpsilon,
		MergeOverlaps: c.Pipeline.MergeOverlaps,
		FeatureHulls:  c.Pipeline.FeatureHulls,

		ExtensionDistance: c.Pipeline.ExtensionDistance,
		SegmentLength:     c.Pipeline.SegmentLength,
		BendThreshold:     c.Pipeline.BendThreshold,
	}
	return p, p.Validate()
}

func newViper(service string) *viper.Viper {
	v := viper.New()

	d := domain.DefaultParams()
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", 10)
	v.SetDefault("server.write_timeout", 30)
	v.SetDefault("server.body_limit_mb", 64)
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "geoagg")
	v.SetDefault("database.password", "")
	v.SetDefault("database.dbname", "geoagg")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("nats.url", "nats://localhost:4222")
	v.SetDefault("valkey.addr", "localhost:6379")
	v.SetDefault("valkey.ttl_seconds", 3600)
	v.SetDefault("valkey.local_cache_seconds", 300)
	v.SetDefault("storage.endpoint", "")
	v.SetDefault("storage.bucket", "geoagg-domains")
	v.SetDefault("temporal.host_port", "localhost:7233")
	v.SetDefault("temporal.namespace", "default")
	v.SetDefault("temporal.task_queue", "geoagg-aggregation")
	v.SetDefault("telemetry.service_name", service)
	v.SetDefault("telemetry.tempo_addr", "tempo:4317")
	v.SetDefault("telemetry.enabled", false)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("projection.target_crs", "")
	v.SetDefault("pipeline.epsilon", d.Epsilon)
	v.SetDefault("pipeline.hull_tolerance", d.HullTolerance)
	v.SetDefault("pipeline.batch_size", d.BatchSize)
	v.SetDefault("pipeline.worker_count", d.WorkerCount)
	v.SetDefault("pipeline.scale", []float64{1})
	v.SetDefault("pipeline.group_by", "")
	v.SetDefault("pipeline.target_scale", 0)
	v.SetDefault("pipeline.vertex_epsilon", 0)
	v.SetDefault("pipeline.merge_overlaps", false)
	v.SetDefault("pipeline.feature_hulls", false)
	v.SetDefault("pipeline.extension_distance", 0)
	v.SetDefault("pipeline.segment_length", 0)
	v.SetDefault("pipeline.bend_threshold", 0)

	// Config file (optional)
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./configs")

	// Environment variables: GEOAGG_PIPELINE_EPSILON → pipeline.epsilon
	v.SetEnvPrefix("GEOAGG")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

func decode(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Load reads configuration from file and environment variables.
func Load(service string) (*Config, error) {
	v := newViper(service)
	_ = v.ReadInConfig() // OK if missing
	return decode(v)
}

// Watch loads configuration like Load and calls onChange with every valid
// reload of the config file. Invalid edits are logged and skipped.
func Watch(service string, onChange func(*Config)) (*Config, error) {
	v := newViper(service)
	_ = v.ReadInConfig()
	cfg, err := decode(v)
	if err != nil {
		return nil, err
	}
	if v.ConfigFileUsed() == "" {
		return cfg, nil
	}
	v.OnConfigChange(func(e fsnotify.Event) {
		if !e.Has(fsnotify.Write) && !e.Has(fsnotify.Create) {
			return
		}
		next, err := decode(v)
		if err != nil {
			slog.Warn("ignoring invalid config reload", "file", e.Name, "error", err)
			return
		}
		slog.Info("config reloaded", "file", e.Name)
		onChange(next)
	})
	v.WatchConfig()
	return cfg, nil
}

// Validate checks that required configuration fields are present and sane.
func (c *Config) Validate() error {
	var errs []string

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Sprintf("server.port must be 1-65535, got %d", c.Server.Port))
	}
	if c.Database.Host == "" {
		errs = append(errs, "database.host is required")
	}
	if c.Database.Port <= 0 || c.Database.Port > 65535 {
		errs = append(errs, fmt.Sprintf("database.port must be 1-65535, got %d", c.Database.Port))
	}
	if c.Database.DBName == "" {
		errs = append(errs, "database.dbname is required")
	}
	if c.NATS.URL == "" {
		errs = append(errs, "nats.url is required")
	}
	if c.Valkey.Addr == "" {
		errs = append(errs, "valkey.addr is required")
	}
	if c.Server.ReadTimeout <= 0 {
		errs = append(errs, "server.read_timeout must be positive")
	}
	if c.Server.WriteTimeout <= 0 {
		errs = append(errs, "server.write_timeout must be positive")
	}
	if c.Storage.Endpoint != "" && c.Storage.Bucket == "" {
		errs = append(errs, "storage.bucket is required when storage.endpoint is set")
	}
	if c.Temporal.TaskQueue == "" {
		errs = append(errs, "temporal.task_queue is required")
	}
	if _, err := c.Params(); err != nil {
		errs = append(errs, "pipeline: "+strings.TrimPrefix(err.Error(), domain.ErrInvalidParameter.Error()+": "))
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
