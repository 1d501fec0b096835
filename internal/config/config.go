package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

type Config struct {
	App       AppConfig       `mapstructure:"app"`
	Server    ServerConfig    `mapstructure:"server"`
	Log       LogConfig       `mapstructure:"log"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Redis     RedisConfig     `mapstructure:"redis"`
	RabbitMQ  RabbitMQConfig  `mapstructure:"rabbitmq"`
	S3        S3Config        `mapstructure:"s3"`
	Auth      AuthConfig      `mapstructure:"auth"`
	Archive   ArchiveConfig   `mapstructure:"archive"`
	Retention RetentionConfig `mapstructure:"retention"`
}

type AppConfig struct {
	Name string `mapstructure:"name"`
}

type ServerConfig struct {
	Addr            string `mapstructure:"addr"`
	ReadTimeoutSec  int    `mapstructure:"read_timeout_sec"`
	WriteTimeoutSec int    `mapstructure:"write_timeout_sec"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
}

type DatabaseConfig struct {
	DSN         string `mapstructure:"dsn"`
	MaxOpen     int    `mapstructure:"max_open"`
	MaxIdle     int    `mapstructure:"max_idle"`
	AutoMigrate bool   `mapstructure:"auto_migrate"`
	EnableTLS   bool   `mapstructure:"enable_tls"`
}

type RedisConfig struct {
	Addr      string `mapstructure:"addr"`
	Password  string `mapstructure:"password"`
	DB        int    `mapstructure:"db"`
	PoolSize  int    `mapstructure:"pool_size"`
	EnableTLS bool   `mapstructure:"enable_tls"`
}

type RabbitMQConfig struct {
	URL           string `mapstructure:"url"`
	EnableTLS     bool   `mapstructure:"enable_tls"`
	AuditExchange string `mapstructure:"audit_exchange"`

	RoutingKey RoutingKeyConfig `mapstructure:"routing_key"`
}

type RoutingKeyConfig struct {
	SessionLifecycle string `mapstructure:"session_lifecycle"`
	ArchiveLifecycle string `mapstructure:"archive_lifecycle"`
	RetentionChange  string `mapstructure:"retention_change"`
}

type S3Config struct {
	Endpoint     string `mapstructure:"endpoint"`
	Region       string `mapstructure:"region"`
	Bucket       string `mapstructure:"bucket"`
	AccessKey    string `mapstructure:"access_key"`
	SecretKey    string `mapstructure:"secret_key"`
	UsePathStyle bool   `mapstructure:"use_path_style"`
	OpTimeoutSec int    `mapstructure:"op_timeout_sec"`
	KeyPrefix    string `mapstructure:"key_prefix"`
}

type AuthConfig struct {
	// ActorBearerTokenPrefix is the expected prefix of actor API tokens,
	// e.g. "ck_actor_".
	ActorBearerTokenPrefix string `mapstructure:"actor_bearer_token_prefix"`
	// SecretPepper is mixed into the HMAC lookup digest and PHC hash.
	SecretPepper string `mapstructure:"secret_pepper"`
	// EnableArgon2Verification additionally verifies the token against the
	// stored argon2id PHC hash after the HMAC lookup.
	EnableArgon2Verification bool `mapstructure:"enable_argon2_verification"`

	// BootstrapActor / BootstrapToken provision a first operator actor at
	// startup when the identifier does not exist yet, so a fresh deployment
	// can authenticate without touching the database by hand. The token must
	// carry the bearer prefix; only its digests are stored.
	BootstrapActor string `mapstructure:"bootstrap_actor"`
	BootstrapToken string `mapstructure:"bootstrap_token"`
	BootstrapRole  string `mapstructure:"bootstrap_role"`
}

type ArchiveConfig struct {
	// MasterKey is the key material handle provided by the KMS collaborator.
	// Per-archive keys are derived from it with argon2id and a random salt.
	MasterKey string `mapstructure:"master_key"`

	KDFTime     uint32 `mapstructure:"kdf_time"`
	KDFMemoryMB uint32 `mapstructure:"kdf_memory_mb"`
	KDFThreads  uint8  `mapstructure:"kdf_threads"`
}

type RetentionConfig struct {
	StandardDays  int `mapstructure:"standard_days"`
	PermanentDays int `mapstructure:"permanent_days"`

	SweepIntervalSec int `mapstructure:"sweep_interval_sec"`
	LockTTLSec       int `mapstructure:"lock_ttl_sec"`
	SweepBatchSize   int `mapstructure:"sweep_batch_size"`
}

// Load reads configuration from an optional YAML file (./config.yaml) and
// CASEKEEPER_* environment variables, env taking precedence.
func Load() (*Config, error) {
	v := viper.New()

	v.SetDefault("app.name", "casekeeper")
	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.read_timeout_sec", 30)
	v.SetDefault("server.write_timeout_sec", 30)
	v.SetDefault("log.level", "info")
	v.SetDefault("database.max_open", 20)
	v.SetDefault("database.max_idle", 5)
	v.SetDefault("database.auto_migrate", true)
	v.SetDefault("redis.pool_size", 10)
	v.SetDefault("rabbitmq.audit_exchange", "casekeeper.audit")
	v.SetDefault("rabbitmq.routing_key.session_lifecycle", "session.lifecycle")
	v.SetDefault("rabbitmq.routing_key.archive_lifecycle", "archive.lifecycle")
	v.SetDefault("rabbitmq.routing_key.retention_change", "archive.retention")
	v.SetDefault("s3.region", "us-east-1")
	v.SetDefault("s3.op_timeout_sec", 30)
	v.SetDefault("s3.key_prefix", "archives")
	v.SetDefault("auth.actor_bearer_token_prefix", "ck_actor_")
	v.SetDefault("archive.kdf_time", 2)
	v.SetDefault("archive.kdf_memory_mb", 64)
	v.SetDefault("archive.kdf_threads", 4)
	v.SetDefault("retention.standard_days", 365)
	v.SetDefault("retention.permanent_days", 2555)
	v.SetDefault("retention.sweep_interval_sec", 86400)
	v.SetDefault("retention.lock_ttl_sec", 300)
	v.SetDefault("retention.sweep_batch_size", 100)

	v.SetEnvPrefix("CASEKEEPER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	if err := v.ReadInConfig(); err != nil {
		// config file is optional, env-only deployments are fine
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if cfg.Database.DSN == "" {
		return nil, fmt.Errorf("database.dsn is required")
	}
	if cfg.Archive.MasterKey == "" {
		return nil, fmt.Errorf("archive.master_key is required")
	}

	return &cfg, nil
}
