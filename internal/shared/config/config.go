package config

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	App      AppConfig      `mapstructure:"app"`
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Redis    RedisConfig    `mapstructure:"redis"`
	S3       S3Config       `mapstructure:"s3"`
	LakeFS   LakeFSConfig   `mapstructure:"lakefs"`
	LFS      LFSConfig      `mapstructure:"lfs"`
	Commit   CommitConfig   `mapstructure:"commit"`
	Admin    AdminConfig    `mapstructure:"admin"`
	Log      LogConfig      `mapstructure:"log"`
}

// AppConfig holds hub-wide settings.
type AppConfig struct {
	// BaseURL is the externally reachable URL of this service; it appears
	// in commit URLs, LFS hrefs and the synthesized .lfsconfig.
	BaseURL string `mapstructure:"base_url"`
	// NamespacePrefix prefixes every versioned-store repository name.
	NamespacePrefix string `mapstructure:"namespace_prefix"`
	DefaultBranch   string `mapstructure:"default_branch"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Address      string        `mapstructure:"address"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	IdleTimeout  time.Duration `mapstructure:"idle_timeout"`
}

// DatabaseConfig holds database configuration.
type DatabaseConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	Database        string        `mapstructure:"database"`
	SSLMode         string        `mapstructure:"ssl_mode"`
	AutoMigrate     bool          `mapstructure:"auto_migrate"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `mapstructure:"conn_max_idle_time"`
}

// DSN returns the database connection string.
func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}

// RedisConfig holds Redis configuration. An empty address disables the
// cache; in-memory fallbacks take over.
type RedisConfig struct {
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// S3Config holds blob store configuration.
type S3Config struct {
	Endpoint string `mapstructure:"endpoint"`
	// PublicEndpoint, when set, is used for presigned URLs handed to
	// clients (the internal endpoint may not be routable from outside).
	PublicEndpoint  string `mapstructure:"public_endpoint"`
	Region          string `mapstructure:"region"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
	Bucket          string `mapstructure:"bucket"`
}

// LakeFSConfig holds versioned-store configuration.
type LakeFSConfig struct {
	Endpoint        string `mapstructure:"endpoint"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
}

// LFSConfig holds LFS policy defaults and transfer tuning.
type LFSConfig struct {
	ThresholdBytes          int64         `mapstructure:"threshold_bytes"`
	SuffixPatterns          []string      `mapstructure:"suffix_patterns"`
	KeepVersions            int           `mapstructure:"keep_versions"`
	AutoGC                  bool          `mapstructure:"auto_gc"`
	MultipartThresholdBytes int64         `mapstructure:"multipart_threshold_bytes"`
	MultipartChunkBytes     int64         `mapstructure:"multipart_chunk_bytes"`
	UploadExpiry            time.Duration `mapstructure:"upload_expiry"`
	DownloadExpiry          time.Duration `mapstructure:"download_expiry"`
}

// CommitConfig tunes the commit engine.
type CommitConfig struct {
	// PollAttempts and PollInterval bound the wait for a new commit to
	// become visible in the versioned store.
	PollAttempts int           `mapstructure:"poll_attempts"`
	PollInterval time.Duration `mapstructure:"poll_interval"`
	// MaxBodyBytes caps the NDJSON commit body.
	MaxBodyBytes int64 `mapstructure:"max_body_bytes"`
}

// AdminConfig gates the admin surface.
type AdminConfig struct {
	Enabled bool `mapstructure:"enabled"`
	// Token is compared as SHA3-512 in constant time; never logged.
	Token string `mapstructure:"token"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Load loads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Set config file name and paths
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./configs")
	v.AddConfigPath("/etc/kohakuhub")

	// Set defaults
	setDefaults(v)

	// Read config file
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("read config: %w", err)
		}
		// Config file not found, use defaults and env
	}

	// Read from environment variables
	v.SetEnvPrefix("KOHAKU")
	v.AutomaticEnv()

	// Unmarshal config
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	// Override with environment variables for sensitive values
	if password := os.Getenv("KOHAKU_DB_PASSWORD"); password != "" {
		cfg.Database.Password = password
	}
	if password := os.Getenv("KOHAKU_REDIS_PASSWORD"); password != "" {
		cfg.Redis.Password = password
	}
	if key := os.Getenv("KOHAKU_S3_SECRET_KEY"); key != "" {
		cfg.S3.SecretAccessKey = key
	}
	if key := os.Getenv("KOHAKU_LAKEFS_SECRET_KEY"); key != "" {
		cfg.LakeFS.SecretAccessKey = key
	}
	if token := os.Getenv("KOHAKU_ADMIN_TOKEN"); token != "" {
		cfg.Admin.Token = token
	}

	return &cfg, nil
}

// Validate checks the settings no deployment can run without.
func (c *Config) Validate() error {
	if c.S3.Endpoint == "" {
		return fmt.Errorf("s3.endpoint is required")
	}
	if c.S3.Bucket == "" {
		return fmt.Errorf("s3.bucket is required")
	}
	if c.LakeFS.Endpoint == "" {
		return fmt.Errorf("lakefs.endpoint is required")
	}
	if c.Admin.Enabled && c.Admin.Token == "" {
		return fmt.Errorf("admin.token is required when admin.enabled")
	}
	return nil
}

// setDefaults sets default configuration values.
func setDefaults(v *viper.Viper) {
	// App defaults
	v.SetDefault("app.base_url", "http://localhost:8080")
	v.SetDefault("app.namespace_prefix", "hub")
	v.SetDefault("app.default_branch", "main")

	// Server defaults
	v.SetDefault("server.address", ":8080")
	v.SetDefault("server.read_timeout", 300*time.Second)
	v.SetDefault("server.write_timeout", 300*time.Second)
	v.SetDefault("server.idle_timeout", 120*time.Second)

	// Database defaults
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.database", "kohakuhub")
	v.SetDefault("database.ssl_mode", "disable")
	v.SetDefault("database.auto_migrate", true)
	v.SetDefault("database.max_open_conns", 25)
	v.SetDefault("database.max_idle_conns", 10)
	v.SetDefault("database.conn_max_lifetime", time.Hour)
	v.SetDefault("database.conn_max_idle_time", 30*time.Minute)

	// Redis defaults: disabled unless an address is configured
	v.SetDefault("redis.address", "")
	v.SetDefault("redis.db", 0)

	// S3 defaults
	v.SetDefault("s3.region", "us-east-1")
	v.SetDefault("s3.bucket", "kohakuhub")

	// LFS defaults
	v.SetDefault("lfs.threshold_bytes", int64(10*1024*1024))
	v.SetDefault("lfs.suffix_patterns", []string{
		"*.safetensors", "*.ckpt", "*.gguf", "*.pt", "*.pth", "*.onnx",
		"*.msgpack", "*.h5", "*.parquet", "*.npz", "*.pb",
	})
	v.SetDefault("lfs.keep_versions", 5)
	v.SetDefault("lfs.auto_gc", true)
	v.SetDefault("lfs.multipart_threshold_bytes", int64(5*1024*1024*1024))
	v.SetDefault("lfs.multipart_chunk_bytes", int64(64*1024*1024))
	v.SetDefault("lfs.upload_expiry", 24*time.Hour)
	v.SetDefault("lfs.download_expiry", time.Hour)

	// Commit defaults
	v.SetDefault("commit.poll_attempts", 120)
	v.SetDefault("commit.poll_interval", 500*time.Millisecond)
	v.SetDefault("commit.max_body_bytes", int64(100*1024*1024))

	// Admin defaults
	v.SetDefault("admin.enabled", false)

	// Log defaults
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
}
