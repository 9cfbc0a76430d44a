package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server  ServerConfig
	Jobs    JobConfig
	Storage StorageConfig
	CORS    CORSConfig
}

type ServerConfig struct {
	Address         string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
}

type JobConfig struct {
	MaxWorkers      int
	JobTimeout      time.Duration
	CleanupInterval time.Duration
	ResultTTL       time.Duration
	LogLevel        string
}

type StorageConfig struct {
	MaxUploadBytes int64
}

type CORSConfig struct {
	AllowedOrigins []string
}

// Load reads the server configuration from defaults, an optional file and
// APCLUSTER_* environment variables, in increasing order of precedence.
func Load(path string) (*Config, error) {
	v := viper.New()

	v.SetDefault("server.address", ":8080")
	v.SetDefault("server.read_timeout", 30*time.Second)
	v.SetDefault("server.write_timeout", 30*time.Second)
	v.SetDefault("server.shutdown_timeout", 30*time.Second)

	v.SetDefault("jobs.max_workers", 4)
	v.SetDefault("jobs.timeout", 10*time.Minute)
	v.SetDefault("jobs.cleanup_interval", 5*time.Minute)
	v.SetDefault("jobs.result_ttl", time.Hour)
	v.SetDefault("jobs.log_level", "warn")

	v.SetDefault("storage.max_upload_bytes", int64(100*1024*1024)) // 100MB

	v.SetDefault("cors.allowed_origins", []string{"*"})

	v.SetEnvPrefix("APCLUSTER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, err
		}
	}

	cfg := &Config{
		Server: ServerConfig{
			Address:         v.GetString("server.address"),
			ReadTimeout:     v.GetDuration("server.read_timeout"),
			WriteTimeout:    v.GetDuration("server.write_timeout"),
			ShutdownTimeout: v.GetDuration("server.shutdown_timeout"),
		},
		Jobs: JobConfig{
			MaxWorkers:      v.GetInt("jobs.max_workers"),
			JobTimeout:      v.GetDuration("jobs.timeout"),
			CleanupInterval: v.GetDuration("jobs.cleanup_interval"),
			ResultTTL:       v.GetDuration("jobs.result_ttl"),
			LogLevel:        v.GetString("jobs.log_level"),
		},
		Storage: StorageConfig{
			MaxUploadBytes: v.GetInt64("storage.max_upload_bytes"),
		},
		CORS: CORSConfig{
			AllowedOrigins: v.GetStringSlice("cors.allowed_origins"),
		},
	}

	return cfg, nil
}
