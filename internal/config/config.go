// Package config loads the flatskip command configuration from a YAML or JSON
// file, environment variables and flags, in increasing order of precedence.
package config

import (
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/goccy/go-json"
	"gopkg.in/yaml.v3"

	"github.com/metailurini/flatskip"
)

// Store kinds.
const (
	StoreLocal  = "local"
	StoreMinIO  = "minio"
	StoreMemory = "memory"
)

type MinIOConfig struct {
	Endpoint  string `yaml:"endpoint" json:"endpoint"`
	Bucket    string `yaml:"bucket" json:"bucket"`
	Prefix    string `yaml:"prefix" json:"prefix"`
	AccessKey string `yaml:"access_key" json:"access_key"`
	SecretKey string `yaml:"secret_key" json:"secret_key"`
	Secure    bool   `yaml:"secure" json:"secure"`
}

type StoreConfig struct {
	Kind  string      `yaml:"kind" json:"kind"`
	Dir   string      `yaml:"dir" json:"dir"`
	MinIO MinIOConfig `yaml:"minio" json:"minio"`
}

type LogConfig struct {
	Level  string `yaml:"level" json:"level"`
	Format string `yaml:"format" json:"format"`
}

type Config struct {
	Store         StoreConfig `yaml:"store" json:"store"`
	Log           LogConfig   `yaml:"log" json:"log"`
	Compression   string      `yaml:"compression" json:"compression"`
	EncodeWorkers int         `yaml:"encode_workers" json:"encode_workers"`
}

// Flags binds the configuration flags to a FlagSet. Call Load after the set has
// been parsed.
type Flags struct {
	fs            *flag.FlagSet
	configPath    string
	storeKind     string
	storeDir      string
	minioEndpoint string
	minioBucket   string
	minioPrefix   string
	minioSecure   bool
	logLevel      string
	logFormat     string
	compression   string
	encodeWorkers int
}

// Register adds the configuration flags to fs.
func Register(fs *flag.FlagSet) *Flags {
	f := &Flags{fs: fs}
	fs.StringVar(&f.configPath, "config", "", "Path to YAML/JSON config file")
	fs.StringVar(&f.storeKind, "store", StoreLocal, "Blob store kind (local, minio, memory)")
	fs.StringVar(&f.storeDir, "dir", "flatskip-data", "Directory of the local blob store")
	fs.StringVar(&f.minioEndpoint, "minio-endpoint", "", "MinIO endpoint host:port")
	fs.StringVar(&f.minioBucket, "minio-bucket", "", "MinIO bucket")
	fs.StringVar(&f.minioPrefix, "minio-prefix", "", "Key prefix inside the bucket")
	fs.BoolVar(&f.minioSecure, "minio-secure", false, "Use TLS for MinIO")
	fs.StringVar(&f.logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	fs.StringVar(&f.logFormat, "log-format", "text", "Log format (text, json)")
	fs.StringVar(&f.compression, "compression", "none", "Snapshot compression (none, lz4, zstd)")
	fs.IntVar(&f.encodeWorkers, "encode-workers", 1, "Goroutines used to encode records")
	return f
}

// Load reads the config file, if any, then applies environment overrides and
// the flags set explicitly on the command line.
func (f *Flags) Load() (*Config, error) {
	cfg := &Config{}

	path := f.configPath
	if path == "" {
		path = os.Getenv("FLATSKIP_CONFIG")
	}
	if path != "" {
		if err := ReadFile(path, cfg); err != nil {
			return nil, err
		}
	}

	overrideEnvString(&cfg.Store.MinIO.AccessKey, "FLATSKIP_MINIO_ACCESS_KEY")
	overrideEnvString(&cfg.Store.MinIO.SecretKey, "FLATSKIP_MINIO_SECRET_KEY")
	overrideEnvString(&cfg.Store.MinIO.Endpoint, "FLATSKIP_MINIO_ENDPOINT")

	// Flag defaults fill only what the file left empty; explicit flags win.
	set := make(map[string]bool)
	f.fs.Visit(func(fl *flag.Flag) { set[fl.Name] = true })
	apply := func(name string, dst *string, v string) {
		if set[name] || *dst == "" {
			*dst = v
		}
	}
	apply("store", &cfg.Store.Kind, f.storeKind)
	apply("dir", &cfg.Store.Dir, f.storeDir)
	apply("minio-endpoint", &cfg.Store.MinIO.Endpoint, f.minioEndpoint)
	apply("minio-bucket", &cfg.Store.MinIO.Bucket, f.minioBucket)
	apply("minio-prefix", &cfg.Store.MinIO.Prefix, f.minioPrefix)
	apply("log-level", &cfg.Log.Level, f.logLevel)
	apply("log-format", &cfg.Log.Format, f.logFormat)
	apply("compression", &cfg.Compression, f.compression)
	if set["minio-secure"] {
		cfg.Store.MinIO.Secure = f.minioSecure
	}
	if set["encode-workers"] || cfg.EncodeWorkers == 0 {
		cfg.EncodeWorkers = f.encodeWorkers
	}

	cfg.Normalize()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ReadFile decodes path into cfg, as JSON when the extension is .json and as
// YAML otherwise.
func ReadFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config %s: %w", path, err)
	}
	if strings.EqualFold(filepath.Ext(path), ".json") {
		err = json.Unmarshal(data, cfg)
	} else {
		err = yaml.Unmarshal(data, cfg)
	}
	if err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	return nil
}

// Normalize fills defaults for empty fields.
func (cfg *Config) Normalize() {
	cfg.Store.Kind = strings.ToLower(cfg.Store.Kind)
	if cfg.Store.Kind == "" {
		cfg.Store.Kind = StoreLocal
	}
	if cfg.Store.Dir == "" {
		cfg.Store.Dir = "flatskip-data"
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	cfg.Log.Format = strings.ToLower(cfg.Log.Format)
	if cfg.Log.Format == "" {
		cfg.Log.Format = "text"
	}
	if cfg.Compression == "" {
		cfg.Compression = "none"
	}
	if cfg.EncodeWorkers < 1 {
		cfg.EncodeWorkers = 1
	}
}

// Validate reports the first invalid setting.
func (cfg *Config) Validate() error {
	switch cfg.Store.Kind {
	case StoreLocal, StoreMemory:
	case StoreMinIO:
		if cfg.Store.MinIO.Endpoint == "" || cfg.Store.MinIO.Bucket == "" {
			return errors.New("config: minio store needs an endpoint and a bucket")
		}
	default:
		return fmt.Errorf("config: unknown store kind %q", cfg.Store.Kind)
	}
	switch cfg.Log.Format {
	case "text", "json":
	default:
		return fmt.Errorf("config: unknown log format %q", cfg.Log.Format)
	}
	if _, err := cfg.LogLevel(); err != nil {
		return err
	}
	if _, err := cfg.CompressionKind(); err != nil {
		return err
	}
	return nil
}

// LogLevel parses Log.Level.
func (cfg *Config) LogLevel() (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(cfg.Log.Level)); err != nil {
		return l, fmt.Errorf("config: %w", err)
	}
	return l, nil
}

// CompressionKind parses Compression.
func (cfg *Config) CompressionKind() (flatskip.Compression, error) {
	c, err := flatskip.ParseCompression(cfg.Compression)
	if err != nil {
		return c, fmt.Errorf("config: %w", err)
	}
	return c, nil
}

// Logger builds the logger described by Log.
func (cfg *Config) Logger() *flatskip.Logger {
	level, err := cfg.LogLevel()
	if err != nil {
		level = slog.LevelInfo
	}
	if cfg.Log.Format == "json" {
		return flatskip.NewJSONLogger(level)
	}
	return flatskip.NewTextLogger(level)
}

// Options returns the index options the config selects.
func (cfg *Config) Options() []flatskip.Option {
	opts := []flatskip.Option{
		flatskip.WithLogger(cfg.Logger()),
		flatskip.WithEncodeConcurrency(cfg.EncodeWorkers),
	}
	if c, err := cfg.CompressionKind(); err == nil {
		opts = append(opts, flatskip.WithCompression(c))
	}
	return opts
}

func overrideEnvString(target *string, key string) {
	if v := os.Getenv(key); v != "" {
		*target = v
	}
}
