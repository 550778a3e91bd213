// Package config loads memocache settings from memocache.yaml and MEMOCACHE_*
// environment variables and turns them into Registry options.
package config

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"

	"github.com/unkn0wn-root/memocache"
	zaplog "github.com/unkn0wn-root/memocache/log/zap"
	pr "github.com/unkn0wn-root/memocache/provider"
	"github.com/unkn0wn-root/memocache/provider/bigcache"
	"github.com/unkn0wn-root/memocache/provider/file"
	"github.com/unkn0wn-root/memocache/provider/redis"
	"github.com/unkn0wn-root/memocache/provider/ristretto"
)

const FileName = "memocache.yaml"

// Provider kinds.
const (
	ProviderFile      = "file"
	ProviderRedis     = "redis"
	ProviderBigcache  = "bigcache"
	ProviderRistretto = "ristretto"
)

type Redis struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	Prefix   string `yaml:"prefix"`
}

type Config struct {
	// Source is the file the config was read from; "" when none was found.
	Source string `yaml:"-"`

	Provider         string `yaml:"provider"`
	Dir              string `yaml:"dir"`
	PropertyFormat   string `yaml:"property_format"`
	MaxArtifactBytes int    `yaml:"max_artifact_bytes"`
	LogLevel         string `yaml:"log_level"`

	Redis Redis `yaml:"redis"`
	// MaxCostMB bounds the ristretto provider.
	MaxCostMB int64 `yaml:"max_cost_mb"`
}

func Default() Config {
	return Config{
		Provider:       ProviderFile,
		Dir:            ".",
		PropertyFormat: string(memocache.FormatJSON),
		LogLevel:       "error",
		Redis:          Redis{Addr: "localhost:6379", Prefix: "memocache:"},
	}
}

// Load reads path, or the first memocache.yaml found in the working
// directory, $XDG_CONFIG_HOME and $HOME when path is empty. A missing
// default file is not an error. MEMOCACHE_* variables override the file.
func Load(path string) (Config, error) {
	cfg := Default()

	if path == "" {
		path = os.Getenv("MEMOCACHE_CONFIG")
	}
	explicit := path != ""
	if !explicit {
		path = findConfig()
	}

	if path != "" {
		b, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(b, &cfg); err != nil {
				return Config{}, fmt.Errorf("config: parse %s: %w", path, err)
			}
			cfg.Source = path
		case explicit || !errors.Is(err, fs.ErrNotExist):
			return Config{}, fmt.Errorf("config: %w", err)
		}
	}

	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return Config{}, err
	}
	return cfg, cfg.Validate()
}

func findConfig() string {
	for _, dir := range []string{".", os.Getenv("XDG_CONFIG_HOME"), os.Getenv("HOME")} {
		if dir == "" {
			continue
		}
		p := filepath.Join(dir, FileName)
		if fi, err := os.Stat(p); err == nil && !fi.IsDir() {
			return p
		}
	}
	return ""
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	str := map[string]*string{
		"MEMOCACHE_PROVIDER":        &c.Provider,
		"MEMOCACHE_DIR":             &c.Dir,
		"MEMOCACHE_PROPERTY_FORMAT": &c.PropertyFormat,
		"MEMOCACHE_LOG":             &c.LogLevel,
		"MEMOCACHE_REDIS_ADDR":      &c.Redis.Addr,
		"MEMOCACHE_REDIS_PASSWORD":  &c.Redis.Password,
		"MEMOCACHE_REDIS_PREFIX":    &c.Redis.Prefix,
	}
	for k, dst := range str {
		if v, ok := lookup(k); ok {
			*dst = v
		}
	}

	ints := map[string]func(int64){
		"MEMOCACHE_MAX_ARTIFACT_BYTES": func(n int64) { c.MaxArtifactBytes = int(n) },
		"MEMOCACHE_REDIS_DB":           func(n int64) { c.Redis.DB = int(n) },
		"MEMOCACHE_MAX_COST_MB":        func(n int64) { c.MaxCostMB = n },
	}
	for k, set := range ints {
		v, ok := lookup(k)
		if !ok {
			continue
		}
		n, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
		if err != nil {
			return fmt.Errorf("config: %s: %w", k, err)
		}
		set(n)
	}
	return nil
}

func (c Config) Validate() error {
	switch c.Provider {
	case ProviderFile, ProviderRedis, ProviderBigcache, ProviderRistretto:
	default:
		return fmt.Errorf("config: unknown provider %q", c.Provider)
	}
	if _, err := memocache.ParseFormat(c.PropertyFormat); err != nil {
		return fmt.Errorf("config: property_format: %w", err)
	}
	if _, err := zapcore.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("config: log_level: %w", err)
	}
	if c.MaxArtifactBytes < 0 || c.MaxCostMB < 0 {
		return errors.New("config: sizes must not be negative")
	}
	return nil
}

// Logger builds a console zap logger at LogLevel writing to stderr.
func (c Config) Logger() (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(c.LogLevel)
	if err != nil {
		return nil, err
	}
	zc := zap.NewDevelopmentConfig()
	zc.Level = zap.NewAtomicLevelAt(lvl)
	zc.DisableStacktrace = true
	return zc.Build()
}

// NewProvider builds the configured artifact store. Redis is pinged so a
// bad address fails here rather than on the first call.
func (c Config) NewProvider(ctx context.Context) (pr.Provider, error) {
	switch c.Provider {
	case ProviderFile:
		return file.New(file.Config{Dir: c.Dir}), nil
	case ProviderBigcache:
		p, err := bigcache.New(bigcache.Config{})
		if err != nil {
			return nil, fmt.Errorf("config: bigcache: %w", err)
		}
		return p, nil
	case ProviderRistretto:
		p, err := ristretto.New(ristretto.Config{MaxCost: c.MaxCostMB << 20})
		if err != nil {
			return nil, fmt.Errorf("config: ristretto: %w", err)
		}
		return p, nil
	case ProviderRedis:
		rdb := goredis.NewClient(&goredis.Options{
			Addr:     c.Redis.Addr,
			Password: c.Redis.Password,
			DB:       c.Redis.DB,
		})
		if err := rdb.Ping(ctx).Err(); err != nil {
			_ = rdb.Close()
			return nil, fmt.Errorf("config: redis %s: %w", c.Redis.Addr, err)
		}
		p, err := redis.New(redis.Config{Client: rdb, Prefix: c.Redis.Prefix, CloseClient: true})
		if err != nil {
			return nil, err
		}
		return p, nil
	}
	return nil, fmt.Errorf("config: unknown provider %q", c.Provider)
}

// Options assembles Registry options. The returned logger must be synced
// by the caller.
func (c Config) Options(ctx context.Context) (memocache.Options, *zap.Logger, error) {
	if err := c.Validate(); err != nil {
		return memocache.Options{}, nil, err
	}
	zl, err := c.Logger()
	if err != nil {
		return memocache.Options{}, nil, err
	}
	p, err := c.NewProvider(ctx)
	if err != nil {
		return memocache.Options{}, nil, err
	}
	pf, _ := memocache.ParseFormat(c.PropertyFormat)
	return memocache.Options{
		Provider:         p,
		PropertyFormat:   pf,
		MaxArtifactBytes: c.MaxArtifactBytes,
		Logger:           zaplog.ZapLogger{L: zl},
	}, zl, nil
}
