package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
	"zombiezen.com/go/nix"

	"github.com/any-hub/nixify/internal/nixhash"
)

// DefaultConfigFile 是未指定 -config 时尝试读取的文件，缺失时仅使用默认值。
const DefaultConfigFile = "nixify.toml"

// Load 读取并解析 TOML 配置文件，同时注入默认值、环境变量覆盖与校验逻辑。
// path 为空时读取 DefaultConfigFile，文件不存在不视为错误；显式指定的文件必须存在。
func Load(path string) (*Config, error) {
	optional := false
	if path == "" {
		path = DefaultConfigFile
		optional = true
	}

	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix("NIXIFY")
	v.AutomaticEnv()

	if _, err := os.Stat(path); err == nil || !optional || !errors.Is(err, fs.ErrNotExist) {
		v.SetConfigFile(path)
		v.SetConfigType("toml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("读取配置失败: %w", err)
		}
	}

	var cfg Config
	hook := mapstructure.ComposeDecodeHookFunc(
		durationDecodeHook(),
		mapstructure.StringToSliceHookFunc(","),
	)
	if err := v.Unmarshal(&cfg, viper.DecodeHook(hook)); err != nil {
		return nil, fmt.Errorf("解析配置失败: %w", err)
	}

	applyDefaults(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	absCache, err := filepath.Abs(cfg.CacheDir)
	if err != nil {
		return nil, fmt.Errorf("无法解析缓存目录: %w", err)
	}
	cfg.CacheDir = absCache

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("LogLevel", "info")
	v.SetDefault("LogFilePath", "")
	v.SetDefault("LogMaxSize", 100)
	v.SetDefault("LogMaxBackups", 10)
	v.SetDefault("LogCompress", true)
	v.SetDefault("LockFile", "composer.lock")
	v.SetDefault("ProjectName", "")
	v.SetDefault("OutputPath", "composer-project.json")
	v.SetDefault("CacheDir", "")
	v.SetDefault("StoreRoot", defaultStoreRoot())
	v.SetDefault("EnablePreload", true)
	v.SetDefault("BatchSize", 100)
	v.SetDefault("UpstreamTimeout", "5m")
	v.SetDefault("GithubDomains", []string{"github.com"})
	v.SetDefault("GitlabDomains", []string{"gitlab.com"})
	v.SetDefault("ListenPort", 5080)
}

func applyDefaults(cfg *Config) {
	if strings.TrimSpace(cfg.CacheDir) == "" {
		cfg.CacheDir = DefaultCacheDir()
	}
	if cfg.StoreRoot == "" {
		cfg.StoreRoot = defaultStoreRoot()
	}
	if dir, err := nix.CleanStoreDirectory(cfg.StoreRoot); err == nil {
		cfg.StoreRoot = string(dir)
	}
	if cfg.BatchSize == 0 {
		cfg.BatchSize = 100
	}
	if cfg.UpstreamTimeout.DurationValue() == 0 {
		cfg.UpstreamTimeout = Duration(5 * time.Minute)
	}
	if cfg.LockFile == "" {
		cfg.LockFile = "composer.lock"
	}
}

// defaultStoreRoot 遵循 Nix 的 NIX_STORE_DIR，未设置或非法时回落到 /nix/store。
func defaultStoreRoot() string {
	dir, err := nix.StoreDirectoryFromEnvironment()
	if err != nil {
		return nixhash.DefaultStoreRoot
	}
	return string(dir)
}

// DefaultCacheDir 复刻 Composer 的 cache-files-dir 推导：
// $COMPOSER_CACHE_DIR/files → $XDG_CACHE_HOME/composer/files → ~/.cache/composer/files。
func DefaultCacheDir() string {
	if dir := os.Getenv("COMPOSER_CACHE_DIR"); dir != "" {
		return filepath.Join(dir, "files")
	}
	if dir := os.Getenv("XDG_CACHE_HOME"); dir != "" {
		return filepath.Join(dir, "composer", "files")
	}
	if home, err := os.UserHomeDir(); err == nil && home != "" {
		return filepath.Join(home, ".cache", "composer", "files")
	}
	return filepath.Join(os.TempDir(), "composer", "files")
}

func durationDecodeHook() mapstructure.DecodeHookFunc {
	targetType := reflect.TypeOf(Duration(0))

	return func(from reflect.Type, to reflect.Type, data interface{}) (interface{}, error) {
		if to != targetType {
			return data, nil
		}

		switch v := data.(type) {
		case string:
			if v == "" {
				return Duration(0), nil
			}
			if parsed, err := time.ParseDuration(v); err == nil {
				return Duration(parsed), nil
			}
			if seconds, err := strconv.ParseFloat(v, 64); err == nil {
				return Duration(time.Duration(seconds * float64(time.Second))), nil
			}
			return nil, fmt.Errorf("无法解析 Duration 字段: %s", v)
		case int:
			return Duration(time.Duration(v) * time.Second), nil
		case int64:
			return Duration(time.Duration(v) * time.Second), nil
		case float64:
			return Duration(time.Duration(v * float64(time.Second))), nil
		case time.Duration:
			return Duration(v), nil
		case Duration:
			return v, nil
		default:
			return nil, fmt.Errorf("不支持的 Duration 类型: %T", v)
		}
	}
}
