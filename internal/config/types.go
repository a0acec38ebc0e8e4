package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/any-hub/nixify/internal/lockfile"
)

// Duration 提供更灵活的反序列化能力，同时兼容纯秒整数与 Go Duration 字符串。
type Duration time.Duration

// UnmarshalText 使 Viper 可以识别诸如 "30s"、"5m" 或纯数字秒值等配置写法。
func (d *Duration) UnmarshalText(text []byte) error {
	raw := strings.TrimSpace(string(text))
	if raw == "" {
		*d = Duration(0)
		return nil
	}

	if parsed, err := time.ParseDuration(raw); err == nil {
		*d = Duration(parsed)
		return nil
	}

	if intVal, err := parseInt(raw); err == nil {
		*d = Duration(time.Duration(intVal) * time.Second)
		return nil
	}

	return fmt.Errorf("invalid duration value: %s", raw)
}

// DurationValue 返回真实的 time.Duration，便于调用方计算。
func (d Duration) DurationValue() time.Duration {
	return time.Duration(d)
}

// parseInt 支持十进制或 0x 前缀的十六进制字符串解析。
func parseInt(value string) (int64, error) {
	if strings.HasPrefix(value, "0x") || strings.HasPrefix(value, "0X") {
		return strconv.ParseInt(value, 0, 64)
	}
	return strconv.ParseInt(value, 10, 64)
}

// LogConfig 控制结构化日志的级别与落盘方式。
type LogConfig struct {
	LogLevel      string `mapstructure:"LogLevel"`
	LogFilePath   string `mapstructure:"LogFilePath"`
	LogMaxSize    int    `mapstructure:"LogMaxSize"`
	LogMaxBackups int    `mapstructure:"LogMaxBackups"`
	LogCompress   bool   `mapstructure:"LogCompress"`
}

// Config 是 TOML 文件映射的整体结构，所有组件通过显式传参获得所需字段。
type Config struct {
	Log LogConfig `mapstructure:",squash"`

	LockFile    string `mapstructure:"LockFile"`
	ProjectName string `mapstructure:"ProjectName"`
	OutputPath  string `mapstructure:"OutputPath"`

	// CacheDir 对应 Composer 的 cache-files-dir。
	CacheDir  string `mapstructure:"CacheDir"`
	StoreRoot string `mapstructure:"StoreRoot"`

	EnablePreload bool `mapstructure:"EnablePreload"`
	BatchSize     int  `mapstructure:"BatchSize"`

	UpstreamTimeout Duration `mapstructure:"UpstreamTimeout"`
	GithubDomains   []string `mapstructure:"GithubDomains"`
	GitlabDomains   []string `mapstructure:"GitlabDomains"`

	ListenPort int `mapstructure:"ListenPort"`
}

// Domains 将配置中的域名列表转换为 lockfile 使用的结构。
func (c *Config) Domains() lockfile.Domains {
	domains := lockfile.DefaultDomains()
	if len(c.GithubDomains) > 0 {
		domains.GitHub = normalizeDomains(c.GithubDomains)
	}
	if len(c.GitlabDomains) > 0 {
		domains.GitLab = normalizeDomains(c.GitlabDomains)
	}
	return domains
}

func normalizeDomains(values []string) []string {
	result := make([]string, 0, len(values))
	for _, value := range values {
		if trimmed := strings.ToLower(strings.TrimSpace(value)); trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}
