package config

import (
	"errors"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"
	"zombiezen.com/go/nix"
)

const maxBatchSize = 1000

// Validate 针对语义级别做进一步校验，防止非法配置进入流水线。
func (c *Config) Validate() error {
	if c == nil {
		return errors.New("配置为空")
	}

	if _, err := logrus.ParseLevel(c.Log.LogLevel); err != nil {
		return newFieldError("LogLevel", "无法识别的日志级别")
	}
	if c.Log.LogMaxSize < 0 {
		return newFieldError("LogMaxSize", "不能为负数")
	}
	if c.Log.LogMaxBackups < 0 {
		return newFieldError("LogMaxBackups", "不能为负数")
	}
	if strings.TrimSpace(c.CacheDir) == "" {
		return newFieldError("CacheDir", "不能为空")
	}
	if strings.TrimSpace(c.LockFile) == "" {
		return newFieldError("LockFile", "不能为空")
	}
	if strings.TrimSpace(c.OutputPath) == "" {
		return newFieldError("OutputPath", "不能为空")
	}
	if _, err := nix.CleanStoreDirectory(c.StoreRoot); err != nil || !filepath.IsAbs(c.StoreRoot) {
		return newFieldError("StoreRoot", "必须为绝对路径")
	}
	if strings.ContainsAny(c.StoreRoot, ": ") {
		return newFieldError("StoreRoot", "不允许包含冒号或空格")
	}
	if c.BatchSize <= 0 || c.BatchSize > maxBatchSize {
		return newFieldError("BatchSize", "必须在 1-1000")
	}
	if c.UpstreamTimeout.DurationValue() <= 0 {
		return newFieldError("UpstreamTimeout", "必须大于 0")
	}
	if c.ListenPort <= 0 || c.ListenPort > 65535 {
		return newFieldError("ListenPort", "必须在 1-65535")
	}
	if err := validateDomains("GithubDomains", c.GithubDomains); err != nil {
		return err
	}
	if err := validateDomains("GitlabDomains", c.GitlabDomains); err != nil {
		return err
	}
	return nil
}

func validateDomains(field string, domains []string) error {
	for idx, domain := range domains {
		switch {
		case strings.TrimSpace(domain) == "":
			return newFieldError(listField(field, idx), "不能为空")
		case strings.Contains(domain, "/"):
			return newFieldError(listField(field, idx), "不允许包含路径")
		case strings.HasPrefix(domain, "http"):
			return newFieldError(listField(field, idx), "不应包含协议头")
		}
	}
	return nil
}
