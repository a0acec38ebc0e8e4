package logging

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/any-hub/nixify/internal/config"
	"github.com/any-hub/nixify/internal/lockfile"
)

func TestConfigureDefaultsToStderr(t *testing.T) {
	logger, err := InitLogger(config.LogConfig{LogLevel: "info"})
	if err != nil {
		t.Fatalf("配置失败: %v", err)
	}
	if logger.Out != os.Stderr {
		t.Fatalf("未指定文件时应输出到 stderr")
	}
}

func TestInitLoggerRejectsBadLevel(t *testing.T) {
	if _, err := InitLogger(config.LogConfig{LogLevel: "loud"}); err == nil {
		t.Fatalf("无法解析的级别应返回错误")
	}
}

func TestInitLoggerFallbackOnPermissionDenied(t *testing.T) {
	if os.Geteuid() == 0 {
		t.Skip("root 用户不受目录权限限制")
	}
	dir := t.TempDir()
	blocked := filepath.Join(dir, "blocked")
	if err := os.Mkdir(blocked, 0o755); err != nil {
		t.Fatalf("创建目录失败: %v", err)
	}
	if err := os.Chmod(blocked, 0o000); err != nil {
		t.Fatalf("设置目录权限失败: %v", err)
	}
	t.Cleanup(func() { _ = os.Chmod(blocked, 0o755) })

	cfg := config.LogConfig{
		LogLevel:    "info",
		LogFilePath: filepath.Join(blocked, "sub", "nixify.log"),
	}
	logger, err := InitLogger(cfg)
	if err != nil {
		t.Fatalf("初始化不应失败: %v", err)
	}
	if logger.Out != os.Stderr {
		t.Fatalf("fallback 时应退回 stderr")
	}
}

func TestConfigureCreatesRotatingFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nixify.log")
	cfg := config.LogConfig{LogLevel: "debug", LogFilePath: path}
	logger, err := InitLogger(cfg)
	if err != nil {
		t.Fatalf("配置失败: %v", err)
	}
	logger.Info("test")
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("预期创建日志文件: %v", err)
	}
}

func TestPackageFields(t *testing.T) {
	pkg := lockfile.Package{
		Name:          "acme/pkg",
		PrettyName:    "Acme/Pkg",
		PrettyVersion: "dev-main",
		Version:       "dev-main",
		DistType:      "zip",
		DistReference: "0123456789abcdef0123456789abcdef01234567",
	}
	fields := PackageFields(pkg, "fetch")
	if fields["package"] != "Acme/Pkg" || fields["phase"] != "fetch" {
		t.Fatalf("unexpected fields: %v", fields)
	}
	if fields["version"] != "dev-main 0123456" {
		t.Fatalf("dev 版本应附带短 reference，得到 %v", fields["version"])
	}
}
