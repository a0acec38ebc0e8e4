package logging

import (
	"io"

	"github.com/sirupsen/logrus"

	"github.com/any-hub/nixify/internal/lockfile"
)

// BaseFields 构建 action + 配置路径等基础字段，便于不同入口复用。
func BaseFields(action, configPath string) logrus.Fields {
	return logrus.Fields{
		"action":     action,
		"configPath": configPath,
	}
}

// PackageFields 提供包名/版本/阶段字段，供 collect/fetch/preload 日志复用。
func PackageFields(pkg lockfile.Package, phase string) logrus.Fields {
	return logrus.Fields{
		"package":   pkg.PrettyName,
		"version":   pkg.FullPrettyVersion(),
		"dist_type": pkg.DistType,
		"phase":     phase,
	}
}

// EntryFields 提供缓存条目字段，供 preload 日志复用。
func EntryFields(name, cacheFile, storePath string) logrus.Fields {
	return logrus.Fields{
		"name":       name,
		"cache_file": cacheFile,
		"store_path": storePath,
	}
}

// Discard 返回丢弃全部输出的 logger，供测试与未注入 logger 的组件使用。
func Discard() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}
