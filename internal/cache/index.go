package cache

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/any-hub/nixify/internal/lockfile"
	"github.com/any-hub/nixify/internal/logging"
)

// Refetcher 在缓存缺失时重新下载归档并写入 cacheFile，返回其 SHA-256。
type Refetcher interface {
	Refetch(ctx context.Context, pkg lockfile.Package, name, cacheFile string) (string, error)
}

// Index 负责把锁文件中的包映射为缓存条目。
type Index struct {
	store   Store
	fetcher Refetcher
	domains lockfile.Domains
	logger  *logrus.Logger
}

// NewIndex 构造 Index；logger 为空时丢弃日志。
func NewIndex(store Store, fetcher Refetcher, domains lockfile.Domains, logger *logrus.Logger) *Index {
	if logger == nil {
		logger = logging.Discard()
	}
	return &Index{
		store:   store,
		fetcher: fetcher,
		domains: domains,
		logger:  logger,
	}
}

// Classify 为单个包生成缓存条目。ok=false 表示该包的 dist 类型不受支持，已记录警告并跳过；
// 缓存缺失时同步调用 Refetcher，下载失败原样返回给调用方。
func (i *Index) Classify(ctx context.Context, pkg lockfile.Package) (Entry, bool, error) {
	switch pkg.DistKind() {
	case lockfile.DistKindArchive:
		entry, err := i.classifyArchive(ctx, pkg)
		if err != nil {
			return Entry{}, false, err
		}
		return entry, true, nil
	case lockfile.DistKindPath:
		return Entry{
			Kind:    KindLocalPath,
			Name:    SafeStoreName(pkg.Name),
			Package: pkg,
			Path:    pkg.DistURL(),
		}, true, nil
	default:
		i.logger.WithFields(logging.PackageFields(pkg, "collect")).
			Warnf("Package '%s' has dist-type '%s' which is not supported by nixify", pkg.PrettyName, pkg.DistType)
		return Entry{}, false, nil
	}
}

func (i *Index) classifyArchive(ctx context.Context, pkg lockfile.Package) (Entry, error) {
	if pkg.DistURL() == "" {
		return Entry{}, fmt.Errorf("package %s: dist url missing", pkg.PrettyName)
	}

	key, _ := CacheKey(pkg, i.domains)
	entry := Entry{
		Kind:      KindCached,
		Name:      SafeStoreName(pkg.UniqueName()),
		Package:   pkg,
		CacheKey:  key,
		CacheFile: SanitizeCacheKey(key),
		URLs:      append([]string(nil), pkg.DistURLs...),
	}

	digest, err := i.store.Digest(ctx, entry.CacheFile)
	switch {
	case err == nil:
		entry.SHA256 = digest
		return entry, nil
	case errors.Is(err, ErrNotFound):
		// miss, refetch below
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return Entry{}, err
	default:
		i.logger.WithError(err).
			WithFields(logging.PackageFields(pkg, "collect")).
			Warn("cache_read_failed")
	}

	if i.fetcher == nil {
		return Entry{}, fmt.Errorf("package %s: cache miss for %s and no fetcher configured", pkg.PrettyName, entry.CacheFile)
	}

	i.logger.WithFields(logging.PackageFields(pkg, "collect")).
		WithField("cache_file", entry.CacheFile).
		Infof("nixify could not find cache for package %s, which will be refetched", entry.Name)

	digest, err = i.fetcher.Refetch(ctx, pkg, entry.Name, entry.CacheFile)
	if err != nil {
		return Entry{}, err
	}
	entry.SHA256 = digest
	return entry, nil
}
