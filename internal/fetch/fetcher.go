package fetch

import (
	"context"
	"errors"

	"github.com/sirupsen/logrus"

	"github.com/any-hub/nixify/internal/cache"
	"github.com/any-hub/nixify/internal/lockfile"
	"github.com/any-hub/nixify/internal/logging"
)

// Fetcher 在缓存缺失时下载归档并写入缓存，实现 cache.Refetcher。
type Fetcher struct {
	store      cache.Store
	downloader Downloader
	logger     *logrus.Logger
}

// New 构造 Fetcher。downloader 为空时使用默认的 HTTPDownloader。
func New(store cache.Store, downloader Downloader, logger *logrus.Logger) *Fetcher {
	if logger == nil {
		logger = logging.Discard()
	}
	if downloader == nil {
		downloader = NewHTTPDownloader(nil, logger)
	}
	return &Fetcher{store: store, downloader: downloader, logger: logger}
}

var _ cache.Refetcher = (*Fetcher)(nil)

// Refetch 下载 pkg 并放到 cacheFile，返回缓存文件的 SHA-256。
// 暂存目录在任何退出路径上都会被删除。
func (f *Fetcher) Refetch(ctx context.Context, pkg lockfile.Package, name, cacheFile string) (digest string, err error) {
	label := pkg.PrettyName
	if label == "" {
		label = pkg.Name
	}
	if f.store == nil {
		return "", newError(label, PhaseStage, errors.New("cache store not configured"))
	}

	staging, err := f.store.Stage()
	if err != nil {
		return "", newError(label, PhaseStage, err)
	}
	stagingDir := staging.Dir
	defer func() {
		if cerr := staging.Close(); cerr != nil {
			f.logger.WithError(cerr).WithField("dir", stagingDir).Warn("remove staging dir failed")
		}
	}()

	fields := logging.PackageFields(pkg, "fetch")
	f.logger.WithFields(fields).WithField("name", name).Info("cache miss, downloading")

	downloaded, err := f.downloader.Download(ctx, pkg, staging.Dir)
	if err != nil {
		return "", newError(label, PhaseDownload, err)
	}

	target, err := f.store.Adopt(ctx, downloaded, cacheFile)
	if err != nil {
		return "", newError(label, PhaseRelocate, err)
	}

	digest, err = cache.HashFile(ctx, target)
	if err != nil {
		return "", newError(label, PhaseDigest, err)
	}

	f.logger.WithFields(fields).
		WithField("cache_file", cacheFile).
		WithField("sha256", digest).
		Info("dist archive cached")
	return digest, nil
}
