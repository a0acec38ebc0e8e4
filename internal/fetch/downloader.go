package fetch

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/any-hub/nixify/internal/lockfile"
	"github.com/any-hub/nixify/internal/logging"
	"github.com/any-hub/nixify/internal/version"
)

// Downloader 把包的 dist 归档下载到 dir 下，返回文件绝对路径。
type Downloader interface {
	Download(ctx context.Context, pkg lockfile.Package, dir string) (string, error)
}

// HTTPDownloader 按锁文件给出的顺序依次尝试每个 dist URL，直到某个成功。
type HTTPDownloader struct {
	Client *http.Client
	Logger *logrus.Logger
}

// NewHTTPDownloader 构造下载器；client 为空时使用默认超时的共享客户端。
func NewHTTPDownloader(client *http.Client, logger *logrus.Logger) *HTTPDownloader {
	if client == nil {
		client = NewUpstreamClient(DefaultTimeout)
	}
	if logger == nil {
		logger = logging.Discard()
	}
	return &HTTPDownloader{Client: client, Logger: logger}
}

// Download 实现 Downloader。所有 URL 都失败时返回合并后的错误。
func (d *HTTPDownloader) Download(ctx context.Context, pkg lockfile.Package, dir string) (string, error) {
	if len(pkg.DistURLs) == 0 {
		return "", errors.New("no dist url")
	}

	var errs []error
	for _, rawURL := range pkg.DistURLs {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		target, err := d.fetchOne(ctx, pkg, rawURL, dir)
		if err == nil {
			return target, nil
		}
		d.Logger.WithFields(logging.PackageFields(pkg, "download")).
			WithField("url", rawURL).
			WithError(err).
			Warn("dist download failed")
		errs = append(errs, fmt.Errorf("%s: %w", rawURL, err))
	}
	return "", errors.Join(errs...)
}

func (d *HTTPDownloader) fetchOne(ctx context.Context, pkg lockfile.Package, rawURL, dir string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("User-Agent", "nixify/"+version.Version)

	resp, err := d.Client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	target := filepath.Join(dir, downloadName(rawURL, pkg.DistType))
	file, err := os.Create(target)
	if err != nil {
		return "", err
	}

	hasher := sha1.New()
	_, copyErr := io.Copy(io.MultiWriter(file, hasher), resp.Body)
	closeErr := file.Close()
	if copyErr != nil {
		_ = os.Remove(target)
		return "", copyErr
	}
	if closeErr != nil {
		_ = os.Remove(target)
		return "", closeErr
	}

	if want := strings.ToLower(strings.TrimSpace(pkg.DistShasum)); want != "" {
		if got := hex.EncodeToString(hasher.Sum(nil)); got != want {
			_ = os.Remove(target)
			return "", fmt.Errorf("shasum mismatch: want %s, got %s", want, got)
		}
	}
	return target, nil
}

// downloadName 取 URL 最后一段作为文件名，无法识别时退化为 dist.<type>。
func downloadName(rawURL, distType string) string {
	fallback := "dist"
	if distType != "" {
		fallback += "." + distType
	}
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return fallback
	}
	base := path.Base(parsed.Path)
	if base == "" || base == "." || base == "/" || strings.HasPrefix(base, ".") {
		return fallback
	}
	return base
}
