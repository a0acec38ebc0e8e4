package cache

import (
	"context"
	"errors"
	"os"
)

// Store 负责管理 Composer 文件缓存的读写。磁盘布局遵循：
//
//	<CacheDir>/<sanitized cache key>     # 例如 psr/log/<sha1>.zip
//	<CacheDir>/.nixify-tmp-<8 hex>/      # 单次调用独占的暂存目录
type Store interface {
	// Root 返回缓存根目录的绝对路径。
	Root() string

	// Path 将相对缓存文件名解析为绝对路径，拒绝逃逸出根目录的路径。
	Path(cacheFile string) (string, error)

	// Digest 计算缓存文件的 SHA-256（十六进制）。文件不存在时返回 ErrNotFound。
	Digest(ctx context.Context, cacheFile string) (string, error)

	// Adopt 将 src 移动到 cacheFile 对应的位置，必要时创建父目录；
	// 跨设备时退化为复制 + 删除。返回目标绝对路径。
	Adopt(ctx context.Context, src, cacheFile string) (string, error)

	// Stage 在缓存根目录下创建独占的暂存目录，调用方必须 Close。
	Stage() (*Staging, error)
}

// Staging 表示一个暂存目录，Close 会无条件递归删除。
type Staging struct {
	Dir string
}

// Close 删除暂存目录，可重复调用。
func (s *Staging) Close() error {
	if s == nil || s.Dir == "" {
		return nil
	}
	err := os.RemoveAll(s.Dir)
	s.Dir = ""
	return err
}

// ErrNotFound 表示缓存文件不存在。
var ErrNotFound = errors.New("cache entry not found")
