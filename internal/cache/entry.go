package cache

import (
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"regexp"

	"github.com/any-hub/nixify/internal/lockfile"
)

// Kind 区分缓存条目的封闭变体。
type Kind string

const (
	// KindCached 表示位于 Composer 文件缓存中的归档。
	KindCached Kind = "cache"
	// KindLocalPath 表示 path 类型的本地依赖，生成输出时原样替换路径。
	KindLocalPath Kind = "local"
)

// Entry 是一次收集得到的缓存条目，仅在内存中存在；落盘的只有缓存文件本身。
//
// KindCached 使用 CacheKey/CacheFile/SHA256/URLs，KindLocalPath 仅使用 Path。
type Entry struct {
	Kind    Kind
	Name    string
	Package lockfile.Package

	CacheKey  string
	CacheFile string
	SHA256    string
	URLs      []string

	Path string
}

// Cached 表示条目可以参与 preload。
func (e Entry) Cached() bool {
	return e.Kind == KindCached && e.SHA256 != ""
}

var (
	unsafeStoreChars = regexp.MustCompile(`[^a-zA-Z0-9._-]`)
	unsafeCacheChars = regexp.MustCompile(`[^a-zA-Z0-9_./]`)
)

// SafeStoreName 将任意字符串转换为合法的 Nix store 名称：非 [A-Za-z0-9._-] 替换为 _。
func SafeStoreName(value string) string {
	return unsafeStoreChars.ReplaceAllString(value, "_")
}

// SanitizeCacheKey 与 Composer Cache::read 相同：非 [A-Za-z0-9_./] 替换为 -。
func SanitizeCacheKey(key string) string {
	return unsafeCacheChars.ReplaceAllString(key, "-")
}

// CacheKey 复刻 Composer FileDownloader::getCacheKey。Composer 按顺序尝试 URL，
// 因此以首个 dist 地址（写入 reference 之后）为准。返回 key 与参与计算的 URL。
func CacheKey(pkg lockfile.Package, domains lockfile.Domains) (string, string) {
	cacheURL := pkg.DistURL()
	if pkg.DistReference != "" {
		cacheURL = lockfile.UpdateDistReference(cacheURL, pkg.DistReference, domains)
	}
	sum := sha1.Sum([]byte(cacheURL))
	return fmt.Sprintf("%s/%s.%s", pkg.Name, hex.EncodeToString(sum[:]), pkg.DistType), cacheURL
}
