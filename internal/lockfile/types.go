package lockfile

import "strings"

// DistKind 是 dist 类型的封闭分类，调用方必须处理全部三种情况。
type DistKind string

const (
	DistKindArchive     DistKind = "archive"
	DistKindPath        DistKind = "path"
	DistKindUnsupported DistKind = "unsupported"
)

// archiveTypes 对应 Composer 中由 FileDownloader 及其子类处理、会写入文件缓存的类型。
var archiveTypes = map[string]struct{}{
	"tar":  {},
	"xz":   {},
	"zip":  {},
	"gzip": {},
	"phar": {},
	"rar":  {},
}

// Package 描述锁文件中的一个依赖包，字段均为只读快照。
type Package struct {
	Name          string
	PrettyName    string
	PrettyVersion string
	// Version 为规范化后的版本号，用于 UniqueName。
	Version       string
	DistType      string
	DistURLs      []string
	DistReference string
	// DistShasum 为可选的 sha1 校验值，为空时跳过校验。
	DistShasum string
	Dev        bool
}

// UniqueName 与 Composer 的 getUniqueName 一致：name-normalizedVersion。
func (p Package) UniqueName() string {
	return p.Name + "-" + p.Version
}

// FullPrettyVersion 用于日志输出，带上截断的 reference 便于区分 dev 分支。
func (p Package) FullPrettyVersion() string {
	if strings.HasPrefix(p.Version, "dev-") || strings.HasSuffix(p.Version, "-dev") {
		ref := p.DistReference
		if len(ref) == 40 {
			ref = ref[:7]
		}
		if ref != "" {
			return p.PrettyVersion + " " + ref
		}
	}
	return p.PrettyVersion
}

// DistKind 将 DistType 归入封闭集合。
func (p Package) DistKind() DistKind {
	distType := strings.ToLower(strings.TrimSpace(p.DistType))
	if _, ok := archiveTypes[distType]; ok {
		return DistKindArchive
	}
	if distType == "path" {
		return DistKindPath
	}
	return DistKindUnsupported
}

// DistURL 返回首个 dist 地址，Composer 也按该顺序尝试下载。
func (p Package) DistURL() string {
	if len(p.DistURLs) == 0 {
		return ""
	}
	return p.DistURLs[0]
}
