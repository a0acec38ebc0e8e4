package lockfile

import (
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"regexp"
	"slices"
	"strings"
)

// ErrNotLocked 表示项目尚未生成 composer.lock。
var ErrNotLocked = errors.New("composer.lock not found")

// Lock 保存解析后的锁文件内容。
type Lock struct {
	Path        string
	packages    []Package
	devPackages []Package
}

type rawLock struct {
	Packages    []rawPackage `json:"packages"`
	PackagesDev []rawPackage `json:"packages-dev"`
}

type rawPackage struct {
	Name              string   `json:"name"`
	Version           string   `json:"version"`
	VersionNormalized string   `json:"version_normalized"`
	Dist              *rawDist `json:"dist"`
}

type rawDist struct {
	Type      string      `json:"type"`
	URL       string      `json:"url"`
	Reference string      `json:"reference"`
	Shasum    string      `json:"shasum"`
	Mirrors   []rawMirror `json:"mirrors"`
}

type rawMirror struct {
	URL       string `json:"url"`
	Preferred bool   `json:"preferred"`
}

// Load 读取并解析锁文件；文件不存在时返回 ErrNotLocked。
func Load(path string) (*Lock, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ErrNotLocked
		}
		return nil, fmt.Errorf("读取锁文件失败: %w", err)
	}
	lock, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("解析锁文件 %s 失败: %w", path, err)
	}
	lock.Path = path
	return lock, nil
}

// Parse 解析 composer.lock 的 JSON 内容。
func Parse(data []byte) (*Lock, error) {
	var raw rawLock
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, err
	}

	lock := &Lock{}
	for _, item := range raw.Packages {
		pkg, err := item.toPackage(false)
		if err != nil {
			return nil, err
		}
		lock.packages = append(lock.packages, pkg)
	}
	for _, item := range raw.PackagesDev {
		pkg, err := item.toPackage(true)
		if err != nil {
			return nil, err
		}
		lock.devPackages = append(lock.devPackages, pkg)
	}
	return lock, nil
}

// Packages 按 packages → packages-dev 的顺序返回全部依赖，每次调用返回新切片。
func (l *Lock) Packages() []Package {
	if l == nil {
		return nil
	}
	result := make([]Package, 0, len(l.packages)+len(l.devPackages))
	result = append(result, l.packages...)
	result = append(result, l.devPackages...)
	return result
}

func (r rawPackage) toPackage(dev bool) (Package, error) {
	if strings.TrimSpace(r.Name) == "" {
		return Package{}, errors.New("package entry without name")
	}
	pkg := Package{
		Name:          strings.ToLower(r.Name),
		PrettyName:    r.Name,
		PrettyVersion: r.Version,
		Version:       r.VersionNormalized,
		Dev:           dev,
	}
	if pkg.Version == "" {
		pkg.Version = NormalizeVersion(r.Version)
	}
	if r.Dist != nil {
		pkg.DistType = r.Dist.Type
		pkg.DistReference = r.Dist.Reference
		pkg.DistShasum = r.Dist.Shasum
		pkg.DistURLs = distURLs(pkg, r.Dist)
	}
	return pkg, nil
}

// distURLs 与 Composer 的 getUrls 一致：preferred 镜像放在最前，其余镜像追加在后。
func distURLs(pkg Package, dist *rawDist) []string {
	if dist.URL == "" {
		return nil
	}
	url := dist.URL
	if strings.Contains(url, "%") {
		url = processMirrorURL(url, pkg, dist.Reference, dist.Type)
	}
	urls := []string{url}
	for _, mirror := range dist.Mirrors {
		mirrorURL := processMirrorURL(mirror.URL, pkg, dist.Reference, dist.Type)
		if slices.Contains(urls, mirrorURL) {
			continue
		}
		if mirror.Preferred {
			urls = append([]string{mirrorURL}, urls...)
		} else {
			urls = append(urls, mirrorURL)
		}
	}
	return urls
}

var hexReference = regexp.MustCompile(`^([a-f0-9]*|%reference%)$`)

func processMirrorURL(mirrorURL string, pkg Package, reference, distType string) string {
	if reference != "" && !hexReference.MatchString(reference) {
		reference = md5Hex(reference)
	}
	version := pkg.Version
	if strings.Contains(version, "/") {
		version = md5Hex(version)
	}
	replacer := strings.NewReplacer(
		"%package%", pkg.Name,
		"%version%", version,
		"%reference%", reference,
		"%type%", distType,
		"%prettyVersion%", pkg.PrettyVersion,
	)
	return replacer.Replace(mirrorURL)
}

func md5Hex(value string) string {
	sum := md5.Sum([]byte(value))
	return hex.EncodeToString(sum[:])
}
