// Package manifest 生成描述 Composer 依赖的 JSON 文档，供 Nix 表达式在构建时重建
// Composer 文件缓存。
package manifest

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/any-hub/nixify/internal/cache"
)

// CacheEntry 对应一个需要放回 Composer 缓存的归档。
type CacheEntry struct {
	Name     string   `json:"name"`
	Filename string   `json:"filename"`
	SHA256   string   `json:"sha256"`
	URLs     []string `json:"urls"`
}

// LocalEntry 对应一个 path 类型的本地依赖。
type LocalEntry struct {
	Name string `json:"name"`
	Path string `json:"path"`
}

// Document 是写入 OutputPath 的完整文档。
type Document struct {
	ProjectName  string       `json:"projectName"`
	CacheEntries []CacheEntry `json:"cacheEntries"`
	LocalEntries []LocalEntry `json:"localEntries"`
}

// Build 按收集顺序构建文档，projectName 会转换为合法的 store 名称。
func Build(projectName string, entries []cache.Entry) Document {
	doc := Document{
		ProjectName:  cache.SafeStoreName(projectName),
		CacheEntries: []CacheEntry{},
		LocalEntries: []LocalEntry{},
	}
	for _, entry := range entries {
		switch entry.Kind {
		case cache.KindCached:
			urls := append([]string{}, entry.URLs...)
			doc.CacheEntries = append(doc.CacheEntries, CacheEntry{
				Name:     entry.Name,
				Filename: entry.CacheFile,
				SHA256:   entry.SHA256,
				URLs:     urls,
			})
		case cache.KindLocalPath:
			doc.LocalEntries = append(doc.LocalEntries, LocalEntry{
				Name: entry.Name,
				Path: entry.Path,
			})
		}
	}
	return doc
}

// Marshal 输出缩进的 JSON，保留原始斜杠。
func Marshal(doc Document) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "    ")
	if err := enc.Encode(doc); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Write 以临时文件 + rename 的方式原子写入文档。
func Write(path string, doc Document) error {
	data, err := Marshal(doc)
	if err != nil {
		return fmt.Errorf("encode manifest: %w", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()

	_, err = tmp.Write(data)
	closeErr := tmp.Close()
	if err == nil {
		err = closeErr
	}
	if err == nil {
		err = os.Chmod(tmpName, 0o644)
	}
	if err == nil {
		err = os.Rename(tmpName, path)
	}
	if err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("write manifest %s: %w", path, err)
	}
	return nil
}
