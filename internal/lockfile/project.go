package lockfile

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
)

// ProjectName 返回锁文件所属根项目的名称：优先读取同目录 composer.json 的 name，
// 缺失时退化为所在目录名。
func ProjectName(lockPath string) string {
	dir := filepath.Dir(lockPath)
	if data, err := os.ReadFile(filepath.Join(dir, "composer.json")); err == nil {
		var root struct {
			Name string `json:"name"`
		}
		if json.Unmarshal(data, &root) == nil && strings.TrimSpace(root.Name) != "" {
			return strings.ToLower(strings.TrimSpace(root.Name))
		}
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return filepath.Base(dir)
	}
	return filepath.Base(abs)
}
