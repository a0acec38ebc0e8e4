// Package preload 把缓存中的归档预先注册到 Nix store，使后续构建直接命中
// 固定输出路径而无需重新下载。
package preload
