// Package nixstore 封装对本机 Nix store 的访问：通过 nix-store --add-fixed 注册
// 固定输出路径，并以 lstat 探测路径是否已存在。
package nixstore
