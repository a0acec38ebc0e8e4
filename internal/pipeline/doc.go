// Package pipeline 串联一次完整运行：读取锁文件、收集缓存条目、写出清单，
// 最后在允许时预加载到 Nix store。
package pipeline
