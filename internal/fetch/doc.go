// Package fetch 在缓存缺失时重新下载 dist 归档。
//
// Fetcher 为每次调用创建独占的暂存目录，下载完成后把文件迁入缓存根目录并返回
// 其 SHA-256；所有失败都以 *Error 返回，附带所处阶段与平台错误码。
package fetch
