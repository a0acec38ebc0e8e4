package nixhash

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// DefaultStoreRoot 是未显式配置时使用的 Nix store 根目录。
const DefaultStoreRoot = "/nix/store"

// pathHashSize 是 store path 中摘要部分在压缩后的字节数（编码后 32 字符）。
const pathHashSize = 20

// FixedOutputPath 计算 fixed-output 文件在 store 中的路径：
//
//	inner = sha256_hex("fixed:out:{algo}:{digestHex}:")
//	outer = sha256_raw("output:out:sha256:{inner}:{storeRoot}:{name}")
//	path  = "{storeRoot}/{base32(compress(outer, 20))}-{name}"
//
// storeRoot 为空时使用 DefaultStoreRoot。第一步取十六进制、第二步取原始字节，
// 任何常量或编码差异都会让结果与真实 store 不一致。
func FixedOutputPath(name, hashAlgorithm, digestHex, storeRoot string) string {
	if storeRoot == "" {
		storeRoot = DefaultStoreRoot
	}

	inner := sha256.Sum256([]byte(fmt.Sprintf("fixed:out:%s:%s:", hashAlgorithm, digestHex)))
	outer := sha256.Sum256([]byte(fmt.Sprintf(
		"output:out:sha256:%s:%s:%s",
		hex.EncodeToString(inner[:]),
		storeRoot,
		name,
	)))

	encoded := EncodeBase32(CompressHash(outer[:], pathHashSize))
	return fmt.Sprintf("%s/%s-%s", storeRoot, encoded, name)
}
