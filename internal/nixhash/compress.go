package nixhash

// CompressHash 将任意长度的 hash 按位置异或折叠为 size 字节：out[i%size] ^= hash[i]。
func CompressHash(hash []byte, size int) []byte {
	if size <= 0 {
		return []byte{}
	}
	out := make([]byte, size)
	for i, b := range hash {
		out[i%size] ^= b
	}
	return out
}
