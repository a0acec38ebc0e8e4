package nixhash

// Alphabet 是 Nix 使用的 32 字符表，刻意去掉了 e/o/u/t。
const Alphabet = "0123456789abcdfghijklmnpqrsvwxyz"

// EncodedLen 返回 n 字节输入编码后的字符数，即 ceil(8n/5)。
func EncodedLen(n int) int {
	return (n*8 + 4) / 5
}

// EncodeBase32 先反转字节序，再以高位在前的比特流每 5 位取一个字符。
// 末尾不足 5 位的分组左移补零后再查表。
func EncodeBase32(data []byte) string {
	out := make([]byte, 0, EncodedLen(len(data)))

	var acc uint
	bits := 0
	for i := len(data) - 1; i >= 0; i-- {
		acc = acc<<8 | uint(data[i])
		bits += 8
		for bits >= 5 {
			bits -= 5
			out = append(out, Alphabet[(acc>>uint(bits))&0x1f])
		}
		acc &= (1 << uint(bits)) - 1
	}
	if bits > 0 {
		out = append(out, Alphabet[(acc<<uint(5-bits))&0x1f])
	}
	return string(out)
}
