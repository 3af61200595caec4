package utils

import (
	"crypto/rand"
	"fmt"
)

// URL安全字母表，64个字符，每个字符携带6位熵。
// 默认长度10约60位熵，10^6条活跃记录下生日碰撞概率远低于1e-9。
const shortCodeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789-_"

// GenerateShortCode 生成长度为n的随机短码
func GenerateShortCode(n int) (string, error) {
	if n <= 0 {
		return "", fmt.Errorf("invalid short code length: %d", n)
	}

	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to read random bytes: %w", err)
	}

	for i, b := range buf {
		buf[i] = shortCodeAlphabet[int(b)&63]
	}
	return string(buf), nil
}
