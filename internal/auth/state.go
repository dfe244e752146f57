package auth

import (
	"crypto/rand"
	"encoding/hex"
)

// GenerateState はCSRF対策のstateパラメータを暗号的に安全な乱数で生成する。
func GenerateState() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
