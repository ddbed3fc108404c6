package utils

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
)

// SignHMAC 对原始报文做 HMAC-SHA256，返回小写 hex
func SignHMAC(body []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifyHMAC 常量时间比较签名
func VerifyHMAC(body []byte, secret, signature string) bool {
	expected := SignHMAC(body, secret)
	return hmac.Equal([]byte(expected), []byte(signature))
}
