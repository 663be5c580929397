package utils

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
)

// CSRFTokenLength — длина CSRF токена в байтах до hex-кодирования
const CSRFTokenLength = 32

// GenerateCSRFToken создаёт криптографически стойкий токен фиксированной длины
func GenerateCSRFToken() (string, error) {
	buf := make([]byte, CSRFTokenLength)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}

// SecureCompare сравнивает два токена за постоянное время.
// Несовпадение длины отклоняется без посимвольного сравнения,
// совпадающая длина сравнивается через subtle.ConstantTimeCompare,
// поэтому время не зависит от позиции первого расхождения.
func SecureCompare(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}
