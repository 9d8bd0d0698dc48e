package utils

import (
	"crypto/rand"
	"fmt"
	"time"
)

const codeCharset = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

func randomCode(n int) string {
	b := make([]byte, n)
	_, _ = rand.Read(b)
	for i := range b {
		b[i] = codeCharset[int(b[i])%len(codeCharset)]
	}
	return string(b)
}

// GenerateReferralCode membuat kandidat kode referral. Keunikan dijamin
// oleh unique index di tabel users; pemanggil retry kalau bentrok.
func GenerateReferralCode() string {
	return randomCode(8)
}

// GenerateTransactionID membuat ID transaksi publik, misal
// TRX20260830143015ZK4QW1. Kombinasi timestamp detik + 6 karakter acak
// membuat peluang tabrakan bisa diabaikan.
func GenerateTransactionID() string {
	return fmt.Sprintf("TRX%s%s", time.Now().Format("20060102150405"), randomCode(6))
}
