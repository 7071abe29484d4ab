package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
)

// ComputeHMAC256 signs a payload with HMAC-SHA256 and returns a hex string.
func ComputeHMAC256(toSign []byte, secretKey string) string {
	h := hmac.New(sha256.New, []byte(secretKey))
	h.Write(toSign)
	return fmt.Sprintf("%x", h.Sum(nil))
}

// VerifyHMAC256 performs a constant-time comparison between the computed and
// provided signatures.
func VerifyHMAC256(toSign []byte, secretKey string, providedSign string) bool {
	computed := ComputeHMAC256(toSign, secretKey)
	return hmac.Equal([]byte(computed), []byte(providedSign))
}

func Sha256Hash(str string) []byte {
	hash := sha256.Sum256([]byte(str))
	return hash[:]
}

// EncryptString encrypts str with AES-256-GCM keyed from the passphrase and
// returns a hex-encoded nonce||ciphertext.
func EncryptString(str string, passphrase string) (string, error) {
	data := []byte(str)

	block, _ := aes.NewCipher(Sha256Hash(passphrase))

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", fmt.Errorf("EncryptString error: %w", err)
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err = io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("EncryptString reader error: %w", err)
	}

	ciphertext := gcm.Seal(nonce, nonce, data, nil)

	return fmt.Sprintf("%x", ciphertext), nil
}

// Decrypt reverses EncryptString on raw bytes.
func Decrypt(data []byte, passphrase string) ([]byte, error) {
	block, err := aes.NewCipher(Sha256Hash(passphrase))
	if err != nil {
		return nil, fmt.Errorf("Decrypt new cipher error: %w", err)
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("Decrypt new gcm error: %w", err)
	}

	nonceSize := gcm.NonceSize()
	if len(data) < nonceSize {
		return nil, fmt.Errorf("Decrypt ciphertext too short")
	}

	nonce, ciphertext := data[:nonceSize], data[nonceSize:]

	plaintext, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, fmt.Errorf("Decrypt open gcm error: %w", err)
	}

	return plaintext, nil
}

// DecryptFromHexString reverses EncryptString.
func DecryptFromHexString(str string, passphrase string) (string, error) {
	if str == "" {
		return "", fmt.Errorf("DecryptFromHexString empty string")
	}

	data, err := hex.DecodeString(str)
	if err != nil {
		return "", fmt.Errorf("DecryptFromHexString decode error: %w", err)
	}

	decodedBytes, errDec := Decrypt(data, passphrase)
	if errDec != nil {
		return "", fmt.Errorf("DecryptFromHexString decrypt error: %w", errDec)
	}

	return string(decodedBytes), nil
}

// UnwrapSecret decrypts a stored secret. Values that were stored before
// encryption was introduced are returned as-is, so one migration cycle of
// legacy plaintext rows keeps working.
func UnwrapSecret(stored string, passphrase string) string {
	decrypted, err := DecryptFromHexString(stored, passphrase)
	if err != nil {
		return stored
	}
	return decrypted
}
