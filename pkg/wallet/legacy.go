package wallet

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/sha256"
	"encoding/base64"
	"unicode/utf8"
)

// DecryptLegacy opens a cypher in the format of the records written by the
// browser wallet: AES-256-CBC with PKCS#7 padding, a key that is the SHA-256
// of the passphrase and an all-zero IV, base64 encoded.
//
// The format is not authenticated, so a wrong passphrase is only detected
// when the padding or the utf8 check fail. Callers must verify the returned
// plaintext on their own.
func DecryptLegacy(opts DecryptOpts) (string, error) {
	if err := opts.validate(); err != nil {
		return "", err
	}

	data, _ := base64.StdEncoding.DecodeString(opts.CypherText)
	if !isLegacyCypher(data) {
		return "", ErrWrongPasswordOrCorrupt
	}

	key := sha256.Sum256([]byte(opts.Passphrase))
	block, err := aes.NewCipher(key[:])
	if err != nil {
		return "", err
	}
	iv := make([]byte, aes.BlockSize)
	plaintext := make([]byte, len(data))
	cipher.NewCBCDecrypter(block, iv).CryptBlocks(plaintext, data)

	plaintext, ok := unpad(plaintext)
	if !ok || len(plaintext) <= 0 || !utf8.Valid(plaintext) {
		return "", ErrWrongPasswordOrCorrupt
	}
	return string(plaintext), nil
}

// CheckCypherText returns an error if the given base64 cypher can't be
// opened by Decrypt nor by DecryptLegacy, whatever the passphrase.
func CheckCypherText(cypherText string) error {
	if len(cypherText) <= 0 {
		return ErrNullCypherText
	}
	data, err := base64.StdEncoding.DecodeString(cypherText)
	if err != nil {
		return ErrInvalidCypherText
	}
	if isCurrentCypher(data) || isLegacyCypher(data) {
		return nil
	}
	return ErrInvalidCypherText
}

// IsLegacyCypherText returns whether the cypher is only readable with
// DecryptLegacy.
func IsLegacyCypherText(cypherText string) bool {
	data, err := base64.StdEncoding.DecodeString(cypherText)
	if err != nil {
		return false
	}
	return !isCurrentCypher(data) && isLegacyCypher(data)
}

func isCurrentCypher(data []byte) bool {
	// header | gcm nonce | at least the gcm tag
	if len(data) < headerSize+12+16 || data[0] != cypherVersion {
		return false
	}
	logN := int(data[1])
	return logN >= MinScryptLogN && logN <= MaxScryptLogN
}

func isLegacyCypher(data []byte) bool {
	return len(data) > 0 && len(data)%aes.BlockSize == 0
}

func unpad(data []byte) ([]byte, bool) {
	if len(data) <= 0 {
		return nil, false
	}
	n := int(data[len(data)-1])
	if n <= 0 || n > aes.BlockSize || n > len(data) {
		return nil, false
	}
	if !bytes.Equal(data[len(data)-n:], bytes.Repeat([]byte{byte(n)}, n)) {
		return nil, false
	}
	return data[:len(data)-n], true
}
