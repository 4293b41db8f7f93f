package wallet

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"

	"golang.org/x/crypto/scrypt"
)

const (
	// DefaultScryptLogN is the default scrypt cost, N = 2^18.
	DefaultScryptLogN = 18
	// MinScryptLogN is the lowest accepted cost, meant for tests only.
	MinScryptLogN = 10
	// MaxScryptLogN ...
	MaxScryptLogN = 22

	cypherVersion = 1
	saltSize      = 32
	keySize       = 32
	scryptR       = 8
	scryptP       = 1
	// version | logN | salt
	headerSize = 2 + saltSize
)

// EncryptOpts is the struct given to Encrypt method
type EncryptOpts struct {
	PlainText  string
	Passphrase string
	// ScryptLogN defaults to DefaultScryptLogN if zero.
	ScryptLogN int
}

func (o EncryptOpts) validate() error {
	if len(o.PlainText) <= 0 {
		return ErrNullPlainText
	}
	if len(o.Passphrase) <= 0 {
		return ErrNullPassphrase
	}
	if o.ScryptLogN != 0 &&
		(o.ScryptLogN < MinScryptLogN || o.ScryptLogN > MaxScryptLogN) {
		return ErrInvalidScryptCost
	}
	return nil
}

// Encrypt encrypts (with AES-256-GCM) a plaintext with a key derived from the
// provided passphrase. The returned cypher is base64 encoded and carries the
// scrypt cost and salt, so it can be opened with the passphrase only.
func Encrypt(opts EncryptOpts) (string, error) {
	if err := opts.validate(); err != nil {
		return "", err
	}
	logN := opts.ScryptLogN
	if logN == 0 {
		logN = DefaultScryptLogN
	}

	key, salt, err := DeriveKey([]byte(opts.Passphrase), nil, logN)
	if err != nil {
		return "", err
	}

	gcm, err := newGCM(key)
	if err != nil {
		return "", err
	}
	nonce := make([]byte, gcm.NonceSize())
	if _, err = rand.Read(nonce); err != nil {
		return "", err
	}

	data := make([]byte, 0, headerSize+len(nonce)+len(opts.PlainText)+gcm.Overhead())
	data = append(data, cypherVersion, byte(logN))
	data = append(data, salt...)
	data = append(data, nonce...)
	data = gcm.Seal(data, nonce, []byte(opts.PlainText), data[:headerSize])

	return base64.StdEncoding.EncodeToString(data), nil
}

// DecryptOpts is the struct given to Decrypt method
type DecryptOpts struct {
	CypherText string
	Passphrase string
}

func (o DecryptOpts) validate() error {
	if len(o.CypherText) <= 0 {
		return ErrNullCypherText
	}
	if _, err := base64.StdEncoding.DecodeString(o.CypherText); err != nil {
		return ErrInvalidCypherText
	}
	if len(o.Passphrase) <= 0 {
		return ErrNullPassphrase
	}
	return nil
}

// Decrypt decrypts (with AES-256-GCM) a cyphertext with the provided
// passphrase. Any failure in opening the cypher is reported as
// ErrWrongPasswordOrCorrupt and no partial plaintext is ever returned.
func Decrypt(opts DecryptOpts) (string, error) {
	if err := opts.validate(); err != nil {
		return "", err
	}

	data, _ := base64.StdEncoding.DecodeString(opts.CypherText)
	if len(data) < headerSize || data[0] != cypherVersion {
		return "", ErrWrongPasswordOrCorrupt
	}
	logN := int(data[1])
	if logN < MinScryptLogN || logN > MaxScryptLogN {
		return "", ErrWrongPasswordOrCorrupt
	}
	header, salt := data[:headerSize], data[2:headerSize]

	key, _, err := DeriveKey([]byte(opts.Passphrase), salt, logN)
	if err != nil {
		return "", err
	}

	gcm, err := newGCM(key)
	if err != nil {
		return "", err
	}
	data = data[headerSize:]
	if len(data) < gcm.NonceSize()+gcm.Overhead() {
		return "", ErrWrongPasswordOrCorrupt
	}
	nonce, text := data[:gcm.NonceSize()], data[gcm.NonceSize():]
	plaintext, err := gcm.Open(nil, nonce, text, header)
	if err != nil {
		return "", ErrWrongPasswordOrCorrupt
	}
	return string(plaintext), nil
}

// DeriveKey derives a 32 byte array key from a custom passhprase. A random
// salt is generated if nil.
func DeriveKey(passphrase, salt []byte, logN int) ([]byte, []byte, error) {
	if salt == nil {
		salt = make([]byte, saltSize)
		if _, err := rand.Read(salt); err != nil {
			return nil, nil, err
		}
	}
	// check the doc for recommended values:
	// https://godoc.org/golang.org/x/crypto/scrypt
	key, err := scrypt.Key(passphrase, salt, 1<<uint(logN), scryptR, scryptP, keySize)
	if err != nil {
		return nil, nil, err
	}
	return key, salt, nil
}

func newGCM(key []byte) (cipher.AEAD, error) {
	blockCipher, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(blockCipher)
}
